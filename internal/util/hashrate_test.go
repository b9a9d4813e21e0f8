package util

import (
	"math"
	"testing"
)

func TestFormatHashrate(t *testing.T) {
	tests := []struct {
		hashrate float64
		expected string
	}{
		{0, "0.00 H/s"},
		{950, "950.00 H/s"},
		{12_300, "12.30 kH/s"},
		{75_000, "75.00 kH/s"},
		{8_200_000, "8.20 MH/s"},
		{140_000_000, "140.00 MH/s"},
		{8_000_000_000_000, "8.00 TH/s"},
		{180_000_000_000_000, "180.00 TH/s"},
		{-5, "0.00 H/s"},
		{math.NaN(), "0.00 H/s"},
		{math.Inf(1), "0.00 H/s"},
		{2.5e21, "2500.00 EH/s"},
	}

	for _, tt := range tests {
		got := FormatHashrate(tt.hashrate, 2)
		if got != tt.expected {
			t.Errorf("FormatHashrate(%v) = %q, want %q", tt.hashrate, got, tt.expected)
		}
	}
}

func TestFormatHashratePrecision(t *testing.T) {
	if got := FormatHashrate(12_345, 1); got != "12.3 kH/s" {
		t.Errorf("FormatHashrate(12345, 1) = %q, want 12.3 kH/s", got)
	}
}

func TestNetworkHashrate(t *testing.T) {
	if got := NetworkHashrate(120_000, 10); got != 12_000 {
		t.Errorf("NetworkHashrate(120000, 10) = %v, want 12000", got)
	}
	if got := NetworkHashrate(120_000, 0); got != 0 {
		t.Errorf("NetworkHashrate with zero block time = %v, want 0", got)
	}
}

func TestEstimatedTimeToBlock(t *testing.T) {
	if got := EstimatedTimeToBlock(1000, 10_000); got != 10 {
		t.Errorf("EstimatedTimeToBlock(1000, 10000) = %v, want 10", got)
	}
	if got := EstimatedTimeToBlock(0, 10_000); got != 0 {
		t.Errorf("EstimatedTimeToBlock with zero hashrate = %v, want 0", got)
	}
}

func TestFormatMoney(t *testing.T) {
	tests := []struct {
		amount   float64
		expected string
	}{
		{1000, "$1,000"},
		{1234.5, "$1,234.5"},
		{0.126, "$0.13"},
	}

	for _, tt := range tests {
		if got := FormatMoney(tt.amount); got != tt.expected {
			t.Errorf("FormatMoney(%v) = %q, want %q", tt.amount, got, tt.expected)
		}
	}
}
