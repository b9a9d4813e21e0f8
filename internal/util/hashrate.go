package util

import (
	"fmt"
	"math"

	"github.com/dustin/go-humanize"
)

// NetworkHashrate estimates network hashrate from the hashes needed per block
// and the block time.
func NetworkHashrate(hashesPerBlock, blockTimeSeconds float64) float64 {
	if blockTimeSeconds <= 0 {
		return 0
	}
	return hashesPerBlock / blockTimeSeconds
}

// EstimatedTimeToBlock estimates seconds to find a block given a hashrate and
// the hashes needed per block.
func EstimatedTimeToBlock(hashrate, hashesPerBlock float64) float64 {
	if hashrate <= 0 {
		return 0
	}
	return hashesPerBlock / hashrate
}

// FormatHashrate renders a H/s value with an SI prefix, e.g. "12.30 kH/s".
// Negative, NaN and infinite inputs render as zero. Values past EH/s stay in EH/s.
func FormatHashrate(hashrate float64, precision int) string {
	if math.IsNaN(hashrate) || math.IsInf(hashrate, 0) || hashrate < 0 {
		hashrate = 0
	}

	switch {
	case hashrate < 1000:
		return fmt.Sprintf("%.*f H/s", precision, hashrate)
	case hashrate >= 1e21:
		return fmt.Sprintf("%.*f EH/s", precision, hashrate/1e18)
	}

	value, prefix := humanize.ComputeSI(hashrate)
	return fmt.Sprintf("%.*f %sH/s", precision, value, prefix)
}

// FormatMoney renders a currency amount with thousands separators and two decimals.
func FormatMoney(amount float64) string {
	return "$" + humanize.CommafWithDigits(math.Round(amount*100)/100, 2)
}
