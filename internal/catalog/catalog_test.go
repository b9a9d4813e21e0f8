package catalog

import "testing"

func TestDefaultCatalog(t *testing.T) {
	c := Default()

	all := c.All()
	if len(all) != 7 {
		t.Fatalf("len(All()) = %d, want 7", len(all))
	}
	if all[0].ID != "cpu_basic" {
		t.Errorf("All()[0].ID = %s, want cpu_basic", all[0].ID)
	}

	for _, h := range all {
		if h.Hashrate <= 0 {
			t.Errorf("%s hashrate = %v, want > 0", h.ID, h.Hashrate)
		}
		if h.Cost < 0 {
			t.Errorf("%s cost = %v, want >= 0", h.ID, h.Cost)
		}
	}
}

func TestLookup(t *testing.T) {
	c := Default()

	spec, ok := c.Lookup("cpu_basic")
	if !ok {
		t.Fatal("Lookup(cpu_basic) not found")
	}
	if spec.Cost != 250 {
		t.Errorf("cpu_basic cost = %v, want 250", spec.Cost)
	}
	if spec.Hashrate != 75_000 {
		t.Errorf("cpu_basic hashrate = %v, want 75000", spec.Hashrate)
	}

	if _, ok := c.Lookup("quantum_rig"); ok {
		t.Error("Lookup(quantum_rig) should not be found")
	}
}

func TestTotalHashrate(t *testing.T) {
	c := Default()

	tests := []struct {
		name     string
		owned    map[string]int
		expected float64
	}{
		{"nothing owned", nil, 0},
		{"empty map", map[string]int{}, 0},
		{"one cpu", map[string]int{"cpu_basic": 1}, 75_000},
		{"mixed", map[string]int{"cpu_basic": 2, "gpu_6gb": 1}, 150_000 + 12_000_000},
		{"unknown id ignored", map[string]int{"cpu_basic": 1, "mystery": 5}, 75_000},
		{"negative count ignored", map[string]int{"cpu_basic": -3}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.TotalHashrate(tt.owned); got != tt.expected {
				t.Errorf("TotalHashrate() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestAllReturnsCopy(t *testing.T) {
	c := Default()

	all := c.All()
	all[0].Cost = 0

	spec, _ := c.Lookup(all[0].ID)
	if spec.Cost == 0 {
		t.Error("mutating All() result should not change the catalog")
	}
}

func TestNewSkipsDuplicates(t *testing.T) {
	c := New([]HardwareSpec{
		{ID: "a", Cost: 1, Hashrate: 10},
		{ID: "a", Cost: 2, Hashrate: 20},
	}, nil)

	if len(c.All()) != 1 {
		t.Fatalf("len(All()) = %d, want 1", len(c.All()))
	}
	if spec, _ := c.Lookup("a"); spec.Cost != 1 {
		t.Errorf("duplicate should keep first entry, cost = %v", spec.Cost)
	}
}

func TestUpgrades(t *testing.T) {
	c := Default()

	u, ok := c.LookupUpgrade(UpgradeEfficiencyBoost)
	if !ok {
		t.Fatal("efficiency_boost not found")
	}
	if u.Cost != 500 {
		t.Errorf("efficiency_boost cost = %v, want 500", u.Cost)
	}
	if u.CompetitionFactor != 0.9 {
		t.Errorf("efficiency_boost factor = %v, want 0.9", u.CompetitionFactor)
	}

	if _, ok := c.LookupUpgrade("overclock"); ok {
		t.Error("LookupUpgrade(overclock) should not be found")
	}

	if len(c.Upgrades()) != 1 {
		t.Errorf("len(Upgrades()) = %d, want 1", len(c.Upgrades()))
	}
}
