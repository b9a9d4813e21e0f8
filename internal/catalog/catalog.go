// Package catalog holds the immutable table of purchasable mining hardware and upgrades.
package catalog

// HardwareSpec describes one purchasable mining rig.
type HardwareSpec struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Cost        float64 `json:"cost"`
	Hashrate    float64 `json:"hashrate"` // H/s
	Description string  `json:"description"`
}

// UpgradeSpec describes a one-shot purchasable upgrade.
type UpgradeSpec struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Cost        float64 `json:"cost"`
	Description string  `json:"description"`

	// CompetitionFactor scales the active coin's competition level on purchase.
	CompetitionFactor float64 `json:"competition_factor"`
}

// UpgradeEfficiencyBoost is the only upgrade currently offered.
const UpgradeEfficiencyBoost = "efficiency_boost"

// Catalog is a read-only lookup table. It is safe for concurrent use.
type Catalog struct {
	hardware []HardwareSpec
	byID     map[string]int
	upgrades map[string]UpgradeSpec
	order    []string
}

// New builds a catalog from hardware and upgrade specs. Later duplicates of an
// id are ignored.
func New(hardware []HardwareSpec, upgrades []UpgradeSpec) *Catalog {
	c := &Catalog{
		byID:     make(map[string]int, len(hardware)),
		upgrades: make(map[string]UpgradeSpec, len(upgrades)),
	}
	for _, h := range hardware {
		if _, dup := c.byID[h.ID]; dup {
			continue
		}
		c.byID[h.ID] = len(c.hardware)
		c.hardware = append(c.hardware, h)
	}
	for _, u := range upgrades {
		if _, dup := c.upgrades[u.ID]; dup {
			continue
		}
		c.upgrades[u.ID] = u
		c.order = append(c.order, u.ID)
	}
	return c
}

// Default returns the stock hardware and upgrade catalog.
// Hashrates are gameplay numbers, not tied to any real algorithm.
func Default() *Catalog {
	return New(defaultHardware, defaultUpgrades)
}

var defaultHardware = []HardwareSpec{
	{ID: "cpu_basic", Name: "CPU Rig (Basic)", Cost: 250, Hashrate: 75_000,
		Description: "Entry rig. Low power, low hashrate."},
	{ID: "gpu_6gb", Name: "GPU Miner (6GB)", Cost: 1_500, Hashrate: 12_000_000,
		Description: "Budget GPU. Good early upgrade."},
	{ID: "gpu_12gb", Name: "GPU Miner (12GB)", Cost: 4_500, Hashrate: 45_000_000,
		Description: "Mid-range GPU. Solid efficiency."},
	{ID: "gpu_flagship", Name: "GPU Miner (Flagship)", Cost: 12_000, Hashrate: 140_000_000,
		Description: "High-end GPU rig."},
	{ID: "asic_entry", Name: "ASIC (Entry)", Cost: 30_000, Hashrate: 8_000_000_000_000,
		Description: "Entry ASIC. Big jump in speed."},
	{ID: "asic_pro", Name: "ASIC (Pro)", Cost: 85_000, Hashrate: 40_000_000_000_000,
		Description: "Pro ASIC. Very fast."},
	{ID: "asic_farm", Name: "ASIC Farm (Rack)", Cost: 260_000, Hashrate: 180_000_000_000_000,
		Description: "Rack of ASICs. Extreme hashrate."},
}

var defaultUpgrades = []UpgradeSpec{
	{
		ID:                UpgradeEfficiencyBoost,
		Name:              "Efficiency Boost",
		Cost:              500,
		CompetitionFactor: 0.9,
		Description:       "Permanently rolls back 10% of the active coin's competition growth.",
	},
}

// Lookup returns the hardware spec for id.
func (c *Catalog) Lookup(id string) (HardwareSpec, bool) {
	i, ok := c.byID[id]
	if !ok {
		return HardwareSpec{}, false
	}
	return c.hardware[i], true
}

// All returns every hardware spec in display order.
func (c *Catalog) All() []HardwareSpec {
	out := make([]HardwareSpec, len(c.hardware))
	copy(out, c.hardware)
	return out
}

// TotalHashrate sums count*hashrate over owned hardware. Unknown ids and
// non-positive counts contribute nothing.
func (c *Catalog) TotalHashrate(owned map[string]int) float64 {
	var total float64
	for _, h := range c.hardware {
		if n := owned[h.ID]; n > 0 {
			total += float64(n) * h.Hashrate
		}
	}
	return total
}

// LookupUpgrade returns the upgrade spec for id.
func (c *Catalog) LookupUpgrade(id string) (UpgradeSpec, bool) {
	u, ok := c.upgrades[id]
	return u, ok
}

// Upgrades returns every upgrade in display order.
func (c *Catalog) Upgrades() []UpgradeSpec {
	out := make([]UpgradeSpec, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.upgrades[id])
	}
	return out
}
