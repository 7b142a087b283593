package pack

import (
	"github.com/okian/bullrun/internal/domain/asset"
)

// HighTier is the lowest tier that ends a drought.
const HighTier = asset.Rare

// maxHighMass keeps some low-tier mass no matter how long the drought.
const maxHighMass = 0.95

// Balancer boosts high tiers for players in a drought.
type Balancer struct {
	Threshold int
	Step      float64
	Cap       float64
}

// Multiplier returns the high-tier boost for a drought level: 1 at or below
// the threshold, then 1 + (level-threshold)*Step capped at Cap.
func (b Balancer) Multiplier(drought int) float64 {
	if drought <= b.Threshold || b.Step <= 0 {
		return 1
	}
	m := 1 + float64(drought-b.Threshold)*b.Step
	if b.Cap >= 1 && m > b.Cap {
		m = b.Cap
	}
	return m
}

// Adjust returns t with high tiers scaled by the drought multiplier and low
// tiers scaled down to compensate. The result sums to 1.
func (b Balancer) Adjust(t Table, drought int) Table {
	m := b.Multiplier(drought)
	if m <= 1 {
		return t.Normalize()
	}

	t = t.Normalize()
	high, low := 0.0, 0.0
	for _, r := range asset.Rarities() {
		if r >= HighTier {
			high += t.P(r)
		} else {
			low += t.P(r)
		}
	}
	if high <= 0 || low <= 0 {
		return t
	}

	boosted := min(high*m, maxHighMass)
	hi, lo := boosted/high, (1-boosted)/low
	for _, r := range asset.Rarities() {
		if r >= HighTier {
			t[r-1] *= hi
		} else {
			t[r-1] *= lo
		}
	}
	return t.Normalize()
}
