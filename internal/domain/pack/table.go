package pack

import (
	"github.com/okian/bullrun/internal/domain/asset"
)

// Table holds one draw probability per rarity tier.
type Table [asset.MaxRarity]float64

// NewTable builds a normalized table from tier-name probabilities.
func NewTable(probs map[string]float64) Table {
	var t Table
	for _, r := range asset.Rarities() {
		if p := probs[r.String()]; p > 0 {
			t[r-1] = p
		}
	}
	return t.Normalize()
}

// P returns the probability of tier r.
func (t Table) P(r asset.Rarity) float64 {
	if !r.Valid() {
		return 0
	}
	return t[r-1]
}

// Sum returns the total mass.
func (t Table) Sum() float64 {
	s := 0.0
	for _, p := range t {
		s += p
	}
	return s
}

// Normalize scales the table to total mass 1. An empty table becomes uniform.
func (t Table) Normalize() Table {
	s := t.Sum()
	if s <= 0 {
		for i := range t {
			t[i] = 1 / float64(len(t))
		}
		return t
	}
	for i := range t {
		t[i] /= s
	}
	return t
}

// Only keeps the given tiers and renormalizes. If none of them carries
// mass they are weighted evenly.
func (t Table) Only(tiers ...asset.Rarity) Table {
	var out Table
	for _, r := range tiers {
		if r.Valid() {
			out[r-1] = t[r-1]
		}
	}
	if out.Sum() <= 0 {
		for _, r := range tiers {
			if r.Valid() {
				out[r-1] = 1
			}
		}
	}
	return out.Normalize()
}

// AtLeast keeps tiers >= minTier and renormalizes.
func (t Table) AtLeast(minTier asset.Rarity) Table {
	tiers := make([]asset.Rarity, 0, len(t))
	for r := minTier; r <= asset.MaxRarity; r++ {
		tiers = append(tiers, r)
	}
	return t.Only(tiers...)
}

// Sample maps u in [0,1) onto a tier by cumulative probability.
func (t Table) Sample(u float64) asset.Rarity {
	acc := 0.0
	last := asset.MinRarity
	for i, p := range t {
		if p <= 0 {
			continue
		}
		last = asset.Rarity(i + 1)
		acc += p
		if u < acc {
			return last
		}
	}
	return last
}

// Map returns the table keyed by tier name.
func (t Table) Map() map[string]float64 {
	out := make(map[string]float64, len(t))
	for _, r := range asset.Rarities() {
		out[r.String()] = t[r-1]
	}
	return out
}
