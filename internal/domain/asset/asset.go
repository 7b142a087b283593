// Package asset holds the live-priced asset model, the fixed card catalog and
// the calculators that turn quotes into scores and rarity tiers.
package asset

import (
	"fmt"
	"time"

	"github.com/okian/bullrun/internal/config"
)

// Rarity is a card tier, 1 (common) through 5 (legendary).
type Rarity int

// Rarity tiers.
const (
	Common Rarity = iota + 1
	Uncommon
	Rare
	Epic
	Legendary
)

// MinRarity and MaxRarity bound the valid tiers.
const (
	MinRarity = Common
	MaxRarity = Legendary
)

// Rarities returns every tier from lowest to highest.
func Rarities() []Rarity {
	return []Rarity{Common, Uncommon, Rare, Epic, Legendary}
}

// ParseRarity maps a configured tier name to a Rarity.
func ParseRarity(name string) (Rarity, error) {
	level := config.TierLevel(name)
	if level == 0 {
		return 0, fmt.Errorf("unknown rarity %q", name)
	}
	return Rarity(level), nil
}

func (r Rarity) String() string {
	if r < MinRarity || r > MaxRarity {
		return "unknown"
	}
	return config.TierNames[r-1]
}

// Valid reports whether r is a known tier.
func (r Rarity) Valid() bool { return r >= MinRarity && r <= MaxRarity }

// Quote is one price observation from the external source.
type Quote struct {
	Price     float64 `json:"price"`
	Change24h float64 `json:"change24h"`
	MarketCap float64 `json:"marketCap"`
	Volume24h float64 `json:"volume24h"`
}

// Asset is the normalized, scored view of a catalog entry.
type Asset struct {
	Symbol        string    `json:"symbol"`
	Name          string    `json:"name"`
	Price         float64   `json:"price"`
	PreviousPrice float64   `json:"previous_price"`
	Change24h     float64   `json:"change_24h"`
	MarketCap     float64   `json:"market_cap"`
	Volume24h     float64   `json:"volume_24h"`
	Rarity        Rarity    `json:"rarity"`
	Score         int       `json:"score"`
	IsStale       bool      `json:"is_stale"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TickChangePct is the percent move since the previous observation. The
// first observation (no previous price) reports 0.
func (a Asset) TickChangePct() float64 {
	if a.PreviousPrice <= 0 {
		return 0
	}
	return (a.Price - a.PreviousPrice) / a.PreviousPrice * 100
}

// Entry is a catalog position.
type Entry struct {
	Index  int
	Symbol string
	Name   string
	Tier   Rarity
}

// Catalog is the fixed, ordered list of assets cards refer to by index.
type Catalog struct {
	entries  []Entry
	bySymbol map[string]int
}

// NewCatalog builds a Catalog from configuration entries.
func NewCatalog(entries []config.CatalogEntry) (*Catalog, error) {
	c := &Catalog{
		entries:  make([]Entry, 0, len(entries)),
		bySymbol: make(map[string]int, len(entries)),
	}
	for i, e := range entries {
		tier, err := ParseRarity(e.Tier)
		if err != nil {
			return nil, fmt.Errorf("catalog %s: %w", e.Symbol, err)
		}
		if _, dup := c.bySymbol[e.Symbol]; dup {
			return nil, fmt.Errorf("catalog symbol %s listed twice", e.Symbol)
		}
		name := e.Name
		if name == "" {
			name = e.Symbol
		}
		c.entries = append(c.entries, Entry{Index: i, Symbol: e.Symbol, Name: name, Tier: tier})
		c.bySymbol[e.Symbol] = i
	}
	return c, nil
}

// Len returns the catalog size.
func (c *Catalog) Len() int { return len(c.entries) }

// At returns the entry at index i.
func (c *Catalog) At(i int) (Entry, bool) {
	if i < 0 || i >= len(c.entries) {
		return Entry{}, false
	}
	return c.entries[i], true
}

// Lookup returns the entry for a symbol.
func (c *Catalog) Lookup(symbol string) (Entry, bool) {
	i, ok := c.bySymbol[symbol]
	if !ok {
		return Entry{}, false
	}
	return c.entries[i], true
}

// Entries returns a copy of all entries in index order.
func (c *Catalog) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Symbols returns all symbols in index order.
func (c *Catalog) Symbols() []string {
	out := make([]string, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.Symbol
	}
	return out
}
