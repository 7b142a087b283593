package pack

import (
	"github.com/okian/bullrun/internal/domain/asset"
)

// Collection accumulates every pack a player opened.
type Collection struct {
	playerID    string
	packsOpened int
	cards       int
	tiers       [asset.MaxRarity]int
	owned       map[int]int
	// window[i] reports whether the i-th most recent pack held a high-tier card.
	window     []bool
	windowSize int
	recent     []Pack
	recentSize int
}

func newCollection(playerID string, windowSize, recentSize int) *Collection {
	return &Collection{
		playerID:   playerID,
		owned:      make(map[int]int),
		windowSize: windowSize,
		recentSize: recentSize,
	}
}

// Drought is the number of packs since the last one holding a card of
// HighTier or above, bounded by the window size.
func (c *Collection) Drought() int {
	n := 0
	for i := len(c.window) - 1; i >= 0; i-- {
		if c.window[i] {
			break
		}
		n++
	}
	return n
}

func (c *Collection) add(p Pack) {
	c.packsOpened++
	high := false
	for _, card := range p.Cards {
		c.cards++
		if card.Rarity.Valid() {
			c.tiers[card.Rarity-1]++
		}
		c.owned[card.AssetIndex]++
		if card.Rarity >= HighTier {
			high = true
		}
	}

	c.window = append(c.window, high)
	if over := len(c.window) - c.windowSize; over > 0 {
		c.window = append(c.window[:0], c.window[over:]...)
	}

	c.recent = append(c.recent, p)
	if over := len(c.recent) - c.recentSize; over > 0 {
		c.recent = append(c.recent[:0], c.recent[over:]...)
	}
}

// Stats is a read-only snapshot of a Collection.
type Stats struct {
	PlayerID       string         `json:"player_id"`
	PacksOpened    int            `json:"packs_opened"`
	Cards          int            `json:"cards"`
	TierCounts     map[string]int `json:"tier_counts"`
	Owned          map[string]int `json:"owned"`
	DistinctAssets int            `json:"distinct_assets"`
	Completion     float64        `json:"completion"`
	Drought        int            `json:"drought"`
	RecentPacks    []Pack         `json:"recent_packs"`
}

func (c *Collection) stats(catalog *asset.Catalog) Stats {
	s := Stats{
		PlayerID:       c.playerID,
		PacksOpened:    c.packsOpened,
		Cards:          c.cards,
		TierCounts:     make(map[string]int, len(c.tiers)),
		Owned:          make(map[string]int, len(c.owned)),
		DistinctAssets: len(c.owned),
		Drought:        c.Drought(),
		RecentPacks:    make([]Pack, len(c.recent)),
	}
	for _, r := range asset.Rarities() {
		s.TierCounts[r.String()] = c.tiers[r-1]
	}
	for idx, n := range c.owned {
		if e, ok := catalog.At(idx); ok {
			s.Owned[e.Symbol] = n
		}
	}
	if catalog.Len() > 0 {
		s.Completion = float64(len(c.owned)) / float64(catalog.Len())
	}
	for i, p := range c.recent {
		s.RecentPacks[i] = p.clone()
	}
	return s
}
