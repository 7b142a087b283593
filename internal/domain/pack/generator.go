// Package pack generates card packs. Tiers are drawn from a probability
// table that a drought balancer tilts toward high tiers for unlucky players;
// assets within a tier are picked weighted by volatility and market cap.
package pack

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/bullrun/internal/config"
	"github.com/okian/bullrun/internal/domain/asset"
)

// Type is a pack kind.
type Type string

// Pack kinds.
const (
	TypeStarter Type = "starter"
	TypeRegular Type = "regular"
)

// ParseType validates a pack kind.
func ParseType(s string) (Type, error) {
	switch Type(s) {
	case TypeStarter, TypeRegular:
		return Type(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPackType, s)
	}
}

// Default generator configuration constants.
const (
	defaultRegularSize   = 5
	defaultStarterSize   = 8
	defaultUpgradeChance = 0.5
	defaultWindow        = 20
	defaultRecentPacks   = 50
	defaultSource        = "purchase"
)

// Card is one generated card.
type Card struct {
	AssetIndex int          `json:"asset_index"`
	Symbol     string       `json:"symbol"`
	Rarity     asset.Rarity `json:"rarity"`
	// Guaranteed marks starter slots filled by the composition rule.
	Guaranteed bool `json:"guaranteed,omitempty"`
	// Upgraded marks a final slot resampled at tier >= 2.
	Upgraded bool `json:"upgraded,omitempty"`
}

// Pack is a batch of cards opened by one player.
type Pack struct {
	ID       string    `json:"id"`
	PlayerID string    `json:"player_id"`
	Type     Type      `json:"type"`
	Source   string    `json:"source"`
	Cards    []Card    `json:"cards"`
	OpenedAt time.Time `json:"opened_at"`
	// Drought and Boost record the balancing state the pack was drawn under.
	Drought int     `json:"drought"`
	Boost   float64 `json:"boost"`
}

func (p Pack) clone() Pack {
	p.Cards = append([]Card(nil), p.Cards...)
	return p
}

// AssetReader serves the current asset view. It must not block.
type AssetReader interface {
	Get(symbol string) asset.Asset
}

// Request asks for one pack.
type Request struct {
	PlayerID string
	Type     Type
	// Source is a provenance tag such as "purchase" or "reward".
	Source string
}

// Generator opens packs and owns the per-player collections.
type Generator struct {
	mu sync.Mutex

	catalog  *asset.Catalog
	assets   AssetReader
	base     Table
	balancer Balancer

	regularSize   int
	starterSize   int
	upgradeChance float64
	windowSize    int
	recentSize    int

	rng   *rand.Rand
	now   func() time.Time
	newID func() string

	collections map[string]*Collection
}

// Option applies a configuration option to the Generator.
type Option func(*Generator)

// WithSeed makes draws reproducible.
func WithSeed(seed int64) Option {
	return func(g *Generator) {
		g.rng = rand.New(rand.NewSource(seed)) //nolint:gosec // game randomness, not crypto
	}
}

// WithClock sets the pack timestamp source.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		if now != nil {
			g.now = now
		}
	}
}

// WithIDGenerator overrides pack id generation.
func WithIDGenerator(gen func() string) Option {
	return func(g *Generator) {
		if gen != nil {
			g.newID = gen
		}
	}
}

// WithProbabilities sets the base tier table.
func WithProbabilities(probs map[string]float64) Option {
	return func(g *Generator) {
		if len(probs) > 0 {
			g.base = NewTable(probs)
		}
	}
}

// WithBalancer sets drought balancing.
func WithBalancer(b Balancer) Option {
	return func(g *Generator) { g.balancer = b }
}

// WithSizes sets regular and starter pack sizes.
func WithSizes(regular, starter int) Option {
	return func(g *Generator) {
		if regular > 0 {
			g.regularSize = regular
		}
		if starter > 0 {
			g.starterSize = starter
		}
	}
}

// WithUpgradeChance sets the chance the final regular slot is resampled at
// tier >= 2.
func WithUpgradeChance(p float64) Option {
	return func(g *Generator) {
		if p >= 0 && p <= 1 {
			g.upgradeChance = p
		}
	}
}

// WithHistory sets the drought window and how many packs a collection keeps.
func WithHistory(window, recent int) Option {
	return func(g *Generator) {
		if window > 0 {
			g.windowSize = window
		}
		if recent > 0 {
			g.recentSize = recent
		}
	}
}

// WithConfig applies every pack setting from cfg.
func WithConfig(cfg *config.Config) Option {
	return func(g *Generator) {
		WithProbabilities(cfg.RarityProbabilities)(g)
		WithBalancer(Balancer{
			Threshold: cfg.DroughtThreshold,
			Step:      cfg.DroughtBoostStep,
			Cap:       cfg.DroughtBoostCap,
		})(g)
		WithSizes(cfg.RegularPackSize, cfg.StarterPackSize)(g)
		WithUpgradeChance(cfg.UpgradeChance)(g)
		WithHistory(cfg.DroughtWindow, cfg.CollectionPackLimit)(g)
		if cfg.PackSeed != 0 {
			WithSeed(cfg.PackSeed)(g)
		}
	}
}

// NewGenerator creates a Generator over catalog and assets.
func NewGenerator(catalog *asset.Catalog, assets AssetReader, opts ...Option) *Generator {
	g := &Generator{
		catalog:       catalog,
		assets:        assets,
		base:          NewTable(config.New().RarityProbabilities),
		balancer:      Balancer{Threshold: 5, Step: 0.25, Cap: 3},
		regularSize:   defaultRegularSize,
		starterSize:   defaultStarterSize,
		upgradeChance: defaultUpgradeChance,
		windowSize:    defaultWindow,
		recentSize:    defaultRecentPacks,
		now:           time.Now,
		newID:         func() string { return uuid.NewString() },
		collections:   make(map[string]*Collection),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.rng == nil {
		g.rng = rand.New(rand.NewSource(time.Now().UnixNano())) //nolint:gosec // game randomness, not crypto
	}
	return g
}

// Open generates a pack for req and records it in the player's collection.
func (g *Generator) Open(req Request) (Pack, error) {
	if req.PlayerID == "" {
		return Pack{}, fmt.Errorf("%w: player id is required", ErrInvalidRequest)
	}
	if _, err := ParseType(string(req.Type)); err != nil {
		return Pack{}, err
	}
	if g.catalog.Len() == 0 {
		return Pack{}, fmt.Errorf("%w: empty catalog", ErrInvalidRequest)
	}
	source := req.Source
	if source == "" {
		source = defaultSource
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	col := g.collection(req.PlayerID)
	drought := col.Drought()
	table := g.balancer.Adjust(g.base, drought)
	pools := g.tierPools()

	p := Pack{
		ID:       g.newID(),
		PlayerID: req.PlayerID,
		Type:     req.Type,
		Source:   source,
		OpenedAt: g.now().UTC(),
		Drought:  drought,
		Boost:    g.balancer.Multiplier(drought),
	}
	if req.Type == TypeStarter {
		p.Cards = g.starter(table, pools)
	} else {
		p.Cards = g.regular(table, pools)
	}

	col.add(p)
	return p.clone(), nil
}

// Odds returns the tier table the player's next pack would use.
func (g *Generator) Odds(playerID string) Table {
	g.mu.Lock()
	defer g.mu.Unlock()
	drought := 0
	if c, ok := g.collections[playerID]; ok {
		drought = c.Drought()
	}
	return g.balancer.Adjust(g.base, drought)
}

// Collection returns a snapshot of the player's collection.
func (g *Generator) Collection(playerID string) (Stats, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	c, ok := g.collections[playerID]
	if !ok {
		return Stats{}, false
	}
	return c.stats(g.catalog), true
}

func (g *Generator) collection(playerID string) *Collection {
	c, ok := g.collections[playerID]
	if !ok {
		c = newCollection(playerID, g.windowSize, g.recentSize)
		g.collections[playerID] = c
	}
	return c
}

// starter fills one slot from the two highest tiers, two from the next tier
// down, three from the tier below that, then weighted draws.
func (g *Generator) starter(table Table, pools tierPools) []Card {
	guaranteed := []Table{
		table.Only(asset.Epic, asset.Legendary),
		table.Only(asset.Rare),
		table.Only(asset.Rare),
		table.Only(asset.Uncommon),
		table.Only(asset.Uncommon),
		table.Only(asset.Uncommon),
	}
	cards := make([]Card, 0, g.starterSize)
	for i := 0; i < g.starterSize; i++ {
		if i < len(guaranteed) {
			c := g.draw(guaranteed[i], pools)
			c.Guaranteed = true
			cards = append(cards, c)
			continue
		}
		cards = append(cards, g.draw(table, pools))
	}
	return cards
}

// regular draws every slot from the table; the final slot is resampled at
// tier >= 2 with the upgrade chance.
func (g *Generator) regular(table Table, pools tierPools) []Card {
	cards := make([]Card, 0, g.regularSize)
	for i := 0; i < g.regularSize; i++ {
		cards = append(cards, g.draw(table, pools))
	}
	if g.rng.Float64() < g.upgradeChance {
		c := g.draw(table.AtLeast(asset.Uncommon), pools)
		c.Upgraded = true
		cards[len(cards)-1] = c
	}
	return cards
}

func (g *Generator) draw(table Table, pools tierPools) Card {
	tier := table.Sample(g.rng.Float64())
	cands := pools.nearest(tier)
	e := g.pickWeighted(cands)
	return Card{AssetIndex: e.entry.Index, Symbol: e.entry.Symbol, Rarity: e.rarity}
}

type candidate struct {
	entry  asset.Entry
	rarity asset.Rarity
	weight float64
}

type tierPools [asset.MaxRarity][]candidate

// nearest returns the candidates of tier, or of the closest populated tier
// searching upward first.
func (p tierPools) nearest(tier asset.Rarity) []candidate {
	if c := p[tier-1]; len(c) > 0 {
		return c
	}
	for d := asset.Rarity(1); d < asset.MaxRarity; d++ {
		if up := tier + d; up <= asset.MaxRarity && len(p[up-1]) > 0 {
			return p[up-1]
		}
		if down := tier - d; down >= asset.MinRarity && len(p[down-1]) > 0 {
			return p[down-1]
		}
	}
	return nil
}

// tierPools groups the catalog by effective rarity with selection weights.
func (g *Generator) tierPools() tierPools {
	var pools tierPools
	for _, e := range g.catalog.Entries() {
		a := g.assets.Get(e.Symbol)
		r := a.Rarity
		if !r.Valid() {
			r = e.Tier
		}
		pools[r-1] = append(pools[r-1], candidate{entry: e, rarity: r, weight: Weight(a)})
	}
	return pools
}

// Weight favors volatile and large assets.
func Weight(a asset.Asset) float64 {
	volatility := 1 + math.Abs(a.Change24h)/10
	size := 1 + math.Log10(1+math.Max(a.MarketCap, 0)/1e9)
	return volatility * size
}

func (g *Generator) pickWeighted(cands []candidate) candidate {
	total := 0.0
	for _, c := range cands {
		total += c.weight
	}
	u := g.rng.Float64() * total
	for _, c := range cands {
		u -= c.weight
		if u < 0 {
			return c
		}
	}
	return cands[len(cands)-1]
}
