// Package reward splits a round's prize pool across the final leaderboard.
//
// All money math uses shopspring/decimal. The pools and every payout are
// rounded to the configured precision and each group's rounding residual goes
// to the group's first member, so the allocations always add up to the
// distribution Total.
package reward

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/okian/bullrun/internal/config"
)

// ErrRewardComputation marks a distribution that could not be computed.
var ErrRewardComputation = errors.New("reward computation failed")

// Class is the payout bracket of an allocation.
type Class string

// Reward classes.
const (
	ClassWinner        Class = "winner"
	ClassTopK          Class = "top-K"
	ClassParticipation Class = "participation"
)

// Allocation is one player's payout. Immutable once produced.
type Allocation struct {
	PlayerID string          `json:"player_id"`
	Rank     int             `json:"rank"`
	Amount   decimal.Decimal `json:"amount"`
	Class    Class           `json:"class"`
}

// Distribution is the full payout for a round.
type Distribution struct {
	// Pool is max(minimumPool, participants * perParticipantBase).
	Pool              decimal.Decimal `json:"pool"`
	TopPool           decimal.Decimal `json:"top_pool"`
	ParticipationPool decimal.Decimal `json:"participation_pool"`
	// WinnerBonus is what the winner multiplier adds on top of Pool.
	WinnerBonus decimal.Decimal `json:"winner_bonus"`
	// Unallocated is pool money with no recipient (e.g. no participation ranks).
	Unallocated decimal.Decimal `json:"unallocated"`
	// Total = Pool + WinnerBonus - Unallocated = sum of Allocations.
	Total       decimal.Decimal `json:"total"`
	Allocations []Allocation    `json:"allocations"`
}

// Params configures the distributor.
type Params struct {
	TopShare              float64
	TopK                  int
	WinnerShare           float64
	PowerLawExponent      float64
	WinnerBonusMultiplier float64
	MinimumPool           float64
	PerParticipantBase    float64
	Precision             int32
}

// ParamsFromConfig extracts reward parameters from cfg.
func ParamsFromConfig(cfg *config.Config) Params {
	return Params{
		TopShare:              cfg.TopShare,
		TopK:                  cfg.TopK,
		WinnerShare:           cfg.WinnerShare,
		PowerLawExponent:      cfg.PowerLawExponent,
		WinnerBonusMultiplier: cfg.WinnerBonusMultiplier,
		MinimumPool:           cfg.MinimumPool,
		PerParticipantBase:    cfg.PerParticipantBase,
		Precision:             cfg.RewardPrecision,
	}
}

// Distributor computes deterministic payouts.
type Distributor struct {
	topShare    decimal.Decimal
	winnerShare decimal.Decimal
	multiplier  decimal.Decimal
	minimumPool decimal.Decimal
	perPlayer   decimal.Decimal
	topK        int
	exponent    float64
	precision   int32
}

// NewDistributor validates p and returns a Distributor.
func NewDistributor(p Params) (*Distributor, error) {
	switch {
	case p.TopShare <= 0 || p.TopShare > 1:
		return nil, fmt.Errorf("%w: top share %v outside (0,1]", ErrRewardComputation, p.TopShare)
	case p.WinnerShare <= 0 || p.WinnerShare > 1:
		return nil, fmt.Errorf("%w: winner share %v outside (0,1]", ErrRewardComputation, p.WinnerShare)
	case p.TopK < 1:
		return nil, fmt.Errorf("%w: top-K %d must be positive", ErrRewardComputation, p.TopK)
	case p.WinnerBonusMultiplier < 1 || math.IsNaN(p.WinnerBonusMultiplier):
		return nil, fmt.Errorf("%w: winner bonus multiplier %v below 1", ErrRewardComputation, p.WinnerBonusMultiplier)
	case p.MinimumPool < 0 || p.PerParticipantBase < 0:
		return nil, fmt.Errorf("%w: negative pool parameters", ErrRewardComputation)
	case p.PowerLawExponent <= 0 || math.IsNaN(p.PowerLawExponent) || math.IsInf(p.PowerLawExponent, 0):
		return nil, fmt.Errorf("%w: power-law exponent %v must be positive", ErrRewardComputation, p.PowerLawExponent)
	case p.Precision < 0:
		return nil, fmt.Errorf("%w: precision %d must not be negative", ErrRewardComputation, p.Precision)
	}
	return &Distributor{
		topShare:    decimal.NewFromFloat(p.TopShare),
		winnerShare: decimal.NewFromFloat(p.WinnerShare),
		multiplier:  decimal.NewFromFloat(p.WinnerBonusMultiplier),
		minimumPool: decimal.NewFromFloat(p.MinimumPool),
		perPlayer:   decimal.NewFromFloat(p.PerParticipantBase),
		topK:        p.TopK,
		exponent:    p.PowerLawExponent,
		precision:   p.Precision,
	}, nil
}

// Pool returns the prize pool for n participants.
func (d *Distributor) Pool(n int) decimal.Decimal {
	return decimal.Max(d.minimumPool, d.perPlayer.Mul(decimal.NewFromInt(int64(n))))
}

// Distribute splits the pool across players, given in final rank order
// (players[0] is rank 1).
func (d *Distributor) Distribute(players []string) (Distribution, error) {
	if err := checkPlayers(players); err != nil {
		return Distribution{}, err
	}

	n := len(players)
	// Pools are cut at precision so every group residual is too.
	pool := d.Pool(n).Round(d.precision)
	topPool := pool.Mul(d.topShare).Round(d.precision)
	participationPool := pool.Sub(topPool)

	dist := Distribution{
		Pool:              pool,
		TopPool:           topPool,
		ParticipationPool: participationPool,
		WinnerBonus:       decimal.Zero,
		Unallocated:       decimal.Zero,
		Allocations:       make([]Allocation, 0, n),
	}
	if n == 0 {
		dist.Unallocated = pool
		dist.Total = decimal.Zero
		return dist, nil
	}

	k := min(d.topK, n)

	carve := topPool.Mul(d.winnerShare).Round(d.precision)
	winner := carve.Mul(d.multiplier).Round(d.precision)
	dist.WinnerBonus = winner.Sub(carve)
	dist.Allocations = append(dist.Allocations, Allocation{PlayerID: players[0], Rank: 1, Amount: winner, Class: ClassWinner})

	remainder := topPool.Sub(carve)
	if k > 1 {
		amounts := d.powerLaw(remainder, k)
		for i, amt := range amounts {
			rank := i + 2
			dist.Allocations = append(dist.Allocations, Allocation{PlayerID: players[rank-1], Rank: rank, Amount: amt, Class: ClassTopK})
		}
	} else {
		dist.Unallocated = dist.Unallocated.Add(remainder)
	}

	if m := n - k; m > 0 {
		amounts := d.even(participationPool, m)
		for i, amt := range amounts {
			rank := k + 1 + i
			dist.Allocations = append(dist.Allocations, Allocation{PlayerID: players[rank-1], Rank: rank, Amount: amt, Class: ClassParticipation})
		}
	} else {
		dist.Unallocated = dist.Unallocated.Add(participationPool)
	}

	dist.Total = pool.Add(dist.WinnerBonus).Sub(dist.Unallocated)
	return dist, nil
}

// powerLaw splits amount over ranks 2..k with weight (k-rank)^exponent. The
// weight sum is computed once. A zero sum (k == 2) splits evenly.
func (d *Distributor) powerLaw(amount decimal.Decimal, k int) []decimal.Decimal {
	weights := make([]decimal.Decimal, 0, k-1)
	sum := decimal.Zero
	for rank := 2; rank <= k; rank++ {
		w := decimal.NewFromFloat(math.Pow(float64(k-rank), d.exponent))
		weights = append(weights, w)
		sum = sum.Add(w)
	}
	if sum.IsZero() {
		return d.even(amount, k-1)
	}

	out := make([]decimal.Decimal, len(weights))
	for i, w := range weights {
		out[i] = amount.Mul(w).Div(sum).Round(d.precision)
	}
	return settle(amount, out)
}

// even splits amount into m equal rounded shares.
func (d *Distributor) even(amount decimal.Decimal, m int) []decimal.Decimal {
	share := amount.Div(decimal.NewFromInt(int64(m))).Round(d.precision)
	out := make([]decimal.Decimal, m)
	for i := range out {
		out[i] = share
	}
	return settle(amount, out)
}

// settle assigns the rounding residual to the first share.
func settle(amount decimal.Decimal, shares []decimal.Decimal) []decimal.Decimal {
	if len(shares) == 0 {
		return shares
	}
	paid := decimal.Sum(decimal.Zero, shares...)
	shares[0] = shares[0].Add(amount.Sub(paid))
	return shares
}

func checkPlayers(players []string) error {
	seen := make(map[string]struct{}, len(players))
	for i, p := range players {
		if p == "" {
			return fmt.Errorf("%w: empty player id at rank %d", ErrRewardComputation, i+1)
		}
		if _, dup := seen[p]; dup {
			return fmt.Errorf("%w: player %s ranked twice", ErrRewardComputation, p)
		}
		seen[p] = struct{}{}
	}
	return nil
}
