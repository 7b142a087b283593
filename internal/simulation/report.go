package simulation

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"

	"github.com/okian/bullrun/internal/domain/asset"
	"github.com/okian/bullrun/internal/domain/reward"
)

// Render prints the round summary, leaderboard, payouts and pack tables.
func (r *Report) Render(out io.Writer) {
	r.renderSummary(out)
	r.renderLeaderboard(out)
	r.renderAllocations(out)
	r.renderPacks(out)
	r.renderProblems(out)
}

func (r *Report) renderSummary(out io.Writer) {
	s := r.Stats
	fmt.Fprintf(out, "\nROUND %s  %s -> %s\n",
		r.Round.Round.ID,
		r.Round.Round.Start.Format("15:04"),
		r.Round.Round.End.Format("15:04"),
	)

	var successRate float64
	if attempted := s.HandsSubmitted + s.HandsRejected; attempted > 0 {
		successRate = float64(s.HandsSubmitted) / float64(attempted) * PercentageMultiplier
	}

	table := tablewriter.NewWriter(out)
	table.Header("Metric", "Value")
	table.Append("Hands accepted", strconv.Itoa(s.HandsSubmitted))
	table.Append("Hands rejected", strconv.Itoa(s.HandsRejected))
	table.Append("Acceptance", fmt.Sprintf("%.1f%%", successRate))
	table.Append("Packs opened", strconv.Itoa(s.PacksOpened))
	table.Append("Pack replays", strconv.Itoa(s.PacksDuplicate))
	table.Append("Price ticks", fmt.Sprintf("%d (%d failed)", s.PriceTicks, s.PriceFailures))
	table.Append("Prize pool", r.Round.Distribution.Pool.String())
	table.Append("Paid out", r.Round.Distribution.Total.String())
	table.Append("Batches settled", strconv.Itoa(s.BatchesSettled))
	table.Append("Virtual time", s.VirtualDuration.String())
	table.Append("Wall time", s.Duration.String())
	table.Render()
}

func (r *Report) renderLeaderboard(out io.Writer) {
	fmt.Fprintf(out, "\nFINAL STANDINGS (top %d of %d)\n", min(r.Config.TopN, len(r.Round.Standings)), len(r.Round.Standings))

	strategies := make(map[string]string, len(r.Players))
	for _, p := range r.Players {
		strategies[p.ID] = p.Strategy
	}
	payouts := make(map[string]decimal.Decimal, len(r.Round.Distribution.Allocations))
	for _, a := range r.Round.Distribution.Allocations {
		payouts[a.PlayerID] = a.Amount
	}

	table := tablewriter.NewWriter(out)
	table.Header("#", "Player", "Strategy", "Score", "Base", "Penalty", "Payout")
	for _, e := range r.Round.Standings[:min(r.Config.TopN, len(r.Round.Standings))] {
		table.Append(
			strconv.Itoa(e.Rank),
			e.PlayerID,
			strategies[e.PlayerID],
			strconv.Itoa(e.FinalScore),
			strconv.Itoa(e.BaseScore),
			strconv.Itoa(e.DuplicatePenalty),
			payouts[e.PlayerID].String(),
		)
	}
	table.Render()
}

func (r *Report) renderAllocations(out io.Writer) {
	d := r.Round.Distribution
	fmt.Fprintf(out, "\nPAYOUTS  pool %s  top %s  participation %s  winner bonus %s  unallocated %s\n",
		d.Pool, d.TopPool, d.ParticipationPool, d.WinnerBonus, d.Unallocated)

	byClass := make(map[reward.Class]struct {
		players int
		amount  decimal.Decimal
	})
	for _, a := range d.Allocations {
		c := byClass[a.Class]
		c.players++
		c.amount = c.amount.Add(a.Amount)
		byClass[a.Class] = c
	}

	table := tablewriter.NewWriter(out)
	table.Header("Class", "Players", "Amount", "Share")
	for _, class := range []reward.Class{reward.ClassWinner, reward.ClassTopK, reward.ClassParticipation} {
		c := byClass[class]
		share := "-"
		if d.Total.IsPositive() {
			share = c.amount.Div(d.Total).Mul(decimal.NewFromInt(PercentageMultiplier)).StringFixed(1) + "%"
		}
		table.Append(string(class), strconv.Itoa(c.players), c.amount.String(), share)
	}
	table.Render()
}

func (r *Report) renderPacks(out io.Writer) {
	fmt.Fprintf(out, "\nPACKS  %d collections\n", len(r.Collections))

	tiers := make(map[string]int)
	var cards, droughts int
	var completion float64
	for _, c := range r.Collections {
		cards += c.Cards
		droughts += c.Drought
		completion += c.Completion
		for name, n := range c.TierCounts {
			tiers[name] += n
		}
	}

	table := tablewriter.NewWriter(out)
	table.Header("Tier", "Cards", "Share")
	for _, rarity := range asset.Rarities() {
		n := tiers[rarity.String()]
		share := 0.0
		if cards > 0 {
			share = float64(n) / float64(cards) * PercentageMultiplier
		}
		table.Append(rarity.String(), strconv.Itoa(n), fmt.Sprintf("%.1f%%", share))
	}
	table.Render()

	if n := len(r.Collections); n > 0 {
		fmt.Fprintf(out, "  average completion %.1f%%  average drought %.1f packs\n",
			completion/float64(n)*PercentageMultiplier, float64(droughts)/float64(n))
	}
}

func (r *Report) renderProblems(out io.Writer) {
	if len(r.Problems) == 0 {
		fmt.Fprintln(out, "\nverification passed")
		return
	}
	fmt.Fprintf(out, "\nverification found %d problem(s):\n", len(r.Problems))
	for _, p := range r.Problems {
		fmt.Fprintf(out, "  - %s\n", p)
	}
}
