package simulation

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/okian/bullrun/internal/adapters/repository"
)

// verifyLeaderboard checks ordering and rank numbering of a full leaderboard.
func verifyLeaderboard(leaderboard []repository.Entry) error {
	var errs []error
	for i, e := range leaderboard {
		if e.Rank != i+1 {
			errs = append(errs, fmt.Errorf("entry %d (%s) has rank %d", i, e.PlayerID, e.Rank))
		}
		if i == 0 {
			continue
		}
		prev := leaderboard[i-1]
		if e.FinalScore > prev.FinalScore {
			errs = append(errs, fmt.Errorf("leaderboard not sorted: %s (%d) above %s (%d)",
				prev.PlayerID, prev.FinalScore, e.PlayerID, e.FinalScore))
		}
		if e.FinalScore == prev.FinalScore && e.SubmittedAt.Before(prev.SubmittedAt) {
			errs = append(errs, fmt.Errorf("tie between %s and %s not ordered by submission time",
				prev.PlayerID, e.PlayerID))
		}
	}
	return errors.Join(errs...)
}

// verifyRankings checks that per-player rank lookups agree with the leaderboard.
func verifyRankings(rankings map[string]repository.Entry, leaderboard []repository.Entry) error {
	if len(rankings) != len(leaderboard) {
		return fmt.Errorf("%d players ranked but leaderboard holds %d", len(rankings), len(leaderboard))
	}
	var errs []error
	for _, e := range leaderboard {
		got, ok := rankings[e.PlayerID]
		switch {
		case !ok:
			errs = append(errs, fmt.Errorf("%s on leaderboard but not ranked", e.PlayerID))
		case got.Rank != e.Rank || got.FinalScore != e.FinalScore:
			errs = append(errs, fmt.Errorf("%s ranked %d (%d) but listed %d (%d)",
				e.PlayerID, got.Rank, got.FinalScore, e.Rank, e.FinalScore))
		}
	}
	return errors.Join(errs...)
}

// verifyRound checks the archived payouts of a finished round.
func verifyRound(rec repository.Record) error {
	if rec.Error != "" {
		return fmt.Errorf("round %s failed: %s", rec.Round.ID, rec.Error)
	}
	sum := decimal.Zero
	for i, a := range rec.Distribution.Allocations {
		sum = sum.Add(a.Amount)
		if a.Amount.IsNegative() {
			return fmt.Errorf("allocation %d (%s) is negative", i, a.PlayerID)
		}
		if a.Rank < 1 || a.Rank > len(rec.Standings) || rec.Standings[a.Rank-1].PlayerID != a.PlayerID {
			return fmt.Errorf("allocation for rank %d goes to %s", a.Rank, a.PlayerID)
		}
	}
	if !sum.Equal(rec.Distribution.Total) {
		return fmt.Errorf("allocations sum to %s but total is %s", sum, rec.Distribution.Total)
	}
	return nil
}
