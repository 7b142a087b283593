package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/bullrun/internal/adapters/repository"
	"github.com/okian/bullrun/internal/adapters/settlement"
	"github.com/okian/bullrun/internal/domain/event"
	"github.com/okian/bullrun/internal/domain/hand"
	"github.com/okian/bullrun/internal/domain/pack"
	"github.com/okian/bullrun/internal/domain/reward"
	"github.com/okian/bullrun/internal/domain/round"
	"github.com/okian/bullrun/pkg/logger"
	"github.com/okian/bullrun/pkg/metrics"
)

// Submission is an accepted hand and its rank at submission time.
type Submission struct {
	Hand *hand.Hand `json:"hand"`
	Rank int        `json:"rank"`
}

// Tick applies every time-driven round transition owed at the current time.
func (s *Service) Tick(ctx context.Context) {
	s.mu.Lock()
	events := s.advanceLocked(ctx, s.now())
	s.mu.Unlock()
	s.publish(ctx, events)
}

// onPricesUpdated is the opportunistic clock check plus the scoring pass
// owed on every price tick.
func (s *Service) onPricesUpdated(ctx context.Context, _ event.Event) error {
	s.mu.Lock()
	now := s.now()
	events := s.advanceLocked(ctx, now)
	if s.clock.Current().Status == round.StatusActive {
		events = append(events, s.scoringPassLocked(now))
	}
	s.mu.Unlock()
	s.publish(ctx, events)
	return nil
}

// advanceLocked walks the clock forward until nothing more is due. A round
// that reaches its end is finalized in the same call.
func (s *Service) advanceLocked(ctx context.Context, now time.Time) []event.Event {
	var events []event.Event
	for {
		to, ok := s.clock.Due(now)
		if !ok {
			return events
		}
		ch, err := s.transitionLocked(ctx, to, now)
		if err != nil {
			// Due only reports legal successors.
			s.logger.Error(ctx, "round transition rejected", logger.Error(err))
			return events
		}
		events = append(events, stateChanged(ch))

		switch to {
		case round.StatusActive:
			cur := s.clock.Current()
			events = append(events, event.RoundStarted{RoundID: cur.ID, Start: cur.Start, End: cur.End})
		case round.StatusCalculating:
			events = append(events, s.finalizeLocked(ctx, now)...)
		case round.StatusWaiting, round.StatusEnded:
		}
	}
}

func (s *Service) transitionLocked(ctx context.Context, to round.Status, at time.Time) (round.Change, error) {
	ch, err := s.clock.Transition(to, at)
	if err != nil {
		return round.Change{}, err
	}
	metrics.UpdateRoundStatus(to.Level())
	s.logger.Info(ctx, "round transition",
		logger.String("round", ch.RoundID),
		logger.String("from", string(ch.From)),
		logger.String("to", string(ch.To)),
	)
	return ch, nil
}

// scoringPassLocked recomputes every hand from current asset data and
// rebuilds the leaderboard.
func (s *Service) scoringPassLocked(now time.Time) event.ScoreUpdated {
	s.ledger.Update(s.scorer.Recompute)
	snap := s.ranker.Rebuild(s.clock.Current().ID, s.ledger.Hands(), now)
	return event.ScoreUpdated{RoundID: snap.RoundID, Leaderboard: standings(snap.Entries)}
}

// finalizeLocked runs CALCULATING -> ENDED -> WAITING: final scoring pass,
// reward distribution, archive, settlement hand-off and ledger reset. A
// reward failure still ends the round, with no allocations.
func (s *Service) finalizeLocked(ctx context.Context, now time.Time) []event.Event {
	cur := s.clock.Current()
	events := []event.Event{s.scoringPassLocked(now)}
	snap := s.ranker.Snapshot()

	players := make([]string, len(snap.Entries))
	for i, e := range snap.Entries {
		players[i] = e.PlayerID
	}

	dist, err := s.distributor.Distribute(players)
	failed := err != nil
	var reason string
	if failed {
		reason = err.Error()
		metrics.RecordRewardError()
		metrics.RecordErrorByComponent("reward", "computation")
		s.logger.Error(ctx, "reward computation failed",
			logger.String("round", cur.ID),
			logger.Int("participants", len(players)),
			logger.Error(err),
		)
		events = append(events, event.ErrorOccurred{Component: "reward", Reason: reason})
		dist = reward.Distribution{}
	}

	ch, err := s.transitionLocked(ctx, round.StatusEnded, now)
	if err != nil {
		s.logger.Error(ctx, "round transition rejected", logger.Error(err))
		return events
	}
	events = append(events, stateChanged(ch))

	ended := s.clock.Current()
	s.history.Add(repository.Record{Round: ended, Standings: snap.Entries, Distribution: dist, Error: reason})
	events = append(events, event.RoundEnded{
		RoundID:     ended.ID,
		Leaderboard: standings(snap.Entries),
		Allocations: payouts(dist.Allocations),
		Failed:      failed,
	})
	metrics.RecordRoundCompleted(dist.Pool.InexactFloat64())
	s.logger.Info(ctx, "round finalized",
		logger.String("round", ended.ID),
		logger.Int("participants", len(players)),
		logger.String("pool", dist.Pool.String()),
		logger.String("total", dist.Total.String()),
	)

	if len(dist.Allocations) > 0 {
		if !s.settlements.Enqueue(ctx, settlement.NewBatch(ended.ID, dist, now)) {
			s.logger.Error(ctx, "settlement queue rejected batch", logger.String("round", ended.ID))
			events = append(events, event.ErrorOccurred{Component: "settlement", Reason: "settlement queue full"})
		}
	}

	ch, err = s.transitionLocked(ctx, round.StatusWaiting, now)
	if err != nil {
		s.logger.Error(ctx, "round transition rejected", logger.Error(err))
		return events
	}
	s.ledger.Clear()
	next := s.clock.Current()
	s.ranker.Reset(next.ID, now)
	metrics.UpdateParticipants(0)
	return append(events, stateChanged(ch))
}

// SubmitHand records a player's hand for the active round.
func (s *Service) SubmitHand(ctx context.Context, playerID string, refs []int) (Submission, error) {
	s.mu.Lock()
	now := s.now()
	events := s.advanceLocked(ctx, now)
	sub, err := s.submitLocked(now, playerID, refs)
	if err == nil {
		snap := s.ranker.Snapshot()
		events = append(events,
			event.HandCreated{
				RoundID:    sub.Hand.RoundID,
				HandID:     sub.Hand.ID,
				PlayerID:   playerID,
				FinalScore: sub.Hand.FinalScore,
				Rank:       sub.Rank,
			},
			event.ScoreUpdated{RoundID: snap.RoundID, Leaderboard: standings(snap.Entries)},
		)
	}
	s.mu.Unlock()
	s.publish(ctx, events)

	if err != nil {
		reason := "invalid"
		if errors.Is(err, hand.ErrHandExists) {
			reason = "duplicate"
		}
		metrics.RecordHandRejected(reason)
		s.logger.Debug(ctx, "hand rejected",
			logger.String("player", playerID),
			logger.Error(err),
		)
		return Submission{}, err
	}
	metrics.RecordHandSubmitted()
	return sub, nil
}

func (s *Service) submitLocked(now time.Time, playerID string, refs []int) (Submission, error) {
	cur := s.clock.Current()
	if cur.Status != round.StatusActive {
		return Submission{}, fmt.Errorf("%w: round %s is %s", hand.ErrInvalidHand, cur.ID, cur.Status)
	}
	if s.ledger.Has(playerID) {
		return Submission{}, fmt.Errorf("%w: player %s", hand.ErrHandExists, playerID)
	}
	h, err := s.scorer.Build(playerID, cur.ID, refs)
	if err != nil {
		return Submission{}, err
	}
	if err := s.ledger.Add(h); err != nil {
		return Submission{}, err
	}
	snap := s.ranker.Rebuild(cur.ID, s.ledger.Hands(), now)
	metrics.UpdateParticipants(s.ledger.Len())
	return Submission{Hand: h.Clone(), Rank: snap.RankByPlayer[playerID]}, nil
}

// OpenPack opens a pack. A non-empty requestID makes the call idempotent:
// a replay returns the original pack and duplicate=true.
func (s *Service) OpenPack(ctx context.Context, requestID string, req pack.Request) (p pack.Pack, duplicate bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if requestID != "" {
		if prev, ok := s.packReqs.Lookup(ctx, requestID); ok {
			return prev, true, nil
		}
	}
	p, err = s.packs.Open(req)
	if err != nil {
		return pack.Pack{}, false, err
	}
	if requestID != "" {
		s.packReqs.Record(ctx, requestID, p)
	}
	metrics.RecordPackOpened(string(p.Type))
	s.logger.Debug(ctx, "pack opened",
		logger.String("player", p.PlayerID),
		logger.String("type", string(p.Type)),
		logger.Int("drought", p.Drought),
	)
	return p, false, nil
}

func stateChanged(ch round.Change) event.Event {
	return event.RoundStateChanged{RoundID: ch.RoundID, From: string(ch.From), To: string(ch.To), At: ch.At}
}

func standings(entries []repository.Entry) []event.Standing {
	out := make([]event.Standing, len(entries))
	for i, e := range entries {
		out[i] = event.Standing{Rank: e.Rank, PlayerID: e.PlayerID, FinalScore: e.FinalScore, SubmittedAt: e.SubmittedAt}
	}
	return out
}

func payouts(allocs []reward.Allocation) []event.Payout {
	out := make([]event.Payout, len(allocs))
	for i, a := range allocs {
		out[i] = event.Payout{PlayerID: a.PlayerID, Rank: a.Rank, Amount: a.Amount.String(), Class: string(a.Class)}
	}
	return out
}
