// Package settlement hands finished-round payouts to external settlement
// sinks. Moving value is the sink's job; this package only delivers records.
package settlement

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/okian/bullrun/internal/domain/reward"
	"github.com/okian/bullrun/pkg/logger"
)

// ErrDelivery marks a failed delivery attempt.
var ErrDelivery = errors.New("settlement delivery failed")

// Batch is the set of payouts for one round.
type Batch struct {
	ID          string              `json:"id"`
	RoundID     string              `json:"round_id"`
	CreatedAt   time.Time           `json:"created_at"`
	Total       decimal.Decimal     `json:"total"`
	Allocations []reward.Allocation `json:"allocations"`
}

// NewBatch wraps a round's distribution.
func NewBatch(roundID string, dist reward.Distribution, at time.Time) Batch {
	return Batch{
		ID:          uuid.NewString(),
		RoundID:     roundID,
		CreatedAt:   at.UTC(),
		Total:       dist.Total,
		Allocations: append([]reward.Allocation(nil), dist.Allocations...),
	}
}

// Sink receives payout batches. Deliver must be idempotent per batch id.
type Sink interface {
	Deliver(ctx context.Context, b Batch) error
}

// LogSink writes batches to the structured log.
type LogSink struct {
	logger logger.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(l logger.Logger) *LogSink {
	if l == nil {
		l = logger.Get().Named("settlement")
	}
	return &LogSink{logger: l}
}

// Deliver implements Sink.
func (s *LogSink) Deliver(ctx context.Context, b Batch) error {
	s.logger.Info(ctx, "settlement batch",
		logger.String("batch_id", b.ID),
		logger.String("round_id", b.RoundID),
		logger.Int("allocations", len(b.Allocations)),
		logger.String("total", b.Total.String()),
	)
	return nil
}
