// Package round models the fixed-length competitive round and the clock that
// moves it through its lifecycle.
package round

import (
	"errors"
	"fmt"
	"time"
)

// Status is a round lifecycle state.
type Status string

// Lifecycle states in their only legal order.
const (
	StatusWaiting     Status = "WAITING"
	StatusActive      Status = "ACTIVE"
	StatusCalculating Status = "CALCULATING"
	StatusEnded       Status = "ENDED"
)

// ErrInvalidTransition is returned for any move outside
// WAITING -> ACTIVE -> CALCULATING -> ENDED -> WAITING.
var ErrInvalidTransition = errors.New("invalid round transition")

// ErrInvalidSchedule is returned for a schedule whose boundaries would not
// stay on the UTC start hour.
var ErrInvalidSchedule = errors.New("invalid round schedule")

const day = 24 * time.Hour

var next = map[Status]Status{ //nolint:gochecknoglobals // fixed transition table
	StatusWaiting:     StatusActive,
	StatusActive:      StatusCalculating,
	StatusCalculating: StatusEnded,
	StatusEnded:       StatusWaiting,
}

// Next returns the only state s may move to.
func (s Status) Next() Status { return next[s] }

// Level returns s as 0..3 in lifecycle order, or -1 if unknown.
func (s Status) Level() int {
	switch s {
	case StatusWaiting:
		return 0
	case StatusActive:
		return 1
	case StatusCalculating:
		return 2
	case StatusEnded:
		return 3
	}
	return -1
}

// IDLayout formats round ids from the UTC start time.
const IDLayout = "2006-01-02T15:04Z"

// Round is one competitive cycle.
type Round struct {
	ID     string    `json:"id"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Status Status    `json:"status"`
}

// Contains reports whether t falls inside [Start, End).
func (r Round) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

// Schedule computes round boundaries aligned to a UTC hour.
type Schedule struct {
	Duration     time.Duration
	StartHourUTC int
}

// Validate checks that Duration divides a day, so every day's StartHourUTC is
// a boundary and windows never overlap across the daily anchor.
func (s Schedule) Validate() error {
	if s.Duration <= 0 {
		return fmt.Errorf("%w: duration must be positive, got %s", ErrInvalidSchedule, s.Duration)
	}
	if day%s.Duration != 0 {
		return fmt.Errorf("%w: duration %s does not divide 24h", ErrInvalidSchedule, s.Duration)
	}
	if s.StartHourUTC < 0 || s.StartHourUTC > 23 {
		return fmt.Errorf("%w: start hour must be 0..23, got %d", ErrInvalidSchedule, s.StartHourUTC)
	}
	return nil
}

// Window returns the round containing t: anchor + k*Duration, where anchor is
// t's UTC day at StartHourUTC.
func (s Schedule) Window(t time.Time) (start, end time.Time) {
	t = t.UTC()
	anchor := time.Date(t.Year(), t.Month(), t.Day(), s.StartHourUTC, 0, 0, 0, time.UTC)
	offset := t.Sub(anchor)
	k := int64(offset / s.Duration)
	if offset < 0 && offset%s.Duration != 0 {
		k--
	}
	start = anchor.Add(time.Duration(k) * s.Duration)
	return start, start.Add(s.Duration)
}

// NewRound builds a WAITING round with the given start.
func (s Schedule) NewRound(start time.Time) Round {
	start = start.UTC()
	return Round{
		ID:     start.Format(IDLayout),
		Start:  start,
		End:    start.Add(s.Duration),
		Status: StatusWaiting,
	}
}

// Change describes one applied transition.
type Change struct {
	RoundID string    `json:"round_id"`
	From    Status    `json:"from"`
	To      Status    `json:"to"`
	At      time.Time `json:"at"`
}

// Clock tracks the current round. It is not safe for concurrent use; callers
// serialize access.
type Clock struct {
	schedule Schedule
	current  Round
}

// NewClock starts in WAITING on the round containing now.
func NewClock(schedule Schedule, now time.Time) (*Clock, error) {
	if err := schedule.Validate(); err != nil {
		return nil, err
	}
	start, _ := schedule.Window(now)
	return &Clock{schedule: schedule, current: schedule.NewRound(start)}, nil
}

// Current returns a copy of the current round.
func (c *Clock) Current() Round { return c.current }

// Schedule returns the boundary schedule.
func (c *Clock) Schedule() Schedule { return c.schedule }

// Due returns the time-driven transition owed at now, if any. Only
// WAITING -> ACTIVE and ACTIVE -> CALCULATING are driven by time.
func (c *Clock) Due(now time.Time) (Status, bool) {
	switch c.current.Status {
	case StatusWaiting:
		if !now.Before(c.current.Start) {
			return StatusActive, true
		}
	case StatusActive:
		if !now.Before(c.current.End) {
			return StatusCalculating, true
		}
	case StatusCalculating, StatusEnded:
	}
	return "", false
}

// Transition moves to the given state. It fails unless to is the single
// legal successor of the current state.
func (c *Clock) Transition(to Status, at time.Time) (Change, error) {
	from := c.current.Status
	if from.Next() != to {
		return Change{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	ch := Change{RoundID: c.current.ID, From: from, To: to, At: at.UTC()}
	if to == StatusWaiting {
		c.current = c.schedule.NewRound(c.nextStart(at))
		return ch, nil
	}
	c.current.Status = to
	return ch, nil
}

// nextStart is the current end, or the start of the window containing at
// when whole rounds were skipped.
func (c *Clock) nextStart(at time.Time) time.Time {
	start, _ := c.schedule.Window(at)
	if start.After(c.current.End) {
		return start
	}
	return c.current.End
}
