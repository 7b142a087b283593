package round_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/bullrun/internal/domain/round"
	. "github.com/smartystreets/goconvey/convey"
)

func TestSchedule_Window(t *testing.T) {
	Convey("Given a daily schedule starting at 14:00 UTC", t, func() {
		s := round.Schedule{Duration: 24 * time.Hour, StartHourUTC: 14}

		Convey("When now is after today's anchor", func() {
			start, end := s.Window(time.Date(2026, 5, 10, 20, 30, 0, 0, time.UTC))
			So(start, ShouldEqual, time.Date(2026, 5, 10, 14, 0, 0, 0, time.UTC))
			So(end, ShouldEqual, time.Date(2026, 5, 11, 14, 0, 0, 0, time.UTC))
		})

		Convey("When now is before today's anchor", func() {
			start, _ := s.Window(time.Date(2026, 5, 10, 3, 0, 0, 0, time.UTC))
			So(start, ShouldEqual, time.Date(2026, 5, 9, 14, 0, 0, 0, time.UTC))
		})

		Convey("When now is exactly on a boundary", func() {
			start, _ := s.Window(time.Date(2026, 5, 10, 14, 0, 0, 0, time.UTC))
			So(start, ShouldEqual, time.Date(2026, 5, 10, 14, 0, 0, 0, time.UTC))
		})

		Convey("When now is in a non-UTC zone", func() {
			zone := time.FixedZone("UTC+5", 5*3600)
			start, _ := s.Window(time.Date(2026, 5, 11, 1, 0, 0, 0, zone))
			So(start, ShouldEqual, time.Date(2026, 5, 10, 14, 0, 0, 0, time.UTC))
		})
	})

	Convey("Given an hourly schedule", t, func() {
		s := round.Schedule{Duration: time.Hour}
		start, end := s.Window(time.Date(2026, 5, 10, 7, 59, 59, 0, time.UTC))
		So(start, ShouldEqual, time.Date(2026, 5, 10, 7, 0, 0, 0, time.UTC))
		So(end, ShouldEqual, time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC))

		r := s.NewRound(start)
		So(r.ID, ShouldEqual, "2026-05-10T07:00Z")
		So(r.Status, ShouldEqual, round.StatusWaiting)
	})
}

func TestClock(t *testing.T) {
	base := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)

	Convey("Given a clock on an hourly schedule", t, func() {
		clock, err := round.NewClock(round.Schedule{Duration: time.Hour}, base.Add(10*time.Minute))
		So(err, ShouldBeNil)
		r := clock.Current()
		So(r.Status, ShouldEqual, round.StatusWaiting)
		So(r.Start, ShouldEqual, base)

		Convey("Then the full lifecycle follows the only legal order", func() {
			to, ok := clock.Due(base.Add(10 * time.Minute))
			So(ok, ShouldBeTrue)
			So(to, ShouldEqual, round.StatusActive)
			ch, err := clock.Transition(to, base.Add(10*time.Minute))
			So(err, ShouldBeNil)
			So(ch.From, ShouldEqual, round.StatusWaiting)
			So(ch.RoundID, ShouldEqual, r.ID)

			_, ok = clock.Due(base.Add(59 * time.Minute))
			So(ok, ShouldBeFalse)

			to, ok = clock.Due(base.Add(time.Hour))
			So(ok, ShouldBeTrue)
			So(to, ShouldEqual, round.StatusCalculating)
			_, err = clock.Transition(to, base.Add(time.Hour))
			So(err, ShouldBeNil)

			_, ok = clock.Due(base.Add(2 * time.Hour))
			So(ok, ShouldBeFalse)

			_, err = clock.Transition(round.StatusEnded, base.Add(time.Hour))
			So(err, ShouldBeNil)
			ch, err = clock.Transition(round.StatusWaiting, base.Add(time.Hour))
			So(err, ShouldBeNil)
			So(ch.From, ShouldEqual, round.StatusEnded)

			nextRound := clock.Current()
			So(nextRound.Start, ShouldEqual, base.Add(time.Hour))
			So(nextRound.End, ShouldEqual, base.Add(2*time.Hour))
			So(nextRound.Status, ShouldEqual, round.StatusWaiting)
			So(nextRound.ID, ShouldNotEqual, r.ID)
		})

		Convey("Then skipping or reversing is rejected", func() {
			_, err := clock.Transition(round.StatusCalculating, base)
			So(errors.Is(err, round.ErrInvalidTransition), ShouldBeTrue)
			_, err = clock.Transition(round.StatusEnded, base)
			So(errors.Is(err, round.ErrInvalidTransition), ShouldBeTrue)
			_, err = clock.Transition(round.StatusWaiting, base)
			So(errors.Is(err, round.ErrInvalidTransition), ShouldBeTrue)
			So(clock.Current().Status, ShouldEqual, round.StatusWaiting)
		})

		Convey("When the reset happens several rounds late", func() {
			late := base.Add(5*time.Hour + 30*time.Minute)
			for _, s := range []round.Status{round.StatusActive, round.StatusCalculating, round.StatusEnded, round.StatusWaiting} {
				_, err := clock.Transition(s, late)
				So(err, ShouldBeNil)
			}

			Convey("Then the next round is the one containing the reset time", func() {
				So(clock.Current().Start, ShouldEqual, base.Add(5*time.Hour))
			})
		})
	})

	Convey("Given an invalid schedule", t, func() {
		_, err := round.NewClock(round.Schedule{}, base)
		So(err, ShouldNotBeNil)
		_, err = round.NewClock(round.Schedule{Duration: time.Hour, StartHourUTC: 24}, base)
		So(err, ShouldNotBeNil)
	})

	Convey("Given a duration that does not divide a day", t, func() {
		s := round.Schedule{Duration: 7 * time.Hour}

		Convey("Then the schedule and clock reject it", func() {
			So(errors.Is(s.Validate(), round.ErrInvalidSchedule), ShouldBeTrue)
			_, err := round.NewClock(s, base)
			So(errors.Is(err, round.ErrInvalidSchedule), ShouldBeTrue)
		})
	})

	Convey("Given a duration that divides a day", t, func() {
		s := round.Schedule{Duration: 8 * time.Hour, StartHourUTC: 2}
		So(s.Validate(), ShouldBeNil)

		Convey("Then windows tile across midnight on the start hour", func() {
			late, lateEnd := s.Window(time.Date(2026, 5, 10, 23, 0, 0, 0, time.UTC))
			early, _ := s.Window(time.Date(2026, 5, 11, 1, 0, 0, 0, time.UTC))
			So(late, ShouldEqual, time.Date(2026, 5, 10, 18, 0, 0, 0, time.UTC))
			So(lateEnd, ShouldEqual, time.Date(2026, 5, 11, 2, 0, 0, 0, time.UTC))
			So(early, ShouldEqual, late)
		})
	})
}

func TestStatus_Level(t *testing.T) {
	Convey("Status levels follow lifecycle order", t, func() {
		So(round.StatusWaiting.Level(), ShouldEqual, 0)
		So(round.StatusActive.Level(), ShouldEqual, 1)
		So(round.StatusCalculating.Level(), ShouldEqual, 2)
		So(round.StatusEnded.Level(), ShouldEqual, 3)
		So(round.Status("PAUSED").Level(), ShouldEqual, -1)
	})
}
