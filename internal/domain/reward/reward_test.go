package reward_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/okian/bullrun/internal/config"
	"github.com/okian/bullrun/internal/domain/reward"
	. "github.com/smartystreets/goconvey/convey"
)

func players(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("p%02d", i+1)
	}
	return out
}

func sum(allocs []reward.Allocation) decimal.Decimal {
	total := decimal.Zero
	for _, a := range allocs {
		total = total.Add(a.Amount)
	}
	return total
}

func TestDistributor_Distribute(t *testing.T) {
	Convey("Given the default reward parameters", t, func() {
		d, err := reward.NewDistributor(reward.ParamsFromConfig(config.New()))
		So(err, ShouldBeNil)

		Convey("When twelve players finish a round with a 1000 pool", func() {
			dist, err := d.Distribute(players(12))
			So(err, ShouldBeNil)

			Convey("Then the winner takes the boosted carve-out", func() {
				So(dist.Pool.String(), ShouldEqual, "1000")
				first := dist.Allocations[0]
				So(first.Rank, ShouldEqual, 1)
				So(first.Class, ShouldEqual, reward.ClassWinner)
				So(first.Amount.String(), ShouldEqual, "640")
			})

			Convey("Then ranks 2..10 split 480 by power law", func() {
				top := decimal.Zero
				prev := decimal.NewFromInt(1 << 30)
				for _, a := range dist.Allocations[1:10] {
					So(a.Class, ShouldEqual, reward.ClassTopK)
					So(a.Amount.LessThanOrEqual(prev), ShouldBeTrue)
					prev = a.Amount
					top = top.Add(a.Amount)
				}
				So(top.String(), ShouldEqual, "480")
				So(dist.Allocations[9].Amount.IsZero(), ShouldBeTrue)
			})

			Convey("Then ranks 11 and 12 get 100 each", func() {
				for _, a := range dist.Allocations[10:] {
					So(a.Class, ShouldEqual, reward.ClassParticipation)
					So(a.Amount.String(), ShouldEqual, "100")
				}
			})

			Convey("Then the allocations add up to the total exactly", func() {
				So(dist.WinnerBonus.String(), ShouldEqual, "320")
				So(dist.Unallocated.IsZero(), ShouldBeTrue)
				So(dist.Total.String(), ShouldEqual, "1320")
				So(sum(dist.Allocations).Equal(dist.Total), ShouldBeTrue)
			})

			Convey("Then the result is deterministic", func() {
				again, err := d.Distribute(players(12))
				So(err, ShouldBeNil)
				for i := range again.Allocations {
					So(again.Allocations[i].Amount.Equal(dist.Allocations[i].Amount), ShouldBeTrue)
				}
			})
		})

		Convey("When the participant count varies", func() {
			for _, n := range []int{1, 2, 3, 7, 10, 11, 57, 250} {
				dist, err := d.Distribute(players(n))
				So(err, ShouldBeNil)
				So(len(dist.Allocations), ShouldEqual, n)
				So(sum(dist.Allocations).Equal(dist.Total), ShouldBeTrue)
				So(dist.Total.Equal(dist.Pool.Add(dist.WinnerBonus).Sub(dist.Unallocated)), ShouldBeTrue)
				for i, a := range dist.Allocations {
					So(a.Rank, ShouldEqual, i+1)
					So(a.Amount.IsNegative(), ShouldBeFalse)
				}
			}
		})

		Convey("When only two players finish", func() {
			dist, err := d.Distribute(players(2))
			So(err, ShouldBeNil)

			Convey("Then rank 2 takes the whole remainder and participation is unallocated", func() {
				So(dist.Allocations[1].Amount.String(), ShouldEqual, "480")
				So(dist.Unallocated.String(), ShouldEqual, "200")
			})
		})

		Convey("When nobody played", func() {
			dist, err := d.Distribute(nil)
			So(err, ShouldBeNil)
			So(dist.Allocations, ShouldBeEmpty)
			So(dist.Total.IsZero(), ShouldBeTrue)
		})

		Convey("When the pool exceeds the minimum", func() {
			So(d.Pool(250).String(), ShouldEqual, "2500")
			So(d.Pool(5).String(), ShouldEqual, "1000")
		})

		Convey("When a player appears twice", func() {
			_, err := d.Distribute([]string{"a", "b", "a"})
			So(errors.Is(err, reward.ErrRewardComputation), ShouldBeTrue)
		})

		Convey("When a player id is empty", func() {
			_, err := d.Distribute([]string{"a", ""})
			So(errors.Is(err, reward.ErrRewardComputation), ShouldBeTrue)
		})
	})

	Convey("Given an awkward pool that does not divide evenly", t, func() {
		params := reward.ParamsFromConfig(config.New())
		params.MinimumPool = 1000.01
		params.PowerLawExponent = 1.7
		d, err := reward.NewDistributor(params)
		So(err, ShouldBeNil)

		dist, err := d.Distribute(players(13))
		So(err, ShouldBeNil)
		So(sum(dist.Allocations).Equal(dist.Total), ShouldBeTrue)

		Convey("Then every amount stays at the configured precision", func() {
			for _, a := range dist.Allocations {
				So(a.Amount.Equal(a.Amount.Round(params.Precision)), ShouldBeTrue)
			}
			for _, v := range []decimal.Decimal{dist.Pool, dist.TopPool, dist.ParticipationPool, dist.WinnerBonus, dist.Unallocated, dist.Total} {
				So(v.Equal(v.Round(params.Precision)), ShouldBeTrue)
			}
		})
	})

	Convey("Given a pool finer than the precision", t, func() {
		params := reward.ParamsFromConfig(config.New())
		params.MinimumPool = 1000.0137
		params.Precision = 2
		d, err := reward.NewDistributor(params)
		So(err, ShouldBeNil)

		dist, err := d.Distribute(players(13))
		So(err, ShouldBeNil)

		Convey("Then the pool is cut to precision before splitting", func() {
			So(dist.Pool.Equal(decimal.RequireFromString("1000.01")), ShouldBeTrue)
			So(sum(dist.Allocations).Equal(dist.Total), ShouldBeTrue)
			for _, a := range dist.Allocations {
				So(a.Amount.Equal(a.Amount.Round(2)), ShouldBeTrue)
			}
		})
	})

	Convey("Given the smallest reward settings a valid config allows", t, func() {
		cfg := config.New()
		cfg.WinnerBonusMultiplier = 1
		cfg.PowerLawExponent = 0.01
		So(cfg.Validate(), ShouldBeNil)

		_, err := reward.NewDistributor(reward.ParamsFromConfig(cfg))
		So(err, ShouldBeNil)
	})

	Convey("Given invalid parameters", t, func() {
		params := reward.ParamsFromConfig(config.New())
		params.TopShare = 1.5
		_, err := reward.NewDistributor(params)
		So(errors.Is(err, reward.ErrRewardComputation), ShouldBeTrue)

		params = reward.ParamsFromConfig(config.New())
		params.PowerLawExponent = 0
		_, err = reward.NewDistributor(params)
		So(errors.Is(err, reward.ErrRewardComputation), ShouldBeTrue)
	})
}
