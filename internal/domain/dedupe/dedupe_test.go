package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/okian/bullrun/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestStore(t *testing.T) {
	ctx := context.Background()

	Convey("Given a new Store", t, func() {
		d := dedupe.New[string]()

		Convey("When a request id is recorded for the first time", func() {
			v, seen := d.Record(ctx, "req-1", "pack-a")

			Convey("Then it is stored and reported as new", func() {
				So(seen, ShouldBeFalse)
				So(v, ShouldEqual, "pack-a")
				So(d.Size(), ShouldEqual, 1)
			})

			Convey("And the same id is recorded again", func() {
				v, seen := d.Record(ctx, "req-1", "pack-b")

				Convey("Then the first result is returned", func() {
					So(seen, ShouldBeTrue)
					So(v, ShouldEqual, "pack-a")
					So(d.Size(), ShouldEqual, 1)
				})
			})

			Convey("And it is looked up", func() {
				v, ok := d.Lookup(ctx, "req-1")
				So(ok, ShouldBeTrue)
				So(v, ShouldEqual, "pack-a")

				_, ok = d.Lookup(ctx, "req-2")
				So(ok, ShouldBeFalse)
			})

			Convey("And it is unrecorded", func() {
				d.Unrecord(ctx, "req-1")
				d.Unrecord(ctx, "missing")

				Convey("Then it can be recorded again", func() {
					So(d.Size(), ShouldEqual, 0)
					_, seen := d.Record(ctx, "req-1", "pack-c")
					So(seen, ShouldBeFalse)
				})
			})
		})
	})

	Convey("Given a bounded Store at capacity", t, func() {
		d := dedupe.New[int](dedupe.WithMaxSize(3))
		for i := 1; i <= 3; i++ {
			_, seen := d.Record(ctx, fmt.Sprintf("req-%d", i), i)
			So(seen, ShouldBeFalse)
		}

		Convey("When another id is recorded", func() {
			d.Record(ctx, "req-4", 4)

			Convey("Then the oldest id is evicted", func() {
				So(d.Size(), ShouldEqual, 3)
				_, ok := d.Lookup(ctx, "req-1")
				So(ok, ShouldBeFalse)
				for _, id := range []string{"req-2", "req-3", "req-4"} {
					_, ok := d.Lookup(ctx, id)
					So(ok, ShouldBeTrue)
				}
			})
		})

		Convey("When an id is unrecorded and a new one fills its room", func() {
			d.Unrecord(ctx, "req-1")
			d.Record(ctx, "req-4", 4)
			d.Record(ctx, "req-5", 5)

			Convey("Then the stale ring slot is skipped and the next oldest is evicted", func() {
				So(d.Size(), ShouldEqual, 3)
				_, ok := d.Lookup(ctx, "req-2")
				So(ok, ShouldBeFalse)
				_, ok = d.Lookup(ctx, "req-3")
				So(ok, ShouldBeTrue)
			})
		})
	})

	Convey("Given an unbounded Store", t, func() {
		d := dedupe.New[int](dedupe.WithMaxSize(0))
		for i := 0; i < 1000; i++ {
			d.Record(ctx, fmt.Sprintf("req-%d", i), i)
		}
		So(d.Size(), ShouldEqual, 1000)
	})

	Convey("Given concurrent writers", t, func() {
		d := dedupe.New[int](dedupe.WithMaxSize(10000))
		var wg sync.WaitGroup
		for g := 0; g < 10; g++ {
			wg.Add(1)
			go func(g int) {
				defer wg.Done()
				for j := 0; j < 100; j++ {
					d.Record(ctx, fmt.Sprintf("req-%d-%d", g, j), j)
				}
			}(g)
		}
		wg.Wait()
		So(d.Size(), ShouldEqual, 1000)
	})
}
