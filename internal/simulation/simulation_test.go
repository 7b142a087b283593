package simulation

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/bullrun/internal/adapters/repository"
	"github.com/okian/bullrun/internal/domain/reward"
	"github.com/okian/bullrun/pkg/logger"
)

func quietLogs(t *testing.T) {
	t.Helper()
	if err := logger.InitWithWriter(&bytes.Buffer{}, "text"); err != nil {
		t.Fatal(err)
	}
}

func TestClock(t *testing.T) {
	Convey("Given a virtual clock", t, func() {
		c := NewClock(epoch)

		Convey("Then it only moves when advanced", func() {
			So(c.Now(), ShouldEqual, epoch)
			So(c.Advance(time.Minute), ShouldEqual, epoch.Add(time.Minute))
			So(c.Now(), ShouldEqual, epoch.Add(time.Minute))
		})
	})
}

func TestGeneratePlayers(t *testing.T) {
	quietLogs(t)

	Convey("Given a seeded player configuration", t, func() {
		cfg := &Config{Players: 30, PacksPerPlayer: 2, ReplayRatio: 0.5, Seed: 5, Workers: 4}

		players, err := generatePlayers(context.Background(), cfg, 20, 5)
		So(err, ShouldBeNil)

		Convey("Then every player gets a valid hand and its packs", func() {
			So(len(players), ShouldEqual, 30)
			for _, p := range players {
				So(len(p.Refs), ShouldEqual, 5)
				for _, ref := range p.Refs {
					So(ref, ShouldBeBetweenOrEqual, 0, 19)
				}
				So(len(p.Packs), ShouldEqual, 2)
				So(string(p.Packs[0].Type), ShouldEqual, "starter")
				So(string(p.Packs[1].Type), ShouldEqual, "regular")
			}
			So(players[0].ID, ShouldEqual, "player-001")
		})

		Convey("Then hands do not depend on worker scheduling", func() {
			again, err := generatePlayers(context.Background(), &Config{Players: 30, PacksPerPlayer: 2, ReplayRatio: 0.5, Seed: 5, Workers: 1}, 20, 5)
			So(err, ShouldBeNil)
			for i := range players {
				So(again[i].Refs, ShouldResemble, players[i].Refs)
				So(again[i].Strategy, ShouldEqual, players[i].Strategy)
			}
		})
	})

	Convey("Given a cancelled context", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := generatePlayers(ctx, &Config{Players: 5, Workers: 1}, 20, 5)
		So(err, ShouldNotBeNil)
	})
}

func TestVerification(t *testing.T) {
	at := epoch.Add(time.Minute)

	Convey("Given a well-formed leaderboard", t, func() {
		board := []repository.Entry{
			{Rank: 1, PlayerID: "a", FinalScore: 90, SubmittedAt: at},
			{Rank: 2, PlayerID: "b", FinalScore: 90, SubmittedAt: at.Add(time.Second)},
			{Rank: 3, PlayerID: "c", FinalScore: 10, SubmittedAt: at},
		}

		Convey("Then it verifies", func() {
			So(verifyLeaderboard(board), ShouldBeNil)
			ranks := map[string]repository.Entry{"a": board[0], "b": board[1], "c": board[2]}
			So(verifyRankings(ranks, board), ShouldBeNil)
		})

		Convey("Then misordered scores are reported", func() {
			board[2].FinalScore = 100
			So(verifyLeaderboard(board), ShouldNotBeNil)
		})

		Convey("Then a rank lookup disagreeing with the board is reported", func() {
			ranks := map[string]repository.Entry{"a": board[1], "b": board[1], "c": board[2]}
			So(verifyRankings(ranks, board), ShouldNotBeNil)
		})

		Convey("Then a missing player is reported", func() {
			So(verifyRankings(map[string]repository.Entry{"a": board[0]}, board), ShouldNotBeNil)
		})
	})

	Convey("Given a finished round", t, func() {
		rec := repository.Record{
			Standings: []repository.Entry{{Rank: 1, PlayerID: "a"}, {Rank: 2, PlayerID: "b"}},
			Distribution: reward.Distribution{
				Total: decimal.RequireFromString("100"),
				Allocations: []reward.Allocation{
					{PlayerID: "a", Rank: 1, Amount: decimal.RequireFromString("70")},
					{PlayerID: "b", Rank: 2, Amount: decimal.RequireFromString("30")},
				},
			},
		}

		Convey("Then balanced payouts verify", func() {
			So(verifyRound(rec), ShouldBeNil)
		})

		Convey("Then a payout gap is reported", func() {
			rec.Distribution.Total = decimal.RequireFromString("100.01")
			So(verifyRound(rec), ShouldNotBeNil)
		})

		Convey("Then a payout to the wrong rank is reported", func() {
			rec.Distribution.Allocations[0].Rank = 2
			So(verifyRound(rec), ShouldNotBeNil)
		})

		Convey("Then a failed round is reported", func() {
			rec.Error = "boom"
			So(verifyRound(rec), ShouldNotBeNil)
		})
	})
}

func TestRun(t *testing.T) {
	quietLogs(t)

	Convey("Given a small simulated round", t, func() {
		dir := t.TempDir()
		cfg := &Config{
			Players:        12,
			PacksPerPlayer: 2,
			ReplayRatio:    0.5,
			Steps:          6,
			RoundDuration:  time.Hour,
			Seed:           7,
			Workers:        3,
			TopN:           5,
			SettlementDB:   filepath.Join(dir, "settlements.db"),
			OutputFile:     filepath.Join(dir, "out", "report.json"),
		}
		var out bytes.Buffer

		report, err := Run(context.Background(), cfg, &out)
		So(err, ShouldBeNil)

		Convey("Then the round plays out cleanly", func() {
			So(report.Problems, ShouldBeEmpty)
			So(report.Stats.HandsSubmitted, ShouldEqual, 12)
			So(report.Stats.HandsRejected, ShouldEqual, 0)
			So(report.Stats.PacksOpened, ShouldEqual, 24)
			So(report.Stats.PacksFailed, ShouldEqual, 0)
			So(report.Stats.PriceTicks, ShouldEqual, 5)
			So(report.Stats.RanksVerified, ShouldEqual, 12)
			So(report.Round.Round.ID, ShouldEqual, "2026-01-01T00:00Z")
			So(len(report.Round.Standings), ShouldEqual, 12)
			So(len(report.Leaderboard), ShouldEqual, 12)
			So(len(report.Collections), ShouldEqual, 12)
		})

		Convey("Then replayed pack requests are deduplicated", func() {
			replays := 0
			for _, p := range report.Players {
				for _, plan := range p.Packs {
					if plan.Replay {
						replays++
					}
				}
			}
			So(report.Stats.PacksDuplicate, ShouldEqual, replays)
		})

		Convey("Then the payout is settled once", func() {
			So(report.Stats.BatchesSettled, ShouldEqual, 1)
			So(report.Settlements[0].RoundID, ShouldEqual, report.Round.Round.ID)
			So(report.Settlements[0].Total.Equal(report.Round.Distribution.Total), ShouldBeTrue)
		})

		Convey("Then the tables are printed", func() {
			text := out.String()
			So(text, ShouldContainSubstring, "ROUND 2026-01-01T00:00Z")
			So(text, ShouldContainSubstring, "FINAL STANDINGS (top 5 of 12)")
			So(text, ShouldContainSubstring, "PAYOUTS")
			So(text, ShouldContainSubstring, "PACKS")
			So(text, ShouldContainSubstring, "verification passed")
		})

		Convey("Then the JSON report is written", func() {
			raw, err := os.ReadFile(cfg.OutputFile)
			So(err, ShouldBeNil)
			var decoded struct {
				Round struct {
					Round struct {
						ID string `json:"id"`
					} `json:"round"`
				} `json:"round"`
				Players []Player `json:"players"`
			}
			So(json.Unmarshal(raw, &decoded), ShouldBeNil)
			So(decoded.Round.Round.ID, ShouldEqual, "2026-01-01T00:00Z")
			So(len(decoded.Players), ShouldEqual, 12)
		})
	})

	Convey("Given an invalid engine configuration", t, func() {
		cfg := &Config{Players: 1, Steps: 1}
		cfg.Engine = engineConfig(&Config{RoundDuration: time.Hour})
		cfg.Engine.HandSize = 0

		_, err := Run(context.Background(), cfg, nil)
		So(err, ShouldNotBeNil)
	})
}

func TestShowHelp(t *testing.T) {
	Convey("Help lists the flags", t, func() {
		var out bytes.Buffer
		ShowHelp(&out)
		So(out.String(), ShouldContainSubstring, "-players int")
		So(out.String(), ShouldContainSubstring, "-db string")
	})
}
