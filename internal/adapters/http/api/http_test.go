package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/okian/bullrun/internal/adapters/http/api"
	"github.com/okian/bullrun/internal/adapters/pricefeed"
	"github.com/okian/bullrun/internal/adapters/repository"
	service "github.com/okian/bullrun/internal/app"
	"github.com/okian/bullrun/internal/config"
	"github.com/okian/bullrun/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func newEngine() *service.Service {
	cfg := config.New()
	cfg.RoundDuration = time.Hour
	cfg.PackSeed = 3
	cfg.MaxLeaderboardLimit = 50
	svc, err := service.New(cfg, pricefeed.NewRandomWalkSource(1, nil), service.WithLogger(logger.Nop()))
	if err != nil {
		panic(err)
	}
	return svc
}

func do(mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func TestServer_Routes(t *testing.T) {
	Convey("Given the API over a fresh engine", t, func() {
		svc := newEngine()
		mux := http.NewServeMux()
		api.NewServer(svc, api.WithMaxLimit(50)).Register(context.Background(), mux)

		Convey("When a valid hand is posted", func() {
			w := do(mux, http.MethodPost, "/hands", `{"player_id":"alice","assets":[0,1,2,3,4]}`)

			Convey("Then it is created with a rank", func() {
				So(w.Code, ShouldEqual, http.StatusCreated)
				var body struct {
					Rank int `json:"rank"`
				}
				So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
				So(body.Rank, ShouldEqual, 1)
			})

			Convey("Then posting again conflicts", func() {
				again := do(mux, http.MethodPost, "/hands", `{"player_id":"alice","assets":[5,6,7,8,9]}`)
				So(again.Code, ShouldEqual, http.StatusConflict)
				So(again.Body.String(), ShouldContainSubstring, "hand_exists")
			})

			Convey("Then the hand, rank and leaderboard are readable", func() {
				So(do(mux, http.MethodGet, "/hands/alice", "").Code, ShouldEqual, http.StatusOK)

				rank := do(mux, http.MethodGet, "/rank/alice", "")
				So(rank.Code, ShouldEqual, http.StatusOK)
				var entry repository.Entry
				So(json.Unmarshal(rank.Body.Bytes(), &entry), ShouldBeNil)
				So(entry.PlayerID, ShouldEqual, "alice")

				lb := do(mux, http.MethodGet, "/leaderboard?limit=10", "")
				So(lb.Code, ShouldEqual, http.StatusOK)
				var entries []repository.Entry
				So(json.Unmarshal(lb.Body.Bytes(), &entries), ShouldBeNil)
				So(len(entries), ShouldEqual, 1)
			})
		})

		Convey("When an invalid hand is posted", func() {
			Convey("Then four references are rejected", func() {
				w := do(mux, http.MethodPost, "/hands", `{"player_id":"bob","assets":[0,1,2,3]}`)
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(w.Body.String(), ShouldContainSubstring, "invalid_hand")
				So(do(mux, http.MethodGet, "/hands/bob", "").Code, ShouldEqual, http.StatusNotFound)
			})

			Convey("Then a missing player or bad JSON is a bad request", func() {
				So(do(mux, http.MethodPost, "/hands", `{"assets":[0,1,2,3,4]}`).Code, ShouldEqual, http.StatusBadRequest)
				So(do(mux, http.MethodPost, "/hands", `{`).Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When a pack is opened twice with the same request id", func() {
			body := `{"request_id":"r-1","player_id":"carol","type":"starter"}`
			first := do(mux, http.MethodPost, "/packs", body)
			second := do(mux, http.MethodPost, "/packs", body)

			Convey("Then the replay returns the same pack", func() {
				So(first.Code, ShouldEqual, http.StatusCreated)
				So(second.Code, ShouldEqual, http.StatusOK)
				var a, b struct {
					Duplicate bool `json:"duplicate"`
					Pack      struct {
						ID string `json:"id"`
					} `json:"pack"`
				}
				So(json.Unmarshal(first.Body.Bytes(), &a), ShouldBeNil)
				So(json.Unmarshal(second.Body.Bytes(), &b), ShouldBeNil)
				So(b.Duplicate, ShouldBeTrue)
				So(b.Pack.ID, ShouldEqual, a.Pack.ID)
			})

			Convey("Then the collection reflects one pack", func() {
				w := do(mux, http.MethodGet, "/collections/carol", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, "next_pack_odds")
				So(do(mux, http.MethodGet, "/collections/nobody", "").Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When pack requests are malformed", func() {
			So(do(mux, http.MethodPost, "/packs", `{"player_id":"carol","type":"starter"}`).Code, ShouldEqual, http.StatusBadRequest)
			w := do(mux, http.MethodPost, "/packs", `{"request_id":"r-2","player_id":"carol","type":"mega"}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(w.Body.String(), ShouldContainSubstring, "unknown_pack_type")
		})

		Convey("When read-only endpoints are called", func() {
			So(do(mux, http.MethodGet, "/round", "").Code, ShouldEqual, http.StatusOK)
			So(do(mux, http.MethodGet, "/rounds", "").Body.String(), ShouldStartWith, "[]")
			So(do(mux, http.MethodGet, "/rounds/2020-01-01T00:00Z", "").Code, ShouldEqual, http.StatusNotFound)
			So(do(mux, http.MethodGet, "/assets", "").Code, ShouldEqual, http.StatusOK)
			So(do(mux, http.MethodGet, "/assets/btc", "").Body.String(), ShouldContainSubstring, `"tier":"legendary"`)
			So(do(mux, http.MethodGet, "/assets/NOPE", "").Code, ShouldEqual, http.StatusNotFound)
			So(do(mux, http.MethodGet, "/stats", "").Code, ShouldEqual, http.StatusOK)
			So(do(mux, http.MethodGet, "/healthz", "").Code, ShouldEqual, http.StatusOK)
			So(do(mux, http.MethodGet, "/rank/ghost", "").Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When limits are out of bounds", func() {
			So(do(mux, http.MethodGet, "/leaderboard?limit=0", "").Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, http.MethodGet, "/leaderboard?limit=51", "").Body.String(), ShouldContainSubstring, "limit_exceeded")
			So(do(mux, http.MethodGet, "/leaderboard", "").Code, ShouldEqual, http.StatusOK)
		})

		Convey("When the wrong method is used", func() {
			So(do(mux, http.MethodGet, "/hands", "").Code, ShouldEqual, http.StatusNotFound)
			So(do(mux, http.MethodPost, "/leaderboard", "").Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestErrors(t *testing.T) {
	Convey("Given operation errors", t, func() {
		cause := errors.New("boom")

		Convey("Then kinds and causes are both matchable", func() {
			err := api.WrapKind("api.op", api.ErrBadRequest, cause)
			So(errors.Is(err, api.ErrBadRequest), ShouldBeTrue)
			So(errors.Is(err, cause), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "api.op: bad request: boom")
		})

		Convey("Then wrapping nil stays nil", func() {
			So(api.Wrap("api.op", nil), ShouldBeNil)
			So(api.NewKind("api.op", api.ErrNotFound).Error(), ShouldEqual, "api.op: not found")
		})
	})
}
