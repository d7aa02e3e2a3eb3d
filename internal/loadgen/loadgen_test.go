package loadgen

import (
	"context"
	"errors"
	"math"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	. "github.com/smartystreets/goconvey/convey"
	"golang.org/x/crypto/bcrypt"

	"github.com/okian/fanspend/internal/adapters/http/api"
	"github.com/okian/fanspend/internal/adapters/repository"
	service "github.com/okian/fanspend/internal/app"
	"github.com/okian/fanspend/internal/domain/model"
	"github.com/okian/fanspend/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func TestGenerator(t *testing.T) {
	Convey("Given two generators with the same seed", t, func() {
		a := NewGenerator(42, 30).Generate(200)
		b := NewGenerator(42, 30).Generate(200)

		Convey("Then they produce the same merchants and amounts", func() {
			for i := range a {
				So(a[i].MerchantName, ShouldEqual, b[i].MerchantName)
				So(a[i].Amount, ShouldEqual, b[i].Amount)
				So(a[i].Date, ShouldEqual, b[i].Date)
			}
		})

		Convey("Then rows look like aggregator output", func() {
			ids := map[string]bool{}
			for i, r := range a {
				So(r.TransactionID, ShouldNotBeBlank)
				So(ids[r.TransactionID], ShouldBeFalse)
				ids[r.TransactionID] = true
				So(math.Abs(r.Amount), ShouldBeBetweenOrEqual, 1, 200)
				So(r.Currency, ShouldEqual, "USD")
				if i > 0 {
					So(r.Date <= a[i-1].Date, ShouldBeTrue)
				}
			}
		})
	})

	Convey("Batches splits rows into bounded chunks", t, func() {
		rows := NewGenerator(7, 1).Generate(23)
		batches := Batches(rows, 10)
		So(len(batches), ShouldEqual, 3)
		So(len(batches[2]), ShouldEqual, 3)
		So(Batches(nil, 10), ShouldBeEmpty)
		So(len(Batches(rows, 0)), ShouldEqual, 1)
	})
}

func TestVerify(t *testing.T) {
	Convey("Given a consistent fan-spend response", t, func() {
		fs := FanSpend{
			Summary: Summary{Total: 110, ByLeague: map[string]int64{"NBA": 100, "NFL": 10}},
			Transactions: []ScoredRow{
				{TransactionID: "t1", MatchedSponsor: "Nike", League: "NBA", Points: 100, Multiplier: 2},
				{TransactionID: "t2", MatchedSponsor: "Pepsi", League: "NFL", Points: 10, Multiplier: 1},
			},
		}

		Convey("Then it verifies", func() {
			So(Verify(fs), ShouldBeNil)
			So(VerifyLedger(fs, fs.Summary), ShouldBeNil)
		})

		Convey("Then a zero-point row is rejected", func() {
			fs.Transactions[1].Points = 0
			So(errors.Is(Verify(fs), ErrInvariant), ShouldBeTrue)
		})

		Convey("Then a league total mismatch is rejected", func() {
			fs.Summary.ByLeague["NBA"] = 99
			So(errors.Is(Verify(fs), ErrInvariant), ShouldBeTrue)
		})

		Convey("Then a lagging ledger is rejected", func() {
			So(errors.Is(VerifyLedger(fs, Summary{Total: 100, ByLeague: map[string]int64{"NBA": 100}}), ErrInvariant), ShouldBeTrue)
		})
	})
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	ctx := context.Background()
	store := repository.NewMemoryStore()
	_, err := store.UpsertSponsors(ctx, []model.SponsorEntry{
		{MerchantName: "Nike", League: model.NBA},
		{MerchantName: "Pepsi", League: model.NFL},
		{MerchantName: "Starbucks", League: model.MLB},
		{MerchantName: "Gatorade", League: model.NFL},
	})
	if err != nil {
		t.Fatal(err)
	}

	svc := service.New(store,
		service.WithBcryptCost(bcrypt.MinCost),
		service.WithWorkerCount(2),
		service.WithRefreshCron(""),
	)
	if err := svc.Start(ctx); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = svc.Stop(ctx) })

	r := mux.NewRouter()
	api.NewServer(svc, svc).Register(ctx, r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestRun(t *testing.T) {
	Convey("Given a running server with a few sponsors", t, func() {
		srv := newServer(t)
		cfg := DefaultConfig()
		cfg.BaseURL = srv.URL
		cfg.Transactions = 120
		cfg.BatchSize = 25
		cfg.Workers = 4
		cfg.Seed = 9
		cfg.Settle = 10 * time.Second
		cfg.PollInterval = 20 * time.Millisecond
		ctx := context.Background()

		Convey("When the simulation runs", func() {
			stats, err := Run(ctx, cfg)

			Convey("Then every row is accepted and the invariants hold", func() {
				So(err, ShouldBeNil)
				So(stats.Generated, ShouldEqual, 120)
				So(stats.Batches, ShouldEqual, 5)
				So(stats.Accepted, ShouldEqual, 120)
				So(stats.Failed, ShouldEqual, 0)
				So(stats.Scored, ShouldBeGreaterThan, 0)
				So(stats.Total, ShouldBeGreaterThan, 0)
			})

			Convey("And a second run logs the same user back in", func() {
				So(err, ShouldBeNil)
				again, err := Run(ctx, cfg)
				So(err, ShouldBeNil)
				So(again.Accepted, ShouldEqual, 120)
				So(again.Scored, ShouldBeGreaterThan, stats.Scored)
			})
		})
	})

	Convey("Given nothing listening", t, func() {
		cfg := DefaultConfig()
		cfg.BaseURL = "http://127.0.0.1:1"
		cfg.Timeout = time.Second

		Convey("Then the health check fails", func() {
			_, err := Run(context.Background(), cfg)
			So(errors.Is(err, ErrUnhealthy), ShouldBeTrue)
		})
	})
}
