package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"golang.org/x/crypto/bcrypt"

	"github.com/okian/fanspend/internal/adapters/repository"
	service "github.com/okian/fanspend/internal/app"
	"github.com/okian/fanspend/pkg/logger"
)

func TestBuildRouter(t *testing.T) {
	if err := logger.Init(); err != nil {
		t.Fatal(err)
	}

	Convey("Given a router over a started in-memory service", t, func() {
		ctx := context.Background()
		svc := service.New(repository.NewMemoryStore(),
			service.WithBcryptCost(bcrypt.MinCost),
			service.WithWorkerCount(1),
			service.WithRefreshCron(""),
		)
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		r := buildRouter(ctx, svc)
		get := func(path string) *httptest.ResponseRecorder {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, http.NoBody))
			return w
		}

		Convey("Then the API routes answer", func() {
			w := get("/healthz")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"ok"`)
			So(get("/api/sponsors").Code, ShouldEqual, http.StatusOK)
		})

		Convey("Then protected routes need a token", func() {
			So(get("/api/transactions_with_sponsors").Code, ShouldEqual, http.StatusUnauthorized)
		})

		Convey("Then metrics include runtime collectors once registered", func() {
			w := get("/metrics")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "fanspend_")
		})

		Convey("Then docs and the landing page are mounted", func() {
			So(get("/openapi.yaml").Code, ShouldEqual, http.StatusOK)
			So(get("/api-docs").Code, ShouldEqual, http.StatusOK)
			So(get("/").Code, ShouldEqual, http.StatusOK)
		})
	})
}

func TestRun(t *testing.T) {
	Convey("Given an in-memory configuration on an ephemeral port", t, func() {
		t.Setenv("FANSPEND_DB_DRIVER", "memory")
		t.Setenv("FANSPEND_ADDR", "127.0.0.1:0")
		t.Setenv("FANSPEND_WORKER_COUNT", "1")

		Convey("When the context is cancelled", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
			defer cancel()

			Convey("Then run shuts down cleanly", func() {
				So(run(ctx), ShouldBeNil)
			})
		})
	})

	Convey("Given an invalid configuration", t, func() {
		t.Setenv("FANSPEND_DB_DRIVER", "oracle")

		Convey("Then run reports the offending key", func() {
			err := run(context.Background())
			So(err, ShouldNotBeNil)
			So(strings.Contains(err.Error(), "db_driver"), ShouldBeTrue)
		})
	})
}
