package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"golang.org/x/crypto/bcrypt"

	"github.com/okian/fanspend/internal/adapters/repository"
	service "github.com/okian/fanspend/internal/app"
	"github.com/okian/fanspend/internal/config"
	"github.com/okian/fanspend/internal/domain/model"
	"github.com/okian/fanspend/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func newService(store repository.Store, opts ...service.Option) *service.Service {
	base := []service.Option{
		service.WithBcryptCost(bcrypt.MinCost),
		service.WithWorkerCount(2),
		service.WithQueueSize(100),
		service.WithRefreshCron(""),
	}
	return service.New(store, append(base, opts...)...)
}

func fan() service.Registration {
	return service.Registration{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "hunter2",
		Profile: model.UserProfile{
			model.NBA: model.SuperFan,
			model.NFL: model.Fan,
			model.MLB: model.NotAFan,
		},
		Teams: map[model.League]string{model.NBA: "Lakers"},
	}
}

func TestService_New(t *testing.T) {
	Convey("Given a new service", t, func() {
		svc := newService(repository.NewMemoryStore())

		Convey("Then it reports itself stopped", func() {
			stats := svc.GetStats(context.Background())
			So(stats["started"], ShouldEqual, false)
			So(stats["formula"], ShouldEqual, "simple")
			So(stats["users"], ShouldEqual, int64(0))
		})

		Convey("Then Ingest is refused until Start", func() {
			_, err := svc.Ingest(context.Background(), "u1", []model.Transaction{{ID: "t1"}})
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
		})
	})

	Convey("Given options built from config", t, func() {
		cfg := config.New()
		cfg.ScoringFormula = config.FormulaPerDollar
		cfg.TokenSecret = "secret"
		opts, err := service.OptionsFromConfig(cfg)
		So(err, ShouldBeNil)

		svc := service.New(repository.NewMemoryStore(), opts...)
		So(svc.GetStats(context.Background())["formula"], ShouldEqual, "per_dollar")
	})
}

func TestService_StartStop(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx := context.Background()
		svc := newService(repository.NewMemoryStore(), service.WithRefreshCron("@hourly"))
		So(svc.Start(ctx), ShouldBeNil)

		Convey("Then Start is idempotent and stats show the runtime", func() {
			So(svc.Start(ctx), ShouldBeNil)
			stats := svc.GetStats(ctx)
			So(stats["started"], ShouldEqual, true)
			So(stats["queueLength"], ShouldEqual, 0)
			So(stats["nextRefresh"], ShouldNotBeEmpty)
		})

		Convey("Then Stop shuts it down and a second Stop is a no-op", func() {
			stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			So(svc.Stop(stopCtx), ShouldBeNil)
			So(svc.Started(), ShouldBeFalse)
			So(svc.Stop(stopCtx), ShouldBeNil)
		})
	})

	Convey("Given a service started with a context that is later cancelled", t, func() {
		store := repository.NewMemoryStore()
		_, err := store.UpsertSponsors(context.Background(), sponsors)
		So(err, ShouldBeNil)

		svc := newService(store)
		startCtx, cancelStart := context.WithCancel(context.Background())
		So(svc.Start(startCtx), ShouldBeNil)

		sess, err := svc.Register(context.Background(), fan())
		So(err, ShouldBeNil)
		receipt, err := svc.Ingest(context.Background(), sess.User.ID, batch())
		So(err, ShouldBeNil)
		So(receipt.Accepted, ShouldEqual, 4)
		cancelStart()

		Convey("When the service is stopped", func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			So(svc.Stop(stopCtx), ShouldBeNil)

			Convey("Then the accepted batch was still stored and scored", func() {
				sum, err := svc.Points(context.Background(), sess.User.ID)
				So(err, ShouldBeNil)
				So(sum.TotalPoints, ShouldEqual, 110)
			})
		})
	})

	Convey("A bad cron expression fails Start", t, func() {
		svc := newService(repository.NewMemoryStore(), service.WithRefreshCron("whenever"))
		So(svc.Start(context.Background()), ShouldNotBeNil)
		So(svc.Started(), ShouldBeFalse)
	})
}

func TestService_Accounts(t *testing.T) {
	Convey("Given a service", t, func() {
		ctx := context.Background()
		svc := newService(repository.NewMemoryStore())

		Convey("Registering without any fandom is refused", func() {
			r := fan()
			r.Profile = model.UserProfile{model.NBA: model.NotAFan}
			_, err := svc.Register(ctx, r)
			So(errors.Is(err, service.ErrNotEligible), ShouldBeTrue)
		})

		Convey("Registering without a username or password is invalid", func() {
			r := fan()
			r.Username = "  "
			_, err := svc.Register(ctx, r)
			So(errors.Is(err, service.ErrInvalidInput), ShouldBeTrue)

			r = fan()
			r.Password = ""
			_, err = svc.Register(ctx, r)
			So(errors.Is(err, service.ErrInvalidInput), ShouldBeTrue)
		})

		Convey("Teams for unknown leagues are invalid", func() {
			r := fan()
			r.Teams = map[model.League]string{"XFL": "Vipers"}
			_, err := svc.Register(ctx, r)
			So(errors.Is(err, service.ErrInvalidInput), ShouldBeTrue)
		})

		Convey("When a fan registers", func() {
			sess, err := svc.Register(ctx, fan())
			So(err, ShouldBeNil)
			So(sess.Token, ShouldNotBeEmpty)
			So(sess.User.ID, ShouldNotBeEmpty)

			Convey("The token authenticates as that user", func() {
				p, err := svc.Authenticate(ctx, sess.Token)
				So(err, ShouldBeNil)
				So(p.ID, ShouldEqual, sess.User.ID)
				So(p.Name, ShouldEqual, "alice")
				So(p.Role, ShouldEqual, model.RoleFan)
			})

			Convey("A garbage token is unauthorized", func() {
				_, err := svc.Authenticate(ctx, "nope")
				So(errors.Is(err, service.ErrUnauthorized), ShouldBeTrue)
			})

			Convey("The username cannot be taken twice", func() {
				_, err := svc.Register(ctx, fan())
				So(errors.Is(err, service.ErrUsernameTaken), ShouldBeTrue)
			})

			Convey("Login accepts the right password only", func() {
				_, err := svc.Login(ctx, "alice", "hunter2")
				So(err, ShouldBeNil)

				_, err = svc.Login(ctx, "alice", "wrong")
				So(errors.Is(err, service.ErrInvalidCredentials), ShouldBeTrue)

				_, err = svc.Login(ctx, "bob", "hunter2")
				So(errors.Is(err, service.ErrInvalidCredentials), ShouldBeTrue)
			})

			Convey("The profile can be read back", func() {
				u, err := svc.Profile(ctx, sess.User.ID)
				So(err, ShouldBeNil)
				So(u.Username, ShouldEqual, "alice")
				So(u.Profile[model.NBA], ShouldEqual, model.SuperFan)
				So(u.Teams[model.NBA], ShouldEqual, "Lakers")
				So(u.PasswordHash, ShouldNotEqual, "hunter2")
			})

			Convey("Unknown users are not found", func() {
				_, err := svc.Profile(ctx, "missing")
				So(errors.Is(err, service.ErrNotFound), ShouldBeTrue)
			})
		})
	})
}

func TestService_Operators(t *testing.T) {
	Convey("Given a service", t, func() {
		ctx := context.Background()
		svc := newService(repository.NewMemoryStore())

		Convey("Only customer and team operators can be created", func() {
			_, err := svc.CreateOperator(ctx, model.RoleFan, "alice", "pw")
			So(errors.Is(err, service.ErrInvalidInput), ShouldBeTrue)
			_, err = svc.CreateOperator(ctx, model.RoleTeam, "  ", "pw")
			So(errors.Is(err, service.ErrInvalidInput), ShouldBeTrue)
			_, err = svc.CreateOperator(ctx, model.RoleTeam, "Lakers", "")
			So(errors.Is(err, service.ErrInvalidInput), ShouldBeTrue)
		})

		Convey("When a customer and a team are created", func() {
			_, err := svc.CreateOperator(ctx, model.RoleCustomer, "ops@nike.com", "swoosh")
			So(err, ShouldBeNil)
			_, err = svc.CreateOperator(ctx, model.RoleTeam, " Lakers ", "purple")
			So(err, ShouldBeNil)

			Convey("A login cannot be taken twice for one role", func() {
				_, err := svc.CreateOperator(ctx, model.RoleTeam, "Lakers", "gold")
				So(errors.Is(err, service.ErrUsernameTaken), ShouldBeTrue)
			})

			Convey("Customer login issues a customer token", func() {
				sess, err := svc.CustomerLogin(ctx, "ops@nike.com", "swoosh")
				So(err, ShouldBeNil)
				So(sess.Operator.Role, ShouldEqual, model.RoleCustomer)

				p, err := svc.Authenticate(ctx, sess.Token)
				So(err, ShouldBeNil)
				So(p.Role, ShouldEqual, model.RoleCustomer)
				So(p.Name, ShouldEqual, "ops@nike.com")
			})

			Convey("Team login issues a token naming the team", func() {
				sess, err := svc.TeamLogin(ctx, "Lakers", "purple")
				So(err, ShouldBeNil)

				p, err := svc.Authenticate(ctx, sess.Token)
				So(err, ShouldBeNil)
				So(p.Role, ShouldEqual, model.RoleTeam)
				So(p.Name, ShouldEqual, "Lakers")
			})

			Convey("Wrong passwords, unknown logins and the wrong door are all refused", func() {
				_, err := svc.CustomerLogin(ctx, "ops@nike.com", "nope")
				So(errors.Is(err, service.ErrInvalidCredentials), ShouldBeTrue)
				_, err = svc.TeamLogin(ctx, "Celtics", "purple")
				So(errors.Is(err, service.ErrInvalidCredentials), ShouldBeTrue)
				_, err = svc.CustomerLogin(ctx, "Lakers", "purple")
				So(errors.Is(err, service.ErrInvalidCredentials), ShouldBeTrue)
			})
		})
	})
}

func TestService_Leaderboard(t *testing.T) {
	Convey("Given an empty service", t, func() {
		ctx := context.Background()
		svc := newService(repository.NewMemoryStore())

		Convey("An empty board is an empty list", func() {
			out, err := svc.Leaderboard(ctx, "", 0)
			So(err, ShouldBeNil)
			So(out, ShouldBeEmpty)
			So(out, ShouldNotBeNil)
		})

		Convey("Unknown leagues and bad limits are invalid input", func() {
			_, err := svc.Leaderboard(ctx, "XFL", 10)
			So(errors.Is(err, service.ErrInvalidInput), ShouldBeTrue)

			_, err = svc.Leaderboard(ctx, "nba", 1000)
			So(errors.Is(err, service.ErrInvalidInput), ShouldBeTrue)

			_, err = svc.Leaderboard(ctx, "nba", -1)
			So(errors.Is(err, service.ErrInvalidInput), ShouldBeTrue)
		})

		Convey("TransactionsByTeam needs a team name", func() {
			_, err := svc.TransactionsByTeam(ctx, " ")
			So(errors.Is(err, service.ErrInvalidInput), ShouldBeTrue)
		})
	})
}
