package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/fanspend/internal/adapters/http/api"
	service "github.com/okian/fanspend/internal/app"
	"github.com/okian/fanspend/internal/domain/model"
	"github.com/okian/fanspend/internal/domain/pipeline"
	"github.com/okian/fanspend/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

const (
	goodToken     = "good-token"
	customerToken = "customer-token"
	teamToken     = "team-token"
)

type mockDeps struct {
	registered service.Registration
	ingested   []model.Transaction
	ingestErr  error
	receipt    service.IngestReceipt
	teamAsked  string
	league     string
	limit      int
	updated    model.UserProfile
	failWith   error
}

func (m *mockDeps) Register(_ context.Context, r service.Registration) (service.Session, error) {
	m.registered = r
	if m.failWith != nil {
		return service.Session{}, m.failWith
	}
	if !r.Profile.Eligible() {
		return service.Session{}, service.ErrNotEligible
	}
	return service.Session{Token: goodToken, User: model.User{ID: "u1", Username: r.Username}}, nil
}

func (m *mockDeps) Login(_ context.Context, username, password string) (service.Session, error) {
	if username != "alice" || password != "pw" {
		return service.Session{}, service.ErrInvalidCredentials
	}
	return service.Session{Token: goodToken, User: model.User{ID: "u1", Username: username}}, nil
}

func (m *mockDeps) CustomerLogin(_ context.Context, email, password string) (service.OperatorSession, error) {
	if email != "ops@nike.com" || password != "pw" {
		return service.OperatorSession{}, service.ErrInvalidCredentials
	}
	return service.OperatorSession{Token: customerToken, Operator: model.Operator{ID: "c1", Role: model.RoleCustomer, Login: email}}, nil
}

func (m *mockDeps) TeamLogin(_ context.Context, team, password string) (service.OperatorSession, error) {
	if team != "Lakers" || password != "pw" {
		return service.OperatorSession{}, service.ErrInvalidCredentials
	}
	return service.OperatorSession{Token: teamToken, Operator: model.Operator{ID: "t1", Role: model.RoleTeam, Login: team}}, nil
}

func (m *mockDeps) Authenticate(_ context.Context, token string) (service.Principal, error) {
	switch token {
	case goodToken:
		return service.Principal{ID: "u1", Name: "alice", Role: model.RoleFan}, nil
	case customerToken:
		return service.Principal{ID: "c1", Name: "ops@nike.com", Role: model.RoleCustomer}, nil
	case teamToken:
		return service.Principal{ID: "t1", Name: "Lakers", Role: model.RoleTeam}, nil
	default:
		return service.Principal{}, service.ErrUnauthorized
	}
}

func (m *mockDeps) Profile(_ context.Context, userID string) (model.User, error) {
	return model.User{ID: userID, Username: "alice", Profile: model.UserProfile{model.NBA: model.SuperFan}}, nil
}

func (m *mockDeps) UpdateProfile(_ context.Context, userID string, p model.UserProfile, _ map[model.League]string) (model.User, error) {
	m.updated = p
	return model.User{ID: userID, Profile: p}, nil
}

func (m *mockDeps) Ingest(_ context.Context, _ string, txs []model.Transaction) (service.IngestReceipt, error) {
	m.ingested = txs
	if m.ingestErr != nil {
		return service.IngestReceipt{}, m.ingestErr
	}
	return m.receipt, nil
}

func scored() []model.ScoredTransaction {
	return []model.ScoredTransaction{{
		Transaction:    model.Transaction{ID: "tx-1", MerchantName: "Nike", Amount: 49.99},
		MatchedSponsor: "Nike",
		League:         model.NBA,
		FanStatus:      model.SuperFan,
		Points:         100,
		Multiplier:     2,
		Confidence:     1,
	}}
}

func (m *mockDeps) FanSpend(context.Context, string) (pipeline.Result, error) {
	if m.failWith != nil {
		return pipeline.Result{}, m.failWith
	}
	return pipeline.Result{
		Transactions: scored(),
		Summary:      model.Summary{TotalPoints: 100, ByLeague: map[model.League]int64{model.NBA: 100}},
	}, nil
}

func (m *mockDeps) ScoredTransactions(context.Context, string) ([]model.ScoredTransaction, error) {
	return scored(), nil
}

func (m *mockDeps) Points(context.Context, string) (model.Summary, error) {
	return model.Summary{TotalPoints: 100, ByLeague: map[model.League]int64{model.NBA: 100}}, nil
}

func (m *mockDeps) Leaderboard(_ context.Context, league string, limit int) ([]model.LeaderboardEntry, error) {
	m.league, m.limit = league, limit
	if league == "XFL" {
		return nil, service.ErrInvalidInput
	}
	return []model.LeaderboardEntry{{Rank: 1, UserID: "u1", Username: "alice", Points: 100}}, nil
}

func (m *mockDeps) Sponsors(context.Context) ([]model.SponsorEntry, error) {
	return []model.SponsorEntry{{MerchantName: "Nike", League: model.NBA}}, nil
}

func (m *mockDeps) SpendingByTeam(context.Context) ([]model.TeamSpending, error) {
	return []model.TeamSpending{{Team: "Lakers", TotalSpending: 84.99}}, nil
}

func (m *mockDeps) TransactionsByPaymentChannel(context.Context) ([]model.ChannelCount, error) {
	return []model.ChannelCount{{PaymentChannel: "online", Count: 2}}, nil
}

func (m *mockDeps) TransactionsByTeam(_ context.Context, team string) ([]model.ChannelCount, error) {
	m.teamAsked = team
	return []model.ChannelCount{{PaymentChannel: "in store", Count: 1}}, nil
}

func (m *mockDeps) GetStats(context.Context) map[string]any {
	return map[string]any{"started": true}
}

func newRouter(deps *mockDeps) *mux.Router {
	r := mux.NewRouter()
	api.NewServer(deps, deps).Register(context.Background(), r)
	return r
}

func do(r http.Handler, method, path, body string, authed bool) *httptest.ResponseRecorder {
	token := ""
	if authed {
		token = goodToken
	}
	return doAs(r, method, path, body, token)
}

func doAs(r http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(w *httptest.ResponseRecorder, v any) {
	So(json.Unmarshal(w.Body.Bytes(), v), ShouldBeNil)
}

func TestServer_Public(t *testing.T) {
	Convey("Given a registered router", t, func() {
		deps := &mockDeps{}
		r := newRouter(deps)

		Convey("healthz reports ok", func() {
			w := do(r, http.MethodGet, "/healthz", "", false)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"status":"ok"`)
		})

		Convey("metrics are served", func() {
			w := do(r, http.MethodGet, "/metrics", "", false)
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("stats are served", func() {
			w := do(r, http.MethodGet, "/stats", "", false)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"started":true`)
		})

		Convey("the wrong method is rejected", func() {
			w := do(r, http.MethodDelete, "/healthz", "", false)
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})

		Convey("leaderboard passes league and limit through", func() {
			w := do(r, http.MethodGet, "/api/leaderboard?league=nba&limit=5", "", false)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.league, ShouldEqual, "nba")
			So(deps.limit, ShouldEqual, 5)

			var out []model.LeaderboardEntry
			decode(w, &out)
			So(out, ShouldHaveLength, 1)
		})

		Convey("leaderboard rejects a non-numeric limit and unknown leagues", func() {
			So(do(r, http.MethodGet, "/api/leaderboard?limit=ten", "", false).Code, ShouldEqual, http.StatusBadRequest)
			So(do(r, http.MethodGet, "/api/leaderboard?league=XFL", "", false).Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("insights are served to customers", func() {
			w := doAs(r, http.MethodGet, "/api/total_spending_by_team", "", customerToken)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"favorite_team":"Lakers"`)

			w = doAs(r, http.MethodGet, "/api/transactions_by_payment_channel", "", customerToken)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"transaction_count":2`)

			w = do(r, http.MethodGet, "/api/sponsors", "", false)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "Nike")
		})

		Convey("insights need a customer or team session", func() {
			for _, path := range []string{
				"/api/total_spending_by_team",
				"/api/transactions_by_payment_channel",
				"/api/transactions_by_team?teamName=Lakers",
			} {
				So(do(r, http.MethodGet, path, "", false).Code, ShouldEqual, http.StatusUnauthorized)
				w := do(r, http.MethodGet, path, "", true)
				So(w.Code, ShouldEqual, http.StatusForbidden)
				So(w.Body.String(), ShouldContainSubstring, `"code":"forbidden"`)
			}
		})

		Convey("fan endpoints refuse operator sessions", func() {
			So(doAs(r, http.MethodGet, "/api/points", "", customerToken).Code, ShouldEqual, http.StatusForbidden)
			So(doAs(r, http.MethodPost, "/api/transactions", `[]`, teamToken).Code, ShouldEqual, http.StatusForbidden)
		})

		Convey("transactions_by_team requires teamName from customers", func() {
			w := doAs(r, http.MethodGet, "/api/transactions_by_team", "", customerToken)
			So(w.Code, ShouldEqual, http.StatusBadRequest)

			w = doAs(r, http.MethodGet, "/api/transactions_by_team?teamName=Lakers", "", customerToken)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.teamAsked, ShouldEqual, "Lakers")
		})

		Convey("a team session reads its own team only", func() {
			w := doAs(r, http.MethodGet, "/api/transactions_by_team", "", teamToken)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.teamAsked, ShouldEqual, "Lakers")

			w = doAs(r, http.MethodGet, "/api/transactions_by_team?teamName=Celtics", "", teamToken)
			So(w.Code, ShouldEqual, http.StatusForbidden)
		})
	})
}

func TestServer_Accounts(t *testing.T) {
	Convey("Given a registered router", t, func() {
		deps := &mockDeps{}
		r := newRouter(deps)

		Convey("register accepts per-league form fields", func() {
			body := `{"username":"alice","email":"a@x.io","password":"pw",
				"mlbFanStatus":"Not a Fan","nbaFanStatus":"Super Fan","favoriteNBATeam":"Lakers",
				"nflFanStatus":"Fan"}`
			w := do(r, http.MethodPost, "/register", body, false)
			So(w.Code, ShouldEqual, http.StatusCreated)
			So(deps.registered.Profile[model.NBA], ShouldEqual, model.SuperFan)
			So(deps.registered.Profile[model.NFL], ShouldEqual, model.Fan)
			So(deps.registered.Profile[model.MLB], ShouldEqual, model.NotAFan)
			So(deps.registered.Teams[model.NBA], ShouldEqual, "Lakers")

			var sess service.Session
			decode(w, &sess)
			So(sess.Token, ShouldEqual, goodToken)
		})

		Convey("register accepts profile maps", func() {
			body := `{"username":"bob","password":"pw","profile":{"nfl":"fan"},"favorite_teams":{"NFL":"Bills"}}`
			w := do(r, http.MethodPost, "/register", body, false)
			So(w.Code, ShouldEqual, http.StatusCreated)
			So(deps.registered.Teams[model.NFL], ShouldEqual, "Bills")
		})

		Convey("register without fandom is a 400", func() {
			body := `{"username":"carol","password":"pw","mlbFanStatus":"Not a Fan","nbaFanStatus":"Not a Fan","nflFanStatus":"Not a Fan"}`
			w := do(r, http.MethodPost, "/register", body, false)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(w.Body.String(), ShouldContainSubstring, "not_eligible")
		})

		Convey("register with a team in an unknown league is a 400", func() {
			body := `{"username":"dan","password":"pw","profile":{"NBA":"Fan"},"favorite_teams":{"XFL":"Vipers"}}`
			So(do(r, http.MethodPost, "/register", body, false).Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("a taken username is a 409", func() {
			deps.failWith = service.ErrUsernameTaken
			body := `{"username":"alice","password":"pw","profile":{"NBA":"Fan"}}`
			So(do(r, http.MethodPost, "/register", body, false).Code, ShouldEqual, http.StatusConflict)
		})

		Convey("malformed JSON is a 400", func() {
			So(do(r, http.MethodPost, "/register", "{", false).Code, ShouldEqual, http.StatusBadRequest)
			So(do(r, http.MethodPost, "/login", "", false).Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("login issues a token or a 401", func() {
			w := do(r, http.MethodPost, "/login", `{"username":"alice","password":"pw"}`, false)
			So(w.Code, ShouldEqual, http.StatusOK)

			w = do(r, http.MethodPost, "/login", `{"username":"alice","password":"nope"}`, false)
			So(w.Code, ShouldEqual, http.StatusUnauthorized)
		})

		Convey("customer and team logins issue role tokens or a 401", func() {
			w := do(r, http.MethodPost, "/customer-login", `{"username":"ops@nike.com","password":"pw"}`, false)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, customerToken)
			So(w.Body.String(), ShouldContainSubstring, `"role":"customer"`)

			w = do(r, http.MethodPost, "/team-login", `{"teamName":"Lakers","password":"pw"}`, false)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, teamToken)

			So(do(r, http.MethodPost, "/customer-login", `{"username":"ops@nike.com","password":"x"}`, false).Code,
				ShouldEqual, http.StatusUnauthorized)
			So(do(r, http.MethodPost, "/team-login", `{"teamName":"Celtics","password":"pw"}`, false).Code,
				ShouldEqual, http.StatusUnauthorized)
		})

		Convey("profile needs a valid bearer token", func() {
			So(do(r, http.MethodGet, "/api/profile", "", false).Code, ShouldEqual, http.StatusUnauthorized)

			req := httptest.NewRequest(http.MethodGet, "/api/profile", http.NoBody)
			req.Header.Set("Authorization", "Bearer forged")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			So(w.Code, ShouldEqual, http.StatusUnauthorized)

			w = do(r, http.MethodGet, "/api/profile", "", true)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"NBA":"Super Fan"`)
		})

		Convey("profile can be updated", func() {
			w := do(r, http.MethodPut, "/api/profile", `{"nbaFanStatus":"Fan"}`, true)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.updated[model.NBA], ShouldEqual, model.Fan)
		})
	})
}

func TestServer_Transactions(t *testing.T) {
	Convey("Given a registered router", t, func() {
		deps := &mockDeps{receipt: service.IngestReceipt{Accepted: 2}}
		r := newRouter(deps)

		Convey("ingest requires auth", func() {
			So(do(r, http.MethodPost, "/api/transactions", `[]`, false).Code, ShouldEqual, http.StatusUnauthorized)
		})

		Convey("ingest accepts a bare array", func() {
			body := `[{"transaction_id":"a","merchant_name":"Nike","amount":10},{"transaction_id":"b","merchant_name":"Pepsi","amount":"5.5"}]`
			w := do(r, http.MethodPost, "/api/transactions", body, true)
			So(w.Code, ShouldEqual, http.StatusAccepted)
			So(deps.ingested, ShouldHaveLength, 2)
			So(deps.ingested[1].Amount, ShouldEqual, 5.5)
		})

		Convey("ingest accepts the aggregator envelope", func() {
			body := `{"transactions":[{"transaction_id":"a","merchant_name":"Nike","amount":10}],"total_transactions":1}`
			w := do(r, http.MethodPost, "/api/transactions", body, true)
			So(w.Code, ShouldEqual, http.StatusAccepted)
			So(deps.ingested, ShouldHaveLength, 1)
		})

		Convey("an object without a transactions array is a 400", func() {
			for _, body := range []string{`{}`, `{"transactions":null}`, `null`} {
				w := do(r, http.MethodPost, "/api/transactions", body, true)
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(w.Body.String(), ShouldContainSubstring, "transactions")
			}
			So(deps.ingested, ShouldBeEmpty)
		})

		Convey("an all-duplicate batch is a 200", func() {
			deps.receipt = service.IngestReceipt{Duplicates: 1}
			w := do(r, http.MethodPost, "/api/transactions", `[{"transaction_id":"a"}]`, true)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"status":"duplicate"`)
		})

		Convey("a full queue is a 429", func() {
			deps.ingestErr = service.ErrQueueFull
			w := do(r, http.MethodPost, "/api/transactions", `[{"transaction_id":"a"}]`, true)
			So(w.Code, ShouldEqual, http.StatusTooManyRequests)
		})

		Convey("fan-spend returns summary and transactions", func() {
			w := do(r, http.MethodGet, "/api/transactions_with_sponsors", "", true)
			So(w.Code, ShouldEqual, http.StatusOK)

			var out struct {
				Summary struct {
					Total    int64            `json:"total"`
					ByLeague map[string]int64 `json:"byLeague"`
				} `json:"summary"`
				Transactions []map[string]any `json:"transactions"`
			}
			decode(w, &out)
			So(out.Summary.Total, ShouldEqual, 100)
			So(out.Summary.ByLeague["NBA"], ShouldEqual, 100)
			So(out.Transactions, ShouldHaveLength, 1)
			So(out.Transactions[0]["matched_sponsor"], ShouldEqual, "Nike")
			So(out.Transactions[0]["fanspend_points"], ShouldEqual, 100.0)
		})

		Convey("fan-spend can return the bare list", func() {
			w := do(r, http.MethodGet, "/api/transactions_with_sponsors?summary=false", "", true)
			So(w.Code, ShouldEqual, http.StatusOK)

			var out []map[string]any
			decode(w, &out)
			So(out, ShouldHaveLength, 1)

			So(do(r, http.MethodGet, "/api/transactions_with_sponsors?summary=maybe", "", true).Code,
				ShouldEqual, http.StatusBadRequest)
		})

		Convey("server errors hide their detail", func() {
			deps.failWith = errors.New("db password is hunter2")
			w := do(r, http.MethodGet, "/api/transactions_with_sponsors", "", true)
			So(w.Code, ShouldEqual, http.StatusInternalServerError)
			So(w.Body.String(), ShouldNotContainSubstring, "hunter2")
		})

		Convey("points are served", func() {
			w := do(r, http.MethodGet, "/api/points", "", true)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"total":100`)
		})
	})
}

func TestErrors(t *testing.T) {
	Convey("OpError matches both kind and cause", t, func() {
		cause := errors.New("boom")
		err := api.WrapKind("api.test", api.ErrBadRequest, cause)
		So(errors.Is(err, api.ErrBadRequest), ShouldBeTrue)
		So(errors.Is(err, cause), ShouldBeTrue)
		So(err.Error(), ShouldEqual, "api.test: bad request: boom")

		So(api.Wrap("op", nil), ShouldBeNil)
		So(api.NewKind("op", api.ErrUnauthorized).Error(), ShouldEqual, "op: unauthorized")
	})
}
