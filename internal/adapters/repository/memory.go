package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/fanspend/internal/domain/model"
)

// MemoryStore is an in-process Store used by tests and the memory driver.
// Everything is lost on exit.
type MemoryStore struct {
	mu  sync.RWMutex
	now func() time.Time

	users      map[string]model.User // by id
	byUsername map[string]string     // username -> id
	operators  map[operatorKey]model.Operator
	sponsors   []model.SponsorEntry
	sponsorSet map[string]struct{}
	txs        map[string]map[string]model.Transaction // user -> tx id -> row
	ledger     map[string][]model.ScoredTransaction
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:        time.Now,
		users:      make(map[string]model.User),
		byUsername: make(map[string]string),
		operators:  make(map[operatorKey]model.Operator),
		sponsorSet: make(map[string]struct{}),
		txs:        make(map[string]map[string]model.Transaction),
		ledger:     make(map[string][]model.ScoredTransaction),
	}
}

func (m *MemoryStore) Close() error { return nil }

func cloneUser(u model.User) model.User {
	p := make(model.UserProfile, len(u.Profile))
	for l, s := range u.Profile {
		p[l] = s
	}
	u.Profile = p
	if u.Teams != nil {
		t := make(map[model.League]string, len(u.Teams))
		for l, name := range u.Teams {
			if name != "" {
				t[l] = name
			}
		}
		u.Teams = t
		if len(t) == 0 {
			u.Teams = nil
		}
	}
	return u
}

func (m *MemoryStore) CreateUser(_ context.Context, u model.User) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.byUsername[u.Username]; taken {
		return model.User{}, fmt.Errorf("user %q: %w", u.Username, ErrDuplicate)
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = m.now().UTC()
	}
	u.CreatedAt = time.UnixMilli(u.CreatedAt.UnixMilli()).UTC()
	u.Profile = mergeProfile(u.Profile, u.Teams)
	u = cloneUser(u)
	m.users[u.ID] = u
	m.byUsername[u.Username] = u.ID
	return cloneUser(u), nil
}

func (m *MemoryStore) UserByUsername(_ context.Context, username string) (model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byUsername[username]
	if !ok {
		return model.User{}, fmt.Errorf("user username=%q: %w", username, ErrNotFound)
	}
	return cloneUser(m.users[id]), nil
}

func (m *MemoryStore) UserByID(_ context.Context, id string) (model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return model.User{}, fmt.Errorf("user id=%q: %w", id, ErrNotFound)
	}
	return cloneUser(u), nil
}

func (m *MemoryStore) UpdateProfile(_ context.Context, userID string, p model.UserProfile, teams map[model.League]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[userID]
	if !ok {
		return fmt.Errorf("user %q: %w", userID, ErrNotFound)
	}
	u.Profile = mergeProfile(p, teams)
	u.Teams = teams
	m.users[userID] = cloneUser(u)
	return nil
}

// mergeProfile copies p and adds NotAFan for leagues that only have a
// favorite team, matching what the SQL store reads back.
func mergeProfile(p model.UserProfile, teams map[model.League]string) model.UserProfile {
	out := make(model.UserProfile, len(p)+len(teams))
	for l, s := range p {
		out[l] = s
	}
	for l := range teams {
		if _, ok := out[l]; !ok {
			out[l] = model.NotAFan
		}
	}
	return out
}

func (m *MemoryStore) UserIDs(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.byUsername))
	for name := range m.byUsername {
		names = append(names, name)
	}
	sort.Strings(names)
	ids := make([]string, len(names))
	for i, name := range names {
		ids[i] = m.byUsername[name]
	}
	return ids, nil
}

type operatorKey struct {
	role  model.Role
	login string
}

func (m *MemoryStore) CreateOperator(_ context.Context, o model.Operator) (model.Operator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := operatorKey{o.Role, o.Login}
	if _, taken := m.operators[key]; taken {
		return model.Operator{}, fmt.Errorf("%s %q: %w", o.Role, o.Login, ErrDuplicate)
	}
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = m.now().UTC()
	}
	o.CreatedAt = time.UnixMilli(o.CreatedAt.UnixMilli()).UTC()
	m.operators[key] = o
	return o, nil
}

func (m *MemoryStore) OperatorByLogin(_ context.Context, role model.Role, login string) (model.Operator, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	o, ok := m.operators[operatorKey{role, login}]
	if !ok {
		return model.Operator{}, fmt.Errorf("%s %q: %w", role, login, ErrNotFound)
	}
	return o, nil
}

func (m *MemoryStore) ListSponsors(_ context.Context) ([]model.SponsorEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]model.SponsorEntry(nil), m.sponsors...), nil
}

func (m *MemoryStore) UpsertSponsors(_ context.Context, entries []model.SponsorEntry) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inserted := 0
	for _, e := range entries {
		if _, dup := m.sponsorSet[e.MerchantName]; dup {
			continue
		}
		m.sponsorSet[e.MerchantName] = struct{}{}
		m.sponsors = append(m.sponsors, e)
		inserted++
	}
	return inserted, nil
}

func (m *MemoryStore) UpsertTransactions(_ context.Context, userID string, txs []model.Transaction) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[userID]; !ok {
		return 0, fmt.Errorf("user %q: %w", userID, ErrNotFound)
	}
	rows := m.txs[userID]
	if rows == nil {
		rows = make(map[string]model.Transaction)
		m.txs[userID] = rows
	}
	for _, t := range txs {
		if old, ok := rows[t.ID]; ok {
			old.Amount, old.Date = t.Amount, t.Date
			rows[t.ID] = old
			continue
		}
		rows[t.ID] = cloneTx(t)
	}
	return len(txs), nil
}

func cloneTx(t model.Transaction) model.Transaction {
	if t.Extra != nil {
		extra := make(map[string]json.RawMessage, len(t.Extra))
		for k, v := range t.Extra {
			extra[k] = append(json.RawMessage(nil), v...)
		}
		t.Extra = extra
	}
	return t
}

func (m *MemoryStore) TransactionsForUser(_ context.Context, userID string) ([]model.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.Transaction, 0, len(m.txs[userID]))
	for _, t := range m.txs[userID] {
		out = append(out, cloneTx(t))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date > out[j].Date
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MemoryStore) ReplacePoints(_ context.Context, userID string, scored []model.ScoredTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[userID]; !ok {
		return fmt.Errorf("user %q: %w", userID, ErrNotFound)
	}
	m.ledger[userID] = append([]model.ScoredTransaction(nil), scored...)
	return nil
}

func (m *MemoryStore) PointsForUser(_ context.Context, userID string) (model.Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sum := model.Summary{ByLeague: make(map[model.League]int64)}
	for _, st := range m.ledger[userID] {
		sum.TotalPoints += st.Points
		sum.ByLeague[st.League] += st.Points
	}
	return sum, nil
}

func (m *MemoryStore) Leaderboard(_ context.Context, league model.League, limit int) ([]model.LeaderboardEntry, error) {
	if limit < 1 {
		return nil, ErrInvalidLimit
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.LeaderboardEntry
	for userID, rows := range m.ledger {
		var pts int64
		n := 0
		for _, st := range rows {
			if league == "" || st.League == league {
				pts += st.Points
				n++
			}
		}
		if n == 0 {
			continue
		}
		out = append(out, model.LeaderboardEntry{UserID: userID, Username: m.users[userID].Username, Points: pts})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Points != out[j].Points {
			return out[i].Points > out[j].Points
		}
		return out[i].Username < out[j].Username
	})
	if len(out) > limit {
		out = out[:limit]
	}
	for i := range out {
		out[i].Rank = i + 1
	}
	return out, nil
}

func (m *MemoryStore) SpendingByTeam(_ context.Context) ([]model.TeamSpending, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	totals := make(map[string]float64)
	for userID, u := range m.users {
		for _, team := range u.Teams {
			if team == "" || len(m.txs[userID]) == 0 {
				continue
			}
			for _, t := range m.txs[userID] {
				totals[team] += t.Amount
			}
		}
	}
	out := make([]model.TeamSpending, 0, len(totals))
	for team, total := range totals {
		out = append(out, model.TeamSpending{Team: team, TotalSpending: total})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalSpending != out[j].TotalSpending {
			return out[i].TotalSpending > out[j].TotalSpending
		}
		return out[i].Team < out[j].Team
	})
	return out, nil
}

func (m *MemoryStore) CountByPaymentChannel(_ context.Context, team string) ([]model.ChannelCount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make(map[string]int64)
	for userID, rows := range m.txs {
		if team != "" && !fanOf(m.users[userID], team) {
			continue
		}
		for _, t := range rows {
			counts[t.PaymentChannel]++
		}
	}
	out := make([]model.ChannelCount, 0, len(counts))
	for ch, n := range counts {
		out = append(out, model.ChannelCount{PaymentChannel: ch, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].PaymentChannel < out[j].PaymentChannel
	})
	return out, nil
}

func fanOf(u model.User, team string) bool {
	for _, t := range u.Teams {
		if t == team {
			return true
		}
	}
	return false
}

func (m *MemoryStore) Counts(_ context.Context) (Counts, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c := Counts{Users: int64(len(m.users)), Sponsors: int64(len(m.sponsors))}
	for _, rows := range m.txs {
		c.Transactions += int64(len(rows))
	}
	for _, rows := range m.ledger {
		c.LedgerRows += int64(len(rows))
	}
	return c, nil
}
