package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"           // postgres
	_ "github.com/mattn/go-sqlite3" // sqlite3 (cgo)
	_ "modernc.org/sqlite"          // sqlite (pure Go)

	"github.com/okian/fanspend/internal/domain/model"
)

// SQLStore implements Store on database/sql. Queries are written with ?
// placeholders and rebound for Postgres.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	now     func() time.Time

	maxOpenConns    int
	connMaxLifetime time.Duration
	migrate         bool
	version         int64
}

var _ Store = (*SQLStore)(nil)

// New opens the store selected by driver. The memory driver ignores dsn.
func New(ctx context.Context, driver, dsn string, opts ...Option) (Store, error) {
	if driver == DriverMemory {
		return NewMemoryStore(), nil
	}
	return OpenSQL(ctx, driver, dsn, opts...)
}

// OpenSQL opens a SQL database and applies pending migrations.
func OpenSQL(ctx context.Context, driver, dsn string, opts ...Option) (*SQLStore, error) {
	d, ok := dialectFor(driver)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}
	s := &SQLStore{dialect: d, now: time.Now, maxOpenConns: 10, migrate: true}
	for _, opt := range opts {
		opt(s)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if d.sqlite() {
		// One connection keeps :memory: databases alive and avoids
		// SQLITE_BUSY between pooled writers.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(s.maxOpenConns)
	}
	if s.connMaxLifetime > 0 {
		db.SetConnMaxLifetime(s.connMaxLifetime)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	if d.sqlite() {
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("enable foreign keys: %w", err)
		}
	}
	s.db = db

	if s.migrate {
		v, err := migrateUp(ctx, db, d)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		s.version = v
	}
	return s, nil
}

// SchemaVersion is the goose version after open, 0 if migrations were
// skipped.
func (s *SQLStore) SchemaVersion() int64 { return s.version }

// Close closes the database.
func (s *SQLStore) Close() error { return s.db.Close() }

func (s *SQLStore) exec(ctx context.Context, q execer, query string, args ...any) (sql.Result, error) {
	return q.ExecContext(ctx, s.dialect.rebind(query), args...)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLStore) query(ctx context.Context, q execer, query string, args ...any) (*sql.Rows, error) {
	return q.QueryContext(ctx, s.dialect.rebind(query), args...)
}

func (s *SQLStore) queryRow(ctx context.Context, q execer, query string, args ...any) *sql.Row {
	return q.QueryRowContext(ctx, s.dialect.rebind(query), args...)
}

func (s *SQLStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || // sqlite
		strings.Contains(msg, "duplicate key") // postgres
}

// Users

func (s *SQLStore) CreateUser(ctx context.Context, u model.User) (model.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now().UTC()
	}

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := s.queryRow(ctx, tx, `SELECT COUNT(*) FROM users WHERE username = ?`, u.Username).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check username: %w", err)
		}
		if exists > 0 {
			return fmt.Errorf("user %q: %w", u.Username, ErrDuplicate)
		}
		_, err = s.exec(ctx, tx,
			`INSERT INTO users (id, username, email, password_hash, created_at) VALUES (?, ?, ?, ?, ?)`,
			u.ID, u.Username, u.Email, u.PasswordHash, u.CreatedAt.UnixMilli())
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("user %q: %w", u.Username, ErrDuplicate)
			}
			return fmt.Errorf("insert user: %w", err)
		}
		return s.writeProfile(ctx, tx, u.ID, u.Profile, u.Teams)
	})
	if err != nil {
		return model.User{}, err
	}
	u.CreatedAt = time.UnixMilli(u.CreatedAt.UnixMilli()).UTC()
	return u, nil
}

func (s *SQLStore) writeProfile(ctx context.Context, tx *sql.Tx, userID string, p model.UserProfile, teams map[model.League]string) error {
	if _, err := s.exec(ctx, tx, `DELETE FROM user_leagues WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("clear profile: %w", err)
	}
	leagues := make(map[model.League]struct{}, len(p)+len(teams))
	for l := range p {
		leagues[l] = struct{}{}
	}
	for l := range teams {
		leagues[l] = struct{}{}
	}
	for l := range leagues {
		_, err := s.exec(ctx, tx,
			`INSERT INTO user_leagues (user_id, league, fan_status, favorite_team) VALUES (?, ?, ?, ?)`,
			userID, string(l), p[l].String(), teams[l])
		if err != nil {
			return fmt.Errorf("insert profile %s: %w", l, err)
		}
	}
	return nil
}

func (s *SQLStore) UserByUsername(ctx context.Context, username string) (model.User, error) {
	return s.userWhere(ctx, "username", username)
}

func (s *SQLStore) UserByID(ctx context.Context, id string) (model.User, error) {
	return s.userWhere(ctx, "id", id)
}

func (s *SQLStore) userWhere(ctx context.Context, column, value string) (model.User, error) {
	var (
		u       model.User
		created int64
	)
	err := s.queryRow(ctx, s.db,
		`SELECT id, username, email, password_hash, created_at FROM users WHERE `+column+` = ?`, value).
		Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, fmt.Errorf("user %s=%q: %w", column, value, ErrNotFound)
	}
	if err != nil {
		return model.User{}, fmt.Errorf("select user: %w", err)
	}
	u.CreatedAt = time.UnixMilli(created).UTC()

	rows, err := s.query(ctx, s.db,
		`SELECT league, fan_status, favorite_team FROM user_leagues WHERE user_id = ?`, u.ID)
	if err != nil {
		return model.User{}, fmt.Errorf("select profile: %w", err)
	}
	defer func() { _ = rows.Close() }()

	u.Profile = make(model.UserProfile)
	for rows.Next() {
		var league, status, team string
		if err := rows.Scan(&league, &status, &team); err != nil {
			return model.User{}, fmt.Errorf("scan profile: %w", err)
		}
		l, ok := model.ParseLeague(league)
		if !ok {
			continue
		}
		u.Profile[l] = model.ParseFanStatus(status)
		if team != "" {
			if u.Teams == nil {
				u.Teams = make(map[model.League]string)
			}
			u.Teams[l] = team
		}
	}
	return u, rows.Err()
}

func (s *SQLStore) UpdateProfile(ctx context.Context, userID string, p model.UserProfile, teams map[model.League]string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		var exists int
		if err := s.queryRow(ctx, tx, `SELECT COUNT(*) FROM users WHERE id = ?`, userID).Scan(&exists); err != nil {
			return fmt.Errorf("check user: %w", err)
		}
		if exists == 0 {
			return fmt.Errorf("user %q: %w", userID, ErrNotFound)
		}
		return s.writeProfile(ctx, tx, userID, p, teams)
	})
}

func (s *SQLStore) UserIDs(ctx context.Context) ([]string, error) {
	rows, err := s.query(ctx, s.db, `SELECT id FROM users ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("select users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Operators

func (s *SQLStore) CreateOperator(ctx context.Context, o model.Operator) (model.Operator, error) {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = s.now().UTC()
	}
	_, err := s.exec(ctx, s.db,
		`INSERT INTO operators (id, role, login, password_hash, created_at) VALUES (?, ?, ?, ?, ?)`,
		o.ID, string(o.Role), o.Login, o.PasswordHash, o.CreatedAt.UnixMilli())
	if err != nil {
		if isUniqueViolation(err) {
			return model.Operator{}, fmt.Errorf("%s %q: %w", o.Role, o.Login, ErrDuplicate)
		}
		return model.Operator{}, fmt.Errorf("insert operator: %w", err)
	}
	o.CreatedAt = time.UnixMilli(o.CreatedAt.UnixMilli()).UTC()
	return o, nil
}

func (s *SQLStore) OperatorByLogin(ctx context.Context, role model.Role, login string) (model.Operator, error) {
	var (
		o       model.Operator
		r       string
		created int64
	)
	err := s.queryRow(ctx, s.db,
		`SELECT id, role, login, password_hash, created_at FROM operators WHERE role = ? AND login = ?`,
		string(role), login).
		Scan(&o.ID, &r, &o.Login, &o.PasswordHash, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Operator{}, fmt.Errorf("%s %q: %w", role, login, ErrNotFound)
	}
	if err != nil {
		return model.Operator{}, fmt.Errorf("select operator: %w", err)
	}
	o.Role = model.Role(r)
	o.CreatedAt = time.UnixMilli(created).UTC()
	return o, nil
}

// Sponsors

func (s *SQLStore) ListSponsors(ctx context.Context) ([]model.SponsorEntry, error) {
	rows, err := s.query(ctx, s.db, `SELECT merchant_name, league FROM sponsors ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("select sponsors: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.SponsorEntry
	for rows.Next() {
		var e model.SponsorEntry
		var league string
		if err := rows.Scan(&e.MerchantName, &league); err != nil {
			return nil, err
		}
		e.League = model.League(league)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLStore) UpsertSponsors(ctx context.Context, entries []model.SponsorEntry) (int, error) {
	inserted := 0
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var pos int64
		if err := s.queryRow(ctx, tx, `SELECT COALESCE(MAX(position), 0) FROM sponsors`).Scan(&pos); err != nil {
			return fmt.Errorf("sponsor position: %w", err)
		}
		for _, e := range entries {
			res, err := s.exec(ctx, tx,
				`INSERT INTO sponsors (merchant_name, league, position) VALUES (?, ?, ?)
				 ON CONFLICT (merchant_name) DO NOTHING`,
				e.MerchantName, string(e.League), pos+1)
			if err != nil {
				return fmt.Errorf("insert sponsor %q: %w", e.MerchantName, err)
			}
			if n, _ := res.RowsAffected(); n > 0 {
				pos++
				inserted++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// Transactions

func (s *SQLStore) UpsertTransactions(ctx context.Context, userID string, txs []model.Transaction) (int, error) {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		for _, t := range txs {
			extra, err := encodeExtra(t.Extra)
			if err != nil {
				return fmt.Errorf("encode extra for %q: %w", t.ID, err)
			}
			_, err = s.exec(ctx, tx,
				`INSERT INTO transactions
				 (user_id, transaction_id, account_id, merchant_name, name, amount, date, payment_channel, iso_currency_code, extra)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
				 ON CONFLICT (user_id, transaction_id) DO UPDATE SET amount = excluded.amount, date = excluded.date`,
				userID, t.ID, t.AccountID, t.MerchantName, t.Name, t.Amount, t.Date, t.PaymentChannel, t.Currency, extra)
			if err != nil {
				return fmt.Errorf("upsert transaction %q: %w", t.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(txs), nil
}

func (s *SQLStore) TransactionsForUser(ctx context.Context, userID string) ([]model.Transaction, error) {
	rows, err := s.query(ctx, s.db,
		`SELECT transaction_id, account_id, merchant_name, name, amount, date, payment_channel, iso_currency_code, extra
		 FROM transactions WHERE user_id = ? ORDER BY date DESC, transaction_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("select transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Transaction
	for rows.Next() {
		var t model.Transaction
		var extra string
		if err := rows.Scan(&t.ID, &t.AccountID, &t.MerchantName, &t.Name, &t.Amount, &t.Date, &t.PaymentChannel, &t.Currency, &extra); err != nil {
			return nil, err
		}
		if t.Extra, err = decodeExtra(extra); err != nil {
			return nil, fmt.Errorf("decode extra for %q: %w", t.ID, err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func encodeExtra(extra map[string]json.RawMessage) (string, error) {
	if len(extra) == 0 {
		return "", nil
	}
	b, err := json.Marshal(extra)
	return string(b), err
}

func decodeExtra(s string) (map[string]json.RawMessage, error) {
	if s == "" {
		return nil, nil
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, err
	}
	return m, nil
}

// Ledger

func (s *SQLStore) ReplacePoints(ctx context.Context, userID string, scored []model.ScoredTransaction) error {
	at := s.now().UnixMilli()
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := s.exec(ctx, tx, `DELETE FROM points_ledger WHERE user_id = ?`, userID); err != nil {
			return fmt.Errorf("clear ledger: %w", err)
		}
		for _, st := range scored {
			_, err := s.exec(ctx, tx,
				`INSERT INTO points_ledger
				 (user_id, transaction_id, sponsor, league, fan_status, points, multiplier, scored_at)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				userID, st.ID, st.MatchedSponsor, string(st.League), st.FanStatus.String(), st.Points, st.Multiplier, at)
			if err != nil {
				return fmt.Errorf("insert ledger row %q: %w", st.ID, err)
			}
		}
		return nil
	})
}

func (s *SQLStore) PointsForUser(ctx context.Context, userID string) (model.Summary, error) {
	rows, err := s.query(ctx, s.db,
		`SELECT league, SUM(points) FROM points_ledger WHERE user_id = ? GROUP BY league`, userID)
	if err != nil {
		return model.Summary{}, fmt.Errorf("select points: %w", err)
	}
	defer func() { _ = rows.Close() }()

	sum := model.Summary{ByLeague: make(map[model.League]int64)}
	for rows.Next() {
		var league string
		var pts int64
		if err := rows.Scan(&league, &pts); err != nil {
			return model.Summary{}, err
		}
		sum.ByLeague[model.League(league)] = pts
		sum.TotalPoints += pts
	}
	return sum, rows.Err()
}

func (s *SQLStore) Leaderboard(ctx context.Context, league model.League, limit int) ([]model.LeaderboardEntry, error) {
	if limit < 1 {
		return nil, ErrInvalidLimit
	}
	q := `SELECT u.id, u.username, SUM(p.points) AS total
	      FROM points_ledger p JOIN users u ON u.id = p.user_id`
	args := []any{}
	if league != "" {
		q += ` WHERE p.league = ?`
		args = append(args, string(league))
	}
	q += ` GROUP BY u.id, u.username ORDER BY total DESC, u.username LIMIT ?`
	args = append(args, limit)

	rows, err := s.query(ctx, s.db, q, args...)
	if err != nil {
		return nil, fmt.Errorf("select leaderboard: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.LeaderboardEntry
	for rows.Next() {
		e := model.LeaderboardEntry{Rank: len(out) + 1}
		if err := rows.Scan(&e.UserID, &e.Username, &e.Points); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Insights

func (s *SQLStore) SpendingByTeam(ctx context.Context) ([]model.TeamSpending, error) {
	rows, err := s.query(ctx, s.db,
		`SELECT ul.favorite_team, SUM(t.amount) AS total_spending
		 FROM user_leagues ul JOIN transactions t ON t.user_id = ul.user_id
		 WHERE ul.favorite_team <> ''
		 GROUP BY ul.favorite_team
		 ORDER BY total_spending DESC, ul.favorite_team`)
	if err != nil {
		return nil, fmt.Errorf("select spending by team: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.TeamSpending
	for rows.Next() {
		var ts model.TeamSpending
		if err := rows.Scan(&ts.Team, &ts.TotalSpending); err != nil {
			return nil, err
		}
		out = append(out, ts)
	}
	return out, rows.Err()
}

func (s *SQLStore) CountByPaymentChannel(ctx context.Context, team string) ([]model.ChannelCount, error) {
	q := `SELECT t.payment_channel, COUNT(*) AS transaction_count FROM transactions t`
	var args []any
	if team != "" {
		q += ` WHERE t.user_id IN (SELECT user_id FROM user_leagues WHERE favorite_team = ?)`
		args = append(args, team)
	}
	q += ` GROUP BY t.payment_channel ORDER BY transaction_count DESC, t.payment_channel`

	rows, err := s.query(ctx, s.db, q, args...)
	if err != nil {
		return nil, fmt.Errorf("select channel counts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.ChannelCount
	for rows.Next() {
		var c model.ChannelCount
		if err := rows.Scan(&c.PaymentChannel, &c.Count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLStore) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	for _, item := range []struct {
		table string
		dst   *int64
	}{
		{"users", &c.Users},
		{"sponsors", &c.Sponsors},
		{"transactions", &c.Transactions},
		{"points_ledger", &c.LedgerRows},
	} {
		if err := s.queryRow(ctx, s.db, `SELECT COUNT(*) FROM `+item.table).Scan(item.dst); err != nil {
			return Counts{}, fmt.Errorf("count %s: %w", item.table, err)
		}
	}
	return c, nil
}
