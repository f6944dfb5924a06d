/*
Package sqlite provides a SQLite-backed implementation of the tracker stores.

PURPOSE:
  Implements tracker.Store (entries, users, authorization links, related
  users) using SQLite. The same schema ports to PostgreSQL with minor
  dialect changes.

INTERFACES IMPLEMENTED:
  tracker.EntryStore: Tracking entries by user, period and daytype
  tracker.UserStore:  User records
  tracker.LinkStore:  Authorization links and related users

KEY TABLES:
  users:                 Employees, managers and their shift configuration
  tracking_entries:      One row per user per tracked day (by convention)
  authorization_links:   One row per administrator
  authorization_members: Link membership (many-to-many)
  related_users:         Supplemental visibility (many-to-many)

INDEXES:
  - idx_entries_user_date: every balance query filters on user and date
  - idx_entries_user_daytype_date: daytype counts and sick lookbacks
  - idx_members_user: administrator resolution walks links by member

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) so readers don't block
  each other and a single writer proceeds at a time.

USAGE:
  store, err := sqlite.New("./data/timetracker.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := tracker.NewEngine(store)

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - tracker/store.go: Interface definitions
  - store/memory: In-memory implementation for tests and demos
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/timetracker/generic"
	"github.com/warp/timetracker/tracker"
)

// Store implements tracker.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ tracker.Store = (*Store)(nil)

const (
	dateLayout  = "2006-01-02"
	clockLayout = "%02d:%02d"
)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// every :memory: connection is its own database
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection, for health endpoints.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		role TEXT NOT NULL,
		market TEXT NOT NULL DEFAULT '',
		process TEXT NOT NULL DEFAULT '',
		job_code TEXT NOT NULL DEFAULT '',
		start_date TEXT,
		shift TEXT NOT NULL DEFAULT '00:00',
		break TEXT NOT NULL DEFAULT '00:00',
		holiday_balance INTEGER NOT NULL DEFAULT 0,
		disabled BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_users_last_name
		ON users(last_name);

	-- One entry per user per day is a convention, not a constraint
	CREATE TABLE IF NOT EXISTS tracking_entries (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		entry_date TEXT NOT NULL,
		daytype TEXT NOT NULL,
		start_time TEXT NOT NULL DEFAULT '00:00',
		end_time TEXT NOT NULL DEFAULT '00:00',
		breaks TEXT NOT NULL DEFAULT '00:00',
		comment TEXT,
		linked_to TEXT,
		created_at TEXT NOT NULL
	);

	-- Balance queries (hot path)
	CREATE INDEX IF NOT EXISTS idx_entries_user_date
		ON tracking_entries(user_id, entry_date);

	-- Daytype counts and sick lookbacks
	CREATE INDEX IF NOT EXISTS idx_entries_user_daytype_date
		ON tracking_entries(user_id, daytype, entry_date);

	CREATE TABLE IF NOT EXISTS authorization_links (
		id TEXT PRIMARY KEY,
		admin_id TEXT NOT NULL UNIQUE,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS authorization_members (
		link_id TEXT NOT NULL REFERENCES authorization_links(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL,
		PRIMARY KEY (link_id, user_id)
	);

	CREATE INDEX IF NOT EXISTS idx_members_user
		ON authorization_members(user_id);

	CREATE TABLE IF NOT EXISTS related_users (
		admin_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		PRIMARY KEY (admin_id, user_id)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// ENTRY STORE (tracker.EntryStore interface)
// =============================================================================

const entryColumns = `id, user_id, entry_date, daytype, start_time, end_time, breaks, comment, linked_to`

// Entries returns the user's entries matching the filter, ordered by date.
func (s *Store) Entries(ctx context.Context, userID generic.UserID, filter tracker.EntryFilter) ([]tracker.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + entryColumns + ` FROM tracking_entries WHERE user_id = ?`
	args := []any{string(userID)}

	if p, ok := filter.Period.Bounds(); ok {
		query += ` AND entry_date >= ? AND entry_date <= ?`
		args = append(args, p.Start.Time.Format(dateLayout), p.End.Time.Format(dateLayout))
	}
	if filter.Daytypes != nil {
		if len(filter.Daytypes) == 0 {
			return []tracker.Entry{}, nil
		}
		placeholders := make([]string, len(filter.Daytypes))
		for i, d := range filter.Daytypes {
			placeholders[i] = "?"
			args = append(args, string(d))
		}
		query += ` AND daytype IN (` + strings.Join(placeholders, ", ") + `)`
	}
	query += ` ORDER BY entry_date ASC, created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	entries := []tracker.Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *Store) GetEntry(ctx context.Context, id generic.EntryID) (*tracker.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM tracking_entries WHERE id = ?`, string(id))
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &generic.NotFoundError{Kind: generic.ErrEntryNotFound, ID: string(id)}
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// SaveEntry inserts or replaces an entry.
func (s *Store) SaveEntry(ctx context.Context, e tracker.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO tracking_entries
		(id, user_id, entry_date, daytype, start_time, end_time, breaks, comment, linked_to, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			entry_date = excluded.entry_date,
			daytype = excluded.daytype,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			breaks = excluded.breaks,
			comment = excluded.comment,
			linked_to = excluded.linked_to
	`

	_, err := s.db.ExecContext(ctx, query,
		string(e.ID),
		string(e.UserID),
		e.Date.Time.Format(dateLayout),
		string(e.Daytype),
		formatClock(e.Start),
		formatClock(e.End),
		formatClock(e.Breaks),
		nullString(e.Comment),
		nullString(string(e.LinkedTo)),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to save entry: %w", err)
	}
	return nil
}

func (s *Store) DeleteEntry(ctx context.Context, id generic.EntryID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM tracking_entries WHERE id = ?", string(id))
	if err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &generic.NotFoundError{Kind: generic.ErrEntryNotFound, ID: string(id)}
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (tracker.Entry, error) {
	var (
		e                        tracker.Entry
		id, userID, date, dtype  string
		start, end, breaks       string
		comment, linkedTo        sql.NullString
	)
	if err := row.Scan(&id, &userID, &date, &dtype, &start, &end, &breaks, &comment, &linkedTo); err != nil {
		return e, err
	}

	day, err := generic.ParseDate(date)
	if err != nil {
		return e, fmt.Errorf("entry %s: %w", id, err)
	}
	e.ID = generic.EntryID(id)
	e.UserID = generic.UserID(userID)
	e.Date = day
	e.Daytype = tracker.Daytype(dtype)
	e.Start = parseClock(start)
	e.End = parseClock(end)
	e.Breaks = parseClock(breaks)
	e.Comment = comment.String
	e.LinkedTo = generic.EntryID(linkedTo.String)
	return e, nil
}

// =============================================================================
// USER STORE (tracker.UserStore interface)
// =============================================================================

const userColumns = `id, email, first_name, last_name, role, market, process, job_code,
	start_date, shift, break, holiday_balance, disabled`

// SaveUser inserts or updates a user.
func (s *Store) SaveUser(ctx context.Context, u tracker.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO users (` + userColumns + `, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			email = excluded.email,
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			role = excluded.role,
			market = excluded.market,
			process = excluded.process,
			job_code = excluded.job_code,
			start_date = excluded.start_date,
			shift = excluded.shift,
			break = excluded.break,
			holiday_balance = excluded.holiday_balance,
			disabled = excluded.disabled
	`

	var startDate sql.NullString
	if !u.StartDate.IsZero() {
		startDate = nullString(u.StartDate.Time.Format(dateLayout))
	}

	_, err := s.db.ExecContext(ctx, query,
		string(u.ID), u.Email, u.FirstName, u.LastName, string(u.Role),
		u.Market, u.Process, u.JobCode,
		startDate,
		formatClock(u.Shift), formatClock(u.Break),
		u.HolidayBalance, u.Disabled,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by ID.
func (s *Store) GetUser(ctx context.Context, id generic.UserID) (*tracker.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, string(id))
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &generic.NotFoundError{Kind: generic.ErrUserNotFound, ID: string(id)}
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// UsersByID returns the known users among ids, ordered by last name.
func (s *Store) UsersByID(ctx context.Context, ids []generic.UserID) ([]tracker.User, error) {
	if len(ids) == 0 {
		return []tracker.User{}, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = string(id)
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE id IN (` + strings.Join(placeholders, ", ") + `) ORDER BY last_name, id`
	return s.queryUsers(ctx, query, args...)
}

// ListUsers returns all users ordered by last name.
func (s *Store) ListUsers(ctx context.Context) ([]tracker.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryUsers(ctx, `SELECT `+userColumns+` FROM users ORDER BY last_name, id`)
}

func (s *Store) queryUsers(ctx context.Context, query string, args ...any) ([]tracker.User, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	users := []tracker.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func scanUser(row scanner) (tracker.User, error) {
	var (
		u                 tracker.User
		id, role          string
		startDate         sql.NullString
		shift, breakTime  string
	)
	err := row.Scan(&id, &u.Email, &u.FirstName, &u.LastName, &role,
		&u.Market, &u.Process, &u.JobCode,
		&startDate, &shift, &breakTime, &u.HolidayBalance, &u.Disabled)
	if err != nil {
		return u, err
	}

	u.ID = generic.UserID(id)
	u.Role = tracker.Role(role)
	u.Shift = parseClock(shift)
	u.Break = parseClock(breakTime)
	if startDate.Valid {
		u.StartDate, _ = generic.ParseDate(startDate.String)
	}
	return u, nil
}

// =============================================================================
// LINK STORE (tracker.LinkStore interface)
// =============================================================================

// SaveLink replaces the administrator's link and its membership. An
// administrator owns at most one link.
func (s *Store) SaveLink(ctx context.Context, l tracker.AuthorizationLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if _, err := sqlTx.ExecContext(ctx,
		"DELETE FROM authorization_links WHERE admin_id = ? AND id != ?",
		string(l.Admin), string(l.ID),
	); err != nil {
		return fmt.Errorf("failed to replace link: %w", err)
	}

	if _, err := sqlTx.ExecContext(ctx, `
		INSERT INTO authorization_links (id, admin_id, created_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET admin_id = excluded.admin_id`,
		string(l.ID), string(l.Admin), time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("failed to save link: %w", err)
	}

	if _, err := sqlTx.ExecContext(ctx, "DELETE FROM authorization_members WHERE link_id = ?", string(l.ID)); err != nil {
		return fmt.Errorf("failed to clear link members: %w", err)
	}
	for _, userID := range l.Users {
		if _, err := sqlTx.ExecContext(ctx,
			"INSERT OR IGNORE INTO authorization_members (link_id, user_id) VALUES (?, ?)",
			string(l.ID), string(userID),
		); err != nil {
			return fmt.Errorf("failed to add link member: %w", err)
		}
	}

	return sqlTx.Commit()
}

// LinksForSubordinate returns every link listing the user, ordered by ID.
func (s *Store) LinksForSubordinate(ctx context.Context, userID generic.UserID) ([]tracker.AuthorizationLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT l.id, l.admin_id
		FROM authorization_links l
		JOIN authorization_members m ON m.link_id = l.id
		WHERE m.user_id = ?
		ORDER BY l.id`,
		string(userID),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query links: %w", err)
	}

	links := []tracker.AuthorizationLink{}
	for rows.Next() {
		var id, admin string
		if err := rows.Scan(&id, &admin); err != nil {
			rows.Close()
			return nil, err
		}
		links = append(links, tracker.AuthorizationLink{ID: generic.LinkID(id), Admin: generic.UserID(admin)})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range links {
		if links[i].Users, err = s.members(ctx, "SELECT user_id FROM authorization_members WHERE link_id = ? ORDER BY user_id", string(links[i].ID)); err != nil {
			return nil, err
		}
	}
	return links, nil
}

// LinkForAdmin returns the administrator's link or ErrLinkNotFound.
func (s *Store) LinkForAdmin(ctx context.Context, adminID generic.UserID) (*tracker.AuthorizationLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var id string
	err := s.db.QueryRowContext(ctx, "SELECT id FROM authorization_links WHERE admin_id = ?", string(adminID)).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &generic.NotFoundError{Kind: generic.ErrLinkNotFound, ID: string(adminID)}
	}
	if err != nil {
		return nil, err
	}

	users, err := s.members(ctx, "SELECT user_id FROM authorization_members WHERE link_id = ? ORDER BY user_id", id)
	if err != nil {
		return nil, err
	}
	return &tracker.AuthorizationLink{ID: generic.LinkID(id), Admin: adminID, Users: users}, nil
}

// SaveRelated replaces the administrator's related users.
func (s *Store) SaveRelated(ctx context.Context, r tracker.RelatedUsers) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if _, err := sqlTx.ExecContext(ctx, "DELETE FROM related_users WHERE admin_id = ?", string(r.Admin)); err != nil {
		return fmt.Errorf("failed to clear related users: %w", err)
	}
	for _, userID := range r.Users {
		if _, err := sqlTx.ExecContext(ctx,
			"INSERT OR IGNORE INTO related_users (admin_id, user_id) VALUES (?, ?)",
			string(r.Admin), string(userID),
		); err != nil {
			return fmt.Errorf("failed to add related user: %w", err)
		}
	}
	return sqlTx.Commit()
}

// RelatedForAdmin returns nil, nil when nothing is recorded.
func (s *Store) RelatedForAdmin(ctx context.Context, adminID generic.UserID) (*tracker.RelatedUsers, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users, err := s.members(ctx, "SELECT user_id FROM related_users WHERE admin_id = ? ORDER BY user_id", string(adminID))
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, nil
	}
	return &tracker.RelatedUsers{Admin: adminID, Users: users}, nil
}

func (s *Store) members(ctx context.Context, query string, arg string) ([]generic.UserID, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to query members: %w", err)
	}
	defer rows.Close()

	var ids []generic.UserID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, generic.UserID(id))
	}
	return ids, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"tracking_entries", "authorization_members", "authorization_links", "related_users", "users"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func formatClock(c generic.Clock) string {
	return fmt.Sprintf(clockLayout, c.Hour, c.Minute)
}

func parseClock(s string) generic.Clock {
	c, err := generic.ParseClock(s)
	if err != nil {
		return generic.Clock{}
	}
	return c
}
