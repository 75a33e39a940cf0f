// Package store persists user accounts in SQLite and answers credential
// checks for the request handlers.
package store

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"xtream-bridge/work/logger"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Transport modes a user account can be set to.
const (
	ModeRedirect = "redirect"
	ModeProxy    = "proxy"
)

// User is one account row. Password holds either a bcrypt hash (recognized
// by its $2 prefix) or, for accounts imported from plain seed files, the
// literal password.
type User struct {
	ID            int64
	Username      string
	Password      string
	PlaylistURL   string // per-account source, empty means the global default
	EPGURL        string // per-account EPG override, empty means playlist url-tvg or global
	TransportMode string
	FilterInclude string
	FilterExclude string
	MaxConns      int
	Enabled       bool
	ExpiresAt     *time.Time
	CreatedAt     time.Time
}

// Store wraps the users database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the SQLite database at path and applies
// pending migrations.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	logger.Info("user database opened at %s", path)
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating migrations table: %w", err)
	}

	entries, err := migrations.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		var version int
		fmt.Sscanf(entry.Name(), "%d_", &version)

		var exists bool
		if err := s.db.QueryRow("SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = ?)", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %s: %w", entry.Name(), err)
		}
		if exists {
			continue
		}

		content, err := migrations.ReadFile(filepath.Join("migrations", entry.Name()))
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning migration transaction: %w", err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %s: %w", entry.Name(), err)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %s: %w", entry.Name(), err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %s: %w", entry.Name(), err)
		}

		logger.Debug("applied migration %s", entry.Name())
	}

	return nil
}

const userColumns = "id, username, password, playlist_url, epg_url, transport_mode, filter_include, filter_exclude, max_connections, enabled, expires_at, created_at"

func scanUser(row *sql.Row) (*User, error) {
	var u User
	var enabled int
	var expires sql.NullTime
	err := row.Scan(&u.ID, &u.Username, &u.Password, &u.PlaylistURL, &u.EPGURL, &u.TransportMode,
		&u.FilterInclude, &u.FilterExclude, &u.MaxConns, &enabled, &expires, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	u.Enabled = enabled != 0
	if expires.Valid {
		t := expires.Time
		u.ExpiresAt = &t
	}
	return &u, nil
}

// GetUser returns the account with the given username, or nil when no such
// account exists.
func (s *Store) GetUser(username string) (*User, error) {
	row := s.db.QueryRow("SELECT "+userColumns+" FROM users WHERE username = ?", username)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading user %q: %w", username, err)
	}
	return u, nil
}

// CreateUser inserts a new account. The password is stored as given, so
// callers hash it first when they want bcrypt at rest.
func (s *Store) CreateUser(u *User) error {
	if u.TransportMode == "" {
		u.TransportMode = ModeRedirect
	}
	if u.MaxConns <= 0 {
		u.MaxConns = 1
	}
	res, err := s.db.Exec(`
		INSERT INTO users (username, password, playlist_url, epg_url, transport_mode, filter_include, filter_exclude, max_connections, enabled, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.Username, u.Password, u.PlaylistURL, u.EPGURL, u.TransportMode,
		u.FilterInclude, u.FilterExclude, u.MaxConns, boolToInt(u.Enabled), u.ExpiresAt)
	if err != nil {
		return fmt.Errorf("creating user %q: %w", u.Username, err)
	}
	u.ID, _ = res.LastInsertId()
	return nil
}

// UpdateUser overwrites the mutable fields of an existing account.
func (s *Store) UpdateUser(u *User) error {
	_, err := s.db.Exec(`
		UPDATE users SET password = ?, playlist_url = ?, epg_url = ?, transport_mode = ?,
			filter_include = ?, filter_exclude = ?, max_connections = ?, enabled = ?, expires_at = ?
		WHERE username = ?`,
		u.Password, u.PlaylistURL, u.EPGURL, u.TransportMode, u.FilterInclude, u.FilterExclude,
		u.MaxConns, boolToInt(u.Enabled), u.ExpiresAt, u.Username)
	if err != nil {
		return fmt.Errorf("updating user %q: %w", u.Username, err)
	}
	return nil
}

// ListActiveUsers returns every enabled account. The background refresh
// uses this to know which playlists to keep warm.
func (s *Store) ListActiveUsers() ([]User, error) {
	rows, err := s.db.Query("SELECT " + userColumns + " FROM users WHERE enabled = 1 ORDER BY username")
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		var enabled int
		var expires sql.NullTime
		err := rows.Scan(&u.ID, &u.Username, &u.Password, &u.PlaylistURL, &u.EPGURL, &u.TransportMode,
			&u.FilterInclude, &u.FilterExclude, &u.MaxConns, &enabled, &expires, &u.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning user row: %w", err)
		}
		u.Enabled = enabled != 0
		if expires.Valid {
			t := expires.Time
			u.ExpiresAt = &t
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// CountUsers returns the number of accounts, enabled or not.
func (s *Store) CountUsers() (int, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM users").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return n, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
