package session

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq" // postgres driver
)

//go:embed migrations/*.sql
var migrations embed.FS

const (
	sqlGetAttr = `SELECT attr_value FROM session_attributes
		WHERE session_id = $1 AND attr_key = $2 AND expires_at > $3`
	sqlUpsertAttr = `INSERT INTO session_attributes (session_id, attr_key, attr_value, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (session_id, attr_key)
		DO UPDATE SET attr_value = EXCLUDED.attr_value, expires_at = EXCLUDED.expires_at`
	sqlTouchSession = `UPDATE session_attributes SET expires_at = $1
		WHERE session_id = $2 AND expires_at > $3`
	sqlDeleteAttr = `DELETE FROM session_attributes WHERE session_id = $1 AND attr_key = $2`
	sqlListKeys   = `SELECT attr_key FROM session_attributes
		WHERE session_id = $1 AND expires_at > $2 ORDER BY attr_key`
	sqlDeleteSession = `DELETE FROM session_attributes WHERE session_id = $1`
	sqlDropExpired   = `DELETE FROM session_attributes WHERE session_id = $1 AND expires_at <= $2`
	sqlPurgeExpired  = `DELETE FROM session_attributes WHERE expires_at <= $1`
)

// PostgresStore keeps one row per session attribute in session_attributes.
// Expired rows are invisible to reads, never extended by Touch, and removed
// by Purge.
type PostgresStore struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// NewPostgresStore opens dsn, verifies the connection and applies pending
// migrations.
func NewPostgresStore(dsn string, ttl time.Duration) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("session: open postgres: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("session: postgres connection failed: %w", err)
	}

	if err := Migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return NewPostgresStoreWithDB(db, ttl), nil
}

// NewPostgresStoreWithDB wraps an open database whose schema is already
// migrated. A non-positive ttl means DefaultTTL.
func NewPostgresStoreWithDB(db *sql.DB, ttl time.Duration) *PostgresStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &PostgresStore{db: db, ttl: ttl, now: time.Now}
}

// Migrate brings the session schema up to date. It is a no-op when the
// schema is current.
func Migrate(db *sql.DB) error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("session: load migrations: %w", err)
	}
	driver, err := migratepg.WithInstance(db, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("session: migrate driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("session: migrate init: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("session: migrate up: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, sessionID, key string) ([]byte, bool, error) {
	if sessionID == "" {
		return nil, false, ErrInvalidSessionID
	}
	var value []byte
	err := s.db.QueryRowContext(ctx, sqlGetAttr, sessionID, key, s.now()).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("session: select %s: %w", key, err)
	}
	return value, true, nil
}

// Put upserts the attribute and extends every live attribute of the session,
// in one transaction. Expired attributes of the session are dropped first so
// a write never revives them.
func (s *PostgresStore) Put(ctx context.Context, sessionID, key string, value []byte) error {
	if sessionID == "" {
		return ErrInvalidSessionID
	}
	now := s.now()
	expires := now.Add(s.ttl)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("session: begin: %w", err)
	}
	if _, err := tx.ExecContext(ctx, sqlDropExpired, sessionID, now); err != nil {
		tx.Rollback()
		return fmt.Errorf("session: drop expired: %w", err)
	}
	if _, err := tx.ExecContext(ctx, sqlUpsertAttr, sessionID, key, value, expires); err != nil {
		tx.Rollback()
		return fmt.Errorf("session: upsert %s: %w", key, err)
	}
	if _, err := tx.ExecContext(ctx, sqlTouchSession, expires, sessionID, now); err != nil {
		tx.Rollback()
		return fmt.Errorf("session: touch: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("session: commit: %w", err)
	}
	return nil
}

func (s *PostgresStore) Remove(ctx context.Context, sessionID, key string) error {
	if sessionID == "" {
		return ErrInvalidSessionID
	}
	if _, err := s.db.ExecContext(ctx, sqlDeleteAttr, sessionID, key); err != nil {
		return fmt.Errorf("session: delete %s: %w", key, err)
	}
	return nil
}

func (s *PostgresStore) Keys(ctx context.Context, sessionID string) ([]string, error) {
	if sessionID == "" {
		return nil, ErrInvalidSessionID
	}
	rows, err := s.db.QueryContext(ctx, sqlListKeys, sessionID, s.now())
	if err != nil {
		return nil, fmt.Errorf("session: list keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("session: scan key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Touch extends the live attributes of the session. Expired rows stay
// expired until Purge removes them.
func (s *PostgresStore) Touch(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return ErrInvalidSessionID
	}
	now := s.now()
	if _, err := s.db.ExecContext(ctx, sqlTouchSession, now.Add(s.ttl), sessionID, now); err != nil {
		return fmt.Errorf("session: touch: %w", err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, sqlDeleteSession, sessionID); err != nil {
		return fmt.Errorf("session: delete session: %w", err)
	}
	return nil
}

// Purge deletes expired rows and returns how many were removed.
func (s *PostgresStore) Purge(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, sqlPurgeExpired, s.now())
	if err != nil {
		return 0, fmt.Errorf("session: purge: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("session: purge: %w", err)
	}
	return int(n), nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
