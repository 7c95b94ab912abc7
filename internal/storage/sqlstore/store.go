// Package sqlstore implements the storage interfaces on top of sqlx. The SQL is shared by
// the SQLite and PostgreSQL providers; placeholders are rebound per driver.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/julianstephens/streakline/internal/storage"
)

// Dialect captures the few places the drivers differ
type Dialect struct {
	Name string
	// LockClause is appended to the habit SELECT in LockHabit.
	LockClause string
}

var (
	SQLite   = Dialect{Name: "sqlite"}
	Postgres = Dialect{Name: "postgres", LockClause: " FOR UPDATE"}
)

// Repo runs queries against either the pool or an open transaction.
type Repo struct {
	q       sqlx.ExtContext
	dialect Dialect
	inTx    bool
}

var _ storage.Repository = (*Repo)(nil)

// DB wraps a connection pool and hands out transactional repos.
type DB struct {
	*Repo
	db *sqlx.DB
}

func New(db *sqlx.DB, dialect Dialect) *DB {
	return &DB{
		Repo: &Repo{q: db, dialect: dialect},
		db:   db,
	}
}

func (d *DB) Conn() *sqlx.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

// InTx runs fn in a transaction, committing only if fn returns nil.
func (d *DB) InTx(ctx context.Context, fn func(storage.Repository) error) error {
	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(&Repo{q: tx, dialect: d.dialect, inTx: true}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *Repo) get(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	err := sqlx.GetContext(ctx, r.q, dest, r.q.Rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	return err
}

func (r *Repo) selectAll(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return sqlx.SelectContext(ctx, r.q, dest, r.q.Rebind(query), args...)
}

func (r *Repo) exec(ctx context.Context, query string, args ...interface{}) (int64, error) {
	res, err := r.q.ExecContext(ctx, r.q.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Timestamps are stored as RFC3339 text in UTC and days as YYYY-MM-DD,
// so lexical order matches time order on both drivers.

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatNullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTime(field, s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse %s: %w", field, err)
	}
	return t.UTC(), nil
}

func parseNullTime(field string, s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := parseTime(field, s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
