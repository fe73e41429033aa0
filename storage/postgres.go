package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/johnwmail/pastelite/models"
)

const pastesTable = "pastes"

const postgresSchema = `
CREATE TABLE IF NOT EXISTS pastes (
	id          TEXT PRIMARY KEY,
	content     TEXT NOT NULL,
	max_views   INTEGER NULL CHECK (max_views >= 1),
	view_count  INTEGER NOT NULL DEFAULT 0 CHECK (view_count >= 0),
	expires_at  TIMESTAMPTZ NULL,
	created_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS pastes_expires_at_idx ON pastes (expires_at) WHERE expires_at IS NOT NULL;
`

// pqUniqueViolation is the SQLSTATE for unique_violation
const pqUniqueViolation = "23505"

// PostgresStore implements PasteStore on a single "pastes" table
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore connects and applies the schema
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(ctx, postgresSchema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) Store(ctx context.Context, paste *models.Paste) error {
	_, err := p.db.NamedExecContext(ctx,
		`INSERT INTO `+pastesTable+` (id, content, max_views, view_count, expires_at, created_at)
		 VALUES (:id, :content, :max_views, :view_count, :expires_at, :created_at)`, paste)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
		return ErrDuplicateID
	}
	return err
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*models.Paste, error) {
	var paste models.Paste
	err := p.db.GetContext(ctx, &paste,
		`SELECT id, content, max_views, view_count, expires_at, created_at
		 FROM `+pastesTable+` WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &paste, nil
}

// IncrementViewAndFetch relies on the row lock taken by UPDATE; RETURNING
// yields the post-increment row in the same statement.
func (p *PostgresStore) IncrementViewAndFetch(ctx context.Context, id string) (*models.Paste, error) {
	var paste models.Paste
	err := p.db.GetContext(ctx, &paste,
		`UPDATE `+pastesTable+` SET view_count = view_count + 1 WHERE id = $1
		 RETURNING id, content, max_views, view_count, expires_at, created_at`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &paste, nil
}

func (p *PostgresStore) Delete(ctx context.Context, id string) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM `+pastesTable+` WHERE id = $1`, id)
	return err
}

// DeleteExpired removes rows whose expiry has passed
func (p *PostgresStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := p.db.ExecContext(ctx,
		`DELETE FROM `+pastesTable+` WHERE expires_at IS NOT NULL AND expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *PostgresStore) Close() error {
	return p.db.Close()
}
