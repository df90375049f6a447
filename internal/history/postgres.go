package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema is the SQL DDL for the recordings table. Execute it via
// [PostgresStore.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS recordings (
    id         BIGSERIAL PRIMARY KEY,
    user_id    TEXT NOT NULL,
    page       INTEGER NOT NULL,
    file_path  TEXT NOT NULL DEFAULT '',
    score      INTEGER NOT NULL DEFAULT 0,
    feedback   TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_recordings_user_page ON recordings(user_id, page, created_at DESC);
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Ping(ctx context.Context) error
}

// PostgresStore is a [Store] backed by a PostgreSQL database.
type PostgresStore struct {
	db    DB
	close func()
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore wraps an existing connection or pool. The caller is
// responsible for calling [PostgresStore.Migrate].
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// OpenPostgres connects a pool to dsn, pings it and applies [Schema].
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("history: parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("history: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("history: ping: %w", err)
	}

	s := &PostgresStore{db: pool, close: pool.Close}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Migrate executes the [Schema] DDL.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("history: migrate: %w", err)
	}
	return nil
}

// Ping checks the database connection. It backs the readiness probe.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close releases the pool opened by [OpenPostgres]. It is a no-op for
// stores built with [NewPostgresStore].
func (s *PostgresStore) Close() {
	if s.close != nil {
		s.close()
	}
}

// Save implements [Store].
func (s *PostgresStore) Save(ctx context.Context, rec *Recording) error {
	const query = `
		INSERT INTO recordings (user_id, page, file_path, score, feedback, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	err := s.db.QueryRow(ctx, query,
		rec.UserID, rec.Page, rec.FilePath, rec.Score, rec.Feedback, rec.CreatedAt,
	).Scan(&rec.ID)
	if err != nil {
		return fmt.Errorf("history: save: %w", err)
	}
	return nil
}

// List implements [Store].
func (s *PostgresStore) List(ctx context.Context, userID string, page, limit int) ([]Recording, error) {
	const query = `
		SELECT id, user_id, page, file_path, score, feedback, created_at
		FROM recordings
		WHERE user_id = $1 AND page = $2
		ORDER BY created_at DESC, id DESC
		LIMIT $3`

	rows, err := s.db.Query(ctx, query, userID, page, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("history: list: %w", err)
	}
	defer rows.Close()

	var out []Recording
	for rows.Next() {
		var r Recording
		if err := rows.Scan(&r.ID, &r.UserID, &r.Page, &r.FilePath, &r.Score, &r.Feedback, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: list: %w", err)
	}
	return out, nil
}

// Delete implements [Store].
func (s *PostgresStore) Delete(ctx context.Context, id int64, userID string) (*Recording, error) {
	const query = `
		DELETE FROM recordings
		WHERE id = $1 AND user_id = $2
		RETURNING id, user_id, page, file_path, score, feedback, created_at`

	var r Recording
	err := s.db.QueryRow(ctx, query, id, userID).Scan(
		&r.ID, &r.UserID, &r.Page, &r.FilePath, &r.Score, &r.Feedback, &r.CreatedAt,
	)
	if err == nil {
		return &r, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("history: delete %d: %w", id, err)
	}

	// Nothing deleted: tell a missing row from someone else's.
	var owner string
	err = s.db.QueryRow(ctx, `SELECT user_id FROM recordings WHERE id = $1`, id).Scan(&owner)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	case err != nil:
		return nil, fmt.Errorf("history: delete %d: %w", id, err)
	default:
		return nil, fmt.Errorf("%w: %d", ErrForbidden, id)
	}
}
