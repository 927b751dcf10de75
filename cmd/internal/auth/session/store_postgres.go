package session

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of pgx used by PostgresManager.
// *pgxpool.Pool satisfies it.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresManager implements Manager over the <schema>.sessions table.
//
// The pool is owned by the caller. PatchSession locks the old row with
// SELECT ... FOR UPDATE, so a concurrent patch of the same token blocks and then
// finds the hash gone.
type PostgresManager struct {
	base

	db    DB
	table string
}

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// NewPostgresManager builds a Postgres-backed registry.
func NewPostgresManager(db DB, cfg Config, opts ...Option) (*PostgresManager, error) {
	if db == nil {
		return nil, fmt.Errorf("%w: nil db", ErrConfig)
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	schema := strings.TrimSpace(o.schema)
	if !pgIdentRe.MatchString(schema) {
		return nil, fmt.Errorf("%w: invalid schema identifier", ErrConfig)
	}

	return &PostgresManager{
		base:  newBase(cfg, o),
		db:    db,
		table: pgx.Identifier{schema, "sessions"}.Sanitize(),
	}, nil
}

func (m *PostgresManager) HasSession(ctx context.Context, tok string) (bool, error) {
	if tok == "" {
		return false, nil
	}

	var ok bool
	err := m.db.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM `+m.table+`
		    WHERE token_hash = $1
		      AND (expires_at IS NULL OR expires_at > $2)
		 )`,
		m.key(tok), m.now(),
	).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("session.HasSession: %w", err)
	}
	return ok, nil
}

func (m *PostgresManager) AddSession(ctx context.Context, tok string) error {
	if tok == "" {
		return ErrEmptyToken
	}

	e, err := m.newEntry(m.now())
	if err != nil {
		return err
	}

	_, err = m.db.Exec(ctx,
		`INSERT INTO `+m.table+` (id, token_hash, created_at, expires_at)
		 VALUES ($1, $2, $3, $4)`,
		e.ID, m.key(tok), e.CreatedAt, nullTime(e.ExpiresAt),
	)
	if err != nil {
		if pgIsUniqueViolation(err) {
			return ErrDuplicateSession
		}
		return fmt.Errorf("session.AddSession: %w", err)
	}
	return nil
}

func (m *PostgresManager) RemoveSession(ctx context.Context, tok string) error {
	tag, err := m.db.Exec(ctx,
		`DELETE FROM `+m.table+`
		  WHERE token_hash = $1
		    AND (expires_at IS NULL OR expires_at > $2)`,
		m.key(tok), m.now(),
	)
	if err != nil {
		return fmt.Errorf("session.RemoveSession: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (m *PostgresManager) PatchSession(ctx context.Context, oldToken, newToken string) error {
	if newToken == "" {
		return ErrEmptyToken
	}

	now := m.now()

	tx, err := m.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("session.PatchSession: begin: %w", err)
	}

	var id string
	err = tx.QueryRow(ctx,
		`SELECT id FROM `+m.table+`
		  WHERE token_hash = $1
		    AND (expires_at IS NULL OR expires_at > $2)
		  FOR UPDATE`,
		m.key(oldToken), now,
	).Scan(&id)
	if err != nil {
		_ = tx.Rollback(ctx)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("session.PatchSession: lock: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE `+m.table+`
		    SET token_hash = $2, rotated_at = $3, expires_at = $4
		  WHERE id = $1`,
		id, m.key(newToken), now, nullTime(m.expiresAt(now)),
	)
	if err != nil {
		_ = tx.Rollback(ctx)
		if pgIsUniqueViolation(err) {
			return ErrDuplicateSession
		}
		return fmt.Errorf("session.PatchSession: update: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("session.PatchSession: commit: %w", err)
	}
	return nil
}

// PurgeExpired deletes rows that expired at or before now.
func (m *PostgresManager) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := m.db.Exec(ctx,
		`DELETE FROM `+m.table+`
		  WHERE expires_at IS NOT NULL AND expires_at <= $1`,
		now,
	)
	if err != nil {
		return 0, fmt.Errorf("session.PurgeExpired: %w", err)
	}
	return tag.RowsAffected(), nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func pgIsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" // unique_violation
}
