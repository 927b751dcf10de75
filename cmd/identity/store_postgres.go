package identity

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"warden/cmd/security/password"
)

// DB is the subset of pgx used by PostgresDirectory.
// *pgxpool.Pool satisfies it.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresDirectory implements Directory over PostgreSQL.
//
// The pool is owned by the caller; this directory never closes it.
// Schema identifiers are validated and quoted.
type PostgresDirectory struct {
	passwords

	db     DB
	schema string
}

// PostgresOption configures the directory.
type PostgresOption func(*PostgresDirectory) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchema sets the Postgres schema (default "warden").
func WithSchema(schema string) PostgresOption {
	return func(d *PostgresDirectory) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return fmt.Errorf("identity: empty schema")
		}
		if !pgIdentRe.MatchString(schema) {
			return fmt.Errorf("identity: invalid schema identifier")
		}
		d.schema = schema
		return nil
	}
}

// NewPostgresDirectory constructs a PostgresDirectory.
func NewPostgresDirectory(db DB, cfg password.Config, opts ...PostgresOption) (*PostgresDirectory, error) {
	d := &PostgresDirectory{
		passwords: passwords{cfg: cfg},
		db:        db,
		schema:    "warden",
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(d); err != nil {
			return nil, err
		}
	}
	if d.db == nil {
		return nil, fmt.Errorf("identity: nil db")
	}
	return d, nil
}

func (d *PostgresDirectory) users() string {
	return pgx.Identifier{d.schema, "users"}.Sanitize()
}

func (d *PostgresDirectory) FindByUsername(ctx context.Context, username string) (User, error) {
	const op = "identity.FindByUsername"

	var (
		u    User
		role string
	)
	err := d.db.QueryRow(ctx,
		`SELECT id, username, role, password_hash, created_at
		   FROM `+d.users()+`
		  WHERE username = $1`,
		username,
	).Scan(&u.ID, &u.Username, &role, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, notFound(op)
		}
		return User{}, fmt.Errorf("%s: %w", op, err)
	}

	u.Role = Role(role)
	if !u.Role.Valid() {
		return User{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "stored role is unknown"}
	}
	return u, nil
}

func (d *PostgresDirectory) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
	const op = "identity.CreateUser"

	u, err := d.prepare(op, in)
	if err != nil {
		return User{}, err
	}

	_, err = d.db.Exec(ctx,
		`INSERT INTO `+d.users()+` (id, username, role, password_hash, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		u.ID, u.Username, string(u.Role), u.PasswordHash, u.CreatedAt,
	)
	if err != nil {
		if pgIsUniqueViolation(err) {
			return User{}, ConflictError{Op: op, Field: "username"}
		}
		return User{}, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// UpgradePassword rewrites the hash only if the row still holds the one that
// was verified, so a concurrent password change wins.
func (d *PostgresDirectory) UpgradePassword(ctx context.Context, u User, plain string) (bool, error) {
	const op = "identity.UpgradePassword"

	h, ok, err := d.rehash(u.PasswordHash, plain)
	if err != nil || !ok {
		return false, err
	}

	tag, err := d.db.Exec(ctx,
		`UPDATE `+d.users()+`
		    SET password_hash = $1
		  WHERE id = $2 AND password_hash = $3`,
		h, u.ID, u.PasswordHash,
	)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return tag.RowsAffected() == 1, nil
}

func pgIsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
