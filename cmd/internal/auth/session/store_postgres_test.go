package session

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warden/cmd/security/token"
)

var (
	sqlHas    = regexp.QuoteMeta(`SELECT EXISTS`)
	sqlInsert = regexp.QuoteMeta(`INSERT INTO "warden"."sessions"`)
	sqlDelete = regexp.QuoteMeta(`DELETE FROM "warden"."sessions"`)
	sqlLock   = regexp.QuoteMeta(`SELECT id FROM "warden"."sessions"`)
	sqlUpdate = regexp.QuoteMeta(`UPDATE "warden"."sessions"`)
	sqlPurge  = regexp.QuoteMeta(`WHERE expires_at IS NOT NULL AND expires_at <= $1`)
)

func newMockManager(t *testing.T) (*PostgresManager, pgxmock.PgxPoolIface, *fakeClock) {
	t.Helper()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	clock := newFakeClock()
	cfg := DefaultConfig()
	cfg.TTL = time.Minute
	m, err := NewPostgresManager(mock, cfg, WithClock(clock.Now))
	require.NoError(t, err)
	return m, mock, clock
}

func h(tok string) string { return token.HashSHA256Hex(tok) }

func TestPostgresManager_HasSession(t *testing.T) {
	m, mock, clock := newMockManager(t)

	mock.ExpectQuery(sqlHas).
		WithArgs(h("tok-a"), clock.Now()).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := m.HasSession(context.Background(), "tok-a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresManager_AddSession(t *testing.T) {
	m, mock, clock := newMockManager(t)
	exp := clock.Now().Add(time.Minute)

	mock.ExpectExec(sqlInsert).
		WithArgs(pgxmock.AnyArg(), h("tok-a"), clock.Now(), &exp).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(sqlInsert).
		WithArgs(pgxmock.AnyArg(), h("tok-a"), clock.Now(), &exp).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	ctx := context.Background()
	require.NoError(t, m.AddSession(ctx, "tok-a"))
	assert.ErrorIs(t, m.AddSession(ctx, "tok-a"), ErrDuplicateSession)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresManager_RemoveSession(t *testing.T) {
	m, mock, clock := newMockManager(t)

	mock.ExpectExec(sqlDelete).
		WithArgs(h("tok-a"), clock.Now()).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(sqlDelete).
		WithArgs(h("tok-a"), clock.Now()).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	ctx := context.Background()
	require.NoError(t, m.RemoveSession(ctx, "tok-a"))
	assert.ErrorIs(t, m.RemoveSession(ctx, "tok-a"), ErrSessionNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresManager_PatchSession(t *testing.T) {
	m, mock, clock := newMockManager(t)
	exp := clock.Now().Add(time.Minute)

	mock.ExpectBegin()
	mock.ExpectQuery(sqlLock).
		WithArgs(h("tok-a"), clock.Now()).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("01JENTRY000000000000000000"))
	mock.ExpectExec(sqlUpdate).
		WithArgs("01JENTRY000000000000000000", h("tok-b"), clock.Now(), &exp).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	require.NoError(t, m.PatchSession(context.Background(), "tok-a", "tok-b"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresManager_PatchSession_NotFound(t *testing.T) {
	m, mock, clock := newMockManager(t)

	mock.ExpectBegin()
	mock.ExpectQuery(sqlLock).
		WithArgs(h("tok-a"), clock.Now()).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	err := m.PatchSession(context.Background(), "tok-a", "tok-b")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresManager_PatchSession_Duplicate(t *testing.T) {
	m, mock, clock := newMockManager(t)
	exp := clock.Now().Add(time.Minute)

	mock.ExpectBegin()
	mock.ExpectQuery(sqlLock).
		WithArgs(h("tok-a"), clock.Now()).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("E1"))
	mock.ExpectExec(sqlUpdate).
		WithArgs("E1", h("tok-b"), clock.Now(), &exp).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectRollback()

	err := m.PatchSession(context.Background(), "tok-a", "tok-b")
	assert.ErrorIs(t, err, ErrDuplicateSession)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresManager_InfraErrorIsNotNotFound(t *testing.T) {
	m, mock, clock := newMockManager(t)
	boom := errors.New("connection refused")

	mock.ExpectQuery(sqlHas).
		WithArgs(h("tok-a"), clock.Now()).
		WillReturnError(boom)
	mock.ExpectBegin().WillReturnError(boom)

	ctx := context.Background()
	_, err := m.HasSession(ctx, "tok-a")
	assert.ErrorIs(t, err, boom)

	err = m.PatchSession(ctx, "tok-a", "tok-b")
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrSessionNotFound)
}

func TestPostgresManager_PurgeExpired(t *testing.T) {
	m, mock, clock := newMockManager(t)

	mock.ExpectExec(sqlPurge).
		WithArgs(clock.Now()).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	n, err := m.PurgeExpired(context.Background(), clock.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewPostgresManager_Validation(t *testing.T) {
	_, err := NewPostgresManager(nil, DefaultConfig())
	assert.ErrorIs(t, err, ErrConfig)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewPostgresManager(mock, DefaultConfig(), WithSchema(`x"; DROP`))
	assert.ErrorIs(t, err, ErrConfig)

	m, err := NewPostgresManager(mock, DefaultConfig(), WithSchema("auth"))
	require.NoError(t, err)
	assert.Equal(t, `"auth"."sessions"`, m.table)
}
