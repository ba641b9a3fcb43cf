package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/itchan-dev/crosspost/internal/session"
	"github.com/itchan-dev/crosspost/shared/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	key = session.Key{ProfileID: "p1", Website: "weasyl"}
)

func setupMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db, DriverPostgres, clock.Fake(now)), mock
}

func TestSave(t *testing.T) {
	store, mock := setupMock(t)
	mock.ExpectExec(regexp.QuoteMeta(dialects[DriverPostgres].save)).
		WithArgs("p1", "weasyl", []byte("sealed"), now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Save(context.Background(), key, []byte("sealed")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoad(t *testing.T) {
	store, mock := setupMock(t)
	query := regexp.QuoteMeta(dialects[DriverPostgres].load)

	mock.ExpectQuery(query).WithArgs("p1", "weasyl").
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow([]byte("sealed")))
	data, err := store.Load(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, []byte("sealed"), data)

	mock.ExpectQuery(query).WithArgs("p1", "weasyl").
		WillReturnRows(sqlmock.NewRows([]string{"data"}))
	_, err = store.Load(context.Background(), key)
	assert.ErrorIs(t, err, session.ErrNotFound)

	mock.ExpectQuery(query).WithArgs("p1", "weasyl").
		WillReturnError(errors.New("connection reset"))
	_, err = store.Load(context.Background(), key)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, session.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete(t *testing.T) {
	store, mock := setupMock(t)
	mock.ExpectExec(regexp.QuoteMeta(dialects[DriverPostgres].delete)).
		WithArgs("p1", "weasyl").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Delete(context.Background(), key))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestKeys(t *testing.T) {
	store, mock := setupMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(dialects[DriverPostgres].keys)).
		WillReturnRows(sqlmock.NewRows([]string{"profile_id", "website"}).
			AddRow("p1", "inkbunny").
			AddRow("p2", "weasyl"))

	keys, err := store.Keys(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []session.Key{{ProfileID: "p1", Website: "inkbunny"}, {ProfileID: "p2", Website: "weasyl"}}, keys)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUnknownDriverPanics(t *testing.T) {
	assert.Panics(t, func() { New(nil, "oracle", nil) })
}

func TestSQLite(t *testing.T) {
	db, err := sql.Open(DriverSQLite, ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	store := New(db, DriverSQLite, clock.Fake(now))
	require.NoError(t, store.Migrate(ctx))
	require.NoError(t, store.Migrate(ctx), "migration is idempotent")

	testDurable(t, store)
}

// testDurable runs the behaviour every backend must share.
func testDurable(t *testing.T, store session.Durable) {
	t.Helper()
	ctx := context.Background()
	other := session.Key{ProfileID: "p2", Website: "weasyl"}

	_, err := store.Load(ctx, key)
	require.ErrorIs(t, err, session.ErrNotFound)

	require.NoError(t, store.Save(ctx, key, []byte("first")))
	require.NoError(t, store.Save(ctx, key, []byte("second")))
	require.NoError(t, store.Save(ctx, other, []byte("other")))

	data, err := store.Load(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), data)

	keys, err := store.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []session.Key{key, other}, keys)

	require.NoError(t, store.Delete(ctx, key))
	_, err = store.Load(ctx, key)
	assert.ErrorIs(t, err, session.ErrNotFound)

	data, err = store.Load(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, []byte("other"), data)

	require.NoError(t, store.Delete(ctx, key), "deleting twice is fine")
}
