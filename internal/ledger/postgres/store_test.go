package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/disclose-tech/documentcloud-dreal-paca-scraper/internal/ledger"
)

func TestNewWithPoolValidatesTable(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewWithPool(mock, "bad-name;")
	assert.Error(t, err)

	store, err := NewWithPool(mock, "")
	require.NoError(t, err)
	assert.Equal(t, defaultTable, store.table)

	_, err = NewWithPool(nil, "x")
	assert.Error(t, err)
}

func TestEnsureSchema(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock, "ledger")
	require.NoError(t, err)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS ledger").WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	require.NoError(t, store.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadRows(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock, "ledger")
	require.NoError(t, err)

	rows := pgxmock.NewRows([]string{"url", "last_modified", "last_seen"}).
		AddRow("https://example.org/a.pdf", "2024-05-02 10:00:00 UTC", "t1").
		AddRow("https://example.org/b.pdf", "2024-05-03 10:00:00 UTC", "t2")
	mock.ExpectQuery("SELECT url, last_modified, last_seen FROM ledger").WillReturnRows(rows)

	entries, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]ledger.Entry{
		"https://example.org/a.pdf": {LastModified: "2024-05-02 10:00:00 UTC", LastSeen: "t1"},
		"https://example.org/b.pdf": {LastModified: "2024-05-03 10:00:00 UTC", LastSeen: "t2"},
	}, entries)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadEmptyTable(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock, "ledger")
	require.NoError(t, err)

	mock.ExpectQuery("SELECT url").WillReturnRows(pgxmock.NewRows([]string{"url", "last_modified", "last_seen"}))
	_, err = store.Load(context.Background())
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestSaveUpsertsInOrder(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock, "ledger")
	require.NoError(t, err)

	batch := mock.ExpectBatch()
	batch.ExpectExec("INSERT INTO ledger").
		WithArgs("https://example.org/a.pdf", "m1", "t1").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	batch.ExpectExec("INSERT INTO ledger").
		WithArgs("https://example.org/b.pdf", "m2", "t2").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = store.Save(context.Background(), map[string]ledger.Entry{
		"https://example.org/b.pdf": {LastModified: "m2", LastSeen: "t2"},
		"https://example.org/a.pdf": {LastModified: "m1", LastSeen: "t1"},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveEmptyIsNoop(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock, "ledger")
	require.NoError(t, err)

	require.NoError(t, store.Save(context.Background(), nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveReportsFailure(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock, "ledger")
	require.NoError(t, err)

	mock.ExpectBatch().ExpectExec("INSERT INTO ledger").
		WithArgs("u", "", "").
		WillReturnError(errors.New("connection reset"))
	err = store.Save(context.Background(), map[string]ledger.Entry{"u": {}})
	assert.ErrorContains(t, err, "connection reset")
}

func TestUpsertWritesOneRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock, "ledger")
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO ledger").
		WithArgs("https://example.org/a.pdf", "m1", "t1").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, store.Upsert(context.Background(), "https://example.org/a.pdf", ledger.Entry{LastModified: "m1", LastSeen: "t1"}))
	require.NoError(t, mock.ExpectationsWereMet())

	mock.ExpectExec("INSERT INTO ledger").
		WithArgs("u", "", "").
		WillReturnError(errors.New("connection reset"))
	err = store.Upsert(context.Background(), "u", ledger.Entry{})
	assert.ErrorContains(t, err, "connection reset")
}
