package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/venue-harvester/internal/crawler"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

var testClock = fixedClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}

func sampleDataset() crawler.Dataset {
	return crawler.Dataset{
		ID:        "ICML2019",
		VenueID:   "icml",
		VenueName: "ICML",
		Year:      2019,
		Records: []crawler.PublicationRecord{
			{Title: "Paper A", Authors: []string{"Ada", "Grace"}},
			{Title: "Paper B"},
		},
	}
}

func TestDatasetStoreWrite(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewDatasetStoreWithPool(mock, "publications", "run-1", testClock)
	require.NoError(t, err)

	mock.ExpectCopyFrom(pgx.Identifier{"publications"}, copyColumns).WillReturnResult(2)

	require.NoError(t, store.Write(context.Background(), sampleDataset()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDatasetStoreWriteShortCopy(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewDatasetStoreWithPool(mock, "", "run-1", testClock)
	require.NoError(t, err)

	mock.ExpectCopyFrom(pgx.Identifier{"publications"}, copyColumns).WillReturnResult(1)
	require.ErrorContains(t, store.Write(context.Background(), sampleDataset()), "wrote 1 of 2")

	mock.ExpectCopyFrom(pgx.Identifier{"publications"}, copyColumns).WillReturnError(errors.New("boom"))
	require.ErrorContains(t, store.Write(context.Background(), sampleDataset()), "boom")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDatasetStoreWriteEmptyIsNoop(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewDatasetStoreWithPool(mock, "publications", "run-1", testClock)
	require.NoError(t, err)

	ds := sampleDataset()
	ds.Records = nil
	require.NoError(t, store.Write(context.Background(), ds))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDatasetStoreReset(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewDatasetStoreWithPool(mock, "papers", "run-7", testClock)
	require.NoError(t, err)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS papers").
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	require.NoError(t, store.Reset(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDatasetStoreResetCreateError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewDatasetStoreWithPool(mock, "papers", "run-7", testClock)
	require.NoError(t, err)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS papers").
		WillReturnError(errors.New("permission denied"))

	require.ErrorContains(t, store.Reset(context.Background()), "create papers")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewDatasetStoreWithPoolValidation(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewDatasetStoreWithPool(nil, "publications", "run", testClock)
	require.Error(t, err)
	_, err = NewDatasetStoreWithPool(mock, "bad-name;", "run", testClock)
	require.ErrorContains(t, err, "invalid table name")
	_, err = NewDatasetStoreWithPool(mock, "publications", "", testClock)
	require.ErrorContains(t, err, "run id")
	_, err = NewDatasetStoreWithPool(mock, "publications", "run", nil)
	require.ErrorContains(t, err, "clock")
}

func TestNewDatasetStoreRequiresDSN(t *testing.T) {
	_, err := NewDatasetStore(context.Background(), Config{}, "run", testClock)
	require.ErrorContains(t, err, "dsn")
}
