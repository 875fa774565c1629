package blob

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/venue-harvester/internal/crawler"
	"github.com/JakeFAU/venue-harvester/internal/storage/memory"
)

func TestSinkWritesCSV(t *testing.T) {
	store := memory.NewBlobStore()
	s, err := New(store, Config{Prefix: "/exports/"}, nil)
	require.NoError(t, err)

	ds := crawler.Dataset{
		ID: "S&P2019",
		Records: []crawler.PublicationRecord{
			{Title: "Breaking, Things", Authors: []string{"Ada", "Alan"}},
			{Title: "Quoted \"Title\""},
		},
	}
	require.NoError(t, s.Write(context.Background(), ds))

	assert.Equal(t, "exports/S_P2019.csv", s.ObjectPath(ds.ID))
	obj, ok := store.Object("exports/S_P2019.csv")
	require.True(t, ok)
	assert.Equal(t, "text/csv", obj.ContentType)

	records, err := csv.NewReader(strings.NewReader(string(obj.Data))).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"Conference/Journal", "Title", "Authors"},
		{"S&P2019", "Breaking, Things", "Ada; Alan"},
		{"S&P2019", "Quoted \"Title\"", ""},
	}, records)
}

func TestSinkResetClearsPrefixOnly(t *testing.T) {
	store := memory.NewBlobStore()
	ctx := context.Background()
	_, err := store.PutObject(ctx, "exports/OLD2010.csv", "text/csv", strings.NewReader("x"))
	require.NoError(t, err)
	_, err = store.PutObject(ctx, "exports-other/KEEP.csv", "text/csv", strings.NewReader("x"))
	require.NoError(t, err)

	s, err := New(store, Config{Prefix: "exports"}, nil)
	require.NoError(t, err)
	require.NoError(t, s.Reset(ctx))

	assert.Equal(t, []string{"exports-other/KEEP.csv"}, store.Paths())
}

type brokenStore struct{}

func (brokenStore) PutObject(context.Context, string, string, io.Reader) (string, error) {
	return "", errors.New("bucket gone")
}

func (brokenStore) DeletePrefix(context.Context, string) (int, error) {
	return 0, errors.New("bucket gone")
}

func TestSinkPropagatesStoreErrors(t *testing.T) {
	s, err := New(brokenStore{}, Config{}, nil)
	require.NoError(t, err)
	assert.ErrorContains(t, s.Write(context.Background(), crawler.Dataset{ID: "X2019"}), "bucket gone")
	assert.ErrorContains(t, s.Reset(context.Background()), "bucket gone")
	assert.Equal(t, "X2019.csv", s.ObjectPath("X2019"))

	_, err = New(nil, Config{}, nil)
	assert.Error(t, err)
}

func TestObjectName(t *testing.T) {
	assert.Equal(t, "NeurIPS2020", objectName("NeurIPS2020"))
	assert.Equal(t, "a_b", objectName("a/b"))
	assert.Equal(t, "dataset", objectName(".."))
}
