package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/venue-harvester/internal/config"
	"github.com/JakeFAU/venue-harvester/internal/harvest"
)

const listingPage = `<html><body><ul class="publ-list">` +
	`<li class="entry article"><cite class="data">` +
	`<span itemprop="author"><span itemprop="name">Ada Lovelace</span></span>: ` +
	`<span class="title">Notes on the Analytical Engine.</span></cite></li>` +
	`<li class="entry article"><cite class="data">` +
	`<span itemprop="author"><span itemprop="name">Alan Turing</span></span>: ` +
	`<span class="title">On Computable Numbers.</span></cite></li>` +
	`</ul></body></html>`

func newListingServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/db/journals/tj/tj1.html" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, listingPage)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(baseURL string) config.Config {
	return config.Config{
		Harvest: config.HarvestConfig{FromYear: 2001, ToYear: 2002, Concurrency: 2, MaxParts: 8},
		Fetch: config.FetchConfig{
			BaseURL:        baseURL,
			UserAgent:      "venue-harvester-test",
			Timeout:        2 * time.Second,
			BackoffInitial: time.Millisecond,
			BackoffMax:     10 * time.Millisecond,
		},
		Extract: config.ExtractConfig{AuthorSeparator: "; "},
		Catalog: config.CatalogConfig{Venues: []config.VenueConfig{
			{ID: "tj", Name: "TJ", Family: "journal-volume", VolumeStartYear: 2000},
		}},
	}
}

func TestAppRunWritesEnabledOutputs(t *testing.T) {
	srv := newListingServer(t)
	dir := t.TempDir()

	cfg := testConfig(srv.URL)
	cfg.Output.XLSX = config.XLSXConfig{Enabled: true, Path: filepath.Join(dir, "papers.xlsx")}
	cfg.Output.Blob = config.BlobConfig{Backend: config.BlobLocal, BaseDir: filepath.Join(dir, "csv"), Prefix: "datasets"}
	require.NoError(t, cfg.Validate())

	a, err := newApp(context.Background(), cfg, zap.NewNop(), prometheus.NewRegistry())
	require.NoError(t, err)

	summary, err := a.Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, a.Close(context.Background()))

	require.Equal(t, 2, summary.Attempted)
	require.Equal(t, 1, summary.Produced)
	require.Equal(t, 1, summary.Empty)
	require.Equal(t, 2, summary.Records)
	require.Equal(t, []string{"TJ2001"}, summary.Datasets())
	require.Empty(t, a.Datasets(), "memory fallback must stay unused when outputs are enabled")

	wb, err := excelize.OpenFile(cfg.Output.XLSX.Path)
	require.NoError(t, err)
	defer wb.Close()
	require.Equal(t, []string{"TJ2001"}, wb.GetSheetList())
	rows, err := wb.GetRows("TJ2001")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, "Notes on the Analytical Engine.", rows[1][1])

	csvData, err := os.ReadFile(filepath.Join(dir, "csv", "datasets", "TJ2001.csv"))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(csvData), "Conference/Journal,Title,Authors\n"))
	require.Contains(t, string(csvData), "Alan Turing")
}

func TestAppFallsBackToMemorySink(t *testing.T) {
	srv := newListingServer(t)

	a, err := newApp(context.Background(), testConfig(srv.URL), zap.NewNop(), prometheus.NewRegistry())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, a.Close(context.Background())) })

	require.NotEmpty(t, a.Harvester().RunID())
	require.Equal(t, 1, a.Catalog().Len())

	_, err = a.Run(context.Background())
	require.NoError(t, err)

	datasets := a.Datasets()
	require.Len(t, datasets, 1)
	require.Equal(t, "TJ2001", datasets[0].ID)
	require.Len(t, datasets[0].Records, 2)
	require.Equal(t, []string{"Ada Lovelace"}, datasets[0].Records[0].Authors)
}

func TestAppRunReportsNoDatasets(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)

	a, err := newApp(context.Background(), testConfig(srv.URL), zap.NewNop(), prometheus.NewRegistry())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, a.Close(context.Background())) })

	summary, err := a.Run(context.Background())
	require.ErrorIs(t, err, harvest.ErrNoDatasets)
	require.Equal(t, 2, summary.Empty)
}

func TestNewAppRejectsBrokenOutputs(t *testing.T) {
	t.Parallel()

	cfg := testConfig("http://127.0.0.1:1")
	cfg.Output.Blob = config.BlobConfig{Backend: "s3"}

	_, err := newApp(context.Background(), cfg, zap.NewNop(), prometheus.NewRegistry())
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown blob backend")
}

func TestNewAppRejectsDuplicateCollectors(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	first, err := newApp(context.Background(), testConfig("http://127.0.0.1:1"), zap.NewNop(), reg)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, first.Close(context.Background())) })

	_, err = newApp(context.Background(), testConfig("http://127.0.0.1:1"), zap.NewNop(), reg)
	require.Error(t, err)
}

func TestCloseJoinsErrors(t *testing.T) {
	t.Parallel()

	var order []string
	a := &App{logger: zap.NewNop()}
	a.closers = append(a.closers,
		func(context.Context) error { order = append(order, "first"); return errors.New("first failed") },
		func(context.Context) error { order = append(order, "second"); return nil },
	)

	err := a.Close(context.Background())
	require.ErrorContains(t, err, "first failed")
	require.Equal(t, []string{"second", "first"}, order)
	require.NoError(t, a.Close(context.Background()))
}
