// Package app builds the harvester and its collaborators from configuration
// and owns their lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	gpubsub "cloud.google.com/go/pubsub"
	gstorage "cloud.google.com/go/storage"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/JakeFAU/venue-harvester/internal/api"
	"github.com/JakeFAU/venue-harvester/internal/catalog"
	"github.com/JakeFAU/venue-harvester/internal/clock/system"
	"github.com/JakeFAU/venue-harvester/internal/config"
	"github.com/JakeFAU/venue-harvester/internal/crawler"
	"github.com/JakeFAU/venue-harvester/internal/extract"
	collyfetcher "github.com/JakeFAU/venue-harvester/internal/fetcher/colly"
	"github.com/JakeFAU/venue-harvester/internal/harvest"
	"github.com/JakeFAU/venue-harvester/internal/hash/sha256"
	"github.com/JakeFAU/venue-harvester/internal/id/uuid"
	"github.com/JakeFAU/venue-harvester/internal/metrics"
	"github.com/JakeFAU/venue-harvester/internal/policy/ratelimit"
	"github.com/JakeFAU/venue-harvester/internal/progress"
	progresssinks "github.com/JakeFAU/venue-harvester/internal/progress/sinks"
	pubsubpublisher "github.com/JakeFAU/venue-harvester/internal/publisher/pubsub"
	"github.com/JakeFAU/venue-harvester/internal/sink"
	blobsink "github.com/JakeFAU/venue-harvester/internal/sink/blob"
	xlsxsink "github.com/JakeFAU/venue-harvester/internal/sink/xlsx"
	gcsstore "github.com/JakeFAU/venue-harvester/internal/storage/gcs"
	localstore "github.com/JakeFAU/venue-harvester/internal/storage/local"
	memorystore "github.com/JakeFAU/venue-harvester/internal/storage/memory"
	"github.com/JakeFAU/venue-harvester/internal/storage/postgres"
)

const shutdownTimeout = 10 * time.Second

// App holds the long-lived services of one harvest run.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	catalog   *catalog.Catalog
	harvester *harvest.Harvester
	hub       *progress.Hub
	memory    *sink.Memory
	server    *http.Server

	// closers run in reverse order of registration.
	closers []func(context.Context) error
}

// New builds every collaborator named by cfg. Progress collectors register
// with the default Prometheus registerer.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	return newApp(ctx, cfg, logger, prometheus.DefaultRegisterer)
}

func newApp(ctx context.Context, cfg config.Config, logger *zap.Logger, reg prometheus.Registerer) (_ *App, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()

	a := &App{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			if cerr := a.Close(context.Background()); cerr != nil {
				logger.Warn("cleanup after failed init", zap.Error(cerr))
			}
		}
	}()

	a.catalog, err = cfg.Catalog.Build()
	if err != nil {
		return nil, err
	}

	ids := uuid.New()
	runID, err := ids.NewID()
	if err != nil {
		return nil, fmt.Errorf("run id: %w", err)
	}
	runKey, err := progress.ParseRunID(runID)
	if err != nil {
		return nil, err
	}
	clock := system.New()

	promSink, err := progresssinks.NewPrometheusSink(reg)
	if err != nil {
		return nil, err
	}
	a.hub = progress.NewHub(progress.Config{Logger: logger.Named("progress")},
		progresssinks.NewLogSink(logger.Named("progress")),
		promSink,
	)
	a.closers = append(a.closers, a.hub.Close)

	out, err := a.buildSinks(ctx, runID, clock)
	if err != nil {
		return nil, err
	}

	var publisher crawler.Publisher
	if cfg.Output.PubSub.Topic != "" {
		client, perr := gpubsub.NewClient(ctx, cfg.Output.PubSub.ProjectID)
		if perr != nil {
			return nil, fmt.Errorf("pubsub client: %w", perr)
		}
		pub := pubsubpublisher.New(client)
		a.closers = append(a.closers, func(context.Context) error {
			if cerr := client.Close(); cerr != nil {
				return fmt.Errorf("close pubsub client: %w", cerr)
			}
			return nil
		}, func(context.Context) error {
			pub.Stop()
			return nil
		})
		publisher = pub
		logger.Info("publishing dataset notifications", zap.String("topic", cfg.Output.PubSub.Topic))
	}

	fetchCfg := collyfetcher.Config{
		UserAgent:      cfg.Fetch.UserAgent,
		Timeout:        cfg.Fetch.Timeout,
		MaxRetries:     cfg.Fetch.MaxRetries,
		BackoffInitial: cfg.Fetch.BackoffInitial,
		BackoffMax:     cfg.Fetch.BackoffMax,
		MaxBodyBytes:   cfg.Fetch.MaxBodyBytes,
		RunID:          runKey,
	}
	fetchLogger := logger.Named("fetch")
	newFetcher := func() crawler.Fetcher {
		limiter := ratelimit.New(ratelimit.Config{Delay: cfg.Harvest.Delay})
		return ratelimit.NewPacedFetcher(collyfetcher.New(fetchCfg, a.hub, fetchLogger), limiter)
	}

	a.harvester, err = harvest.New(harvest.Config{
		Years:       cfg.Years(),
		Concurrency: cfg.Harvest.Concurrency,
		NewestFirst: cfg.Harvest.NewestFirst,
		MaxParts:    cfg.Harvest.MaxParts,
		Topic:       cfg.Output.PubSub.Topic,
		RunID:       runID,
	}, harvest.Deps{
		Catalog:    a.catalog,
		Resolver:   crawler.NewResolver(cfg.Fetch.BaseURL),
		NewFetcher: newFetcher,
		Extractor:  extract.New(extract.Config{SkipPrefixes: cfg.Extract.SkipPrefixes}, logger.Named("extract")),
		Sink:       out,
		Publisher:  publisher,
		Hasher:     sha256.New(),
		Emitter:    a.hub,
		Clock:      clock,
		IDs:        ids,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// buildSinks assembles the enabled outputs. With none enabled, datasets are
// kept in memory so a run still reports what it produced.
func (a *App) buildSinks(ctx context.Context, runID string, clock crawler.Clock) (crawler.Sink, error) {
	cfg := a.cfg.Output
	sep := a.cfg.Extract.AuthorSeparator
	var members []sink.Named

	if cfg.XLSX.Enabled {
		wb, err := xlsxsink.New(xlsxsink.Config{Path: cfg.XLSX.Path, AuthorSeparator: sep}, a.logger.Named("xlsx"))
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func(context.Context) error { return wb.Close() })
		members = append(members, sink.Named{Name: "xlsx", Sink: wb})
	}

	if cfg.Blob.Backend != config.BlobNone {
		store, err := a.blobStore(ctx)
		if err != nil {
			return nil, err
		}
		bs, err := blobsink.New(store, blobsink.Config{Prefix: cfg.Blob.Prefix, AuthorSeparator: sep}, a.logger.Named("blob"))
		if err != nil {
			return nil, err
		}
		members = append(members, sink.Named{Name: "blob_" + cfg.Blob.Backend, Sink: bs})
	}

	if cfg.Postgres.DSN != "" {
		pg, err := postgres.NewDatasetStore(ctx, postgres.Config{
			DSN:             cfg.Postgres.DSN,
			Table:           cfg.Postgres.Table,
			MaxConns:        cfg.Postgres.MaxConns,
			MaxConnLifetime: cfg.Postgres.MaxConnLifetime,
		}, runID, clock)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func(context.Context) error {
			pg.Close()
			return nil
		})
		members = append(members, sink.Named{Name: "postgres", Sink: pg})
	}

	if len(members) == 0 {
		a.memory = sink.NewMemory()
		a.logger.Warn("no output enabled; datasets are kept in memory only")
		members = append(members, sink.Named{Name: "memory", Sink: a.memory})
	}
	return sink.NewSerialized(sink.NewFanout(members...)), nil
}

func (a *App) blobStore(ctx context.Context) (crawler.BlobStore, error) {
	cfg := a.cfg.Output.Blob
	switch cfg.Backend {
	case config.BlobLocal:
		return localstore.New(localstore.Config{BaseDir: cfg.BaseDir})
	case config.BlobMemory:
		return memorystore.NewBlobStore(), nil
	case config.BlobGCS:
		client, err := gstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error {
			if cerr := client.Close(); cerr != nil {
				return fmt.Errorf("close gcs client: %w", cerr)
			}
			return nil
		})
		return gcsstore.New(client, gcsstore.Config{Bucket: cfg.Bucket})
	default:
		return nil, fmt.Errorf("unknown blob backend %q", cfg.Backend)
	}
}

// Harvester returns the configured run.
func (a *App) Harvester() *harvest.Harvester {
	return a.harvester
}

// Catalog returns the venues the run covers.
func (a *App) Catalog() *catalog.Catalog {
	return a.catalog
}

// Datasets returns what the in-memory fallback sink holds. It is empty when a
// real output is configured.
func (a *App) Datasets() []crawler.Dataset {
	if a.memory == nil {
		return nil
	}
	return a.memory.Datasets()
}

// Run starts the ops server when configured and harvests every target.
func (a *App) Run(ctx context.Context) (harvest.Summary, error) {
	if addr := a.cfg.Metrics.ListenAddr; addr != "" {
		a.startServer(addr)
	}
	a.logger.Info("harvest starting",
		zap.String("run_id", a.harvester.RunID()),
		zap.Int("venues", a.catalog.Len()),
		zap.Int("from_year", a.cfg.Harvest.FromYear),
		zap.Int("to_year", a.cfg.Harvest.ToYear),
		zap.Int("concurrency", a.cfg.Harvest.Concurrency),
	)
	summary, err := a.harvester.Run(ctx)
	if err != nil && !errors.Is(err, harvest.ErrNoDatasets) {
		return summary, fmt.Errorf("run harvest: %w", err)
	}
	return summary, err
}

func (a *App) startServer(addr string) {
	a.server = &http.Server{
		Addr:              addr,
		Handler:           api.NewServer(a.harvester, a.catalog, a.logger.Named("api")).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	srv := a.server
	go func() {
		a.logger.Info("ops server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("ops server failed", zap.Error(err))
		}
	}()
}

// Close stops the ops server and releases every service in reverse order of
// construction. It is safe to call on a partially built App.
func (a *App) Close(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	var errs []error
	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown ops server: %w", err))
		}
		a.server = nil
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
