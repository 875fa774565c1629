// Package harvest drives a run over every venue-year of the catalog: it
// applies skip rules, collects records through the resolver, fetcher and
// extractor, and hands finished datasets to the sink.
package harvest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/venue-harvester/internal/catalog"
	"github.com/JakeFAU/venue-harvester/internal/crawler"
	"github.com/JakeFAU/venue-harvester/internal/metrics"
	"github.com/JakeFAU/venue-harvester/internal/progress"
)

// ErrNoDatasets is returned by Run when the whole run produced nothing.
var ErrNoDatasets = errors.New("no datasets produced")

// Config controls a run.
type Config struct {
	Years       catalog.YearRange
	Concurrency int
	NewestFirst bool
	// MaxParts caps multi-part walks; zero selects crawler.DefaultMaxParts.
	MaxParts int
	// Topic receives a notification per written dataset when a Publisher is set.
	Topic string
	// RunID is a UUID; one is generated when empty.
	RunID string
}

// FetcherFactory builds the fetcher owned by one worker.
type FetcherFactory func() crawler.Fetcher

// Deps are the collaborators of a Harvester. Publisher, Hasher and Emitter
// are optional.
type Deps struct {
	Catalog    *catalog.Catalog
	Resolver   *crawler.Resolver
	NewFetcher FetcherFactory
	Extractor  crawler.Extractor
	Sink       crawler.Sink
	Publisher  crawler.Publisher
	Hasher     crawler.Hasher
	Emitter    progress.Emitter
	Clock      crawler.Clock
	IDs        crawler.IDGenerator
	Logger     *zap.Logger
}

// Harvester runs the venue-year loop.
type Harvester struct {
	cfg   Config
	deps  Deps
	runID [16]byte

	mu   sync.Mutex
	live Summary
}

// New validates the configuration and collaborators.
func New(cfg Config, deps Deps) (*Harvester, error) {
	switch {
	case deps.Catalog == nil:
		return nil, errors.New("catalog is required")
	case deps.Resolver == nil:
		return nil, errors.New("resolver is required")
	case deps.NewFetcher == nil:
		return nil, errors.New("fetcher factory is required")
	case deps.Extractor == nil:
		return nil, errors.New("extractor is required")
	case deps.Sink == nil:
		return nil, errors.New("sink is required")
	case deps.Clock == nil:
		return nil, errors.New("clock is required")
	}
	if err := cfg.Years.Validate(); err != nil {
		return nil, fmt.Errorf("harvest years: %w", err)
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if cfg.RunID == "" {
		if deps.IDs == nil {
			return nil, errors.New("run id or id generator is required")
		}
		id, err := deps.IDs.NewID()
		if err != nil {
			return nil, fmt.Errorf("run id: %w", err)
		}
		cfg.RunID = id
	}
	runID, err := progress.ParseRunID(cfg.RunID)
	if err != nil {
		return nil, err
	}
	return &Harvester{
		cfg:   cfg,
		deps:  deps,
		runID: runID,
		live:  Summary{RunID: cfg.RunID},
	}, nil
}

// RunID returns the identifier tagging this run's events and rows.
func (h *Harvester) RunID() string {
	return h.cfg.RunID
}

// Snapshot returns the counters of the run so far.
func (h *Harvester) Snapshot() Summary {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.live.clone()
}

// Run resets the sink, processes every target, and reports a summary. Target
// failures are absorbed; the error is non-nil only when setup fails, the
// context ends, or no dataset was produced.
func (h *Harvester) Run(ctx context.Context) (Summary, error) {
	logger := h.deps.Logger.With(zap.String("run_id", h.cfg.RunID))
	targets := h.deps.Catalog.Targets(h.cfg.Years, h.cfg.NewestFirst)

	h.mu.Lock()
	h.live = Summary{RunID: h.cfg.RunID, Started: h.deps.Clock.Now(), Total: len(targets)}
	started := h.live.Started
	h.mu.Unlock()
	h.emit(progress.Event{Stage: progress.StageRunStart, TS: started})

	if r, ok := h.deps.Sink.(crawler.Resetter); ok {
		if err := r.Reset(ctx); err != nil {
			h.finish(started, "setup_failed")
			return h.Snapshot(), fmt.Errorf("reset sink: %w", err)
		}
	}

	logger.Info("harvest started",
		zap.Int("targets", len(targets)),
		zap.Int("from", h.cfg.Years.From),
		zap.Int("to", h.cfg.Years.To),
		zap.Int("workers", h.cfg.Concurrency),
	)

	results := make([]TargetResult, len(targets))
	jobs := make(chan int)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(jobs)
		for i := range targets {
			select {
			case jobs <- i:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})
	for n := 0; n < h.cfg.Concurrency; n++ {
		w := h.newWorker(logger.With(zap.Int("worker", n)))
		g.Go(func() error {
			metrics.IncActiveWorkers()
			defer metrics.DecActiveWorkers()
			for i := range jobs {
				res := w.process(gctx, targets[i])
				results[i] = res
				h.record(res)
			}
			return nil
		})
	}
	waitErr := g.Wait()

	summary := h.Snapshot()
	summary.Results = summary.Results[:0]
	for _, res := range results {
		if res.Status != "" {
			summary.Results = append(summary.Results, res)
		}
	}

	switch {
	case ctx.Err() != nil:
		summary.Finished = h.finish(started, "canceled")
		logger.Warn("harvest canceled", summaryFields(summary)...)
		return summary, fmt.Errorf("harvest canceled: %w", ctx.Err())
	case waitErr != nil:
		summary.Finished = h.finish(started, "failed")
		return summary, fmt.Errorf("harvest workers: %w", waitErr)
	case summary.Produced == 0:
		summary.Finished = h.finish(started, "no_datasets")
		logger.Warn("harvest produced no datasets", summaryFields(summary)...)
		return summary, ErrNoDatasets
	}
	summary.Finished = h.finish(started, "ok")
	logger.Info("harvest finished", summaryFields(summary)...)
	return summary, nil
}

func (h *Harvester) record(res TargetResult) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.live.add(res)
}

func (h *Harvester) finish(started time.Time, result string) time.Time {
	finished := h.deps.Clock.Now()
	h.mu.Lock()
	h.live.Finished = finished
	h.mu.Unlock()
	h.emit(progress.Event{
		Stage: progress.StageRunDone,
		TS:    finished,
		Dur:   finished.Sub(started),
		Note:  result,
	})
	return finished
}

func (h *Harvester) emit(evt progress.Event) {
	if h.deps.Emitter == nil {
		return
	}
	evt.RunID = h.runID
	if evt.TS.IsZero() {
		evt.TS = h.deps.Clock.Now()
	}
	h.deps.Emitter.Emit(evt)
}

func summaryFields(s Summary) []zap.Field {
	return []zap.Field{
		zap.Int("attempted", s.Attempted),
		zap.Int("skipped", s.Skipped),
		zap.Int("produced", s.Produced),
		zap.Int("empty", s.Empty),
		zap.Int("failed", s.Failed),
		zap.Int("records", s.Records),
	}
}
