package harvest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/venue-harvester/internal/catalog"
	"github.com/JakeFAU/venue-harvester/internal/crawler"
	"github.com/JakeFAU/venue-harvester/internal/progress"
)

// worker owns one fetcher, and with it one politeness pacer, for its lifetime.
type worker struct {
	h       *Harvester
	fetcher crawler.Fetcher
	walker  *crawler.Walker
	logger  *zap.Logger
}

func (h *Harvester) newWorker(logger *zap.Logger) *worker {
	f := h.deps.NewFetcher()
	return &worker{
		h:       h,
		fetcher: f,
		walker:  crawler.NewWalker(h.deps.Resolver, f, h.deps.Extractor, h.cfg.MaxParts, logger.Named("walker")),
		logger:  logger,
	}
}

// collection is what the fetch phase of a target produced.
type collection struct {
	records []crawler.PublicationRecord
	source  string
	fetches int
	status  Status
	err     error
}

func (w *worker) process(ctx context.Context, t catalog.Target) TargetResult {
	res := TargetResult{Target: t.String(), Dataset: t.DatasetID()}
	if reason, skip := t.Venue.Excludes(t.Year); skip {
		res.Status = StatusSkipped
		res.Note = reason
		w.logger.Debug("target skipped", zap.String("target", res.Target), zap.String("reason", reason))
		w.done(res)
		return res
	}
	if err := ctx.Err(); err != nil {
		res.Status = StatusCanceled
		return res
	}

	start := w.h.deps.Clock.Now()
	var c collection
	if t.Venue.Family == catalog.FamilyMultiPart {
		c = w.walk(ctx, t)
	} else {
		c = w.candidates(ctx, t)
	}
	res.Fetches = c.fetches
	res.Source = c.source

	switch {
	case c.err != nil && ctx.Err() != nil:
		res.Status = StatusCanceled
		res.Note = c.err.Error()
	case c.err != nil:
		res.Status = StatusFailed
		res.Note = c.err.Error()
		w.logger.Warn("target failed", zap.String("target", res.Target), zap.Error(c.err))
	case len(c.records) == 0:
		res.Status = c.status
		w.logger.Info("no records", zap.String("target", res.Target), zap.String("status", string(c.status)))
	default:
		res = w.deliver(ctx, t, c, res)
	}
	res.Elapsed = w.h.deps.Clock.Now().Sub(start)
	if res.Status != StatusCanceled {
		w.done(res)
	}
	return res
}

// walk collects a multi-part venue through the pagination walker.
func (w *worker) walk(ctx context.Context, t catalog.Target) collection {
	wr, err := w.walker.Walk(ctx, t.Venue, t.Year)
	c := collection{records: wr.Records, fetches: wr.Fetches, status: StatusEmpty}
	if err != nil {
		c.err = err
		return c
	}
	if !wr.Exists {
		c.status = StatusNotFound
		return c
	}
	if wr.Reason == crawler.StopTransient && len(wr.Records) == 0 {
		c.err = errors.New("first part could not be fetched")
		return c
	}
	if first, err := w.h.deps.Resolver.ResolvePart(t.Venue, t.Year, 1); err == nil {
		c.source = first.URL
	}
	w.logger.Debug("walk finished",
		zap.String("target", t.String()),
		zap.Int("parts", wr.Parts),
		zap.String("reason", string(wr.Reason)),
	)
	return c
}

// candidates tries each resolved address in order until one yields records.
func (w *worker) candidates(ctx context.Context, t catalog.Target) collection {
	addrs, err := w.h.deps.Resolver.Resolve(t.Venue, t.Year)
	if err != nil {
		return collection{err: err}
	}

	c := collection{status: StatusNotFound}
	var lastErr error
	failed := 0
	for _, addr := range addrs {
		if err := ctx.Err(); err != nil {
			c.err = err
			return c
		}
		fr := w.fetcher.Fetch(ctx, addr)
		c.fetches++
		switch fr.Outcome {
		case crawler.OutcomeNotFound:
			w.logger.Debug("candidate not found", zap.String("url", addr.URL))
			continue
		case crawler.OutcomeTransientFailure:
			failed++
			lastErr = fr.Err
			w.logger.Warn("candidate fetch failed",
				zap.String("url", addr.URL),
				zap.Int("attempts", fr.Attempts),
				zap.Error(fr.Err),
			)
			continue
		}

		c.status = StatusEmpty
		records, err := w.h.deps.Extractor.Extract(fr.Page)
		if err != nil {
			w.logger.Debug("malformed listing treated as empty", zap.String("url", addr.URL), zap.Error(err))
			records = nil
		}
		if addr.DropFirst && len(records) > 0 {
			records = records[1:]
		}
		w.logger.Info("parsed listing", zap.String("url", addr.URL), zap.Int("records", len(records)))
		if len(records) > 0 {
			c.records = records
			c.source = addr.URL
			return c
		}
	}
	// A failed candidate may have held the records the others lacked.
	if failed > 0 && lastErr != nil {
		c.err = fmt.Errorf("%d of %d candidates failed: %w", failed, len(addrs), lastErr)
	}
	return c
}

// deliver writes the dataset and announces it.
func (w *worker) deliver(ctx context.Context, t catalog.Target, c collection, res TargetResult) TargetResult {
	ds := crawler.NewDataset(t, c.records)
	if err := w.h.deps.Sink.Write(ctx, ds); err != nil {
		res.Status = StatusFailed
		res.Note = fmt.Sprintf("write dataset: %v", err)
		w.logger.Warn("dataset write failed", zap.String("dataset", ds.ID), zap.Error(err))
		return res
	}
	res.Status = StatusProduced
	res.Records = len(ds.Records)
	w.logger.Info("dataset written",
		zap.String("dataset", ds.ID),
		zap.Int("records", res.Records),
		zap.String("source", c.source),
	)
	w.notify(ctx, ds)
	return res
}

func (w *worker) notify(ctx context.Context, ds crawler.Dataset) {
	h := w.h
	if h.deps.Publisher == nil || h.cfg.Topic == "" {
		return
	}
	note := DatasetWritten{
		RunID:     h.cfg.RunID,
		DatasetID: ds.ID,
		VenueID:   ds.VenueID,
		Venue:     ds.VenueName,
		Year:      ds.Year,
		Records:   len(ds.Records),
		WrittenAt: h.deps.Clock.Now(),
	}
	if h.deps.Hasher != nil {
		digest, err := h.deps.Hasher.Hash(ds.Canonical())
		if err != nil {
			w.logger.Warn("dataset digest failed", zap.String("dataset", ds.ID), zap.Error(err))
		}
		note.Digest = digest
	}
	id, err := h.deps.Publisher.Publish(ctx, h.cfg.Topic, note)
	if err != nil {
		w.logger.Warn("dataset notification failed", zap.String("dataset", ds.ID), zap.Error(err))
		return
	}
	w.logger.Debug("dataset notification published", zap.String("dataset", ds.ID), zap.String("message_id", id))
}

func (w *worker) done(res TargetResult) {
	w.h.emit(progress.Event{
		Stage:   progress.StageTargetDone,
		Target:  res.Target,
		Records: int64(res.Records),
		Dur:     max(res.Elapsed, 0),
		Note:    string(res.Status),
	})
}

// DatasetWritten is published after a dataset reaches the sink.
type DatasetWritten struct {
	RunID     string    `json:"run_id"`
	DatasetID string    `json:"dataset_id"`
	VenueID   string    `json:"venue_id"`
	Venue     string    `json:"venue"`
	Year      int       `json:"year"`
	Records   int       `json:"records"`
	Digest    string    `json:"digest,omitempty"`
	WrittenAt time.Time `json:"written_at"`
}

// Attributes copies the identifying fields into message attributes.
func (d DatasetWritten) Attributes() map[string]string {
	return map[string]string{
		"run_id":     d.RunID,
		"dataset_id": d.DatasetID,
		"venue_id":   d.VenueID,
		"year":       fmt.Sprint(d.Year),
	}
}
