package crawler

import (
	"context"
	"fmt"

	"github.com/JakeFAU/venue-harvester/internal/catalog"
	"go.uber.org/zap"
)

// DefaultMaxParts bounds a multi-part walk when no limit is configured.
const DefaultMaxParts = 64

// StopReason records why a walk ended.
type StopReason string

// Walk termination reasons.
const (
	StopNotFound  StopReason = "not_found"
	StopTransient StopReason = "transient_failure"
	StopEmpty     StopReason = "empty_part"
	StopMaxParts  StopReason = "max_parts"
	StopCanceled  StopReason = "canceled"
)

// WalkResult is the accumulated output of a multi-part walk.
type WalkResult struct {
	Records []PublicationRecord
	// Fetches counts Fetch calls, one per part visited.
	Fetches int
	// Parts counts parts that contributed records.
	Parts  int
	Reason StopReason
	// Exists is false when part 1 itself was not found.
	Exists bool
}

// Walker drives multi-part venues part by part until the source runs out.
type Walker struct {
	resolver  *Resolver
	fetcher   Fetcher
	extractor Extractor
	maxParts  int
	logger    *zap.Logger
}

// NewWalker wires a walker. maxParts <= 0 selects DefaultMaxParts.
func NewWalker(resolver *Resolver, fetcher Fetcher, extractor Extractor, maxParts int, logger *zap.Logger) *Walker {
	if maxParts <= 0 {
		maxParts = DefaultMaxParts
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Walker{
		resolver:  resolver,
		fetcher:   fetcher,
		extractor: extractor,
		maxParts:  maxParts,
		logger:    logger,
	}
}

// Walk fetches parts 1, 2, ... of venue v in year. The first record of every
// part is a session header and is dropped. The walk stops at the first part
// that is missing, fails, or extracts nothing; earlier parts are kept.
func (w *Walker) Walk(ctx context.Context, v catalog.Venue, year int) (WalkResult, error) {
	result := WalkResult{Exists: true}
	for part := 1; ; part++ {
		if part > w.maxParts {
			result.Reason = StopMaxParts
			w.logger.Warn("multi-part walk hit part limit",
				zap.String("venue", v.ID),
				zap.Int("year", year),
				zap.Int("max_parts", w.maxParts),
			)
			return result, nil
		}
		if err := ctx.Err(); err != nil {
			result.Reason = StopCanceled
			return result, fmt.Errorf("walk %s/%d: %w", v.ID, year, err)
		}

		addr, err := w.resolver.ResolvePart(v, year, part)
		if err != nil {
			return result, fmt.Errorf("walk %s/%d: %w", v.ID, year, err)
		}

		res := w.fetcher.Fetch(ctx, addr)
		result.Fetches++
		switch res.Outcome {
		case OutcomeNotFound:
			result.Reason = StopNotFound
			if part == 1 {
				result.Exists = false
			}
			return result, nil
		case OutcomeTransientFailure:
			result.Reason = StopTransient
			w.logger.Warn("multi-part walk stopped on fetch failure",
				zap.String("url", addr.URL),
				zap.Int("part", part),
				zap.Int("attempts", res.Attempts),
				zap.Error(res.Err),
			)
			return result, nil
		}

		records, err := w.extractor.Extract(res.Page)
		if err != nil {
			w.logger.Debug("malformed part treated as empty", zap.String("url", addr.URL), zap.Error(err))
			records = nil
		}
		if len(records) == 0 {
			result.Reason = StopEmpty
			return result, nil
		}
		result.Records = append(result.Records, records[1:]...)
		result.Parts++
	}
}
