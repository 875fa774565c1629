// Package sink combines dataset sinks and holds the tabular layout shared by
// the file-based exports.
package sink

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/JakeFAU/venue-harvester/internal/crawler"
	"github.com/JakeFAU/venue-harvester/internal/metrics"
)

// Header is the column layout of every tabular export.
var Header = []string{"Conference/Journal", "Title", "Authors"}

// DefaultAuthorSeparator joins author names into one cell.
const DefaultAuthorSeparator = "; "

// Rows renders ds as table rows matching Header, in record order.
func Rows(ds crawler.Dataset, sep string) [][]string {
	rows := make([][]string, len(ds.Records))
	for i, rec := range ds.Records {
		rows[i] = []string{ds.ID, rec.Title, rec.JoinedAuthors(sep)}
	}
	return rows
}

// Serialized guards a sink that is not safe for concurrent use.
type Serialized struct {
	mu   sync.Mutex
	next crawler.Sink
}

// NewSerialized wraps next.
func NewSerialized(next crawler.Sink) *Serialized {
	return &Serialized{next: next}
}

// Write forwards ds while holding the lock.
func (s *Serialized) Write(ctx context.Context, ds crawler.Dataset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next.Write(ctx, ds)
}

// Reset forwards to the wrapped sink when it supports resetting.
func (s *Serialized) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.next.(crawler.Resetter); ok {
		return r.Reset(ctx)
	}
	return nil
}

// Named pairs a sink with the label used in logs and metrics.
type Named struct {
	Name string
	Sink crawler.Sink
}

// Fanout writes every dataset to each member sink. A failing member does not
// stop the others.
type Fanout struct {
	sinks []Named
}

// NewFanout builds a Fanout over sinks.
func NewFanout(sinks ...Named) *Fanout {
	return &Fanout{sinks: append([]Named(nil), sinks...)}
}

// Len reports the number of member sinks.
func (f *Fanout) Len() int { return len(f.sinks) }

// Write implements crawler.Sink.
func (f *Fanout) Write(ctx context.Context, ds crawler.Dataset) error {
	var errs []error
	for _, s := range f.sinks {
		err := s.Sink.Write(ctx, ds)
		metrics.ObserveSinkWrite(s.Name, err)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Reset resets every member that supports it.
func (f *Fanout) Reset(ctx context.Context) error {
	var errs []error
	for _, s := range f.sinks {
		r, ok := s.Sink.(crawler.Resetter)
		if !ok {
			continue
		}
		if err := r.Reset(ctx); err != nil {
			errs = append(errs, fmt.Errorf("reset %s: %w", s.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Memory keeps written datasets in order. It backs dry runs and tests.
type Memory struct {
	mu       sync.Mutex
	datasets []crawler.Dataset
	index    map[string]int
}

// NewMemory returns an empty Memory sink.
func NewMemory() *Memory {
	return &Memory{index: make(map[string]int)}
}

// Write stores ds, replacing an earlier dataset with the same ID.
func (m *Memory) Write(_ context.Context, ds crawler.Dataset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i, ok := m.index[ds.ID]; ok {
		m.datasets[i] = ds
		return nil
	}
	m.index[ds.ID] = len(m.datasets)
	m.datasets = append(m.datasets, ds)
	return nil
}

// Reset discards everything written so far.
func (m *Memory) Reset(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.datasets = nil
	m.index = make(map[string]int)
	return nil
}

// Datasets returns the stored datasets in write order.
func (m *Memory) Datasets() []crawler.Dataset {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]crawler.Dataset(nil), m.datasets...)
}

// Get returns the dataset stored under id.
func (m *Memory) Get(id string) (crawler.Dataset, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.index[id]
	if !ok {
		return crawler.Dataset{}, false
	}
	return m.datasets[i], true
}
