// Package blob exports each dataset as a CSV object in a BlobStore.
package blob

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/venue-harvester/internal/crawler"
	"github.com/JakeFAU/venue-harvester/internal/sink"
)

const contentType = "text/csv"

// Config controls object naming and rendering.
type Config struct {
	// Prefix is prepended to every object path and is the scope of Reset.
	Prefix          string `mapstructure:"prefix"`
	AuthorSeparator string `mapstructure:"author_separator"`
}

// Sink writes {prefix}/{dataset id}.csv for every dataset.
type Sink struct {
	store  crawler.BlobStore
	cfg    Config
	logger *zap.Logger
}

// New builds a Sink over store.
func New(store crawler.BlobStore, cfg Config, logger *zap.Logger) (*Sink, error) {
	if store == nil {
		return nil, errors.New("blob store is required")
	}
	cfg.Prefix = strings.Trim(cfg.Prefix, "/")
	if cfg.AuthorSeparator == "" {
		cfg.AuthorSeparator = sink.DefaultAuthorSeparator
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sink{store: store, cfg: cfg, logger: logger}, nil
}

// ObjectPath is where the dataset with id is stored.
func (s *Sink) ObjectPath(id string) string {
	name := objectName(id) + ".csv"
	if s.cfg.Prefix == "" {
		return name
	}
	return path.Join(s.cfg.Prefix, name)
}

// Write renders ds as CSV and uploads it.
func (s *Sink) Write(ctx context.Context, ds crawler.Dataset) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(sink.Header); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}
	if err := w.WriteAll(sink.Rows(ds, s.cfg.AuthorSeparator)); err != nil {
		return fmt.Errorf("encode %s: %w", ds.ID, err)
	}

	p := s.ObjectPath(ds.ID)
	uri, err := s.store.PutObject(ctx, p, contentType, &buf)
	if err != nil {
		return fmt.Errorf("put %s: %w", p, err)
	}
	s.logger.Debug("dataset exported", zap.String("dataset", ds.ID), zap.String("uri", uri))
	return nil
}

// Reset removes every object under the prefix.
func (s *Sink) Reset(ctx context.Context) error {
	prefix := s.cfg.Prefix
	if prefix != "" {
		prefix += "/"
	}
	n, err := s.store.DeletePrefix(ctx, prefix)
	if err != nil {
		return fmt.Errorf("clear %q: %w", prefix, err)
	}
	if n > 0 {
		s.logger.Info("cleared previous exports", zap.String("prefix", prefix), zap.Int("objects", n))
	}
	return nil
}

func objectName(id string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		}
		return '_'
	}, id)
	name = strings.Trim(name, ".")
	if name == "" {
		return "dataset"
	}
	return name
}
