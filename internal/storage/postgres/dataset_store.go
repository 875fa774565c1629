// Package postgres persists harvested datasets into a Postgres table.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/venue-harvester/internal/crawler"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

var copyColumns = []string{"run_id", "dataset_id", "venue_id", "year", "position", "title", "authors", "written_at"}

// Config controls the connection pool used for publication rows.
type Config struct {
	DSN             string        `mapstructure:"dsn"`
	Table           string        `mapstructure:"table"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error)
	Close()
}

// DatasetStore writes one row per publication, keyed by run and dataset.
type DatasetStore struct {
	pool  pool
	table string
	runID string
	clock crawler.Clock
}

// NewDatasetStore connects to Postgres using cfg. Rows are tagged with runID.
func NewDatasetStore(ctx context.Context, cfg Config, runID string, clock crawler.Clock) (*DatasetStore, error) {
	if cfg.DSN == "" {
		return nil, errors.New("output.postgres.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store, err := NewDatasetStoreWithPool(p, cfg.Table, runID, clock)
	if err != nil {
		p.Close()
		return nil, err
	}
	return store, nil
}

// NewDatasetStoreWithPool builds a store around an existing pool (primarily for testing).
func NewDatasetStoreWithPool(p pool, table, runID string, clock crawler.Clock) (*DatasetStore, error) {
	if p == nil {
		return nil, errors.New("pool is required")
	}
	if table == "" {
		table = "publications"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	if runID == "" {
		return nil, errors.New("run id is required")
	}
	if clock == nil {
		return nil, errors.New("clock is required")
	}
	return &DatasetStore{pool: p, table: table, runID: runID, clock: clock}, nil
}

// Reset creates the table when missing. Rows from earlier runs stay in place;
// every row carries its run id, so runs never mix.
func (s *DatasetStore) Reset(ctx context.Context) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	run_id TEXT NOT NULL,
	dataset_id TEXT NOT NULL,
	venue_id TEXT NOT NULL,
	year INTEGER NOT NULL,
	position INTEGER NOT NULL,
	title TEXT NOT NULL,
	authors TEXT[] NOT NULL,
	written_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (run_id, dataset_id, position)
)`, s.table)
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create %s: %w", s.table, err)
	}
	return nil
}

// Write copies every record of ds into the table in list order.
func (s *DatasetStore) Write(ctx context.Context, ds crawler.Dataset) error {
	if len(ds.Records) == 0 {
		return nil
	}
	now := s.clock.Now()
	rows := make([][]any, len(ds.Records))
	for i, rec := range ds.Records {
		authors := rec.Authors
		if authors == nil {
			authors = []string{}
		}
		rows[i] = []any{s.runID, ds.ID, ds.VenueID, ds.Year, i, rec.Title, authors, now}
	}
	n, err := s.pool.CopyFrom(ctx, pgx.Identifier{s.table}, copyColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("copy %s into %s: %w", ds.ID, s.table, err)
	}
	if n != int64(len(rows)) {
		return fmt.Errorf("copy %s into %s: wrote %d of %d rows", ds.ID, s.table, n, len(rows))
	}
	return nil
}

// Close releases the underlying pool.
func (s *DatasetStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}
