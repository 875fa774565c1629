// Package config loads and validates harvester configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/venue-harvester/internal/catalog"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Harvest HarvestConfig `mapstructure:"harvest"`
	Fetch   FetchConfig   `mapstructure:"fetch"`
	Extract ExtractConfig `mapstructure:"extract"`
	Output  OutputConfig  `mapstructure:"output"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
	Catalog CatalogConfig `mapstructure:"catalog"`
}

// HarvestConfig governs the venue-year loop.
type HarvestConfig struct {
	FromYear    int           `mapstructure:"from_year"`
	ToYear      int           `mapstructure:"to_year"`
	Concurrency int           `mapstructure:"concurrency"`
	Delay       time.Duration `mapstructure:"delay"`
	MaxParts    int           `mapstructure:"max_parts"`
	NewestFirst bool          `mapstructure:"newest_first"`
}

// FetchConfig configures HTTP retrieval and retry behavior.
type FetchConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	UserAgent      string        `mapstructure:"user_agent"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	BackoffInitial time.Duration `mapstructure:"backoff_initial"`
	BackoffMax     time.Duration `mapstructure:"backoff_max"`
	MaxBodyBytes   int           `mapstructure:"max_body_bytes"`
}

// ExtractConfig tunes record filtering.
type ExtractConfig struct {
	SkipPrefixes    []string `mapstructure:"skip_prefixes"`
	AuthorSeparator string   `mapstructure:"author_separator"`
}

// OutputConfig selects the sinks a run writes to.
type OutputConfig struct {
	XLSX     XLSXConfig     `mapstructure:"xlsx"`
	Blob     BlobConfig     `mapstructure:"blob"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
}

// XLSXConfig controls the workbook export.
type XLSXConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Blob backends.
const (
	BlobNone   = ""
	BlobLocal  = "local"
	BlobGCS    = "gcs"
	BlobMemory = "memory"
)

// BlobConfig controls per-dataset CSV exports.
type BlobConfig struct {
	Backend string `mapstructure:"backend"`
	BaseDir string `mapstructure:"base_dir"`
	Bucket  string `mapstructure:"bucket"`
	Prefix  string `mapstructure:"prefix"`
}

// PostgresConfig controls the relational export.
type PostgresConfig struct {
	DSN             string        `mapstructure:"dsn"`
	Table           string        `mapstructure:"table"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// PubSubConfig holds metadata for dataset notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// MetricsConfig controls the ops HTTP server. An empty address disables it.
type MetricsConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
}

// LoggingConfig toggles zap development features and the minimum level.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from disk and the environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("HARVEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("harvest.from_year", 2018)
	v.SetDefault("harvest.to_year", 2022)
	v.SetDefault("harvest.concurrency", 1)
	v.SetDefault("harvest.delay", "1s")
	v.SetDefault("harvest.max_parts", 64)
	v.SetDefault("harvest.newest_first", false)
	v.SetDefault("fetch.base_url", "https://dblp.org")
	v.SetDefault("fetch.user_agent", "venue-harvester/0.1")
	v.SetDefault("fetch.timeout", "10s")
	v.SetDefault("fetch.max_retries", 5)
	v.SetDefault("fetch.backoff_initial", "500ms")
	v.SetDefault("fetch.backoff_max", "30s")
	v.SetDefault("fetch.max_body_bytes", 0)
	v.SetDefault("extract.skip_prefixes", []string{"frontmatter", "front matter", "editorial"})
	v.SetDefault("extract.author_separator", "; ")
	v.SetDefault("output.xlsx.enabled", true)
	v.SetDefault("output.xlsx.path", "all_papers.xlsx")
	v.SetDefault("output.blob.backend", BlobNone)
	v.SetDefault("output.blob.base_dir", "datasets")
	v.SetDefault("output.blob.bucket", "")
	v.SetDefault("output.blob.prefix", "datasets")
	v.SetDefault("output.postgres.dsn", "")
	v.SetDefault("output.postgres.table", "publications")
	v.SetDefault("output.pubsub.project_id", "")
	v.SetDefault("output.pubsub.topic", "")
	v.SetDefault("metrics.listen_addr", "")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("catalog.preset", "dblp")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if err := c.Years().Validate(); err != nil {
		return fmt.Errorf("harvest.from_year/to_year: %w", err)
	}
	if c.Harvest.Concurrency <= 0 {
		return fmt.Errorf("harvest.concurrency must be > 0")
	}
	if c.Harvest.Delay < 0 {
		return fmt.Errorf("harvest.delay must be >= 0")
	}
	if c.Harvest.MaxParts <= 0 {
		return fmt.Errorf("harvest.max_parts must be > 0")
	}
	if c.Fetch.Timeout <= 0 {
		return fmt.Errorf("fetch.timeout must be > 0")
	}
	if c.Fetch.MaxRetries < 0 {
		return fmt.Errorf("fetch.max_retries must be >= 0")
	}
	if c.Fetch.BackoffInitial <= 0 || c.Fetch.BackoffMax < c.Fetch.BackoffInitial {
		return fmt.Errorf("fetch.backoff_initial must be > 0 and <= fetch.backoff_max")
	}
	if c.Output.XLSX.Enabled && strings.TrimSpace(c.Output.XLSX.Path) == "" {
		return fmt.Errorf("output.xlsx.path must be set when the workbook is enabled")
	}
	switch c.Output.Blob.Backend {
	case BlobNone, BlobMemory:
	case BlobLocal:
		if strings.TrimSpace(c.Output.Blob.BaseDir) == "" {
			return fmt.Errorf("output.blob.base_dir must be set for the local backend")
		}
	case BlobGCS:
		if strings.TrimSpace(c.Output.Blob.Bucket) == "" {
			return fmt.Errorf("output.blob.bucket must be set for the gcs backend")
		}
	default:
		return fmt.Errorf("output.blob.backend %q is not one of local, gcs, memory", c.Output.Blob.Backend)
	}
	if c.Output.PubSub.Topic != "" && c.Output.PubSub.ProjectID == "" {
		return fmt.Errorf("output.pubsub.project_id must be set when a topic is configured")
	}
	if _, err := c.Catalog.Build(); err != nil {
		return err
	}
	return nil
}

// Years returns the configured inclusive year range.
func (c Config) Years() catalog.YearRange {
	return catalog.YearRange{From: c.Harvest.FromYear, To: c.Harvest.ToYear}
}
