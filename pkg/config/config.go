package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ajitpratap0/facilityfeed/pkg/compression"
	"github.com/ajitpratap0/facilityfeed/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Source backends
const (
	SourcePostgres = "postgres"
	SourceMySQL    = "mysql"
	SourceJSONL    = "jsonl"
)

// Storage backends
const (
	StorageS3   = "s3"
	StorageGCS  = "gcs"
	StorageFile = "file"
)

// redacted matches the placeholder used by url.URL.Redacted
const redacted = "xxxxx"

// Config is the complete runtime configuration of a generation run. It is
// built once by the entry point and handed to constructors.
type Config struct {
	Database      DatabaseConfig      `yaml:"database" mapstructure:"database"`
	Source        SourceConfig        `yaml:"source" mapstructure:"source"`
	Storage       StorageConfig       `yaml:"storage" mapstructure:"storage"`
	Feed          FeedConfig          `yaml:"feed" mapstructure:"feed"`
	Log           LogConfig           `yaml:"log" mapstructure:"log"`
	Observability ObservabilityConfig `yaml:"observability" mapstructure:"observability"`
}

// DatabaseConfig describes the relational source connection
type DatabaseConfig struct {
	URL      string `yaml:"url" mapstructure:"url"`
	MaxConns int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// SourceConfig selects where facility rows are read from
type SourceConfig struct {
	// Backend is one of postgres, mysql or jsonl
	Backend string `yaml:"backend" mapstructure:"backend"`
	Table   string `yaml:"table" mapstructure:"table"`
	// Query replaces the default SELECT over Table when set
	Query string `yaml:"query" mapstructure:"query"`
	// Path is the input file of the jsonl backend
	Path string `yaml:"path" mapstructure:"path"`
}

// StorageConfig selects the object store feed files are written to
type StorageConfig struct {
	Backend        string        `yaml:"backend" mapstructure:"backend"`
	Prefix         string        `yaml:"prefix" mapstructure:"prefix"`
	RequestTimeout time.Duration `yaml:"request_timeout" mapstructure:"request_timeout"`
	S3             S3Config      `yaml:"s3" mapstructure:"s3"`
	GCS            GCSConfig     `yaml:"gcs" mapstructure:"gcs"`
	File           FileConfig    `yaml:"file" mapstructure:"file"`
}

// S3Config holds the S3 sink settings
type S3Config struct {
	Bucket          string `yaml:"bucket" mapstructure:"bucket"`
	Region          string `yaml:"region" mapstructure:"region"`
	EndpointURL     string `yaml:"endpoint_url" mapstructure:"endpoint_url"`
	AccessKeyID     string `yaml:"access_key_id" mapstructure:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key" mapstructure:"secret_access_key"`
	CheckBucket     bool   `yaml:"check_bucket" mapstructure:"check_bucket"`
}

// GCSConfig holds the Google Cloud Storage sink settings
type GCSConfig struct {
	Bucket          string `yaml:"bucket" mapstructure:"bucket"`
	ProjectID       string `yaml:"project_id" mapstructure:"project_id"`
	CredentialsFile string `yaml:"credentials_file" mapstructure:"credentials_file"`
	EndpointURL     string `yaml:"endpoint_url" mapstructure:"endpoint_url"`
}

// FileConfig holds the local directory sink settings
type FileConfig struct {
	OutputDir string `yaml:"output_dir" mapstructure:"output_dir"`
}

// FeedConfig controls chunking, concurrency and encoding of feed files
type FeedConfig struct {
	ChunkSize            int    `yaml:"chunk_size" mapstructure:"chunk_size"`
	MaxConcurrentUploads int    `yaml:"max_concurrent_uploads" mapstructure:"max_concurrent_uploads"`
	Compression          string `yaml:"compression" mapstructure:"compression"`
	CompressionLevel     string `yaml:"compression_level" mapstructure:"compression_level"`
	// StrictIDs fails a chunk that contains a record without an id
	StrictIDs bool `yaml:"strict_ids" mapstructure:"strict_ids"`
}

// LogConfig configures the zap logger
type LogConfig struct {
	Level       string `yaml:"level" mapstructure:"level"`
	Encoding    string `yaml:"encoding" mapstructure:"encoding"`
	Development bool   `yaml:"development" mapstructure:"development"`
}

// ObservabilityConfig toggles metrics and tracing
type ObservabilityConfig struct {
	MetricsEnabled    bool    `yaml:"metrics_enabled" mapstructure:"metrics_enabled"`
	PushgatewayURL    string  `yaml:"pushgateway_url" mapstructure:"pushgateway_url"`
	TracingEnabled    bool    `yaml:"tracing_enabled" mapstructure:"tracing_enabled"`
	TracingSampleRate float64 `yaml:"tracing_sample_rate" mapstructure:"tracing_sample_rate"`
}

// Default returns the configuration used when nothing overrides a key.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			MaxConns: 5,
			MinConns: 1,
		},
		Source: SourceConfig{
			Backend: SourcePostgres,
			Table:   "facility",
		},
		Storage: StorageConfig{
			Backend:        StorageS3,
			RequestTimeout: 60 * time.Second,
			S3: S3Config{
				Region: "us-east-1",
			},
			File: FileConfig{
				OutputDir: "./feed",
			},
		},
		Feed: FeedConfig{
			ChunkSize:            100,
			MaxConcurrentUploads: 10,
			Compression:          string(compression.Gzip),
			CompressionLevel:     "default",
			StrictIDs:            true,
		},
		Log: LogConfig{
			Level:    "info",
			Encoding: "json",
		},
		Observability: ObservabilityConfig{
			TracingSampleRate: 1.0,
		},
	}
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	if c.Feed.ChunkSize <= 0 {
		return invalid("feed.chunk_size must be positive, got %d", c.Feed.ChunkSize)
	}
	if c.Feed.MaxConcurrentUploads <= 0 {
		return invalid("feed.max_concurrent_uploads must be positive, got %d", c.Feed.MaxConcurrentUploads)
	}
	if _, err := c.Feed.CompressionConfig(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "invalid feed compression")
	}
	if c.Storage.RequestTimeout < 0 {
		return invalid("storage.request_timeout cannot be negative")
	}

	switch c.Source.Backend {
	case SourcePostgres, SourceMySQL:
		if c.Database.URL == "" {
			return invalid("database.url is required for the %s source", c.Source.Backend)
		}
		if c.Source.Table == "" && c.Source.Query == "" {
			return invalid("source.table or source.query is required")
		}
		if c.Database.MaxConns <= 0 || c.Database.MinConns < 0 || c.Database.MinConns > c.Database.MaxConns {
			return invalid("database pool sizes are inconsistent: min %d, max %d",
				c.Database.MinConns, c.Database.MaxConns)
		}
	case SourceJSONL:
		if c.Source.Path == "" {
			return invalid("source.path is required for the jsonl source")
		}
	default:
		return invalid("unsupported source backend %q", c.Source.Backend)
	}

	switch c.Storage.Backend {
	case StorageS3:
		if c.Storage.S3.Bucket == "" {
			return invalid("storage.s3.bucket is required")
		}
		if c.Storage.S3.Region == "" {
			return invalid("storage.s3.region is required")
		}
		if (c.Storage.S3.AccessKeyID == "") != (c.Storage.S3.SecretAccessKey == "") {
			return invalid("storage.s3 access key id and secret access key must be set together")
		}
	case StorageGCS:
		if c.Storage.GCS.Bucket == "" {
			return invalid("storage.gcs.bucket is required")
		}
	case StorageFile:
		if c.Storage.File.OutputDir == "" {
			return invalid("storage.file.output_dir is required")
		}
	default:
		return invalid("unsupported storage backend %q", c.Storage.Backend)
	}

	return nil
}

// CompressionConfig resolves the feed compression settings.
func (f FeedConfig) CompressionConfig() (*compression.Config, error) {
	algorithm, err := compression.ParseAlgorithm(f.Compression)
	if err != nil {
		return nil, err
	}

	var level compression.Level
	switch strings.ToLower(strings.TrimSpace(f.CompressionLevel)) {
	case "", "default":
		level = compression.Default
	case "fastest":
		level = compression.Fastest
	case "better":
		level = compression.Better
	case "best":
		level = compression.Best
	default:
		return nil, fmt.Errorf("unsupported compression level: %s", f.CompressionLevel)
	}

	return &compression.Config{Algorithm: algorithm, Level: level}, nil
}

// Redacted returns a copy with credentials masked.
func (c *Config) Redacted() *Config {
	out := *c
	out.Database.URL = redactURL(c.Database.URL)
	if out.Storage.S3.SecretAccessKey != "" {
		out.Storage.S3.SecretAccessKey = redacted
	}
	return &out
}

// Dump renders the configuration as YAML with credentials masked.
func (c *Config) Dump() ([]byte, error) {
	data, err := yaml.Marshal(c.Redacted())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal YAML: %w", err)
	}
	return data, nil
}

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		// go-sql-driver DSNs (user:pass@tcp(host)/db) are not URLs
		if at := strings.LastIndex(raw, "@"); at > 0 {
			if colon := strings.Index(raw[:at], ":"); colon >= 0 {
				return raw[:colon+1] + redacted + raw[at:]
			}
		}
		return raw
	}
	return u.Redacted()
}

func invalid(format string, args ...interface{}) error {
	return errors.Newf(errors.ErrorTypeConfig, format, args...)
}
