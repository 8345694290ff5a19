package config

import (
	"bytes"
	stderrors "errors"
	"io/fs"
	"os"

	"github.com/ajitpratap0/facilityfeed/pkg/errors"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// binding ties a configuration key to its default, environment variables and
// an optional command line flag.
type binding struct {
	key   string
	env   []string
	flag  string
	value interface{}
}

func bindings(d *Config) []binding {
	return []binding{
		{key: "database.url", env: []string{"DATABASE_URL"}, value: d.Database.URL},
		{key: "database.max_conns", env: []string{"DATABASE_MAX_CONNS"}, value: d.Database.MaxConns},
		{key: "database.min_conns", env: []string{"DATABASE_MIN_CONNS"}, value: d.Database.MinConns},

		{key: "source.backend", env: []string{"SOURCE_BACKEND"}, flag: "source", value: d.Source.Backend},
		{key: "source.table", env: []string{"SOURCE_TABLE"}, value: d.Source.Table},
		{key: "source.query", env: []string{"SOURCE_QUERY"}, value: d.Source.Query},
		{key: "source.path", env: []string{"SOURCE_PATH"}, flag: "source-path", value: d.Source.Path},

		{key: "storage.backend", env: []string{"STORAGE_BACKEND"}, flag: "storage", value: d.Storage.Backend},
		{key: "storage.prefix", env: []string{"STORAGE_PREFIX"}, value: d.Storage.Prefix},
		{key: "storage.request_timeout", env: []string{"STORAGE_REQUEST_TIMEOUT"}, value: d.Storage.RequestTimeout},
		{key: "storage.s3.bucket", env: []string{"S3_BUCKET_NAME"}, value: d.Storage.S3.Bucket},
		{key: "storage.s3.region", env: []string{"AWS_REGION", "AWS_DEFAULT_REGION"}, value: d.Storage.S3.Region},
		{key: "storage.s3.endpoint_url", env: []string{"AWS_ENDPOINT_URL"}, value: d.Storage.S3.EndpointURL},
		{key: "storage.s3.access_key_id", env: []string{"AWS_ACCESS_KEY_ID"}, value: d.Storage.S3.AccessKeyID},
		{key: "storage.s3.secret_access_key", env: []string{"AWS_SECRET_ACCESS_KEY"}, value: d.Storage.S3.SecretAccessKey},
		{key: "storage.s3.check_bucket", env: []string{"S3_CHECK_BUCKET"}, value: d.Storage.S3.CheckBucket},
		{key: "storage.gcs.bucket", env: []string{"GCS_BUCKET_NAME"}, value: d.Storage.GCS.Bucket},
		{key: "storage.gcs.project_id", env: []string{"GCS_PROJECT_ID"}, value: d.Storage.GCS.ProjectID},
		{key: "storage.gcs.credentials_file", env: []string{"GCS_CREDENTIALS_FILE"}, value: d.Storage.GCS.CredentialsFile},
		{key: "storage.gcs.endpoint_url", env: []string{"GCS_ENDPOINT_URL"}, value: d.Storage.GCS.EndpointURL},
		{key: "storage.file.output_dir", env: []string{"FILE_OUTPUT_DIR"}, flag: "output-dir", value: d.Storage.File.OutputDir},

		{key: "feed.chunk_size", env: []string{"FEED_CHUNK_SIZE"}, flag: "chunk-size", value: d.Feed.ChunkSize},
		{key: "feed.max_concurrent_uploads", env: []string{"MAX_CONCURRENT_UPLOADS"}, flag: "max-concurrent-uploads", value: d.Feed.MaxConcurrentUploads},
		{key: "feed.compression", env: []string{"FEED_COMPRESSION"}, flag: "compression", value: d.Feed.Compression},
		{key: "feed.compression_level", env: []string{"FEED_COMPRESSION_LEVEL"}, value: d.Feed.CompressionLevel},
		{key: "feed.strict_ids", env: []string{"FEED_STRICT_IDS"}, value: d.Feed.StrictIDs},

		{key: "log.level", env: []string{"LOG_LEVEL"}, flag: "log-level", value: d.Log.Level},
		{key: "log.encoding", env: []string{"LOG_ENCODING"}, value: d.Log.Encoding},
		{key: "log.development", env: []string{"LOG_DEVELOPMENT"}, value: d.Log.Development},

		{key: "observability.metrics_enabled", env: []string{"METRICS_ENABLED"}, value: d.Observability.MetricsEnabled},
		{key: "observability.pushgateway_url", env: []string{"METRICS_PUSHGATEWAY_URL"}, value: d.Observability.PushgatewayURL},
		{key: "observability.tracing_enabled", env: []string{"TRACING_ENABLED"}, value: d.Observability.TracingEnabled},
		{key: "observability.tracing_sample_rate", env: []string{"TRACING_SAMPLE_RATE"}, value: d.Observability.TracingSampleRate},
	}
}

// Options controls where Load looks for configuration
type Options struct {
	// ConfigFile is an optional YAML file. ${VAR} references are expanded
	// from the environment before parsing.
	ConfigFile string
	// EnvFiles are dotenv files loaded into the environment first. Missing
	// files are ignored and variables already set are never overridden.
	EnvFiles []string
	// Flags holds flags registered with RegisterFlags
	Flags *pflag.FlagSet
}

// RegisterFlags adds the command line overrides understood by Load.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("source", d.Source.Backend, "source backend (postgres, mysql, jsonl)")
	fs.String("source-path", d.Source.Path, "input file for the jsonl source")
	fs.String("storage", d.Storage.Backend, "storage backend (s3, gcs, file)")
	fs.String("output-dir", d.Storage.File.OutputDir, "output directory for the file storage backend")
	fs.Int("chunk-size", d.Feed.ChunkSize, "records per feed file")
	fs.Int("max-concurrent-uploads", d.Feed.MaxConcurrentUploads, "chunks processed concurrently")
	fs.String("compression", d.Feed.Compression, "feed file compression (gzip, zstd, lz4, none)")
	fs.String("log-level", d.Log.Level, "log level (debug, info, warn, error)")
}

// Load builds the configuration from defaults, the optional config file, the
// environment and command line flags, in increasing order of precedence. The
// result is validated.
func Load(opts Options) (*Config, error) {
	for _, file := range opts.EnvFiles {
		if err := godotenv.Load(file); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to load env file "+file)
		}
	}

	v := viper.New()
	for _, b := range bindings(Default()) {
		v.SetDefault(b.key, b.value)
		if err := v.BindEnv(append([]string{b.key}, b.env...)...); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to bind env for "+b.key)
		}
		if b.flag != "" && opts.Flags != nil {
			if f := opts.Flags.Lookup(b.flag); f != nil {
				if err := v.BindPFlag(b.key, f); err != nil {
					return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to bind flag --"+b.flag)
				}
			}
		}
	}

	if opts.ConfigFile != "" {
		data, err := os.ReadFile(opts.ConfigFile) //nolint:gosec // G304: path comes from the operator
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to read config file")
		}
		v.SetConfigType("yaml")
		if err := v.ReadConfig(bytes.NewReader([]byte(os.ExpandEnv(string(data))))); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse YAML")
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to decode configuration")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
