// Package config loads the facilityfeed runtime configuration.
//
// Values are resolved with viper from four layers, later layers winning:
//
//  1. built-in defaults (see Default)
//  2. an optional YAML file passed with --config
//  3. environment variables, after dotenv files have been loaded
//  4. command line flags registered with RegisterFlags
//
// # Environment
//
// The environment names are the ones operators already use for the feed job:
//
//	DATABASE_URL            source connection string
//	S3_BUCKET_NAME          destination bucket
//	AWS_REGION              bucket region
//	AWS_ENDPOINT_URL        custom endpoint (MinIO, LocalStack)
//	AWS_ACCESS_KEY_ID       static credentials, optional
//	AWS_SECRET_ACCESS_KEY   static credentials, optional
//	LOG_LEVEL               debug, info, warn or error
//	FEED_CHUNK_SIZE         records per feed file, default 100
//	MAX_CONCURRENT_UPLOADS  chunks in flight, default 10
//
// Other backends and options use STORAGE_*, GCS_*, FILE_OUTPUT_DIR, SOURCE_*,
// FEED_*, LOG_* and METRICS_* / TRACING_* variables.
//
// # Usage
//
//	flags := pflag.NewFlagSet("facilityfeed", pflag.ContinueOnError)
//	config.RegisterFlags(flags)
//	_ = flags.Parse(os.Args[1:])
//
//	cfg, err := config.Load(config.Options{
//		ConfigFile: configPath,
//		EnvFiles:   []string{".env"},
//		Flags:      flags,
//	})
//
// Load always validates; a returned configuration is ready to use. Dump
// renders it back to YAML with credentials masked.
package config
