// Package facilityfeed exports the facility table as a feed: a set of
// chunked, compressed JSON files in an object store plus a manifest,
// metadata.json, that lists them.
//
// # Architecture
//
// A run is a single pass over the source:
//
//  1. Rows are pulled in bounded chunks, in a stable order, by one goroutine.
//  2. Each non-empty chunk becomes a unit of work: transform to feed records,
//     wrap as {"data": [...]}, encode as JSON, gzip, upload.
//  3. A weighted semaphore caps the units in flight. The scheduling loop
//     acquires a slot before pulling further, so extraction never runs more
//     than one chunk ahead of the uploads.
//  4. Once every unit has resolved, the outcomes are aggregated. The manifest
//     is written only when every chunk uploaded; a single failure fails the
//     run and leaves the previous manifest in place.
//
// Feed files are named facility_feed_<generation_timestamp>_<index>.json.gz
// with indices counted from 1 over non-empty chunks. The manifest lists them
// in lexical order:
//
//	{"generation_timestamp":1700000000,"data_file":["facility_feed_1700000000_1.json.gz"]}
//
// # Quick Start
//
// Write a feed from a JSON-lines file into a local directory:
//
//	facilityfeed run --source jsonl --source-path facilities.jsonl \
//	    --storage file --output-dir ./feed
//
// Or from PostgreSQL into S3, configured through the environment:
//
//	export DATABASE_URL=postgres://feed:secret@db:5432/facilities
//	export S3_BUCKET_NAME=facility-feed
//	facilityfeed run
//
// # Key Packages
//
//	internal/feed      - Generation pipeline, manifest and run outcome
//	internal/facility  - Mapping from raw rows to feed records
//	internal/source    - Chunk streams over PostgreSQL, MySQL and JSON lines
//	internal/sink      - Object writers for S3, GCS and local directories
//	internal/registry  - Backend selection from configuration
//	pkg/config         - Configuration from files, environment and flags
//	pkg/compression    - gzip, zstd and lz4 compressors
//	pkg/errors         - Structured error handling
//	pkg/logger         - Structured logging
//	pkg/metrics        - Prometheus run metrics with Pushgateway support
//	pkg/observability  - OpenTelemetry tracing
//
// # Configuration
//
// Settings are read from defaults, an optional YAML file (--config), a .env
// file, the environment and command line flags, in increasing order of
// precedence. Print the effective configuration with secrets redacted:
//
//	facilityfeed config
//
// ${VAR_NAME} references in the YAML file are expanded from the environment.
package facilityfeed
