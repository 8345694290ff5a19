// Command facilityfeed generates the facility feed: it reads facility rows,
// writes them as compressed JSON files to an object store and publishes a
// manifest listing them once every file is stored.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/facilityfeed/internal/feed"
	"github.com/ajitpratap0/facilityfeed/internal/registry"
	"github.com/ajitpratap0/facilityfeed/pkg/compression"
	"github.com/ajitpratap0/facilityfeed/pkg/config"
	"github.com/ajitpratap0/facilityfeed/pkg/logger"
	"github.com/ajitpratap0/facilityfeed/pkg/metrics"
	"github.com/ajitpratap0/facilityfeed/pkg/observability"
)

var version = "0.1.0"

const serviceName = "facilityfeed"

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	var configFile string

	load := func(cmd *cobra.Command) (*config.Config, error) {
		return config.Load(config.Options{
			ConfigFile: configFile,
			EnvFiles:   []string{".env"},
			Flags:      cmd.Flags(),
		})
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Generate the facility feed",
		Long: `Read every facility row, upload the rows as compressed JSON feed files and
write metadata.json listing them. The manifest is only written when every
file was stored.

Example:
  facilityfeed run --source jsonl --source-path facilities.jsonl --storage file --output-dir ./feed`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}
			return generate(cmd.Context(), cfg)
		},
	}

	root := &cobra.Command{
		Use:   serviceName,
		Short: "Facility feed generator",
		Long: `facilityfeed exports facility records from a relational database into an
object store as chunked, compressed JSON feed files plus a manifest.`,
		SilenceUsage: true,
		RunE:         runCmd.RunE,
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&configFile, "config", "", "path to a YAML configuration file")
	config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(runCmd)

	root.AddCommand(&cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration with secrets redacted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}
			data, err := cfg.Dump()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "facilityfeed v%s\n", version)
			fmt.Fprintf(w, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(w, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	return root
}

// generate performs one run with cfg
func generate(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := logger.Init(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
		Encoding:    cfg.Log.Encoding,
	}); err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck // stderr sync fails on some terminals

	log := logger.Get().With(zap.String("component", "facilityfeed-cli"))
	log.Debug("configuration loaded", zap.Any("config", cfg.Redacted()))

	shutdown, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:        cfg.Observability.TracingEnabled,
		ServiceName:    serviceName,
		ServiceVersion: version,
		SamplingRate:   cfg.Observability.TracingSampleRate,
		Writer:         os.Stderr,
	})
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(flushCtx); err != nil {
			log.Warn("failed to flush traces", zap.Error(err))
		}
	}()

	var collector *metrics.Collector
	if cfg.Observability.MetricsEnabled {
		collector = metrics.NewCollector(serviceName)
	}

	reg := registry.Default()

	reader, err := reg.NewSource(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := reader.Close(); err != nil {
			log.Warn("failed to close source", zap.Error(err))
		}
	}()

	writer, closeSink, err := reg.NewSink(ctx, cfg, log, collector)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeSink(); err != nil {
			log.Warn("failed to close storage client", zap.Error(err))
		}
	}()

	compCfg, err := cfg.Feed.CompressionConfig()
	if err != nil {
		return err
	}
	comp, err := compression.NewCompressor(compCfg)
	if err != nil {
		return err
	}

	generator := feed.New(reader, writer, feed.Options{
		ChunkSize:            cfg.Feed.ChunkSize,
		MaxConcurrentUploads: cfg.Feed.MaxConcurrentUploads,
		StrictIDs:            cfg.Feed.StrictIDs,
	},
		feed.WithLogger(log),
		feed.WithMetrics(collector),
		feed.WithCompressor(comp),
	)

	_, runErr := generator.Execute(ctx)

	if url := cfg.Observability.PushgatewayURL; url != "" {
		pushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := collector.Push(pushCtx, url); err != nil {
			log.Warn("failed to push metrics", zap.String("url", url), zap.Error(err))
		}
	}

	return runErr
}
