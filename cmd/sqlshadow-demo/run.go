package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kroma-labs/sqlshadow/config"
	"github.com/kroma-labs/sqlshadow/httpdebug"
	"github.com/kroma-labs/sqlshadow/internal/database"
	"github.com/kroma-labs/sqlshadow/internal/telemetry"
	sqlshadow "github.com/kroma-labs/sqlshadow/sql"
)

type runOptions struct {
	listen       string
	dsn          string
	interval     time.Duration
	iterations   int
	slowScanSize int
	otlpEndpoint string
}

var runFlags runOptions

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the workload and serve the execution log",
	Long: `Run the demo workload on a ticker and serve:

  /debug/sql/...   execution log, stats and threshold (see package httpdebug)
  /metrics         Prometheus metrics

Examples:
  # Run until interrupted
  sqlshadow-demo run

  # Run three rounds without an HTTP server
  sqlshadow-demo run --listen "" --iterations 3 --interval 100ms`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return runWorkload(ctx, cfg, runFlags, cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listen, "listen", "l", ":2112", "HTTP listen address, empty to disable")
	runCmd.Flags().StringVar(&runFlags.dsn, "dsn", ":memory:", "SQLite DSN")
	runCmd.Flags().DurationVar(&runFlags.interval, "interval", 5*time.Second, "time between workload rounds")
	runCmd.Flags().IntVar(&runFlags.iterations, "iterations", 0, "number of rounds, 0 runs until interrupted")
	runCmd.Flags().IntVar(&runFlags.slowScanSize, "slow-scan", 200000, "rows generated by the slow query")
	runCmd.Flags().StringVar(&runFlags.otlpEndpoint, "otlp-endpoint", "", "OTLP gRPC endpoint for traces")
}

func runWorkload(ctx context.Context, cfg *config.Config, opts runOptions, stdout, stderr io.Writer) error {
	logger := cfg.Logger(stderr)

	registry := prometheus.NewRegistry()
	providers, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName:    "sqlshadow-demo",
		ServiceVersion: Version,
		OTLPEndpoint:   opts.otlpEndpoint,
		Registerer:     registry,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("telemetry shutdown failed")
		}
	}()

	tel, rdb := cfg.NewTelemetry(logger)
	if rdb != nil {
		defer rdb.Close()
	}

	dbOpts := append(cfg.Options(tel),
		sqlshadow.WithTracerProvider(providers.TracerProvider),
		sqlshadow.WithMeterProvider(providers.MeterProvider),
	)
	db, err := database.New(ctx, opts.dsn, logger, dbOpts...)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := sqlshadow.RecordPoolMetrics(db.DB.DB.DB, providers.MeterProvider.Meter("sqlshadow-demo")); err != nil {
		logger.Warn().Err(err).Msg("failed to register pool metrics")
	}
	registry.MustRegister(sqlshadow.NewCollector(tel, cfg.Database.Instance))

	if err := db.CreateTable(ctx); err != nil {
		return fmt.Errorf("create table: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	if opts.listen != "" {
		mux := http.NewServeMux()
		mux.Handle("/debug/sql/", http.StripPrefix("/debug/sql", httpdebug.New(tel,
			httpdebug.WithLogger(logger),
			httpdebug.WithInstanceName(cfg.Database.Instance),
		)))
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

		srv := &http.Server{Addr: opts.listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			logger.Info().Str("addr", opts.listen).Msg("serving /debug/sql and /metrics")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if cfgFile != "" {
		g.Go(func() error {
			return config.Watch(ctx, cfgFile, tel, logger)
		})
	}

	g.Go(func() error {
		defer cancel()
		return loop(ctx, db, opts, logger)
	})

	if err := g.Wait(); err != nil {
		return err
	}

	s := tel.Stats()
	fmt.Fprintf(stdout, "executions=%d failures=%d slow=%d buffered=%d elapsed=%s\n",
		s.Executions, s.Failures, s.SlowQueries, s.Buffered, s.TotalElapsed)
	return nil
}

func loop(ctx context.Context, db *database.DB, opts runOptions, logger zerolog.Logger) error {
	ticker := time.NewTicker(opts.interval)
	defer ticker.Stop()

	for round := 1; ; round++ {
		if err := workload(ctx, db, opts.slowScanSize); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Error().Err(err).Int("round", round).Msg("workload failed")
		} else {
			logger.Info().Int("round", round).Msg("workload completed")
		}

		if opts.iterations > 0 && round >= opts.iterations {
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func workload(ctx context.Context, db *database.DB, slowScanSize int) error {
	if err := db.InsertUsers(ctx); err != nil {
		return fmt.Errorf("insert users: %w", err)
	}
	if _, err := db.QueryUsers(ctx); err != nil {
		return fmt.Errorf("query users: %w", err)
	}
	if _, err := db.GetUser(ctx, "O'Brien"); err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	if err := db.InsertWithTransaction(ctx); err != nil {
		return fmt.Errorf("transaction: %w", err)
	}
	if _, err := db.SlowScan(ctx, slowScanSize); err != nil {
		return err
	}

	// Expected to fail; the failure is in the execution log.
	_ = db.FailingQuery(ctx)
	return nil
}
