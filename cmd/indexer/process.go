package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"pabloScope/internal/config"
	"pabloScope/internal/observability"
	"pabloScope/internal/pablo"
	"pabloScope/internal/processor"
	"pabloScope/internal/ss58"
	"pabloScope/internal/storage"
	"pabloScope/internal/storage/memory"
	"pabloScope/internal/storage/postgres"
	"pabloScope/internal/vesting"
)

func runProcess(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadProcess(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.In == "" {
		return fmt.Errorf("input path is required")
	}
	format, err := processor.ParseFormat(cfg.Format)
	if err != nil {
		return err
	}
	policy, err := processor.ParseErrorPolicy(cfg.OnError)
	if err != nil {
		return err
	}
	codec, err := ss58.NewCodec(cfg.SS58Prefix)
	if err != nil {
		return fmt.Errorf("ss58 prefix: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(reg)

	var errorSink storage.ErrorSink
	if cfg.Errors != "" {
		errorSink = storage.NewJsonlStorage(cfg.Errors)
	}

	proc := processor.New(processor.Config{
		StateName:    cfg.StateName,
		Format:       format,
		OnError:      policy,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
		ErrorSink:    errorSink,
		Metrics:      metrics,
	}, store,
		pablo.NewReducer(pablo.Config{Encoder: codec}, logger.Named("pablo")),
		vesting.NewReducer(vesting.Config{Encoder: codec}, logger.Named("vesting")),
		logger)

	logger.Info("process config",
		zap.String("in", cfg.In),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
		zap.Uint16("ss58_prefix", codec.Prefix()),
		zap.String("metrics_addr", cfg.MetricsAddr),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("retry_backoff", cfg.RetryBackoff),
	)

	g, gctx := errgroup.WithContext(ctx)
	serveCtx, stopServe := context.WithCancel(gctx)
	defer stopServe()

	if cfg.MetricsAddr != "" {
		g.Go(func() error {
			return observability.Serve(serveCtx, cfg.MetricsAddr, reg, logger)
		})
	}
	g.Go(func() error {
		defer stopServe()
		_, err := proc.Run(gctx, cfg.In)
		return err
	})

	return g.Wait()
}

func openStore(ctx context.Context, cfg config.ProcessConfig, logger *zap.Logger) (storage.Store, error) {
	if cfg.PGDSN == "" {
		logger.Warn("no pg dsn configured, state is kept in memory only")
		return memory.NewStore(), nil
	}

	store, err := postgres.NewStore(ctx, cfg.PGDSN)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if cfg.Migrate {
		applied, err := store.Migrate(ctx)
		if err != nil {
			store.Close()
			return nil, err
		}
		logger.Info("migrations applied", zap.Strings("versions", applied))
	}
	return store, nil
}
