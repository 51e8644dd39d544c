package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"pabloScope/internal/config"
	"pabloScope/internal/storage"
	"pabloScope/internal/storage/postgres"
)

func runPool(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadQuery(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	if cfg.PoolID == "" {
		return fmt.Errorf("pool id is required")
	}
	if cfg.Limit < 0 {
		return fmt.Errorf("limit must not be negative")
	}

	return withQueryStore(cfg.DatabaseConfig, func(ctx context.Context, store storage.Store) error {
		view, err := storage.LoadPoolView(ctx, store, cfg.PoolID, cfg.Limit)
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("pool %s not found", cfg.PoolID)
		}
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), view)
	})
}

func runSchedules(cmd *cobra.Command, args []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadDatabase(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	return withQueryStore(cfg, func(ctx context.Context, store storage.Store) error {
		schedules, err := storage.LoadVestingSchedules(ctx, store, args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), schedules)
	})
}

func withQueryStore(cfg config.DatabaseConfig, fn func(ctx context.Context, store storage.Store) error) error {
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.PGDSN == "" {
		return fmt.Errorf("pg dsn is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := postgres.NewStore(ctx, cfg.PGDSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer store.Close()

	return fn(ctx, store)
}

func printJSON(w io.Writer, value interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}
