package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "indexer",
		Short:        "Pablo AMM event indexer",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	normalizeCmd := &cobra.Command{
		Use:   "normalize",
		Short: "Normalize versioned raw events into canonical events",
		RunE:  runNormalize,
	}

	normalizeCmd.Flags().String("in", "", "input raw events JSONL")
	normalizeCmd.Flags().String("out", "./data/events.jsonl", "output canonical events JSONL")
	normalizeCmd.Flags().String("errors", "./data/normalize_errors.jsonl", "normalize errors JSONL")
	normalizeCmd.Flags().StringSlice("only", nil, "event names to keep (comma-separated), default all supported")
	normalizeCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(normalizeCmd)

	processCmd := &cobra.Command{
		Use:   "process",
		Short: "Apply events to pool, ledger and vesting state",
		RunE:  runProcess,
	}

	processCmd.Flags().String("in", "", "input events JSONL")
	processCmd.Flags().String("format", "raw", "input format (raw, canonical)")
	processCmd.Flags().String("pg-dsn", "", "Postgres DSN, in-memory store when empty")
	processCmd.Flags().Bool("migrate", false, "apply migrations before processing")
	processCmd.Flags().String("state-name", "pablo", "cursor name in indexer_state")
	processCmd.Flags().String("on-error", "halt", "event error policy (halt, skip)")
	processCmd.Flags().Int("max-retries", 5, "maximum retry attempts for transient store errors")
	processCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	processCmd.Flags().String("errors", "./data/process_errors.jsonl", "skipped event errors JSONL")
	processCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9090)")
	processCmd.Flags().Uint16("ss58-prefix", 49, "SS58 address prefix")
	processCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(processCmd)

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply Postgres migrations",
		RunE:  runMigrate,
	}

	migrateCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	migrateCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(migrateCmd)

	poolCmd := &cobra.Command{
		Use:   "pool",
		Short: "Print a pool with its assets and latest transactions",
		RunE:  runPool,
	}

	poolCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	poolCmd.Flags().String("pool-id", "", "pool id")
	poolCmd.Flags().Int("limit", 20, "number of transactions to print, 0 for all")
	poolCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(poolCmd)

	schedulesCmd := &cobra.Command{
		Use:   "schedules <schedule-id>",
		Short: "Print the vesting schedules of an account and asset",
		Args:  cobra.ExactArgs(1),
		RunE:  runSchedules,
	}

	schedulesCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	schedulesCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(schedulesCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}
