package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func processFlags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("process", pflag.ContinueOnError)
	flags.String("in", "", "")
	flags.String("pg-dsn", "", "")
	flags.String("on-error", "halt", "")
	flags.Int("max-retries", 5, "")
	flags.Duration("retry-backoff", 500*time.Millisecond, "")
	return flags
}

func TestLoadProcessDefaults(t *testing.T) {
	cfg, err := LoadProcess("", processFlags())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Format != "raw" || cfg.StateName != "pablo" || cfg.OnError != "halt" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.MaxRetries != 5 || cfg.RetryBackoff != 500*time.Millisecond || cfg.SS58Prefix != 49 {
		t.Fatalf("unexpected retry defaults: %+v", cfg)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("unexpected log level: %s", cfg.LogLevel)
	}
}

func TestLoadProcessPrecedence(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "config.yaml")
	content := "in: ./from-file.jsonl\non-error: skip\nmax-retries: 2\n"
	if err := os.WriteFile(cfgFile, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("PABLO_PG_DSN", "postgres://env")
	t.Setenv("PABLO_MAX_RETRIES", "7")

	flags := processFlags()
	if err := flags.Parse([]string{"--on-error", "halt"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := LoadProcess(cfgFile, flags)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.In != "./from-file.jsonl" {
		t.Fatalf("config file value not used: %q", cfg.In)
	}
	if cfg.PGDSN != "postgres://env" || cfg.MaxRetries != 7 {
		t.Fatalf("env values not used: %+v", cfg)
	}
	if cfg.OnError != "halt" {
		t.Fatalf("flag should win over config file: %q", cfg.OnError)
	}
}

func TestLoadNormalizeOnly(t *testing.T) {
	flags := pflag.NewFlagSet("normalize", pflag.ContinueOnError)
	flags.StringSlice("only", nil, "")
	if err := flags.Parse([]string{"--only", "Pablo.Swapped, Pablo.PoolCreated"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := LoadNormalize("", flags)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Only) != 2 || cfg.Only[0] != "Pablo.Swapped" || cfg.Only[1] != "Pablo.PoolCreated" {
		t.Fatalf("unexpected only list: %#v", cfg.Only)
	}
	if cfg.Out != "./data/events.jsonl" {
		t.Fatalf("unexpected out default: %s", cfg.Out)
	}
}

func TestLoadMissingConfigFile(t *testing.T) {
	if _, err := LoadQuery(filepath.Join(t.TempDir(), "missing.yaml"), nil); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}
