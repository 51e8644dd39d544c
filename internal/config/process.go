package config

import (
	"time"

	"github.com/spf13/pflag"
)

// ProcessConfig holds configuration for the process command.
type ProcessConfig struct {
	In           string
	Format       string
	PGDSN        string
	Migrate      bool
	StateName    string
	OnError      string
	MaxRetries   int
	RetryBackoff time.Duration
	Errors       string
	MetricsAddr  string
	SS58Prefix   uint16
	LogLevel     string
}

// LoadProcess merges config file, environment variables, and flags into ProcessConfig.
func LoadProcess(cfgFile string, flags *pflag.FlagSet) (ProcessConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"format":        "raw",
		"state-name":    "pablo",
		"on-error":      "halt",
		"max-retries":   5,
		"retry-backoff": 500 * time.Millisecond,
		"errors":        "./data/process_errors.jsonl",
		"ss58-prefix":   49,
	})
	if err != nil {
		return ProcessConfig{}, err
	}

	return ProcessConfig{
		In:           v.GetString("in"),
		Format:       v.GetString("format"),
		PGDSN:        v.GetString("pg-dsn"),
		Migrate:      v.GetBool("migrate"),
		StateName:    v.GetString("state-name"),
		OnError:      v.GetString("on-error"),
		MaxRetries:   v.GetInt("max-retries"),
		RetryBackoff: v.GetDuration("retry-backoff"),
		Errors:       v.GetString("errors"),
		MetricsAddr:  v.GetString("metrics-addr"),
		SS58Prefix:   v.GetUint16("ss58-prefix"),
		LogLevel:     v.GetString("log-level"),
	}, nil
}
