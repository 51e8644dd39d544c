package config

import "github.com/spf13/pflag"

// NormalizeConfig holds configuration for the normalize command.
type NormalizeConfig struct {
	In       string
	Out      string
	Errors   string
	Only     []string
	LogLevel string
}

// LoadNormalize merges config file, environment variables, and flags into NormalizeConfig.
func LoadNormalize(cfgFile string, flags *pflag.FlagSet) (NormalizeConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"out":    "./data/events.jsonl",
		"errors": "./data/normalize_errors.jsonl",
	})
	if err != nil {
		return NormalizeConfig{}, err
	}

	return NormalizeConfig{
		In:       v.GetString("in"),
		Out:      v.GetString("out"),
		Errors:   v.GetString("errors"),
		Only:     getStringSlice(v, "only"),
		LogLevel: v.GetString("log-level"),
	}, nil
}
