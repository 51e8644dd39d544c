package config

import "github.com/spf13/pflag"

// DatabaseConfig holds configuration for commands that only need Postgres.
type DatabaseConfig struct {
	PGDSN    string
	LogLevel string
}

// LoadDatabase merges config file, environment variables, and flags into DatabaseConfig.
func LoadDatabase(cfgFile string, flags *pflag.FlagSet) (DatabaseConfig, error) {
	v, err := newViper(cfgFile, flags, nil)
	if err != nil {
		return DatabaseConfig{}, err
	}

	return DatabaseConfig{
		PGDSN:    v.GetString("pg-dsn"),
		LogLevel: v.GetString("log-level"),
	}, nil
}

// QueryConfig holds configuration for the pool command.
type QueryConfig struct {
	DatabaseConfig
	PoolID string
	Limit  int
}

// LoadQuery merges config file, environment variables, and flags into QueryConfig.
func LoadQuery(cfgFile string, flags *pflag.FlagSet) (QueryConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"limit": 20,
	})
	if err != nil {
		return QueryConfig{}, err
	}

	return QueryConfig{
		DatabaseConfig: DatabaseConfig{
			PGDSN:    v.GetString("pg-dsn"),
			LogLevel: v.GetString("log-level"),
		},
		PoolID: v.GetString("pool-id"),
		Limit:  v.GetInt("limit"),
	}, nil
}
