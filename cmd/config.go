package cmd

import (
	"strings"

	"github.com/spf13/viper"

	"db-merge/internal/errs"
)

type DBConfig struct {
	Name   string `mapstructure:"name"`
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
	Active bool   `mapstructure:"active"`
}

// GetActiveDBConfig returns the currently active database configuration.
func GetActiveDBConfig() (*DBConfig, error) {
	var configs []DBConfig

	if err := viper.UnmarshalKey("databases", &configs); err != nil {
		return nil, errs.Configuration("failed to parse databases config: %v", err)
	}

	var activeConfig *DBConfig
	count := 0

	for i := range configs {
		if configs[i].Active {
			activeConfig = &configs[i]
			count++
		}
	}

	if count == 0 {
		return nil, errs.Configuration("no active database found in config (set active: true)")
	}
	if count > 1 {
		return nil, errs.Configuration("multiple active databases found (only one can be active)")
	}
	if activeConfig.Driver == "" {
		activeConfig.Driver = DetectDriver(activeConfig.DSN)
	}

	return activeConfig, nil
}

// ResolveDBConfig prefers --dsn/--driver (or their DBMERGE_ variables) over
// the active entry of the databases list.
func ResolveDBConfig() (*DBConfig, error) {
	connStr := viper.GetString("database.dsn")
	if connStr == "" {
		return GetActiveDBConfig()
	}

	driver := viper.GetString("database.driver")
	if driver == "" {
		driver = DetectDriver(connStr)
	}
	return &DBConfig{Name: "command line", Driver: driver, DSN: connStr, Active: true}, nil
}

// DetectDriver guesses the driver from the DSN shape.
func DetectDriver(connStr string) string {
	lower := strings.ToLower(connStr)
	switch {
	case strings.HasPrefix(lower, "sqlserver://"), strings.Contains(lower, "server="):
		return "sqlserver"
	case strings.HasPrefix(lower, "oracle://"):
		return "oracle"
	case strings.Contains(lower, "postgres"), strings.Contains(lower, "sslmode"):
		return "postgres"
	default:
		return "mysql"
	}
}
