package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"db-merge/internal/dialect"
	"db-merge/internal/logger"
	"db-merge/internal/model"
	"db-merge/internal/schema"
)

var (
	cfgFile    string
	dsn        string
	driverName string
	modelsPath string
	logLevel   string

	DB      *sql.DB
	Dialect dialect.Dialect
)

// Log is replaced by the configured logger before any command runs.
var Log = logger.Nop()

// offline marks commands that never touch the database.
const offline = "offline"

var RootCmd = &cobra.Command{
	Use:   "db-merge",
	Short: "Brings a database schema in line with a declared data model",
	Long: `
  ____  ____    __  __ _____ ____   ____ _____
 |  _ \| __ )  |  \/  | ____|  _ \ / ___| ____|
 | | | |  _ \  | |\/| |  _| | |_) | |  _|  _|
 | |_| | |_) | | |  | | |___|  _ <| |_| | |___
 |____/|____/  |_|  |_|_____|_| \_\\____|_____|

DB MERGE - compares model descriptors with a live database and
renders or applies the schema changes in dependency order.
`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		Log = logger.New(&logger.Config{
			Level:  viper.GetString("log.level"),
			Format: viper.GetString("log.format"),
			Output: os.Stderr,
		})
		if cmd.Annotations[offline] != "" {
			return nil
		}

		config, err := ResolveDBConfig()
		if err != nil {
			return err
		}
		if Dialect, err = dialect.Get(config.Driver); err != nil {
			return err
		}

		// database/sql only knows the canonical name, not aliases like postgresql
		DB, err = sql.Open(Dialect.Name(), config.DSN)
		if err != nil {
			return errors.Wrap(err, "failed to open db")
		}
		if err := DB.PingContext(cmd.Context()); err != nil {
			return errors.Wrap(err, "failed to connect to db")
		}
		Log.Debug().Str("database", config.Name).Str("driver", Dialect.Name()).Msg("connected")
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if DB == nil {
			return nil
		}
		return DB.Close()
	},
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := RootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := RootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is ./db-merge.yaml)")
	flags.StringVar(&dsn, "dsn", "", "Database Source Name (DSN), overrides the active database")
	flags.StringVar(&driverName, "driver", "", "database driver: sqlserver, postgres, mysql or oracle")
	flags.StringVar(&modelsPath, "models", "", "model descriptor file")
	flags.StringVar(&logLevel, "log-level", "", "debug, info, warn or error")

	viper.BindPFlag("database.dsn", flags.Lookup("dsn"))
	viper.BindPFlag("database.driver", flags.Lookup("driver"))
	viper.BindPFlag("models", flags.Lookup("models"))
	viper.BindPFlag("log.level", flags.Lookup("log-level"))

	viper.SetDefault("models", "models.yaml")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "console")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// 1. Executable Directory (Priority 1)
		ex, err := os.Executable()
		if err == nil {
			viper.AddConfigPath(filepath.Dir(ex))
		}

		// 2. Current Directory (Priority 2)
		viper.AddConfigPath(".")

		viper.SetConfigName("db-merge")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("DBMERGE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Stdout carries scripts; report on stderr.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// source wraps the open connection for the schema readers.
func source() *schema.Conn {
	return schema.NewConn(DB, Dialect, viper.GetStringSlice("excluded_schemas"), Log)
}

func loadModels() (*model.Set, error) {
	path := viper.GetString("models")
	set, err := model.Load(path)
	if err != nil {
		return nil, err
	}
	Log.Debug().Str("path", path).Int("models", len(set.Models)).Int("enums", len(set.Enums)).Msg("models loaded")
	return set, nil
}

func rule() {
	fmt.Println("--------------------------------------------------")
}
