package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/solatis/texpolicy/internal/core/config"
	"github.com/solatis/texpolicy/internal/core/db"
	"github.com/solatis/texpolicy/internal/core/store"
	"github.com/solatis/texpolicy/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

// Version is the texpolicy release.
const Version = "0.1.0"

var (
	configFile string
	envFile    string
	dbURL      string
	logLevel   string
	logFormat  string
)

var rootCmd = &cobra.Command{
	Use:           "texpolicy",
	Short:         "Texture import policy resolver",
	Long:          `texpolicy selects the policy rule that applies to a texture on a platform and computes its import settings.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "load environment variables from a .env file")
	rootCmd.PersistentFlags().StringVar(&dbURL, "db", "", "database connection URL (sqlite://path or postgres://...)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "json", "log format (json, text)")
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

// env carries what every command needs once flags are parsed.
type env struct {
	cfg    *config.Config
	logger *zap.Logger
}

// setup loads configuration for cmd and builds the logger. bindings maps config
// keys to local flags of cmd, in addition to the persistent ones.
func setup(cmd *cobra.Command, bindings map[string]string) (*env, error) {
	flags := map[string]*pflag.Flag{
		"database.url": cmd.Flags().Lookup("db"),
		"log.level":    cmd.Flags().Lookup("log-level"),
		"log.format":   cmd.Flags().Lookup("log-format"),
	}
	for key, name := range bindings {
		flags[key] = cmd.Flags().Lookup(name)
	}

	cfg, err := config.Load(config.Options{
		ConfigFile: configFile,
		EnvFile:    envFile,
		Flags:      flags,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}

	return &env{cfg: cfg, logger: logger}, nil
}

// openStore opens the configured database and refuses to continue on a schema
// with pending migrations.
func (e *env) openStore(ctx context.Context) (*store.RuleStore, *sqlx.DB, error) {
	database, err := db.Open(e.cfg.Database.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}

	statuses, err := db.MigrateStatus(ctx, database)
	if err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("failed to check migrations: %w", err)
	}
	for _, s := range statuses {
		if !s.Applied {
			database.Close()
			return nil, nil, fmt.Errorf("migration %s not applied - run 'texpolicy migrate up' first", s.ID)
		}
	}

	rs, err := store.New(database)
	if err != nil {
		database.Close()
		return nil, nil, err
	}
	return rs, database, nil
}
