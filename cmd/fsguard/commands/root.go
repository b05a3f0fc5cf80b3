// Package commands implements the fsguard CLI.
package commands

import (
	"errors"
	"fmt"
	"io"

	"fsguard/internal/config"
	"fsguard/internal/database"
	"fsguard/internal/exitcodes"
	"fsguard/internal/guard"
	"fsguard/internal/logging"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// Global flags.
var (
	cfgFile  string
	jsonOut  bool
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "fsguard",
	Short: "Policy-guarded deletion, moves and cleanup",
	Long: `fsguard deletes, moves and organizes files only where the configured
policy allows it. Every path must lie under an allowed root, must not be a
protected path or an ancestor of one, and must not carry a protected name.

Nothing is mutated until allowed_paths is set in the config file.`,
	SilenceUsage: true,
}

// Root returns the root command.
func Root() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $FSGUARD_CONFIG or <user config dir>/fsguard/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "print results as JSON")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level")

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(policyCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(rmdirCmd)
	rootCmd.AddCommand(mvCmd)
	rootCmd.AddCommand(organizeCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(dupesCmd)
	rootCmd.AddCommand(serveCmd)
}

// app holds everything a command needs, built from the config file.
type app struct {
	store  *config.Store
	cfg    *config.Config
	logger zerolog.Logger
	db     *database.OperationDB
	guard  *guard.Guard

	logCloser io.Closer
}

func newApp() (*app, error) {
	bootCfg := logging.ApplyEnv(logging.DefaultConfig())
	bootCfg.Level = "warn"
	if logLevel != "" {
		bootCfg.Level = logLevel
	}
	boot, _ := logging.New(bootCfg)

	store := config.NewStore(cfgFile, boot)
	cfg, err := store.Config()
	if err != nil {
		return nil, exitcodes.Wrap(exitcodes.InvalidConfig, err)
	}

	logCfg := logging.ApplyEnv(cfg.Logging)
	if logLevel != "" {
		logCfg.Level = logLevel
	}
	logger, closer := logging.New(logCfg)

	a := &app{store: store, cfg: cfg, logger: logger, logCloser: closer}

	opts := []guard.Option{guard.WithLogger(logger)}
	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		logger.Warn().Err(err).Str("path", cfg.DatabasePath).Msg("audit database unavailable, operations will not be recorded")
	} else {
		a.db = db
		opts = append(opts, guard.WithRecorder(db))
	}
	a.guard = guard.New(store, opts...)

	return a, nil
}

func (a *app) Close() error {
	var errs []error
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}
	if err := a.logCloser.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// withApp runs fn with a freshly built app and closes it afterwards.
func withApp(fn func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer func() {
			if err := a.Close(); err != nil {
				a.logger.Error().Err(err).Msg("shutdown")
			}
		}()
		return fn(cmd, a, args)
	}
}
