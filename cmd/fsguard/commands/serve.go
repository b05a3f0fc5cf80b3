package commands

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"fsguard/internal/api"
	"fsguard/internal/metrics"
	"fsguard/internal/scan"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	Long: `Serve every operation over HTTP. The config file is watched and
reloaded on change.`,
	Args: cobra.NoArgs,
	RunE: withApp(runServe),
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default from config)")
}

func runServe(cmd *cobra.Command, a *app, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr, _ := cmd.Flags().GetString("addr")
	if addr == "" {
		addr = a.cfg.API.Address
	}

	metrics.Init()
	hc := metrics.NewHealthChecker(30 * time.Second)
	hc.RegisterComponent("config", func() error {
		_, err := a.store.Policy()
		return err
	}, 5*time.Second)
	if a.db != nil {
		hc.RegisterComponent("database", a.db.Ping, 5*time.Second)
	}
	metrics.SetHealthChecker(hc)
	hc.Start()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		metrics.Shutdown(shutdownCtx, a.logger)
	}()

	if a.cfg.Metrics.Enabled {
		if err := metrics.StartServer(a.cfg.Metrics.Address, a.logger); err != nil {
			return err
		}
	}

	if err := a.store.Watch(ctx, 250*time.Millisecond); err != nil {
		a.logger.Warn().Err(err).Msg("config watch disabled")
	}

	router := api.NewRouter(a.guard, scan.NewScanner(a.logger), a.store, a.logger,
		api.WithRateLimit(a.cfg.API.RateLimit, a.cfg.API.Burst),
		api.WithMaxBodyBytes(a.cfg.API.MaxBodyBytes),
	)
	server := api.NewServer(addr, router, a.logger)

	a.logger.Info().
		Str("config", a.store.Path()).
		Str("addr", addr).
		Bool("audit", a.db != nil).
		Msg("fsguard serving")

	if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

