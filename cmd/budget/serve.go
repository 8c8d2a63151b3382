package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"budget/internal/cli"
	apphttp "budget/internal/http"
	"budget/internal/log"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

var (
	flagRateLimit      int
	flagTrustedProxies []string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the JSON API and the periodic sync",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&flagRateLimit, "rate-limit", 120, "Mutating requests per minute per client")
	serveCmd.Flags().StringSliceVar(&flagTrustedProxies, "trusted-proxy", nil, "Extra CIDR whose X-Forwarded-For is trusted (repeatable)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	checks := make(map[string]apphttp.ReadinessCheck, len(a.backend.Checks))
	for name, check := range a.backend.Checks {
		checks[name] = apphttp.ReadinessCheck(check)
	}

	srv, err := apphttp.NewServer(":"+a.cfg.Port, a.svc, apphttp.Options{
		Logger:            a.logger,
		HistoryMonths:     a.cfg.HistoryMonths,
		RequestsPerMinute: flagRateLimit,
		TrustedProxies:    flagTrustedProxies,
		Checks:            checks,
	})
	if err != nil {
		return err
	}

	ctx, stop := cli.GracefulShutdown(cmd.Context(), a.logger)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("Starting budget server",
			"port", a.cfg.Port,
			"backend", a.cfg.DataBackend,
			log.FieldUserID, a.cfg.UserID,
			log.FieldOperation, log.OpStartup)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		periodicSync(ctx, a)
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("Server shutdown error", log.FieldError, err)
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		a.logger.Error("Server error", log.FieldError, err, "port", a.cfg.Port)
		return err
	}
	a.logger.Info("Server stopped gracefully", log.FieldOperation, log.OpShutdown)
	return nil
}

// periodicSync reconciles with the replica every SyncInterval, so changes
// made on another device show up without a restart.
func periodicSync(ctx context.Context, a *app) {
	if !a.svc.SyncStatus().RemoteSetup {
		return
	}
	ticker := time.NewTicker(a.cfg.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := a.svc.Sync(ctx); err != nil {
				a.logger.Warn("Periodic sync failed", log.FieldError, err, log.FieldOperation, log.OpSync)
			}
		}
	}
}
