package main

import (
	"context"
	"fmt"
	"os"

	"budget/internal/backend"
	"budget/internal/cli"
	"budget/internal/config"
	"budget/internal/core"
	"budget/internal/log"
	"budget/internal/services"

	"github.com/spf13/cobra"
)

var (
	flagConfig   string
	flagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:           "budget",
	Short:         "Household budget ledger",
	Long:          "Track incomes, fixed and variable expenses per month, and keep the budget in sync across devices.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if flagConfig != "" {
			return os.Setenv("BUDGET_CONFIG", flagConfig)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "TOML config file (default ./budget.toml)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Override LOG_LEVEL (debug, info, warn, error)")
}

// app is everything a command needs once the budget is loaded.
type app struct {
	cfg     *config.Config
	logger  *log.Logger
	svc     *services.BudgetService
	backend *backend.BackendResult
}

// openApp loads the configuration, assembles the backend and restores the
// budget. close flushes pending writes and must always be called.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		return nil, fmt.Errorf("configuration: %w", err)
	}
	level := cfg.LogLevel
	if flagLogLevel != "" {
		level = flagLogLevel
	}
	logger, err := cli.SetupLogger(level)
	if err != nil {
		return nil, err
	}
	if cfg.Source != "" {
		logger.Debug("Configuration loaded", "file", cfg.Source)
	}

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, fmt.Errorf("backend: %w", err)
	}

	svc := services.NewBudgetService(res.Gateway, services.Options{UserID: cfg.UserID, Logger: logger})
	if err := svc.Restore(ctx); err != nil {
		res.Cleanup()
		return nil, err
	}
	return &app{cfg: cfg, logger: logger, svc: svc, backend: res}, nil
}

func (a *app) close() {
	if err := a.backend.Cleanup(); err != nil {
		a.logger.Error("Backend cleanup failed", log.FieldError, err)
	}
}

// parseMonthArg reads an optional YYYY-MM argument; none means the
// current month.
func parseMonthArg(svc *services.BudgetService, args []string, i int) (core.Month, error) {
	if len(args) <= i || args[i] == "" || args[i] == "current" {
		return svc.CurrentMonth(), nil
	}
	return services.ParseMonth(args[i])
}
