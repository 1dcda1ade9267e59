package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/hanko-field/storefront/internal/di"
	"github.com/hanko-field/storefront/internal/platform/config"
	"github.com/hanko-field/storefront/internal/platform/observability"
	"github.com/hanko-field/storefront/internal/services"
)

func main() {
	var (
		scenarioPath string
		envFile      string
	)
	flag.StringVar(&scenarioPath, "scenario", "", "scenario YAML file (defaults to the bundled scenario)")
	flag.StringVar(&envFile, "env-file", ".env", "dotenv file with local overrides")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("storefront")
	ctx = observability.WithLogger(ctx, logger)

	cfg, err := config.Load(ctx, config.WithEnvFile(envFile))
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	scenario, err := LoadScenario(scenarioPath)
	if err != nil {
		logger.Fatal("failed to load scenario", zap.Error(err))
	}

	reg, err := di.OpenRegistry(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to open storage", zap.String("backend", cfg.Storage.Backend), zap.Error(err))
	}

	checkoutLogger := logger.Named("checkout")
	container, err := di.NewContainer(ctx, cfg, reg,
		di.WithLogger(logger),
		di.WithCheckoutObserver(func(tr services.CheckoutTransition) {
			fields := []zap.Field{zap.String("from", string(tr.From)), zap.String("to", string(tr.To))}
			if tr.Err != nil {
				fields = append(fields, zap.Error(tr.Err))
			}
			checkoutLogger.Debug("checkout transition", fields...)
		}),
	)
	if err != nil {
		_ = reg.Close(ctx)
		logger.Fatal("failed to initialise container", zap.Error(err))
	}

	logger.Info("running scenario",
		zap.String("scenario", scenario.Name),
		zap.String("environment", cfg.App.Environment),
		zap.String("storage", cfg.Storage.Backend),
	)

	results, runErr := NewRunner(container, os.Stdout).Run(ctx, scenario)
	if err := container.Close(context.Background()); err != nil {
		logger.Warn("container close error", zap.Error(err))
	}
	if runErr != nil {
		logger.Error("scenario interrupted", zap.Error(runErr))
		os.Exit(1)
	}
	if failed := failures(results); failed > 0 {
		logger.Error("scenario finished with unexpected outcomes", zap.Int("failed", failed), zap.Int("steps", len(results)))
		os.Exit(1)
	}
	logger.Info("scenario finished", zap.Int("steps", len(results)))
}
