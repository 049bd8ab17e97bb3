// Package main Campaign Dashboard API
//
// @title           Campaign Dashboard API
// @version         1.0
// @description     API дашборда инфлюенс-маркетинга: покупка кредитов и профиль бизнеса
// @host            localhost:8080
// @BasePath        /api

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and Supabase access token.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/magabrotheeeer/campaign-dashboard/internal/app/dashboardapi"
	"github.com/magabrotheeeer/campaign-dashboard/internal/config"
	"github.com/magabrotheeeer/campaign-dashboard/internal/lib/sl"
)

func main() {
	cfg := config.MustLoad()
	logger := setupLogger(cfg.LogLevel)

	logger.Info("starting dashboard-api", slog.String("env", cfg.Env))
	logger.Debug("config loaded", slog.String("config", cfg.String()))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := dashboardapi.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize app", sl.Err(err))
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("app stopped with error", sl.Err(err))
		os.Exit(1)
	}

	logger.Info("dashboard-api stopped gracefully")
}

func setupLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
