package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/rudro-kalix/business-management/internal/advisor"
	"github.com/rudro-kalix/business-management/internal/config"
	ledgerHttp "github.com/rudro-kalix/business-management/internal/http"
	"github.com/rudro-kalix/business-management/internal/http/ledgerapi"
	"github.com/rudro-kalix/business-management/internal/http/sessionapi"
	"github.com/rudro-kalix/business-management/internal/localstore"
	"github.com/rudro-kalix/business-management/internal/migrate"
	"github.com/rudro-kalix/business-management/internal/remote"
	"github.com/rudro-kalix/business-management/internal/session"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.Default()
	ctx := context.Background()

	kv, err := localstore.NewFileKV(cfg.Storage.DataDir)
	if err != nil {
		slog.Error("failed to open local storage", "error", err)
		os.Exit(1)
	}

	backend := remote.NewClient(logger)

	sess, err := session.New(kv, backend, logger)
	if err != nil {
		slog.Error("failed to start session", "error", err)
		os.Exit(1)
	}

	// Pick up the remote configuration from a previous run, if any. Failing
	// to reconnect is not fatal: the session stays in local mode.
	restored, err := sess.Restore(ctx)
	if err != nil {
		slog.Warn("could not restore remote session", "error", err)
	} else if restored {
		slog.Info("remote session restored")
	}

	if !restored && cfg.Remote.ProjectURL != "" {
		remoteCfg := remote.Config{ProjectURL: cfg.Remote.ProjectURL, APIKey: cfg.Remote.APIKey}
		if err := sess.Connect(ctx, remoteCfg); err != nil {
			slog.Warn("could not connect to configured backend", "error", err)
		} else {
			slog.Info("connected to configured backend")
		}
	}

	advisorService, err := advisor.New(ctx, cfg.Advisor.APIKey, cfg.Advisor.Model, cfg.Advisor.RecentLimit, logger)
	if err != nil {
		slog.Error("failed to start advisor", "error", err)
		os.Exit(1)
	}

	var (
		migrator = migrate.NewCoordinator(backend, logger)
		ledgerH  = ledgerapi.NewHandler(sess)
		sessionH = sessionapi.NewHandler(sess, migrator, advisorService)
	)

	router := ledgerHttp.New(ledgerH, sessionH, cfg.HTTP.AllowedOrigins)

	port := fmt.Sprintf(":%d", cfg.App.Port)
	slog.Info("starting server", "app", cfg.App.Name, "port", port)

	if err := http.ListenAndServe(port, router); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
