package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"sketchbot/internal/adapter/repo"
	"sketchbot/internal/bot"
	"sketchbot/internal/generation"
	httpapi "sketchbot/internal/http"
	"sketchbot/internal/infra"
	"sketchbot/internal/prompt"
	"sketchbot/internal/replicate"
)

func main() {
	// Load .env (optional)
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer pool.Close()

	ledger := repo.NewLedgerPG(pool, cfg.StartingCredits)
	if err := ledger.EnsureSchema(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to prepare ledger schema")
	}

	library, err := prompt.NewDir(cfg.WildcardDir)
	if err != nil {
		// Wildcards degrade gracefully: unknown placeholders stay literal.
		logger.Warn().Err(err).Str("dir", cfg.WildcardDir).Msg("wildcard directory unavailable")
		library = prompt.Dir{Path: cfg.WildcardDir}
	}

	client := replicate.NewClient(replicate.Options{
		BaseURL: cfg.ReplicateBaseURL,
		Token:   cfg.ReplicateAPIToken,
		Model:   cfg.ReplicateModel,
		Version: cfg.ReplicateModelVersion,
	})
	logger.Info().Str("model", client.ModelRef()).Msg("inference client configured")

	orchestrator := generation.NewOrchestrator(
		ledger,
		generation.ReplicateRunner{Client: client, Logger: logger},
		generation.CostModel{CreditsPerSecond: cfg.CreditsPerSecond()},
		logger,
	)
	dispatcher := generation.NewDispatcher(&http.Client{Timeout: 60 * time.Second}, logger)

	// The chat platform is an external collaborator; the console gateway
	// stands in for it so the core can be driven locally.
	gateway := &bot.ConsoleGateway{
		In:     os.Stdin,
		Out:    os.Stdout,
		OutDir: ".",
		UserID: cfg.AdminID,
		Logger: logger,
	}

	handler := &bot.Handler{
		Ledger:       ledger,
		Orchestrator: orchestrator,
		Dispatcher:   dispatcher,
		Parser: prompt.Parser{
			DefaultNegative: cfg.DefaultNegativePrompt,
			MaxGenerations:  cfg.MaxGenerations,
		},
		Expander: prompt.Expander{Library: library, Logger: logger},
		Notifier: gateway,
		AdminID:  cfg.AdminID,
		Logger:   logger,
	}

	server := infra.NewHTTPServer(cfg, httpapi.NewRouter(orchestrator, logger))
	go func() {
		logger.Info().Msgf("status API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	if err := gateway.Run(ctx, handler.Handle); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("gateway stopped with error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("bot stopped")
}
