package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"log/slog"

	"voxedit/internal/app"
	"voxedit/internal/config"
	"voxedit/internal/lib/logger/sl"
	"voxedit/internal/lib/logger/slogpretty"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	cfg := config.MustLoad()

	log := setupLogger(cfg.Env)

	log.Info("starting voxedit", slog.String("env", cfg.Env))
	log.Debug("debug messages are enabled")

	httpApplication := app.New(
		log,
		cfg.Address,
		cfg.StoragePath,
		cfg.HTTPServer.Timeout,
		cfg.TokenTTL,
		getSecret(),
		getRootPass(),
		cfg.ToleranceWords,
		cfg.SampleDir,
		cfg.Synthesis.Endpoint,
		cfg.Synthesis.Timeout,
		cfg.Synthesis.OutputDir,
		cfg.Synthesis.TestMode,
		cfg.Preview.BaseURL,
		cfg.Preview.BufferTime,
	)

	ctx, cancel := context.WithCancel(context.Background())

	// Run synthesis queue
	go func() {
		if err := httpApplication.Router.Queue.Run(ctx); err != nil {
			log.Error("synthesis queue stopped", sl.Err(err))
		}
	}()

	// Run server
	go func() {
		httpApplication.Router.MustRun()
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)

	<-stop

	cancel()
	httpApplication.Router.Queue.Stop()
	httpApplication.Router.Stop()
	log.Info("Gracefully stopped")
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = setupPrettySlog()
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}

	return log
}

func setupPrettySlog() *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	handler := opts.NewPrettyHandler(os.Stdout)

	return slog.New(handler)
}

func getSecret() []byte {
	secret := os.Getenv("SECRET")

	if secret == "" {
		panic("secret not specified")
	}

	return []byte(secret)
}

func getRootPass() []byte {
	pass := os.Getenv("ROOT_PASS")

	if pass == "" {
		panic("root password is not specified")
	}

	return []byte(pass)
}
