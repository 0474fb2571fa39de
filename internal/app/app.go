package app

import (
	"log/slog"
	"os"
	"time"

	routerApp "voxedit/internal/app/router"
	"voxedit/internal/lib/logger/sl"
	"voxedit/internal/storage/sqlite"
)

type App struct {
	Router routerApp.App
}

func New(
	log *slog.Logger,
	address string,
	storagePath string,
	requestTimeout time.Duration,
	tokenTTL time.Duration,
	secret []byte,
	rootPass []byte,
	toleranceWords int,
	sampleDir string,
	synthEndpoint string,
	synthTimeout time.Duration,
	outputDir string,
	testMode bool,
	previewBaseURL string,
	previewBufferTime time.Duration,
) *App {
	storage, err := sqlite.New(storagePath)
	if err != nil {
		log.Error("failed to init storage", sl.Err(err))
		os.Exit(1)
	}

	routerApp := routerApp.New(
		log,
		storage,
		address,
		requestTimeout,
		tokenTTL,
		secret,
		rootPass,
		toleranceWords,
		sampleDir,
		synthEndpoint,
		synthTimeout,
		outputDir,
		testMode,
		previewBaseURL,
		previewBufferTime,
	)

	return &App{
		Router: *routerApp,
	}
}
