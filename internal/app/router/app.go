package router

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"

	"voxedit/internal/lib/logger/sl"
	"voxedit/internal/storage/sqlite"

	authSrv "voxedit/internal/service/auth"
	jwtSrv "voxedit/internal/service/jwt"
	ledgerSrv "voxedit/internal/service/ledger"
	previewSrv "voxedit/internal/service/preview"
	projectSrv "voxedit/internal/service/project"
	statusSrv "voxedit/internal/service/status"
	synthSrv "voxedit/internal/service/synthesis"
	validateSrv "voxedit/internal/service/validate"

	executorClient "voxedit/internal/client/executor"

	authCtr "voxedit/internal/controller/auth"
	jwtCtr "voxedit/internal/controller/jwt"
	projectCtr "voxedit/internal/controller/project"
	synthCtr "voxedit/internal/controller/synthesis"
)

type App struct {
	log     *slog.Logger
	address string
	app     *fiber.App

	Queue *synthSrv.Queue
}

// New returns configured router.App
func New(
	log *slog.Logger,
	storage *sqlite.Storage,
	address string,
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
	// Create sevices
	jwt := jwtSrv.New(secret)

	rootPassHash, err := bcrypt.GenerateFromPassword(rootPass, bcrypt.DefaultCost)
	if err != nil {
		panic("invalid root password")
	}
	auth := authSrv.New(
		log,
		jwt,
		rootPassHash,
		tokenTTL,
	)

	validator := validateSrv.New(toleranceWords)

	ledger := ledgerSrv.New(log, storage)
	if err := ledger.Restore(context.TODO()); err != nil {
		log.Error("failed to restore edit ledger", sl.Err(err))
	}

	project := projectSrv.New(
		log,
		validator,
		ledger,
		storage,
	)

	tracker := statusSrv.New()

	executor := executorClient.New(
		log,
		synthEndpoint,
		synthTimeout,
		testMode,
	)

	queue := synthSrv.New(
		log,
		project,
		executor,
		tracker,
		validator,
		outputDir,
		synthTimeout,
	)

	preview := previewSrv.New(
		log,
		project,
		previewBaseURL,
		previewBufferTime,
	)

	// Create controller helper
	jwtCtr := jwtCtr.New(secret)

	app := fiber.New()

	// Mount controllers to an app
	app.Mount("/login", authCtr.New(requestTimeout, auth))
	app.Mount("/project", projectCtr.New(project, ledger, preview, jwtCtr, sampleDir))
	app.Mount("/synthesis", synthCtr.New(queue, jwtCtr))

	return &App{
		log:     log,
		address: address,
		app:     app,
		Queue:   queue,
	}
}

func (a *App) MustRun() {
	if err := a.Run(); err != nil {
		panic(err)
	}
}

func (a *App) Run() error {
	return a.app.Listen(a.address)
}

func (a *App) Stop() {
	a.app.Shutdown()
}
