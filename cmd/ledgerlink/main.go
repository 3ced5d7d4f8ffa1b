package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/ledgerlink/ledgerlink/app/controllers"
	"github.com/ledgerlink/ledgerlink/app/models"
	"github.com/ledgerlink/ledgerlink/app/repository"
	"github.com/ledgerlink/ledgerlink/internal/pkg/applier"
	"github.com/ledgerlink/ledgerlink/internal/pkg/cache"
	"github.com/ledgerlink/ledgerlink/internal/pkg/connectors"
	"github.com/ledgerlink/ledgerlink/internal/pkg/database"
	"github.com/ledgerlink/ledgerlink/internal/pkg/detectors"
	"github.com/ledgerlink/ledgerlink/internal/pkg/env"
	"github.com/ledgerlink/ledgerlink/internal/pkg/ingest"
	"github.com/ledgerlink/ledgerlink/internal/pkg/jobqueue"
	"github.com/ledgerlink/ledgerlink/internal/pkg/reconcile"
	"github.com/ledgerlink/ledgerlink/internal/pkg/retention"
	"github.com/ledgerlink/ledgerlink/internal/pkg/router"
	"github.com/ledgerlink/ledgerlink/internal/pkg/statements"
)

func main() {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	db := database.GetDB()
	if err := models.LoadSettings(db); err != nil {
		log.Warnf("[Main] Could not load settings, using defaults: %v", err)
	}

	repository.InitializeFactory(db)
	repos := repository.GetGlobalRepositories()

	registry := connectors.NewRegistry(
		connectors.NewKiwifyConnector(),
		connectors.NewStripeConnector(),
		connectors.NewHotmartConnector(),
	)

	queue := jobqueue.NewQueue(models.GetAppSettings().GetJobQueueWorkerCount())
	queue.RegisterHandler(jobqueue.JobTypeNormalize, jobqueue.NewNormalizeHandler(repos, registry))
	queue.RegisterHandler(jobqueue.JobTypeApply, jobqueue.NewApplyHandler(repos, applier.New(repos.Ledger)))

	importer, err := statements.NewFromEnv(context.Background(), repos.Recon)
	if err != nil {
		log.Warnf("[Main] Statement imports disabled: %v", err)
	} else {
		queue.RegisterHandler(jobqueue.JobTypeImportStatement, jobqueue.NewImportStatementHandler(importer))
	}

	engine := reconcile.NewEngine(repos.Ledger, repos.Recon)
	detectorRunner := detectors.NewRunner(repos.Ledger, repos.Anomaly,
		detectors.NewOrphanPaymentDetector(repos.Ledger),
		detectors.NewMissingBankCreditDetector(repos.Recon),
		detectors.NewStalledRawEventDetector(repos.RawEvent),
	)
	retentionService := retention.NewService(repos.RawEvent, repos.Anomaly)

	manager := jobqueue.InitializeManager(queue, engine, detectorRunner, retentionService)
	manager.Start()

	app := fiber.New(fiber.Config{
		AppName:      "LedgerLink",
		BodyLimit:    2 * 1024 * 1024,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})
	app.Use(recover.New(), logger.New())

	router.SetupRoutes(app, &router.Controllers{
		Webhook:  controllers.NewWebhookController(ingest.NewService(registry, repos.RawEvent, queue)),
		Jobs:     controllers.NewAdminJobController(queue, repos.RawEvent),
		Anomaly:  controllers.NewAdminAnomalyController(repos.Anomaly),
		Recon:    controllers.NewAdminReconController(repos.Recon),
		Stats:    controllers.NewAdminStatsController(repos, queue),
		Settings: controllers.NewAdminSettingsController(),
	})

	// Graceful shutdown: stop accepting requests, then drain the workers.
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-shutdownCh
		log.Info("[Main] Shutting down...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Errorf("[Main] Server shutdown error: %v", err)
		}
	}()

	addr := ":" + env.GetEnv("APP_PORT", "8080")
	log.Infof("[Main] Listening on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Errorf("[Main] Server stopped: %v", err)
	}

	manager.Stop()
}
