// Package router wires the HTTP surface: the public webhook endpoint, the
// authenticated admin API and the metrics endpoints.
package router

import (
	"runtime"
	"strconv"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/storage/redis"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ledgerlink/ledgerlink/app/controllers"
	"github.com/ledgerlink/ledgerlink/internal/pkg/env"
	"github.com/ledgerlink/ledgerlink/internal/pkg/middleware"
)

// Controllers bundles everything the router mounts.
type Controllers struct {
	Webhook  *controllers.WebhookController
	Jobs     *controllers.AdminJobController
	Anomaly  *controllers.AdminAnomalyController
	Recon    *controllers.AdminReconController
	Stats    *controllers.AdminStatsController
	Settings *controllers.AdminSettingsController
}

// SetupRoutes mounts all routes on the app.
func SetupRoutes(app *fiber.App, c *Controllers) {
	// Webhooks are rate-limited per client IP, with counters shared across
	// instances through Redis.
	app.Post("/webhooks/:provider", webhookLimiter(), c.Webhook.HandleWebhook)

	app.Get("/api/v1/ping", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	app.Get("/metrics/runtime", runtimeMetrics)

	admin := app.Group("/api/v1/admin", middleware.RequireAPIKey())

	admin.Get("/jobs", c.Jobs.ListJobs)
	admin.Get("/jobs/:id", c.Jobs.GetJob)
	admin.Post("/jobs/:id/requeue", c.Jobs.RequeueJob)
	admin.Get("/dead-letters", c.Jobs.ListDeadLetters)
	admin.Get("/raw-events", c.Jobs.ListRawEvents)
	admin.Post("/statements/import", c.Jobs.ImportStatement)

	admin.Get("/anomalies", c.Anomaly.ListAnomalies)
	admin.Post("/anomalies/:id/resolve", c.Anomaly.ResolveAnomaly)

	admin.Get("/reconciliation/unmatched", c.Recon.ListUnmatchedPayouts)
	admin.Get("/reconciliation/confidence", c.Recon.ConfidenceDistribution)
	admin.Post("/run/reconcile", c.Recon.RunReconcile)
	admin.Post("/run/detectors", c.Recon.RunDetectors)

	admin.Get("/settings", c.Settings.GetSettings)
	admin.Put("/settings", c.Settings.UpdateSettings)
}

func webhookLimiter() fiber.Handler {
	port, _ := strconv.Atoi(env.GetEnv("CACHE_PORT", "6379"))
	storage := redis.New(redis.Config{
		Host:     env.GetEnv("CACHE_HOST", "localhost"),
		Port:     port,
		Password: env.GetEnv("CACHE_PASSWORD", ""),
		Database: 1,
	})

	max, _ := strconv.Atoi(env.GetEnv("WEBHOOK_RATE_LIMIT", "300"))
	if max <= 0 {
		max = 300
	}

	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: time.Minute,
		Storage:    storage,
		KeyGenerator: func(c *fiber.Ctx) string {
			return "webhook:" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "rate limit exceeded",
			})
		},
	})
}

func runtimeMetrics(c *fiber.Ctx) error {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return c.JSON(fiber.Map{
		"goroutines":     runtime.NumGoroutine(),
		"heap_alloc":     m.HeapAlloc,
		"heap_sys":       m.HeapSys,
		"total_alloc":    m.TotalAlloc,
		"num_gc":         m.NumGC,
		"gc_pause_total": m.PauseTotalNs,
	})
}
