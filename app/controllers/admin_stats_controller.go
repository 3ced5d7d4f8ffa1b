package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ledgerlink/ledgerlink/app/models"
	"github.com/ledgerlink/ledgerlink/app/repository"
	"github.com/ledgerlink/ledgerlink/internal/pkg/jobqueue"
)

// AdminStatsController aggregates pipeline health for dashboards.
type AdminStatsController struct {
	repos *repository.Repositories
	queue *jobqueue.Queue
}

// NewAdminStatsController wires the stats endpoint.
func NewAdminStatsController(repos *repository.Repositories, queue *jobqueue.Queue) *AdminStatsController {
	return &AdminStatsController{repos: repos, queue: queue}
}

// GetStats is GET /api/v1/admin/stats.
func (ac *AdminStatsController) GetStats(c *fiber.Ctx) error {
	pipeline := models.PipelineStats{}
	var err error

	if pipeline.RawEvents, err = ac.repos.RawEvent.Count(); err != nil {
		return statsError(c, err)
	}
	if pipeline.NormalizedEvents, err = ac.repos.RawEvent.CountByStatus(models.RawEventStatusNormalized); err != nil {
		return statsError(c, err)
	}
	if pipeline.FailedRawEvents, err = ac.repos.RawEvent.CountByStatus(models.RawEventStatusFailed); err != nil {
		return statsError(c, err)
	}
	if pipeline.IgnoredRawEvents, err = ac.repos.RawEvent.CountByStatus(models.RawEventStatusIgnored); err != nil {
		return statsError(c, err)
	}

	jobStats, err := ac.queue.GetJobStats(c.Context())
	if err != nil {
		return statsError(c, err)
	}
	queueSize, _ := ac.queue.GetQueueSize(c.Context())
	runningSize, _ := ac.queue.GetRunningSize(c.Context())
	deadSize, _ := ac.queue.GetDeadSize(c.Context())

	anomalyCounts, err := ac.repos.Anomaly.OpenCounts()
	if err != nil {
		return statsError(c, err)
	}

	return c.JSON(fiber.Map{
		"pipeline": pipeline,
		"jobs": fiber.Map{
			"counters": jobStats,
			"queued":   queueSize,
			"running":  runningSize,
			"dead":     deadSize,
		},
		"open_anomalies": anomalyCounts,
	})
}

func statsError(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "failed to collect stats",
	})
}
