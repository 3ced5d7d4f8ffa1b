package controllers

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"

	"github.com/ledgerlink/ledgerlink/app/models"
	"github.com/ledgerlink/ledgerlink/app/repository"
	"github.com/ledgerlink/ledgerlink/internal/pkg/jobqueue"
)

var validate = validator.New()

// AdminJobController exposes queue inspection and dead-letter operations.
type AdminJobController struct {
	queue   *jobqueue.Queue
	rawRepo repository.RawEventRepository
}

// NewAdminJobController wires the job admin endpoints.
func NewAdminJobController(queue *jobqueue.Queue, rawRepo repository.RawEventRepository) *AdminJobController {
	return &AdminJobController{queue: queue, rawRepo: rawRepo}
}

// ListJobs is GET /api/v1/admin/jobs?status=queued|running|dead.
func (ac *AdminJobController) ListJobs(c *fiber.Ctx) error {
	status := jobqueue.JobStatus(c.Query("status", string(jobqueue.JobStatusQueued)))

	jobs, err := ac.queue.ListJobsByStatus(c.Context(), status)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"status": status,
		"count":  len(jobs),
		"jobs":   jobs,
	})
}

// GetJob is GET /api/v1/admin/jobs/:id.
func (ac *AdminJobController) GetJob(c *fiber.Ctx) error {
	job, err := ac.queue.GetJob(c.Context(), c.Params("id"))
	if err != nil {
		if err == redis.Nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "job not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to load job",
		})
	}
	return c.JSON(job)
}

// RequeueJob is POST /api/v1/admin/jobs/:id/requeue. Only dead jobs can be
// requeued; the attempt counter starts over.
func (ac *AdminJobController) RequeueJob(c *fiber.Ctx) error {
	job, err := ac.queue.RequeueDeadJob(c.Context(), c.Params("id"))
	if err != nil {
		if err == redis.Nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "job not found",
			})
		}
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	log.Infof("[Admin] Requeued dead job %s", job.ID)
	return c.JSON(job)
}

// ListDeadLetters is GET /api/v1/admin/dead-letters: dead jobs plus failed
// raw events, the two places a delivery can end up needing an operator.
func (ac *AdminJobController) ListDeadLetters(c *fiber.Ctx) error {
	jobs, err := ac.queue.ListJobsByStatus(c.Context(), jobqueue.JobStatusDead)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to list dead jobs",
		})
	}

	failed, err := ac.rawRepo.ListByStatus(models.RawEventStatusFailed, 0, 100)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to list failed raw events",
		})
	}

	return c.JSON(fiber.Map{
		"dead_jobs":         jobs,
		"failed_raw_events": failed,
	})
}

// ListRawEvents is GET /api/v1/admin/raw-events?status=received|normalized|ignored|failed.
func (ac *AdminJobController) ListRawEvents(c *fiber.Ctx) error {
	status := c.Query("status", models.RawEventStatusReceived)
	offset := c.QueryInt("offset", 0)
	limit := c.QueryInt("limit", 50)
	if limit < 1 || limit > 500 {
		limit = 50
	}

	events, err := ac.rawRepo.ListByStatus(status, offset, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to list raw events",
		})
	}

	return c.JSON(fiber.Map{
		"status": status,
		"count":  len(events),
		"events": events,
	})
}

// ImportStatementRequest is the payload for a manual statement import.
type ImportStatementRequest struct {
	OrgID     uint   `json:"org_id" validate:"required,min=1"`
	Bucket    string `json:"bucket" validate:"required"`
	ObjectKey string `json:"object_key" validate:"required"`
	Account   string `json:"account" validate:"required"`
}

// ImportStatement is POST /api/v1/admin/statements/import. It enqueues an
// import job; the download and parse happen in the background.
func (ac *AdminJobController) ImportStatement(c *fiber.Ctx) error {
	var req ImportStatementRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}
	if err := validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	payload := jobqueue.ImportStatementJobPayload{
		Bucket:    req.Bucket,
		ObjectKey: req.ObjectKey,
		Account:   req.Account,
	}
	job, err := ac.queue.EnqueueJob(req.OrgID, jobqueue.JobTypeImportStatement, payload.ToMap())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to enqueue import",
		})
	}

	return c.Status(fiber.StatusAccepted).JSON(job)
}
