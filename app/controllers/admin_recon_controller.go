package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ledgerlink/ledgerlink/app/repository"
	"github.com/ledgerlink/ledgerlink/internal/pkg/jobqueue"
)

// AdminReconController exposes reconciliation read views and manual triggers.
type AdminReconController struct {
	recon repository.ReconRepository
}

// NewAdminReconController wires the reconciliation admin endpoints.
func NewAdminReconController(recon repository.ReconRepository) *AdminReconController {
	return &AdminReconController{recon: recon}
}

// ListUnmatchedPayouts is GET /api/v1/admin/reconciliation/unmatched?org_id=.
func (ac *AdminReconController) ListUnmatchedPayouts(c *fiber.Ctx) error {
	orgID := uint(c.QueryInt("org_id", 1))
	limit := c.QueryInt("limit", 100)
	if limit < 1 || limit > 500 {
		limit = 100
	}

	payouts, err := ac.recon.ListUnmatchedPayouts(orgID, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to list unmatched payouts",
		})
	}

	return c.JSON(fiber.Map{
		"org_id":  orgID,
		"count":   len(payouts),
		"payouts": payouts,
	})
}

// ConfidenceDistribution is GET /api/v1/admin/reconciliation/confidence.
func (ac *AdminReconController) ConfidenceDistribution(c *fiber.Ctx) error {
	orgID := uint(c.QueryInt("org_id", 1))

	buckets, err := ac.recon.ConfidenceDistribution(orgID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to load confidence distribution",
		})
	}

	return c.JSON(fiber.Map{
		"org_id":  orgID,
		"buckets": buckets,
	})
}

// RunReconcile is POST /api/v1/admin/run/reconcile: a manual sweep outside
// the scheduled interval.
func (ac *AdminReconController) RunReconcile(c *fiber.Ctx) error {
	manager := jobqueue.GetManager()
	if manager == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "manager not running",
		})
	}

	if err := manager.TriggerReconcile(c.Context()); err != nil {
		log.Errorf("[Admin] Manual reconcile sweep failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "reconcile sweep failed",
		})
	}
	return c.JSON(fiber.Map{"status": "completed"})
}

// RunDetectors is POST /api/v1/admin/run/detectors.
func (ac *AdminReconController) RunDetectors(c *fiber.Ctx) error {
	manager := jobqueue.GetManager()
	if manager == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "manager not running",
		})
	}

	if err := manager.TriggerDetectors(c.Context()); err != nil {
		log.Errorf("[Admin] Manual detector sweep failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "detector sweep failed",
		})
	}
	return c.JSON(fiber.Map{"status": "completed"})
}
