package controllers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ledgerlink/ledgerlink/app/models"
	"github.com/ledgerlink/ledgerlink/app/repository"
)

// AdminAnomalyController exposes anomaly review for operators.
type AdminAnomalyController struct {
	anomalies repository.AnomalyRepository
}

// NewAdminAnomalyController wires the anomaly admin endpoints.
func NewAdminAnomalyController(anomalies repository.AnomalyRepository) *AdminAnomalyController {
	return &AdminAnomalyController{anomalies: anomalies}
}

// ListAnomalies is GET /api/v1/admin/anomalies?status=open|resolved.
func (ac *AdminAnomalyController) ListAnomalies(c *fiber.Ctx) error {
	status := c.Query("status", models.AnomalyStatusOpen)
	if status != models.AnomalyStatusOpen && status != models.AnomalyStatusResolved {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "status must be open or resolved",
		})
	}

	offset := c.QueryInt("offset", 0)
	limit := c.QueryInt("limit", 50)
	if limit < 1 || limit > 500 {
		limit = 50
	}

	anomalies, err := ac.anomalies.ListByStatus(status, offset, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to list anomalies",
		})
	}

	return c.JSON(fiber.Map{
		"status":    status,
		"count":     len(anomalies),
		"anomalies": anomalies,
	})
}

// ResolveAnomaly is POST /api/v1/admin/anomalies/:id/resolve. Resolving is
// strictly an operator action; a detector never closes its own findings.
func (ac *AdminAnomalyController) ResolveAnomaly(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid anomaly id",
		})
	}

	anomaly, err := ac.anomalies.GetByID(uint(id))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to load anomaly",
		})
	}
	if anomaly == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "anomaly not found",
		})
	}
	if !anomaly.IsOpen() {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "anomaly is already resolved",
		})
	}

	if err := ac.anomalies.Resolve(uint(id)); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to resolve anomaly",
		})
	}

	log.Infof("[Admin] Resolved anomaly %d (%s)", id, anomaly.AnomalyType)
	resolved, err := ac.anomalies.GetByID(uint(id))
	if err != nil || resolved == nil {
		return c.SendStatus(fiber.StatusNoContent)
	}
	return c.JSON(resolved)
}
