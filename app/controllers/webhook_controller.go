package controllers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ledgerlink/ledgerlink/internal/pkg/connectors"
	"github.com/ledgerlink/ledgerlink/internal/pkg/ingest"
)

// WebhookController terminates provider webhook deliveries.
type WebhookController struct {
	ingest *ingest.Service
}

// NewWebhookController wires the webhook endpoint.
func NewWebhookController(service *ingest.Service) *WebhookController {
	return &WebhookController{ingest: service}
}

// HandleWebhook is POST /webhooks/:provider. It answers as soon as the
// delivery is stored; normalization and application run in background jobs.
func (wc *WebhookController) HandleWebhook(c *fiber.Ctx) error {
	provider := c.Params("provider")

	orgID, err := resolveOrgID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid org_id",
		})
	}

	headers := make(map[string]string)
	c.Request().Header.VisitAll(func(key, value []byte) {
		headers[string(key)] = string(value)
	})

	result, err := wc.ingest.Ingest(provider, orgID, projectIDParam(c), c.Body(), headers)
	if err != nil {
		var unsupported *connectors.UnsupportedProviderError
		if errors.As(err, &unsupported) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": unsupported.Error(),
			})
		}
		var sigErr *ingest.SignatureError
		if errors.As(err, &sigErr) {
			log.Warnf("[Webhook] Rejected %s delivery: bad signature", provider)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid signature",
			})
		}
		log.Errorf("[Webhook] Failed to ingest %s delivery: %v", provider, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to store delivery",
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"raw_event_id": result.RawEventID,
		"duplicate":    result.Duplicate,
	})
}

// resolveOrgID reads the organization from the org_id query parameter.
// Single-tenant installs omit it and land in the default organization.
func resolveOrgID(c *fiber.Ctx) (uint, error) {
	raw := c.Query("org_id")
	if raw == "" {
		return 1, nil
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, errInvalidOrgID
	}
	return uint(id), nil
}

var errInvalidOrgID = errors.New("invalid org_id")

func projectIDParam(c *fiber.Ctx) *uint {
	raw := c.Query("project_id")
	if raw == "" {
		return nil
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return nil
	}
	v := uint(id)
	return &v
}
