// Package ingest is the synchronous half of the pipeline: verify, persist,
// enqueue. Everything else happens in background jobs.
package ingest

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ledgerlink/ledgerlink/app/models"
	"github.com/ledgerlink/ledgerlink/app/repository"
	"github.com/ledgerlink/ledgerlink/internal/pkg/connectors"
	"github.com/ledgerlink/ledgerlink/internal/pkg/env"
	"github.com/ledgerlink/ledgerlink/internal/pkg/jobqueue"
	"github.com/ledgerlink/ledgerlink/internal/pkg/metrics"
)

// SignatureError is returned when a delivery fails signature verification.
// The delivery is not persisted.
type SignatureError struct {
	Provider string
}

func (e *SignatureError) Error() string {
	return fmt.Sprintf("invalid %s webhook signature", e.Provider)
}

// Result reports what Ingest did with a delivery.
type Result struct {
	RawEventID uint `json:"raw_event_id"`
	Duplicate  bool `json:"duplicate"`
}

// Service accepts webhook deliveries and hands them to the pipeline.
type Service struct {
	registry *connectors.Registry
	rawRepo  repository.RawEventRepository
	queue    *jobqueue.Queue
}

// NewService wires the ingest path.
func NewService(registry *connectors.Registry, rawRepo repository.RawEventRepository, queue *jobqueue.Queue) *Service {
	return &Service{registry: registry, rawRepo: rawRepo, queue: queue}
}

// Ingest verifies and stores one webhook delivery and enqueues normalization
// for it. Replays of an already-stored delivery return Duplicate without
// enqueueing anything.
func (s *Service) Ingest(provider string, orgID uint, projectID *uint, body []byte, headers map[string]string) (*Result, error) {
	connector, err := s.registry.Get(provider)
	if err != nil {
		metrics.WebhooksReceived.WithLabelValues(provider, "rejected").Inc()
		return nil, err
	}

	secret := webhookSecret(connector.Provider())
	if secret != "" && !connector.VerifySignature(body, headers, secret) {
		metrics.WebhooksReceived.WithLabelValues(connector.Provider(), "rejected").Inc()
		return nil, &SignatureError{Provider: connector.Provider()}
	}

	envelope, err := connector.ParseWebhook(body, headers)
	if err != nil {
		metrics.WebhooksReceived.WithLabelValues(connector.Provider(), "rejected").Inc()
		return nil, fmt.Errorf("failed to parse %s webhook: %w", connector.Provider(), err)
	}
	envelope.OrgID = orgID
	envelope.ProjectID = projectID

	headerJSON, err := json.Marshal(headers)
	if err != nil {
		headerJSON = []byte("{}")
	}

	raw := &models.RawEvent{
		OrgID:          orgID,
		ProjectID:      projectID,
		Provider:       connector.Provider(),
		EventType:      envelope.EventType,
		Payload:        string(body),
		Headers:        string(headerJSON),
		IdempotencyKey: models.ComputeIdempotencyKey(connector.Provider(), envelope.EventType, body),
		Status:         models.RawEventStatusReceived,
		SignatureValid: secret != "",
	}

	created, stored, err := s.rawRepo.CreateIfNotExists(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to store raw event: %w", err)
	}

	if !created {
		metrics.WebhooksReceived.WithLabelValues(connector.Provider(), "duplicate").Inc()
		log.Debugf("[Ingest] Duplicate %s delivery, raw event %d", connector.Provider(), stored.ID)
		return &Result{RawEventID: stored.ID, Duplicate: true}, nil
	}

	payload := jobqueue.NormalizeJobPayload{RawEventID: stored.ID, Provider: connector.Provider()}
	if _, err := s.queue.EnqueueJob(orgID, jobqueue.JobTypeNormalize, payload.ToMap()); err != nil {
		// The row is stored; a later replay or operator requeue can pick it
		// up, so the delivery itself is still acknowledged.
		log.Errorf("[Ingest] Failed to enqueue normalize for raw event %d: %v", stored.ID, err)
	}

	metrics.WebhooksReceived.WithLabelValues(connector.Provider(), "accepted").Inc()
	return &Result{RawEventID: stored.ID, Duplicate: false}, nil
}

// webhookSecret resolves the shared secret for a provider, e.g.
// WEBHOOK_SECRET_KIWIFY. Empty means signature checks are disabled for that
// provider.
func webhookSecret(provider string) string {
	return env.GetEnv("WEBHOOK_SECRET_"+strings.ToUpper(provider), "")
}
