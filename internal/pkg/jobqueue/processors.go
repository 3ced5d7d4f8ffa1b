package jobqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ledgerlink/ledgerlink/app/models"
	"github.com/ledgerlink/ledgerlink/app/repository"
	"github.com/ledgerlink/ledgerlink/internal/pkg/applier"
	"github.com/ledgerlink/ledgerlink/internal/pkg/connectors"
	"github.com/ledgerlink/ledgerlink/internal/pkg/statements"
)

// NewNormalizeHandler returns the handler for normalize jobs. It turns one
// stored raw event into canonical events and returns one apply job per newly
// created canonical event.
func NewNormalizeHandler(repos *repository.Repositories, registry *connectors.Registry) Handler {
	return func(ctx context.Context, job *Job) ([]*JobRequest, error) {
		payload, err := NormalizeJobPayloadFromMap(job.Payload)
		if err != nil {
			return nil, fmt.Errorf("invalid normalize payload: %w", err)
		}

		raw, err := repos.RawEvent.GetByID(payload.RawEventID)
		if err != nil {
			return nil, fmt.Errorf("failed to load raw event %d: %w", payload.RawEventID, err)
		}
		if raw == nil {
			return nil, fmt.Errorf("raw event %d not found", payload.RawEventID)
		}
		if raw.IsTerminal() {
			// Already normalized by an earlier attempt; apply jobs were
			// enqueued then, and re-applying is idempotent regardless.
			log.Debugf("[Normalize] Raw event %d already %s, skipping", raw.ID, raw.Status)
			return nil, nil
		}

		connector, err := registry.Get(raw.Provider)
		if err != nil {
			// No connector can ever appear for this row; fail it, do not retry.
			if merr := repos.RawEvent.MarkFailed(raw.ID, err.Error()); merr != nil {
				return nil, fmt.Errorf("failed to mark raw event %d failed: %w", raw.ID, merr)
			}
			return nil, nil
		}

		var headers map[string]string
		if raw.Headers != "" {
			if err := json.Unmarshal([]byte(raw.Headers), &headers); err != nil {
				headers = nil
			}
		}
		envelope := &connectors.RawEventEnvelope{
			Provider:  raw.Provider,
			EventType: raw.EventType,
			OrgID:     raw.OrgID,
			ProjectID: raw.ProjectID,
			Payload:   []byte(raw.Payload),
			Headers:   headers,
		}

		events, err := connector.Normalize(envelope)
		if err != nil {
			var unsupported *connectors.UnsupportedEventTypeError
			if errors.As(err, &unsupported) {
				if merr := repos.RawEvent.MarkFailed(raw.ID, err.Error()); merr != nil {
					return nil, fmt.Errorf("failed to mark raw event %d failed: %w", raw.ID, merr)
				}
				return nil, nil
			}
			return nil, fmt.Errorf("normalize failed for raw event %d: %w", raw.ID, err)
		}

		if len(events) == 0 {
			// Known event type with nothing ledger-relevant in it.
			if err := repos.RawEvent.MarkIgnored(raw.ID); err != nil {
				return nil, fmt.Errorf("failed to mark raw event %d ignored: %w", raw.ID, err)
			}
			return nil, nil
		}

		var followUps []*JobRequest
		for i := range events {
			ev := events[i]
			hash, err := connectors.NormalizedHash(raw.Provider, ev)
			if err != nil {
				return nil, err
			}
			data, err := json.Marshal(ev)
			if err != nil {
				return nil, fmt.Errorf("failed to encode normalized event: %w", err)
			}
			ce := &models.CanonicalEvent{
				RawEventID:     raw.ID,
				OrgID:          raw.OrgID,
				ProjectID:      raw.ProjectID,
				Provider:       raw.Provider,
				DomainType:     ev.DomainType,
				Data:           string(data),
				ExternalRef:    ev.ExternalRef,
				OccurredAt:     ev.OccurredAt,
				NormalizedHash: hash,
			}
			created, stored, err := repos.Canonical.CreateIfNotExists(ce)
			if err != nil {
				return nil, fmt.Errorf("failed to store canonical event: %w", err)
			}
			if !created {
				log.Debugf("[Normalize] Canonical event %s/%s already known", raw.Provider, hash[:12])
			}
			followUps = append(followUps, &JobRequest{
				OrgID:   raw.OrgID,
				Type:    JobTypeApply,
				Payload: ApplyJobPayload{CanonicalEventID: stored.ID}.ToMap(),
			})
		}

		if err := repos.RawEvent.MarkNormalized(raw.ID); err != nil {
			return nil, fmt.Errorf("failed to mark raw event %d normalized: %w", raw.ID, err)
		}
		log.Infof("[Normalize] Raw event %d -> %d canonical events", raw.ID, len(events))
		return followUps, nil
	}
}

// NewApplyHandler returns the handler for apply jobs.
func NewApplyHandler(repos *repository.Repositories, app *applier.Applier) Handler {
	return func(ctx context.Context, job *Job) ([]*JobRequest, error) {
		payload, err := ApplyJobPayloadFromMap(job.Payload)
		if err != nil {
			return nil, fmt.Errorf("invalid apply payload: %w", err)
		}

		ce, err := repos.Canonical.GetByID(payload.CanonicalEventID)
		if err != nil {
			return nil, fmt.Errorf("failed to load canonical event %d: %w", payload.CanonicalEventID, err)
		}
		if ce == nil {
			return nil, fmt.Errorf("canonical event %d not found", payload.CanonicalEventID)
		}

		if err := app.Apply(ctx, ce); err != nil {
			return nil, err
		}
		return nil, nil
	}
}

// NewImportStatementHandler returns the handler for bank statement imports.
func NewImportStatementHandler(importer *statements.Importer) Handler {
	return func(ctx context.Context, job *Job) ([]*JobRequest, error) {
		payload, err := ImportStatementJobPayloadFromMap(job.Payload)
		if err != nil {
			return nil, fmt.Errorf("invalid import payload: %w", err)
		}

		summary, err := importer.ImportObject(ctx, job.OrgID, payload.Bucket, payload.ObjectKey, payload.Account)
		if err != nil {
			return nil, err
		}
		log.Infof("[ImportStatement] %s/%s: %d inserted, %d duplicates, %d invalid",
			payload.Bucket, payload.ObjectKey, summary.Inserted, summary.Duplicates, summary.Invalid)
		return nil, nil
	}
}
