package jobqueue

import (
	"encoding/json"
	"time"
)

// JobType defines the type of job
type JobType string

const (
	JobTypeNormalize       JobType = "normalize"
	JobTypeApply           JobType = "apply"
	JobTypeImportStatement JobType = "import_statement"
)

// JobStatus defines the status of a job
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusDead      JobStatus = "dead"
)

// Job represents a background job. Attempts only ever increases; a job moves
// queued -> running -> completed, or back to queued with a backoff delay, or
// to dead once attempts reaches MaxAttempts.
type Job struct {
	ID          string                 `json:"id"`
	OrgID       uint                   `json:"org_id"`
	Type        JobType                `json:"type"`
	Status      JobStatus              `json:"status"`
	Payload     map[string]interface{} `json:"payload"`
	Attempts    int                    `json:"attempts"`
	MaxAttempts int                    `json:"max_attempts"`
	AvailableAt time.Time              `json:"available_at"`
	StartedAt   *time.Time             `json:"started_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	LastError   string                 `json:"last_error,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

// JobRequest describes a follow-on job a handler wants enqueued. Handlers
// return these instead of enqueueing directly, so the chain
// normalize -> apply stays visible in one place and the worker loop remains a
// generic dispatcher.
type JobRequest struct {
	OrgID   uint
	Type    JobType
	Payload map[string]interface{}
}

// NormalizeJobPayload references the raw event to normalize
type NormalizeJobPayload struct {
	RawEventID uint   `json:"raw_event_id"`
	Provider   string `json:"provider"`
}

// ToMap converts the payload to a map for storage
func (p NormalizeJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"raw_event_id": p.RawEventID,
		"provider":     p.Provider,
	}
}

// NormalizeJobPayloadFromMap creates a payload from a map
func NormalizeJobPayloadFromMap(data map[string]interface{}) (*NormalizeJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload NormalizeJobPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}

// ApplyJobPayload references the canonical event to apply to the ledger
type ApplyJobPayload struct {
	CanonicalEventID uint `json:"canonical_event_id"`
}

// ToMap converts the payload to a map for storage
func (p ApplyJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"canonical_event_id": p.CanonicalEventID,
	}
}

// ApplyJobPayloadFromMap creates a payload from a map
func ApplyJobPayloadFromMap(data map[string]interface{}) (*ApplyJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload ApplyJobPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}

// ImportStatementJobPayload references a bank statement object to import
type ImportStatementJobPayload struct {
	Bucket    string `json:"bucket"`
	ObjectKey string `json:"object_key"`
	Account   string `json:"account"`
}

// ToMap converts the payload to a map for storage
func (p ImportStatementJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"bucket":     p.Bucket,
		"object_key": p.ObjectKey,
		"account":    p.Account,
	}
}

// ImportStatementJobPayloadFromMap creates a payload from a map
func ImportStatementJobPayloadFromMap(data map[string]interface{}) (*ImportStatementJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload ImportStatementJobPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}

// IsRetryable checks if the job has retry budget left. Evaluated after
// MarkAsFailed, so a job dies with attempts == max_attempts exactly.
func (j *Job) IsRetryable() bool {
	return j.Attempts < j.MaxAttempts
}

// MarkAsFailed records a failed attempt. The caller then routes the job to
// retry or dead based on IsRetryable.
func (j *Job) MarkAsFailed(errorMsg string) {
	j.Attempts++
	j.LastError = errorMsg
	j.UpdatedAt = time.Now()
	j.StartedAt = nil
}

// MarkAsRunning records the start of an attempt. StartedAt is per attempt so
// the stuck-job reaper can tell a long-running attempt from a finished one.
func (j *Job) MarkAsRunning() {
	now := time.Now()
	j.Status = JobStatusRunning
	j.UpdatedAt = now
	j.StartedAt = &now
}

// MarkAsCompleted updates the job status to completed
func (j *Job) MarkAsCompleted() {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.UpdatedAt = now
	j.CompletedAt = &now
	j.LastError = ""
}

// MarkAsRetrying moves a failed job back to queued with the given delay.
func (j *Job) MarkAsRetrying(delay time.Duration) {
	now := time.Now()
	j.Status = JobStatusQueued
	j.AvailableAt = now.Add(delay)
	j.UpdatedAt = now
}

// MarkAsDead makes the job terminal; only an operator requeue revives it.
func (j *Job) MarkAsDead() {
	j.Status = JobStatusDead
	j.UpdatedAt = time.Now()
}

// ResetForRequeue is the operator transition dead -> queued.
func (j *Job) ResetForRequeue() {
	now := time.Now()
	j.Status = JobStatusQueued
	j.Attempts = 0
	j.LastError = ""
	j.AvailableAt = now
	j.UpdatedAt = now
	j.StartedAt = nil
}
