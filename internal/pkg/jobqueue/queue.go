package jobqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ledgerlink/ledgerlink/internal/pkg/cache"
	"github.com/ledgerlink/ledgerlink/internal/pkg/metrics"
)

const (
	// Redis key prefixes
	JobKeyPrefix    = "job:"
	JobQueueKey     = "job_queue"     // ready list, workers pop from here
	JobScheduledKey = "job_scheduled" // ZSET scored by available_at
	JobRunningKey   = "job_running"   // claimed jobs, scanned by the reaper
	JobDeadKey      = "job_dead"      // dead-letter list for operator triage
	JobStatsKey     = "job_stats"

	// Job settings
	DefaultMaxAttempts = 3
	JobTTL             = 24 * time.Hour
	DeadJobTTL         = 7 * 24 * time.Hour // dead jobs stay inspectable longer

	// Backoff settings
	backoffBase = 30 * time.Second
	backoffCap  = 15 * time.Minute

	// Handler execution deadline; distinct from the retry budget
	handlerTimeout = 2 * time.Minute

	stuckJobTimeout = 10 * time.Minute
)

var ErrUnknownJobType = errors.New("unknown job type")

// Handler executes one job and may return follow-on jobs to enqueue. The
// normalize -> apply chain is expressed through these return values so the
// worker loop stays a single generic dispatcher.
type Handler func(ctx context.Context, job *Job) ([]*JobRequest, error)

// Queue manages background jobs using Redis
type Queue struct {
	client     *redis.Client
	handlers   map[JobType]Handler
	workers    int
	workerPool chan struct{}
	stopCh     chan struct{}
	wg         sync.WaitGroup
	mu         sync.Mutex
	running    bool
}

// NewQueue creates a new job queue
func NewQueue(workers int) *Queue {
	if workers <= 0 {
		workers = 3 // Default number of workers
	}

	return &Queue{
		client:     cache.GetClient(),
		handlers:   make(map[JobType]Handler),
		workers:    workers,
		workerPool: make(chan struct{}, workers),
		stopCh:     make(chan struct{}),
	}
}

// RegisterHandler wires a handler for a job type. Must be called before Start.
func (q *Queue) RegisterHandler(jobType JobType, handler Handler) {
	q.handlers[jobType] = handler
}

// Start starts the job queue workers
func (q *Queue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.running {
		return
	}

	q.running = true
	log.Infof("[JobQueue] Starting %d workers", q.workers)

	// Initialize worker pool
	for i := 0; i < q.workers; i++ {
		q.workerPool <- struct{}{}
	}

	// Start workers
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}

	// Promote delayed jobs whose available_at has passed
	q.wg.Add(1)
	go q.promoter(time.Second)

	// Recover jobs stuck in running past the timeout (crashed workers)
	q.wg.Add(1)
	go q.reaper(stuckJobTimeout, time.Minute)
}

// Stop stops the job queue workers
func (q *Queue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.running {
		return
	}

	log.Info("[JobQueue] Stopping workers...")
	close(q.stopCh)
	q.running = false
	q.wg.Wait()
	log.Info("[JobQueue] All workers stopped")
}

// promoter moves jobs from the scheduled ZSET to the ready list once their
// available_at score has passed.
func (q *Queue) promoter(interval time.Duration) {
	defer q.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	ctx := context.Background()
	for {
		select {
		case <-q.stopCh:
			return
		case <-ticker.C:
			now := fmt.Sprintf("%d", time.Now().Unix())
			ids, err := q.client.ZRangeByScore(ctx, JobScheduledKey, &redis.ZRangeBy{
				Min: "-inf", Max: now, Count: 100,
			}).Result()
			if err != nil {
				log.Errorf("[JobQueue] Promoter ZRangeByScore error: %v", err)
				continue
			}
			for _, id := range ids {
				// ZRem wins exactly once even with concurrent promoters.
				removed, err := q.client.ZRem(ctx, JobScheduledKey, id).Result()
				if err != nil {
					log.Errorf("[JobQueue] Promoter ZRem error for %s: %v", id, err)
					continue
				}
				if removed > 0 {
					if err := q.client.LPush(ctx, JobQueueKey, id).Err(); err != nil {
						log.Errorf("[JobQueue] Promoter LPush error for %s: %v", id, err)
					}
				}
			}
		}
	}
}

// reaper periodically scans the running list and requeues jobs whose attempt
// started longer than maxAge ago.
func (q *Queue) reaper(maxAge time.Duration, interval time.Duration) {
	defer q.wg.Done()
	log.Infof("[JobQueue] Stuck-job reaper running (maxAge=%s, interval=%s)", maxAge, interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	ctx := context.Background()
	for {
		select {
		case <-q.stopCh:
			log.Info("[JobQueue] Reaper stopping")
			return
		case <-ticker.C:
			ids, err := q.client.LRange(ctx, JobRunningKey, 0, -1).Result()
			if err != nil {
				log.Errorf("[JobQueue] Reaper LRange error: %v", err)
				continue
			}
			now := time.Now()
			for _, id := range ids {
				job, err := q.GetJob(ctx, id)
				if err != nil {
					// Job data missing; remove the stray entry
					if err != redis.Nil {
						log.Errorf("[JobQueue] Reaper Get error for %s: %v", id, err)
					}
					_ = q.client.LRem(ctx, JobRunningKey, 1, id).Err()
					continue
				}
				if job.Status != JobStatusRunning {
					_ = q.client.LRem(ctx, JobRunningKey, 1, id).Err()
					continue
				}
				// StartedAt is recorded per attempt; never infer staleness
				// from CompletedAt or CreatedAt.
				if job.StartedAt == nil || now.Sub(*job.StartedAt) <= maxAge {
					continue
				}
				log.Warnf("[JobQueue] Recovering stuck job %s (type=%s), age=%s", job.ID, job.Type, now.Sub(*job.StartedAt))
				job.Status = JobStatusQueued
				job.LastError = "recovered by reaper"
				job.AvailableAt = now
				job.StartedAt = nil
				job.UpdatedAt = now
				q.updateJob(ctx, job, JobTTL)
				_ = q.client.LRem(ctx, JobRunningKey, 1, id).Err()
				_ = q.client.RPush(ctx, JobQueueKey, id).Err()
			}
		}
	}
}

// worker processes jobs from the queue
func (q *Queue) worker(id int) {
	defer q.wg.Done()
	log.Infof("[JobQueue] Worker %d started", id)

	ctx := context.Background()

	for {
		select {
		case <-q.stopCh:
			log.Infof("[JobQueue] Worker %d stopping", id)
			return
		default:
			// Acquire worker slot
			<-q.workerPool

			job, err := q.dequeueJob(ctx)
			if err != nil {
				if err != redis.Nil {
					log.Errorf("[JobQueue] Worker %d: Error dequeuing job: %v", id, err)
				}
				q.workerPool <- struct{}{}
				time.Sleep(time.Second)
				continue
			}

			if job != nil {
				log.Infof("[JobQueue] Worker %d processing job %s (Type: %s, Attempt: %d)", id, job.ID, job.Type, job.Attempts+1)
				q.processJob(ctx, job)
			}

			// Release worker slot
			q.workerPool <- struct{}{}
		}
	}
}

// EnqueueJob adds a new job, ready immediately.
func (q *Queue) EnqueueJob(orgID uint, jobType JobType, payload map[string]interface{}) (*Job, error) {
	ctx := context.Background()

	now := time.Now()
	job := &Job{
		ID:          uuid.New().String(),
		OrgID:       orgID,
		Type:        jobType,
		Status:      JobStatusQueued,
		Payload:     payload,
		Attempts:    0,
		MaxAttempts: DefaultMaxAttempts,
		AvailableAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	jobData, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job: %w", err)
	}

	jobKey := JobKeyPrefix + job.ID

	// Use a pipeline for atomic operations
	pipe := q.client.Pipeline()
	pipe.Set(ctx, jobKey, jobData, JobTTL)
	pipe.LPush(ctx, JobQueueKey, job.ID)
	pipe.HIncrBy(ctx, JobStatsKey, string(JobStatusQueued), 1)

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to enqueue job: %w", err)
	}

	log.Infof("[JobQueue] Enqueued job %s (Type: %s)", job.ID, job.Type)
	return job, nil
}

// dequeueJob atomically claims the next ready job. BRPopLPush moves the ID
// from the ready list into the running list, so at most one worker ever holds
// a given job.
func (q *Queue) dequeueJob(ctx context.Context) (*Job, error) {
	result, err := q.client.BRPopLPush(ctx, JobQueueKey, JobRunningKey, time.Second).Result()
	if err != nil {
		return nil, err
	}

	jobID := result
	job, err := q.GetJob(ctx, jobID)
	if err != nil {
		// Job data not found, remove from running list
		q.client.LRem(ctx, JobRunningKey, 1, jobID)
		return nil, fmt.Errorf("job data not found for ID %s: %w", jobID, err)
	}

	return job, nil
}

// processJob runs a single claimed job through its handler and applies the
// retry/dead transition on failure.
func (q *Queue) processJob(ctx context.Context, job *Job) {
	job.MarkAsRunning()
	q.updateJob(ctx, job, JobTTL)

	handler, ok := q.handlers[job.Type]

	var followUps []*JobRequest
	var err error
	if !ok {
		err = fmt.Errorf("%w: %s", ErrUnknownJobType, job.Type)
	} else {
		handlerCtx, cancel := context.WithTimeout(ctx, handlerTimeout)
		followUps, err = handler(handlerCtx, job)
		cancel()
	}

	if err != nil {
		log.Errorf("[JobQueue] Job %s failed: %v", job.ID, err)
		job.MarkAsFailed(err.Error())

		if job.IsRetryable() {
			delay := backoffDelay(job.Attempts)
			log.Infof("[JobQueue] Retrying job %s in %s (Attempt %d/%d)", job.ID, delay, job.Attempts, job.MaxAttempts)
			job.MarkAsRetrying(delay)
			q.updateJob(ctx, job, JobTTL)
			q.scheduleJob(ctx, job)
			metrics.JobsProcessed.WithLabelValues(string(job.Type), "retried").Inc()
		} else {
			log.Errorf("[JobQueue] Job %s dead after %d attempts", job.ID, job.Attempts)
			job.MarkAsDead()
			q.updateJob(ctx, job, DeadJobTTL)
			if derr := q.client.RPush(ctx, JobDeadKey, job.ID).Err(); derr != nil {
				log.Errorf("[JobQueue] Failed to dead-letter job %s: %v", job.ID, derr)
			}
			q.updateJobStats(ctx, JobStatusDead, 1)
			metrics.JobsProcessed.WithLabelValues(string(job.Type), "dead").Inc()
		}
		q.removeFromRunning(ctx, job.ID)
		return
	}

	log.Infof("[JobQueue] Job %s completed successfully", job.ID)
	job.MarkAsCompleted()
	q.updateJobStats(ctx, JobStatusCompleted, 1)
	metrics.JobsProcessed.WithLabelValues(string(job.Type), "completed").Inc()
	// Remove completed job data from Redis entirely
	q.removeCompletedJob(ctx, job.ID)
	q.removeFromRunning(ctx, job.ID)

	for _, req := range followUps {
		if _, err := q.EnqueueJob(req.OrgID, req.Type, req.Payload); err != nil {
			// Follow-up loss is recoverable: re-running the parent job is
			// idempotent, so surface loudly but do not fail the parent.
			log.Errorf("[JobQueue] Failed to enqueue follow-up %s for job %s: %v", req.Type, job.ID, err)
		}
	}
}

// scheduleJob places a queued job in the delayed ZSET keyed by available_at.
func (q *Queue) scheduleJob(ctx context.Context, job *Job) {
	if err := q.client.ZAdd(ctx, JobScheduledKey, redis.Z{
		Score:  float64(job.AvailableAt.Unix()),
		Member: job.ID,
	}).Err(); err != nil {
		log.Errorf("[JobQueue] Failed to schedule job %s: %v", job.ID, err)
	}
}

// backoffDelay returns the exponential backoff for the given attempt count
// with up to 50% random jitter, capped.
func backoffDelay(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	delay := backoffBase << (attempts - 1)
	if delay > backoffCap {
		delay = backoffCap
	}
	jitter := time.Duration(rand.Int63n(int64(delay)/2 + 1))
	return delay + jitter
}

// updateJob updates job data in Redis
func (q *Queue) updateJob(ctx context.Context, job *Job, ttl time.Duration) {
	jobData, err := json.Marshal(job)
	if err != nil {
		log.Errorf("[JobQueue] Failed to marshal job %s: %v", job.ID, err)
		return
	}

	jobKey := JobKeyPrefix + job.ID
	if err := q.client.Set(ctx, jobKey, jobData, ttl).Err(); err != nil {
		log.Errorf("[JobQueue] Failed to update job %s: %v", job.ID, err)
	}
}

// removeFromRunning removes a job from the running list
func (q *Queue) removeFromRunning(ctx context.Context, jobID string) {
	if err := q.client.LRem(ctx, JobRunningKey, 1, jobID).Err(); err != nil {
		log.Errorf("[JobQueue] Failed to remove job %s from running list: %v", jobID, err)
	}
}

// removeCompletedJob completely removes a completed job from Redis
func (q *Queue) removeCompletedJob(ctx context.Context, jobID string) {
	jobKey := JobKeyPrefix + jobID
	if err := q.client.Del(ctx, jobKey).Err(); err != nil {
		log.Errorf("[JobQueue] Failed to remove completed job %s from Redis: %v", jobID, err)
	}
}

// updateJobStats updates job statistics
func (q *Queue) updateJobStats(ctx context.Context, status JobStatus, delta int64) {
	if err := q.client.HIncrBy(ctx, JobStatsKey, string(status), delta).Err(); err != nil {
		log.Errorf("[JobQueue] Failed to update job stats: %v", err)
	}
}

// GetJob retrieves a job by ID
func (q *Queue) GetJob(ctx context.Context, jobID string) (*Job, error) {
	jobKey := JobKeyPrefix + jobID
	jobData, err := q.client.Get(ctx, jobKey).Result()
	if err != nil {
		return nil, err
	}

	var job Job
	if err := json.Unmarshal([]byte(jobData), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}

	return &job, nil
}

// ListJobsByStatus returns the jobs currently held in the list backing the
// given status. Completed jobs are not listable; their data is removed and
// only the stats counter remains.
func (q *Queue) ListJobsByStatus(ctx context.Context, status JobStatus) ([]*Job, error) {
	var ids []string
	var err error

	switch status {
	case JobStatusQueued:
		ids, err = q.client.LRange(ctx, JobQueueKey, 0, -1).Result()
		if err != nil {
			return nil, err
		}
		scheduled, zerr := q.client.ZRange(ctx, JobScheduledKey, 0, -1).Result()
		if zerr != nil {
			return nil, zerr
		}
		ids = append(ids, scheduled...)
	case JobStatusRunning:
		ids, err = q.client.LRange(ctx, JobRunningKey, 0, -1).Result()
	case JobStatusDead:
		ids, err = q.client.LRange(ctx, JobDeadKey, 0, -1).Result()
	default:
		return nil, fmt.Errorf("jobs with status %q are not listable", status)
	}
	if err != nil {
		return nil, err
	}

	jobs := make([]*Job, 0, len(ids))
	for _, id := range ids {
		job, gerr := q.GetJob(ctx, id)
		if gerr != nil {
			continue // expired or already removed
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// RequeueDeadJob is the operator action for a dead job: attempts reset to 0,
// status back to queued, available immediately.
func (q *Queue) RequeueDeadJob(ctx context.Context, jobID string) (*Job, error) {
	job, err := q.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != JobStatusDead {
		return nil, fmt.Errorf("job %s is %s, not dead", jobID, job.Status)
	}

	job.ResetForRequeue()
	q.updateJob(ctx, job, JobTTL)
	if err := q.client.LRem(ctx, JobDeadKey, 1, jobID).Err(); err != nil {
		log.Errorf("[JobQueue] Failed to remove job %s from dead list: %v", jobID, err)
	}
	if err := q.client.LPush(ctx, JobQueueKey, jobID).Err(); err != nil {
		return nil, fmt.Errorf("failed to requeue job %s: %w", jobID, err)
	}
	log.Infof("[JobQueue] Requeued dead job %s (Type: %s)", job.ID, job.Type)
	return job, nil
}

// GetJobStats returns statistics about job statuses
func (q *Queue) GetJobStats(ctx context.Context) (map[JobStatus]int64, error) {
	stats, err := q.client.HGetAll(ctx, JobStatsKey).Result()
	if err != nil {
		return nil, err
	}

	result := make(map[JobStatus]int64)
	for status, count := range stats {
		if countInt, err := json.Number(count).Int64(); err == nil {
			result[JobStatus(status)] = countInt
		}
	}

	return result, nil
}

// GetQueueSize returns the number of ready jobs
func (q *Queue) GetQueueSize(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, JobQueueKey).Result()
}

// GetRunningSize returns the number of jobs being processed
func (q *Queue) GetRunningSize(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, JobRunningKey).Result()
}

// GetDeadSize returns the number of dead-lettered jobs
func (q *Queue) GetDeadSize(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, JobDeadKey).Result()
}
