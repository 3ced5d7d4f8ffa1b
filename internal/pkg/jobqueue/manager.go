package jobqueue

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ledgerlink/ledgerlink/app/models"
)

// SweepRunner is a periodic maintenance task driven by the manager's tickers.
type SweepRunner interface {
	Run(ctx context.Context) error
}

// Manager owns the job queue and the periodic sweeps around it. It is a
// process-wide singleton initialized once at startup.
type Manager struct {
	queue           *Queue
	reconcileRunner SweepRunner
	detectorRunner  SweepRunner
	retentionRunner SweepRunner
	stopCh          chan struct{}
	wg              sync.WaitGroup
	mu              sync.Mutex
	started         bool
}

var (
	managerInstance *Manager
	managerOnce     sync.Once
)

// InitializeManager sets up the global manager. Runners may be nil, in which
// case the corresponding sweep is not scheduled.
func InitializeManager(queue *Queue, reconcile, detector, retention SweepRunner) *Manager {
	managerOnce.Do(func() {
		managerInstance = &Manager{
			queue:           queue,
			reconcileRunner: reconcile,
			detectorRunner:  detector,
			retentionRunner: retention,
			stopCh:          make(chan struct{}),
		}
	})
	return managerInstance
}

// GetManager returns the global manager instance, or nil before initialization.
func GetManager() *Manager {
	return managerInstance
}

// Queue exposes the underlying job queue for enqueueing and admin access.
func (m *Manager) Queue() *Queue {
	return m.queue
}

// Start launches the queue workers and the periodic sweeps. Intervals come
// from the application settings so operators can tune them without redeploy.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return
	}
	m.started = true

	m.queue.Start()

	settings := models.GetAppSettings()

	if m.reconcileRunner != nil {
		interval := time.Duration(settings.GetReconcileInterval()) * time.Minute
		m.startSweep("Reconcile", m.reconcileRunner, interval)
	}
	if m.detectorRunner != nil {
		interval := time.Duration(settings.GetDetectorInterval()) * time.Minute
		m.startSweep("Detectors", m.detectorRunner, interval)
	}
	if m.retentionRunner != nil {
		m.startSweep("Retention", m.retentionRunner, 24*time.Hour)
	}

	log.Info("[Manager] Started")
}

// Stop shuts down the sweeps, then the queue workers.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started {
		return
	}
	m.started = false

	close(m.stopCh)
	m.wg.Wait()
	m.queue.Stop()
	log.Info("[Manager] Stopped")
}

func (m *Manager) startSweep(name string, runner SweepRunner, interval time.Duration) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		log.Infof("[Manager] %s sweep every %s", name, interval)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-m.stopCh:
				return
			case <-ticker.C:
				if err := runner.Run(context.Background()); err != nil {
					log.Errorf("[Manager] %s sweep failed: %v", name, err)
				}
			}
		}
	}()
}

// TriggerReconcile runs a reconciliation sweep on demand.
func (m *Manager) TriggerReconcile(ctx context.Context) error {
	if m.reconcileRunner == nil {
		return nil
	}
	return m.reconcileRunner.Run(ctx)
}

// TriggerDetectors runs a detector sweep on demand.
func (m *Manager) TriggerDetectors(ctx context.Context) error {
	if m.detectorRunner == nil {
		return nil
	}
	return m.detectorRunner.Run(ctx)
}
