package jobqueue

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/TranslaFox/internal/pkg/cache"
	"github.com/ManuelReschke/TranslaFox/internal/pkg/env"
)

const (
	OutboxRelayLockKey = "lock:outbox_relay"
	DraftSweepLockKey  = "lock:draft_sweep"

	DefaultWorkerCount        = 5
	DefaultOutboxRelayEvery   = 15 * time.Second
	DefaultDraftSweepInterval = 15 * time.Minute
)

// Manager manages the global job queue and background tasks
type Manager struct {
	queue         *Queue
	relayTicker   *time.Ticker
	draftTicker   *time.Ticker
	relayInterval time.Duration
	draftInterval time.Duration
	draftTTL      time.Duration
	stopCh        chan struct{}
	wg            sync.WaitGroup
	mu            sync.Mutex
	running       bool
}

var (
	globalManager *Manager
	managerOnce   sync.Once
)

// GetManager returns the global job queue manager (singleton)
func GetManager() *Manager {
	managerOnce.Do(func() {
		workerCount := env.GetEnvInt("JOBQUEUE_WORKERS", DefaultWorkerCount)

		draftTTL := time.Duration(env.GetEnvInt("DRAFT_TTL_HOURS", int(DefaultDraftTTL/time.Hour))) * time.Hour

		globalManager = &Manager{
			queue:         NewQueue(workerCount),
			relayInterval: DefaultOutboxRelayEvery,
			draftInterval: DefaultDraftSweepInterval,
			draftTTL:      draftTTL,
			stopCh:        make(chan struct{}),
		}
	})
	return globalManager
}

// GetQueue returns the managed job queue
func (m *Manager) GetQueue() *Queue {
	return m.queue
}

// Configure wires the processor dependencies into the queue. The outbox
// attempt limit falls back to OUTBOX_MAX_ATTEMPTS.
func (m *Manager) Configure(deps Deps) {
	if deps.MaxAttempts <= 0 {
		deps.MaxAttempts = env.GetEnvInt("OUTBOX_MAX_ATTEMPTS", DefaultOutboxMaxAttempts)
	}
	m.queue.Configure(deps)
}

// Start starts the job queue and background tasks
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	// Recreate stop channel for each start cycle so manager can be restarted safely.
	m.stopCh = make(chan struct{})
	m.running = true
	log.Info("[JobQueue Manager] Starting job queue and background tasks")

	m.queue.Start()

	if m.queue.deps.DB == nil {
		log.Warn("[JobQueue Manager] No database configured, outbox relay and draft sweeper disabled")
		return
	}

	m.relayTicker = time.NewTicker(m.relayInterval)
	m.wg.Add(1)
	go m.outboxRelayWorker(m.stopCh)

	if m.queue.deps.Drafts != nil {
		m.draftTicker = time.NewTicker(m.draftInterval)
		m.wg.Add(1)
		go m.draftSweepWorker(m.stopCh)
	}

	log.Info("[JobQueue Manager] Started successfully")
}

// Stop stops the job queue and background tasks
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[JobQueue Manager] Stopping job queue and background tasks...")

	if m.relayTicker != nil {
		m.relayTicker.Stop()
	}
	if m.draftTicker != nil {
		m.draftTicker.Stop()
	}

	// Signal workers to stop
	close(m.stopCh)
	m.stopCh = nil
	m.running = false

	// Wait for background workers to finish
	m.wg.Wait()

	m.queue.Stop()

	log.Info("[JobQueue Manager] Stopped successfully")
}

// outboxRelayWorker periodically moves due outbox rows onto the queue
func (m *Manager) outboxRelayWorker(stopCh <-chan struct{}) {
	defer m.wg.Done()
	log.Infof("[JobQueue Manager] Started outbox relay (interval: %s)", m.relayInterval)

	for {
		select {
		case <-stopCh:
			log.Info("[JobQueue Manager] Outbox relay stopping")
			return
		case <-m.relayTicker.C:
			if err := m.RunOutboxRelayOnce(); err != nil {
				log.Errorf("[JobQueue Manager] Outbox relay error: %v", err)
			}
		}
	}
}

// draftSweepWorker periodically schedules abandoned drafts for deletion
func (m *Manager) draftSweepWorker(stopCh <-chan struct{}) {
	defer m.wg.Done()
	log.Infof("[JobQueue Manager] Started draft sweeper (interval: %s, ttl: %s)", m.draftInterval, m.draftTTL)

	for {
		select {
		case <-stopCh:
			log.Info("[JobQueue Manager] Draft sweeper stopping")
			return
		case <-m.draftTicker.C:
			if err := m.RunDraftSweepOnce(); err != nil {
				log.Errorf("[JobQueue Manager] Draft sweep error: %v", err)
			}
		}
	}
}

// RunOutboxRelayOnce runs a single relay pass. Only one instance relays at a
// time; the others skip the tick.
func (m *Manager) RunOutboxRelayOnce() error {
	ok, err := cache.SetNX(OutboxRelayLockKey, lockOwner(), m.relayInterval)
	if err != nil {
		return err
	}
	if !ok {
		log.Debug("[JobQueue Manager] Outbox relay held by another instance")
		return nil
	}
	defer func() { _ = cache.Delete(OutboxRelayLockKey) }()

	ctx, cancel := context.WithTimeout(context.Background(), m.relayInterval)
	defer cancel()
	_, err = RelayOutbox(ctx, m.queue.deps.DB, func(id uint) error {
		_, err := m.queue.EnqueueOutboxDeliveryJob(id)
		return err
	}, OutboxRelayBatch, time.Now().UTC())
	return err
}

// RunDraftSweepOnce exposes a manual trigger for a single draft sweep (admin use).
func (m *Manager) RunDraftSweepOnce() error {
	ok, err := cache.SetNX(DraftSweepLockKey, lockOwner(), draftSweepTimeout)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	defer func() { _ = cache.Delete(DraftSweepLockKey) }()

	ctx, cancel := context.WithTimeout(context.Background(), draftSweepTimeout)
	defer cancel()
	_, err = SweepDrafts(ctx, m.queue.deps.DB, m.draftTTL, DraftSweepBatch, time.Now().UTC(), func(id uint) error {
		_, err := m.queue.EnqueueDeleteDraftJob(id, nil)
		return err
	})
	return err
}

// IsRunning returns whether the manager is currently running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func lockOwner() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "translafox"
	}
	return host
}
