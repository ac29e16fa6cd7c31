package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/engage-agent/internal/pipeline"
	"github.com/engage-agent/internal/storage"
	"github.com/engage-agent/pkg/logger"
)

// entry is one workspace's live schedule state, process-memory only
type entry struct {
	workspaceID string
	entryID     cron.EntryID
	interval    time.Duration

	running atomic.Bool

	mu         sync.Mutex
	lastRunAt  time.Time
	nextRunAt  time.Time
	lastResult *pipeline.CycleResult
	lastErr    error
}

// Status is a point-in-time snapshot of one workspace's schedule
type Status struct {
	WorkspaceID string
	Interval    time.Duration
	Running     bool
	LastRunAt   time.Time
	NextRunAt   time.Time
	LastResult  *pipeline.CycleResult
	LastError   string
}

// Manager owns per-workspace cron entries over a shared cron runner.
// Start and Stop are idempotent per workspace; all state is lost on
// process exit and rebuilt from workspace settings at startup.
type Manager struct {
	cron   *cron.Cron
	repo   storage.Repository
	runner pipeline.Runner
	log    *logger.Logger

	mu      sync.Mutex
	entries map[string]*entry

	now func() time.Time
}

// NewManager creates a scheduler manager and starts its cron runner
func NewManager(repo storage.Repository, runner pipeline.Runner, log *logger.Logger) *Manager {
	m := &Manager{
		repo:    repo,
		runner:  runner,
		log:     log.WithComponent("scheduler"),
		entries: make(map[string]*entry),
		now:     time.Now,
	}
	m.cron = cron.New(cron.WithLogger(cronLogger{m.log}))
	m.cron.Start()
	return m
}

// Start schedules a workspace. The interval is the minimum across its
// platform schedules; the first cycle executes immediately. Starting an
// already-started workspace restarts it with fresh settings.
func (m *Manager) Start(ctx context.Context, workspaceID string) error {
	settings, err := m.repo.GetWorkspaceSettings(ctx, workspaceID)
	if err != nil {
		return fmt.Errorf("failed to load workspace settings: %w", err)
	}

	interval := settings.TickInterval()

	m.mu.Lock()
	if existing, ok := m.entries[workspaceID]; ok {
		m.cron.Remove(existing.entryID)
		delete(m.entries, workspaceID)
	}

	e := &entry{
		workspaceID: workspaceID,
		interval:    interval,
	}
	e.entryID = m.cron.Schedule(cron.Every(interval), cron.FuncJob(func() {
		m.execute(e)
	}))
	e.mu.Lock()
	e.nextRunAt = m.now().Add(interval)
	e.mu.Unlock()
	m.entries[workspaceID] = e
	m.mu.Unlock()

	m.log.Info().
		Str("workspace_id", workspaceID).
		Dur("interval", interval).
		Msg("Workspace scheduled")

	// First cycle runs now instead of waiting a full interval
	go m.execute(e)

	return nil
}

// Stop unschedules a workspace and discards its state. An in-flight
// cycle finishes on its own.
func (m *Manager) Stop(workspaceID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[workspaceID]
	if !ok {
		return
	}
	m.cron.Remove(e.entryID)
	delete(m.entries, workspaceID)

	m.log.Info().Str("workspace_id", workspaceID).Msg("Workspace unscheduled")
}

// ShutdownAll stops the cron runner and waits for in-flight cycles
func (m *Manager) ShutdownAll() {
	m.mu.Lock()
	for id, e := range m.entries {
		m.cron.Remove(e.entryID)
		delete(m.entries, id)
	}
	m.mu.Unlock()

	// Stop returns a context that completes when running jobs finish
	<-m.cron.Stop().Done()
	m.log.Info().Msg("Scheduler shut down")
}

// Status snapshots every scheduled workspace
func (m *Manager) Status() []Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	statuses := make([]Status, 0, len(m.entries))
	for _, e := range m.entries {
		e.mu.Lock()
		s := Status{
			WorkspaceID: e.workspaceID,
			Interval:    e.interval,
			Running:     e.running.Load(),
			LastRunAt:   e.lastRunAt,
			NextRunAt:   e.nextRunAt,
			LastResult:  e.lastResult,
		}
		if e.lastErr != nil {
			s.LastError = e.lastErr.Error()
		}
		e.mu.Unlock()
		statuses = append(statuses, s)
	}
	return statuses
}

// execute runs one cycle for a workspace. Overlapping ticks are dropped
// silently. Settings are re-read every tick so edits apply without a
// restart; a read failure is that cycle's error and the next tick
// retries.
func (m *Manager) execute(e *entry) {
	if !e.running.CompareAndSwap(false, true) {
		return
	}
	defer e.running.Store(false)

	now := m.now()
	ctx := context.Background()
	log := m.log.WithWorkspace(e.workspaceID)

	e.mu.Lock()
	e.lastRunAt = now
	e.nextRunAt = now.Add(e.interval)
	e.mu.Unlock()

	settings, err := m.repo.GetWorkspaceSettings(ctx, e.workspaceID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load settings for cycle")
		e.mu.Lock()
		e.lastErr = err
		e.mu.Unlock()
		return
	}

	if !settings.AnyWindowOpen(now) {
		log.Debug().Msg("All platform windows closed, skipping cycle")
		e.mu.Lock()
		e.lastErr = nil
		e.mu.Unlock()
		return
	}

	result, err := m.runner.RunCycle(ctx, settings)

	e.mu.Lock()
	e.lastResult = result
	e.lastErr = err
	e.mu.Unlock()

	if err != nil {
		log.Error().Err(err).Msg("Cycle failed")
	}
}

// cronLogger adapts our logger for cron
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Msgf(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Msgf(msg, keysAndValues...)
}
