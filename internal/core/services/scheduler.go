package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/clearline-labs/bankwatch/internal/core/domain"
	"github.com/clearline-labs/bankwatch/internal/core/ports/driven"
	"github.com/clearline-labs/bankwatch/internal/core/ports/driving"
	"github.com/clearline-labs/bankwatch/internal/logger"
)

// Collection windows overlap the previous sweep so records updated
// around the boundary are never missed; upserts make the overlap free.
const (
	collectionOverlap  = 24 * time.Hour
	defaultLookback    = 30 * 24 * time.Hour
	resultHistoryLimit = 100
)

// Scheduler runs the periodic collection sweep. Task state persists
// in the scheduler store so restarts pick up the cadence where it
// left off.
type Scheduler struct {
	config    domain.SchedulerConfig
	store     driven.SchedulerStore
	collector driving.Collector

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

var _ driving.Scheduler = (*Scheduler)(nil)

// NewScheduler creates a scheduler over the collector.
func NewScheduler(config domain.SchedulerConfig, store driven.SchedulerStore, collector driving.Collector) *Scheduler {
	return &Scheduler{
		config:    config,
		store:     store,
		collector: collector,
	}
}

// Start begins the scheduler loop. Blocks until the context is
// cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.mu.Unlock()

	if err := s.initialiseTasks(ctx); err != nil {
		logger.Warn("scheduler: failed to initialise tasks: %v", err)
	}

	return s.run(ctx)
}

// Stop gracefully shuts down the scheduler, waiting for any running
// task to finish.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

// initialiseTasks ensures all configured tasks exist in the store.
func (s *Scheduler) initialiseTasks(ctx context.Context) error {
	if taskCfg := s.config.GetTaskConfig(domain.TaskIDEventCollection); taskCfg.Enabled {
		return s.ensureTask(ctx, domain.TaskIDEventCollection, "Event Collection", taskCfg)
	}
	return nil
}

// ensureTask creates or updates a task in the store.
func (s *Scheduler) ensureTask(ctx context.Context, id, name string, cfg domain.TaskConfig) error {
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return err
	}

	if task == nil {
		task = &domain.ScheduledTask{
			ID:       id,
			Name:     name,
			Interval: cfg.Interval,
			Enabled:  cfg.Enabled,
			NextRun:  time.Now().Add(cfg.Interval),
		}
	} else {
		if task.Interval != cfg.Interval {
			task.Interval = cfg.Interval
			task.NextRun = time.Now().Add(cfg.Interval)
		}
		task.Enabled = cfg.Enabled
	}

	return s.store.SaveTask(ctx, task)
}

func (s *Scheduler) run(ctx context.Context) error {
	s.checkAndRunDueTasks(ctx)

	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stopCh:
			return nil
		case <-ticker.C:
			s.checkAndRunDueTasks(ctx)
		}
	}
}

func (s *Scheduler) checkAndRunDueTasks(ctx context.Context) {
	tasks, err := s.store.ListTasks(ctx)
	if err != nil {
		logger.Warn("scheduler: failed to list tasks: %v", err)
		return
	}

	now := time.Now()
	for i := range tasks {
		task := &tasks[i]
		if !task.Enabled {
			continue
		}
		if task.NextRun.IsZero() || !task.NextRun.After(now) {
			s.runTask(ctx, task)
		}
	}
}

func (s *Scheduler) runTask(ctx context.Context, task *domain.ScheduledTask) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		result := &domain.TaskResult{
			TaskID:    task.ID,
			StartedAt: time.Now(),
		}

		var err error
		switch task.ID {
		case domain.TaskIDEventCollection:
			result.ItemsProcessed, err = s.runCollection(ctx, task)
		default:
			logger.Warn("scheduler: unknown task ID: %s", task.ID)
			return
		}

		result.EndedAt = time.Now()
		if err != nil {
			result.Success = false
			result.Error = err.Error()
			task.LastError = err.Error()
		} else {
			result.Success = true
			task.LastError = ""
			task.LastSuccess = result.EndedAt
		}

		task.LastRun = result.StartedAt
		task.NextRun = result.EndedAt.Add(task.Interval)

		if saveErr := s.store.SaveTask(ctx, task); saveErr != nil {
			logger.Warn("scheduler: failed to save task %s: %v", task.ID, saveErr)
		}
		if recordErr := s.store.RecordResult(ctx, result); recordErr != nil {
			logger.Warn("scheduler: failed to record result for %s: %v", task.ID, recordErr)
		}
		if pruneErr := s.store.PruneHistory(ctx, resultHistoryLimit); pruneErr != nil {
			logger.Warn("scheduler: failed to prune history: %v", pruneErr)
		}
	}()
}

// runCollection sweeps all connectors over the window since the last
// successful run. Returns the total events stored. A sweep with any
// failed connector is a failed sweep: advancing LastSuccess past a
// window that a connector never covered would lose its records for
// good, so the window only moves when every connector completed.
func (s *Scheduler) runCollection(ctx context.Context, task *domain.ScheduledTask) (int, error) {
	if s.collector == nil {
		return 0, nil
	}

	since := time.Now().Add(-defaultLookback)
	if !task.LastSuccess.IsZero() {
		since = task.LastSuccess.Add(-collectionOverlap)
	}

	results, err := s.collector.RunAll(ctx, since)
	if err != nil {
		return 0, err
	}

	stored := 0
	var failed []string
	for name, res := range results {
		stored += res.Stored
		if res.State == domain.RunFailed {
			failed = append(failed, fmt.Sprintf("%s: %s", name, res.Err))
		}
	}
	if len(failed) > 0 {
		sort.Strings(failed)
		return stored, fmt.Errorf("%d of %d connectors failed: %s",
			len(failed), len(results), strings.Join(failed, "; "))
	}
	return stored, nil
}
