package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/clearline-labs/bankwatch/internal/core/domain"
	"github.com/clearline-labs/bankwatch/internal/core/ports/driven"
	"github.com/clearline-labs/bankwatch/internal/core/ports/driving"
	"github.com/clearline-labs/bankwatch/internal/logger"
)

// healthCheckTimeout bounds a single connector readiness probe.
const healthCheckTimeout = 10 * time.Second

// CollectionOrchestrator implements the Collector driving port. It
// walks each connector through discover → fetch → normalize → store,
// isolating per-record failures and retrying transient ones with
// exponential backoff. Counts in the run result make partial failure
// visible; a failed run never masquerades as success.
type CollectionOrchestrator struct {
	connectors map[string]driven.Connector
	normalizer *Normalizer
	events     driven.EventStore
	cfg        domain.CollectionConfig
	now        func() time.Time

	mu         sync.RWMutex
	activeRuns map[string]*domain.RunResult
}

var _ driving.Collector = (*CollectionOrchestrator)(nil)

// OrchestratorOption configures a CollectionOrchestrator.
type OrchestratorOption func(*CollectionOrchestrator)

// WithOrchestratorClock overrides the clock, for tests.
func WithOrchestratorClock(now func() time.Time) OrchestratorOption {
	return func(o *CollectionOrchestrator) { o.now = now }
}

// NewCollectionOrchestrator creates an orchestrator over the given
// connectors.
func NewCollectionOrchestrator(connectors []driven.Connector, normalizer *Normalizer, events driven.EventStore, cfg domain.CollectionConfig, opts ...OrchestratorOption) *CollectionOrchestrator {
	byName := make(map[string]driven.Connector, len(connectors))
	for _, c := range connectors {
		byName[c.Name()] = c
	}
	o := &CollectionOrchestrator{
		connectors: byName,
		normalizer: normalizer,
		events:     events,
		cfg:        cfg,
		now:        time.Now,
		activeRuns: make(map[string]*domain.RunResult),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run collects from one connector. Already-stored events stay
// committed when the run fails mid-stream; upserts are idempotent so
// the next run safely re-covers the window.
func (o *CollectionOrchestrator) Run(ctx context.Context, connectorName string, since time.Time) (domain.RunResult, error) {
	conn, ok := o.connectors[connectorName]
	if !ok {
		return domain.RunResult{}, fmt.Errorf("%w: %s", domain.ErrUnknownConnector, connectorName)
	}

	result, err := o.beginRun(connectorName, since)
	if err != nil {
		return domain.RunResult{}, err
	}
	logger.Info("run %s: collecting %s since %s", result.RunID, connectorName, since.Format("2006-01-02"))

	// Discovery failures retry as a whole pass; idempotent upserts
	// make re-covering the window safe.
	runErr := backoff.Retry(func() error {
		err := o.collect(ctx, conn, since, result)
		if err != nil && !domain.IsTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}, o.newBackOff(ctx))

	return o.finishRun(result, runErr), runErr
}

// RunAll collects from every connector concurrently up to the
// configured parallelism. Failures are captured per connector; one
// connector failing never cancels the others.
func (o *CollectionOrchestrator) RunAll(ctx context.Context, since time.Time) (map[string]domain.RunResult, error) {
	var (
		g       errgroup.Group
		mu      sync.Mutex
		results = make(map[string]domain.RunResult, len(o.connectors))
	)
	g.SetLimit(o.cfg.Parallelism)

	for name := range o.connectors {
		g.Go(func() error {
			res, err := o.Run(ctx, name, since)
			if err != nil {
				logger.Warn("run all: %s failed: %v", name, err)
				if res.Connector == "" {
					res = domain.RunResult{
						Connector: name,
						State:     domain.RunFailed,
						Since:     since,
						Err:       err.Error(),
					}
				}
			}
			mu.Lock()
			results[name] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results, nil
}

// Status reports the latest run state for a connector, or the pending
// zero state when it has never run.
func (o *CollectionOrchestrator) Status(_ context.Context, connectorName string) (*domain.RunResult, error) {
	if _, ok := o.connectors[connectorName]; !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownConnector, connectorName)
	}

	o.mu.RLock()
	defer o.mu.RUnlock()
	if r, ok := o.activeRuns[connectorName]; ok {
		cp := *r
		return &cp, nil
	}
	return &domain.RunResult{Connector: connectorName, State: domain.RunPending}, nil
}

// HealthCheck probes each connector's readiness with a bounded timeout.
func (o *CollectionOrchestrator) HealthCheck(ctx context.Context) (map[string]domain.HealthStatus, error) {
	statuses := make(map[string]domain.HealthStatus, len(o.connectors))
	for name, conn := range o.connectors {
		probeCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
		err := conn.Validate(probeCtx)
		cancel()

		status := domain.HealthStatus{
			Connector: name,
			Healthy:   err == nil,
			CheckedAt: o.now(),
		}
		if err != nil {
			status.Message = err.Error()
		}
		statuses[name] = status
	}
	return statuses, nil
}

// Close releases all connector resources.
func (o *CollectionOrchestrator) Close() error {
	var firstErr error
	for name, conn := range o.connectors {
		if err := conn.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing %s: %w", name, err)
		}
	}
	return firstErr
}

// beginRun registers a new run unless one is already active for the
// connector.
func (o *CollectionOrchestrator) beginRun(connectorName string, since time.Time) (*domain.RunResult, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if active, ok := o.activeRuns[connectorName]; ok && !active.State.Terminal() {
		return nil, fmt.Errorf("%w: %s (run %s)", domain.ErrRunInProgress, connectorName, active.RunID)
	}

	result := &domain.RunResult{
		RunID:     uuid.NewString(),
		Connector: connectorName,
		State:     domain.RunPending,
		Since:     since,
		StartedAt: o.now(),
	}
	o.activeRuns[connectorName] = result
	return result, nil
}

func (o *CollectionOrchestrator) finishRun(result *domain.RunResult, runErr error) domain.RunResult {
	o.mu.Lock()
	defer o.mu.Unlock()

	result.State = domain.RunCompleted
	if runErr != nil {
		result.State = domain.RunFailed
		result.Err = runErr.Error()
	}
	result.Duration = o.now().Sub(result.StartedAt)

	logger.Info("run %s: %s (fetched=%d normalized=%d stored=%d failed=%d)",
		result.RunID, result.State, result.Fetched, result.Normalized, result.Stored, result.Failed)
	return *result
}

// collect performs one discover → fetch → normalize → store pass.
// Counts reset at the start so a retried pass reports the attempt that
// actually completed.
func (o *CollectionOrchestrator) collect(ctx context.Context, conn driven.Connector, since time.Time, result *domain.RunResult) error {
	o.update(result, func(r *domain.RunResult) {
		r.State = domain.RunFetching
		r.Fetched, r.Normalized, r.Stored, r.Failed = 0, 0, 0, 0
	})

	handles, errs := conn.Discover(ctx, since)

	// The bounded queue between discovery and fetch is the
	// backpressure boundary: a slow fetch stage blocks discovery
	// instead of buffering handles without limit.
	queue := make(chan domain.RecordHandle, o.cfg.QueueSize)
	go func() {
		defer close(queue)
		for handle := range handles {
			select {
			case queue <- handle:
			case <-ctx.Done():
				return
			}
		}
	}()

	for handle := range queue {
		if err := o.processRecord(ctx, conn, handle, result); err != nil {
			o.update(result, func(r *domain.RunResult) { r.Failed++ })
			logger.Warn("run %s: record %s/%s: %v", result.RunID, handle.Source, handle.ExternalID, err)
		}
	}

	for err := range errs {
		if err != nil {
			return fmt.Errorf("discovering %s records: %w", conn.Name(), err)
		}
	}
	return ctx.Err()
}

// processRecord takes one handle through fetch, normalize, and store.
// Transient fetch and store failures retry with backoff; validation
// and structural failures are recorded and skipped.
func (o *CollectionOrchestrator) processRecord(ctx context.Context, conn driven.Connector, handle domain.RecordHandle, result *domain.RunResult) error {
	var raw *domain.RawRecord
	err := backoff.Retry(func() error {
		r, err := conn.Fetch(ctx, handle)
		if err != nil {
			if domain.IsTransient(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		raw = r
		return nil
	}, o.newBackOff(ctx))
	if err != nil {
		return fmt.Errorf("fetching: %w", err)
	}
	o.update(result, func(r *domain.RunResult) {
		r.Fetched++
		r.State = domain.RunNormalizing
	})

	event, err := o.normalizer.Normalize(ctx, raw)
	if err != nil {
		return fmt.Errorf("normalizing: %w", err)
	}
	o.update(result, func(r *domain.RunResult) {
		r.Normalized++
		r.State = domain.RunStoring
	})

	var outcome driven.UpsertOutcome
	err = backoff.Retry(func() error {
		out, err := o.events.Upsert(ctx, event)
		if err != nil {
			if domain.IsTransient(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		outcome = out
		return nil
	}, o.newBackOff(ctx))
	if err != nil {
		return fmt.Errorf("storing %s: %w", event.ID, err)
	}

	o.update(result, func(r *domain.RunResult) { r.Stored++ })
	logger.Debug("run %s: %s event %s", result.RunID, outcome, event.ID)
	return nil
}

func (o *CollectionOrchestrator) update(result *domain.RunResult, fn func(*domain.RunResult)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fn(result)
}

func (o *CollectionOrchestrator) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = o.cfg.InitialBackoff
	b.MaxInterval = o.cfg.MaxBackoff
	b.MaxElapsedTime = 0

	attempts := o.cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx)
}
