// Package migration coordinates the replication lifecycle of online data
// migrations.
//
// A Manager pairs a cdc.Tracker with the durable store. Preparing a scope
// creates its replication slot and records the starting position; once a
// scope is recorded as initialized, preparing it again resumes from the
// store without contacting the source. Positions only move forward.
package migration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"github.com/roach88/sluice/internal/cdc"
	"github.com/roach88/sluice/internal/metrics"
	"github.com/roach88/sluice/internal/store"
)

// DefaultConcurrency bounds concurrent source calls in PrepareAll.
const DefaultConcurrency = 4

// IDGenerator produces job IDs.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 job IDs.
//
// Thread-safety: stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate returns a new hyphenated UUIDv7.
//
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Sources resolves data-source names; *datasource.Registry satisfies it.
type Sources interface {
	Source(name string) (cdc.Source, error)
}

// Request names one scope to prepare.
type Request struct {
	Scope      string
	DataSource string
}

// Manager runs migration jobs. Safe for concurrent use.
type Manager struct {
	store       *store.Store
	tracker     cdc.Tracker
	sources     Sources
	ids         IDGenerator
	logger      *slog.Logger
	metrics     *metrics.Metrics
	concurrency int
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithMetrics records slot operations and checkpoints on mm.
func WithMetrics(mm *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mm }
}

// WithIDGenerator replaces the UUIDv7 job ID generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(m *Manager) { m.ids = g }
}

// WithConcurrency bounds concurrent source calls in PrepareAll.
func WithConcurrency(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.concurrency = n
		}
	}
}

// New returns a Manager.
func New(st *store.Store, tracker cdc.Tracker, sources Sources, opts ...Option) *Manager {
	m := &Manager{
		store:       st,
		tracker:     tracker,
		sources:     sources,
		ids:         UUIDv7Generator{},
		logger:      slog.Default(),
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Prepare makes scope ready for ingestion and returns its job. A scope
// already initialized is returned as stored.
func (m *Manager) Prepare(ctx context.Context, scope, dataSource string) (store.Job, error) {
	job, err := m.store.Job(ctx, scope)
	switch {
	case errors.Is(err, store.ErrNotFound):
		job, err = m.store.CreateJob(ctx, scope, m.ids.Generate(), dataSource)
		if err != nil {
			return store.Job{}, err
		}
	case err != nil:
		return store.Job{}, err
	}

	switch job.State {
	case store.StateInitialized:
		m.logger.Info("resuming migration job", "scope", scope, "job_id", job.JobID, "position", job.Position.String())
		return job, nil
	case store.StateDestroyed:
		return store.Job{}, fmt.Errorf("prepare %s: %w: job was completed", scope, store.ErrInvalidState)
	}

	src, err := m.sources.Source(job.DataSource)
	if err != nil {
		return store.Job{}, fmt.Errorf("prepare %s: %w", scope, err)
	}
	pos, err := m.tracker.Initialize(ctx, src, scope)
	m.metrics.ObserveReplication("initialize", err)
	if err != nil {
		return store.Job{}, fmt.Errorf("prepare %s: %w", scope, err)
	}
	if err := m.store.MarkInitialized(ctx, scope, pos); err != nil {
		return store.Job{}, err
	}
	m.metrics.SetCheckpoint(scope, uint64(pos.LSN))
	m.logger.Info("prepared migration job", "scope", scope, "job_id", job.JobID, "position", pos.String())
	return m.store.Job(ctx, scope)
}

// PrepareAll prepares every request with bounded concurrency. Jobs are
// returned in request order; failed requests leave a zero Job and their
// errors are joined.
func (m *Manager) PrepareAll(ctx context.Context, reqs []Request) ([]store.Job, error) {
	pool, err := ants.NewPool(m.concurrency, ants.WithPanicHandler(func(v any) {
		m.logger.Error("prepare task panicked", "panic", v)
	}))
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	jobs := make([]store.Job, len(reqs))
	errs := make([]error, len(reqs))
	var wg sync.WaitGroup
	for i, req := range reqs {
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			jobs[i], errs[i] = m.Prepare(ctx, req.Scope, req.DataSource)
		}); err != nil {
			wg.Done()
			errs[i] = fmt.Errorf("prepare %s: %w", req.Scope, err)
		}
	}
	wg.Wait()
	return jobs, errors.Join(errs...)
}

// Resume returns the durable position of an initialized scope without
// contacting the source.
func (m *Manager) Resume(ctx context.Context, scope string) (cdc.Position, error) {
	job, err := m.store.Job(ctx, scope)
	if err != nil {
		return cdc.Position{}, err
	}
	if job.State != store.StateInitialized {
		return cdc.Position{}, fmt.Errorf("resume %s: %w: %s", scope, store.ErrInvalidState, job.State)
	}
	data, err := job.Position.MarshalBinary()
	if err != nil {
		return cdc.Position{}, fmt.Errorf("resume %s: %w", scope, err)
	}
	return m.tracker.InitializeFromSerialized(data)
}

// Advance records a new durable position for scope.
func (m *Manager) Advance(ctx context.Context, scope string, pos cdc.Position) error {
	err := m.store.Checkpoint(ctx, scope, pos)
	m.metrics.ObserveReplication("advance", err)
	if err != nil {
		return err
	}
	m.metrics.SetCheckpoint(scope, uint64(pos.LSN))
	m.logger.Debug("advanced checkpoint", "scope", scope, "position", pos.String())
	return nil
}

// Complete releases scope's replication slot and marks the job destroyed.
func (m *Manager) Complete(ctx context.Context, scope string) error {
	job, err := m.store.Job(ctx, scope)
	if err != nil {
		return err
	}
	if job.State == store.StateDestroyed {
		return nil
	}
	src, err := m.sources.Source(job.DataSource)
	if err != nil {
		return fmt.Errorf("complete %s: %w", scope, err)
	}
	err = m.tracker.Destroy(ctx, src, scope)
	m.metrics.ObserveReplication("destroy", err)
	if err != nil {
		return fmt.Errorf("complete %s: %w", scope, err)
	}
	if err := m.store.MarkDestroyed(ctx, scope); err != nil {
		return err
	}
	m.logger.Info("completed migration job", "scope", scope, "job_id", job.JobID)
	return nil
}

// statusReporter is implemented by trackers that can inspect a live slot.
type statusReporter interface {
	Status(ctx context.Context, src cdc.Source, scope string) (cdc.SlotStatus, error)
}

// SlotStatus inspects the replication slot of scope on its source.
func (m *Manager) SlotStatus(ctx context.Context, scope string) (cdc.SlotStatus, error) {
	sr, ok := m.tracker.(statusReporter)
	if !ok {
		return cdc.SlotStatus{}, fmt.Errorf("status %s: tracker %T cannot inspect slots", scope, m.tracker)
	}
	job, err := m.store.Job(ctx, scope)
	if err != nil {
		return cdc.SlotStatus{}, err
	}
	src, err := m.sources.Source(job.DataSource)
	if err != nil {
		return cdc.SlotStatus{}, fmt.Errorf("status %s: %w", scope, err)
	}
	return sr.Status(ctx, src, scope)
}

// Job returns the recorded job of scope.
func (m *Manager) Job(ctx context.Context, scope string) (store.Job, error) {
	return m.store.Job(ctx, scope)
}

// Jobs lists every job in scope order.
func (m *Manager) Jobs(ctx context.Context) ([]store.Job, error) {
	return m.store.Jobs(ctx)
}
