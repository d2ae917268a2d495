package listsync

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"accredo/internal/revocation"
	id "accredo/pkg/domain"
	dErrors "accredo/pkg/domain-errors"
)

// ListBuilder renders the public snapshot for a revocation list. Satisfied by
// the revocation registry.
type ListBuilder interface {
	BuildPublicList(ctx context.Context, listID id.ListID) (revocation.PublicList, error)
}

// Publisher delivers a built snapshot to wherever relying parties fetch it.
type Publisher interface {
	Publish(ctx context.Context, list revocation.PublicList) error
}

// JobStatus is the lifecycle state of a sync job. running is the only
// non-terminal state.
type JobStatus string

const (
	StatusRunning   JobStatus = "running"
	StatusSucceeded JobStatus = "succeeded"
	StatusFailed    JobStatus = "failed"
)

// Job is the status record a sync run always leaves behind.
type Job struct {
	ID         id.JobID   `json:"id"`
	ListID     id.ListID  `json:"list_id"`
	Status     JobStatus  `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// Manager runs fire-and-forget publication jobs for revocation list snapshots.
// Trigger returns a job id immediately; the outcome is readable via Status.
// There is no cancellation: a triggered job always runs to a terminal status.
type Manager struct {
	builder   ListBuilder
	publisher Publisher
	logger    *slog.Logger

	mu   sync.RWMutex
	jobs map[id.JobID]Job
	wg   sync.WaitGroup
}

// Option configures the Manager.
type Option func(*Manager)

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager creates a sync job manager.
func NewManager(builder ListBuilder, publisher Publisher, opts ...Option) (*Manager, error) {
	if builder == nil || publisher == nil {
		return nil, fmt.Errorf("builder and publisher are required")
	}
	m := &Manager{
		builder:   builder,
		publisher: publisher,
		logger:    slog.Default(),
		jobs:      make(map[id.JobID]Job),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Trigger starts a publication job for the list and returns its id without
// waiting. The job inherits values from ctx but not its cancellation; callers
// disconnecting must not abandon a half-published snapshot.
func (m *Manager) Trigger(ctx context.Context, listID id.ListID) (id.JobID, error) {
	if listID.IsNil() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "list id is required")
	}

	job := Job{
		ID:        id.JobID("job_" + uuid.NewString()),
		ListID:    listID,
		Status:    StatusRunning,
		StartedAt: time.Now().UTC(),
	}
	m.mu.Lock()
	m.jobs[job.ID] = job
	m.mu.Unlock()

	m.wg.Add(1)
	go m.run(context.WithoutCancel(ctx), job)

	m.logger.InfoContext(ctx, "list sync triggered", "job_id", job.ID, "list_id", listID)
	return job.ID, nil
}

// Status returns the job record, or not_found for an unknown job id.
func (m *Manager) Status(_ context.Context, jobID id.JobID) (Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, ok := m.jobs[jobID]
	if !ok {
		return Job{}, dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("sync job %s not found", jobID))
	}
	return job, nil
}

// Wait blocks until all in-flight jobs have reached a terminal status. Used
// during shutdown.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// run executes one job. Errors and panics never escape: both are recorded on
// the job and logged, so a crashed build still leaves a terminal failed record.
func (m *Manager) run(ctx context.Context, job Job) {
	defer m.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			m.logger.ErrorContext(ctx, "list sync panicked",
				"job_id", job.ID, "list_id", job.ListID, "panic", r)
			m.finish(job.ID, StatusFailed, fmt.Sprintf("panic: %v", r))
		}
	}()

	list, err := m.builder.BuildPublicList(ctx, job.ListID)
	if err != nil {
		m.logger.ErrorContext(ctx, "list snapshot build failed",
			"job_id", job.ID, "list_id", job.ListID, "error", err)
		m.finish(job.ID, StatusFailed, err.Error())
		return
	}

	if err := m.publisher.Publish(ctx, list); err != nil {
		m.logger.ErrorContext(ctx, "list snapshot publish failed",
			"job_id", job.ID, "list_id", job.ListID, "error", err)
		m.finish(job.ID, StatusFailed, err.Error())
		return
	}

	m.finish(job.ID, StatusSucceeded, "")
	m.logger.InfoContext(ctx, "list sync completed",
		"job_id", job.ID, "list_id", job.ListID, "revoked_indices", list.RevokedIndices)
}

func (m *Manager) finish(jobID id.JobID, status JobStatus, errMsg string) {
	now := time.Now().UTC()
	m.mu.Lock()
	defer m.mu.Unlock()

	job := m.jobs[jobID]
	job.Status = status
	job.Error = errMsg
	job.FinishedAt = &now
	m.jobs[jobID] = job
}

// LogPublisher is the default publisher: it records the snapshot metadata in
// the service log. Real deployments swap in an object-store publisher.
type LogPublisher struct {
	Logger *slog.Logger
}

// Publish logs the snapshot.
func (p LogPublisher) Publish(ctx context.Context, list revocation.PublicList) error {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "revocation list published",
		"list_id", list.ListID, "total_slots", list.TotalSlots,
		"revoked_indices", list.RevokedIndices, "generated_at", list.GeneratedAt)
	return nil
}
