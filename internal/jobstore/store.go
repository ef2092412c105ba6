// Package jobstore tracks batch generation runs as jobs with monotonically
// versioned snapshots. Snapshots are full values keyed by version, never
// deltas, so polling at any cadence misses nothing, and the push stream is
// just a view that re-emits on version change.
package jobstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"storyboard/internal/domain"
	"storyboard/internal/infra"
	"storyboard/internal/sqlinline"
)

// OnItem is invoked by the owning use case once per completed batch item.
type OnItem func(domain.ItemResult)

// Exec runs the batch owned by one job. It returns the final snapshot, or
// an error only when pre-run validation rejected the whole batch.
type Exec func(ctx context.Context, onItem OnItem) (domain.Snapshot, error)

// terminal jobs stay resident this long for cheap polling before falling
// back to the database.
const defaultRetention = time.Hour

type tracked struct {
	job     domain.Job
	changed chan struct{} // closed and replaced on every mutation
}

// Store is the in-memory job registry, mirrored to Postgres on every
// mutation so snapshots survive restarts for polling consumers.
type Store struct {
	sql       infra.SQLExecutor
	logger    infra.Logger
	retention time.Duration

	mu   sync.Mutex
	jobs map[string]*tracked
}

// New constructs a Store.
func New(sqlExec infra.SQLExecutor, logger infra.Logger) *Store {
	return &Store{
		sql:       sqlExec,
		logger:    logger,
		retention: defaultRetention,
		jobs:      make(map[string]*tracked),
	}
}

// Create registers a queued job with an empty snapshot at version 0.
func (s *Store) Create(ctx context.Context, storyID string, jobType domain.JobType, total int) (*domain.Job, error) {
	job := domain.Job{
		ID:        uuid.NewString(),
		StoryID:   storyID,
		Type:      jobType,
		Status:    domain.JobStatusQueued,
		Snapshot:  domain.Snapshot{Summary: domain.Summary{Total: total}},
		CreatedAt: time.Now().UTC(),
	}
	snapshotJSON, err := json.Marshal(job.Snapshot)
	if err != nil {
		return nil, fmt.Errorf("jobstore: encode snapshot: %w", err)
	}
	if _, err := s.sql.Exec(ctx, sqlinline.QInsertJob,
		job.ID, job.StoryID, string(job.Type), string(job.Status), snapshotJSON, job.ProgressVersion); err != nil {
		return nil, fmt.Errorf("jobstore: insert job: %w", err)
	}

	s.mu.Lock()
	s.jobs[job.ID] = &tracked{job: cloneJob(job), changed: make(chan struct{})}
	s.mu.Unlock()

	copied := cloneJob(job)
	return &copied, nil
}

// Run drives the job through running to its terminal status. Each item
// completion bumps the progress version, persists the full snapshot and
// wakes subscribers. The job ends in error only when exec rejects the batch
// before any item ran; item failures leave the job done with a non-zero
// failed count.
func (s *Store) Run(ctx context.Context, jobID string, exec Exec) error {
	now := time.Now().UTC()
	if err := s.mutate(ctx, jobID, func(job *domain.Job) {
		job.Status = domain.JobStatusRunning
		job.StartedAt = &now
	}); err != nil {
		return err
	}

	snapshot, execErr := exec(ctx, func(res domain.ItemResult) {
		if err := s.mutate(ctx, jobID, func(job *domain.Job) {
			job.Snapshot.Fold(res)
		}); err != nil {
			s.logger.Error().Err(err).Str("job_id", jobID).Msg("jobstore: record item progress failed")
		}
	})

	finished := time.Now().UTC()
	if execErr != nil {
		if !domain.IsValidation(execErr) {
			// Unit tasks catch their own errors; anything else reaching
			// here still must not leave the job hanging.
			s.logger.Error().Err(execErr).Str("job_id", jobID).Msg("jobstore: batch failed outside item scope")
		}
		if err := s.mutate(ctx, jobID, func(job *domain.Job) {
			job.Status = domain.JobStatusError
			job.ErrorMessage = execErr.Error()
			job.FinishedAt = &finished
		}); err != nil {
			return err
		}
		s.scheduleEviction(jobID)
		return execErr
	}

	if err := s.mutate(ctx, jobID, func(job *domain.Job) {
		job.Snapshot = snapshot
		job.Status = domain.JobStatusDone
		job.FinishedAt = &finished
	}); err != nil {
		return err
	}
	s.scheduleEviction(jobID)
	return nil
}

// GetSnapshot returns the full current job state, resident jobs first,
// falling back to the database for evicted ones. The returned value is
// always a self-sufficient copy.
func (s *Store) GetSnapshot(ctx context.Context, jobID string) (*domain.Job, error) {
	s.mu.Lock()
	if t, ok := s.jobs[jobID]; ok {
		copied := cloneJob(t.job)
		s.mu.Unlock()
		return &copied, nil
	}
	s.mu.Unlock()
	return s.loadJob(ctx, jobID)
}

// Subscribe emits a snapshot for every observed version change and closes
// the stream after the first terminal snapshot. Slow consumers observe
// coalesced versions; every emitted snapshot is full and self-sufficient.
// The cancel func releases the subscription early.
func (s *Store) Subscribe(ctx context.Context, jobID string) (<-chan domain.Job, func(), error) {
	s.mu.Lock()
	_, resident := s.jobs[jobID]
	s.mu.Unlock()

	subCtx, cancel := context.WithCancel(ctx)
	ch := make(chan domain.Job, 1)

	if !resident {
		// Evicted jobs are terminal: emit their final snapshot and close.
		job, err := s.loadJob(ctx, jobID)
		if err != nil {
			cancel()
			return nil, nil, err
		}
		go func() {
			defer close(ch)
			select {
			case ch <- *job:
			case <-subCtx.Done():
			}
		}()
		return ch, cancel, nil
	}

	go func() {
		defer close(ch)
		lastVersion := int64(-1)
		for {
			s.mu.Lock()
			t, ok := s.jobs[jobID]
			if !ok {
				s.mu.Unlock()
				return
			}
			job := cloneJob(t.job)
			changed := t.changed
			s.mu.Unlock()

			if job.ProgressVersion > lastVersion {
				lastVersion = job.ProgressVersion
				select {
				case ch <- job:
				case <-subCtx.Done():
					return
				}
				if job.Status.Terminal() {
					return
				}
			}

			select {
			case <-changed:
			case <-subCtx.Done():
				return
			}
		}
	}()
	return ch, cancel, nil
}

// mutate applies fn to the resident job, bumps the version, persists the
// full snapshot and wakes subscribers. Only the single run that owns the
// job mutates it, so mutations for one job never interleave.
func (s *Store) mutate(ctx context.Context, jobID string, fn func(*domain.Job)) error {
	s.mu.Lock()
	t, ok := s.jobs[jobID]
	if !ok {
		s.mu.Unlock()
		return domain.ErrNotFound
	}
	fn(&t.job)
	t.job.ProgressVersion++
	job := cloneJob(t.job)
	close(t.changed)
	t.changed = make(chan struct{})
	s.mu.Unlock()

	return s.persist(ctx, job)
}

func (s *Store) persist(ctx context.Context, job domain.Job) error {
	snapshotJSON, err := json.Marshal(job.Snapshot)
	if err != nil {
		return fmt.Errorf("jobstore: encode snapshot: %w", err)
	}
	if _, err := s.sql.Exec(ctx, sqlinline.QUpdateJobProgress,
		job.ID, string(job.Status), snapshotJSON, job.ProgressVersion, job.ErrorMessage, job.StartedAt, job.FinishedAt); err != nil {
		return fmt.Errorf("jobstore: persist job: %w", err)
	}
	return nil
}

func (s *Store) loadJob(ctx context.Context, jobID string) (*domain.Job, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectJobByID, jobID)
	var (
		job          domain.Job
		snapshotJSON []byte
	)
	if err := row.Scan(
		&job.ID,
		&job.StoryID,
		&job.Type,
		&job.Status,
		&snapshotJSON,
		&job.ProgressVersion,
		&job.ErrorMessage,
		&job.CreatedAt,
		&job.StartedAt,
		&job.FinishedAt,
	); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if len(snapshotJSON) > 0 {
		if err := json.Unmarshal(snapshotJSON, &job.Snapshot); err != nil {
			return nil, fmt.Errorf("jobstore: decode snapshot: %w", err)
		}
	}
	return &job, nil
}

func (s *Store) scheduleEviction(jobID string) {
	time.AfterFunc(s.retention, func() {
		s.mu.Lock()
		delete(s.jobs, jobID)
		s.mu.Unlock()
	})
}

func cloneJob(job domain.Job) domain.Job {
	copied := job
	copied.Snapshot.Items = append([]domain.ItemResult(nil), job.Snapshot.Items...)
	return copied
}
