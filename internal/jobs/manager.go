// Package jobs runs uploaded ledgers through the analysis engine in the
// background and keeps the registry of their outcomes.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/abhinav-singh-5383/rift-money-mulling/internal/common"
	"github.com/abhinav-singh-5383/rift-money-mulling/internal/ledger"
	"github.com/abhinav-singh-5383/rift-money-mulling/pkg/models"
)

// Job Lifecycle
//
//   processing → done   result stored, cache updated
//   processing → error  error_detail set
//
// Each job moves out of processing exactly once and never again. Jobs run
// on a context detached from the submitting request and are not cancelled.
// Nothing bounds how many run at once.

// Analyzer is the pipeline a job runs.
type Analyzer interface {
	Analyze(ctx context.Context, set ledger.Set) (*models.AnalysisResult, error)
}

type entry struct {
	job  models.Job
	done chan struct{}
}

// Manager is the in-memory job registry. Entries live for the lifetime of
// the process.
type Manager struct {
	analyzer Analyzer
	cache    *Cache
	logger   zerolog.Logger

	mu        sync.RWMutex
	jobs      map[string]*entry
	observers []func(models.Job)
}

// NewManager creates a manager whose successful jobs update cache.
func NewManager(analyzer Analyzer, cache *Cache) *Manager {
	return &Manager{
		analyzer: analyzer,
		cache:    cache,
		logger:   log.With().Str("component", "jobs").Logger(),
		jobs:     make(map[string]*entry),
	}
}

// OnFinish registers fn to receive every job once it reaches a terminal
// state. Observers run on the job goroutine, outside the registry lock.
func (m *Manager) OnFinish(fn func(models.Job)) {
	m.mu.Lock()
	m.observers = append(m.observers, fn)
	m.mu.Unlock()
}

// Submit registers a processing job for raw and starts it. The bytes are
// copied, so the caller may reuse its buffer.
func (m *Manager) Submit(raw []byte) string {
	id := uuid.New().String()
	input := make([]byte, len(raw))
	copy(input, raw)

	e := &entry{
		job: models.Job{
			JobID:     id,
			Status:    models.JobProcessing,
			CreatedAt: time.Now().UTC(),
		},
		done: make(chan struct{}),
	}

	m.mu.Lock()
	m.jobs[id] = e
	m.mu.Unlock()

	m.logger.Info().Str("job_id", id).Int("bytes", len(input)).Msg("job submitted")
	go m.run(id, input)
	return id
}

// Poll returns a snapshot of the job.
func (m *Manager) Poll(id string) (models.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.jobs[id]
	if !ok {
		return models.Job{}, common.NotFound("Job not found.")
	}
	return e.job, nil
}

// Wait blocks until the job is terminal or ctx is done.
func (m *Manager) Wait(ctx context.Context, id string) (models.Job, error) {
	m.mu.RLock()
	e, ok := m.jobs[id]
	m.mu.RUnlock()
	if !ok {
		return models.Job{}, common.NotFound("Job not found.")
	}

	select {
	case <-e.done:
		return m.Poll(id)
	case <-ctx.Done():
		return models.Job{}, ctx.Err()
	}
}

func (m *Manager) run(id string, raw []byte) {
	start := time.Now()
	result, err := m.analyze(raw)

	if err == nil {
		m.cache.Store(result)
	}
	job := m.finish(id, result, err)

	l := m.logger.With().Str("job_id", id).Dur("took", time.Since(start)).Logger()
	if err != nil {
		l.Warn().Err(err).Msg("job failed")
	} else {
		l.Info().
			Int("accounts", result.Summary.TotalAccountsAnalyzed).
			Int("rings", result.Summary.FraudRingsDetected).
			Msg("job done")
	}

	m.mu.RLock()
	observers := append([]func(models.Job){}, m.observers...)
	m.mu.RUnlock()
	for _, fn := range observers {
		fn(job)
	}
}

func (m *Manager) analyze(raw []byte) (result *models.AnalysisResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = common.Internal("Analysis failed", fmt.Errorf("panic: %v", r))
		}
	}()

	set, err := ledger.Parse(raw)
	if err != nil {
		return nil, err
	}
	result, err = m.analyzer.Analyze(context.Background(), set)
	var de *common.DetailError
	if err != nil && !errors.As(err, &de) {
		err = common.Internal("Analysis failed", err)
	}
	return result, err
}

func (m *Manager) finish(id string, result *models.AnalysisResult, err error) models.Job {
	now := time.Now().UTC()

	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.jobs[id]
	if e.job.Status.Terminal() {
		return e.job
	}

	if err != nil {
		e.job.Status = models.JobError
		e.job.ErrorDetail = common.Detail(err)
	} else {
		e.job.Status = models.JobDone
		e.job.Result = result
	}
	e.job.CompletedAt = &now
	close(e.done)
	return e.job
}
