package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"optimization-service/internal/entity"
)

// Repository port (implementation: memory.JobStore)
type JobRepository interface {
	Create(ctx context.Context, req entity.OptimizationRequest) uuid.UUID
	Get(ctx context.Context, id uuid.UUID) (entity.Job, error)
	Mutate(ctx context.Context, id uuid.UUID, fn func(*entity.Job) error) error
	List(ctx context.Context) []entity.Job
	Delete(ctx context.Context, id uuid.UUID)
}

// JobDispatcher starts a job's executor off the caller's path (implementation: worker.Pool).
type JobDispatcher interface {
	Dispatch(jobID uuid.UUID)
}

// Analyzer runs a synchronous dry run (implementation: optimizer.CLIAdapter).
type Analyzer interface {
	Analyze(ctx context.Context, req entity.OptimizationRequest) (entity.Analysis, error)
}

// EventReader is implemented by publishers that keep recent events.
type EventReader interface {
	Recent(ctx context.Context, n int64) ([]JobEvent, error)
}

type JobService struct {
	repo       JobRepository
	dispatcher JobDispatcher
	analyzer   Analyzer
	events     EventPublisher
	now        func() time.Time
	log        zerolog.Logger
}

type Option func(*JobService)

func WithEvents(p EventPublisher) Option {
	return func(s *JobService) {
		if p != nil {
			s.events = p
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *JobService) { s.log = l }
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(s *JobService) { s.now = now }
}

func NewJobService(repo JobRepository, dispatcher JobDispatcher, analyzer Analyzer, opts ...Option) *JobService {
	s := &JobService{
		repo:       repo,
		dispatcher: dispatcher,
		analyzer:   analyzer,
		events:     NopEventPublisher{},
		now:        func() time.Time { return time.Now().UTC() },
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *JobService) publish(ctx context.Context, typ EventType, j entity.Job) {
	if err := s.events.Publish(ctx, NewJobEvent(typ, j, s.now())); err != nil {
		s.log.Warn().Err(err).Str("job_id", j.ID.String()).Str("event", string(typ)).Msg("publish event failed")
	}
}

// CreateJob registers a pending job and hands it to the dispatcher. It returns
// as soon as the job is recorded; progress is observed by polling GetJob.
func (s *JobService) CreateJob(ctx context.Context, req entity.OptimizationRequest) uuid.UUID {
	id := s.repo.Create(ctx, req)
	s.log.Info().Str("job_id", id.String()).Bool("dry_run", req.DryRun).Msg("job created status=pending")

	if j, err := s.repo.Get(ctx, id); err == nil {
		s.publish(ctx, EventSubmitted, j)
	}
	s.dispatcher.Dispatch(id)
	return id
}

func (s *JobService) GetJob(ctx context.Context, id uuid.UUID) (entity.Job, error) {
	return s.repo.Get(ctx, id)
}

// CancelJob marks a pending or running job cancelled. The optimizer process,
// if already started, keeps running; its outcome is discarded.
func (s *JobService) CancelJob(ctx context.Context, id uuid.UUID) (entity.Job, error) {
	var out entity.Job
	err := s.repo.Mutate(ctx, id, func(j *entity.Job) error {
		if j.Status.IsTerminal() {
			return entity.ErrAlreadyTerminal
		}
		now := s.now()
		if err := j.Transition(entity.StatusCancelled, now); err != nil {
			return err
		}
		j.AppendLog(now, "optimization job cancelled by user")
		out = j.Clone()
		return nil
	})
	if err != nil {
		return entity.Job{}, err
	}

	s.log.Info().Str("job_id", id.String()).Msg("job cancelled status=cancelled")
	s.publish(ctx, EventTypeFor(out.Status), out)
	return out, nil
}

func (s *JobService) History(ctx context.Context, f HistoryFilter) HistoryPage {
	return queryHistory(s.repo.List(ctx), f)
}

func (s *JobService) Statistics(ctx context.Context) Statistics {
	return computeStatistics(s.repo.List(ctx))
}

type CleanupResult struct {
	Deleted   int
	Remaining int
}

// Cleanup evicts every job created at or before now-maxAge, whatever its status.
func (s *JobService) Cleanup(ctx context.Context, maxAge time.Duration) CleanupResult {
	if maxAge < 0 {
		maxAge = 0
	}
	cutoff := s.now().Add(-maxAge)

	var res CleanupResult
	for _, j := range s.repo.List(ctx) {
		if j.CreatedAt.After(cutoff) {
			continue
		}
		s.repo.Delete(ctx, j.ID)
		res.Deleted++
		s.publish(ctx, EventDeleted, j)
	}
	res.Remaining = len(s.repo.List(ctx))

	s.log.Info().Int("deleted", res.Deleted).Int("remaining", res.Remaining).
		Dur("max_age", maxAge).Msg("job cleanup")
	return res
}

func (s *JobService) Analyze(ctx context.Context, req entity.OptimizationRequest) (entity.Analysis, error) {
	if s.analyzer == nil {
		return entity.Analysis{}, errors.New("analyzer not configured")
	}
	a, err := s.analyzer.Analyze(ctx, req)
	if err != nil {
		s.log.Warn().Err(err).Msg("analysis failed")
		return entity.Analysis{}, fmt.Errorf("analysis failed: %w", err)
	}
	return a, nil
}

// RecentEvents returns the newest lifecycle events when the publisher keeps them.
func (s *JobService) RecentEvents(ctx context.Context, n int64) ([]JobEvent, error) {
	r, ok := s.events.(EventReader)
	if !ok {
		return []JobEvent{}, nil
	}
	evs, err := r.Recent(ctx, n)
	if err != nil {
		return nil, err
	}
	if evs == nil {
		evs = []JobEvent{}
	}
	return evs, nil
}
