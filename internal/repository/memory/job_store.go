package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"optimization-service/internal/entity"
)

// record pairs a job with its own lock so that mutations on one id are
// linearized while different ids proceed independently.
type record struct {
	mu      sync.Mutex
	job     entity.Job
	deleted bool
}

// JobStore is a volatile, process-local table of optimization jobs.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]*record
	now  func() time.Time
}

type Option func(*JobStore)

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(s *JobStore) { s.now = now }
}

func NewJobStore(opts ...Option) *JobStore {
	s := &JobStore{
		jobs: make(map[uuid.UUID]*record),
		now:  func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *JobStore) newID() uuid.UUID {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return id
}

func (s *JobStore) Create(_ context.Context, req entity.OptimizationRequest) uuid.UUID {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.newID()
	for {
		if _, taken := s.jobs[id]; !taken {
			break
		}
		id = s.newID()
	}

	job := entity.Job{
		ID:        id,
		Status:    entity.StatusPending,
		Progress:  0,
		Request:   req,
		CreatedAt: now,
		StartTime: now,
	}
	job.AppendLog(now, "optimization job "+id.String()+" created")

	s.jobs[id] = &record{job: job}
	return id
}

func (s *JobStore) lookup(id uuid.UUID) (*record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.jobs[id]
	return r, ok
}

func (s *JobStore) Get(_ context.Context, id uuid.UUID) (entity.Job, error) {
	r, ok := s.lookup(id)
	if !ok {
		return entity.Job{}, entity.ErrJobNotFound
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deleted {
		return entity.Job{}, entity.ErrJobNotFound
	}
	return r.job.Clone(), nil
}

// Mutate applies fn to a copy of the job and commits the copy only when fn
// returns nil. The error from fn is returned as is.
func (s *JobStore) Mutate(_ context.Context, id uuid.UUID, fn func(*entity.Job) error) error {
	r, ok := s.lookup(id)
	if !ok {
		return entity.ErrJobNotFound
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deleted {
		return entity.ErrJobNotFound
	}

	next := r.job.Clone()
	if err := fn(&next); err != nil {
		return err
	}
	// identity is not mutable
	next.ID = r.job.ID
	next.CreatedAt = r.job.CreatedAt
	next.Request = r.job.Request
	r.job = next
	return nil
}

func (s *JobStore) List(_ context.Context) []entity.Job {
	s.mu.RLock()
	recs := make([]*record, 0, len(s.jobs))
	for _, r := range s.jobs {
		recs = append(recs, r)
	}
	s.mu.RUnlock()

	out := make([]entity.Job, 0, len(recs))
	for _, r := range recs {
		r.mu.Lock()
		if !r.deleted {
			out = append(out, r.job.Clone())
		}
		r.mu.Unlock()
	}
	return out
}

func (s *JobStore) Delete(_ context.Context, id uuid.UUID) {
	s.mu.Lock()
	r, ok := s.jobs[id]
	delete(s.jobs, id)
	s.mu.Unlock()
	if !ok {
		return
	}
	r.mu.Lock()
	r.deleted = true
	r.mu.Unlock()
}

func (s *JobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}
