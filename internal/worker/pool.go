package worker

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

type JobProcessor interface {
	Process(ctx context.Context, id uuid.UUID) error
}

// Pool runs one goroutine per dispatched job. At most `workers` of them talk
// to the optimizer at once; the rest wait while their job stays pending.
type Pool struct {
	ctx       context.Context
	processor JobProcessor
	sem       *semaphore.Weighted
	workers   int
	wg        sync.WaitGroup
	log       zerolog.Logger
}

func NewPool(ctx context.Context, processor JobProcessor, workers int, logger zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = 4
	}
	return &Pool{
		ctx:       ctx,
		processor: processor,
		sem:       semaphore.NewWeighted(int64(workers)),
		workers:   workers,
		log:       logger.With().Str("component", "pool").Logger(),
	}
}

// Dispatch never blocks the caller.
func (p *Pool) Dispatch(jobID uuid.UUID) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		err := p.ctx.Err()
		if err == nil {
			err = p.sem.Acquire(p.ctx, 1)
		}
		if err != nil {
			// shutting down; the job stays pending
			p.log.Warn().Str("job_id", jobID.String()).Err(err).Msg("job not started")
			return
		}
		defer p.sem.Release(1)

		if err := p.processor.Process(p.ctx, jobID); err != nil {
			p.log.Error().Str("job_id", jobID.String()).Err(err).Msg("process job error")
		}
	}()
}

// Wait blocks until every dispatched job has returned. Cancel the pool's
// context first to stop waiting jobs from starting.
func (p *Pool) Wait() {
	p.wg.Wait()
	p.log.Info().Int("workers", p.workers).Msg("worker pool stopped")
}
