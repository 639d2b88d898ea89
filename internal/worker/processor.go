package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"optimization-service/internal/entity"
	"optimization-service/internal/optimizer"
	"optimization-service/internal/service"
)

// Checkpoints. The optimizer reports nothing until it exits, so progress is
// a fixed ladder rather than a measurement.
const (
	StagePreparing  = "preparing"
	StageExecuting  = "executing"
	StageFinalizing = "finalizing"
	StageDone       = "done"

	ProgressPreparing  = 10
	ProgressExecuting  = 30
	ProgressFinalizing = 80
)

type JobRepo interface {
	Get(ctx context.Context, id uuid.UUID) (entity.Job, error)
	Mutate(ctx context.Context, id uuid.UUID, fn func(*entity.Job) error) error
}

// Optimizer is everything the processor needs from the external tool.
type Optimizer interface {
	Run(ctx context.Context, req entity.OptimizationRequest) (optimizer.Output, error)
	ParseResult(raw string) (entity.OptimizationResult, optimizer.ParseInfo)
}

var (
	errNotPending = errors.New("job is not pending")
	errNotRunning = errors.New("job is no longer running")
)

type Processor struct {
	repo   JobRepo
	opt    Optimizer
	events service.EventPublisher
	now    func() time.Time
	log    zerolog.Logger
}

func NewProcessor(repo JobRepo, opt Optimizer, events service.EventPublisher, logger zerolog.Logger) *Processor {
	if events == nil {
		events = service.NopEventPublisher{}
	}
	return &Processor{
		repo:   repo,
		opt:    opt,
		events: events,
		now:    func() time.Time { return time.Now().UTC() },
		log:    logger.With().Str("component", "worker").Logger(),
	}
}

// Process drives one job from pending to a terminal status. Every write after
// the start is conditional on the job still running, so a concurrent cancel
// always wins.
func (p *Processor) Process(ctx context.Context, id uuid.UUID) (err error) {
	start := time.Now()
	lg := p.log.With().Str("job_id", id.String()).Logger()

	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprintf("executor panic: %v", r)
			lg.Error().Str("panic", fmt.Sprint(r)).Msg("job status=failed")
			_ = p.fail(ctx, id, msg)
			err = errors.New(msg)
		}
	}()

	job, err := p.mutate(ctx, id, func(j *entity.Job, now time.Time) error {
		if j.Status != entity.StatusPending {
			return errNotPending
		}
		if err := j.Transition(entity.StatusRunning, now); err != nil {
			return err
		}
		j.CurrentStage = StagePreparing
		j.SetProgress(ProgressPreparing)
		j.AppendLog(now, "starting optimization job")
		return nil
	})
	if err != nil {
		return p.stopped(lg, err)
	}
	p.publish(ctx, service.EventStarted, job)
	lg.Info().Str("status", string(entity.StatusRunning)).Msg("job processing")

	job, err = p.checkpoint(ctx, id, StageExecuting, ProgressExecuting, "invoking external optimizer")
	if err != nil {
		return p.stopped(lg, err)
	}

	out, runErr := p.opt.Run(ctx, job.Request)
	if runErr != nil {
		msg := runErr.Error()
		if err := p.fail(ctx, id, msg); err != nil {
			return p.stopped(lg, err)
		}
		lg.Warn().Str("status", string(entity.StatusFailed)).
			Int64("duration_ms", time.Since(start).Milliseconds()).Str("error", msg).Msg("job finished")
		return runErr
	}

	res, info := p.opt.ParseResult(out.Stdout)
	notes := []string{"optimizer finished, processing result"}
	if info.Fallback() {
		notes = append(notes, "output was not structured, used lenient extraction")
	}
	if len(info.Defaulted) > 0 {
		notes = append(notes, "fields defaulted to 0: "+strings.Join(info.Defaulted, ", "))
	}
	if _, err = p.checkpoint(ctx, id, StageFinalizing, ProgressFinalizing, notes...); err != nil {
		return p.stopped(lg, err)
	}

	job, err = p.mutate(ctx, id, func(j *entity.Job, now time.Time) error {
		if j.Status != entity.StatusRunning {
			return errNotRunning
		}
		if err := j.Transition(entity.StatusCompleted, now); err != nil {
			return err
		}
		r := res
		j.Result = &r
		j.CurrentStage = StageDone
		j.AppendLog(now, "optimization job completed")
		return nil
	})
	if err != nil {
		return p.stopped(lg, err)
	}
	p.publish(ctx, service.EventTypeFor(job.Status), job)

	lg.Info().Str("status", string(entity.StatusCompleted)).
		Int64("duration_ms", time.Since(start).Milliseconds()).Msg("job finished")
	return nil
}

// mutate wraps repo.Mutate and returns the committed state.
func (p *Processor) mutate(ctx context.Context, id uuid.UUID, fn func(*entity.Job, time.Time) error) (entity.Job, error) {
	var out entity.Job
	err := p.repo.Mutate(ctx, id, func(j *entity.Job) error {
		if err := fn(j, p.now()); err != nil {
			return err
		}
		out = j.Clone()
		return nil
	})
	return out, err
}

func (p *Processor) checkpoint(ctx context.Context, id uuid.UUID, stage string, progress int, msgs ...string) (entity.Job, error) {
	job, err := p.mutate(ctx, id, func(j *entity.Job, now time.Time) error {
		if j.Status != entity.StatusRunning {
			return errNotRunning
		}
		j.CurrentStage = stage
		j.SetProgress(progress)
		for _, m := range msgs {
			j.AppendLog(now, m)
		}
		return nil
	})
	if err == nil {
		p.publish(ctx, service.EventProgress, job)
	}
	return job, err
}

// fail moves a non-terminal job to failed, passing through running when the
// job never started.
func (p *Processor) fail(ctx context.Context, id uuid.UUID, msg string) error {
	job, err := p.mutate(ctx, id, func(j *entity.Job, now time.Time) error {
		if j.Status == entity.StatusPending {
			if err := j.Transition(entity.StatusRunning, now); err != nil {
				return err
			}
			j.AppendLog(now, "starting optimization job")
		}
		if j.Status != entity.StatusRunning {
			return errNotRunning
		}
		if err := j.Transition(entity.StatusFailed, now); err != nil {
			return err
		}
		j.AppendLog(now, "execution failed: "+msg)
		return nil
	})
	if err != nil {
		return err
	}
	p.publish(ctx, service.EventTypeFor(job.Status), job)
	return nil
}

// stopped handles a guard refusing a write: the job was cancelled or removed
// meanwhile, which is not an executor error.
func (p *Processor) stopped(lg zerolog.Logger, err error) error {
	switch {
	case errors.Is(err, errNotRunning), errors.Is(err, errNotPending):
		lg.Info().Msg("job no longer active, outcome discarded")
		return nil
	case errors.Is(err, entity.ErrJobNotFound):
		lg.Info().Msg("job removed while processing")
		return nil
	default:
		return err
	}
}

func (p *Processor) publish(ctx context.Context, typ service.EventType, j entity.Job) {
	if err := p.events.Publish(ctx, service.NewJobEvent(typ, j, p.now())); err != nil {
		p.log.Warn().Err(err).Str("job_id", j.ID.String()).Str("event", string(typ)).Msg("publish event failed")
	}
}
