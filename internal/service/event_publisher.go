package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"optimization-service/internal/entity"
)

type EventType string

const (
	EventSubmitted EventType = "job.submitted"
	EventStarted   EventType = "job.started"
	EventProgress  EventType = "job.progress"
	EventCompleted EventType = "job.completed"
	EventFailed    EventType = "job.failed"
	EventCancelled EventType = "job.cancelled"
	EventDeleted   EventType = "job.deleted"
)

// JobEvent is a lifecycle notification about one job.
type JobEvent struct {
	Type     EventType        `json:"type"`
	JobID    string           `json:"job_id"`
	Status   entity.JobStatus `json:"status"`
	Progress int              `json:"progress"`
	Stage    string           `json:"stage,omitempty"`
	Time     time.Time        `json:"time"`
}

func NewJobEvent(typ EventType, j entity.Job, at time.Time) JobEvent {
	return JobEvent{
		Type:     typ,
		JobID:    j.ID.String(),
		Status:   j.Status,
		Progress: j.Progress,
		Stage:    j.CurrentStage,
		Time:     at,
	}
}

// EventTypeFor maps a status onto the event announcing it.
func EventTypeFor(s entity.JobStatus) EventType {
	switch s {
	case entity.StatusRunning:
		return EventStarted
	case entity.StatusCompleted:
		return EventCompleted
	case entity.StatusFailed:
		return EventFailed
	case entity.StatusCancelled:
		return EventCancelled
	default:
		return EventSubmitted
	}
}

type EventPublisher interface {
	Publish(ctx context.Context, ev JobEvent) error
}

type NopEventPublisher struct{}

func (NopEventPublisher) Publish(context.Context, JobEvent) error { return nil }

// RedisEventPublisher fans job events out over Redis.
// Publish: PUBLISH channel <json>
// History: LPUSH eventsKey <json>; LTRIM eventsKey 0 maxEvents-1
type RedisEventPublisher struct {
	rdb       *redis.Client
	channel   string
	eventsKey string
	maxEvents int64
}

func NewRedisEventPublisher(rdb *redis.Client, channel, eventsKey string, maxEvents int64) *RedisEventPublisher {
	if maxEvents <= 0 {
		maxEvents = 1000
	}
	return &RedisEventPublisher{
		rdb:       rdb,
		channel:   channel,
		eventsKey: eventsKey,
		maxEvents: maxEvents,
	}
}

func (p *RedisEventPublisher) Publish(ctx context.Context, ev JobEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	pipe := p.rdb.TxPipeline()
	pipe.Publish(ctx, p.channel, payload)
	if p.eventsKey != "" {
		pipe.LPush(ctx, p.eventsKey, payload)
		pipe.LTrim(ctx, p.eventsKey, 0, p.maxEvents-1)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// Recent returns up to n of the newest events, newest first.
func (p *RedisEventPublisher) Recent(ctx context.Context, n int64) ([]JobEvent, error) {
	if p.eventsKey == "" || n <= 0 {
		return nil, nil
	}
	raw, err := p.rdb.LRange(ctx, p.eventsKey, 0, n-1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]JobEvent, 0, len(raw))
	for _, s := range raw {
		var ev JobEvent
		if err := json.Unmarshal([]byte(s), &ev); err != nil {
			// foreign payloads on the key are skipped
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}
