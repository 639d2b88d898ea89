package entity

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
	StatusCancelled JobStatus = "cancelled"
)

// IsTerminal reports whether no further transitions are allowed.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

func (s JobStatus) Valid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

var transitions = map[JobStatus][]JobStatus{
	StatusPending: {StatusRunning, StatusCancelled},
	StatusRunning: {StatusCompleted, StatusFailed, StatusCancelled},
}

// CanTransition reports whether from -> to is an allowed edge of the job lifecycle.
func CanTransition(from, to JobStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// OptimizationRequest is the parameter set of one optimizer run. It is never
// modified after the job is created.
type OptimizationRequest struct {
	MemoryType          string  `json:"memory_type,omitempty"`
	UserID              string  `json:"user_id,omitempty"`
	AgentID             string  `json:"agent_id,omitempty"`
	RunID               string  `json:"run_id,omitempty"`
	ActorID             string  `json:"actor_id,omitempty"`
	SimilarityThreshold float64 `json:"similarity_threshold,omitempty"`
	DryRun              bool    `json:"dry_run"`
	Verbose             bool    `json:"verbose"`
}

type OptimizationResult struct {
	MemoriesAffected float64 `json:"memories_affected"`
	Deduplicated     float64 `json:"deduplicated"`
	Merged           float64 `json:"merged"`
	Enhanced         float64 `json:"enhanced"`
	Errors           float64 `json:"errors"`
	SpaceSavedMB     float64 `json:"space_saved_mb"`
	DurationSeconds  float64 `json:"duration_seconds"`
}

type LogEntry struct {
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
}

type Job struct {
	ID           uuid.UUID           `json:"id"`
	Status       JobStatus           `json:"status"`
	Progress     int                 `json:"progress"`
	CurrentStage string              `json:"current_stage,omitempty"`
	Logs         []LogEntry          `json:"logs"`
	Result       *OptimizationResult `json:"result,omitempty"`
	Request      OptimizationRequest `json:"request"`
	CreatedAt    time.Time           `json:"created_at"`
	StartTime    time.Time           `json:"start_time"`
	EndTime      *time.Time          `json:"end_time,omitempty"`
	Duration     *time.Duration      `json:"duration,omitempty"`
}

// Clone returns a deep copy so that callers never share slices or pointers
// with the stored record.
func (j Job) Clone() Job {
	out := j
	if j.Logs != nil {
		out.Logs = make([]LogEntry, len(j.Logs))
		copy(out.Logs, j.Logs)
	}
	if j.Result != nil {
		r := *j.Result
		out.Result = &r
	}
	if j.EndTime != nil {
		t := *j.EndTime
		out.EndTime = &t
	}
	if j.Duration != nil {
		d := *j.Duration
		out.Duration = &d
	}
	return out
}

func (j *Job) AppendLog(at time.Time, msg string) {
	j.Logs = append(j.Logs, LogEntry{Time: at, Message: msg})
}

// SetProgress moves progress forward only. 100 is reserved for completion.
func (j *Job) SetProgress(p int) {
	if p > 99 {
		p = 99
	}
	if p > j.Progress {
		j.Progress = p
	}
}

// Transition moves the job to status `to`, stamping end time and duration
// when the new status is terminal.
func (j *Job) Transition(to JobStatus, at time.Time) error {
	if !CanTransition(j.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, to)
	}
	j.Status = to
	if to == StatusCompleted {
		j.Progress = 100
	}
	if to.IsTerminal() {
		end := at
		d := end.Sub(j.StartTime)
		j.EndTime = &end
		j.Duration = &d
	}
	return nil
}
