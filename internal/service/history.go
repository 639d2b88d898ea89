package service

import (
	"sort"
	"time"

	"optimization-service/internal/entity"
)

const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100
)

// HistoryFilter selects jobs for listing. Zero values disable a criterion.
type HistoryFilter struct {
	Status    entity.JobStatus
	StartDate *time.Time
	EndDate   *time.Time
	Limit     int
	Offset    int
}

type HistoryPage struct {
	Total  int
	Limit  int
	Offset int
	Jobs   []entity.Job
}

func (f HistoryFilter) normalized() HistoryFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultHistoryLimit
	}
	if f.Limit > MaxHistoryLimit {
		f.Limit = MaxHistoryLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

func (f HistoryFilter) match(j entity.Job) bool {
	if f.Status != "" && j.Status != f.Status {
		return false
	}
	if f.StartDate != nil && j.StartTime.Before(*f.StartDate) {
		return false
	}
	if f.EndDate != nil && j.StartTime.After(*f.EndDate) {
		return false
	}
	return true
}

// queryHistory filters, sorts newest first and paginates a snapshot.
func queryHistory(jobs []entity.Job, f HistoryFilter) HistoryPage {
	f = f.normalized()

	matched := make([]entity.Job, 0, len(jobs))
	for _, j := range jobs {
		if f.match(j) {
			matched = append(matched, j)
		}
	}
	sort.SliceStable(matched, func(a, b int) bool {
		if matched[a].StartTime.Equal(matched[b].StartTime) {
			// v7 ids are time ordered, keeps ties deterministic
			return matched[a].ID.String() > matched[b].ID.String()
		}
		return matched[a].StartTime.After(matched[b].StartTime)
	})

	page := HistoryPage{Total: len(matched), Limit: f.Limit, Offset: f.Offset, Jobs: []entity.Job{}}
	if f.Offset >= len(matched) {
		return page
	}
	end := f.Offset + f.Limit
	if end > len(matched) {
		end = len(matched)
	}
	page.Jobs = matched[f.Offset:end]
	return page
}

// Statistics aggregates over every job currently held.
type Statistics struct {
	TotalJobs  int
	ByStatus   map[entity.JobStatus]int
	Successful int
	Failed     int
	Cancelled  int
	// Totals sums every numeric result field across jobs.
	Totals        entity.OptimizationResult
	AvgDuration   time.Duration
	FinishedCount int
	LastRun       *time.Time
}

func computeStatistics(jobs []entity.Job) Statistics {
	st := Statistics{
		TotalJobs: len(jobs),
		ByStatus: map[entity.JobStatus]int{
			entity.StatusPending:   0,
			entity.StatusRunning:   0,
			entity.StatusCompleted: 0,
			entity.StatusFailed:    0,
			entity.StatusCancelled: 0,
		},
	}

	var total time.Duration
	for _, j := range jobs {
		st.ByStatus[j.Status]++

		if r := j.Result; r != nil {
			st.Totals.MemoriesAffected += r.MemoriesAffected
			st.Totals.Deduplicated += r.Deduplicated
			st.Totals.Merged += r.Merged
			st.Totals.Enhanced += r.Enhanced
			st.Totals.Errors += r.Errors
			st.Totals.SpaceSavedMB += r.SpaceSavedMB
			st.Totals.DurationSeconds += r.DurationSeconds
		}
		if j.Duration != nil {
			total += *j.Duration
			st.FinishedCount++
		}
		if st.LastRun == nil || j.StartTime.After(*st.LastRun) {
			t := j.StartTime
			st.LastRun = &t
		}
	}

	st.Successful = st.ByStatus[entity.StatusCompleted]
	st.Failed = st.ByStatus[entity.StatusFailed]
	st.Cancelled = st.ByStatus[entity.StatusCancelled]
	if st.FinishedCount > 0 {
		st.AvgDuration = total / time.Duration(st.FinishedCount)
	}
	return st
}
