package httptransport

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"optimization-service/internal/entity"
	"optimization-service/internal/service"
)

const (
	defaultSimilarityThreshold = 0.7
	defaultCleanupMaxAgeDays   = 7
)

type Handler struct {
	jobSvc *service.JobService
}

func NewHandler(jobSvc *service.JobService) *Handler {
	return &Handler{jobSvc: jobSvc}
}

type optimizationDTO struct {
	MemoryType          string   `json:"memory_type,omitempty"`
	UserID              string   `json:"user_id,omitempty"`
	AgentID             string   `json:"agent_id,omitempty"`
	RunID               string   `json:"run_id,omitempty"`
	ActorID             string   `json:"actor_id,omitempty"`
	SimilarityThreshold *float64 `json:"similarity_threshold,omitempty"` // nil => 0.7
	DryRun              bool     `json:"dry_run,omitempty"`
	Verbose             bool     `json:"verbose,omitempty"`
}

func (d optimizationDTO) toRequest() (entity.OptimizationRequest, error) {
	threshold := defaultSimilarityThreshold
	if d.SimilarityThreshold != nil {
		threshold = *d.SimilarityThreshold
	}
	if threshold < 0 || threshold > 1 {
		return entity.OptimizationRequest{}, errors.New("similarity_threshold must be between 0 and 1")
	}
	return entity.OptimizationRequest{
		MemoryType:          d.MemoryType,
		UserID:              d.UserID,
		AgentID:             d.AgentID,
		RunID:               d.RunID,
		ActorID:             d.ActorID,
		SimilarityThreshold: threshold,
		DryRun:              d.DryRun,
		Verbose:             d.Verbose,
	}, nil
}

type createJobResp struct {
	JobID     string           `json:"job_id"`
	Status    entity.JobStatus `json:"status"`
	Message   string           `json:"message"`
	StartTime string           `json:"start_time"`
}

type logResp struct {
	Time    string `json:"time"`
	Message string `json:"message"`
}

type jobResp struct {
	JobID        string                     `json:"job_id"`
	Status       entity.JobStatus           `json:"status"`
	Progress     int                        `json:"progress"`
	CurrentStage string                     `json:"current_stage,omitempty"`
	Logs         []logResp                  `json:"logs"`
	Result       *entity.OptimizationResult `json:"result,omitempty"`
	Request      entity.OptimizationRequest `json:"request"`
	StartTime    string                     `json:"start_time"`
	EndTime      *string                    `json:"end_time,omitempty"`
	DurationMS   *int64                     `json:"duration,omitempty"`
}

type cancelResp struct {
	JobID       string           `json:"job_id"`
	Status      entity.JobStatus `json:"status"`
	Message     string           `json:"message"`
	CancelledAt string           `json:"cancelled_at"`
}

type historyItem struct {
	JobID      string           `json:"job_id"`
	Status     entity.JobStatus `json:"status"`
	StartTime  string           `json:"start_time"`
	EndTime    *string          `json:"end_time,omitempty"`
	DurationMS *int64           `json:"duration,omitempty"`
	LogsCount  int              `json:"logs_count"`
	HasResult  bool             `json:"has_result"`
}

type pagination struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Total  int `json:"total"`
}

type historyResp struct {
	Total      int           `json:"total"`
	History    []historyItem `json:"history"`
	Pagination pagination    `json:"pagination"`
}

type statisticsResp struct {
	TotalJobs                 int                      `json:"total_jobs"`
	SuccessfulJobs            int                      `json:"successful_jobs"`
	FailedJobs                int                      `json:"failed_jobs"`
	CancelledJobs             int                      `json:"cancelled_jobs"`
	ByStatus                  map[entity.JobStatus]int `json:"by_status"`
	TotalMemoriesProcessed    float64                  `json:"total_memories_processed"`
	TotalMemoriesDeduplicated float64                  `json:"total_memories_deduplicated"`
	TotalMemoriesMerged       float64                  `json:"total_memories_merged"`
	TotalMemoriesEnhanced     float64                  `json:"total_memories_enhanced"`
	TotalErrors               float64                  `json:"total_errors"`
	TotalSpaceSavedMB         float64                  `json:"total_space_saved_mb"`
	TotalOptimizerSeconds     float64                  `json:"total_optimizer_seconds"`
	AvgDurationMS             float64                  `json:"avg_duration"`
	LastRun                   *string                  `json:"last_run"`
}

type cleanupDTO struct {
	MaxAgeDays *float64 `json:"max_age_days,omitempty"` // nil => 7
}

type cleanupResp struct {
	Deleted   int    `json:"deleted"`
	Remaining int    `json:"remaining"`
	Message   string `json:"message"`
}

type eventsResp struct {
	Events []service.JobEvent `json:"events"`
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func durationMS(d *time.Duration) *int64 {
	if d == nil {
		return nil
	}
	ms := d.Milliseconds()
	return &ms
}

func toJobResp(j entity.Job) jobResp {
	resp := jobResp{
		JobID:        j.ID.String(),
		Status:       j.Status,
		Progress:     j.Progress,
		CurrentStage: j.CurrentStage,
		Logs:         make([]logResp, 0, len(j.Logs)),
		Result:       j.Result,
		Request:      j.Request,
		StartTime:    formatTime(j.StartTime),
		EndTime:      formatTimePtr(j.EndTime),
		DurationMS:   durationMS(j.Duration),
	}
	for _, l := range j.Logs {
		resp.Logs = append(resp.Logs, logResp{Time: formatTime(l.Time), Message: l.Message})
	}
	return resp
}

func parseJobID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, http.StatusBadRequest, "INVALID_ID", "invalid job id")
		return uuid.Nil, false
	}
	return id, true
}

// parseDate accepts RFC3339 or a bare date. A bare end date covers the whole day.
func parseDate(s string, end bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err == nil && end {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, err
}

// CreateJob godoc
// @Summary Start an optimization job
// @Description Registers the job (pending) and runs the optimizer in the background. Poll GET /api/optimization/{id} for progress.
// @Tags optimization
// @Accept json
// @Produce json
// @Param request body optimizationDTO true "optimizer parameters (similarity_threshold defaults to 0.7)"
// @Success 202 {object} createJobResp
// @Failure 400 {object} apiError
// @Router /api/optimization [post]
func (h *Handler) CreateJob(w http.ResponseWriter, r *http.Request) {
	var dto optimizationDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeErr(w, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	req, err := dto.toRequest()
	if err != nil {
		writeErr(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	id := h.jobSvc.CreateJob(r.Context(), req)

	resp := createJobResp{JobID: id.String(), Status: entity.StatusPending, Message: "optimization job started"}
	if j, err := h.jobSvc.GetJob(r.Context(), id); err == nil {
		resp.Status = j.Status
		resp.StartTime = formatTime(j.StartTime)
	}
	writeJSON(w, http.StatusAccepted, resp)
}

// GetJob godoc
// @Summary Get optimization job status
// @Tags optimization
// @Produce json
// @Param id path string true "job id (uuid)"
// @Success 200 {object} jobResp
// @Failure 400 {object} apiError
// @Failure 404 {object} apiError
// @Router /api/optimization/{id} [get]
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	id, ok := parseJobID(w, r)
	if !ok {
		return
	}
	j, err := h.jobSvc.GetJob(r.Context(), id)
	if err != nil {
		writeErr(w, http.StatusNotFound, "JOB_NOT_FOUND", fmt.Sprintf("optimization job %s not found", id))
		return
	}
	writeJSON(w, http.StatusOK, toJobResp(j))
}

// CancelJob godoc
// @Summary Cancel an optimization job
// @Description Marks the job cancelled. An optimizer process that already started is not interrupted; its outcome is discarded.
// @Tags optimization
// @Produce json
// @Param id path string true "job id (uuid)"
// @Success 200 {object} cancelResp
// @Failure 400 {object} apiError
// @Failure 404 {object} apiError
// @Failure 409 {object} apiError
// @Router /api/optimization/{id}/cancel [post]
func (h *Handler) CancelJob(w http.ResponseWriter, r *http.Request) {
	id, ok := parseJobID(w, r)
	if !ok {
		return
	}
	j, err := h.jobSvc.CancelJob(r.Context(), id)
	switch {
	case errors.Is(err, entity.ErrJobNotFound):
		writeErr(w, http.StatusNotFound, "JOB_NOT_FOUND", fmt.Sprintf("optimization job %s not found", id))
		return
	case errors.Is(err, entity.ErrAlreadyTerminal):
		writeErr(w, http.StatusConflict, "JOB_COMPLETED", fmt.Sprintf("optimization job %s already finished", id))
		return
	case err != nil:
		writeErr(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}

	resp := cancelResp{JobID: id.String(), Status: j.Status, Message: "optimization job cancelled"}
	if j.EndTime != nil {
		resp.CancelledAt = formatTime(*j.EndTime)
	}
	writeJSON(w, http.StatusOK, resp)
}

// History godoc
// @Summary List optimization jobs
// @Description Newest first. Dates accept RFC3339 or YYYY-MM-DD and bound the job start time inclusively.
// @Tags optimization
// @Produce json
// @Param status query string false "pending|running|completed|failed|cancelled"
// @Param start_date query string false "lower bound of start time"
// @Param end_date query string false "upper bound of start time"
// @Param limit query int false "page size (default 20, max 100)"
// @Param offset query int false "page offset"
// @Success 200 {object} historyResp
// @Failure 400 {object} apiError
// @Router /api/optimization/history [get]
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f service.HistoryFilter

	if s := q.Get("status"); s != "" {
		st := entity.JobStatus(s)
		if !st.Valid() {
			writeErr(w, http.StatusBadRequest, "INVALID_QUERY", "unknown status "+s)
			return
		}
		f.Status = st
	}
	for _, p := range []struct {
		name string
		dst  **time.Time
		end  bool
	}{{"start_date", &f.StartDate, false}, {"end_date", &f.EndDate, true}} {
		s := q.Get(p.name)
		if s == "" {
			continue
		}
		t, err := parseDate(s, p.end)
		if err != nil {
			writeErr(w, http.StatusBadRequest, "INVALID_QUERY", "invalid "+p.name)
			return
		}
		*p.dst = &t
	}
	for _, p := range []struct {
		name string
		dst  *int
	}{{"limit", &f.Limit}, {"offset", &f.Offset}} {
		s := q.Get(p.name)
		if s == "" {
			continue
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			writeErr(w, http.StatusBadRequest, "INVALID_QUERY", "invalid "+p.name)
			return
		}
		*p.dst = n
	}

	page := h.jobSvc.History(r.Context(), f)
	resp := historyResp{
		Total:      page.Total,
		History:    make([]historyItem, 0, len(page.Jobs)),
		Pagination: pagination{Limit: page.Limit, Offset: page.Offset, Total: page.Total},
	}
	for _, j := range page.Jobs {
		resp.History = append(resp.History, historyItem{
			JobID:      j.ID.String(),
			Status:     j.Status,
			StartTime:  formatTime(j.StartTime),
			EndTime:    formatTimePtr(j.EndTime),
			DurationMS: durationMS(j.Duration),
			LogsCount:  len(j.Logs),
			HasResult:  j.Result != nil,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// Statistics godoc
// @Summary Aggregate optimization statistics
// @Tags optimization
// @Produce json
// @Success 200 {object} statisticsResp
// @Router /api/optimization/statistics [get]
func (h *Handler) Statistics(w http.ResponseWriter, r *http.Request) {
	st := h.jobSvc.Statistics(r.Context())
	writeJSON(w, http.StatusOK, statisticsResp{
		TotalJobs:                 st.TotalJobs,
		SuccessfulJobs:            st.Successful,
		FailedJobs:                st.Failed,
		CancelledJobs:             st.Cancelled,
		ByStatus:                  st.ByStatus,
		TotalMemoriesProcessed:    st.Totals.MemoriesAffected,
		TotalMemoriesDeduplicated: st.Totals.Deduplicated,
		TotalMemoriesMerged:       st.Totals.Merged,
		TotalMemoriesEnhanced:     st.Totals.Enhanced,
		TotalErrors:               st.Totals.Errors,
		TotalSpaceSavedMB:         st.Totals.SpaceSavedMB,
		TotalOptimizerSeconds:     st.Totals.DurationSeconds,
		AvgDurationMS:             float64(st.AvgDuration) / float64(time.Millisecond),
		LastRun:                   formatTimePtr(st.LastRun),
	})
}

// Analyze godoc
// @Summary Preview optimization issues
// @Description Runs the optimizer synchronously in dry-run mode and reports what it would change.
// @Tags optimization
// @Accept json
// @Produce json
// @Param request body optimizationDTO true "optimizer parameters (dry_run and verbose are forced)"
// @Success 200 {object} entity.Analysis
// @Failure 400 {object} apiError
// @Failure 502 {object} apiError
// @Router /api/optimization/analyze [post]
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	var dto optimizationDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeErr(w, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	req, err := dto.toRequest()
	if err != nil {
		writeErr(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	a, err := h.jobSvc.Analyze(r.Context(), req)
	if err != nil {
		writeErr(w, http.StatusBadGateway, "ANALYSIS_FAILED", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// Cleanup godoc
// @Summary Remove old optimization jobs
// @Description Deletes every job created more than max_age_days ago, whatever its status.
// @Tags optimization
// @Accept json
// @Produce json
// @Param request body cleanupDTO false "max_age_days defaults to 7"
// @Success 200 {object} cleanupResp
// @Failure 400 {object} apiError
// @Router /api/optimization/cleanup [post]
func (h *Handler) Cleanup(w http.ResponseWriter, r *http.Request) {
	var dto cleanupDTO
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
			writeErr(w, http.StatusBadRequest, "INVALID_JSON", "invalid json")
			return
		}
	}
	days := float64(defaultCleanupMaxAgeDays)
	if dto.MaxAgeDays != nil {
		days = *dto.MaxAgeDays
	}
	if days < 0 {
		writeErr(w, http.StatusBadRequest, "INVALID_REQUEST", "max_age_days must not be negative")
		return
	}

	res := h.jobSvc.Cleanup(r.Context(), time.Duration(days*float64(24*time.Hour)))
	writeJSON(w, http.StatusOK, cleanupResp{
		Deleted:   res.Deleted,
		Remaining: res.Remaining,
		Message:   fmt.Sprintf("removed %d old jobs", res.Deleted),
	})
}

// Events godoc
// @Summary Recent job lifecycle events
// @Description Empty unless an event store (Redis) is configured.
// @Tags optimization
// @Produce json
// @Param limit query int false "number of events (default 50)"
// @Success 200 {object} eventsResp
// @Failure 500 {object} apiError
// @Router /api/optimization/events [get]
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	n := int64(50)
	if s := r.URL.Query().Get("limit"); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil || v <= 0 {
			writeErr(w, http.StatusBadRequest, "INVALID_QUERY", "invalid limit")
			return
		}
		n = v
	}
	evs, err := h.jobSvc.RecentEvents(r.Context(), n)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, eventsResp{Events: evs})
}
