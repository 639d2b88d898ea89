package httptransport_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optimization-service/internal/entity"
	"optimization-service/internal/repository/memory"
	"optimization-service/internal/service"
	httptransport "optimization-service/internal/transport/http"
)

// ---- fakes ----

type dispatchStub struct {
	ids []uuid.UUID
}

func (d *dispatchStub) Dispatch(id uuid.UUID) { d.ids = append(d.ids, id) }

type analyzerStub struct {
	got      entity.OptimizationRequest
	analysis entity.Analysis
	err      error
}

func (a *analyzerStub) Analyze(_ context.Context, req entity.OptimizationRequest) (entity.Analysis, error) {
	a.got = req
	return a.analysis, a.err
}

// ---- helpers ----

type testEnv struct {
	router   http.Handler
	store    *memory.JobStore
	dispatch *dispatchStub
	analyzer *analyzerStub
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := memory.NewJobStore()
	disp := &dispatchStub{}
	an := &analyzerStub{}
	svc := service.NewJobService(store, disp, an)
	h := httptransport.NewHandler(svc)
	return &testEnv{
		router:   httptransport.Routes(h, zerolog.Nop()),
		store:    store,
		dispatch: disp,
		analyzer: an,
	}
}

func (e *testEnv) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var got map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got), "body=%s", rr.Body.String())
	return got
}

func (e *testEnv) complete(t *testing.T, id uuid.UUID, res *entity.OptimizationResult) {
	t.Helper()
	require.NoError(t, e.store.Mutate(context.Background(), id, func(j *entity.Job) error {
		if err := j.Transition(entity.StatusRunning, j.StartTime); err != nil {
			return err
		}
		j.Result = res
		return j.Transition(entity.StatusCompleted, j.StartTime.Add(2*time.Second))
	}))
}

// ---- tests ----

func TestHTTP_CreateJob_202_AndDefaultThreshold(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(http.MethodPost, "/api/optimization", `{"memory_type":"conversational","dry_run":true}`)
	require.Equal(t, http.StatusAccepted, rr.Code, "body=%s", rr.Body.String())

	got := decode(t, rr)
	id, err := uuid.Parse(got["job_id"].(string))
	require.NoError(t, err)
	assert.Equal(t, "pending", got["status"])
	assert.NotEmpty(t, got["start_time"])
	require.Equal(t, []uuid.UUID{id}, env.dispatch.ids)

	j, err := env.store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 0.7, j.Request.SimilarityThreshold)
	assert.Equal(t, "conversational", j.Request.MemoryType)
	assert.True(t, j.Request.DryRun)
}

func TestHTTP_CreateJob_RejectsBadInput(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(http.MethodPost, "/api/optimization", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "INVALID_JSON", decode(t, rr)["code"])

	rr = env.do(http.MethodPost, "/api/optimization", `{"similarity_threshold":1.5}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	assert.Empty(t, env.dispatch.ids)
	assert.Equal(t, 0, env.store.Len())
}

func TestHTTP_GetJob(t *testing.T) {
	env := newTestEnv(t)
	id := env.store.Create(context.Background(), entity.OptimizationRequest{SimilarityThreshold: 0.8})
	env.complete(t, id, &entity.OptimizationResult{MemoriesAffected: 12, Merged: 3})

	rr := env.do(http.MethodGet, "/api/optimization/"+id.String(), "")
	require.Equal(t, http.StatusOK, rr.Code, "body=%s", rr.Body.String())

	got := decode(t, rr)
	assert.Equal(t, "completed", got["status"])
	assert.Equal(t, float64(100), got["progress"])
	assert.Equal(t, float64(2000), got["duration"])
	assert.NotEmpty(t, got["logs"])

	result := got["result"].(map[string]any)
	assert.Equal(t, float64(12), result["memories_affected"])
	assert.Equal(t, float64(3), result["merged"])
}

func TestHTTP_GetJob_NotFoundAndBadID(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(http.MethodGet, "/api/optimization/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "JOB_NOT_FOUND", decode(t, rr)["code"])

	rr = env.do(http.MethodGet, "/api/optimization/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "INVALID_ID", decode(t, rr)["code"])
}

func TestHTTP_CancelJob(t *testing.T) {
	env := newTestEnv(t)
	id := env.store.Create(context.Background(), entity.OptimizationRequest{})

	rr := env.do(http.MethodPost, "/api/optimization/"+id.String()+"/cancel", "")
	require.Equal(t, http.StatusOK, rr.Code, "body=%s", rr.Body.String())
	got := decode(t, rr)
	assert.Equal(t, "cancelled", got["status"])
	assert.NotEmpty(t, got["cancelled_at"])

	// second cancel hits a terminal job
	rr = env.do(http.MethodPost, "/api/optimization/"+id.String()+"/cancel", "")
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "JOB_COMPLETED", decode(t, rr)["code"])

	rr = env.do(http.MethodPost, "/api/optimization/"+uuid.NewString()+"/cancel", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHTTP_History(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	done := env.store.Create(ctx, entity.OptimizationRequest{})
	env.complete(t, done, &entity.OptimizationResult{})
	env.store.Create(ctx, entity.OptimizationRequest{})

	rr := env.do(http.MethodGet, "/api/optimization/history?status=completed", "")
	require.Equal(t, http.StatusOK, rr.Code, "body=%s", rr.Body.String())

	got := decode(t, rr)
	assert.Equal(t, float64(1), got["total"])
	items := got["history"].([]any)
	require.Len(t, items, 1)
	item := items[0].(map[string]any)
	assert.Equal(t, done.String(), item["job_id"])
	assert.Equal(t, true, item["has_result"])

	page := got["pagination"].(map[string]any)
	assert.Equal(t, float64(20), page["limit"])
	assert.Equal(t, float64(0), page["offset"])

	rr = env.do(http.MethodGet, "/api/optimization/history?limit=1&offset=1", "")
	require.Equal(t, http.StatusOK, rr.Code)
	got = decode(t, rr)
	assert.Equal(t, float64(2), got["total"])
	assert.Len(t, got["history"].([]any), 1)
}

func TestHTTP_History_BadQuery(t *testing.T) {
	env := newTestEnv(t)

	for _, q := range []string{"status=bogus", "start_date=yesterday", "limit=abc"} {
		rr := env.do(http.MethodGet, "/api/optimization/history?"+q, "")
		assert.Equal(t, http.StatusBadRequest, rr.Code, q)
	}

	rr := env.do(http.MethodGet, "/api/optimization/history?start_date=2020-01-01&end_date=2100-01-01T00:00:00Z", "")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestHTTP_Statistics(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.store.Create(ctx, entity.OptimizationRequest{})
	env.complete(t, id, &entity.OptimizationResult{MemoriesAffected: 5, Deduplicated: 2, SpaceSavedMB: 1.5})

	rr := env.do(http.MethodGet, "/api/optimization/statistics", "")
	require.Equal(t, http.StatusOK, rr.Code)

	got := decode(t, rr)
	assert.Equal(t, float64(1), got["total_jobs"])
	assert.Equal(t, float64(1), got["successful_jobs"])
	assert.Equal(t, float64(5), got["total_memories_processed"])
	assert.Equal(t, float64(2), got["total_memories_deduplicated"])
	assert.Equal(t, 1.5, got["total_space_saved_mb"])
	assert.Equal(t, float64(2000), got["avg_duration"])
	assert.NotNil(t, got["last_run"])
}

func TestHTTP_Cleanup(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.store.Create(ctx, entity.OptimizationRequest{})
	env.store.Create(ctx, entity.OptimizationRequest{})

	// default 7 days keeps fresh jobs
	rr := env.do(http.MethodPost, "/api/optimization/cleanup", "")
	require.Equal(t, http.StatusOK, rr.Code, "body=%s", rr.Body.String())
	got := decode(t, rr)
	assert.Equal(t, float64(0), got["deleted"])
	assert.Equal(t, float64(2), got["remaining"])

	rr = env.do(http.MethodPost, "/api/optimization/cleanup", `{"max_age_days":0}`)
	require.Equal(t, http.StatusOK, rr.Code)
	got = decode(t, rr)
	assert.Equal(t, float64(2), got["deleted"])
	assert.Equal(t, 0, env.store.Len())

	rr = env.do(http.MethodPost, "/api/optimization/cleanup", `{"max_age_days":-1}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHTTP_Analyze(t *testing.T) {
	env := newTestEnv(t)
	env.analyzer.analysis = entity.Analysis{
		Issues:          []entity.Issue{{Type: "duplicate memories", Count: 4, Severity: entity.SeverityHigh}},
		Summary:         entity.AnalysisSummary{TotalIssues: 1, TotalAffectedMemories: 4},
		Recommendations: []entity.Recommendation{},
	}

	rr := env.do(http.MethodPost, "/api/optimization/analyze", `{"user_id":"u1"}`)
	require.Equal(t, http.StatusOK, rr.Code, "body=%s", rr.Body.String())
	assert.Equal(t, "u1", env.analyzer.got.UserID)

	got := decode(t, rr)
	issues := got["issues"].([]any)
	require.Len(t, issues, 1)
	assert.Equal(t, "high", issues[0].(map[string]any)["severity"])

	// analysis never creates a job
	assert.Equal(t, 0, env.store.Len())
}

func TestHTTP_Analyze_502OnOptimizerFailure(t *testing.T) {
	env := newTestEnv(t)
	env.analyzer.err = errors.New("optimizer exited with code 2")

	rr := env.do(http.MethodPost, "/api/optimization/analyze", `{}`)
	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Equal(t, "ANALYSIS_FAILED", decode(t, rr)["code"])
}

func TestHTTP_EventsEmptyWithoutStore(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(http.MethodGet, "/api/optimization/events", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []any{}, decode(t, rr)["events"])

	rr = env.do(http.MethodGet, "/api/optimization/events?limit=0", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHTTP_Health(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())
}
