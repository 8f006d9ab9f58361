package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/copyleftdev/authscry/internal/config"
	"github.com/copyleftdev/authscry/internal/report"
	"github.com/copyleftdev/authscry/internal/runs"
	"github.com/copyleftdev/authscry/internal/scenario"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRuns struct {
	submitErr error
	runs      map[uuid.UUID]*runs.Run
	submitted []string
}

func newFakeRuns() *fakeRuns {
	return &fakeRuns{runs: map[uuid.UUID]*runs.Run{}}
}

func (f *fakeRuns) Submit(selection []string, callbackURL string) (*runs.Run, error) {
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	f.submitted = selection
	run := &runs.Run{ID: uuid.New(), Status: runs.StatusPending, Selection: selection, CallbackURL: callbackURL}
	f.runs[run.ID] = run
	return run, nil
}

func (f *fakeRuns) Get(id uuid.UUID) (*runs.Run, error) {
	run, ok := f.runs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", runs.ErrRunNotFound, id)
	}
	return run, nil
}

func (f *fakeRuns) List() []runs.Run {
	var out []runs.Run
	for _, run := range f.runs {
		out = append(out, *run)
	}
	return out
}

func newCatalog(t *testing.T) *scenario.Catalog {
	t.Helper()
	c := scenario.NewCatalog()
	noop := func(ctx context.Context, s *scenario.Session) error { return nil }
	require.NoError(t, c.Register(scenario.Scenario{Label: "SIGNUP-001", Title: "signup", Tags: []string{"signup"}, Run: noop}))
	require.NoError(t, c.Register(scenario.Scenario{Label: "LOGIN-001", Title: "login", Run: noop}))
	return c
}

func newTestRouter(t *testing.T, apiKey string, rs RunService) http.Handler {
	t.Helper()
	cfg := &config.Config{
		Target:   config.TargetConfig{BaseURL: "http://app.test"},
		Security: config.SecurityConfig{ApiKey: apiKey},
	}
	return NewRouter(cfg, rs, newCatalog(t), zap.NewNop())
}

func do(h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	h := newTestRouter(t, "secret", newFakeRuns())
	rec := do(h, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestAPIKeyAuth(t *testing.T) {
	h := newTestRouter(t, "secret", newFakeRuns())

	assert.Equal(t, http.StatusUnauthorized, do(h, http.MethodGet, "/api/v1/scenarios", "", nil).Code)
	assert.Equal(t, http.StatusForbidden, do(h, http.MethodGet, "/api/v1/scenarios", "", map[string]string{"X-API-Key": "wrong"}).Code)
	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/api/v1/scenarios", "", map[string]string{"X-API-Key": "secret"}).Code)
	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/api/v1/scenarios", "", map[string]string{"Authorization": "Bearer secret"}).Code)
}

func TestListScenarios(t *testing.T) {
	h := newTestRouter(t, "", newFakeRuns())
	rec := do(h, http.MethodGet, "/api/v1/scenarios", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got []ScenarioInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "SIGNUP-001", got[0].Label)
	assert.Equal(t, []string{"signup"}, got[0].Tags)
}

func TestSubmitAndGetRun(t *testing.T) {
	rs := newFakeRuns()
	h := newTestRouter(t, "", rs)

	rec := do(h, http.MethodPost, "/api/v1/runs", `{"scenarios":["@signup"],"callback_url":"http://hook.test"}`, nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp SubmitRunResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "/api/v1/runs/"+resp.RunID, rec.Header().Get("Location"))
	assert.Equal(t, []string{"@signup"}, rs.submitted)

	rec = do(h, http.MethodGet, "/api/v1/runs/"+resp.RunID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var run runs.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	assert.Equal(t, runs.StatusPending, run.Status)
	assert.Equal(t, "http://hook.test", run.CallbackURL)

	rec = do(h, http.MethodGet, "/api/v1/runs", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), resp.RunID)
}

func TestSubmitRun_Errors(t *testing.T) {
	rs := newFakeRuns()
	h := newTestRouter(t, "", rs)
	assert.Equal(t, http.StatusBadRequest, do(h, http.MethodPost, "/api/v1/runs", `{`, nil).Code)

	rs.submitErr = &config.ConfigError{Key: "selection", Reason: "no scenario matches NOPE-001"}
	rec := do(h, http.MethodPost, "/api/v1/runs", `{"scenarios":["NOPE-001"]}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "NOPE-001")

	rs.submitErr = runs.ErrShutdown
	assert.Equal(t, http.StatusServiceUnavailable, do(h, http.MethodPost, "/api/v1/runs", `{}`, nil).Code)
}

func TestGetRun_Errors(t *testing.T) {
	h := newTestRouter(t, "", newFakeRuns())
	assert.Equal(t, http.StatusBadRequest, do(h, http.MethodGet, "/api/v1/runs/not-a-uuid", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(h, http.MethodGet, "/api/v1/runs/"+uuid.NewString(), "", nil).Code)
}

func TestGetRun_MCPFormat(t *testing.T) {
	rs := newFakeRuns()
	rep := report.New("http://app.test", false)
	rep.Results = []report.Result{{Label: "SIGNUP-001", Status: report.StatusPassed}}
	rep.FinishedAt = time.Now()
	done := &runs.Run{ID: uuid.New(), Status: runs.StatusCompleted, Report: rep}
	pending := &runs.Run{ID: uuid.New(), Status: runs.StatusRunning}
	rs.runs[done.ID] = done
	rs.runs[pending.ID] = pending
	h := newTestRouter(t, "", rs)

	rec := do(h, http.MethodGet, "/api/v1/runs/"+done.ID.String()+"?format=mcp", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var msg map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msg))
	assert.Equal(t, rep.RunID.String(), msg["run_id"])

	rec = do(h, http.MethodGet, "/api/v1/runs/"+pending.ID.String()+"?format=mcp", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"data":"running"`)
}

func TestGetSnapshot(t *testing.T) {
	rs := newFakeRuns()
	rep := report.New("http://app.test", false)
	rep.Results = []report.Result{
		{Label: "SIGNUP-001", Status: report.StatusPassed},
		{Label: "SIGNUP-003", Status: report.StatusFailed, FinalURL: "http://app.test/", Snapshot: "<form><input name=\"email\"></form>"},
	}
	done := &runs.Run{ID: uuid.New(), Status: runs.StatusCompleted, Report: rep}
	pending := &runs.Run{ID: uuid.New(), Status: runs.StatusRunning}
	rs.runs[done.ID] = done
	rs.runs[pending.ID] = pending
	h := newTestRouter(t, "", rs)
	base := "/api/v1/runs/" + done.ID.String() + "/snapshots/"

	rec := do(h, http.MethodGet, base+"SIGNUP-003", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var msg map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msg))
	assert.Equal(t, done.ID.String(), msg["run_id"])
	assert.Contains(t, rec.Body.String(), "SIGNUP-003")
	assert.Contains(t, rec.Body.String(), "http://app.test/")

	assert.Equal(t, http.StatusNotFound, do(h, http.MethodGet, base+"SIGNUP-001", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(h, http.MethodGet, base+"LOGIN-009", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(h, http.MethodGet, "/api/v1/runs/"+pending.ID.String()+"/snapshots/SIGNUP-003", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(h, http.MethodGet, "/api/v1/runs/"+uuid.NewString()+"/snapshots/SIGNUP-003", "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(h, http.MethodGet, "/api/v1/runs/nope/snapshots/SIGNUP-003", "", nil).Code)
}
