package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/copyleftdev/authscry/internal/config"
	"github.com/copyleftdev/authscry/internal/mcp"
	"github.com/copyleftdev/authscry/internal/runs"
	"github.com/copyleftdev/authscry/internal/scenario"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RunService is the part of runs.Manager the API uses.
type RunService interface {
	Submit(selection []string, callbackURL string) (*runs.Run, error)
	Get(id uuid.UUID) (*runs.Run, error)
	List() []runs.Run
}

// ScenarioLister is satisfied by scenario.Catalog.
type ScenarioLister interface {
	All() []scenario.Scenario
}

type APIHandler struct {
	runs      RunService
	scenarios ScenarioLister
	baseURL   string
	logger    *zap.Logger
}

func NewAPIHandler(rs RunService, scenarios ScenarioLister, baseURL string, logger *zap.Logger) *APIHandler {
	return &APIHandler{
		runs:      rs,
		scenarios: scenarios,
		baseURL:   baseURL,
		logger:    logger,
	}
}

type SubmitRunRequest struct {
	Scenarios   []string `json:"scenarios"`
	CallbackURL string   `json:"callback_url,omitempty"`
}

type SubmitRunResponse struct {
	RunID string `json:"run_id"`
}

type ScenarioInfo struct {
	Label         string   `json:"label"`
	Title         string   `json:"title"`
	Tags          []string `json:"tags,omitempty"`
	ConflictsWith []string `json:"conflicts_with,omitempty"`
}

func (h *APIHandler) HandleSubmitRun(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var req SubmitRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body: %v", err)
		return
	}

	run, err := h.runs.Submit(req.Scenarios, req.CallbackURL)
	if err != nil {
		var cfgErr *config.ConfigError
		if errors.As(err, &cfgErr) {
			h.respondError(w, http.StatusBadRequest, "%s", err.Error())
			return
		}
		if errors.Is(err, runs.ErrShutdown) {
			h.respondError(w, http.StatusServiceUnavailable, "%s", err.Error())
			return
		}
		h.logger.Warn("Rejected run submission", zap.Error(err))
		h.respondError(w, http.StatusBadRequest, "Failed to submit run: %v", err)
		return
	}

	w.Header().Set("Location", "/api/v1/runs/"+run.ID.String())
	h.respondJSON(w, http.StatusAccepted, SubmitRunResponse{RunID: run.ID.String()})
}

// HandleGetRun returns the run. With ?format=mcp a finished run's report
// is wrapped in a model-context message.
func (h *APIHandler) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := h.lookupRun(w, r)
	if !ok {
		return
	}

	if r.URL.Query().Get("format") == "mcp" {
		h.respondMCP(w, run)
		return
	}
	h.respondJSON(w, http.StatusOK, run)
}

// HandleGetSnapshot returns the simplified DOM captured when the labelled
// scenario of a finished run failed.
func (h *APIHandler) HandleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	run, ok := h.lookupRun(w, r)
	if !ok {
		return
	}
	label := chi.URLParam(r, "label")
	if run.Report == nil {
		h.respondError(w, http.StatusNotFound, "Run %s has no report yet", run.ID)
		return
	}

	for _, res := range run.Report.Results {
		if res.Label != label {
			continue
		}
		if res.Snapshot == "" {
			h.respondError(w, http.StatusNotFound, "No snapshot captured for %s", label)
			return
		}
		body, err := mcp.FormatSnapshot(run.ID.String(), res)
		if err != nil {
			h.logger.Error("Error formatting snapshot", zap.String("label", label), zap.Error(err))
			h.respondError(w, http.StatusInternalServerError, "Failed to format snapshot")
			return
		}
		h.respondRaw(w, body)
		return
	}
	h.respondError(w, http.StatusNotFound, "Scenario %s not in run", label)
}

func (h *APIHandler) lookupRun(w http.ResponseWriter, r *http.Request) (*runs.Run, bool) {
	runIDStr := chi.URLParam(r, "runID")
	runID, err := uuid.Parse(runIDStr)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid run ID format: %v", err)
		return nil, false
	}

	run, err := h.runs.Get(runID)
	if errors.Is(err, runs.ErrRunNotFound) {
		h.respondError(w, http.StatusNotFound, "Run not found")
		return nil, false
	}
	if err != nil {
		h.logger.Error("Error retrieving run", zap.String("run_id", runIDStr), zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "Failed to retrieve run")
		return nil, false
	}
	return run, true
}

func (h *APIHandler) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.runs.List())
}

func (h *APIHandler) HandleListScenarios(w http.ResponseWriter, r *http.Request) {
	all := h.scenarios.All()
	out := make([]ScenarioInfo, 0, len(all))
	for _, sc := range all {
		out = append(out, ScenarioInfo{Label: sc.Label, Title: sc.Title, Tags: sc.Tags, ConflictsWith: sc.ConflictsWith})
	}
	h.respondJSON(w, http.StatusOK, out)
}

func (h *APIHandler) respondMCP(w http.ResponseWriter, run *runs.Run) {
	var (
		body []byte
		err  error
	)
	switch {
	case run.Report != nil:
		body, err = mcp.FormatReport(run.Report)
	case run.Error != "":
		body, err = mcp.FormatError(run.ID.String(), errors.New(run.Error), h.baseURL)
	default:
		body, err = mcp.FormatStatus(run.ID.String(), string(run.Status), h.baseURL)
	}
	if err != nil {
		h.logger.Error("Error formatting MCP response", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "Failed to format MCP response")
		return
	}
	h.respondRaw(w, body)
}

func (h *APIHandler) respondRaw(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		h.logger.Warn("Error writing MCP response", zap.Error(err))
	}
}

func (h *APIHandler) respondJSON(w http.ResponseWriter, status int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("Error marshalling JSON response", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "Failed to marshal JSON response")
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(response); err != nil {
		h.logger.Warn("Error writing JSON response", zap.Error(err))
	}
}

func (h *APIHandler) respondError(w http.ResponseWriter, status int, format string, args ...any) {
	errorMessage := fmt.Sprintf(format, args...)
	jsonResponse, err := json.Marshal(map[string]string{"error": errorMessage})
	if err != nil {
		jsonResponse = []byte(`{"error":"internal error"}`)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(jsonResponse); err != nil {
		h.logger.Warn("Error writing error response", zap.Error(err))
	}
}
