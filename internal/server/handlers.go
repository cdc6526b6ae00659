package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/copyleftdev/uiprobe/internal/probe"
	"github.com/copyleftdev/uiprobe/internal/runs"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RunService is the part of the run manager the API needs.
type RunService interface {
	Submit(run *runs.Run) error
	Get(id uuid.UUID) (*runs.Run, error)
}

// EvidenceLocator maps a run to the directory holding its evidence.
type EvidenceLocator interface {
	EvidenceDir(id uuid.UUID) string
}

// evidenceTags are the only names the evidence route serves.
var evidenceTags = map[string]bool{
	probe.TagInitialLoad:      true,
	probe.TagVerified:         true,
	probe.TagModalFailed:      true,
	probe.TagNoSettingsButton: true,
	probe.TagScriptError:      true,
}

type APIHandler struct {
	runs       RunService
	evidence   EvidenceLocator
	defaultURL string
	logger     *zap.Logger
}

func NewAPIHandler(rs RunService, evidence EvidenceLocator, defaultURL string, logger *zap.Logger) *APIHandler {
	return &APIHandler{
		runs:       rs,
		evidence:   evidence,
		defaultURL: defaultURL,
		logger:     logger,
	}
}

type SubmitRunRequest struct {
	TargetURL   string `json:"target_url,omitempty"`
	CallbackURL string `json:"callback_url,omitempty"`
}

type SubmitRunResponse struct {
	RunID string `json:"run_id"`
}

func (h *APIHandler) HandleSubmitRun(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var req SubmitRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body: %v", err)
		return
	}

	if req.TargetURL == "" {
		req.TargetURL = h.defaultURL
	}
	if err := validateHTTPURL(req.TargetURL); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid target_url: %v", err)
		return
	}
	if req.CallbackURL != "" {
		if err := validateHTTPURL(req.CallbackURL); err != nil {
			h.respondError(w, http.StatusBadRequest, "Invalid callback_url: %v", err)
			return
		}
	}

	run := runs.NewRun(req.TargetURL, req.CallbackURL)
	if err := h.runs.Submit(run); err != nil {
		if errors.Is(err, runs.ErrShuttingDown) {
			h.respondError(w, http.StatusServiceUnavailable, "%s", err.Error())
			return
		}
		h.logger.Error("Error submitting run", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "Failed to submit run: %v", err)
		return
	}

	w.Header().Set("Location", "/api/v1/runs/"+run.ID.String())
	h.respondJSON(w, http.StatusAccepted, SubmitRunResponse{RunID: run.ID.String()})
}

func (h *APIHandler) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	id, ok := h.runID(w, r)
	if !ok {
		return
	}

	run, err := h.runs.Get(id)
	if err != nil {
		if errors.Is(err, runs.ErrRunNotFound) {
			h.respondError(w, http.StatusNotFound, "Run not found")
		} else {
			h.logger.Error("Error retrieving run", zap.String("run", id.String()), zap.Error(err))
			h.respondError(w, http.StatusInternalServerError, "Failed to retrieve run")
		}
		return
	}

	h.respondJSON(w, http.StatusOK, run)
}

// HandleGetEvidence serves <tag>.png, or <tag>.html with ?format=html.
func (h *APIHandler) HandleGetEvidence(w http.ResponseWriter, r *http.Request) {
	id, ok := h.runID(w, r)
	if !ok {
		return
	}
	if _, err := h.runs.Get(id); err != nil {
		h.respondError(w, http.StatusNotFound, "Run not found")
		return
	}

	tag := chi.URLParam(r, "tag")
	if !evidenceTags[tag] {
		h.respondError(w, http.StatusNotFound, "Unknown evidence tag %q", tag)
		return
	}

	var name, contentType string
	switch format := r.URL.Query().Get("format"); format {
	case "", "png":
		name, contentType = tag+".png", "image/png"
	case "html":
		name, contentType = tag+".html", "text/html; charset=utf-8"
	default:
		h.respondError(w, http.StatusBadRequest, "Unsupported format %q", format)
		return
	}

	path := filepath.Join(h.evidence.EvidenceDir(id), name)
	if _, err := os.Stat(path); err != nil {
		h.respondError(w, http.StatusNotFound, "Evidence %s not captured for this run", name)
		return
	}
	w.Header().Set("Content-Type", contentType)
	http.ServeFile(w, r, path)
}

// --- Helper Functions ---

func (h *APIHandler) runID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "runID"))
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid run ID format: %v", err)
		return uuid.Nil, false
	}
	return id, true
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https")
	}
	if u.Host == "" {
		return fmt.Errorf("host is required")
	}
	return nil
}

func (h *APIHandler) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
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

func (h *APIHandler) respondError(w http.ResponseWriter, status int, format string, args ...interface{}) {
	errorMessage := fmt.Sprintf(format, args...)
	jsonResponse, err := json.Marshal(map[string]string{"error": errorMessage})
	if err != nil {
		h.logger.Error("Error marshalling JSON error response", zap.Error(err))
		jsonResponse = []byte(`{"error":"internal error"}`)
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(jsonResponse); err != nil {
		h.logger.Warn("Error writing error response", zap.Error(err))
	}
}
