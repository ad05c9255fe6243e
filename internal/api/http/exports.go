package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/mathhub/mdh-explorer/internal/jobs"
	"github.com/mathhub/mdh-explorer/internal/observability"
)

// ExportResponse wraps a job record.
type ExportResponse struct {
	jobs.Record
	RequestID string `json:"request_id"`
}

// ExportListResponse is the response of GET /v1/exports.
type ExportListResponse struct {
	Exports   []jobs.Record `json:"exports"`
	RequestID string        `json:"request_id"`
}

// ExportsHandler serves the export job endpoints.
type ExportsHandler struct {
	jobs  *jobs.Manager
	stats *observability.FilterStats
}

// NewExportsHandler creates a new exports handler.
func NewExportsHandler(m *jobs.Manager, stats *observability.FilterStats) *ExportsHandler {
	return &ExportsHandler{jobs: m, stats: stats}
}

// Submit handles POST /v1/exports.
func (h *ExportsHandler) Submit(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	var spec jobs.Spec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err), requestID)
		return
	}

	rec, err := h.jobs.Submit(spec)
	if err != nil {
		writeAppError(w, err, requestID)
		return
	}
	if h.stats != nil {
		h.stats.RecordExport(spec.Collection, spec.Format)
		h.stats.RecordPredicate(spec.Collection, spec.Predicate)
	}

	w.Header().Set("Location", "/v1/exports/"+rec.ID)
	writeJSON(w, http.StatusAccepted, ExportResponse{Record: rec, RequestID: requestID})
}

// List handles GET /v1/exports.
func (h *ExportsHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ExportListResponse{Exports: h.jobs.List(), RequestID: GetRequestID(r.Context())})
}

// Get handles GET /v1/exports/{id}.
func (h *ExportsHandler) Get(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())
	rec, ok := h.jobs.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "export not found", requestID)
		return
	}
	writeJSON(w, http.StatusOK, ExportResponse{Record: rec, RequestID: requestID})
}

// Cancel handles DELETE /v1/exports/{id}. The job stops at its next page
// boundary.
func (h *ExportsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())
	id := r.PathValue("id")
	if !h.jobs.Cancel(id) {
		writeError(w, http.StatusNotFound, "export not found", requestID)
		return
	}
	rec, _ := h.jobs.Get(id)
	writeJSON(w, http.StatusAccepted, ExportResponse{Record: rec, RequestID: requestID})
}

// Download handles GET /v1/exports/{id}/download.
func (h *ExportsHandler) Download(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	art, err := h.jobs.Artifact(r.Context(), r.PathValue("id"))
	if err != nil {
		writeAppError(w, err, requestID)
		return
	}

	w.Header().Set("Content-Type", art.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(art.Data)))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", art.Name))
	w.WriteHeader(http.StatusOK)
	w.Write(art.Data)
}
