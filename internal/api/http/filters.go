package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mathhub/mdh-explorer/internal/api/service"
)

// CleanRequest represents a filter cleaning request.
type CleanRequest = service.CleanRequest

// CleanResponse represents the filter cleaning response.
type CleanResponse struct {
	service.CleanResult
	RequestID string `json:"request_id"`
}

// FiltersHandler handles POST /v1/filters/clean requests.
type FiltersHandler struct {
	explorer *service.Explorer
}

// NewFiltersHandler creates a new filters handler.
func NewFiltersHandler(explorer *service.Explorer) *FiltersHandler {
	return &FiltersHandler{explorer: explorer}
}

// ServeHTTP handles the filter cleaning request.
func (h *FiltersHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	var req CleanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err), requestID)
		return
	}

	res, err := h.explorer.Clean(r.Context(), req)
	if err != nil {
		writeAppError(w, err, requestID)
		return
	}
	writeJSON(w, http.StatusOK, CleanResponse{CleanResult: *res, RequestID: requestID})
}
