package http

import (
	"net/http"
	"strconv"

	"github.com/mathhub/mdh-explorer/internal/api/service"
	"github.com/mathhub/mdh-explorer/internal/filter"
	"github.com/mathhub/mdh-explorer/pkg/types"
)

// QueryResponse is the response of GET /v1/collections/{slug}.
type QueryResponse struct {
	service.QueryResult
	RequestID string `json:"request_id"`
}

// CollectionsResponse is the response of GET /v1/collections.
type CollectionsResponse struct {
	*types.PagedResponse[types.Collection]
	RequestID string `json:"request_id"`
}

// CollectionsHandler serves collection listings and queries. A query is
// described by the same URL state the explorer keeps in its address bar,
// plus an optional order parameter.
type CollectionsHandler struct {
	explorer *service.Explorer
}

// NewCollectionsHandler creates a new collections handler.
func NewCollectionsHandler(explorer *service.Explorer) *CollectionsHandler {
	return &CollectionsHandler{explorer: explorer}
}

// ServeHTTP runs the query of GET /v1/collections/{slug}.
func (h *CollectionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	st, _ := filter.DecodeState(r.URL.RawQuery)
	res, err := h.explorer.Query(r.Context(), r.PathValue("slug"), st, r.URL.Query().Get("order"))
	if err != nil {
		writeAppError(w, err, requestID)
		return
	}
	writeJSON(w, http.StatusOK, QueryResponse{QueryResult: *res, RequestID: requestID})
}

// List handles GET /v1/collections.
func (h *CollectionsHandler) List(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))

	colls, err := h.explorer.Backend().FetchCollections(r.Context(), page, perPage)
	if err != nil {
		writeAppError(w, err, requestID)
		return
	}
	writeJSON(w, http.StatusOK, CollectionsResponse{PagedResponse: colls, RequestID: requestID})
}
