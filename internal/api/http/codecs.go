package http

import (
	"net/http"

	"github.com/mathhub/mdh-explorer/internal/api/service"
)

// CodecInfo describes one registered codec.
type CodecInfo = service.CodecInfo

// CodecsResponse is the response of GET /v1/codecs.
type CodecsResponse struct {
	Codecs    []CodecInfo `json:"codecs"`
	RequestID string      `json:"request_id"`
}

// CodecsHandler handles GET /v1/codecs requests.
type CodecsHandler struct {
	explorer *service.Explorer
}

// NewCodecsHandler creates a new codecs handler.
func NewCodecsHandler(explorer *service.Explorer) *CodecsHandler {
	return &CodecsHandler{explorer: explorer}
}

// ServeHTTP lists the registered codecs.
func (h *CodecsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, CodecsResponse{Codecs: h.explorer.Codecs(), RequestID: GetRequestID(r.Context())})
}
