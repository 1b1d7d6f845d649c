package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/grantgraph/pkg/apperrors"
	"github.com/ekaya-inc/grantgraph/pkg/models"
	"github.com/ekaya-inc/grantgraph/pkg/services"
)

// QueryHandler answers natural-language questions.
type QueryHandler struct {
	pipeline services.QueryPipeline
	logger   *zap.Logger
}

// NewQueryHandler creates a query handler.
func NewQueryHandler(pipeline services.QueryPipeline, logger *zap.Logger) *QueryHandler {
	return &QueryHandler{pipeline: pipeline, logger: logger.Named("query-handler")}
}

// RegisterRoutes registers the query routes.
func (h *QueryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/query", h.Ask)
}

// Ask handles POST /api/query.
// Pipeline failures are reported in the response body with status 200;
// only malformed or invalid requests get 400.
func (h *QueryHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req models.QueryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.logger.Debug("Malformed query request", zap.Error(err))
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Request body must be a JSON object with a question"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	resp := h.pipeline.Run(r.Context(), req)

	status := http.StatusOK
	if resp.ErrorKind == string(apperrors.KindValidation) {
		status = http.StatusBadRequest
	}
	if err := WriteJSON(w, status, resp); err != nil {
		h.logger.Error("Failed to write query response", zap.Error(err))
	}
}
