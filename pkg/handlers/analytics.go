package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/ekaya-inc/grantgraph/pkg/logging"
	"github.com/ekaya-inc/grantgraph/pkg/services"
)

// AnalyticsHandler serves aggregate figures over the grant graph.
type AnalyticsHandler struct {
	svc    services.AnalyticsService
	logger *zap.Logger
}

// NewAnalyticsHandler creates an analytics handler.
func NewAnalyticsHandler(svc services.AnalyticsService, logger *zap.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{svc: svc, logger: logger.Named("analytics-handler")}
}

// RegisterRoutes registers the analytics routes.
func (h *AnalyticsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/analytics/stats", h.Stats)
	mux.HandleFunc("GET /api/analytics/institutions", h.TopInstitutions)
	mux.HandleFunc("GET /api/analytics/trends", h.FundingTrends)
	mux.HandleFunc("GET /api/analytics/research-areas", h.ResearchAreas)
}

// Stats handles GET /api/analytics/stats.
func (h *AnalyticsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context())
	h.respond(w, stats, err)
}

// TopInstitutions handles GET /api/analytics/institutions?limit=N.
func (h *AnalyticsHandler) TopInstitutions(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.intParam(w, r, "limit")
	if !ok {
		return
	}
	institutions, err := h.svc.TopInstitutions(r.Context(), limit)
	h.respond(w, institutions, err)
}

// FundingTrends handles GET /api/analytics/trends?start_year=Y&end_year=Y.
func (h *AnalyticsHandler) FundingTrends(w http.ResponseWriter, r *http.Request) {
	start, ok := h.intParam(w, r, "start_year")
	if !ok {
		return
	}
	end, ok := h.intParam(w, r, "end_year")
	if !ok {
		return
	}
	trends, err := h.svc.FundingTrends(r.Context(), start, end)
	h.respond(w, trends, err)
}

// ResearchAreas handles GET /api/analytics/research-areas.
func (h *AnalyticsHandler) ResearchAreas(w http.ResponseWriter, r *http.Request) {
	areas, err := h.svc.ResearchAreas(r.Context())
	h.respond(w, areas, err)
}

// intParam parses an optional integer query parameter. Missing means zero.
func (h *AnalyticsHandler) intParam(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_parameter", name+" must be a non-negative integer"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return 0, false
	}
	return v, true
}

func (h *AnalyticsHandler) respond(w http.ResponseWriter, data any, err error) {
	if err != nil {
		h.logger.Error("Analytics request failed", zap.String("error", logging.SanitizeError(err)))
		if err := WriteAppError(w, err); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}
	if err := WriteJSON(w, http.StatusOK, data); err != nil {
		h.logger.Error("Failed to write analytics response", zap.Error(err))
	}
}
