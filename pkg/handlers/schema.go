package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/grantgraph/pkg/logging"
	"github.com/ekaya-inc/grantgraph/pkg/schema"
)

// SchemaStore serves and refreshes the schema descriptor. *schema.Cache
// implements it.
type SchemaStore interface {
	Get(ctx context.Context) (*schema.Descriptor, error)
	Refresh(ctx context.Context) (*schema.Descriptor, error)
}

// SchemaHandler exposes the graph schema descriptor.
type SchemaHandler struct {
	store  SchemaStore
	logger *zap.Logger
}

// NewSchemaHandler creates a schema handler.
func NewSchemaHandler(store SchemaStore, logger *zap.Logger) *SchemaHandler {
	return &SchemaHandler{store: store, logger: logger.Named("schema-handler")}
}

// RegisterRoutes registers the schema routes.
func (h *SchemaHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/schema", h.GetSchema)
	mux.HandleFunc("POST /api/schema/refresh", h.RefreshSchema)
}

// GetSchema handles GET /api/schema.
func (h *SchemaHandler) GetSchema(w http.ResponseWriter, r *http.Request) {
	desc, err := h.store.Get(r.Context())
	h.respond(w, desc, err, "Failed to load schema")
}

// RefreshSchema handles POST /api/schema/refresh, discarding the cached
// descriptor and loading a new one.
func (h *SchemaHandler) RefreshSchema(w http.ResponseWriter, r *http.Request) {
	desc, err := h.store.Refresh(r.Context())
	if err == nil {
		h.logger.Info("Schema refreshed",
			zap.String("version", desc.Version()),
			zap.String("source", desc.Source()))
	}
	h.respond(w, desc, err, "Failed to refresh schema")
}

func (h *SchemaHandler) respond(w http.ResponseWriter, desc *schema.Descriptor, err error, msg string) {
	if err != nil {
		h.logger.Error(msg, zap.String("error", logging.SanitizeError(err)))
		if err := WriteAppError(w, err); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}
	if err := WriteJSON(w, http.StatusOK, desc); err != nil {
		h.logger.Error("Failed to write schema response", zap.Error(err))
	}
}
