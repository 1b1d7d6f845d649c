package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/grantgraph/pkg/llm"
)

// ModelAvailability reports whether a model can be served. *llm.Router
// implements it.
type ModelAvailability interface {
	IsConfigured(model llm.ModelID) bool
}

// ModelResponse describes one model in the catalogue.
type ModelResponse struct {
	llm.ModelInfo
	Configured bool `json:"configured"`
	Default    bool `json:"default"`
}

// ModelsResponse lists the model catalogue.
type ModelsResponse struct {
	Models       []ModelResponse `json:"models"`
	DefaultModel llm.ModelID     `json:"default_model"`
}

// ModelsHandler serves the model catalogue.
type ModelsHandler struct {
	availability ModelAvailability
	defaultModel llm.ModelID
	logger       *zap.Logger
}

// NewModelsHandler creates a models handler.
func NewModelsHandler(availability ModelAvailability, defaultModel llm.ModelID, logger *zap.Logger) *ModelsHandler {
	return &ModelsHandler{availability: availability, defaultModel: defaultModel, logger: logger}
}

// RegisterRoutes registers the models route.
func (h *ModelsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/models", h.List)
}

// List handles GET /api/models.
func (h *ModelsHandler) List(w http.ResponseWriter, r *http.Request) {
	catalogue := llm.Models()
	response := ModelsResponse{
		Models:       make([]ModelResponse, len(catalogue)),
		DefaultModel: h.defaultModel,
	}
	for i, m := range catalogue {
		response.Models[i] = ModelResponse{
			ModelInfo:  m,
			Configured: h.availability != nil && h.availability.IsConfigured(m.ID),
			Default:    m.ID == h.defaultModel,
		}
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write models response", zap.Error(err))
	}
}
