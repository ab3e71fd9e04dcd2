package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"mitra-ai/internal/app"
	"mitra-ai/internal/logger"
	"mitra-ai/internal/repository/db"
	"mitra-ai/internal/service/registry"
	"mitra-ai/pkg/validation"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

// ModelRequest is the body of model create and update requests.
// On update, absent fields are left untouched.
type ModelRequest struct {
	ModelID        string  `json:"model_id,omitempty"`
	DisplayName    *string `json:"display_name,omitempty"`
	Provider       *string `json:"provider,omitempty"`
	CostPerMessage *int    `json:"cost_per_message,omitempty"`
	IsActive       *bool   `json:"is_active,omitempty"`
	IsFree         *bool   `json:"is_free,omitempty"`
}

type ModelInfo struct {
	ModelID        string `json:"model_id"`
	DisplayName    string `json:"display_name"`
	Provider       string `json:"provider"`
	CostPerMessage int    `json:"cost_per_message"`
	IsActive       bool   `json:"is_active"`
	IsFree         bool   `json:"is_free"`
	UpdatedAt      string `json:"updated_at"`
}

type ModelsResponse struct {
	Models []ModelInfo `json:"models"`
}

// ModelHandlers serves the model registry
type ModelHandlers struct {
	validator *validation.ModelRequestValidator
	registry  *registry.Registry
}

// NewModelHandlers creates a new ModelHandlers
func NewModelHandlers(config *app.Config) *ModelHandlers {
	return &ModelHandlers{
		validator: validation.NewModelRequestValidator(),
		registry:  config.Registry,
	}
}

// ListActiveHandler returns the models users may pick
func (mh *ModelHandlers) ListActiveHandler(w http.ResponseWriter, r *http.Request) {
	models, err := mh.registry.ListActive(r.Context())
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, toModelsResponse(models))
}

// ListAllHandler returns every model, including inactive ones
func (mh *ModelHandlers) ListAllHandler(w http.ResponseWriter, r *http.Request) {
	models, err := mh.registry.ListAll(r.Context())
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, toModelsResponse(models))
}

// CreateHandler registers a new model
func (mh *ModelHandlers) CreateHandler(w http.ResponseWriter, r *http.Request) {
	var req ModelRequest
	if err := decodeBody(w, r, &req); err != nil {
		sendError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	in := toModelInput(req)
	in.ModelID = strings.TrimSpace(in.ModelID)
	if err := mh.validator.ValidateCreate(in); err != nil {
		sendError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	desc := db.ModelDescriptor{
		ModelID:        in.ModelID,
		DisplayName:    strings.TrimSpace(*in.DisplayName),
		CostPerMessage: *in.CostPerMessage,
		IsActive:       true,
	}
	if in.Provider != nil {
		desc.Provider = strings.TrimSpace(*in.Provider)
	}
	if in.IsActive != nil {
		desc.IsActive = *in.IsActive
	}
	if in.IsFree != nil {
		desc.IsFree = *in.IsFree
	}

	created, err := mh.registry.Create(r.Context(), desc)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}

	logger.FromRequest(r).WithFields(logrus.Fields{"model_id": created.ModelID, "cost": created.CostPerMessage}).Info("Model created")
	sendJSON(w, http.StatusCreated, toModelInfo(*created))
}

// UpdateHandler applies a partial update to a model
func (mh *ModelHandlers) UpdateHandler(w http.ResponseWriter, r *http.Request) {
	modelID, err := modelIDParam(r)
	if err != nil {
		sendError(w, http.StatusBadRequest, "Invalid model id", err)
		return
	}

	var req ModelRequest
	if err := decodeBody(w, r, &req); err != nil {
		sendError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	in := toModelInput(req)
	if err := mh.validator.ValidateUpdate(in); err != nil {
		sendError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	updated, err := mh.registry.Update(r.Context(), modelID, db.ModelPatch{
		DisplayName:    trimmed(in.DisplayName),
		Provider:       trimmed(in.Provider),
		CostPerMessage: in.CostPerMessage,
		IsActive:       in.IsActive,
		IsFree:         in.IsFree,
	})
	if err != nil {
		sendServiceError(w, r, err)
		return
	}

	logger.FromRequest(r).WithField("model_id", modelID).Info("Model updated")
	sendJSON(w, http.StatusOK, toModelInfo(*updated))
}

// DeactivateHandler hides a model from users; its messages keep their model id
func (mh *ModelHandlers) DeactivateHandler(w http.ResponseWriter, r *http.Request) {
	modelID, err := modelIDParam(r)
	if err != nil {
		sendError(w, http.StatusBadRequest, "Invalid model id", err)
		return
	}

	updated, err := mh.registry.Deactivate(r.Context(), modelID)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}

	logger.FromRequest(r).WithField("model_id", modelID).Info("Model deactivated")
	sendJSON(w, http.StatusOK, toModelInfo(*updated))
}

// modelIDParam reads the model id from the wildcard route segment
func modelIDParam(r *http.Request) (string, error) {
	id, err := url.PathUnescape(chi.URLParam(r, "*"))
	if err != nil {
		return "", err
	}
	if id = strings.Trim(id, "/"); id == "" {
		return "", errors.New("model id cannot be empty")
	}
	return id, nil
}

func toModelInput(req ModelRequest) validation.ModelInput {
	return validation.ModelInput{
		ModelID:        req.ModelID,
		DisplayName:    req.DisplayName,
		Provider:       req.Provider,
		CostPerMessage: req.CostPerMessage,
		IsActive:       req.IsActive,
		IsFree:         req.IsFree,
	}
}

func toModelsResponse(models []db.ModelDescriptor) ModelsResponse {
	infos := make([]ModelInfo, 0, len(models))
	for _, m := range models {
		infos = append(infos, toModelInfo(m))
	}
	return ModelsResponse{Models: infos}
}

func toModelInfo(m db.ModelDescriptor) ModelInfo {
	return ModelInfo{
		ModelID:        m.ModelID,
		DisplayName:    m.DisplayName,
		Provider:       m.Provider,
		CostPerMessage: m.CostPerMessage,
		IsActive:       m.IsActive,
		IsFree:         m.IsFree,
		UpdatedAt:      m.UpdatedAt.Format(time.RFC3339),
	}
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	return &t
}
