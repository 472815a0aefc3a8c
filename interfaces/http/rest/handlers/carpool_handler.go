package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"carpool-backend/application/services"
	"carpool-backend/pkg/utils"
)

// CarpoolHandler handles carpool lifecycle HTTP requests
type CarpoolHandler struct {
	carpools *services.CarpoolService
	logger   *zap.Logger
}

// NewCarpoolHandler creates a new carpool handler
func NewCarpoolHandler(carpools *services.CarpoolService, logger *zap.Logger) *CarpoolHandler {
	return &CarpoolHandler{
		carpools: carpools,
		logger:   logger,
	}
}

// CreateCarpoolRequest represents the request body for opening a carpool
type CreateCarpoolRequest struct {
	Host         string `json:"host" validate:"required,min=1,max=100"`
	Genre        string `json:"genre" validate:"required,min=1,max=50"`
	LicencePlate string `json:"licencePlate" validate:"required,min=1,max=20"`
}

// JoinCarpoolRequest represents the request body for joining
type JoinCarpoolRequest struct {
	Participant string `json:"participant" validate:"required,min=1,max=100"`
}

// StartCarpoolRequest represents the request body for starting
type StartCarpoolRequest struct {
	User string `json:"user" validate:"required,min=1,max=100"`
}

// EndCarpoolRequest represents the request body for closing
type EndCarpoolRequest struct {
	User   string `json:"user" validate:"required,min=1,max=100"`
	Winner string `json:"winner" validate:"required,min=1,max=100"`
}

// CreateCarpool handles POST /carpool
func (h *CarpoolHandler) CreateCarpool(w http.ResponseWriter, r *http.Request) {
	var req CreateCarpoolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	c, err := h.carpools.Create(r.Context(), req.Host, req.Genre, req.LicencePlate)
	if err != nil {
		respondAppError(w, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusCreated, c)
}

// GetCarpool handles GET /carpool/{id}
func (h *CarpoolHandler) GetCarpool(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	c, err := h.carpools.Get(r.Context(), id)
	if err != nil {
		respondAppError(w, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, c)
}

// GetParticipants handles GET /carpool/{id}/participants
func (h *CarpoolHandler) GetParticipants(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	crew, err := h.carpools.Participants(r.Context(), id)
	if err != nil {
		respondAppError(w, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, crew)
}

// JoinCarpool handles POST /carpool/{id}/join
func (h *CarpoolHandler) JoinCarpool(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req JoinCarpoolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	if err := h.carpools.Join(r.Context(), id, req.Participant); err != nil {
		respondAppError(w, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"id":          id,
		"participant": req.Participant,
	})
}

// StartCarpool handles POST /carpool/{id}/start
func (h *CarpoolHandler) StartCarpool(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req StartCarpoolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	if err := h.carpools.Start(r.Context(), id, req.User); err != nil {
		respondAppError(w, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, map[string]interface{}{"id": id, "status": "started"})
}

// EndCarpool handles POST /carpool/{id}/end
func (h *CarpoolHandler) EndCarpool(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req EndCarpoolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	if err := h.carpools.Close(r.Context(), id, req.User, req.Winner); err != nil {
		respondAppError(w, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"id":     id,
		"status": "closed",
		"winner": req.Winner,
	})
}

// ListAvailable handles GET /carpool/available and
// GET /carpool/available/genre/{genre}
func (h *CarpoolHandler) ListAvailable(w http.ResponseWriter, r *http.Request) {
	genre := chi.URLParam(r, "genre")

	carpools, err := h.carpools.ListAvailable(r.Context(), genre)
	if err != nil {
		respondAppError(w, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, carpools)
}
