package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"carpool-backend/application/services"
	"carpool-backend/domain/carpool"
	"carpool-backend/pkg/utils"
)

// UserHandler handles user-related HTTP requests
type UserHandler struct {
	users  *services.UserService
	logger *zap.Logger
}

// NewUserHandler creates a new user handler
func NewUserHandler(users *services.UserService, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		users:  users,
		logger: logger,
	}
}

// CreateUserRequest represents the request body for registering a user
type CreateUserRequest struct {
	Name      string  `json:"name" validate:"required,min=1,max=100"`
	Longitude float64 `json:"longitude" validate:"min=-180,max=180"`
	Latitude  float64 `json:"latitude" validate:"min=-90,max=90"`
}

// UpdateLocationRequest represents the request body for a location update
type UpdateLocationRequest struct {
	Longitude float64 `json:"longitude" validate:"min=-180,max=180"`
	Latitude  float64 `json:"latitude" validate:"min=-90,max=90"`
}

// CreateUser handles POST /user
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	user := carpool.User{
		Name:      req.Name,
		Longitude: req.Longitude,
		Latitude:  req.Latitude,
	}
	if err := h.users.Register(r.Context(), user); err != nil {
		respondAppError(w, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusCreated, user)
}

// GetUser handles GET /user/{id}
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "id")

	user, err := h.users.Get(r.Context(), name)
	if err != nil {
		respondAppError(w, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, user)
}

// UpdateLocation handles PUT /user/{id}
func (h *UserHandler) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "id")

	var req UpdateLocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	loc := carpool.Location{Longitude: req.Longitude, Latitude: req.Latitude}
	if err := h.users.UpdateLocation(r.Context(), name, loc); err != nil {
		respondAppError(w, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"name":      name,
		"longitude": req.Longitude,
		"latitude":  req.Latitude,
	})
}

// ListParticipations handles GET /carpool/participants/{id}
func (h *UserHandler) ListParticipations(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "id")

	memberships, err := h.users.Participations(r.Context(), name)
	if err != nil {
		respondAppError(w, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, memberships)
}
