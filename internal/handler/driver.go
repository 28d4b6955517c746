package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"delivery-marketplace/internal/driver"
)

type RegisterDriverRequest struct {
	Name     string `json:"name" validate:"required,min=2"`
	Phone    string `json:"phone" validate:"required,min=5"`
	Password string `json:"password" validate:"required,min=8"`
}

type UpdateDriverProfileRequest struct {
	Name     string `json:"name" validate:"required,min=2"`
	Phone    string `json:"phone" validate:"required,min=5"`
	Location string `json:"location,omitempty"`
}

type UpdateDriverLocationRequest struct {
	Location string `json:"location" validate:"required"`
}

type DriverHandler struct {
	svc      driver.Service
	validate *validator.Validate
}

func NewDriverHandler(svc driver.Service) *DriverHandler {
	return &DriverHandler{
		svc:      svc,
		validate: validator.New(),
	}
}

func (h *DriverHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterDriverRequest

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		respondWithValidationError(w, err)
		return
	}

	created, err := h.svc.Register(r.Context(), driver.RegisterInput{
		Name:     req.Name,
		Phone:    req.Phone,
		Password: req.Password,
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to register driver via service")
		respondWithError(w, mapErrorToStatusCode(err), clientMessage(err, "Failed to register driver"))
		return
	}

	respondWithJSON(w, http.StatusCreated, created)
}

func (h *DriverHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	driverID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	found, err := h.svc.GetByID(r.Context(), driverID)
	if err != nil {
		respondWithError(w, mapErrorToStatusCode(err), clientMessage(err, "Failed to get driver"))
		return
	}

	respondWithJSON(w, http.StatusOK, found)
}

// UpdateProfile updates name, phone and location. Availability is owned by
// the order ledger and cannot be changed here.
func (h *DriverHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	driverID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	var req UpdateDriverProfileRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		respondWithValidationError(w, err)
		return
	}

	updated, err := h.svc.UpdateProfile(r.Context(), driverID, req.Name, req.Phone, req.Location)
	if err != nil {
		respondWithError(w, mapErrorToStatusCode(err), clientMessage(err, "Failed to update driver profile"))
		return
	}

	respondWithJSON(w, http.StatusOK, updated)
}

func (h *DriverHandler) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	driverID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	var req UpdateDriverLocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondWithValidationError(w, err)
		return
	}

	if err := h.svc.UpdateLocation(r.Context(), driverID, req.Location); err != nil {
		respondWithError(w, mapErrorToStatusCode(err), clientMessage(err, "Failed to update driver location"))
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
