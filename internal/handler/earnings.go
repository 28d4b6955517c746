package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"delivery-marketplace/internal/earnings"
)

type UpdateSettlementRequest struct {
	Party  string `json:"party" validate:"required,oneof=driver restaurant"`
	Status string `json:"settlement_status" validate:"required,oneof=paid cancelled"`
}

type OrderEarningsResponse struct {
	Driver     *earnings.DriverEarning     `json:"driver"`
	Restaurant *earnings.RestaurantEarning `json:"restaurant"`
}

// EarningsHandler is the read and settlement surface over the earnings ledger.
// The rows themselves are only ever written by the delivered transition.
type EarningsHandler struct {
	repo     earnings.Repository
	validate *validator.Validate
}

func NewEarningsHandler(repo earnings.Repository) *EarningsHandler {
	return &EarningsHandler{
		repo:     repo,
		validate: validator.New(),
	}
}

// GetOrderEarnings returns both settlement rows for a delivered order.
func (h *EarningsHandler) GetOrderEarnings(w http.ResponseWriter, r *http.Request) {
	orderID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	de, err := h.repo.GetDriverEarningByOrder(r.Context(), orderID)
	if err != nil && !errors.Is(err, earnings.ErrNotFound) {
		respondWithError(w, http.StatusInternalServerError, "Failed to get order earnings")
		return
	}
	re, err := h.repo.GetRestaurantEarningByOrder(r.Context(), orderID)
	if err != nil && !errors.Is(err, earnings.ErrNotFound) {
		respondWithError(w, http.StatusInternalServerError, "Failed to get order earnings")
		return
	}

	if de == nil && re == nil {
		respondWithError(w, http.StatusNotFound, "No earnings settled for this order")
		return
	}

	respondWithJSON(w, http.StatusOK, OrderEarningsResponse{Driver: de, Restaurant: re})
}

func (h *EarningsHandler) ListDriverEarnings(w http.ResponseWriter, r *http.Request) {
	driverID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	result, err := h.repo.ListDriverEarnings(r.Context(), driverID)
	if err != nil {
		log.Error().Err(err).Stringer("driver_id", driverID).Msg("Failed to list driver earnings")
		respondWithError(w, http.StatusInternalServerError, "Failed to list driver earnings")
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

func (h *EarningsHandler) ListRestaurantEarnings(w http.ResponseWriter, r *http.Request) {
	restaurantID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	result, err := h.repo.ListRestaurantEarnings(r.Context(), restaurantID)
	if err != nil {
		log.Error().Err(err).Stringer("restaurant_id", restaurantID).Msg("Failed to list restaurant earnings")
		respondWithError(w, http.StatusInternalServerError, "Failed to list restaurant earnings")
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

// UpdateSettlement marks one party's earnings row for an order as paid or
// cancelled.
func (h *EarningsHandler) UpdateSettlement(w http.ResponseWriter, r *http.Request) {
	orderID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	var req UpdateSettlementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondWithValidationError(w, err)
		return
	}

	status := earnings.SettlementStatus(req.Status)

	var err error
	if req.Party == "driver" {
		err = h.repo.UpdateDriverSettlement(r.Context(), orderID, status)
	} else {
		err = h.repo.UpdateRestaurantSettlement(r.Context(), orderID, status)
	}
	if err != nil {
		if errors.Is(err, earnings.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "No earnings settled for this order")
			return
		}
		log.Error().Err(err).Stringer("order_id", orderID).Str("party", req.Party).Msg("Failed to update settlement status")
		respondWithError(w, http.StatusInternalServerError, "Failed to update settlement status")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
