package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"delivery-marketplace/internal/auth"
	"delivery-marketplace/internal/order"
)

type OrderItemRequest struct {
	MenuItemID string `json:"menu_item_id" validate:"required,uuid4"`
	Quantity   int    `json:"quantity" validate:"required,gt=0"`
	LineNotes  string `json:"line_notes,omitempty"`
}

type CreateOrderRequest struct {
	RestaurantID    string             `json:"restaurant_id" validate:"required,uuid4"`
	CustomerName    string             `json:"customer_name" validate:"required"`
	CustomerPhone   string             `json:"customer_phone" validate:"required"`
	CustomerEmail   string             `json:"customer_email,omitempty" validate:"omitempty,email"`
	DeliveryAddress string             `json:"delivery_address" validate:"required"`
	PaymentMethod   string             `json:"payment_method" validate:"required,oneof=cash card wallet"`
	DeliveryFee     float64            `json:"delivery_fee" validate:"gte=0"`
	Items           []OrderItemRequest `json:"items" validate:"required,min=1,dive"`
}

type CreateOrderResponse struct {
	ID            uuid.UUID    `json:"id"`
	OrderNumber   string       `json:"order_number"`
	Status        order.Status `json:"status"`
	EstimatedTime string       `json:"estimated_time,omitempty"`
	TotalAmount   float64      `json:"total_amount"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type CancelOrderRequest struct {
	Reason string `json:"reason,omitempty"`
}

type AssignDriverRequest struct {
	DriverID string `json:"driver_id" validate:"required,uuid4"`
}

// OrderHandler exposes the order ledger over HTTP.
type OrderHandler struct {
	svc      order.Service
	validate *validator.Validate
}

func NewOrderHandler(svc order.Service) *OrderHandler {
	return &OrderHandler{
		svc:      svc,
		validate: validator.New(),
	}
}

// CreateOrder handles customer order submission. Both external order entry
// points route here; validation lives in one place.
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		log.Warn().Err(err).Msg("Failed to decode create order request")
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		respondWithValidationError(w, err)
		return
	}

	restaurantID, err := uuid.FromString(req.RestaurantID)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid restaurant_id")
		return
	}

	input := order.SubmitInput{
		RestaurantID:    restaurantID,
		CustomerName:    req.CustomerName,
		CustomerPhone:   req.CustomerPhone,
		CustomerEmail:   req.CustomerEmail,
		DeliveryAddress: req.DeliveryAddress,
		PaymentMethod:   order.PaymentMethod(req.PaymentMethod),
		DeliveryFee:     req.DeliveryFee,
	}
	for _, item := range req.Items {
		menuItemID, err := uuid.FromString(item.MenuItemID)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid menu_item_id")
			return
		}
		input.Items = append(input.Items, order.SubmitItemInput{
			MenuItemID: menuItemID,
			Quantity:   item.Quantity,
			LineNotes:  item.LineNotes,
		})
	}

	created, err := h.svc.SubmitOrder(r.Context(), input)
	if err != nil {
		log.Error().Err(err).Msg("Failed to submit order via service")
		respondWithError(w, mapErrorToStatusCode(err), clientMessage(err, "Failed to create order"))
		return
	}

	respondWithJSON(w, http.StatusCreated, CreateOrderResponse{
		ID:            created.ID,
		OrderNumber:   created.OrderNumber,
		Status:        created.Status,
		EstimatedTime: created.EstimatedTime,
		TotalAmount:   created.TotalAmount,
	})
}

func (h *OrderHandler) GetOrderByID(w http.ResponseWriter, r *http.Request) {
	orderID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	found, err := h.svc.GetOrder(r.Context(), orderID)
	if err != nil {
		respondWithError(w, mapErrorToStatusCode(err), clientMessage(err, "Failed to get order"))
		return
	}

	respondWithJSON(w, http.StatusOK, found)
}

func (h *OrderHandler) GetOrderTracking(w http.ResponseWriter, r *http.Request) {
	orderID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	entries, err := h.svc.GetTracking(r.Context(), orderID)
	if err != nil {
		respondWithError(w, mapErrorToStatusCode(err), clientMessage(err, "Failed to get order tracking"))
		return
	}

	respondWithJSON(w, http.StatusOK, entries)
}

func (h *OrderHandler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondWithValidationError(w, err)
		return
	}

	updated, err := h.svc.UpdateStatus(r.Context(), orderID, order.Status(req.Status), actorFromContext(r))
	if err != nil {
		log.Warn().Err(err).Stringer("order_id", orderID).Str("new_status", req.Status).Msg("Failed to update order status")
		respondWithError(w, mapErrorToStatusCode(err), clientMessage(err, "Failed to update order status"))
		return
	}

	respondWithJSON(w, http.StatusOK, updated)
}

func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	var req CancelOrderRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid request payload")
			return
		}
	}

	cancelled, err := h.svc.CancelOrder(r.Context(), orderID, req.Reason, actorFromContext(r))
	if err != nil {
		respondWithError(w, mapErrorToStatusCode(err), clientMessage(err, "Failed to cancel order"))
		return
	}

	respondWithJSON(w, http.StatusOK, cancelled)
}

func (h *OrderHandler) AssignDriver(w http.ResponseWriter, r *http.Request) {
	orderID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	var req AssignDriverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondWithValidationError(w, err)
		return
	}

	driverID, err := uuid.FromString(req.DriverID)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid driver_id")
		return
	}

	assigned, err := h.svc.AssignDriver(r.Context(), orderID, driverID, actorFromContext(r))
	if err != nil {
		respondWithError(w, mapErrorToStatusCode(err), clientMessage(err, "Failed to assign driver"))
		return
	}

	respondWithJSON(w, http.StatusOK, assigned)
}

// ListAvailableOrders is the driver matching surface's read side. Safe to
// poll.
func (h *OrderHandler) ListAvailableOrders(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid limit parameter")
			return
		}
		limit = n
	}

	summaries, err := h.svc.ListAvailableOrders(r.Context(), limit)
	if err != nil {
		respondWithError(w, mapErrorToStatusCode(err), clientMessage(err, "Failed to list available orders"))
		return
	}

	respondWithJSON(w, http.StatusOK, summaries)
}

// AcceptOrder atomically claims an order for the authenticated driver.
func (h *OrderHandler) AcceptOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	principal, ok := auth.FromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Missing principal")
		return
	}
	driverID, err := uuid.FromString(principal.UserID)
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, "Invalid principal id")
		return
	}

	accepted, err := h.svc.AcceptOrder(r.Context(), driverID, orderID)
	if err != nil {
		log.Warn().Err(err).Stringer("order_id", orderID).Stringer("driver_id", driverID).Msg("Failed to accept order")
		respondWithError(w, mapErrorToStatusCode(err), clientMessage(err, "Failed to accept order"))
		return
	}

	respondWithJSON(w, http.StatusOK, accepted)
}

func (h *OrderHandler) ListOrdersForDriver(w http.ResponseWriter, r *http.Request) {
	driverID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	var statusFilter *order.Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		s := order.Status(raw)
		statusFilter = &s
	}

	orders, err := h.svc.ListOrdersForDriver(r.Context(), driverID, statusFilter)
	if err != nil {
		respondWithError(w, mapErrorToStatusCode(err), clientMessage(err, "Failed to list driver orders"))
		return
	}

	respondWithJSON(w, http.StatusOK, orders)
}

func parseIDParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	raw := chi.URLParam(r, name)
	id, err := uuid.FromString(raw)
	if err != nil {
		log.Warn().Err(err).Str(name, raw).Msg("Failed to parse id parameter from URL")
		respondWithError(w, http.StatusBadRequest, "Invalid id parameter")
		return uuid.Nil, false
	}
	return id, true
}

// actorFromContext derives the ledger actor from the authenticated principal.
// Unauthenticated (customer-facing) calls are recorded as system actions.
func actorFromContext(r *http.Request) order.Actor {
	principal, ok := auth.FromContext(r.Context())
	if !ok {
		return order.SystemActor
	}

	id, err := uuid.FromString(principal.UserID)
	if err != nil {
		id = uuid.Nil
	}

	switch principal.Role {
	case auth.RoleAdmin:
		return order.Actor{ID: id, Kind: order.ActorAdmin}
	case auth.RoleDriver:
		return order.Actor{ID: id, Kind: order.ActorDriver}
	default:
		return order.SystemActor
	}
}
