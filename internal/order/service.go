package order

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"delivery-marketplace/internal/catalog"
	"delivery-marketplace/internal/driver"
	"delivery-marketplace/internal/earnings"
	"delivery-marketplace/internal/notify"
)

const defaultAvailableLimit = 10

type SubmitItemInput struct {
	MenuItemID uuid.UUID
	Quantity   int
	LineNotes  string
}

type SubmitInput struct {
	RestaurantID    uuid.UUID
	CustomerName    string
	CustomerPhone   string
	CustomerEmail   string
	DeliveryAddress string
	PaymentMethod   PaymentMethod
	DeliveryFee     float64
	Items           []SubmitItemInput
}

type Service interface {
	SubmitOrder(ctx context.Context, input SubmitInput) (*Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*Order, error)
	GetTracking(ctx context.Context, id uuid.UUID) ([]Tracking, error)
	ListOrdersForDriver(ctx context.Context, driverID uuid.UUID, status *Status) ([]Order, error)
	ListAvailableOrders(ctx context.Context, limit int) ([]Summary, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, newStatus Status, actor Actor) (*Order, error)
	AssignDriver(ctx context.Context, orderID, driverID uuid.UUID, actor Actor) (*Order, error)
	AcceptOrder(ctx context.Context, driverID, orderID uuid.UUID) (*Order, error)
	CancelOrder(ctx context.Context, orderID uuid.UUID, reason string, actor Actor) (*Order, error)
}

type service struct {
	repo     Repository
	catalog  catalog.Store
	drivers  driver.Repository
	notifier notify.Notifier
	rates    earnings.Rates
}

func NewService(repo Repository, cat catalog.Store, drivers driver.Repository, notifier notify.Notifier, rates earnings.Rates) Service {
	return &service{
		repo:     repo,
		catalog:  cat,
		drivers:  drivers,
		notifier: notifier,
		rates:    rates,
	}
}

func (s *service) SubmitOrder(ctx context.Context, input SubmitInput) (*Order, error) {
	if input.CustomerName == "" {
		return nil, fmt.Errorf("%w: customer name is required", ErrValidation)
	}
	if input.CustomerPhone == "" {
		return nil, fmt.Errorf("%w: customer phone is required", ErrValidation)
	}
	if input.DeliveryAddress == "" {
		return nil, fmt.Errorf("%w: delivery address is required", ErrValidation)
	}
	if !input.PaymentMethod.Valid() {
		return nil, fmt.Errorf("%w: invalid payment method %q", ErrValidation, input.PaymentMethod)
	}
	if len(input.Items) == 0 {
		return nil, fmt.Errorf("%w: order must contain at least one item", ErrValidation)
	}
	if input.DeliveryFee < 0 {
		return nil, fmt.Errorf("%w: delivery fee cannot be negative", ErrValidation)
	}

	restaurant, err := s.catalog.GetRestaurant(ctx, input.RestaurantID)
	if err != nil {
		if errors.Is(err, catalog.ErrRestaurantNotFound) {
			return nil, ErrRestaurantNotFound
		}
		log.Error().Err(err).Stringer("restaurant_id", input.RestaurantID).Msg("service: failed to resolve restaurant")
		return nil, fmt.Errorf("service: failed to resolve restaurant: %w", err)
	}
	if !restaurant.IsActive {
		return nil, ErrRestaurantNotFound
	}

	subtotal := 0.0
	items := make([]Item, 0, len(input.Items))
	for _, in := range input.Items {
		if in.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity for menu item %s must be greater than zero", ErrValidation, in.MenuItemID)
		}

		menuItem, err := s.catalog.GetMenuItem(ctx, in.MenuItemID)
		if err != nil {
			if errors.Is(err, catalog.ErrMenuItemNotFound) {
				return nil, fmt.Errorf("%w: %s", ErrMenuItemNotFound, in.MenuItemID)
			}
			log.Error().Err(err).Stringer("menu_item_id", in.MenuItemID).Msg("service: failed to resolve menu item")
			return nil, fmt.Errorf("service: failed to resolve menu item: %w", err)
		}
		if menuItem.RestaurantID != restaurant.ID {
			return nil, fmt.Errorf("%w: %s does not belong to restaurant %s", ErrMenuItemNotFound, in.MenuItemID, restaurant.ID)
		}
		if !menuItem.IsAvailable {
			return nil, fmt.Errorf("%w: %s is currently unavailable", ErrMenuItemNotFound, in.MenuItemID)
		}

		// Unit price is snapshotted from the catalog at submission time.
		items = append(items, Item{
			MenuItemID: in.MenuItemID,
			Quantity:   in.Quantity,
			UnitPrice:  menuItem.Price,
			LineNotes:  in.LineNotes,
		})
		subtotal += float64(in.Quantity) * menuItem.Price
	}

	o := &Order{
		OrderNumber:     NewOrderNumber(time.Now()),
		RestaurantID:    restaurant.ID,
		CustomerName:    input.CustomerName,
		CustomerPhone:   input.CustomerPhone,
		CustomerEmail:   input.CustomerEmail,
		DeliveryAddress: input.DeliveryAddress,
		PaymentMethod:   input.PaymentMethod,
		Items:           items,
		Subtotal:        subtotal,
		DeliveryFee:     input.DeliveryFee,
		TotalAmount:     subtotal + input.DeliveryFee,
		Status:          StatusPending,
		EstimatedTime:   "45-60 min",
	}

	if err := s.repo.Create(ctx, o); err != nil {
		log.Error().Err(err).Msg("service: failed to create order in repository")
		return nil, fmt.Errorf("service: failed to create order: %w", err)
	}

	log.Info().
		Stringer("order_id", o.ID).
		Str("order_number", o.OrderNumber).
		Stringer("restaurant_id", o.RestaurantID).
		Msg("service: order created")

	s.emit(ctx, notify.Intent{
		RecipientKind: notify.RecipientRestaurant,
		RecipientID:   restaurant.ID.String(),
		Type:          "order_created",
		Message:       fmt.Sprintf("New order %s received", o.OrderNumber),
		OrderID:       o.ID,
	})

	return o, nil
}

func (s *service) GetOrder(ctx context.Context, id uuid.UUID) (*Order, error) {
	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		log.Error().Err(err).Stringer("order_id", id).Msg("service: failed to fetch order by id")
		return nil, fmt.Errorf("service: failed to fetch order: %w", err)
	}
	return o, nil
}

func (s *service) GetTracking(ctx context.Context, id uuid.UUID) ([]Tracking, error) {
	if _, err := s.GetOrder(ctx, id); err != nil {
		return nil, err
	}
	entries, err := s.repo.GetTracking(ctx, id)
	if err != nil {
		log.Error().Err(err).Stringer("order_id", id).Msg("service: failed to fetch order tracking")
		return nil, fmt.Errorf("service: failed to fetch order tracking: %w", err)
	}
	return entries, nil
}

func (s *service) ListOrdersForDriver(ctx context.Context, driverID uuid.UUID, status *Status) ([]Order, error) {
	if status != nil && !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status filter %q", ErrValidation, *status)
	}
	orders, err := s.repo.ListByDriver(ctx, driverID, status)
	if err != nil {
		log.Error().Err(err).Stringer("driver_id", driverID).Msg("service: failed to fetch driver orders")
		return nil, fmt.Errorf("service: failed to fetch driver orders: %w", err)
	}
	return orders, nil
}

func (s *service) ListAvailableOrders(ctx context.Context, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = defaultAvailableLimit
	}
	summaries, err := s.repo.ListAvailable(ctx, limit)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to fetch available orders")
		return nil, fmt.Errorf("service: failed to fetch available orders: %w", err)
	}
	return summaries, nil
}

func (s *service) UpdateStatus(ctx context.Context, orderID uuid.UUID, newStatus Status, actor Actor) (*Order, error) {
	if !newStatus.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, newStatus)
	}

	current, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !CanTransition(current.Status, newStatus) {
		log.Warn().
			Stringer("order_id", orderID).
			Stringer("current_status", current.Status).
			Stringer("new_status", newStatus).
			Msg("service: invalid status transition attempt")
		return nil, fmt.Errorf("%w: from %s to %s", ErrInvalidTransition, current.Status, newStatus)
	}

	switch newStatus {
	case StatusCancelled:
		return s.CancelOrder(ctx, orderID, "", actor)
	case StatusDelivered:
		return s.deliver(ctx, current, actor)
	}

	tr := Tracking{
		OrderID:   orderID,
		Status:    newStatus,
		Message:   StatusMessage(newStatus),
		ActorID:   actorIDPtr(actor),
		ActorKind: actor.Kind,
	}
	if err := s.repo.TransitionStatus(ctx, orderID, current.Status, newStatus, tr); err != nil {
		if errors.Is(err, ErrOrderNotFound) || errors.Is(err, ErrStatusConflict) {
			return nil, err
		}
		log.Error().Err(err).Stringer("order_id", orderID).Stringer("new_status", newStatus).Msg("service: failed to update order status")
		return nil, fmt.Errorf("service: failed to update order status: %w", err)
	}

	log.Info().
		Stringer("order_id", orderID).
		Stringer("old_status", current.Status).
		Stringer("new_status", newStatus).
		Msg("service: order status updated")

	s.emit(ctx, notify.Intent{
		RecipientKind: notify.RecipientCustomer,
		Type:          "status_changed",
		Message:       StatusMessage(newStatus),
		OrderID:       orderID,
	})

	return s.GetOrder(ctx, orderID)
}

// deliver finalises the success path: status, tracking, earnings rows and
// driver release commit in a single transaction.
func (s *service) deliver(ctx context.Context, current *Order, actor Actor) (*Order, error) {
	if current.DriverID == nil {
		return nil, fmt.Errorf("%w: from %s to %s without a driver", ErrInvalidTransition, current.Status, StatusDelivered)
	}

	rates := s.rates
	if restaurant, err := s.catalog.GetRestaurant(ctx, current.RestaurantID); err == nil && restaurant.CommissionRate != nil {
		rates.RestaurantRate = *restaurant.CommissionRate
	}

	split := earnings.Calculate(current.Subtotal, current.DeliveryFee, rates)
	de, re := split.Rows(current.ID, *current.DriverID, current.RestaurantID)

	tr := Tracking{
		OrderID:   current.ID,
		Status:    StatusDelivered,
		Message:   StatusMessage(StatusDelivered),
		ActorID:   actorIDPtr(actor),
		ActorKind: actor.Kind,
	}

	err := s.repo.MarkDelivered(ctx, current.ID, current.Status, de, re, tr)
	if err != nil {
		if errors.Is(err, earnings.ErrAlreadySettled) {
			// A retried delivery transition; the first one already settled.
			log.Warn().Stringer("order_id", current.ID).Msg("service: earnings already settled, ignoring duplicate delivery")
			return s.GetOrder(ctx, current.ID)
		}
		if errors.Is(err, ErrOrderNotFound) || errors.Is(err, ErrStatusConflict) {
			return nil, err
		}
		log.Error().Err(err).Stringer("order_id", current.ID).Msg("service: failed to mark order delivered")
		return nil, fmt.Errorf("service: failed to mark order delivered: %w", err)
	}

	log.Info().
		Stringer("order_id", current.ID).
		Stringer("driver_id", *current.DriverID).
		Float64("driver_net", split.DriverNet).
		Float64("restaurant_net", split.RestaurantNet).
		Msg("service: order delivered, earnings settled")

	s.emit(ctx, notify.Intent{
		RecipientKind: notify.RecipientCustomer,
		Type:          "status_changed",
		Message:       StatusMessage(StatusDelivered),
		OrderID:       current.ID,
	})

	return s.GetOrder(ctx, current.ID)
}

func (s *service) AssignDriver(ctx context.Context, orderID, driverID uuid.UUID, actor Actor) (*Order, error) {
	current, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if current.DriverID != nil {
		return nil, ErrOrderAlreadyClaimed
	}

	selfAccept := actor.Kind == ActorDriver

	d, err := s.drivers.GetByID(ctx, driverID)
	if err != nil {
		if errors.Is(err, driver.ErrNotFound) {
			return nil, ErrDriverNotFound
		}
		log.Error().Err(err).Stringer("driver_id", driverID).Msg("service: failed to resolve driver")
		return nil, fmt.Errorf("service: failed to resolve driver: %w", err)
	}
	if !d.IsActive {
		return nil, ErrDriverNotFound
	}
	if selfAccept && !d.IsAvailable {
		return nil, ErrDriverUnavailable
	}

	// Driver self-accept lands on ready, admin assignment on assigned. Both
	// converge on picked_up.
	to := StatusAssigned
	if selfAccept {
		to = StatusReady
	}
	if !CanTransition(current.Status, to) {
		return nil, fmt.Errorf("%w: from %s to %s", ErrInvalidTransition, current.Status, to)
	}

	provisional := round2(current.DeliveryFee * (1 - s.rates.DriverRate))

	tr := Tracking{
		OrderID:   orderID,
		Status:    to,
		Message:   StatusMessage(to),
		ActorID:   actorIDPtr(actor),
		ActorKind: actor.Kind,
	}

	err = s.repo.ClaimForDriver(ctx, orderID, driverID, to, provisional, selfAccept, tr)
	if err != nil {
		switch {
		case errors.Is(err, ErrOrderAlreadyClaimed),
			errors.Is(err, ErrOrderNotFound),
			errors.Is(err, ErrDriverNotFound),
			errors.Is(err, ErrDriverUnavailable):
			return nil, err
		}
		log.Error().Err(err).Stringer("order_id", orderID).Stringer("driver_id", driverID).Msg("service: failed to claim order for driver")
		return nil, fmt.Errorf("service: failed to claim order: %w", err)
	}

	log.Info().
		Stringer("order_id", orderID).
		Stringer("driver_id", driverID).
		Stringer("status", to).
		Bool("self_accept", selfAccept).
		Msg("service: driver bound to order")

	s.emit(ctx, notify.Intent{
		RecipientKind: notify.RecipientDriver,
		RecipientID:   driverID.String(),
		Type:          "order_assigned",
		Message:       fmt.Sprintf("You have been assigned order %s", current.OrderNumber),
		OrderID:       orderID,
	})

	return s.GetOrder(ctx, orderID)
}

func (s *service) AcceptOrder(ctx context.Context, driverID, orderID uuid.UUID) (*Order, error) {
	return s.AssignDriver(ctx, orderID, driverID, Actor{ID: driverID, Kind: ActorDriver})
}

func (s *service) CancelOrder(ctx context.Context, orderID uuid.UUID, reason string, actor Actor) (*Order, error) {
	current, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if current.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: from %s to %s", ErrInvalidTransition, current.Status, StatusCancelled)
	}

	message := StatusMessage(StatusCancelled)
	if reason != "" {
		message = fmt.Sprintf("%s: %s", message, reason)
	}

	tr := Tracking{
		OrderID:   orderID,
		Status:    StatusCancelled,
		Message:   message,
		ActorID:   actorIDPtr(actor),
		ActorKind: actor.Kind,
	}

	if err := s.repo.Cancel(ctx, orderID, current.Status, tr); err != nil {
		if errors.Is(err, ErrOrderNotFound) || errors.Is(err, ErrStatusConflict) {
			return nil, err
		}
		log.Error().Err(err).Stringer("order_id", orderID).Msg("service: failed to cancel order")
		return nil, fmt.Errorf("service: failed to cancel order: %w", err)
	}

	log.Info().
		Stringer("order_id", orderID).
		Stringer("old_status", current.Status).
		Str("reason", reason).
		Msg("service: order cancelled")

	s.emit(ctx, notify.Intent{
		RecipientKind: notify.RecipientCustomer,
		Type:          "order_cancelled",
		Message:       message,
		OrderID:       orderID,
	})

	return s.GetOrder(ctx, orderID)
}

// emit produces a notification intent. Delivery failures never fail the
// operation that triggered them.
func (s *service) emit(ctx context.Context, intent notify.Intent) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, intent); err != nil {
		log.Warn().Err(err).Stringer("order_id", intent.OrderID).Str("type", intent.Type).Msg("service: failed to emit notification intent")
	}
}

func actorIDPtr(actor Actor) *uuid.UUID {
	if actor.ID == uuid.Nil {
		return nil
	}
	id := actor.ID
	return &id
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
