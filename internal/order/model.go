package order

import (
	"time"

	"github.com/gofrs/uuid"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusAssigned  Status = "assigned"
	StatusReady     Status = "ready"
	StatusPickedUp  Status = "picked_up"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

func (s Status) String() string {
	return string(s)
}

func (s Status) Valid() bool {
	_, ok := allowedTransitions[s]
	return ok
}

// IsTerminal reports whether no further transitions are possible.
func (s Status) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// allowedTransitions is the single source of truth for the order lifecycle.
// "assigned" is the admin-assignment counterpart of "ready"; both converge
// on "picked_up".
var allowedTransitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusConfirmed: true,
		StatusCancelled: true,
	},
	StatusConfirmed: {
		StatusAssigned:  true,
		StatusReady:     true,
		StatusCancelled: true,
	},
	StatusAssigned: {
		StatusReady:     true,
		StatusPickedUp:  true,
		StatusCancelled: true,
	},
	StatusReady: {
		StatusPickedUp:  true,
		StatusCancelled: true,
	},
	StatusPickedUp: {
		StatusDelivered: true,
		StatusCancelled: true,
	},
	StatusDelivered: {},
	StatusCancelled: {},
}

// CanTransition reports whether the lifecycle permits moving from one status
// to another.
func CanTransition(from, to Status) bool {
	return allowedTransitions[from][to]
}

// statusMessages are the human-readable messages written to the tracking log
// on each transition.
var statusMessages = map[Status]string{
	StatusPending:   "Order received and awaiting confirmation",
	StatusConfirmed: "Order confirmed by the restaurant",
	StatusAssigned:  "Driver assigned to the order",
	StatusReady:     "Driver accepted the order and is heading to the restaurant",
	StatusPickedUp:  "Order picked up, out for delivery",
	StatusDelivered: "Order delivered",
	StatusCancelled: "Order cancelled",
}

func StatusMessage(s Status) string {
	return statusMessages[s]
}

type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "cash"
	PaymentCard   PaymentMethod = "card"
	PaymentWallet PaymentMethod = "wallet"
)

func (p PaymentMethod) Valid() bool {
	switch p {
	case PaymentCash, PaymentCard, PaymentWallet:
		return true
	}
	return false
}

type ActorKind string

const (
	ActorSystem ActorKind = "system"
	ActorAdmin  ActorKind = "admin"
	ActorDriver ActorKind = "driver"
)

// Actor identifies who triggered a ledger operation. The zero ActorID is
// allowed for system actions.
type Actor struct {
	ID   uuid.UUID
	Kind ActorKind
}

var SystemActor = Actor{Kind: ActorSystem}

type Item struct {
	ID         uuid.UUID `json:"id" db:"id"`
	OrderID    uuid.UUID `json:"order_id" db:"order_id"`
	MenuItemID uuid.UUID `json:"menu_item_id" db:"menu_item_id"`
	Quantity   int       `json:"quantity" db:"quantity"`
	UnitPrice  float64   `json:"unit_price" db:"unit_price"`
	LineNotes  string    `json:"line_notes,omitempty" db:"line_notes"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

type Order struct {
	ID                 uuid.UUID     `json:"id" db:"id"`
	OrderNumber        string        `json:"order_number" db:"order_number"`
	RestaurantID       uuid.UUID     `json:"restaurant_id" db:"restaurant_id"`
	DriverID           *uuid.UUID    `json:"driver_id,omitempty" db:"driver_id"`
	CustomerName       string        `json:"customer_name" db:"customer_name"`
	CustomerPhone      string        `json:"customer_phone" db:"customer_phone"`
	CustomerEmail      string        `json:"customer_email,omitempty" db:"customer_email"`
	DeliveryAddress    string        `json:"delivery_address" db:"delivery_address"`
	PaymentMethod      PaymentMethod `json:"payment_method" db:"payment_method"`
	Items              []Item        `json:"items" db:"-"`
	Subtotal           float64       `json:"subtotal" db:"subtotal"`
	DeliveryFee        float64       `json:"delivery_fee" db:"delivery_fee"`
	TotalAmount        float64       `json:"total_amount" db:"total_amount"`
	DriverEarnings     *float64      `json:"driver_earnings,omitempty" db:"driver_earnings"`
	Status             Status        `json:"status" db:"status"`
	EstimatedTime      string        `json:"estimated_time,omitempty" db:"estimated_time"`
	ActualDeliveryTime *time.Time    `json:"actual_delivery_time,omitempty" db:"actual_delivery_time"`
	CreatedAt          time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at" db:"updated_at"`
}

// Tracking is one append-only entry of an order's status history. Entries are
// never mutated or deleted.
type Tracking struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	OrderID   uuid.UUID  `json:"order_id" db:"order_id"`
	Status    Status     `json:"status" db:"status"`
	Message   string     `json:"message" db:"message"`
	Latitude  *float64   `json:"latitude,omitempty" db:"latitude"`
	Longitude *float64   `json:"longitude,omitempty" db:"longitude"`
	ActorID   *uuid.UUID `json:"actor_id,omitempty" db:"actor_id"`
	ActorKind ActorKind  `json:"actor_kind" db:"actor_kind"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}

// Summary is the reduced order view the driver matching surface exposes.
type Summary struct {
	ID              uuid.UUID `json:"id"`
	OrderNumber     string    `json:"order_number"`
	RestaurantID    uuid.UUID `json:"restaurant_id"`
	DeliveryAddress string    `json:"delivery_address"`
	DeliveryFee     float64   `json:"delivery_fee"`
	TotalAmount     float64   `json:"total_amount"`
	CreatedAt       time.Time `json:"created_at"`
}
