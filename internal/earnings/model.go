package earnings

import (
	"time"

	"github.com/gofrs/uuid"
)

type SettlementStatus string

const (
	SettlementPending   SettlementStatus = "pending"
	SettlementPaid      SettlementStatus = "paid"
	SettlementCancelled SettlementStatus = "cancelled"
)

func (s SettlementStatus) Valid() bool {
	switch s {
	case SettlementPending, SettlementPaid, SettlementCancelled:
		return true
	}
	return false
}

// RestaurantEarning is the per-order settlement row owed to a restaurant.
type RestaurantEarning struct {
	ID               uuid.UUID        `json:"id" db:"id"`
	OrderID          uuid.UUID        `json:"order_id" db:"order_id"`
	RestaurantID     uuid.UUID        `json:"restaurant_id" db:"restaurant_id"`
	GrossAmount      float64          `json:"gross_amount" db:"gross_amount"`
	Commission       float64          `json:"commission" db:"commission"`
	NetAmount        float64          `json:"net_amount" db:"net_amount"`
	SettlementStatus SettlementStatus `json:"settlement_status" db:"settlement_status"`
	CreatedAt        time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at" db:"updated_at"`
}

// DriverEarning is the per-order settlement row owed to the assigned driver.
type DriverEarning struct {
	ID               uuid.UUID        `json:"id" db:"id"`
	OrderID          uuid.UUID        `json:"order_id" db:"order_id"`
	DriverID         uuid.UUID        `json:"driver_id" db:"driver_id"`
	GrossAmount      float64          `json:"gross_amount" db:"gross_amount"`
	Commission       float64          `json:"commission" db:"commission"`
	NetAmount        float64          `json:"net_amount" db:"net_amount"`
	SettlementStatus SettlementStatus `json:"settlement_status" db:"settlement_status"`
	CreatedAt        time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at" db:"updated_at"`
}
