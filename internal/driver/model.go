package driver

import (
	"time"

	"github.com/gofrs/uuid"
)

type Driver struct {
	ID              uuid.UUID `json:"id" db:"id"`
	Name            string    `json:"name" db:"name"`
	Phone           string    `json:"phone" db:"phone"`
	PasswordHash    string    `json:"-" db:"password_hash"`
	IsAvailable     bool      `json:"is_available" db:"is_available"`
	IsActive        bool      `json:"is_active" db:"is_active"`
	CurrentLocation string    `json:"current_location,omitempty" db:"current_location"`
	TotalEarnings   float64   `json:"total_earnings" db:"total_earnings"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}
