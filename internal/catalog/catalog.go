package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrRestaurantNotFound = errors.New("restaurant not found")
	ErrMenuItemNotFound   = errors.New("menu item not found")
)

type Restaurant struct {
	ID             uuid.UUID `json:"id" db:"id"`
	Name           string    `json:"name" db:"name"`
	Address        string    `json:"address" db:"address"`
	Phone          string    `json:"phone" db:"phone"`
	CommissionRate *float64  `json:"commission_rate,omitempty" db:"commission_rate"`
	IsActive       bool      `json:"is_active" db:"is_active"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

type MenuItem struct {
	ID           uuid.UUID `json:"id" db:"id"`
	RestaurantID uuid.UUID `json:"restaurant_id" db:"restaurant_id"`
	Name         string    `json:"name" db:"name"`
	Price        float64   `json:"price" db:"price"`
	IsAvailable  bool      `json:"is_available" db:"is_available"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Store is the read-only catalog lookup surface the order ledger depends on.
type Store interface {
	GetRestaurant(ctx context.Context, id uuid.UUID) (*Restaurant, error)
	GetMenuItem(ctx context.Context, id uuid.UUID) (*MenuItem, error)
}

type postgresStore struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) Store {
	return &postgresStore{db: db}
}

func (s *postgresStore) GetRestaurant(ctx context.Context, id uuid.UUID) (*Restaurant, error) {
	query := `
		SELECT id, name, address, phone, commission_rate, is_active, created_at, updated_at
		FROM restaurants
		WHERE id = $1
	`

	var r Restaurant
	err := s.db.QueryRow(ctx, query, id).Scan(
		&r.ID,
		&r.Name,
		&r.Address,
		&r.Phone,
		&r.CommissionRate,
		&r.IsActive,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRestaurantNotFound
		}
		return nil, fmt.Errorf("catalog: failed to select restaurant by id %s: %w", id, err)
	}

	return &r, nil
}

func (s *postgresStore) GetMenuItem(ctx context.Context, id uuid.UUID) (*MenuItem, error) {
	query := `
		SELECT id, restaurant_id, name, price, is_available, created_at, updated_at
		FROM menu_items
		WHERE id = $1
	`

	var m MenuItem
	err := s.db.QueryRow(ctx, query, id).Scan(
		&m.ID,
		&m.RestaurantID,
		&m.Name,
		&m.Price,
		&m.IsAvailable,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMenuItemNotFound
		}
		return nil, fmt.Errorf("catalog: failed to select menu item by id %s: %w", id, err)
	}

	return &m, nil
}
