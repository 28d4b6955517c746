package earnings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound = errors.New("earnings row not found")

	// ErrAlreadySettled means earnings rows for the order already exist. The
	// unique constraint on order_id is the idempotency guard against retried
	// delivered transitions; callers treat this as a no-op success.
	ErrAlreadySettled = errors.New("earnings already settled for order")
)

// InsertPairTx writes both settlement rows inside the caller's transaction.
// The order ledger calls this from the delivered transition so that status,
// tracking and earnings commit or roll back together.
func InsertPairTx(ctx context.Context, tx pgx.Tx, de DriverEarning, re RestaurantEarning) error {
	deID, err := uuid.NewV4()
	if err != nil {
		return fmt.Errorf("earnings: failed to generate id: %w", err)
	}
	reID, err := uuid.NewV4()
	if err != nil {
		return fmt.Errorf("earnings: failed to generate id: %w", err)
	}

	now := time.Now().UTC()

	_, err = tx.Exec(ctx, `
		INSERT INTO driver_earnings (id, order_id, driver_id, gross_amount, commission, net_amount, settlement_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
	`, deID, de.OrderID, de.DriverID, de.GrossAmount, de.Commission, de.NetAmount, de.SettlementStatus, now)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadySettled
		}
		return fmt.Errorf("earnings: failed to insert driver earnings for order %s: %w", de.OrderID, err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO restaurant_earnings (id, order_id, restaurant_id, gross_amount, commission, net_amount, settlement_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
	`, reID, re.OrderID, re.RestaurantID, re.GrossAmount, re.Commission, re.NetAmount, re.SettlementStatus, now)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadySettled
		}
		return fmt.Errorf("earnings: failed to insert restaurant earnings for order %s: %w", re.OrderID, err)
	}

	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

// Repository is the read/settlement surface over the earnings ledger rows.
type Repository interface {
	GetDriverEarningByOrder(ctx context.Context, orderID uuid.UUID) (*DriverEarning, error)
	GetRestaurantEarningByOrder(ctx context.Context, orderID uuid.UUID) (*RestaurantEarning, error)
	ListDriverEarnings(ctx context.Context, driverID uuid.UUID) ([]DriverEarning, error)
	ListRestaurantEarnings(ctx context.Context, restaurantID uuid.UUID) ([]RestaurantEarning, error)
	UpdateDriverSettlement(ctx context.Context, orderID uuid.UUID, status SettlementStatus) error
	UpdateRestaurantSettlement(ctx context.Context, orderID uuid.UUID, status SettlementStatus) error
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) GetDriverEarningByOrder(ctx context.Context, orderID uuid.UUID) (*DriverEarning, error) {
	var e DriverEarning
	err := r.db.QueryRow(ctx, `
		SELECT id, order_id, driver_id, gross_amount, commission, net_amount, settlement_status, created_at, updated_at
		FROM driver_earnings
		WHERE order_id = $1
	`, orderID).Scan(&e.ID, &e.OrderID, &e.DriverID, &e.GrossAmount, &e.Commission, &e.NetAmount, &e.SettlementStatus, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("earnings: failed to select driver earnings for order %s: %w", orderID, err)
	}
	return &e, nil
}

func (r *postgresRepository) GetRestaurantEarningByOrder(ctx context.Context, orderID uuid.UUID) (*RestaurantEarning, error) {
	var e RestaurantEarning
	err := r.db.QueryRow(ctx, `
		SELECT id, order_id, restaurant_id, gross_amount, commission, net_amount, settlement_status, created_at, updated_at
		FROM restaurant_earnings
		WHERE order_id = $1
	`, orderID).Scan(&e.ID, &e.OrderID, &e.RestaurantID, &e.GrossAmount, &e.Commission, &e.NetAmount, &e.SettlementStatus, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("earnings: failed to select restaurant earnings for order %s: %w", orderID, err)
	}
	return &e, nil
}

func (r *postgresRepository) ListDriverEarnings(ctx context.Context, driverID uuid.UUID) ([]DriverEarning, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, order_id, driver_id, gross_amount, commission, net_amount, settlement_status, created_at, updated_at
		FROM driver_earnings
		WHERE driver_id = $1
		ORDER BY created_at DESC
	`, driverID)
	if err != nil {
		return nil, fmt.Errorf("earnings: failed to query driver earnings for %s: %w", driverID, err)
	}
	defer rows.Close()

	result := make([]DriverEarning, 0)
	for rows.Next() {
		var e DriverEarning
		if err := rows.Scan(&e.ID, &e.OrderID, &e.DriverID, &e.GrossAmount, &e.Commission, &e.NetAmount, &e.SettlementStatus, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("earnings: failed to scan driver earnings row: %w", err)
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("earnings: error iterating driver earnings: %w", err)
	}
	return result, nil
}

func (r *postgresRepository) ListRestaurantEarnings(ctx context.Context, restaurantID uuid.UUID) ([]RestaurantEarning, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, order_id, restaurant_id, gross_amount, commission, net_amount, settlement_status, created_at, updated_at
		FROM restaurant_earnings
		WHERE restaurant_id = $1
		ORDER BY created_at DESC
	`, restaurantID)
	if err != nil {
		return nil, fmt.Errorf("earnings: failed to query restaurant earnings for %s: %w", restaurantID, err)
	}
	defer rows.Close()

	result := make([]RestaurantEarning, 0)
	for rows.Next() {
		var e RestaurantEarning
		if err := rows.Scan(&e.ID, &e.OrderID, &e.RestaurantID, &e.GrossAmount, &e.Commission, &e.NetAmount, &e.SettlementStatus, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("earnings: failed to scan restaurant earnings row: %w", err)
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("earnings: error iterating restaurant earnings: %w", err)
	}
	return result, nil
}

func (r *postgresRepository) UpdateDriverSettlement(ctx context.Context, orderID uuid.UUID, status SettlementStatus) error {
	cmdTag, err := r.db.Exec(ctx, `
		UPDATE driver_earnings SET settlement_status = $2, updated_at = $3 WHERE order_id = $1
	`, orderID, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("earnings: failed to update driver settlement for order %s: %w", orderID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *postgresRepository) UpdateRestaurantSettlement(ctx context.Context, orderID uuid.UUID, status SettlementStatus) error {
	cmdTag, err := r.db.Exec(ctx, `
		UPDATE restaurant_earnings SET settlement_status = $2, updated_at = $3 WHERE order_id = $1
	`, orderID, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("earnings: failed to update restaurant settlement for order %s: %w", orderID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
