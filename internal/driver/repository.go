package driver

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
	ErrNotFound    = errors.New("driver not found")
	ErrPhoneExists = errors.New("driver with this phone already exists")
)

type Repository interface {
	Create(ctx context.Context, d *Driver) error
	GetByID(ctx context.Context, id uuid.UUID) (*Driver, error)
	GetByPhone(ctx context.Context, phone string) (*Driver, error)
	// UpdateProfile writes name, phone and location only. Availability is
	// owned by the order ledger and is deliberately outside this statement.
	UpdateProfile(ctx context.Context, id uuid.UUID, name, phone, location string) (*Driver, error)
	UpdateLocation(ctx context.Context, id uuid.UUID, location string) error
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

const driverColumns = `id, name, phone, password_hash, is_available, is_active, current_location, total_earnings, created_at, updated_at`

func scanDriver(row pgx.Row) (*Driver, error) {
	var d Driver
	err := row.Scan(
		&d.ID,
		&d.Name,
		&d.Phone,
		&d.PasswordHash,
		&d.IsAvailable,
		&d.IsActive,
		&d.CurrentLocation,
		&d.TotalEarnings,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *postgresRepository) Create(ctx context.Context, d *Driver) error {
	if d.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return fmt.Errorf("repository: failed to generate driver ID: %w", err)
		}
		d.ID = id
	}

	now := time.Now().UTC()
	d.CreatedAt = now
	d.UpdatedAt = now

	query := `
		INSERT INTO drivers (id, name, phone, password_hash, is_available, is_active, current_location, total_earnings, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.Exec(ctx, query,
		d.ID,
		d.Name,
		d.Phone,
		d.PasswordHash,
		d.IsAvailable,
		d.IsActive,
		d.CurrentLocation,
		d.TotalEarnings,
		d.CreatedAt,
		d.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return ErrPhoneExists
		}
		return fmt.Errorf("repository: failed to insert driver: %w", err)
	}

	return nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Driver, error) {
	d, err := scanDriver(r.db.QueryRow(ctx, `SELECT `+driverColumns+` FROM drivers WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("repository: failed to select driver by id %s: %w", id, err)
	}
	return d, nil
}

func (r *postgresRepository) GetByPhone(ctx context.Context, phone string) (*Driver, error) {
	d, err := scanDriver(r.db.QueryRow(ctx, `SELECT `+driverColumns+` FROM drivers WHERE phone = $1`, phone))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("repository: failed to select driver by phone: %w", err)
	}
	return d, nil
}

func (r *postgresRepository) UpdateProfile(ctx context.Context, id uuid.UUID, name, phone, location string) (*Driver, error) {
	query := `
		UPDATE drivers
		SET name = $2, phone = $3, current_location = $4, updated_at = $5
		WHERE id = $1
		RETURNING ` + driverColumns

	d, err := scanDriver(r.db.QueryRow(ctx, query, id, name, phone, location, time.Now().UTC()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, ErrPhoneExists
		}
		return nil, fmt.Errorf("repository: failed to update driver %s: %w", id, err)
	}
	return d, nil
}

func (r *postgresRepository) UpdateLocation(ctx context.Context, id uuid.UUID, location string) error {
	cmdTag, err := r.db.Exec(ctx, `UPDATE drivers SET current_location = $2, updated_at = $3 WHERE id = $1`,
		id, location, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("repository: failed to update driver location %s: %w", id, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
