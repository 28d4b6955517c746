package order

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
	"github.com/rs/zerolog/log"

	"delivery-marketplace/internal/earnings"
)

// Repository is the persistence surface of the order ledger. Every mutation
// that races with other actors (claim, transition) is a conditional update:
// the WHERE clause carries the expected prior state and zero affected rows
// means the caller lost.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*Order, error)
	ListByDriver(ctx context.Context, driverID uuid.UUID, status *Status) ([]Order, error)
	ListAvailable(ctx context.Context, limit int) ([]Summary, error)
	GetTracking(ctx context.Context, orderID uuid.UUID) ([]Tracking, error)

	// TransitionStatus moves the order from one status to another and appends
	// a tracking entry, atomically. Returns ErrStatusConflict when the stored
	// status no longer matches from.
	TransitionStatus(ctx context.Context, orderID uuid.UUID, from, to Status, tr Tracking) error

	// ClaimForDriver binds the driver to an unclaimed order. The claim is a
	// single compare-and-set on driver_id IS NULL; the losing caller gets
	// ErrOrderAlreadyClaimed. When requireAvailable is set the driver's
	// availability flag must still be up (driver self-accept); admin
	// assignment overrides it.
	ClaimForDriver(ctx context.Context, orderID, driverID uuid.UUID, to Status, provisionalEarnings float64, requireAvailable bool, tr Tracking) error

	// MarkDelivered finalises the order: status becomes delivered, both
	// earnings rows are written, the driver is released and credited. One
	// transaction; a failed earnings write rolls the transition back.
	MarkDelivered(ctx context.Context, orderID uuid.UUID, from Status, de earnings.DriverEarning, re earnings.RestaurantEarning, tr Tracking) error

	// Cancel moves the order to cancelled and releases a bound driver, if any.
	Cancel(ctx context.Context, orderID uuid.UUID, from Status, tr Tracking) error
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

const orderColumns = `id, order_number, restaurant_id, driver_id, customer_name, customer_phone,
	COALESCE(customer_email, ''), delivery_address, payment_method, subtotal, delivery_fee,
	total_amount, driver_earnings, status, COALESCE(estimated_time, ''), actual_delivery_time,
	created_at, updated_at`

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(
		&o.ID,
		&o.OrderNumber,
		&o.RestaurantID,
		&o.DriverID,
		&o.CustomerName,
		&o.CustomerPhone,
		&o.CustomerEmail,
		&o.DeliveryAddress,
		&o.PaymentMethod,
		&o.Subtotal,
		&o.DeliveryFee,
		&o.TotalAmount,
		&o.DriverEarnings,
		&o.Status,
		&o.EstimatedTime,
		&o.ActualDeliveryTime,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *postgresRepository) Create(ctx context.Context, o *Order) (err error) {
	if o.ID == uuid.Nil {
		id, genErr := uuid.NewV4()
		if genErr != nil {
			return fmt.Errorf("repository: failed to generate order ID: %w", genErr)
		}
		o.ID = id
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repository: failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Stringer("order_id", o.ID).Msg("Failed to rollback transaction")
			}
		}
	}()

	now := time.Now().UTC()
	o.CreatedAt = now
	o.UpdatedAt = now
	o.Status = StatusPending

	_, err = tx.Exec(ctx, `
		INSERT INTO orders (id, order_number, restaurant_id, customer_name, customer_phone, customer_email,
			delivery_address, payment_method, subtotal, delivery_fee, total_amount, status, estimated_time,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9, $10, $11, $12, NULLIF($13, ''), $14, $15)
	`,
		o.ID,
		o.OrderNumber,
		o.RestaurantID,
		o.CustomerName,
		o.CustomerPhone,
		o.CustomerEmail,
		o.DeliveryAddress,
		string(o.PaymentMethod),
		o.Subtotal,
		o.DeliveryFee,
		o.TotalAmount,
		string(o.Status),
		o.EstimatedTime,
		o.CreatedAt,
		o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("repository: failed to insert order: %w", err)
	}

	for i := range o.Items {
		item := &o.Items[i]

		itemID, genErr := uuid.NewV4()
		if genErr != nil {
			return fmt.Errorf("repository: failed to generate order item ID: %w", genErr)
		}
		item.ID = itemID
		item.OrderID = o.ID
		item.CreatedAt = now

		_, err = tx.Exec(ctx, `
			INSERT INTO order_items (id, order_id, menu_item_id, quantity, unit_price, line_notes, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, item.ID, item.OrderID, item.MenuItemID, item.Quantity, item.UnitPrice, item.LineNotes, item.CreatedAt)
		if err != nil {
			return fmt.Errorf("repository: failed to insert order item for order %s: %w", o.ID, err)
		}
	}

	if err = insertTrackingTx(ctx, tx, Tracking{
		OrderID:   o.ID,
		Status:    StatusPending,
		Message:   StatusMessage(StatusPending),
		ActorKind: ActorSystem,
	}); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("repository: failed to commit transaction: %w", err)
	}
	return nil
}

func insertTrackingTx(ctx context.Context, tx pgx.Tx, tr Tracking) error {
	id, err := uuid.NewV4()
	if err != nil {
		return fmt.Errorf("repository: failed to generate tracking ID: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO order_tracking (id, order_id, status, message, latitude, longitude, actor_id, actor_kind, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, id, tr.OrderID, string(tr.Status), tr.Message, tr.Latitude, tr.Longitude, tr.ActorID, string(tr.ActorKind), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("repository: failed to insert tracking entry for order %s: %w", tr.OrderID, err)
	}
	return nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	o, err := scanOrder(r.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("repository: failed to select order by id %s: %w", id, err)
	}

	items, err := r.itemsForOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	o.Items = items

	return o, nil
}

func (r *postgresRepository) itemsForOrder(ctx context.Context, orderID uuid.UUID) ([]Item, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, order_id, menu_item_id, quantity, unit_price, line_notes, created_at
		FROM order_items
		WHERE order_id = $1
		ORDER BY created_at
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query order items for order %s: %w", orderID, err)
	}
	defer rows.Close()

	items := make([]Item, 0)
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ID, &item.OrderID, &item.MenuItemID, &item.Quantity, &item.UnitPrice, &item.LineNotes, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("repository: failed to scan order item for order %s: %w", orderID, err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating order items for order %s: %w", orderID, err)
	}
	return items, nil
}

func (r *postgresRepository) ListByDriver(ctx context.Context, driverID uuid.UUID, status *Status) ([]Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE driver_id = $1`
	args := []any{driverID}
	if status != nil {
		query += ` AND status = $2`
		args = append(args, string(*status))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query orders for driver %s: %w", driverID, err)
	}
	defer rows.Close()

	orders := make([]Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan order for driver %s: %w", driverID, err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating orders for driver %s: %w", driverID, err)
	}
	return orders, nil
}

func (r *postgresRepository) ListAvailable(ctx context.Context, limit int) ([]Summary, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, order_number, restaurant_id, delivery_address, delivery_fee, total_amount, created_at
		FROM orders
		WHERE status = $1 AND driver_id IS NULL
		ORDER BY created_at DESC
		LIMIT $2
	`, string(StatusConfirmed), limit)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query available orders: %w", err)
	}
	defer rows.Close()

	summaries := make([]Summary, 0)
	for rows.Next() {
		var s Summary
		if err := rows.Scan(&s.ID, &s.OrderNumber, &s.RestaurantID, &s.DeliveryAddress, &s.DeliveryFee, &s.TotalAmount, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("repository: failed to scan available order: %w", err)
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating available orders: %w", err)
	}
	return summaries, nil
}

func (r *postgresRepository) GetTracking(ctx context.Context, orderID uuid.UUID) ([]Tracking, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, order_id, status, message, latitude, longitude, actor_id, actor_kind, created_at
		FROM order_tracking
		WHERE order_id = $1
		ORDER BY created_at ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query tracking for order %s: %w", orderID, err)
	}
	defer rows.Close()

	entries := make([]Tracking, 0)
	for rows.Next() {
		var tr Tracking
		if err := rows.Scan(&tr.ID, &tr.OrderID, &tr.Status, &tr.Message, &tr.Latitude, &tr.Longitude, &tr.ActorID, &tr.ActorKind, &tr.CreatedAt); err != nil {
			return nil, fmt.Errorf("repository: failed to scan tracking entry for order %s: %w", orderID, err)
		}
		entries = append(entries, tr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating tracking for order %s: %w", orderID, err)
	}
	return entries, nil
}

func (r *postgresRepository) TransitionStatus(ctx context.Context, orderID uuid.UUID, from, to Status, tr Tracking) (err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repository: failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	cmdTag, err := tx.Exec(ctx, `
		UPDATE orders SET status = $3, updated_at = $4
		WHERE id = $1 AND status = $2
	`, orderID, string(from), string(to), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("repository: failed to update order status %s: %w", orderID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return r.classifyZeroRows(ctx, orderID)
	}

	if err = insertTrackingTx(ctx, tx, tr); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("repository: failed to commit transaction: %w", err)
	}
	return nil
}

// classifyZeroRows distinguishes a vanished order from a concurrent status
// change after a conditional update matched nothing.
func (r *postgresRepository) classifyZeroRows(ctx context.Context, orderID uuid.UUID) error {
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, orderID).Scan(&exists); err != nil {
		return fmt.Errorf("repository: failed to re-check order %s: %w", orderID, err)
	}
	if !exists {
		return ErrOrderNotFound
	}
	return ErrStatusConflict
}

func (r *postgresRepository) ClaimForDriver(ctx context.Context, orderID, driverID uuid.UUID, to Status, provisionalEarnings float64, requireAvailable bool, tr Tracking) (err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repository: failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	// Take the driver down first: holds the row lock for the rest of the tx
	// and rejects an unavailable driver before the order is touched.
	driverQuery := `UPDATE drivers SET is_available = FALSE, updated_at = now() WHERE id = $1 AND is_active`
	if requireAvailable {
		driverQuery += ` AND is_available`
	}
	cmdTag, err := tx.Exec(ctx, driverQuery, driverID)
	if err != nil {
		return fmt.Errorf("repository: failed to mark driver %s busy: %w", driverID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		if requireAvailable {
			return ErrDriverUnavailable
		}
		return ErrDriverNotFound
	}

	// The claim itself. driver_id IS NULL is the at-most-one-driver guard;
	// zero rows means somebody else already won.
	cmdTag, err = tx.Exec(ctx, `
		UPDATE orders SET driver_id = $2, status = $3, driver_earnings = $4, updated_at = now()
		WHERE id = $1 AND driver_id IS NULL AND status = $5
	`, orderID, driverID, string(to), provisionalEarnings, string(StatusConfirmed))
	if err != nil {
		// The partial unique index on active driver assignments trips when the
		// driver already holds a non-terminal order.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return ErrDriverUnavailable
		}
		return fmt.Errorf("repository: failed to claim order %s for driver %s: %w", orderID, driverID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		var exists bool
		if qErr := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, orderID).Scan(&exists); qErr != nil {
			return fmt.Errorf("repository: failed to re-check order %s: %w", orderID, qErr)
		}
		if !exists {
			return ErrOrderNotFound
		}
		return ErrOrderAlreadyClaimed
	}

	if err = insertTrackingTx(ctx, tx, tr); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("repository: failed to commit transaction: %w", err)
	}
	return nil
}

func (r *postgresRepository) MarkDelivered(ctx context.Context, orderID uuid.UUID, from Status, de earnings.DriverEarning, re earnings.RestaurantEarning, tr Tracking) (err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repository: failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	now := time.Now().UTC()

	cmdTag, err := tx.Exec(ctx, `
		UPDATE orders SET status = $3, actual_delivery_time = $4, updated_at = $4
		WHERE id = $1 AND status = $2
	`, orderID, string(from), string(StatusDelivered), now)
	if err != nil {
		return fmt.Errorf("repository: failed to mark order %s delivered: %w", orderID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return r.classifyZeroRows(ctx, orderID)
	}

	if err = earnings.InsertPairTx(ctx, tx, de, re); err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		UPDATE drivers SET is_available = TRUE, total_earnings = total_earnings + $2, updated_at = $3
		WHERE id = $1
	`, de.DriverID, de.NetAmount, now)
	if err != nil {
		return fmt.Errorf("repository: failed to release driver %s: %w", de.DriverID, err)
	}

	if err = insertTrackingTx(ctx, tx, tr); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("repository: failed to commit transaction: %w", err)
	}
	return nil
}

func (r *postgresRepository) Cancel(ctx context.Context, orderID uuid.UUID, from Status, tr Tracking) (err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repository: failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	cmdTag, err := tx.Exec(ctx, `
		UPDATE orders SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2
	`, orderID, string(from), string(StatusCancelled))
	if err != nil {
		return fmt.Errorf("repository: failed to cancel order %s: %w", orderID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return r.classifyZeroRows(ctx, orderID)
	}

	// Release the bound driver, if any. Cancellation must always leave the
	// driver available again, whatever the prior status was.
	_, err = tx.Exec(ctx, `
		UPDATE drivers SET is_available = TRUE, updated_at = now()
		WHERE id = (SELECT driver_id FROM orders WHERE id = $1)
	`, orderID)
	if err != nil {
		return fmt.Errorf("repository: failed to release driver for cancelled order %s: %w", orderID, err)
	}

	if err = insertTrackingTx(ctx, tx, tr); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("repository: failed to commit transaction: %w", err)
	}
	return nil
}
