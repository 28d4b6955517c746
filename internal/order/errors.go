package order

import "errors"

var (
	// ErrValidation is wrapped around malformed-input failures so handlers
	// can map the whole class to one response code.
	ErrValidation = errors.New("invalid order input")

	ErrOrderNotFound      = errors.New("order not found")
	ErrRestaurantNotFound = errors.New("restaurant not found")
	ErrMenuItemNotFound   = errors.New("menu item not found")
	ErrDriverNotFound     = errors.New("driver not found")
	ErrDriverUnavailable  = errors.New("driver is not available")

	// ErrInvalidTransition is wrapped with the current and requested statuses
	// for caller diagnostics.
	ErrInvalidTransition = errors.New("invalid order status transition")

	// ErrOrderAlreadyClaimed is returned when a conditional driver-binding
	// update affects zero rows: another driver won the race or the order was
	// assigned by an admin in the meantime.
	ErrOrderAlreadyClaimed = errors.New("order already has a driver")

	ErrStatusConflict = errors.New("order status changed concurrently")
)
