package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"delivery-marketplace/internal/auth"
	"delivery-marketplace/internal/handler"
)

// NewRouter wires the HTTP surface. Admin- and driver-restricted routes sit
// behind the identity gate; customer-facing order submission does not.
func NewRouter(orderHandler *handler.OrderHandler, driverHandler *handler.DriverHandler, earningsHandler *handler.EarningsHandler, jwtSecret []byte) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// Customer-facing entry points. Both paths share one submission pipeline.
	r.Post("/orders", orderHandler.CreateOrder)
	r.Post("/api/orders", orderHandler.CreateOrder)
	r.Get("/orders/{id}", orderHandler.GetOrderByID)
	r.Get("/orders/{id}/tracking", orderHandler.GetOrderTracking)
	r.Post("/orders/{id}/cancel", orderHandler.CancelOrder)

	// Admin operations.
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRole(jwtSecret, auth.RoleAdmin))
		r.Patch("/orders/{id}/status", orderHandler.UpdateOrderStatus)
		r.Post("/orders/{id}/assign", orderHandler.AssignDriver)
		r.Get("/orders/{id}/earnings", earningsHandler.GetOrderEarnings)
		r.Patch("/orders/{id}/earnings", earningsHandler.UpdateSettlement)
		r.Get("/restaurants/{id}/earnings", earningsHandler.ListRestaurantEarnings)
	})

	// Driver matching surface and driver profile.
	r.Post("/drivers", driverHandler.Register)
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRole(jwtSecret, auth.RoleDriver))
		r.Get("/drivers/orders/available", orderHandler.ListAvailableOrders)
		r.Post("/drivers/orders/{id}/accept", orderHandler.AcceptOrder)
		r.Get("/drivers/{id}/orders", orderHandler.ListOrdersForDriver)
		r.Patch("/drivers/{id}", driverHandler.UpdateProfile)
		r.Post("/drivers/{id}/location", driverHandler.UpdateLocation)
	})
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRole(jwtSecret, auth.RoleAdmin, auth.RoleDriver))
		r.Get("/drivers/{id}", driverHandler.GetByID)
		r.Get("/drivers/{id}/earnings", earningsHandler.ListDriverEarnings)
	})

	return r
}
