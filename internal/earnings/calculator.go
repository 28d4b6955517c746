package earnings

import (
	"math"

	"github.com/gofrs/uuid"
)

// Rates holds the platform commission rates. Both are fractions in [0, 1).
type Rates struct {
	DriverRate     float64
	RestaurantRate float64
}

// Split is the computed earnings breakdown for one delivered order.
type Split struct {
	DriverGross          float64
	DriverCommission     float64
	DriverNet            float64
	RestaurantGross      float64
	RestaurantCommission float64
	RestaurantNet        float64
}

// Calculate derives the earnings split for a delivered order. The driver is
// paid out of the delivery fee, the restaurant out of the subtotal. Amounts
// are rounded to cents.
func Calculate(subtotal, deliveryFee float64, rates Rates) Split {
	driverNet := round2(deliveryFee * (1 - rates.DriverRate))
	restaurantNet := round2(subtotal * (1 - rates.RestaurantRate))

	return Split{
		DriverGross:          deliveryFee,
		DriverCommission:     round2(deliveryFee - driverNet),
		DriverNet:            driverNet,
		RestaurantGross:      subtotal,
		RestaurantCommission: round2(subtotal - restaurantNet),
		RestaurantNet:        restaurantNet,
	}
}

// Rows materialises a split into the two pending settlement rows for an
// order.
func (s Split) Rows(orderID, driverID, restaurantID uuid.UUID) (DriverEarning, RestaurantEarning) {
	de := DriverEarning{
		OrderID:          orderID,
		DriverID:         driverID,
		GrossAmount:      s.DriverGross,
		Commission:       s.DriverCommission,
		NetAmount:        s.DriverNet,
		SettlementStatus: SettlementPending,
	}
	re := RestaurantEarning{
		OrderID:          orderID,
		RestaurantID:     restaurantID,
		GrossAmount:      s.RestaurantGross,
		Commission:       s.RestaurantCommission,
		NetAmount:        s.RestaurantNet,
		SettlementStatus: SettlementPending,
	}
	return de, re
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
