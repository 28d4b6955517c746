package earnings_test

import (
	"testing"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"

	"delivery-marketplace/internal/earnings"
)

func TestCalculate(t *testing.T) {
	tests := []struct {
		name        string
		subtotal    float64
		deliveryFee float64
		rates       earnings.Rates
		want        earnings.Split
	}{
		{
			name:        "standard_rates",
			subtotal:    20.00,
			deliveryFee: 5.00,
			rates:       earnings.Rates{DriverRate: 0.20, RestaurantRate: 0.15},
			want: earnings.Split{
				DriverGross:          5.00,
				DriverCommission:     1.00,
				DriverNet:            4.00,
				RestaurantGross:      20.00,
				RestaurantCommission: 3.00,
				RestaurantNet:        17.00,
			},
		},
		{
			name:        "zero_rates",
			subtotal:    42.50,
			deliveryFee: 3.00,
			rates:       earnings.Rates{},
			want: earnings.Split{
				DriverGross:          3.00,
				DriverCommission:     0,
				DriverNet:            3.00,
				RestaurantGross:      42.50,
				RestaurantCommission: 0,
				RestaurantNet:        42.50,
			},
		},
		{
			name:        "rounding_to_cents",
			subtotal:    9.99,
			deliveryFee: 3.33,
			rates:       earnings.Rates{DriverRate: 0.20, RestaurantRate: 0.15},
			want: earnings.Split{
				DriverGross:          3.33,
				DriverCommission:     0.67,
				DriverNet:            2.66,
				RestaurantGross:      9.99,
				RestaurantCommission: 1.5,
				RestaurantNet:        8.49,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := earnings.Calculate(tt.subtotal, tt.deliveryFee, tt.rates)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSplit_Rows(t *testing.T) {
	orderID := uuid.Must(uuid.FromString("550e8400-e29b-41d4-a716-446655440000"))
	driverID := uuid.Must(uuid.FromString("123e4567-e89b-12d3-a456-426614174000"))
	restaurantID := uuid.Must(uuid.FromString("999e8400-e29b-41d4-a716-446655440000"))

	split := earnings.Calculate(20.00, 5.00, earnings.Rates{DriverRate: 0.20, RestaurantRate: 0.15})
	de, re := split.Rows(orderID, driverID, restaurantID)

	assert.Equal(t, orderID, de.OrderID)
	assert.Equal(t, driverID, de.DriverID)
	assert.Equal(t, 5.00, de.GrossAmount)
	assert.Equal(t, 1.00, de.Commission)
	assert.Equal(t, 4.00, de.NetAmount)
	assert.Equal(t, earnings.SettlementPending, de.SettlementStatus)

	assert.Equal(t, orderID, re.OrderID)
	assert.Equal(t, restaurantID, re.RestaurantID)
	assert.Equal(t, 20.00, re.GrossAmount)
	assert.Equal(t, 3.00, re.Commission)
	assert.Equal(t, 17.00, re.NetAmount)
	assert.Equal(t, earnings.SettlementPending, re.SettlementStatus)
}
