package order_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"delivery-marketplace/internal/catalog"
	"delivery-marketplace/internal/driver"
	"delivery-marketplace/internal/earnings"
	"delivery-marketplace/internal/notify"
	"delivery-marketplace/internal/order"
)

var (
	restaurantID = uuid.Must(uuid.FromString("11111111-1111-4111-8111-111111111111"))
	menuItemID   = uuid.Must(uuid.FromString("22222222-2222-4222-8222-222222222222"))
	orderID      = uuid.Must(uuid.FromString("33333333-3333-4333-8333-333333333333"))
	driverID     = uuid.Must(uuid.FromString("44444444-4444-4444-8444-444444444444"))
	adminID      = uuid.Must(uuid.FromString("55555555-5555-4555-8555-555555555555"))
)

type mockRepository struct {
	createFunc        func(ctx context.Context, o *order.Order) error
	getByIDFunc       func(ctx context.Context, id uuid.UUID) (*order.Order, error)
	listByDriverFunc  func(ctx context.Context, driverID uuid.UUID, status *order.Status) ([]order.Order, error)
	listAvailableFunc func(ctx context.Context, limit int) ([]order.Summary, error)
	getTrackingFunc   func(ctx context.Context, orderID uuid.UUID) ([]order.Tracking, error)
	transitionFunc    func(ctx context.Context, orderID uuid.UUID, from, to order.Status, tr order.Tracking) error
	claimFunc         func(ctx context.Context, orderID, driverID uuid.UUID, to order.Status, provisional float64, requireAvailable bool, tr order.Tracking) error
	markDeliveredFunc func(ctx context.Context, orderID uuid.UUID, from order.Status, de earnings.DriverEarning, re earnings.RestaurantEarning, tr order.Tracking) error
	cancelFunc        func(ctx context.Context, orderID uuid.UUID, from order.Status, tr order.Tracking) error
}

func (m *mockRepository) Create(ctx context.Context, o *order.Order) error {
	return m.createFunc(ctx, o)
}

func (m *mockRepository) GetByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockRepository) ListByDriver(ctx context.Context, driverID uuid.UUID, status *order.Status) ([]order.Order, error) {
	return m.listByDriverFunc(ctx, driverID, status)
}

func (m *mockRepository) ListAvailable(ctx context.Context, limit int) ([]order.Summary, error) {
	return m.listAvailableFunc(ctx, limit)
}

func (m *mockRepository) GetTracking(ctx context.Context, orderID uuid.UUID) ([]order.Tracking, error) {
	return m.getTrackingFunc(ctx, orderID)
}

func (m *mockRepository) TransitionStatus(ctx context.Context, orderID uuid.UUID, from, to order.Status, tr order.Tracking) error {
	return m.transitionFunc(ctx, orderID, from, to, tr)
}

func (m *mockRepository) ClaimForDriver(ctx context.Context, orderID, driverID uuid.UUID, to order.Status, provisional float64, requireAvailable bool, tr order.Tracking) error {
	return m.claimFunc(ctx, orderID, driverID, to, provisional, requireAvailable, tr)
}

func (m *mockRepository) MarkDelivered(ctx context.Context, orderID uuid.UUID, from order.Status, de earnings.DriverEarning, re earnings.RestaurantEarning, tr order.Tracking) error {
	return m.markDeliveredFunc(ctx, orderID, from, de, re, tr)
}

func (m *mockRepository) Cancel(ctx context.Context, orderID uuid.UUID, from order.Status, tr order.Tracking) error {
	return m.cancelFunc(ctx, orderID, from, tr)
}

type mockCatalog struct {
	getRestaurantFunc func(ctx context.Context, id uuid.UUID) (*catalog.Restaurant, error)
	getMenuItemFunc   func(ctx context.Context, id uuid.UUID) (*catalog.MenuItem, error)
}

func (m *mockCatalog) GetRestaurant(ctx context.Context, id uuid.UUID) (*catalog.Restaurant, error) {
	return m.getRestaurantFunc(ctx, id)
}

func (m *mockCatalog) GetMenuItem(ctx context.Context, id uuid.UUID) (*catalog.MenuItem, error) {
	return m.getMenuItemFunc(ctx, id)
}

type mockDrivers struct {
	getByIDFunc func(ctx context.Context, id uuid.UUID) (*driver.Driver, error)
}

func (m *mockDrivers) Create(ctx context.Context, d *driver.Driver) error { return nil }
func (m *mockDrivers) GetByID(ctx context.Context, id uuid.UUID) (*driver.Driver, error) {
	return m.getByIDFunc(ctx, id)
}
func (m *mockDrivers) GetByPhone(ctx context.Context, phone string) (*driver.Driver, error) {
	return nil, driver.ErrNotFound
}
func (m *mockDrivers) UpdateProfile(ctx context.Context, id uuid.UUID, name, phone, location string) (*driver.Driver, error) {
	return nil, driver.ErrNotFound
}
func (m *mockDrivers) UpdateLocation(ctx context.Context, id uuid.UUID, location string) error {
	return nil
}

type captureNotifier struct {
	mu      sync.Mutex
	intents []notify.Intent
}

func (c *captureNotifier) Notify(_ context.Context, intent notify.Intent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.intents = append(c.intents, intent)
	return nil
}

func defaultRates() earnings.Rates {
	return earnings.Rates{DriverRate: 0.20, RestaurantRate: 0.15}
}

func activeRestaurant() *catalog.Restaurant {
	return &catalog.Restaurant{ID: restaurantID, Name: "Testaurant", IsActive: true}
}

func workingCatalog() *mockCatalog {
	return &mockCatalog{
		getRestaurantFunc: func(ctx context.Context, id uuid.UUID) (*catalog.Restaurant, error) {
			if id == restaurantID {
				return activeRestaurant(), nil
			}
			return nil, catalog.ErrRestaurantNotFound
		},
		getMenuItemFunc: func(ctx context.Context, id uuid.UUID) (*catalog.MenuItem, error) {
			if id == menuItemID {
				return &catalog.MenuItem{ID: menuItemID, RestaurantID: restaurantID, Name: "Plov", Price: 10.00, IsAvailable: true}, nil
			}
			return nil, catalog.ErrMenuItemNotFound
		},
	}
}

func availableDriver() *driver.Driver {
	return &driver.Driver{ID: driverID, Name: "Dastan", Phone: "+77001112233", IsAvailable: true, IsActive: true}
}

func storedOrder(status order.Status, withDriver bool) *order.Order {
	o := &order.Order{
		ID:              orderID,
		OrderNumber:     "ORD_20250107_a1b2c3",
		RestaurantID:    restaurantID,
		CustomerName:    "Aliya",
		CustomerPhone:   "+77009998877",
		DeliveryAddress: "12 Abay Ave",
		PaymentMethod:   order.PaymentCash,
		Subtotal:        20.00,
		DeliveryFee:     5.00,
		TotalAmount:     25.00,
		Status:          status,
	}
	if withDriver {
		id := driverID
		o.DriverID = &id
	}
	return o
}

func validSubmitInput() order.SubmitInput {
	return order.SubmitInput{
		RestaurantID:    restaurantID,
		CustomerName:    "Aliya",
		CustomerPhone:   "+77009998877",
		DeliveryAddress: "12 Abay Ave",
		PaymentMethod:   order.PaymentCash,
		DeliveryFee:     5.00,
		Items: []order.SubmitItemInput{
			{MenuItemID: menuItemID, Quantity: 2},
		},
	}
}

func TestOrderService_SubmitOrder(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(input *order.SubmitInput)
		wantErrIs error
	}{
		{
			name:      "missing_customer_name",
			mutate:    func(input *order.SubmitInput) { input.CustomerName = "" },
			wantErrIs: order.ErrValidation,
		},
		{
			name:      "missing_delivery_address",
			mutate:    func(input *order.SubmitInput) { input.DeliveryAddress = "" },
			wantErrIs: order.ErrValidation,
		},
		{
			name:      "invalid_payment_method",
			mutate:    func(input *order.SubmitInput) { input.PaymentMethod = "crypto" },
			wantErrIs: order.ErrValidation,
		},
		{
			name:      "no_items",
			mutate:    func(input *order.SubmitInput) { input.Items = nil },
			wantErrIs: order.ErrValidation,
		},
		{
			name:      "zero_quantity",
			mutate:    func(input *order.SubmitInput) { input.Items[0].Quantity = 0 },
			wantErrIs: order.ErrValidation,
		},
		{
			name:      "unknown_restaurant",
			mutate:    func(input *order.SubmitInput) { input.RestaurantID = uuid.Must(uuid.NewV4()) },
			wantErrIs: order.ErrRestaurantNotFound,
		},
		{
			name:      "unknown_menu_item",
			mutate:    func(input *order.SubmitInput) { input.Items[0].MenuItemID = uuid.Must(uuid.NewV4()) },
			wantErrIs: order.ErrMenuItemNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockRepository{
				createFunc: func(ctx context.Context, o *order.Order) error { return nil },
			}
			svc := order.NewService(repo, workingCatalog(), &mockDrivers{}, &captureNotifier{}, defaultRates())

			input := validSubmitInput()
			tt.mutate(&input)

			_, err := svc.SubmitOrder(context.Background(), input)
			assert.ErrorIs(t, err, tt.wantErrIs)
		})
	}
}

func TestOrderService_SubmitOrder_UnavailableItem(t *testing.T) {
	cat := workingCatalog()
	cat.getMenuItemFunc = func(ctx context.Context, id uuid.UUID) (*catalog.MenuItem, error) {
		return &catalog.MenuItem{ID: menuItemID, RestaurantID: restaurantID, Name: "Plov", Price: 10.00, IsAvailable: false}, nil
	}
	svc := order.NewService(&mockRepository{}, cat, &mockDrivers{}, &captureNotifier{}, defaultRates())

	_, err := svc.SubmitOrder(context.Background(), validSubmitInput())
	assert.ErrorIs(t, err, order.ErrMenuItemNotFound)
}

func TestOrderService_SubmitOrder_Success(t *testing.T) {
	var created *order.Order
	repo := &mockRepository{
		createFunc: func(ctx context.Context, o *order.Order) error {
			o.ID = orderID
			o.Status = order.StatusPending
			created = o
			return nil
		},
	}
	notifier := &captureNotifier{}
	svc := order.NewService(repo, workingCatalog(), &mockDrivers{}, notifier, defaultRates())

	got, err := svc.SubmitOrder(context.Background(), validSubmitInput())
	require.NoError(t, err)
	require.NotNil(t, created)

	// Two units at the catalog price of 10.00 plus the 5.00 delivery fee.
	assert.Equal(t, 20.00, got.Subtotal)
	assert.Equal(t, 5.00, got.DeliveryFee)
	assert.Equal(t, 25.00, got.TotalAmount)
	assert.Equal(t, order.StatusPending, got.Status)
	assert.Nil(t, got.DriverID)
	assert.Regexp(t, `^ORD_\d{8}_[0-9a-f]{6}$`, got.OrderNumber)
	require.Len(t, got.Items, 1)
	assert.Equal(t, 10.00, got.Items[0].UnitPrice)
	assert.Equal(t, 2, got.Items[0].Quantity)

	require.Len(t, notifier.intents, 1)
	assert.Equal(t, "order_created", notifier.intents[0].Type)
	assert.Equal(t, notify.RecipientRestaurant, notifier.intents[0].RecipientKind)
}

func TestOrderService_UpdateStatus(t *testing.T) {
	tests := []struct {
		name       string
		current    *order.Order
		getErr     error
		newStatus  order.Status
		transition func(ctx context.Context, orderID uuid.UUID, from, to order.Status, tr order.Tracking) error
		wantErrIs  error
	}{
		{
			name:      "unknown_status",
			current:   storedOrder(order.StatusPending, false),
			newStatus: order.Status("cooking"),
			wantErrIs: order.ErrValidation,
		},
		{
			name:      "not_found",
			getErr:    order.ErrOrderNotFound,
			newStatus: order.StatusConfirmed,
			wantErrIs: order.ErrOrderNotFound,
		},
		{
			name:      "pending_cannot_be_delivered",
			current:   storedOrder(order.StatusPending, false),
			newStatus: order.StatusDelivered,
			wantErrIs: order.ErrInvalidTransition,
		},
		{
			name:      "confirmed_cannot_go_back_to_pending",
			current:   storedOrder(order.StatusConfirmed, false),
			newStatus: order.StatusPending,
			wantErrIs: order.ErrInvalidTransition,
		},
		{
			name:      "concurrent_change_surfaces_conflict",
			current:   storedOrder(order.StatusPending, false),
			newStatus: order.StatusConfirmed,
			transition: func(ctx context.Context, orderID uuid.UUID, from, to order.Status, tr order.Tracking) error {
				return order.ErrStatusConflict
			},
			wantErrIs: order.ErrStatusConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockRepository{
				getByIDFunc: func(ctx context.Context, id uuid.UUID) (*order.Order, error) {
					if tt.getErr != nil {
						return nil, tt.getErr
					}
					return tt.current, nil
				},
				transitionFunc: tt.transition,
			}
			svc := order.NewService(repo, workingCatalog(), &mockDrivers{}, &captureNotifier{}, defaultRates())

			_, err := svc.UpdateStatus(context.Background(), orderID, tt.newStatus, order.Actor{ID: adminID, Kind: order.ActorAdmin})
			assert.ErrorIs(t, err, tt.wantErrIs)
		})
	}
}

func TestOrderService_UpdateStatus_Success(t *testing.T) {
	var gotFrom, gotTo order.Status
	var gotTracking order.Tracking
	repo := &mockRepository{
		getByIDFunc: func(ctx context.Context, id uuid.UUID) (*order.Order, error) {
			return storedOrder(order.StatusPending, false), nil
		},
		transitionFunc: func(ctx context.Context, orderID uuid.UUID, from, to order.Status, tr order.Tracking) error {
			gotFrom, gotTo, gotTracking = from, to, tr
			return nil
		},
	}
	notifier := &captureNotifier{}
	svc := order.NewService(repo, workingCatalog(), &mockDrivers{}, notifier, defaultRates())

	_, err := svc.UpdateStatus(context.Background(), orderID, order.StatusConfirmed, order.Actor{ID: adminID, Kind: order.ActorAdmin})
	require.NoError(t, err)

	assert.Equal(t, order.StatusPending, gotFrom)
	assert.Equal(t, order.StatusConfirmed, gotTo)
	assert.Equal(t, order.StatusConfirmed, gotTracking.Status)
	assert.Equal(t, order.StatusMessage(order.StatusConfirmed), gotTracking.Message)
	assert.Equal(t, order.ActorAdmin, gotTracking.ActorKind)
	require.NotNil(t, gotTracking.ActorID)
	assert.Equal(t, adminID, *gotTracking.ActorID)

	require.Len(t, notifier.intents, 1)
	assert.Equal(t, "status_changed", notifier.intents[0].Type)
}

func TestOrderService_Deliver(t *testing.T) {
	t.Run("settles_earnings", func(t *testing.T) {
		var gotDE earnings.DriverEarning
		var gotRE earnings.RestaurantEarning
		repo := &mockRepository{
			getByIDFunc: func(ctx context.Context, id uuid.UUID) (*order.Order, error) {
				return storedOrder(order.StatusPickedUp, true), nil
			},
			markDeliveredFunc: func(ctx context.Context, orderID uuid.UUID, from order.Status, de earnings.DriverEarning, re earnings.RestaurantEarning, tr order.Tracking) error {
				gotDE, gotRE = de, re
				return nil
			},
		}
		svc := order.NewService(repo, workingCatalog(), &mockDrivers{}, &captureNotifier{}, defaultRates())

		_, err := svc.UpdateStatus(context.Background(), orderID, order.StatusDelivered, order.Actor{ID: driverID, Kind: order.ActorDriver})
		require.NoError(t, err)

		// deliveryFee 5.00 at 20% commission, subtotal 20.00 at 15%.
		assert.Equal(t, 4.00, gotDE.NetAmount)
		assert.Equal(t, 1.00, gotDE.Commission)
		assert.Equal(t, driverID, gotDE.DriverID)
		assert.Equal(t, 17.00, gotRE.NetAmount)
		assert.Equal(t, 3.00, gotRE.Commission)
		assert.Equal(t, restaurantID, gotRE.RestaurantID)
		assert.Equal(t, earnings.SettlementPending, gotDE.SettlementStatus)
		assert.Equal(t, earnings.SettlementPending, gotRE.SettlementStatus)
	})

	t.Run("restaurant_rate_override", func(t *testing.T) {
		var gotRE earnings.RestaurantEarning
		cat := workingCatalog()
		cat.getRestaurantFunc = func(ctx context.Context, id uuid.UUID) (*catalog.Restaurant, error) {
			rate := 0.10
			r := activeRestaurant()
			r.CommissionRate = &rate
			return r, nil
		}
		repo := &mockRepository{
			getByIDFunc: func(ctx context.Context, id uuid.UUID) (*order.Order, error) {
				return storedOrder(order.StatusPickedUp, true), nil
			},
			markDeliveredFunc: func(ctx context.Context, orderID uuid.UUID, from order.Status, de earnings.DriverEarning, re earnings.RestaurantEarning, tr order.Tracking) error {
				gotRE = re
				return nil
			},
		}
		svc := order.NewService(repo, cat, &mockDrivers{}, &captureNotifier{}, defaultRates())

		_, err := svc.UpdateStatus(context.Background(), orderID, order.StatusDelivered, order.Actor{ID: driverID, Kind: order.ActorDriver})
		require.NoError(t, err)
		assert.Equal(t, 18.00, gotRE.NetAmount)
	})

	t.Run("without_driver_is_invalid", func(t *testing.T) {
		repo := &mockRepository{
			getByIDFunc: func(ctx context.Context, id uuid.UUID) (*order.Order, error) {
				return storedOrder(order.StatusPickedUp, false), nil
			},
		}
		svc := order.NewService(repo, workingCatalog(), &mockDrivers{}, &captureNotifier{}, defaultRates())

		_, err := svc.UpdateStatus(context.Background(), orderID, order.StatusDelivered, order.Actor{Kind: order.ActorAdmin})
		assert.ErrorIs(t, err, order.ErrInvalidTransition)
	})

	t.Run("duplicate_settlement_is_noop", func(t *testing.T) {
		repo := &mockRepository{
			getByIDFunc: func(ctx context.Context, id uuid.UUID) (*order.Order, error) {
				return storedOrder(order.StatusPickedUp, true), nil
			},
			markDeliveredFunc: func(ctx context.Context, orderID uuid.UUID, from order.Status, de earnings.DriverEarning, re earnings.RestaurantEarning, tr order.Tracking) error {
				return earnings.ErrAlreadySettled
			},
		}
		svc := order.NewService(repo, workingCatalog(), &mockDrivers{}, &captureNotifier{}, defaultRates())

		got, err := svc.UpdateStatus(context.Background(), orderID, order.StatusDelivered, order.Actor{ID: driverID, Kind: order.ActorDriver})
		require.NoError(t, err)
		assert.NotNil(t, got)
	})
}

func TestOrderService_AssignDriver(t *testing.T) {
	inactive := availableDriver()
	inactive.IsActive = false

	busy := availableDriver()
	busy.IsAvailable = false

	tests := []struct {
		name      string
		current   *order.Order
		driver    *driver.Driver
		driverErr error
		actor     order.Actor
		claimErr  error
		wantErrIs error
	}{
		{
			name:      "already_claimed",
			current:   storedOrder(order.StatusReady, true),
			driver:    availableDriver(),
			actor:     order.Actor{ID: driverID, Kind: order.ActorDriver},
			wantErrIs: order.ErrOrderAlreadyClaimed,
		},
		{
			name:      "driver_not_found",
			current:   storedOrder(order.StatusConfirmed, false),
			driverErr: driver.ErrNotFound,
			actor:     order.Actor{ID: adminID, Kind: order.ActorAdmin},
			wantErrIs: order.ErrDriverNotFound,
		},
		{
			name:      "inactive_driver",
			current:   storedOrder(order.StatusConfirmed, false),
			driver:    inactive,
			actor:     order.Actor{ID: adminID, Kind: order.ActorAdmin},
			wantErrIs: order.ErrDriverNotFound,
		},
		{
			name:      "self_accept_requires_availability",
			current:   storedOrder(order.StatusConfirmed, false),
			driver:    busy,
			actor:     order.Actor{ID: driverID, Kind: order.ActorDriver},
			wantErrIs: order.ErrDriverUnavailable,
		},
		{
			name:      "not_claimable_from_pending",
			current:   storedOrder(order.StatusPending, false),
			driver:    availableDriver(),
			actor:     order.Actor{ID: driverID, Kind: order.ActorDriver},
			wantErrIs: order.ErrInvalidTransition,
		},
		{
			name:      "lost_claim_race",
			current:   storedOrder(order.StatusConfirmed, false),
			driver:    availableDriver(),
			actor:     order.Actor{ID: driverID, Kind: order.ActorDriver},
			claimErr:  order.ErrOrderAlreadyClaimed,
			wantErrIs: order.ErrOrderAlreadyClaimed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockRepository{
				getByIDFunc: func(ctx context.Context, id uuid.UUID) (*order.Order, error) {
					return tt.current, nil
				},
				claimFunc: func(ctx context.Context, orderID, driverID uuid.UUID, to order.Status, provisional float64, requireAvailable bool, tr order.Tracking) error {
					return tt.claimErr
				},
			}
			drivers := &mockDrivers{
				getByIDFunc: func(ctx context.Context, id uuid.UUID) (*driver.Driver, error) {
					if tt.driverErr != nil {
						return nil, tt.driverErr
					}
					return tt.driver, nil
				},
			}
			svc := order.NewService(repo, workingCatalog(), drivers, &captureNotifier{}, defaultRates())

			_, err := svc.AssignDriver(context.Background(), orderID, driverID, tt.actor)
			assert.ErrorIs(t, err, tt.wantErrIs)
		})
	}
}

func TestOrderService_AssignDriver_Binding(t *testing.T) {
	t.Run("driver_self_accept_goes_to_ready", func(t *testing.T) {
		var gotTo order.Status
		var gotProvisional float64
		var gotRequireAvailable bool
		repo := &mockRepository{
			getByIDFunc: func(ctx context.Context, id uuid.UUID) (*order.Order, error) {
				return storedOrder(order.StatusConfirmed, false), nil
			},
			claimFunc: func(ctx context.Context, orderID, driverID uuid.UUID, to order.Status, provisional float64, requireAvailable bool, tr order.Tracking) error {
				gotTo, gotProvisional, gotRequireAvailable = to, provisional, requireAvailable
				return nil
			},
		}
		drivers := &mockDrivers{
			getByIDFunc: func(ctx context.Context, id uuid.UUID) (*driver.Driver, error) {
				return availableDriver(), nil
			},
		}
		svc := order.NewService(repo, workingCatalog(), drivers, &captureNotifier{}, defaultRates())

		_, err := svc.AcceptOrder(context.Background(), driverID, orderID)
		require.NoError(t, err)
		assert.Equal(t, order.StatusReady, gotTo)
		assert.Equal(t, 4.00, gotProvisional) // 5.00 fee minus 20% commission
		assert.True(t, gotRequireAvailable)
	})

	t.Run("admin_assignment_goes_to_assigned", func(t *testing.T) {
		var gotTo order.Status
		var gotRequireAvailable bool
		busy := availableDriver()
		busy.IsAvailable = false
		repo := &mockRepository{
			getByIDFunc: func(ctx context.Context, id uuid.UUID) (*order.Order, error) {
				return storedOrder(order.StatusConfirmed, false), nil
			},
			claimFunc: func(ctx context.Context, orderID, driverID uuid.UUID, to order.Status, provisional float64, requireAvailable bool, tr order.Tracking) error {
				gotTo, gotRequireAvailable = to, requireAvailable
				return nil
			},
		}
		drivers := &mockDrivers{
			getByIDFunc: func(ctx context.Context, id uuid.UUID) (*driver.Driver, error) {
				return busy, nil
			},
		}
		svc := order.NewService(repo, workingCatalog(), drivers, &captureNotifier{}, defaultRates())

		// Admin assignment overrides the availability flag.
		_, err := svc.AssignDriver(context.Background(), orderID, driverID, order.Actor{ID: adminID, Kind: order.ActorAdmin})
		require.NoError(t, err)
		assert.Equal(t, order.StatusAssigned, gotTo)
		assert.False(t, gotRequireAvailable)
	})
}

// Given N simultaneous accept attempts for the same unclaimed order, exactly
// one succeeds and the rest lose the compare-and-set.
func TestOrderService_AcceptOrder_Concurrent(t *testing.T) {
	const attempts = 8

	var mu sync.Mutex
	claimed := false

	repo := &mockRepository{
		getByIDFunc: func(ctx context.Context, id uuid.UUID) (*order.Order, error) {
			return storedOrder(order.StatusConfirmed, false), nil
		},
		claimFunc: func(ctx context.Context, orderID, driverID uuid.UUID, to order.Status, provisional float64, requireAvailable bool, tr order.Tracking) error {
			mu.Lock()
			defer mu.Unlock()
			if claimed {
				return order.ErrOrderAlreadyClaimed
			}
			claimed = true
			return nil
		},
	}
	drivers := &mockDrivers{
		getByIDFunc: func(ctx context.Context, id uuid.UUID) (*driver.Driver, error) {
			d := availableDriver()
			d.ID = id
			return d, nil
		},
	}
	svc := order.NewService(repo, workingCatalog(), drivers, &captureNotifier{}, defaultRates())

	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			contender := uuid.Must(uuid.NewV4())
			_, err := svc.AcceptOrder(context.Background(), contender, orderID)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	wins, conflicts := 0, 0
	for err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, order.ErrOrderAlreadyClaimed):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, attempts-1, conflicts)
}

func TestOrderService_CancelOrder(t *testing.T) {
	t.Run("terminal_orders_cannot_be_cancelled", func(t *testing.T) {
		for _, status := range []order.Status{order.StatusDelivered, order.StatusCancelled} {
			repo := &mockRepository{
				getByIDFunc: func(ctx context.Context, id uuid.UUID) (*order.Order, error) {
					return storedOrder(status, false), nil
				},
			}
			svc := order.NewService(repo, workingCatalog(), &mockDrivers{}, &captureNotifier{}, defaultRates())

			_, err := svc.CancelOrder(context.Background(), orderID, "changed my mind", order.Actor{Kind: order.ActorAdmin})
			assert.ErrorIs(t, err, order.ErrInvalidTransition, "status %s", status)
		}
	})

	t.Run("cancel_with_reason", func(t *testing.T) {
		var gotFrom order.Status
		var gotTracking order.Tracking
		repo := &mockRepository{
			getByIDFunc: func(ctx context.Context, id uuid.UUID) (*order.Order, error) {
				return storedOrder(order.StatusReady, true), nil
			},
			cancelFunc: func(ctx context.Context, orderID uuid.UUID, from order.Status, tr order.Tracking) error {
				gotFrom, gotTracking = from, tr
				return nil
			},
		}
		notifier := &captureNotifier{}
		svc := order.NewService(repo, workingCatalog(), &mockDrivers{}, notifier, defaultRates())

		_, err := svc.CancelOrder(context.Background(), orderID, "restaurant closed", order.Actor{ID: adminID, Kind: order.ActorAdmin})
		require.NoError(t, err)

		assert.Equal(t, order.StatusReady, gotFrom)
		assert.Equal(t, order.StatusCancelled, gotTracking.Status)
		assert.Contains(t, gotTracking.Message, "restaurant closed")

		require.Len(t, notifier.intents, 1)
		assert.Equal(t, "order_cancelled", notifier.intents[0].Type)
	})
}

func TestOrderService_ListAvailableOrders(t *testing.T) {
	var gotLimit int
	repo := &mockRepository{
		listAvailableFunc: func(ctx context.Context, limit int) ([]order.Summary, error) {
			gotLimit = limit
			return []order.Summary{{ID: orderID, OrderNumber: "ORD_20250107_a1b2c3"}}, nil
		},
	}
	svc := order.NewService(repo, workingCatalog(), &mockDrivers{}, &captureNotifier{}, defaultRates())

	summaries, err := svc.ListAvailableOrders(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 10, gotLimit, "zero limit falls back to the default")
	assert.Len(t, summaries, 1)

	_, err = svc.ListAvailableOrders(context.Background(), 25)
	require.NoError(t, err)
	assert.Equal(t, 25, gotLimit)
}
