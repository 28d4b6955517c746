package driver_test

import (
	"context"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"delivery-marketplace/internal/driver"
)

type mockRepository struct {
	createFunc         func(ctx context.Context, d *driver.Driver) error
	getByIDFunc        func(ctx context.Context, id uuid.UUID) (*driver.Driver, error)
	getByPhoneFunc     func(ctx context.Context, phone string) (*driver.Driver, error)
	updateProfileFunc  func(ctx context.Context, id uuid.UUID, name, phone, location string) (*driver.Driver, error)
	updateLocationFunc func(ctx context.Context, id uuid.UUID, location string) error
}

func (m *mockRepository) Create(ctx context.Context, d *driver.Driver) error {
	return m.createFunc(ctx, d)
}

func (m *mockRepository) GetByID(ctx context.Context, id uuid.UUID) (*driver.Driver, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockRepository) GetByPhone(ctx context.Context, phone string) (*driver.Driver, error) {
	return m.getByPhoneFunc(ctx, phone)
}

func (m *mockRepository) UpdateProfile(ctx context.Context, id uuid.UUID, name, phone, location string) (*driver.Driver, error) {
	return m.updateProfileFunc(ctx, id, name, phone, location)
}

func (m *mockRepository) UpdateLocation(ctx context.Context, id uuid.UUID, location string) error {
	return m.updateLocationFunc(ctx, id, location)
}

func TestDriverService_Register(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		var created *driver.Driver
		repo := &mockRepository{
			createFunc: func(ctx context.Context, d *driver.Driver) error {
				d.ID = uuid.Must(uuid.NewV4())
				created = d
				return nil
			},
		}
		svc := driver.NewService(repo)

		got, err := svc.Register(context.Background(), driver.RegisterInput{
			Name:     "Dastan",
			Phone:    "+77001112233",
			Password: "hunter22",
		})
		require.NoError(t, err)
		require.NotNil(t, created)

		assert.True(t, got.IsAvailable, "new drivers start available")
		assert.True(t, got.IsActive)
		assert.NotEqual(t, "hunter22", got.PasswordHash)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(got.PasswordHash), []byte("hunter22")))
	})

	t.Run("duplicate_phone", func(t *testing.T) {
		repo := &mockRepository{
			createFunc: func(ctx context.Context, d *driver.Driver) error {
				return driver.ErrPhoneExists
			},
		}
		svc := driver.NewService(repo)

		_, err := svc.Register(context.Background(), driver.RegisterInput{
			Name:     "Dastan",
			Phone:    "+77001112233",
			Password: "hunter22",
		})
		assert.ErrorIs(t, err, driver.ErrPhoneExists)
	})

	t.Run("missing_fields", func(t *testing.T) {
		svc := driver.NewService(&mockRepository{})

		for _, input := range []driver.RegisterInput{
			{Phone: "+77001112233", Password: "hunter22"},
			{Name: "Dastan", Password: "hunter22"},
			{Name: "Dastan", Phone: "+77001112233"},
		} {
			_, err := svc.Register(context.Background(), input)
			assert.Error(t, err)
		}
	})
}

func TestDriverService_GetByID(t *testing.T) {
	id := uuid.Must(uuid.NewV4())
	repo := &mockRepository{
		getByIDFunc: func(ctx context.Context, got uuid.UUID) (*driver.Driver, error) {
			assert.Equal(t, id, got)
			return nil, driver.ErrNotFound
		},
	}
	svc := driver.NewService(repo)

	_, err := svc.GetByID(context.Background(), id)
	assert.ErrorIs(t, err, driver.ErrNotFound)
}

func TestDriverService_UpdateProfile(t *testing.T) {
	id := uuid.Must(uuid.NewV4())

	t.Run("requires_name_and_phone", func(t *testing.T) {
		svc := driver.NewService(&mockRepository{})

		_, err := svc.UpdateProfile(context.Background(), id, "", "+77001112233", "")
		assert.Error(t, err)

		_, err = svc.UpdateProfile(context.Background(), id, "Dastan", "", "")
		assert.Error(t, err)
	})

	t.Run("passes_through", func(t *testing.T) {
		repo := &mockRepository{
			updateProfileFunc: func(ctx context.Context, gotID uuid.UUID, name, phone, location string) (*driver.Driver, error) {
				assert.Equal(t, id, gotID)
				return &driver.Driver{ID: gotID, Name: name, Phone: phone, CurrentLocation: location}, nil
			},
		}
		svc := driver.NewService(repo)

		got, err := svc.UpdateProfile(context.Background(), id, "Dastan", "+77001112233", "Almaty")
		require.NoError(t, err)
		assert.Equal(t, "Almaty", got.CurrentLocation)
	})

	t.Run("phone_taken", func(t *testing.T) {
		repo := &mockRepository{
			updateProfileFunc: func(ctx context.Context, gotID uuid.UUID, name, phone, location string) (*driver.Driver, error) {
				return nil, driver.ErrPhoneExists
			},
		}
		svc := driver.NewService(repo)

		_, err := svc.UpdateProfile(context.Background(), id, "Dastan", "+77001112233", "")
		assert.ErrorIs(t, err, driver.ErrPhoneExists)
	})
}

func TestDriverService_UpdateLocation(t *testing.T) {
	id := uuid.Must(uuid.NewV4())
	repo := &mockRepository{
		updateLocationFunc: func(ctx context.Context, gotID uuid.UUID, location string) error {
			return driver.ErrNotFound
		},
	}
	svc := driver.NewService(repo)

	err := svc.UpdateLocation(context.Background(), id, "Almaty")
	assert.ErrorIs(t, err, driver.ErrNotFound)
}
