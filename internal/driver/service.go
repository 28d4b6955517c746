package driver

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

type RegisterInput struct {
	Name     string
	Phone    string
	Password string
}

type Service interface {
	Register(ctx context.Context, input RegisterInput) (*Driver, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Driver, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, name, phone, location string) (*Driver, error)
	UpdateLocation(ctx context.Context, id uuid.UUID, location string) error
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) Register(ctx context.Context, input RegisterInput) (*Driver, error) {
	if input.Name == "" {
		return nil, errors.New("service: driver name is required")
	}
	if input.Phone == "" {
		return nil, errors.New("service: driver phone is required")
	}
	if input.Password == "" {
		return nil, errors.New("service: driver password is required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to hash driver password")
		return nil, fmt.Errorf("service: failed to hash password: %w", err)
	}

	d := &Driver{
		Name:         input.Name,
		Phone:        input.Phone,
		PasswordHash: string(hash),
		IsAvailable:  true,
		IsActive:     true,
	}

	if err := s.repo.Create(ctx, d); err != nil {
		if errors.Is(err, ErrPhoneExists) {
			return nil, ErrPhoneExists
		}
		log.Error().Err(err).Msg("service: failed to create driver in repository")
		return nil, fmt.Errorf("service: failed to create driver: %w", err)
	}

	log.Info().Stringer("driver_id", d.ID).Msg("service: driver registered")
	return d, nil
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*Driver, error) {
	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		log.Error().Err(err).Stringer("driver_id", id).Msg("service: failed to fetch driver by id")
		return nil, fmt.Errorf("service: failed to fetch driver: %w", err)
	}
	return d, nil
}

func (s *service) UpdateProfile(ctx context.Context, id uuid.UUID, name, phone, location string) (*Driver, error) {
	if name == "" || phone == "" {
		return nil, errors.New("service: driver name and phone are required")
	}

	d, err := s.repo.UpdateProfile(ctx, id, name, phone, location)
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrPhoneExists) {
			return nil, err
		}
		log.Error().Err(err).Stringer("driver_id", id).Msg("service: failed to update driver profile")
		return nil, fmt.Errorf("service: failed to update driver profile: %w", err)
	}
	return d, nil
}

func (s *service) UpdateLocation(ctx context.Context, id uuid.UUID, location string) error {
	if err := s.repo.UpdateLocation(ctx, id, location); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		log.Error().Err(err).Stringer("driver_id", id).Msg("service: failed to update driver location")
		return fmt.Errorf("service: failed to update driver location: %w", err)
	}
	return nil
}
