package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"expense-bff/internal/audit"
	"expense-bff/internal/models"
	"expense-bff/internal/repository"
)

var ErrProfileNotFound = errors.New("user profile not found")

// RegisterInput is the validated profile payload from the API boundary.
type RegisterInput struct {
	Email         string
	NameKanji     string
	NameAlphabet  string
	DefaultTiming string
}

// UserService manages profile registration and lookup.
type UserService struct {
	profiles repository.ProfileStore
	audit    *audit.Publisher
	logger   *zap.Logger
	now      func() time.Time
}

func NewUserService(profiles repository.ProfileStore, auditPub *audit.Publisher, logger *zap.Logger) *UserService {
	return &UserService{
		profiles: profiles,
		audit:    auditPub,
		logger:   logger,
		now:      time.Now,
	}
}

// Register creates or replaces the profile for input.Email. Re-registration
// keeps the original creation time.
func (s *UserService) Register(ctx context.Context, input RegisterInput) (*models.UserProfile, error) {
	now := s.now().UTC()

	profile := &models.UserProfile{
		Email:         input.Email,
		NameKanji:     input.NameKanji,
		NameAlphabet:  input.NameAlphabet,
		DefaultTiming: input.DefaultTiming,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	existing, err := s.profiles.GetProfile(ctx, input.Email)
	switch {
	case err == nil:
		profile.CreatedAt = existing.CreatedAt
	case errors.Is(err, repository.ErrNotFound):
		// first registration
	default:
		return nil, fmt.Errorf("failed to check existing profile: %w", err)
	}

	if err := s.profiles.UpsertProfile(ctx, profile); err != nil {
		return nil, err
	}

	s.audit.Publish(ctx, audit.EventProfileUpdated, input.Email)
	s.logger.Info("Profile registered", zap.String("email", input.Email))
	return profile, nil
}

// GetProfile returns ErrProfileNotFound for unregistered emails.
func (s *UserService) GetProfile(ctx context.Context, email string) (*models.UserProfile, error) {
	profile, err := s.profiles.GetProfile(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	return profile, nil
}
