package scylla

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"go.uber.org/zap"

	"expense-bff/internal/bucketing"
	"expense-bff/internal/models"
	"expense-bff/internal/repository"
)

// ProfileRepository persists user profiles in the profiles table,
// partitioned by email bucket.
type ProfileRepository struct {
	client    *ScyllaClient
	bucketing *bucketing.BucketingManager
	logger    *zap.Logger
}

var _ repository.ProfileStore = (*ProfileRepository)(nil)

func NewProfileRepository(client *ScyllaClient, bucketing *bucketing.BucketingManager, logger *zap.Logger) *ProfileRepository {
	return &ProfileRepository{
		client:    client,
		bucketing: bucketing,
		logger:    logger,
	}
}

func (r *ProfileRepository) UpsertProfile(ctx context.Context, profile *models.UserProfile) error {
	bucket := r.bucketing.GetUserBucket(profile.Email)

	err := r.client.Prepared.UpsertProfile.
		WithContext(ctx).
		Bind(bucket, profile.Email, profile.NameKanji, profile.NameAlphabet,
			profile.DefaultTiming, profile.CreatedAt, profile.UpdatedAt).
		Exec()
	if err != nil {
		r.logger.Error("Failed to upsert profile",
			zap.String("email", profile.Email),
			zap.Error(err))
		return fmt.Errorf("failed to upsert profile: %w", err)
	}
	return nil
}

func (r *ProfileRepository) GetProfile(ctx context.Context, email string) (*models.UserProfile, error) {
	bucket := r.bucketing.GetUserBucket(email)

	var profile models.UserProfile
	var createdAt, updatedAt time.Time
	err := r.client.Prepared.GetProfile.
		WithContext(ctx).
		Bind(bucket, email).
		Scan(&profile.Email, &profile.NameKanji, &profile.NameAlphabet,
			&profile.DefaultTiming, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return nil, repository.ErrNotFound
		}
		r.logger.Error("Failed to get profile",
			zap.String("email", email),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	profile.CreatedAt = createdAt
	profile.UpdatedAt = updatedAt
	return &profile, nil
}
