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

// ConnectionRepository persists provider token payloads in the
// provider_tokens table, one row per (email, provider).
type ConnectionRepository struct {
	client    *ScyllaClient
	bucketing *bucketing.BucketingManager
	logger    *zap.Logger
}

var _ repository.ConnectionStore = (*ConnectionRepository)(nil)

func NewConnectionRepository(client *ScyllaClient, bucketing *bucketing.BucketingManager, logger *zap.Logger) *ConnectionRepository {
	return &ConnectionRepository{
		client:    client,
		bucketing: bucketing,
		logger:    logger,
	}
}

func (r *ConnectionRepository) SaveToken(ctx context.Context, email string, provider models.Provider, payload string) error {
	bucket := r.bucketing.GetUserBucket(email)

	err := r.client.Prepared.SaveToken.
		WithContext(ctx).
		Bind(bucket, email, string(provider), payload, time.Now().UTC()).
		Exec()
	if err != nil {
		r.logger.Error("Failed to save provider token",
			zap.String("email", email),
			zap.String("provider", string(provider)),
			zap.Error(err))
		return fmt.Errorf("failed to save provider token: %w", err)
	}
	return nil
}

func (r *ConnectionRepository) GetToken(ctx context.Context, email string, provider models.Provider) (string, error) {
	bucket := r.bucketing.GetUserBucket(email)

	var payload string
	err := r.client.Prepared.GetToken.
		WithContext(ctx).
		Bind(bucket, email, string(provider)).
		Scan(&payload)
	if err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return "", repository.ErrNotFound
		}
		r.logger.Error("Failed to get provider token",
			zap.String("email", email),
			zap.String("provider", string(provider)),
			zap.Error(err))
		return "", fmt.Errorf("failed to get provider token: %w", err)
	}
	return payload, nil
}

func (r *ConnectionRepository) ClearToken(ctx context.Context, email string, provider models.Provider) error {
	bucket := r.bucketing.GetUserBucket(email)

	err := r.client.Prepared.ClearToken.
		WithContext(ctx).
		Bind(bucket, email, string(provider)).
		Exec()
	if err != nil {
		r.logger.Error("Failed to clear provider token",
			zap.String("email", email),
			zap.String("provider", string(provider)),
			zap.Error(err))
		return fmt.Errorf("failed to clear provider token: %w", err)
	}
	return nil
}
