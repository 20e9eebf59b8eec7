// Package repository defines the storage interfaces the service layer is
// built against. Two families of implementations exist: persistent
// (Scylla for records, Redis for challenges) and the process-local memory
// store used when no backing service is configured.
package repository

import (
	"context"
	"errors"
	"time"

	"expense-bff/internal/models"
)

// ErrNotFound is returned by all stores when no record exists for a key.
var ErrNotFound = errors.New("record not found")

// ProfileStore persists user profiles keyed by email.
type ProfileStore interface {
	// UpsertProfile creates or replaces the profile for its email.
	UpsertProfile(ctx context.Context, profile *models.UserProfile) error
	// GetProfile returns ErrNotFound when the email is not registered.
	GetProfile(ctx context.Context, email string) (*models.UserProfile, error)
}

// ConnectionStore persists provider token payloads keyed by email and
// provider. Payloads are opaque strings; encryption happens above this
// layer.
type ConnectionStore interface {
	SaveToken(ctx context.Context, email string, provider models.Provider, payload string) error
	// GetToken returns ErrNotFound when no token is stored.
	GetToken(ctx context.Context, email string, provider models.Provider) (string, error)
	ClearToken(ctx context.Context, email string, provider models.Provider) error
}

// ChallengeStore persists passcode challenges. At most one live challenge
// exists per email: Put overwrites any prior challenge.
type ChallengeStore interface {
	Put(ctx context.Context, challenge *models.PasscodeChallenge, ttl time.Duration) error
	// Get returns ErrNotFound when no challenge is stored. Expired
	// challenges may still be returned by implementations without native
	// TTL; callers must check expiry.
	Get(ctx context.Context, email string) (*models.PasscodeChallenge, error)
	Delete(ctx context.Context, email string) error
	// SweepExpired removes expired challenges. A no-op for TTL-native
	// backends.
	SweepExpired(ctx context.Context) error
}
