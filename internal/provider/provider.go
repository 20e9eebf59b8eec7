// Package provider runs upstream calls against linked third-party accounts
// with a bounded credential-recovery path: an expired token is refreshed
// before the call, a rejected token is refreshed and the call retried once,
// and a failed refresh surfaces as a reconnect requirement instead of
// looping.
package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"expense-bff/internal/models"
)

var (
	// ErrNotConnected means no token is stored for the provider.
	ErrNotConnected = errors.New("provider not connected")

	// ErrAuthExpired is returned by call functions when the provider
	// rejects the access token. It triggers the single refresh-and-retry.
	ErrAuthExpired = errors.New("provider rejected credentials")

	// ErrRefreshUnavailable means a refresh cannot even be attempted, for
	// example when the token has no refresh token or client credentials
	// are not configured.
	ErrRefreshUnavailable = errors.New("token refresh unavailable")

	// ErrReconnectRequired means the refresh was attempted and failed; the
	// stored credential is dead and the user must relink the account.
	ErrReconnectRequired = errors.New("provider reconnect required")
)

// Refresher exchanges a refresh token for a fresh credential. It returns
// ErrRefreshUnavailable when it lacks the material to try.
type Refresher interface {
	Refresh(ctx context.Context, token *models.ProviderToken) (*models.ProviderToken, error)
}

// SaveFunc persists a refreshed token so later requests skip the refresh.
type SaveFunc func(ctx context.Context, token *models.ProviderToken) error

// CallFunc performs one upstream call with the given token, returning an
// error wrapping ErrAuthExpired when the provider rejects it.
type CallFunc func(ctx context.Context, token *models.ProviderToken) error

// Runner executes provider calls for one provider's refresher. A single Do
// performs at most one refresh and one retry, whether the refresh was
// proactive (recorded expiry already passed) or reactive (call came back
// with an auth rejection).
type Runner struct {
	refresher Refresher
	logger    *zap.Logger
	now       func() time.Time
}

func NewRunner(refresher Refresher, logger *zap.Logger) *Runner {
	return &Runner{
		refresher: refresher,
		logger:    logger,
		now:       time.Now,
	}
}

// Do runs call with token, refreshing and retrying at most once.
func (r *Runner) Do(ctx context.Context, token *models.ProviderToken, save SaveFunc, call CallFunc) error {
	if token == nil || token.AccessToken == "" {
		return ErrNotConnected
	}

	refreshed := false
	if token.Expired(r.now()) {
		fresh, err := r.refresh(ctx, token, save)
		if err != nil {
			return err
		}
		token = fresh
		refreshed = true
	}

	err := call(ctx, token)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrAuthExpired) {
		return err
	}
	if refreshed {
		// The credential was just refreshed and still rejected; a second
		// refresh would not help.
		return fmt.Errorf("%w: rejected after refresh", ErrReconnectRequired)
	}

	fresh, err := r.refresh(ctx, token, save)
	if err != nil {
		return err
	}

	if err := call(ctx, fresh); err != nil {
		if errors.Is(err, ErrAuthExpired) {
			return fmt.Errorf("%w: rejected after refresh", ErrReconnectRequired)
		}
		return err
	}
	return nil
}

func (r *Runner) refresh(ctx context.Context, token *models.ProviderToken, save SaveFunc) (*models.ProviderToken, error) {
	fresh, err := r.refresher.Refresh(ctx, token)
	if err != nil {
		if errors.Is(err, ErrRefreshUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrReconnectRequired, err)
	}

	if save != nil {
		if err := save(ctx, fresh); err != nil {
			// The fresh token still works for this request; the next one
			// will just refresh again.
			r.logger.Warn("Failed to persist refreshed token", zap.Error(err))
		}
	}
	return fresh, nil
}
