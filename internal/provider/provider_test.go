package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"expense-bff/internal/models"
)

type stubRefresher struct {
	calls int
	token *models.ProviderToken
	err   error
}

func (s *stubRefresher) Refresh(ctx context.Context, token *models.ProviderToken) (*models.ProviderToken, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.token, nil
}

func newTestRunner(ref *stubRefresher) *Runner {
	return NewRunner(ref, zap.NewNop())
}

func TestDoNotConnected(t *testing.T) {
	ref := &stubRefresher{}
	runner := newTestRunner(ref)

	calls := 0
	err := runner.Do(context.Background(), nil, nil, func(ctx context.Context, token *models.ProviderToken) error {
		calls++
		return nil
	})

	assert.ErrorIs(t, err, ErrNotConnected)
	assert.Zero(t, calls)
	assert.Zero(t, ref.calls)
}

func TestDoHealthyToken(t *testing.T) {
	ref := &stubRefresher{}
	runner := newTestRunner(ref)

	token := &models.ProviderToken{AccessToken: "live"}
	calls := 0
	err := runner.Do(context.Background(), token, nil, func(ctx context.Context, got *models.ProviderToken) error {
		calls++
		assert.Equal(t, "live", got.AccessToken)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Zero(t, ref.calls, "healthy token must not trigger a refresh")
}

func TestDoProactiveRefreshOnExpiry(t *testing.T) {
	ref := &stubRefresher{token: &models.ProviderToken{AccessToken: "fresh"}}
	runner := newTestRunner(ref)

	token := &models.ProviderToken{
		AccessToken: "stale",
		ExpiresAt:   time.Now().Add(-time.Minute),
	}

	var saved *models.ProviderToken
	save := func(ctx context.Context, t *models.ProviderToken) error {
		saved = t
		return nil
	}

	var seen []string
	err := runner.Do(context.Background(), token, save, func(ctx context.Context, got *models.ProviderToken) error {
		seen = append(seen, got.AccessToken)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"fresh"}, seen, "expired token must never reach the upstream")
	assert.Equal(t, 1, ref.calls)
	require.NotNil(t, saved)
	assert.Equal(t, "fresh", saved.AccessToken)
}

func TestDoReactiveRefreshAndRetry(t *testing.T) {
	ref := &stubRefresher{token: &models.ProviderToken{AccessToken: "fresh"}}
	runner := newTestRunner(ref)

	token := &models.ProviderToken{AccessToken: "revoked"}
	var seen []string
	err := runner.Do(context.Background(), token, nil, func(ctx context.Context, got *models.ProviderToken) error {
		seen = append(seen, got.AccessToken)
		if got.AccessToken == "revoked" {
			return ErrAuthExpired
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"revoked", "fresh"}, seen)
	assert.Equal(t, 1, ref.calls)
}

func TestDoAtMostOneRefresh(t *testing.T) {
	ref := &stubRefresher{token: &models.ProviderToken{AccessToken: "fresh"}}
	runner := newTestRunner(ref)

	token := &models.ProviderToken{AccessToken: "revoked"}
	calls := 0
	err := runner.Do(context.Background(), token, nil, func(ctx context.Context, got *models.ProviderToken) error {
		calls++
		return ErrAuthExpired
	})

	assert.ErrorIs(t, err, ErrReconnectRequired)
	assert.Equal(t, 2, calls, "exactly one retry after the refresh")
	assert.Equal(t, 1, ref.calls, "exactly one refresh per Do")
}

func TestDoRejectedAfterProactiveRefresh(t *testing.T) {
	ref := &stubRefresher{token: &models.ProviderToken{AccessToken: "fresh"}}
	runner := newTestRunner(ref)

	token := &models.ProviderToken{
		AccessToken: "stale",
		ExpiresAt:   time.Now().Add(-time.Minute),
	}
	calls := 0
	err := runner.Do(context.Background(), token, nil, func(ctx context.Context, got *models.ProviderToken) error {
		calls++
		return ErrAuthExpired
	})

	assert.ErrorIs(t, err, ErrReconnectRequired)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, ref.calls, "proactive refresh counts as the one refresh")
}

func TestDoRefreshFailure(t *testing.T) {
	ref := &stubRefresher{err: errors.New("invalid_grant")}
	runner := newTestRunner(ref)

	token := &models.ProviderToken{AccessToken: "revoked"}
	err := runner.Do(context.Background(), token, nil, func(ctx context.Context, got *models.ProviderToken) error {
		return ErrAuthExpired
	})

	assert.ErrorIs(t, err, ErrReconnectRequired)
}

func TestDoRefreshUnavailable(t *testing.T) {
	ref := &stubRefresher{err: ErrRefreshUnavailable}
	runner := newTestRunner(ref)

	token := &models.ProviderToken{AccessToken: "revoked"}
	err := runner.Do(context.Background(), token, nil, func(ctx context.Context, got *models.ProviderToken) error {
		return ErrAuthExpired
	})

	assert.ErrorIs(t, err, ErrRefreshUnavailable)
	assert.NotErrorIs(t, err, ErrReconnectRequired)
}

func TestDoNonAuthErrorSurfaces(t *testing.T) {
	ref := &stubRefresher{token: &models.ProviderToken{AccessToken: "fresh"}}
	runner := newTestRunner(ref)

	upstream := errors.New("upstream 500")
	token := &models.ProviderToken{AccessToken: "live"}
	err := runner.Do(context.Background(), token, nil, func(ctx context.Context, got *models.ProviderToken) error {
		return upstream
	})

	assert.ErrorIs(t, err, upstream)
	assert.Zero(t, ref.calls, "non-auth failures must not trigger a refresh")
}

func TestDoSaveFailureDoesNotFailRequest(t *testing.T) {
	ref := &stubRefresher{token: &models.ProviderToken{AccessToken: "fresh"}}
	runner := newTestRunner(ref)

	token := &models.ProviderToken{AccessToken: "revoked"}
	save := func(ctx context.Context, t *models.ProviderToken) error {
		return errors.New("store down")
	}
	err := runner.Do(context.Background(), token, save, func(ctx context.Context, got *models.ProviderToken) error {
		if got.AccessToken == "revoked" {
			return ErrAuthExpired
		}
		return nil
	})

	assert.NoError(t, err)
}
