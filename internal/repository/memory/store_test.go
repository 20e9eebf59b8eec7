package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expense-bff/internal/models"
	"expense-bff/internal/repository"
)

func TestProfileUpsertAndGet(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	_, err := store.GetProfile(ctx, "user@example.com")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	profile := &models.UserProfile{
		Email:        "user@example.com",
		NameKanji:    "山田太郎",
		NameAlphabet: "Taro Yamada",
	}
	require.NoError(t, store.UpsertProfile(ctx, profile))

	got, err := store.GetProfile(ctx, "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Taro Yamada", got.NameAlphabet)

	// Upsert replaces.
	profile.NameAlphabet = "T. Yamada"
	require.NoError(t, store.UpsertProfile(ctx, profile))
	got, err = store.GetProfile(ctx, "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, "T. Yamada", got.NameAlphabet)
}

func TestTokensAreScopedPerProvider(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	require.NoError(t, store.SaveToken(ctx, "user@example.com", models.ProviderGoogle, "g-payload"))
	require.NoError(t, store.SaveToken(ctx, "user@example.com", models.ProviderSalesforce, "s-payload"))

	require.NoError(t, store.ClearToken(ctx, "user@example.com", models.ProviderGoogle))

	_, err := store.GetToken(ctx, "user@example.com", models.ProviderGoogle)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	payload, err := store.GetToken(ctx, "user@example.com", models.ProviderSalesforce)
	require.NoError(t, err)
	assert.Equal(t, "s-payload", payload)
}

func TestChallengeLifecycle(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	challenge := &models.PasscodeChallenge{
		Email:     "user@example.com",
		CodeHash:  "hash",
		ExpiresAt: time.Now().Add(10 * time.Minute),
	}
	require.NoError(t, store.Put(ctx, challenge, 10*time.Minute))

	got, err := store.Get(ctx, "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, "hash", got.CodeHash)

	require.NoError(t, store.Delete(ctx, "user@example.com"))
	_, err = store.Get(ctx, "user@example.com")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestSweepExpiredRemovesOnlyExpired(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	now := time.Now()
	store.now = func() time.Time { return now }

	require.NoError(t, store.Put(ctx, &models.PasscodeChallenge{
		Email:     "old@example.com",
		ExpiresAt: now.Add(-time.Minute),
	}, 0))
	require.NoError(t, store.Put(ctx, &models.PasscodeChallenge{
		Email:     "live@example.com",
		ExpiresAt: now.Add(time.Minute),
	}, 0))

	require.NoError(t, store.SweepExpired(ctx))

	_, err := store.Get(ctx, "old@example.com")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = store.Get(ctx, "live@example.com")
	assert.NoError(t, err)
}
