// Package redischal stores passcode challenges in Redis. TTL handling is
// native: challenges disappear on expiry without sweeping.
package redischal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"expense-bff/internal/client"
	"expense-bff/internal/models"
	"expense-bff/internal/repository"
	"expense-bff/internal/util"
)

const challengePrefix = "passcode:"

const opTimeout = 5 * time.Second

type ChallengeCache struct {
	client *client.RedisClient
}

var _ repository.ChallengeStore = (*ChallengeCache)(nil)

func NewChallengeCache(client *client.RedisClient) *ChallengeCache {
	return &ChallengeCache{client: client}
}

func (c *ChallengeCache) Put(ctx context.Context, challenge *models.PasscodeChallenge, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	payload, err := json.Marshal(challenge)
	if err != nil {
		return fmt.Errorf("failed to encode challenge: %w", err)
	}

	key := challengePrefix + challenge.Email
	if err := c.client.Set(ctx, key, payload, ttl); err != nil {
		util.Error("Failed to store passcode challenge",
			zap.String("email", challenge.Email),
			zap.Duration("ttl", ttl),
			zap.Error(err))
		return fmt.Errorf("failed to store challenge: %w", err)
	}
	return nil
}

func (c *ChallengeCache) Get(ctx context.Context, email string) (*models.PasscodeChallenge, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	payload, err := c.client.Get(ctx, challengePrefix+email)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, repository.ErrNotFound
		}
		util.Error("Failed to read passcode challenge",
			zap.String("email", email),
			zap.Error(err))
		return nil, fmt.Errorf("failed to read challenge: %w", err)
	}

	var challenge models.PasscodeChallenge
	if err := json.Unmarshal([]byte(payload), &challenge); err != nil {
		return nil, fmt.Errorf("invalid challenge payload: %w", err)
	}
	return &challenge, nil
}

func (c *ChallengeCache) Delete(ctx context.Context, email string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if err := c.client.Del(ctx, challengePrefix+email); err != nil {
		util.Error("Failed to delete passcode challenge",
			zap.String("email", email),
			zap.Error(err))
		return fmt.Errorf("failed to delete challenge: %w", err)
	}
	return nil
}

// SweepExpired is a no-op: Redis expires challenge keys itself.
func (c *ChallengeCache) SweepExpired(context.Context) error {
	return nil
}
