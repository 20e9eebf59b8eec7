package bucketing

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"expense-bff/internal/config"
)

func newTestManager(buckets int) *BucketingManager {
	return NewBucketingManager(&config.Config{
		Bucketing: config.BucketingConfig{UserBuckets: buckets},
	})
}

func TestGetUserBucketIsDeterministic(t *testing.T) {
	bm := newTestManager(64)

	first := bm.GetUserBucket("user@example.com")
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, bm.GetUserBucket("user@example.com"))
	}
}

func TestGetUserBucketStaysInRange(t *testing.T) {
	bm := newTestManager(16)

	for i := 0; i < 1000; i++ {
		bucket := bm.GetUserBucket(fmt.Sprintf("user%d@example.com", i))
		assert.GreaterOrEqual(t, bucket, 0)
		assert.Less(t, bucket, 16)
	}
}

func TestDifferentEmailsSpreadAcrossBuckets(t *testing.T) {
	bm := newTestManager(8)

	seen := make(map[int]bool)
	for i := 0; i < 200; i++ {
		seen[bm.GetUserBucket(fmt.Sprintf("user%d@example.com", i))] = true
	}
	assert.Greater(t, len(seen), 1)
}
