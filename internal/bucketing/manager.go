// Package bucketing spreads emails across a fixed number of buckets so the
// Scylla partition key stays narrow regardless of user count.
package bucketing

import (
	"hash"
	"sync"

	"github.com/spaolacci/murmur3"

	"expense-bff/internal/config"
)

type BucketingManager struct {
	userBuckets int
	hasherPool  sync.Pool
}

func NewBucketingManager(cfg *config.Config) *BucketingManager {
	bm := &BucketingManager{
		userBuckets: cfg.Bucketing.UserBuckets,
	}

	// Pool of hash functions to avoid allocation overhead
	bm.hasherPool = sync.Pool{
		New: func() interface{} {
			return murmur3.New64()
		},
	}

	return bm
}

// GetUserBucket returns the consistent bucket for an email (0 to userBuckets-1).
func (bm *BucketingManager) GetUserBucket(email string) int {
	return int(bm.getHash(email) % uint64(bm.userBuckets))
}

func (bm *BucketingManager) GetUserBuckets() int {
	return bm.userBuckets
}

func (bm *BucketingManager) getHash(key string) uint64 {
	hasher := bm.hasherPool.Get().(hash.Hash64)
	defer bm.hasherPool.Put(hasher)

	hasher.Reset()
	hasher.Write([]byte(key))
	return hasher.Sum64()
}
