package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const deliveryLockPrefix = "lock:delivery:"

// releaseScript deletes a lock only while it still belongs to the caller, so
// a driver whose lock expired cannot release the lock of the next driver.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// LockStore handles distributed locking in Redis.
type LockStore struct {
	client *redis.Client
}

// NewLockStore creates a new LockStore.
func NewLockStore(client *redis.Client) *LockStore {
	return &LockStore{client: client}
}

// DeliveryLockKey returns the Redis key of a delivery's acceptance lock.
func DeliveryLockKey(deliveryID string) string {
	return deliveryLockPrefix + deliveryID
}

// AcquireDeliveryLock attempts to take the acceptance lock of a delivery for
// owner. Returns true if the lock was acquired, false if already held.
func (s *LockStore) AcquireDeliveryLock(ctx context.Context, deliveryID, owner string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, DeliveryLockKey(deliveryID), owner, ttl).Result()
}

// ReleaseDeliveryLock releases the acceptance lock of a delivery if owner
// still holds it.
func (s *LockStore) ReleaseDeliveryLock(ctx context.Context, deliveryID, owner string) error {
	return releaseScript.Run(ctx, s.client, []string{DeliveryLockKey(deliveryID)}, owner).Err()
}
