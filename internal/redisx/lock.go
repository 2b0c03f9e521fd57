package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only if it still belongs to the caller.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// AccountLocker is a SET NX guard keyed by account id. The TTL bounds how
// long a crashed holder can block others.
type AccountLocker struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewAccountLocker(rdb redis.Cmdable, ttl time.Duration) *AccountLocker {
	if ttl <= 0 {
		ttl = TTLAccountLock
	}
	return &AccountLocker{rdb: rdb, ttl: ttl}
}

func (l *AccountLocker) Acquire(ctx context.Context, accountID string) (func(), bool, error) {
	key := fmt.Sprintf(KeyAccountLock, accountID)
	owner := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, key, owner, l.ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, l.rdb, []string{key}, owner).Err()
	}
	return release, true, nil
}
