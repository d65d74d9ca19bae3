package locker

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const lockReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

const lockTTL = 30 * time.Second

// retryInterval is how often a contended lock is re-attempted.
const retryInterval = 50 * time.Millisecond

// redisLocker holds machine locks in redis so approvals serialize across
// replicas. Locks auto-expire after lockTTL in case a holder dies.
type redisLocker struct {
	client *redis.Client
	script *redis.Script
}

func NewRedisLocker(client *redis.Client) (MachineLocker, error) {
	if client == nil {
		return nil, errors.New("lock client not configured")
	}
	return &redisLocker{
		client: client,
		script: redis.NewScript(lockReleaseScript),
	}, nil
}

func (l *redisLocker) Acquire(ctx context.Context, machineID string) (func(), error) {
	key := "vendora:machine-lock:" + machineID
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, key, token, lockTTL).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			break
		}
		select {
		case <-time.After(retryInterval):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	release := func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = l.script.Run(releaseCtx, l.client, []string{key}, token).Err()
	}
	return release, nil
}
