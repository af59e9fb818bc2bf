package locks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/travigo/railtracker/pkg/tracker"
)

var errHeld = errors.New("lock held")

var unlockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLocker is a per-key lock shared by all instances through redis.
// TTL bounds how long a crashed holder blocks the key, Wait how long Lock retries.
type RedisLocker struct {
	Client *redis.Client

	TTL  time.Duration
	Wait time.Duration
}

func lockKey(key string) string {
	return "lock:" + key
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()

	retryBackoff := backoff.NewExponentialBackOff()
	retryBackoff.InitialInterval = 10 * time.Millisecond
	retryBackoff.MaxInterval = 250 * time.Millisecond
	retryBackoff.MaxElapsedTime = l.Wait

	err := backoff.Retry(func() error {
		acquired, err := l.Client.SetNX(ctx, lockKey(key), token, l.TTL).Result()
		if err != nil {
			return backoff.Permanent(err)
		}
		if !acquired {
			return errHeld
		}

		return nil
	}, backoff.WithContext(retryBackoff, ctx))

	if errors.Is(err, errHeld) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return nil, fmt.Errorf("%w: %s", tracker.ErrLocked, key)
	} else if err != nil {
		return nil, err
	}

	return func() {
		if err := unlockScript.Run(context.Background(), l.Client, []string{lockKey(key)}, token).Err(); err != nil {
			log.Error().Err(err).Str("key", key).Msg("Failed to release lock")
		}
	}, nil
}
