package redis

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/ClaimLens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ClaimLens/pkg/errors"
)

var (
	ErrLockNotAcquired = errors.New(errors.ErrCodeConflict, "lock held by another owner")
	ErrLockNotHeld     = errors.New(errors.ErrCodeConflict, "lock not held by this owner")
)

const (
	DefaultLockPrefix = "claimlens:lock:"
	DefaultLockTTL    = 30 * time.Second
)

const unlockScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`

// Locker hands out single-owner locks. Workers use it so that one claim text
// is annotated by one consumer at a time.
type Locker struct {
	client   *Client
	logger   logging.Logger
	prefix   string
	ttl      time.Duration
	newToken func() string
}

func NewLocker(client *Client, log logging.Logger, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	return &Locker{
		client:   client,
		logger:   logging.OrNop(log),
		prefix:   DefaultLockPrefix,
		ttl:      ttl,
		newToken: uuid.NewString,
	}
}

// Lock is a held lock. It expires on its own after the Locker's TTL.
type Lock struct {
	client *Client
	key    string
	token  string
}

// TryLock acquires name without waiting. It returns ErrLockNotAcquired when
// another owner holds it.
func (l *Locker) TryLock(ctx context.Context, name string) (*Lock, error) {
	key := l.prefix + name
	token := l.newToken()
	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeCacheError, "acquire lock")
	}
	if !ok {
		return nil, ErrLockNotAcquired.WithDetail(name)
	}
	l.logger.Debug("lock acquired", logging.String("key", key))
	return &Lock{client: l.client, key: key, token: token}, nil
}

// Unlock releases the lock if this owner still holds it.
func (lk *Lock) Unlock(ctx context.Context) error {
	res, err := lk.client.Eval(ctx, unlockScript, []string{lk.key}, lk.token).Int64()
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "release lock")
	}
	if res == 0 {
		return ErrLockNotHeld.WithDetail(lk.key)
	}
	return nil
}
