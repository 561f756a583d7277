package pendingintent

import (
	"context"
	"errors"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/ohx-cloud/authd/pkg/log"
)

const keyPrefix = "pending_intent/"

// Redis is the production Store backend, grounded on the same
// SetNX/Get/Del/Keys pattern the teacher's own redis storage backend uses
// for its auth-code and device-request tables, upgraded to go-redis v9's
// UniversalClient.
type Redis struct {
	db     goredis.UniversalClient
	logger log.Logger
}

// NewRedis wraps an already-configured go-redis client.
func NewRedis(db goredis.UniversalClient, logger log.Logger) *Redis {
	return &Redis{db: db, logger: logger}
}

func (r *Redis) PutIfAbsent(ctx context.Context, code, value string, ttl time.Duration) error {
	ok, err := r.db.SetNX(ctx, keyPrefix+code, value, ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrAlreadyUsed
	}
	return nil
}

func (r *Redis) Get(ctx context.Context, code string) (string, error) {
	val, err := r.db.Get(ctx, keyPrefix+code).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", ErrNotFound
		}
		return "", err
	}
	return val, nil
}

func (r *Redis) Delete(ctx context.Context, code string) error {
	if err := r.db.Del(ctx, keyPrefix+code).Err(); err != nil {
		r.logger.Warnf("pendingintent: delete %s: %v", code, err)
		return err
	}
	return nil
}

func (r *Redis) Keys(ctx context.Context) ([]string, error) {
	keys, err := r.db.Keys(ctx, keyPrefix+"*").Result()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, strings.TrimPrefix(k, keyPrefix))
	}
	return out, nil
}
