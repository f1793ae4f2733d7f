package draftstore

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
	"github.com/kamnsolar/field_capture/config"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const redisLockTTL = 15 * time.Second

// RedisBackend stores the draft under a single redis key. A tablet and the
// local agent may share one draft through it.
type RedisBackend struct {
	client *redis.Client
	locker *redislock.Client
	key    string
}

func NewRedisBackend(client *redis.Client, locker *redislock.Client, key string) *RedisBackend {
	return &RedisBackend{client: client, locker: locker, key: key}
}

func (r *RedisBackend) Name() string { return "redis:" + r.key }

func (r *RedisBackend) Read(ctx context.Context) ([]byte, bool, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (r *RedisBackend) Write(ctx context.Context, data []byte) error {
	return r.client.Set(ctx, r.key, data, 0).Err()
}

func (r *RedisBackend) Delete(ctx context.Context) error {
	return r.client.Del(ctx, r.key).Err()
}

// Lock is best effort: when the lock cannot be obtained the update
// proceeds unlocked and a warning is logged.
func (r *RedisBackend) Lock(ctx context.Context) (func(), error) {
	logger := config.GetLogger()
	if r.locker == nil {
		logger.WithFields(logrus.Fields{
			"module": "draftstore",
			"key":    r.key,
		}).Warn("redis lock not ready; proceeding without redis lock")
		return func() {}, nil
	}
	lock, err := r.locker.Obtain(ctx, "lock:"+r.key, redisLockTTL, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), 50),
	})
	if err != nil {
		msg := "error obtaining redis lock; proceeding without redis lock: " + err.Error()
		if errors.Is(err, redislock.ErrNotObtained) {
			msg = "could not obtain redis lock; proceeding without redis lock"
		}
		logger.WithFields(logrus.Fields{
			"module": "draftstore",
			"key":    r.key,
		}).Warn(msg)
		return func() {}, nil
	}
	return func() {
		if releaseErr := lock.Release(context.Background()); releaseErr != nil {
			logger.WithFields(logrus.Fields{
				"module": "draftstore",
				"key":    r.key,
			}).Warn("failed to release redis lock: " + releaseErr.Error())
		}
	}, nil
}
