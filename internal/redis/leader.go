// Package redis holds the Redis-backed coordination helpers: leader election
// for the periodic workers and the notification rate limiter.
//
// Neither is required for correctness — materialization and due-soon
// notification are idempotent — so losing Redis only degrades to duplicate
// scans and unthrottled sends, never to data corruption.
package redis

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewClient creates a Redis client with short timeouts appropriate for
// coordination traffic.
func NewClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
		PoolSize:     10,
	})
}

// LeaderElector lets one replica of a worker claim a named leadership key so
// only one instance scans per tick. The claim expires after ttl, so a dead
// leader is replaced within one ttl window.
type LeaderElector struct {
	client     *redis.Client
	key        string
	instanceID string
	ttl        time.Duration
	logger     *slog.Logger
}

// NewLeaderElector creates an elector for the given worker name.
func NewLeaderElector(client *redis.Client, workerName, instanceID string, ttl time.Duration, logger *slog.Logger) *LeaderElector {
	return &LeaderElector{
		client:     client,
		key:        "leader:" + workerName,
		instanceID: instanceID,
		ttl:        ttl,
		logger:     logger,
	}
}

// renewScript extends the claim only if this instance still owns it; the
// check-and-expire must be atomic to avoid stealing a rival's fresh claim.
var renewScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("pexpire", KEYS[1], ARGV[2])
	end
	return 0
`)

// AcquireOrRenew attempts SETNX; returns true if this instance is the leader.
func (l *LeaderElector) AcquireOrRenew(ctx context.Context) bool {
	ok, err := l.client.SetNX(ctx, l.key, l.instanceID, l.ttl).Result()
	if err != nil {
		l.logger.Error("leader election SetNX", slog.String("error", err.Error()))
		return false
	}
	if ok {
		l.logger.Info("acquired leadership",
			slog.String("key", l.key),
			slog.String("instance_id", l.instanceID),
		)
		return true
	}

	result, err := renewScript.Run(
		ctx, l.client,
		[]string{l.key},
		l.instanceID,
		l.ttl.Milliseconds(),
	).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		l.logger.Error("leader renewal", slog.String("error", err.Error()))
		return false
	}
	return result == 1
}
