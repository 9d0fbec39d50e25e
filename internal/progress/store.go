// Package progress keeps the completion percentage of queued tasks in Redis.
package progress

import (
	"context"
	"errors"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const keyPrefix = "postflow:progress:"

// raise stores the new value only when it is higher than the current one, so
// concurrent branches reporting out of order never move progress backwards.
var raise = redis.NewScript(`
local current = tonumber(redis.call("GET", KEYS[1]) or "-1")
local next = tonumber(ARGV[1])
if next > current then
	redis.call("SET", KEYS[1], next, "PX", ARGV[2])
	return next
end
redis.call("PEXPIRE", KEYS[1], ARGV[2])
return current
`)

type Store struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

func NewStore(rdb redis.UniversalClient, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Store{rdb: rdb, ttl: ttl}
}

// Report records progress for the asynq task running in ctx. Outside a task it
// does nothing.
func (s *Store) Report(ctx context.Context, percent int) {
	taskID, ok := asynq.GetTaskID(ctx)
	if !ok {
		return
	}
	if err := s.Set(ctx, taskID, percent); err != nil {
		log.Debug().Err(err).Str("task_id", taskID).Msg("progress not stored")
	}
}

func (s *Store) Set(ctx context.Context, taskID string, percent int) error {
	return raise.Run(ctx, s.rdb, []string{keyPrefix + taskID}, Clamp(percent), s.ttl.Milliseconds()).Err()
}

// Get returns the stored progress of a task, 0 when nothing was reported.
func (s *Store) Get(ctx context.Context, taskID string) (int, error) {
	v, err := s.rdb.Get(ctx, keyPrefix+taskID).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return v, nil
}

func Clamp(percent int) int {
	switch {
	case percent < 0:
		return 0
	case percent > 100:
		return 100
	}
	return percent
}
