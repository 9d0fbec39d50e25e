package queue

import (
	"context"
	"errors"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"

	config "github.com/maheshrc27/postflow/configs"
)

// Servers is the set of asynq servers consuming the publish queues. Platforms
// with a concurrency in their tuning get a dedicated server so their polling
// never exceeds it; every other queue shares the main server.
type Servers struct {
	servers []*asynq.Server
}

func NewServers(redis asynq.RedisConnOpt, tuning config.Tuning, pollPlatforms []string, concurrency int) *Servers {
	shared := map[string]int{QueueScheduled: 6}
	var dedicated []*asynq.Server
	for _, p := range pollPlatforms {
		pt := tuning.For(p)
		if pt.Concurrency > 0 {
			dedicated = append(dedicated, asynq.NewServer(redis, serverConfig(tuning, pt.Concurrency, map[string]int{PollQueue(p): 1})))
			continue
		}
		shared[PollQueue(p)] = 3
	}

	servers := append([]*asynq.Server{asynq.NewServer(redis, serverConfig(tuning, concurrency, shared))}, dedicated...)
	return &Servers{servers: servers}
}

func serverConfig(tuning config.Tuning, concurrency int, queues map[string]int) asynq.Config {
	return asynq.Config{
		Concurrency:    concurrency,
		Queues:         queues,
		RetryDelayFunc: RetryDelay(tuning),
		Logger:         NewLogger(),
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			if errors.Is(err, ErrStillProcessing) {
				return
			}
			taskID, _ := asynq.GetTaskID(ctx)
			log.Error().Err(err).Str("task_id", taskID).Str("type", task.Type()).Msg("task failed")
		}),
	}
}

// Start starts every server with the same handler.
func (s *Servers) Start(handler asynq.Handler) error {
	for _, srv := range s.servers {
		if err := srv.Start(handler); err != nil {
			s.Shutdown()
			return err
		}
	}
	return nil
}

func (s *Servers) Shutdown() {
	for _, srv := range s.servers {
		srv.Shutdown()
	}
}
