package queue

import (
	"encoding/json"
	"math"
	"time"

	"github.com/hibiken/asynq"

	config "github.com/maheshrc27/postflow/configs"
	"github.com/maheshrc27/postflow/internal/models"
)

// RetryDelay returns asynq's retry delay function. Polling tasks back off
// exponentially from their platform's base delay up to its max delay; other
// tasks use asynq's default.
func RetryDelay(tuning config.Tuning) asynq.RetryDelayFunc {
	return func(n int, err error, task *asynq.Task) time.Duration {
		if task == nil || task.Type() != TaskTypePublishPoll {
			return asynq.DefaultRetryDelayFunc(n, err, task)
		}

		var p models.PollTask
		if jsonErr := json.Unmarshal(task.Payload(), &p); jsonErr != nil {
			return asynq.DefaultRetryDelayFunc(n, err, task)
		}
		return Backoff(tuning.For(p.Platform), n)
	}
}

// Backoff is base * 2^n, capped at the max delay. n counts earlier retries.
func Backoff(pt config.PollTuning, n int) time.Duration {
	if n < 0 {
		n = 0
	}
	if n > 30 {
		n = 30
	}
	base := pt.BaseDelay
	if base <= 0 {
		base = time.Second
	}
	d := time.Duration(float64(base) * math.Pow(2, float64(n)))
	if pt.MaxDelay > 0 && (d > pt.MaxDelay || d <= 0) {
		return pt.MaxDelay
	}
	return d
}
