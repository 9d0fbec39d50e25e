package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"

	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/service"
)

// Worker handles the tasks enqueued by Client.
type Worker struct {
	ps service.PublishService
	pl service.PollService
}

func NewWorker(ps service.PublishService, pl service.PollService) *Worker {
	return &Worker{ps: ps, pl: pl}
}

func (w *Worker) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TaskTypeSchedulePost, w.HandleSchedulePostTask)
	mux.HandleFunc(TaskTypePublishPoll, w.HandlePublishPollTask)
}

type scheduleResult struct {
	PostID         int64             `json:"post_id"`
	Status         string            `json:"status"`
	FailureReasons map[string]string `json:"failure_reasons,omitempty"`
}

func (w *Worker) HandleSchedulePostTask(ctx context.Context, task *asynq.Task) error {
	var payload models.ScheduledTask
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode scheduled post: %v: %w", err, asynq.SkipRetry)
	}

	post, err := w.ps.Publish(ctx, payload.PostID, payload.UserID, payload.TenantID)
	if err != nil {
		if errors.Is(err, models.ErrValidation) || errors.Is(err, models.ErrNotFound) {
			log.Info().Err(err).Int64("post_id", payload.PostID).Msg("scheduled publish skipped")
			return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
		}
		return err
	}

	writeResult(task, scheduleResult{PostID: post.ID, Status: post.Status, FailureReasons: post.FailureReasons})
	return nil
}

type pollResult struct {
	RecordID int64  `json:"record_id"`
	Outcome  string `json:"outcome"`
}

func (w *Worker) HandlePublishPollTask(ctx context.Context, task *asynq.Task) error {
	var payload models.PollTask
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode poll task: %v: %w", err, asynq.SkipRetry)
	}

	outcome, err := w.pl.Poll(ctx, &payload)
	switch outcome {
	case service.OutcomeFatal:
		log.Error().Err(err).Int64("record_id", payload.RecordID).Str("platform", payload.Platform).Msg("poll task cannot run")
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)

	case service.OutcomeRetry:
		if lastAttempt(ctx) {
			reason := "platform did not finish processing in time"
			if err != nil {
				reason = fmt.Sprintf("status checks kept failing: %v", err)
			}
			if expErr := w.pl.Expire(ctx, &payload, reason); expErr != nil {
				return expErr
			}
			writeResult(task, pollResult{RecordID: payload.RecordID, Outcome: "timed_out"})
			return fmt.Errorf("polling gave up: %w", asynq.SkipRetry)
		}
		if err != nil {
			return err
		}
		return ErrStillProcessing
	}

	if err != nil {
		return err
	}
	writeResult(task, pollResult{RecordID: payload.RecordID, Outcome: outcome.String()})
	return nil
}

// lastAttempt reports whether asynq will not retry the task running in ctx.
func lastAttempt(ctx context.Context) bool {
	retried, ok := asynq.GetRetryCount(ctx)
	if !ok {
		return false
	}
	maxRetry, ok := asynq.GetMaxRetry(ctx)
	if !ok {
		return false
	}
	return retried >= maxRetry
}

func writeResult(task *asynq.Task, v any) {
	rw := task.ResultWriter()
	if rw == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if _, err := rw.Write(data); err != nil {
		log.Debug().Err(err).Str("task_id", rw.TaskID()).Msg("task result not stored")
	}
}
