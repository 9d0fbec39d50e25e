package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"

	config "github.com/maheshrc27/postflow/configs"
	"github.com/maheshrc27/postflow/internal/models"
)

const (
	scheduledMaxRetry = 3
	defaultRetention  = 24 * time.Hour
)

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type taskInspector interface {
	DeleteTask(queue, id string) error
	GetTaskInfo(queue, id string) (*asynq.TaskInfo, error)
}

// Client enqueues scheduled publishes and polling tasks.
type Client struct {
	enq       enqueuer
	insp      taskInspector
	tuning    config.Tuning
	retention time.Duration
}

func NewClient(enq enqueuer, insp taskInspector, tuning config.Tuning) *Client {
	return &Client{enq: enq, insp: insp, tuning: tuning, retention: defaultRetention}
}

// EnqueuePoll queues the first status check of a pending publish after the
// platform's base delay. Enqueuing the same pending operation twice changes
// nothing and returns models.ErrTaskQueued with the existing task id.
func (c *Client) EnqueuePoll(ctx context.Context, task *models.PollTask) (string, error) {
	payload, err := json.Marshal(task)
	if err != nil {
		return "", err
	}

	pt := c.tuning.For(task.Platform)
	maxRetry := pt.MaxAttempts - 1
	if maxRetry < 0 {
		maxRetry = 0
	}
	id := PollTaskID(task.RecordID, task.PendingOperationID)

	_, err = c.enq.EnqueueContext(ctx, asynq.NewTask(TaskTypePublishPoll, payload),
		asynq.TaskID(id),
		asynq.Queue(PollQueue(task.Platform)),
		asynq.MaxRetry(maxRetry),
		asynq.ProcessIn(pt.BaseDelay),
		asynq.Retention(c.retention),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return id, fmt.Errorf("poll task %s: %w", id, models.ErrTaskQueued)
	}
	if err != nil {
		return "", fmt.Errorf("enqueue poll task: %w", err)
	}
	return id, nil
}

// PollTaskInfo returns the queued polling task of the pending operation, or
// nil when the queue no longer holds it.
func (c *Client) PollTaskInfo(_ context.Context, task *models.PollTask) (*asynq.TaskInfo, error) {
	info, err := c.insp.GetTaskInfo(PollQueue(task.Platform), PollTaskID(task.RecordID, task.PendingOperationID))
	if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("inspect poll task: %w", err)
	}
	return info, nil
}

// RemovePoll deletes the polling task of the pending operation so it can be
// enqueued again.
func (c *Client) RemovePoll(_ context.Context, task *models.PollTask) error {
	err := c.insp.DeleteTask(PollQueue(task.Platform), PollTaskID(task.RecordID, task.PendingOperationID))
	if err == nil || errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
		return nil
	}
	return fmt.Errorf("remove poll task: %w", err)
}

// SchedulePost replaces any existing scheduled task of the post with one that
// fires after delay.
func (c *Client) SchedulePost(ctx context.Context, payload models.ScheduledTask, delay time.Duration) (string, error) {
	if err := c.UnschedulePost(ctx, payload.PostID); err != nil {
		return "", err
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	id := ScheduledTaskID(payload.PostID)
	_, err = c.enq.EnqueueContext(ctx, asynq.NewTask(TaskTypeSchedulePost, data),
		asynq.TaskID(id),
		asynq.Queue(QueueScheduled),
		asynq.MaxRetry(scheduledMaxRetry),
		asynq.ProcessIn(delay),
		asynq.Retention(c.retention),
	)
	if err != nil {
		return "", fmt.Errorf("enqueue scheduled post: %w", err)
	}

	log.Info().Int64("post_id", payload.PostID).Dur("delay", delay).Str("task_id", id).Msg("post scheduled")
	return id, nil
}

func (c *Client) UnschedulePost(_ context.Context, postID int64) error {
	err := c.insp.DeleteTask(QueueScheduled, ScheduledTaskID(postID))
	if err == nil || errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
		return nil
	}
	return fmt.Errorf("remove scheduled post %d: %w", postID, err)
}
