package service

import (
	"context"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/maheshrc27/postflow/internal/models"
)

// TopicPostUpdated is the live-update topic carrying PostUpdate events.
const TopicPostUpdated = "postUpdated"

// PostUpdate is sent to clients whenever the state of a post changes.
type PostUpdate struct {
	PostID         int64             `json:"post_id"`
	UserID         int64             `json:"user_id"`
	TenantID       int64             `json:"tenant_id"`
	Status         string            `json:"status"`
	Platform       string            `json:"platform,omitempty"`
	FailureReasons map[string]string `json:"failure_reasons,omitempty"`
}

// PartitionKey keeps the updates of one post in order on partitioned transports.
func (u PostUpdate) PartitionKey() string { return strconv.FormatInt(u.PostID, 10) }

// LiveUpdates pushes events to connected clients.
type LiveUpdates interface {
	Publish(ctx context.Context, topic string, payload any) error
}

// PollEnqueuer hands a polling task to the job queue and returns its task id.
type PollEnqueuer interface {
	EnqueuePoll(ctx context.Context, task *models.PollTask) (string, error)
}

type TaskScheduler interface {
	SchedulePost(ctx context.Context, payload models.ScheduledTask, delay time.Duration) (string, error)
	UnschedulePost(ctx context.Context, postID int64) error
}

// ProgressReporter records how far the task running in ctx has got, 0 to 100.
type ProgressReporter interface {
	Report(ctx context.Context, percent int)
}

type noProgress struct{}

func (noProgress) Report(context.Context, int) {}

type noLiveUpdates struct{}

func (noLiveUpdates) Publish(context.Context, string, any) error { return nil }

// emitter sends post updates without ever failing the caller.
type emitter struct {
	live    LiveUpdates
	timeout time.Duration
}

func (e emitter) postUpdated(ctx context.Context, post *models.Post, platform string) {
	if post == nil {
		return
	}
	timeout := e.timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	update := PostUpdate{
		PostID:         post.ID,
		UserID:         post.UserID,
		TenantID:       post.TenantID,
		Status:         post.Status,
		Platform:       platform,
		FailureReasons: post.FailureReasons,
	}
	if err := e.live.Publish(ctx, TopicPostUpdated, update); err != nil {
		log.Warn().Err(err).Int64("post_id", post.ID).Msg("live update not delivered")
	}
}

// safely runs a notification hook and recovers from any panic in it.
func safely(platform, hook string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("platform", platform).Str("hook", hook).Interface("panic", r).Msg("notification hook panicked")
		}
	}()
	fn()
}
