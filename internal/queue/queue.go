// Package queue runs scheduled publishes and publish polling on asynq.
package queue

import (
	"errors"
	"fmt"
	"strings"
)

const (
	TaskTypeSchedulePost = "schedule:post"
	TaskTypePublishPoll  = "publish:poll"

	QueueScheduled = "scheduled"

	pollQueuePrefix = "poll_"
)

// ErrStillProcessing asks asynq to run a polling task again. It counts as a
// retry so the backoff grows and the task stops after its max attempts.
var ErrStillProcessing = errors.New("platform is still processing the post")

// PollQueue is the queue polling tasks of platform run on.
func PollQueue(platform string) string {
	return pollQueuePrefix + platform
}

// Queues lists the scheduled queue followed by the poll queue of every platform.
func Queues(pollPlatforms []string) []string {
	queues := []string{QueueScheduled}
	for _, p := range pollPlatforms {
		queues = append(queues, PollQueue(p))
	}
	return queues
}

func ScheduledTaskID(postID int64) string {
	return fmt.Sprintf("scheduled-post:%d", postID)
}

// PollTaskID identifies the polling task of one pending operation, so the same
// operation is never polled by two tasks.
func PollTaskID(recordID int64, pendingID string) string {
	return fmt.Sprintf("poll:%d:%s", recordID, strings.ReplaceAll(pendingID, ":", "_"))
}
