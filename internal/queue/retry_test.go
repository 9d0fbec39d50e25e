package queue

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "github.com/maheshrc27/postflow/configs"
	"github.com/maheshrc27/postflow/internal/models"
)

func TestBackoff(t *testing.T) {
	pt := config.PollTuning{BaseDelay: 5 * time.Second, MaxDelay: time.Minute}

	tests := []struct {
		n    int
		want time.Duration
	}{
		{-1, 5 * time.Second},
		{0, 5 * time.Second},
		{1, 10 * time.Second},
		{2, 20 * time.Second},
		{3, 40 * time.Second},
		{4, time.Minute},
		{1000, time.Minute},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.n), func(t *testing.T) {
			assert.Equal(t, tt.want, Backoff(pt, tt.n))
		})
	}
}

func TestRetryDelayUsesPlatformTuning(t *testing.T) {
	delay := RetryDelay(config.DefaultTuning())

	payload, err := json.Marshal(models.PollTask{Platform: "tiktok"})
	require.NoError(t, err)
	assert.Equal(t, 40*time.Second, delay(2, ErrStillProcessing, asynq.NewTask(TaskTypePublishPoll, payload)))

	payload, err = json.Marshal(models.PollTask{Platform: "youtube"})
	require.NoError(t, err)
	assert.Equal(t, 20*time.Second, delay(2, ErrStillProcessing, asynq.NewTask(TaskTypePublishPoll, payload)))
}

func TestTaskIDs(t *testing.T) {
	assert.Equal(t, "scheduled-post:12", ScheduledTaskID(12))
	assert.Equal(t, "poll:3:abc", PollTaskID(3, "abc"))
	assert.Equal(t, []string{"scheduled", "poll_tiktok", "poll_instagram"}, Queues([]string{"tiktok", "instagram"}))
}
