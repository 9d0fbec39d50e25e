package gateway

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/maheshrc27/postflow/internal/models"
)

// Hooks provides the platform name and logging notification hooks.
type Hooks struct {
	name string
}

func (h Hooks) Platform() string { return h.name }

func (h Hooks) NotifyPublished(_ context.Context, post *models.Post, record *models.PublishRecord) {
	log.Info().
		Str("platform", h.name).
		Int64("post_id", post.ID).
		Str("platform_post_id", record.PlatformPostID).
		Str("url", record.PlatformPostURL).
		Msg("post published")
}

func (h Hooks) NotifyScheduled(_ context.Context, post *models.Post) {
	ev := log.Info().Str("platform", h.name).Int64("post_id", post.ID)
	if post.ScheduledTime != nil {
		ev = ev.Time("scheduled_time", *post.ScheduledTime)
	}
	ev.Msg("post scheduled")
}

func (h Hooks) NotifyFailed(_ context.Context, post *models.Post, reason string) {
	log.Warn().Str("platform", h.name).Int64("post_id", post.ID).Str("reason", reason).Msg("publish failed")
}
