package transfer

import (
	"time"

	"github.com/maheshrc27/postflow/internal/models"
)

type PostCreation struct {
	Title         string                             `json:"title"`
	Caption       string                             `json:"caption"`
	Media         []string                           `json:"media"`
	Platforms     []string                           `json:"platforms"`
	ScheduledTime *time.Time                         `json:"scheduled_time"`
	Overrides     map[string]models.PlatformOverride `json:"platform_overrides"`
}

type ScheduleUpdate struct {
	ScheduledTime *time.Time `json:"scheduled_time"`
}

type PostDetails struct {
	Post    *models.Post            `json:"post"`
	Records []*models.PublishRecord `json:"records"`
}
