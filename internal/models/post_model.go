package models

import (
	"time"

	"github.com/lib/pq"
)

type Post struct {
	ID             int64             `db:"id" json:"id"`
	UserID         int64             `db:"user_id" json:"user_id"`
	TenantID       int64             `db:"tenant_id" json:"tenant_id"`
	Title          string            `db:"title" json:"title"`
	Caption        string            `db:"caption" json:"caption"`
	Media          pq.StringArray    `db:"media" json:"media"`
	Platforms      pq.StringArray    `db:"platforms" json:"platforms"`
	Status         string            `db:"status" json:"status"` // draft, scheduled, published, failed
	ScheduledTime  *time.Time        `db:"scheduled_time" json:"scheduled_time,omitempty"`
	FailureReasons StringMap         `db:"failure_reasons" json:"failure_reasons"`
	Overrides      PlatformOverrides `db:"platform_overrides" json:"platform_overrides"`
	CreatedAt      time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time         `db:"updated_at" json:"updated_at"`
}

// PlatformOverride replaces the post content for a single platform.
type PlatformOverride struct {
	Title    string         `json:"title,omitempty"`
	Caption  string         `json:"caption,omitempty"`
	Settings map[string]any `json:"settings,omitempty"`
}

// Content is the text a gateway publishes for one platform.
type Content struct {
	Title   string
	Caption string
}

const (
	PostStatusDraft     = "draft"
	PostStatusScheduled = "scheduled"
	PostStatusPublished = "published"
	PostStatusFailed    = "failed"
)

// ContentFor returns the post content with any override for platform applied.
func (p *Post) ContentFor(platform string) Content {
	c := Content{Title: p.Title, Caption: p.Caption}
	if o, ok := p.Overrides[platform]; ok {
		if o.Title != "" {
			c.Title = o.Title
		}
		if o.Caption != "" {
			c.Caption = o.Caption
		}
	}
	return c
}

// SettingsFor returns the per-platform settings, never nil.
func (p *Post) SettingsFor(platform string) map[string]any {
	if o, ok := p.Overrides[platform]; ok && o.Settings != nil {
		return o.Settings
	}
	return map[string]any{}
}

func (p *Post) HasPlatform(platform string) bool {
	for _, pl := range p.Platforms {
		if pl == platform {
			return true
		}
	}
	return false
}
