package models

import "time"

// PendingURL marks a record whose public URL is not known yet.
const PendingURL = "pending"

const (
	RecordStatusPending   = "pending"
	RecordStatusPublished = "published"
	RecordStatusFailed    = "failed"
)

// PublishRecord tracks the outcome of one platform for one post.
type PublishRecord struct {
	ID                 int64      `db:"id" json:"id"`
	PostID             int64      `db:"post_id" json:"post_id"`
	Platform           string     `db:"platform" json:"platform"`
	PlatformPostID     string     `db:"platform_post_id" json:"platform_post_id"`
	PlatformPostURL    string     `db:"platform_post_url" json:"platform_post_url"`
	Metadata           JSONMap    `db:"metadata" json:"metadata"`
	PendingOperationID *string    `db:"pending_operation_id" json:"pending_operation_id,omitempty"`
	PollingStatus      string     `db:"polling_status" json:"polling_status"`
	Status             string     `db:"status" json:"status"`
	ErrorMessage       string     `db:"error_message" json:"error_message"`
	PublishedAt        *time.Time `db:"published_at" json:"published_at,omitempty"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}

func (r *PublishRecord) IsPending() bool {
	return r.PendingOperationID != nil && *r.PendingOperationID != ""
}

func (r *PublishRecord) Succeeded() bool {
	return r.Status == RecordStatusPublished
}
