// Package gateway adapts each external platform to one publish contract.
//
// Every platform implements Gateway. Platforms that accept a post and finish
// processing it later also implement AsyncGateway; callers detect that with
// AsAsync rather than by platform name. Analytics is the same kind of optional
// capability (AnalyticsProvider).
package gateway

import (
	"context"
	"time"

	"github.com/maheshrc27/postflow/internal/models"
)

// Account is the platform-side identity a post is published as.
type Account struct {
	ID       string
	Username string
	Name     string
}

type Options map[string]any

func (o Options) String(key, fallback string) string {
	if v, ok := o[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func (o Options) Bool(key string, fallback bool) bool {
	if v, ok := o[key].(bool); ok {
		return v
	}
	return fallback
}

// PublishOutcome is either final (PlatformPostID and PlatformPostURL) or
// pending (PendingOperationID only).
type PublishOutcome struct {
	PlatformPostID     string
	PlatformPostURL    string
	PendingOperationID string
	Metadata           map[string]any
}

func (o *PublishOutcome) IsPending() bool {
	return o.PendingOperationID != "" && o.PlatformPostURL == ""
}

type Gateway interface {
	Platform() string
	CreatePost(ctx context.Context, account Account, content models.Content, accessToken string, media []string, opts Options) (*PublishOutcome, error)

	NotifyPublished(ctx context.Context, post *models.Post, record *models.PublishRecord)
	NotifyScheduled(ctx context.Context, post *models.Post)
	NotifyFailed(ctx context.Context, post *models.Post, reason string)
}

type State string

const (
	StateProcessing State = "processing"
	StateComplete   State = "complete"
	StateFailed     State = "failed"
)

type StatusResult struct {
	State      State
	Label      string // platform's own status vocabulary
	FinalID    string
	FinalURL   string
	FailReason string
}

type CompletionResult struct {
	FinalID  string
	FinalURL string
}

type AsyncGateway interface {
	Gateway

	CheckStatus(ctx context.Context, pendingOperationID, accessToken string, metadata map[string]string) (*StatusResult, error)
	// BuildPollingTask returns nil when the publish call already finished the job.
	BuildPollingTask(record *models.PublishRecord, outcome *PublishOutcome, accessToken string, metadata map[string]string) *models.PollTask
	CompletePublish(ctx context.Context, pendingOperationID, accessToken string, metadata map[string]string) (*CompletionResult, error)
	// PostURL builds the public URL of a published post from its id.
	PostURL(platformPostID string, metadata map[string]string) string
}

func AsAsync(g Gateway) (AsyncGateway, bool) {
	ag, ok := g.(AsyncGateway)
	return ag, ok
}

type AnalyticsSnapshot struct {
	PlatformPostID string         `json:"platform_post_id"`
	Views          int64          `json:"views"`
	Likes          int64          `json:"likes"`
	Comments       int64          `json:"comments"`
	Shares         int64          `json:"shares"`
	Raw            map[string]any `json:"raw,omitempty"`
	FetchedAt      time.Time      `json:"fetched_at"`
}

type AnalyticsProvider interface {
	GetAnalytics(ctx context.Context, platformPostID, accessToken string) (*AnalyticsSnapshot, error)
}

// NoCompletion is embedded by async gateways without a closing publish step.
type NoCompletion struct{}

func (NoCompletion) CompletePublish(context.Context, string, string, map[string]string) (*CompletionResult, error) {
	return nil, nil
}

// pollingTask builds the common polling payload for a pending outcome.
func pollingTask(platform string, record *models.PublishRecord, outcome *PublishOutcome, accessToken string, metadata map[string]string) *models.PollTask {
	if outcome == nil || !outcome.IsPending() {
		return nil
	}
	md := make(map[string]string, len(metadata))
	for k, v := range metadata {
		md[k] = v
	}
	return &models.PollTask{
		RecordID:           record.ID,
		PostID:             record.PostID,
		PendingOperationID: outcome.PendingOperationID,
		AccessToken:        accessToken,
		Platform:           platform,
		Metadata:           md,
	}
}
