package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/transfer"
)

const (
	PlatformInstagram = "instagram"

	instagramMaxCarousel = 10

	// Metadata keys carried on the polling task.
	MetaAccountID = "account_id"
	MetaUsername  = "username"
	MetaMediaType = "media_type"
)

type instagramGateway struct {
	Hooks
	api *apiClient
}

func NewInstagramGateway(baseURL string, hc *http.Client, rps float64) AsyncGateway {
	return &instagramGateway{
		Hooks: Hooks{name: PlatformInstagram},
		api:   newAPIClient(PlatformInstagram, baseURL, hc, rps, decodeGraphError),
	}
}

// CreatePost creates a media container. Instagram processes the container
// asynchronously, so the outcome is always pending on the container id.
func (ig *instagramGateway) CreatePost(ctx context.Context, account Account, content models.Content, accessToken string, media []string, _ Options) (*PublishOutcome, error) {
	if len(media) == 0 {
		return nil, reject(PlatformInstagram, RejectInvalid, "instagram requires at least one image or video")
	}
	if len(media) > instagramMaxCarousel {
		return nil, reject(PlatformInstagram, RejectInvalid, "instagram carousels accept at most %d items, got %d", instagramMaxCarousel, len(media))
	}

	set := ClassifyMedia(media)
	if len(set.Unknown) > 0 {
		return nil, reject(PlatformInstagram, RejectInvalid, "unsupported media file %s", set.Unknown[0])
	}

	var (
		containerID string
		mediaType   string
		err         error
	)
	if len(media) == 1 {
		req := transfer.InstagramContainerRequest{Caption: content.Caption, AccessToken: accessToken}
		if KindOf(media[0]) == MediaVideo {
			mediaType = "REELS"
			req.MediaType = mediaType
			req.VideoURL = media[0]
		} else {
			mediaType = "IMAGE"
			req.ImageURL = media[0]
		}
		containerID, err = ig.createContainer(ctx, account.ID, req)
	} else {
		mediaType = "CAROUSEL"
		containerID, err = ig.createCarousel(ctx, account.ID, content.Caption, accessToken, media)
	}
	if err != nil {
		return nil, err
	}

	return &PublishOutcome{
		PlatformPostID:     containerID,
		PendingOperationID: containerID,
		Metadata: map[string]any{
			"container_id": containerID,
			MetaMediaType:  mediaType,
		},
	}, nil
}

func (ig *instagramGateway) createCarousel(ctx context.Context, accountID, caption, accessToken string, media []string) (string, error) {
	children := make([]string, 0, len(media))
	for _, m := range media {
		req := transfer.InstagramContainerRequest{IsCarouselItem: true, AccessToken: accessToken}
		if KindOf(m) == MediaVideo {
			req.MediaType = "VIDEO"
			req.VideoURL = m
		} else {
			req.ImageURL = m
		}
		id, err := ig.createContainer(ctx, accountID, req)
		if err != nil {
			return "", fmt.Errorf("error creating carousel item: %w", err)
		}
		children = append(children, id)
	}

	return ig.createContainer(ctx, accountID, transfer.InstagramContainerRequest{
		MediaType:   "CAROUSEL",
		Caption:     caption,
		Children:    strings.Join(children, ","),
		AccessToken: accessToken,
	})
}

func (ig *instagramGateway) createContainer(ctx context.Context, accountID string, payload transfer.InstagramContainerRequest) (string, error) {
	var result transfer.InstagramIDResponse
	err := ig.api.do(ctx, request{
		method: http.MethodPost,
		path:   fmt.Sprintf("/%s/media", accountID),
		body:   payload,
	}, &result)
	if err != nil {
		return "", err
	}
	if result.ID == "" {
		return "", fmt.Errorf("no media ID returned from Instagram")
	}
	return result.ID, nil
}

func (ig *instagramGateway) BuildPollingTask(record *models.PublishRecord, outcome *PublishOutcome, accessToken string, metadata map[string]string) *models.PollTask {
	task := pollingTask(PlatformInstagram, record, outcome, accessToken, metadata)
	if task != nil {
		if mt, ok := outcome.Metadata[MetaMediaType].(string); ok {
			task.Metadata[MetaMediaType] = mt
		}
	}
	return task
}

func (ig *instagramGateway) CheckStatus(ctx context.Context, containerID, accessToken string, _ map[string]string) (*StatusResult, error) {
	var status transfer.InstagramContainerStatus
	err := ig.api.do(ctx, request{
		method: http.MethodGet,
		path:   "/" + containerID,
		query:  url.Values{"fields": {"status_code,status"}, "access_token": {accessToken}},
	}, &status)
	if err != nil {
		return nil, err
	}

	result := &StatusResult{Label: status.StatusCode}
	switch status.StatusCode {
	case "FINISHED", "PUBLISHED":
		result.State = StateComplete
	case "ERROR", "EXPIRED":
		result.State = StateFailed
		result.FailReason = status.Status
		if result.FailReason == "" {
			result.FailReason = "container " + strings.ToLower(status.StatusCode)
		}
	default:
		result.State = StateProcessing
	}
	return result, nil
}

// CompletePublish publishes a finished container and looks up its permalink.
func (ig *instagramGateway) CompletePublish(ctx context.Context, containerID, accessToken string, metadata map[string]string) (*CompletionResult, error) {
	accountID := metadata[MetaAccountID]
	if accountID == "" {
		return nil, fmt.Errorf("instagram completion is missing the account id")
	}

	var published transfer.InstagramIDResponse
	err := ig.api.do(ctx, request{
		method: http.MethodPost,
		path:   fmt.Sprintf("/%s/media_publish", accountID),
		body:   transfer.InstagramPublishRequest{CreationID: containerID, AccessToken: accessToken},
	}, &published)
	if err != nil {
		return nil, err
	}

	result := &CompletionResult{FinalID: published.ID}
	if media, err := ig.media(ctx, published.ID, accessToken, "permalink"); err == nil {
		result.FinalURL = media.Permalink
	}
	return result, nil
}

func (ig *instagramGateway) PostURL(_ string, metadata map[string]string) string {
	if username := metadata[MetaUsername]; username != "" {
		return "https://www.instagram.com/" + username + "/"
	}
	return ""
}

func (ig *instagramGateway) GetAnalytics(ctx context.Context, mediaID, accessToken string) (*AnalyticsSnapshot, error) {
	media, err := ig.media(ctx, mediaID, accessToken, "like_count,comments_count")
	if err != nil {
		return nil, err
	}
	return &AnalyticsSnapshot{
		PlatformPostID: mediaID,
		Likes:          media.LikeCount,
		Comments:       media.CommentsCount,
		FetchedAt:      time.Now(),
	}, nil
}

func (ig *instagramGateway) media(ctx context.Context, mediaID, accessToken, fields string) (*transfer.InstagramMedia, error) {
	var media transfer.InstagramMedia
	err := ig.api.do(ctx, request{
		method: http.MethodGet,
		path:   "/" + mediaID,
		query:  url.Values{"fields": {fields}, "access_token": {accessToken}},
	}, &media)
	if err != nil {
		return nil, err
	}
	return &media, nil
}
