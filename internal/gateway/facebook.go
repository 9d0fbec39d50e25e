package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/transfer"
)

const (
	PlatformFacebook = "facebook"

	facebookMaxPhotos = 10
)

type facebookGateway struct {
	Hooks
	api *apiClient
}

// NewFacebookGateway publishes to a Facebook Page. The Graph API accepts page
// posts synchronously, so outcomes are always final.
func NewFacebookGateway(baseURL string, hc *http.Client, rps float64) Gateway {
	return &facebookGateway{
		Hooks: Hooks{name: PlatformFacebook},
		api:   newAPIClient(PlatformFacebook, baseURL, hc, rps, decodeGraphError),
	}
}

func (s *facebookGateway) CreatePost(ctx context.Context, account Account, content models.Content, accessToken string, media []string, opts Options) (*PublishOutcome, error) {
	set := ClassifyMedia(media)
	if len(set.Unknown) > 0 {
		return nil, reject(PlatformFacebook, RejectInvalid, "unsupported media file %s", set.Unknown[0])
	}
	if len(set.Videos) > 0 && (len(set.Videos) > 1 || len(set.Images) > 0) {
		return nil, reject(PlatformFacebook, RejectInvalid, "facebook accepts a single video without photos")
	}
	if len(set.Images) > facebookMaxPhotos {
		return nil, reject(PlatformFacebook, RejectInvalid, "facebook accepts at most %d photos, got %d", facebookMaxPhotos, len(set.Images))
	}
	if set.Len() == 0 && content.Caption == "" {
		return nil, reject(PlatformFacebook, RejectInvalid, "facebook post needs text or media")
	}

	var (
		postID string
		err    error
	)
	switch {
	case len(set.Videos) == 1:
		postID, err = s.postVideo(ctx, account.ID, content, accessToken, set.Videos[0])
	case len(set.Images) == 1:
		postID, err = s.postPhoto(ctx, account.ID, content.Caption, accessToken, set.Images[0], nil)
	case len(set.Images) > 1:
		postID, err = s.postAlbum(ctx, account.ID, content.Caption, accessToken, set.Images)
	default:
		postID, err = s.postFeed(ctx, account.ID, transfer.FacebookFeedRequest{
			Message:     content.Caption,
			Link:        opts.String("link", ""),
			AccessToken: accessToken,
		})
	}
	if err != nil {
		return nil, err
	}

	return &PublishOutcome{
		PlatformPostID:  postID,
		PlatformPostURL: "https://www.facebook.com/" + postID,
		Metadata:        map[string]any{"page_id": account.ID},
	}, nil
}

func (s *facebookGateway) postFeed(ctx context.Context, pageID string, payload transfer.FacebookFeedRequest) (string, error) {
	var result transfer.FacebookPostResponse
	if err := s.api.do(ctx, request{method: http.MethodPost, path: fmt.Sprintf("/%s/feed", pageID), body: payload}, &result); err != nil {
		return "", err
	}
	if result.ID == "" {
		return "", fmt.Errorf("no post ID returned from Facebook")
	}
	return result.ID, nil
}

func (s *facebookGateway) postPhoto(ctx context.Context, pageID, caption, accessToken, photoURL string, published *bool) (string, error) {
	var result transfer.FacebookPostResponse
	err := s.api.do(ctx, request{
		method: http.MethodPost,
		path:   fmt.Sprintf("/%s/photos", pageID),
		body: transfer.FacebookPhotoRequest{
			URL:         photoURL,
			Caption:     caption,
			Published:   published,
			AccessToken: accessToken,
		},
	}, &result)
	if err != nil {
		return "", err
	}
	// Published photos answer with the feed post id; unpublished ones only with the photo id.
	if result.PostID != "" {
		return result.PostID, nil
	}
	if result.ID == "" {
		return "", fmt.Errorf("no photo ID returned from Facebook")
	}
	return result.ID, nil
}

// postAlbum uploads every photo unpublished and attaches them to one feed post.
func (s *facebookGateway) postAlbum(ctx context.Context, pageID, caption, accessToken string, photos []string) (string, error) {
	unpublished := false
	attached := make([]transfer.FacebookMediaFbid, 0, len(photos))
	for _, p := range photos {
		id, err := s.postPhoto(ctx, pageID, "", accessToken, p, &unpublished)
		if err != nil {
			return "", fmt.Errorf("error uploading photo: %w", err)
		}
		attached = append(attached, transfer.FacebookMediaFbid{MediaFbid: id})
	}
	return s.postFeed(ctx, pageID, transfer.FacebookFeedRequest{
		Message:       caption,
		AttachedMedia: attached,
		AccessToken:   accessToken,
	})
}

func (s *facebookGateway) postVideo(ctx context.Context, pageID string, content models.Content, accessToken, videoURL string) (string, error) {
	var result transfer.FacebookPostResponse
	err := s.api.do(ctx, request{
		method: http.MethodPost,
		path:   fmt.Sprintf("/%s/videos", pageID),
		body: transfer.FacebookVideoRequest{
			FileURL:     videoURL,
			Title:       content.Title,
			Description: content.Caption,
			AccessToken: accessToken,
		},
	}, &result)
	if err != nil {
		return "", err
	}
	if result.ID == "" {
		return "", fmt.Errorf("no video ID returned from Facebook")
	}
	return result.ID, nil
}

func (s *facebookGateway) GetAnalytics(ctx context.Context, postID, accessToken string) (*AnalyticsSnapshot, error) {
	var stats transfer.FacebookPostStats
	err := s.api.do(ctx, request{
		method: http.MethodGet,
		path:   "/" + postID,
		query: url.Values{
			"fields":       {"shares,reactions.summary(total_count).limit(0),comments.summary(total_count).limit(0)"},
			"access_token": {accessToken},
		},
	}, &stats)
	if err != nil {
		return nil, err
	}
	return &AnalyticsSnapshot{
		PlatformPostID: postID,
		Likes:          stats.Reactions.Summary.TotalCount,
		Comments:       stats.Comments.Summary.TotalCount,
		Shares:         stats.Shares.Count,
		FetchedAt:      time.Now(),
	}, nil
}
