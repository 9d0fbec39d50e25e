package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"time"
	"unicode/utf8"

	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/transfer"
)

const (
	PlatformTiktok = "tiktok"

	tiktokMaxPhotos      = 35
	tiktokDefaultPrivacy = "PUBLIC_TO_EVERYONE"
	tiktokTitleLimit     = 2200
)

type tiktokGateway struct {
	Hooks
	NoCompletion
	api *apiClient
}

func NewTiktokGateway(baseURL string, hc *http.Client, rps float64) AsyncGateway {
	return &tiktokGateway{
		Hooks: Hooks{name: PlatformTiktok},
		api:   newAPIClient(PlatformTiktok, baseURL, hc, rps, decodeTiktokError),
	}
}

// CreatePost starts a direct post. TikTok pulls the media from its URL and
// reports completion through the status endpoint.
func (s *tiktokGateway) CreatePost(ctx context.Context, _ Account, content models.Content, accessToken string, media []string, opts Options) (*PublishOutcome, error) {
	set := ClassifyMedia(media)
	switch {
	case len(set.Unknown) > 0:
		return nil, reject(PlatformTiktok, RejectInvalid, "unsupported media file %s", set.Unknown[0])
	case len(set.Videos) == 1 && len(set.Images) == 0:
	case len(set.Videos) == 0 && len(set.Images) > 0 && len(set.Images) <= tiktokMaxPhotos:
	default:
		return nil, reject(PlatformTiktok, RejectInvalid, "tiktok accepts one video or up to %d photos", tiktokMaxPhotos)
	}

	creator, err := s.queryCreatorInfo(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	privacy := opts.String("privacy_level", tiktokDefaultPrivacy)
	if len(creator.PrivacyLevelOptions) > 0 && !slices.Contains(creator.PrivacyLevelOptions, privacy) {
		return nil, reject(PlatformTiktok, RejectInvalid, "privacy level %s is not available for this creator", privacy)
	}

	title := truncateRunes(content.Caption, tiktokTitleLimit)

	var (
		path    string
		payload any
		kind    string
	)
	if len(set.Videos) == 1 {
		kind = "VIDEO"
		path = "/v2/post/publish/video/init/"
		payload = transfer.VideoUploadRequest{
			PostInfo: transfer.VideoPostInfo{
				Title:                 title,
				PrivacyLevel:          privacy,
				DisableDuet:           opts.Bool("disable_duet", creator.DuetDisabled),
				DisableComment:        opts.Bool("disable_comment", creator.CommentDisabled),
				DisableStitch:         opts.Bool("disable_stitch", creator.StitchDisabled),
				VideoCoverTimestampMs: 1000,
			},
			SourceInfo: transfer.VideoSourceInfo{Source: "PULL_FROM_URL", VideoURL: set.Videos[0]},
		}
	} else {
		kind = "PHOTO"
		path = "/v2/post/publish/content/init/"
		payload = transfer.PhotoUploadRequest{
			PostInfo: transfer.PhotoPostInfo{
				Title:          content.Title,
				Description:    title,
				PrivacyLevel:   privacy,
				DisableComment: opts.Bool("disable_comment", creator.CommentDisabled),
				AutoAddMusic:   opts.Bool("auto_add_music", true),
			},
			SourceInfo: transfer.PhotoSourceInfo{Source: "PULL_FROM_URL", PhotoImages: set.Images},
			PostMode:   "DIRECT_POST",
			MediaType:  "PHOTO",
		}
	}

	var result transfer.TikTokUploadResponse
	if err := s.api.do(ctx, request{method: http.MethodPost, path: path, body: payload, headers: bearer(accessToken)}, &result); err != nil {
		return nil, err
	}
	if err := tiktokBodyError(result.Error); err != nil {
		return nil, err
	}
	if result.Data.PublishID == "" {
		return nil, fmt.Errorf("no publish_id returned from TikTok")
	}

	return &PublishOutcome{
		PlatformPostID:     result.Data.PublishID,
		PendingOperationID: result.Data.PublishID,
		Metadata: map[string]any{
			"publish_id":    result.Data.PublishID,
			MetaMediaType:   kind,
			"creator":       creator.CreatorUsername,
			"privacy_level": privacy,
		},
	}, nil
}

func (s *tiktokGateway) queryCreatorInfo(ctx context.Context, accessToken string) (*transfer.TiktokCreatorInfo, error) {
	var result transfer.TiktokCreatorInfoResponse
	err := s.api.do(ctx, request{
		method:  http.MethodPost,
		path:    "/v2/post/publish/creator_info/query/",
		headers: bearer(accessToken),
	}, &result)
	if err != nil {
		return nil, err
	}
	if err := tiktokBodyError(result.Error); err != nil {
		return nil, err
	}
	return &result.Data, nil
}

func (s *tiktokGateway) BuildPollingTask(record *models.PublishRecord, outcome *PublishOutcome, accessToken string, metadata map[string]string) *models.PollTask {
	return pollingTask(PlatformTiktok, record, outcome, accessToken, metadata)
}

func (s *tiktokGateway) CheckStatus(ctx context.Context, publishID, accessToken string, metadata map[string]string) (*StatusResult, error) {
	var result transfer.TiktokStatusResponse
	err := s.api.do(ctx, request{
		method:  http.MethodPost,
		path:    "/v2/post/publish/status/fetch/",
		body:    transfer.TiktokStatusRequest{PublishID: publishID},
		headers: bearer(accessToken),
	}, &result)
	if err != nil {
		return nil, err
	}
	if err := tiktokBodyError(result.Error); err != nil {
		return nil, err
	}

	status := &StatusResult{Label: result.Data.Status}
	switch result.Data.Status {
	case "PUBLISH_COMPLETE":
		status.State = StateComplete
		if len(result.Data.PublicPostIDs) > 0 {
			status.FinalID = result.Data.PublicPostIDs[0].String()
			status.FinalURL = s.PostURL(status.FinalID, metadata)
		}
	case "FAILED":
		status.State = StateFailed
		status.FailReason = result.Data.FailReason
		if status.FailReason == "" {
			status.FailReason = "tiktok reported the publish as failed"
		}
	default:
		// PROCESSING_UPLOAD, PROCESSING_DOWNLOAD, SEND_TO_USER_INBOX
		status.State = StateProcessing
	}
	return status, nil
}

func (s *tiktokGateway) PostURL(videoID string, metadata map[string]string) string {
	username := metadata[MetaUsername]
	if videoID == "" || username == "" {
		return ""
	}
	return fmt.Sprintf("https://www.tiktok.com/@%s/video/%s", url.PathEscape(username), videoID)
}

func (s *tiktokGateway) GetAnalytics(ctx context.Context, videoID, accessToken string) (*AnalyticsSnapshot, error) {
	var query transfer.TiktokVideoQueryRequest
	query.Filters.VideoIDs = []string{videoID}

	var result transfer.TiktokVideoQueryResponse
	err := s.api.do(ctx, request{
		method:  http.MethodPost,
		path:    "/v2/video/query/",
		query:   url.Values{"fields": {"id,view_count,like_count,comment_count,share_count"}},
		body:    query,
		headers: bearer(accessToken),
	}, &result)
	if err != nil {
		return nil, err
	}
	if err := tiktokBodyError(result.Error); err != nil {
		return nil, err
	}
	if len(result.Data.Videos) == 0 {
		return nil, fmt.Errorf("tiktok video %s not found", videoID)
	}

	v := result.Data.Videos[0]
	return &AnalyticsSnapshot{
		PlatformPostID: videoID,
		Views:          v.ViewCount,
		Likes:          v.LikeCount,
		Comments:       v.CommentCount,
		Shares:         v.ShareCount,
		FetchedAt:      time.Now(),
	}, nil
}

func decodeTiktokError(platform string, status int, body []byte) error {
	var envelope struct {
		Error transfer.TiktokError `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Code != "" {
		if rerr := tiktokBodyError(envelope.Error); rerr != nil {
			if re, ok := rerr.(*RejectionError); ok {
				re.StatusCode = status
			}
			return rerr
		}
	}
	if kind := kindForStatus(status); kind != "" {
		return &RejectionError{Platform: platform, Kind: kind, StatusCode: status, Message: string(body)}
	}
	return fmt.Errorf("unexpected status code from TikTok: %d", status)
}

// tiktokBodyError converts the error object TikTok returns on every response.
func tiktokBodyError(e transfer.TiktokError) error {
	if e.Code == "" || e.Code == "ok" {
		return nil
	}
	return &RejectionError{
		Platform: PlatformTiktok,
		Kind:     tiktokKind(e.Code),
		Code:     e.Code,
		Message:  e.Message,
	}
}

func tiktokKind(code string) RejectionKind {
	switch code {
	case "access_token_invalid", "scope_not_authorized", "token_not_authorized_for_specified_device", "unaudited_client_can_only_post_to_private_accounts":
		return RejectAuth
	case "rate_limit_exceeded", "spam_risk_too_many_posts", "spam_risk_too_many_pending_share", "reached_active_user_cap", "spam_risk_user_banned_from_posting":
		return RejectQuota
	case "invalid_params", "privacy_level_option_mismatch", "url_ownership_unverified", "file_format_check_failed",
		"duration_check_failed", "frame_rate_check_failed", "picture_size_check_failed", "video_pull_failed", "photo_pull_failed":
		return RejectInvalid
	}
	return RejectPolicy
}

// truncateRunes cuts s to at most limit characters.
func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}
