package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
	"unicode/utf8"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"github.com/maheshrc27/postflow/internal/models"
)

const (
	PlatformYoutube = "youtube"

	youtubeTitleLimit = 100
)

type youtubeGateway struct {
	Hooks
	download *http.Client
	endpoint string
	limiter  *rate.Limiter
}

// NewYoutubeGateway returns a synchronous gateway: the upload call returns the
// final video id. endpoint overrides the API base URL and may be empty.
func NewYoutubeGateway(hc *http.Client, endpoint string, rps float64) Gateway {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Minute}
	}
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &youtubeGateway{
		Hooks:    Hooks{name: PlatformYoutube},
		download: hc,
		endpoint: endpoint,
		limiter:  rate.NewLimiter(limit, 1),
	}
}

func (s *youtubeGateway) service(ctx context.Context, accessToken string) (*youtube.Service, error) {
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken}))
	opts := []option.ClientOption{option.WithHTTPClient(client)}
	if s.endpoint != "" {
		opts = append(opts, option.WithEndpoint(s.endpoint))
	}
	service, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("error creating YouTube service: %w", err)
	}
	return service, nil
}

func (s *youtubeGateway) CreatePost(ctx context.Context, _ Account, content models.Content, accessToken string, media []string, opts Options) (*PublishOutcome, error) {
	set := ClassifyMedia(media)
	if len(set.Videos) != 1 || len(set.Images) > 0 || len(set.Unknown) > 0 {
		return nil, reject(PlatformYoutube, RejectInvalid, "youtube requires exactly one video")
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	service, err := s.service(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	resp, err := s.fetch(ctx, set.Videos[0])
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	privacy := opts.String("privacy_status", "public")
	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       youtubeTitle(content),
			Description: content.Caption,
			CategoryId:  opts.String("category_id", "22"),
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus:           privacy,
			SelfDeclaredMadeForKids: opts.Bool("made_for_kids", false),
		},
	}

	uploaded, err := service.Videos.Insert([]string{"snippet", "status"}, video).Media(resp.Body).Context(ctx).Do()
	if err != nil {
		return nil, youtubeError(err)
	}

	metadata := map[string]any{"privacy_status": privacy}
	if uploaded.Snippet != nil {
		metadata["channel_id"] = uploaded.Snippet.ChannelId
	}
	return &PublishOutcome{
		PlatformPostID:  uploaded.Id,
		PlatformPostURL: "https://youtu.be/" + uploaded.Id,
		Metadata:        metadata,
	}, nil
}

func (s *youtubeGateway) fetch(ctx context.Context, mediaURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	resp, err := s.download.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error downloading video: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected response status downloading video: %d", resp.StatusCode)
	}
	return resp, nil
}

func (s *youtubeGateway) GetAnalytics(ctx context.Context, videoID, accessToken string) (*AnalyticsSnapshot, error) {
	service, err := s.service(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	resp, err := service.Videos.List([]string{"statistics"}).Id(videoID).Context(ctx).Do()
	if err != nil {
		return nil, youtubeError(err)
	}
	if len(resp.Items) == 0 || resp.Items[0].Statistics == nil {
		return nil, fmt.Errorf("youtube video %s not found", videoID)
	}

	stats := resp.Items[0].Statistics
	return &AnalyticsSnapshot{
		PlatformPostID: videoID,
		Views:          int64(stats.ViewCount),
		Likes:          int64(stats.LikeCount),
		Comments:       int64(stats.CommentCount),
		FetchedAt:      time.Now(),
	}, nil
}

func youtubeTitle(content models.Content) string {
	title := content.Title
	if title == "" {
		title = content.Caption
	}
	if title == "" {
		return "Untitled"
	}
	if utf8.RuneCountInString(title) > youtubeTitleLimit {
		title = string([]rune(title)[:youtubeTitleLimit])
	}
	return title
}

func youtubeError(err error) error {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return err
	}

	reason := ""
	if len(gerr.Errors) > 0 {
		reason = gerr.Errors[0].Reason
	}
	kind := kindForStatus(gerr.Code)
	switch reason {
	case "quotaExceeded", "uploadLimitExceeded", "rateLimitExceeded", "userRateLimitExceeded":
		kind = RejectQuota
	case "invalidTitle", "invalidDescription", "invalidCategoryId", "mediaBodyRequired":
		kind = RejectInvalid
	case "forbiddenPrivacySetting", "forbiddenLicenseSetting":
		kind = RejectPolicy
	}
	if kind == "" {
		return err
	}
	return &RejectionError{
		Platform:   PlatformYoutube,
		Kind:       kind,
		Code:       reason,
		Message:    gerr.Message,
		StatusCode: gerr.Code,
	}
}
