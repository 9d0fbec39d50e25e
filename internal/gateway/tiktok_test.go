package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/transfer"
)

func tiktokServer(t *testing.T, routes map[string]http.HandlerFunc) AsyncGateway {
	mux := http.NewServeMux()
	for path, h := range routes {
		mux.HandleFunc(path, h)
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return NewTiktokGateway(srv.URL, srv.Client(), 0)
}

func creatorInfo(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte(`{"data":{"creator_username":"dancer","privacy_level_options":["PUBLIC_TO_EVERYONE","SELF_ONLY"]},"error":{"code":"ok"}}`))
}

func TestTiktokCreateVideo(t *testing.T) {
	var got transfer.VideoUploadRequest
	gw := tiktokServer(t, map[string]http.HandlerFunc{
		"/v2/post/publish/creator_info/query/": creatorInfo,
		"/v2/post/publish/video/init/": func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			_, _ = w.Write([]byte(`{"data":{"publish_id":"v_pub_1"},"error":{"code":"ok"}}`))
		},
	})

	out, err := gw.CreatePost(context.Background(), Account{}, models.Content{Caption: "dance"}, "tok",
		[]string{"https://cdn.test/v.mp4"}, Options{"privacy_level": "SELF_ONLY"})
	require.NoError(t, err)
	assert.True(t, out.IsPending())
	assert.Equal(t, "v_pub_1", out.PendingOperationID)
	assert.Equal(t, "VIDEO", out.Metadata[MetaMediaType])

	assert.Equal(t, "PULL_FROM_URL", got.SourceInfo.Source)
	assert.Equal(t, "https://cdn.test/v.mp4", got.SourceInfo.VideoURL)
	assert.Equal(t, "SELF_ONLY", got.PostInfo.PrivacyLevel)
	assert.Equal(t, "dance", got.PostInfo.Title)
}

func TestTruncateRunes(t *testing.T) {
	caption := strings.Repeat("🎉", tiktokTitleLimit+5)

	got := truncateRunes(caption, tiktokTitleLimit)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, tiktokTitleLimit, utf8.RuneCountInString(got))
	assert.Equal(t, "dance", truncateRunes("dance", tiktokTitleLimit))
	assert.Equal(t, "héll", truncateRunes("héllo", 4))
}

func TestTiktokCreateRejections(t *testing.T) {
	gw := tiktokServer(t, map[string]http.HandlerFunc{
		"/v2/post/publish/creator_info/query/": creatorInfo,
		"/v2/post/publish/video/init/": func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error":{"code":"spam_risk_too_many_posts","message":"too many posts"}}`))
		},
	})
	ctx := context.Background()

	_, err := gw.CreatePost(ctx, Account{}, models.Content{}, "tok", []string{"a.mp4", "b.mp4"}, nil)
	assert.True(t, IsRejection(err, RejectInvalid))

	_, err = gw.CreatePost(ctx, Account{}, models.Content{}, "tok", []string{"a.mp4"}, Options{"privacy_level": "FRIENDS"})
	assert.True(t, IsRejection(err, RejectInvalid))

	_, err = gw.CreatePost(ctx, Account{}, models.Content{}, "tok", []string{"a.mp4"}, nil)
	var re *RejectionError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, RejectQuota, re.Kind)
	assert.Equal(t, http.StatusForbidden, re.StatusCode)
	assert.Equal(t, "spam_risk_too_many_posts", re.Code)
}

func TestTiktokCheckStatus(t *testing.T) {
	responses := []string{
		`{"data":{"status":"PROCESSING_DOWNLOAD"},"error":{"code":"ok"}}`,
		`{"data":{"status":"PUBLISH_COMPLETE","publicaly_available_post_id":[7351234567890123456]},"error":{"code":"ok"}}`,
		`{"data":{"status":"FAILED","fail_reason":"duration_check_failed"},"error":{"code":"ok"}}`,
	}
	calls := 0
	gw := tiktokServer(t, map[string]http.HandlerFunc{
		"/v2/post/publish/status/fetch/": func(w http.ResponseWriter, r *http.Request) {
			var req transfer.TiktokStatusRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "v_pub_1", req.PublishID)
			_, _ = w.Write([]byte(responses[calls]))
			calls++
		},
	})
	ctx := context.Background()
	md := map[string]string{MetaUsername: "dancer"}

	st, err := gw.CheckStatus(ctx, "v_pub_1", "tok", md)
	require.NoError(t, err)
	assert.Equal(t, StateProcessing, st.State)
	assert.Equal(t, "PROCESSING_DOWNLOAD", st.Label)

	st, err = gw.CheckStatus(ctx, "v_pub_1", "tok", md)
	require.NoError(t, err)
	assert.Equal(t, StateComplete, st.State)
	assert.Equal(t, "7351234567890123456", st.FinalID)
	assert.Equal(t, "https://www.tiktok.com/@dancer/video/7351234567890123456", st.FinalURL)

	st, err = gw.CheckStatus(ctx, "v_pub_1", "tok", md)
	require.NoError(t, err)
	assert.Equal(t, StateFailed, st.State)
	assert.Equal(t, "duration_check_failed", st.FailReason)
}

func TestTiktokPostURLNeedsUsername(t *testing.T) {
	gw := NewTiktokGateway("http://localhost", nil, 0)
	assert.Empty(t, gw.PostURL("1", nil))
	assert.Equal(t, "https://www.tiktok.com/@a%20b/video/1", gw.PostURL("1", map[string]string{MetaUsername: "a b"}))
}
