package gateway

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maheshrc27/postflow/internal/models"
)

type youtubeStub struct {
	srv    *httptest.Server
	upload string
}

func newYoutubeStub(t *testing.T, api http.HandlerFunc) *youtubeStub {
	stub := &youtubeStub{}
	mux := http.NewServeMux()
	mux.HandleFunc("/media/clip.mp4", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		_, _ = w.Write([]byte("not really a video"))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/media/") {
			http.NotFound(w, r)
			return
		}
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		if r.Method == http.MethodPost {
			body, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			stub.upload = string(body)
		}
		api(w, r)
	})
	stub.srv = httptest.NewServer(mux)
	t.Cleanup(stub.srv.Close)
	return stub
}

func (s *youtubeStub) gateway() Gateway {
	return NewYoutubeGateway(s.srv.Client(), s.srv.URL+"/", 0)
}

func TestYoutubeUpload(t *testing.T) {
	stub := newYoutubeStub(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/youtube/v3/videos"), r.URL.Path)
		assert.Contains(t, r.URL.Query().Get("part"), "snippet")
		_, _ = w.Write([]byte(`{"id":"vid_1","snippet":{"channelId":"chan_9"}}`))
	})

	out, err := stub.gateway().CreatePost(context.Background(), Account{}, models.Content{Title: "Launch", Caption: "we shipped"}, "tok",
		[]string{stub.srv.URL + "/media/clip.mp4"}, Options{"privacy_status": "unlisted"})
	require.NoError(t, err)
	assert.False(t, out.IsPending())
	assert.Equal(t, "vid_1", out.PlatformPostID)
	assert.Equal(t, "https://youtu.be/vid_1", out.PlatformPostURL)
	assert.Equal(t, "chan_9", out.Metadata["channel_id"])
	assert.Equal(t, "unlisted", out.Metadata["privacy_status"])

	assert.Contains(t, stub.upload, `"title":"Launch"`)
	assert.Contains(t, stub.upload, `"privacyStatus":"unlisted"`)
	assert.Contains(t, stub.upload, "not really a video")
}

func TestYoutubeUploadRejected(t *testing.T) {
	stub := newYoutubeStub(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"quota used up","errors":[{"reason":"quotaExceeded","message":"quota used up"}]}}`))
	})

	_, err := stub.gateway().CreatePost(context.Background(), Account{}, models.Content{Title: "t"}, "tok",
		[]string{stub.srv.URL + "/media/clip.mp4"}, nil)
	require.Error(t, err)
	assert.True(t, IsRejection(err, RejectQuota))
}

func TestYoutubeDownloadFailure(t *testing.T) {
	stub := newYoutubeStub(t, func(http.ResponseWriter, *http.Request) {
		t.Error("nothing is uploaded when the video cannot be fetched")
	})

	_, err := stub.gateway().CreatePost(context.Background(), Account{}, models.Content{Title: "t"}, "tok",
		[]string{stub.srv.URL + "/media/missing.mp4"}, nil)
	assert.ErrorContains(t, err, "downloading video")
}

func TestYoutubeAnalytics(t *testing.T) {
	stub := newYoutubeStub(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "vid_1", r.URL.Query().Get("id"))
		_, _ = w.Write([]byte(`{"items":[{"id":"vid_1","statistics":{"viewCount":"120","likeCount":"7","commentCount":"3"}}]}`))
	})

	ap, ok := stub.gateway().(AnalyticsProvider)
	require.True(t, ok)
	snap, err := ap.GetAnalytics(context.Background(), "vid_1", "tok")
	require.NoError(t, err)
	assert.Equal(t, "vid_1", snap.PlatformPostID)
	assert.Equal(t, int64(120), snap.Views)
	assert.Equal(t, int64(7), snap.Likes)
	assert.Equal(t, int64(3), snap.Comments)
}

func TestYoutubeAnalyticsUnknownVideo(t *testing.T) {
	stub := newYoutubeStub(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"items":[]}`))
	})

	_, err := stub.gateway().(AnalyticsProvider).GetAnalytics(context.Background(), "gone", "tok")
	assert.ErrorContains(t, err, "not found")
}
