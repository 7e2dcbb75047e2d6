package resolver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/music-spaces/internal/config"
	"github.com/music-spaces/pkg/apperr"
	"github.com/music-spaces/pkg/models"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		url      string
		platform models.PlatformType
		id       string
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", models.PlatformYoutube, "dQw4w9WgXcQ"},
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ&list=abc&t=10", models.PlatformYoutube, "dQw4w9WgXcQ"},
		{"https://music.youtube.com/watch?v=dQw4w9WgXcQ", models.PlatformYoutube, "dQw4w9WgXcQ"},
		{"https://youtu.be/dQw4w9WgXcQ", models.PlatformYoutube, "dQw4w9WgXcQ"},
		{"https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC?si=xyz", models.PlatformSpotify, "4uLU6hMCjMI75M1A2tKUQC"},
	}
	for _, tc := range cases {
		platform, id, err := Classify(tc.url)
		require.NoError(t, err, tc.url)
		assert.Equal(t, tc.platform, platform, tc.url)
		assert.Equal(t, tc.id, id, tc.url)
	}

	for _, bad := range []string{
		"",
		"not a url",
		"ftp://www.youtube.com/watch?v=dQw4w9WgXcQ",
		"https://www.youtube.com/channel/abc",
		"https://www.youtube.com/watch",
		"https://open.spotify.com/album/4uLU6hMCjMI75M1A2tKUQC",
		"https://soundcloud.com/artist/track",
		"https://evil.com/?v=dQw4w9WgXcQ",
	} {
		_, _, err := Classify(bad)
		assert.ErrorIs(t, err, apperr.ErrInvalidURL, bad)
	}
}

func videoServer(t *testing.T, category string, items int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/youtube/v3/videos", r.URL.Path)
		assert.Equal(t, "snippet", r.URL.Query().Get("part"))
		assert.Equal(t, "dQw4w9WgXcQ", r.URL.Query().Get("id"))
		assert.Equal(t, "key", r.URL.Query().Get("key"))

		resp := map[string]interface{}{"items": []interface{}{}}
		if items > 0 {
			resp["items"] = []interface{}{map[string]interface{}{
				"snippet": map[string]interface{}{
					"title":      "Never Gonna Give You Up",
					"categoryId": category,
					"thumbnails": map[string]interface{}{
						"default": map[string]string{"url": "https://img/default.jpg"},
						"high":    map[string]string{"url": "https://img/high.jpg"},
					},
				},
			}}
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func spotifyServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		id, secret, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "id", id)
		assert.Equal(t, "secret", secret)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok","token_type":"bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/v1/tracks/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"status":` + strconv.Itoa(status) + `,"message":"nope"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":"4uLU6hMCjMI75M1A2tKUQC","name":"Mr. Brightside","album":{"images":[
			{"url":"https://img/640.jpg","height":640,"width":640},
			{"url":"https://img/64.jpg","height":64,"width":64}]}}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newResolver(t *testing.T, youtubeURL, spotifyURL string) *Resolver {
	t.Helper()
	cfg := config.ResolverConfig{
		YoutubeAPIKey: "key",
		YoutubeAPIURL: youtubeURL,
		Timeout:       2 * time.Second,
	}
	if spotifyURL != "" {
		cfg.SpotifyClientID = "id"
		cfg.SpotifyClientSecret = "secret"
		cfg.SpotifyTokenURL = spotifyURL + "/token"
		cfg.SpotifyAPIURL = spotifyURL + "/v1/"
	}
	r, err := New(cfg, zap.NewNop())
	require.NoError(t, err)
	return r
}

func TestResolveYouTubeMusic(t *testing.T) {
	srv := videoServer(t, "10", 1)
	r := newResolver(t, srv.URL, "")

	track, err := r.Resolve(context.Background(), "https://www.youtube.com/watch?v=dQw4w9WgXcQ")
	require.NoError(t, err)
	assert.Equal(t, models.PlatformYoutube, track.Platform)
	assert.Equal(t, "dQw4w9WgXcQ", track.ExtractedID)
	assert.Equal(t, "Never Gonna Give You Up", track.Title)
	assert.Equal(t, "https://img/default.jpg", track.SmallImg)
	assert.Equal(t, "https://img/high.jpg", track.BigImg)
}

func TestResolveYouTubeNotMusic(t *testing.T) {
	srv := videoServer(t, "22", 1)
	_, err := newResolver(t, srv.URL, "").Resolve(context.Background(), "https://www.youtube.com/watch?v=dQw4w9WgXcQ")
	assert.ErrorIs(t, err, apperr.ErrNotMusic)

	empty := videoServer(t, "10", 0)
	_, err = newResolver(t, empty.URL, "").Resolve(context.Background(), "https://www.youtube.com/watch?v=dQw4w9WgXcQ")
	assert.ErrorIs(t, err, apperr.ErrNotMusic)
}

func TestResolveYouTubeUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := newResolver(t, srv.URL, "").Resolve(context.Background(), "https://youtu.be/dQw4w9WgXcQ")
	assert.ErrorIs(t, err, apperr.ErrResolutionFailed)

	srv.Close()
	_, err = newResolver(t, srv.URL, "").Resolve(context.Background(), "https://youtu.be/dQw4w9WgXcQ")
	assert.ErrorIs(t, err, apperr.ErrResolutionFailed)
}

func TestResolveTimesOut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	r := newResolver(t, srv.URL, "")
	r.timeout = 50 * time.Millisecond

	start := time.Now()
	_, err := r.Resolve(context.Background(), "https://youtu.be/dQw4w9WgXcQ")
	assert.ErrorIs(t, err, apperr.ErrResolutionFailed)
	assert.Less(t, time.Since(start), 900*time.Millisecond)
}

func TestResolveSpotify(t *testing.T) {
	srv := spotifyServer(t, http.StatusOK)
	track, err := newResolver(t, "http://unused", srv.URL).Resolve(context.Background(), "https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC")
	require.NoError(t, err)
	assert.Equal(t, models.PlatformSpotify, track.Platform)
	assert.Equal(t, "Mr. Brightside", track.Title)
	assert.Equal(t, "https://img/640.jpg", track.BigImg)
	assert.Equal(t, "https://img/64.jpg", track.SmallImg)
}

func TestResolveSpotifyUnknownTrack(t *testing.T) {
	srv := spotifyServer(t, http.StatusNotFound)
	_, err := newResolver(t, "http://unused", srv.URL).Resolve(context.Background(), "https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC")
	assert.ErrorIs(t, err, apperr.ErrInvalidURL)
}

func TestResolveSpotifyNotConfigured(t *testing.T) {
	_, err := newResolver(t, "http://unused", "").Resolve(context.Background(), "https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC")
	assert.ErrorIs(t, err, apperr.ErrResolutionFailed)
}
