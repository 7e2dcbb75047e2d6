package resolver

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"github.com/music-spaces/pkg/apperr"
)

// musicCategory is the video catalog's category id for music.
const musicCategory = "10"

type YouTube struct {
	apiKey  string
	service *youtube.Service
}

// NewYouTube builds a Data API client against endpoint (the API root, e.g.
// https://youtube.googleapis.com/). An explicit HTTP client makes the
// library skip its own auth options, so the key is sent per call.
func NewYouTube(ctx context.Context, apiKey, endpoint string, httpClient *http.Client) (*YouTube, error) {
	if !strings.HasSuffix(endpoint, "/") {
		endpoint += "/"
	}
	service, err := youtube.NewService(ctx,
		option.WithEndpoint(endpoint),
		option.WithHTTPClient(httpClient),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create youtube client: %w", err)
	}
	return &YouTube{apiKey: apiKey, service: service}, nil
}

func (y *YouTube) Lookup(ctx context.Context, videoID string) (*Track, error) {
	resp, err := y.service.Videos.List([]string{"snippet"}).
		Id(videoID).
		Context(ctx).
		Do(googleapi.QueryParameter("key", y.apiKey))
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrResolutionFailed, err, "video lookup failed")
	}

	if len(resp.Items) == 0 || resp.Items[0].Snippet == nil || resp.Items[0].Snippet.CategoryId != musicCategory {
		return nil, apperr.New(apperr.ErrNotMusic, "Not a music video")
	}

	snippet := resp.Items[0].Snippet
	var small, big string
	if th := snippet.Thumbnails; th != nil {
		big = thumbnailURL(th.High)
		if big == "" {
			big = thumbnailURL(th.Medium)
		}
		small = thumbnailURL(th.Default)
	}
	if small == "" {
		small = big
	}

	return &Track{
		ExtractedID: videoID,
		Title:       snippet.Title,
		SmallImg:    small,
		BigImg:      big,
	}, nil
}

func thumbnailURL(t *youtube.Thumbnail) string {
	if t == nil {
		return ""
	}
	return t.Url
}
