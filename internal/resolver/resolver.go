// Package resolver turns a submitted track URL into catalog metadata.
package resolver

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/music-spaces/internal/config"
	"github.com/music-spaces/pkg/apperr"
	"github.com/music-spaces/pkg/models"
)

// Track is the resolved metadata for one submission.
type Track struct {
	Platform    models.PlatformType
	ExtractedID string
	Title       string
	SmallImg    string
	BigImg      string
}

type lookup interface {
	Lookup(ctx context.Context, id string) (*Track, error)
}

type Resolver struct {
	youtube lookup
	spotify lookup
	timeout time.Duration
	log     *zap.Logger
}

func New(cfg config.ResolverConfig, log *zap.Logger) (*Resolver, error) {
	httpClient := &http.Client{Timeout: cfg.Timeout}
	yt, err := NewYouTube(context.Background(), cfg.YoutubeAPIKey, cfg.YoutubeAPIURL, httpClient)
	if err != nil {
		return nil, err
	}
	r := &Resolver{
		youtube: yt,
		timeout: cfg.Timeout,
		log:     log,
	}
	if cfg.SpotifyClientID != "" {
		r.spotify = NewSpotify(cfg.SpotifyClientID, cfg.SpotifyClientSecret, cfg.SpotifyTokenURL, cfg.SpotifyAPIURL, httpClient)
	}
	return r, nil
}

// Resolve classifies rawURL and fetches its metadata within the configured
// timeout. Errors carry ErrInvalidURL, ErrNotMusic or ErrResolutionFailed.
func (r *Resolver) Resolve(ctx context.Context, rawURL string) (*Track, error) {
	platform, id, err := Classify(rawURL)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var src lookup
	switch platform {
	case models.PlatformYoutube:
		src = r.youtube
	case models.PlatformSpotify:
		src = r.spotify
	}
	if src == nil {
		return nil, apperr.New(apperr.ErrResolutionFailed, "%s lookups are not configured", platform)
	}

	track, err := src.Lookup(ctx, id)
	if err != nil {
		r.log.Debug("track lookup rejected",
			zap.String("platform", string(platform)),
			zap.String("id", id),
			zap.Error(err))
		return nil, err
	}
	track.Platform = platform
	return track, nil
}
