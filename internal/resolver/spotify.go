package resolver

import (
	"context"
	"errors"
	"net/http"

	"github.com/zmb3/spotify/v2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/music-spaces/pkg/apperr"
)

// Spotify looks up tracks with an app-only client credential. The token is
// fetched on first use and refreshed by the oauth2 transport.
type Spotify struct {
	client *spotify.Client
}

func NewSpotify(clientID, clientSecret, tokenURL, apiURL string, httpClient *http.Client) *Spotify {
	creds := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
	}
	// token requests use the same bounded client as API calls
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)
	authed := creds.Client(ctx)
	authed.Timeout = httpClient.Timeout

	return &Spotify{
		client: spotify.New(authed, spotify.WithBaseURL(apiURL)),
	}
}

func (s *Spotify) Lookup(ctx context.Context, trackID string) (*Track, error) {
	track, err := s.client.GetTrack(ctx, spotify.ID(trackID))
	if err != nil {
		var apiErr spotify.Error
		if errors.As(err, &apiErr) && (apiErr.Status == http.StatusNotFound || apiErr.Status == http.StatusBadRequest) {
			return nil, apperr.New(apperr.ErrInvalidURL, "Invalid URL")
		}
		return nil, apperr.Wrap(apperr.ErrResolutionFailed, err, "track lookup failed")
	}

	out := &Track{
		ExtractedID: trackID,
		Title:       track.Name,
	}
	// images come largest first
	if images := track.Album.Images; len(images) > 0 {
		out.BigImg = images[0].URL
		out.SmallImg = images[len(images)-1].URL
	}
	return out, nil
}
