package resolver

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/music-spaces/pkg/apperr"
	"github.com/music-spaces/pkg/models"
)

var (
	youtubeHosts = map[string]bool{
		"youtube.com":       true,
		"www.youtube.com":   true,
		"m.youtube.com":     true,
		"music.youtube.com": true,
	}
	// both catalogs use URL-safe base64-ish ids
	youtubeIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{6,64}$`)
	spotifyIDPattern = regexp.MustCompile(`^[A-Za-z0-9]{10,64}$`)
)

// Classify splits a submitted URL into its platform and catalog id.
func Classify(raw string) (models.PlatformType, string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") {
		return "", "", apperr.New(apperr.ErrInvalidURL, "Invalid URL")
	}
	host := strings.ToLower(u.Hostname())

	switch {
	case youtubeHosts[host]:
		id := u.Query().Get("v")
		if u.Path != "/watch" || !youtubeIDPattern.MatchString(id) {
			return "", "", apperr.New(apperr.ErrInvalidURL, "Invalid URL")
		}
		return models.PlatformYoutube, id, nil

	case host == "youtu.be":
		id := strings.Trim(u.Path, "/")
		if !youtubeIDPattern.MatchString(id) {
			return "", "", apperr.New(apperr.ErrInvalidURL, "Invalid URL")
		}
		return models.PlatformYoutube, id, nil

	case host == "open.spotify.com":
		id, ok := strings.CutPrefix(u.Path, "/track/")
		id = strings.TrimSuffix(id, "/")
		if !ok || !spotifyIDPattern.MatchString(id) {
			return "", "", apperr.New(apperr.ErrInvalidURL, "Invalid URL")
		}
		return models.PlatformSpotify, id, nil
	}

	return "", "", apperr.New(apperr.ErrInvalidURL, "Invalid URL")
}
