// Package youtube resolves YouTube video URLs into the identity used as the
// storage key for downloaded audio and transcriptions.
package youtube

import (
	"net/url"
	"strings"
)

const (
	shortHost     = "youtu.be"
	canonicalHost = "youtube.com"
)

// ExtractVideoID returns the video identity embedded in rawURL.
//
// Accepted shapes:
//
//	https://youtu.be/<id>
//	https://www.youtube.com/watch?v=<id>
//	https://www.youtube.com/embed/<id>
//	https://www.youtube.com/v/<id>
//
// The identity is returned verbatim. ok is false for any other shape.
func ExtractVideoID(rawURL string) (id string, ok bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}

	switch strings.ToLower(u.Hostname()) {
	case shortHost:
		id = strings.TrimPrefix(u.Path, "/")
	case canonicalHost, "www." + canonicalHost:
		id = canonicalID(u)
	}

	return id, id != ""
}

func canonicalID(u *url.URL) string {
	switch {
	case u.Path == "/watch":
		if v, ok := u.Query()["v"]; ok && len(v) > 0 {
			return v[0]
		}
	case strings.HasPrefix(u.Path, "/embed/"), strings.HasPrefix(u.Path, "/v/"):
		parts := strings.Split(u.Path, "/")
		if len(parts) > 2 {
			return parts[2]
		}
	}
	return ""
}

// WatchURL builds the canonical watch URL for a video identity.
func WatchURL(id string) string {
	return "https://www.youtube.com/watch?v=" + url.QueryEscape(id)
}
