package automation

import (
	"net/url"
	"strings"
)

// path segments of destinations that carry a playable collection
var playableSegments = []string{
	"/playlist",
	"/album",
	"/station",
	"/artist",
	"/mix",
}

// PlayableDestination reports whether the page at rawURL is a playlist,
// album or station like destination where auto play should engage. Home,
// search and settings pages are left alone.
func PlayableDestination(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	path := strings.ToLower(u.Path)
	for _, segment := range playableSegments {
		if strings.Contains(path, segment) {
			return true
		}
	}
	return false
}
