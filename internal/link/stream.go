package link

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// BlindIndex requests an index-less stream URL, leaving file selection to
// the gateway.
const BlindIndex = -1

// SplitCredential interprets a credential in "user:secret" form, splitting
// on the first colon only. ok is false for opaque API keys.
func SplitCredential(credential string) (user, secret string, ok bool) {
	idx := strings.Index(credential, ":")
	if idx < 0 {
		return "", "", false
	}
	return credential[:idx], credential[idx+1:], true
}

// StreamURL builds the playable URL for a hash on the gateway's stream
// endpoint. The play and save flags are always set so the gateway starts
// playback immediately and keeps the torrent in its history. Authentication
// is applied after every other query parameter: user:secret credentials
// become URL userinfo, opaque credentials an apikey parameter. The result is
// deterministic for identical inputs.
func StreamURL(base, credential, hash string, index int) (string, error) {
	normalized, err := NormalizeHash(hash)
	if err != nil {
		return "", err
	}

	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return "", fmt.Errorf("parse gateway url: %w", err)
	}
	u.Path += "/stream"

	q := url.Values{}
	q.Set("link", normalized)
	if index != BlindIndex {
		q.Set("index", strconv.Itoa(index))
	}
	q.Set("play", "true")
	q.Set("save", "true")

	if user, secret, ok := SplitCredential(credential); ok {
		u.User = url.UserPassword(user, secret)
	} else if credential != "" {
		q.Set("apikey", credential)
	}

	u.RawQuery = q.Encode()
	return u.String(), nil
}
