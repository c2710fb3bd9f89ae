// Package link converts bare content identifiers into magnet URIs and
// playable gateway URLs. It is used by the resolution coordinator and by the
// plain converter endpoint, which does URL templating only.
package link

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/anacrolix/torrent/metainfo"
)

var hashPattern = regexp.MustCompile(`^[0-9a-f]{40}$`)

// NormalizeHash lowercases a 40 character hex info hash and validates it.
func NormalizeHash(hash string) (string, error) {
	hash = strings.ToLower(strings.TrimSpace(hash))
	if !hashPattern.MatchString(hash) {
		return "", fmt.Errorf("invalid info hash %q", hash)
	}
	return hash, nil
}

// BuildMagnet assembles a magnet URI from an info hash and tracker URIs. The
// hash in the result is always lowercase, so extracting it back with
// HashFromMagnet round-trips.
func BuildMagnet(hash string, trackers []string) (string, error) {
	normalized, err := NormalizeHash(hash)
	if err != nil {
		return "", err
	}

	var infoHash metainfo.Hash
	if err := infoHash.FromHexString(normalized); err != nil {
		return "", fmt.Errorf("decode info hash: %w", err)
	}

	m := metainfo.Magnet{
		InfoHash: infoHash,
		Trackers: trackers,
	}
	return m.String(), nil
}

// HashFromMagnet extracts the lowercase hex info hash from a magnet URI.
// Both hex and base32 encoded btih values are accepted.
func HashFromMagnet(uri string) (string, error) {
	m, err := metainfo.ParseMagnetUri(uri)
	if err != nil {
		return "", fmt.Errorf("parse magnet: %w", err)
	}
	return m.InfoHash.HexString(), nil
}
