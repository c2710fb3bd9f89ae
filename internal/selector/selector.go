// Package selector picks the single file to stream out of a torrent's file
// listing, combining explicit caller hints with fuzzy episode matching on
// parsed release names.
package selector

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/cehbz/torrentname"

	"stream-resolver/internal/domain"
)

// Pick selects the file to stream. Hints are tried in order, first match
// wins: explicit file index, explicit file path, episode metadata, then the
// single-file fallback. Files whose names fail to parse stay eligible for
// the explicit hints but never match on metadata.
func Pick(t domain.RemoteTorrent, req domain.PlaybackRequest) (domain.RemoteFile, error) {
	if req.FileIndex != nil {
		if f, ok := t.FileByIndex(*req.FileIndex); ok {
			return f, nil
		}
	}

	if req.FileName != "" {
		for _, f := range t.Files {
			if f.Path == req.FileName {
				return f, nil
			}
		}
	}

	if req.HasEpisodeHint() {
		if f, ok := bestEpisodeMatch(t.Files, req); ok {
			return f, nil
		}
	}

	if len(t.Files) == 1 {
		return t.Files[0], nil
	}

	return domain.RemoteFile{}, domain.NewNoMatchingFileError(
		fmt.Sprintf("no file matches hints in torrent %s (%d files)", t.Hash, len(t.Files)))
}

func bestEpisodeMatch(files []domain.RemoteFile, req domain.PlaybackRequest) (domain.RemoteFile, bool) {
	var matches []domain.RemoteFile
	for _, f := range files {
		parsed := torrentname.Parse(filepath.Base(f.Path))
		if parsed == nil {
			continue
		}
		if matchesEpisode(parsed, req) {
			matches = append(matches, f)
		}
	}

	if len(matches) == 0 {
		return domain.RemoteFile{}, false
	}

	// Prefer the file named most like what the caller asked for, then the
	// largest one; samples and extras lose both comparisons.
	sort.SliceStable(matches, func(i, j int) bool {
		si := nameSimilarity(matches[i].Path, req.RequestedTitle)
		sj := nameSimilarity(matches[j].Path, req.RequestedTitle)
		if si != sj {
			return si > sj
		}
		return matches[i].Size > matches[j].Size
	})
	return matches[0], true
}

func matchesEpisode(parsed *torrentname.TorrentInfo, req domain.PlaybackRequest) bool {
	if req.Season > 0 && req.Episode > 0 &&
		parsed.Season == req.Season && parsed.Episode == req.Episode {
		return true
	}
	// Absolute numbering: files usually carry just an episode number with no
	// season marker.
	if req.AbsoluteEpisode > 0 && parsed.Episode == req.AbsoluteEpisode &&
		(parsed.Season == 0 || parsed.Season == req.Season) {
		return true
	}
	return false
}

var tokenPattern = regexp.MustCompile(`[a-z0-9]+`)

// nameSimilarity scores how close a file path is to the requested release
// name, as the share of the requested name's tokens present in the path.
func nameSimilarity(path, requested string) float64 {
	if requested == "" {
		return 0
	}
	want := tokenPattern.FindAllString(strings.ToLower(requested), -1)
	if len(want) == 0 {
		return 0
	}

	have := make(map[string]struct{})
	for _, tok := range tokenPattern.FindAllString(strings.ToLower(path), -1) {
		have[tok] = struct{}{}
	}

	hits := 0
	for _, tok := range want {
		if _, ok := have[tok]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(want))
}
