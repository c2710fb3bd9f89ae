package domain

// PlaybackRequest describes a single resolution attempt: a content hash plus
// whatever hints the caller has about which file inside the torrent to play.
// It is immutable for the duration of a Resolve call.
type PlaybackRequest struct {
	// Hash is the 40 character hex info hash, normalized to lowercase.
	Hash string
	// Trackers are optional tracker URIs folded into the magnet.
	Trackers []string

	// Episode metadata used for fuzzy file matching. Zero means unset.
	Season          int
	Episode         int
	AbsoluteEpisode int

	// FileName, when set, selects the file whose path matches it exactly.
	FileName string
	// FileIndex, when set, selects the file with that index directly.
	FileIndex *int
	// RequestedTitle is the display name of the stream the caller picked,
	// used to break ties between equally plausible files.
	RequestedTitle string

	// Wait permits blocking until the gateway reports the torrent ready.
	Wait bool
	// Requester identifies the caller; it is part of the lock key so that
	// independent users do not serialize on each other.
	Requester string
}

// HasEpisodeHint reports whether the request carries any episode metadata
// usable for fuzzy matching.
func (r PlaybackRequest) HasEpisodeHint() bool {
	return (r.Season > 0 && r.Episode > 0) || r.AbsoluteEpisode > 0
}
