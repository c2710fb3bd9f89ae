package domain

import "time"

// Resolution is the outcome of a resolve call. Ready=false means the content
// is not streamable yet; that is a legitimate answer, not an error.
type Resolution struct {
	URL   string
	Ready bool
}

// NotReady is the terminal "try again later" outcome.
var NotReady = Resolution{}

// ResolutionRecord is a successful resolution persisted for history.
type ResolutionRecord struct {
	ID              int64
	Hash            string
	Requester       string
	Season          int
	Episode         int
	AbsoluteEpisode int
	FileIndex       int
	FilePath        string
	URL             string
	CreatedAt       time.Time
}
