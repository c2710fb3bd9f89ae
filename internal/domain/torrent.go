package domain

// TorrentStatus classifies the gateway's view of a torrent. The gateway
// reports raw numeric codes; anything unmapped becomes StatusUnknown and is
// treated as not ready.
type TorrentStatus string

const (
	StatusQueued      TorrentStatus = "queued"
	StatusDownloading TorrentStatus = "downloading"
	StatusCached      TorrentStatus = "cached"
	StatusUnknown     TorrentStatus = "unknown"
)

// RemoteTorrent is the gateway's record of a torrent. It is rebuilt from the
// remote listing on every poll and never stored long-term.
type RemoteTorrent struct {
	ID     string
	Hash   string
	Name   string
	Size   int64
	Status TorrentStatus
	Files  []RemoteFile
}

// RemoteFile is a single file inside a remote torrent.
type RemoteFile struct {
	Index int
	Path  string
	Size  int64
}

// FileByIndex returns the file with the given index, if present.
func (t RemoteTorrent) FileByIndex(index int) (RemoteFile, bool) {
	for _, f := range t.Files {
		if f.Index == index {
			return f, true
		}
	}
	return RemoteFile{}, false
}
