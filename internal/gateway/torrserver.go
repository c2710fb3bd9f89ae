package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"stream-resolver/internal/domain"
	"stream-resolver/internal/link"
)

func init() {
	Register("torrserver", newTorrServer)
}

// Raw status codes reported by the gateway's torrents endpoint.
const (
	statAdded       = 0
	statGettingInfo = 1
	statPreload     = 2
	statWorking     = 3
	statClosed      = 4
	statInDB        = 5
)

type torrServer struct {
	opts Options
	log  *logrus.Logger
}

func newTorrServer(opts Options) Service {
	return &torrServer{opts: opts, log: opts.Logger}
}

type torrentsRequest struct {
	Action   string `json:"action"`
	Link     string `json:"link,omitempty"`
	SaveToDB bool   `json:"save_to_db,omitempty"`
}

type torrentPayload struct {
	Hash  string `json:"hash"`
	Title string `json:"title"`
	Size  int64  `json:"torrent_size"`
	Stat  *int   `json:"stat"`
	Files []struct {
		ID     int    `json:"id"`
		Path   string `json:"path"`
		Length int64  `json:"length"`
	} `json:"file_stats"`
}

func (s *torrServer) List(ctx context.Context) ([]domain.RemoteTorrent, error) {
	body, err := s.post(ctx, torrentsRequest{Action: "list"})
	if err != nil {
		return nil, err
	}

	var payloads []torrentPayload
	if err := json.Unmarshal(body, &payloads); err != nil {
		return nil, fmt.Errorf("decode torrent listing: %w", err)
	}

	torrents := make([]domain.RemoteTorrent, 0, len(payloads))
	for _, p := range payloads {
		torrents = append(torrents, s.toDomain(p))
	}
	return torrents, nil
}

func (s *torrServer) Add(ctx context.Context, magnetURI string) (domain.RemoteTorrent, error) {
	if _, err := link.HashFromMagnet(magnetURI); err != nil {
		return domain.RemoteTorrent{}, domain.NewBadRequestError("magnet has no valid info hash", err)
	}

	body, err := s.post(ctx, torrentsRequest{Action: "add", Link: magnetURI, SaveToDB: true})
	if err != nil {
		return domain.RemoteTorrent{}, domain.NewUpstreamError("add torrent", err)
	}

	var payload torrentPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return domain.RemoteTorrent{}, domain.NewUpstreamError("decode add response", err)
	}
	return s.toDomain(payload), nil
}

func (s *torrServer) StreamURL(hash string, index int) (string, error) {
	return link.StreamURL(s.opts.BaseURL, s.opts.Credential, hash, index)
}

func (s *torrServer) Ready(status domain.TorrentStatus) bool {
	if status == domain.StatusCached {
		return true
	}
	return s.opts.DownloadingReady && status == domain.StatusDownloading
}

func (s *torrServer) toDomain(p torrentPayload) domain.RemoteTorrent {
	t := domain.RemoteTorrent{
		ID:     p.Hash,
		Hash:   strings.ToLower(p.Hash),
		Name:   p.Title,
		Size:   p.Size,
		Status: mapStat(p.Stat),
	}
	for _, f := range p.Files {
		t.Files = append(t.Files, domain.RemoteFile{
			Index: f.ID,
			Path:  f.Path,
			Size:  f.Length,
		})
	}
	return t
}

func mapStat(stat *int) domain.TorrentStatus {
	if stat == nil {
		return domain.StatusUnknown
	}
	switch *stat {
	case statAdded, statGettingInfo:
		return domain.StatusQueued
	case statPreload, statWorking:
		return domain.StatusDownloading
	case statInDB:
		return domain.StatusCached
	default:
		return domain.StatusUnknown
	}
}

func (s *torrServer) post(ctx context.Context, reqBody torrentsRequest) ([]byte, error) {
	endpoint, err := url.JoinPath(s.opts.BaseURL, "torrents")
	if err != nil {
		return nil, fmt.Errorf("build endpoint: %w", err)
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	s.authenticate(req)

	resp, err := s.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("read gateway response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("gateway returned %d: %s", resp.StatusCode, truncate(string(body), 200))
	}
	return body, nil
}

// authenticate attaches the configured credential: user:secret goes into a
// Basic auth header, an opaque key into the apikey query parameter.
func (s *torrServer) authenticate(req *http.Request) {
	if s.opts.Credential == "" {
		return
	}
	if user, secret, ok := link.SplitCredential(s.opts.Credential); ok {
		req.SetBasicAuth(user, secret)
		return
	}
	q := req.URL.Query()
	q.Set("apikey", s.opts.Credential)
	req.URL.RawQuery = q.Encode()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
