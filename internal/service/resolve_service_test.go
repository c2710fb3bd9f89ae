package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stream-resolver/internal/cache"
	"stream-resolver/internal/domain"
	"stream-resolver/internal/link"
	"stream-resolver/internal/lock"
)

const testHash = "b0b1b2b3b4b5b6b7b8b9c0c1c2c3c4c5c6c7c8c9"

type fakeGateway struct {
	mu        sync.Mutex
	addCalls  int
	listCalls int

	addStatus domain.TorrentStatus
	addFiles  []domain.RemoteFile
	addErr    error

	// readyAfterLists delays listing readiness until that many List calls
	// have happened; 0 means the listing never reports ready.
	readyAfterLists int
	listFiles       []domain.RemoteFile
}

func (g *fakeGateway) Add(_ context.Context, _ string) (domain.RemoteTorrent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.addCalls++
	if g.addErr != nil {
		return domain.RemoteTorrent{}, g.addErr
	}
	return domain.RemoteTorrent{Hash: testHash, Status: g.addStatus, Files: g.addFiles}, nil
}

func (g *fakeGateway) List(_ context.Context) ([]domain.RemoteTorrent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listCalls++
	status := domain.StatusQueued
	if g.readyAfterLists > 0 && g.listCalls >= g.readyAfterLists {
		status = domain.StatusCached
	}
	return []domain.RemoteTorrent{{Hash: testHash, Status: status, Files: g.listFiles}}, nil
}

func (g *fakeGateway) StreamURL(hash string, index int) (string, error) {
	if index == link.BlindIndex {
		return fmt.Sprintf("http://gw/stream?hash=%s", hash), nil
	}
	return fmt.Sprintf("http://gw/stream?hash=%s&index=%d", hash, index), nil
}

func (g *fakeGateway) Ready(status domain.TorrentStatus) bool {
	return status == domain.StatusCached || status == domain.StatusDownloading
}

func (g *fakeGateway) counts() (adds, lists int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.addCalls, g.listCalls
}

type fakeHistory struct {
	mu      sync.Mutex
	records []domain.ResolutionRecord
}

func (h *fakeHistory) Init(context.Context) error { return nil }

func (h *fakeHistory) Create(_ context.Context, rec *domain.ResolutionRecord) (int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, *rec)
	return int64(len(h.records)), nil
}

func (h *fakeHistory) List(context.Context, int) ([]domain.ResolutionRecord, error) {
	return nil, nil
}

func (h *fakeHistory) ListByRequester(context.Context, string, int) ([]domain.ResolutionRecord, error) {
	return nil, nil
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func newTestService(t *testing.T, gw *fakeGateway, cfg ResolveConfig) (ResolveService, *cache.MemoryStore) {
	t.Helper()
	store := cache.NewMemoryStore()
	svc := NewResolveService(cfg, gw, store, lock.NewMemoryLocker(), nil, quietLogger())
	svc.(*resolveService).sleep = func(ctx context.Context, _ time.Duration) error {
		return ctx.Err()
	}
	return svc, store
}

func singleFile() []domain.RemoteFile {
	return []domain.RemoteFile{{Index: 0, Path: "Show/episode.mkv", Size: 700}}
}

func TestResolveReadyOnAdd(t *testing.T) {
	gw := &fakeGateway{addStatus: domain.StatusCached, addFiles: singleFile()}
	svc, _ := newTestService(t, gw, ResolveConfig{})

	res, err := svc.Resolve(context.Background(), domain.PlaybackRequest{Hash: testHash, Requester: "alice"})
	require.NoError(t, err)
	assert.True(t, res.Ready)
	assert.Equal(t, "http://gw/stream?hash="+testHash+"&index=0", res.URL)
}

func TestResolveSecondCallHitsCache(t *testing.T) {
	gw := &fakeGateway{addStatus: domain.StatusCached, addFiles: singleFile()}
	svc, _ := newTestService(t, gw, ResolveConfig{})
	req := domain.PlaybackRequest{Hash: testHash, Requester: "alice"}

	first, err := svc.Resolve(context.Background(), req)
	require.NoError(t, err)
	second, err := svc.Resolve(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	adds, _ := gw.counts()
	assert.Equal(t, 1, adds, "cached re-resolve must not touch the gateway")
}

func TestResolveConcurrentRequestsAddOnce(t *testing.T) {
	gw := &fakeGateway{addStatus: domain.StatusCached, addFiles: singleFile()}
	svc, _ := newTestService(t, gw, ResolveConfig{})
	req := domain.PlaybackRequest{Hash: testHash, Requester: "alice", Wait: true}

	const workers = 8
	var wg sync.WaitGroup
	results := make([]domain.Resolution, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.Resolve(context.Background(), req)
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.True(t, results[i].Ready)
		assert.Equal(t, results[0].URL, results[i].URL)
	}
	adds, _ := gw.counts()
	assert.Equal(t, 1, adds, "only one task may submit the magnet")
}

func TestResolveNotReadyWithoutWait(t *testing.T) {
	gw := &fakeGateway{addStatus: domain.StatusQueued}
	svc, store := newTestService(t, gw, ResolveConfig{})

	res, err := svc.Resolve(context.Background(), domain.PlaybackRequest{Hash: testHash, Requester: "alice"})
	require.NoError(t, err)
	assert.Equal(t, domain.NotReady, res)

	_, lists := gw.counts()
	assert.Zero(t, lists, "non-waiting callers must not poll")

	key := cache.Key(testHash, 0, 0, 0, "")
	entry, ok, err := store.Get(context.Background(), key)
	require.NoError(t, err)
	require.True(t, ok, "a negative entry must be written")
	assert.False(t, entry.Ready)
}

func TestResolveNegativeEntrySkipsGateway(t *testing.T) {
	gw := &fakeGateway{addStatus: domain.StatusQueued}
	svc, store := newTestService(t, gw, ResolveConfig{})
	key := cache.Key(testHash, 0, 0, 0, "")
	require.NoError(t, store.Set(context.Background(), key, cache.Entry{Ready: false}, time.Minute))

	res, err := svc.Resolve(context.Background(), domain.PlaybackRequest{Hash: testHash, Requester: "alice"})
	require.NoError(t, err)
	assert.Equal(t, domain.NotReady, res)

	adds, _ := gw.counts()
	assert.Zero(t, adds)
}

func TestResolveWaitIgnoresNegativeEntry(t *testing.T) {
	gw := &fakeGateway{addStatus: domain.StatusCached, addFiles: singleFile()}
	svc, store := newTestService(t, gw, ResolveConfig{})
	key := cache.Key(testHash, 0, 0, 0, "")
	require.NoError(t, store.Set(context.Background(), key, cache.Entry{Ready: false}, time.Minute))

	res, err := svc.Resolve(context.Background(), domain.PlaybackRequest{Hash: testHash, Requester: "alice", Wait: true})
	require.NoError(t, err)
	assert.True(t, res.Ready)
}

func TestResolvePollExhaustionIsNotReady(t *testing.T) {
	gw := &fakeGateway{addStatus: domain.StatusQueued}
	svc, _ := newTestService(t, gw, ResolveConfig{PollAttempts: 3})

	res, err := svc.Resolve(context.Background(), domain.PlaybackRequest{Hash: testHash, Requester: "alice", Wait: true})
	require.NoError(t, err, "exhausting the poll budget is an outcome, not an error")
	assert.Equal(t, domain.NotReady, res)

	_, lists := gw.counts()
	assert.Equal(t, 3, lists)
}

func TestResolvePollPicksUpReadiness(t *testing.T) {
	gw := &fakeGateway{addStatus: domain.StatusQueued, readyAfterLists: 2, listFiles: singleFile()}
	svc, _ := newTestService(t, gw, ResolveConfig{PollAttempts: 5})

	res, err := svc.Resolve(context.Background(), domain.PlaybackRequest{Hash: testHash, Requester: "alice", Wait: true})
	require.NoError(t, err)
	assert.True(t, res.Ready)
	assert.Contains(t, res.URL, "index=0")

	_, lists := gw.counts()
	assert.Equal(t, 2, lists)
}

func TestResolveRejectsBadHash(t *testing.T) {
	gw := &fakeGateway{}
	svc, _ := newTestService(t, gw, ResolveConfig{})

	_, err := svc.Resolve(context.Background(), domain.PlaybackRequest{Hash: "nope", Requester: "alice"})
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindBadRequest))

	adds, _ := gw.counts()
	assert.Zero(t, adds)
}

func TestResolveEmptyListingBlindStream(t *testing.T) {
	gw := &fakeGateway{addStatus: domain.StatusCached}
	svc, _ := newTestService(t, gw, ResolveConfig{BlindStreamFallback: true})

	res, err := svc.Resolve(context.Background(), domain.PlaybackRequest{Hash: testHash, Requester: "alice"})
	require.NoError(t, err)
	assert.True(t, res.Ready)
	assert.NotContains(t, res.URL, "index=")
}

func TestResolveEmptyListingWithoutFallback(t *testing.T) {
	gw := &fakeGateway{addStatus: domain.StatusCached}
	svc, _ := newTestService(t, gw, ResolveConfig{})

	_, err := svc.Resolve(context.Background(), domain.PlaybackRequest{Hash: testHash, Requester: "alice"})
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindNoMatchingFile))
}

func TestResolveWritesHistoryRecord(t *testing.T) {
	gw := &fakeGateway{addStatus: domain.StatusCached, addFiles: singleFile()}
	history := &fakeHistory{}
	svc := NewResolveService(ResolveConfig{}, gw, cache.NewMemoryStore(), lock.NewMemoryLocker(), history, quietLogger())

	res, err := svc.Resolve(context.Background(), domain.PlaybackRequest{
		Hash:      testHash,
		Requester: "alice",
		Season:    1,
		Episode:   2,
	})
	require.NoError(t, err)

	history.mu.Lock()
	defer history.mu.Unlock()
	require.Len(t, history.records, 1)
	rec := history.records[0]
	assert.Equal(t, testHash, rec.Hash)
	assert.Equal(t, "alice", rec.Requester)
	assert.Equal(t, 1, rec.Season)
	assert.Equal(t, 2, rec.Episode)
	assert.Equal(t, res.URL, rec.URL)
}

func TestResolveUppercaseHashNormalized(t *testing.T) {
	gw := &fakeGateway{addStatus: domain.StatusCached, addFiles: singleFile()}
	svc, _ := newTestService(t, gw, ResolveConfig{})

	upper := domain.PlaybackRequest{Hash: "B0B1B2B3B4B5B6B7B8B9C0C1C2C3C4C5C6C7C8C9", Requester: "alice"}
	first, err := svc.Resolve(context.Background(), upper)
	require.NoError(t, err)

	lower := domain.PlaybackRequest{Hash: testHash, Requester: "alice"}
	second, err := svc.Resolve(context.Background(), lower)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	adds, _ := gw.counts()
	assert.Equal(t, 1, adds, "case variants of one hash share a cache entry")
}
