package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"stream-resolver/internal/cache"
	"stream-resolver/internal/domain"
	"stream-resolver/internal/gateway"
	"stream-resolver/internal/link"
	"stream-resolver/internal/lock"
	"stream-resolver/internal/repository"
	"stream-resolver/internal/selector"
)

// SleepFunc delays between poll attempts. Injectable so tests run without
// wall-clock waits.
type SleepFunc func(ctx context.Context, d time.Duration) error

func defaultSleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// ResolveConfig bounds the coordinator's caching, locking and polling.
type ResolveConfig struct {
	// PositiveTTL is the lifetime of resolved URLs in the link cache.
	PositiveTTL time.Duration
	// NegativeTTL is the short lifetime of "known not ready" markers.
	NegativeTTL time.Duration

	// LockTTL auto-releases a stalled holder's lock.
	LockTTL time.Duration
	// WaitAcquireTimeout bounds lock acquisition when the caller may block
	// for a first-time add; FastAcquireTimeout applies otherwise.
	WaitAcquireTimeout time.Duration
	FastAcquireTimeout time.Duration

	// PollAttempts and PollInterval bound the readiness polling loop.
	PollAttempts int
	PollInterval time.Duration

	// BlindStreamFallback degrades to an index-less stream URL when the
	// gateway reports no files; off means such torrents fail selection.
	BlindStreamFallback bool
}

func (c *ResolveConfig) applyDefaults() {
	if c.PositiveTTL == 0 {
		c.PositiveTTL = 6 * time.Hour
	}
	if c.NegativeTTL == 0 {
		c.NegativeTTL = 30 * time.Second
	}
	if c.LockTTL == 0 {
		c.LockTTL = time.Minute
	}
	if c.WaitAcquireTimeout == 0 {
		c.WaitAcquireTimeout = 30 * time.Second
	}
	if c.FastAcquireTimeout == 0 {
		c.FastAcquireTimeout = 5 * time.Second
	}
	if c.PollAttempts == 0 {
		c.PollAttempts = 15
	}
	if c.PollInterval == 0 {
		c.PollInterval = 2 * time.Second
	}
}

// ResolveService turns a playback request into a single cached, playable
// URL by driving the gateway through add and list.
type ResolveService interface {
	Resolve(ctx context.Context, req domain.PlaybackRequest) (domain.Resolution, error)
}

type resolveService struct {
	cfg     ResolveConfig
	gw      gateway.Service
	links   cache.Store
	locks   lock.Locker
	history repository.ResolutionRepository
	logger  *logrus.Logger
	sleep   SleepFunc
}

// NewResolveService wires the coordinator. history may be nil to disable
// resolution records.
func NewResolveService(
	cfg ResolveConfig,
	gw gateway.Service,
	links cache.Store,
	locks lock.Locker,
	history repository.ResolutionRepository,
	logger *logrus.Logger,
) ResolveService {
	cfg.applyDefaults()
	if logger == nil {
		logger = logrus.New()
	}
	return &resolveService{
		cfg:     cfg,
		gw:      gw,
		links:   links,
		locks:   locks,
		history: history,
		logger:  logger,
		sleep:   defaultSleep,
	}
}

func (s *resolveService) Resolve(ctx context.Context, req domain.PlaybackRequest) (domain.Resolution, error) {
	hash, err := link.NormalizeHash(req.Hash)
	if err != nil {
		return domain.NotReady, domain.NewBadRequestError("invalid content hash", err)
	}
	req.Hash = hash

	key := cache.Key(hash, req.Season, req.Episode, req.AbsoluteEpisode, req.RequestedTitle)

	if res, terminal := s.checkCache(ctx, key, req.Wait); terminal {
		return res, nil
	}

	acquireTimeout := s.cfg.FastAcquireTimeout
	if req.Wait {
		acquireTimeout = s.cfg.WaitAcquireTimeout
	}
	lockKey := fmt.Sprintf("%s:%s", req.Requester, key)

	var result domain.Resolution
	err = s.locks.WithLock(ctx, lockKey, lock.Options{AcquireTimeout: acquireTimeout, TTL: s.cfg.LockTTL}, func(ctx context.Context) error {
		r, err := s.resolveLocked(ctx, key, req)
		result = r
		return err
	})
	if errors.Is(err, lock.ErrAcquireTimeout) {
		// The holder may have finished while we waited; their result is
		// good for us too.
		if entry, ok := s.getEntry(ctx, key); ok && entry.Ready {
			return domain.Resolution{URL: entry.URL, Ready: true}, nil
		}
		return domain.NotReady, nil
	}
	if err != nil {
		return domain.NotReady, err
	}
	return result, nil
}

// resolveLocked runs the Submitting → Polling → Selecting → Building →
// Stored states. The lock guarantees at most one task per key is in here.
func (s *resolveService) resolveLocked(ctx context.Context, key string, req domain.PlaybackRequest) (domain.Resolution, error) {
	// A task that held the lock before us populated the cache; re-check
	// before submitting anything to avoid duplicate adds.
	if res, terminal := s.checkCache(ctx, key, req.Wait); terminal {
		return res, nil
	}

	magnetURI, err := link.BuildMagnet(req.Hash, req.Trackers)
	if err != nil {
		return domain.NotReady, domain.NewBadRequestError("build magnet", err)
	}

	tor, err := s.gw.Add(ctx, magnetURI)
	if err != nil {
		return domain.NotReady, err
	}
	s.logger.WithFields(logrus.Fields{
		"hash":   req.Hash,
		"status": tor.Status,
	}).Debug("magnet submitted")

	if !s.gw.Ready(tor.Status) {
		// Fail parallel non-waiting callers fast while this one polls.
		s.putEntry(ctx, key, cache.Entry{Ready: false}, s.cfg.NegativeTTL)

		if !req.Wait {
			return domain.NotReady, nil
		}

		found, err := s.pollUntilReady(ctx, req.Hash)
		if err != nil {
			return domain.NotReady, err
		}
		if found == nil {
			// Exhausted attempts; the content may simply not be there yet.
			s.putEntry(ctx, key, cache.Entry{Ready: false}, s.cfg.NegativeTTL)
			return domain.NotReady, nil
		}
		tor = *found
	}

	if len(tor.Files) == 0 {
		// The add acknowledgment can lag behind file discovery; give the
		// listing one chance to fill it in.
		if refreshed := s.findInListing(ctx, req.Hash); refreshed != nil && len(refreshed.Files) > 0 {
			tor = *refreshed
		}
	}

	index := link.BlindIndex
	filePath := ""
	if len(tor.Files) == 0 {
		if !s.cfg.BlindStreamFallback {
			return domain.NotReady, domain.NewNoMatchingFileError(
				fmt.Sprintf("torrent %s has no files", req.Hash))
		}
	} else {
		file, err := selector.Pick(tor, req)
		if err != nil {
			return domain.NotReady, err
		}
		index = file.Index
		filePath = file.Path
	}

	playURL, err := s.gw.StreamURL(req.Hash, index)
	if err != nil {
		return domain.NotReady, fmt.Errorf("build stream url: %w", err)
	}

	s.putEntry(ctx, key, cache.Entry{URL: playURL, Ready: true}, s.cfg.PositiveTTL)
	s.record(ctx, req, index, filePath, playURL)

	return domain.Resolution{URL: playURL, Ready: true}, nil
}

// pollUntilReady re-lists the gateway until the hash reports ready, up to
// the configured attempt budget. A nil torrent with nil error means the
// budget ran out.
func (s *resolveService) pollUntilReady(ctx context.Context, hash string) (*domain.RemoteTorrent, error) {
	for attempt := 1; attempt <= s.cfg.PollAttempts; attempt++ {
		if err := s.sleep(ctx, s.cfg.PollInterval); err != nil {
			return nil, err
		}

		if tor := s.findReadyInListing(ctx, hash); tor != nil {
			s.logger.WithFields(logrus.Fields{
				"hash":    hash,
				"attempt": attempt,
			}).Debug("torrent became ready")
			return tor, nil
		}
	}
	return nil, nil
}

func (s *resolveService) findReadyInListing(ctx context.Context, hash string) *domain.RemoteTorrent {
	tor := s.findInListing(ctx, hash)
	if tor == nil || !s.gw.Ready(tor.Status) {
		return nil
	}
	return tor
}

func (s *resolveService) findInListing(ctx context.Context, hash string) *domain.RemoteTorrent {
	torrents, err := s.gw.List(ctx)
	if err != nil {
		// Listing failures mean "nothing known this round", never a hard
		// failure of the resolution.
		s.logger.WithError(err).Debug("gateway listing failed")
		return nil
	}
	for i := range torrents {
		if torrents[i].Hash == hash {
			return &torrents[i]
		}
	}
	return nil
}

// checkCache is the CacheCheck gate. terminal=true short-circuits the
// resolution: either a positive hit, or a negative hit the caller is not
// willing to wait out.
func (s *resolveService) checkCache(ctx context.Context, key string, wait bool) (domain.Resolution, bool) {
	entry, ok := s.getEntry(ctx, key)
	if !ok {
		return domain.NotReady, false
	}
	if entry.Ready {
		return domain.Resolution{URL: entry.URL, Ready: true}, true
	}
	if !wait {
		return domain.NotReady, true
	}
	// Waiting callers ignore negative entries; a full pass may refresh
	// them to positive.
	return domain.NotReady, false
}

func (s *resolveService) getEntry(ctx context.Context, key string) (cache.Entry, bool) {
	entry, ok, err := s.links.Get(ctx, key)
	if err != nil {
		s.logger.WithError(err).Warn("link cache read failed")
		return cache.Entry{}, false
	}
	return entry, ok
}

func (s *resolveService) putEntry(ctx context.Context, key string, entry cache.Entry, ttl time.Duration) {
	if err := s.links.Set(ctx, key, entry, ttl); err != nil {
		s.logger.WithError(err).Warn("link cache write failed")
	}
}

func (s *resolveService) record(ctx context.Context, req domain.PlaybackRequest, index int, filePath, playURL string) {
	if s.history == nil {
		return
	}
	rec := &domain.ResolutionRecord{
		Hash:            req.Hash,
		Requester:       req.Requester,
		Season:          req.Season,
		Episode:         req.Episode,
		AbsoluteEpisode: req.AbsoluteEpisode,
		FileIndex:       index,
		FilePath:        filePath,
		URL:             playURL,
	}
	if _, err := s.history.Create(ctx, rec); err != nil {
		s.logger.WithError(err).Warn("record resolution failed")
	}
}
