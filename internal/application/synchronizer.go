package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bnema/rigpilot/internal/domain"
	"github.com/bnema/rigpilot/internal/ports"
	"golang.org/x/sync/singleflight"
)

const DefaultPollInterval = 3 * time.Second

type fetchResult struct {
	snapshot domain.Snapshot
	issuedAt time.Time
}

// Synchronizer keeps the state cache in line with the server. A poll and an
// explicit SyncNow that overlap share one request.
type Synchronizer struct {
	loop     *Loop
	remote   ports.RemoteAPI
	cache    *StateCache
	interval time.Duration
	logger   *slog.Logger

	group singleflight.Group

	gen      uint64
	running  bool
	ctx      context.Context
	ticker   ports.Timer
	inflight bool
	onSync   []func(domain.Snapshot)

	lastErr error
}

func NewSynchronizer(loop *Loop, remote ports.RemoteAPI, cache *StateCache, interval time.Duration, logger *slog.Logger) *Synchronizer {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Synchronizer{
		loop:     loop,
		remote:   remote,
		cache:    cache,
		interval: interval,
		logger:   logger,
	}
}

// OnSync registers fn to run on the loop after every applied snapshot.
func (s *Synchronizer) OnSync(fn func(domain.Snapshot)) {
	s.onSync = append(s.onSync, fn)
}

// Start polls immediately and then every interval. Must be called on the loop.
func (s *Synchronizer) Start(ctx context.Context) {
	if s.running {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	s.running = true
	s.ctx = ctx
	s.ticker = s.loop.Every(s.interval, s.poll)
	s.poll()
}

// Stop cancels the schedule. A response still in flight is discarded.
func (s *Synchronizer) Stop() {
	if !s.running {
		return
	}

	s.running = false
	s.gen++
	// The old flight still lands, but under a stale generation.
	s.inflight = false
	if s.ticker != nil {
		s.ticker.Stop()
		s.ticker = nil
	}
}

func (s *Synchronizer) Running() bool {
	return s.running
}

// SyncNow requests a fetch outside the schedule.
func (s *Synchronizer) SyncNow() {
	if !s.running {
		return
	}
	s.fetch(true)
}

// LastError is the error of the most recent failed fetch, cleared on
// success.
func (s *Synchronizer) LastError() error {
	return s.lastErr
}

func (s *Synchronizer) poll() {
	s.fetch(false)
}

func (s *Synchronizer) fetch(explicit bool) {
	if s.inflight && !explicit {
		// The running request will land before the next tick anyway.
		return
	}
	s.inflight = true

	gen := s.gen
	ctx := s.ctx
	s.loop.Go(func() func() {
		value, err, shared := s.group.Do(fmt.Sprintf("snapshot/%d", gen), func() (any, error) {
			issuedAt := s.loop.Now()
			snapshot, err := s.remote.FetchSnapshot(ctx)
			if err != nil {
				return nil, err
			}
			return fetchResult{snapshot: snapshot, issuedAt: issuedAt}, nil
		})

		return func() {
			if s.gen != gen {
				s.logger.Debug("discarding snapshot from stopped synchronizer")
				return
			}
			s.inflight = false
			if err != nil {
				s.lastErr = fmt.Errorf("fetch snapshot: %w", err)
				s.logger.Warn("sync failed, keeping cached state", "error", err)
				return
			}

			result := value.(fetchResult)
			if s.cache.Loaded() {
				synced := s.cache.SyncedAt()
				// Older than what is cached, or a shared flight the other
				// caller already applied.
				if result.issuedAt.Before(synced) || (shared && result.issuedAt.Equal(synced)) {
					return
				}
			}
			s.apply(result)
		}
	})
}

func (s *Synchronizer) apply(result fetchResult) {
	s.lastErr = nil
	s.cache.Replace(result.snapshot, result.issuedAt)
	s.logger.Debug("snapshot applied", "rigs", len(result.snapshot.Rigs), "issued_at", result.issuedAt)

	snapshot := s.cache.Snapshot()
	for _, fn := range s.onSync {
		fn(snapshot)
	}
}
