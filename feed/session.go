package feed

import (
	"context"
	"sync"
	"time"

	"github.com/nexocrm/leadview"
	"go.uber.org/zap"
)

// Session is one viewer's live lead feed. Each Reload starts a new fetch
// generation: the previous generation's context is cancelled and its
// collection abandoned, so a stale continuation can never write into the
// fresh view.
type Session struct {
	viewer  leadview.Viewer
	subs    leadview.Subordinates
	fetcher *Fetcher

	mu         sync.Mutex
	gen        uint64
	cancel     context.CancelFunc
	col        *Collection
	loading    bool
	lastAccess time.Time
}

func newSession(viewer leadview.Viewer, subs leadview.Subordinates, fetcher *Fetcher) *Session {
	return &Session{
		viewer:     viewer,
		subs:       subs,
		fetcher:    fetcher,
		col:        NewCollection(),
		lastAccess: time.Now(),
	}
}

func (s *Session) Viewer() leadview.Viewer { return s.viewer }

// Reload discards the displayed collection and refetches from page one.
// On a first-page error the previous collection stays as last-known-good.
// The continuation runs detached from ctx because it must outlive the
// request that triggered it.
func (s *Session) Reload(ctx context.Context) error {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	if s.cancel != nil {
		s.cancel()
	}
	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.lastAccess = time.Now()
	s.mu.Unlock()

	col := NewCollection()
	done, err := s.fetcher.Run(runCtx, s.viewer, s.subs, col)
	if err != nil {
		cancel()
		return err
	}

	s.mu.Lock()
	if gen != s.gen {
		// Superseded while the first page was in flight.
		s.mu.Unlock()
		cancel()
		return nil
	}
	s.col = col
	select {
	case <-done:
		// Short first page: the whole fetch finished synchronously.
		s.loading = false
	default:
		s.loading = true
	}
	s.mu.Unlock()

	go func() {
		<-done
		s.mu.Lock()
		if s.gen == gen {
			s.loading = false
		}
		s.mu.Unlock()
	}()
	return nil
}

// Snapshot returns the currently displayed leads and whether a background
// continuation is still filling the collection.
func (s *Session) Snapshot() ([]leadview.Lead, bool) {
	s.mu.Lock()
	s.lastAccess = time.Now()
	col := s.col
	loading := s.loading
	s.mu.Unlock()
	return col.Snapshot(), loading
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastAccess)
}

func (s *Session) stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.mu.Unlock()
}

// Registry keeps at most one Session per viewer id. Sessions idle past
// the TTL are dropped on the next lookup or reload sweep; a viewer whose
// role or name changed gets a fresh session, which is how an auth change
// invalidates the cached subordinate set.
type Registry struct {
	fetcher   *Fetcher
	hierarchy leadview.Hierarchy
	log       *zap.SugaredLogger
	ttl       time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry(fetcher *Fetcher, hierarchy leadview.Hierarchy, log *zap.SugaredLogger, ttl time.Duration) *Registry {
	return &Registry{
		fetcher:   fetcher,
		hierarchy: hierarchy,
		log:       log,
		ttl:       ttl,
		sessions:  make(map[string]*Session),
	}
}

// Session returns the viewer's live session, starting one (subordinate
// lookup plus initial fetch) if none exists.
func (r *Registry) Session(ctx context.Context, viewer leadview.Viewer) (*Session, error) {
	r.mu.Lock()
	r.pruneLocked(time.Now())
	if s, ok := r.sessions[viewer.ID]; ok && s.viewer == viewer {
		r.mu.Unlock()
		return s, nil
	}
	r.mu.Unlock()

	subs, err := r.subordinates(ctx, viewer)
	if err != nil {
		return nil, err
	}

	s := newSession(viewer, subs, r.fetcher)
	if err := s.Reload(ctx); err != nil {
		return nil, err
	}

	r.mu.Lock()
	if prev, ok := r.sessions[viewer.ID]; ok && prev != s {
		prev.stop()
	}
	r.sessions[viewer.ID] = s
	r.mu.Unlock()
	return s, nil
}

// ReloadAll refetches every live session. Used as the realtime change
// trigger; a single session's failure is logged and does not stop the
// rest.
func (r *Registry) ReloadAll(ctx context.Context) {
	r.mu.Lock()
	r.pruneLocked(time.Now())
	live := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		live = append(live, s)
	}
	r.mu.Unlock()

	for _, s := range live {
		if err := s.Reload(ctx); err != nil {
			r.log.Warnw("feed: session reload failed, keeping last data",
				"viewer", s.viewer.ID, "err", err)
		}
	}
}

func (r *Registry) subordinates(ctx context.Context, viewer leadview.Viewer) (leadview.Subordinates, error) {
	// Only desk and manager predicates consult the hierarchy.
	if viewer.Role != leadview.RoleDesk && viewer.Role != leadview.RoleManager {
		return nil, nil
	}
	ids, err := r.hierarchy.Subordinates(ctx, viewer.ID)
	if err != nil {
		return nil, err
	}
	return leadview.NewSubordinates(ids), nil
}

func (r *Registry) pruneLocked(now time.Time) {
	for id, s := range r.sessions {
		if s.idleSince(now) > r.ttl {
			s.stop()
			delete(r.sessions, id)
		}
	}
}
