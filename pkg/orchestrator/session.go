package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/matzehuels/stackrank/pkg/ecosystem"
	"github.com/matzehuels/stackrank/pkg/stats"
)

// ErrUnknownPackage is returned when a request is not part of the session.
var ErrUnknownPackage = errors.New("package not in session")

// Scope selects the layers a refetch touches.
type Scope uint8

// Refetch scopes.
const (
	ScopeRegistry Scope = 1 << iota
	ScopeSourceHost
	ScopeAll = ScopeRegistry | ScopeSourceHost
)

// Has reports whether s includes every layer of other.
func (s Scope) Has(other Scope) bool { return s&other == other && other != 0 }

func (s Scope) String() string {
	switch s {
	case ScopeRegistry:
		return "registry"
	case ScopeSourceHost:
		return "source-host"
	case ScopeAll:
		return "all"
	default:
		return "none"
	}
}

// ParseScope parses "registry", "github" (or "source-host") and "all".
func ParseScope(s string) (Scope, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "registry":
		return ScopeRegistry, nil
	case "github", "source-host", "sourcehost":
		return ScopeSourceHost, nil
	case "all", "":
		return ScopeAll, nil
	default:
		return 0, fmt.Errorf("unknown refresh scope %q (available: registry, github, all)", s)
	}
}

// SessionOption configures a [Session].
type SessionOption func(*Session)

// WithRefresh forces the first fetch of every package to bypass the cache
// for the layers in scope.
func WithRefresh(scope Scope) SessionOption {
	return func(s *Session) { s.refresh = scope }
}

// Session is one comparison: an ordered request list and its fetch state.
// All methods are safe for concurrent use.
type Session struct {
	ID      string
	Created time.Time

	o       *Orchestrator
	ctx     context.Context
	cancel  context.CancelFunc
	refresh Scope

	mu       sync.Mutex
	order    []ecosystem.Request
	entries  map[string]*entry
	inflight int
	changed  chan struct{}
	updated  time.Time
}

type entry struct {
	req ecosystem.Request

	registry    *stats.PackageStats
	registryErr error
	registrySeq uint64
	registryRun bool
	registryRef bool

	host    *stats.GitHubStats
	hostErr error
	hostSeq uint64
	hostRun bool
	hostRef bool
}

// NewSession starts an empty session. Fetches outlive ctx's cancellation
// and stop only when the session is closed.
func (o *Orchestrator) NewSession(ctx context.Context, opts ...SessionOption) *Session {
	fetchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s := &Session{
		ID:      uuid.NewString(),
		Created: time.Now(),
		o:       o,
		ctx:     fetchCtx,
		cancel:  cancel,
		entries: make(map[string]*entry),
		changed: make(chan struct{}),
	}
	s.updated = s.Created
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close stops in-flight fetches. The session keeps its last state.
func (s *Session) Close() { s.cancel() }

// SetPackages replaces the request list. Known packages keep their state,
// new ones are fetched and dropped ones are forgotten; results still in
// flight for dropped packages are ignored. Duplicate keys are collapsed.
func (s *Session) SetPackages(reqs []ecosystem.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool, len(reqs))
	order := make([]ecosystem.Request, 0, len(reqs))
	for _, r := range reqs {
		k := r.Key()
		if seen[k] {
			continue
		}
		seen[k] = true
		order = append(order, r)
		if _, ok := s.entries[k]; !ok {
			e := &entry{req: r}
			s.entries[k] = e
			s.startRegistry(e, s.refresh.Has(ScopeRegistry), s.refresh.Has(ScopeSourceHost), false)
		}
	}
	for k := range s.entries {
		if !seen[k] {
			delete(s.entries, k)
		}
	}
	s.order = order
	s.notify()
}

// Add appends req unless it is already present.
func (s *Session) Add(req ecosystem.Request) {
	s.SetPackages(append(s.Requests(), req))
}

// Remove drops req and reports whether it was present.
func (s *Session) Remove(req ecosystem.Request) bool {
	s.mu.Lock()
	_, ok := s.entries[req.Key()]
	s.mu.Unlock()
	if !ok {
		return false
	}
	reqs := s.Requests()
	kept := reqs[:0]
	for _, r := range reqs {
		if r.Key() != req.Key() {
			kept = append(kept, r)
		}
	}
	s.SetPackages(kept)
	return true
}

// Requests returns the current request list.
func (s *Session) Requests() []ecosystem.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ecosystem.Request(nil), s.order...)
}

// Refetch invalidates the layers of req in scope and fetches them again.
// Other packages are not touched. A registry refetch is followed by a
// source-host fetch, forced as well when scope includes the source host.
func (s *Session) Refetch(ctx context.Context, req ecosystem.Request, scope Scope) error {
	s.mu.Lock()
	_, ok := s.entries[req.Key()]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPackage, req.Key())
	}

	if err := s.o.Invalidate(ctx, req, scope); err != nil {
		s.o.logger.Warn("cache invalidation failed", "package", req.Key(), "error", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[req.Key()]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPackage, req.Key())
	}
	switch {
	case scope.Has(ScopeRegistry):
		s.startRegistry(e, true, scope.Has(ScopeSourceHost), true)
	case scope.Has(ScopeSourceHost):
		if e.registry != nil {
			s.startHost(e, true, true)
		}
	}
	s.notify()
	return nil
}

// RefetchAll refetches every package in the session.
func (s *Session) RefetchAll(ctx context.Context, scope Scope) error {
	var errs []error
	for _, r := range s.Requests() {
		if err := s.Refetch(ctx, r, scope); err != nil && !errors.Is(err, ErrUnknownPackage) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PruneNotFound removes every package whose registry fetch failed with a
// not-found error and returns the removed requests.
func (s *Session) PruneNotFound() []ecosystem.Request {
	var removed, kept []ecosystem.Request
	s.mu.Lock()
	for _, r := range s.order {
		if e := s.entries[r.Key()]; e != nil && !e.registryRun && IsNotFound(e.registryErr) {
			removed = append(removed, r)
			continue
		}
		kept = append(kept, r)
	}
	s.mu.Unlock()
	if len(removed) > 0 {
		s.SetPackages(kept)
	}
	return removed
}

// Wait blocks until no fetch is in flight or ctx is done.
func (s *Session) Wait(ctx context.Context) error {
	for {
		s.mu.Lock()
		if s.inflight == 0 {
			s.mu.Unlock()
			return nil
		}
		ch := s.changed
		s.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Changed returns a channel that is closed on the next state change.
func (s *Session) Changed() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.changed
}

// Updated returns the time of the last state change.
func (s *Session) Updated() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updated
}

// startRegistry launches the registry fetch for e. Callers hold s.mu.
func (s *Session) startRegistry(e *entry, force, forceHost, refreshing bool) {
	e.registrySeq++
	seq := e.registrySeq
	e.registryRun = true
	e.registryRef = refreshing
	if refreshing && forceHost {
		e.hostRef = true
	}
	s.inflight++

	go func() {
		st, err := s.o.FetchRegistry(s.ctx, e.req, force)

		s.mu.Lock()
		defer s.mu.Unlock()
		defer s.finish()
		if s.entries[e.req.Key()] != e || seq != e.registrySeq {
			return
		}
		e.registryRun, e.registryRef = false, false
		if err != nil {
			e.registryErr = err
			if !e.hostRun {
				e.hostRef = false
			}
			return
		}
		e.registry, e.registryErr = st, nil
		s.startHost(e, forceHost, e.hostRef)
	}()
}

// startHost launches the source-host fetch for e when its registry record
// names a supported repository. Callers hold s.mu.
func (s *Session) startHost(e *entry, force, refreshing bool) {
	repo := e.registry.Repository
	if !s.o.HasSourceHost() || repo == "" || !ecosystem.SupportsRepository(repo) {
		e.hostRef = false
		return
	}
	e.hostSeq++
	seq := e.hostSeq
	e.hostRun = true
	e.hostRef = refreshing
	s.inflight++

	go func() {
		gh, err := s.o.FetchSourceHost(s.ctx, e.req, repo, force)

		s.mu.Lock()
		defer s.mu.Unlock()
		defer s.finish()
		if s.entries[e.req.Key()] != e || seq != e.hostSeq {
			return
		}
		e.hostRun, e.hostRef = false, false
		if err != nil {
			e.hostErr = err
			return
		}
		e.host, e.hostErr = gh, nil
	}()
}

// finish marks one fetch as done. Callers hold s.mu.
func (s *Session) finish() {
	s.inflight--
	s.notify()
}

// notify wakes waiters. Callers hold s.mu.
func (s *Session) notify() {
	s.updated = time.Now()
	close(s.changed)
	s.changed = make(chan struct{})
}
