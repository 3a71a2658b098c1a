package server

import (
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/matzehuels/stackrank/pkg/orchestrator"
)

// sessionRegistry holds live sessions. Entries expire after ttl without
// access, which closes the session.
type sessionRegistry struct {
	c   *gocache.Cache
	ttl time.Duration
}

func newSessionRegistry(ttl time.Duration) *sessionRegistry {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	c := gocache.New(ttl, ttl/2)
	c.OnEvicted(func(_ string, v any) {
		if s, ok := v.(*orchestrator.Session); ok {
			s.Close()
		}
	})
	return &sessionRegistry{c: c, ttl: ttl}
}

func (r *sessionRegistry) put(s *orchestrator.Session) {
	r.c.Set(s.ID, s, r.ttl)
}

// get returns the session and extends its lifetime.
func (r *sessionRegistry) get(id string) (*orchestrator.Session, bool) {
	v, ok := r.c.Get(id)
	if !ok {
		return nil, false
	}
	s := v.(*orchestrator.Session)
	r.c.Set(id, s, r.ttl)
	return s, true
}

func (r *sessionRegistry) remove(id string) bool {
	if _, ok := r.c.Get(id); !ok {
		return false
	}
	r.c.Delete(id)
	return true
}

func (r *sessionRegistry) len() int { return r.c.ItemCount() }

func (r *sessionRegistry) closeAll() {
	for id := range r.c.Items() {
		r.c.Delete(id)
	}
}
