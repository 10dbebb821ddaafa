// Package sessionlist maintains the locally known set of sessions. The list
// is loosely consistent with the remote one: local mutations (create, pause,
// delete) are applied optimistically and reconciled by the next Refresh.
package sessionlist

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/therealashik/julesctl/internal/models"
)

// Lister fetches the full remote session list.
type Lister interface {
	ListAllSessions(ctx context.Context) ([]models.Session, error)
}

// Cache is a concurrency-safe in-memory session list.
type Cache struct {
	mu       sync.RWMutex
	sessions []models.Session
	now      func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock overrides the time source used for derived stats.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

func New(opts ...Option) *Cache {
	c := &Cache{now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Refresh replaces the whole list with a fresh remote fetch. Ordering is
// whatever the server returned; grouping happens at read time in Sorted.
func (c *Cache) Refresh(ctx context.Context, lister Lister) error {
	sessions, err := lister.ListAllSessions(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.sessions = sessions
	c.mu.Unlock()
	return nil
}

// Add prepends a just-created session before the next Refresh confirms it.
// An existing entry with the same name is replaced in place instead.
func (c *Cache) Add(s models.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.sessions {
		if c.sessions[i].Name == s.Name {
			c.sessions[i] = s
			return
		}
	}
	c.sessions = append([]models.Session{s}, c.sessions...)
}

// UpdateLocal applies an optimistic partial update to the named session,
// e.g. flipping state on pause/resume. The change holds until the next
// Refresh or poller update supersedes it. Returns false if the session is
// not in the list.
func (c *Cache) UpdateLocal(name string, apply func(*models.Session)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.sessions {
		if c.sessions[i].Name == name {
			apply(&c.sessions[i])
			return true
		}
	}
	return false
}

// Remove drops the named session immediately, without waiting for remote
// confirmation of the delete.
func (c *Cache) Remove(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.sessions {
		if c.sessions[i].Name == name {
			c.sessions = append(c.sessions[:i], c.sessions[i+1:]...)
			return true
		}
	}
	return false
}

// Get returns a copy of the named session.
func (c *Cache) Get(name string) (models.Session, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for i := range c.sessions {
		if c.sessions[i].Name == name {
			return c.sessions[i], true
		}
	}
	return models.Session{}, false
}

// All returns a copy of the list in its current order.
func (c *Cache) All() []models.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]models.Session(nil), c.sessions...)
}

// Len returns the number of cached sessions.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.sessions)
}

// CreatedLast24h counts sessions created within the last 24 hours. The
// window is computed against the clock at call time, never cached.
func (c *Cache) CreatedLast24h() int {
	cutoff := c.now().Add(-24 * time.Hour)
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for i := range c.sessions {
		t, err := time.Parse(time.RFC3339Nano, c.sessions[i].CreateTime)
		if err != nil {
			continue
		}
		if t.After(cutoff) {
			n++
		}
	}
	return n
}

// stateRank groups states for display: sessions the agent is working on
// first, then ones blocked on the user, then paused, then finished.
func stateRank(s models.SessionState) int {
	switch {
	case s.Processing():
		return 0
	case s == models.StateAwaitingPlanApproval || s == models.StateAwaitingUserFeedback:
		return 1
	case s == models.StatePaused:
		return 2
	default:
		return 3
	}
}

// Sorted returns the sessions grouped by state rank, most recently updated
// first within each group.
func (c *Cache) Sorted() []models.Session {
	return Sort(c.All())
}

// Sort orders sessions in place by state rank, then recency, and returns the
// slice.
func Sort(sessions []models.Session) []models.Session {
	sort.SliceStable(sessions, func(i, j int) bool {
		ri, rj := stateRank(sessions[i].State), stateRank(sessions[j].State)
		if ri != rj {
			return ri < rj
		}
		return recency(&sessions[i]) > recency(&sessions[j])
	})
	return sessions
}

func recency(s *models.Session) string {
	if s.UpdateTime != "" {
		return s.UpdateTime
	}
	return s.CreateTime
}
