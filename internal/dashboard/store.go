package dashboard

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// Store keeps one Dashboard per browser session in memory. Sessions idle
// longer than the TTL are dropped.
type Store struct {
	ttl      time.Duration
	sessions *cache.Cache
	factory  func() *Dashboard

	mu sync.Mutex
}

func NewStore(ttl time.Duration, factory func() *Dashboard) *Store {
	cleanup := ttl / 2
	if cleanup < time.Minute {
		cleanup = time.Minute
	}
	return &Store{
		ttl:      ttl,
		sessions: cache.New(ttl, cleanup),
		factory:  factory,
	}
}

func (s *Store) Get(id string) (*Dashboard, bool) {
	if id == "" {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.sessions.Get(id)
	if !ok {
		return nil, false
	}
	d := v.(*Dashboard)
	// re-set to slide the idle expiry
	s.sessions.Set(id, d, s.ttl)
	return d, true
}

// Resolve returns the dashboard for id, creating a fresh session when id is
// unknown or expired. created reports whether the caller must hand out a new id.
func (s *Store) Resolve(id string) (sessionID string, d *Dashboard, created bool) {
	if d, ok := s.Get(id); ok {
		return id, d, false
	}
	sessionID = uuid.NewString()
	d = s.factory()
	s.mu.Lock()
	s.sessions.Set(sessionID, d, s.ttl)
	s.mu.Unlock()
	return sessionID, d, true
}

func (s *Store) Len() int {
	return s.sessions.ItemCount()
}

// Wait drains in-flight submissions of every live session.
func (s *Store) Wait(ctx context.Context) error {
	for _, item := range s.sessions.Items() {
		if err := item.Object.(*Dashboard).Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}
