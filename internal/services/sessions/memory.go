package sessions

import (
	"context"
	"sync"
	"time"

	"travesia_payments/internal/services/allocation"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*allocation.Session
	ttl      time.Duration
	now      func() time.Time
	log      *logrus.Logger
}

func NewMemoryStore(ttl time.Duration, log *logrus.Logger) *MemoryStore {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &MemoryStore{
		sessions: make(map[string]*allocation.Session),
		ttl:      ttl,
		now:      time.Now,
		log:      log,
	}
}

func (m *MemoryStore) Create(_ context.Context, s *allocation.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[s.ID]; ok {
		return ErrExists
	}
	c := s.Clone()
	c.UpdatedAt = m.now()
	m.sessions[s.ID] = c
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*allocation.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.live(id)
	if !ok {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

func (m *MemoryStore) Update(_ context.Context, id string, fn func(*allocation.Session) error) (*allocation.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.live(id)
	if !ok {
		return nil, ErrNotFound
	}

	work := s.Clone()
	if err := fn(work); err != nil {
		return nil, err
	}
	work.UpdatedAt = m.now()
	m.sessions[id] = work
	return work.Clone(), nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(m.sessions, id)
	return nil
}

// Sweep drops sessions idle for longer than the TTL and reports how many went.
func (m *MemoryStore) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for id, s := range m.sessions {
		if m.expired(s) {
			delete(m.sessions, id)
			n++
		}
	}
	return n
}

func (m *MemoryStore) StartSweeper(spec string) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		if n := m.Sweep(); n > 0 {
			m.log.Infof("[SESSIONS][SWEEP] expired=%d", n)
		}
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	return c, nil
}

func (m *MemoryStore) live(id string) (*allocation.Session, bool) {
	s, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	if m.expired(s) {
		delete(m.sessions, id)
		return nil, false
	}
	return s, true
}

func (m *MemoryStore) expired(s *allocation.Session) bool {
	return m.ttl > 0 && m.now().Sub(s.UpdatedAt) > m.ttl
}
