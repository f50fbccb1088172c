package transient

import (
	"context"
	"errors"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// MemoryStore keeps transients in process. A janitor goroutine drops expired
// entries until Close is called.
type MemoryStore struct {
	mu      sync.RWMutex
	items   map[string]memoryEntry
	closed  chan struct{}
	closeMu sync.Once
	now     func() time.Time
}

// NewMemoryStore starts a memory store sweeping expired entries every
// interval. A non-positive interval uses 30s.
func NewMemoryStore(interval time.Duration) *MemoryStore {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	s := &MemoryStore{
		items:  make(map[string]memoryEntry),
		closed: make(chan struct{}),
		now:    time.Now,
	}
	go s.janitor(interval)
	return s
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Transient, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	s.mu.RLock()
	e, ok := s.items[id]
	s.mu.RUnlock()
	if !ok {
		return New(id), nil
	}
	if now := s.now(); e.expired(now) {
		// a Save may have replaced the entry since the read lock was released
		s.mu.Lock()
		e, ok = s.items[id]
		if ok && e.expired(now) {
			delete(s.items, id)
			ok = false
		}
		s.mu.Unlock()
		if !ok {
			return New(id), nil
		}
	}
	return decode(id, e.value)
}

func (s *MemoryStore) Save(ctx context.Context, t *Transient, ttl time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	if t == nil || t.ID == "" {
		return errors.New("transient: id is required")
	}
	data, err := t.encode()
	if err != nil {
		return err
	}
	var exp time.Time
	if ttl > 0 {
		exp = s.now().Add(ttl)
	}
	s.mu.Lock()
	s.items[t.ID] = memoryEntry{value: data, expiresAt: exp}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	s.mu.Lock()
	delete(s.items, id)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Close() error {
	s.closeMu.Do(func() {
		close(s.closed)
	})
	return nil
}

func (s *MemoryStore) janitor(interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-s.closed:
			return
		case <-t.C:
			s.sweep()
		}
	}
}

func (s *MemoryStore) sweep() {
	now := s.now()
	s.mu.Lock()
	for k, e := range s.items {
		if e.expired(now) {
			delete(s.items, k)
		}
	}
	s.mu.Unlock()
}
