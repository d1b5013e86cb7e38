package captcha

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNotFound is returned by Take when no live entry exists for a session.
var ErrNotFound = errors.New("captcha not found")

// Store keeps session id -> code digest entries with a time to live.
// Take must be an atomic get-and-delete: for one Set, at most one Take succeeds.
type Store interface {
	Set(ctx context.Context, sessionID string, digest []byte, ttl time.Duration) error
	Take(ctx context.Context, sessionID string) ([]byte, error)
	Close() error
}

type memoryEntry struct {
	digest    []byte
	expiresAt time.Time
}

// MemoryStore is an in-process Store guarded by a mutex.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
	stop    chan struct{}
	once    sync.Once
}

// NewMemoryStore creates a MemoryStore. A non-zero sweep interval starts a
// goroutine that drops expired entries until Close is called.
func NewMemoryStore(sweep time.Duration) *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	if sweep > 0 {
		go s.sweepLoop(sweep)
	}
	return s
}

func (s *MemoryStore) Set(_ context.Context, sessionID string, digest []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[sessionID] = memoryEntry{digest: digest, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *MemoryStore) Take(_ context.Context, sessionID string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	delete(s.entries, sessionID)
	if !s.now().Before(e.expiresAt) {
		return nil, ErrNotFound
	}
	return e.digest, nil
}

// Len returns the number of stored entries, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *MemoryStore) sweepLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stop:
			return
		}
	}
}

func (s *MemoryStore) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for id, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, id)
		}
	}
}

func (s *MemoryStore) Close() error {
	s.once.Do(func() { close(s.stop) })
	return nil
}
