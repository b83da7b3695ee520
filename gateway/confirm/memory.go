package confirm

import (
	"context"
	"sync"
	"time"
)

var _ TokenStore = (*MemoryTokenStore)(nil)

// MemoryTokenStore keeps confirmation tokens in process memory. Every token
// is written and consumed under one mutex, which gives the single-writer
// discipline the gate needs to prevent double-spend.
type MemoryTokenStore struct {
	mu     sync.Mutex
	tokens map[string]Record
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{
		tokens: make(map[string]Record),
	}
}

func (s *MemoryTokenStore) Put(_ context.Context, token string, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purgeExpiredLocked(time.Now())
	s.tokens[token] = rec
	return nil
}

// Consume removes and returns the token in one critical section.
func (s *MemoryTokenStore) Consume(_ context.Context, token string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.tokens[token]
	if !ok {
		return Record{}, ErrTokenNotFound
	}
	delete(s.tokens, token)
	return rec, nil
}

// Len reports the number of live tokens; used by tests and status checks.
func (s *MemoryTokenStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tokens)
}

func (s *MemoryTokenStore) purgeExpiredLocked(now time.Time) {
	for token, rec := range s.tokens {
		if now.After(rec.ExpiresAt) {
			delete(s.tokens, token)
		}
	}
}
