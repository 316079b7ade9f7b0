// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package engine

import (
	"sync"
	"time"
)

// ResultStore keeps recent answers in memory, keyed by request id. It holds
// at most maxAnswers entries and forgets entries older than ttl; a zero ttl
// keeps them until they are trimmed.
type ResultStore struct {
	mu         sync.RWMutex
	answers    []*Answer
	byID       map[string]*Answer
	maxAnswers int
	ttl        time.Duration
	now        func() time.Time
}

// NewResultStore creates a store holding at most maxAnswers answers.
func NewResultStore(maxAnswers int, ttl time.Duration) *ResultStore {
	if maxAnswers <= 0 {
		maxAnswers = 1
	}
	return &ResultStore{
		answers:    make([]*Answer, 0, maxAnswers),
		byID:       make(map[string]*Answer),
		maxAnswers: maxAnswers,
		ttl:        ttl,
		now:        time.Now,
	}
}

// Put stores ans, replacing an earlier answer with the same request id.
func (s *ResultStore) Put(ans *Answer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[ans.RequestID]; exists {
		s.removeLocked(ans.RequestID)
	}
	s.answers = append(s.answers, ans)
	s.byID[ans.RequestID] = ans

	s.expireLocked()
	if len(s.answers) > s.maxAnswers {
		s.trimOldestLocked(len(s.answers) - s.maxAnswers)
	}
}

// Get returns the answer for a request id.
func (s *ResultStore) Get(id string) (*Answer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ans, ok := s.byID[id]
	if !ok || s.expired(ans) {
		return nil, false
	}
	return ans, true
}

// Recent returns answers created within d, oldest first.
func (s *ResultStore) Recent(d time.Duration) []*Answer {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := s.now().Add(-d)
	result := make([]*Answer, 0)
	for _, ans := range s.answers {
		if ans.CreatedAt.After(cutoff) && !s.expired(ans) {
			result = append(result, ans)
		}
	}
	return result
}

// Len returns the number of stored answers, expired ones included.
func (s *ResultStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.answers)
}

func (s *ResultStore) expired(ans *Answer) bool {
	return s.ttl > 0 && ans.CreatedAt.Before(s.now().Add(-s.ttl))
}

func (s *ResultStore) expireLocked() {
	if s.ttl <= 0 {
		return
	}
	kept := s.answers[:0]
	for _, ans := range s.answers {
		if s.expired(ans) {
			delete(s.byID, ans.RequestID)
			continue
		}
		kept = append(kept, ans)
	}
	s.answers = kept
}

func (s *ResultStore) trimOldestLocked(n int) {
	for _, ans := range s.answers[:n] {
		delete(s.byID, ans.RequestID)
	}
	s.answers = append(s.answers[:0], s.answers[n:]...)
}

func (s *ResultStore) removeLocked(id string) {
	for i, ans := range s.answers {
		if ans.RequestID == id {
			s.answers = append(s.answers[:i], s.answers[i+1:]...)
			break
		}
	}
	delete(s.byID, id)
}
