package memory

import (
	"context"
	"sync"

	"quiz-maker-service/internal/domain"
)

// ResultStore keeps the most recent quiz results in a bounded ring; used when no
// database is configured.
type ResultStore struct {
	mu       sync.Mutex
	capacity int
	results  []domain.QuizResult
}

func NewResultStore(capacity int) *ResultStore {
	if capacity <= 0 {
		capacity = 100
	}
	return &ResultStore{capacity: capacity}
}

func (s *ResultStore) Record(_ context.Context, result domain.QuizResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, result)
	if over := len(s.results) - s.capacity; over > 0 {
		s.results = append([]domain.QuizResult(nil), s.results[over:]...)
	}
	return nil
}

// Recent returns up to limit results, newest first.
func (s *ResultStore) Recent(_ context.Context, limit int) ([]domain.QuizResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 || limit > len(s.results) {
		limit = len(s.results)
	}
	out := make([]domain.QuizResult, 0, limit)
	for i := len(s.results) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.results[i])
	}
	return out, nil
}
