package app

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"quiz-maker-service/internal/domain"
)

// SessionRepository abstracts where open quiz maker sessions are kept (in-memory, Redis, etc).
type SessionRepository interface {
	Put(session *Session)
	Get(sessionID string) (*Session, bool)
	Delete(sessionID string)
}

// SessionToucher is implemented by repositories whose liveness markers expire and
// must be refreshed while a session is in use.
type SessionToucher interface {
	Touch(ctx context.Context, sessionID string) error
}

// ResultStore persists the outcome of completed quizzes.
type ResultStore interface {
	Record(ctx context.Context, result domain.QuizResult) error
	Recent(ctx context.Context, limit int) ([]domain.QuizResult, error)
}

// QuizService hosts one Session per connected client.
type QuizService struct {
	sessions SessionRepository
	gateway  Gateway
	results  ResultStore
	opts     []SessionOption
	newID    func() string
	now      func() time.Time
}

// NewQuizService wires the service; results may be nil to skip recording.
func NewQuizService(sessions SessionRepository, gateway Gateway, results ResultStore, opts ...SessionOption) *QuizService {
	return &QuizService{
		sessions: sessions,
		gateway:  gateway,
		results:  results,
		opts:     opts,
		newID:    uuid.NewString,
		now:      time.Now,
	}
}

// Open starts a fresh session and registers it.
func (s *QuizService) Open(_ context.Context) *Session {
	session := NewSession(s.newID(), s.gateway, s.opts...)
	s.sessions.Put(session)
	return session
}

// Get returns an open session.
func (s *QuizService) Get(sessionID string) (*Session, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

// Touch refreshes the session's liveness marker when the repository keeps one.
func (s *QuizService) Touch(ctx context.Context, sessionID string) {
	toucher, ok := s.sessions.(SessionToucher)
	if !ok {
		return
	}
	if err := toucher.Touch(ctx, sessionID); err != nil {
		log.Printf("session %s: failed to refresh liveness: %v", sessionID, err)
	}
}

// Close tears a session down and forgets it.
func (s *QuizService) Close(sessionID string) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return
	}
	session.Close()
	s.sessions.Delete(sessionID)
}

// ShowResults flips the session to its results and records a completed quiz once.
// Recording failures are logged only.
func (s *QuizService) ShowResults(ctx context.Context, sessionID string) (domain.Snapshot, error) {
	session, err := s.Get(sessionID)
	if err != nil {
		return domain.Snapshot{}, err
	}

	before := session.Snapshot()
	snap := session.ShowResults()
	if s.results == nil || before.ResultsShown || !snap.IsComplete || snap.Config == nil {
		return snap, nil
	}

	score := domain.Score(snap.QuizLines)
	result := domain.QuizResult{
		SessionID:   sessionID,
		Category:    snap.Config.Category,
		Subcategory: snap.Config.Subcategory,
		Difficulty:  snap.Config.Difficulty,
		Score:       score,
		Total:       len(snap.QuizLines),
		Band:        domain.ScoreBand(score),
		FinishedAt:  s.now().UTC(),
	}
	if err := s.results.Record(ctx, result); err != nil {
		log.Printf("session %s: failed to record result: %v", sessionID, err)
	}
	return snap, nil
}

// RecentResults lists recorded results, newest first.
func (s *QuizService) RecentResults(ctx context.Context, limit int) ([]domain.QuizResult, error) {
	if s.results == nil {
		return nil, nil
	}
	return s.results.Recent(ctx, limit)
}
