package app_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"quiz-maker-service/internal/app"
	"quiz-maker-service/internal/domain"
	"quiz-maker-service/internal/infra/memory"
)

func TestOpenGetClose(t *testing.T) {
	service, _ := newTestService()

	session := service.Open(context.Background())
	if session.ID() == "" {
		t.Fatalf("expected a session id")
	}
	got, err := service.Get(session.ID())
	if err != nil || got != session {
		t.Fatalf("get session: %v", err)
	}

	updates, cancel := session.Subscribe()
	defer cancel()
	<-updates

	service.Close(session.ID())
	if _, err := service.Get(session.ID()); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected session not found after close, got %v", err)
	}
	if _, ok := <-updates; ok {
		t.Fatalf("expected subscription closed with the session")
	}
}

func TestShowResultsRecordsCompletedQuizOnce(t *testing.T) {
	ctx := context.Background()
	service, results := newTestService()
	session := service.Open(ctx)
	session.InitializeCategories(ctx)

	if _, err := session.CreateQuizLines(ctx, generalKnowledgeEasy()); err != nil {
		t.Fatalf("create quiz lines: %v", err)
	}
	lines := session.QuizLines()
	for i, line := range lines {
		answer := line.CorrectAnswer
		if i == 0 {
			answer = "wrong a"
		}
		session.PickAnswer(domain.Answer{LineID: line.ID, Answer: answer})
	}

	snap, err := service.ShowResults(ctx, session.ID())
	if err != nil {
		t.Fatalf("show results: %v", err)
	}
	if !snap.ResultsShown {
		t.Fatalf("expected results shown")
	}
	if _, err := service.ShowResults(ctx, session.ID()); err != nil {
		t.Fatalf("show results again: %v", err)
	}

	recent, err := service.RecentResults(ctx, 10)
	if err != nil {
		t.Fatalf("recent results: %v", err)
	}
	if len(recent) != 1 {
		t.Fatalf("expected exactly one recorded result, got %d", len(recent))
	}
	got := recent[0]
	if got.SessionID != session.ID() || got.Score != 4 || got.Total != 5 || got.Band != domain.BandCorrect {
		t.Fatalf("unexpected result: %+v", got)
	}
	if got.Category != "General Knowledge" || got.Difficulty != domain.DifficultyEasy {
		t.Fatalf("unexpected result config: %+v", got)
	}
	if n, _ := results.Recent(ctx, 10); len(n) != 1 {
		t.Fatalf("store should hold one result")
	}
}

func TestShowResultsSkipsIncompleteQuiz(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()
	session := service.Open(ctx)
	session.InitializeCategories(ctx)
	if _, err := session.CreateQuizLines(ctx, generalKnowledgeEasy()); err != nil {
		t.Fatalf("create quiz lines: %v", err)
	}

	if _, err := service.ShowResults(ctx, session.ID()); err != nil {
		t.Fatalf("show results: %v", err)
	}
	recent, _ := service.RecentResults(ctx, 10)
	if len(recent) != 0 {
		t.Fatalf("incomplete quiz must not be recorded, got %+v", recent)
	}
}

func TestShowResultsUnknownSession(t *testing.T) {
	service, _ := newTestService()
	if _, err := service.ShowResults(context.Background(), "missing"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected session not found, got %v", err)
	}
}

func TestTouchRefreshesRepositoriesThatExpire(t *testing.T) {
	store := &touchingStore{SessionStore: memory.NewSessionStore()}
	service := app.NewQuizService(store, &fakeGateway{categories: sampleCategories()}, nil)
	session := service.Open(context.Background())

	service.Touch(context.Background(), session.ID())
	service.Touch(context.Background(), session.ID())
	if fmt.Sprint(store.touched) != fmt.Sprint([]string{session.ID(), session.ID()}) {
		t.Fatalf("expected two refreshes of %s, got %v", session.ID(), store.touched)
	}

	// repositories without expiring markers are left alone
	plain, _ := newTestService()
	plain.Touch(context.Background(), plain.Open(context.Background()).ID())
}

type touchingStore struct {
	*memory.SessionStore
	mu      sync.Mutex
	touched []string
}

func (s *touchingStore) Touch(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touched = append(s.touched, sessionID)
	return nil
}

func newTestService() (*app.QuizService, *memory.ResultStore) {
	gateway := &fakeGateway{
		categories: sampleCategories(),
		batches:    [][]domain.Question{makeQuestions("initial", 5)},
	}
	results := memory.NewResultStore(100)
	service := app.NewQuizService(memory.NewSessionStore(), gateway, results)
	return service, results
}
