package app

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"quiz-maker-service/internal/domain"
)

const (
	DefaultQuestionCount   = 5
	DefaultReplaceAttempts = 3
)

// Gateway is the trivia provider as seen by a session.
type Gateway interface {
	GetCategories(ctx context.Context) ([]domain.Category, error)
	GetQuestions(ctx context.Context, categoryID int, difficulty string, count int) ([]domain.Question, error)
}

// CacheInvalidator is implemented by gateways that keep a shared category cache.
type CacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

// SessionOption customizes a Session at construction.
type SessionOption func(*Session)

// WithRand sets the random source used to shuffle answers.
func WithRand(rnd *rand.Rand) SessionOption {
	return func(s *Session) { s.rnd = rnd }
}

// WithLineIDs sets the generator for quiz line identifiers.
func WithLineIDs(next func() string) SessionOption {
	return func(s *Session) { s.newLineID = next }
}

// WithReplaceAttempts bounds how many batches ChangeQuizLine fetches before giving up.
func WithReplaceAttempts(n int) SessionOption {
	return func(s *Session) {
		if n > 0 {
			s.replaceAttempts = n
		}
	}
}

// WithQuestionCount sets how many questions a quiz holds.
func WithQuestionCount(n int) SessionOption {
	return func(s *Session) {
		if n > 0 {
			s.questionCount = n
		}
	}
}

// WithClock is used by tests for deterministic timestamps.
func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) { s.now = now }
}

type sessionState struct {
	categories        []domain.Category
	selectedCategory  string
	config            *domain.QuizConfig
	lines             []domain.QuizLine
	categoriesLoading bool
	linesLoading      bool
	ko                bool
	complete          bool
	canReplace        bool
	resultsShown      bool
	updatedAt         time.Time
}

func initialState() sessionState {
	return sessionState{canReplace: true}
}

// Session is the quiz maker state machine for one user. Network calls run outside
// the lock; their results are applied only if the quiz generation did not change meanwhile.
type Session struct {
	id              string
	gateway         Gateway
	now             func() time.Time
	newLineID       func() string
	rnd             *rand.Rand
	questionCount   int
	replaceAttempts int
	categoriesSF    singleflight.Group

	mu          sync.Mutex
	state       sessionState
	generation  uint64
	nextFetch   uint64
	inflight    map[uint64]context.CancelFunc
	subscribers map[chan domain.Snapshot]struct{}
}

func NewSession(id string, gateway Gateway, opts ...SessionOption) *Session {
	s := &Session{
		id:              id,
		gateway:         gateway,
		now:             time.Now,
		newLineID:       uuid.NewString,
		rnd:             rand.New(rand.NewSource(time.Now().UnixNano())),
		questionCount:   DefaultQuestionCount,
		replaceAttempts: DefaultReplaceAttempts,
		state:           initialState(),
		inflight:        make(map[uint64]context.CancelFunc),
		subscribers:     make(map[chan domain.Snapshot]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.state.updatedAt = s.now()
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// InitializeCategories loads and caches the categories once. Failures flip the KO flag
// and are logged; they are never returned.
func (s *Session) InitializeCategories(ctx context.Context) domain.Snapshot {
	s.mu.Lock()
	if len(s.state.categories) > 0 {
		defer s.mu.Unlock()
		return s.snapshotLocked()
	}
	s.state.categoriesLoading = true
	s.broadcastLocked()
	s.mu.Unlock()

	result, err, _ := s.categoriesSF.Do("categories", func() (interface{}, error) {
		return s.gateway.GetCategories(ctx)
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.categoriesLoading = false
	if err != nil {
		s.state.ko = true
		log.Printf("session %s: error retrieving categories: %v", s.id, err)
		return s.broadcastLocked()
	}
	if len(s.state.categories) == 0 {
		s.state.categories = append([]domain.Category(nil), result.([]domain.Category)...)
	}
	return s.broadcastLocked()
}

// SelectCategory records the chosen top-level category; "" clears it.
func (s *Session) SelectCategory(name string) domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.selectedCategory = name
	return s.broadcastLocked()
}

// CategoryNames returns the distinct top-level names in first-seen order.
func (s *Session) CategoryNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.categoryNamesLocked()
}

func (s *Session) categoryNamesLocked() []string {
	seen := make(map[string]struct{}, len(s.state.categories))
	names := make([]string, 0, len(s.state.categories))
	for _, c := range s.state.categories {
		if _, ok := seen[c.Name]; ok {
			continue
		}
		seen[c.Name] = struct{}{}
		names = append(names, c.Name)
	}
	return names
}

// Subcategories returns the distinct subcategories of the selected category.
func (s *Session) Subcategories() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subcategoriesLocked(s.state.selectedCategory)
}

func (s *Session) subcategoriesLocked(name string) []string {
	seen := make(map[string]struct{})
	subs := make([]string, 0)
	for _, c := range s.state.categories {
		sub := c.SubcategoryName()
		if c.Name != name || sub == "" {
			continue
		}
		if _, ok := seen[sub]; ok {
			continue
		}
		seen[sub] = struct{}{}
		subs = append(subs, sub)
	}
	return subs
}

// ValidateConfig checks a submitted config against the cached categories and difficulties.
func (s *Session) ValidateConfig(cfg domain.QuizConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.validateLocked(cfg)
	return err
}

func (s *Session) validateLocked(cfg domain.QuizConfig) (domain.Category, error) {
	category, err := s.resolveCategoryLocked(cfg)
	if err != nil {
		return domain.Category{}, err
	}
	if !domain.IsDifficulty(cfg.Difficulty) {
		return domain.Category{}, fmt.Errorf("%w: unknown difficulty %q", domain.ErrInvalidArgument, cfg.Difficulty)
	}
	return category, nil
}

// CreateQuizLines builds a new quiz from cfg. A nil cfg yields no lines and touches nothing.
// Provider failures set the KO flag and yield no lines with a nil error.
func (s *Session) CreateQuizLines(ctx context.Context, cfg *domain.QuizConfig) ([]domain.QuizLine, error) {
	if cfg == nil {
		return []domain.QuizLine{}, nil
	}

	s.mu.Lock()
	category, err := s.validateLocked(*cfg)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	// A newer quiz request supersedes any fetch still running for the previous one.
	s.invalidateLocked()
	s.state.linesLoading = true
	fetch := s.beginFetchLocked(ctx)
	s.broadcastLocked()
	s.mu.Unlock()

	questions, err := s.gateway.GetQuestions(fetch.ctx, category.ID, cfg.Difficulty, s.questionCount)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.endFetchLocked(fetch)
	if fetch.generation != s.generation {
		return nil, nil
	}
	s.state.linesLoading = false
	if err != nil {
		s.state.ko = true
		log.Printf("session %s: error creating quiz lines: %v", s.id, err)
		s.broadcastLocked()
		return nil, nil
	}

	lines := make([]domain.QuizLine, 0, len(questions))
	for _, q := range questions {
		lines = append(lines, s.newLineLocked(q))
	}
	retained := *cfg
	s.state.config = &retained
	s.state.lines = lines
	s.state.complete = false
	s.state.resultsShown = false
	s.broadcastLocked()
	return cloneLines(lines), nil
}

// PickAnswer records the user's answer on the matching line and recomputes completion.
// Unknown lines are ignored.
func (s *Session) PickAnswer(answer domain.Answer) domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexOfLocked(answer.LineID, answer.Question)
	if idx < 0 {
		return s.snapshotLocked()
	}
	s.state.lines[idx].UserAnswer = answer.Answer
	s.state.complete = allAnswered(s.state.lines)
	return s.broadcastLocked()
}

// ChangeQuizLine swaps line for a question not yet in the quiz. It can succeed once per quiz.
// ok is false with a nil error when the replacement is not allowed or the provider failed;
// ErrNoNewQuestionFound is returned once every attempt came back with known questions only.
func (s *Session) ChangeQuizLine(ctx context.Context, line domain.QuizLine) (domain.QuizLine, bool, error) {
	s.mu.Lock()
	cfg := s.state.config
	if cfg == nil || cfg.Category == "" || cfg.Difficulty == "" || len(s.state.categories) == 0 ||
		!s.state.canReplace || s.indexOfLocked(line.ID, line.Question) < 0 {
		s.mu.Unlock()
		return domain.QuizLine{}, false, nil
	}
	category, err := s.resolveCategoryLocked(*cfg)
	if err != nil {
		s.mu.Unlock()
		return domain.QuizLine{}, false, err
	}
	difficulty := cfg.Difficulty
	fetch := s.beginFetchLocked(ctx)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.endFetchLocked(fetch)
		s.mu.Unlock()
	}()

	for attempt := 1; attempt <= s.replaceAttempts; attempt++ {
		questions, err := s.gateway.GetQuestions(fetch.ctx, category.ID, difficulty, s.questionCount)

		s.mu.Lock()
		if fetch.generation != s.generation || !s.state.canReplace {
			s.mu.Unlock()
			return domain.QuizLine{}, false, nil
		}
		if err != nil {
			s.state.ko = true
			log.Printf("session %s: error changing quiz line: %v", s.id, err)
			s.broadcastLocked()
			s.mu.Unlock()
			return domain.QuizLine{}, false, nil
		}
		if question, ok := s.firstNewQuestionLocked(questions); ok {
			idx := s.indexOfLocked(line.ID, line.Question)
			if idx < 0 {
				s.mu.Unlock()
				return domain.QuizLine{}, false, nil
			}
			replacement := s.newLineLocked(question)
			s.state.lines[idx] = replacement
			s.state.canReplace = false
			s.state.complete = false
			s.broadcastLocked()
			s.mu.Unlock()
			return cloneLine(replacement), true, nil
		}
		s.mu.Unlock()
		log.Printf("session %s: attempt %d/%d returned no new question", s.id, attempt, s.replaceAttempts)
	}

	return domain.QuizLine{}, false, fmt.Errorf("%w after %d attempts", domain.ErrNoNewQuestionFound, s.replaceAttempts)
}

// ShowResults marks the results as shown; line data is untouched.
func (s *Session) ShowResults() domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.resultsShown = true
	return s.broadcastLocked()
}

// CreateNewQuiz returns the session to its initial quiz state. Cached categories survive;
// in-flight quiz fetches are canceled and their late results discarded.
func (s *Session) CreateNewQuiz() domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidateLocked()
	categories := s.state.categories
	categoriesLoading := s.state.categoriesLoading
	ko := s.state.ko
	s.state = initialState()
	s.state.categories = categories
	s.state.categoriesLoading = categoriesLoading
	s.state.ko = ko
	return s.broadcastLocked()
}

// Reload clears the KO flag and restarts at the category loading step. The category list
// is fetched again, bypassing a shared cache that may hold a stale copy.
func (s *Session) Reload(ctx context.Context) domain.Snapshot {
	s.mu.Lock()
	s.state.ko = false
	s.state.categories = nil
	s.broadcastLocked()
	s.mu.Unlock()

	if cache, ok := s.gateway.(CacheInvalidator); ok {
		if err := cache.Invalidate(ctx); err != nil {
			log.Printf("session %s: failed to invalidate category cache: %v", s.id, err)
		}
	}
	return s.InitializeCategories(ctx)
}

// Snapshot returns the current published state.
func (s *Session) Snapshot() domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) Categories() []domain.Category { return s.Snapshot().Categories }

func (s *Session) Difficulties() []domain.Difficulty { return domain.Difficulties() }

func (s *Session) QuizLines() []domain.QuizLine { return s.Snapshot().QuizLines }

func (s *Session) IsLoading() bool { return s.Snapshot().IsLoading() }

func (s *Session) IsKo() bool { return s.Snapshot().IsKo }

func (s *Session) IsComplete() bool { return s.Snapshot().IsComplete }

func (s *Session) CanReplaceQuestion() bool { return s.Snapshot().CanReplaceQuestion }

// Config returns the config retained from the last quiz creation, if any.
func (s *Session) Config() *domain.QuizConfig { return s.Snapshot().Config }

// Subscribe returns a channel receiving a snapshot after every change, starting with the
// current one. The caller must invoke the returned cancel function to avoid leaks.
func (s *Session) Subscribe() (<-chan domain.Snapshot, func()) {
	ch := make(chan domain.Snapshot, 8)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	initial := s.snapshotLocked()
	s.mu.Unlock()

	ch <- initial

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

// Close cancels in-flight fetches and closes every subscription.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidateLocked()
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
}

type fetchHandle struct {
	id         uint64
	generation uint64
	ctx        context.Context
}

func (s *Session) beginFetchLocked(ctx context.Context) fetchHandle {
	ctx, cancel := context.WithCancel(ctx)
	s.nextFetch++
	s.inflight[s.nextFetch] = cancel
	return fetchHandle{id: s.nextFetch, generation: s.generation, ctx: ctx}
}

func (s *Session) endFetchLocked(fetch fetchHandle) {
	if cancel, ok := s.inflight[fetch.id]; ok {
		cancel()
		delete(s.inflight, fetch.id)
	}
}

// invalidateLocked starts a new quiz generation and cancels every fetch of the old one.
func (s *Session) invalidateLocked() {
	s.generation++
	for id, cancel := range s.inflight {
		cancel()
		delete(s.inflight, id)
	}
}

func (s *Session) resolveCategoryLocked(cfg domain.QuizConfig) (domain.Category, error) {
	if len(s.state.categories) == 0 {
		return domain.Category{}, domain.ErrConfiguration
	}
	for _, c := range s.state.categories {
		if c.Name != cfg.Category {
			continue
		}
		if cfg.Subcategory != "" && c.SubcategoryName() != cfg.Subcategory {
			continue
		}
		return c, nil
	}
	return domain.Category{}, fmt.Errorf("%w: %q / %q", domain.ErrCategoryNotFound, cfg.Category, cfg.Subcategory)
}

func (s *Session) indexOfLocked(lineID, question string) int {
	for i, line := range s.state.lines {
		if lineID != "" {
			if line.ID == lineID {
				return i
			}
			continue
		}
		if line.Question == question {
			return i
		}
	}
	return -1
}

func (s *Session) firstNewQuestionLocked(questions []domain.Question) (domain.Question, bool) {
	inPlay := make(map[string]struct{}, len(s.state.lines))
	for _, line := range s.state.lines {
		inPlay[line.Question] = struct{}{}
	}
	for _, q := range questions {
		if _, ok := inPlay[q.Question]; !ok {
			return q, true
		}
	}
	return domain.Question{}, false
}

func (s *Session) newLineLocked(q domain.Question) domain.QuizLine {
	answers := make([]string, 0, len(q.IncorrectAnswers)+1)
	answers = append(answers, q.IncorrectAnswers...)
	answers = append(answers, q.CorrectAnswer)
	s.rnd.Shuffle(len(answers), func(i, j int) {
		answers[i], answers[j] = answers[j], answers[i]
	})
	return domain.QuizLine{
		ID:            s.newLineID(),
		Question:      q.Question,
		Answers:       answers,
		CorrectAnswer: q.CorrectAnswer,
	}
}

// broadcastLocked stamps the change and pushes the new snapshot; every mutation goes through it.
func (s *Session) broadcastLocked() domain.Snapshot {
	s.state.updatedAt = s.now()
	snap := s.snapshotLocked()
	for ch := range s.subscribers {
		select {
		case ch <- snap:
		default:
			// slow reader: replace its stale snapshot with the latest one
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
	return snap
}

func (s *Session) snapshotLocked() domain.Snapshot {
	var cfg *domain.QuizConfig
	if s.state.config != nil {
		c := *s.state.config
		cfg = &c
	}
	return domain.Snapshot{
		SessionID:          s.id,
		Categories:         append([]domain.Category{}, s.state.categories...),
		CategoryNames:      s.categoryNamesLocked(),
		SelectedCategory:   s.state.selectedCategory,
		Subcategories:      s.subcategoriesLocked(s.state.selectedCategory),
		Difficulties:       domain.Difficulties(),
		Config:             cfg,
		QuizLines:          cloneLines(s.state.lines),
		CategoriesLoading:  s.state.categoriesLoading,
		LinesLoading:       s.state.linesLoading,
		IsKo:               s.state.ko,
		IsComplete:         s.state.complete,
		CanReplaceQuestion: s.state.canReplace,
		ResultsShown:       s.state.resultsShown,
		UpdatedAt:          s.state.updatedAt,
	}
}

func allAnswered(lines []domain.QuizLine) bool {
	if len(lines) == 0 {
		return false
	}
	for _, line := range lines {
		if !line.Answered() {
			return false
		}
	}
	return true
}

func cloneLine(line domain.QuizLine) domain.QuizLine {
	line.Answers = append([]string(nil), line.Answers...)
	return line
}

func cloneLines(lines []domain.QuizLine) []domain.QuizLine {
	out := make([]domain.QuizLine, 0, len(lines))
	for _, line := range lines {
		out = append(out, cloneLine(line))
	}
	return out
}
