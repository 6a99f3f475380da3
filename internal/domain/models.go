package domain

import "time"

// Category is a provider category split into its top-level name and optional subcategory.
type Category struct {
	ID          int     `json:"id"`
	Name        string  `json:"name"`
	Subcategory *string `json:"subcategory"`
}

// SubcategoryName returns the subcategory or "" when the category has none.
func (c Category) SubcategoryName() string {
	if c.Subcategory == nil {
		return ""
	}
	return *c.Subcategory
}

// Question is a multiple-choice question as served by the provider, already unescaped.
type Question struct {
	Category         string   `json:"category"`
	Type             string   `json:"type"`
	Difficulty       string   `json:"difficulty"`
	Question         string   `json:"question"`
	CorrectAnswer    string   `json:"correctAnswer"`
	IncorrectAnswers []string `json:"incorrectAnswers"`
}

// QuizConfig is what the user submits to start a quiz. An empty Subcategory means none was chosen.
type QuizConfig struct {
	Category    string `json:"category"`
	Subcategory string `json:"subcategory,omitempty"`
	Difficulty  string `json:"difficulty"`
}

// QuizLine is one question of a running quiz. UserAnswer is "" until the user picks one.
type QuizLine struct {
	ID            string   `json:"id"`
	Question      string   `json:"question"`
	Answers       []string `json:"answers"`
	CorrectAnswer string   `json:"correctAnswer"`
	UserAnswer    string   `json:"userAnswer"`
}

// Answered reports whether the user picked an answer for the line.
func (l QuizLine) Answered() bool {
	return l.UserAnswer != ""
}

// Answer is a pick reported by the UI. LineID takes precedence; Question is matched when LineID is empty.
type Answer struct {
	LineID   string `json:"lineId"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Snapshot is the published, read-only view of a quiz maker session.
type Snapshot struct {
	SessionID          string       `json:"sessionId"`
	Categories         []Category   `json:"categories"`
	CategoryNames      []string     `json:"categoryNames"`
	SelectedCategory   string       `json:"selectedCategory,omitempty"`
	Subcategories      []string     `json:"subcategories"`
	Difficulties       []Difficulty `json:"difficulties"`
	Config             *QuizConfig  `json:"config,omitempty"`
	QuizLines          []QuizLine   `json:"quizLines"`
	CategoriesLoading  bool         `json:"categoriesLoading"`
	LinesLoading       bool         `json:"linesLoading"`
	IsKo               bool         `json:"isKo"`
	IsComplete         bool         `json:"isComplete"`
	CanReplaceQuestion bool         `json:"canReplaceQuestion"`
	ResultsShown       bool         `json:"resultsShown"`
	UpdatedAt          time.Time    `json:"updatedAt"`
}

// IsLoading reports whether any fetch is in progress.
func (s Snapshot) IsLoading() bool {
	return s.CategoriesLoading || s.LinesLoading
}

// QuizResult is the recorded outcome of a completed quiz.
type QuizResult struct {
	SessionID   string    `json:"sessionId"`
	Category    string    `json:"category"`
	Subcategory string    `json:"subcategory,omitempty"`
	Difficulty  string    `json:"difficulty"`
	Score       int       `json:"score"`
	Total       int       `json:"total"`
	Band        Band      `json:"band"`
	FinishedAt  time.Time `json:"finishedAt"`
}
