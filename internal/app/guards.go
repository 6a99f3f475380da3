package app

import "quiz-maker-service/internal/domain"

// View names a screen of the quiz UI.
type View string

const (
	ViewHome    View = "home"
	ViewQuiz    View = "quiz"
	ViewResults View = "results"
)

// CanEnterQuiz reports whether a quiz has lines to display.
func CanEnterQuiz(s domain.Snapshot) bool {
	return len(s.QuizLines) > 0
}

// CanEnterResults reports whether every line has been answered.
func CanEnterResults(s domain.Snapshot) bool {
	return s.IsComplete
}

// ResolveView returns the view to display for a navigation request; failed guards
// and unknown views redirect home.
func ResolveView(requested View, s domain.Snapshot) View {
	switch requested {
	case ViewQuiz:
		if CanEnterQuiz(s) {
			return ViewQuiz
		}
	case ViewResults:
		if CanEnterResults(s) {
			return ViewResults
		}
	}
	return ViewHome
}
