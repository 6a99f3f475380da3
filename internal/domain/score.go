package domain

import "fmt"

// Band buckets a score for the results screen.
type Band string

const (
	BandIncorrect Band = "incorrect"
	BandNeutral   Band = "neutral"
	BandCorrect   Band = "correct"
)

// Score counts the lines answered correctly.
func Score(lines []QuizLine) int {
	score := 0
	for _, line := range lines {
		if line.Answered() && line.UserAnswer == line.CorrectAnswer {
			score++
		}
	}
	return score
}

// ScoreSummary formats the score line shown with the results.
func ScoreSummary(lines []QuizLine) string {
	return fmt.Sprintf("You scored %d out of %d", Score(lines), len(lines))
}

// ScoreBand maps 0-1 to incorrect, 2-3 to neutral and anything above to correct.
func ScoreBand(score int) Band {
	switch {
	case score <= 1:
		return BandIncorrect
	case score <= 3:
		return BandNeutral
	default:
		return BandCorrect
	}
}

// Per-answer statuses used when rendering a line.
const (
	StatusCorrect   = "correct"
	StatusIncorrect = "incorrect"
	StatusPicked    = "picked"
)

// AnswerStatus classifies one answer of a line. Once revealed, the correct answer is
// "correct" and a wrong pick is "incorrect"; before that only the pick is marked.
func AnswerStatus(line QuizLine, answer string, revealed bool) string {
	if revealed {
		if answer == line.CorrectAnswer {
			return StatusCorrect
		}
		if answer == line.UserAnswer {
			return StatusIncorrect
		}
		return ""
	}
	if line.Answered() && answer == line.UserAnswer {
		return StatusPicked
	}
	return ""
}
