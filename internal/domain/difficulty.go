package domain

// Difficulty pairs the provider value with its display label.
type Difficulty struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// Difficulties returns the fixed difficulty list in display order.
func Difficulties() []Difficulty {
	return []Difficulty{
		{Value: DifficultyEasy, Label: "Easy"},
		{Value: DifficultyMedium, Label: "Medium"},
		{Value: DifficultyHard, Label: "Hard"},
	}
}

// IsDifficulty reports whether value is one of the supported difficulties.
func IsDifficulty(value string) bool {
	for _, d := range Difficulties() {
		if d.Value == value {
			return true
		}
	}
	return false
}
