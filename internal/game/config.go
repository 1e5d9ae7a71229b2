package game

import "fmt"

type Difficulty string

const (
	Easy   Difficulty = "easy"
	Medium Difficulty = "medium"
	Hard   Difficulty = "hard"
)

const (
	MinDecks = 1
	MaxDecks = 5
	MinHands = 1
	MaxHands = 3
)

// DifficultySetting describes how long a resolved round stays on the table
type DifficultySetting struct {
	Key                 Difficulty `json:"key"`
	Label               string     `json:"label"`
	RestartDelaySeconds int        `json:"restartDelaySeconds"`
}

var difficultySettings = map[Difficulty]DifficultySetting{
	Easy:   {Key: Easy, Label: "Easy (10s)", RestartDelaySeconds: 10},
	Medium: {Key: Medium, Label: "Medium (7s)", RestartDelaySeconds: 7},
	Hard:   {Key: Hard, Label: "Hard (3s)", RestartDelaySeconds: 3},
}

// Difficulties returns the enumerated difficulty options, easiest first
func Difficulties() []DifficultySetting {
	return []DifficultySetting{
		difficultySettings[Easy],
		difficultySettings[Medium],
		difficultySettings[Hard],
	}
}

// Setting returns the difficulty's options
func (d Difficulty) Setting() (DifficultySetting, bool) {
	s, ok := difficultySettings[d]
	return s, ok
}

// Config is the table setup chosen before play
type Config struct {
	NumDecks   int        `json:"numDecks"`
	NumHands   int        `json:"numHands"`
	Difficulty Difficulty `json:"difficulty"`
}

// DefaultConfig returns a five deck, single hand, medium table
func DefaultConfig() Config {
	return Config{
		NumDecks:   5,
		NumHands:   1,
		Difficulty: Medium,
	}
}

// Validate checks the configuration against the supported ranges
func (c Config) Validate() error {
	if c.NumDecks < MinDecks || c.NumDecks > MaxDecks {
		return fmt.Errorf("number of decks must be between %d and %d, got %d: %w",
			MinDecks, MaxDecks, c.NumDecks, ErrInvalidConfig)
	}
	if c.NumHands < MinHands || c.NumHands > MaxHands {
		return fmt.Errorf("number of hands must be between %d and %d, got %d: %w",
			MinHands, MaxHands, c.NumHands, ErrInvalidConfig)
	}
	if _, ok := c.Difficulty.Setting(); !ok {
		return fmt.Errorf("unknown difficulty %q: %w", c.Difficulty, ErrInvalidConfig)
	}
	return nil
}
