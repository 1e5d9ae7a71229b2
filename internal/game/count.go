package game

import "math"

// Count is the Hi-Lo running count and the true count derived from it
type Count struct {
	Running int     `json:"runningCount"`
	True    float64 `json:"trueCount"`
}

// Tag returns the Hi-Lo value of a card: +1 for 2-6, 0 for 7-9, -1 for tens and aces.
func Tag(card Card) int {
	switch card.Rank {
	case Two, Three, Four, Five, Six:
		return 1
	case Seven, Eight, Nine:
		return 0
	default:
		return -1
	}
}

// TagSum returns the sum of Hi-Lo tags of cards
func TagSum(cards []Card) int {
	sum := 0
	for _, card := range cards {
		sum += Tag(card)
	}
	return sum
}

// DecksRemaining returns the number of started decks left in a shoe with
// the given number of cards, never less than one.
func DecksRemaining(cardsRemaining int) int {
	decks := (cardsRemaining + DeckSize - 1) / DeckSize
	return max(decks, 1)
}

// TrueCount divides the running count by the decks remaining, rounded to one
// decimal with halves rounded up (-0.25 becomes -0.2).
func TrueCount(running, cardsRemaining int) float64 {
	tc := float64(running) / float64(DecksRemaining(cardsRemaining))
	return math.Floor(tc*10+0.5) / 10
}

// NewCount derives a Count from a running count and the cards left in the shoe
func NewCount(running, cardsRemaining int) Count {
	return Count{
		Running: running,
		True:    TrueCount(running, cardsRemaining),
	}
}
