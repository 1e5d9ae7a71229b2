package game

import "strconv"

type HandStatus string

const (
	HandPlaying   HandStatus = "playing"
	HandBlackjack HandStatus = "blackjack"
	HandBust      HandStatus = "bust"
	HandStood     HandStatus = "stood"
	HandWon       HandStatus = "won"
	HandLost      HandStatus = "lost"
	HandDraw      HandStatus = "draw"
)

// Hand is one player hand
type Hand struct {
	Cards    []Card     `json:"cards"`
	Status   HandStatus `json:"status"`
	CanSplit bool       `json:"canSplit"`
}

// Done reports whether the player can no longer act on the hand
func (h *Hand) Done() bool {
	return h.Status != HandPlaying
}

// Valuate returns the best blackjack total of cards. Aces count 11 and are
// downgraded to 1 one at a time while the total exceeds 21. A total above 21
// is a bust and is returned as is.
func Valuate(cards []Card) int {
	total := 0
	aces := 0

	// First pass: calculate score treating aces as 11
	for _, card := range cards {
		if card.Rank == Ace {
			aces++
		}
		total += card.Value()
	}

	// Second pass: convert aces from 11 to 1 as needed to avoid busting
	for aces > 0 && total > 21 {
		total -= 10
		aces--
	}

	return total
}

// SoftTotals returns the total with every ace low and the total with exactly
// one ace high. ok is false unless both are distinct and the high one is at
// most 21.
func SoftTotals(cards []Card) (low, high int, ok bool) {
	hasAce := false
	for _, card := range cards {
		if card.Rank == Ace {
			hasAce = true
			low++
			continue
		}
		low += card.Value()
	}

	if !hasAce {
		return low, low, false
	}

	high = low + 10
	return low, high, high <= 21
}

// DisplayTotal formats a hand total for display, e.g. "7 / 17" for a soft hand.
func DisplayTotal(cards []Card) string {
	if low, high, ok := SoftTotals(cards); ok {
		return strconv.Itoa(low) + " / " + strconv.Itoa(high)
	}
	return strconv.Itoa(Valuate(cards))
}

func canSplit(cards []Card) bool {
	return len(cards) == 2 && cards[0].Rank == cards[1].Rank
}
