package game

import "fmt"

type Suit string
type Rank string

const (
	Hearts   Suit = "H"
	Diamonds Suit = "D"
	Clubs    Suit = "C"
	Spades   Suit = "S"
)

const (
	Ace   Rank = "A"
	Two   Rank = "2"
	Three Rank = "3"
	Four  Rank = "4"
	Five  Rank = "5"
	Six   Rank = "6"
	Seven Rank = "7"
	Eight Rank = "8"
	Nine  Rank = "9"
	Ten   Rank = "10"
	Jack  Rank = "J"
	Queen Rank = "Q"
	King  Rank = "K"
)

// Suits and Ranks list every suit and rank in shoe-building order.
var (
	Suits = []Suit{Hearts, Diamonds, Clubs, Spades}
	Ranks = []Rank{Ace, Two, Three, Four, Five, Six, Seven, Eight, Nine, Ten, Jack, Queen, King}
)

// Card is a single playing card. ID is unique within the shoe that built it.
// Hidden and NewlyDealt are presentation state, not identity.
type Card struct {
	ID         int  `json:"id"`
	Rank       Rank `json:"rank"`
	Suit       Suit `json:"suit"`
	Hidden     bool `json:"hidden"`
	NewlyDealt bool `json:"isNewlyDealt,omitempty"`
}

// Value returns the blackjack value of the card with aces counted high
func (c Card) Value() int {
	switch c.Rank {
	case Ace:
		return 11
	case Ten, Jack, Queen, King:
		return 10
	case Two:
		return 2
	case Three:
		return 3
	case Four:
		return 4
	case Five:
		return 5
	case Six:
		return 6
	case Seven:
		return 7
	case Eight:
		return 8
	case Nine:
		return 9
	default:
		return 0
	}
}

// String returns a short name such as "10-H"
func (c Card) String() string {
	return fmt.Sprintf("%s-%s", c.Rank, c.Suit)
}
