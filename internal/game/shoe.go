package game

import (
	"fmt"
	"math/rand/v2"
)

const (
	// DeckSize is the number of cards in one standard deck.
	DeckSize = 52

	// MinDealCards is the absolute floor below which no round is dealt.
	MinDealCards = 10
)

// BuildShoe creates numDecks standard decks in order. Card ids are the
// position of the card in the unshuffled shoe.
func BuildShoe(numDecks int) ([]Card, error) {
	if numDecks < 1 {
		return nil, fmt.Errorf("build shoe with %d decks: %w", numDecks, ErrInvalidConfig)
	}

	cards := make([]Card, 0, numDecks*DeckSize)
	for range numDecks {
		for _, suit := range Suits {
			for _, rank := range Ranks {
				cards = append(cards, Card{
					ID:   len(cards),
					Rank: rank,
					Suit: suit,
				})
			}
		}
	}

	return cards, nil
}

// Shuffle returns a uniformly random permutation of cards. The input is not modified.
func Shuffle(cards []Card, rng *rand.Rand) []Card {
	shuffled := make([]Card, len(cards))
	copy(shuffled, cards)

	// Fisher-Yates shuffle algorithm
	for i := len(shuffled) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}

	return shuffled
}

// Shoe is the working stack of cards rounds are dealt from. Cards are drawn
// from the end of the slice.
type Shoe struct {
	cards        []Card
	numDecks     int
	originalSize int
}

// NewShoe builds and shuffles a shoe of numDecks decks
func NewShoe(numDecks int, rng *rand.Rand) (*Shoe, error) {
	if numDecks < 1 {
		return nil, fmt.Errorf("new shoe with %d decks: %w", numDecks, ErrInvalidConfig)
	}
	return buildShuffledShoe(numDecks, rng), nil
}

// buildShuffledShoe assumes numDecks has already been validated.
func buildShuffledShoe(numDecks int, rng *rand.Rand) *Shoe {
	cards, _ := BuildShoe(max(numDecks, 1))
	return &Shoe{
		cards:        Shuffle(cards, rng),
		numDecks:     max(numDecks, 1),
		originalSize: len(cards),
	}
}

// newShoeFromCards wraps an already ordered stack; the last card is drawn first.
func newShoeFromCards(cards []Card, originalSize int) *Shoe {
	return &Shoe{
		cards:        cards,
		numDecks:     (originalSize + DeckSize - 1) / DeckSize,
		originalSize: originalSize,
	}
}

// Draw removes and returns the top card of the shoe
func (s *Shoe) Draw() (Card, bool) {
	if len(s.cards) == 0 {
		return Card{}, false
	}

	card := s.cards[len(s.cards)-1]
	s.cards = s.cards[:len(s.cards)-1]
	return card, true
}

// Remaining returns the number of cards left in the shoe
func (s *Shoe) Remaining() int {
	return len(s.cards)
}

// OriginalSize returns the size of the shoe when it was built
func (s *Shoe) OriginalSize() int {
	return s.originalSize
}

// NumDecks returns the number of decks the shoe was built from
func (s *Shoe) NumDecks() int {
	return s.numDecks
}

// NeedsReshuffle reports whether the shoe has fallen below a third of its
// original size or below the dealing floor.
func (s *Shoe) NeedsReshuffle() bool {
	return len(s.cards)*3 < s.originalSize || len(s.cards) < MinDealCards
}
