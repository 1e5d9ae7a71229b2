package game

// DealerStandTotal is the total at which the dealer stops drawing, soft or hard.
const DealerStandTotal = 17

// DealerResult is the outcome of dealer play
type DealerResult struct {
	Hand []Card
	// Delta is the Hi-Lo tag sum of the cards drawn. The hole card is
	// counted when dealt, so revealing it adds nothing.
	Delta  int
	Events []Event
}

// PlayDealer reveals the hole card and draws from shoe while the dealer total
// is below 17. The input hand is not modified. If the shoe runs dry the
// partial result is returned together with ErrShoeExhausted.
func PlayDealer(hand []Card, shoe *Shoe) (DealerResult, error) {
	res := DealerResult{Hand: make([]Card, len(hand))}
	copy(res.Hand, hand)

	for i := range res.Hand {
		if res.Hand[i].Hidden {
			res.Hand[i].Hidden = false
			res.Events = append(res.Events, dealerRevealed(res.Hand[i]))
		}
	}

	for Valuate(res.Hand) < DealerStandTotal {
		card, ok := shoe.Draw()
		if !ok {
			return res, ErrShoeExhausted
		}
		card.NewlyDealt = true
		res.Hand = append(res.Hand, card)
		res.Delta += Tag(card)
		res.Events = append(res.Events, cardDealt(card, TargetDealer, 0))
	}

	return res, nil
}

// Resolve compares a finished player hand against the final dealer total
func Resolve(hand Hand, dealerTotal int) HandStatus {
	if hand.Status == HandBust || hand.Status == HandLost {
		return HandLost
	}

	playerTotal := Valuate(hand.Cards)
	switch {
	case dealerTotal > 21:
		return HandWon
	case playerTotal > dealerTotal:
		return HandWon
	case playerTotal == dealerTotal:
		return HandDraw
	default:
		return HandLost
	}
}
