package game

import "fmt"

// CountGuess records the player's last attempt at the running count
type CountGuess struct {
	Guess   int  `json:"guess"`
	Actual  int  `json:"actual"`
	Correct bool `json:"correct"`
}

// HandView is a read-only copy of a player hand with its totals
type HandView struct {
	Cards    []Card     `json:"cards"`
	Status   HandStatus `json:"status"`
	CanSplit bool       `json:"canSplit"`
	Total    int        `json:"total"`
	Display  string     `json:"display"`
}

// DealerView is a read-only copy of the dealer hand. Totals only include
// face-up cards.
type DealerView struct {
	Cards   []Card `json:"cards"`
	Total   int    `json:"total"`
	Display string `json:"display"`
}

// CountdownView is the active countdown, if any
type CountdownView struct {
	Kind      CountdownKind `json:"kind"`
	Remaining int           `json:"remaining"`
}

// Snapshot is a read-only view of the game after a state change
type Snapshot struct {
	Phase          Phase          `json:"phase"`
	Config         Config         `json:"config"`
	Round          int            `json:"round"`
	Dealer         DealerView     `json:"dealer"`
	Hands          []HandView     `json:"hands"`
	Count          Count          `json:"count"`
	CardsRemaining int            `json:"cardsRemaining"`
	Countdown      *CountdownView `json:"countdown,omitempty"`
	Guess          *CountGuess    `json:"guess,omitempty"`
}

// Snapshot returns a copy of the current state
func (g *Game) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snapshot()
}

// GuessCount checks a guess of the running count. The count itself is unchanged.
func (g *Game) GuessCount(guess int) (CountGuess, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.phase == PhaseIdle {
		return CountGuess{}, g.reject("guess", fmt.Errorf("no count while idle: %w", ErrInvalidCommand))
	}

	result := CountGuess{
		Guess:   guess,
		Actual:  g.running,
		Correct: guess == g.running,
	}
	g.guess = &result
	g.logger.Debug("Count guessed", "guess", guess, "actual", g.running)

	g.flush()
	return result, nil
}

func (g *Game) snapshot() Snapshot {
	snap := Snapshot{
		Phase:  g.phase,
		Config: g.cfg,
		Round:  g.round,
		Hands:  make([]HandView, len(g.hands)),
	}

	visible := make([]Card, 0, len(g.dealer))
	snap.Dealer.Cards = make([]Card, len(g.dealer))
	for i, c := range g.dealer {
		snap.Dealer.Cards[i] = c
		if !c.Hidden {
			visible = append(visible, c)
		}
	}
	snap.Dealer.Total = Valuate(visible)
	snap.Dealer.Display = DisplayTotal(visible)

	for i, h := range g.hands {
		cards := make([]Card, len(h.Cards))
		copy(cards, h.Cards)
		snap.Hands[i] = HandView{
			Cards:    cards,
			Status:   h.Status,
			CanSplit: h.CanSplit,
			Total:    Valuate(h.Cards),
			Display:  DisplayTotal(h.Cards),
		}
	}

	if g.shoe != nil {
		snap.CardsRemaining = g.shoe.Remaining()
		snap.Count = NewCount(g.running, g.shoe.Remaining())
	}

	if g.countdown.remaining > 0 {
		snap.Countdown = &CountdownView{Kind: g.countdown.kind, Remaining: g.countdown.remaining}
	}

	if g.guess != nil {
		guess := *g.guess
		snap.Guess = &guess
	}

	return snap
}
