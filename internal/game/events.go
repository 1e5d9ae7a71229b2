package game

// EventType identifies a domain event emitted by the game
type EventType string

const (
	EventCardDealt        EventType = "card_dealt"
	EventDealerRevealed   EventType = "dealer_revealed"
	EventRoundResolved    EventType = "round_resolved"
	EventReshuffleStarted EventType = "reshuffle_started"
	EventShoeReshuffled   EventType = "shoe_reshuffled"
	EventCountdown        EventType = "countdown"
)

// String returns the string representation of the event type
func (et EventType) String() string {
	return string(et)
}

// Target names who received a dealt card
type Target string

const (
	TargetPlayer Target = "player"
	TargetDealer Target = "dealer"
)

type CountdownKind string

const (
	CountdownRestart   CountdownKind = "restart"
	CountdownReshuffle CountdownKind = "reshuffle"
)

// Event is a discrete step of play. Events are emitted in order with the
// snapshot they produced; the presentation decides how to pace them.
type Event struct {
	Type      EventType     `json:"type"`
	Card      *Card         `json:"card,omitempty"`
	Target    Target        `json:"target,omitempty"`
	Hand      int           `json:"hand"`
	Outcomes  []HandStatus  `json:"outcomes,omitempty"`
	Countdown CountdownKind `json:"countdown,omitempty"`
	Remaining int           `json:"remaining,omitempty"`
	NumDecks  int           `json:"numDecks,omitempty"`
}

func cardDealt(card Card, target Target, hand int) Event {
	return Event{Type: EventCardDealt, Card: &card, Target: target, Hand: hand}
}

func dealerRevealed(card Card) Event {
	return Event{Type: EventDealerRevealed, Card: &card, Target: TargetDealer}
}

func countdownTick(kind CountdownKind, remaining int) Event {
	return Event{Type: EventCountdown, Countdown: kind, Remaining: remaining}
}
