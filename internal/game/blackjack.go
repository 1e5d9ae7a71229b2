package game

import (
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
)

type Phase string

const (
	PhaseIdle          Phase = "idle"
	PhaseDealing       Phase = "dealing"
	PhasePlaying       Phase = "playing"
	PhaseDealerPlaying Phase = "dealerPlaying"
	PhaseResolved      Phase = "resolved"
	PhaseReshuffling   Phase = "reshuffling"
)

// DefaultReshuffleCountdown is the number of seconds shown before a new shoe is dealt.
const DefaultReshuffleCountdown = 5

// Listener receives a snapshot after every state change together with the
// events that produced it. Listeners run with the game locked and must not
// call back into the Game.
type Listener func(Snapshot, []Event)

// Options controls the collaborators of a Game. The zero value is usable:
// real clock, discarded logs, random seed and no reshuffle countdown.
type Options struct {
	Clock  quartz.Clock
	Logger *log.Logger
	Rand   *rand.Rand

	// CountdownStep is the time between countdown ticks, one second if zero.
	CountdownStep time.Duration

	// ReshuffleCountdown is the number of ticks shown before a reshuffle
	// commits. Zero reshuffles immediately.
	ReshuffleCountdown int
}

// DefaultOptions returns the options used for interactive play
func DefaultOptions() Options {
	return Options{
		Clock:              quartz.NewReal(),
		CountdownStep:      time.Second,
		ReshuffleCountdown: DefaultReshuffleCountdown,
	}
}

// NewRand returns a generator seeded deterministically from seed
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

type countdown struct {
	kind      CountdownKind
	remaining int
}

// Game is a single-player blackjack table. All state is owned by the Game
// and only changes through its commands and its countdown timer.
type Game struct {
	mu sync.Mutex

	cfg          Config
	clock        quartz.Clock
	logger       *log.Logger
	rng          *rand.Rand
	step         time.Duration
	shuffleTicks int

	phase   Phase
	round   int
	shoe    *Shoe
	dealer  []Card
	hands   []Hand
	running int
	guess   *CountGuess

	countdown countdown
	timer     *quartz.Timer
	timerGen  uint64

	pending      []Event
	listeners    map[int]Listener
	nextListener int
}

// NewGame creates an idle game with the given configuration
func NewGame(cfg Config, opts Options) (*Game, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	g := &Game{
		cfg:          cfg,
		clock:        opts.Clock,
		logger:       opts.Logger,
		rng:          opts.Rand,
		step:         opts.CountdownStep,
		shuffleTicks: max(opts.ReshuffleCountdown, 0),
		phase:        PhaseIdle,
		listeners:    make(map[int]Listener),
	}
	if g.clock == nil {
		g.clock = quartz.NewReal()
	}
	if g.logger == nil {
		g.logger = log.New(io.Discard)
	}
	if g.rng == nil {
		g.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if g.step <= 0 {
		g.step = time.Second
	}

	return g, nil
}

// Subscribe registers l for every state change and returns a function that removes it
func (g *Game) Subscribe(l Listener) func() {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := g.nextListener
	g.nextListener++
	g.listeners[id] = l

	return func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		delete(g.listeners, id)
	}
}

// Config returns the current table configuration
func (g *Game) Config() Config {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cfg
}

// Configure changes the table setup. Only allowed while idle.
func (g *Game) Configure(cfg Config) ([]Event, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := cfg.Validate(); err != nil {
		return nil, g.reject("configure", err)
	}
	if g.phase != PhaseIdle {
		return nil, g.reject("configure", fmt.Errorf("configure while %s, reset first: %w", g.phase, ErrInvalidCommand))
	}

	g.cfg = cfg
	g.shoe = nil
	g.logger.Debug("Table configured", "decks", cfg.NumDecks, "hands", cfg.NumHands, "difficulty", cfg.Difficulty)

	return g.flush(), nil
}

// Start deals the first round from a fresh shoe when idle. When a round has
// been resolved it skips the restart countdown and deals the next round.
func (g *Game) Start() ([]Event, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch g.phase {
	case PhaseIdle:
		g.replaceShoe()
		g.beginRound()
	case PhaseResolved:
		g.stopTimer()
		g.beginRound()
	default:
		return nil, g.reject("start", fmt.Errorf("start while %s: %w", g.phase, ErrInvalidCommand))
	}

	return g.flush(), nil
}

// Hit draws a card to the given hand
func (g *Game) Hit(hand int) ([]Event, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	h, err := g.playableHand(hand)
	if err != nil {
		return nil, g.reject("hit", err)
	}

	g.clearNewlyDealt()
	card := g.draw()
	h.Cards = append(h.Cards, card)
	h.CanSplit = false
	g.pending = append(g.pending, cardDealt(card, TargetPlayer, hand))

	switch total := Valuate(h.Cards); {
	case total > 21:
		h.Status = HandBust
	case total == 21:
		h.Status = HandStood
	}

	g.advance()
	return g.flush(), nil
}

// Stand ends play on the given hand
func (g *Game) Stand(hand int) ([]Event, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	h, err := g.playableHand(hand)
	if err != nil {
		return nil, g.reject("stand", err)
	}

	g.clearNewlyDealt()
	h.Status = HandStood
	h.CanSplit = false

	g.advance()
	return g.flush(), nil
}

// Split replaces a pair with two one-card hands that cannot be split again
func (g *Game) Split(hand int) ([]Event, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	h, err := g.playableHand(hand)
	if err != nil {
		return nil, g.reject("split", err)
	}
	if !h.CanSplit || len(h.Cards) != 2 {
		return nil, g.reject("split", fmt.Errorf("hand %d cannot be split: %w", hand, ErrInvalidCommand))
	}

	g.clearNewlyDealt()
	first := Hand{Cards: []Card{h.Cards[0]}, Status: HandPlaying}
	second := Hand{Cards: []Card{h.Cards[1]}, Status: HandPlaying}

	hands := make([]Hand, 0, len(g.hands)+1)
	hands = append(hands, g.hands[:hand]...)
	hands = append(hands, first, second)
	hands = append(hands, g.hands[hand+1:]...)
	g.hands = hands

	g.logger.Debug("Hand split", "hand", hand, "hands", len(g.hands))
	return g.flush(), nil
}

// Reset abandons the session and returns to idle, discarding the shoe and count
func (g *Game) Reset() []Event {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.stopTimer()
	g.phase = PhaseIdle
	g.round = 0
	g.shoe = nil
	g.dealer = nil
	g.hands = nil
	g.running = 0
	g.guess = nil
	g.logger.Debug("Game reset")

	return g.flush()
}

// Close stops any pending countdown without publishing
func (g *Game) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stopTimer()
}

func (g *Game) reject(cmd string, err error) error {
	g.logger.Debug("Command rejected", "command", cmd, "phase", g.phase, "error", err)
	return err
}

func (g *Game) playableHand(i int) (*Hand, error) {
	if g.phase != PhasePlaying {
		return nil, fmt.Errorf("no hand in play while %s: %w", g.phase, ErrInvalidCommand)
	}
	if i < 0 || i >= len(g.hands) {
		return nil, fmt.Errorf("hand %d does not exist: %w", i, ErrInvalidCommand)
	}
	if g.hands[i].Status != HandPlaying {
		return nil, fmt.Errorf("hand %d is %s: %w", i, g.hands[i].Status, ErrInvalidCommand)
	}
	return &g.hands[i], nil
}

// cardsPerDeal is the number of cards an initial deal takes
func (g *Game) cardsPerDeal() int {
	return 2 * (g.cfg.NumHands + 1)
}

// beginRound deals the next round, or reshuffles first when the shoe is low.
func (g *Game) beginRound() {
	if g.shoe.NeedsReshuffle() || g.shoe.Remaining() < g.cardsPerDeal() {
		g.startReshuffle()
		return
	}
	g.deal()
}

func (g *Game) startReshuffle() {
	g.phase = PhaseReshuffling
	g.logger.Debug("Reshuffle needed", "remaining", g.shoe.Remaining(), "original", g.shoe.OriginalSize())
	g.pending = append(g.pending, Event{
		Type:      EventReshuffleStarted,
		Countdown: CountdownReshuffle,
		Remaining: g.shuffleTicks,
	})

	g.startCountdown(CountdownReshuffle, g.shuffleTicks, func() {
		g.replaceShoe()
		g.deal()
	})
}

// replaceShoe builds a fresh shoe and resets the count
func (g *Game) replaceShoe() {
	g.shoe = buildShuffledShoe(g.cfg.NumDecks, g.rng)
	g.running = 0
	g.pending = append(g.pending, Event{Type: EventShoeReshuffled, NumDecks: g.cfg.NumDecks})
	g.logger.Info("New shoe", "decks", g.cfg.NumDecks, "cards", g.shoe.Remaining())
}

// draw takes the top card of the shoe. An empty shoe is replaced before drawing.
func (g *Game) draw() Card {
	card, ok := g.shoe.Draw()
	if !ok {
		g.logger.Warn("Shoe exhausted mid-round, forcing reshuffle", "round", g.round)
		g.replaceShoe()
		card, _ = g.shoe.Draw()
	}
	card.NewlyDealt = true
	g.running += Tag(card)
	return card
}

func (g *Game) deal() {
	g.phase = PhaseDealing
	g.round++
	g.dealer = make([]Card, 0, 2)
	g.hands = make([]Hand, g.cfg.NumHands)
	for i := range g.hands {
		g.hands[i] = Hand{Cards: make([]Card, 0, 2), Status: HandPlaying}
	}

	for i := range g.hands {
		card := g.draw()
		g.hands[i].Cards = append(g.hands[i].Cards, card)
		g.pending = append(g.pending, cardDealt(card, TargetPlayer, i))
	}

	up := g.draw()
	g.dealer = append(g.dealer, up)
	g.pending = append(g.pending, cardDealt(up, TargetDealer, 0))

	for i := range g.hands {
		h := &g.hands[i]
		card := g.draw()
		h.Cards = append(h.Cards, card)
		g.pending = append(g.pending, cardDealt(card, TargetPlayer, i))

		if Valuate(h.Cards) == 21 {
			h.Status = HandBlackjack
		}
		h.CanSplit = canSplit(h.Cards)
	}

	// The hole card is counted now even though it is face down.
	hole := g.draw()
	hole.Hidden = true
	g.dealer = append(g.dealer, hole)
	g.pending = append(g.pending, cardDealt(hole, TargetDealer, 0))

	g.phase = PhasePlaying
	g.logger.Debug("Round dealt", "round", g.round, "hands", len(g.hands), "remaining", g.shoe.Remaining())

	g.advance()
}

// advance hands over to the dealer once no player hand is still in play
func (g *Game) advance() {
	for _, h := range g.hands {
		if !h.Done() {
			return
		}
	}
	g.dealerTurn()
}

func (g *Game) dealerTurn() {
	g.phase = PhaseDealerPlaying

	allBust := true
	for _, h := range g.hands {
		if h.Status != HandBust {
			allBust = false
			break
		}
	}

	if allBust {
		for i := range g.hands {
			g.hands[i].Status = HandLost
		}
	} else {
		res, err := PlayDealer(g.dealer, g.shoe)
		for errors.Is(err, ErrShoeExhausted) {
			// The count restarts with the new shoe, so the partial delta is dropped.
			g.pending = append(g.pending, res.Events...)
			g.logger.Warn("Shoe exhausted during dealer play, forcing reshuffle", "round", g.round)
			g.replaceShoe()
			res, err = PlayDealer(res.Hand, g.shoe)
		}

		g.dealer = res.Hand
		g.running += res.Delta
		g.pending = append(g.pending, res.Events...)

		dealerTotal := Valuate(g.dealer)
		for i := range g.hands {
			g.hands[i].Status = Resolve(g.hands[i], dealerTotal)
		}
	}

	outcomes := make([]HandStatus, len(g.hands))
	for i, h := range g.hands {
		outcomes[i] = h.Status
	}
	g.pending = append(g.pending, Event{Type: EventRoundResolved, Outcomes: outcomes})
	g.phase = PhaseResolved
	g.logger.Info("Round resolved", "round", g.round, "outcomes", outcomes, "dealer", Valuate(g.dealer), "running", g.running)

	setting, _ := g.cfg.Difficulty.Setting()
	g.startCountdown(CountdownRestart, setting.RestartDelaySeconds, g.beginRound)
}

// startCountdown supersedes any pending timer and runs done after ticks steps.
func (g *Game) startCountdown(kind CountdownKind, ticks int, done func()) {
	g.stopTimer()
	if ticks <= 0 {
		done()
		return
	}

	g.countdown = countdown{kind: kind, remaining: ticks}
	g.pending = append(g.pending, countdownTick(kind, ticks))
	g.scheduleTick(done)
}

func (g *Game) scheduleTick(done func()) {
	g.timerGen++
	gen := g.timerGen

	g.timer = g.clock.AfterFunc(g.step, func() {
		g.mu.Lock()
		defer g.mu.Unlock()

		if gen != g.timerGen {
			return
		}
		g.timer = nil

		g.countdown.remaining--
		if g.countdown.remaining > 0 {
			g.pending = append(g.pending, countdownTick(g.countdown.kind, g.countdown.remaining))
			g.scheduleTick(done)
		} else {
			g.countdown = countdown{}
			g.clearNewlyDealt()
			done()
		}

		g.flush()
	}, "game", "countdown")
}

// stopTimer cancels the pending countdown. Bumping the generation also
// invalidates a callback that has fired but not yet taken the lock.
func (g *Game) stopTimer() {
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
	g.timerGen++
	g.countdown = countdown{}
}

func (g *Game) clearNewlyDealt() {
	for i := range g.dealer {
		g.dealer[i].NewlyDealt = false
	}
	for i := range g.hands {
		for j := range g.hands[i].Cards {
			g.hands[i].Cards[j].NewlyDealt = false
		}
	}
}

// flush publishes the current snapshot with the pending events
func (g *Game) flush() []Event {
	events := g.pending
	g.pending = nil

	snap := g.snapshot()
	for _, l := range g.listeners {
		l(snap, events)
	}
	return events
}
