package game

import (
	"fmt"
	"io"
	"math/rand/v2"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/lox/chukrum/internal/deck"
	"github.com/lox/chukrum/internal/gameid"
)

// actionTokens is shared by all rounds so a token from a finished round can
// never match a token issued by a later one.
var actionTokens atomic.Uint64

// Round is one deal-to-scoring cycle. A Round is not safe for concurrent
// use; the Engine and multiplayer Session serialise access to it.
type Round struct {
	id     string
	rules  Rules
	rng    *rand.Rand
	clock  quartz.Clock
	bus    EventBus
	logger *log.Logger

	deck    *deck.Deck
	discard *deck.DiscardPile
	hands   [2]*Hand

	phase          Phase
	first          Seat
	current        Seat
	held           *deck.Card
	special        special
	caller         Seat
	finalTurnsLeft int
	turnNumber     int
	pendingEnd     bool
	scrambleUsed   [2]bool
	outcome        *Outcome

	inFlight uint64
}

func newConfig(opts []RoundOption) *roundConfig {
	cfg := &roundConfig{
		rules:     DefaultRules(),
		firstSeat: Host,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.clock == nil {
		cfg.clock = quartz.NewReal()
	}
	if cfg.logger == nil {
		cfg.logger = log.New(io.Discard)
	}
	if cfg.id == "" {
		cfg.id = gameid.New()
	}
	return cfg
}

func (cfg *roundConfig) build(rng *rand.Rand) *Round {
	return &Round{
		id:      cfg.id,
		rules:   cfg.rules,
		rng:     rng,
		clock:   cfg.clock,
		bus:     cfg.bus,
		logger:  cfg.logger,
		first:   cfg.firstSeat,
		current: cfg.firstSeat,
		special: specialNone{},
		caller:  NoSeat,
	}
}

// NewRound shuffles a fresh deck, deals both hands one card at a time
// starting with the first seat, and turns one card face up.
// The RNG is required to make randomness explicit and testing deterministic.
func NewRound(rng *rand.Rand, opts ...RoundOption) (*Round, error) {
	if rng == nil {
		panic("rng is required for round creation")
	}
	cfg := newConfig(opts)
	if !cfg.firstSeat.Valid() {
		return nil, fmt.Errorf("invalid first seat %d", cfg.firstSeat)
	}
	if n := cfg.rules.HandSize; n < 1 || 2*n+2 > deck.Size {
		return nil, fmt.Errorf("invalid hand size %d", n)
	}

	r := cfg.build(rng)
	r.deck = deck.NewDeck()
	r.deck.Shuffle(rng)
	r.hands = [2]*Hand{NewHand(), NewHand()}
	for range r.rules.HandSize {
		for _, s := range []Seat{r.first, r.first.Other()} {
			c, _ := r.deck.Draw()
			r.hands[s].Append(c)
		}
	}
	up, _ := r.deck.Draw()
	r.discard = deck.NewDiscardPile(up)

	r.logger.Debug("round dealt", "round", r.id, "first", r.first, "deck", r.deck.Len())
	r.publish(RoundStartedEvent{
		baseEvent:  r.base(NoSeat),
		First:      r.first,
		HandSize:   r.rules.HandSize,
		DiscardTop: up,
	})
	return r, nil
}

// ID returns the round identifier
func (r *Round) ID() string { return r.id }

// Rules returns the rules the round was created with
func (r *Round) Rules() Rules { return r.rules }

// Phase returns the current top-level phase
func (r *Round) Phase() Phase { return r.phase }

// Current returns the seat that owns the turn
func (r *Round) Current() Seat { return r.current }

// First returns the seat that moved first this round
func (r *Round) First() Seat { return r.first }

// TurnNumber counts completed turns
func (r *Round) TurnNumber() int { return r.turnNumber }

// ChukrumCaller returns the calling seat, or NoSeat
func (r *Round) ChukrumCaller() Seat { return r.caller }

// FinalTurnsLeft is the number of turns left after a Chukrum call
func (r *Round) FinalTurnsLeft() int { return r.finalTurnsLeft }

// DeckLen returns the number of cards left to draw
func (r *Round) DeckLen() int { return r.deck.Len() }

// HandLen returns the number of cards held by seat
func (r *Round) HandLen(s Seat) int { return r.hands[s].Len() }

// ScrambleUsed reports whether seat has spent its scramble
func (r *Round) ScrambleUsed(s Seat) bool { return r.scrambleUsed[s] }

// Special returns a copy of the special sub-state
func (r *Round) Special() SpecialState { return exportSpecial(r.special) }

// Held returns the drawn card, if any
func (r *Round) Held() (deck.Card, bool) {
	if r.held == nil {
		return deck.Card{}, false
	}
	return *r.held, true
}

// DiscardTop returns the visible discard
func (r *Round) DiscardTop() (deck.Card, bool) {
	return r.discard.Top()
}

// Outcome returns the result once the round has ended
func (r *Round) Outcome() (Outcome, bool) {
	if r.outcome == nil {
		return Outcome{}, false
	}
	return *r.outcome, true
}

// Reveal returns the faces of seat's hand. Only omniscient callers (tests,
// the hard bot, end-of-round display) should use it.
func (r *Round) Reveal(s Seat) []deck.Card {
	return r.hands[s].Cards()
}

// CardCount counts every card the round holds, including the drawn card.
// It is always deck.Size for a dealt round.
func (r *Round) CardCount() int {
	n := r.deck.Len() + r.discard.Len() + r.hands[Host].Len() + r.hands[Guest].Len()
	if r.held != nil {
		n++
	}
	return n
}

// BeginAction reserves the in-flight slot for a deferred action and returns
// its token. It fails while another action is pending or once the round
// has ended.
func (r *Round) BeginAction() (uint64, bool) {
	if r.inFlight != 0 || r.phase == Ended {
		return 0, false
	}
	r.inFlight = actionTokens.Add(1)
	return r.inFlight, true
}

// CompleteAction releases the slot if token is still current. A false
// return means the deferred action is stale and must be dropped.
func (r *Round) CompleteAction(token uint64) bool {
	if token == 0 || r.inFlight != token {
		return false
	}
	r.inFlight = 0
	return true
}

// CancelAction drops any pending deferred action
func (r *Round) CancelAction() {
	r.inFlight = 0
}

// InFlight reports whether a deferred action is pending
func (r *Round) InFlight() bool {
	return r.inFlight != 0
}

// Apply validates and applies a single action.
func (r *Round) Apply(a Action) (Result, error) {
	res, err := r.apply(a)
	if err != nil {
		r.logger.Debug("action rejected", "round", r.id, "action", a, "error", err)
		return Result{}, err
	}
	r.logger.Debug("action applied", "round", r.id, "action", a, "phase", r.phase)
	return res, nil
}

func (r *Round) apply(a Action) (Result, error) {
	if r.phase == Ended {
		return Result{}, ErrRoundOver
	}
	if !a.Seat.Valid() {
		return Result{}, invalidf("unknown seat %d", a.Seat)
	}
	outOfTurnMatch := a.Kind == MatchDiscard && r.rules.MatchOutOfTurn
	if a.Seat != r.current && !outOfTurnMatch {
		return Result{}, ErrNotYourTurn
	}

	switch a.Kind {
	case Draw:
		return r.draw(a.Seat)
	case Discard:
		return r.discardHeld(a.Seat)
	case SwapOwn:
		return r.swapOwn(a.Seat, a.Own)
	case PeekOwn:
		return r.peek(a.Seat, OwnSide, a.Own)
	case PeekOpponent:
		return r.peek(a.Seat, OpponentSide, a.Opponent)
	case CrossSwap:
		return r.crossSwap(a.Seat, a.Own, a.Opponent)
	case MatchDiscard:
		return r.matchDiscard(a.Seat, a.Own)
	case CallChukrum:
		return r.callChukrum(a.Seat)
	case Scramble:
		return r.scramble(a.Seat)
	default:
		return Result{}, invalidf("unknown action kind %d", a.Kind)
	}
}

func (r *Round) draw(s Seat) (Result, error) {
	if r.held != nil {
		return Result{}, invalidf("a card is already drawn")
	}
	card, ok := r.deck.Draw()
	if !ok {
		return Result{}, invalidf("deck is empty")
	}
	r.held = &card
	r.special = specialNone{}
	if card.Rank.IsSpecial() {
		r.special = awaitingFirstPeek{power: card.Rank}
	}
	if r.deck.IsEmpty() {
		r.pendingEnd = true
	}
	r.publish(CardDrawnEvent{baseEvent: r.base(s), DeckLeft: r.deck.Len()})
	drawn := card
	return Result{Drawn: &drawn}, nil
}

func (r *Round) discardHeld(s Seat) (Result, error) {
	if r.held == nil {
		return Result{}, invalidf("no card drawn")
	}
	switch r.special.(type) {
	case awaitingFirstPeek, awaitingSecondPeek:
		return Result{}, invalidf("%s must peek before it is discarded", r.held.Rank)
	}
	return r.finishTurn(s, Result{}), nil
}

func (r *Round) swapOwn(s Seat, pos int) (Result, error) {
	if r.held == nil {
		return Result{}, invalidf("no card drawn")
	}
	if r.held.Rank.IsSpecial() {
		return Result{}, invalidf("%s cannot be swapped into a hand", r.held.Rank)
	}
	hand := r.hands[s]
	if !hand.Valid(pos) {
		return Result{}, invalidf("no card at position %d", pos)
	}

	// The replaced card becomes the held card so finishTurn discards it.
	old := hand.Replace(pos, *r.held)
	r.held = &old
	r.publish(CardSwappedEvent{baseEvent: r.base(s), Pos: pos})
	return r.finishTurn(s, Result{}), nil
}

func (r *Round) peek(s Seat, side Side, pos int) (Result, error) {
	if r.held == nil {
		return Result{}, invalidf("no card drawn")
	}
	target := r.hands[s]
	if side == OpponentSide {
		target = r.hands[s.Other()]
	}
	if !target.Valid(pos) {
		return Result{}, invalidf("no %s card at position %d", side, pos)
	}

	p := Peek{Side: side, Pos: pos}
	var next special
	switch st := r.special.(type) {
	case awaitingFirstPeek:
		switch st.power {
		case deck.Jack:
			if side != OwnSide {
				return Result{}, invalidf("a jack peeks your own hand")
			}
			next = readyToResolve{power: st.power, peeks: []Peek{p}}
		case deck.Queen:
			if side == OpponentSide && r.rules.QueenPeek == QueenPeekOwn {
				return Result{}, invalidf("a queen peeks your own hand")
			}
			next = readyToResolve{power: st.power, peeks: []Peek{p}}
		default:
			next = awaitingSecondPeek{power: st.power, first: p}
		}
	case awaitingSecondPeek:
		if side == st.first.Side {
			return Result{}, invalidf("a king peeks one card from each hand")
		}
		next = readyToResolve{power: st.power, peeks: []Peek{st.first, p}}
	default:
		return Result{}, invalidf("no peek available")
	}

	r.special = next
	card, _ := target.At(pos)
	r.publish(CardPeekedEvent{baseEvent: r.base(s), Side: side, Pos: pos})

	res := Result{Peeked: &card}
	if r.held.Rank == deck.Jack && r.rules.AutoDiscardJack {
		res = r.finishTurn(s, res)
	}
	return res, nil
}

func (r *Round) crossSwap(s Seat, own, opp int) (Result, error) {
	if r.held == nil {
		return Result{}, invalidf("no card drawn")
	}
	ready, ok := r.special.(readyToResolve)
	if !ok || ready.power == deck.Jack {
		return Result{}, invalidf("no cross swap available")
	}
	ownHand, oppHand := r.hands[s], r.hands[s.Other()]
	if !ownHand.Valid(own) || !oppHand.Valid(opp) {
		return Result{}, invalidf("cross swap positions %d,%d out of range", own, opp)
	}
	if p, ok := ready.peeked(OwnSide); ok && p != own {
		return Result{}, invalidf("must swap the peeked own card at %d", p)
	}
	if p, ok := ready.peeked(OpponentSide); ok && p != opp {
		return Result{}, invalidf("must swap the peeked opponent card at %d", p)
	}

	oppCard, _ := oppHand.At(opp)
	mine := ownHand.Replace(own, oppCard)
	oppHand.Replace(opp, mine)
	r.publish(CrossSwappedEvent{baseEvent: r.base(s), Own: own, Opponent: opp})
	return r.finishTurn(s, Result{}), nil
}

func (r *Round) matchDiscard(s Seat, pos int) (Result, error) {
	if r.held != nil {
		return Result{}, invalidf("cannot match while a card is drawn")
	}
	top, ok := r.discard.Top()
	if !ok {
		return Result{}, invalidf("discard pile is empty")
	}
	hand := r.hands[s]
	card, ok := hand.At(pos)
	if !ok {
		return Result{}, invalidf("no card at position %d", pos)
	}

	if card.Rank == top.Rank {
		hand.Remove(pos)
		r.discard.Push(card)
		r.publish(MatchedEvent{baseEvent: r.base(s), Pos: pos, Card: card})
		res := Result{Matched: true}
		if hand.Len() == 0 {
			r.end(HandEmptied)
			res.RoundEnded = true
		}
		return res, nil
	}

	penalty, ok := r.deck.Draw()
	if !ok {
		r.publish(MatchFailedEvent{baseEvent: r.base(s), Pos: pos})
		return Result{PenaltySkipped: true}, nil
	}
	hand.Append(penalty)
	r.publish(MatchFailedEvent{baseEvent: r.base(s), Pos: pos, Penalty: true})
	res := Result{Penalty: &penalty}
	if r.deck.IsEmpty() {
		r.end(DeckExhausted)
		res.RoundEnded = true
	}
	return res, nil
}

func (r *Round) callChukrum(s Seat) (Result, error) {
	if r.phase != Playing {
		return Result{}, invalidf("chukrum has already been called")
	}
	if r.held != nil {
		return Result{}, invalidf("cannot call chukrum holding a drawn card")
	}
	r.phase = FinalRound
	r.caller = s
	r.finalTurnsLeft = 2
	r.turnNumber++
	r.current = s.Other()
	r.publish(ChukrumCalledEvent{baseEvent: r.base(s)})
	r.publish(TurnEndedEvent{baseEvent: r.base(s), Next: r.current, TurnNumber: r.turnNumber})
	return Result{TurnEnded: true}, nil
}

func (r *Round) scramble(s Seat) (Result, error) {
	if !r.rules.Scramble {
		return Result{}, invalidf("scramble is disabled")
	}
	if r.scrambleUsed[s] {
		return Result{}, invalidf("scramble already used this round")
	}
	if r.held == nil {
		return Result{}, invalidf("scramble needs a drawn card to forfeit")
	}
	switch r.special.(type) {
	case awaitingSecondPeek, readyToResolve:
		return Result{}, invalidf("scramble must come before any peek")
	}

	opp := r.hands[s.Other()].cards
	for i := len(opp) - 1; i > 0; i-- {
		j := r.rng.IntN(i + 1)
		opp[i], opp[j] = opp[j], opp[i]
	}
	r.scrambleUsed[s] = true
	r.publish(ScrambledEvent{baseEvent: r.base(s)})
	return r.finishTurn(s, Result{}), nil
}

// finishTurn discards the held card and completes the turn
func (r *Round) finishTurn(s Seat, res Result) Result {
	card := *r.held
	r.held = nil
	r.special = specialNone{}
	r.discard.Push(card)
	r.publish(CardDiscardedEvent{baseEvent: r.base(s), Card: card})
	r.completeTurn(s)
	res.TurnEnded = true
	res.RoundEnded = r.phase == Ended
	return res
}

func (r *Round) completeTurn(s Seat) {
	r.turnNumber++
	if r.pendingEnd {
		r.end(DeckExhausted)
		return
	}
	if r.phase == FinalRound {
		r.finalTurnsLeft--
		if r.finalTurnsLeft <= 0 {
			r.end(ChukrumResolved)
			return
		}
	}
	r.current = s.Other()
	r.publish(TurnEndedEvent{baseEvent: r.base(s), Next: r.current, TurnNumber: r.turnNumber})
}

func (r *Round) end(reason EndReason) {
	r.phase = Ended
	r.special = specialNone{}
	r.pendingEnd = false
	r.inFlight = 0
	o := NewOutcome([2]int{r.hands[Host].Score(), r.hands[Guest].Score()}, reason, r.caller)
	r.outcome = &o
	r.logger.Info("round ended", "round", r.id, "reason", reason,
		"host", o.Scores[Host], "guest", o.Scores[Guest], "winner", o.Winner)
	r.publish(RoundEndedEvent{
		baseEvent: r.base(NoSeat),
		Outcome:   o,
		Hands:     [2][]deck.Card{r.hands[Host].Cards(), r.hands[Guest].Cards()},
	})
}

func (r *Round) base(s Seat) baseEvent {
	return baseEvent{RoundID: r.id, Seat: s, At: r.clock.Now()}
}

func (r *Round) publish(e GameEvent) {
	if r.bus != nil {
		r.bus.Publish(e)
	}
}
