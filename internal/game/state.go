package game

import (
	"fmt"
	"math/rand/v2"

	"github.com/lox/chukrum/internal/deck"
)

// State is a complete copy of a round, used to move a round in and out of
// the shared multiplayer record.
type State struct {
	Hands          [2][]deck.Card
	Deck           []deck.Card
	Discard        []deck.Card
	Held           *deck.Card
	Special        SpecialState
	Phase          Phase
	First          Seat
	Current        Seat
	ChukrumCaller  Seat
	FinalTurnsLeft int
	TurnNumber     int
	PendingEnd     bool
	ScrambleUsed   [2]bool
	Reason         EndReason
}

// Snapshot copies the round state
func (r *Round) Snapshot() State {
	st := State{
		Hands:          [2][]deck.Card{r.hands[Host].Cards(), r.hands[Guest].Cards()},
		Deck:           r.deck.Cards(),
		Discard:        r.discard.Cards(),
		Special:        exportSpecial(r.special),
		Phase:          r.phase,
		First:          r.first,
		Current:        r.current,
		ChukrumCaller:  r.caller,
		FinalTurnsLeft: r.finalTurnsLeft,
		TurnNumber:     r.turnNumber,
		PendingEnd:     r.pendingEnd,
		ScrambleUsed:   r.scrambleUsed,
	}
	if r.held != nil {
		held := *r.held
		st.Held = &held
	}
	if r.outcome != nil {
		st.Reason = r.outcome.Reason
	}
	return st
}

// Restore rebuilds a round from st. A special sub-state that does not fit
// the held card is reset to its first stage rather than trusted, and a
// round with nothing left to draw is ended instead of left stuck.
func Restore(rng *rand.Rand, st State, opts ...RoundOption) (*Round, error) {
	if rng == nil {
		panic("rng is required for round creation")
	}
	if !st.Current.Valid() {
		return nil, fmt.Errorf("invalid current seat %d", st.Current)
	}
	cfg := newConfig(opts)
	cfg.firstSeat = st.First
	if !st.First.Valid() {
		cfg.firstSeat = Host
	}

	r := cfg.build(rng)
	r.hands = [2]*Hand{NewHand(st.Hands[Host]...), NewHand(st.Hands[Guest]...)}
	r.deck = deck.FromCards(st.Deck)
	r.discard = deck.NewDiscardPile(st.Discard...)
	r.phase = st.Phase
	r.current = st.Current
	r.caller = st.ChukrumCaller
	r.finalTurnsLeft = st.FinalTurnsLeft
	r.turnNumber = st.TurnNumber
	r.pendingEnd = st.PendingEnd
	r.scrambleUsed = st.ScrambleUsed

	if st.Held != nil {
		held := *st.Held
		r.held = &held
		if held.Rank.IsSpecial() {
			r.special = importSpecial(st.Special)
			if st.Special.Power != held.Rank || r.special.stage() == StageNone {
				r.special = awaitingFirstPeek{power: held.Rank}
			}
		}
	}

	switch {
	case r.phase == Ended:
		reason := st.Reason
		if reason == 0 {
			reason = DeckExhausted
		}
		r.held = nil
		r.special = specialNone{}
		o := NewOutcome([2]int{r.hands[Host].Score(), r.hands[Guest].Score()}, reason, r.caller)
		r.outcome = &o
	case r.held == nil && r.deck.IsEmpty():
		r.end(DeckExhausted)
	case r.hands[Host].Len() == 0 || r.hands[Guest].Len() == 0:
		r.end(HandEmptied)
	}
	return r, nil
}
