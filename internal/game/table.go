package game

import (
	"context"

	"github.com/lox/chukrum/internal/deck"
)

// TableView is what one seat can see. Hidden faces are never included;
// card IDs are, because a player can always tell which physical card sits
// where even without knowing its face.
type TableView struct {
	RoundID        string
	Seat           Seat
	Phase          Phase
	Current        Seat
	TurnNumber     int
	DeckLeft       int
	DiscardTop     *deck.Card
	Held           *deck.Card
	Special        SpecialState
	OwnIDs         []string
	OpponentIDs    []string
	ChukrumCaller  Seat
	FinalTurnsLeft int
	CanScramble    bool
	Rules          Rules
	Outcome        *Outcome
}

// MyTurn reports whether the viewing seat owns the turn
func (v TableView) MyTurn() bool {
	return v.Phase != Ended && v.Current == v.Seat
}

// HandSize is the number of cards the viewing seat holds
func (v TableView) HandSize() int {
	return len(v.OwnIDs)
}

// View builds the table as seen from seat
func (r *Round) View(s Seat) TableView {
	v := TableView{
		RoundID:        r.id,
		Seat:           s,
		Phase:          r.phase,
		Current:        r.current,
		TurnNumber:     r.turnNumber,
		DeckLeft:       r.deck.Len(),
		OwnIDs:         ids(r.hands[s]),
		OpponentIDs:    ids(r.hands[s.Other()]),
		ChukrumCaller:  r.caller,
		FinalTurnsLeft: r.finalTurnsLeft,
		CanScramble:    r.rules.Scramble && !r.scrambleUsed[s],
		Rules:          r.rules,
		Special:        SpecialState{Stage: StageNone},
	}
	if top, ok := r.discard.Top(); ok {
		v.DiscardTop = &top
	}
	if r.held != nil && r.current == s {
		held := *r.held
		v.Held = &held
		v.Special = exportSpecial(r.special)
	}
	if r.outcome != nil {
		o := *r.outcome
		v.Outcome = &o
	}
	return v
}

func ids(h *Hand) []string {
	out := make([]string, h.Len())
	for i, c := range h.cards {
		out[i] = c.ID
	}
	return out
}

// Table is the surface an Agent plays through. Apply always acts for the
// seat the table was created for.
type Table interface {
	View() TableView
	Apply(a Action) (Result, error)
	Reveal(s Seat) []deck.Card
}

type seatTable struct {
	round *Round
	seat  Seat
}

// TableFor returns a Table bound to seat
func (r *Round) TableFor(s Seat) Table {
	return seatTable{round: r, seat: s}
}

func (t seatTable) View() TableView { return t.round.View(t.seat) }

func (t seatTable) Apply(a Action) (Result, error) {
	a.Seat = t.seat
	return t.round.Apply(a)
}

func (t seatTable) Reveal(s Seat) []deck.Card { return t.round.Reveal(s) }

// Agent plays one complete turn for its seat and returns. It may issue
// match-discards before its draw.
type Agent interface {
	PlayTurn(ctx context.Context, t Table) error
}

// Reactor is an Agent that may also act out of turn, once each time a new
// card lands on top of the discard pile. React may only issue
// match-discards.
type Reactor interface {
	Agent
	Reacts() bool
	React(ctx context.Context, t Table) error
}
