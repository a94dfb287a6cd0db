package game

import (
	"fmt"

	"github.com/lox/chukrum/internal/deck"
)

// ActionKind enumerates the moves a seat can make
type ActionKind int

const (
	Draw ActionKind = iota + 1
	Discard
	SwapOwn
	PeekOwn
	PeekOpponent
	CrossSwap
	MatchDiscard
	CallChukrum
	Scramble
)

func (k ActionKind) String() string {
	switch k {
	case Draw:
		return "draw"
	case Discard:
		return "discard"
	case SwapOwn:
		return "swap"
	case PeekOwn:
		return "peek_own"
	case PeekOpponent:
		return "peek_opponent"
	case CrossSwap:
		return "cross_swap"
	case MatchDiscard:
		return "match"
	case CallChukrum:
		return "chukrum"
	case Scramble:
		return "scramble"
	default:
		return "unknown"
	}
}

// Action is a single move. Own and Opponent are hand positions; which of
// them are read depends on Kind.
type Action struct {
	Kind     ActionKind `json:"kind"`
	Seat     Seat       `json:"seat"`
	Own      int        `json:"own,omitempty"`
	Opponent int        `json:"opponent,omitempty"`
}

func (a Action) String() string {
	switch a.Kind {
	case SwapOwn, PeekOwn, MatchDiscard:
		return fmt.Sprintf("%s %s(%d)", a.Seat, a.Kind, a.Own)
	case PeekOpponent:
		return fmt.Sprintf("%s %s(%d)", a.Seat, a.Kind, a.Opponent)
	case CrossSwap:
		return fmt.Sprintf("%s %s(%d,%d)", a.Seat, a.Kind, a.Own, a.Opponent)
	default:
		return fmt.Sprintf("%s %s", a.Seat, a.Kind)
	}
}

// Result describes what an applied action did. Peeked is only ever filled
// for the acting seat.
type Result struct {
	Drawn          *deck.Card
	Peeked         *deck.Card
	Matched        bool
	Penalty        *deck.Card
	PenaltySkipped bool
	TurnEnded      bool
	RoundEnded     bool
}
