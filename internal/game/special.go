package game

import "github.com/lox/chukrum/internal/deck"

// Side distinguishes the actor's own hand from the opponent's
type Side int

const (
	OwnSide Side = iota
	OpponentSide
)

func (s Side) String() string {
	if s == OpponentSide {
		return "opponent"
	}
	return "own"
}

// Peek is a position the actor has looked at during a special power
type Peek struct {
	Side Side `json:"side"`
	Pos  int  `json:"pos"`
}

// special is the nested peek-then-act state of a drawn J, Q or K. Each
// variant carries exactly the data that stage needs.
type special interface {
	stage() Stage
}

type specialNone struct{}

type awaitingFirstPeek struct {
	power deck.Rank
}

type awaitingSecondPeek struct {
	power deck.Rank
	first Peek
}

type readyToResolve struct {
	power deck.Rank
	peeks []Peek
}

func (specialNone) stage() Stage        { return StageNone }
func (awaitingFirstPeek) stage() Stage  { return StageAwaitFirstPeek }
func (awaitingSecondPeek) stage() Stage { return StageAwaitSecondPeek }
func (readyToResolve) stage() Stage     { return StageReady }

// Stage is the exported name of a special sub-state
type Stage int

const (
	StageNone Stage = iota
	StageAwaitFirstPeek
	StageAwaitSecondPeek
	StageReady
)

func (s Stage) String() string {
	switch s {
	case StageAwaitFirstPeek:
		return "awaiting_first_peek"
	case StageAwaitSecondPeek:
		return "awaiting_second_peek"
	case StageReady:
		return "ready"
	default:
		return "none"
	}
}

// SpecialState is a read-only copy of the special sub-state
type SpecialState struct {
	Stage Stage     `json:"stage"`
	Power deck.Rank `json:"power,omitempty"`
	Peeks []Peek    `json:"peeks,omitempty"`
}

func exportSpecial(s special) SpecialState {
	switch v := s.(type) {
	case awaitingFirstPeek:
		return SpecialState{Stage: StageAwaitFirstPeek, Power: v.power}
	case awaitingSecondPeek:
		return SpecialState{Stage: StageAwaitSecondPeek, Power: v.power, Peeks: []Peek{v.first}}
	case readyToResolve:
		return SpecialState{Stage: StageReady, Power: v.power, Peeks: append([]Peek(nil), v.peeks...)}
	default:
		return SpecialState{Stage: StageNone}
	}
}

func importSpecial(s SpecialState) special {
	switch s.Stage {
	case StageAwaitFirstPeek:
		return awaitingFirstPeek{power: s.Power}
	case StageAwaitSecondPeek:
		if len(s.Peeks) == 1 {
			return awaitingSecondPeek{power: s.Power, first: s.Peeks[0]}
		}
	case StageReady:
		return readyToResolve{power: s.Power, peeks: append([]Peek(nil), s.Peeks...)}
	}
	return specialNone{}
}

// peeked returns the position peeked on side, if any
func (r readyToResolve) peeked(side Side) (int, bool) {
	for _, p := range r.peeks {
		if p.Side == side {
			return p.Pos, true
		}
	}
	return 0, false
}
