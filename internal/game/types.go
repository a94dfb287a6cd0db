package game

import (
	"errors"
	"fmt"
)

// Seat identifies one side of the table. In solo play the human sits at
// Host and the bot at Guest.
type Seat int

const (
	NoSeat Seat = -1
	Host   Seat = 0
	Guest  Seat = 1
)

// Other returns the opposing seat
func (s Seat) Other() Seat {
	if s == Host {
		return Guest
	}
	return Host
}

// Valid reports whether s is Host or Guest
func (s Seat) Valid() bool {
	return s == Host || s == Guest
}

func (s Seat) String() string {
	switch s {
	case Host:
		return "host"
	case Guest:
		return "guest"
	default:
		return "none"
	}
}

// Phase is the top-level round phase
type Phase int

const (
	Playing Phase = iota
	FinalRound
	Ended
)

func (p Phase) String() string {
	switch p {
	case Playing:
		return "playing"
	case FinalRound:
		return "final_round"
	case Ended:
		return "ended"
	default:
		return "unknown"
	}
}

// EndReason records which trigger ended a round
type EndReason int

const (
	DeckExhausted EndReason = iota + 1
	HandEmptied
	ChukrumResolved
)

func (r EndReason) String() string {
	switch r {
	case DeckExhausted:
		return "deck_exhausted"
	case HandEmptied:
		return "hand_emptied"
	case ChukrumResolved:
		return "chukrum_resolved"
	default:
		return "unknown"
	}
}

// Outcome is the scored result of an ended round. A tie is a normal outcome
// with Winner set to NoSeat.
type Outcome struct {
	Scores [2]int
	Winner Seat
	Tie    bool
	Reason EndReason
	Caller Seat
}

// NewOutcome scores a round from the two hand totals
func NewOutcome(scores [2]int, reason EndReason, caller Seat) Outcome {
	o := Outcome{Scores: scores, Winner: NoSeat, Reason: reason, Caller: caller}
	switch {
	case scores[Host] < scores[Guest]:
		o.Winner = Host
	case scores[Guest] < scores[Host]:
		o.Winner = Guest
	default:
		o.Tie = true
	}
	return o
}

var (
	// ErrInvalidAction is wrapped by every rejected action. Rejected actions
	// never mutate the round.
	ErrInvalidAction = errors.New("invalid action")
	ErrNotYourTurn   = fmt.Errorf("%w: not your turn", ErrInvalidAction)
	ErrRoundOver     = fmt.Errorf("%w: round is over", ErrInvalidAction)
)

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidAction}, args...)...)
}
