package game

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
)

// QueenPeek selects which hands a Queen may peek into. Observed rule sets
// disagree, so it is a per-round setting.
type QueenPeek int

const (
	QueenPeekOwn QueenPeek = iota
	QueenPeekEither
)

func (q QueenPeek) String() string {
	if q == QueenPeekEither {
		return "either"
	}
	return "own"
}

func (q QueenPeek) MarshalText() ([]byte, error) {
	return []byte(q.String()), nil
}

func (q *QueenPeek) UnmarshalText(b []byte) error {
	v, err := ParseQueenPeek(string(b))
	if err != nil {
		return err
	}
	*q = v
	return nil
}

// ParseQueenPeek parses "own" or "either"
func ParseQueenPeek(s string) (QueenPeek, error) {
	switch s {
	case "own", "":
		return QueenPeekOwn, nil
	case "either":
		return QueenPeekEither, nil
	}
	return 0, fmt.Errorf("unknown queen peek rule %q", s)
}

// Rules are the per-round rule switches. They travel with the shared record
// so both clients agree on them.
type Rules struct {
	HandSize        int       `json:"handSize"`
	QueenPeek       QueenPeek `json:"queenPeek"`
	MatchOutOfTurn  bool      `json:"matchOutOfTurn"`
	AutoDiscardJack bool      `json:"autoDiscardJack"`
	Scramble        bool      `json:"scramble"`
}

// DefaultRules returns the standard four-card rules
func DefaultRules() Rules {
	return Rules{
		HandSize:        4,
		QueenPeek:       QueenPeekOwn,
		AutoDiscardJack: true,
	}
}

// RoundOption configures a Round during creation.
type RoundOption func(*roundConfig)

type roundConfig struct {
	rules     Rules
	firstSeat Seat
	clock     quartz.Clock
	bus       EventBus
	logger    *log.Logger
	id        string
}

// WithRules replaces the whole rule set
func WithRules(r Rules) RoundOption {
	return func(c *roundConfig) { c.rules = r }
}

// WithHandSize sets the number of cards dealt to each seat
func WithHandSize(n int) RoundOption {
	return func(c *roundConfig) { c.rules.HandSize = n }
}

// WithQueenPeek sets the Queen peek variant
func WithQueenPeek(q QueenPeek) RoundOption {
	return func(c *roundConfig) { c.rules.QueenPeek = q }
}

// WithMatchOutOfTurn allows match-discards while the opponent holds the turn
func WithMatchOutOfTurn(allow bool) RoundOption {
	return func(c *roundConfig) { c.rules.MatchOutOfTurn = allow }
}

// WithAutoDiscardJack controls whether a Jack is discarded straight after its peek
func WithAutoDiscardJack(auto bool) RoundOption {
	return func(c *roundConfig) { c.rules.AutoDiscardJack = auto }
}

// WithScramble enables the once-per-round scramble action
func WithScramble(enabled bool) RoundOption {
	return func(c *roundConfig) { c.rules.Scramble = enabled }
}

// WithFirstSeat sets who moves first
func WithFirstSeat(s Seat) RoundOption {
	return func(c *roundConfig) { c.firstSeat = s }
}

// WithClock sets the clock used for event timestamps
func WithClock(clock quartz.Clock) RoundOption {
	return func(c *roundConfig) { c.clock = clock }
}

// WithEventBus publishes round events to bus
func WithEventBus(bus EventBus) RoundOption {
	return func(c *roundConfig) { c.bus = bus }
}

// WithLogger sets the round logger
func WithLogger(logger *log.Logger) RoundOption {
	return func(c *roundConfig) { c.logger = logger }
}

// WithRoundID sets the round identifier carried on events
func WithRoundID(id string) RoundOption {
	return func(c *roundConfig) { c.id = id }
}
