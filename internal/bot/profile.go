package bot

import (
	"fmt"
	"strings"

	"github.com/lox/chukrum/internal/game"
)

// Difficulty selects a Profile
type Difficulty int

const (
	Easy Difficulty = iota
	Normal
	Hard
)

func (d Difficulty) String() string {
	switch d {
	case Easy:
		return "easy"
	case Normal:
		return "normal"
	case Hard:
		return "hard"
	default:
		return "unknown"
	}
}

// ParseDifficulty accepts easy, normal or hard ("extreme" is an alias for hard)
func ParseDifficulty(s string) (Difficulty, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "easy":
		return Easy, nil
	case "normal", "medium", "":
		return Normal, nil
	case "hard", "extreme":
		return Hard, nil
	}
	return 0, fmt.Errorf("unknown difficulty %q", s)
}

// ChukrumRule is one acceptance tier for calling Chukrum. Every field is a
// bound on ChukrumInputs; a zero MaxDeck means any deck size.
type ChukrumRule struct {
	MaxUnknown  int
	MinKnown    int
	MaxSum      int
	MinTurns    int
	MaxDeck     int
	RequireCalm bool
}

// Profile holds the parameters of the single bot algorithm. Difficulty
// tiers differ only in these values.
type Profile struct {
	Difficulty Difficulty

	// LowSwapValue and LowSwapChance: a drawn card worth at most
	// LowSwapValue is kept with probability LowSwapChance.
	LowSwapValue  int
	LowSwapChance float64

	// ReplaceWorstKnown keeps any drawn card that beats the worst known card.
	ReplaceWorstKnown bool

	// Explore thresholds for swapping into unknown positions, early and late
	// in the round. Zero disables exploring.
	ExploreEarly int
	ExploreLate  int
	EarlyTurns   int

	// SpecialSwapMinValue is the lowest own card value worth trading away
	// with a Queen or King.
	SpecialSwapMinValue int

	// Chukrum gating. ChukrumAcceptChance is applied after the deterministic
	// rules pass.
	ChukrumRules        []ChukrumRule
	ChukrumAcceptChance float64
	CalmSwaps           int
	MaturityTurns       int
	DeferOnPair         bool

	OmniscientTargeting bool
	MatchFromMemory     bool

	// ReactiveMatch matches from memory out of turn whenever a new card
	// lands on the discard pile.
	ReactiveMatch bool

	// MovesFirst opens every round.
	MovesFirst bool

	Scramble        bool
	ScrambleMargin  int
	ScrambleMinTurn int
}

// ProfileFor returns the built-in profile for d
func ProfileFor(d Difficulty) Profile {
	switch d {
	case Easy:
		return Profile{
			Difficulty:          Easy,
			LowSwapValue:        4,
			LowSwapChance:       0.3,
			ExploreEarly:        6,
			ExploreLate:         6,
			EarlyTurns:          4,
			SpecialSwapMinValue: 15,
			CalmSwaps:           4,
		}
	case Hard:
		return Profile{
			Difficulty:          Hard,
			LowSwapValue:        3,
			LowSwapChance:       1,
			ReplaceWorstKnown:   true,
			ExploreEarly:        8,
			ExploreLate:         5,
			EarlyTurns:          4,
			SpecialSwapMinValue: 5,
			ChukrumRules: []ChukrumRule{
				{MaxUnknown: 0, MaxSum: 5},
				{MaxUnknown: 0, MaxSum: 8, RequireCalm: true},
				{MaxUnknown: 1, MinKnown: 3, MaxSum: 3, MinTurns: 6},
				{MaxUnknown: 1, MinKnown: 3, MaxSum: 6, MaxDeck: 7, RequireCalm: true},
			},
			ChukrumAcceptChance: 1,
			CalmSwaps:           4,
			MaturityTurns:       6,
			DeferOnPair:         true,
			OmniscientTargeting: true,
			MatchFromMemory:     true,
			ReactiveMatch:       true,
			MovesFirst:          true,
			Scramble:            true,
			ScrambleMargin:      10,
			ScrambleMinTurn:     6,
		}
	default:
		return Profile{
			Difficulty:          Normal,
			LowSwapValue:        4,
			LowSwapChance:       0.5,
			ReplaceWorstKnown:   true,
			ExploreEarly:        6,
			ExploreLate:         5,
			EarlyTurns:          4,
			SpecialSwapMinValue: 9,
			ChukrumRules: []ChukrumRule{
				{MaxUnknown: 0, MaxSum: 6},
			},
			ChukrumAcceptChance: 0.3,
			CalmSwaps:           4,
			MatchFromMemory:     true,
		}
	}
}

// TableRules returns base with the optional rules the seated profiles rely
// on switched on: the panic scramble, and out-of-turn matching for bots
// that react to discards.
func TableRules(base game.Rules, profiles ...Profile) game.Rules {
	for _, p := range profiles {
		if p.Scramble {
			base.Scramble = true
		}
		if p.ReactiveMatch {
			base.MatchOutOfTurn = true
		}
	}
	return base
}

// CallsChukrum reports whether the profile ever calls Chukrum
func (p Profile) CallsChukrum() bool {
	return len(p.ChukrumRules) > 0 && p.ChukrumAcceptChance > 0
}

func (p Profile) exploreThreshold(turn int) int {
	if turn <= p.EarlyTurns {
		return p.ExploreEarly
	}
	return p.ExploreLate
}
