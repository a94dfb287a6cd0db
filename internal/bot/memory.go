package bot

import (
	"maps"
	"slices"

	"github.com/lox/chukrum/internal/deck"
	"github.com/lox/chukrum/internal/game"
)

// SwapRecord notes that the opponent replaced the card at Pos on Turn
type SwapRecord struct {
	Pos  int
	Turn int
}

// Memory is what the bot remembers during one round. Position maps are
// lookups, never ownership: every read goes through revalidate, which checks
// card identities against the live table.
type Memory struct {
	own       map[int]deck.Card
	opp       map[int]deck.Card
	oppSwaps  []SwapRecord
	discards  []deck.Card
	turnCount int
}

// NewMemory returns an empty memory
func NewMemory() *Memory {
	m := &Memory{}
	m.Reset()
	return m
}

// Reset forgets everything; called at the start of each round
func (m *Memory) Reset() {
	m.own = make(map[int]deck.Card)
	m.opp = make(map[int]deck.Card)
	m.oppSwaps = nil
	m.discards = nil
	m.turnCount = 0
}

// LearnOwn records a face seen or placed in the bot's own hand
func (m *Memory) LearnOwn(pos int, c deck.Card) { m.own[pos] = c }

// LearnOpponent records a face seen in the opponent's hand
func (m *Memory) LearnOpponent(pos int, c deck.Card) { m.opp[pos] = c }

// ForgetOwn drops all knowledge of the bot's own hand
func (m *Memory) ForgetOwn() { clear(m.own) }

// ForgetOpponent drops all knowledge of the opponent's hand
func (m *Memory) ForgetOpponent() { clear(m.opp) }

// RemoveOwn updates positions after the bot's card at pos left its hand
func (m *Memory) RemoveOwn(pos int) { m.own = shiftDown(m.own, pos) }

// RemoveOpponent updates positions after the opponent's card at pos left
func (m *Memory) RemoveOpponent(pos int) { m.opp = shiftDown(m.opp, pos) }

// OpponentSwapped records an opponent swap into pos
func (m *Memory) OpponentSwapped(pos int) {
	delete(m.opp, pos)
	m.oppSwaps = append(m.oppSwaps, SwapRecord{Pos: pos, Turn: m.turnCount})
}

// Discarded records a card that went face up
func (m *Memory) Discarded(c deck.Card) {
	m.discards = append(m.discards, c)
}

// SetTurn records the turn counter
func (m *Memory) SetTurn(n int) { m.turnCount = n }

// OpponentSwaps returns the opponent's swap history
func (m *Memory) OpponentSwaps() []SwapRecord { return slices.Clone(m.oppSwaps) }

// revalidate checks every remembered card against the IDs now at each
// position. A card found elsewhere at the table is moved to its new
// position and side; one that cannot be found is forgotten.
func (m *Memory) revalidate(v game.TableView) {
	all := make([]deck.Card, 0, len(m.own)+len(m.opp))
	for _, pos := range slices.Sorted(maps.Keys(m.own)) {
		all = append(all, m.own[pos])
	}
	for _, pos := range slices.Sorted(maps.Keys(m.opp)) {
		all = append(all, m.opp[pos])
	}

	own := make(map[int]deck.Card)
	opp := make(map[int]deck.Card)
	for _, c := range all {
		if pos := slices.Index(v.OwnIDs, c.ID); pos >= 0 {
			own[pos] = c
		} else if pos := slices.Index(v.OpponentIDs, c.ID); pos >= 0 {
			opp[pos] = c
		}
	}
	m.own, m.opp = own, opp
}

// Known returns the validated map of own positions to cards
func (m *Memory) Known(v game.TableView) map[int]deck.Card {
	m.revalidate(v)
	return maps.Clone(m.own)
}

// KnownOpponent returns the validated map of opponent positions to cards
func (m *Memory) KnownOpponent(v game.TableView) map[int]deck.Card {
	m.revalidate(v)
	return maps.Clone(m.opp)
}

// unknownOwn lists own positions with no valid memory
func (m *Memory) unknownOwn(v game.TableView) []int {
	m.revalidate(v)
	var out []int
	for pos := range v.OwnIDs {
		if _, ok := m.own[pos]; !ok {
			out = append(out, pos)
		}
	}
	return out
}

// swapCounts counts opponent swaps per position
func (m *Memory) swapCounts(handSize int) []int {
	counts := make([]int, handSize)
	for _, s := range m.oppSwaps {
		if s.Pos < handSize {
			counts[s.Pos]++
		}
	}
	return counts
}

// unseenAverage estimates the value of a card the bot has never seen, from
// everything it has seen this round.
func (m *Memory) unseenAverage() float64 {
	const deckTotal = 4 * (1 + 2 + 3 + 4 + 5 + 6 - 1 + 8 + 9 + 10 + 11 + 12 + 13)
	seen, sum := 0, 0
	for _, c := range m.discards {
		seen++
		sum += c.Value()
	}
	for _, c := range m.own {
		seen++
		sum += c.Value()
	}
	for _, c := range m.opp {
		seen++
		sum += c.Value()
	}
	if seen >= deck.Size {
		return 0
	}
	return float64(deckTotal-sum) / float64(deck.Size-seen)
}

func shiftDown(m map[int]deck.Card, removed int) map[int]deck.Card {
	out := make(map[int]deck.Card, len(m))
	for pos, c := range m {
		switch {
		case pos < removed:
			out[pos] = c
		case pos > removed:
			out[pos-1] = c
		}
	}
	return out
}
