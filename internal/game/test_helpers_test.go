package game

import (
	"testing"

	"github.com/lox/chukrum/internal/deck"
	"github.com/lox/chukrum/internal/randutil"
	"github.com/stretchr/testify/require"
)

// testState builds a round state from card lists. The last card of
// deckCards is the top of the draw pile; the last card of discard is face up.
func testState(host, guest, deckCards, discard string) State {
	return State{
		Hands:         [2][]deck.Card{deck.MustParseCards(host), deck.MustParseCards(guest)},
		Deck:          deck.MustParseCards(deckCards),
		Discard:       deck.MustParseCards(discard),
		First:         Host,
		Current:       Host,
		ChukrumCaller: NoSeat,
	}
}

func restoreRound(t *testing.T, st State, opts ...RoundOption) *Round {
	t.Helper()
	r, err := Restore(randutil.New(1), st, opts...)
	require.NoError(t, err)
	return r
}

func mustApply(t *testing.T, r *Round, a Action) Result {
	t.Helper()
	res, err := r.Apply(a)
	require.NoError(t, err, "apply %s", a)
	return res
}

// requireRejected applies a and checks the round did not change
func requireRejected(t *testing.T, r *Round, a Action) {
	t.Helper()
	before := r.Snapshot()
	_, err := r.Apply(a)
	require.ErrorIs(t, err, ErrInvalidAction, "apply %s", a)
	require.Equal(t, before, r.Snapshot(), "rejected %s mutated the round", a)
}

func ranks(cards []deck.Card) []deck.Rank {
	out := make([]deck.Rank, len(cards))
	for i, c := range cards {
		out[i] = c.Rank
	}
	return out
}
