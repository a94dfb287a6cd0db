package game

import (
	"testing"

	"github.com/lox/chukrum/internal/deck"
	"github.com/lox/chukrum/internal/randutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRoundDeals(t *testing.T) {
	t.Parallel()

	r, err := NewRound(randutil.New(3))
	require.NoError(t, err)

	assert.Equal(t, 4, r.HandLen(Host))
	assert.Equal(t, 4, r.HandLen(Guest))
	assert.Equal(t, deck.Size-9, r.DeckLen())
	_, ok := r.DiscardTop()
	assert.True(t, ok)
	assert.Equal(t, Playing, r.Phase())
	assert.Equal(t, Host, r.Current())
	assert.Equal(t, deck.Size, r.CardCount())
}

func TestNewRoundOptions(t *testing.T) {
	t.Parallel()

	r, err := NewRound(randutil.New(3), WithHandSize(6), WithFirstSeat(Guest))
	require.NoError(t, err)
	assert.Equal(t, 6, r.HandLen(Host))
	assert.Equal(t, Guest, r.Current())

	_, err = NewRound(randutil.New(3), WithHandSize(0))
	assert.Error(t, err)
	_, err = NewRound(randutil.New(3), WithHandSize(30))
	assert.Error(t, err)

	assert.Panics(t, func() { _, _ = NewRound(nil) })
}

func TestPlainCardSwapAndDiscard(t *testing.T) {
	t.Parallel()

	r := restoreRound(t, testState("Ks Qs 9s 8s", "2h 3h 4h 5h", "6d 6c 2c", "10d"))

	res := mustApply(t, r, Action{Kind: Draw, Seat: Host})
	require.NotNil(t, res.Drawn)
	assert.Equal(t, deck.Two, res.Drawn.Rank)

	res = mustApply(t, r, Action{Kind: SwapOwn, Seat: Host, Own: 0})
	assert.True(t, res.TurnEnded)
	assert.Equal(t, []deck.Rank{deck.Two, deck.Queen, deck.Nine, deck.Eight}, ranks(r.Reveal(Host)))
	top, _ := r.DiscardTop()
	assert.Equal(t, deck.King, top.Rank)
	assert.Equal(t, Guest, r.Current())

	mustApply(t, r, Action{Kind: Draw, Seat: Guest})
	mustApply(t, r, Action{Kind: Discard, Seat: Guest})
	top, _ = r.DiscardTop()
	assert.Equal(t, deck.Six, top.Rank)
	assert.Equal(t, Host, r.Current())
	assert.Equal(t, 2, r.TurnNumber())
}

func TestRejectedActionsDoNotMutate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		setup  []Action
		action Action
	}{
		{"draw out of turn", nil, Action{Kind: Draw, Seat: Guest}},
		{"swap without draw", nil, Action{Kind: SwapOwn, Seat: Host}},
		{"discard without draw", nil, Action{Kind: Discard, Seat: Host}},
		{"draw twice", []Action{{Kind: Draw, Seat: Host}}, Action{Kind: Draw, Seat: Host}},
		{"swap out of range", []Action{{Kind: Draw, Seat: Host}}, Action{Kind: SwapOwn, Seat: Host, Own: 9}},
		{"peek a plain card", []Action{{Kind: Draw, Seat: Host}}, Action{Kind: PeekOwn, Seat: Host}},
		{"match holding a card", []Action{{Kind: Draw, Seat: Host}}, Action{Kind: MatchDiscard, Seat: Host}},
		{"chukrum holding a card", []Action{{Kind: Draw, Seat: Host}}, Action{Kind: CallChukrum, Seat: Host}},
		{"scramble disabled", []Action{{Kind: Draw, Seat: Host}}, Action{Kind: Scramble, Seat: Host}},
		{"unknown seat", nil, Action{Kind: Draw, Seat: NoSeat}},
		{"unknown kind", nil, Action{Kind: ActionKind(99), Seat: Host}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := restoreRound(t, testState("Ks Qs 9s 8s", "2h 3h 4h 5h", "6d 6c 2c", "10d"))
			for _, a := range tt.setup {
				mustApply(t, r, a)
			}
			requireRejected(t, r, tt.action)
		})
	}
}

func TestJackPermitsExactlyOnePeek(t *testing.T) {
	t.Parallel()

	r := restoreRound(t, testState("Ks Qs 9s 8s", "2h 3h 4h 5h", "6d 6c Jc", "10d"), WithAutoDiscardJack(false))
	mustApply(t, r, Action{Kind: Draw, Seat: Host})

	requireRejected(t, r, Action{Kind: Discard, Seat: Host})
	requireRejected(t, r, Action{Kind: PeekOpponent, Seat: Host, Opponent: 0})
	requireRejected(t, r, Action{Kind: SwapOwn, Seat: Host, Own: 0})

	res := mustApply(t, r, Action{Kind: PeekOwn, Seat: Host, Own: 2})
	require.NotNil(t, res.Peeked)
	assert.Equal(t, deck.Nine, res.Peeked.Rank)
	assert.False(t, res.TurnEnded)

	requireRejected(t, r, Action{Kind: PeekOwn, Seat: Host, Own: 1})
	requireRejected(t, r, Action{Kind: CrossSwap, Seat: Host, Own: 2, Opponent: 0})

	res = mustApply(t, r, Action{Kind: Discard, Seat: Host})
	assert.True(t, res.TurnEnded)
	top, _ := r.DiscardTop()
	assert.Equal(t, deck.Jack, top.Rank)
}

func TestJackAutoDiscard(t *testing.T) {
	t.Parallel()

	r := restoreRound(t, testState("Ks Qs 9s 8s", "2h 3h 4h 5h", "6d 6c Jc", "10d"))
	mustApply(t, r, Action{Kind: Draw, Seat: Host})
	res := mustApply(t, r, Action{Kind: PeekOwn, Seat: Host, Own: 0})
	assert.Equal(t, deck.King, res.Peeked.Rank)
	assert.True(t, res.TurnEnded)
	assert.Equal(t, Guest, r.Current())
	assert.Equal(t, []deck.Rank{deck.King, deck.Queen, deck.Nine, deck.Eight}, ranks(r.Reveal(Host)))
}

func TestQueenOwnVariant(t *testing.T) {
	t.Parallel()

	r := restoreRound(t, testState("Ks Qs 9s 8s", "2h 3h 4h 5h", "6d 6c Qc", "10d"), WithQueenPeek(QueenPeekOwn))
	mustApply(t, r, Action{Kind: Draw, Seat: Host})

	requireRejected(t, r, Action{Kind: PeekOpponent, Seat: Host, Opponent: 1})
	requireRejected(t, r, Action{Kind: CrossSwap, Seat: Host, Own: 0, Opponent: 1})

	mustApply(t, r, Action{Kind: PeekOwn, Seat: Host, Own: 0})
	requireRejected(t, r, Action{Kind: PeekOwn, Seat: Host, Own: 1})
	requireRejected(t, r, Action{Kind: CrossSwap, Seat: Host, Own: 1, Opponent: 1})

	res := mustApply(t, r, Action{Kind: CrossSwap, Seat: Host, Own: 0, Opponent: 1})
	assert.True(t, res.TurnEnded)
	assert.Equal(t, []deck.Rank{deck.Three, deck.Queen, deck.Nine, deck.Eight}, ranks(r.Reveal(Host)))
	assert.Equal(t, []deck.Rank{deck.Two, deck.King, deck.Four, deck.Five}, ranks(r.Reveal(Guest)))
	top, _ := r.DiscardTop()
	assert.Equal(t, deck.Queen, top.Rank)
}

func TestQueenEitherVariant(t *testing.T) {
	t.Parallel()

	r := restoreRound(t, testState("Ks Qs 9s 8s", "2h 3h 4h 5h", "6d 6c Qc", "10d"), WithQueenPeek(QueenPeekEither))
	mustApply(t, r, Action{Kind: Draw, Seat: Host})

	res := mustApply(t, r, Action{Kind: PeekOpponent, Seat: Host, Opponent: 3})
	assert.Equal(t, deck.Five, res.Peeked.Rank)

	requireRejected(t, r, Action{Kind: CrossSwap, Seat: Host, Own: 0, Opponent: 2})
	mustApply(t, r, Action{Kind: Discard, Seat: Host})
	assert.Equal(t, Guest, r.Current())
}

func TestKingPeeksBothSides(t *testing.T) {
	t.Parallel()

	r := restoreRound(t, testState("Ks Qs 9s 8s", "2h 3h 4h 5h", "6d 6c Kc", "10d"))
	mustApply(t, r, Action{Kind: Draw, Seat: Host})
	requireRejected(t, r, Action{Kind: Discard, Seat: Host})

	mustApply(t, r, Action{Kind: PeekOpponent, Seat: Host, Opponent: 0})
	assert.Equal(t, StageAwaitSecondPeek, r.Special().Stage)
	requireRejected(t, r, Action{Kind: PeekOpponent, Seat: Host, Opponent: 1})
	requireRejected(t, r, Action{Kind: Discard, Seat: Host})

	mustApply(t, r, Action{Kind: PeekOwn, Seat: Host, Own: 1})
	assert.Equal(t, StageReady, r.Special().Stage)
	requireRejected(t, r, Action{Kind: CrossSwap, Seat: Host, Own: 0, Opponent: 0})
	requireRejected(t, r, Action{Kind: CrossSwap, Seat: Host, Own: 1, Opponent: 2})

	mustApply(t, r, Action{Kind: CrossSwap, Seat: Host, Own: 1, Opponent: 0})
	assert.Equal(t, []deck.Rank{deck.King, deck.Two, deck.Nine, deck.Eight}, ranks(r.Reveal(Host)))
	assert.Equal(t, []deck.Rank{deck.Queen, deck.Three, deck.Four, deck.Five}, ranks(r.Reveal(Guest)))
	assert.Equal(t, StageNone, r.Special().Stage)
}

func TestMatchDiscard(t *testing.T) {
	t.Parallel()

	t.Run("correct match shrinks hand", func(t *testing.T) {
		t.Parallel()
		r := restoreRound(t, testState("Ks 10s 9s 8s", "2h 3h 4h 5h", "6d 6c Kc", "10d"))
		res := mustApply(t, r, Action{Kind: MatchDiscard, Seat: Host, Own: 1})
		assert.True(t, res.Matched)
		assert.False(t, res.TurnEnded)
		assert.Equal(t, 3, r.HandLen(Host))
		assert.Len(t, r.Snapshot().Discard, 2)
		assert.Equal(t, Host, r.Current())
	})

	t.Run("wrong match draws a penalty", func(t *testing.T) {
		t.Parallel()
		r := restoreRound(t, testState("Ks 10s 9s 8s", "2h 3h 4h 5h", "6d 6c Kc", "10d"))
		res := mustApply(t, r, Action{Kind: MatchDiscard, Seat: Host, Own: 0})
		assert.False(t, res.Matched)
		require.NotNil(t, res.Penalty)
		assert.Equal(t, deck.King, res.Penalty.Rank)
		assert.Equal(t, 5, r.HandLen(Host))
		assert.Len(t, r.Snapshot().Discard, 1)
		assert.Equal(t, 2, r.DeckLen())
	})

	t.Run("chained matches", func(t *testing.T) {
		t.Parallel()
		r := restoreRound(t, testState("10s 10h 9s 8s", "2h 3h 4h 5h", "6d 6c Kc", "10d"))
		mustApply(t, r, Action{Kind: MatchDiscard, Seat: Host, Own: 0})
		mustApply(t, r, Action{Kind: MatchDiscard, Seat: Host, Own: 0})
		assert.Equal(t, []deck.Rank{deck.Nine, deck.Eight}, ranks(r.Reveal(Host)))
	})

	t.Run("out of turn needs the rule", func(t *testing.T) {
		t.Parallel()
		st := testState("Ks 10s 9s 8s", "2h 10h 4h 5h", "6d 6c Kc", "10d")
		r := restoreRound(t, st)
		requireRejected(t, r, Action{Kind: MatchDiscard, Seat: Guest, Own: 1})

		r = restoreRound(t, st, WithMatchOutOfTurn(true))
		res := mustApply(t, r, Action{Kind: MatchDiscard, Seat: Guest, Own: 1})
		assert.True(t, res.Matched)
		assert.Equal(t, Host, r.Current())
	})

	t.Run("empty discard pile", func(t *testing.T) {
		t.Parallel()
		r := restoreRound(t, testState("Ks 10s 9s 8s", "2h 3h 4h 5h", "6d 6c Kc", ""))
		requireRejected(t, r, Action{Kind: MatchDiscard, Seat: Host, Own: 1})
	})
}

func TestMatchDiscardDuplicateSevens(t *testing.T) {
	t.Parallel()

	st := testState("7c 7c", "2h 3h", "6d 6c", "Kc 7d")
	kept := st.Hands[Host][1]
	removed := st.Hands[Host][0]
	r := restoreRound(t, st)

	mustApply(t, r, Action{Kind: MatchDiscard, Seat: Host, Own: 0})

	hand := r.Reveal(Host)
	require.Len(t, hand, 1)
	assert.True(t, hand[0].Same(kept))

	pile := r.Snapshot().Discard
	require.Len(t, pile, 3)
	assert.Equal(t, "7♦", pile[1].String())
	assert.True(t, pile[2].Same(removed))
}

func TestMatchEmptyingHandEndsRound(t *testing.T) {
	t.Parallel()

	r := restoreRound(t, testState("5c", "2h 3h", "6d 6c", "5d"))
	res := mustApply(t, r, Action{Kind: MatchDiscard, Seat: Host, Own: 0})
	assert.True(t, res.RoundEnded)
	o, ok := r.Outcome()
	require.True(t, ok)
	assert.Equal(t, HandEmptied, o.Reason)
	assert.Equal(t, Host, o.Winner)
	assert.Equal(t, [2]int{0, 5}, o.Scores)
}

func TestPenaltyEmptyingDeckEndsRound(t *testing.T) {
	t.Parallel()

	r := restoreRound(t, testState("5c 9c", "2h 3h", "6d", "Kd"))
	res := mustApply(t, r, Action{Kind: MatchDiscard, Seat: Host, Own: 0})
	assert.NotNil(t, res.Penalty)
	assert.True(t, res.RoundEnded)
	o, _ := r.Outcome()
	assert.Equal(t, DeckExhausted, o.Reason)
}

func TestDrawingLastCardEndsRoundAfterTurn(t *testing.T) {
	t.Parallel()

	r := restoreRound(t, testState("Ks Qs", "2h 3h", "4d", "10d"))
	mustApply(t, r, Action{Kind: Draw, Seat: Host})
	assert.Equal(t, Playing, r.Phase())
	assert.Equal(t, 0, r.DeckLen())

	res := mustApply(t, r, Action{Kind: SwapOwn, Seat: Host, Own: 0})
	assert.True(t, res.RoundEnded)
	o, ok := r.Outcome()
	require.True(t, ok)
	assert.Equal(t, DeckExhausted, o.Reason)
	assert.Equal(t, [2]int{16, 5}, o.Scores)
	assert.Equal(t, Guest, o.Winner)

	requireRejected(t, r, Action{Kind: Draw, Seat: Guest})
}

func TestChukrumFinalRound(t *testing.T) {
	t.Parallel()

	r := restoreRound(t, testState("As 2s", "9h 9d", "4d 5d 6d 8d", "10d"))

	res := mustApply(t, r, Action{Kind: CallChukrum, Seat: Host})
	assert.True(t, res.TurnEnded)
	assert.Equal(t, FinalRound, r.Phase())
	assert.Equal(t, Host, r.ChukrumCaller())
	assert.Equal(t, Guest, r.Current())
	assert.Equal(t, 2, r.FinalTurnsLeft())

	mustApply(t, r, Action{Kind: Draw, Seat: Guest})
	mustApply(t, r, Action{Kind: Discard, Seat: Guest})
	assert.Equal(t, FinalRound, r.Phase())
	assert.Equal(t, 1, r.FinalTurnsLeft())
	assert.Equal(t, Host, r.Current())

	requireRejected(t, r, Action{Kind: CallChukrum, Seat: Host})

	mustApply(t, r, Action{Kind: Draw, Seat: Host})
	res = mustApply(t, r, Action{Kind: Discard, Seat: Host})
	assert.True(t, res.RoundEnded)
	assert.Equal(t, Ended, r.Phase())

	o, ok := r.Outcome()
	require.True(t, ok)
	assert.Equal(t, ChukrumResolved, o.Reason)
	assert.Equal(t, Host, o.Caller)
	assert.Equal(t, Host, o.Winner)
}

func TestTieIsAnOutcome(t *testing.T) {
	t.Parallel()

	r := restoreRound(t, testState("4s 5s", "9h", "2d", "10d"))
	mustApply(t, r, Action{Kind: Draw, Seat: Host})
	mustApply(t, r, Action{Kind: Discard, Seat: Host})

	o, ok := r.Outcome()
	require.True(t, ok)
	assert.True(t, o.Tie)
	assert.Equal(t, NoSeat, o.Winner)
}

func TestScramble(t *testing.T) {
	t.Parallel()

	st := testState("Ks Qs", "As 2s 3s 4s 5s 6s 8s 9s", "4d 5d 6d 8d", "10d")
	r := restoreRound(t, st, WithScramble(true))
	before := r.Reveal(Guest)

	mustApply(t, r, Action{Kind: Draw, Seat: Host})
	res := mustApply(t, r, Action{Kind: Scramble, Seat: Host})
	assert.True(t, res.TurnEnded)
	assert.True(t, r.ScrambleUsed(Host))

	after := r.Reveal(Guest)
	assert.ElementsMatch(t, before, after)
	assert.NotEqual(t, before, after)
	assert.Equal(t, []deck.Rank{deck.King, deck.Queen}, ranks(r.Reveal(Host)))
	top, _ := r.DiscardTop()
	assert.Equal(t, deck.Eight, top.Rank)

	mustApply(t, r, Action{Kind: Draw, Seat: Guest})
	mustApply(t, r, Action{Kind: Discard, Seat: Guest})
	mustApply(t, r, Action{Kind: Draw, Seat: Host})
	requireRejected(t, r, Action{Kind: Scramble, Seat: Host})
}

func TestViewHidesHeldCardFromOpponent(t *testing.T) {
	t.Parallel()

	r := restoreRound(t, testState("Ks Qs", "2h 3h", "4d 5d", "10d"))
	mustApply(t, r, Action{Kind: Draw, Seat: Host})

	mine := r.View(Host)
	require.NotNil(t, mine.Held)
	assert.Equal(t, deck.Five, mine.Held.Rank)
	assert.True(t, mine.MyTurn())
	assert.Equal(t, 2, mine.HandSize())

	theirs := r.View(Guest)
	assert.Nil(t, theirs.Held)
	assert.False(t, theirs.MyTurn())
	assert.Nil(t, theirs.Outcome)
}

func TestInFlightToken(t *testing.T) {
	t.Parallel()

	r := restoreRound(t, testState("Ks Qs", "2h 3h", "4d 5d", "10d"))

	token, ok := r.BeginAction()
	require.True(t, ok)
	_, ok = r.BeginAction()
	assert.False(t, ok)

	assert.False(t, r.CompleteAction(token+1))
	assert.True(t, r.InFlight())
	assert.True(t, r.CompleteAction(token))
	assert.False(t, r.CompleteAction(token))

	token, ok = r.BeginAction()
	require.True(t, ok)
	r.CancelAction()
	assert.False(t, r.CompleteAction(token))

	other := restoreRound(t, testState("Ks Qs", "2h 3h", "4d 5d", "10d"))
	next, ok := other.BeginAction()
	require.True(t, ok)
	assert.NotEqual(t, token, next)
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	t.Parallel()

	r := restoreRound(t, testState("Ks Qs 9s 8s", "2h 3h 4h 5h", "6d 6c Kc", "10d"))
	mustApply(t, r, Action{Kind: Draw, Seat: Host})
	mustApply(t, r, Action{Kind: PeekOwn, Seat: Host, Own: 2})

	st := r.Snapshot()
	back := restoreRound(t, st)
	assert.Equal(t, st, back.Snapshot())
	assert.Equal(t, StageAwaitSecondPeek, back.Special().Stage)

	// A special state that does not match the held card starts over.
	st.Special = SpecialState{Stage: StageReady, Power: deck.Queen, Peeks: []Peek{{Side: OwnSide, Pos: 0}}}
	reset := restoreRound(t, st)
	assert.Equal(t, StageAwaitFirstPeek, reset.Special().Stage)
	assert.Equal(t, deck.King, reset.Special().Power)
}

func TestRestoreEndsStuckRound(t *testing.T) {
	t.Parallel()

	r := restoreRound(t, testState("Ks Qs", "2h 3h", "", "10d"))
	assert.Equal(t, Ended, r.Phase())
	o, ok := r.Outcome()
	require.True(t, ok)
	assert.Equal(t, DeckExhausted, o.Reason)
}

func TestEventsArePublished(t *testing.T) {
	t.Parallel()

	bus := NewEventBus()
	rec := &EventRecorder{}
	bus.Subscribe(rec)

	r := restoreRound(t, testState("Ks 10s", "2h 3h", "4d Jd", "10d"), WithEventBus(bus))
	mustApply(t, r, Action{Kind: MatchDiscard, Seat: Host, Own: 1})
	mustApply(t, r, Action{Kind: Draw, Seat: Host})
	mustApply(t, r, Action{Kind: PeekOwn, Seat: Host, Own: 0})

	assert.Equal(t, []EventType{
		EventTypeMatched,
		EventTypeCardDrawn,
		EventTypeCardPeeked,
		EventTypeCardDiscarded,
		EventTypeTurnEnded,
	}, rec.Types())

	bus.Unsubscribe(rec)
	mustApply(t, r, Action{Kind: Draw, Seat: Guest})
	assert.Len(t, rec.Events(), 5)
}

func TestRandomPlayKeepsInvariants(t *testing.T) {
	t.Parallel()

	kinds := []ActionKind{Draw, Discard, SwapOwn, PeekOwn, PeekOpponent, CrossSwap, MatchDiscard, CallChukrum, Scramble}
	for seed := int64(0); seed < 50; seed++ {
		rng := randutil.New(seed)
		r, err := NewRound(randutil.New(seed+1000), WithScramble(true), WithQueenPeek(QueenPeek(seed%2)))
		require.NoError(t, err)

		steps := 0
		for r.Phase() != Ended {
			steps++
			require.Less(t, steps, 20000, "seed %d: round never ended", seed)

			seat := r.Current()
			if rng.IntN(5) == 0 {
				seat = seat.Other()
			}
			a := Action{
				Kind:     kinds[rng.IntN(len(kinds))],
				Seat:     seat,
				Own:      rng.IntN(6),
				Opponent: rng.IntN(6),
			}
			handBefore := r.HandLen(a.Seat)
			res, err := r.Apply(a)
			if err != nil {
				require.ErrorIs(t, err, ErrInvalidAction)
				continue
			}
			require.Equal(t, deck.Size, r.CardCount(), "seed %d after %s", seed, a)

			switch {
			case res.Matched:
				require.Equal(t, handBefore-1, r.HandLen(a.Seat))
			case res.Penalty != nil:
				require.Equal(t, handBefore+1, r.HandLen(a.Seat))
			default:
				require.Equal(t, handBefore, r.HandLen(a.Seat))
			}
		}

		o, ok := r.Outcome()
		require.True(t, ok)
		assert.Equal(t, Score(r.Reveal(Host)), o.Scores[Host])
		assert.Equal(t, Score(r.Reveal(Guest)), o.Scores[Guest])
	}
}
