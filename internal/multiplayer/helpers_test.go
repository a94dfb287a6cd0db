package multiplayer

import (
	"context"
	"testing"

	"github.com/coder/quartz"
	"github.com/lox/chukrum/internal/deck"
	"github.com/lox/chukrum/internal/game"
	"github.com/lox/chukrum/internal/randutil"
	"github.com/stretchr/testify/require"
)

// tableState builds a round with the host to move. The last card of
// deckCards is drawn first; the last card of discard is face up.
func tableState(host, guest, deckCards, discard string) game.State {
	return game.State{
		Hands:         [2][]deck.Card{deck.MustParseCards(host), deck.MustParseCards(guest)},
		Deck:          deck.MustParseCards(deckCards),
		Discard:       deck.MustParseCards(discard),
		First:         game.Host,
		Current:       game.Host,
		ChukrumCaller: game.NoSeat,
	}
}

type fixture struct {
	store *MemoryStore
	clock *quartz.Mock
	id    string
	host  *Session
	guest *Session
}

// newFixture seats ana (host) and ben (guest) at a game holding st
func newFixture(t *testing.T, st game.State, edit ...func(*Record)) *fixture {
	t.Helper()
	ctx := context.Background()
	clock := quartz.NewMock(t)
	store, err := NewMemoryStore(WithStoreClock(clock))
	require.NoError(t, err)

	rec := &Record{
		HostID:      "ana",
		GuestID:     "ben",
		Rules:       game.DefaultRules(),
		MatchNumber: 1,
		CreatedAt:   clock.Now(),
	}
	rec.SetState(st)
	for _, fn := range edit {
		fn(rec)
	}
	require.NoError(t, store.Create(ctx, rec))

	f := &fixture{store: store, clock: clock, id: rec.ID}
	f.host = f.resume(t, store, "ana")
	f.guest = f.resume(t, store, "ben")
	return f
}

func (f *fixture) resume(t *testing.T, store Store, player string) *Session {
	t.Helper()
	s, err := Resume(context.Background(), store, f.id, player,
		WithClock(f.clock), WithRand(randutil.New(int64(len(player)))))
	require.NoError(t, err)
	return s
}

func (f *fixture) record(t *testing.T) *Record {
	t.Helper()
	rec, err := f.store.Get(context.Background(), f.id)
	require.NoError(t, err)
	return rec
}

func submit(t *testing.T, s *Session, kind game.ActionKind, pos ...int) game.Result {
	t.Helper()
	a := game.Action{Kind: kind}
	if len(pos) > 0 {
		a.Own = pos[0]
	}
	if len(pos) > 1 {
		a.Opponent = pos[1]
	}
	res, err := s.Submit(context.Background(), a)
	require.NoError(t, err, "submit %s", a)
	return res
}

func ranksOf(cards []deck.Card) []deck.Rank {
	out := make([]deck.Rank, len(cards))
	for i, c := range cards {
		out[i] = c.Rank
	}
	return out
}
