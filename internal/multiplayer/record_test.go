package multiplayer

import (
	"testing"
	"time"

	"github.com/lox/chukrum/internal/deck"
	"github.com/lox/chukrum/internal/game"
	"github.com/lox/chukrum/internal/randutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecord() *Record {
	rec := &Record{
		ID:                 "01jabcdefghjkmnpqrstvwxyz0",
		Version:            7,
		HostID:             "ana",
		GuestID:            "ben",
		CreatedAt:          time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC),
		Rules:              game.DefaultRules(),
		MatchNumber:        2,
		RematchRequestedBy: "ben",
	}
	rec.SetState(tableState("Ks Qs 9s 8s", "2h 3h 4h 5h", "6d 6c 2c", "10d"))
	return rec
}

func TestDiffMergeRoundTrip(t *testing.T) {
	t.Parallel()

	before := sampleRecord()
	after := before.Clone()
	after.HostHand[0] = deck.NewCard(deck.Clubs, deck.Ace)
	after.RematchRequestedBy = ""
	after.Chat = append(after.Chat, ChatMessage{Sender: "ana", Text: "gg", Seq: 1,
		Timestamp: time.Date(2026, 4, 2, 9, 31, 0, 0, time.UTC)})
	after.HostHeartbeat = time.Date(2026, 4, 2, 9, 32, 0, 0, time.UTC)

	p, err := Diff(before, after)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"hostHand", "rematchRequestedBy", "chat", "hostHeartbeat"}, keys(p))
	assert.Nil(t, p["rematchRequestedBy"])

	merged, err := Merge(before, p)
	require.NoError(t, err)
	assert.Equal(t, after, merged)
}

func TestDiffOfEqualRecordsIsEmpty(t *testing.T) {
	t.Parallel()

	rec := sampleRecord()
	p, err := Diff(rec, rec.Clone())
	require.NoError(t, err)
	assert.Empty(t, p)
}

func TestMergeIgnoresStoreFields(t *testing.T) {
	t.Parallel()

	rec := sampleRecord()
	merged, err := Merge(rec, Patch{"id": "other", "version": 99, "lastAction": "x"})
	require.NoError(t, err)
	assert.Equal(t, rec.ID, merged.ID)
	assert.Equal(t, rec.Version, merged.Version)
	assert.Equal(t, "x", merged.LastAction)

	_, err = Merge(rec, Patch{"matchNumber": "two"})
	assert.Error(t, err)
}

func TestRecordStateRoundTrip(t *testing.T) {
	t.Parallel()

	rec := sampleRecord()
	round, err := game.Restore(randutil.New(1), rec.State(), game.WithRules(rec.Rules))
	require.NoError(t, err)
	_, err = round.Apply(game.Action{Kind: game.Draw, Seat: game.Host})
	require.NoError(t, err)

	next := rec.Clone()
	next.SetState(round.Snapshot())
	require.NotNil(t, next.Held)
	assert.Equal(t, deck.Two, next.Held.Rank)
	assert.Len(t, next.Deck, 2)
	assert.Equal(t, rec.CardCount(), next.CardCount())
	assert.Equal(t, StatusPlaying, next.Status)
	assert.False(t, next.State().PendingEnd)

	next.Deck = nil
	assert.True(t, next.State().PendingEnd, "a held card with nothing left to draw ends the round after the turn")
}

func TestRecordKeepsLifecycleStatus(t *testing.T) {
	t.Parallel()

	rec := sampleRecord()
	rec.Status = StatusAbandoned
	rec.SetState(tableState("As", "2s", "3s", "4s"))
	assert.Equal(t, StatusAbandoned, rec.Status)

	rec.Status = StatusWaiting
	rec.SetState(tableState("As", "2s", "3s", "4s"))
	assert.Equal(t, StatusWaiting, rec.Status)
}

func TestRecordOutcome(t *testing.T) {
	t.Parallel()

	rec := sampleRecord()
	_, ok := rec.Outcome()
	assert.False(t, ok)

	rec.Status = StatusEnded
	rec.EndReason = game.ChukrumResolved
	rec.ChukrumCaller = game.Guest
	o, ok := rec.Outcome()
	require.True(t, ok)
	assert.Equal(t, [2]int{13 + 12 + 9 + 8, 2 + 3 + 4 + 5}, o.Scores)
	assert.Equal(t, game.Guest, o.Winner)
	assert.Equal(t, game.Guest, o.Caller)
	assert.Equal(t, game.ChukrumResolved, o.Reason)
}

func TestSeries(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		target int
		host   int
		guest  int
		over   bool
		winner game.Seat
	}{
		{"no target", 0, 500, 10, false, game.NoSeat},
		{"below target", 100, 60, 99, false, game.NoSeat},
		{"guest reaches target", 100, 60, 100, true, game.Host},
		{"host passes target", 100, 130, 90, true, game.Guest},
		{"both level past target", 100, 120, 120, true, game.NoSeat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := &Record{TargetScore: tt.target, HostCumulativeScore: tt.host, GuestCumulativeScore: tt.guest}
			assert.Equal(t, tt.over, rec.SeriesOver())
			assert.Equal(t, tt.winner, rec.SeriesWinner())
		})
	}
}

func TestSeatOf(t *testing.T) {
	t.Parallel()

	rec := sampleRecord()
	assert.Equal(t, game.Host, rec.SeatOf("ana"))
	assert.Equal(t, game.Guest, rec.SeatOf("ben"))
	assert.Equal(t, game.NoSeat, rec.SeatOf("cy"))
	assert.Equal(t, game.NoSeat, rec.SeatOf(""))
	assert.Equal(t, "ben", rec.PlayerID(game.Guest))
}

func TestNextChatSeqIsPerSender(t *testing.T) {
	t.Parallel()

	rec := &Record{Chat: []ChatMessage{{Sender: "ana", Seq: 1}, {Sender: "ben", Seq: 1}, {Sender: "ana", Seq: 2}}}
	assert.Equal(t, 3, rec.nextChatSeq("ana"))
	assert.Equal(t, 2, rec.nextChatSeq("ben"))
	assert.Equal(t, 1, rec.nextChatSeq("cy"))
}

func keys(p Patch) []string {
	out := make([]string, 0, len(p))
	for k := range p {
		out = append(out, k)
	}
	return out
}
