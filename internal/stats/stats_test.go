package stats

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lox/chukrum/internal/game"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seat(s game.Seat) *game.Seat { return &s }

func exerciseRecorder(t *testing.T, rec Recorder) {
	t.Helper()
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	results := []RoundResult{
		{RecordID: "g1", MatchNumber: 1, Scores: [2]int{5, 20}, Winner: seat(game.Host), Players: [2]string{"ana", "ben"}, At: at},
		{RecordID: "g1", MatchNumber: 2, Scores: [2]int{30, 12}, Winner: seat(game.Guest), Players: [2]string{"ana", "ben"}, At: at},
		{RecordID: "g1", MatchNumber: 3, Scores: [2]int{9, 9}, Players: [2]string{"ana", "ben"}, At: at},
		{RecordID: "g2", MatchNumber: 1, Scores: [2]int{4, 40}, Winner: seat(game.Host), Players: [2]string{"ben", "bot:hard"}, Difficulty: "hard", At: at},
	}
	for _, r := range results {
		require.NoError(t, rec.Record(ctx, r))
	}
	// a repeat delivery of the same round is ignored
	require.NoError(t, rec.Record(ctx, results[0]))

	ana, err := rec.Totals(ctx, "ana")
	require.NoError(t, err)
	assert.Equal(t, Totals{Games: 3, Wins: 1, Losses: 1, Ties: 1}, ana)

	ben, err := rec.Totals(ctx, "ben")
	require.NoError(t, err)
	assert.Equal(t, Totals{Games: 4, Wins: 2, Losses: 1, Ties: 1}, ben)

	nobody, err := rec.Totals(ctx, "nobody")
	require.NoError(t, err)
	assert.Equal(t, Totals{}, nobody)

	assert.Error(t, rec.Record(ctx, RoundResult{MatchNumber: 1}))
	assert.Error(t, rec.Record(ctx, RoundResult{RecordID: "g3"}))
}

func TestSQLiteRecorder(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "stats.db")
	rec, err := Open(context.Background(), DriverSQLite, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rec.Close() })

	exerciseRecorder(t, rec)
}

func TestSQLiteRecorderPersists(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "stats.db")
	rec, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	require.NoError(t, rec.Record(ctx, RoundResult{RecordID: "g", MatchNumber: 1, Players: [2]string{"ana", ""}, Winner: seat(game.Host)}))
	require.NoError(t, rec.Close())

	rec, err = OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer rec.Close()
	totals, err := rec.Totals(ctx, "ana")
	require.NoError(t, err)
	assert.Equal(t, Totals{Games: 1, Wins: 1}, totals)
}

func TestPostgresRecorder(t *testing.T) {
	dsn := os.Getenv("CHUKRUM_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("CHUKRUM_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	rec, err := OpenPostgres(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rec.Close() })

	_, err = rec.pool.Exec(ctx, `TRUNCATE round_results, player_totals`)
	require.NoError(t, err)
	exerciseRecorder(t, rec)
}

func TestOpen(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	for _, driver := range []string{"", "none", "NONE"} {
		rec, err := Open(ctx, driver, "")
		require.NoError(t, err)
		assert.IsType(t, Nop{}, rec)
		require.NoError(t, rec.Record(ctx, RoundResult{}))
	}

	_, err := Open(ctx, "mysql", "x")
	assert.Error(t, err)
	_, err = Open(ctx, DriverSQLite, " ")
	assert.Error(t, err)
	_, err = Open(ctx, DriverPostgres, "")
	assert.Error(t, err)
}

func TestResultFromOutcome(t *testing.T) {
	t.Parallel()

	at := time.Now()
	win := ResultFromOutcome("g", 2, game.NewOutcome([2]int{3, 8}, game.DeckExhausted, game.NoSeat), [2]string{"a", "b"}, at)
	require.NotNil(t, win.Winner)
	assert.Equal(t, game.Host, *win.Winner)
	assert.Equal(t, [2]int{3, 8}, win.Scores)
	assert.Equal(t, 2, win.MatchNumber)

	tie := ResultFromOutcome("g", 3, game.NewOutcome([2]int{8, 8}, game.HandEmptied, game.NoSeat), [2]string{"a", "b"}, at)
	assert.Nil(t, tie.Winner)
}
