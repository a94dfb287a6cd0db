package stats

import (
	"math"
	"testing"

	"github.com/lox/chukrum/internal/game"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSampleEmpty(t *testing.T) {
	t.Parallel()

	var s Sample
	assert.Zero(t, s.Mean())
	assert.Zero(t, s.Variance())
	assert.Zero(t, s.StdDev())
	assert.Zero(t, s.StdError())
	assert.Zero(t, s.Median())
	assert.Zero(t, s.Percentile(0.9))
}

func TestSampleMoments(t *testing.T) {
	t.Parallel()

	var s Sample
	for _, v := range []float64{2, 4, 4, 4, 5, 5, 7, 9} {
		s.Add(v)
	}
	assert.InDelta(t, 5.0, s.Mean(), 1e-9)
	assert.InDelta(t, 32.0/7.0, s.Variance(), 1e-9)
	assert.InDelta(t, math.Sqrt(32.0/7.0), s.StdDev(), 1e-9)
	assert.InDelta(t, 4.5, s.Median(), 1e-9)
	assert.InDelta(t, 2.0, s.Percentile(0), 1e-9)
	assert.InDelta(t, 9.0, s.Percentile(1), 1e-9)

	lo, hi := s.ConfidenceInterval95()
	assert.Less(t, lo, s.Mean())
	assert.Greater(t, hi, s.Mean())
	assert.InDelta(t, s.Mean(), (lo+hi)/2, 1e-9)
}

func TestSummary(t *testing.T) {
	t.Parallel()

	outcomes := []game.Outcome{
		game.NewOutcome([2]int{4, 12}, game.ChukrumResolved, game.Host),
		game.NewOutcome([2]int{15, 6}, game.ChukrumResolved, game.Host),
		game.NewOutcome([2]int{10, 10}, game.DeckExhausted, game.NoSeat),
		game.NewOutcome([2]int{9, 0}, game.HandEmptied, game.NoSeat),
	}
	var a, b Summary
	for i, o := range outcomes {
		if i%2 == 0 {
			a.Add(o)
		} else {
			b.Add(o)
		}
	}
	var s Summary
	s.Merge(&a)
	s.Merge(&b)

	require.NoError(t, s.Validate())
	assert.Equal(t, 4, s.Rounds)
	assert.Equal(t, [2]int{1, 2}, s.Wins)
	assert.Equal(t, 1, s.Ties)
	assert.Equal(t, [2]int{2, 0}, s.Calls)
	assert.Equal(t, [2]int{1, 0}, s.CallWins)
	assert.Equal(t, 2, s.Reasons[game.ChukrumResolved])
	assert.InDelta(t, 0.25, s.WinRate(game.Host), 1e-9)
	assert.InDelta(t, 0.5, s.WinRate(game.Guest), 1e-9)
	assert.InDelta(t, 9.5, s.Scores[game.Host].Mean(), 1e-9)
	assert.InDelta(t, 2.5, s.Margin.Mean(), 1e-9)
}

func TestSummaryValidateCatchesDrift(t *testing.T) {
	t.Parallel()

	var empty Summary
	assert.Error(t, empty.Validate())

	var s Summary
	s.Add(game.NewOutcome([2]int{1, 2}, game.DeckExhausted, game.NoSeat))
	s.Ties++
	assert.Error(t, s.Validate())
}
