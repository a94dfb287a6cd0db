package stats

import (
	"fmt"
	"math"
	"sort"

	"github.com/lox/chukrum/internal/game"
)

// Sample accumulates a series of values
type Sample struct {
	N      int
	Sum    float64
	SumSq  float64
	Values []float64
}

// Add incorporates a value
func (s *Sample) Add(v float64) {
	s.N++
	s.Sum += v
	s.SumSq += v * v
	s.Values = append(s.Values, v)
}

// Mean returns the arithmetic mean
func (s *Sample) Mean() float64 {
	if s.N == 0 {
		return 0
	}
	return s.Sum / float64(s.N)
}

// Variance returns the sample variance
func (s *Sample) Variance() float64 {
	if s.N < 2 {
		return 0
	}
	mean := s.Mean()
	return (s.SumSq - float64(s.N)*mean*mean) / float64(s.N-1)
}

// StdDev returns the sample standard deviation
func (s *Sample) StdDev() float64 {
	return math.Sqrt(math.Max(s.Variance(), 0))
}

// StdError returns the standard error of the mean
func (s *Sample) StdError() float64 {
	if s.N == 0 {
		return 0
	}
	return s.StdDev() / math.Sqrt(float64(s.N))
}

// ConfidenceInterval95 returns the 95% confidence interval for the mean
func (s *Sample) ConfidenceInterval95() (float64, float64) {
	mean := s.Mean()
	margin := 1.96 * s.StdError()
	return mean - margin, mean + margin
}

// Median returns the median value
func (s *Sample) Median() float64 {
	return s.Percentile(0.5)
}

// Percentile returns the value at p (0.0 to 1.0), interpolating between
// neighbours
func (s *Sample) Percentile(p float64) float64 {
	if len(s.Values) == 0 {
		return 0
	}
	sorted := make([]float64, len(s.Values))
	copy(sorted, s.Values)
	sort.Float64s(sorted)

	index := p * float64(len(sorted)-1)
	lower := int(index)
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	weight := index - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

// Summary aggregates simulated rounds between two fixed seats
type Summary struct {
	Rounds  int
	Scores  [2]Sample
	Margin  Sample // host score minus guest score
	Wins    [2]int
	Ties    int
	Reasons map[game.EndReason]int

	// Chukrum calls, and how many the caller went on to win
	Calls    [2]int
	CallWins [2]int
}

// Add incorporates one ended round
func (s *Summary) Add(o game.Outcome) {
	if s.Reasons == nil {
		s.Reasons = make(map[game.EndReason]int)
	}
	s.Rounds++
	s.Scores[game.Host].Add(float64(o.Scores[game.Host]))
	s.Scores[game.Guest].Add(float64(o.Scores[game.Guest]))
	s.Margin.Add(float64(o.Scores[game.Host] - o.Scores[game.Guest]))
	s.Reasons[o.Reason]++

	if o.Tie {
		s.Ties++
	} else {
		s.Wins[o.Winner]++
	}
	if o.Caller.Valid() {
		s.Calls[o.Caller]++
		if !o.Tie && o.Winner == o.Caller {
			s.CallWins[o.Caller]++
		}
	}
}

// Merge folds other into s, for combining per-worker summaries
func (s *Summary) Merge(other *Summary) {
	if s.Reasons == nil {
		s.Reasons = make(map[game.EndReason]int)
	}
	s.Rounds += other.Rounds
	for seat := range 2 {
		s.Scores[seat].merge(&other.Scores[seat])
		s.Wins[seat] += other.Wins[seat]
		s.Calls[seat] += other.Calls[seat]
		s.CallWins[seat] += other.CallWins[seat]
	}
	s.Margin.merge(&other.Margin)
	s.Ties += other.Ties
	for r, n := range other.Reasons {
		s.Reasons[r] += n
	}
}

func (s *Sample) merge(other *Sample) {
	s.N += other.N
	s.Sum += other.Sum
	s.SumSq += other.SumSq
	s.Values = append(s.Values, other.Values...)
}

// WinRate returns the share of rounds seat won
func (s *Summary) WinRate(seat game.Seat) float64 {
	if s.Rounds == 0 || !seat.Valid() {
		return 0
	}
	return float64(s.Wins[seat]) / float64(s.Rounds)
}

// Validate checks the counters agree with each other
func (s *Summary) Validate() error {
	if s.Rounds <= 0 {
		return fmt.Errorf("invalid rounds count: %d", s.Rounds)
	}
	if got := s.Wins[game.Host] + s.Wins[game.Guest] + s.Ties; got != s.Rounds {
		return fmt.Errorf("wins and ties (%d) do not match rounds (%d)", got, s.Rounds)
	}
	for seat := range 2 {
		if s.Scores[seat].N != s.Rounds || len(s.Scores[seat].Values) != s.Rounds {
			return fmt.Errorf("seat %d has %d scores for %d rounds", seat, s.Scores[seat].N, s.Rounds)
		}
		if s.CallWins[seat] > s.Calls[seat] {
			return fmt.Errorf("seat %d won %d of %d calls", seat, s.CallWins[seat], s.Calls[seat])
		}
	}
	reasons := 0
	for _, n := range s.Reasons {
		reasons += n
	}
	if reasons != s.Rounds {
		return fmt.Errorf("end reasons (%d) do not match rounds (%d)", reasons, s.Rounds)
	}
	return nil
}
