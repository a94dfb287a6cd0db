// Package simulator plays bot-versus-bot rounds to compare difficulty
// profiles.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lox/chukrum/internal/bot"
	"github.com/lox/chukrum/internal/game"
	"github.com/lox/chukrum/internal/randutil"
	"github.com/lox/chukrum/internal/stats"
	"golang.org/x/sync/errgroup"
)

// maxTurns bounds a round. A 52-card deck runs out long before this.
const maxTurns = 500

// Config holds configuration for running simulations
type Config struct {
	Deals   int
	A       bot.Profile
	B       bot.Profile
	Rules   game.Rules
	Seed    int64
	Workers int
	Timeout time.Duration
	Logger  *log.Logger
}

// Simulator runs Chukrum round simulations. Every deal is played twice with
// the bots' seats swapped, so neither profile profits from a lucky deal or
// from moving first. In the Summary, the Host slot is always profile A.
type Simulator struct {
	config Config
}

// New creates a new simulator with the given configuration
func New(config Config) *Simulator {
	if config.Workers < 1 {
		config.Workers = 1
	}
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}
	if config.Logger == nil {
		config.Logger = log.New(io.Discard)
	}
	if config.Rules.HandSize == 0 {
		config.Rules = game.DefaultRules()
	}
	config.Rules = bot.TableRules(config.Rules, config.A, config.B)
	return &Simulator{config: config}
}

// Run executes the simulation. Deals are split into one contiguous chunk
// per worker and the per-chunk summaries merged in order, so a seed gives
// the same Summary whatever the worker count.
func (s *Simulator) Run(ctx context.Context) (*stats.Summary, error) {
	if s.config.Deals <= 0 {
		return nil, errors.New("deals must be positive")
	}

	chunks := min(s.config.Workers, s.config.Deals)
	summaries := make([]stats.Summary, chunks)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.Workers)
	for c := range chunks {
		lo := c * s.config.Deals / chunks
		hi := (c + 1) * s.config.Deals / chunks
		g.Go(func() error {
			for deal := lo; deal < hi; deal++ {
				for _, aSeat := range []game.Seat{game.Host, game.Guest} {
					o, err := s.PlayDeal(ctx, deal, aSeat)
					if err != nil {
						return err
					}
					summaries[c].Add(o)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := &stats.Summary{}
	for i := range summaries {
		total.Merge(&summaries[i])
	}
	if err := total.Validate(); err != nil {
		return nil, fmt.Errorf("summary validation failed: %w", err)
	}
	return total, nil
}

// PlayDeal plays deal number n with profile A at aSeat. The returned
// outcome is seen from A: index Host is A's score whichever seat A took.
func (s *Simulator) PlayDeal(ctx context.Context, n int, aSeat game.Seat) (game.Outcome, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	seed := randutil.Derive(s.config.Seed, n)
	bus := game.NewEventBus()
	bots := map[game.Seat]*bot.Bot{
		aSeat: bot.New(aSeat, s.config.A.Difficulty, randutil.New(randutil.Derive(seed, 1)),
			bot.WithProfile(s.config.A)),
		aSeat.Other(): bot.New(aSeat.Other(), s.config.B.Difficulty, randutil.New(randutil.Derive(seed, 2)),
			bot.WithProfile(s.config.B)),
	}
	for _, b := range bots {
		bus.Subscribe(b)
	}

	first := game.Host
	if n%2 == 1 {
		first = game.Guest
	}
	r, err := game.NewRound(randutil.New(seed),
		game.WithRules(s.config.Rules),
		game.WithFirstSeat(first),
		game.WithEventBus(bus),
		game.WithRoundID(fmt.Sprintf("sim-%d-%s", n, aSeat)),
	)
	if err != nil {
		return game.Outcome{}, err
	}

	for turns := 0; r.Phase() != game.Ended; turns++ {
		if err := ctx.Err(); err != nil {
			return game.Outcome{}, fmt.Errorf("deal %d (seed %d) timed out after %v: %w", n, seed, s.config.Timeout, err)
		}
		if turns >= maxTurns {
			return game.Outcome{}, fmt.Errorf("deal %d (seed %d) did not finish in %d turns", n, seed, maxTurns)
		}
		seat := r.Current()
		before := r.TurnNumber()
		if err := bots[seat].PlayTurn(ctx, r.TableFor(seat)); err != nil {
			return game.Outcome{}, fmt.Errorf("deal %d (seed %d): %s: %w", n, seed, seat, err)
		}
		if r.Phase() != game.Ended && r.TurnNumber() == before {
			return game.Outcome{}, fmt.Errorf("deal %d (seed %d): %s did not finish its turn", n, seed, seat)
		}
		if other := bots[seat.Other()]; r.Phase() != game.Ended && other.Reacts() {
			if err := other.React(ctx, r.TableFor(seat.Other())); err != nil {
				return game.Outcome{}, fmt.Errorf("deal %d (seed %d): %s reaction: %w", n, seed, seat.Other(), err)
			}
		}
	}

	o, _ := r.Outcome()
	s.config.Logger.Debug("deal finished", "deal", n, "a_seat", aSeat, "reason", o.Reason,
		"host", o.Scores[game.Host], "guest", o.Scores[game.Guest])
	if aSeat == game.Guest {
		o = flip(o)
	}
	return o, nil
}

// flip swaps the seats of an outcome
func flip(o game.Outcome) game.Outcome {
	o.Scores[0], o.Scores[1] = o.Scores[1], o.Scores[0]
	if o.Winner.Valid() {
		o.Winner = o.Winner.Other()
	}
	if o.Caller.Valid() {
		o.Caller = o.Caller.Other()
	}
	return o
}

// PrintSummary prints a summary of simulation results. labels name profile
// A and profile B.
func PrintSummary(w io.Writer, sum *stats.Summary, labels [2]string) {
	fmt.Fprintf(w, "\n=== %s vs %s ===\n", labels[0], labels[1])
	fmt.Fprintf(w, "Rounds played: %d\n", sum.Rounds)

	fmt.Fprintf(w, "\n=== SCORES (lower is better) ===\n")
	for seat := range 2 {
		sample := &sum.Scores[seat]
		low, high := sample.ConfidenceInterval95()
		fmt.Fprintf(w, "%s: mean %.2f, median %.1f, std dev %.2f, 95%% CI [%.2f, %.2f]\n",
			labels[seat], sample.Mean(), sample.Median(), sample.StdDev(), low, high)
	}
	low, high := sum.Margin.ConfidenceInterval95()
	fmt.Fprintf(w, "Margin (%s - %s): %.2f, 95%% CI [%.2f, %.2f]\n",
		labels[0], labels[1], sum.Margin.Mean(), low, high)

	fmt.Fprintf(w, "\n=== RESULTS ===\n")
	for seat := range 2 {
		fmt.Fprintf(w, "%s wins: %d (%.1f%%)\n", labels[seat], sum.Wins[seat], sum.WinRate(game.Seat(seat))*100)
	}
	fmt.Fprintf(w, "Ties: %d\n", sum.Ties)

	fmt.Fprintf(w, "\n=== CHUKRUM CALLS ===\n")
	for seat := range 2 {
		rate := 0.0
		if sum.Calls[seat] > 0 {
			rate = float64(sum.CallWins[seat]) / float64(sum.Calls[seat]) * 100
		}
		fmt.Fprintf(w, "%s: %d calls, %d won (%.1f%%)\n", labels[seat], sum.Calls[seat], sum.CallWins[seat], rate)
	}

	fmt.Fprintf(w, "\n=== END REASONS ===\n")
	reasons := make([]game.EndReason, 0, len(sum.Reasons))
	for r := range sum.Reasons {
		reasons = append(reasons, r)
	}
	sort.Slice(reasons, func(i, j int) bool { return reasons[i] < reasons[j] })
	for _, r := range reasons {
		fmt.Fprintf(w, "%s: %d\n", r, sum.Reasons[r])
	}
}
