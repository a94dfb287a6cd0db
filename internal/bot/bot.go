// Package bot implements the scripted Chukrum opponent. One algorithm is
// tuned by a Profile per difficulty; the bot plays from its own memory of
// what it has seen, except where a profile grants omniscient targeting.
package bot

import (
	"context"
	"fmt"
	"io"
	"maps"
	"math"
	"math/rand/v2"
	"slices"

	"github.com/charmbracelet/log"
	"github.com/lox/chukrum/internal/deck"
	"github.com/lox/chukrum/internal/game"
)

// Option configures a Bot
type Option func(*Bot)

// WithLogger sets the bot logger
func WithLogger(logger *log.Logger) Option {
	return func(b *Bot) { b.logger = logger.WithPrefix("bot") }
}

// WithProfile overrides the profile chosen by difficulty
func WithProfile(p Profile) Option {
	return func(b *Bot) { b.profile = p }
}

// Bot is a game.Agent and a game.EventSubscriber. Subscribe it to the
// round's event bus so it sees the opponent's public moves.
type Bot struct {
	seat    game.Seat
	profile Profile
	rng     *rand.Rand
	logger  *log.Logger
	memory  *Memory
}

// New creates a bot for seat
func New(seat game.Seat, d Difficulty, rng *rand.Rand, opts ...Option) *Bot {
	if rng == nil {
		panic("rng is required for bot creation")
	}
	b := &Bot{
		seat:    seat,
		profile: ProfileFor(d),
		rng:     rng,
		logger:  log.New(io.Discard),
		memory:  NewMemory(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Profile returns the bot's parameters
func (b *Bot) Profile() Profile { return b.profile }

// Memory exposes the bot's memory for inspection
func (b *Bot) Memory() *Memory { return b.memory }

// OnEvent feeds public round events into memory. The bot's own moves are
// recorded as it makes them, so only shared facts are taken from its own
// events.
func (b *Bot) OnEvent(event game.GameEvent) {
	switch e := event.(type) {
	case game.RoundStartedEvent:
		b.memory.Reset()
		b.memory.Discarded(e.DiscardTop)
	case game.TurnEndedEvent:
		b.memory.SetTurn(e.TurnNumber)
	case game.CardDiscardedEvent:
		b.memory.Discarded(e.Card)
	case game.MatchedEvent:
		b.memory.Discarded(e.Card)
		if e.Seat != b.seat {
			b.memory.RemoveOpponent(e.Pos)
		}
	case game.CardSwappedEvent:
		if e.Seat != b.seat {
			b.memory.OpponentSwapped(e.Pos)
		}
	case game.CrossSwappedEvent:
		if e.Seat != b.seat {
			b.memory.OpponentSwapped(e.Own)
		}
	case game.ScrambledEvent:
		if e.Seat != b.seat {
			b.memory.ForgetOwn()
		}
	}
}

// PlayTurn plays one complete turn: match-discards from memory, then either
// a Chukrum call or a draw and its resolution.
func (b *Bot) PlayTurn(ctx context.Context, t game.Table) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	v := t.View()
	if !v.MyTurn() || v.Held != nil {
		return nil
	}

	if b.profile.MatchFromMemory {
		b.matchFromMemory(t)
		if v = t.View(); !v.MyTurn() {
			return nil
		}
	}

	if v.Phase == game.Playing && b.wantsChukrum(v) {
		b.logger.Info("calling chukrum", "turn", v.TurnNumber, "known", len(b.memory.Known(v)))
		_, err := t.Apply(game.Action{Kind: game.CallChukrum})
		return err
	}

	res, err := t.Apply(game.Action{Kind: game.Draw})
	if err != nil {
		return fmt.Errorf("draw: %w", err)
	}
	drawn := *res.Drawn
	v = t.View()

	if b.shouldScramble(t, v) {
		b.logger.Info("scrambling opponent hand", "turn", v.TurnNumber)
		if _, err := t.Apply(game.Action{Kind: game.Scramble}); err != nil {
			return fmt.Errorf("scramble: %w", err)
		}
		b.memory.ForgetOpponent()
		return nil
	}

	switch drawn.Rank {
	case deck.Jack:
		err = b.playJack(t, v)
	case deck.Queen:
		err = b.playQueen(t, v)
	case deck.King:
		err = b.playKing(t, v)
	default:
		err = b.playPlain(t, v, drawn)
	}
	if err != nil {
		return fmt.Errorf("resolve %s: %w", drawn, err)
	}
	return nil
}

// Reacts reports whether the bot matches discards out of turn
func (b *Bot) Reacts() bool { return b.profile.ReactiveMatch }

// React matches the new discard from memory, in or out of turn. It never
// draws.
func (b *Bot) React(ctx context.Context, t game.Table) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !b.profile.ReactiveMatch {
		return nil
	}
	v := t.View()
	if v.Phase == game.Ended || v.Held != nil {
		return nil
	}
	if !v.MyTurn() && !v.Rules.MatchOutOfTurn {
		return nil
	}
	b.matchFromMemory(t)
	return nil
}

// matchFromMemory discards known own cards that match the top of the pile.
// Sevens are kept since they are worth less than nothing.
func (b *Bot) matchFromMemory(t game.Table) {
	for {
		v := t.View()
		if v.Phase == game.Ended || v.DiscardTop == nil {
			return
		}
		pos := -1
		for _, p := range slices.Sorted(maps.Keys(b.memory.Known(v))) {
			c := b.memory.own[p]
			if c.Rank == v.DiscardTop.Rank && c.Value() > 0 {
				pos = p
				break
			}
		}
		if pos < 0 {
			return
		}
		res, err := t.Apply(game.Action{Kind: game.MatchDiscard, Own: pos})
		if err != nil || !res.Matched {
			return
		}
		b.logger.Debug("matched from memory", "pos", pos)
		b.memory.RemoveOwn(pos)
	}
}

func (b *Bot) chukrumInputs(v game.TableView) ChukrumInputs {
	known := b.memory.Known(v)
	in := ChukrumInputs{
		Known:         len(known),
		Unknown:       v.HandSize() - len(known),
		Turns:         v.TurnNumber,
		DeckLeft:      v.DeckLeft,
		OpponentSwaps: len(b.memory.oppSwaps),
	}
	ranks := make(map[deck.Rank]int)
	for _, c := range known {
		in.KnownSum += c.Value()
		ranks[c.Rank]++
		if ranks[c.Rank] > 1 && c.Value() > 0 {
			in.ImprovablePair = true
		}
	}
	return in
}

func (b *Bot) wantsChukrum(v game.TableView) bool {
	in := b.chukrumInputs(v)
	if !ShouldCallChukrum(b.profile, in) {
		return false
	}
	return b.rng.Float64() < b.profile.ChukrumAcceptChance
}

// shouldScramble checks the once-per-round panic: only when the bot is
// behind by the profile's margin after its minimum turn count.
func (b *Bot) shouldScramble(t game.Table, v game.TableView) bool {
	if !b.profile.Scramble || !v.CanScramble || v.TurnNumber < b.profile.ScrambleMinTurn {
		return false
	}
	mine := b.estimateOwnScore(v)
	theirs := float64(game.Score(t.Reveal(b.seat.Other())))
	return mine-theirs >= float64(b.profile.ScrambleMargin)
}

func (b *Bot) estimateOwnScore(v game.TableView) float64 {
	known := b.memory.Known(v)
	total := 0.0
	for _, c := range known {
		total += float64(c.Value())
	}
	unknown := v.HandSize() - len(known)
	return total + float64(unknown)*b.memory.unseenAverage()
}

func (b *Bot) playPlain(t game.Table, v game.TableView, drawn deck.Card) error {
	known := b.memory.Known(v)
	unknown := b.memory.unknownOwn(v)
	worstPos, worstVal := worst(known)
	val := drawn.Value()

	target := -1
	switch {
	case b.profile.ReplaceWorstKnown && worstPos >= 0 && val < worstVal:
		target = worstPos
	case val <= b.profile.LowSwapValue && b.rng.Float64() < b.profile.LowSwapChance:
		if len(unknown) > 0 {
			target = unknown[b.rng.IntN(len(unknown))]
		} else if worstPos >= 0 && val < worstVal {
			target = worstPos
		}
	case len(unknown) > 0 && val <= b.profile.exploreThreshold(v.TurnNumber):
		target = unknown[b.rng.IntN(len(unknown))]
	}

	if target < 0 {
		_, err := t.Apply(game.Action{Kind: game.Discard})
		return err
	}
	if _, err := t.Apply(game.Action{Kind: game.SwapOwn, Own: target}); err != nil {
		return err
	}
	b.memory.LearnOwn(target, drawn)
	b.logger.Debug("swapped", "card", drawn, "pos", target)
	return nil
}

func (b *Bot) playJack(t game.Table, v game.TableView) error {
	pos := b.pickOwnPeek(v)
	res, err := t.Apply(game.Action{Kind: game.PeekOwn, Own: pos})
	if err != nil {
		return err
	}
	b.memory.LearnOwn(pos, *res.Peeked)
	if res.TurnEnded {
		return nil
	}
	_, err = t.Apply(game.Action{Kind: game.Discard})
	return err
}

func (b *Bot) playQueen(t game.Table, v game.TableView) error {
	unknown := b.memory.unknownOwn(v)
	if v.Rules.QueenPeek == game.QueenPeekEither && len(unknown) == 0 {
		return b.queenPeekOpponent(t, v)
	}

	pos := b.pickOwnPeek(v)
	res, err := t.Apply(game.Action{Kind: game.PeekOwn, Own: pos})
	if err != nil {
		return err
	}
	own := *res.Peeked
	b.memory.LearnOwn(pos, own)

	// An unseen opponent card is taken blind: the own card alone is bad
	// enough to give away.
	if own.Value() >= b.profile.SpecialSwapMinValue {
		opp, oppVal, known := b.pickOpponentTarget(t, v)
		if opp >= 0 && (!known || oppVal < own.Value()) {
			return b.crossSwap(t, pos, opp, own)
		}
	}
	_, err = t.Apply(game.Action{Kind: game.Discard})
	return err
}

func (b *Bot) queenPeekOpponent(t game.Table, v game.TableView) error {
	opp, _, _ := b.pickOpponentTarget(t, v)
	if opp < 0 {
		opp = 0
	}
	res, err := t.Apply(game.Action{Kind: game.PeekOpponent, Opponent: opp})
	if err != nil {
		return err
	}
	seen := *res.Peeked
	b.memory.LearnOpponent(opp, seen)

	worstPos, worstVal := worst(b.memory.Known(v))
	if worstPos >= 0 && worstVal >= b.profile.SpecialSwapMinValue && seen.Value() < worstVal {
		return b.crossSwap(t, worstPos, opp, b.memory.own[worstPos])
	}
	_, err = t.Apply(game.Action{Kind: game.Discard})
	return err
}

func (b *Bot) playKing(t game.Table, v game.TableView) error {
	pos := b.pickOwnPeek(v)
	res, err := t.Apply(game.Action{Kind: game.PeekOwn, Own: pos})
	if err != nil {
		return err
	}
	own := *res.Peeked
	b.memory.LearnOwn(pos, own)

	opp, _, _ := b.pickOpponentTarget(t, v)
	if opp < 0 {
		opp = 0
	}
	res, err = t.Apply(game.Action{Kind: game.PeekOpponent, Opponent: opp})
	if err != nil {
		return err
	}
	seen := *res.Peeked
	b.memory.LearnOpponent(opp, seen)

	if own.Value() >= b.profile.SpecialSwapMinValue && seen.Value() < own.Value() {
		return b.crossSwap(t, pos, opp, own)
	}
	_, err = t.Apply(game.Action{Kind: game.Discard})
	return err
}

func (b *Bot) crossSwap(t game.Table, own, opp int, ownCard deck.Card) error {
	incoming, known := b.memory.opp[opp]
	if _, err := t.Apply(game.Action{Kind: game.CrossSwap, Own: own, Opponent: opp}); err != nil {
		return err
	}
	delete(b.memory.own, own)
	if known {
		b.memory.LearnOwn(own, incoming)
	}
	b.memory.LearnOpponent(opp, ownCard)
	b.logger.Debug("cross swapped", "own", own, "opponent", opp)
	return nil
}

// pickOwnPeek prefers an unknown position, then the worst known card
func (b *Bot) pickOwnPeek(v game.TableView) int {
	if unknown := b.memory.unknownOwn(v); len(unknown) > 0 {
		return unknown[b.rng.IntN(len(unknown))]
	}
	if pos, _ := worst(b.memory.Known(v)); pos >= 0 {
		return pos
	}
	return 0
}

// pickOpponentTarget chooses the opponent card to take. Omniscient profiles
// look at the real hand; the rest use memory, then fall back to the
// position the opponent has swapped least, which is the one they seem to
// want to keep. known is false when the target's value has not been seen.
func (b *Bot) pickOpponentTarget(t game.Table, v game.TableView) (pos, val int, known bool) {
	size := len(v.OpponentIDs)
	if size == 0 {
		return -1, 0, false
	}
	if b.profile.OmniscientTargeting {
		cards := t.Reveal(b.seat.Other())
		best := 0
		for i, c := range cards {
			if c.Value() < cards[best].Value() {
				best = i
			}
		}
		return best, cards[best].Value(), true
	}

	if pos, val := best(b.memory.KnownOpponent(v)); pos >= 0 {
		return pos, val, true
	}
	counts := b.memory.swapCounts(size)
	least := 0
	for i, n := range counts {
		if n < counts[least] {
			least = i
		}
	}
	return least, 0, false
}

// worst returns the known position with the highest value, or -1
func worst(known map[int]deck.Card) (int, int) {
	pos, val := -1, math.MinInt
	for _, p := range slices.Sorted(maps.Keys(known)) {
		if v := known[p].Value(); v > val {
			pos, val = p, v
		}
	}
	return pos, val
}

// best returns the known position with the lowest value, or -1
func best(known map[int]deck.Card) (int, int) {
	pos, val := -1, math.MaxInt
	for _, p := range slices.Sorted(maps.Keys(known)) {
		if v := known[p].Value(); v < val {
			pos, val = p, v
		}
	}
	return pos, val
}
