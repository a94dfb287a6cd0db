package game

import (
	"context"
	"io"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/lox/chukrum/internal/deck"
)

// Default bot pacing
const (
	DefaultThinkMin = 800 * time.Millisecond
	DefaultThinkMax = 1200 * time.Millisecond
)

// EngineOption configures an Engine
type EngineOption func(*Engine)

// WithThinkDelay sets the range the bot waits before acting
func WithThinkDelay(min, max time.Duration) EngineOption {
	return func(e *Engine) {
		e.thinkMin, e.thinkMax = min, max
	}
}

// WithEngineClock sets the clock used for bot scheduling and event times
func WithEngineClock(clock quartz.Clock) EngineOption {
	return func(e *Engine) { e.clock = clock }
}

// WithEngineLogger sets the engine logger
func WithEngineLogger(logger *log.Logger) EngineOption {
	return func(e *Engine) { e.logger = logger }
}

// WithBotFirst makes the agent open every round instead of alternating
func WithBotFirst() EngineOption {
	return func(e *Engine) { e.botFirst = true }
}

// WithRoundOptions passes options to every round the engine creates
func WithRoundOptions(opts ...RoundOption) EngineOption {
	return func(e *Engine) { e.roundOpts = append(e.roundOpts, opts...) }
}

// pendingKind is what the deferred action will do when it fires
type pendingKind int

const (
	pendingNone pendingKind = iota
	pendingTurn
	pendingReaction
)

// Engine runs solo play: the human acts through Apply, and the agent's turn
// is scheduled as a deferred action after a think delay. An agent that is a
// Reactor also gets a deferred out-of-turn reaction to each new discard. At
// most one deferred action exists at a time, tracked by the round's
// in-flight token.
type Engine struct {
	mu        sync.Mutex
	rng       *rand.Rand
	clock     quartz.Clock
	logger    *log.Logger
	bus       EventBus
	agent     Agent
	reactor   Reactor
	human     Seat
	bot       Seat
	thinkMin  time.Duration
	thinkMax  time.Duration
	botFirst  bool
	roundOpts []RoundOption

	round     *Round
	timer     *quartz.Timer
	pending   pendingKind
	reactedTo string
	nextFirst Seat
	onEnd     []func(*Round, Outcome)

	ctx    context.Context
	cancel context.CancelFunc
}

// NewEngine creates an engine where the human sits at Host and agent at Guest
func NewEngine(rng *rand.Rand, agent Agent, opts ...EngineOption) *Engine {
	if rng == nil {
		panic("rng is required for engine creation")
	}
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		rng:       rng,
		clock:     quartz.NewReal(),
		logger:    log.New(io.Discard),
		bus:       NewEventBus(),
		agent:     agent,
		human:     Host,
		bot:       Guest,
		thinkMin:  DefaultThinkMin,
		thinkMax:  DefaultThinkMax,
		nextFirst: Host,
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.thinkMax < e.thinkMin {
		e.thinkMax = e.thinkMin
	}
	if rx, ok := agent.(Reactor); ok && rx.Reacts() {
		e.reactor = rx
	}
	if e.botFirst {
		e.nextFirst = e.bot
	}
	return e
}

// GetEventBus returns the event bus for subscribing to round events
func (e *Engine) GetEventBus() EventBus {
	return e.bus
}

// OnRoundEnd registers fn to run after each round ends. fn runs without the
// engine lock held.
func (e *Engine) OnRoundEnd(fn func(*Round, Outcome)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onEnd = append(e.onEnd, fn)
}

// NewRound abandons any current round, dropping a pending bot action, and
// deals a new one. The first seat alternates between rounds unless the bot
// always opens.
func (e *Engine) NewRound() (*Round, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stopTimer()
	if e.round != nil {
		e.round.CancelAction()
	}
	e.pending = pendingNone
	e.reactedTo = ""

	opts := append([]RoundOption{
		WithClock(e.clock),
		WithEventBus(e.bus),
		WithLogger(e.logger),
	}, e.roundOpts...)
	opts = append(opts, WithFirstSeat(e.nextFirst))

	r, err := NewRound(e.rng, opts...)
	if err != nil {
		return nil, err
	}
	e.round = r
	if top, ok := r.DiscardTop(); ok {
		e.reactedTo = top.ID
	}
	if !e.botFirst {
		e.nextFirst = e.nextFirst.Other()
	}
	e.logger.Info("round started", "round", r.ID(), "first", r.First())
	e.scheduleBot()
	return r, nil
}

// Round returns the current round
func (e *Engine) Round() *Round {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.round
}

// View returns the table from the human seat
func (e *Engine) View() TableView {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.round.View(e.human)
}

// Reveal shows a seat's hand; used for end-of-round display
func (e *Engine) Reveal(s Seat) []deck.Card {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.round.Reveal(s)
}

// BotPending reports whether a bot action is scheduled
func (e *Engine) BotPending() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.round != nil && e.round.InFlight()
}

// Apply applies a human action
func (e *Engine) Apply(a Action) (Result, error) {
	e.mu.Lock()
	r := e.round
	if r == nil {
		e.mu.Unlock()
		return Result{}, invalidf("no round in progress")
	}
	a.Seat = e.human
	res, err := r.Apply(a)
	var hooks []func(*Round, Outcome)
	if err == nil {
		if res.RoundEnded {
			e.stopTimer()
			e.pending = pendingNone
			hooks = e.onEnd
		} else {
			e.dropReaction()
			e.scheduleBot()
		}
	}
	e.mu.Unlock()

	e.runHooks(r, hooks)
	return res, err
}

// Close stops any pending bot action
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopTimer()
	if e.round != nil {
		e.round.CancelAction()
	}
	e.pending = pendingNone
	e.cancel()
}

// scheduleBot arms the think timer when the bot owns the turn, or when a
// reacting bot has a new discard to react to. Must be called with e.mu held.
func (e *Engine) scheduleBot() {
	r := e.round
	if r == nil || r.Phase() == Ended {
		return
	}
	switch {
	case r.Current() == e.bot:
		e.schedule(r, pendingTurn, e.fire)
	case e.canReact(r):
		e.schedule(r, pendingReaction, e.react)
	}
}

func (e *Engine) schedule(r *Round, kind pendingKind, fn func(*Round, uint64)) {
	token, ok := r.BeginAction()
	if !ok {
		return
	}
	delay := e.thinkDelay()
	e.pending = kind
	e.logger.Debug("bot action scheduled", "round", r.ID(), "reaction", kind == pendingReaction, "delay", delay)
	e.timer = e.clock.AfterFunc(delay, func() {
		fn(r, token)
	})
}

// canReact reports whether the discard top is new to a reacting bot and
// the rules let it match now. Must be called with e.mu held.
func (e *Engine) canReact(r *Round) bool {
	if e.reactor == nil || !r.Rules().MatchOutOfTurn {
		return false
	}
	if _, held := r.Held(); held {
		return false
	}
	top, ok := r.DiscardTop()
	return ok && top.ID != e.reactedTo
}

// dropReaction cancels a pending reaction; the human's move may have made
// it stale. A pending bot turn is kept. Must be called with e.mu held.
func (e *Engine) dropReaction() {
	if e.pending != pendingReaction {
		return
	}
	e.stopTimer()
	e.round.CancelAction()
	e.pending = pendingNone
}

func (e *Engine) react(r *Round, token uint64) {
	e.mu.Lock()
	if e.round != r || !r.CompleteAction(token) {
		e.mu.Unlock()
		e.logger.Debug("dropping stale bot reaction", "round", r.ID())
		return
	}
	e.pending = pendingNone
	if err := e.reactor.React(e.ctx, r.TableFor(e.bot)); err != nil {
		e.logger.Warn("bot reaction failed", "round", r.ID(), "error", err)
	}
	// A successful match puts the bot's own card on top.
	if top, ok := r.DiscardTop(); ok {
		e.reactedTo = top.ID
	}
	e.afterBot(r)
}

func (e *Engine) fire(r *Round, token uint64) {
	e.mu.Lock()
	if e.round != r || !r.CompleteAction(token) {
		e.mu.Unlock()
		e.logger.Debug("dropping stale bot action", "round", r.ID())
		return
	}
	e.pending = pendingNone

	if err := e.agent.PlayTurn(e.ctx, r.TableFor(e.bot)); err != nil {
		e.logger.Warn("bot turn failed", "round", r.ID(), "error", err)
	}
	if r.Phase() != Ended && r.Current() == e.bot {
		e.logger.Error("bot did not finish its turn", "round", r.ID())
		finishTurn(r.TableFor(e.bot))
	}
	e.afterBot(r)
}

// afterBot schedules what comes next and releases e.mu, running the round
// end hooks if the bot's move ended the round
func (e *Engine) afterBot(r *Round) {
	var hooks []func(*Round, Outcome)
	if r.Phase() == Ended {
		hooks = e.onEnd
	} else {
		e.scheduleBot()
	}
	e.mu.Unlock()

	e.runHooks(r, hooks)
}

func (e *Engine) runHooks(r *Round, hooks []func(*Round, Outcome)) {
	if len(hooks) == 0 {
		return
	}
	o, ok := r.Outcome()
	if !ok {
		return
	}
	for _, fn := range hooks {
		fn(r, o)
	}
}

func (e *Engine) thinkDelay() time.Duration {
	spread := int64(e.thinkMax - e.thinkMin)
	if spread <= 0 {
		return e.thinkMin
	}
	return e.thinkMin + time.Duration(e.rng.Int64N(spread+1))
}

func (e *Engine) stopTimer() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

// finishTurn plays out whatever remains of a turn with the simplest legal
// moves, so a misbehaving agent cannot leave the round stuck.
func finishTurn(t Table) {
	for range 4 {
		v := t.View()
		if !v.MyTurn() {
			return
		}
		if v.Held == nil {
			if _, err := t.Apply(Action{Kind: Draw}); err != nil {
				return
			}
			continue
		}
		switch v.Special.Stage {
		case StageAwaitFirstPeek:
			_, _ = t.Apply(Action{Kind: PeekOwn, Own: 0})
		case StageAwaitSecondPeek:
			if v.Special.Peeks[0].Side == OwnSide {
				_, _ = t.Apply(Action{Kind: PeekOpponent, Opponent: 0})
			} else {
				_, _ = t.Apply(Action{Kind: PeekOwn, Own: 0})
			}
		default:
			_, _ = t.Apply(Action{Kind: Discard})
		}
	}
}
