package multiplayer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/lox/chukrum/internal/game"
	"github.com/lox/chukrum/internal/gameid"
	"github.com/lox/chukrum/internal/randutil"
	"github.com/lox/chukrum/internal/stats"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultHeartbeat       = 5 * time.Second
	DefaultDisconnectAfter = 3 * DefaultHeartbeat
	DefaultMaxRetries      = 3
)

var (
	ErrStaleRecord     = errors.New("stale record")
	ErrSeriesOver      = errors.New("series is over")
	ErrHostOnly        = errors.New("only the host can do that")
	ErrNoRematch       = errors.New("no rematch available")
	ErrGameFull        = errors.New("game already has two players")
	ErrRoundInProgress = errors.New("round is still in progress")
	ErrWaiting         = errors.New("waiting for a guest to join")
	ErrNotSeated       = errors.New("player is not seated in this game")
)

// Option configures a Session
type Option func(*Session)

// WithClock sets the clock for heartbeats and timestamps
func WithClock(clock quartz.Clock) Option {
	return func(s *Session) { s.clock = clock }
}

// WithLogger sets the session logger
func WithLogger(logger *log.Logger) Option {
	return func(s *Session) { s.logger = logger.WithPrefix("session") }
}

// WithRand sets the source used to deal new rounds
func WithRand(rng *rand.Rand) Option {
	return func(s *Session) { s.rng = rng }
}

// WithRules sets the rules for a game the session creates
func WithRules(r game.Rules) Option {
	return func(s *Session) { s.rules = r }
}

// WithTargetScore plays a series until a cumulative total reaches target
func WithTargetScore(target int) Option {
	return func(s *Session) { s.target = target }
}

// WithHeartbeat sets the heartbeat interval and how long the opponent may
// stay silent before it is reported disconnected
func WithHeartbeat(interval, disconnectAfter time.Duration) Option {
	return func(s *Session) {
		s.heartbeat = interval
		s.disconnectAfter = disconnectAfter
	}
}

// WithMaxRetries bounds the re-reads after a version conflict
func WithMaxRetries(n int) Option {
	return func(s *Session) { s.maxRetries = n }
}

type localSpecial struct {
	heldID string
	turn   int
	state  game.SpecialState
}

// Session is one player's connection to a shared game
type Session struct {
	store           Store
	player          string
	seat            game.Seat
	clock           quartz.Clock
	logger          *log.Logger
	rng             *rand.Rand
	rules           game.Rules
	target          int
	heartbeat       time.Duration
	disconnectAfter time.Duration
	maxRetries      int
	switched        chan struct{}

	mu            sync.Mutex
	id            string
	view          *Record
	local         *localSpecial
	reported      map[int]bool
	peerGone      bool
	onChange      []func(*Record)
	onRoundResult []func(stats.RoundResult)
}

func newSession(store Store, player string, seat game.Seat, opts []Option) *Session {
	s := &Session{
		store:           store,
		player:          player,
		seat:            seat,
		clock:           quartz.NewReal(),
		logger:          log.New(io.Discard),
		rules:           game.DefaultRules(),
		heartbeat:       DefaultHeartbeat,
		disconnectAfter: DefaultDisconnectAfter,
		maxRetries:      DefaultMaxRetries,
		switched:        make(chan struct{}, 1),
		reported:        make(map[int]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		seed := randutil.Seed()
		s.logger.Debug("seeded session", "seed", seed)
		s.rng = randutil.New(seed)
	}
	return s
}

// Host creates a new game for hostID, dealt and waiting for a guest
func Host(ctx context.Context, store Store, hostID string, opts ...Option) (*Session, error) {
	if strings.TrimSpace(hostID) == "" {
		return nil, errors.New("host id is required")
	}
	s := newSession(store, hostID, game.Host, opts)
	rec, err := s.deal(s.rules, game.Host)
	if err != nil {
		return nil, err
	}
	rec.HostID = hostID
	rec.TargetScore = s.target
	rec.Status = StatusWaiting
	if err := store.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("create game: %w", err)
	}
	s.id = rec.ID
	s.logger.Info("hosting game", "id", rec.ID, "target", rec.TargetScore)
	s.observe(rec)
	return s, nil
}

// Join takes the guest seat of game id. Joining a game already joined by
// the same guest reattaches to it.
func Join(ctx context.Context, store Store, id, guestID string, opts ...Option) (*Session, error) {
	if strings.TrimSpace(guestID) == "" {
		return nil, errors.New("guest id is required")
	}
	if err := gameid.Validate(id); err != nil {
		return nil, err
	}
	s := newSession(store, guestID, game.Guest, opts)
	s.id = id
	_, err := s.mutate(ctx, func(r *Record) (Patch, error) {
		switch {
		case r.GuestID == guestID:
			return nil, nil
		case r.HostID == guestID:
			return nil, fmt.Errorf("%s already hosts game %s", guestID, id)
		case r.GuestID != "":
			return nil, ErrGameFull
		}
		p := Patch{"guestId": guestID, "lastAction": guestID + " joined"}
		if r.Status == StatusWaiting {
			p["status"] = StatusPlaying
		}
		return p, nil
	})
	if err != nil {
		return nil, fmt.Errorf("join %s: %w", id, err)
	}
	s.logger.Info("joined game", "id", id)
	return s, nil
}

// Resume reattaches player to a game they already sit in
func Resume(ctx context.Context, store Store, id, player string, opts ...Option) (*Session, error) {
	rec, err := store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	seat := rec.SeatOf(player)
	if seat == game.NoSeat {
		return nil, fmt.Errorf("%w: %s in %s", ErrNotSeated, player, id)
	}
	s := newSession(store, player, seat, opts)
	s.id = id
	s.observe(rec)
	return s, nil
}

// newRound shuffles and deals round id on the session's clock
func (s *Session) newRound(rules game.Rules, first game.Seat, id string, opts ...game.RoundOption) (*game.Round, error) {
	opts = append([]game.RoundOption{
		game.WithRules(rules),
		game.WithFirstSeat(first),
		game.WithRoundID(id),
		game.WithClock(s.clock),
		game.WithLogger(s.logger),
	}, opts...)
	return game.NewRound(s.rng, opts...)
}

// deal builds a freshly shuffled record
func (s *Session) deal(rules game.Rules, first game.Seat) (*Record, error) {
	id := gameid.New()
	round, err := s.newRound(rules, first, id)
	if err != nil {
		return nil, err
	}
	rec := &Record{
		ID:          id,
		CreatedAt:   s.clock.Now(),
		Rules:       rules,
		MatchNumber: 1,
	}
	rec.SetState(round.Snapshot())
	return rec, nil
}

// ID returns the id of the record the session follows
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Seat returns the session's seat
func (s *Session) Seat() game.Seat { return s.seat }

// Player returns the session's player id
func (s *Session) Player() string { return s.player }

// Record returns a copy of the latest confirmed record
func (s *Session) Record() *Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view.Clone()
}

// OnChange registers fn to run with every accepted record
func (s *Session) OnChange(fn func(*Record)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = append(s.onChange, fn)
}

// OnRoundResult registers fn to run once for each ended round
func (s *Session) OnRoundResult(fn func(stats.RoundResult)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onRoundResult = append(s.onRoundResult, fn)
}

// View returns the table as this seat sees it, including any peeks made
// this turn
func (s *Session) View() (game.TableView, error) {
	rec := s.Record()
	if rec == nil {
		return game.TableView{}, fmt.Errorf("%w: %s", ErrNotFound, s.ID())
	}
	round, err := s.restore(rec)
	if err != nil {
		return game.TableView{}, err
	}
	return round.View(s.seat), nil
}

// Refresh re-reads the record from the store
func (s *Session) Refresh(ctx context.Context) (*Record, error) {
	rec, err := s.store.Get(ctx, s.ID())
	if err != nil {
		return nil, err
	}
	s.observe(rec)
	return s.Record(), nil
}

// Submit applies one of this seat's actions to the shared game. The round
// is rebuilt from the latest record, so a rejected action changes nothing.
func (s *Session) Submit(ctx context.Context, a game.Action) (game.Result, error) {
	a.Seat = s.seat
	var (
		res   game.Result
		round *game.Round
	)
	_, err := s.mutate(ctx, func(rec *Record) (Patch, error) {
		switch {
		case rec.Status == StatusWaiting:
			return nil, ErrWaiting
		case !rec.Status.Active():
			return nil, game.ErrRoundOver
		}
		if rec.CurrentTurn != s.seat {
			return nil, game.ErrNotYourTurn
		}
		r, err := s.restore(rec)
		if err != nil {
			return nil, err
		}
		if res, err = r.Apply(a); err != nil {
			return nil, err
		}
		after := rec.Clone()
		after.SetState(r.Snapshot())
		p, err := Diff(rec, after)
		if err != nil {
			return nil, err
		}
		if len(p) > 0 {
			p["lastAction"] = describe(rec.PlayerID(s.seat), a, res)
		}
		round = r
		return p, nil
	})
	if err != nil {
		s.logger.Debug("action rejected", "action", a, "error", err)
		return game.Result{}, err
	}
	s.keepSpecial(round)
	return res, nil
}

// restore rebuilds the round in rec, with this seat's peeks if they still
// belong to the held card
func (s *Session) restore(rec *Record) (*game.Round, error) {
	st := rec.State()
	s.mu.Lock()
	if l := s.local; l != nil && rec.Held != nil && rec.Held.ID == l.heldID && rec.TurnNumber == l.turn {
		st.Special = l.state
	}
	s.mu.Unlock()
	return game.Restore(s.rng, st,
		game.WithRules(rec.Rules),
		game.WithRoundID(rec.ID),
		game.WithClock(s.clock),
		game.WithLogger(s.logger))
}

func (s *Session) keepSpecial(r *game.Round) {
	s.mu.Lock()
	defer s.mu.Unlock()
	held, ok := r.Held()
	if !ok || r.Current() != s.seat {
		s.local = nil
		return
	}
	s.local = &localSpecial{heldID: held.ID, turn: r.TurnNumber(), state: r.Special()}
}

// mutate reads the record, builds a patch and writes it against the
// version read, starting over on a version conflict. A nil patch writes
// nothing.
func (s *Session) mutate(ctx context.Context, build func(*Record) (Patch, error)) (*Record, error) {
	id := s.ID()
	for attempt := 0; ; attempt++ {
		rec, err := s.store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		p, err := build(rec)
		if err != nil {
			return nil, err
		}
		if len(p) == 0 {
			s.observe(rec)
			return rec, nil
		}
		updated, err := s.store.Update(ctx, id, p, rec.Version)
		if errors.Is(err, ErrVersionConflict) && attempt < s.maxRetries {
			s.logger.Debug("version conflict, retrying", "id", id, "attempt", attempt+1)
			continue
		}
		if err != nil {
			return nil, err
		}
		s.observe(updated)
		return updated, nil
	}
}

// observe accepts rec as the new view unless it is stale: another record,
// an earlier round, or a version already seen.
func (s *Session) observe(rec *Record) bool {
	s.mu.Lock()
	if err := s.checkFresh(rec); err != nil {
		s.mu.Unlock()
		s.logger.Debug("discarding record", "id", rec.ID, "version", rec.Version, "error", err)
		return false
	}
	s.view = rec.Clone()
	if l := s.local; l != nil && (rec.Held == nil || rec.Held.ID != l.heldID || rec.TurnNumber != l.turn) {
		s.local = nil
	}

	var result *stats.RoundResult
	if o, ok := rec.Outcome(); ok && !s.reported[rec.MatchNumber] {
		s.reported[rec.MatchNumber] = true
		r := stats.ResultFromOutcome(rec.ID, rec.MatchNumber, o, [2]string{rec.HostID, rec.GuestID}, s.clock.Now())
		result = &r
	}
	onChange := slices.Clone(s.onChange)
	onResult := slices.Clone(s.onRoundResult)
	s.mu.Unlock()

	for _, fn := range onChange {
		fn(rec.Clone())
	}
	if result != nil {
		s.logger.Info("round ended", "id", rec.ID, "match", rec.MatchNumber, "scores", result.Scores)
		for _, fn := range onResult {
			fn(*result)
		}
	}
	return true
}

func (s *Session) checkFresh(rec *Record) error {
	switch {
	case rec.ID != s.id:
		return fmt.Errorf("%w: record %s, following %s", ErrStaleRecord, rec.ID, s.id)
	case s.view == nil:
		return nil
	case rec.MatchNumber < s.view.MatchNumber:
		return fmt.Errorf("%w: match %d after %d", ErrStaleRecord, rec.MatchNumber, s.view.MatchNumber)
	case rec.Version <= s.view.Version:
		return fmt.Errorf("%w: version %d after %d", ErrStaleRecord, rec.Version, s.view.Version)
	}
	return nil
}

// PeerDisconnected reports whether the opponent's heartbeat is older than
// the disconnect threshold. A missing heartbeat counts from the game's
// creation. Only a game in play can have a disconnected peer.
func (s *Session) PeerDisconnected(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.view
	if v == nil || !v.Status.Active() {
		return false
	}
	last := v.Heartbeat(s.seat.Other())
	if last.IsZero() {
		last = v.CreatedAt
	}
	return now.Sub(last) > s.disconnectAfter
}

// Beat writes this seat's heartbeat
func (s *Session) Beat(ctx context.Context) error {
	field := "hostHeartbeat"
	if s.seat == game.Guest {
		field = "guestHeartbeat"
	}
	rec, err := s.store.Update(ctx, s.ID(), Patch{field: s.clock.Now()}, 0)
	if err != nil {
		return fmt.Errorf("heartbeat: %w", err)
	}
	s.observe(rec)
	return nil
}

// PeerGone reports whether the last heartbeat check found the opponent
// silent
func (s *Session) PeerGone() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peerGone
}

// checkPeer notes when the opponent goes quiet or comes back and tells the
// OnChange callbacks. It never ends the game.
func (s *Session) checkPeer() {
	gone := s.PeerDisconnected(s.clock.Now())
	s.mu.Lock()
	changed := gone != s.peerGone
	s.peerGone = gone
	var view *Record
	if changed && s.view != nil {
		view = s.view.Clone()
	}
	onChange := slices.Clone(s.onChange)
	s.mu.Unlock()
	if !changed {
		return
	}

	if gone {
		s.logger.Warn("opponent appears disconnected", "id", s.ID(), "after", s.disconnectAfter)
	} else {
		s.logger.Info("opponent reconnected", "id", s.ID())
	}
	if view == nil {
		return
	}
	for _, fn := range onChange {
		fn(view.Clone())
	}
}

// ApplyRoundScores adds an ended round's scores to the series totals. It
// is the host's job, and applying a round twice changes nothing.
func (s *Session) ApplyRoundScores(ctx context.Context) (*Record, error) {
	if s.seat != game.Host {
		return nil, ErrHostOnly
	}
	return s.mutate(ctx, func(rec *Record) (Patch, error) {
		o, ok := rec.Outcome()
		if !ok || rec.CumulativeApplied {
			return nil, nil
		}
		return Patch{
			"hostCumulativeScore":  rec.HostCumulativeScore + o.Scores[game.Host],
			"guestCumulativeScore": rec.GuestCumulativeScore + o.Scores[game.Guest],
			"cumulativeApplied":    true,
		}, nil
	})
}

// SeriesOver reports whether the followed game's series has finished
func (s *Session) SeriesOver() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view != nil && s.view.SeriesOver()
}

// StartNextRound deals the next round of a series into the same record.
// The other seat starts.
func (s *Session) StartNextRound(ctx context.Context) (*Record, error) {
	if s.seat != game.Host {
		return nil, ErrHostOnly
	}
	if _, err := s.ApplyRoundScores(ctx); err != nil {
		return nil, err
	}
	return s.mutate(ctx, func(rec *Record) (Patch, error) {
		if rec.Status != StatusEnded {
			return nil, ErrRoundInProgress
		}
		if rec.SeriesOver() {
			return nil, ErrSeriesOver
		}
		round, err := s.newRound(rec.Rules, rec.FirstTurn.Other(), rec.ID)
		if err != nil {
			return nil, err
		}
		after := rec.Clone()
		after.SetState(round.Snapshot())
		after.MatchNumber++
		after.CumulativeApplied = false
		after.RematchRequestedBy = ""
		after.RematchID = ""
		after.RematchAccepted = false
		after.LastAction = fmt.Sprintf("round %d dealt", after.MatchNumber)
		return Diff(rec, after)
	})
}

// RequestRematch asks the opponent for a fresh game once this one ends
func (s *Session) RequestRematch(ctx context.Context) (*Record, error) {
	return s.mutate(ctx, func(rec *Record) (Patch, error) {
		if rec.Status != StatusEnded {
			return nil, ErrRoundInProgress
		}
		if rec.RematchRequestedBy != "" {
			return nil, nil
		}
		return Patch{"rematchRequestedBy": s.player, "lastAction": s.player + " asked for a rematch"}, nil
	})
}

// AcceptRematch answers the opponent's request: it creates the new game,
// links it from this one and follows it. The seat that went second last
// time starts.
func (s *Session) AcceptRematch(ctx context.Context) (string, error) {
	rec, err := s.store.Get(ctx, s.ID())
	if err != nil {
		return "", err
	}
	if rec.RematchRequestedBy == "" || rec.RematchRequestedBy == s.player {
		return "", ErrNoRematch
	}
	if rec.RematchID != "" {
		s.observe(rec)
		return s.FollowRematch(ctx)
	}

	next, err := s.deal(rec.Rules, rec.FirstTurn.Other())
	if err != nil {
		return "", err
	}
	next.HostID = rec.HostID
	next.GuestID = rec.GuestID
	next.TargetScore = rec.TargetScore
	next.PreviousID = rec.ID
	if err := s.store.Create(ctx, next); err != nil {
		return "", fmt.Errorf("create rematch: %w", err)
	}

	_, err = s.mutate(ctx, func(cur *Record) (Patch, error) {
		if cur.RematchID != "" {
			return nil, fmt.Errorf("rematch already created as %s", cur.RematchID)
		}
		return Patch{"rematchId": next.ID, "rematchAccepted": true, "lastAction": s.player + " accepted a rematch"}, nil
	})
	if err != nil {
		_ = s.store.Delete(ctx, next.ID)
		return "", err
	}
	return s.FollowRematch(ctx)
}

// FollowRematch switches the session to the accepted rematch
func (s *Session) FollowRematch(ctx context.Context) (string, error) {
	s.mu.Lock()
	v := s.view
	if v == nil || v.RematchID == "" || !v.RematchAccepted {
		s.mu.Unlock()
		return "", ErrNoRematch
	}
	next := v.RematchID
	s.id = next
	s.view = nil
	s.local = nil
	s.peerGone = false
	clear(s.reported)
	s.mu.Unlock()

	select {
	case s.switched <- struct{}{}:
	default:
	}
	s.logger.Info("following rematch", "from", v.ID, "to", next)
	if _, err := s.Refresh(ctx); err != nil {
		return next, err
	}
	return next, nil
}

// SendChat appends a message to the game's chat log
func (s *Session) SendChat(ctx context.Context, text string) (*Record, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("empty chat message")
	}
	return s.mutate(ctx, func(rec *Record) (Patch, error) {
		msg := ChatMessage{
			Sender:    s.player,
			Text:      text,
			Timestamp: s.clock.Now(),
			Seq:       rec.nextChatSeq(s.player),
		}
		return Patch{"chat": append(slices.Clone(rec.Chat), msg)}, nil
	})
}

// Leave abandons the game. The round is left as it stands.
func (s *Session) Leave(ctx context.Context) (*Record, error) {
	return s.mutate(ctx, func(rec *Record) (Patch, error) {
		if rec.Status == StatusAbandoned {
			return nil, nil
		}
		return Patch{
			"status":      StatusAbandoned,
			"abandonedBy": s.player,
			"lastAction":  s.player + " left",
		}, nil
	})
}

// Run follows the shared record and keeps the heartbeat going until ctx
// is done
func (s *Session) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.watch(ctx) })
	g.Go(func() error { return s.heartbeatLoop(ctx) })
	return g.Wait()
}

func (s *Session) heartbeatLoop(ctx context.Context) error {
	if err := s.Beat(ctx); err != nil && ctx.Err() == nil {
		s.logger.Warn("heartbeat failed", "error", err)
	}
	ticker := s.clock.NewTicker(s.heartbeat, "session", "heartbeat")
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.Beat(ctx); err != nil && ctx.Err() == nil {
				s.logger.Warn("heartbeat failed", "error", err)
			}
			s.checkPeer()
		}
	}
}

// watch subscribes to the followed record, resubscribing when the session
// moves to a rematch
func (s *Session) watch(ctx context.Context) error {
	for {
		id := s.ID()
		subCtx, cancel := context.WithCancel(ctx)
		ch, err := s.store.Subscribe(subCtx, id)
		if err != nil {
			cancel()
			return fmt.Errorf("subscribe %s: %w", id, err)
		}
		switched, err := s.follow(ctx, ch)
		cancel()
		if err != nil || !switched {
			return err
		}
	}
}

func (s *Session) follow(ctx context.Context, ch <-chan *Record) (bool, error) {
	for {
		select {
		case <-ctx.Done():
			return false, nil
		case <-s.switched:
			return true, nil
		case rec, ok := <-ch:
			if !ok {
				if ctx.Err() != nil {
					return false, nil
				}
				return false, fmt.Errorf("subscription to %s closed", s.ID())
			}
			s.observe(rec)
			s.settleScores(ctx)
		}
	}
}

// settleScores has the host apply an ended round to the series totals as
// soon as it sees one, whichever client ended it
func (s *Session) settleScores(ctx context.Context) {
	if s.seat != game.Host {
		return
	}
	v := s.Record()
	if v == nil || v.Status != StatusEnded || v.CumulativeApplied {
		return
	}
	if _, err := s.ApplyRoundScores(ctx); err != nil && ctx.Err() == nil {
		s.logger.Warn("applying round scores failed", "error", err)
	}
}

// describe is the public one-line account of an action
func describe(player string, a game.Action, res game.Result) string {
	switch a.Kind {
	case game.Draw:
		return player + " drew a card"
	case game.Discard:
		return player + " discarded"
	case game.SwapOwn:
		return fmt.Sprintf("%s swapped into position %d", player, a.Own+1)
	case game.PeekOwn, game.PeekOpponent:
		return player + " peeked"
	case game.CrossSwap:
		return fmt.Sprintf("%s swapped their %d with opponent's %d", player, a.Own+1, a.Opponent+1)
	case game.MatchDiscard:
		if res.Matched {
			return fmt.Sprintf("%s matched position %d", player, a.Own+1)
		}
		return player + " missed a match and took a penalty card"
	case game.CallChukrum:
		return player + " called Chukrum"
	case game.Scramble:
		return player + " scrambled the opponent's hand"
	default:
		return player + " " + a.Kind.String()
	}
}
