package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/lox/chukrum/cmd/chukrum/shared"
	"github.com/lox/chukrum/internal/client"
	"github.com/lox/chukrum/internal/config"
	"github.com/lox/chukrum/internal/deck"
	"github.com/lox/chukrum/internal/display"
	"github.com/lox/chukrum/internal/game"
	"github.com/lox/chukrum/internal/multiplayer"
	"github.com/lox/chukrum/internal/randutil"
	"github.com/lox/chukrum/internal/stats"
)

// HostCmd creates a shared game and waits for a guest
type HostCmd struct {
	Player string `short:"p" help:"Your player name; overrides the config file"`
	Target *int   `help:"Series target score, 0 for single rounds; overrides the config file"`
}

func (c *HostCmd) Run(g *Globals) error {
	return playShared(g, c.Player, func(cfg *config.Config) {
		if c.Target != nil {
			cfg.Multiplayer.TargetScore = *c.Target
		}
	}, func(ctx context.Context, store multiplayer.Store, player string, opts []multiplayer.Option) (*multiplayer.Session, error) {
		return multiplayer.Host(ctx, store, player, opts...)
	})
}

// JoinCmd takes the guest seat of a shared game
type JoinCmd struct {
	ID     string `required:"" help:"Id of the game to join"`
	Player string `short:"p" help:"Your player name; overrides the config file"`
}

func (c *JoinCmd) Run(g *Globals) error {
	return playShared(g, c.Player, nil,
		func(ctx context.Context, store multiplayer.Store, player string, opts []multiplayer.Option) (*multiplayer.Session, error) {
			return multiplayer.Join(ctx, store, c.ID, player, opts...)
		})
}

type sessionStarter func(ctx context.Context, store multiplayer.Store, player string, opts []multiplayer.Option) (*multiplayer.Session, error)

func playShared(g *Globals, player string, adjust func(*config.Config), start sessionStarter) error {
	cfg, logger, done, err := g.setup()
	if err != nil {
		return err
	}
	defer done()

	if adjust != nil {
		adjust(cfg)
	}
	if player == "" {
		player = cfg.Multiplayer.Player
	}
	if strings.TrimSpace(player) == "" {
		return errors.New("a player name is required (--player, CHUKRUM_PLAYER or the config file)")
	}
	seed := g.seed(logger)
	ctx, cancel := context.WithCancel(shared.SetupSignalHandlerWithLogger(logger))
	defer cancel()

	recorder, err := stats.Open(ctx, cfg.Stats.Driver, cfg.Stats.DSN)
	if err != nil {
		return err
	}
	defer func() { _ = recorder.Close() }()

	store, err := client.Dial(ctx, cfg.Multiplayer.Server,
		client.WithLogger(logger), client.WithToken(cfg.Multiplayer.Token))
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	sess, err := start(ctx, store, player, []multiplayer.Option{
		multiplayer.WithLogger(logger),
		multiplayer.WithRand(randutil.New(seed)),
		multiplayer.WithRules(cfg.Rules),
		multiplayer.WithTargetScore(cfg.Multiplayer.TargetScore),
		multiplayer.WithHeartbeat(cfg.Multiplayer.Heartbeat, cfg.Multiplayer.DisconnectAfter),
		multiplayer.WithMaxRetries(cfg.Multiplayer.MaxRetries),
	})
	if err != nil {
		return err
	}

	changes := newPoke()
	sess.OnChange(func(*multiplayer.Record) { changes.signal() })
	sess.OnRoundResult(func(r stats.RoundResult) {
		if err := recorder.Record(ctx, r); err != nil {
			logger.Warn("Failed to record round", "error", err)
		}
	})

	runErr := make(chan error, 1)
	go func() { runErr <- sess.Run(ctx) }()

	s := &sessionREPL{
		sess:   sess,
		notes:  display.NewNotes(),
		con:    &console{out: os.Stdout, renderer: display.NewRenderer(nil)},
		logger: logger,
	}
	s.con.println(s.con.renderer.Styles().Header.Render(" ♠ ♥ Chukrum ♦ ♣ "))
	if sess.Seat() == game.Host {
		s.con.info("Game id: %s", sess.ID())
		s.con.info("Your opponent joins with: chukrum join --id %s", sess.ID())
	}
	s.con.info("Type 'help' for commands.")
	return s.run(ctx, os.Stdin, changes, runErr)
}

// sessionREPL is the terminal front end of a shared game
type sessionREPL struct {
	sess   *multiplayer.Session
	notes  *display.Notes
	con    *console
	logger *log.Logger

	last      *multiplayer.Record
	chatSeen  int
	shownTurn string
	peerGone  bool
}

func (s *sessionREPL) run(ctx context.Context, in io.Reader, changes poke, runErr <-chan error) error {
	s.refresh(ctx, true)

	lines := readLines(ctx, in)
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-runErr:
			if ctx.Err() != nil {
				return nil
			}
			return err
		case <-changes:
			s.refresh(ctx, false)
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if s.handle(ctx, line) {
				return nil
			}
		}
	}
}

func (s *sessionREPL) opponent(rec *multiplayer.Record) string {
	if name := rec.PlayerID(s.sess.Seat().Other()); name != "" {
		return name
	}
	return "opponent"
}

// refresh reports what changed since the last record and redraws the
// table when the turn comes back or force is set
func (s *sessionREPL) refresh(ctx context.Context, force bool) {
	rec := s.sess.Record()
	if rec == nil {
		return
	}
	prev := s.last
	if prev != nil && prev.ID != rec.ID {
		prev, s.chatSeen = nil, 0
	}
	s.last = rec
	s.announce(ctx, prev, rec)
	s.announcePeer(rec)

	v, err := s.sess.View()
	if err != nil {
		s.logger.Debug("no table to show", "error", err)
		return
	}
	v.RoundID = fmt.Sprintf("%s/%d", rec.ID, rec.MatchNumber)
	s.notes.Observe(v)

	if !rec.Status.Active() && rec.Status != multiplayer.StatusWaiting && !force {
		return
	}
	key := fmt.Sprintf("%s/%d", v.RoundID, v.TurnNumber)
	if !force && (!v.MyTurn() || key == s.shownTurn) {
		return
	}
	if v.MyTurn() {
		s.shownTurn = key
	}
	s.con.println(s.con.renderer.Table(v, s.notes))
	s.con.prompt()
}

// announcePeer reports the opponent dropping off or coming back
func (s *sessionREPL) announcePeer(rec *multiplayer.Record) {
	gone := s.sess.PeerGone()
	if gone == s.peerGone {
		return
	}
	s.peerGone = gone
	if gone {
		s.con.warn("%s appears disconnected", s.opponent(rec))
	} else {
		s.con.success("%s is back", s.opponent(rec))
	}
}

// announce prints the opponent's moves, chat and lifecycle changes
func (s *sessionREPL) announce(ctx context.Context, prev, rec *multiplayer.Record) {
	me := s.sess.Player()
	them := s.opponent(rec)

	if s.chatSeen > len(rec.Chat) {
		s.chatSeen = 0
	}
	for _, m := range rec.Chat[s.chatSeen:] {
		if m.Sender != me {
			s.con.println(fmt.Sprintf("[%s] %s: %s", timestamp(m.Timestamp), m.Sender, m.Text))
		}
	}
	s.chatSeen = len(rec.Chat)

	if prev == nil {
		return
	}
	if rec.LastAction != "" && rec.LastAction != prev.LastAction && !strings.HasPrefix(rec.LastAction, me+" ") {
		s.con.info("%s", rec.LastAction)
	}
	if rec.MatchNumber != prev.MatchNumber {
		s.con.success("Round %d dealt", rec.MatchNumber)
	}

	switch {
	case rec.Status == multiplayer.StatusEnded && (prev.Status != multiplayer.StatusEnded || prev.MatchNumber != rec.MatchNumber):
		if o, ok := rec.Outcome(); ok {
			s.con.println(s.con.renderer.Outcome(o, [2][]deck.Card{rec.HostHand, rec.GuestHand}, s.sess.Seat()))
		}
		if rec.TargetScore <= 0 {
			s.con.info("Type 'rematch' to play again or 'leave' to stop.")
		}
	case rec.Status == multiplayer.StatusAbandoned && prev.Status != multiplayer.StatusAbandoned:
		if rec.AbandonedBy != me {
			s.con.warn("%s left the game", rec.AbandonedBy)
		}
	}

	if rec.TargetScore > 0 && rec.CumulativeApplied && !prev.CumulativeApplied {
		scores := rec.CumulativeScores()
		seat := s.sess.Seat()
		s.con.info("Series to %d: you %d, %s %d", rec.TargetScore, scores[seat], them, scores[seat.Other()])
		switch {
		case !rec.SeriesOver():
			if seat == game.Host {
				s.con.info("Type 'next' to deal the next round.")
			}
		case rec.SeriesWinner() == seat:
			s.con.success("You win the series! Type 'rematch' for a new one.")
		case rec.SeriesWinner() == game.NoSeat:
			s.con.warn("The series is tied. Type 'rematch' for a new one.")
		default:
			s.con.warn("%s wins the series. Type 'rematch' for a new one.", them)
		}
	}

	if rec.RematchRequestedBy != "" && rec.RematchRequestedBy != me && prev.RematchRequestedBy == "" {
		s.con.warn("%s wants a rematch. Type 'accept' to play again.", rec.RematchRequestedBy)
	}
	if rec.RematchAccepted && !prev.RematchAccepted && rec.RematchRequestedBy == me {
		id, err := s.sess.FollowRematch(ctx)
		if err != nil {
			s.con.rejected(err)
			return
		}
		s.con.success("Rematch accepted, now playing %s", id)
	}
}

// handle runs one command and reports whether to quit
func (s *sessionREPL) handle(ctx context.Context, line string) bool {
	cmd, err := display.ParseCommand(line)
	if err != nil {
		s.con.rejected(err)
		s.con.prompt()
		return false
	}

	switch {
	case cmd.IsMove():
		before, _ := s.sess.View()
		res, err := s.sess.Submit(ctx, *cmd.Action)
		if err != nil {
			s.logger.Debug("move rejected", "action", cmd.Action, "error", err)
			s.con.rejected(err)
			break
		}
		s.notes.Record(*cmd.Action, res, before)
		if msg := describeResult(s.con.renderer, res); msg != "" {
			s.con.success("%s", msg)
		}
		s.refresh(ctx, true)
		return false
	case cmd.Name == "quit":
		return true
	case cmd.Name == "help":
		s.con.println(display.Help(true))
	case cmd.Name == "show":
		s.refresh(ctx, true)
		return false
	case cmd.Name == "chat":
		if _, err := s.sess.SendChat(ctx, cmd.Arg); err != nil {
			s.con.rejected(err)
		}
	case cmd.Name == "next":
		if _, err := s.sess.StartNextRound(ctx); err != nil {
			s.con.rejected(err)
			break
		}
		s.refresh(ctx, true)
		return false
	case cmd.Name == "rematch":
		if _, err := s.sess.RequestRematch(ctx); err != nil {
			s.con.rejected(err)
			break
		}
		s.con.info("Rematch requested, waiting for %s", s.opponent(s.sess.Record()))
	case cmd.Name == "accept":
		id, err := s.sess.AcceptRematch(ctx)
		if err != nil {
			s.con.rejected(err)
			break
		}
		s.con.success("Rematch accepted, now playing %s", id)
		s.refresh(ctx, true)
		return false
	case cmd.Name == "follow":
		id, err := s.sess.FollowRematch(ctx)
		if err != nil {
			s.con.rejected(err)
			break
		}
		s.con.success("Now playing %s", id)
		s.refresh(ctx, true)
		return false
	case cmd.Name == "leave":
		if _, err := s.sess.Leave(ctx); err != nil {
			s.con.rejected(err)
			break
		}
		s.con.info("You left the game")
		return true
	case cmd.Name == "new":
		s.con.rejected(errors.New("use 'next' in a series or 'rematch' after a single round"))
	}
	s.con.prompt()
	return false
}
