package main

import (
	"context"
	"errors"
	"io"
	"os"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/lox/chukrum/cmd/chukrum/shared"
	"github.com/lox/chukrum/internal/bot"
	"github.com/lox/chukrum/internal/deck"
	"github.com/lox/chukrum/internal/display"
	"github.com/lox/chukrum/internal/game"
	"github.com/lox/chukrum/internal/randutil"
	"github.com/lox/chukrum/internal/stats"
)

// PlayCmd plays solo rounds against the bot
type PlayCmd struct {
	Difficulty string `short:"d" help:"Bot difficulty (easy, normal, hard); overrides the config file"`
	Player     string `short:"p" default:"you" help:"Name your results are recorded under"`
}

func (c *PlayCmd) Run(g *Globals) error {
	cfg, logger, done, err := g.setup()
	if err != nil {
		return err
	}
	defer done()

	if c.Difficulty != "" {
		d, err := bot.ParseDifficulty(c.Difficulty)
		if err != nil {
			return err
		}
		cfg.Bot.Difficulty = d
	}
	seed := g.seed(logger)
	ctx := shared.SetupSignalHandler()

	recorder, err := stats.Open(ctx, cfg.Stats.Driver, cfg.Stats.DSN)
	if err != nil {
		return err
	}
	defer func() { _ = recorder.Close() }()

	profile := cfg.Bot.Profile()
	b := bot.New(game.Guest, cfg.Bot.Difficulty, randutil.New(randutil.Derive(seed, 1)),
		bot.WithLogger(logger), bot.WithProfile(profile))
	clock := quartz.NewReal()
	opts := []game.EngineOption{
		game.WithThinkDelay(cfg.Bot.ThinkMin, cfg.Bot.ThinkMax),
		game.WithEngineClock(clock),
		game.WithEngineLogger(logger),
		game.WithRoundOptions(game.WithRules(bot.TableRules(cfg.Rules, profile))),
	}
	if profile.MovesFirst {
		opts = append(opts, game.WithBotFirst())
	}
	engine := game.NewEngine(randutil.New(seed), b, opts...)
	defer engine.Close()

	updates := newPoke()
	engine.GetEventBus().Subscribe(b)
	engine.GetEventBus().Subscribe(updates)

	players := [2]string{c.Player, "bot-" + cfg.Bot.Difficulty.String()}
	engine.OnRoundEnd(roundRecorder(ctx, recorder, clock, players, cfg.Bot.Difficulty, logger))

	s := &soloREPL{
		engine: engine,
		notes:  display.NewNotes(),
		con:    &console{out: os.Stdout, renderer: display.NewRenderer(nil)},
		logger: logger,
	}
	s.con.println(s.con.renderer.Styles().Header.Render(" ♠ ♥ Chukrum ♦ ♣ "))
	s.con.info("Playing %s. Type 'help' for commands.", cfg.Bot.Difficulty)
	return s.run(ctx, os.Stdin, updates)
}

// roundRecorder returns an engine hook that stores each finished round,
// numbered from one and stamped with clock
func roundRecorder(ctx context.Context, rec stats.Recorder, clock quartz.Clock, players [2]string, d bot.Difficulty, logger *log.Logger) func(*game.Round, game.Outcome) {
	var played atomic.Int64
	return func(r *game.Round, o game.Outcome) {
		result := stats.ResultFromOutcome(r.ID(), int(played.Add(1)), o, players, clock.Now())
		result.Difficulty = d.String()
		if err := rec.Record(ctx, result); err != nil {
			logger.Warn("Failed to record round", "error", err)
		}
	}
}

// soloREPL is the terminal front end of the solo engine
type soloREPL struct {
	engine *game.Engine
	notes  *display.Notes
	con    *console
	logger *log.Logger

	shownTurn  int
	shownRound string
	shownEnd   bool
}

func (s *soloREPL) run(ctx context.Context, in io.Reader, updates poke) error {
	if _, err := s.engine.NewRound(); err != nil {
		return err
	}
	s.refresh(true)

	lines := readLines(ctx, in)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-updates:
			s.refresh(false)
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			quit, err := s.handle(line)
			if err != nil {
				return err
			}
			if quit {
				return nil
			}
		}
	}
}

// refresh redraws the table when something worth showing happened: the
// turn came back to the player or the round ended
func (s *soloREPL) refresh(force bool) {
	v := s.engine.View()
	s.notes.Observe(v)
	if v.RoundID != s.shownRound {
		s.shownRound, s.shownEnd, s.shownTurn = v.RoundID, false, -1
	}

	if v.Phase == game.Ended {
		if s.shownEnd && !force {
			return
		}
		s.shownEnd = true
		s.con.println(s.con.renderer.Outcome(*v.Outcome,
			[2][]deck.Card{s.engine.Reveal(game.Host), s.engine.Reveal(game.Guest)}, v.Seat))
		s.con.info("Type 'new' for another round or 'quit' to stop.")
		s.con.prompt()
		return
	}
	if !force && (!v.MyTurn() || v.TurnNumber == s.shownTurn) {
		return
	}
	s.shownTurn = v.TurnNumber
	s.con.println(s.con.renderer.Table(v, s.notes))
	s.con.prompt()
}

func (s *soloREPL) handle(line string) (bool, error) {
	cmd, err := display.ParseCommand(line)
	if err != nil {
		s.con.rejected(err)
		s.con.prompt()
		return false, nil
	}

	switch {
	case cmd.IsMove():
		before := s.engine.View()
		res, err := s.engine.Apply(*cmd.Action)
		if err != nil {
			s.logger.Debug("move rejected", "action", cmd.Action, "error", err)
			s.con.rejected(err)
			s.con.prompt()
			return false, nil
		}
		s.notes.Record(*cmd.Action, res, before)
		if msg := describeResult(s.con.renderer, res); msg != "" {
			s.con.success("%s", msg)
		}
		s.refresh(true)
	case cmd.Name == "quit":
		return true, nil
	case cmd.Name == "help":
		s.con.println(display.Help(false))
		s.con.prompt()
	case cmd.Name == "show":
		s.refresh(true)
	case cmd.Name == "new":
		if _, err := s.engine.NewRound(); err != nil {
			return false, err
		}
		s.refresh(true)
	case cmd.Name == "":
		s.con.prompt()
	default:
		s.con.rejected(errors.New(cmd.Name + " is only available in multiplayer games"))
		s.con.prompt()
	}
	return false, nil
}
