package main

import (
	"os"
	"runtime"
	"time"

	"github.com/lox/chukrum/cmd/chukrum/shared"
	"github.com/lox/chukrum/internal/bot"
	"github.com/lox/chukrum/internal/simulator"
)

// SimulateCmd plays two bot profiles against each other
type SimulateCmd struct {
	Rounds  int           `default:"1000" help:"Number of deals; each is played twice with the seats swapped"`
	A       string        `default:"hard" help:"Difficulty of bot A"`
	B       string        `default:"normal" help:"Difficulty of bot B"`
	Workers int           `default:"0" help:"Parallel workers (0 for one per CPU)"`
	Timeout time.Duration `default:"5s" help:"Timeout for a single round"`
}

func (c *SimulateCmd) Run(g *Globals) error {
	cfg, logger, done, err := g.setup()
	if err != nil {
		return err
	}
	defer done()

	profiles := [2]bot.Profile{}
	for i, name := range []string{c.A, c.B} {
		d, err := bot.ParseDifficulty(name)
		if err != nil {
			return err
		}
		settings := cfg.Bot
		settings.Difficulty = d
		profiles[i] = settings.Profile()
	}
	workers := c.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	seed := g.seed(logger)
	ctx := shared.SetupSignalHandlerWithLogger(logger)

	logger.Info("Starting simulation", "deals", c.Rounds, "a", profiles[0].Difficulty,
		"b", profiles[1].Difficulty, "workers", workers)
	start := time.Now()
	sum, err := simulator.New(simulator.Config{
		Deals:   c.Rounds,
		A:       profiles[0],
		B:       profiles[1],
		Rules:   cfg.Rules,
		Seed:    seed,
		Workers: workers,
		Timeout: c.Timeout,
		Logger:  logger,
	}).Run(ctx)
	if err != nil {
		if ctx.Err() != nil {
			logger.Warn("Simulation interrupted")
			return nil
		}
		return err
	}
	logger.Info("Simulation finished", "rounds", sum.Rounds, "elapsed", time.Since(start).Round(time.Millisecond))

	simulator.PrintSummary(os.Stdout, sum,
		[2]string{"A (" + profiles[0].Difficulty.String() + ")", "B (" + profiles[1].Difficulty.String() + ")"})
	return nil
}
