package main

import (
	"context"
	"fmt"
	"os"

	"github.com/lox/chukrum/internal/stats"
)

// StatsCmd prints a player's recorded totals
type StatsCmd struct {
	Player string `short:"p" required:"" help:"Player to show"`
}

func (c *StatsCmd) Run(g *Globals) error {
	cfg, _, done, err := g.setup()
	if err != nil {
		return err
	}
	defer done()

	ctx := context.Background()
	recorder, err := stats.Open(ctx, cfg.Stats.Driver, cfg.Stats.DSN)
	if err != nil {
		return err
	}
	defer func() { _ = recorder.Close() }()

	t, err := recorder.Totals(ctx, c.Player)
	if err != nil {
		return err
	}
	winRate := 0.0
	if t.Games > 0 {
		winRate = float64(t.Wins) / float64(t.Games) * 100
	}
	fmt.Fprintf(os.Stdout, "%s: %d games, %d wins, %d losses, %d ties (%.1f%% won)\n",
		c.Player, t.Games, t.Wins, t.Losses, t.Ties, winRate)
	return nil
}
