package main

import (
	"time"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"
	"github.com/lox/chukrum/cmd/chukrum/shared"
	"github.com/lox/chukrum/internal/config"
	"github.com/lox/chukrum/internal/randutil"
)

// version is set by ldflags during build
var version = "dev"

// Globals are the flags every command shares
type Globals struct {
	Config   string `short:"c" default:"chukrum.hcl" type:"path" help:"Configuration file"`
	LogLevel string `help:"Log level (debug, info, warn, error); overrides the config file"`
	LogFile  string `type:"path" help:"Write logs to this file; overrides the config file"`
	Seed     *int64 `help:"Deterministic RNG seed (optional)"`
}

// setup loads the configuration and builds the logger. The returned func
// closes the log file.
func (g *Globals) setup() (*config.Config, *log.Logger, func(), error) {
	cfg, err := config.Load(g.Config)
	if err != nil {
		return nil, nil, nil, err
	}
	if g.LogLevel != "" {
		cfg.Log.Level = g.LogLevel
	}
	if g.LogFile != "" {
		cfg.Log.File = g.LogFile
	}
	logger, closeFn, err := shared.SetupLogger(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, logger, func() { _ = closeFn() }, nil
}

// seed returns the --seed value, or a fresh one that is logged so the game
// can be replayed
func (g *Globals) seed(logger *log.Logger) int64 {
	if g.Seed != nil {
		logger.Info("Using deterministic seed", "seed", *g.Seed)
		return *g.Seed
	}
	seed := randutil.Seed()
	logger.Info("Using random seed", "seed", seed)
	return seed
}

type CLI struct {
	Globals

	Version  kong.VersionFlag `short:"v" help:"Show version"`
	Play     PlayCmd          `cmd:"" help:"Play a round against the bot"`
	Simulate SimulateCmd      `cmd:"" help:"Play bots against each other and summarise the results"`
	Serve    ServeCmd         `cmd:"" help:"Run the record store relay for multiplayer games"`
	Host     HostCmd          `cmd:"" help:"Host a multiplayer game"`
	Join     JoinCmd          `cmd:"" help:"Join a multiplayer game"`
	Stats    StatsCmd         `cmd:"" help:"Show recorded results for a player"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("chukrum"),
		kong.Description("Chukrum, the two-player low-score card game"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
		},
	)
	err := ctx.Run(&cli.Globals)
	ctx.FatalIfErrorf(err)
}

// timestamp formats times in REPL status lines
func timestamp(t time.Time) string {
	return t.Local().Format(time.Kitchen)
}
