// Package config loads chukrum.hcl, then applies .env and environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/joho/godotenv"
	"github.com/lox/chukrum/internal/bot"
	"github.com/lox/chukrum/internal/game"
	"github.com/lox/chukrum/internal/multiplayer"
	"github.com/lox/chukrum/internal/stats"
)

// DefaultFile is the config file read when no path is given
const DefaultFile = "chukrum.hcl"

// Config is the resolved configuration
type Config struct {
	Rules       game.Rules
	Bot         BotSettings
	Multiplayer MultiplayerSettings
	Stats       StatsSettings
	Log         LogSettings
}

// BotSettings configures the scripted opponent
type BotSettings struct {
	Difficulty      bot.Difficulty
	ThinkMin        time.Duration
	ThinkMax        time.Duration
	ScrambleMargin  int
	ScrambleMinTurn int
}

// Profile returns the difficulty's profile with the configured scramble
// thresholds
func (b BotSettings) Profile() bot.Profile {
	p := bot.ProfileFor(b.Difficulty)
	if p.Scramble {
		p.ScrambleMargin = b.ScrambleMargin
		p.ScrambleMinTurn = b.ScrambleMinTurn
	}
	return p
}

// MultiplayerSettings configures the relay and the shared-game session
type MultiplayerSettings struct {
	Server          string
	Listen          string
	Snapshot        string
	Player          string
	Heartbeat       time.Duration
	DisconnectAfter time.Duration
	TargetScore     int
	MaxRetries      int

	// Token is presented to the relay, and required by it when AuthURL
	// is empty
	Token      string
	AuthURL    string
	AuthSecret string

	// AuthFailOpen admits clients while AuthURL is unreachable
	AuthFailOpen bool
}

// StatsSettings selects the round-result recorder
type StatsSettings struct {
	Driver string
	DSN    string
}

// LogSettings configures logging
type LogSettings struct {
	Level string
	File  string
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Rules: game.DefaultRules(),
		Bot: BotSettings{
			Difficulty:      bot.Normal,
			ThinkMin:        game.DefaultThinkMin,
			ThinkMax:        game.DefaultThinkMax,
			ScrambleMargin:  10,
			ScrambleMinTurn: 6,
		},
		Multiplayer: MultiplayerSettings{
			Server:          "ws://localhost:8080/ws",
			Listen:          ":8080",
			Heartbeat:       multiplayer.DefaultHeartbeat,
			DisconnectAfter: multiplayer.DefaultDisconnectAfter,
			MaxRetries:      multiplayer.DefaultMaxRetries,
		},
		Stats: StatsSettings{
			Driver: stats.DriverSQLite,
			DSN:    "chukrum.db",
		},
		Log: LogSettings{
			Level: "info",
		},
	}
}

// Load reads filename, then .env, then the environment, and validates the
// result
func Load(filename string) (*Config, error) {
	cfg, err := LoadConfig(filename)
	if err != nil {
		return nil, err
	}
	if err := LoadDotEnv(); err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(nil); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadConfig loads configuration from an HCL file. A missing file yields
// the defaults; attributes left out of the file keep their defaults.
func LoadConfig(filename string) (*Config, error) {
	cfg := DefaultConfig()
	if _, err := os.Stat(filename); errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var f fileConfig
	diags = gohcl.DecodeBody(file.Body, nil, &f)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}
	if err := f.apply(cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return cfg, nil
}

// LoadDotEnv loads the named .env files (".env" by default) into the
// process environment. Missing files are skipped and variables already set
// win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// envOverrides holds raw override values from the environment
type envOverrides struct {
	LogLevel    string `env:"CHUKRUM_LOG_LEVEL"`
	LogFile     string `env:"CHUKRUM_LOG_FILE"`
	Server      string `env:"CHUKRUM_SERVER"`
	Player      string `env:"CHUKRUM_PLAYER"`
	Token       string `env:"CHUKRUM_TOKEN"`
	AuthSecret  string `env:"CHUKRUM_AUTH_SECRET"`
	StatsDriver string `env:"CHUKRUM_STATS_DRIVER"`
	StatsDSN    string `env:"CHUKRUM_STATS_DSN"`
	Difficulty  string `env:"CHUKRUM_DIFFICULTY"`
	TargetScore string `env:"CHUKRUM_TARGET_SCORE"`
}

// ApplyEnv overrides settings from environ, or from the process
// environment when environ is nil
func (c *Config) ApplyEnv(environ map[string]string) error {
	var raw envOverrides
	var err error
	if environ == nil {
		err = env.Parse(&raw)
	} else {
		err = env.ParseWithOptions(&raw, env.Options{Environment: environ})
	}
	if err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	setString(&c.Log.Level, raw.LogLevel)
	setString(&c.Log.File, raw.LogFile)
	setString(&c.Multiplayer.Server, raw.Server)
	setString(&c.Multiplayer.Player, raw.Player)
	setString(&c.Multiplayer.Token, raw.Token)
	setString(&c.Multiplayer.AuthSecret, raw.AuthSecret)
	setString(&c.Stats.Driver, raw.StatsDriver)
	setString(&c.Stats.DSN, raw.StatsDSN)
	if raw.Difficulty != "" {
		d, err := bot.ParseDifficulty(raw.Difficulty)
		if err != nil {
			return fmt.Errorf("CHUKRUM_DIFFICULTY: %w", err)
		}
		c.Bot.Difficulty = d
	}
	if raw.TargetScore != "" {
		n, err := strconv.Atoi(raw.TargetScore)
		if err != nil {
			return fmt.Errorf("CHUKRUM_TARGET_SCORE: %w", err)
		}
		c.Multiplayer.TargetScore = n
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Rules.HandSize < 1 || c.Rules.HandSize > 8 {
		return fmt.Errorf("hand size must be between 1 and 8, got %d", c.Rules.HandSize)
	}
	if c.Bot.ThinkMin < 0 || c.Bot.ThinkMax < c.Bot.ThinkMin {
		return fmt.Errorf("bot think delay %s-%s is not a valid range", c.Bot.ThinkMin, c.Bot.ThinkMax)
	}
	if c.Bot.ScrambleMargin < 0 || c.Bot.ScrambleMinTurn < 0 {
		return fmt.Errorf("bot scramble thresholds must not be negative")
	}
	if c.Multiplayer.Heartbeat <= 0 {
		return fmt.Errorf("heartbeat must be positive")
	}
	if c.Multiplayer.DisconnectAfter <= c.Multiplayer.Heartbeat {
		return fmt.Errorf("disconnect_after (%s) must be longer than heartbeat (%s)",
			c.Multiplayer.DisconnectAfter, c.Multiplayer.Heartbeat)
	}
	if c.Multiplayer.TargetScore < 0 {
		return fmt.Errorf("target score must not be negative")
	}
	if c.Multiplayer.MaxRetries < 0 {
		return fmt.Errorf("max retries must not be negative")
	}
	if c.Multiplayer.Server == "" {
		return fmt.Errorf("multiplayer server is required")
	}
	switch c.Stats.Driver {
	case stats.DriverNone, stats.DriverSQLite, stats.DriverPostgres:
	default:
		return fmt.Errorf("unknown stats driver %q", c.Stats.Driver)
	}
	if c.Stats.Driver != stats.DriverNone && c.Stats.DSN == "" {
		return fmt.Errorf("stats driver %s needs a dsn", c.Stats.Driver)
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log level %q", c.Log.Level)
	}
	return nil
}
