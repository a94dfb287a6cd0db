package config

import (
	"fmt"
	"time"

	"github.com/lox/chukrum/internal/bot"
	"github.com/lox/chukrum/internal/game"
)

// fileConfig mirrors chukrum.hcl. Every block and attribute is optional.
type fileConfig struct {
	Rules       *rulesBlock       `hcl:"rules,block"`
	Bot         *botBlock         `hcl:"bot,block"`
	Multiplayer *multiplayerBlock `hcl:"multiplayer,block"`
	Stats       *statsBlock       `hcl:"stats,block"`
	Log         *logBlock         `hcl:"log,block"`
}

type rulesBlock struct {
	HandSize        *int    `hcl:"hand_size,optional"`
	QueenPeek       *string `hcl:"queen_peek,optional"`
	MatchOutOfTurn  *bool   `hcl:"match_out_of_turn,optional"`
	AutoDiscardJack *bool   `hcl:"auto_discard_jack,optional"`
	Scramble        *bool   `hcl:"scramble,optional"`
}

type botBlock struct {
	Difficulty      *string `hcl:"difficulty,optional"`
	ThinkMin        *string `hcl:"think_min,optional"`
	ThinkMax        *string `hcl:"think_max,optional"`
	ScrambleMargin  *int    `hcl:"scramble_margin,optional"`
	ScrambleMinTurn *int    `hcl:"scramble_min_turn,optional"`
}

type multiplayerBlock struct {
	Server          *string `hcl:"server,optional"`
	Listen          *string `hcl:"listen,optional"`
	Snapshot        *string `hcl:"snapshot,optional"`
	Player          *string `hcl:"player,optional"`
	Heartbeat       *string `hcl:"heartbeat,optional"`
	DisconnectAfter *string `hcl:"disconnect_after,optional"`
	TargetScore     *int    `hcl:"target_score,optional"`
	MaxRetries      *int    `hcl:"max_retries,optional"`
	Token           *string `hcl:"token,optional"`
	AuthURL         *string `hcl:"auth_url,optional"`
	AuthSecret      *string `hcl:"auth_secret,optional"`
	AuthFailOpen    *bool   `hcl:"auth_fail_open,optional"`
}

type statsBlock struct {
	Driver *string `hcl:"driver,optional"`
	DSN    *string `hcl:"dsn,optional"`
}

type logBlock struct {
	Level *string `hcl:"level,optional"`
	File  *string `hcl:"file,optional"`
}

func (f *fileConfig) apply(cfg *Config) error {
	if r := f.Rules; r != nil {
		set(&cfg.Rules.HandSize, r.HandSize)
		set(&cfg.Rules.MatchOutOfTurn, r.MatchOutOfTurn)
		set(&cfg.Rules.AutoDiscardJack, r.AutoDiscardJack)
		set(&cfg.Rules.Scramble, r.Scramble)
		if r.QueenPeek != nil {
			q, err := game.ParseQueenPeek(*r.QueenPeek)
			if err != nil {
				return fmt.Errorf("rules: %w", err)
			}
			cfg.Rules.QueenPeek = q
		}
	}

	if b := f.Bot; b != nil {
		if b.Difficulty != nil {
			d, err := bot.ParseDifficulty(*b.Difficulty)
			if err != nil {
				return fmt.Errorf("bot: %w", err)
			}
			cfg.Bot.Difficulty = d
		}
		if err := setDuration(&cfg.Bot.ThinkMin, b.ThinkMin, "bot.think_min"); err != nil {
			return err
		}
		if err := setDuration(&cfg.Bot.ThinkMax, b.ThinkMax, "bot.think_max"); err != nil {
			return err
		}
		set(&cfg.Bot.ScrambleMargin, b.ScrambleMargin)
		set(&cfg.Bot.ScrambleMinTurn, b.ScrambleMinTurn)
	}

	if m := f.Multiplayer; m != nil {
		set(&cfg.Multiplayer.Server, m.Server)
		set(&cfg.Multiplayer.Listen, m.Listen)
		set(&cfg.Multiplayer.Snapshot, m.Snapshot)
		set(&cfg.Multiplayer.Player, m.Player)
		set(&cfg.Multiplayer.TargetScore, m.TargetScore)
		set(&cfg.Multiplayer.MaxRetries, m.MaxRetries)
		set(&cfg.Multiplayer.Token, m.Token)
		set(&cfg.Multiplayer.AuthURL, m.AuthURL)
		set(&cfg.Multiplayer.AuthSecret, m.AuthSecret)
		set(&cfg.Multiplayer.AuthFailOpen, m.AuthFailOpen)
		if err := setDuration(&cfg.Multiplayer.Heartbeat, m.Heartbeat, "multiplayer.heartbeat"); err != nil {
			return err
		}
		if err := setDuration(&cfg.Multiplayer.DisconnectAfter, m.DisconnectAfter, "multiplayer.disconnect_after"); err != nil {
			return err
		}
	}

	if s := f.Stats; s != nil {
		set(&cfg.Stats.Driver, s.Driver)
		set(&cfg.Stats.DSN, s.DSN)
	}

	if l := f.Log; l != nil {
		set(&cfg.Log.Level, l.Level)
		set(&cfg.Log.File, l.File)
	}
	return nil
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *string, name string) error {
	if v == nil {
		return nil
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = d
	return nil
}
