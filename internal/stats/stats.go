// Package stats records finished rounds and keeps per-player totals. The
// solo engine and the multiplayer session both report through a Recorder;
// SQLite and Postgres back it when persistence is configured.
package stats

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lox/chukrum/internal/game"
)

// RoundResult is one finished round
type RoundResult struct {
	RecordID    string
	MatchNumber int
	Scores      [2]int
	Winner      *game.Seat
	Players     [2]string
	Difficulty  string
	At          time.Time
}

// ResultFromOutcome builds a RoundResult for an ended round
func ResultFromOutcome(recordID string, match int, o game.Outcome, players [2]string, at time.Time) RoundResult {
	r := RoundResult{
		RecordID:    recordID,
		MatchNumber: match,
		Scores:      o.Scores,
		Players:     players,
		At:          at,
	}
	if !o.Tie {
		w := o.Winner
		r.Winner = &w
	}
	return r
}

func (r RoundResult) validate() error {
	if strings.TrimSpace(r.RecordID) == "" {
		return errors.New("record id is required")
	}
	if r.MatchNumber <= 0 {
		return fmt.Errorf("invalid match number %d", r.MatchNumber)
	}
	if r.Winner != nil && !r.Winner.Valid() {
		return fmt.Errorf("invalid winner seat %d", *r.Winner)
	}
	return nil
}

// outcomeFor reports how the round went for seat s
func (r RoundResult) outcomeFor(s game.Seat) (win, loss, tie int) {
	switch {
	case r.Winner == nil:
		return 0, 0, 1
	case *r.Winner == s:
		return 1, 0, 0
	default:
		return 0, 1, 0
	}
}

// Totals is a player's lifetime record
type Totals struct {
	Games  int
	Wins   int
	Losses int
	Ties   int
}

// Recorder persists round results
type Recorder interface {
	// Record stores a result. Recording the same record id and match
	// number twice counts it once.
	Record(ctx context.Context, r RoundResult) error
	Totals(ctx context.Context, player string) (Totals, error)
	Close() error
}

// Driver names accepted by Open
const (
	DriverNone     = "none"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Open returns the recorder for driver
func Open(ctx context.Context, driver, dsn string) (Recorder, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", DriverNone:
		return Nop{}, nil
	case DriverSQLite:
		return OpenSQLite(ctx, dsn)
	case DriverPostgres:
		return OpenPostgres(ctx, dsn)
	default:
		return nil, fmt.Errorf("unknown stats driver %q", driver)
	}
}

// Nop discards results
type Nop struct{}

func (Nop) Record(context.Context, RoundResult) error { return nil }

func (Nop) Totals(context.Context, string) (Totals, error) { return Totals{}, nil }

func (Nop) Close() error { return nil }

var _ Recorder = Nop{}
