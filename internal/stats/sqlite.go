package stats

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/lox/chukrum/internal/game"
	_ "modernc.org/sqlite"
)

// SQLiteStore keeps results in a local SQLite file
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.ExecContext(ctx, createTablesSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Record implements Recorder
func (s *SQLiteStore) Record(ctx context.Context, r RoundResult) error {
	if err := r.validate(); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var winner any
	if r.Winner != nil {
		winner = int(*r.Winner)
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO round_results
			(record_id, match_number, host_player, guest_player, host_score, guest_score, winner, difficulty, played_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (record_id, match_number) DO NOTHING`,
		r.RecordID, r.MatchNumber, r.Players[game.Host], r.Players[game.Guest],
		r.Scores[game.Host], r.Scores[game.Guest], winner, r.Difficulty, r.At.UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("insert round result: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("rows affected: %w", err)
	} else if n == 0 {
		return nil
	}

	for _, seat := range []game.Seat{game.Host, game.Guest} {
		player := r.Players[seat]
		if player == "" {
			continue
		}
		win, loss, tie := r.outcomeFor(seat)
		_, err := tx.ExecContext(ctx, `
			INSERT INTO player_totals (player, games, wins, losses, ties) VALUES (?, 1, ?, ?, ?)
			ON CONFLICT (player) DO UPDATE SET
				games = games + 1,
				wins = wins + excluded.wins,
				losses = losses + excluded.losses,
				ties = ties + excluded.ties`,
			player, win, loss, tie)
		if err != nil {
			return fmt.Errorf("update totals for %s: %w", player, err)
		}
	}
	return tx.Commit()
}

// Totals implements Recorder. An unknown player has zero totals.
func (s *SQLiteStore) Totals(ctx context.Context, player string) (Totals, error) {
	var t Totals
	err := s.db.QueryRowContext(ctx,
		`SELECT games, wins, losses, ties FROM player_totals WHERE player = ?`, player,
	).Scan(&t.Games, &t.Wins, &t.Losses, &t.Ties)
	if errors.Is(err, sql.ErrNoRows) {
		return Totals{}, nil
	}
	if err != nil {
		return Totals{}, fmt.Errorf("query totals: %w", err)
	}
	return t, nil
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

var _ Recorder = (*SQLiteStore)(nil)
