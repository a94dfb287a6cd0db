package stats

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lox/chukrum/internal/game"
)

// PostgresStore keeps results in a shared Postgres database
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to databaseURL and ensures the tables exist
func OpenPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	if databaseURL == "" {
		return nil, errors.New("postgres dsn is required")
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, createTablesSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Record implements Recorder
func (s *PostgresStore) Record(ctx context.Context, r RoundResult) error {
	if err := r.validate(); err != nil {
		return err
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var winner *int
	if r.Winner != nil {
		w := int(*r.Winner)
		winner = &w
	}
	tag, err := tx.Exec(ctx, `
		INSERT INTO round_results
			(record_id, match_number, host_player, guest_player, host_score, guest_score, winner, difficulty, played_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (record_id, match_number) DO NOTHING`,
		r.RecordID, r.MatchNumber, r.Players[game.Host], r.Players[game.Guest],
		r.Scores[game.Host], r.Scores[game.Guest], winner, r.Difficulty, r.At.UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("insert round result: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil
	}

	for _, seat := range []game.Seat{game.Host, game.Guest} {
		player := r.Players[seat]
		if player == "" {
			continue
		}
		win, loss, tie := r.outcomeFor(seat)
		_, err := tx.Exec(ctx, `
			INSERT INTO player_totals (player, games, wins, losses, ties) VALUES ($1, 1, $2, $3, $4)
			ON CONFLICT (player) DO UPDATE SET
				games = player_totals.games + 1,
				wins = player_totals.wins + excluded.wins,
				losses = player_totals.losses + excluded.losses,
				ties = player_totals.ties + excluded.ties`,
			player, win, loss, tie)
		if err != nil {
			return fmt.Errorf("update totals for %s: %w", player, err)
		}
	}
	return tx.Commit(ctx)
}

// Totals implements Recorder. An unknown player has zero totals.
func (s *PostgresStore) Totals(ctx context.Context, player string) (Totals, error) {
	var t Totals
	err := s.pool.QueryRow(ctx,
		`SELECT games, wins, losses, ties FROM player_totals WHERE player = $1`, player,
	).Scan(&t.Games, &t.Wins, &t.Losses, &t.Ties)
	if errors.Is(err, pgx.ErrNoRows) {
		return Totals{}, nil
	}
	if err != nil {
		return Totals{}, fmt.Errorf("query totals: %w", err)
	}
	return t, nil
}

// Close releases the pool
func (s *PostgresStore) Close() error {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
	return nil
}

var _ Recorder = (*PostgresStore)(nil)
