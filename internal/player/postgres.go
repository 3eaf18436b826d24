package player

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/playcrack/trivia/internal/models"
)

// Querier defines what the store needs from the database layer. Satisfied by
// *pgxpool.Pool.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore persists players in the players table:
//
//	CREATE TABLE players (
//	    id         UUID PRIMARY KEY,
//	    name       TEXT UNIQUE NOT NULL,
//	    score      INTEGER NOT NULL DEFAULT 0,
//	    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
type PostgresStore struct {
	db Querier
}

// NewPostgresStore creates a Postgres-backed player store.
func NewPostgresStore(db Querier) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) FindOrCreate(ctx context.Context, name string) (*models.Player, error) {
	// The no-op DO UPDATE makes RETURNING yield the existing row on conflict.
	row := s.db.QueryRow(ctx, `
        INSERT INTO players (id, name, score)
        VALUES ($1, $2, 0)
        ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
        RETURNING id, name, score, created_at
    `, uuid.New(), name)

	p, err := scanPlayer(row)
	if err != nil {
		return nil, fmt.Errorf("find or create player: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) FindByName(ctx context.Context, name string) (*models.Player, error) {
	row := s.db.QueryRow(ctx, `
        SELECT id, name, score, created_at
        FROM players
        WHERE name = $1
    `, name)

	p, err := scanPlayer(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find player by name: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) IncrementScore(ctx context.Context, name string, delta int) (*models.Player, error) {
	row := s.db.QueryRow(ctx, `
        UPDATE players
        SET score = score + $2
        WHERE name = $1
        RETURNING id, name, score, created_at
    `, name, delta)

	p, err := scanPlayer(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("increment score: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) ResetScores(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, `UPDATE players SET score = 0`); err != nil {
		return fmt.Errorf("reset scores: %w", err)
	}
	return nil
}

func (s *PostgresStore) TopN(ctx context.Context, n int) ([]models.RankingEntry, error) {
	rows, err := s.db.Query(ctx, `
        SELECT name, score
        FROM players
        ORDER BY score DESC, name ASC
        LIMIT $1
    `, n)
	if err != nil {
		return nil, fmt.Errorf("top players: %w", err)
	}
	defer rows.Close()

	var entries []models.RankingEntry
	for rows.Next() {
		var e models.RankingEntry
		if err := rows.Scan(&e.Name, &e.Score); err != nil {
			return nil, fmt.Errorf("scan ranking entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read ranking rows: %w", err)
	}
	return entries, nil
}

func scanPlayer(row pgx.Row) (*models.Player, error) {
	var p models.Player
	if err := row.Scan(&p.ID, &p.Name, &p.Score, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}
