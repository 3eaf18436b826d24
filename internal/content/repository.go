// Package content is the collaborator side of the system: question authoring
// and game customization settings. The session core never imports it; the
// admin panel fetches a question here and pushes the full value over its
// websocket channel.
package content

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/playcrack/trivia/internal/models"
)

// Querier defines what the repository needs from the database layer.
// Satisfied by *pgxpool.Pool.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository persists questions and settings:
//
//	CREATE TABLE questions (
//	    id                   SERIAL PRIMARY KEY,
//	    question_text        TEXT NOT NULL,
//	    video_url            TEXT NOT NULL DEFAULT '',
//	    pause_timestamp_secs INTEGER NOT NULL DEFAULT 0,
//	    points               INTEGER NOT NULL DEFAULT 10,
//	    time_limit_secs      INTEGER NOT NULL DEFAULT 10,
//	    option_1             TEXT NOT NULL,
//	    option_2             TEXT NOT NULL,
//	    option_3             TEXT NOT NULL,
//	    option_4             TEXT NOT NULL,
//	    correct_option       INTEGER NOT NULL
//	);
//
//	CREATE TABLE gamesettings (
//	    setting_key   TEXT PRIMARY KEY,
//	    setting_value TEXT NOT NULL
//	);
type Repository struct {
	db Querier
}

// NewRepository creates a content repository.
func NewRepository(db Querier) *Repository {
	return &Repository{db: db}
}

// ListQuestions returns all questions ordered by id.
func (r *Repository) ListQuestions(ctx context.Context) ([]models.Question, error) {
	rows, err := r.db.Query(ctx, `
        SELECT id, question_text, video_url, pause_timestamp_secs, points,
               time_limit_secs, option_1, option_2, option_3, option_4, correct_option
        FROM questions
        ORDER BY id ASC
    `)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()

	questions := []models.Question{}
	for rows.Next() {
		var q models.Question
		var correct int64
		if err := rows.Scan(
			&q.ID, &q.Text, &q.MediaURL, &q.PauseOffsetSec, &q.Points,
			&q.TimeLimitSec, &q.Option1, &q.Option2, &q.Option3, &q.Option4, &correct,
		); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		q.CorrectOption = models.FlexInt(correct)
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read question rows: %w", err)
	}
	return questions, nil
}

// CreateQuestion inserts a question and returns it with its assigned id.
func (r *Repository) CreateQuestion(ctx context.Context, q models.Question) (*models.Question, error) {
	row := r.db.QueryRow(ctx, `
        INSERT INTO questions (question_text, video_url, pause_timestamp_secs, points,
                               time_limit_secs, option_1, option_2, option_3, option_4, correct_option)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
        RETURNING id
    `, q.Text, q.MediaURL, q.PauseOffsetSec, q.Points,
		q.TimeLimitSec, q.Option1, q.Option2, q.Option3, q.Option4, int64(q.CorrectOption))

	if err := row.Scan(&q.ID); err != nil {
		return nil, fmt.Errorf("create question: %w", err)
	}
	return &q, nil
}

// GetSettings returns all settings as a key/value map.
func (r *Repository) GetSettings(ctx context.Context) (models.Settings, error) {
	rows, err := r.db.Query(ctx, `SELECT setting_key, setting_value FROM gamesettings`)
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}
	defer rows.Close()

	settings := make(models.Settings)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		settings[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read setting rows: %w", err)
	}
	return settings, nil
}

// UpdateSettings upserts every key in the given map.
func (r *Repository) UpdateSettings(ctx context.Context, settings models.Settings) error {
	for key, value := range settings {
		_, err := r.db.Exec(ctx, `
            INSERT INTO gamesettings (setting_key, setting_value)
            VALUES ($1, $2)
            ON CONFLICT (setting_key) DO UPDATE SET setting_value = $2
        `, key, value)
		if err != nil {
			return fmt.Errorf("upsert setting %s: %w", key, err)
		}
	}
	return nil
}
