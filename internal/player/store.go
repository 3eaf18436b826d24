// Package player is the durable player directory: identity and score keyed by
// display name.
package player

import (
	"context"
	"errors"

	"github.com/playcrack/trivia/internal/models"
)

// ErrNotFound is returned when no player exists under the given name.
var ErrNotFound = errors.New("player not found")

// Store persists player records. Updates are keyed per player and additive,
// so interleaved calls for different players never conflict.
type Store interface {
	// FindOrCreate returns the record for name, inserting it with score 0 if
	// it does not exist yet.
	FindOrCreate(ctx context.Context, name string) (*models.Player, error)
	// FindByName returns the record for name or ErrNotFound.
	FindByName(ctx context.Context, name string) (*models.Player, error)
	// IncrementScore atomically adds delta to the player's score and returns
	// the updated record.
	IncrementScore(ctx context.Context, name string, delta int) (*models.Player, error)
	// ResetScores zeroes every score. Records are kept.
	ResetScores(ctx context.Context) error
	// TopN returns up to n entries ordered by score descending, ties broken
	// by name ascending.
	TopN(ctx context.Context, n int) ([]models.RankingEntry, error)
}
