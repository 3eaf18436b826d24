package models

import (
	"time"

	"github.com/google/uuid"
)

// Player represents a participant identity in the player directory.
// Identity is keyed by display name: a participant who reconnects under the
// same name resumes the same record and score. The websocket connection a
// player is currently attached to is volatile session state owned by the
// coordinator, not part of the persisted record.
type Player struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Score     int       `json:"score"`
	CreatedAt time.Time `json:"created_at"`
}

// RankingEntry is one row of the score-sorted leaderboard view.
type RankingEntry struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}
