package ranking

import (
	"context"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/playcrack/trivia/internal/models"
)

const leaderboardKey = "trivia:leaderboard"

// RedisMirror keeps the leaderboard in a redis sorted set so TopN reads do
// not hit Postgres on every ranking broadcast.
type RedisMirror struct {
	client redis.UniversalClient
}

// NewRedisMirror creates a mirror on the given client.
func NewRedisMirror(client redis.UniversalClient) *RedisMirror {
	return &RedisMirror{client: client}
}

// SetScore writes a player's authoritative total.
func (m *RedisMirror) SetScore(ctx context.Context, name string, score int) error {
	if err := m.client.ZAdd(ctx, leaderboardKey, redis.Z{
		Score:  float64(score),
		Member: name,
	}).Err(); err != nil {
		return fmt.Errorf("update leaderboard: %w", err)
	}
	return nil
}

// Reset drops the mirrored leaderboard.
func (m *RedisMirror) Reset(ctx context.Context) error {
	if err := m.client.Del(ctx, leaderboardKey).Err(); err != nil {
		return fmt.Errorf("reset leaderboard: %w", err)
	}
	return nil
}

// TopN returns up to n entries, score descending, ties by name ascending.
func (m *RedisMirror) TopN(ctx context.Context, n int) ([]models.RankingEntry, error) {
	// ZREVRANGE breaks equal scores by member descending, so ranging 0..n-1
	// directly would pick the wrong members when a tie straddles the cut.
	// Fetch the whole set and sort-then-truncate like the store does; the
	// leaderboard holds one entry per participant, so this stays small.
	res, err := m.client.ZRevRangeWithScores(ctx, leaderboardKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read leaderboard: %w", err)
	}

	entries := make([]models.RankingEntry, 0, len(res))
	for _, z := range res {
		entries = append(entries, models.RankingEntry{
			Name:  z.Member.(string),
			Score: int(z.Score),
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].Name < entries[j].Name
	})
	if len(entries) > n {
		entries = entries[:n]
	}
	return entries, nil
}
