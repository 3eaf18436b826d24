package player_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/playcrack/trivia/internal/models"
	"github.com/playcrack/trivia/internal/player"
)

func TestFindOrCreateReusesRecord(t *testing.T) {
	ctx := context.Background()
	s := player.NewMemoryStore()

	first, err := s.FindOrCreate(ctx, "Ana")
	require.NoError(t, err)
	require.Equal(t, "Ana", first.Name)
	require.Zero(t, first.Score)

	_, err = s.IncrementScore(ctx, "Ana", 15)
	require.NoError(t, err)

	again, err := s.FindOrCreate(ctx, "Ana")
	require.NoError(t, err)
	require.Equal(t, first.ID, again.ID)
	require.Equal(t, 15, again.Score)
}

func TestIncrementScoreUnknownPlayer(t *testing.T) {
	s := player.NewMemoryStore()

	_, err := s.IncrementScore(context.Background(), "nobody", 10)
	require.ErrorIs(t, err, player.ErrNotFound)
}

func TestFindByNameUnknownPlayer(t *testing.T) {
	s := player.NewMemoryStore()

	_, err := s.FindByName(context.Background(), "nobody")
	require.ErrorIs(t, err, player.ErrNotFound)
}

func TestTopNOrdering(t *testing.T) {
	ctx := context.Background()
	s := player.NewMemoryStore()

	seed := map[string]int{
		"Ana":   30,
		"Bruno": 50,
		"Carla": 30,
		"Diego": 10,
	}
	for name, score := range seed {
		_, err := s.FindOrCreate(ctx, name)
		require.NoError(t, err)
		_, err = s.IncrementScore(ctx, name, score)
		require.NoError(t, err)
	}

	top, err := s.TopN(ctx, 3)
	require.NoError(t, err)

	// Score descending, ties broken by name ascending, capped at n.
	require.Equal(t, []models.RankingEntry{
		{Name: "Bruno", Score: 50},
		{Name: "Ana", Score: 30},
		{Name: "Carla", Score: 30},
	}, top)
}

func TestResetScores(t *testing.T) {
	ctx := context.Background()
	s := player.NewMemoryStore()

	_, err := s.FindOrCreate(ctx, "Ana")
	require.NoError(t, err)
	_, err = s.IncrementScore(ctx, "Ana", 40)
	require.NoError(t, err)

	require.NoError(t, s.ResetScores(ctx))

	p, err := s.FindByName(ctx, "Ana")
	require.NoError(t, err)
	require.Zero(t, p.Score)
}

func TestReturnedPlayersAreCopies(t *testing.T) {
	ctx := context.Background()
	s := player.NewMemoryStore()

	p, err := s.FindOrCreate(ctx, "Ana")
	require.NoError(t, err)
	p.Score = 999

	stored, err := s.FindByName(ctx, "Ana")
	require.NoError(t, err)
	require.Zero(t, stored.Score)
}
