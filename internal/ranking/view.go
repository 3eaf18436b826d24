// Package ranking derives the leaderboard view over the player directory,
// optionally fronted by a redis sorted-set mirror for cheap reads.
package ranking

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/playcrack/trivia/internal/models"
	"github.com/playcrack/trivia/internal/player"
)

// View implements the coordinator's Directory: writes go to the player store
// (and the mirror when present), reads prefer the mirror and fall back to the
// store on any mirror failure. The store stays the source of truth; a redis
// outage degrades reads, never loses scores.
type View struct {
	store  player.Store
	mirror *RedisMirror // nil when the mirror is disabled
}

// NewView creates a ranking view. mirror may be nil.
func NewView(store player.Store, mirror *RedisMirror) *View {
	return &View{store: store, mirror: mirror}
}

func (v *View) FindOrCreate(ctx context.Context, name string) (*models.Player, error) {
	p, err := v.store.FindOrCreate(ctx, name)
	if err != nil {
		return nil, err
	}
	if v.mirror != nil {
		if err := v.mirror.SetScore(ctx, p.Name, p.Score); err != nil {
			log.Warn().Err(err).Str("name", p.Name).Msg("ranking mirror update failed")
		}
	}
	return p, nil
}

func (v *View) Credit(ctx context.Context, name string, delta int) (*models.Player, error) {
	p, err := v.store.IncrementScore(ctx, name, delta)
	if err != nil {
		return nil, err
	}
	if v.mirror != nil {
		// Set the authoritative total rather than incrementing, so a missed
		// mirror write heals on the next credit.
		if err := v.mirror.SetScore(ctx, p.Name, p.Score); err != nil {
			log.Warn().Err(err).Str("name", p.Name).Msg("ranking mirror update failed")
		}
	}
	return p, nil
}

func (v *View) ResetScores(ctx context.Context) error {
	if err := v.store.ResetScores(ctx); err != nil {
		return err
	}
	if v.mirror != nil {
		if err := v.mirror.Reset(ctx); err != nil {
			log.Warn().Err(err).Msg("ranking mirror reset failed")
		}
	}
	return nil
}

func (v *View) TopN(ctx context.Context, n int) ([]models.RankingEntry, error) {
	if v.mirror != nil {
		entries, err := v.mirror.TopN(ctx, n)
		if err == nil {
			return entries, nil
		}
		log.Warn().Err(err).Msg("ranking mirror read failed, falling back to store")
	}
	return v.store.TopN(ctx, n)
}
