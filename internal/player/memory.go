package player

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/playcrack/trivia/internal/models"
)

// MemoryStore is an in-process Store. It backs tests and the no-database
// development mode; records do not survive a restart.
type MemoryStore struct {
	mu      sync.Mutex
	players map[string]*models.Player
}

// NewMemoryStore creates an empty in-memory player store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{players: make(map[string]*models.Player)}
}

func (s *MemoryStore) FindOrCreate(_ context.Context, name string) (*models.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.players[name]; ok {
		cp := *p
		return &cp, nil
	}
	p := &models.Player{
		ID:        uuid.New(),
		Name:      name,
		CreatedAt: time.Now(),
	}
	s.players[name] = p
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) FindByName(_ context.Context, name string) (*models.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.players[name]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) IncrementScore(_ context.Context, name string, delta int) (*models.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.players[name]
	if !ok {
		return nil, ErrNotFound
	}
	p.Score += delta
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) ResetScores(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.players {
		p.Score = 0
	}
	return nil
}

func (s *MemoryStore) TopN(_ context.Context, n int) ([]models.RankingEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]models.RankingEntry, 0, len(s.players))
	for _, p := range s.players {
		entries = append(entries, models.RankingEntry{Name: p.Name, Score: p.Score})
	}
	sort.Slice(entries, func(i, j int) bool {
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
