package inmem

import (
	"context"
	"sort"
	"sync"

	"tmdb-agent/internal/application/port/output"
	"tmdb-agent/internal/domain/entity"
)

// Store keeps checkpoints in memory. It does not survive a restart.
type Store struct {
	mu          sync.RWMutex
	checkpoints map[entity.RunID]entity.Checkpoint
}

var _ output.CheckpointStore = (*Store)(nil)

func New() *Store {
	return &Store{checkpoints: map[entity.RunID]entity.Checkpoint{}}
}

func (s *Store) Save(_ context.Context, cp entity.Checkpoint) error {
	if cp.State.ID == "" {
		return entity.ErrInvalidRunID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.checkpoints[cp.State.ID] = cp.Clone()
	return nil
}

func (s *Store) Load(_ context.Context, id entity.RunID) (entity.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cp, ok := s.checkpoints[id]
	if !ok {
		return entity.Checkpoint{}, entity.ErrRunNotFound
	}
	return cp.Clone(), nil
}

func (s *Store) ListActive(_ context.Context) ([]entity.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var active []entity.Checkpoint
	for _, cp := range s.checkpoints {
		if !cp.Status.Terminal() {
			active = append(active, cp.Clone())
		}
	}
	sort.Slice(active, func(i, j int) bool {
		return active[i].UpdatedAt.Before(active[j].UpdatedAt)
	})
	return active, nil
}

func (s *Store) Close() error { return nil }
