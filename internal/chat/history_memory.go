package chat

import (
	"context"
	"sort"
	"sync"
)

// MemoryHistoryRepository is an in-process HistoryRepository.
type MemoryHistoryRepository struct {
	mu     sync.RWMutex
	byID   map[string]struct{}
	byUser map[string][]Message
}

func NewMemoryHistoryRepository() *MemoryHistoryRepository {
	return &MemoryHistoryRepository{
		byID:   make(map[string]struct{}),
		byUser: make(map[string][]Message),
	}
}

func (r *MemoryHistoryRepository) Insert(ctx context.Context, msgs []Message) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inserted := 0
	for _, msg := range msgs {
		if _, ok := r.byID[msg.ID]; ok {
			continue
		}
		r.byID[msg.ID] = struct{}{}
		r.byUser[msg.UserID] = append(r.byUser[msg.UserID], msg)
		inserted++
	}
	return inserted, nil
}

func (r *MemoryHistoryRepository) ListByUser(ctx context.Context, userID string, limit int) ([]Message, error) {
	r.mu.RLock()
	list := append([]Message{}, r.byUser[userID]...)
	r.mu.RUnlock()

	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
	if limit > 0 && len(list) > limit {
		list = list[len(list)-limit:]
	}
	return list, nil
}
