package waiting

import (
	"context"
	"fmt"
	"sync"
	"time"

	"outputrocks-nodes/internal/common/errors"
)

// MemoryStore keeps parked executions in process memory. Expired entries
// are dropped lazily.
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]PendingExecution
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items: make(map[string]PendingExecution),
		now:   time.Now,
	}
}

func (s *MemoryStore) Park(_ context.Context, exec PendingExecution) error {
	if exec.Token == "" {
		return fmt.Errorf("resume token is required")
	}
	if exec.CreatedAt.IsZero() {
		exec.CreatedAt = s.now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[exec.Token] = exec
	return nil
}

func (s *MemoryStore) Get(_ context.Context, token string) (*PendingExecution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookup(token)
}

func (s *MemoryStore) Take(_ context.Context, token string) (*PendingExecution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exec, err := s.lookup(token)
	if err != nil {
		return nil, err
	}
	delete(s.items, token)
	return exec, nil
}

// lookup must be called with mu held.
func (s *MemoryStore) lookup(token string) (*PendingExecution, error) {
	exec, ok := s.items[token]
	if !ok {
		return nil, errors.NewExecutionNotWaitingError(token)
	}
	if exec.Expired(s.now()) {
		delete(s.items, token)
		return nil, errors.NewExecutionNotWaitingError(token)
	}
	return &exec, nil
}
