// Package points persists each user's cumulative reward points.
package points

import (
	"context"
	"errors"
	"sync"
)

// Store errors.
var (
	ErrMissingUserID = errors.New("user id is required")
	ErrNegativeDelta = errors.New("points delta must not be negative")
)

// Store defines the interface for points persistence.
// IncrementPoints must be a single atomic increment, never a read-modify-write.
type Store interface {
	// IncrementPoints adds delta to the user's total and returns the new total.
	// A user without a record starts at zero.
	IncrementPoints(ctx context.Context, userID string, delta int64) (int64, error)

	// GetPoints returns the user's total, zero if the user has none.
	GetPoints(ctx context.Context, userID string) (int64, error)
}

func validate(userID string, delta int64) error {
	if userID == "" {
		return ErrMissingUserID
	}
	if delta < 0 {
		return ErrNegativeDelta
	}
	return nil
}

// InMemoryStore is an in-memory implementation of Store.
// This is intended for development and testing.
type InMemoryStore struct {
	mu     sync.Mutex
	totals map[string]int64
}

var _ Store = (*InMemoryStore)(nil)

// NewInMemoryStore creates a new in-memory points store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		totals: make(map[string]int64),
	}
}

// IncrementPoints adds delta under a single lock.
func (s *InMemoryStore) IncrementPoints(_ context.Context, userID string, delta int64) (int64, error) {
	if err := validate(userID, delta); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.totals[userID] += delta
	return s.totals[userID], nil
}

// GetPoints returns the user's total.
func (s *InMemoryStore) GetPoints(_ context.Context, userID string) (int64, error) {
	if userID == "" {
		return 0, ErrMissingUserID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.totals[userID], nil
}
