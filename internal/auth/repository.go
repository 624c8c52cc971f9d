package auth

import (
	"context"
	"sync"
	"time"
)

// InMemoryUserRepository keeps users in process memory. It backs development
// runs and tests; deployments use PostgresUserRepository. Stored users are
// copied in and out so callers cannot mutate them.
type InMemoryUserRepository struct {
	mu         sync.RWMutex
	users      map[string]User
	byUsername map[string]string
}

var _ UserRepository = (*InMemoryUserRepository)(nil)

// NewInMemoryUserRepository creates an empty repository.
func NewInMemoryUserRepository() *InMemoryUserRepository {
	return &InMemoryUserRepository{
		users:      make(map[string]User),
		byUsername: make(map[string]string),
	}
}

func (r *InMemoryUserRepository) FindByUsername(_ context.Context, username string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byUsername[username]
	if !ok {
		return nil, ErrUserNotFound
	}
	return r.lookup(id)
}

func (r *InMemoryUserRepository) FindByID(_ context.Context, id string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lookup(id)
}

// lookup requires r.mu.
func (r *InMemoryUserRepository) lookup(id string) (*User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

// Create stores user, or returns ErrUserExists when the username is taken.
func (r *InMemoryUserRepository) Create(_ context.Context, user *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byUsername[user.Username]; taken {
		return ErrUserExists
	}
	r.users[user.ID] = *user
	r.byUsername[user.Username] = user.ID
	return nil
}

func (r *InMemoryUserRepository) UpdatePasswordHash(_ context.Context, id, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return ErrUserNotFound
	}
	u.PasswordHash = hash
	u.UpdatedAt = time.Now()
	r.users[id] = u
	return nil
}

// InMemoryRefreshTokenRepository is the in-process RefreshTokenRepository.
type InMemoryRefreshTokenRepository struct {
	mu     sync.Mutex
	tokens map[string]RefreshToken
}

var _ RefreshTokenRepository = (*InMemoryRefreshTokenRepository)(nil)

// NewInMemoryRefreshTokenRepository creates an empty repository.
func NewInMemoryRefreshTokenRepository() *InMemoryRefreshTokenRepository {
	return &InMemoryRefreshTokenRepository{tokens: make(map[string]RefreshToken)}
}

func (r *InMemoryRefreshTokenRepository) Create(_ context.Context, token *RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[token.TokenHash] = *token
	return nil
}

// FindByHash returns ErrInvalidRefreshToken for unknown hashes.
func (r *InMemoryRefreshTokenRepository) FindByHash(_ context.Context, tokenHash string) (*RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tokens[tokenHash]
	if !ok {
		return nil, ErrInvalidRefreshToken
	}
	return &t, nil
}

func (r *InMemoryRefreshTokenRepository) Revoke(_ context.Context, tokenHash string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tokens[tokenHash]
	if !ok || t.RevokedAt != nil {
		return false, nil
	}
	now := time.Now()
	t.RevokedAt = &now
	r.tokens[tokenHash] = t
	return true, nil
}

func (r *InMemoryRefreshTokenRepository) RevokeAllForUser(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	for hash, t := range r.tokens {
		if t.UserID == userID && t.RevokedAt == nil {
			t.RevokedAt = &now
			r.tokens[hash] = t
		}
	}
	return nil
}
