package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgUniqueViolation = "23505"

const (
	selectUser = `SELECT user_id, username, password_hash, created_at, updated_at FROM users`

	selectRefreshToken = `SELECT token_hash, user_id, expires_at, created_at, revoked_at FROM refresh_tokens`
)

// PostgresUserRepository stores users in the users table.
type PostgresUserRepository struct {
	pool *pgxpool.Pool
}

var _ UserRepository = (*PostgresUserRepository)(nil)

// NewPostgresUserRepository creates a PostgresUserRepository.
func NewPostgresUserRepository(pool *pgxpool.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

func (r *PostgresUserRepository) FindByUsername(ctx context.Context, username string) (*User, error) {
	return scanUser(r.pool.QueryRow(ctx, selectUser+` WHERE username = $1`, username))
}

func (r *PostgresUserRepository) FindByID(ctx context.Context, id string) (*User, error) {
	return scanUser(r.pool.QueryRow(ctx, selectUser+` WHERE user_id = $1`, id))
}

// Create inserts user. The unique index on username turns a concurrent
// duplicate signup into ErrUserExists.
func (r *PostgresUserRepository) Create(ctx context.Context, user *User) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (user_id, username, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`,
		user.ID, user.Username, user.PasswordHash, user.CreatedAt, user.UpdatedAt,
	)
	var pgErr *pgconn.PgError
	switch {
	case errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation:
		return ErrUserExists
	case err != nil:
		return fmt.Errorf("inserting user: %w", err)
	}
	return nil
}

func (r *PostgresUserRepository) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET password_hash = $1, updated_at = NOW() WHERE user_id = $2`,
		hash, id,
	)
	if err != nil {
		return fmt.Errorf("updating password hash: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading user: %w", err)
	}
	return &u, nil
}

// PostgresRefreshTokenRepository stores refresh token hashes in refresh_tokens.
type PostgresRefreshTokenRepository struct {
	pool *pgxpool.Pool
}

var _ RefreshTokenRepository = (*PostgresRefreshTokenRepository)(nil)

// NewPostgresRefreshTokenRepository creates a PostgresRefreshTokenRepository.
func NewPostgresRefreshTokenRepository(pool *pgxpool.Pool) *PostgresRefreshTokenRepository {
	return &PostgresRefreshTokenRepository{pool: pool}
}

func (r *PostgresRefreshTokenRepository) Create(ctx context.Context, token *RefreshToken) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO refresh_tokens (token_hash, user_id, expires_at, created_at, revoked_at)
		VALUES ($1, $2, $3, $4, $5)`,
		token.TokenHash, token.UserID, token.ExpiresAt, token.CreatedAt, token.RevokedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting refresh token: %w", err)
	}
	return nil
}

func (r *PostgresRefreshTokenRepository) FindByHash(ctx context.Context, tokenHash string) (*RefreshToken, error) {
	var t RefreshToken
	err := r.pool.QueryRow(ctx, selectRefreshToken+` WHERE token_hash = $1`, tokenHash).
		Scan(&t.TokenHash, &t.UserID, &t.ExpiresAt, &t.CreatedAt, &t.RevokedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrInvalidRefreshToken
	}
	if err != nil {
		return nil, fmt.Errorf("reading refresh token: %w", err)
	}
	return &t, nil
}

// Revoke relies on the row lock taken by UPDATE: of two concurrent calls for
// the same hash only one sees revoked_at IS NULL.
func (r *PostgresRefreshTokenRepository) Revoke(ctx context.Context, tokenHash string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE refresh_tokens SET revoked_at = NOW() WHERE token_hash = $1 AND revoked_at IS NULL`,
		tokenHash,
	)
	if err != nil {
		return false, fmt.Errorf("revoking refresh token: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PostgresRefreshTokenRepository) RevokeAllForUser(ctx context.Context, userID string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE refresh_tokens SET revoked_at = NOW() WHERE user_id = $1 AND revoked_at IS NULL`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("revoking refresh tokens: %w", err)
	}
	return nil
}
