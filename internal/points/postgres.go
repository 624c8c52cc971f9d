package points

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is a PostgreSQL implementation of Store.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a new PostgreSQL points store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// IncrementPoints upserts the user's row and adds delta in one statement.
func (s *PostgresStore) IncrementPoints(ctx context.Context, userID string, delta int64) (int64, error) {
	if err := validate(userID, delta); err != nil {
		return 0, err
	}

	query := `
		INSERT INTO user_points (user_id, points, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			points = user_points.points + EXCLUDED.points,
			updated_at = NOW()
		RETURNING points
	`

	var total int64
	if err := s.pool.QueryRow(ctx, query, userID, delta).Scan(&total); err != nil {
		return 0, fmt.Errorf("incrementing points: %w", err)
	}
	return total, nil
}

// GetPoints returns the user's total.
func (s *PostgresStore) GetPoints(ctx context.Context, userID string) (int64, error) {
	if userID == "" {
		return 0, ErrMissingUserID
	}

	query := `SELECT points FROM user_points WHERE user_id = $1`

	var total int64
	err := s.pool.QueryRow(ctx, query, userID).Scan(&total)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading points: %w", err)
	}
	return total, nil
}
