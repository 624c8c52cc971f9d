package points_test

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heyysiri/EcoTrail/internal/database"
	"github.com/heyysiri/EcoTrail/internal/points"
)

// runStoreContract exercises the behavior every Store must share.
func runStoreContract(t *testing.T, store points.Store) {
	ctx := context.Background()

	t.Run("unknown user has zero", func(t *testing.T) {
		total, err := store.GetPoints(ctx, "user_"+uuid.NewString())
		require.NoError(t, err)
		assert.Equal(t, int64(0), total)
	})

	t.Run("increment returns new total", func(t *testing.T) {
		userID := "user_" + uuid.NewString()

		total, err := store.IncrementPoints(ctx, userID, 60)
		require.NoError(t, err)
		assert.Equal(t, int64(60), total)

		total, err = store.IncrementPoints(ctx, userID, 25)
		require.NoError(t, err)
		assert.Equal(t, int64(85), total)

		got, err := store.GetPoints(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, int64(85), got)
	})

	t.Run("concurrent increments are not lost", func(t *testing.T) {
		userID := "user_" + uuid.NewString()

		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := store.IncrementPoints(ctx, userID, 2)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		total, err := store.GetPoints(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, int64(100), total)
	})

	t.Run("rejects missing user and negative delta", func(t *testing.T) {
		_, err := store.IncrementPoints(ctx, "", 1)
		assert.ErrorIs(t, err, points.ErrMissingUserID)

		_, err = store.IncrementPoints(ctx, "user_x", -1)
		assert.ErrorIs(t, err, points.ErrNegativeDelta)

		_, err = store.GetPoints(ctx, "")
		assert.ErrorIs(t, err, points.ErrMissingUserID)
	})
}

func TestInMemoryStore(t *testing.T) {
	runStoreContract(t, points.NewInMemoryStore())
}

func TestRedisStore(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })

	runStoreContract(t, points.NewRedisStore(client))
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	pool, err := pgxpool.New(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, database.Migrate(context.Background(), pool))

	runStoreContract(t, points.NewPostgresStore(pool))
}
