package auth_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/heyysiri/EcoTrail/internal/auth"
)

func newService() *auth.Service {
	return auth.NewService(auth.ServiceConfig{
		JWTService: auth.NewJWTService(auth.JWTConfig{
			SigningKey: "test-secret-key-for-testing-only",
			Issuer:     "ecotrail",
			Audience:   "ecotrail-app",
		}),
		UserRepo:    auth.NewInMemoryUserRepository(),
		RefreshRepo: auth.NewInMemoryRefreshTokenRepository(),
		BcryptCost:  bcrypt.MinCost,
		Logger:      zerolog.Nop(),
	})
}

func TestSignup_IssuesTokens(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	resp, err := svc.Signup(ctx, auth.Credentials{Username: "  Greta ", Password: "correct-horse"})
	require.NoError(t, err)

	assert.Equal(t, "Bearer", resp.TokenType)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, "greta", resp.User.Username)
	assert.True(t, strings.HasPrefix(resp.User.ID, "usr_"))

	userID, err := svc.ValidateAccessToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, userID)
}

func TestSignup_StoresBcryptHash(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	resp, err := svc.Signup(ctx, auth.Credentials{Username: "greta", Password: "correct-horse"})
	require.NoError(t, err)

	user, err := svc.GetUser(ctx, resp.User.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "correct-horse", user.PasswordHash)
	assert.True(t, strings.HasPrefix(user.PasswordHash, "$2"))
}

func TestSignup_DuplicateUsername(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	_, err := svc.Signup(ctx, auth.Credentials{Username: "greta", Password: "correct-horse"})
	require.NoError(t, err)

	_, err = svc.Signup(ctx, auth.Credentials{Username: "GRETA", Password: "another-pass"})
	assert.ErrorIs(t, err, auth.ErrUserExists)
}

func TestSignup_ConcurrentDuplicate(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Signup(ctx, auth.Credentials{Username: "greta", Password: "correct-horse"}); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
}

func TestSignup_Validation(t *testing.T) {
	tests := []struct {
		name      string
		creds     auth.Credentials
		wantField string
	}{
		{"missing username", auth.Credentials{Password: "correct-horse"}, "username"},
		{"short username", auth.Credentials{Username: "ab", Password: "correct-horse"}, "username"},
		{"username with space", auth.Credentials{Username: "gre ta", Password: "correct-horse"}, "username"},
		{"short password", auth.Credentials{Username: "greta", Password: "short"}, "password"},
		{"missing password", auth.Credentials{Username: "greta"}, "password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newService().Signup(context.Background(), tt.creds)

			var verr *auth.ValidationError
			require.ErrorAs(t, err, &verr)
			require.NotEmpty(t, verr.Fields)
			assert.Equal(t, tt.wantField, verr.Fields[0].Field)
		})
	}
}

func TestCredentials_UsernameCharset(t *testing.T) {
	bad := auth.Credentials{Username: "greta$", Password: "correct-horse"}
	fields := bad.Validate()
	require.Len(t, fields, 1)
	assert.Equal(t, "username", fields[0].Field)
	assert.Equal(t, "INVALID", fields[0].Code)
	assert.Contains(t, fields[0].Message, "may only contain")

	good := auth.Credentials{Username: "greta.t_2-b", Password: "correct-horse"}
	assert.Empty(t, good.Validate())
}

func TestLogin(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	signup, err := svc.Signup(ctx, auth.Credentials{Username: "greta", Password: "correct-horse"})
	require.NoError(t, err)

	t.Run("valid credentials", func(t *testing.T) {
		resp, err := svc.Login(ctx, auth.Credentials{Username: "Greta", Password: "correct-horse"})
		require.NoError(t, err)
		assert.Equal(t, signup.User.ID, resp.User.ID)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.Login(ctx, auth.Credentials{Username: "greta", Password: "wrong-horse"})
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := svc.Login(ctx, auth.Credentials{Username: "nobody", Password: "correct-horse"})
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := svc.Login(ctx, auth.Credentials{})
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	})
}

func TestUpdatePassword(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	signup, err := svc.Signup(ctx, auth.Credentials{Username: "greta", Password: "correct-horse"})
	require.NoError(t, err)
	userID := signup.User.ID

	err = svc.UpdatePassword(ctx, userID, auth.UpdatePasswordRequest{
		CurrentPassword: "wrong-horse",
		NewPassword:     "battery-staple",
	})
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	err = svc.UpdatePassword(ctx, userID, auth.UpdatePasswordRequest{
		CurrentPassword: "correct-horse",
		NewPassword:     "battery-staple",
	})
	require.NoError(t, err)

	_, err = svc.Login(ctx, auth.Credentials{Username: "greta", Password: "correct-horse"})
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	_, err = svc.Login(ctx, auth.Credentials{Username: "greta", Password: "battery-staple"})
	assert.NoError(t, err)

	// sessions issued before the change are gone
	_, err = svc.RefreshAccessToken(ctx, signup.RefreshToken)
	assert.ErrorIs(t, err, auth.ErrInvalidRefreshToken)
}

func TestUpdatePassword_Validation(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	signup, err := svc.Signup(ctx, auth.Credentials{Username: "greta", Password: "correct-horse"})
	require.NoError(t, err)

	err = svc.UpdatePassword(ctx, signup.User.ID, auth.UpdatePasswordRequest{
		CurrentPassword: "correct-horse",
		NewPassword:     "correct-horse",
	})
	var verr *auth.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "newPassword", verr.Fields[0].Field)

	err = svc.UpdatePassword(ctx, signup.User.ID, auth.UpdatePasswordRequest{
		CurrentPassword: "correct-horse",
		NewPassword:     "short",
	})
	require.ErrorAs(t, err, &verr)
}

func TestUpdatePassword_UnknownUser(t *testing.T) {
	err := newService().UpdatePassword(context.Background(), "usr_missing", auth.UpdatePasswordRequest{
		CurrentPassword: "correct-horse",
		NewPassword:     "battery-staple",
	})
	assert.ErrorIs(t, err, auth.ErrUserNotFound)
}

func TestRefreshAccessToken_Rotates(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	signup, err := svc.Signup(ctx, auth.Credentials{Username: "greta", Password: "correct-horse"})
	require.NoError(t, err)

	refreshed, err := svc.RefreshAccessToken(ctx, signup.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, signup.RefreshToken, refreshed.RefreshToken)

	// old token cannot be reused
	_, err = svc.RefreshAccessToken(ctx, signup.RefreshToken)
	assert.ErrorIs(t, err, auth.ErrInvalidRefreshToken)

	_, err = svc.RefreshAccessToken(ctx, "never-issued")
	assert.ErrorIs(t, err, auth.ErrInvalidRefreshToken)
}

func TestRefreshAccessToken_ReuseRevokesSessions(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	signup, err := svc.Signup(ctx, auth.Credentials{Username: "greta", Password: "correct-horse"})
	require.NoError(t, err)
	rotated, err := svc.RefreshAccessToken(ctx, signup.RefreshToken)
	require.NoError(t, err)

	_, err = svc.RefreshAccessToken(ctx, signup.RefreshToken)
	require.ErrorIs(t, err, auth.ErrInvalidRefreshToken)

	// The replayed token also burns the one it was rotated into.
	_, err = svc.RefreshAccessToken(ctx, rotated.RefreshToken)
	assert.ErrorIs(t, err, auth.ErrInvalidRefreshToken)
}

func TestRefreshAccessToken_ConcurrentSingleUse(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	signup, err := svc.Signup(ctx, auth.Credentials{Username: "greta", Password: "correct-horse"})
	require.NoError(t, err)

	const callers = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.RefreshAccessToken(ctx, signup.RefreshToken); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
}

func TestInMemoryRefreshTokenRepository_Revoke(t *testing.T) {
	repo := auth.NewInMemoryRefreshTokenRepository()
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, &auth.RefreshToken{TokenHash: "h1", UserID: "usr_greta"}))
	require.NoError(t, repo.Create(ctx, &auth.RefreshToken{TokenHash: "h2", UserID: "usr_greta"}))
	require.NoError(t, repo.Create(ctx, &auth.RefreshToken{TokenHash: "h3", UserID: "usr_oskar"}))

	ok, err := repo.Revoke(ctx, "h1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Revoke(ctx, "h1")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.Revoke(ctx, "unknown")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.RevokeAllForUser(ctx, "usr_greta"))
	h2, err := repo.FindByHash(ctx, "h2")
	require.NoError(t, err)
	assert.NotNil(t, h2.RevokedAt)

	h3, err := repo.FindByHash(ctx, "h3")
	require.NoError(t, err)
	assert.Nil(t, h3.RevokedAt)
}

func TestRevokeRefreshToken(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	signup, err := svc.Signup(ctx, auth.Credentials{Username: "greta", Password: "correct-horse"})
	require.NoError(t, err)

	require.NoError(t, svc.RevokeRefreshToken(ctx, signup.RefreshToken))

	_, err = svc.RefreshAccessToken(ctx, signup.RefreshToken)
	assert.ErrorIs(t, err, auth.ErrInvalidRefreshToken)
}

func TestPassword_HashAndCheck(t *testing.T) {
	hash, err := auth.HashPassword("correct-horse", bcrypt.MinCost)
	require.NoError(t, err)

	ok, err := auth.CheckPassword(hash, "correct-horse")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = auth.CheckPassword(hash, "wrong")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = auth.CheckPassword("not-a-hash", "x")
	assert.Error(t, err)
}

func TestRefreshAccessToken_Expired(t *testing.T) {
	clock := newClock()
	svc := auth.NewService(auth.ServiceConfig{
		JWTService:  auth.NewJWTService(jwtConfig(clock)),
		UserRepo:    auth.NewInMemoryUserRepository(),
		RefreshRepo: auth.NewInMemoryRefreshTokenRepository(),
		BcryptCost:  bcrypt.MinCost,
		Logger:      zerolog.Nop(),
	})
	ctx := context.Background()

	resp, err := svc.Signup(ctx, auth.Credentials{Username: "greta", Password: "correct-horse"})
	require.NoError(t, err)
	assert.Equal(t, int64(auth.DefaultAccessTokenTTL.Seconds()), resp.ExpiresIn)

	clock.Advance(auth.DefaultRefreshTokenTTL + time.Minute)

	_, err = svc.RefreshAccessToken(ctx, resp.RefreshToken)
	assert.ErrorIs(t, err, auth.ErrRefreshTokenExpired)
}
