package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Predefined service errors.
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// UserRepository defines the interface for user data operations.
type UserRepository interface {
	// FindByUsername finds a user by their (normalized) username.
	FindByUsername(ctx context.Context, username string) (*User, error)

	// Create creates a new user. Returns ErrUserExists if the username is taken.
	Create(ctx context.Context, user *User) error

	// FindByID finds a user by their internal ID.
	FindByID(ctx context.Context, id string) (*User, error)

	// UpdatePasswordHash replaces the user's password hash.
	UpdatePasswordHash(ctx context.Context, id, hash string) error
}

// RefreshTokenRepository defines the interface for refresh token operations.
// Tokens are identified by their hash.
type RefreshTokenRepository interface {
	// Create stores a new refresh token.
	Create(ctx context.Context, token *RefreshToken) error

	// FindByHash finds a refresh token by its hash.
	FindByHash(ctx context.Context, tokenHash string) (*RefreshToken, error)

	// Revoke marks a live refresh token as revoked and reports whether this
	// call did it. Unknown and already revoked tokens report false.
	Revoke(ctx context.Context, tokenHash string) (bool, error)

	// RevokeAllForUser revokes all refresh tokens for a user.
	RevokeAllForUser(ctx context.Context, userID string) error
}

// Service provides authentication operations.
type Service struct {
	jwtService  *JWTService
	userRepo    UserRepository
	refreshRepo RefreshTokenRepository
	bcryptCost  int
	logger      zerolog.Logger
}

// ServiceConfig holds configuration for the auth service.
type ServiceConfig struct {
	JWTService  *JWTService
	UserRepo    UserRepository
	RefreshRepo RefreshTokenRepository

	// BcryptCost is the password hashing cost (default: bcrypt.DefaultCost).
	BcryptCost int

	Logger zerolog.Logger
}

// NewService creates a new auth service.
func NewService(cfg ServiceConfig) *Service {
	return &Service{
		jwtService:  cfg.JWTService,
		userRepo:    cfg.UserRepo,
		refreshRepo: cfg.RefreshRepo,
		bcryptCost:  cfg.BcryptCost,
		logger:      cfg.Logger,
	}
}

// Signup creates an account and returns tokens for it.
func (s *Service) Signup(ctx context.Context, creds Credentials) (*TokenResponse, error) {
	creds.Normalize()
	if errs := creds.Validate(); len(errs) > 0 {
		return nil, &ValidationError{Fields: errs}
	}

	hash, err := HashPassword(creds.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	user := &User{
		ID:           generateUserID(),
		Username:     creds.Username,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, ErrUserExists) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}

	s.logger.Info().
		Str("user_id", user.ID).
		Msg("user signed up")

	return s.generateTokens(ctx, user)
}

// Login checks credentials and returns tokens.
// Unknown usernames and wrong passwords both yield ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, creds Credentials) (*TokenResponse, error) {
	creds.Normalize()
	if creds.Username == "" || creds.Password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.userRepo.FindByUsername(ctx, creds.Username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("finding user: %w", err)
	}

	ok, err := CheckPassword(user.PasswordHash, creds.Password)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.logger.Info().
			Str("user_id", user.ID).
			Msg("login rejected: wrong password")
		return nil, ErrInvalidCredentials
	}

	return s.generateTokens(ctx, user)
}

// UpdatePassword changes the user's password after checking the current one.
// Every refresh token of the user is revoked.
func (s *Service) UpdatePassword(ctx context.Context, userID string, req UpdatePasswordRequest) error {
	if errs := req.Validate(); len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return err
	}

	ok, err := CheckPassword(user.PasswordHash, req.CurrentPassword)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidCredentials
	}

	hash, err := HashPassword(req.NewPassword, s.bcryptCost)
	if err != nil {
		return err
	}

	if err := s.userRepo.UpdatePasswordHash(ctx, userID, hash); err != nil {
		return fmt.Errorf("updating password: %w", err)
	}

	if err := s.refreshRepo.RevokeAllForUser(ctx, userID); err != nil {
		return fmt.Errorf("revoking refresh tokens: %w", err)
	}

	s.logger.Info().
		Str("user_id", userID).
		Msg("password updated, sessions revoked")

	return nil
}

// RefreshAccessToken refreshes an access token using a refresh token.
func (s *Service) RefreshAccessToken(ctx context.Context, refreshTokenStr string) (*TokenResponse, error) {
	tokenHash := HashRefreshToken(refreshTokenStr)

	refreshToken, err := s.refreshRepo.FindByHash(ctx, tokenHash)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}

	if refreshToken.RevokedAt != nil {
		s.revokeOnReuse(ctx, refreshToken.UserID)
		return nil, ErrInvalidRefreshToken
	}

	if s.jwtService.RefreshExpired(refreshToken) {
		return nil, ErrRefreshTokenExpired
	}

	user, err := s.userRepo.FindByID(ctx, refreshToken.UserID)
	if err != nil {
		return nil, ErrUserNotFound
	}

	// Each refresh token is single use; a concurrent refresh with the same
	// token loses here.
	revoked, err := s.refreshRepo.Revoke(ctx, tokenHash)
	if err != nil {
		return nil, fmt.Errorf("revoking old refresh token: %w", err)
	}
	if !revoked {
		s.revokeOnReuse(ctx, refreshToken.UserID)
		return nil, ErrInvalidRefreshToken
	}

	return s.generateTokens(ctx, user)
}

// revokeOnReuse ends every session of a user whose rotated refresh token was
// presented again, since either copy may be stolen.
func (s *Service) revokeOnReuse(ctx context.Context, userID string) {
	s.logger.Warn().Str("user_id", userID).Msg("refresh token reused, revoking all sessions")
	if err := s.refreshRepo.RevokeAllForUser(ctx, userID); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("failed to revoke sessions after refresh token reuse")
	}
}

// ValidateAccessToken validates an access token and returns the user ID.
func (s *Service) ValidateAccessToken(tokenString string) (string, error) {
	claims, err := s.jwtService.ValidateAccessToken(tokenString)
	if err != nil {
		return "", err
	}
	return claims.UserID, nil
}

// GetUser retrieves a user by ID.
func (s *Service) GetUser(ctx context.Context, userID string) (*User, error) {
	return s.userRepo.FindByID(ctx, userID)
}

// RevokeRefreshToken revokes one refresh token (logout). Unknown or already
// revoked tokens are not an error.
func (s *Service) RevokeRefreshToken(ctx context.Context, refreshTokenStr string) error {
	_, err := s.refreshRepo.Revoke(ctx, HashRefreshToken(refreshTokenStr))
	return err
}

// RevokeAllTokens revokes all refresh tokens for a user (logout everywhere).
func (s *Service) RevokeAllTokens(ctx context.Context, userID string) error {
	return s.refreshRepo.RevokeAllForUser(ctx, userID)
}

// generateTokens generates both access and refresh tokens for a user.
func (s *Service) generateTokens(ctx context.Context, user *User) (*TokenResponse, error) {
	accessToken, expiresAt, err := s.jwtService.GenerateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("generating access token: %w", err)
	}

	refreshTokenStr, refreshToken, err := s.jwtService.NewRefreshToken(user.ID)
	if err != nil {
		return nil, err
	}

	if err := s.refreshRepo.Create(ctx, refreshToken); err != nil {
		return nil, fmt.Errorf("storing refresh token: %w", err)
	}

	return &TokenResponse{
		AccessToken:  accessToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(expiresAt.Sub(s.jwtService.now()).Round(time.Second).Seconds()),
		RefreshToken: refreshTokenStr,
		User:         user,
	}, nil
}

// generateUserID generates a unique user ID with prefix.
func generateUserID() string {
	return "usr_" + uuid.New().String()[:22]
}
