package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Sessions use two tokens. The access token is an HS256 JWT sent as a bearer
// token on every call. The refresh token is opaque, stored only as a SHA-256
// hash, and rotated on each /v1/auth/refresh. A password change or logout-all
// revokes every refresh token of the user; access tokens live until they expire.

// Default token lifetimes.
const (
	DefaultAccessTokenTTL  = time.Hour
	DefaultRefreshTokenTTL = 30 * 24 * time.Hour

	refreshTokenBytes = 32
)

// Token errors.
var (
	ErrInvalidAccessToken  = errors.New("invalid access token")
	ErrAccessTokenExpired  = errors.New("access token has expired")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrRefreshTokenExpired = errors.New("refresh token has expired")
)

// JWTClaims are the claims of an access token. Subject and UserID are equal.
type JWTClaims struct {
	jwt.RegisteredClaims
	UserID string `json:"uid"`
}

// JWTConfig configures a JWTService.
type JWTConfig struct {
	SigningKey string
	Issuer     string
	Audience   string

	// Zero TTLs use DefaultAccessTokenTTL and DefaultRefreshTokenTTL.
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// Now overrides the clock; nil uses time.Now.
	Now func() time.Time
}

// JWTService issues and checks access tokens and mints refresh tokens.
type JWTService struct {
	signingKey []byte
	issuer     string
	audience   string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewJWTService creates a JWTService.
func NewJWTService(cfg JWTConfig) *JWTService {
	s := &JWTService{
		signingKey: []byte(cfg.SigningKey),
		issuer:     cfg.Issuer,
		audience:   cfg.Audience,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        cfg.Now,
	}
	if s.accessTTL <= 0 {
		s.accessTTL = DefaultAccessTokenTTL
	}
	if s.refreshTTL <= 0 {
		s.refreshTTL = DefaultRefreshTokenTTL
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// GenerateAccessToken signs an access token for user and returns it with its expiry.
func (s *JWTService) GenerateAccessToken(user *User) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.accessTTL)

	claims := JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Subject:   user.ID,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UserID: user.ID,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing access token: %w", err)
	}
	return signed, expiresAt, nil
}

// ValidateAccessToken verifies signature, issuer, audience and expiry.
// Failures wrap ErrInvalidAccessToken, except expiry which is ErrAccessTokenExpired.
func (s *JWTService) ValidateAccessToken(tokenString string) (*JWTClaims, error) {
	claims := &JWTClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (any, error) { return s.signingKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrAccessTokenExpired
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrInvalidAccessToken, err)
	case claims.UserID == "" || claims.UserID != claims.Subject:
		return nil, ErrInvalidAccessToken
	}
	return claims, nil
}

// RefreshToken is the stored form of a refresh token.
type RefreshToken struct {
	TokenHash string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
	RevokedAt *time.Time
}

// NewRefreshToken mints a refresh token for userID. The plain token goes to
// the client; only the returned record is stored.
func (s *JWTService) NewRefreshToken(userID string) (string, *RefreshToken, error) {
	plain, err := GenerateRefreshToken()
	if err != nil {
		return "", nil, err
	}
	now := s.now()
	return plain, &RefreshToken{
		TokenHash: HashRefreshToken(plain),
		UserID:    userID,
		ExpiresAt: now.Add(s.refreshTTL),
		CreatedAt: now,
	}, nil
}

// RefreshExpired reports whether t is past its expiry on the service clock.
func (s *JWTService) RefreshExpired(t *RefreshToken) bool {
	return s.now().After(t.ExpiresAt)
}

// GenerateRefreshToken returns 32 random bytes, base64url encoded.
func GenerateRefreshToken() (string, error) {
	b := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating refresh token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// HashRefreshToken returns the hex SHA-256 of a refresh token, the form it is stored in.
func HashRefreshToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
