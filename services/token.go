package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/cppla/photoshare/models"
)

// Scope tags what a token may be used for. Each scope has its own decode entry point.
type Scope string

const (
	ScopeAccess            Scope = "access_token"
	ScopeRefresh           Scope = "refresh_token"
	ScopeEmailVerification Scope = "email_verification"
)

// Claims defines JWT claims used in the application.
type Claims struct {
	UserID uint        `json:"user_id"`
	Role   models.Role `json:"role,omitempty"`
	Scope  Scope       `json:"scope"`
	jwt.RegisteredClaims
}

// TokenService issues and validates HMAC signed tokens.
type TokenService struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	emailTTL   time.Duration
	now        func() time.Time
}

// NewTokenService creates a TokenService.
func NewTokenService(secret string, accessTTL, refreshTTL, emailTTL time.Duration) *TokenService {
	return &TokenService{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		emailTTL:   emailTTL,
		now:        time.Now,
	}
}

// AccessTTL is the lifetime of access tokens.
func (s *TokenService) AccessTTL() time.Duration { return s.accessTTL }

// IssueAccessToken issues a short-lived token authorizing API calls.
func (s *TokenService) IssueAccessToken(user *models.User) (string, error) {
	return s.issue(user, ScopeAccess, s.accessTTL)
}

// IssueRefreshToken issues a long-lived token that mints new access tokens.
func (s *TokenService) IssueRefreshToken(user *models.User) (string, error) {
	return s.issue(user, ScopeRefresh, s.refreshTTL)
}

// IssueEmailToken issues a single-use email confirmation token.
func (s *TokenService) IssueEmailToken(user *models.User) (string, error) {
	return s.issue(user, ScopeEmailVerification, s.emailTTL)
}

// DecodeAccessToken validates an access token.
func (s *TokenService) DecodeAccessToken(token string) (*Claims, error) {
	return s.decode(token, ScopeAccess)
}

// DecodeRefreshToken validates a refresh token.
func (s *TokenService) DecodeRefreshToken(token string) (*Claims, error) {
	return s.decode(token, ScopeRefresh)
}

// DecodeEmailToken validates an email confirmation token.
func (s *TokenService) DecodeEmailToken(token string) (*Claims, error) {
	return s.decode(token, ScopeEmailVerification)
}

func (s *TokenService) issue(user *models.User, scope Scope, ttl time.Duration) (string, error) {
	now := s.now()
	claims := Claims{
		UserID: user.ID,
		Scope:  scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Email,
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	if scope == ScopeAccess {
		claims.Role = user.Role
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign %s: %w", scope, err)
	}
	return signed, nil
}

func (s *TokenService) decode(tokenStr string, want Scope) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Scope != want {
		return nil, fmt.Errorf("%w: scope %q, want %q", ErrInvalidToken, claims.Scope, want)
	}
	if claims.UserID == 0 {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims, nil
}
