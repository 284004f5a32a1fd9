package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/photoshare/models"
	"github.com/cppla/photoshare/utils"
)

// ConfirmationSender delivers email confirmation links.
type ConfirmationSender interface {
	SendConfirmation(email, username, token string)
}

// Revoker remembers tokens that must no longer be accepted.
type Revoker interface {
	Revoke(ctx context.Context, token string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, token string) bool
}

// TokenPair is the OAuth2 style answer of login and refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// SignupInput is a new account request.
type SignupInput struct {
	Username string
	Email    string
	Password string
}

// AuthService implements signup, login, token refresh and email confirmation.
type AuthService struct {
	db      *gorm.DB
	tokens  *TokenService
	revoker Revoker
	mailer  ConfirmationSender
	logger  *zap.Logger
}

// NewAuthService creates an AuthService.
func NewAuthService(db *gorm.DB, tokens *TokenService, revoker Revoker, mailer ConfirmationSender, logger *zap.Logger) *AuthService {
	return &AuthService{db: db, tokens: tokens, revoker: revoker, mailer: mailer, logger: logger}
}

// Tokens exposes the token service.
func (s *AuthService) Tokens() *TokenService { return s.tokens }

// Signup creates an account and mails a confirmation link. The first account is an admin.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (user *models.User, err error) {
	defer func() { utils.RecordAuth("signup", err) }()

	username := strings.TrimSpace(in.Username)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := models.User{Username: username, Email: email, PasswordHash: hash, Active: true}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var taken int64
		if err := tx.Model(&models.User{}).Where("email = ? OR username = ?", email, username).Count(&taken).Error; err != nil {
			return err
		}
		if taken > 0 {
			return ErrConflict
		}
		var total int64
		if err := tx.Model(&models.User{}).Count(&total).Error; err != nil {
			return err
		}
		u.Role = models.RoleUser
		if total == 0 {
			u.Role = models.RoleAdmin
		}
		return tx.Create(&u).Error
	})
	if err != nil {
		// a concurrent signup can pass the count and still hit the unique index
		if errors.Is(err, ErrConflict) || errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.sendConfirmation(&u)
	s.logger.Info("user signed up", zap.Uint("user_id", u.ID), zap.String("role", string(u.Role)))
	return &u, nil
}

// Login authenticates by email or username and issues a token pair.
func (s *AuthService) Login(ctx context.Context, login, password string) (pair TokenPair, err error) {
	defer func() { utils.RecordAuth("login", err) }()

	login = strings.TrimSpace(login)
	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ? OR username = ?", strings.ToLower(login), login).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return TokenPair{}, ErrNotFound
		}
		return TokenPair{}, fmt.Errorf("load user: %w", err)
	}
	if !user.Active {
		return TokenPair{}, ErrBanned
	}
	if !user.Confirmed {
		return TokenPair{}, ErrEmailNotConfirmed
	}
	if !utils.CheckPassword(user.PasswordHash, password) {
		return TokenPair{}, ErrInvalidCredentials
	}
	return s.issuePair(ctx, &user)
}

// Refresh rotates a refresh token. A token that differs from the stored one clears the
// stored token, forcing the owner to log in again.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (pair TokenPair, err error) {
	defer func() { utils.RecordAuth("refresh", err) }()

	claims, err := s.tokens.DecodeRefreshToken(refreshToken)
	if err != nil {
		return TokenPair{}, err
	}
	user, err := s.loadUser(ctx, claims.UserID)
	if err != nil {
		return TokenPair{}, err
	}
	if user.RefreshToken == nil || *user.RefreshToken != refreshToken {
		if err := s.db.WithContext(ctx).Model(user).Update("refresh_token", nil).Error; err != nil {
			s.logger.Error("failed to clear refresh token", zap.Uint("user_id", user.ID), zap.Error(err))
		}
		return TokenPair{}, ErrInvalidRefreshToken
	}
	if !user.Active {
		return TokenPair{}, ErrBanned
	}
	return s.issuePair(ctx, user)
}

// ConfirmEmail marks the token owner's email as confirmed. already reports that it
// was confirmed before. Tokens are single use.
func (s *AuthService) ConfirmEmail(ctx context.Context, token string) (already bool, err error) {
	defer func() { utils.RecordAuth("confirm_email", err) }()

	if s.revoker.IsRevoked(ctx, token) {
		return false, ErrInvalidToken
	}
	claims, err := s.tokens.DecodeEmailToken(token)
	if err != nil {
		return false, err
	}
	user, err := s.loadUser(ctx, claims.UserID)
	if err != nil {
		return false, err
	}
	already = user.Confirmed
	if !already {
		if err := s.db.WithContext(ctx).Model(user).Update("confirmed", true).Error; err != nil {
			return false, fmt.Errorf("confirm email: %w", err)
		}
	}
	if err := s.revoker.Revoke(ctx, token, claims.ExpiresAt.Time); err != nil {
		s.logger.Warn("failed to revoke email token", zap.Uint("user_id", user.ID), zap.Error(err))
	}
	return already, nil
}

// RequestEmail resends the confirmation link. Unknown emails are silently ignored.
func (s *AuthService) RequestEmail(ctx context.Context, email string) (alreadyConfirmed bool, err error) {
	var user models.User
	err = s.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load user: %w", err)
	}
	if user.Confirmed {
		return true, nil
	}
	s.sendConfirmation(&user)
	return false, nil
}

// Logout revokes the access token until it expires and drops the stored refresh token.
func (s *AuthService) Logout(ctx context.Context, accessToken string) (err error) {
	defer func() { utils.RecordAuth("logout", err) }()

	claims, err := s.tokens.DecodeAccessToken(accessToken)
	if err != nil {
		return err
	}
	if err := s.revoker.Revoke(ctx, accessToken, claims.ExpiresAt.Time); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", claims.UserID).
		Update("refresh_token", nil).Error; err != nil {
		return fmt.Errorf("clear refresh token: %w", err)
	}
	return nil
}

// Authenticate resolves an access token to its active user.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (*models.User, error) {
	if s.revoker.IsRevoked(ctx, accessToken) {
		return nil, ErrTokenRevoked
	}
	claims, err := s.tokens.DecodeAccessToken(accessToken)
	if err != nil {
		return nil, err
	}
	user, err := s.loadUser(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if !user.Active {
		return nil, ErrBanned
	}
	return user, nil
}

func (s *AuthService) issuePair(ctx context.Context, user *models.User) (TokenPair, error) {
	access, err := s.tokens.IssueAccessToken(user)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.tokens.IssueRefreshToken(user)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.db.WithContext(ctx).Model(user).Update("refresh_token", refresh).Error; err != nil {
		return TokenPair{}, fmt.Errorf("store refresh token: %w", err)
	}
	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    int64(s.tokens.AccessTTL() / time.Second),
	}, nil
}

// loadUser maps a missing token subject to ErrInvalidToken.
func (s *AuthService) loadUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("load user %d: %w", id, err)
	}
	return &user, nil
}

func (s *AuthService) sendConfirmation(user *models.User) {
	token, err := s.tokens.IssueEmailToken(user)
	if err != nil {
		s.logger.Error("failed to issue email token", zap.Uint("user_id", user.ID), zap.Error(err))
		return
	}
	s.mailer.SendConfirmation(user.Email, user.Username, token)
}
