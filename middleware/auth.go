package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cppla/photoshare/models"
	"github.com/cppla/photoshare/services"
	"github.com/cppla/photoshare/utils"
)

const (
	// ContextUserIDKey is the key used to store authenticated user ID in Gin context.
	ContextUserIDKey = "user_id"
	// ContextRoleKey stores the role of the authenticated user.
	ContextRoleKey = "role"
	// ContextUserKey stores the loaded *models.User.
	ContextUserKey = "user"
	// ContextTokenKey stores the raw bearer token.
	ContextTokenKey = "token"
)

var (
	ErrMissingAuthHeader = errors.New("authorization header missing")
	ErrBadAuthHeader     = errors.New("invalid authorization header format")
	ErrEmptyBearer       = errors.New("empty bearer token")
)

// Authenticator resolves an access token to its user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.User, error)
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header value.
func BearerToken(header string) (string, error) {
	if header == "" {
		return "", ErrMissingAuthHeader
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", ErrBadAuthHeader
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", ErrEmptyBearer
	}
	return token, nil
}

// AuthRequired ensures the request carries a valid access token of an active user.
// The user is loaded on every request so role changes and bans apply immediately.
func AuthRequired(auth Authenticator) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token, err := BearerToken(ctx.GetHeader("Authorization"))
		if err != nil {
			code := 40101
			switch {
			case errors.Is(err, ErrBadAuthHeader):
				code = 40102
			case errors.Is(err, ErrEmptyBearer):
				code = 40103
			}
			utils.Error(ctx, http.StatusUnauthorized, code, err.Error())
			ctx.Abort()
			return
		}

		user, err := auth.Authenticate(ctx.Request.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, services.ErrTokenRevoked):
				utils.Error(ctx, http.StatusUnauthorized, 40104, "token revoked")
			case errors.Is(err, services.ErrBanned):
				utils.Error(ctx, http.StatusUnauthorized, 40106, "user is banned")
			case errors.Is(err, services.ErrInvalidToken):
				utils.Error(ctx, http.StatusUnauthorized, 40105, "invalid token")
			default:
				utils.Error(ctx, http.StatusInternalServerError, 50000, "internal server error")
				_ = ctx.Error(err)
			}
			ctx.Abort()
			return
		}

		ctx.Set(ContextUserIDKey, user.ID)
		ctx.Set(ContextRoleKey, user.Role)
		ctx.Set(ContextUserKey, user)
		ctx.Set(ContextTokenKey, token)
		ctx.Next()
	}
}

// CurrentUser returns the user stored by AuthRequired.
func CurrentUser(ctx *gin.Context) (*models.User, bool) {
	v, ok := ctx.Get(ContextUserKey)
	if !ok {
		return nil, false
	}
	u, ok := v.(*models.User)
	return u, ok
}

// CurrentActor returns the authenticated actor.
func CurrentActor(ctx *gin.Context) (services.Actor, bool) {
	u, ok := CurrentUser(ctx)
	if !ok {
		return services.Actor{}, false
	}
	return services.ActorOf(u), true
}
