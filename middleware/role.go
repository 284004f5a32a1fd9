package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cppla/photoshare/models"
	"github.com/cppla/photoshare/services"
	"github.com/cppla/photoshare/utils"
)

// RequirePolicy rejects authenticated users whose role the policy does not allow.
// It must run after AuthRequired.
func RequirePolicy(policy services.Policy) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		v, ok := ctx.Get(ContextRoleKey)
		role, isRole := v.(models.Role)
		if !ok || !isRole {
			utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
			ctx.Abort()
			return
		}
		if err := policy.Authorize(role); err != nil {
			utils.Error(ctx, http.StatusForbidden, 40301, "operation forbidden")
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}
