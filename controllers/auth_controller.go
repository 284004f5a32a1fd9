package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cppla/photoshare/middleware"
	"github.com/cppla/photoshare/services"
	"github.com/cppla/photoshare/utils"
)

// AuthController handles signup, token and email confirmation endpoints.
type AuthController struct {
	auth  *services.AuthService
	users *services.UserService
}

// NewAuthController creates an AuthController.
func NewAuthController(auth *services.AuthService, users *services.UserService) *AuthController {
	return &AuthController{auth: auth, users: users}
}

// Signup registers a local account and mails the confirmation link.
func (a *AuthController) Signup(ctx *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required,min=5,max=16,username"`
		Email    string `json:"email" binding:"required,email,max=250"`
		Password string `json:"password" binding:"required,min=6,max=72"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx)
		return
	}

	user, err := a.auth.Signup(ctx.Request.Context(), services.SignupInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Created(ctx, gin.H{
		"user":   user,
		"detail": "User successfully created. Check your email for confirmation.",
	})
}

// Login implements the OAuth2 password grant: form fields username and password,
// where username may also be the email address.
func (a *AuthController) Login(ctx *gin.Context) {
	var req struct {
		Username string `form:"username" binding:"required"`
		Password string `form:"password" binding:"required"`
	}
	if err := ctx.ShouldBind(&req); err != nil {
		badRequest(ctx)
		return
	}

	pair, err := a.auth.Login(ctx.Request.Context(), req.Username, req.Password)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, pair)
}

// RefreshToken exchanges the refresh token presented as bearer for a new pair.
func (a *AuthController) RefreshToken(ctx *gin.Context) {
	token, err := middleware.BearerToken(ctx.GetHeader("Authorization"))
	if err != nil {
		utils.Error(ctx, http.StatusUnauthorized, 40101, err.Error())
		return
	}
	pair, err := a.auth.Refresh(ctx.Request.Context(), token)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, pair)
}

// ConfirmEmail consumes an email confirmation token.
func (a *AuthController) ConfirmEmail(ctx *gin.Context) {
	already, err := a.auth.ConfirmEmail(ctx.Request.Context(), ctx.Param("token"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	message := "Email confirmed"
	if already {
		message = "Your email is already confirmed"
	}
	utils.Success(ctx, gin.H{"message": message})
}

// RequestEmail resends the confirmation email.
func (a *AuthController) RequestEmail(ctx *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx)
		return
	}
	already, err := a.auth.RequestEmail(ctx.Request.Context(), req.Email)
	if err != nil {
		respondError(ctx, err)
		return
	}
	message := "Check your email for confirmation."
	if already {
		message = "Your email is already confirmed"
	}
	utils.Success(ctx, gin.H{"message": message})
}

// Logout revokes the presented access token.
func (a *AuthController) Logout(ctx *gin.Context) {
	if err := a.auth.Logout(ctx.Request.Context(), ctx.GetString(middleware.ContextTokenKey)); err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"message": "logged out"})
}

// ToggleUserStatus bans or unbans a user.
func (a *AuthController) ToggleUserStatus(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := paramID(ctx, "user_id")
	if !ok {
		return
	}
	user, err := a.users.ToggleActive(ctx.Request.Context(), actor, id)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"user": user})
}
