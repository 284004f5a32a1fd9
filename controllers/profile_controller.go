package controllers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cppla/photoshare/models"
	"github.com/cppla/photoshare/services"
	"github.com/cppla/photoshare/utils"
)

// ProfileController serves user profiles and account administration.
type ProfileController struct {
	users       *services.UserService
	maxUploadMB int
}

// NewProfileController creates a ProfileController.
func NewProfileController(users *services.UserService, maxUploadMB int) *ProfileController {
	return &ProfileController{users: users, maxUploadMB: maxUploadMB}
}

// Me returns the authenticated user's profile.
func (p *ProfileController) Me(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	profile, err := p.users.Profile(ctx.Request.Context(), actor.ID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"user": profile})
}

// ByUsername returns a profile by username.
func (p *ProfileController) ByUsername(ctx *gin.Context) {
	username := strings.TrimSpace(ctx.Param("username"))
	if username == "" {
		utils.Error(ctx, http.StatusBadRequest, 40051, "missing username")
		return
	}
	profile, err := p.users.ByUsername(ctx.Request.Context(), username)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"user": profile})
}

// Update edits username and/or email.
func (p *ProfileController) Update(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := paramID(ctx, "user_id")
	if !ok {
		return
	}
	var req struct {
		Username *string `json:"username" binding:"omitempty,min=5,max=16,username"`
		Email    *string `json:"email" binding:"omitempty,email,max=250"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx)
		return
	}
	user, err := p.users.Update(ctx.Request.Context(), actor, id, services.UserUpdate{Username: req.Username, Email: req.Email})
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"user": user})
}

// UpdateRole assigns a role to another user.
func (p *ProfileController) UpdateRole(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	var req struct {
		UserID uint   `json:"user_id" binding:"required"`
		Role   string `json:"role" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx)
		return
	}
	role, err := models.ParseRole(req.Role)
	if err != nil {
		respondError(ctx, fmt.Errorf("%w: %v", services.ErrValidation, err))
		return
	}
	user, err := p.users.UpdateRole(ctx.Request.Context(), actor, req.UserID, role)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"user": user})
}

// Delete removes a user account with its content.
func (p *ProfileController) Delete(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := paramID(ctx, "user_id")
	if !ok {
		return
	}
	if err := p.users.Delete(ctx.Request.Context(), actor, id); err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"message": "user deleted"})
}

// UpdateAvatar replaces the authenticated user's avatar with the uploaded "file".
func (p *ProfileController) UpdateAvatar(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	fh, err := ctx.FormFile("file")
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40030, "file is required")
		return
	}
	if fh.Size > int64(p.maxUploadMB)<<20 {
		utils.Error(ctx, http.StatusRequestEntityTooLarge, 41301, "file too large")
		return
	}
	f, err := fh.Open()
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40031, "cannot read file")
		return
	}
	defer f.Close()

	user, err := p.users.UpdateAvatar(ctx.Request.Context(), actor, fh.Filename, f, fh.Size)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"user": user})
}
