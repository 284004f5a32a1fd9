package controllers

import (
	"github.com/gin-gonic/gin"

	"github.com/cppla/photoshare/services"
	"github.com/cppla/photoshare/utils"
)

// CommentController exposes comment CRUD.
type CommentController struct {
	comments *services.CommentService
}

// NewCommentController creates a CommentController.
func NewCommentController(comments *services.CommentService) *CommentController {
	return &CommentController{comments: comments}
}

// Create comments on a post.
func (c *CommentController) Create(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	var req struct {
		PostID  uint   `json:"post_id" binding:"required"`
		Content string `json:"content" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx)
		return
	}
	comment, err := c.comments.Create(ctx.Request.Context(), actor, req.PostID, req.Content)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Created(ctx, gin.H{"comment": comment})
}

// Get returns one comment.
func (c *CommentController) Get(ctx *gin.Context) {
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	comment, err := c.comments.Get(ctx.Request.Context(), id)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"comment": comment})
}

// Update edits a comment. Authors only.
func (c *CommentController) Update(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx)
		return
	}
	comment, err := c.comments.Update(ctx.Request.Context(), actor, id, req.Content)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"comment": comment})
}

// Delete removes a comment.
func (c *CommentController) Delete(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	if err := c.comments.Delete(ctx.Request.Context(), actor, id); err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"message": "comment deleted"})
}
