package controllers

import (
	"github.com/gin-gonic/gin"

	"github.com/cppla/photoshare/services"
	"github.com/cppla/photoshare/utils"
)

// RatingController exposes post ratings.
type RatingController struct {
	ratings *services.RatingService
}

// NewRatingController creates a RatingController.
func NewRatingController(ratings *services.RatingService) *RatingController {
	return &RatingController{ratings: ratings}
}

// Rate scores a post from 1 to 5.
func (r *RatingController) Rate(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	var req struct {
		Score int `json:"score" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx)
		return
	}
	rating, err := r.ratings.Rate(ctx.Request.Context(), actor, id, req.Score)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"rating": rating})
}

// Average returns the mean score of a post.
func (r *RatingController) Average(ctx *gin.Context) {
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	summary, err := r.ratings.Average(ctx.Request.Context(), id)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, summary)
}

// Delete removes a rating.
func (r *RatingController) Delete(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	if err := r.ratings.Delete(ctx.Request.Context(), actor, id); err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"message": "rating deleted"})
}
