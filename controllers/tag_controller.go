package controllers

import (
	"github.com/gin-gonic/gin"

	"github.com/cppla/photoshare/services"
	"github.com/cppla/photoshare/utils"
)

// TagController lists tags.
type TagController struct {
	tags *services.TagService
}

// NewTagController creates a TagController.
func NewTagController(tags *services.TagService) *TagController {
	return &TagController{tags: tags}
}

// List returns every tag with its post count.
func (t *TagController) List(ctx *gin.Context) {
	tags, err := t.tags.List(ctx.Request.Context())
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"items": tags})
}
