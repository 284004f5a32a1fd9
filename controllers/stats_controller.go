package controllers

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cppla/photoshare/models"
	"github.com/cppla/photoshare/utils"
)

// StatsController provides aggregate counts for the site.
type StatsController struct {
	db *gorm.DB
}

// NewStatsController creates a new StatsController instance.
func NewStatsController(db *gorm.DB) *StatsController {
	return &StatsController{db: db}
}

// GetStats returns user, post, comment and tag counts.
func (s *StatsController) GetStats(ctx *gin.Context) {
	var userCount int64
	var postCount int64
	var commentCount int64
	var tagCount int64

	db := s.db.WithContext(ctx.Request.Context())
	if err := db.Model(&models.User{}).Count(&userCount).Error; err != nil {
		// Fallback to 0 instead of failing the whole endpoint
		userCount = 0
	}

	if err := db.Model(&models.Post{}).Count(&postCount).Error; err != nil {
		postCount = 0
	}

	if err := db.Model(&models.Comment{}).Count(&commentCount).Error; err != nil {
		commentCount = 0
	}

	if err := db.Model(&models.Tag{}).Count(&tagCount).Error; err != nil {
		tagCount = 0
	}

	utils.Success(ctx, gin.H{
		"user_count":    userCount,
		"post_count":    postCount,
		"comment_count": commentCount,
		"tag_count":     tagCount,
	})
}
