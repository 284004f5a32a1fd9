package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/photoshare/models"
)

// RatingService stores per-user scores for posts.
type RatingService struct {
	db *gorm.DB
}

// NewRatingService creates a RatingService.
func NewRatingService(db *gorm.DB) *RatingService {
	return &RatingService{db: db}
}

// RatingSummary is the aggregate score of a post.
type RatingSummary struct {
	PostID  uint    `json:"post_id"`
	Average float64 `json:"average"`
	Count   int64   `json:"count"`
}

// Rate records actor's score for a post, replacing an earlier score.
func (s *RatingService) Rate(ctx context.Context, actor Actor, postID uint, score int) (*models.Rating, error) {
	if score < 1 || score > 5 {
		return nil, fmt.Errorf("%w: score must be between 1 and 5", ErrValidation)
	}
	var post models.Post
	if err := s.db.WithContext(ctx).Select("id", "user_id").First(&post, postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load post %d: %w", postID, err)
	}
	if post.UserID == actor.ID {
		return nil, ErrForbidden
	}

	rating := models.Rating{UserID: actor.ID, PostID: postID, Score: score}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "post_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"score", "updated_at"}),
	}).Create(&rating).Error; err != nil {
		return nil, fmt.Errorf("save rating: %w", err)
	}

	var saved models.Rating
	if err := s.db.WithContext(ctx).Where("user_id = ? AND post_id = ?", actor.ID, postID).First(&saved).Error; err != nil {
		return nil, fmt.Errorf("reload rating: %w", err)
	}
	return &saved, nil
}

// Average returns the mean score of a post. ErrNotFound means nobody rated it yet.
func (s *RatingService) Average(ctx context.Context, postID uint) (RatingSummary, error) {
	var row struct {
		Average float64
		Count   int64
	}
	if err := s.db.WithContext(ctx).Model(&models.Rating{}).
		Select("COALESCE(AVG(score), 0) AS average, COUNT(*) AS count").
		Where("post_id = ?", postID).
		Scan(&row).Error; err != nil {
		return RatingSummary{}, fmt.Errorf("average rating: %w", err)
	}
	if row.Count == 0 {
		return RatingSummary{}, ErrNotFound
	}
	return RatingSummary{PostID: postID, Average: row.Average, Count: row.Count}, nil
}

// Delete removes a rating. Restricted to admins and moderators.
func (s *RatingService) Delete(ctx context.Context, actor Actor, id uint) error {
	if err := AdminOrModerator.Authorize(actor.Role); err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Delete(&models.Rating{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete rating %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
