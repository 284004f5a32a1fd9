package services

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/photoshare/models"
	"github.com/cppla/photoshare/utils"
)

// MaxCommentLen is the longest accepted comment, in characters.
const MaxCommentLen = 500

// CommentService manages comments on posts.
type CommentService struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewCommentService creates a CommentService.
func NewCommentService(db *gorm.DB, logger *zap.Logger) *CommentService {
	return &CommentService{db: db, logger: logger}
}

// Create adds a comment by actor to an existing post.
func (s *CommentService) Create(ctx context.Context, actor Actor, postID uint, content string) (*models.Comment, error) {
	content, err := cleanComment(content)
	if err != nil {
		return nil, err
	}
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", postID).Count(&n).Error; err != nil {
		return nil, fmt.Errorf("load post %d: %w", postID, err)
	}
	if n == 0 {
		return nil, ErrNotFound
	}

	comment := models.Comment{PostID: postID, UserID: actor.ID, Content: content}
	if err := s.db.WithContext(ctx).Omit("User").Create(&comment).Error; err != nil {
		return nil, fmt.Errorf("create comment: %w", err)
	}
	s.invalidate(postID)
	return s.Get(ctx, comment.ID)
}

// Get loads a comment with its author.
func (s *CommentService) Get(ctx context.Context, id uint) (*models.Comment, error) {
	var c models.Comment
	if err := s.db.WithContext(ctx).Preload("User").First(&c, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load comment %d: %w", id, err)
	}
	return &c, nil
}

// ListByPost returns the comments of a post in creation order.
func (s *CommentService) ListByPost(ctx context.Context, postID uint, limit, offset int) ([]models.Comment, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", postID).Count(&n).Error; err != nil {
		return nil, fmt.Errorf("load post %d: %w", postID, err)
	}
	if n == 0 {
		return nil, ErrNotFound
	}
	comments := []models.Comment{}
	if err := s.db.WithContext(ctx).Preload("User").Where("post_id = ?", postID).
		Order("created_at ASC, id ASC").Limit(limit).Offset(offset).Find(&comments).Error; err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	return comments, nil
}

// Update replaces the content of a comment. Only the author may edit, whatever their role.
func (s *CommentService) Update(ctx context.Context, actor Actor, id uint, content string) (*models.Comment, error) {
	content, err := cleanComment(content)
	if err != nil {
		return nil, err
	}
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.UserID != actor.ID {
		return nil, ErrForbidden
	}
	if err := s.db.WithContext(ctx).Model(c).Omit(clause.Associations).Update("content", content).Error; err != nil {
		return nil, fmt.Errorf("update comment %d: %w", id, err)
	}
	s.invalidate(c.PostID)
	return s.Get(ctx, id)
}

// Delete removes a comment; authors, admins and moderators may do so.
func (s *CommentService) Delete(ctx context.Context, actor Actor, id uint) error {
	c, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := CanModify(actor, c.UserID); err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Delete(&models.Comment{}, c.ID).Error; err != nil {
		return fmt.Errorf("delete comment %d: %w", id, err)
	}
	s.logger.Info("comment deleted", zap.Uint("comment_id", c.ID), zap.Uint("actor_id", actor.ID))
	s.invalidate(c.PostID)
	return nil
}

func (s *CommentService) invalidate(postID uint) {
	utils.InvalidateByPrefix(utils.PostDetailKey(postID))
}

func cleanComment(content string) (string, error) {
	content = utils.SanitizeText(content)
	if n := utf8.RuneCountInString(content); n == 0 || n > MaxCommentLen {
		return "", fmt.Errorf("%w: comment must be 1-%d characters", ErrValidation, MaxCommentLen)
	}
	return content, nil
}
