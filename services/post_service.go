package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/photoshare/models"
	"github.com/cppla/photoshare/storage"
	"github.com/cppla/photoshare/transform"
	"github.com/cppla/photoshare/utils"
)

const (
	maxTitleLen       = 255
	maxDescriptionLen = 255
)

// PostService implements post lifecycle operations.
type PostService struct {
	db     *gorm.DB
	host   storage.ImageHost
	tags   *TagService
	assets *assetReleaser
	logger *zap.Logger
}

// NewPostService creates a PostService.
func NewPostService(db *gorm.DB, host storage.ImageHost, logger *zap.Logger) *PostService {
	return &PostService{
		db:     db,
		host:   host,
		tags:   NewTagService(db),
		assets: &assetReleaser{db: db, host: host, logger: logger},
		logger: logger,
	}
}

// CreatePostInput carries a new post and its image.
type CreatePostInput struct {
	Title       string
	Description string
	Tags        []string
	FileName    string
	File        io.Reader
	Size        int64
}

// SearchQuery filters and pages post listings. Zero values mean no filter.
type SearchQuery struct {
	Keyword  string
	Tag      string
	UserID   uint
	Sort     string // "date" (default) or "id"
	Page     int
	PageSize int
}

// PostPage is one page of posts.
type PostPage struct {
	Items    []models.Post `json:"items"`
	Total    int64         `json:"total"`
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
}

// TransformedLinks are the derived asset URLs of a post.
type TransformedLinks struct {
	TransformedImage   string `json:"transformed_image"`
	TransformedImageQR string `json:"transformed_image_qr,omitempty"`
}

// Create uploads the image and persists the post with its tags.
func (s *PostService) Create(ctx context.Context, actor Actor, in CreatePostInput) (*models.Post, error) {
	names := utils.UniqueFold(in.Tags)
	if len(names) > MaxTagsPerPost {
		return nil, ErrTooManyTags
	}
	for _, n := range names {
		if !utils.ValidTagName(n) {
			return nil, fmt.Errorf("%w: invalid tag %q", ErrValidation, n)
		}
	}
	title := utils.SanitizeText(in.Title)
	if title == "" || utf8.RuneCountInString(title) > maxTitleLen {
		return nil, fmt.Errorf("%w: title must be 1-%d characters", ErrValidation, maxTitleLen)
	}
	description := utils.SanitizeText(in.Description)
	if utf8.RuneCountInString(description) > maxDescriptionLen {
		return nil, fmt.Errorf("%w: description must be at most %d characters", ErrValidation, maxDescriptionLen)
	}
	if in.File == nil {
		return nil, fmt.Errorf("%w: an image file is required", ErrValidation)
	}
	info, file, err := transform.Inspect(in.File)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	asset, err := s.host.Upload(ctx, storage.ObjectName("posts", actor.ID, info.Ext()), file, in.Size, info.ContentType)
	if err != nil {
		return nil, fmt.Errorf("upload image: %w", err)
	}

	post := models.Post{
		UserID:        actor.ID,
		Title:         title,
		Description:   description,
		Image:         asset.URL,
		ImagePublicID: asset.PublicID,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tags, err := s.tags.Resolve(tx, names)
		if err != nil {
			return err
		}
		post.Tags = tags
		return tx.Omit("User", "Tags.*").Create(&post).Error
	})
	if err != nil {
		s.assets.release(ctx, "post_create_failed", asset.PublicID)
		return nil, fmt.Errorf("create post: %w", err)
	}

	s.logger.Info("post created", zap.Uint("post_id", post.ID), zap.Uint("user_id", actor.ID), zap.Int("tags", len(names)))
	utils.InvalidateByPrefix(utils.PostListKeyPrefix)
	return s.Get(ctx, post.ID)
}

// Get loads a post with its author and tags.
func (s *PostService) Get(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	if err := s.db.WithContext(ctx).Preload("User").Preload("Tags").First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load post %d: %w", id, err)
	}
	return &post, nil
}

// UpdateDescription changes the description of a post the actor may modify.
func (s *PostService) UpdateDescription(ctx context.Context, actor Actor, id uint, description string) (*models.Post, error) {
	description = utils.SanitizeText(description)
	if utf8.RuneCountInString(description) > maxDescriptionLen {
		return nil, fmt.Errorf("%w: description must be at most %d characters", ErrValidation, maxDescriptionLen)
	}
	post, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := CanModify(actor, post.UserID); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(post).Omit(clause.Associations).Update("description", description).Error; err != nil {
		return nil, fmt.Errorf("update post %d: %w", id, err)
	}
	s.invalidate(post.ID)
	return s.Get(ctx, id)
}

// Delete removes a post with its comments, ratings and tag links, then its assets.
func (s *PostService) Delete(ctx context.Context, actor Actor, id uint) error {
	post, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := CanModify(actor, post.UserID); err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return deletePostRows(tx, []uint{post.ID})
	}); err != nil {
		return fmt.Errorf("delete post %d: %w", id, err)
	}

	s.assets.release(ctx, "post_deleted", post.PublicIDs()...)
	s.logger.Info("post deleted", zap.Uint("post_id", post.ID), zap.Uint("actor_id", actor.ID))
	s.invalidate(post.ID)
	return nil
}

// Transform derives a new image from the original and stores it in the transformed slot.
// A previous transformed image and its QR code are released.
func (s *PostService) Transform(ctx context.Context, actor Actor, id uint, params transform.Params) (*models.Post, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	post, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := CanModify(actor, post.UserID); err != nil {
		return nil, err
	}

	rc, err := s.host.Open(ctx, post.ImagePublicID)
	if err != nil {
		return nil, fmt.Errorf("open original of post %d: %w", id, err)
	}
	src, err := transform.Decode(rc)
	rc.Close()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	out, err := transform.Apply(src, params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	png, err := transform.EncodePNG(out)
	if err != nil {
		return nil, err
	}
	asset, err := s.host.Upload(ctx, storage.ObjectName("transformed", post.UserID, "t.png"),
		bytes.NewReader(png), int64(len(png)), "image/png")
	if err != nil {
		return nil, fmt.Errorf("upload transformed image: %w", err)
	}

	oldTransformed, oldQR := post.TransformedPublicID, post.QRPublicID
	updates := map[string]interface{}{
		"transformed_image":     asset.URL,
		"transformed_public_id": asset.PublicID,
		"transform_spec":        params.Spec(),
		"transformed_image_qr":  "",
		"qr_public_id":          "",
	}
	if err := s.db.WithContext(ctx).Model(post).Omit(clause.Associations).Updates(updates).Error; err != nil {
		s.assets.release(ctx, "transform_failed", asset.PublicID)
		return nil, fmt.Errorf("save transformed image: %w", err)
	}
	s.assets.release(ctx, "transform_replaced", oldTransformed, oldQR)
	s.invalidate(post.ID)
	return s.Get(ctx, id)
}

// GenerateQR encodes the transformed image URL as a QR code and stores it.
func (s *PostService) GenerateQR(ctx context.Context, actor Actor, id uint) (*models.Post, error) {
	post, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := CanModify(actor, post.UserID); err != nil {
		return nil, err
	}
	if post.TransformedImage == "" {
		return nil, ErrNoTransformedImage
	}

	png, err := transform.QRCode(post.TransformedImage, transform.QRSize)
	if err != nil {
		return nil, err
	}
	asset, err := s.host.Upload(ctx, storage.ObjectName("qr", post.UserID, "qr.png"),
		bytes.NewReader(png), int64(len(png)), "image/png")
	if err != nil {
		return nil, fmt.Errorf("upload qr code: %w", err)
	}

	oldQR := post.QRPublicID
	if err := s.db.WithContext(ctx).Model(post).Omit(clause.Associations).Updates(map[string]interface{}{
		"transformed_image_qr": asset.URL,
		"qr_public_id":         asset.PublicID,
	}).Error; err != nil {
		s.assets.release(ctx, "qr_failed", asset.PublicID)
		return nil, fmt.Errorf("save qr code: %w", err)
	}
	s.assets.release(ctx, "qr_replaced", oldQR)
	s.invalidate(post.ID)
	return s.Get(ctx, id)
}

// TransformedLinks returns the transformed image and QR URLs of a post.
func (s *PostService) TransformedLinks(ctx context.Context, id uint) (TransformedLinks, error) {
	post, err := s.Get(ctx, id)
	if err != nil {
		return TransformedLinks{}, err
	}
	if post.TransformedImage == "" {
		return TransformedLinks{}, ErrNoTransformedImage
	}
	return TransformedLinks{TransformedImage: post.TransformedImage, TransformedImageQR: post.TransformedImageQR}, nil
}

// Search lists posts matching a keyword and/or tag.
func (s *PostService) Search(ctx context.Context, q SearchQuery) (*PostPage, error) {
	page, pageSize := normalizePage(q.Page, q.PageSize)

	base := s.db.WithContext(ctx).Model(&models.Post{})
	if kw := strings.TrimSpace(q.Keyword); kw != "" {
		like := "%" + kw + "%"
		base = base.Where("(posts.title LIKE ? OR posts.description LIKE ?)", like, like)
	}
	if tag := strings.ToLower(strings.TrimSpace(q.Tag)); tag != "" {
		sub := s.db.Table("post_tags").Select("post_tags.post_id").
			Joins("JOIN tags ON tags.id = post_tags.tag_id").
			Where("tags.name = ?", tag)
		base = base.Where("posts.id IN (?)", sub)
	}
	if q.UserID != 0 {
		base = base.Where("posts.user_id = ?", q.UserID)
	}
	base = base.Session(&gorm.Session{})

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count posts: %w", err)
	}

	order := "posts.created_at DESC, posts.id DESC"
	if q.Sort == "id" {
		order = "posts.id ASC"
	}
	items := []models.Post{}
	if err := base.Preload("User").Preload("Tags").Order(order).
		Offset((page - 1) * pageSize).Limit(pageSize).Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return &PostPage{Items: items, Total: total, Page: page, PageSize: pageSize}, nil
}

// ListByUser lists the posts of one user, newest first.
func (s *PostService) ListByUser(ctx context.Context, userID uint, page, pageSize int) (*PostPage, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Count(&n).Error; err != nil {
		return nil, fmt.Errorf("load user %d: %w", userID, err)
	}
	if n == 0 {
		return nil, ErrNotFound
	}
	return s.Search(ctx, SearchQuery{UserID: userID, Page: page, PageSize: pageSize})
}

func (s *PostService) invalidate(postID uint) {
	invalidatePostCache(postID)
}

// invalidatePostCache drops the cached details of the given posts and every cached listing.
func invalidatePostCache(postIDs ...uint) {
	for _, id := range postIDs {
		utils.InvalidateByPrefix(utils.PostDetailKey(id))
	}
	utils.InvalidateByPrefix(utils.PostListKeyPrefix)
}

// deletePostRows removes posts and everything that references them. It must run inside a transaction.
func deletePostRows(tx *gorm.DB, postIDs []uint) error {
	if len(postIDs) == 0 {
		return nil
	}
	if err := tx.Exec("DELETE FROM post_tags WHERE post_id IN ?", postIDs).Error; err != nil {
		return fmt.Errorf("unlink tags: %w", err)
	}
	if err := tx.Where("post_id IN ?", postIDs).Delete(&models.Comment{}).Error; err != nil {
		return fmt.Errorf("delete comments: %w", err)
	}
	if err := tx.Where("post_id IN ?", postIDs).Delete(&models.Rating{}).Error; err != nil {
		return fmt.Errorf("delete ratings: %w", err)
	}
	if err := tx.Where("id IN ?", postIDs).Delete(&models.Post{}).Error; err != nil {
		return fmt.Errorf("delete posts: %w", err)
	}
	return nil
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize
}
