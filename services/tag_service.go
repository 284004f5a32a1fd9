package services

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/photoshare/models"
	"github.com/cppla/photoshare/utils"
)

// MaxTagsPerPost caps the distinct tags attached to one post.
const MaxTagsPerPost = 5

// TagService resolves and lists tags.
type TagService struct {
	db *gorm.DB
}

// NewTagService creates a TagService.
func NewTagService(db *gorm.DB) *TagService {
	return &TagService{db: db}
}

// TagCount is a tag with the number of posts carrying it.
type TagCount struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Posts int64  `json:"posts"`
}

// Resolve returns the tags named by names, creating missing ones. Names are normalized
// and de-duplicated first. Concurrent callers may race on the insert; the unique index
// on name turns the loser into a no-op and the follow-up select sees the winner's row.
func (s *TagService) Resolve(tx *gorm.DB, names []string) ([]models.Tag, error) {
	names = utils.UniqueFold(names)
	if len(names) == 0 {
		return []models.Tag{}, nil
	}
	if len(names) > MaxTagsPerPost {
		return nil, ErrTooManyTags
	}
	rows := make([]models.Tag, 0, len(names))
	for _, n := range names {
		if !utils.ValidTagName(n) {
			return nil, fmt.Errorf("%w: invalid tag %q", ErrValidation, n)
		}
		rows = append(rows, models.Tag{Name: n})
	}

	if err := tx.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).
		Create(&rows).Error; err != nil {
		return nil, fmt.Errorf("upsert tags: %w", err)
	}

	var tags []models.Tag
	if err := tx.Where("name IN ?", names).Order("id ASC").Find(&tags).Error; err != nil {
		return nil, fmt.Errorf("load tags: %w", err)
	}
	return tags, nil
}

// List returns every tag with its post count, most used first.
func (s *TagService) List(ctx context.Context) ([]TagCount, error) {
	var out []TagCount
	err := s.db.WithContext(ctx).Model(&models.Tag{}).
		Select("tags.id, tags.name, COUNT(post_tags.post_id) AS posts").
		Joins("LEFT JOIN post_tags ON post_tags.tag_id = tags.id").
		Group("tags.id, tags.name").
		Order("posts DESC, tags.name ASC").
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	return out, nil
}
