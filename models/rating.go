package models

import "time"

// Rating is a single user's 1-5 score for a post.
type Rating struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_rating_user_post" json:"user_id"`
	PostID    uint      `gorm:"not null;uniqueIndex:idx_rating_user_post;index" json:"post_id"`
	Score     int       `gorm:"not null" json:"score"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
