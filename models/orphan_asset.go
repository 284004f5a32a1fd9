package models

import "time"

// OrphanAsset records an image host object whose deletion failed and must be retried.
type OrphanAsset struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PublicID  string    `gorm:"size:255;not null;uniqueIndex" json:"public_id"`
	Reason    string    `gorm:"size:64" json:"reason"` // e.g. post_deleted, avatar_replaced
	Attempts  int       `gorm:"not null;default:0" json:"attempts"`
	LastError string    `gorm:"size:1024" json:"last_error"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `gorm:"index" json:"updated_at"`
}
