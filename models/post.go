package models

import "time"

// Post is an uploaded image with its description, tags and derived assets.
type Post struct {
	ID                  uint      `gorm:"primaryKey" json:"id"`
	UserID              uint      `gorm:"index;not null" json:"user_id"`
	Title               string    `gorm:"size:255;not null;index" json:"title"`
	Description         string    `gorm:"size:255" json:"description"`
	Image               string    `gorm:"size:512;not null" json:"image"`
	ImagePublicID       string    `gorm:"size:255;not null;uniqueIndex" json:"image_public_id"`
	TransformedImage    string    `gorm:"size:512" json:"transformed_image,omitempty"`
	TransformedPublicID string    `gorm:"size:255" json:"-"`
	TransformSpec       string    `gorm:"type:text" json:"transform_spec,omitempty"` // JSON of the last applied parameters
	TransformedImageQR  string    `gorm:"size:512" json:"transformed_image_qr,omitempty"`
	QRPublicID          string    `gorm:"size:255" json:"-"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
	User                User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"author"`
	Tags                []Tag     `gorm:"many2many:post_tags;constraint:OnDelete:CASCADE;" json:"tags"`
	Comments            []Comment `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"comments,omitempty"`
	Ratings             []Rating  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
}

// PublicIDs lists every image host asset owned by the post.
func (p *Post) PublicIDs() []string {
	ids := make([]string, 0, 3)
	for _, id := range []string{p.ImagePublicID, p.TransformedPublicID, p.QRPublicID} {
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
