package models

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Role is the closed set of authorization roles a user can hold.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleModerator Role = "moderator"
	RoleUser      Role = "user"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleModerator, RoleUser:
		return true
	}
	return false
}

// ParseRole converts user input into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// User represents an account. Passwords are stored as bcrypt hashes only.
type User struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Username       string    `gorm:"size:50;not null;uniqueIndex" json:"username"`
	Email          string    `gorm:"size:250;not null;uniqueIndex" json:"email"`
	PasswordHash   string    `gorm:"size:255;not null" json:"-"`
	Role           Role      `gorm:"size:16;not null;default:'user'" json:"role"`
	Confirmed      bool      `gorm:"not null;default:false" json:"confirmed"`
	Active         bool      `gorm:"not null;default:true" json:"active"`
	Avatar         string    `gorm:"size:512" json:"avatar"`
	AvatarPublicID string    `gorm:"size:255" json:"-"`
	RefreshToken   *string   `gorm:"size:512" json:"-"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	Comments       []Comment `json:"-"`
	Posts          []Post    `json:"-"`
}

// BeforeCreate hook ensures timestamps and the role are set even when not provided.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	if u.Role == "" {
		u.Role = RoleUser
	}
	return nil
}

// BeforeUpdate ensures the UpdatedAt timestamp is refreshed.
func (u *User) BeforeUpdate(tx *gorm.DB) error {
	u.UpdatedAt = time.Now()
	return nil
}

// IsModerator reports whether the user can moderate other users' content.
func (u *User) IsModerator() bool {
	return u.Role == RoleAdmin || u.Role == RoleModerator
}
