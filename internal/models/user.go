package models

import (
	"time"
)

type User struct {
	ID           uint      `gorm:"primarykey" json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Email        string    `gorm:"size:254;not null;uniqueIndex" json:"email"`
	Username     string    `gorm:"size:150;not null;uniqueIndex" json:"username"`
	FirstName    string    `gorm:"size:150;not null" json:"first_name"`
	LastName     string    `gorm:"size:150;not null" json:"last_name"`
	PasswordHash string    `gorm:"not null" json:"-"`
	// Avatar is a storage key, empty when unset
	Avatar  string `gorm:"size:255" json:"avatar"`
	IsAdmin bool   `gorm:"not null;default:false" json:"is_admin"`
}

// Follower is a directed subscription from UserID to AuthorID.
type Follower struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_follower_user_author" json:"user_id"`
	AuthorID  uint      `gorm:"not null;uniqueIndex:idx_follower_user_author;index" json:"author_id"`
	User      User      `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Author    User      `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}
