package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is an authenticated principal. Authorization is evaluated through the
// groups a user belongs to, never against the user record directly.
type User struct {
	ID       string `gorm:"primaryKey;type:uuid" json:"id"`
	Username string `gorm:"uniqueIndex;not null" json:"username"`
	Email    string `gorm:"uniqueIndex;not null" json:"email"`
	Password string `gorm:"not null" json:"-"`

	DisplayName string `json:"display_name"`

	IsAdmin  bool `gorm:"default:false" json:"is_admin"`
	IsActive bool `gorm:"default:true" json:"is_active"`

	Groups []UserGroup `gorm:"many2many:group_users;" json:"groups,omitempty"`

	CreationDate time.Time `gorm:"index" json:"creation_date"`
}

// BeforeCreate ensures a UUID and creation date are present before persisting.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreationDate.IsZero() {
		u.CreationDate = time.Now().UTC()
	}
	return nil
}
