package user

import (
	"time"

	"gorm.io/gorm"
)

type User struct {
	gorm.Model
	Email            string     `json:"email" gorm:"uniqueIndex;size:255;not null"`
	PasswordHash     string     `json:"-" gorm:"size:255;not null"`
	Name             string     `json:"name" gorm:"size:255"`
	Phone            string     `json:"phone" gorm:"size:32"`
	EmailVerified    bool       `json:"email_verified" gorm:"default:false"`
	EmailVerifiedAt  *time.Time `json:"email_verified_at,omitempty"`
	TwoFactorEnabled bool       `json:"two_factor_enabled" gorm:"default:false"`
}

func (User) TableName() string {
	return "users"
}

// Profile carries the non-credential signup fields.
type Profile struct {
	Name  string
	Phone string
}
