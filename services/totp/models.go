package totp

import (
	"gorm.io/gorm"
)

// Enrolment is a member's authenticator-app secret. Confirmed flips true
// after the member proves possession with a first valid code.
type Enrolment struct {
	gorm.Model
	UserID    uint   `json:"user_id" gorm:"uniqueIndex;not null"`
	Secret    string `json:"-" gorm:"not null"`
	Confirmed bool   `json:"confirmed" gorm:"not null;default:false"`
}

func (Enrolment) TableName() string {
	return "totp_enrolments"
}

// UsedCode guards against replay of a TOTP code inside its validity
// window.
type UsedCode struct {
	gorm.Model
	UserID uint   `gorm:"index:idx_totp_user_code,priority:1;not null"`
	Code   string `gorm:"index:idx_totp_user_code,priority:2;not null"`
	UsedAt int64  `gorm:"index:idx_totp_used_at;not null"`
}

func (UsedCode) TableName() string {
	return "totp_used_codes"
}
