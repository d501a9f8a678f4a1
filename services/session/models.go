package session

import (
	"time"
)

// Session is one authenticated client. Rows are never hard-deleted;
// revocation flips IsActive so the audit trail survives.
type Session struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    uint      `json:"user_id" gorm:"not null;index"`
	TokenHash string    `json:"-" gorm:"uniqueIndex;size:64;not null"`
	Device    string    `json:"device" gorm:"size:255"`
	Browser   string    `json:"browser" gorm:"size:128"`
	OS        string    `json:"os" gorm:"size:128"`
	IPAddress string    `json:"ip_address" gorm:"size:45"`
	City      string    `json:"city" gorm:"size:128"`
	Region    string    `json:"region" gorm:"size:128"`
	Country   string    `json:"country" gorm:"size:128"`
	Timezone  string    `json:"timezone" gorm:"size:64"`
	IsActive  bool      `json:"is_active" gorm:"not null;default:true"`
	Current   bool      `json:"current" gorm:"-"`
	CreatedAt time.Time `json:"created_at"`
	LastUsed  time.Time `json:"last_used"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (Session) TableName() string {
	return "user_sessions"
}

// Metadata is what the transport layer knows about the client at login.
type Metadata struct {
	UserAgent   string
	ForwardedIP string
}
