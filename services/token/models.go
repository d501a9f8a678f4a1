package token

import (
	"time"
)

type Purpose string

const (
	PurposeEmailVerify   Purpose = "email_verify"
	PurposePasswordReset Purpose = "password_reset"
	PurposeTwoFactor     Purpose = "two_factor"
)

// SecretToken holds the hash of an issued single-use secret. The
// composite unique index is what makes "at most one live token per
// (user, purpose)" hold under concurrent issuance: a second Issue for
// the same pair lands on the same row as an upsert, never a second row.
type SecretToken struct {
	ID           uint       `json:"id" gorm:"primaryKey"`
	UserID       uint       `json:"user_id" gorm:"not null;uniqueIndex:idx_secret_tokens_user_purpose"`
	Purpose      Purpose    `json:"purpose" gorm:"size:20;not null;uniqueIndex:idx_secret_tokens_user_purpose"`
	SecretHash   string     `json:"-" gorm:"size:64;not null;index"`
	ExpiresAt    time.Time  `json:"expires_at" gorm:"not null"`
	ConsumedAt   *time.Time `json:"consumed_at,omitempty"`
	AttemptCount int        `json:"attempt_count" gorm:"not null;default:0"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (SecretToken) TableName() string {
	return "secret_tokens"
}
