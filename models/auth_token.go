package models

import "time"

// Token kinds.
const (
	TokenAccess  = "access"
	TokenRefresh = "refresh"
)

// AuthToken stores a hashed representation of an issued token for lookup, rotation and revocation.
type AuthToken struct {
	ID        uint `gorm:"primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time
	UserID    uint      `gorm:"index;not null"`
	User      *User     `gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Kind      string    `gorm:"size:16;not null;index"`
	TokenHash string    `gorm:"size:128;not null;uniqueIndex"`
	ExpiresAt time.Time `gorm:"index;not null"`
	Revoked   bool      `gorm:"default:false"`
}

// Usable reports whether the token may still be presented at now.
func (t *AuthToken) Usable(now time.Time) bool {
	return !t.Revoked && now.Before(t.ExpiresAt)
}
