package models

import (
	"time"
)

// User is an account. Its Profile, AuthTokens and, transitively, Links and Clicks
// are removed by the database when the user row is deleted.
type User struct {
	ID             uint `gorm:"primaryKey"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Username       string `gorm:"size:150;not null;uniqueIndex"`
	Email          string `gorm:"size:254"`
	FirstName      string `gorm:"size:150"`
	LastName       string `gorm:"size:150"`
	HashedPassword []byte `gorm:"not null"`
	RoleID         *uint  `gorm:"index"`
	Role           *Role  `gorm:"foreignKey:RoleID;references:ID"`
}

// IsStaff reports whether the user has unrestricted access. The Role must be preloaded.
func (u *User) IsStaff() bool {
	return u != nil && u.Role != nil && u.Role.Name == RoleStaff
}
