package models

import "time"

// Profile is a user's public link-in-bio page (one-to-one with User).
type Profile struct {
	ID        uint `gorm:"primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time
	UserID    uint  `gorm:"uniqueIndex;not null"` // one-to-one relation
	User      *User `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	// Slug is derived from the username when left empty and never changes afterwards.
	Slug        string `gorm:"size:100;uniqueIndex;not null"`
	DisplayName string `gorm:"size:100"`
	Bio         string `gorm:"size:500"`
	Location    string `gorm:"size:100"`
	Website     string `gorm:"size:200"`
	ImageURL    string `gorm:"size:512"`
	Twitter     string `gorm:"size:100"`
	Instagram   string `gorm:"size:100"`
	YouTube     string `gorm:"column:youtube;size:100"`
	// Visibility switches; see NewProfile for defaults.
	ShowInDirectory bool `gorm:"not null"`
	ShowStats       bool `gorm:"not null"`
	HideEmail       bool `gorm:"not null"`
}

// NewProfile returns an unsaved profile for userID with the default visibility settings.
func NewProfile(userID uint) *Profile {
	return &Profile{UserID: userID, ShowInDirectory: true, ShowStats: true}
}
