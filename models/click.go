package models

import "time"

// Click records one visit to a Link. Rows are never updated.
type Click struct {
	ID        uint      `gorm:"primaryKey"`
	LinkID    uint      `gorm:"index;not null"`
	Link      *Link     `gorm:"foreignKey:LinkID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	ClickedAt time.Time `gorm:"index;not null"`
	IPAddress *string   `gorm:"size:45"`
}
