package models

import "time"

// Link is one entry on a Profile's page. Links are displayed by ascending Order.
type Link struct {
	ID        uint     `gorm:"primaryKey"`
	ProfileID uint     `gorm:"index;not null"`
	Profile   *Profile `gorm:"foreignKey:ProfileID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Title     string   `gorm:"size:100;not null"`
	URL       string   `gorm:"size:200;not null"`
	// order is a reserved word in SQL
	Order     int `gorm:"column:sort_order;not null;default:0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
