// Package models contains data structures for the ledger's domain models.
package models

import (
	"time"
)

// Post is one entry of the append-only post ledger. The body lives in the
// content store; ContentRef is passed through untouched.
type Post struct {
	ID            uint64    `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Author        string    `gorm:"size:128;not null;index" json:"author"`
	Title         string    `gorm:"size:1024;not null" json:"title"`
	ContentRef    string    `gorm:"size:512;not null" json:"content_ref"`
	WeightedScore int64     `gorm:"not null;default:0" json:"weighted_score"`
	CreatedAt     time.Time `json:"created_at"`
	Exists        bool      `gorm:"not null;default:true" json:"exists"`
}

// TableName specifies the table name for GORM
func (Post) TableName() string {
	return "posts"
}
