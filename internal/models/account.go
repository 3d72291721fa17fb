package models

import (
	"time"
)

// Column bounds, in characters, of the journal schema.
const (
	MaxAccountLength    = 128
	MaxTitleLength      = 1024
	MaxContentRefLength = 512
)

// AccountProfile is the directory entry for an account. Reputation is a
// snapshot of the last oracle reading and is not authoritative.
type AccountProfile struct {
	Account      string    `gorm:"primaryKey;size:128" json:"account"`
	Reputation   int64     `gorm:"not null;default:0" json:"reputation"`
	PostsCount   uint64    `gorm:"not null;default:0" json:"posts_count"`
	LastPostTime time.Time `json:"last_post_time"`
}

// TableName specifies the table name for GORM
func (AccountProfile) TableName() string {
	return "account_profiles"
}

// FollowEdge is a directed follower -> followed relation.
type FollowEdge struct {
	Follower  string    `gorm:"primaryKey;size:128" json:"follower"`
	Followed  string    `gorm:"primaryKey;size:128" json:"followed"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM
func (FollowEdge) TableName() string {
	return "follow_edges"
}
