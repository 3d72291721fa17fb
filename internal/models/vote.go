package models

import (
	"time"
)

// Direction is the side of a vote.
type Direction string

const (
	// DirectionUp adds the voter's weight to the post score.
	DirectionUp Direction = "up"
	// DirectionDown subtracts the voter's weight from the post score.
	DirectionDown Direction = "down"
)

// DirectionOf maps the boolean form used by callers to a Direction.
func DirectionOf(isUpvote bool) Direction {
	if isUpvote {
		return DirectionUp
	}
	return DirectionDown
}

// Vote is the single live vote of Voter on PostID.
// Weight is fixed when the vote is cast and never re-evaluated.
type Vote struct {
	PostID    uint64    `gorm:"primaryKey;autoIncrement:false" json:"post_id"`
	Voter     string    `gorm:"primaryKey;size:128" json:"voter"`
	Direction Direction `gorm:"type:varchar(8);not null" json:"direction"`
	Weight    int64     `gorm:"not null" json:"weight"`
	CastAt    time.Time `json:"cast_at"`
}

// TableName specifies the table name for GORM
func (Vote) TableName() string {
	return "votes"
}

// IsUpvote reports whether the vote is an upvote.
func (v Vote) IsUpvote() bool {
	return v.Direction == DirectionUp
}

// SignedWeight is the contribution of the vote to the post's weighted score.
func (v Vote) SignedWeight() int64 {
	if v.Direction == DirectionDown {
		return -v.Weight
	}
	return v.Weight
}
