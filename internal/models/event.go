package models

import (
	"time"
)

// Ledger event types published after a transition commits.
const (
	EventPostCreated       = "post.created"
	EventPostVoted         = "post.voted"
	EventAccountFollowed   = "account.followed"
	EventAccountUnfollowed = "account.unfollowed"
)

// LedgerEvent describes one committed transition.
type LedgerEvent struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Seq       uint64    `json:"seq"`
	Account   string    `json:"account"`
	PostID    uint64    `json:"post_id,omitempty"`
	Target    string    `json:"target,omitempty"`
	Score     int64     `json:"score,omitempty"`
	Direction Direction `json:"direction,omitempty"`
	At        time.Time `json:"at"`
}
