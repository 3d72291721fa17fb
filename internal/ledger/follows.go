package ledger

import (
	"context"
	"iter"
	"strings"
	"time"

	"credledger/internal/models"
)

// FollowUser adds the edge follower -> followed. Following an account that is
// already followed is a no-op.
func (l *Ledger) FollowUser(ctx context.Context, follower, followed string) error {
	follower, followed = strings.TrimSpace(follower), strings.TrimSpace(followed)
	if err := validateEdge(follower, followed); err != nil {
		l.reject(ctx, OpFollowUser, err)
		return err
	}

	_, err := l.transition(ctx, OpFollowUser, func(st *state, now time.Time) (*ChangeSet, error) {
		if st.isFollowing(follower, followed) {
			return nil, nil
		}
		cs := &ChangeSet{Follow: &models.FollowEdge{Follower: follower, Followed: followed, CreatedAt: now}}
		if _, ok := st.profiles[follower]; !ok {
			cs.Profile = &models.AccountProfile{Account: follower}
		}
		return cs, nil
	})
	return err
}

// UnfollowUser removes the edge follower -> followed if present.
func (l *Ledger) UnfollowUser(ctx context.Context, follower, followed string) error {
	follower, followed = strings.TrimSpace(follower), strings.TrimSpace(followed)
	if err := validateAccountPair(follower, followed); err != nil {
		l.reject(ctx, OpUnfollowUser, err)
		return err
	}

	_, err := l.transition(ctx, OpUnfollowUser, func(st *state, _ time.Time) (*ChangeSet, error) {
		if !st.isFollowing(follower, followed) {
			return nil, nil
		}
		return &ChangeSet{Unfollow: &models.FollowEdge{Follower: follower, Followed: followed}}, nil
	})
	return err
}

func validateEdge(follower, followed string) error {
	if err := validateAccountPair(follower, followed); err != nil {
		return err
	}
	if follower == followed {
		return models.NewSelfFollowError(follower)
	}
	return nil
}

func validateAccountPair(follower, followed string) error {
	if follower == "" || followed == "" {
		return models.NewInvalidInputError("Follower and followed accounts are required")
	}
	if err := validateAccount("Follower", follower); err != nil {
		return err
	}
	return validateAccount("Followed account", followed)
}

// IsFollowing reports whether follower follows followed.
func (l *Ledger) IsFollowing(follower, followed string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.st.isFollowing(follower, followed)
}

// ListFollowing returns the accounts followed by account in the order they
// were followed, as a snapshot.
func (l *Ledger) ListFollowing(account string) iter.Seq[string] {
	l.mu.RLock()
	var snapshot []string
	if f, ok := l.st.following[account]; ok {
		snapshot = make([]string, len(f.order))
		for i, e := range f.order {
			snapshot[i] = e.Followed
		}
	}
	l.mu.RUnlock()

	return func(yield func(string) bool) {
		for _, a := range snapshot {
			if !yield(a) {
				return
			}
		}
	}
}

// FollowingCount returns how many accounts account follows.
func (l *Ledger) FollowingCount(account string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if f, ok := l.st.following[account]; ok {
		return len(f.order)
	}
	return 0
}
