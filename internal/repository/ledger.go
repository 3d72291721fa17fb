// Package repository persists the ledger with GORM.
package repository

import (
	"context"
	"fmt"

	"credledger/internal/ledger"
	"credledger/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LedgerRepository is the durable journal behind the in-memory ledger.
type LedgerRepository interface {
	// Commit writes one change set in a single database transaction.
	Commit(ctx context.Context, cs *ledger.ChangeSet) error
	// Load reads the full persisted state for Ledger.Restore.
	Load(ctx context.Context) (ledger.Snapshot, error)
}

type ledgerRepository struct {
	db *gorm.DB
}

// NewLedgerRepository returns a new LedgerRepository implementation.
func NewLedgerRepository(db *gorm.DB) LedgerRepository {
	return &ledgerRepository{db: db}
}

func (r *ledgerRepository) Commit(ctx context.Context, cs *ledger.ChangeSet) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if cs.NewPost != nil {
			if err := tx.Create(cs.NewPost).Error; err != nil {
				return fmt.Errorf("insert post %d: %w", cs.NewPost.ID, err)
			}
		}
		if cs.Profile != nil {
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(cs.Profile).Error; err != nil {
				return fmt.Errorf("upsert profile %s: %w", cs.Profile.Account, err)
			}
		}
		if cs.Vote != nil {
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(cs.Vote).Error; err != nil {
				return fmt.Errorf("upsert vote %d/%s: %w", cs.Vote.PostID, cs.Vote.Voter, err)
			}
		}
		if cs.Score != nil {
			res := tx.Model(&models.Post{}).
				Where("id = ? AND weighted_score = ?", cs.Score.PostID, cs.Score.Previous).
				Update("weighted_score", cs.Score.Score)
			if res.Error != nil {
				return fmt.Errorf("update score of post %d: %w", cs.Score.PostID, res.Error)
			}
			if res.RowsAffected != 1 {
				return fmt.Errorf("score of post %d diverged from the journal", cs.Score.PostID)
			}
		}
		if cs.Follow != nil {
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(cs.Follow).Error; err != nil {
				return fmt.Errorf("insert follow %s->%s: %w", cs.Follow.Follower, cs.Follow.Followed, err)
			}
		}
		if cs.Unfollow != nil {
			if err := tx.Where("follower = ? AND followed = ?", cs.Unfollow.Follower, cs.Unfollow.Followed).
				Delete(&models.FollowEdge{}).Error; err != nil {
				return fmt.Errorf("delete follow %s->%s: %w", cs.Unfollow.Follower, cs.Unfollow.Followed, err)
			}
		}
		return nil
	})
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *ledgerRepository) Load(ctx context.Context) (ledger.Snapshot, error) {
	var snap ledger.Snapshot
	db := r.db.WithContext(ctx)

	if err := db.Order("id ASC").Find(&snap.Posts).Error; err != nil {
		return ledger.Snapshot{}, models.NewInternalError(fmt.Errorf("load posts: %w", err))
	}
	if err := db.Order("post_id ASC, voter ASC").Find(&snap.Votes).Error; err != nil {
		return ledger.Snapshot{}, models.NewInternalError(fmt.Errorf("load votes: %w", err))
	}
	if err := db.Order("account ASC").Find(&snap.Profiles).Error; err != nil {
		return ledger.Snapshot{}, models.NewInternalError(fmt.Errorf("load profiles: %w", err))
	}
	if err := db.Order("created_at ASC, follower ASC, followed ASC").Find(&snap.Follows).Error; err != nil {
		return ledger.Snapshot{}, models.NewInternalError(fmt.Errorf("load follows: %w", err))
	}
	return snap, nil
}
