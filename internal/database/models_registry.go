package database

import "credledger/internal/models"

// AllModels lists every model persisted by the ledger journal.
func AllModels() []any {
	return []any{
		&models.Post{},
		&models.Vote{},
		&models.AccountProfile{},
		&models.FollowEdge{},
	}
}
