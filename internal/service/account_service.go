package service

import (
	"context"
	"slices"

	"credledger/internal/models"
	"credledger/internal/oracle"
)

// AccountDirectory is the part of the ledger the account views read.
type AccountDirectory interface {
	GetProfile(ctx context.Context, account string) models.AccountProfile
	FollowingCount(account string) int
	IsFollowing(follower, followed string) bool
	SuggestAccounts(viewer string, n int) []string
}

type AccountService struct {
	directory AccountDirectory
	oracle    oracle.Oracle
}

// AccountView is an account profile enriched for display.
type AccountView struct {
	models.AccountProfile
	Following int   `json:"following"`
	Activated *bool `json:"activated,omitempty"`
	// FollowedByViewer is set when an authenticated viewer asks.
	FollowedByViewer *bool `json:"followed_by_viewer,omitempty"`
}

func NewAccountService(directory AccountDirectory, o oracle.Oracle) *AccountService {
	return &AccountService{directory: directory, oracle: o}
}

// GetAccount never fails: an unreachable oracle leaves Activated unset.
func (s *AccountService) GetAccount(ctx context.Context, account, viewer string) AccountView {
	view := AccountView{
		AccountProfile: s.directory.GetProfile(ctx, account),
		Following:      s.directory.FollowingCount(account),
	}
	if s.oracle != nil {
		if activated, err := s.oracle.IsAccountActivated(ctx, account); err == nil {
			view.Activated = &activated
		}
	}
	if viewer != "" && viewer != account {
		following := s.directory.IsFollowing(viewer, account)
		view.FollowedByViewer = &following
	}
	return view
}

// Activate registers account with the reputation oracle.
func (s *AccountService) Activate(ctx context.Context, account string) error {
	if account == "" {
		return models.NewInvalidInputError("Account is required")
	}
	if s.oracle == nil {
		return models.NewOracleUnavailableError(nil)
	}
	return s.oracle.ActivateAccount(ctx, account)
}

// SuggestAccounts proposes accounts for viewer to follow: authors of trending
// posts viewer does not follow yet, highest reputation first.
func (s *AccountService) SuggestAccounts(ctx context.Context, viewer string, n int) []models.AccountProfile {
	authors := s.directory.SuggestAccounts(viewer, n)
	profiles := make([]models.AccountProfile, 0, len(authors))
	for _, author := range authors {
		profiles = append(profiles, s.directory.GetProfile(ctx, author))
	}
	slices.SortStableFunc(profiles, func(a, b models.AccountProfile) int {
		switch {
		case a.Reputation > b.Reputation:
			return -1
		case a.Reputation < b.Reputation:
			return 1
		}
		return 0
	})
	return profiles
}
