package ledger

import (
	"context"

	"credledger/internal/models"
	"credledger/internal/observability"
)

// Profile returns the stored profile for account. Unseen accounts get a zero
// profile; this never fails.
func (l *Ledger) Profile(account string) models.AccountProfile {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.st.profile(account)
}

// GetProfile returns the profile with its reputation refreshed from the
// read-path oracle. When the oracle cannot answer, the cached snapshot is
// returned instead.
func (l *Ledger) GetProfile(ctx context.Context, account string) models.AccountProfile {
	p := l.Profile(account)
	if l.cfg.ProfileOracle == nil || account == "" {
		return p
	}
	rep, err := l.cfg.ProfileOracle.ReputationOf(ctx, account)
	if err != nil {
		l.log.LogError(ctx, err, "refresh profile reputation")
		return p
	}
	p.Reputation = rep
	return p
}

// RefreshReputation asks the oracle for account's current reputation.
func (l *Ledger) RefreshReputation(ctx context.Context, account string) (int64, error) {
	rep, err := l.refreshReputation(ctx, account)
	if err != nil {
		observability.OracleRequests.WithLabelValues("reputation_of", "error").Inc()
		return 0, err
	}
	observability.OracleRequests.WithLabelValues("reputation_of", "ok").Inc()
	return rep, nil
}

// recordPost stages the author's profile update for a new post.
func recordPost(p models.AccountProfile, reputation int64, post models.Post) models.AccountProfile {
	p.Reputation = reputation
	p.PostsCount++
	p.LastPostTime = post.CreatedAt
	return p
}
