package ledger

import (
	"context"
	"errors"
	"strings"
	"time"

	"credledger/internal/models"
)

// VotePost casts, or switches, voter's vote on postID.
//
// A first vote adds its signed weight to the post score. Re-voting the same
// direction changes nothing and fails with ALREADY_VOTED (unless the silent
// re-vote policy applies to voter). Switching direction re-weighs the vote at
// the voter's current reputation and moves the score by new minus old signed
// weight, so the original weight is retracted exactly once.
func (l *Ledger) VotePost(ctx context.Context, voter string, postID uint64, isUpvote bool) error {
	voter = strings.TrimSpace(voter)
	if err := validateAccount("Voter", voter); err != nil {
		l.reject(ctx, OpVotePost, err)
		return err
	}
	dir := models.DirectionOf(isUpvote)

	// Cheap rejections before the oracle round trip; re-checked under the write lock.
	if err := l.precheckVote(voter, postID, dir); err != nil {
		if errors.Is(err, errSilentNoop) {
			return nil
		}
		l.reject(ctx, OpVotePost, err)
		return err
	}

	rep, err := l.RefreshReputation(ctx, voter)
	if err != nil {
		l.reject(ctx, OpVotePost, err)
		return err
	}

	_, err = l.transition(ctx, OpVotePost, func(st *state, now time.Time) (*ChangeSet, error) {
		post, ok := st.post(postID)
		if !ok {
			return nil, models.NewPostNotFoundError(postID)
		}

		prior, hasPrior := st.votes[voteKey{postID: postID, voter: voter}]
		if hasPrior && prior.Direction == dir {
			if l.silentRevote(voter) {
				return nil, nil
			}
			return nil, models.NewAlreadyVotedError(postID, voter)
		}

		vote := models.Vote{
			PostID:    postID,
			Voter:     voter,
			Direction: dir,
			Weight:    l.cfg.Weight.Weight(rep),
			CastAt:    now,
		}
		delta := vote.SignedWeight()
		if hasPrior {
			delta -= prior.SignedWeight()
		}

		profile := st.profile(voter)
		profile.Reputation = rep

		return &ChangeSet{
			Vote:    &vote,
			Score:   &ScoreChange{PostID: postID, Previous: post.WeightedScore, Score: post.WeightedScore + delta},
			Profile: &profile,
		}, nil
	})
	return err
}

var errSilentNoop = errors.New("silent re-vote")

func (l *Ledger) precheckVote(voter string, postID uint64, dir models.Direction) error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if _, ok := l.st.post(postID); !ok {
		return models.NewPostNotFoundError(postID)
	}
	if prior, ok := l.st.votes[voteKey{postID: postID, voter: voter}]; ok && prior.Direction == dir {
		if l.silentRevote(voter) {
			return errSilentNoop
		}
		return models.NewAlreadyVotedError(postID, voter)
	}
	return nil
}

func (l *Ledger) silentRevote(voter string) bool {
	return l.cfg.SilentRevote != nil && l.cfg.SilentRevote(voter)
}

// GetVote returns voter's live vote on postID, if any.
func (l *Ledger) GetVote(postID uint64, voter string) (models.Vote, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	v, ok := l.st.votes[voteKey{postID: postID, voter: voter}]
	return v, ok
}
