package ledger

import (
	"fmt"
	"sort"
	"time"

	"credledger/internal/models"
	"credledger/internal/observability"
)

// Snapshot is the persisted ledger state as loaded from the journal store.
type Snapshot struct {
	Posts    []models.Post
	Votes    []models.Vote
	Profiles []models.AccountProfile
	Follows  []models.FollowEdge
}

// Restore replaces the ledger state with snap after checking the ledger
// invariants against it. On error the current state is kept.
func (l *Ledger) Restore(snap Snapshot) error {
	st := newState()

	posts := append([]models.Post(nil), snap.Posts...)
	sort.Slice(posts, func(i, j int) bool { return posts[i].ID < posts[j].ID })
	for i, p := range posts {
		if p.ID != uint64(i)+1 {
			return fmt.Errorf("post ids are not dense: position %d holds id %d", i, p.ID)
		}
		st.apply(&ChangeSet{NewPost: &p})
	}

	scores := make(map[uint64]int64, len(posts))
	for i := range snap.Votes {
		v := snap.Votes[i]
		if _, ok := st.post(v.PostID); !ok {
			return fmt.Errorf("vote by %s references unknown post %d", v.Voter, v.PostID)
		}
		if v.Weight <= 0 {
			return fmt.Errorf("vote by %s on post %d has non-positive weight %d", v.Voter, v.PostID, v.Weight)
		}
		st.votes[voteKey{postID: v.PostID, voter: v.Voter}] = v
		scores[v.PostID] += v.SignedWeight()
	}
	for _, p := range posts {
		if p.WeightedScore != scores[p.ID] {
			return fmt.Errorf("post %d score %d does not match its votes (%d)", p.ID, p.WeightedScore, scores[p.ID])
		}
	}

	for _, prof := range snap.Profiles {
		if got := uint64(len(st.byAuthor[prof.Account])); prof.PostsCount != got {
			return fmt.Errorf("account %s posts count %d does not match authored posts (%d)", prof.Account, prof.PostsCount, got)
		}
		st.profiles[prof.Account] = prof
	}
	for author, ids := range st.byAuthor {
		if _, ok := st.profiles[author]; !ok {
			return fmt.Errorf("author %s of %d posts has no profile", author, len(ids))
		}
	}

	follows := append([]models.FollowEdge(nil), snap.Follows...)
	sort.SliceStable(follows, func(i, j int) bool { return followBefore(follows[i], follows[j]) })
	for i := range follows {
		e := follows[i]
		if e.Follower == e.Followed {
			return fmt.Errorf("self follow edge for %s", e.Follower)
		}
		st.apply(&ChangeSet{Follow: &e})
	}

	l.mu.Lock()
	l.st = st
	l.lastAt = latestCommit(snap)
	l.mu.Unlock()

	observability.LedgerPosts.Set(float64(len(posts)))
	return nil
}

// followBefore orders edges by creation time. Commit times are unique, so the
// account tie-break only matters for rows written outside the ledger.
func followBefore(a, b models.FollowEdge) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	if a.Follower != b.Follower {
		return a.Follower < b.Follower
	}
	return a.Followed < b.Followed
}

// latestCommit is the newest timestamp in snap, so commits after a restore
// keep strictly increasing times.
func latestCommit(snap Snapshot) time.Time {
	var last time.Time
	later := func(t time.Time) {
		if t.After(last) {
			last = t
		}
	}
	for _, p := range snap.Posts {
		later(p.CreatedAt)
	}
	for _, v := range snap.Votes {
		later(v.CastAt)
	}
	for _, e := range snap.Follows {
		later(e.CreatedAt)
	}
	return last
}
