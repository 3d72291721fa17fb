package ledger

import (
	"time"

	"credledger/internal/models"

	"github.com/google/btree"
)

// ScoreChange sets a post's weighted score to Score.
type ScoreChange struct {
	PostID   uint64
	Previous int64
	Score    int64
}

// ChangeSet is every mutation of one committed transition. The journal
// persists it as a unit and state.apply is the only writer of ledger state.
type ChangeSet struct {
	Seq uint64
	Op  string
	At  time.Time

	NewPost  *models.Post
	Profile  *models.AccountProfile
	Vote     *models.Vote
	Score    *ScoreChange
	Follow   *models.FollowEdge
	Unfollow *models.FollowEdge
}

func (cs *ChangeSet) event() models.LedgerEvent {
	evt := models.LedgerEvent{Seq: cs.Seq, At: cs.At}
	switch {
	case cs.NewPost != nil:
		evt.Type = models.EventPostCreated
		evt.Account = cs.NewPost.Author
		evt.PostID = cs.NewPost.ID
	case cs.Vote != nil:
		evt.Type = models.EventPostVoted
		evt.Account = cs.Vote.Voter
		evt.PostID = cs.Vote.PostID
		evt.Direction = cs.Vote.Direction
		if cs.Score != nil {
			evt.Score = cs.Score.Score
		}
	case cs.Follow != nil:
		evt.Type = models.EventAccountFollowed
		evt.Account = cs.Follow.Follower
		evt.Target = cs.Follow.Followed
	case cs.Unfollow != nil:
		evt.Type = models.EventAccountUnfollowed
		evt.Account = cs.Unfollow.Follower
		evt.Target = cs.Unfollow.Followed
	}
	return evt
}

type voteKey struct {
	postID uint64
	voter  string
}

// trendKey orders the trending index: score descending, then id descending.
type trendKey struct {
	score int64
	id    uint64
}

func trendLess(a, b trendKey) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	return a.id > b.id
}

// followSet keeps one follower's edges in insertion order.
type followSet struct {
	order []models.FollowEdge
	index map[string]int
}

func newFollowSet() *followSet {
	return &followSet{index: make(map[string]int)}
}

func (f *followSet) has(followed string) bool {
	_, ok := f.index[followed]
	return ok
}

func (f *followSet) add(edge models.FollowEdge) {
	if f.has(edge.Followed) {
		return
	}
	f.index[edge.Followed] = len(f.order)
	f.order = append(f.order, edge)
}

func (f *followSet) remove(followed string) {
	i, ok := f.index[followed]
	if !ok {
		return
	}
	f.order = append(f.order[:i], f.order[i+1:]...)
	delete(f.index, followed)
	for j := i; j < len(f.order); j++ {
		f.index[f.order[j].Followed] = j
	}
}

// state is the owned ledger state. Post ids are dense and start at 1, so
// posts[id-1] is the post with that id.
type state struct {
	posts     []models.Post
	byAuthor  map[string][]uint64
	votes     map[voteKey]models.Vote
	profiles  map[string]models.AccountProfile
	following map[string]*followSet
	trending  *btree.BTreeG[trendKey]
}

func newState() *state {
	return &state{
		byAuthor:  make(map[string][]uint64),
		votes:     make(map[voteKey]models.Vote),
		profiles:  make(map[string]models.AccountProfile),
		following: make(map[string]*followSet),
		trending:  btree.NewG[trendKey](32, trendLess),
	}
}

func (s *state) nextPostID() uint64 {
	return uint64(len(s.posts)) + 1
}

func (s *state) post(id uint64) (models.Post, bool) {
	if id == 0 || id > uint64(len(s.posts)) {
		return models.Post{}, false
	}
	return s.posts[id-1], true
}

func (s *state) profile(account string) models.AccountProfile {
	if p, ok := s.profiles[account]; ok {
		return p
	}
	return models.AccountProfile{Account: account}
}

func (s *state) isFollowing(follower, followed string) bool {
	f, ok := s.following[follower]
	return ok && f.has(followed)
}

func (s *state) apply(cs *ChangeSet) {
	if cs.NewPost != nil {
		p := *cs.NewPost
		s.posts = append(s.posts, p)
		s.byAuthor[p.Author] = append(s.byAuthor[p.Author], p.ID)
		s.trending.ReplaceOrInsert(trendKey{score: p.WeightedScore, id: p.ID})
	}
	if cs.Profile != nil {
		s.profiles[cs.Profile.Account] = *cs.Profile
	}
	if cs.Vote != nil {
		s.votes[voteKey{postID: cs.Vote.PostID, voter: cs.Vote.Voter}] = *cs.Vote
	}
	if cs.Score != nil {
		p := &s.posts[cs.Score.PostID-1]
		s.trending.Delete(trendKey{score: p.WeightedScore, id: p.ID})
		p.WeightedScore = cs.Score.Score
		s.trending.ReplaceOrInsert(trendKey{score: p.WeightedScore, id: p.ID})
	}
	if cs.Follow != nil {
		f, ok := s.following[cs.Follow.Follower]
		if !ok {
			f = newFollowSet()
			s.following[cs.Follow.Follower] = f
		}
		f.add(*cs.Follow)
	}
	if cs.Unfollow != nil {
		if f, ok := s.following[cs.Unfollow.Follower]; ok {
			f.remove(cs.Unfollow.Followed)
			if len(f.order) == 0 {
				delete(s.following, cs.Unfollow.Follower)
			}
		}
	}
}
