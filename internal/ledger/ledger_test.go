package ledger

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"credledger/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubOracle is a deterministic reputation oracle.
type stubOracle struct {
	mu   sync.Mutex
	reps map[string]int64
	err  error
}

func newStubOracle(reps map[string]int64) *stubOracle {
	if reps == nil {
		reps = map[string]int64{}
	}
	return &stubOracle{reps: reps}
}

func (o *stubOracle) ReputationOf(_ context.Context, account string) (int64, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return 0, o.err
	}
	return o.reps[account], nil
}

func (o *stubOracle) set(account string, rep int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.reps[account] = rep
}

// journalStub records committed change sets and can be told to fail.
type journalStub struct {
	mu        sync.Mutex
	committed []*ChangeSet
	err       error
}

func (j *journalStub) Commit(_ context.Context, cs *ChangeSet) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.err != nil {
		return j.err
	}
	j.committed = append(j.committed, cs)
	return nil
}

type publisherStub struct {
	mu     sync.Mutex
	events []models.LedgerEvent
	err    error
}

func (p *publisherStub) Publish(_ context.Context, evt models.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return p.err
}

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() func() time.Time {
	var mu sync.Mutex
	t := fixedNow
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

func newTestLedger(oracle *stubOracle, mutate ...func(*Config)) *Ledger {
	cfg := Config{Clock: fixedClock()}
	for _, m := range mutate {
		m(&cfg)
	}
	return New(oracle, cfg)
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code)
}

func TestLedger_CreatePost_ReputationGate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	oracle := newStubOracle(map[string]int64{"low": 159, "edge": 160})
	l := newTestLedger(oracle)

	_, err := l.CreatePost(ctx, "low", "Below the gate", "bafy-low")
	assertCode(t, err, models.CodeInsufficientReputation)
	assert.Equal(t, 0, l.PostCount())
	assert.Equal(t, models.AccountProfile{Account: "low"}, l.Profile("low"))

	id, err := l.CreatePost(ctx, "edge", "At the gate", "bafy-edge")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id)

	p, err := l.GetPost(id)
	require.NoError(t, err)
	assert.Equal(t, "edge", p.Author)
	assert.Equal(t, "At the gate", p.Title)
	assert.Equal(t, "bafy-edge", p.ContentRef)
	assert.Equal(t, int64(0), p.WeightedScore)
	assert.True(t, p.Exists)
}

func TestLedger_CreatePost_Validation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tests := []struct {
		name       string
		author     string
		title      string
		contentRef string
	}{
		{"empty author", "", "Title", "ref"},
		{"empty title", "author", "", "ref"},
		{"blank title", "author", "   ", "ref"},
		{"title over 200 code points", "author", strings.Repeat("é", 201), "ref"},
		{"empty content ref", "author", "Title", ""},
		{"blank content ref", "author", "Title", " \t"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newTestLedger(newStubOracle(map[string]int64{"author": 1000}))
			_, err := l.CreatePost(ctx, tt.author, tt.title, tt.contentRef)
			assertCode(t, err, models.CodeInvalidInput)
			assert.Equal(t, 0, l.PostCount())
		})
	}
}

func TestLedger_CreatePost_TitleLimitCountsCodePoints(t *testing.T) {
	t.Parallel()
	l := newTestLedger(newStubOracle(map[string]int64{"author": 1000}))

	_, err := l.CreatePost(context.Background(), "author", strings.Repeat("é", 200), "ref")
	require.NoError(t, err)
}

func TestLedger_InputsAtStorageBounds(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	longest := strings.Repeat("a", models.MaxAccountLength)
	tooLong := strings.Repeat("a", models.MaxAccountLength+1)
	oracle := newStubOracle(map[string]int64{longest: 1000, tooLong: 1000, "b": 300})
	journal := &journalStub{}
	l := newTestLedger(oracle, func(c *Config) { c.Journal = journal })

	id, err := l.CreatePost(ctx, longest, "Title", strings.Repeat("r", models.MaxContentRefLength))
	require.NoError(t, err)

	_, err = l.CreatePost(ctx, "b", "Title", strings.Repeat("r", models.MaxContentRefLength+1))
	assertCode(t, err, models.CodeInvalidInput)
	_, err = l.CreatePost(ctx, tooLong, "Title", "ref")
	assertCode(t, err, models.CodeInvalidInput)
	// 128 characters in 256 bytes passes validation and reaches the gate.
	_, err = l.CreatePost(ctx, strings.Repeat("é", models.MaxAccountLength), "Title", "ref")
	assertCode(t, err, models.CodeInsufficientReputation)

	assertCode(t, l.VotePost(ctx, tooLong, id, true), models.CodeInvalidInput)
	require.NoError(t, l.VotePost(ctx, longest, id, true))

	assertCode(t, l.FollowUser(ctx, tooLong, "b"), models.CodeInvalidInput)
	assertCode(t, l.FollowUser(ctx, "b", tooLong), models.CodeInvalidInput)
	assertCode(t, l.UnfollowUser(ctx, tooLong, "b"), models.CodeInvalidInput)
	require.NoError(t, l.FollowUser(ctx, "b", longest))

	assert.Equal(t, 1, l.PostCount())
	assert.Len(t, journal.committed, 3, "rejected inputs never reach the journal")
}

func TestLedger_New_ClampsTitleLimitToColumn(t *testing.T) {
	t.Parallel()
	l := newTestLedger(newStubOracle(map[string]int64{"a": 1000}), func(c *Config) { c.MaxTitleLength = 5000 })

	_, err := l.CreatePost(context.Background(), "a", strings.Repeat("t", models.MaxTitleLength), "ref")
	require.NoError(t, err)
	_, err = l.CreatePost(context.Background(), "a", strings.Repeat("t", models.MaxTitleLength+1), "ref")
	assertCode(t, err, models.CodeInvalidInput)
}

func TestLedger_CreatePost_OracleUnavailable(t *testing.T) {
	t.Parallel()
	oracle := newStubOracle(map[string]int64{"author": 1000})
	oracle.err = errors.New("connection refused")
	l := newTestLedger(oracle)

	_, err := l.CreatePost(context.Background(), "author", "Title", "ref")
	assertCode(t, err, models.CodeOracleUnavailable)
	assert.Equal(t, 0, l.PostCount())
}

func TestLedger_CreatePost_NilOracle(t *testing.T) {
	t.Parallel()
	l := New(nil, Config{})

	_, err := l.CreatePost(context.Background(), "author", "Title", "ref")
	assertCode(t, err, models.CodeOracleUnavailable)
}

func TestLedger_CreatePost_IDsAndProfile(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l := newTestLedger(newStubOracle(map[string]int64{"a": 200, "b": 300}))

	var ids []uint64
	for i, author := range []string{"a", "b", "a", "a"} {
		id, err := l.CreatePost(ctx, author, "Post", "ref")
		require.NoError(t, err)
		assert.Equal(t, uint64(i+1), id)
		ids = append(ids, id)
	}
	assert.True(t, slices.IsSorted(ids))

	pa := l.Profile("a")
	assert.Equal(t, uint64(3), pa.PostsCount)
	assert.Equal(t, int64(200), pa.Reputation)
	last, err := l.GetPost(4)
	require.NoError(t, err)
	assert.Equal(t, last.CreatedAt, pa.LastPostTime)
	assert.Equal(t, uint64(1), l.Profile("b").PostsCount)

	var byA []uint64
	for p := range l.GetPostsByAuthor("a") {
		byA = append(byA, p.ID)
	}
	assert.Equal(t, []uint64{1, 3, 4}, byA)
	assert.Empty(t, slices.Collect(l.GetPostsByAuthor("nobody")))
}

func TestLedger_GetPostsByAuthor_IsSnapshot(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l := newTestLedger(newStubOracle(map[string]int64{"a": 200}))
	_, err := l.CreatePost(ctx, "a", "First", "ref")
	require.NoError(t, err)

	seq := l.GetPostsByAuthor("a")
	_, err = l.CreatePost(ctx, "a", "Second", "ref")
	require.NoError(t, err)

	assert.Len(t, slices.Collect(seq), 1)
	assert.Len(t, slices.Collect(seq), 1, "sequence is restartable")
}

func TestLedger_GetPost_NotFound(t *testing.T) {
	t.Parallel()
	l := newTestLedger(newStubOracle(nil))

	_, err := l.GetPost(0)
	assertCode(t, err, models.CodeNotFound)
	_, err = l.GetPost(42)
	assertCode(t, err, models.CodeNotFound)
}

func TestLedger_Profile_UnseenAccount(t *testing.T) {
	t.Parallel()
	l := newTestLedger(newStubOracle(nil))
	assert.Equal(t, models.AccountProfile{Account: "ghost"}, l.Profile("ghost"))
}

func TestLedger_GetProfile_RefreshesAndFallsBack(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	writeOracle := newStubOracle(map[string]int64{"a": 200})
	readOracle := newStubOracle(map[string]int64{"a": 900})
	l := newTestLedger(writeOracle, func(c *Config) { c.ProfileOracle = readOracle })

	_, err := l.CreatePost(ctx, "a", "Post", "ref")
	require.NoError(t, err)

	assert.Equal(t, int64(900), l.GetProfile(ctx, "a").Reputation)
	assert.Equal(t, int64(200), l.Profile("a").Reputation, "read-time refresh is not persisted")

	readOracle.err = errors.New("down")
	p := l.GetProfile(ctx, "a")
	assert.Equal(t, int64(200), p.Reputation)
	assert.Equal(t, uint64(1), p.PostsCount)
}

func TestLedger_JournalFailureLeavesStateUntouched(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	journal := &journalStub{}
	l := newTestLedger(newStubOracle(map[string]int64{"a": 500, "b": 100}), func(c *Config) { c.Journal = journal })

	id, err := l.CreatePost(ctx, "a", "Post", "ref")
	require.NoError(t, err)
	require.Len(t, journal.committed, 1)
	assert.Equal(t, OpCreatePost, journal.committed[0].Op)
	assert.Equal(t, uint64(1), journal.committed[0].Seq)

	journal.err = errors.New("disk full")

	_, err = l.CreatePost(ctx, "a", "Another", "ref")
	assertCode(t, err, models.CodeInternal)
	assert.Equal(t, 1, l.PostCount())
	assert.Equal(t, uint64(1), l.Profile("a").PostsCount)

	err = l.VotePost(ctx, "b", id, true)
	assertCode(t, err, models.CodeInternal)
	_, voted := l.GetVote(id, "b")
	assert.False(t, voted)
	p, _ := l.GetPost(id)
	assert.Equal(t, int64(0), p.WeightedScore)

	err = l.FollowUser(ctx, "b", "a")
	assertCode(t, err, models.CodeInternal)
	assert.False(t, l.IsFollowing("b", "a"))

	journal.err = nil
	_, err = l.CreatePost(ctx, "a", "Recovered", "ref")
	require.NoError(t, err)
	assert.Equal(t, 2, l.PostCount(), "failed id is not consumed")
}

func TestLedger_PublishesCommittedEvents(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	pub := &publisherStub{}
	l := newTestLedger(newStubOracle(map[string]int64{"a": 500, "b": 100}), func(c *Config) { c.Publisher = pub })

	id, err := l.CreatePost(ctx, "a", "Post", "ref")
	require.NoError(t, err)
	require.NoError(t, l.VotePost(ctx, "b", id, true))
	require.NoError(t, l.FollowUser(ctx, "b", "a"))
	require.NoError(t, l.FollowUser(ctx, "b", "a"))
	require.NoError(t, l.UnfollowUser(ctx, "b", "a"))
	assertCode(t, l.VotePost(ctx, "b", id, true), models.CodeAlreadyVoted)

	require.Len(t, pub.events, 4)
	types := []string{pub.events[0].Type, pub.events[1].Type, pub.events[2].Type, pub.events[3].Type}
	assert.Equal(t, []string{
		models.EventPostCreated,
		models.EventPostVoted,
		models.EventAccountFollowed,
		models.EventAccountUnfollowed,
	}, types)
	assert.Equal(t, int64(1), pub.events[1].Score)
	assert.Equal(t, "a", pub.events[2].Target)
	for i, evt := range pub.events {
		assert.Equal(t, uint64(i+1), evt.Seq)
		assert.NotEmpty(t, evt.ID)
	}
}

func TestLedger_PublisherErrorDoesNotFailWrite(t *testing.T) {
	t.Parallel()
	pub := &publisherStub{err: errors.New("bus down")}
	l := newTestLedger(newStubOracle(map[string]int64{"a": 500}), func(c *Config) { c.Publisher = pub })

	_, err := l.CreatePost(context.Background(), "a", "Post", "ref")
	require.NoError(t, err)
	assert.Equal(t, 1, l.PostCount())
}

func TestLedger_Restore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	src := newTestLedger(newStubOracle(map[string]int64{"a": 500, "b": 100, "c": 300}))
	id1, err := src.CreatePost(ctx, "a", "One", "ref1")
	require.NoError(t, err)
	_, err = src.CreatePost(ctx, "c", "Two", "ref2")
	require.NoError(t, err)
	require.NoError(t, src.VotePost(ctx, "b", id1, true))
	require.NoError(t, src.VotePost(ctx, "c", id1, false))
	require.NoError(t, src.FollowUser(ctx, "b", "a"))
	require.NoError(t, src.FollowUser(ctx, "b", "c"))

	snap := exportSnapshot(src)

	dst := newTestLedger(newStubOracle(nil))
	require.NoError(t, dst.Restore(snap))

	page, total := dst.GetPosts(0, 10)
	assert.Equal(t, 2, total)
	wantPage, _ := src.GetPosts(0, 10)
	assert.Equal(t, wantPage, page)
	assert.Equal(t, src.GetTrendingPosts(0, 10), dst.GetTrendingPosts(0, 10))
	assert.Equal(t, []string{"a", "c"}, slices.Collect(dst.ListFollowing("b")))
	assert.Equal(t, src.Profile("a"), dst.Profile("a"))

	v, ok := dst.GetVote(id1, "c")
	require.True(t, ok)
	assert.Equal(t, models.DirectionDown, v.Direction)
}

func TestLedger_RestoreRejectsBrokenInvariants(t *testing.T) {
	t.Parallel()
	base := func() Snapshot {
		return Snapshot{
			Posts:    []models.Post{{ID: 1, Author: "a", Title: "t", ContentRef: "r", WeightedScore: 2, Exists: true}},
			Votes:    []models.Vote{{PostID: 1, Voter: "b", Direction: models.DirectionUp, Weight: 2}},
			Profiles: []models.AccountProfile{{Account: "a", PostsCount: 1}},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Snapshot)
	}{
		{"score mismatch", func(s *Snapshot) { s.Posts[0].WeightedScore = 3 }},
		{"gap in ids", func(s *Snapshot) { s.Posts[0].ID = 2 }},
		{"vote on unknown post", func(s *Snapshot) { s.Votes[0].PostID = 9 }},
		{"posts count mismatch", func(s *Snapshot) { s.Profiles[0].PostsCount = 4 }},
		{"self follow", func(s *Snapshot) { s.Follows = []models.FollowEdge{{Follower: "a", Followed: "a"}} }},
		{"author without profile", func(s *Snapshot) { s.Profiles = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newTestLedger(newStubOracle(nil))
			snap := base()
			tt.mutate(&snap)
			assert.Error(t, l.Restore(snap))
			assert.Equal(t, 0, l.PostCount())
		})
	}

	l := newTestLedger(newStubOracle(nil))
	require.NoError(t, l.Restore(base()))
	assert.Equal(t, 1, l.PostCount())
}

func TestLedger_CommitTimesStrictlyIncrease(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	frozen := func() time.Time { return fixedNow }
	src := newTestLedger(newStubOracle(map[string]int64{"a": 500}), func(c *Config) { c.Clock = frozen })

	_, err := src.CreatePost(ctx, "a", "One", "ref")
	require.NoError(t, err)
	require.NoError(t, src.FollowUser(ctx, "a", "z"))
	require.NoError(t, src.FollowUser(ctx, "a", "b"))
	_, err = src.CreatePost(ctx, "a", "Two", "ref")
	require.NoError(t, err)

	p1, _ := src.GetPost(1)
	p2, _ := src.GetPost(2)
	assert.Equal(t, fixedNow, p1.CreatedAt)
	assert.Equal(t, fixedNow.Add(3*time.Microsecond), p2.CreatedAt)

	snap := exportSnapshot(src)
	slices.Reverse(snap.Follows)
	dst := newTestLedger(newStubOracle(map[string]int64{"a": 500}), func(c *Config) { c.Clock = frozen })
	require.NoError(t, dst.Restore(snap))
	assert.Equal(t, []string{"z", "b"}, slices.Collect(dst.ListFollowing("a")))

	id, err := dst.CreatePost(ctx, "a", "Three", "ref")
	require.NoError(t, err)
	p3, _ := dst.GetPost(id)
	assert.True(t, p3.CreatedAt.After(p2.CreatedAt))
}

func TestLedger_Restore_EqualFollowTimesAreDeterministic(t *testing.T) {
	t.Parallel()
	at := fixedNow
	snap := Snapshot{
		Profiles: []models.AccountProfile{{Account: "a"}},
		Follows: []models.FollowEdge{
			{Follower: "a", Followed: "m", CreatedAt: at},
			{Follower: "a", Followed: "c", CreatedAt: at},
			{Follower: "a", Followed: "x", CreatedAt: at.Add(-time.Second)},
		},
	}
	l := newTestLedger(newStubOracle(nil))
	require.NoError(t, l.Restore(snap))
	assert.Equal(t, []string{"x", "c", "m"}, slices.Collect(l.ListFollowing("a")))
}

// exportSnapshot copies the live state the way the journal store would hold it.
func exportSnapshot(l *Ledger) Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var snap Snapshot
	snap.Posts = append(snap.Posts, l.st.posts...)
	for _, v := range l.st.votes {
		snap.Votes = append(snap.Votes, v)
	}
	for _, p := range l.st.profiles {
		snap.Profiles = append(snap.Profiles, p)
	}
	for _, f := range l.st.following {
		snap.Follows = append(snap.Follows, f.order...)
	}
	return snap
}
