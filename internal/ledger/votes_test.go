package ledger

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"credledger/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedger_VoteScenario(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	oracle := newStubOracle(map[string]int64{"A": 200, "B": 50, "C": 300})
	l := newTestLedger(oracle)

	p1, err := l.CreatePost(ctx, "A", "Hello", "bafy-hello")
	require.NoError(t, err)
	require.Equal(t, uint64(1), p1)

	score := func() int64 {
		p, err := l.GetPost(p1)
		require.NoError(t, err)
		return p.WeightedScore
	}

	require.NoError(t, l.VotePost(ctx, "B", p1, true))
	assert.Equal(t, int64(1), score())

	require.NoError(t, l.VotePost(ctx, "C", p1, true))
	assert.Equal(t, int64(4), score())

	require.NoError(t, l.VotePost(ctx, "B", p1, false))
	assert.Equal(t, int64(2), score())

	trending := l.GetTrendingPosts(0, 1)
	require.Len(t, trending, 1)
	assert.Equal(t, p1, trending[0].ID)
}

func TestLedger_VotePost_AlreadyVoted(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l := newTestLedger(newStubOracle(map[string]int64{"author": 500, "voter": 300}))
	id, err := l.CreatePost(ctx, "author", "Post", "ref")
	require.NoError(t, err)

	require.NoError(t, l.VotePost(ctx, "voter", id, true))
	before, _ := l.GetPost(id)
	vote, _ := l.GetVote(id, "voter")

	for range 2 {
		assertCode(t, l.VotePost(ctx, "voter", id, true), models.CodeAlreadyVoted)
	}

	after, _ := l.GetPost(id)
	assert.Equal(t, before, after)
	again, _ := l.GetVote(id, "voter")
	assert.Equal(t, vote, again)
}

func TestLedger_VotePost_AlreadyVotedSkipsOracle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	oracle := newStubOracle(map[string]int64{"author": 500, "voter": 300})
	l := newTestLedger(oracle)
	id, err := l.CreatePost(ctx, "author", "Post", "ref")
	require.NoError(t, err)
	require.NoError(t, l.VotePost(ctx, "voter", id, false))

	oracle.err = fmt.Errorf("timeout")
	assertCode(t, l.VotePost(ctx, "voter", id, false), models.CodeAlreadyVoted)
}

func TestLedger_VotePost_SilentRevote(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	pub := &publisherStub{}
	l := newTestLedger(newStubOracle(map[string]int64{"author": 500, "quiet": 300, "loud": 300}), func(c *Config) {
		c.SilentRevote = func(voter string) bool { return voter == "quiet" }
		c.Publisher = pub
	})
	id, err := l.CreatePost(ctx, "author", "Post", "ref")
	require.NoError(t, err)

	require.NoError(t, l.VotePost(ctx, "quiet", id, true))
	require.NoError(t, l.VotePost(ctx, "quiet", id, true))
	require.NoError(t, l.VotePost(ctx, "loud", id, true))
	assertCode(t, l.VotePost(ctx, "loud", id, true), models.CodeAlreadyVoted)

	p, _ := l.GetPost(id)
	assert.Equal(t, int64(6), p.WeightedScore)
	assert.Len(t, pub.events, 3, "silent re-vote publishes nothing")
}

func TestLedger_VotePost_SwitchUsesCurrentWeight(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	oracle := newStubOracle(map[string]int64{"author": 500, "voter": 100, "other": 700})
	l := newTestLedger(oracle)
	id, err := l.CreatePost(ctx, "author", "Post", "ref")
	require.NoError(t, err)

	require.NoError(t, l.VotePost(ctx, "other", id, true))
	require.NoError(t, l.VotePost(ctx, "voter", id, true))
	p, _ := l.GetPost(id)
	require.Equal(t, int64(8), p.WeightedScore)

	oracle.set("voter", 500)
	require.NoError(t, l.VotePost(ctx, "voter", id, false))

	p, _ = l.GetPost(id)
	assert.Equal(t, int64(7-5), p.WeightedScore, "old weight retracted once, new weight applied")

	v, ok := l.GetVote(id, "voter")
	require.True(t, ok)
	assert.Equal(t, models.DirectionDown, v.Direction)
	assert.Equal(t, int64(5), v.Weight)
	assert.Equal(t, int64(500), l.Profile("voter").Reputation)

	// The other voter's weight is fixed at cast time.
	oracle.set("other", 10)
	o, _ := l.GetVote(id, "other")
	assert.Equal(t, int64(7), o.Weight)
}

func TestLedger_VotePost_Errors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	oracle := newStubOracle(map[string]int64{"author": 500, "voter": 100})
	l := newTestLedger(oracle)
	id, err := l.CreatePost(ctx, "author", "Post", "ref")
	require.NoError(t, err)

	assertCode(t, l.VotePost(ctx, "voter", 0, true), models.CodePostNotFound)
	assertCode(t, l.VotePost(ctx, "voter", id+1, true), models.CodePostNotFound)
	assertCode(t, l.VotePost(ctx, " ", id, true), models.CodeInvalidInput)

	oracle.err = fmt.Errorf("connection reset")
	assertCode(t, l.VotePost(ctx, "voter", id, true), models.CodeOracleUnavailable)

	_, ok := l.GetVote(id, "voter")
	assert.False(t, ok)
	p, _ := l.GetPost(id)
	assert.Equal(t, int64(0), p.WeightedScore)
}

func TestLedger_VotePost_AuthorMayVoteOwnPost(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l := newTestLedger(newStubOracle(map[string]int64{"author": 500}))
	id, err := l.CreatePost(ctx, "author", "Post", "ref")
	require.NoError(t, err)

	require.NoError(t, l.VotePost(ctx, "author", id, true))
	p, _ := l.GetPost(id)
	assert.Equal(t, int64(5), p.WeightedScore)
}

// Random vote streams never break the score-equals-sum-of-votes invariant.
func TestLedger_ScoreMatchesVotesUnderRandomStreams(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	for seed := int64(1); seed <= 5; seed++ {
		t.Run(fmt.Sprintf("seed %d", seed), func(t *testing.T) {
			rng := rand.New(rand.NewSource(seed))
			voters := []string{"v0", "v1", "v2", "v3", "v4", "v5"}
			oracle := newStubOracle(map[string]int64{"author": 1000})
			l := newTestLedger(oracle)

			for range 4 {
				_, err := l.CreatePost(ctx, "author", "Post", "ref")
				require.NoError(t, err)
			}

			for step := 0; step < 300; step++ {
				voter := voters[rng.Intn(len(voters))]
				oracle.set(voter, rng.Int63n(1500))
				postID := uint64(rng.Intn(5)) // 0 is never a post id
				err := l.VotePost(ctx, voter, postID, rng.Intn(2) == 0)
				if err != nil {
					code := models.ErrorCode(err)
					require.Contains(t, []string{models.CodeAlreadyVoted, models.CodePostNotFound}, code)
				}
				assertScoresMatchVotes(t, l)
			}
		})
	}
}

func TestLedger_ConcurrentVotes(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	reps := map[string]int64{"author": 1000}
	for i := range 50 {
		reps[fmt.Sprintf("voter-%d", i)] = int64(i * 37)
	}
	l := newTestLedger(newStubOracle(reps))
	id, err := l.CreatePost(ctx, "author", "Post", "ref")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			voter := fmt.Sprintf("voter-%d", i)
			_ = l.VotePost(ctx, voter, id, i%2 == 0)
			_ = l.VotePost(ctx, voter, id, i%3 == 0)
			_, _ = l.GetPosts(0, 10)
			_ = l.GetTrendingPosts(0, 10)
		}(i)
	}
	wg.Wait()

	assertScoresMatchVotes(t, l)
}

func assertScoresMatchVotes(t *testing.T, l *Ledger) {
	t.Helper()
	l.mu.RLock()
	defer l.mu.RUnlock()

	sums := make(map[uint64]int64)
	for k, v := range l.st.votes {
		require.Equal(t, k.postID, v.PostID)
		require.Positive(t, v.Weight)
		sums[v.PostID] += v.SignedWeight()
	}
	for _, p := range l.st.posts {
		require.Equal(t, sums[p.ID], p.WeightedScore, "post %d", p.ID)
	}
	require.Equal(t, len(l.st.posts), l.st.trending.Len())
}
