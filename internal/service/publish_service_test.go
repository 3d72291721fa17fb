package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"credledger/internal/contentstore"
	"credledger/internal/ledger"
	"credledger/internal/models"
	"credledger/internal/oracle"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storeStub is a stub for contentstore.Store.
type storeStub struct {
	putFn func(context.Context, json.RawMessage) (string, error)
	getFn func(context.Context, string) (json.RawMessage, error)
}

func (s *storeStub) Put(ctx context.Context, doc json.RawMessage) (string, error) {
	return s.putFn(ctx, doc)
}
func (s *storeStub) Get(ctx context.Context, ref string) (json.RawMessage, error) {
	return s.getFn(ctx, ref)
}

func newPublishFixture(t *testing.T, reps map[string]int64) (*PublishService, *ledger.Ledger, *contentstore.Memory, *oracle.Static) {
	t.Helper()
	o := oracle.NewStatic(reps)
	l := ledger.New(o, ledger.Config{})
	store := contentstore.NewMemory()
	svc := NewPublishService(l, store, o)
	svc.clock = func() time.Time { return time.Date(2025, 6, 1, 12, 30, 0, 0, time.FixedZone("X", 3600)) }
	return svc, l, store, o
}

func TestParseTags(t *testing.T) {
	assert.Equal(t, []string{"news", "crypto", "web3"}, ParseTags(" news, crypto,,web3 , "))
	assert.Empty(t, ParseTags(""))
}

func TestPublishService_Publish(t *testing.T) {
	ctx := context.Background()
	svc, l, store, _ := newPublishFixture(t, map[string]int64{"alice": 200})

	res, err := svc.Publish(ctx, "alice", PublishInput{
		Name:        "  Verifiable Newsrooms  ",
		Description: "body",
		Tags:        []string{"news", " ", "web3 "},
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), res.PostID)
	assert.Equal(t, 1, store.Len())

	post, err := l.GetPost(res.PostID)
	require.NoError(t, err)
	assert.Equal(t, "Verifiable Newsrooms", post.Title)
	assert.Equal(t, res.ContentRef, post.ContentRef)

	gotPost, doc, err := svc.GetPostContent(ctx, res.PostID)
	require.NoError(t, err)
	assert.Equal(t, post, gotPost)
	assert.Equal(t, models.ContentDocument{
		Name:        "Verifiable Newsrooms",
		Description: "body",
		Tags:        []string{"news", "web3"},
		PostedBy:    "alice",
		Timestamp:   "2025-06-01T11:30:00.000Z",
	}, doc)
}

func TestPublishService_Publish_BelowGatePinsNothing(t *testing.T) {
	ctx := context.Background()
	svc, l, store, _ := newPublishFixture(t, map[string]int64{"bob": 159})

	_, err := svc.Publish(ctx, "bob", PublishInput{Name: "Hello"})
	assert.True(t, models.HasCode(err, models.CodeInsufficientReputation))
	assert.Equal(t, 0, store.Len())
	assert.Equal(t, 0, l.PostCount())
}

func TestPublishService_Publish_OracleDown(t *testing.T) {
	ctx := context.Background()
	svc, _, store, o := newPublishFixture(t, map[string]int64{"alice": 500})
	o.Fail(errors.New("dial tcp: refused"))

	_, err := svc.Publish(ctx, "alice", PublishInput{Name: "Hello"})
	assert.True(t, models.HasCode(err, models.CodeOracleUnavailable))
	assert.Equal(t, 0, store.Len())
}

func TestPublishService_Publish_RejectedPostIsUnpinned(t *testing.T) {
	ctx := context.Background()
	svc, l, store, _ := newPublishFixture(t, map[string]int64{"alice": 500})

	_, err := svc.Publish(ctx, "alice", PublishInput{Name: strings.Repeat("x", ledger.DefaultMaxTitleLength+1)})
	assert.True(t, models.HasCode(err, models.CodeInvalidInput))
	assert.Equal(t, 0, store.Len(), "document of a rejected post is released")
	assert.Equal(t, 0, l.PostCount())
}

func TestPublishService_Publish_Validation(t *testing.T) {
	ctx := context.Background()
	svc, _, store, _ := newPublishFixture(t, map[string]int64{"alice": 500})

	_, err := svc.Publish(ctx, "alice", PublishInput{Name: "   "})
	assert.True(t, models.HasCode(err, models.CodeInvalidInput))
	_, err = svc.Publish(ctx, "", PublishInput{Name: "Hello"})
	assert.True(t, models.HasCode(err, models.CodeInvalidInput))
	assert.Equal(t, 0, store.Len())
}

func TestPublishService_StoreFailures(t *testing.T) {
	ctx := context.Background()
	o := oracle.NewStatic(map[string]int64{"alice": 500})
	l := ledger.New(o, ledger.Config{})
	stub := &storeStub{
		putFn: func(context.Context, json.RawMessage) (string, error) { return "", errors.New("pinata down") },
		getFn: func(context.Context, string) (json.RawMessage, error) { return nil, contentstore.ErrNotFound },
	}
	svc := NewPublishService(l, stub, o)

	_, err := svc.Publish(ctx, "alice", PublishInput{Name: "Hello"})
	assert.True(t, models.HasCode(err, models.CodeContentUnavailable))
	assert.Equal(t, 0, l.PostCount())

	id, err := l.CreatePost(ctx, "alice", "Direct", "ref-gone")
	require.NoError(t, err)
	_, _, err = svc.GetPostContent(ctx, id)
	assert.True(t, models.HasCode(err, models.CodeNotFound))

	stub.getFn = func(context.Context, string) (json.RawMessage, error) { return json.RawMessage(`[1,2]`), nil }
	_, _, err = svc.GetPostContent(ctx, id)
	assert.True(t, models.HasCode(err, models.CodeContentUnavailable))

	_, _, err = svc.GetPostContent(ctx, 99)
	assert.True(t, models.HasCode(err, models.CodePostNotFound))
}
