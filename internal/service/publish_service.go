// Package service composes the ledger with its external collaborators.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"credledger/internal/contentstore"
	"credledger/internal/ledger"
	"credledger/internal/models"
	"credledger/internal/observability"
)

// timestampLayout matches the ISO form used by existing content documents.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// PostLedger is the part of the ledger the publishing flow needs.
type PostLedger interface {
	PostThreshold() int64
	CreatePost(ctx context.Context, author, title, contentRef string) (uint64, error)
	GetPost(id uint64) (models.Post, error)
}

type PublishService struct {
	ledger     PostLedger
	store      contentstore.Store
	reputation ledger.Reputation
	clock      func() time.Time
}

// PublishInput is the author-supplied part of a content document.
type PublishInput struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

type PublishResult struct {
	PostID     uint64 `json:"post_id"`
	ContentRef string `json:"content_ref"`
}

func NewPublishService(l PostLedger, store contentstore.Store, reputation ledger.Reputation) *PublishService {
	return &PublishService{
		ledger:     l,
		store:      store,
		reputation: reputation,
		clock:      time.Now,
	}
}

// ParseTags splits a comma separated tag list, dropping blanks.
func ParseTags(raw string) []string {
	return NormalizeTags(strings.Split(raw, ","))
}

// NormalizeTags trims tags and drops blanks.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			out = append(out, tag)
		}
	}
	return out
}

// Publish stores the content document and records the post. The reputation
// gate is checked before anything is pinned; the ledger re-checks it at commit.
func (s *PublishService) Publish(ctx context.Context, author string, in PublishInput) (PublishResult, error) {
	name := strings.TrimSpace(in.Name)
	if strings.TrimSpace(author) == "" {
		return PublishResult{}, models.NewInvalidInputError("Author is required")
	}
	if name == "" {
		return PublishResult{}, models.NewInvalidInputError("Name is required")
	}

	if err := s.checkReputation(ctx, author); err != nil {
		return PublishResult{}, err
	}

	doc := models.ContentDocument{
		Name:        name,
		Description: in.Description,
		Tags:        NormalizeTags(in.Tags),
		PostedBy:    author,
		Timestamp:   s.clock().UTC().Format(timestampLayout),
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return PublishResult{}, models.NewInternalError(err)
	}

	ref, err := s.store.Put(ctx, raw)
	if err != nil {
		return PublishResult{}, models.NewContentUnavailableError(err)
	}

	id, err := s.ledger.CreatePost(ctx, author, name, ref)
	if err != nil {
		s.release(ctx, ref)
		return PublishResult{}, err
	}
	return PublishResult{PostID: id, ContentRef: ref}, nil
}

func (s *PublishService) checkReputation(ctx context.Context, author string) error {
	if s.reputation == nil {
		return nil
	}
	rep, err := s.reputation.ReputationOf(ctx, author)
	if err != nil {
		if models.HasCode(err, models.CodeOracleUnavailable) {
			return err
		}
		return models.NewOracleUnavailableError(err)
	}
	if threshold := s.ledger.PostThreshold(); rep < threshold {
		return models.NewInsufficientReputationError(author, rep, threshold)
	}
	return nil
}

// release unpins a document whose post was rejected. Failures only leave an
// orphan document behind.
func (s *PublishService) release(ctx context.Context, ref string) {
	u, ok := s.store.(contentstore.Unpinner)
	if !ok {
		return
	}
	if err := u.Unpin(context.WithoutCancel(ctx), ref); err != nil {
		observability.Logger.WarnContext(ctx, "failed to unpin orphaned content",
			"content_ref", ref, "error", err)
	}
}

// GetPostContent returns a post together with its content document.
func (s *PublishService) GetPostContent(ctx context.Context, id uint64) (models.Post, models.ContentDocument, error) {
	post, err := s.ledger.GetPost(id)
	if err != nil {
		return models.Post{}, models.ContentDocument{}, err
	}

	raw, err := s.store.Get(ctx, post.ContentRef)
	if err != nil {
		if errors.Is(err, contentstore.ErrNotFound) {
			return post, models.ContentDocument{}, models.NewNotFoundError("Content", post.ContentRef)
		}
		return post, models.ContentDocument{}, models.NewContentUnavailableError(err)
	}

	var doc models.ContentDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return post, models.ContentDocument{}, models.NewContentUnavailableError(err)
	}
	return post, doc, nil
}
