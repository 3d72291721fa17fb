package ledger

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"time"
	"unicode/utf8"

	"credledger/internal/models"
)

// CreatePost appends a post authored by author. The author must clear the
// reputation gate at the time of the call.
func (l *Ledger) CreatePost(ctx context.Context, author, title, contentRef string) (uint64, error) {
	author = strings.TrimSpace(author)
	title = strings.TrimSpace(title)
	contentRef = strings.TrimSpace(contentRef)

	if err := l.validatePostInput(author, title, contentRef); err != nil {
		l.reject(ctx, OpCreatePost, err)
		return 0, err
	}

	rep, err := l.RefreshReputation(ctx, author)
	if err != nil {
		l.reject(ctx, OpCreatePost, err)
		return 0, err
	}
	if rep < l.cfg.PostThreshold {
		err := models.NewInsufficientReputationError(author, rep, l.cfg.PostThreshold)
		l.reject(ctx, OpCreatePost, err)
		return 0, err
	}

	cs, err := l.transition(ctx, OpCreatePost, func(st *state, now time.Time) (*ChangeSet, error) {
		post := models.Post{
			ID:         st.nextPostID(),
			Author:     author,
			Title:      title,
			ContentRef: contentRef,
			CreatedAt:  now,
			Exists:     true,
		}
		profile := recordPost(st.profile(author), rep, post)
		return &ChangeSet{NewPost: &post, Profile: &profile}, nil
	})
	if err != nil {
		return 0, err
	}
	return cs.NewPost.ID, nil
}

func (l *Ledger) validatePostInput(author, title, contentRef string) error {
	if err := validateAccount("Author", author); err != nil {
		return err
	}
	if title == "" {
		return models.NewInvalidInputError("Title is required")
	}
	if n := utf8.RuneCountInString(title); n > l.cfg.MaxTitleLength {
		return models.NewInvalidInputError(fmt.Sprintf("Title too long (%d > %d characters)", n, l.cfg.MaxTitleLength))
	}
	if contentRef == "" {
		return models.NewInvalidInputError("Content reference is required")
	}
	if n := utf8.RuneCountInString(contentRef); n > models.MaxContentRefLength {
		return models.NewInvalidInputError(fmt.Sprintf("Content reference too long (%d > %d characters)", n, models.MaxContentRefLength))
	}
	return nil
}

// validateAccount rejects empty account ids and ids the journal cannot store.
func validateAccount(field, account string) error {
	if account == "" {
		return models.NewInvalidInputError(field + " is required")
	}
	if n := utf8.RuneCountInString(account); n > models.MaxAccountLength {
		return models.NewInvalidInputError(fmt.Sprintf("%s too long (%d > %d characters)", field, n, models.MaxAccountLength))
	}
	return nil
}

// GetPost returns the post with the given id.
func (l *Ledger) GetPost(id uint64) (models.Post, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	p, ok := l.st.post(id)
	if !ok {
		return models.Post{}, models.NewNotFoundError("Post", id)
	}
	return p, nil
}

// GetPostsByAuthor returns the author's posts in creation order. The sequence
// is a snapshot taken at call time and can be ranged over repeatedly.
func (l *Ledger) GetPostsByAuthor(account string) iter.Seq[models.Post] {
	l.mu.RLock()
	ids := l.st.byAuthor[account]
	snapshot := make([]models.Post, 0, len(ids))
	for _, id := range ids {
		snapshot = append(snapshot, l.st.posts[id-1])
	}
	l.mu.RUnlock()

	return func(yield func(models.Post) bool) {
		for _, p := range snapshot {
			if !yield(p) {
				return
			}
		}
	}
}

// PostCount returns the number of posts in the ledger.
func (l *Ledger) PostCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.st.posts)
}
