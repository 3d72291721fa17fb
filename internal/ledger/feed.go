package ledger

import (
	"container/heap"

	"credledger/internal/models"
)

// Page bounds. A non-positive limit yields an empty page.
func clampPage(offset, limit int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if limit < 0 {
		limit = 0
	}
	return offset, limit
}

// GetPosts returns posts newest first, [offset, offset+limit) of that order,
// and the number of posts in the ledger.
func (l *Ledger) GetPosts(offset, limit int) ([]models.Post, int) {
	offset, limit = clampPage(offset, limit)

	l.mu.RLock()
	defer l.mu.RUnlock()

	total := len(l.st.posts)
	if offset >= total || limit == 0 {
		return []models.Post{}, total
	}
	end := min(offset+limit, total)

	page := make([]models.Post, 0, end-offset)
	for i := offset; i < end; i++ {
		page = append(page, l.st.posts[total-1-i])
	}
	return page, total
}

// GetTrendingPosts returns posts ordered by weighted score, ties broken by
// the most recent id.
func (l *Ledger) GetTrendingPosts(offset, limit int) []models.Post {
	offset, limit = clampPage(offset, limit)

	l.mu.RLock()
	defer l.mu.RUnlock()

	page := make([]models.Post, 0, min(limit, max(l.st.trending.Len()-offset, 0)))
	if limit == 0 {
		return page
	}
	skipped := 0
	l.st.trending.Ascend(func(k trendKey) bool {
		if skipped < offset {
			skipped++
			return true
		}
		page = append(page, l.st.posts[k.id-1])
		return len(page) < limit
	})
	return page
}

// GetFollowedPosts returns posts by the accounts follower follows, newest
// first, and the number of such posts. Following nobody yields an empty page.
func (l *Ledger) GetFollowedPosts(follower string, offset, limit int) ([]models.Post, int) {
	offset, limit = clampPage(offset, limit)

	l.mu.RLock()
	defer l.mu.RUnlock()

	f, ok := l.st.following[follower]
	if !ok || len(f.order) == 0 {
		return []models.Post{}, 0
	}

	h := make(authorCursors, 0, len(f.order))
	total := 0
	for _, e := range f.order {
		ids := l.st.byAuthor[e.Followed]
		total += len(ids)
		if len(ids) > 0 {
			h = append(h, authorCursor{ids: ids, pos: len(ids) - 1})
		}
	}
	if offset >= total || limit == 0 {
		return []models.Post{}, total
	}

	heap.Init(&h)
	page := make([]models.Post, 0, min(limit, total-offset))
	for i := 0; h.Len() > 0 && len(page) < limit; i++ {
		id := h[0].head()
		if h[0].pos == 0 {
			heap.Pop(&h)
		} else {
			h[0].pos--
			heap.Fix(&h, 0)
		}
		if i >= offset {
			page = append(page, l.st.posts[id-1])
		}
	}
	return page, total
}

// authorCursor walks one author's ascending id list from the end.
type authorCursor struct {
	ids []uint64
	pos int
}

func (c authorCursor) head() uint64 { return c.ids[c.pos] }

// authorCursors is a max-heap on the cursors' current id.
type authorCursors []authorCursor

func (h authorCursors) Len() int           { return len(h) }
func (h authorCursors) Less(i, j int) bool { return h[i].head() > h[j].head() }
func (h authorCursors) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *authorCursors) Push(x any) { *h = append(*h, x.(authorCursor)) }

func (h *authorCursors) Pop() any {
	old := *h
	n := len(old)
	c := old[n-1]
	*h = old[:n-1]
	return c
}
