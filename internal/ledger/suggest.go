package ledger

// SuggestionWindow is how many of the top trending posts SuggestAccounts
// draws authors from.
const SuggestionWindow = 20

// SuggestAccounts returns up to n distinct authors of the top trending posts,
// in trending order, leaving out viewer and every account viewer follows.
func (l *Ledger) SuggestAccounts(viewer string, n int) []string {
	out := []string{}
	if n <= 0 {
		return out
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	seen := make(map[string]struct{}, n)
	scanned := 0
	l.st.trending.Ascend(func(k trendKey) bool {
		scanned++
		author := l.st.posts[k.id-1].Author
		if _, dup := seen[author]; !dup {
			seen[author] = struct{}{}
			if author != viewer && !l.st.isFollowing(viewer, author) {
				out = append(out, author)
			}
		}
		return len(out) < n && scanned < SuggestionWindow
	})
	return out
}
