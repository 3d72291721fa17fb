package oracle

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"credledger/internal/models"
)

// Static is an in-memory oracle with fixed answers. Unknown accounts have
// reputation 0 and are not activated.
type Static struct {
	mu        sync.RWMutex
	reps      map[string]int64
	activated map[string]bool
	err       error
}

// NewStatic returns a static oracle seeded with reps.
func NewStatic(reps map[string]int64) *Static {
	s := &Static{
		reps:      make(map[string]int64, len(reps)),
		activated: make(map[string]bool),
	}
	for k, v := range reps {
		s.reps[k] = v
	}
	return s
}

// ParseStatic parses "alice=200,bob=50" into a static oracle.
func ParseStatic(raw string) (*Static, error) {
	reps := make(map[string]int64)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		account, value, ok := strings.Cut(part, "=")
		account = strings.TrimSpace(account)
		if !ok || account == "" {
			return nil, fmt.Errorf("invalid static oracle entry %q", part)
		}
		rep, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid reputation for %s: %w", account, err)
		}
		reps[account] = rep
	}
	return NewStatic(reps), nil
}

// Set changes an account's reputation.
func (s *Static) Set(account string, rep int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reps[account] = rep
}

// Fail makes every subsequent call fail with err; nil restores service.
func (s *Static) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *Static) ReputationOf(_ context.Context, account string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return 0, models.NewOracleUnavailableError(s.err)
	}
	return s.reps[account], nil
}

func (s *Static) IsAccountActivated(_ context.Context, account string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return false, models.NewOracleUnavailableError(s.err)
	}
	return s.activated[account], nil
}

func (s *Static) ActivateAccount(_ context.Context, account string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return models.NewOracleUnavailableError(s.err)
	}
	s.activated[account] = true
	return nil
}
