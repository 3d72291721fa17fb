// Package featureflags evaluates per-account rollout flags.
package featureflags

import (
	"hash/fnv"
	"strconv"
	"strings"
)

// Known flags.
const (
	// SilentRevote turns a same-direction re-vote into a successful no-op.
	SilentRevote = "silent_revote"
	// FollowedFeed exposes the followed-posts feed route.
	FollowedFeed = "followed_feed"
)

// Manager evaluates feature flags defined in a simple key=value list.
// Example: "silent_revote=off,followed_feed=25%"
type Manager struct {
	flags map[string]string
}

// NewManager creates a feature-flag manager from a comma-separated config string.
func NewManager(raw string) *Manager {
	out := make(map[string]string)

	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		key = normalize(key)
		value = normalize(value)
		if key == "" || value == "" {
			continue
		}
		out[key] = value
	}

	return &Manager{flags: out}
}

// Enabled returns whether a flag is enabled for a given account.
// Supported values:
// - on/true/1
// - off/false/0
// - N% (deterministic account rollout, e.g. 25%)
func (m *Manager) Enabled(name, account string) bool {
	if m == nil {
		return false
	}

	value, ok := m.flags[normalize(name)]
	if !ok {
		return false
	}

	switch value {
	case "on", "true", "1":
		return true
	case "off", "false", "0":
		return false
	}

	pctRaw, isPct := strings.CutSuffix(value, "%")
	if !isPct {
		return false
	}
	pct, err := strconv.Atoi(pctRaw)
	if err != nil || pct <= 0 {
		return false
	}
	if pct >= 100 {
		return true
	}
	if account == "" {
		return false
	}
	return rolloutBucket(name, account) < pct
}

// For binds the manager to one flag, for collaborators that take a per-account predicate.
func (m *Manager) For(name string) func(account string) bool {
	return func(account string) bool {
		return m.Enabled(name, account)
	}
}

// Raw returns a copy of configured flags.
func (m *Manager) Raw() map[string]string {
	out := make(map[string]string, len(m.flags))
	for k, v := range m.flags {
		out[k] = v
	}
	return out
}

// Snapshot returns evaluated flag status for one account.
func (m *Manager) Snapshot(account string) map[string]bool {
	out := make(map[string]bool, len(m.flags))
	for name := range m.flags {
		out[name] = m.Enabled(name, account)
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func rolloutBucket(name, account string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(normalize(name) + ":" + account))
	return int(h.Sum32() % 100)
}
