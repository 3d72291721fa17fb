package featureflags

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnabled_BooleanValues(t *testing.T) {
	m := NewManager("a=on,b=off,c=true,d=false,e=1,f=0")

	for _, name := range []string{"a", "c", "e"} {
		assert.True(t, m.Enabled(name, "alice"), name)
	}
	for _, name := range []string{"b", "d", "f", "missing"} {
		assert.False(t, m.Enabled(name, "alice"), name)
	}
}

func TestEnabled_PercentageValues(t *testing.T) {
	m := NewManager("always=100%,never=0%,canary=25%,broken=abc%")

	assert.True(t, m.Enabled("always", "alice"))
	assert.False(t, m.Enabled("never", "alice"))
	assert.False(t, m.Enabled("broken", "alice"))

	first := m.Enabled("canary", "alice")
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, m.Enabled("canary", "alice"), "rollout evaluation must be deterministic per account")
	}
	assert.False(t, m.Enabled("canary", ""), "percentage rollout requires an account")

	enabled := 0
	for i := 0; i < 1000; i++ {
		if m.Enabled("canary", fmt.Sprintf("acct-%d", i)) {
			enabled++
		}
	}
	assert.InDelta(t, 250, enabled, 80)
}

func TestParseAndSnapshot(t *testing.T) {
	m := NewManager(" bad ,X=on, y = 20% ,z=off,=on,w= ")

	raw := m.Raw()
	assert.Equal(t, map[string]string{"x": "on", "y": "20%", "z": "off"}, raw)

	snap := m.Snapshot("alice")
	assert.Len(t, snap, 3)
	assert.True(t, snap["x"])
	assert.False(t, snap["z"])
}

func TestFor(t *testing.T) {
	m := NewManager(SilentRevote + "=on")
	assert.True(t, m.For(SilentRevote)("anyone"))
	assert.False(t, m.For(FollowedFeed)("anyone"))

	var nilManager *Manager
	assert.False(t, nilManager.For(SilentRevote)("anyone"))
}
