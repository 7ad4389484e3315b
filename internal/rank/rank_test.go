package rank

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTitlePointOnlyFallback(t *testing.T) {
	r := NewResolver(nil)

	tests := []struct {
		name   string
		points int
		want   string
	}{
		{"zero points", 0, Servant},
		{"just below outer", 9, Servant},
		{"outer threshold", 10, OuterDisciple},
		{"mid outer", 200, OuterDisciple},
		{"inner threshold", 350, InnerDisciple},
		{"above core without role stays inner", 750, InnerDisciple},
		{"far above core without role stays inner", 5000, InnerDisciple},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Title(tt.points, nil))
		})
	}
}

func TestTitleRoleGatedTiers(t *testing.T) {
	cfg := &Config{
		Special: map[int64]string{99: "Heavenly Demon"},
		Tiers: []Tier{
			{Title: CoreDisciple, MinPoints: CoreThreshold, RoleIDs: []int64{3}},
			{Title: InnerDisciple, MinPoints: InnerThreshold, RoleIDs: []int64{2}},
			{Title: OuterDisciple, MinPoints: OuterThreshold, RoleIDs: []int64{1}},
		},
	}
	r := NewResolver(cfg)

	// Role plus points unlocks the tier.
	assert.Equal(t, CoreDisciple, r.Title(800, []int64{3}))

	// Role without the points does not.
	assert.Equal(t, InnerDisciple, r.Title(400, []int64{3, 2}))

	// Special role overrides points entirely.
	assert.Equal(t, "Heavenly Demon", r.Title(0, []int64{99}))
	assert.Equal(t, "Heavenly Demon", r.Title(800, []int64{99, 3}))
}

func TestRequirement(t *testing.T) {
	cfg := &Config{
		Special: map[int64]string{99: "Demon God"},
		Tiers: []Tier{
			{Title: CoreDisciple, MinPoints: CoreThreshold, RoleIDs: []int64{3}},
		},
	}
	r := NewResolver(cfg)

	title, min, ok := r.Requirement(3)
	require.True(t, ok)
	assert.Equal(t, CoreDisciple, title)
	assert.Equal(t, CoreThreshold, min)

	title, min, ok = r.Requirement(99)
	require.True(t, ok)
	assert.Equal(t, "Demon God", title)
	assert.Zero(t, min)

	_, _, ok = r.Requirement(12345)
	assert.False(t, ok)
}

func TestNext(t *testing.T) {
	r := NewResolver(nil)

	current, threshold, next, ok := r.Next(0, nil)
	require.True(t, ok)
	assert.Equal(t, Servant, current)
	assert.Equal(t, OuterThreshold, threshold)
	assert.Equal(t, OuterDisciple, next)

	current, threshold, next, ok = r.Next(100, nil)
	require.True(t, ok)
	assert.Equal(t, OuterDisciple, current)
	assert.Equal(t, InnerThreshold, threshold)
	assert.Equal(t, InnerDisciple, next)

	current, threshold, next, ok = r.Next(400, nil)
	require.True(t, ok)
	assert.Equal(t, InnerDisciple, current)
	assert.Equal(t, CoreThreshold, threshold)
	assert.Equal(t, CoreDisciple, next)

	// Core Disciple is the end of the point ladder.
	cfg := DefaultConfig()
	coreRole := cfg.Tiers[0].RoleIDs[0]
	current, _, _, ok = r.Next(1000, []int64{coreRole})
	assert.Equal(t, CoreDisciple, current)
	assert.False(t, ok)

	// Special ranks have no progression.
	var specialRole int64
	for id := range cfg.Special {
		specialRole = id
		break
	}
	_, _, _, ok = r.Next(0, []int64{specialRole})
	assert.False(t, ok)
}

func TestStatusMessage(t *testing.T) {
	r := NewResolver(nil)

	assert.Contains(t, r.StatusMessage(0, nil), "Begin your cultivation journey")
	assert.Contains(t, r.StatusMessage(150, nil), "growing")

	cfg := DefaultConfig()
	coreRole := cfg.Tiers[0].RoleIDs[0]
	assert.Contains(t, r.StatusMessage(2000, []int64{coreRole}), "distinguished Core Disciple")

	var specialRole int64
	for id, title := range cfg.Special {
		if title == "Heavenly Demon" {
			specialRole = id
		}
	}
	assert.Contains(t, r.StatusMessage(0, []int64{specialRole}), "Heavenly Demon")
}

func TestDefaultConfigLadderShape(t *testing.T) {
	cfg := DefaultConfig()
	require.Len(t, cfg.Tiers, 3)

	// Tiers must be ordered highest first for top-down resolution.
	assert.Equal(t, CoreDisciple, cfg.Tiers[0].Title)
	assert.Equal(t, InnerDisciple, cfg.Tiers[1].Title)
	assert.Equal(t, OuterDisciple, cfg.Tiers[2].Title)
	assert.Greater(t, cfg.Tiers[0].MinPoints, cfg.Tiers[1].MinPoints)
	assert.Greater(t, cfg.Tiers[1].MinPoints, cfg.Tiers[2].MinPoints)
}
