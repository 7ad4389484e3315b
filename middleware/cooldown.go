package middleware

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type cooldownKey struct {
	guildID int64
	userID  int64
}

type cooldownEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// CommandCooldown throttles slash commands per (guild, member) so a single
// member cannot spam expensive leaderboard queries.
type CommandCooldown struct {
	mu      sync.Mutex
	entries map[cooldownKey]*cooldownEntry
	every   time.Duration
	burst   int
}

// NewCommandCooldown allows burst immediate commands, then one per every.
func NewCommandCooldown(every time.Duration, burst int) *CommandCooldown {
	return &CommandCooldown{
		entries: make(map[cooldownKey]*cooldownEntry),
		every:   every,
		burst:   burst,
	}
}

// Allow reports whether the member may run a command now.
func (c *CommandCooldown) Allow(guildID, userID int64) bool {
	key := cooldownKey{guildID, userID}

	c.mu.Lock()
	entry, ok := c.entries[key]
	if !ok {
		entry = &cooldownEntry{limiter: rate.NewLimiter(rate.Every(c.every), c.burst)}
		c.entries[key] = entry
	}
	entry.lastSeen = time.Now()
	c.mu.Unlock()

	return entry.limiter.Allow()
}

// RetryAfter describes the cooldown for user-facing error messages.
func (c *CommandCooldown) RetryAfter() string {
	return fmt.Sprintf("%.0f seconds", c.every.Seconds())
}

// Cleanup evicts entries idle longer than maxIdle and reports how many were
// removed. Call it periodically from the janitor loop.
func (c *CommandCooldown) Cleanup(maxIdle time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, entry := range c.entries {
		if time.Since(entry.lastSeen) > maxIdle {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}
