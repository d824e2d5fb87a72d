package moderation

import (
	"sync"

	"github.com/roelfdiedericks/wabot/internal/store"
	"github.com/roelfdiedericks/wabot/internal/types"
)

type counterKey struct {
	feature, chat, user string
}

// Counters holds warn counts per (feature, chat, user). They live only in
// memory. The zero value is not usable; call NewCounters.
type Counters struct {
	mu sync.Mutex
	m  map[counterKey]int
}

// NewCounters creates an empty counter set.
func NewCounters() *Counters {
	return &Counters{m: make(map[counterKey]int)}
}

func key(feature, chat, user string) counterKey {
	return counterKey{feature, chat, types.Normalize(user)}
}

// Incr adds one and returns the new count.
func (c *Counters) Incr(feature, chat, user string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := key(feature, chat, user)
	c.m[k]++
	return c.m[k]
}

// Get returns the current count.
func (c *Counters) Get(feature, chat, user string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.m[key(feature, chat, user)]
}

// Reset zeroes one counter.
func (c *Counters) Reset(feature, chat, user string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, key(feature, chat, user))
}

// ResetUser zeroes every feature's counter for user in chat and returns how
// many were cleared.
func (c *Counters) ResetUser(chat, user string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	user = types.Normalize(user)
	n := 0
	for k := range c.m {
		if k.chat == chat && k.user == user {
			delete(c.m, k)
			n++
		}
	}
	return n
}

// UserCounts returns the non-zero counts for user in chat, by feature.
func (c *Counters) UserCounts(chat, user string) map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	user = types.Normalize(user)
	out := make(map[string]int)
	for k, n := range c.m {
		if k.chat == chat && k.user == user && n > 0 {
			out[k.feature] = n
		}
	}
	return out
}

// Verdict is what to do about one violation.
type Verdict struct {
	Delete bool
	Warn   bool // send a warning showing Count/Limit
	Kick   bool
	Count  int
	Limit  int
}

// Apply records a violation of feature by user and resolves the configured
// action. With "warn", reaching the limit turns the verdict into a kick and
// resets the counter, so the kick fires once per limit violations.
func (c *Counters) Apply(feature, chat, user string, cfg store.FeatureConfig) Verdict {
	limit := cfg.EffectiveLimit()
	switch cfg.EffectiveAction() {
	case store.ActionKick:
		return Verdict{Delete: true, Kick: true, Limit: limit}
	case store.ActionWarn:
		n := c.Incr(feature, chat, user)
		if n >= limit {
			c.Reset(feature, chat, user)
			return Verdict{Delete: true, Kick: true, Count: n, Limit: limit}
		}
		return Verdict{Delete: true, Warn: true, Count: n, Limit: limit}
	default:
		return Verdict{Delete: true, Limit: limit}
	}
}
