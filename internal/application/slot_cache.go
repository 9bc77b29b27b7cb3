package application

import (
	"sync"
	"time"
)

// slotKey identifies one open-slot listing.
type slotKey struct {
	speakerID string
	from      string
	days      int
}

type cachedSlots struct {
	slots     []Slot
	expiresAt time.Time
}

// slotCache memoises ListSlots results. Bookings, cancellations and
// availability edits drop a speaker's entries through InvalidateSpeaker.
type slotCache struct {
	mu       sync.Mutex
	now      func() time.Time
	ttl      time.Duration
	capacity int
	entries  map[slotKey]cachedSlots
}

func newSlotCache(ttl time.Duration, capacity int, now func() time.Time) *slotCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if capacity <= 0 {
		capacity = 256
	}
	if now == nil {
		now = time.Now
	}
	return &slotCache{now: now, ttl: ttl, capacity: capacity, entries: make(map[slotKey]cachedSlots)}
}

func (c *slotCache) Get(key slotKey) ([]Slot, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !c.now().Before(entry.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return append([]Slot(nil), entry.slots...), true
}

// Put stores slots under key, evicting the entry closest to expiry when full.
func (c *slotCache) Put(key slotKey, slots []Slot) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.capacity {
		var victim slotKey
		var soonest time.Time
		for k, entry := range c.entries {
			if !now.Before(entry.expiresAt) {
				delete(c.entries, k)
				continue
			}
			if soonest.IsZero() || entry.expiresAt.Before(soonest) {
				victim, soonest = k, entry.expiresAt
			}
		}
		if len(c.entries) >= c.capacity {
			delete(c.entries, victim)
		}
	}
	c.entries[key] = cachedSlots{slots: append([]Slot(nil), slots...), expiresAt: now.Add(c.ttl)}
}

func (c *slotCache) InvalidateSpeaker(speakerID string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if key.speakerID == speakerID {
			delete(c.entries, key)
		}
	}
}
