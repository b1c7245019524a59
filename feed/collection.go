package feed

import (
	"sort"
	"sync"

	"github.com/nexocrm/leadview"
)

// Collection is the displayed lead set for one fetch generation. Merges
// are deduplicated by lead id, so overlapping pages and repeated
// deliveries are harmless.
type Collection struct {
	mu   sync.RWMutex
	byID map[string]leadview.Lead
}

func NewCollection() *Collection {
	return &Collection{
		byID: make(map[string]leadview.Lead),
	}
}

// Merge adds leads whose id is not already present and reports how many
// were added. Existing entries are never overwritten: a refetch that
// lands mid-load must not clobber newer data with a stale page.
func (c *Collection) Merge(leads []leadview.Lead) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	added := 0
	for _, l := range leads {
		if _, ok := c.byID[l.ID]; ok {
			continue
		}
		c.byID[l.ID] = l
		added++
	}
	return added
}

func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byID)
}

// Snapshot returns the collection ordered by creation time descending,
// matching the store's page order. Ties break on id to keep the order
// stable between calls.
func (c *Collection) Snapshot() []leadview.Lead {
	c.mu.RLock()
	out := make([]leadview.Lead, 0, len(c.byID))
	for _, l := range c.byID {
		out = append(out, l)
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}
