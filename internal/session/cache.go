package session

import (
	"github.com/google/uuid"
)

// Cache holds the records of currently loaded players. It carries no
// locking of its own; the tracker owns it and serializes all access.
type Cache struct {
	records map[uuid.UUID]*Record
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{records: make(map[uuid.UUID]*Record)}
}

// Get returns the record for a player, if loaded.
func (c *Cache) Get(id uuid.UUID) (*Record, bool) {
	r, ok := c.records[id]
	return r, ok
}

// Put stores a record, replacing any previous one for the same player.
func (c *Cache) Put(r *Record) {
	c.records[r.ID] = r
}

// Remove drops a player's record.
func (c *Cache) Remove(id uuid.UUID) {
	delete(c.records, id)
}

// All returns the loaded records in unspecified order.
func (c *Cache) All() []*Record {
	out := make([]*Record, 0, len(c.records))
	for _, r := range c.records {
		out = append(out, r)
	}
	return out
}

// Len returns the number of loaded records.
func (c *Cache) Len() int {
	return len(c.records)
}
