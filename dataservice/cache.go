// Package dataservice keeps the in-memory view of the task list and drives the
// load, save and delete flows against a storage backend.
package dataservice

import (
	"strings"

	"todo-list/domain"
	"todo-list/query"
)

// Cache is the in-memory mirror of the persisted collection. It is not safe
// for concurrent mutation; callers serialise writes.
type Cache struct {
	items []domain.Item
}

func NewCache() *Cache {
	return &Cache{items: []domain.Item{}}
}

// GetAll returns a copy of the collection.
func (c *Cache) GetAll() []domain.Item {
	out := make([]domain.Item, len(c.items))
	copy(out, c.items)
	return out
}

// SetAll replaces the whole collection with a copy of items.
func (c *Cache) SetAll(items []domain.Item) {
	c.items = make([]domain.Item, len(items))
	copy(c.items, items)
}

func (c *Cache) GetByID(id string) (domain.Item, bool) {
	if i := c.index(id); i >= 0 {
		return c.items[i], true
	}
	return domain.Item{}, false
}

// Add appends item. It must already be persisted.
func (c *Cache) Add(item domain.Item) {
	c.items = append(c.items, item)
}

// Update replaces the entry with item's id and reports whether one was found.
func (c *Cache) Update(item domain.Item) bool {
	i := c.index(item.ID)
	if i < 0 {
		return false
	}
	c.items[i] = item
	return true
}

func (c *Cache) Delete(id string) bool {
	i := c.index(id)
	if i < 0 {
		return false
	}
	c.items = append(c.items[:i:i], c.items[i+1:]...)
	return true
}

// GetSortedFiltered projects a snapshot of the collection. sortMode is "asc"
// or "desc"; anything else sorts ascending.
func (c *Cache) GetSortedFiltered(sortBy, sortMode string, filter query.Filter) []domain.Item {
	return query.Project(c.items, sortBy, query.ParseSortMode(sortMode), filter)
}

// Count returns the number of items regardless of any filter.
func (c *Cache) Count() int {
	return len(c.items)
}

func (c *Cache) index(id string) int {
	id = strings.TrimSpace(id)
	if id == "" {
		return -1
	}
	for i := range c.items {
		if c.items[i].ID == id {
			return i
		}
	}
	return -1
}
