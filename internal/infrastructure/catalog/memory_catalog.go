package catalog

import (
	"context"
	"sync"

	"gamescrow/internal/domain/entity"
	"gamescrow/pkg/errors"
)

// MemoryCatalog serves items registered with Put. Used in development and tests.
type MemoryCatalog struct {
	mu    sync.RWMutex
	items map[string]entity.Item
}

func NewMemoryCatalog(items ...entity.Item) *MemoryCatalog {
	c := &MemoryCatalog{items: make(map[string]entity.Item)}
	for _, item := range items {
		c.Put(item)
	}
	return c
}

func (c *MemoryCatalog) Put(item entity.Item) {
	c.mu.Lock()
	c.items[item.ID] = item
	c.mu.Unlock()
}

func (c *MemoryCatalog) GetItem(ctx context.Context, itemID string) (*entity.Item, error) {
	c.mu.RLock()
	item, ok := c.items[itemID]
	c.mu.RUnlock()
	if !ok {
		return nil, errors.NotFound("Item", nil)
	}
	return &item, nil
}
