package contentmodel

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize bounds the number of memoized field lists.
const DefaultCacheSize = 1024

const cacheKeySep = "\x00"

// Cached memoizes the field lookups of another Model. Every other method is
// passed through.
type Cached struct {
	Model

	fields *lru.Cache[string, []FieldDefinition]
	base   *lru.Cache[string, []FieldDefinition]
}

// NewCached wraps m with LRU caches holding up to size entries each.
func NewCached(m Model, size int) (*Cached, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}

	fields, err := lru.New[string, []FieldDefinition](size)
	if err != nil {
		return nil, fmt.Errorf("create field cache: %w", err)
	}

	base, err := lru.New[string, []FieldDefinition](size)
	if err != nil {
		return nil, fmt.Errorf("create base field cache: %w", err)
	}

	return &Cached{Model: m, fields: fields, base: base}, nil
}

// BaseFields returns the cached base fields of an entity type.
func (c *Cached) BaseFields(entityTypeID string) ([]FieldDefinition, error) {
	if hit, ok := c.base.Get(entityTypeID); ok {
		return hit, nil
	}

	out, err := c.Model.BaseFields(entityTypeID)
	if err != nil {
		return nil, err
	}

	c.base.Add(entityTypeID, out)

	return out, nil
}

// FieldsForBundle returns the cached fields of a bundle.
func (c *Cached) FieldsForBundle(entityTypeID, bundle string) ([]FieldDefinition, error) {
	key := entityTypeID + cacheKeySep + bundle

	if hit, ok := c.fields.Get(key); ok {
		return hit, nil
	}

	out, err := c.Model.FieldsForBundle(entityTypeID, bundle)
	if err != nil {
		return nil, err
	}

	c.fields.Add(key, out)

	return out, nil
}

// Purge drops every cached entry.
func (c *Cached) Purge() {
	c.fields.Purge()
	c.base.Purge()
}
