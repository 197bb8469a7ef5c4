package ollie

import (
	"fmt"
	"reflect"
	"sync"
)

type cacheKey struct {
	typ reflect.Type
	id  int64
}

// EntityCache is an identity map: at most one live instance per model type
// and identity. The check-then-insert runs in one critical section, so
// concurrent first-time resolutions of the same key yield the same instance.
type EntityCache struct {
	mu       sync.Mutex
	entities map[cacheKey]Entity
}

func NewEntityCache() *EntityCache {
	return &EntityCache{
		entities: make(map[cacheKey]Entity),
	}
}

// Resolve returns the cached instance for (typ, id), constructing and
// caching a fresh one on first access.
func (c *EntityCache) Resolve(typ reflect.Type, id int64) (Entity, error) {
	key := cacheKey{typ: typ, id: id}

	c.mu.Lock()
	defer c.mu.Unlock()

	if entity, ok := c.entities[key]; ok {
		return entity, nil
	}

	entity, ok := reflect.New(typ).Interface().(Entity)
	if !ok {
		return nil, fmt.Errorf("%s is not a model type", typ)
	}

	entity.model().ID = id
	c.entities[key] = entity

	return entity, nil
}

// Remove drops the instance for (typ, id), if any.
func (c *EntityCache) Remove(typ reflect.Type, id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entities, cacheKey{typ: typ, id: id})
}
