package algo

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize bounds the number of memoized algorithm instances.
const DefaultCacheSize = 256

// Cache memoizes initialized algorithms by descriptor content so identical
// rule definitions share one instance. An instance is only added after Init
// has returned, so readers never observe a half-initialized algorithm.
//
// Two goroutines missing on the same key may both build an instance; the
// later Add wins and both results are valid.
type Cache struct {
	registry  *Registry
	instances *lru.Cache[string, Algorithm]
}

// NewCache creates a Cache over registry holding at most size instances.
func NewCache(registry *Registry, size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	instances, err := lru.New[string, Algorithm](size)
	if err != nil {
		return nil, fmt.Errorf("algorithm cache: %w", err)
	}
	return &Cache{registry: registry, instances: instances}, nil
}

// Get returns a shared initialized instance for d, building it on a miss.
func (c *Cache) Get(capability Capability, d Descriptor) (Algorithm, error) {
	key, err := d.Fingerprint(capability)
	if err != nil {
		return nil, err
	}
	if alg, ok := c.instances.Get(key); ok {
		return alg, nil
	}

	alg, err := c.registry.NewInstance(capability, d)
	if err != nil {
		return nil, err
	}
	c.instances.Add(key, alg)
	return alg, nil
}

// Len returns the number of cached instances.
func (c *Cache) Len() int {
	return c.instances.Len()
}

// Purge drops every cached instance.
func (c *Cache) Purge() {
	c.instances.Purge()
}
