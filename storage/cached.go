// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package storage

import (
	"github.com/hashicorp/golang-lru/simplelru"
)

type cacheEntry struct {
	value []byte
	found bool
}

// CachedStore is a read-through LRU cache over a store. Not safe for
// concurrent use; build one per execution scope and Purge it when done.
type CachedStore struct {
	inner Store
	cache *simplelru.LRU
}

// NewCachedStore wraps inner with a cache of size entries.
func NewCachedStore(inner Store, size int) *CachedStore {
	if size <= 0 {
		size = 1
	}
	cache, _ := simplelru.NewLRU(size, nil)
	return &CachedStore{inner, cache}
}

// Get implements Getter.
func (c *CachedStore) Get(key []byte) ([]byte, error) {
	if v, ok := c.cache.Get(string(key)); ok {
		e := v.(cacheEntry)
		if !e.found {
			return nil, ErrNotFound
		}
		return copyBytes(e.value), nil
	}
	value, err := c.inner.Get(key)
	switch {
	case err == nil:
		c.cache.Add(string(key), cacheEntry{copyBytes(value), true})
	case IsNotFound(err):
		c.cache.Add(string(key), cacheEntry{})
	}
	return value, err
}

// Has implements Getter.
func (c *CachedStore) Has(key []byte) (bool, error) {
	if v, ok := c.cache.Get(string(key)); ok {
		return v.(cacheEntry).found, nil
	}
	return c.inner.Has(key)
}

// Iterate implements Getter. Scans bypass the cache.
func (c *CachedStore) Iterate(prefix []byte, fn func(key, value []byte) bool) error {
	return c.inner.Iterate(prefix, fn)
}

// Put implements Putter.
func (c *CachedStore) Put(key, value []byte) error {
	c.cache.Remove(string(key))
	return c.inner.Put(key, value)
}

// Delete implements Putter.
func (c *CachedStore) Delete(key []byte) error {
	c.cache.Remove(string(key))
	return c.inner.Delete(key)
}

// Purge drops all cached entries.
func (c *CachedStore) Purge() {
	c.cache.Purge()
}
