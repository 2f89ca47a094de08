// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func M(a ...interface{}) []interface{} {
	return a
}

func collect(t *testing.T, s Store, prefix string) map[string]string {
	out := make(map[string]string)
	require.NoError(t, s.Iterate([]byte(prefix), func(k, v []byte) bool {
		out[string(k)] = string(v)
		return true
	}))
	return out
}

func TestLevelStore(t *testing.T) {
	s := NewMemStore()
	defer s.Close()

	_, err := s.Get([]byte("a"))
	assert.True(t, IsNotFound(err))

	require.NoError(t, s.Put([]byte("a1"), []byte("x")))
	require.NoError(t, s.Put([]byte("a2"), []byte("y")))
	require.NoError(t, s.Put([]byte("b1"), []byte("z")))

	assert.Equal(t, M([]byte("x"), nil), M(s.Get([]byte("a1"))))
	assert.Equal(t, M(true, nil), M(s.Has([]byte("b1"))))
	assert.Equal(t, map[string]string{"a1": "x", "a2": "y"}, collect(t, s, "a"))

	require.NoError(t, s.Delete([]byte("a1")))
	assert.Equal(t, M(false, nil), M(s.Has([]byte("a1"))))
}

func TestOverlayCommit(t *testing.T) {
	base := NewMemStore()
	defer base.Close()
	require.NoError(t, base.Put([]byte("k1"), []byte("v1")))
	require.NoError(t, base.Put([]byte("k2"), []byte("v2")))

	o := Clone(base)
	require.NoError(t, o.Put([]byte("k3"), []byte("v3")))
	require.NoError(t, o.Put([]byte("k1"), []byte("v1'")))
	require.NoError(t, o.Delete([]byte("k2")))
	assert.Equal(t, 3, o.Len())

	assert.Equal(t, M([]byte("v1'"), nil), M(o.Get([]byte("k1"))))
	_, err := o.Get([]byte("k2"))
	assert.True(t, IsNotFound(err))
	assert.Equal(t, M(false, nil), M(o.Has([]byte("k2"))))
	assert.Equal(t, map[string]string{"k1": "v1'", "k3": "v3"}, collect(t, o, "k"))

	// parent untouched before commit
	assert.Equal(t, map[string]string{"k1": "v1", "k2": "v2"}, collect(t, base, "k"))

	require.NoError(t, o.Commit())
	assert.Equal(t, 0, o.Len())
	assert.Equal(t, map[string]string{"k1": "v1'", "k3": "v3"}, collect(t, base, "k"))
}

func TestOverlayDiscard(t *testing.T) {
	base := NewMemStore()
	defer base.Close()
	require.NoError(t, base.Put([]byte("k"), []byte("v")))

	o := Clone(base)
	require.NoError(t, o.Put([]byte("k"), []byte("dirty")))
	require.NoError(t, o.Delete([]byte("k")))
	_, err := o.Get([]byte("k"))
	assert.True(t, IsNotFound(err))

	assert.Equal(t, M([]byte("v"), nil), M(base.Get([]byte("k"))))
}

func TestNestedOverlay(t *testing.T) {
	base := NewMemStore()
	defer base.Close()

	outer := Clone(base)
	inner := Clone(outer)
	assert.Equal(t, Store(outer), inner.Parent())

	require.NoError(t, inner.Put([]byte("k"), []byte("v")))
	require.NoError(t, inner.Commit())

	assert.Equal(t, M([]byte("v"), nil), M(outer.Get([]byte("k"))))
	assert.Equal(t, M(false, nil), M(base.Has([]byte("k"))))

	require.NoError(t, outer.Commit())
	assert.Equal(t, M([]byte("v"), nil), M(base.Get([]byte("k"))))
}

type countingStore struct {
	Store
	gets int
}

func (c *countingStore) Get(key []byte) ([]byte, error) {
	c.gets++
	return c.Store.Get(key)
}

func TestCachedStore(t *testing.T) {
	mem := NewMemStore()
	defer mem.Close()
	require.NoError(t, mem.Put([]byte("k"), []byte("v")))

	inner := &countingStore{Store: mem}
	c := NewCachedStore(inner, 2)

	for i := 0; i < 3; i++ {
		assert.Equal(t, M([]byte("v"), nil), M(c.Get([]byte("k"))))
	}
	assert.Equal(t, 1, inner.gets)

	for i := 0; i < 2; i++ {
		_, err := c.Get([]byte("absent"))
		assert.True(t, IsNotFound(err))
	}
	assert.Equal(t, 2, inner.gets)
	assert.Equal(t, M(false, nil), M(c.Has([]byte("absent"))))

	require.NoError(t, c.Put([]byte("k"), []byte("v2")))
	assert.Equal(t, M([]byte("v2"), nil), M(c.Get([]byte("k"))))
	assert.Equal(t, 3, inner.gets)

	c.Purge()
	assert.Equal(t, M([]byte("v2"), nil), M(c.Get([]byte("k"))))
	assert.Equal(t, 4, inner.gets)
}
