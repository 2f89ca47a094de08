// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package storage

import (
	"sort"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/comparer"
	"github.com/syndtr/goleveldb/leveldb/memdb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// Overlay is a working snapshot over a parent store. Changes stay pending
// until Commit; dropping the overlay discards them.
type Overlay struct {
	parent  Store
	pending *memdb.DB
	deleted map[string]struct{}
}

// Clone creates a working snapshot of store.
func Clone(store Store) *Overlay {
	return &Overlay{
		parent:  store,
		pending: memdb.New(comparer.DefaultComparer, 0),
		deleted: make(map[string]struct{}),
	}
}

// Parent returns the store the overlay commits into.
func (o *Overlay) Parent() Store {
	return o.parent
}

// Get implements Getter.
func (o *Overlay) Get(key []byte) ([]byte, error) {
	if _, ok := o.deleted[string(key)]; ok {
		return nil, ErrNotFound
	}
	if v, err := o.pending.Get(key); err == nil {
		return copyBytes(v), nil
	}
	return o.parent.Get(key)
}

// Has implements Getter.
func (o *Overlay) Has(key []byte) (bool, error) {
	if _, ok := o.deleted[string(key)]; ok {
		return false, nil
	}
	if o.pending.Contains(key) {
		return true, nil
	}
	return o.parent.Has(key)
}

// Iterate implements Getter. Pending writes shadow the parent.
func (o *Overlay) Iterate(prefix []byte, fn func(key, value []byte) bool) error {
	merged := make(map[string][]byte)
	if err := o.parent.Iterate(prefix, func(key, value []byte) bool {
		merged[string(key)] = value
		return true
	}); err != nil {
		return err
	}
	it := o.pending.NewIterator(util.BytesPrefix(prefix))
	for it.Next() {
		merged[string(it.Key())] = copyBytes(it.Value())
	}
	it.Release()
	for k := range o.deleted {
		delete(merged, k)
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !fn([]byte(k), merged[k]) {
			break
		}
	}
	return nil
}

// Put implements Putter.
func (o *Overlay) Put(key, value []byte) error {
	delete(o.deleted, string(key))
	return o.pending.Put(key, value)
}

// Delete implements Putter.
func (o *Overlay) Delete(key []byte) error {
	if err := o.pending.Delete(key); err != nil && err != ErrNotFound {
		return err
	}
	o.deleted[string(key)] = struct{}{}
	return nil
}

// Len returns the number of pending changes.
func (o *Overlay) Len() int {
	return o.pending.Len() + len(o.deleted)
}

// Commit applies pending changes to the parent and resets the overlay.
func (o *Overlay) Commit() error {
	if ls, ok := o.parent.(*LevelStore); ok {
		batch := new(leveldb.Batch)
		o.each(func(key, value []byte, del bool) {
			if del {
				batch.Delete(key)
			} else {
				batch.Put(key, value)
			}
		})
		if err := ls.Write(batch); err != nil {
			return err
		}
	} else {
		var err error
		o.each(func(key, value []byte, del bool) {
			if err != nil {
				return
			}
			if del {
				err = o.parent.Delete(key)
			} else {
				err = o.parent.Put(key, value)
			}
		})
		if err != nil {
			return err
		}
	}
	o.pending.Reset()
	o.deleted = make(map[string]struct{})
	return nil
}

func (o *Overlay) each(fn func(key, value []byte, del bool)) {
	for k := range o.deleted {
		fn([]byte(k), nil, true)
	}
	it := o.pending.NewIterator(nil)
	defer it.Release()
	for it.Next() {
		fn(copyBytes(it.Key()), copyBytes(it.Value()), false)
	}
}
