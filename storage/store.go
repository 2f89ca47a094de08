// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package storage provides the key-value stores execution runs against.
package storage

import (
	"github.com/syndtr/goleveldb/leveldb"
	lvlerrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// ErrNotFound is returned by Get for absent keys.
var ErrNotFound = lvlerrors.ErrNotFound

// IsNotFound returns whether err reports an absent key.
func IsNotFound(err error) bool {
	return err == ErrNotFound
}

// Getter reads keys.
type Getter interface {
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
	// Iterate visits keys with the prefix in ascending order until fn returns false.
	Iterate(prefix []byte, fn func(key, value []byte) bool) error
}

// Putter writes keys.
type Putter interface {
	Put(key, value []byte) error
	Delete(key []byte) error
}

// Store is a readable and writable key-value store.
type Store interface {
	Getter
	Putter
}

// LevelStore is a Store backed by goleveldb.
type LevelStore struct {
	db *leveldb.DB
}

// NewMemStore creates an isolated in-memory store.
func NewMemStore() *LevelStore {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		// memory storage never fails to open
		panic(err)
	}
	return &LevelStore{db}
}

// OpenLevelStore opens or creates a store on disk.
func OpenLevelStore(path string) (*LevelStore, error) {
	db, err := leveldb.OpenFile(path, &opt.Options{})
	if err != nil {
		return nil, err
	}
	return &LevelStore{db}, nil
}

// Get implements Getter.
func (s *LevelStore) Get(key []byte) ([]byte, error) {
	return s.db.Get(key, nil)
}

// Has implements Getter.
func (s *LevelStore) Has(key []byte) (bool, error) {
	return s.db.Has(key, nil)
}

// Iterate implements Getter.
func (s *LevelStore) Iterate(prefix []byte, fn func(key, value []byte) bool) error {
	it := s.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer it.Release()
	for it.Next() {
		if !fn(copyBytes(it.Key()), copyBytes(it.Value())) {
			break
		}
	}
	return it.Error()
}

// Put implements Putter.
func (s *LevelStore) Put(key, value []byte) error {
	return s.db.Put(key, value, nil)
}

// Delete implements Putter.
func (s *LevelStore) Delete(key []byte) error {
	return s.db.Delete(key, nil)
}

// Write applies a batch atomically.
func (s *LevelStore) Write(batch *leveldb.Batch) error {
	return s.db.Write(batch, nil)
}

// Close releases the store.
func (s *LevelStore) Close() error {
	return s.db.Close()
}

func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte{}, b...)
}
