// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package capture

import (
	"github.com/miniBamboo/statetrace/storage"
)

// Store classifies the lookups on a store into the scope's active session.
// Without an active session it is a plain pass-through.
type Store struct {
	inner storage.Store
	scope *Scope
}

// NewStore wraps inner, attributing reads to scope.
func NewStore(inner storage.Store, scope *Scope) *Store {
	return &Store{inner, scope}
}

// Get is a hit when the key is present, a miss otherwise.
func (s *Store) Get(key []byte) ([]byte, error) {
	value, err := s.inner.Get(key)
	session := s.scope.Current()
	if session == nil {
		return value, err
	}
	switch {
	case err == nil:
		session.Hit(key, value)
	case storage.IsNotFound(err):
		session.Miss(key)
	}
	return value, err
}

// Has is a hit only when the key is present. An absent key is not a miss.
func (s *Store) Has(key []byte) (bool, error) {
	ok, err := s.inner.Has(key)
	if err != nil || !ok {
		return ok, err
	}
	if session := s.scope.Current(); session != nil {
		value, err := s.inner.Get(key)
		if err != nil {
			return false, err
		}
		session.Hit(key, value)
	}
	return true, nil
}

// Iterate records every yielded pair as a hit.
func (s *Store) Iterate(prefix []byte, fn func(key, value []byte) bool) error {
	session := s.scope.Current()
	return s.inner.Iterate(prefix, func(key, value []byte) bool {
		if session != nil {
			session.Hit(key, value)
		}
		return fn(key, value)
	})
}

// Put implements storage.Putter.
func (s *Store) Put(key, value []byte) error {
	return s.inner.Put(key, value)
}

// Delete implements storage.Putter.
func (s *Store) Delete(key []byte) error {
	return s.inner.Delete(key)
}
