// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package capture

import (
	"bytes"
	"sort"
	"sync"

	"github.com/inconshreveable/log15"
	"github.com/miniBamboo/statetrace/snapshot"
	"github.com/miniBamboo/statetrace/statetrace"
)

var log = log15.New("pkg", "capture")

type hit struct {
	value []byte
	order int
}

// Session collects the classified reads of one execution.
type Session struct {
	lock   sync.Mutex
	hits   map[string]*hit
	misses map[string]struct{}
	next   int
}

// NewSession creates an empty session.
func NewSession() *Session {
	return &Session{
		hits:   make(map[string]*hit),
		misses: make(map[string]struct{}),
	}
}

// Hit records a lookup that found value. Only the first hit of a key
// keeps its order and value.
func (s *Session) Hit(key, value []byte) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if _, ok := s.hits[string(key)]; ok {
		return
	}
	s.hits[string(key)] = &hit{append([]byte(nil), value...), s.next}
	s.next++
}

// Miss records a lookup that found nothing.
func (s *Session) Miss(key []byte) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.misses[string(key)] = struct{}{}
}

// HitCount returns the number of distinct keys hit.
func (s *Session) HitCount() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return len(s.hits)
}

// Reads returns the hits in first-read order.
func (s *Session) Reads() []snapshot.Read {
	s.lock.Lock()
	defer s.lock.Unlock()

	reads := make([]snapshot.Read, 0, len(s.hits))
	for k, h := range s.hits {
		sk, err := statetrace.DecodeStorageKey([]byte(k))
		if err != nil {
			log.Warn("skipped undecodable key", "key", []byte(k))
			continue
		}
		reads = append(reads, snapshot.Read{Key: sk, Value: h.value, Order: h.order})
	}
	sort.Slice(reads, func(i, j int) bool { return reads[i].Order < reads[j].Order })
	return reads
}

// Hits returns the distinct keys hit, in encoded byte order.
func (s *Session) Hits() []statetrace.StorageKey {
	s.lock.Lock()
	defer s.lock.Unlock()
	keys := make([]string, 0, len(s.hits))
	for k := range s.hits {
		keys = append(keys, k)
	}
	return decodeSorted(keys)
}

// Misses returns the distinct keys missed, in encoded byte order.
func (s *Session) Misses() []statetrace.StorageKey {
	s.lock.Lock()
	defer s.lock.Unlock()
	keys := make([]string, 0, len(s.misses))
	for k := range s.misses {
		keys = append(keys, k)
	}
	return decodeSorted(keys)
}

func decodeSorted(keys []string) []statetrace.StorageKey {
	sort.Strings(keys)
	out := make([]statetrace.StorageKey, 0, len(keys))
	for _, k := range keys {
		sk, err := statetrace.DecodeStorageKey([]byte(k))
		if err != nil {
			sk = statetrace.StorageKey{Key: []byte(k)}
		}
		out = append(out, sk)
	}
	return out
}

func sortKeys(keys []statetrace.StorageKey) {
	sort.Slice(keys, func(i, j int) bool {
		return bytes.Compare(keys[i].Encode(), keys[j].Encode()) < 0
	})
}

// Scope holds the session reads are attributed to. A scope belongs to one
// replay or capture and is injected into the stores built for it, so
// concurrent runs never share one.
type Scope struct {
	lock    sync.Mutex
	current *Session
}

// NewScope creates a scope with no active session.
func NewScope() *Scope {
	return &Scope{}
}

// Guard restores the previous session of a scope.
type Guard struct {
	scope *Scope
	prev  *Session
	done  bool
}

// Enter makes session the active one until the returned guard exits.
func (s *Scope) Enter(session *Session) *Guard {
	s.lock.Lock()
	defer s.lock.Unlock()
	g := &Guard{scope: s, prev: s.current}
	s.current = session
	return g
}

// Exit restores the session active before Enter. Calling it twice is a no-op.
func (g *Guard) Exit() {
	if g.done {
		return
	}
	g.done = true
	g.scope.lock.Lock()
	g.scope.current = g.prev
	g.scope.lock.Unlock()
}

// Current returns the active session, or nil.
func (s *Scope) Current() *Session {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.current
}
