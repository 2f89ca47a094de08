// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package snapshot

import (
	"bytes"
	"sort"

	"github.com/inconshreveable/log15"
	"github.com/miniBamboo/statetrace/statetrace"
	"github.com/miniBamboo/statetrace/storage"
)

var log = log15.New("pkg", "snapshot")

// Snapshot maps storage keys to the values needed to replay one block.
// Keys are unique; a later Put of the same key wins.
type Snapshot struct {
	Height uint32
	Hash   *statetrace.Bytes32

	values map[string][]byte
}

// New creates an empty snapshot declared at height.
func New(height uint32) *Snapshot {
	return &Snapshot{Height: height, values: make(map[string][]byte)}
}

// Put sets the value of key.
func (s *Snapshot) Put(key statetrace.StorageKey, value []byte) {
	s.values[string(key.Encode())] = value
}

// Get returns the value of key.
func (s *Snapshot) Get(key statetrace.StorageKey) ([]byte, bool) {
	v, ok := s.values[string(key.Encode())]
	return v, ok
}

// Len returns the number of distinct keys.
func (s *Snapshot) Len() int { return len(s.values) }

// Keys returns the declared key set in encoded byte order.
func (s *Snapshot) Keys() []statetrace.StorageKey {
	encoded := make([][]byte, 0, len(s.values))
	for k := range s.values {
		encoded = append(encoded, []byte(k))
	}
	sort.Slice(encoded, func(i, j int) bool { return bytes.Compare(encoded[i], encoded[j]) < 0 })

	keys := make([]statetrace.StorageKey, 0, len(encoded))
	for _, k := range encoded {
		// every stored key was produced by Encode
		sk, _ := statetrace.DecodeStorageKey(k)
		keys = append(keys, sk)
	}
	return keys
}

// Seed writes every pair into store.
func (s *Snapshot) Seed(store storage.Putter) error {
	for k, v := range s.values {
		if err := store.Put([]byte(k), v); err != nil {
			return err
		}
	}
	log.Debug("seeded store", "height", s.Height, "keys", len(s.values))
	return nil
}

// FromBinary builds a snapshot from a binary state file. Entries are
// applied in file order so the last entry of a duplicated key wins,
// whatever its read order.
func FromBinary(f *BinaryStateFile) *Snapshot {
	s := New(f.BlockIndex)
	for i := range f.Entries {
		s.Put(f.Entries[i].StorageKey(), f.Entries[i].Value)
	}
	return s
}

// Read is one captured storage read, in first-read order.
type Read struct {
	Key   statetrace.StorageKey
	Value []byte
	Order int
}

// FromReads exports captured reads as a binary state file. Reads are
// written in their given order and renumbered from zero.
func FromReads(blockIndex uint32, reads []Read) *BinaryStateFile {
	sorted := append([]Read(nil), reads...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Order < sorted[j].Order })

	f := &BinaryStateFile{BlockIndex: blockIndex, Entries: make([]BinaryStateEntry, 0, len(sorted))}
	for i, r := range sorted {
		f.Entries = append(f.Entries, BinaryStateEntry{
			ContractHash: r.Key.Contract,
			Key:          append([]byte(nil), r.Key.Key...),
			Value:        append([]byte(nil), r.Value...),
			ReadOrder:    int32(i),
		})
	}
	return f
}
