// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package snapshot

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"strconv"

	"github.com/miniBamboo/statetrace/statetrace"
	"github.com/pkg/errors"
)

// JSONFile is the JSON snapshot format. Keys are full encoded storage keys.
type JSONFile struct {
	Block    uint32              `json:"block"`
	Hash     *statetrace.Bytes32 `json:"hash,omitempty"`
	KeyCount *int                `json:"keyCount,omitempty"`
	Keys     []JSONEntry         `json:"keys"`
}

// JSONEntry is one base64 encoded key/value pair.
type JSONEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// ReadJSON parses a JSON snapshot. A declared keyCount that differs from
// the number of keys is a ValidationError.
func ReadJSON(r io.Reader) (*Snapshot, error) {
	var f JSONFile
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return nil, statetrace.NewFormatError("json snapshot", err)
	}
	if f.KeyCount != nil && *f.KeyCount != len(f.Keys) {
		return nil, statetrace.NewValidationError("keyCount", *f.KeyCount, len(f.Keys))
	}
	snap := New(f.Block)
	snap.Hash = f.Hash
	for i, e := range f.Keys {
		key, err := base64.StdEncoding.DecodeString(e.Key)
		if err != nil {
			return nil, statetrace.NewFormatError("base64 key", e.Key)
		}
		value, err := base64.StdEncoding.DecodeString(e.Value)
		if err != nil {
			return nil, statetrace.NewFormatError("base64 value", e.Value)
		}
		sk, err := statetrace.DecodeStorageKey(key)
		if err != nil {
			return nil, errors.WithMessage(err, "key "+strconv.Itoa(i))
		}
		snap.Put(sk, value)
	}
	return snap, nil
}

// WriteJSON serializes s in the JSON format, keys in sorted order.
func WriteJSON(w io.Writer, s *Snapshot) error {
	keys := s.Keys()
	count := len(keys)
	f := JSONFile{
		Block:    s.Height,
		Hash:     s.Hash,
		KeyCount: &count,
		Keys:     make([]JSONEntry, 0, count),
	}
	for _, k := range keys {
		v, _ := s.Get(k)
		f.Keys = append(f.Keys, JSONEntry{
			Key:   base64.StdEncoding.EncodeToString(k.Encode()),
			Value: base64.StdEncoding.EncodeToString(v),
		})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(&f)
}
