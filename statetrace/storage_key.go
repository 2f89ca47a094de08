// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package statetrace

import (
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// MaxStorageKeyLength is the upper bound of a contract-local storage key.
// It is the largest length the NSBR key length field can carry.
const MaxStorageKeyLength = 0xffff

// StorageKey addresses one storage slot: the owning contract plus its local key.
type StorageKey struct {
	Contract Hash160
	Key      []byte
}

// Encode returns contract hash followed by the local key.
func (k StorageKey) Encode() []byte {
	out := make([]byte, 0, Hash160Length+len(k.Key))
	out = append(out, k.Contract[:]...)
	return append(out, k.Key...)
}

// String implements stringer.
func (k StorageKey) String() string {
	return k.Contract.String() + "/" + hexutil.Encode(k.Key)
}

// DecodeStorageKey splits an encoded storage key. It fails when the input
// cannot hold a contract hash.
func DecodeStorageKey(b []byte) (StorageKey, error) {
	if len(b) < Hash160Length {
		return StorageKey{}, NewFormatError("storage key length", len(b))
	}
	h, _ := BytesToHash160(b[:Hash160Length])
	return StorageKey{
		Contract: h,
		Key:      append([]byte(nil), b[Hash160Length:]...),
	}, nil
}
