// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package statetrace

import (
	"encoding/hex"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

const (
	// Hash160Length length of contract hash in bytes.
	Hash160Length = 20
	// Bytes32Length length of block and transaction ids in bytes.
	Bytes32Length = 32
)

// Hash160 identifies a contract.
type Hash160 [Hash160Length]byte

// Bytes32 array of 32 bytes, used for block hashes and transaction ids.
type Bytes32 [Bytes32Length]byte

// String implements stringer.
func (h Hash160) String() string {
	return hexutil.Encode(h[:])
}

// Bytes returns a copy of the underlying bytes.
func (h Hash160) Bytes() []byte {
	return append([]byte(nil), h[:]...)
}

// IsZero returns if hash is all zero bytes.
func (h Hash160) IsZero() bool {
	return h == Hash160{}
}

// MarshalJSON implements json.Marshaler.
func (h Hash160) MarshalJSON() ([]byte, error) {
	return []byte(`"` + h.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (h *Hash160) UnmarshalJSON(data []byte) error {
	parsed, err := ParseHash160(strings.Trim(string(data), `"`))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// String implements stringer.
func (b Bytes32) String() string {
	return hexutil.Encode(b[:])
}

// Bytes returns a copy of the underlying bytes.
func (b Bytes32) Bytes() []byte {
	return append([]byte(nil), b[:]...)
}

// IsZero returns if bytes32 is all zero bytes.
func (b Bytes32) IsZero() bool {
	return b == Bytes32{}
}

// BytesToHash160 converts a byte slice of exactly 20 bytes into Hash160.
// Any other length is rejected rather than padded or truncated.
func BytesToHash160(b []byte) (Hash160, error) {
	var h Hash160
	if len(b) != Hash160Length {
		return h, NewFormatError("hash160 length", len(b))
	}
	copy(h[:], b)
	return h, nil
}

// BytesToBytes32 converts a byte slice of exactly 32 bytes into Bytes32.
func BytesToBytes32(b []byte) (Bytes32, error) {
	var out Bytes32
	if len(b) != Bytes32Length {
		return out, NewFormatError("bytes32 length", len(b))
	}
	copy(out[:], b)
	return out, nil
}

// ParseHash160 parses a hex string, with or without 0x prefix, into Hash160.
func ParseHash160(s string) (Hash160, error) {
	b, err := decodeHex(s)
	if err != nil {
		return Hash160{}, errors.WithMessage(err, "hash160")
	}
	return BytesToHash160(b)
}

// MustParseHash160 parses hash or panics.
func MustParseHash160(s string) Hash160 {
	h, err := ParseHash160(s)
	if err != nil {
		panic(err)
	}
	return h
}

// ParseBytes32 parses a hex string, with or without 0x prefix, into Bytes32.
func ParseBytes32(s string) (Bytes32, error) {
	b, err := decodeHex(s)
	if err != nil {
		return Bytes32{}, errors.WithMessage(err, "bytes32")
	}
	return BytesToBytes32(b)
}

// MustParseBytes32 parses bytes32 or panics.
func MustParseBytes32(s string) Bytes32 {
	b, err := ParseBytes32(s)
	if err != nil {
		panic(err)
	}
	return b
}

// Hash160Of derives the contract hash of a script.
func Hash160Of(script []byte) Hash160 {
	var h Hash160
	copy(h[:], crypto.Keccak256(script)[12:])
	return h
}

// Keccak256 computes the 32-byte keccak hash of the concatenated data.
func Keccak256(data ...[]byte) Bytes32 {
	var b Bytes32
	copy(b[:], crypto.Keccak256(data...))
	return b
}

func decodeHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	return hex.DecodeString(s)
}

// MarshalJSON implements json.Marshaler.
func (b Bytes32) MarshalJSON() ([]byte, error) {
	return []byte(`"` + b.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *Bytes32) UnmarshalJSON(data []byte) error {
	parsed, err := ParseBytes32(strings.Trim(string(data), `"`))
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}
