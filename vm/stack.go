// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package vm

import (
	"bytes"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
	"github.com/miniBamboo/statetrace/statetrace"
	"github.com/pkg/errors"
)

var (
	errStackUnderflow = errors.New("stack underflow")
	errStackOverflow  = errors.New("stack overflow")
)

// StackItem is either an integer or a byte string.
type StackItem struct {
	integer *uint256.Int
	data    []byte
}

// NewInteger creates an integer item.
func NewInteger(v uint64) StackItem {
	return StackItem{integer: new(uint256.Int).SetUint64(v)}
}

// NewIntegerFrom creates an integer item from a 256-bit value.
func NewIntegerFrom(v *uint256.Int) StackItem {
	return StackItem{integer: new(uint256.Int).Set(v)}
}

// NewByteString creates a byte string item.
func NewByteString(b []byte) StackItem {
	return StackItem{data: append([]byte{}, b...)}
}

// IsInteger returns whether the item holds an integer.
func (s StackItem) IsInteger() bool {
	return s.integer != nil
}

// Bytes returns the byte representation. Integers are big endian, zero is empty.
func (s StackItem) Bytes() []byte {
	if s.integer != nil {
		return s.integer.Bytes()
	}
	return append([]byte{}, s.data...)
}

// Integer returns the integer representation.
func (s StackItem) Integer() (*uint256.Int, error) {
	if s.integer != nil {
		return new(uint256.Int).Set(s.integer), nil
	}
	if len(s.data) > 32 {
		return nil, errors.Errorf("byte string too long for integer: %d", len(s.data))
	}
	return new(uint256.Int).SetBytes(s.data), nil
}

// Bool returns whether the item is non-zero.
func (s StackItem) Bool() bool {
	if s.integer != nil {
		return !s.integer.IsZero()
	}
	for _, b := range s.data {
		if b != 0 {
			return true
		}
	}
	return false
}

// Equals compares byte representations.
func (s StackItem) Equals(other StackItem) bool {
	return bytes.Equal(s.Bytes(), other.Bytes())
}

// String implements stringer.
func (s StackItem) String() string {
	if s.integer != nil {
		return s.integer.ToBig().String()
	}
	return hexutil.Encode(s.data)
}

// Stack is an evaluation stack.
type Stack struct {
	items []StackItem
}

// Len returns number of items.
func (s *Stack) Len() int {
	return len(s.items)
}

// Push pushes an item.
func (s *Stack) Push(item StackItem) error {
	if len(s.items) >= statetrace.MaxStackSize {
		return errStackOverflow
	}
	s.items = append(s.items, item)
	return nil
}

// Pop removes the top item.
func (s *Stack) Pop() (StackItem, error) {
	if len(s.items) == 0 {
		return StackItem{}, errStackUnderflow
	}
	item := s.items[len(s.items)-1]
	s.items = s.items[:len(s.items)-1]
	return item, nil
}

// Peek returns the n-th item from top without removing it.
func (s *Stack) Peek(n int) (StackItem, error) {
	if n < 0 || n >= len(s.items) {
		return StackItem{}, errStackUnderflow
	}
	return s.items[len(s.items)-1-n], nil
}

// Items returns a copy of items, bottom first.
func (s *Stack) Items() []StackItem {
	return append([]StackItem(nil), s.items...)
}
