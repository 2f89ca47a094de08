// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package tx

import (
	"io"
	"math"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/miniBamboo/statetrace/statetrace"
)

// Features bitset of transaction features.
type Features uint32

const (
	// HighPriorityFeature marks a transaction ordered ahead of regular ones.
	HighPriorityFeature Features = 1
)

// IsHighPriority returns whether the high priority feature is set.
func (f Features) IsHighPriority() bool {
	return f&HighPriorityFeature == HighPriorityFeature
}

// SetHighPriority sets or clears the high priority feature.
func (f *Features) SetHighPriority(flag bool) {
	if flag {
		*f |= HighPriorityFeature
	} else {
		*f &= ^HighPriorityFeature
	}
}

// Transaction is an immutable script invocation.
type Transaction struct {
	body body

	cache struct {
		id atomic.Value
	}
}

type body struct {
	Nonce     uint64
	SystemFee uint64
	Features  Features
	Script    []byte
}

// Builder to make it easy to build transaction.
type Builder struct {
	body body
}

// Nonce set nonce.
func (b *Builder) Nonce(nonce uint64) *Builder {
	b.body.Nonce = nonce
	return b
}

// SystemFee set the gas budget.
func (b *Builder) SystemFee(fee uint64) *Builder {
	b.body.SystemFee = fee
	return b
}

// Features set features.
func (b *Builder) Features(f Features) *Builder {
	b.body.Features = f
	return b
}

// Script set the invocation script.
func (b *Builder) Script(script []byte) *Builder {
	b.body.Script = append([]byte(nil), script...)
	return b
}

// Build builds a tx object.
func (b *Builder) Build() *Transaction {
	return &Transaction{body: b.body}
}

// ID returns the keccak hash of the encoded transaction.
func (t *Transaction) ID() statetrace.Bytes32 {
	if cached := t.cache.id.Load(); cached != nil {
		return cached.(statetrace.Bytes32)
	}
	data, err := rlp.EncodeToBytes(&t.body)
	if err != nil {
		panic(err)
	}
	id := statetrace.Keccak256(data)
	t.cache.id.Store(id)
	return id
}

// Nonce returns nonce.
func (t *Transaction) Nonce() uint64 { return t.body.Nonce }

// SystemFee returns the gas budget for execution, capped at math.MaxInt64.
func (t *Transaction) SystemFee() int64 {
	if t.body.SystemFee > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(t.body.SystemFee)
}

// Features returns features.
func (t *Transaction) Features() Features { return t.body.Features }

// Script returns a copy of the invocation script.
func (t *Transaction) Script() []byte {
	return append([]byte(nil), t.body.Script...)
}

// EncodeRLP implements rlp.Encoder.
func (t *Transaction) EncodeRLP(w io.Writer) error {
	return rlp.Encode(w, &t.body)
}

// DecodeRLP implements rlp.Decoder.
func (t *Transaction) DecodeRLP(s *rlp.Stream) error {
	var b body
	if err := s.Decode(&b); err != nil {
		return err
	}
	*t = Transaction{body: b}
	return nil
}

// Transactions a slice of transactions.
type Transactions []*Transaction
