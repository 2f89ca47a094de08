// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package block

import (
	"fmt"
	"io"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/miniBamboo/statetrace/statetrace"
	"github.com/miniBamboo/statetrace/tx"
)

// Header contains almost all information about a block, except its transactions.
type Header struct {
	body headerBody

	cache struct {
		hash atomic.Value
	}
}

type headerBody struct {
	Index     uint32
	PrevHash  statetrace.Bytes32
	Timestamp uint64
	Nonce     uint64
	TxsRoot   statetrace.Bytes32
}

// Index returns the block height.
func (h *Header) Index() uint32 { return h.body.Index }

// PrevHash returns the parent block hash.
func (h *Header) PrevHash() statetrace.Bytes32 { return h.body.PrevHash }

// Timestamp returns the block timestamp.
func (h *Header) Timestamp() uint64 { return h.body.Timestamp }

// Nonce returns the consensus nonce.
func (h *Header) Nonce() uint64 { return h.body.Nonce }

// TxsRoot returns the hash over the transaction ids.
func (h *Header) TxsRoot() statetrace.Bytes32 { return h.body.TxsRoot }

// Hash computes the hash of the header.
func (h *Header) Hash() statetrace.Bytes32 {
	if cached := h.cache.hash.Load(); cached != nil {
		return cached.(statetrace.Bytes32)
	}
	data, err := rlp.EncodeToBytes(&h.body)
	if err != nil {
		panic(err)
	}
	hash := statetrace.Keccak256(data)
	h.cache.hash.Store(hash)
	return hash
}

// Block is an immutable block type.
type Block struct {
	header *Header
	txs    tx.Transactions
}

// Header returns the block header.
func (b *Block) Header() *Header { return b.header }

// Transactions returns a copy of transactions.
func (b *Block) Transactions() tx.Transactions {
	return append(tx.Transactions(nil), b.txs...)
}

// Index shortcut of Header().Index().
func (b *Block) Index() uint32 { return b.header.Index() }

// Hash shortcut of Header().Hash().
func (b *Block) Hash() statetrace.Bytes32 { return b.header.Hash() }

// String implements stringer.
func (b *Block) String() string {
	return fmt.Sprintf("Block(#%d %v, %d txs)", b.Index(), b.Hash(), len(b.txs))
}

type blockBody struct {
	Header headerBody
	Txs    tx.Transactions
}

// EncodeRLP implements rlp.Encoder.
func (b *Block) EncodeRLP(w io.Writer) error {
	return rlp.Encode(w, &blockBody{b.header.body, b.txs})
}

// DecodeRLP implements rlp.Decoder.
func (b *Block) DecodeRLP(s *rlp.Stream) error {
	var body blockBody
	if err := s.Decode(&body); err != nil {
		return err
	}
	*b = Block{header: &Header{body: body.Header}, txs: body.Txs}
	return nil
}

// TxsRoot computes the hash over transaction ids.
func TxsRoot(txs tx.Transactions) statetrace.Bytes32 {
	ids := make([][]byte, 0, len(txs))
	for _, t := range txs {
		id := t.ID()
		ids = append(ids, id[:])
	}
	return statetrace.Keccak256(ids...)
}

// Builder to make it easy to build a block object.
type Builder struct {
	headerBody headerBody
	txs        tx.Transactions
}

// Index set the block height.
func (b *Builder) Index(i uint32) *Builder {
	b.headerBody.Index = i
	return b
}

// PrevHash set the parent hash.
func (b *Builder) PrevHash(h statetrace.Bytes32) *Builder {
	b.headerBody.PrevHash = h
	return b
}

// Timestamp set timestamp.
func (b *Builder) Timestamp(ts uint64) *Builder {
	b.headerBody.Timestamp = ts
	return b
}

// Nonce set nonce.
func (b *Builder) Nonce(n uint64) *Builder {
	b.headerBody.Nonce = n
	return b
}

// Transaction add a transaction.
func (b *Builder) Transaction(t *tx.Transaction) *Builder {
	b.txs = append(b.txs, t)
	return b
}

// Build build a block object.
func (b *Builder) Build() *Block {
	body := b.headerBody
	body.TxsRoot = TxsRoot(b.txs)
	return &Block{
		header: &Header{body: body},
		txs:    append(tx.Transactions(nil), b.txs...),
	}
}
