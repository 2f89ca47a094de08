// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package block_test

import (
	"testing"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/miniBamboo/statetrace/block"
	"github.com/miniBamboo/statetrace/statetrace"
	"github.com/miniBamboo/statetrace/tx"
	"github.com/stretchr/testify/assert"
)

func TestBlock(t *testing.T) {
	tx1 := new(tx.Builder).Nonce(1).SystemFee(100).Script([]byte{0x11}).Build()
	tx2 := new(tx.Builder).Nonce(2).SystemFee(200).Script([]byte{0x12}).Build()
	parent := statetrace.Keccak256([]byte("parent"))

	blk := new(block.Builder).
		Index(42).
		PrevHash(parent).
		Timestamp(1234).
		Nonce(9).
		Transaction(tx1).
		Transaction(tx2).
		Build()

	assert.Equal(t, uint32(42), blk.Index())
	assert.Equal(t, parent, blk.Header().PrevHash())
	assert.Equal(t, uint64(1234), blk.Header().Timestamp())
	assert.Equal(t, block.TxsRoot(tx.Transactions{tx1, tx2}), blk.Header().TxsRoot())
	assert.Len(t, blk.Transactions(), 2)

	data, err := rlp.EncodeToBytes(blk)
	assert.Nil(t, err)

	var decoded block.Block
	assert.Nil(t, rlp.DecodeBytes(data, &decoded))
	assert.Equal(t, blk.Hash(), decoded.Hash())
	assert.Equal(t, tx2.ID(), decoded.Transactions()[1].ID())
}

func TestHashDependsOnTransactions(t *testing.T) {
	tx1 := new(tx.Builder).Nonce(1).Build()
	a := new(block.Builder).Index(1).Build()
	b := new(block.Builder).Index(1).Transaction(tx1).Build()

	assert.NotEqual(t, a.Hash(), b.Hash())
}
