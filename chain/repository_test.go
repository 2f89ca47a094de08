// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package chain_test

import (
	"context"
	"io/ioutil"
	"os"
	"testing"

	"github.com/miniBamboo/statetrace/block"
	"github.com/miniBamboo/statetrace/chain"
	"github.com/miniBamboo/statetrace/genesis"
	"github.com/miniBamboo/statetrace/runtime"
	"github.com/miniBamboo/statetrace/statetrace"
	"github.com/miniBamboo/statetrace/tx"
	"github.com/miniBamboo/statetrace/vm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func callTx(nonce uint64, method string) *tx.Transaction {
	script := vm.NewScriptBuilder().EmitCall(genesis.Counter.Hash, method).Emit(vm.RET).MustScript()
	return new(tx.Builder).Nonce(nonce).SystemFee(10000000).Script(script).Build()
}

func nextBlock(parent *block.Block, txs ...*tx.Transaction) *block.Block {
	b := new(block.Builder).
		Index(parent.Index() + 1).
		PrevHash(parent.Hash()).
		Timestamp(parent.Header().Timestamp() + 10)
	for _, t := range txs {
		b.Transaction(t)
	}
	return b.Build()
}

func counter(t *testing.T, repo *chain.Repository) []byte {
	v, err := repo.State().Get(statetrace.StorageKey{Contract: genesis.Counter.Hash, Key: genesis.CounterKey}.Encode())
	require.NoError(t, err)
	return v
}

func TestPersist(t *testing.T) {
	repo := chain.NewMem()
	defer repo.Close()
	b0, err := genesis.NewDevnet().Build(repo)
	require.NoError(t, err)

	b1 := nextBlock(b0, callTx(1, "increment"), callTx(2, "fail"), callTx(3, "increment"))
	report, err := repo.Persist(context.Background(), b1, nil)
	require.NoError(t, err)

	assert.Equal(t, vm.Halt, report.OnPersist.State)
	assert.Equal(t, vm.Halt, report.PostPersist.State)
	require.Len(t, report.Transactions, 3)
	assert.Equal(t, vm.Halt, report.Transactions[0].State)
	assert.Equal(t, vm.Fault, report.Transactions[1].State)
	assert.Equal(t, 1, report.Faulted())
	assert.Equal(t, []byte{2}, counter(t, repo))

	best := repo.BestBlock()
	assert.Equal(t, b1.Hash(), best.Hash())

	got, err := repo.BlockByIndex(1)
	require.NoError(t, err)
	assert.Equal(t, b1.Hash(), got.Hash())
	assert.Len(t, got.Transactions(), 3)

	got, err = repo.BlockByHash(b1.Hash())
	require.NoError(t, err)
	assert.Equal(t, uint32(1), got.Index())

	_, err = repo.BlockByIndex(5)
	assert.True(t, statetrace.IsNotFound(err))
	_, err = repo.BlockByHash(statetrace.Bytes32{1})
	assert.True(t, statetrace.IsNotFound(err))

	v, err := repo.State().Get(statetrace.StorageKey{Contract: statetrace.LedgerContract, Key: runtime.PersistedCountKey}.Encode())
	require.NoError(t, err)
	assert.Equal(t, []byte{2}, v)
}

func TestPersistRejectsGap(t *testing.T) {
	repo := chain.NewMem()
	defer repo.Close()
	b0, err := genesis.NewDevnet().Build(repo)
	require.NoError(t, err)

	b2 := nextBlock(nextBlock(b0))
	_, err = repo.Persist(context.Background(), b2, nil)
	assert.True(t, statetrace.IsValidationError(err))

	orphan := new(block.Builder).Index(1).Build()
	err = repo.AddBlock(orphan)
	assert.True(t, statetrace.IsValidationError(err), "parent hash")
}

func TestOpenReloadsBest(t *testing.T) {
	dir, err := ioutil.TempDir("", "chain")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	repo, err := chain.Open(dir)
	require.NoError(t, err)
	b0, err := genesis.NewDevnet().Build(repo)
	require.NoError(t, err)
	b1 := nextBlock(b0, callTx(1, "increment"))
	_, err = repo.Persist(context.Background(), b1, nil)
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	repo, err = chain.Open(dir)
	require.NoError(t, err)
	defer repo.Close()
	assert.Equal(t, b1.Hash(), repo.BestBlock().Hash())
	assert.Equal(t, []byte{1}, counter(t, repo))
}
