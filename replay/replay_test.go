// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package replay_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/miniBamboo/statetrace/block"
	"github.com/miniBamboo/statetrace/chain"
	"github.com/miniBamboo/statetrace/genesis"
	"github.com/miniBamboo/statetrace/replay"
	"github.com/miniBamboo/statetrace/snapshot"
	"github.com/miniBamboo/statetrace/statetrace"
	"github.com/miniBamboo/statetrace/tracers"
	"github.com/miniBamboo/statetrace/tx"
	"github.com/miniBamboo/statetrace/vm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type binarySource struct {
	data []byte
}

func (s *binarySource) Load(ctx context.Context) (*snapshot.Snapshot, error) {
	f, err := snapshot.ReadBinary(bytes.NewReader(s.data))
	if err != nil {
		return nil, err
	}
	return snapshot.FromBinary(f), nil
}

func sourceOf(t *testing.T, f *snapshot.BinaryStateFile) *binarySource {
	var buf bytes.Buffer
	require.NoError(t, snapshot.WriteBinary(&buf, f))
	return &binarySource{buf.Bytes()}
}

func callTx(nonce uint64, method string) *tx.Transaction {
	script := vm.NewScriptBuilder().EmitCall(genesis.Counter.Hash, method).Emit(vm.RET).MustScript()
	return new(tx.Builder).Nonce(nonce).SystemFee(10000000).Script(script).Build()
}

// newCaptured persists block 1 on a devnet chain and returns its capture.
func newCaptured(t *testing.T, level tracers.TraceLevel) (*chain.Repository, *replay.Captured) {
	repo := chain.NewMem()
	b0, err := genesis.NewDevnet().Build(repo)
	require.NoError(t, err)

	b1 := new(block.Builder).
		Index(1).
		PrevHash(b0.Hash()).
		Timestamp(b0.Header().Timestamp() + 10).
		Transaction(callTx(1, "increment")).
		Transaction(callTx(2, "fail")).
		Transaction(callTx(3, "increment")).
		Build()
	captured, err := replay.Capture(context.Background(), repo, b1, level)
	require.NoError(t, err)
	return repo, captured
}

func index(i uint32) *uint32 { return &i }

func TestCaptureThenReplayIsClean(t *testing.T) {
	repo, captured := newCaptured(t, tracers.LevelAll)
	defer repo.Close()

	assert.Empty(t, captured.Misses)
	assert.Equal(t, uint32(1), captured.File.BlockIndex)
	assert.NotEmpty(t, captured.File.Entries)
	assert.NotEmpty(t, captured.Recorders)

	r := replay.New(repo, tracers.LevelOpCodes)
	res, err := r.Replay(context.Background(), replay.Request{
		BlockIndex: index(1),
		Source:     sourceOf(t, captured.File),
	})
	require.NoError(t, err)
	assert.True(t, res.Report.Clean(), res.Report.String())
	assert.Equal(t, len(captured.File.Entries), res.Report.Declared)

	require.Len(t, res.Phases.Transactions, 3)
	for i, o := range res.Phases.Transactions {
		assert.Equal(t, captured.Phases.Transactions[i].State, o.State)
		assert.Equal(t, captured.Phases.Transactions[i].GasConsumed, o.GasConsumed)
	}
	assert.Equal(t, vm.Fault, res.Phases.Transactions[1].State)

	var last uint64
	var n int
	for _, rec := range res.Recorders {
		for _, op := range rec.OpCodeTraces() {
			if n > 0 {
				assert.True(t, op.Order > last)
			}
			last = op.Order
			n++
		}
	}
	assert.True(t, n > 0)
}

func TestReplayByHash(t *testing.T) {
	repo, captured := newCaptured(t, tracers.LevelNone)
	defer repo.Close()

	hash := captured.Block.Hash()
	res, err := replay.New(repo, tracers.LevelNone).Replay(context.Background(), replay.Request{
		BlockHash: &hash,
		Source:    sourceOf(t, captured.File),
	})
	require.NoError(t, err)
	assert.True(t, res.Report.Clean())
	assert.Empty(t, res.Recorders)
}

func TestReplayMissingKey(t *testing.T) {
	repo, captured := newCaptured(t, tracers.LevelNone)
	defer repo.Close()

	counterKey := statetrace.StorageKey{Contract: genesis.Counter.Hash, Key: genesis.CounterKey}
	f := &snapshot.BinaryStateFile{BlockIndex: 1}
	for _, e := range captured.File.Entries {
		if !bytes.Equal(e.StorageKey().Encode(), counterKey.Encode()) {
			f.Entries = append(f.Entries, e)
		}
	}
	require.Len(t, f.Entries, len(captured.File.Entries)-1)

	res, err := replay.New(repo, tracers.LevelNone).Replay(context.Background(), replay.Request{
		BlockIndex: index(1),
		Source:     sourceOf(t, f),
	})
	require.NoError(t, err)
	assert.False(t, res.Report.Clean())
	assert.Equal(t, []statetrace.StorageKey{counterKey}, res.Report.Misses)
	assert.Empty(t, res.Report.NotRead)
	assert.Empty(t, res.Report.UnexpectedHits)
}

func TestReplayExtraKey(t *testing.T) {
	repo, captured := newCaptured(t, tracers.LevelNone)
	defer repo.Close()

	extra := snapshot.BinaryStateEntry{
		ContractHash: genesis.Counter.Hash,
		Key:          []byte("never read"),
		Value:        []byte{1},
		ReadOrder:    int32(len(captured.File.Entries)),
	}
	f := &snapshot.BinaryStateFile{
		BlockIndex: 1,
		Entries:    append(append([]snapshot.BinaryStateEntry(nil), captured.File.Entries...), extra),
	}
	res, err := replay.New(repo, tracers.LevelNone).Replay(context.Background(), replay.Request{
		BlockIndex: index(1),
		Source:     sourceOf(t, f),
	})
	require.NoError(t, err)
	assert.Equal(t, []statetrace.StorageKey{extra.StorageKey()}, res.Report.NotRead)
	assert.Empty(t, res.Report.Misses)
}

func TestReplayFatalErrors(t *testing.T) {
	repo, captured := newCaptured(t, tracers.LevelNone)
	defer repo.Close()
	r := replay.New(repo, tracers.LevelNone)
	ctx := context.Background()

	f := *captured.File
	f.BlockIndex = 0
	res, err := r.Replay(ctx, replay.Request{BlockIndex: index(1), Source: sourceOf(t, &f)})
	assert.True(t, statetrace.IsValidationError(err))
	assert.Nil(t, res)

	res, err = r.Replay(ctx, replay.Request{BlockIndex: index(9), Source: sourceOf(t, captured.File)})
	assert.True(t, statetrace.IsNotFound(err))
	assert.Nil(t, res)

	res, err = r.Replay(ctx, replay.Request{BlockIndex: index(1), Source: &binarySource{[]byte("NSBR\x02\x00")}})
	assert.True(t, statetrace.IsFormatError(err))
	assert.Nil(t, res)

	_, err = r.Replay(ctx, replay.Request{BlockIndex: index(1)})
	assert.Error(t, err)
}

func TestReplayAll(t *testing.T) {
	repo, captured := newCaptured(t, tracers.LevelNone)
	defer repo.Close()

	src := sourceOf(t, captured.File)
	reqs := make([]replay.Request, 6)
	for i := range reqs {
		reqs[i] = replay.Request{BlockIndex: index(1), Source: src}
	}
	reqs[3].BlockIndex = index(7)

	var done int
	results, errs := replay.New(repo, tracers.LevelAll).ReplayAll(context.Background(), reqs, 3, func(int) { done++ })
	assert.Equal(t, len(reqs), done)
	for i := range reqs {
		if i == 3 {
			assert.True(t, statetrace.IsNotFound(errs[i]))
			continue
		}
		require.NoError(t, errs[i])
		assert.True(t, results[i].Report.Clean(), results[i].Report.String())
	}
}
