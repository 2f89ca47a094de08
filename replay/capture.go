// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package replay

import (
	"context"

	"github.com/miniBamboo/statetrace/block"
	"github.com/miniBamboo/statetrace/capture"
	"github.com/miniBamboo/statetrace/runtime"
	"github.com/miniBamboo/statetrace/snapshot"
	"github.com/miniBamboo/statetrace/statetrace"
	"github.com/miniBamboo/statetrace/storage"
	"github.com/miniBamboo/statetrace/tracers"
)

// Persister executes blocks against live state, exposing that state through
// a wrapper.
type Persister interface {
	PersistWith(ctx context.Context, blk *block.Block, provider runtime.EngineProvider, wrap func(storage.Store) storage.Store) (*runtime.BlockReport, error)
}

// Captured is the outcome of a live capture.
type Captured struct {
	Block     *block.Block
	Phases    *runtime.BlockReport
	File      *snapshot.BinaryStateFile
	Misses    []statetrace.StorageKey
	Recorders []*tracers.Recorder
}

// Capture persists blk while recording every read of pre-block state. The
// reads form the snapshot needed to replay blk.
func Capture(ctx context.Context, chain Persister, blk *block.Block, level tracers.TraceLevel) (*Captured, error) {
	scope := capture.NewScope()
	session := capture.NewSession()
	guard := scope.Enter(session)
	defer guard.Exit()

	var provider runtime.EngineProvider = runtime.DefaultProvider{}
	tp := tracers.NewProvider(level, nil)
	if level != tracers.LevelNone {
		provider = tp
	}
	phases, err := chain.PersistWith(ctx, blk, provider, func(s storage.Store) storage.Store {
		return capture.NewStore(s, scope)
	})
	if err != nil {
		return nil, err
	}
	guard.Exit()

	out := &Captured{
		Block:  blk,
		Phases: phases,
		File:   snapshot.FromReads(blk.Index(), session.Reads()),
		Misses: session.Misses(),
	}
	if level != tracers.LevelNone {
		out.Recorders = tp.Recorders()
	}
	log.Info("captured block", "index", blk.Index(), "reads", len(out.File.Entries), "misses", len(out.Misses))
	return out, nil
}
