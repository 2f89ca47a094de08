// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package replay

import (
	"context"
	"sync"

	"github.com/inconshreveable/log15"
	"github.com/miniBamboo/statetrace/block"
	"github.com/miniBamboo/statetrace/capture"
	"github.com/miniBamboo/statetrace/runtime"
	"github.com/miniBamboo/statetrace/snapshot"
	"github.com/miniBamboo/statetrace/statetrace"
	"github.com/miniBamboo/statetrace/storage"
	"github.com/miniBamboo/statetrace/tracers"
	"github.com/pkg/errors"
)

var log = log15.New("pkg", "replay")

// DefaultCacheSize is the read cache size of a replay store.
const DefaultCacheSize = 4096

// BlockReader resolves blocks.
type BlockReader interface {
	BlockByHash(hash statetrace.Bytes32) (*block.Block, error)
	BlockByIndex(index uint32) (*block.Block, error)
}

// Request names the block to replay and the snapshot to replay it from.
// BlockHash wins over BlockIndex when both are set.
type Request struct {
	BlockHash  *statetrace.Bytes32
	BlockIndex *uint32
	Source     snapshot.Source
}

// Result is the outcome of a fully completed replay.
type Result struct {
	Block     *block.Block
	Phases    *runtime.BlockReport
	Report    *capture.Report
	Recorders []*tracers.Recorder
}

// Replayer replays blocks against snapshot seeded stores.
type Replayer struct {
	blocks    BlockReader
	level     tracers.TraceLevel
	cacheSize int
}

// New creates a replayer. A level other than LevelNone records traces of
// every phase.
func New(blocks BlockReader, level tracers.TraceLevel) *Replayer {
	return &Replayer{blocks: blocks, level: level, cacheSize: DefaultCacheSize}
}

// SetCacheSize sets the read cache size of replay stores.
func (r *Replayer) SetCacheSize(size int) {
	if size > 0 {
		r.cacheSize = size
	}
}

func (r *Replayer) resolve(req *Request) (*block.Block, error) {
	switch {
	case req.BlockHash != nil:
		return r.blocks.BlockByHash(*req.BlockHash)
	case req.BlockIndex != nil:
		return r.blocks.BlockByIndex(*req.BlockIndex)
	}
	return nil, errors.New("no block specified")
}

// Replay re-executes the requested block against a fresh store holding
// only the snapshot, then compares the reads with the snapshot's keys.
// Any error aborts the whole replay and no report is produced.
func (r *Replayer) Replay(ctx context.Context, req Request) (*Result, error) {
	if req.Source == nil {
		return nil, errors.New("no snapshot source")
	}
	blk, err := r.resolve(&req)
	if err != nil {
		return nil, err
	}
	snap, err := req.Source.Load(ctx)
	if err != nil {
		return nil, errors.WithMessage(err, "load snapshot")
	}
	if snap.Height != blk.Index() {
		return nil, statetrace.NewValidationError("snapshot height", blk.Index(), snap.Height)
	}
	if snap.Hash != nil && *snap.Hash != blk.Hash() {
		return nil, statetrace.NewValidationError("snapshot block hash", blk.Hash(), *snap.Hash)
	}

	base := storage.NewMemStore()
	defer base.Close()
	if err := snap.Seed(base); err != nil {
		return nil, errors.WithMessage(err, "seed store")
	}
	cached := storage.NewCachedStore(base, r.cacheSize)
	defer cached.Purge()

	scope := capture.NewScope()
	session := capture.NewSession()
	guard := scope.Enter(session)
	defer guard.Exit()

	provider := r.provider()
	phases, err := runtime.ProcessBlock(ctx, provider, storage.Clone(capture.NewStore(cached, scope)), blk)
	if err != nil {
		return nil, errors.WithMessage(err, "process block")
	}
	guard.Exit()

	logPhases(phases)
	result := &Result{
		Block:  blk,
		Phases: phases,
		Report: capture.Compare(snap.Keys(), session),
	}
	if p, ok := provider.(*tracers.Provider); ok {
		result.Recorders = p.Recorders()
	}
	log.Info("replayed block", "index", blk.Index(), "hash", blk.Hash(), "clean", result.Report.Clean(),
		"declared", result.Report.Declared, "read", result.Report.Hits)
	return result, nil
}

func (r *Replayer) provider() runtime.EngineProvider {
	if r.level == tracers.LevelNone {
		return runtime.DefaultProvider{}
	}
	return tracers.NewProvider(r.level, nil)
}

func logPhases(phases *runtime.BlockReport) {
	log.Debug("replayed OnPersist", "state", phases.OnPersist.State, "gas", phases.OnPersist.GasConsumed)
	for i, o := range phases.Transactions {
		log.Info("replayed tx", "index", i, "id", o.TxID, "state", o.State, "gas", o.GasConsumed, "fault", o.Fault)
	}
	log.Debug("replayed PostPersist", "state", phases.PostPersist.State, "gas", phases.PostPersist.GasConsumed)
}

// ReplayAll replays reqs on up to workers goroutines. Results and errors
// are indexed like reqs. done, if not nil, is called after each replay.
func (r *Replayer) ReplayAll(ctx context.Context, reqs []Request, workers int, done func(i int)) ([]*Result, []error) {
	if workers < 1 {
		workers = 1
	}
	results := make([]*Result, len(reqs))
	errs := make([]error, len(reqs))

	jobs := make(chan int)
	var (
		wg   sync.WaitGroup
		lock sync.Mutex
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i], errs[i] = r.Replay(ctx, reqs[i])
				if done != nil {
					lock.Lock()
					done(i)
					lock.Unlock()
				}
			}
		}()
	}
	for i := range reqs {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return results, errs
}
