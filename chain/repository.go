// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package chain

import (
	"context"
	"encoding/binary"
	"path/filepath"
	"sync"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/inconshreveable/log15"
	"github.com/miniBamboo/statetrace/block"
	"github.com/miniBamboo/statetrace/runtime"
	"github.com/miniBamboo/statetrace/statetrace"
	"github.com/miniBamboo/statetrace/storage"
	"github.com/miniBamboo/statetrace/vm"
	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
)

var log = log15.New("pkg", "chain")

var (
	blockPrefix = []byte("b") // (prefix, hash) -> rlp(block)
	indexPrefix = []byte("i") // (prefix, index) -> hash
	bestKey     = []byte("best")
)

// Repository stores blocks and the live state.
type Repository struct {
	blocks *storage.LevelStore
	state  *storage.LevelStore

	lock      sync.Mutex
	best      *block.Block
	persistMu sync.Mutex
}

// Open opens or creates a repository in dir.
func Open(dir string) (*Repository, error) {
	blocks, err := storage.OpenLevelStore(filepath.Join(dir, "blocks"))
	if err != nil {
		return nil, errors.WithMessage(err, "open blocks")
	}
	state, err := storage.OpenLevelStore(filepath.Join(dir, "state"))
	if err != nil {
		blocks.Close()
		return nil, errors.WithMessage(err, "open state")
	}
	return newRepository(blocks, state)
}

// NewMem creates an in-memory repository.
func NewMem() *Repository {
	repo, err := newRepository(storage.NewMemStore(), storage.NewMemStore())
	if err != nil {
		// an empty memory store has no best block to load
		panic(err)
	}
	return repo
}

func newRepository(blocks, state *storage.LevelStore) (*Repository, error) {
	repo := &Repository{blocks: blocks, state: state}
	hash, err := blocks.Get(bestKey)
	if err != nil {
		if storage.IsNotFound(err) {
			return repo, nil
		}
		return nil, err
	}
	h, err := statetrace.BytesToBytes32(hash)
	if err != nil {
		return nil, err
	}
	if repo.best, err = repo.BlockByHash(h); err != nil {
		return nil, errors.WithMessage(err, "load best block")
	}
	return repo, nil
}

// Close releases both stores.
func (r *Repository) Close() error {
	err := r.blocks.Close()
	if serr := r.state.Close(); err == nil {
		err = serr
	}
	return err
}

// State returns the live state store.
func (r *Repository) State() storage.Store {
	return r.state
}

// BestBlock returns the latest block, or nil before genesis.
func (r *Repository) BestBlock() *block.Block {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.best
}

// BlockByHash returns the block with hash.
func (r *Repository) BlockByHash(hash statetrace.Bytes32) (*block.Block, error) {
	data, err := r.blocks.Get(blockKey(hash))
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, statetrace.NewNotFoundError("block", hash)
		}
		return nil, err
	}
	var blk block.Block
	if err := rlp.DecodeBytes(data, &blk); err != nil {
		return nil, errors.WithMessage(err, "decode block")
	}
	return &blk, nil
}

// BlockByIndex returns the block at index.
func (r *Repository) BlockByIndex(index uint32) (*block.Block, error) {
	hash, err := r.blocks.Get(indexKey(index))
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, statetrace.NewNotFoundError("block", index)
		}
		return nil, err
	}
	h, err := statetrace.BytesToBytes32(hash)
	if err != nil {
		return nil, err
	}
	return r.BlockByHash(h)
}

// ContractHashByID resolves a deployed contract id against the live state.
func (r *Repository) ContractHashByID(id int32) (statetrace.Hash160, error) {
	if id < 0 {
		return statetrace.Hash160{}, statetrace.NewNotFoundError("contract", id)
	}
	return vm.GetContractHash(r.state, uint32(id))
}

// AddBlock appends blk without executing it. It must extend the best block.
func (r *Repository) AddBlock(blk *block.Block) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if r.best == nil {
		if blk.Index() != 0 {
			return statetrace.NewValidationError("genesis index", 0, blk.Index())
		}
	} else {
		if blk.Index() != r.best.Index()+1 {
			return statetrace.NewValidationError("block index", r.best.Index()+1, blk.Index())
		}
		if blk.Header().PrevHash() != r.best.Hash() {
			return statetrace.NewValidationError("parent hash", r.best.Hash(), blk.Header().PrevHash())
		}
	}

	data, err := rlp.EncodeToBytes(blk)
	if err != nil {
		return err
	}
	hash := blk.Hash()
	batch := new(leveldb.Batch)
	batch.Put(blockKey(hash), data)
	batch.Put(indexKey(blk.Index()), hash[:])
	batch.Put(bestKey, hash[:])
	if err := r.blocks.Write(batch); err != nil {
		return err
	}
	r.best = blk
	log.Debug("added block", "index", blk.Index(), "hash", hash)
	return nil
}

// Persist executes blk against the live state and appends it.
func (r *Repository) Persist(ctx context.Context, blk *block.Block, provider runtime.EngineProvider) (*runtime.BlockReport, error) {
	return r.PersistWith(ctx, blk, provider, nil)
}

// PersistWith is Persist with the live state seen through wrap, which may
// be nil. Phases run on a block level overlay of the wrapped state, so only
// reads of pre-block state reach the wrapper.
func (r *Repository) PersistWith(ctx context.Context, blk *block.Block, provider runtime.EngineProvider, wrap func(storage.Store) storage.Store) (*runtime.BlockReport, error) {
	r.persistMu.Lock()
	defer r.persistMu.Unlock()

	stage, err := r.Stage(ctx, blk, provider, wrap)
	if err != nil {
		return nil, err
	}
	if _, err := stage.Commit(); err != nil {
		return nil, err
	}
	log.Info("persisted block", "index", blk.Index(), "txs", len(blk.Transactions()), "faulted", stage.Report().Faulted())
	return stage.Report(), nil
}

// Stage executes blk and returns its uncommitted changes.
func (r *Repository) Stage(ctx context.Context, blk *block.Block, provider runtime.EngineProvider, wrap func(storage.Store) storage.Store) (*Stage, error) {
	if best := r.BestBlock(); best == nil || blk.Index() != best.Index()+1 {
		expected := uint32(0)
		if best != nil {
			expected = best.Index() + 1
		}
		return nil, statetrace.NewValidationError("block index", expected, blk.Index())
	}

	var base storage.Store = r.state
	if wrap != nil {
		base = wrap(base)
	}
	blockSnap := storage.Clone(base)
	report, err := runtime.ProcessBlock(ctx, provider, blockSnap, blk)
	if err != nil {
		return nil, err
	}
	return &Stage{
		blk:    blk,
		report: report,
		commits: []func() error{
			blockSnap.Commit,
			func() error { return r.AddBlock(blk) },
		},
	}, nil
}

func blockKey(hash statetrace.Bytes32) []byte {
	return append(append([]byte(nil), blockPrefix...), hash[:]...)
}

func indexKey(index uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], index)
	return append(append([]byte(nil), indexPrefix...), b[:]...)
}
