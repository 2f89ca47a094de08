// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package genesis

import (
	"encoding/binary"

	"github.com/miniBamboo/statetrace/block"
	"github.com/miniBamboo/statetrace/chain"
	"github.com/miniBamboo/statetrace/runtime"
	"github.com/miniBamboo/statetrace/statetrace"
	"github.com/miniBamboo/statetrace/storage"
	"github.com/pkg/errors"
)

// Genesis to build genesis block.
type Genesis struct {
	builder *Builder
	id      statetrace.Bytes32
	name    string
}

// Build writes the genesis state into repo and appends block 0.
func (g *Genesis) Build(repo *chain.Repository) (*block.Block, error) {
	if repo.BestBlock() != nil {
		return nil, errors.New("repository already initialized")
	}
	blk, err := g.builder.Build(repo.State())
	if err != nil {
		return nil, err
	}
	if blk.Hash() != g.id {
		panic("built genesis ID incorrect")
	}
	if err := repo.AddBlock(blk); err != nil {
		return nil, err
	}
	return blk, nil
}

// ID returns genesis block ID.
func (g *Genesis) ID() statetrace.Bytes32 {
	return g.id
}

// Name returns network name.
func (g *Genesis) Name() string {
	return g.name
}

// Builder helper to build genesis block.
type Builder struct {
	timestamp uint64
	nonce     uint64
	stateFns  []func(store storage.Store) error
}

// Timestamp set timestamp.
func (b *Builder) Timestamp(t uint64) *Builder {
	b.timestamp = t
	return b
}

// Nonce set nonce.
func (b *Builder) Nonce(n uint64) *Builder {
	b.nonce = n
	return b
}

// State add a state initialization func.
func (b *Builder) State(fn func(store storage.Store) error) *Builder {
	b.stateFns = append(b.stateFns, fn)
	return b
}

// ComputeID compute genesis ID.
func (b *Builder) ComputeID() statetrace.Bytes32 {
	return b.block().Hash()
}

func (b *Builder) block() *block.Block {
	return new(block.Builder).
		Index(0).
		Timestamp(b.timestamp).
		Nonce(b.nonce).
		Build()
}

// Build runs the state funcs on a staged view of store, initializes the
// ledger keys the system scripts read and returns block 0.
func (b *Builder) Build(store storage.Store) (*block.Block, error) {
	staged := storage.Clone(store)
	for _, fn := range b.stateFns {
		if err := fn(staged); err != nil {
			return nil, errors.WithMessage(err, "state func")
		}
	}
	var index [4]byte
	binary.BigEndian.PutUint32(index[:], 0)
	ledger := func(key []byte) []byte {
		return statetrace.StorageKey{Contract: statetrace.LedgerContract, Key: key}.Encode()
	}
	if err := staged.Put(ledger(runtime.CurrentBlockKey), index[:]); err != nil {
		return nil, err
	}
	if err := staged.Put(ledger(runtime.PersistedCountKey), []byte{1}); err != nil {
		return nil, err
	}
	if err := staged.Commit(); err != nil {
		return nil, err
	}
	return b.block(), nil
}
