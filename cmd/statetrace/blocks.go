// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"encoding/json"
	"io"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/miniBamboo/statetrace/block"
	"github.com/miniBamboo/statetrace/tx"
	"github.com/pkg/errors"
)

type jsonTx struct {
	Nonce        math.HexOrDecimal64 `json:"nonce"`
	SystemFee    math.HexOrDecimal64 `json:"systemFee"`
	HighPriority bool                `json:"highPriority"`
	Script       hexutil.Bytes       `json:"script"`
}

// jsonBlock is a block to import. Index and parent come from the chain
// head at import time.
type jsonBlock struct {
	Timestamp    math.HexOrDecimal64 `json:"timestamp"`
	Nonce        math.HexOrDecimal64 `json:"nonce"`
	Transactions []jsonTx            `json:"transactions"`
}

func decodeBlocks(r io.Reader) ([]jsonBlock, error) {
	var blocks []jsonBlock
	if err := json.NewDecoder(r).Decode(&blocks); err != nil {
		return nil, errors.WithMessage(err, "decode blocks")
	}
	for i, b := range blocks {
		for j, t := range b.Transactions {
			if len(t.Script) == 0 {
				return nil, errors.Errorf("blocks[%d].transactions[%d]: empty script", i, j)
			}
		}
	}
	return blocks, nil
}

// build assembles the block on top of parent. A zero timestamp means one
// second after the parent.
func (b *jsonBlock) build(parent *block.Header) *block.Block {
	ts := uint64(b.Timestamp)
	if ts == 0 {
		ts = parent.Timestamp() + 1
	}
	builder := new(block.Builder).
		Index(parent.Index() + 1).
		PrevHash(parent.Hash()).
		Timestamp(ts).
		Nonce(uint64(b.Nonce))
	for _, t := range b.Transactions {
		var features tx.Features
		features.SetHighPriority(t.HighPriority)
		builder.Transaction(new(tx.Builder).
			Nonce(uint64(t.Nonce)).
			SystemFee(uint64(t.SystemFee)).
			Features(features).
			Script(t.Script).
			Build())
	}
	return builder.Build()
}
