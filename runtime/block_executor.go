// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package runtime

import (
	"context"
	"fmt"
	"strings"

	"github.com/miniBamboo/statetrace/block"
	"github.com/miniBamboo/statetrace/statetrace"
	"github.com/miniBamboo/statetrace/storage"
	"github.com/miniBamboo/statetrace/vm"
	"github.com/pkg/errors"
)

// BlockReport collects the terminal state of every phase of a block.
type BlockReport struct {
	Block        *block.Block
	OnPersist    *Output
	Transactions []*Output
	PostPersist  *Output
}

// Faulted returns the number of faulted transactions.
func (r *BlockReport) Faulted() int {
	n := 0
	for _, o := range r.Transactions {
		if o.State == vm.Fault {
			n++
		}
	}
	return n
}

// String implements stringer.
func (r *BlockReport) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "block #%d %v\n", r.Block.Index(), r.Block.Hash())
	writeOutput(&b, "OnPersist", r.OnPersist)
	for i, o := range r.Transactions {
		writeOutput(&b, fmt.Sprintf("tx[%d] %v", i, *o.TxID), o)
	}
	writeOutput(&b, "PostPersist", r.PostPersist)
	return b.String()
}

func writeOutput(b *strings.Builder, name string, o *Output) {
	fmt.Fprintf(b, "  %s: %v gas=%d", name, o.State, o.GasConsumed)
	if o.Fault != "" {
		fmt.Fprintf(b, " fault=%q", o.Fault)
	}
	b.WriteByte('\n')
}

// ProcessBlock runs the pre-block script, each transaction and the
// post-block script against base. Each transaction runs on a fresh clone of
// base; the clone is committed on HALT and dropped on FAULT, so a faulted
// transaction never affects the ones after it.
func ProcessBlock(ctx context.Context, provider EngineProvider, base storage.Store, blk *block.Block) (*BlockReport, error) {
	rt := New(provider, blk)
	report := &BlockReport{Block: blk}

	out, err := rt.Execute(vm.OnPersist, base, OnPersistScript(blk), statetrace.LedgerContract, nil, statetrace.SystemGasLimit)
	if err != nil {
		return nil, err
	}
	report.OnPersist = out
	log.Debug("executed OnPersist", "block", blk.Index(), "state", out.State, "gas", out.GasConsumed)

	for i, t := range blk.Transactions() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		snapshot := storage.Clone(base)
		out, err := rt.Execute(vm.Application, snapshot, t.Script(), statetrace.Hash160Of(t.Script()), t, t.SystemFee())
		if err != nil {
			return nil, err
		}
		if out.State == vm.Halt {
			if err := snapshot.Commit(); err != nil {
				return nil, errors.WithMessage(err, fmt.Sprintf("commit tx %d", i))
			}
			log.Debug("executed tx", "block", blk.Index(), "index", i, "id", t.ID(), "state", out.State, "gas", out.GasConsumed)
		} else {
			log.Info("tx faulted", "block", blk.Index(), "index", i, "id", t.ID(), "gas", out.GasConsumed, "fault", out.Fault)
		}
		report.Transactions = append(report.Transactions, out)
	}

	out, err = rt.Execute(vm.PostPersist, base, PostPersistScript(), statetrace.LedgerContract, nil, statetrace.SystemGasLimit)
	if err != nil {
		return nil, err
	}
	report.PostPersist = out
	log.Debug("executed PostPersist", "block", blk.Index(), "state", out.State, "gas", out.GasConsumed)
	return report, nil
}
