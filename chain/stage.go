// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package chain

import (
	"github.com/miniBamboo/statetrace/block"
	"github.com/miniBamboo/statetrace/runtime"
	"github.com/miniBamboo/statetrace/statetrace"
)

// Stage holds the changes of one executed block until they are committed
// to the repository.
type Stage struct {
	blk     *block.Block
	report  *runtime.BlockReport
	commits []func() error
}

// Hash returns the hash of the staged block.
func (s *Stage) Hash() statetrace.Bytes32 {
	return s.blk.Hash()
}

// Report returns the execution report of the staged block.
func (s *Stage) Report() *runtime.BlockReport {
	return s.report
}

// Commit writes the state changes, then the block.
func (s *Stage) Commit() (statetrace.Bytes32, error) {
	for _, c := range s.commits {
		if err := c(); err != nil {
			return statetrace.Bytes32{}, &Error{err}
		}
	}
	return s.blk.Hash(), nil
}

// Error is returned when a stage fails to commit.
type Error struct {
	cause error
}

func (e *Error) Error() string {
	return "chain: " + e.cause.Error()
}

// Cause returns the underlying error.
func (e *Error) Cause() error {
	return e.cause
}
