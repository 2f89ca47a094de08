// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package statetrace

// Constants of the execution host.
const (
	// SystemGasLimit is the budget of the pre-block and post-block trigger scripts.
	SystemGasLimit int64 = 20000000

	// MaxInvocationDepth bounds nested contract calls.
	MaxInvocationDepth = 64
	// MaxStackSize bounds every evaluation stack.
	MaxStackSize = 2048

	// StoragePutGas is charged per stored byte on top of the syscall price.
	StoragePutGas int64 = 10
)

var (
	// ManagementContract owns contract states.
	ManagementContract = Hash160Of([]byte("ContractManagement"))
	// LedgerContract owns block bookkeeping written by system scripts.
	LedgerContract = Hash160Of([]byte("Ledger"))
)
