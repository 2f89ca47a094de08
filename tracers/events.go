// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package tracers

import (
	"github.com/miniBamboo/statetrace/statetrace"
	"github.com/miniBamboo/statetrace/vm"
)

// OpCodeEvent is one executed instruction.
type OpCodeEvent struct {
	ContractHash       statetrace.Hash160
	InstructionPointer int
	OpCode             vm.OpCode
	Operand            []byte
	GasConsumed        int64
	StackDepth         int
	Order              uint64
}

// SyscallEvent is one interop service invocation.
type SyscallEvent struct {
	ContractHash statetrace.Hash160
	SyscallName  string
	GasCost      int64
	Order        uint64
}

// ContractCallEvent is one loaded execution context. Success and
// GasConsumed are filled when the context unloads; a context that never
// unloads (fault) stays unsuccessful with unknown gas.
type ContractCallEvent struct {
	CallerHash  *statetrace.Hash160
	CalleeHash  statetrace.Hash160
	MethodName  string
	CallDepth   int
	Order       uint64
	Success     bool
	GasConsumed *int64
}

// StorageEvent is a storage read or write.
type StorageEvent struct {
	ContractHash statetrace.Hash160
	Key          []byte
	Value        []byte
	Order        uint64
}

// NotificationEvent is a contract notification.
type NotificationEvent struct {
	ContractHash statetrace.Hash160
	EventName    string
	State        []string
	Order        uint64
}

// LogEvent is a contract log message.
type LogEvent struct {
	ContractHash statetrace.Hash160
	Message      string
	Order        uint64
}
