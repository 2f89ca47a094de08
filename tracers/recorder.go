// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package tracers

import (
	"sync/atomic"

	"github.com/miniBamboo/statetrace/statetrace"
	"github.com/miniBamboo/statetrace/vm"
)

// Sequence hands out the per-block event order. Share one sequence among
// the recorders of a block to get a single ordering across its phases.
type Sequence struct {
	next uint64
}

// Next returns the next order value.
func (s *Sequence) Next() uint64 {
	return atomic.AddUint64(&s.next, 1) - 1
}

// Recorder collects trace events of one execution. It is append-only and
// called inline with VM stepping, so it is not safe for concurrent use.
type Recorder struct {
	level  TraceLevel
	seq    *Sequence
	frozen bool

	opcodes       []OpCodeEvent
	syscalls      []SyscallEvent
	calls         []ContractCallEvent
	reads         []StorageEvent
	writes        []StorageEvent
	notifications []NotificationEvent
	logs          []LogEvent
}

// NewRecorder creates a recorder. A nil seq gives the recorder its own.
func NewRecorder(level TraceLevel, seq *Sequence) *Recorder {
	if seq == nil {
		seq = &Sequence{}
	}
	return &Recorder{level: level, seq: seq}
}

// Level returns the accepted trace level.
func (r *Recorder) Level() TraceLevel { return r.level }

// Freeze stops accepting events.
func (r *Recorder) Freeze() { r.frozen = true }

// Frozen returns whether the recorder stopped accepting events.
func (r *Recorder) Frozen() bool { return r.frozen }

func (r *Recorder) accepts(flag TraceLevel) bool {
	return !r.frozen && r.level.Has(flag)
}

// RecordOpCode records an executed instruction.
func (r *Recorder) RecordOpCode(contract statetrace.Hash160, ip int, op vm.OpCode, operand []byte, gas int64, stackDepth int) {
	if !r.accepts(LevelOpCodes) {
		return
	}
	r.opcodes = append(r.opcodes, OpCodeEvent{
		ContractHash:       contract,
		InstructionPointer: ip,
		OpCode:             op,
		Operand:            cloneBytes(operand),
		GasConsumed:        gas,
		StackDepth:         stackDepth,
		Order:              r.seq.Next(),
	})
}

// RecordSyscall records an interop invocation.
func (r *Recorder) RecordSyscall(contract statetrace.Hash160, name string, gasCost int64) {
	if !r.accepts(LevelSyscalls) {
		return
	}
	r.syscalls = append(r.syscalls, SyscallEvent{contract, name, gasCost, r.seq.Next()})
}

// RecordContractCall records a loaded context and returns its index for
// completion, or -1 when not recorded.
func (r *Recorder) RecordContractCall(caller *statetrace.Hash160, callee statetrace.Hash160, method string, depth int) int {
	if !r.accepts(LevelContractCalls) {
		return -1
	}
	var c *statetrace.Hash160
	if caller != nil {
		h := *caller
		c = &h
	}
	r.calls = append(r.calls, ContractCallEvent{
		CallerHash: c,
		CalleeHash: callee,
		MethodName: method,
		CallDepth:  depth,
		Order:      r.seq.Next(),
	})
	return len(r.calls) - 1
}

// CompleteContractCall sets the outcome of a recorded call.
func (r *Recorder) CompleteContractCall(index int, success bool, gasConsumed int64) {
	if r.frozen || index < 0 || index >= len(r.calls) {
		return
	}
	r.calls[index].Success = success
	r.calls[index].GasConsumed = &gasConsumed
}

// RecordStorageRead records a storage read.
func (r *Recorder) RecordStorageRead(contract statetrace.Hash160, key, value []byte) {
	if !r.accepts(LevelStorage) {
		return
	}
	r.reads = append(r.reads, StorageEvent{contract, cloneBytes(key), cloneBytes(value), r.seq.Next()})
}

// RecordStorageWrite records a storage write; a nil value is a delete.
func (r *Recorder) RecordStorageWrite(contract statetrace.Hash160, key, value []byte) {
	if !r.accepts(LevelStorage) {
		return
	}
	r.writes = append(r.writes, StorageEvent{contract, cloneBytes(key), cloneBytes(value), r.seq.Next()})
}

// RecordNotification records a notification.
func (r *Recorder) RecordNotification(contract statetrace.Hash160, name string, state []vm.StackItem) {
	if !r.accepts(LevelNotifications) {
		return
	}
	s := make([]string, 0, len(state))
	for _, item := range state {
		s = append(s, item.String())
	}
	r.notifications = append(r.notifications, NotificationEvent{contract, name, s, r.seq.Next()})
}

// RecordLog records a log message. Logs share the notifications level.
func (r *Recorder) RecordLog(contract statetrace.Hash160, message string) {
	if !r.accepts(LevelNotifications) {
		return
	}
	r.logs = append(r.logs, LogEvent{contract, message, r.seq.Next()})
}

// OpCodeTraces returns recorded instructions in order.
func (r *Recorder) OpCodeTraces() []OpCodeEvent {
	out := make([]OpCodeEvent, len(r.opcodes))
	for i, ev := range r.opcodes {
		ev.Operand = cloneBytes(ev.Operand)
		out[i] = ev
	}
	return out
}

// SyscallTraces returns recorded syscalls in order.
func (r *Recorder) SyscallTraces() []SyscallEvent {
	return append([]SyscallEvent(nil), r.syscalls...)
}

// ContractCallTraces returns recorded calls in order.
func (r *Recorder) ContractCallTraces() []ContractCallEvent {
	out := make([]ContractCallEvent, len(r.calls))
	for i, c := range r.calls {
		if c.GasConsumed != nil {
			g := *c.GasConsumed
			c.GasConsumed = &g
		}
		out[i] = c
	}
	return out
}

// StorageReadTraces returns recorded reads in order.
func (r *Recorder) StorageReadTraces() []StorageEvent {
	return cloneStorageEvents(r.reads)
}

// StorageWriteTraces returns recorded writes in order.
func (r *Recorder) StorageWriteTraces() []StorageEvent {
	return cloneStorageEvents(r.writes)
}

// NotificationTraces returns recorded notifications in order.
func (r *Recorder) NotificationTraces() []NotificationEvent {
	out := make([]NotificationEvent, len(r.notifications))
	for i, ev := range r.notifications {
		ev.State = append([]string(nil), ev.State...)
		out[i] = ev
	}
	return out
}

// LogTraces returns recorded logs in order.
func (r *Recorder) LogTraces() []LogEvent {
	return append([]LogEvent(nil), r.logs...)
}

// Len returns the total number of recorded events.
func (r *Recorder) Len() int {
	return len(r.opcodes) + len(r.syscalls) + len(r.calls) + len(r.reads) +
		len(r.writes) + len(r.notifications) + len(r.logs)
}

func cloneStorageEvents(events []StorageEvent) []StorageEvent {
	out := make([]StorageEvent, len(events))
	for i, ev := range events {
		ev.Key = cloneBytes(ev.Key)
		ev.Value = cloneBytes(ev.Value)
		out[i] = ev
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte{}, b...)
}
