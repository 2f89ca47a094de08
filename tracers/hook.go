// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package tracers

import (
	"github.com/miniBamboo/statetrace/statetrace"
	"github.com/miniBamboo/statetrace/vm"
)

type callFrame struct {
	index    int
	gasStart int64
}

// hookScope is the per-engine state of a hook. A hook shared by a nested
// engine gets one scope per engine, innermost last.
type hookScope struct {
	engine *vm.Engine
	gate   func() bool

	ip       int
	contract statetrace.Hash160
	gasPre   int64
	frames   []callFrame
}

// Hook is a vm.Diagnostic that writes opcode and contract call events into
// a recorder.
type Hook struct {
	recorder   *Recorder
	scopes     []*hookScope
	nextGate   func() bool
	interopGen *vm.Hooks
}

// NewHook creates a hook writing into recorder.
func NewHook(recorder *Recorder) *Hook {
	return &Hook{recorder: recorder}
}

// Recorder returns the hook's recorder.
func (h *Hook) Recorder() *Recorder { return h.recorder }

func (h *Hook) scope() *hookScope {
	if len(h.scopes) == 0 {
		return nil
	}
	return h.scopes[len(h.scopes)-1]
}

func (h *Hook) open() (*hookScope, bool) {
	s := h.scope()
	if s == nil {
		return nil, false
	}
	return s, s.gate == nil || s.gate()
}

// Initialized implements vm.Diagnostic.
func (h *Hook) Initialized(engine *vm.Engine) {
	h.scopes = append(h.scopes, &hookScope{engine: engine, gate: h.nextGate})
	h.nextGate = nil
}

// ContextLoaded implements vm.Diagnostic.
func (h *Hook) ContextLoaded(ctx *vm.ExecutionContext) {
	s, ok := h.open()
	if s == nil {
		return
	}
	frame := callFrame{index: -1}
	if ok {
		depth := s.engine.InvocationDepth() - 1
		frame.index = h.recorder.RecordContractCall(ctx.CallingHash, ctx.ScriptHash, ctx.Method, depth)
		frame.gasStart = s.engine.GasConsumed()
	}
	s.frames = append(s.frames, frame)
}

// ContextUnloaded implements vm.Diagnostic.
func (h *Hook) ContextUnloaded(ctx *vm.ExecutionContext) {
	s, ok := h.open()
	if s == nil || len(s.frames) == 0 {
		return
	}
	frame := s.frames[len(s.frames)-1]
	s.frames = s.frames[:len(s.frames)-1]
	if ok && frame.index >= 0 {
		h.recorder.CompleteContractCall(frame.index, s.engine.State() != vm.Fault, s.engine.GasConsumed()-frame.gasStart)
	}
}

// PreExecuteInstruction implements vm.Diagnostic.
func (h *Hook) PreExecuteInstruction(instr vm.Instruction) {
	s, ok := h.open()
	if !ok {
		return
	}
	if ctx := s.engine.CurrentContext(); ctx != nil {
		s.ip = ctx.IP
		s.contract = ctx.ScriptHash
	}
	s.gasPre = s.engine.GasConsumed()
}

// PostExecuteInstruction implements vm.Diagnostic. The event carries the
// instruction pointer from before execution and gas and stack depth from
// after it.
func (h *Hook) PostExecuteInstruction(instr vm.Instruction) {
	s, ok := h.open()
	if !ok {
		return
	}
	h.recorder.RecordOpCode(
		s.contract,
		s.ip,
		instr.OpCode,
		instr.Operand,
		s.engine.GasConsumed()-s.gasPre,
		s.engine.StackDepth())
}

// Disposed implements vm.Diagnostic.
func (h *Hook) Disposed() {
	if len(h.scopes) > 0 {
		h.scopes = h.scopes[:len(h.scopes)-1]
	}
}

// interop adapts the recorder to interop hooks.
func (h *Hook) interop() *vm.Hooks {
	if h.interopGen != nil {
		return h.interopGen
	}
	r := h.recorder
	gated := func() bool {
		_, ok := h.open()
		return ok
	}
	h.interopGen = &vm.Hooks{
		OnSyscall: func(contract statetrace.Hash160, name string, price int64) {
			if gated() {
				r.RecordSyscall(contract, name, price)
			}
		},
		OnNotify: func(contract statetrace.Hash160, name string, state []vm.StackItem) {
			if gated() {
				r.RecordNotification(contract, name, state)
			}
		},
		OnLog: func(contract statetrace.Hash160, message string) {
			if gated() {
				r.RecordLog(contract, message)
			}
		},
		OnStorageRead: func(contract statetrace.Hash160, key, value []byte) {
			if gated() {
				r.RecordStorageRead(contract, key, value)
			}
		},
		OnStorageWrite: func(contract statetrace.Hash160, key, value []byte) {
			if gated() {
				r.RecordStorageWrite(contract, key, value)
			}
		},
	}
	return h.interopGen
}
