// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package tracers

import (
	"fmt"

	"github.com/inconshreveable/log15"
	"github.com/miniBamboo/statetrace/statetrace"
	"github.com/miniBamboo/statetrace/vm"
)

var log = log15.New("pkg", "tracers")

// Status is the lifecycle state of a tracing engine.
type Status byte

// Engine statuses.
const (
	Created Status = iota
	Executing
	Halted
	Faulted
	Disposed
)

func (s Status) String() string {
	switch s {
	case Created:
		return "created"
	case Executing:
		return "executing"
	case Halted:
		return "halted"
	case Faulted:
		return "faulted"
	case Disposed:
		return "disposed"
	}
	return fmt.Sprintf("Status(%d)", byte(s))
}

// Engine is a vm.Engine whose execution is recorded. Events are accepted
// only while Executing; the recorder is frozen once the engine halts or
// faults and stays readable until and after disposal.
type Engine struct {
	*vm.Engine

	level    TraceLevel
	recorder *Recorder
	hook     *Hook
	status   Status
	shared   bool // recorder outlives this engine
}

// NewEngine creates a tracing engine writing into recorder. If cfg carries
// a diagnostic, the engine's hook and that diagnostic are composed.
func NewEngine(recorder *Recorder, level TraceLevel, cfg vm.Config) (*Engine, error) {
	if recorder == nil {
		return nil, statetrace.ErrNilRecorder
	}
	e := &Engine{level: level, recorder: recorder}

	hook := findHook(cfg.Diagnostic)
	if hook == nil || hook.recorder != recorder {
		hook = NewHook(recorder)
		if cfg.Diagnostic != nil {
			cfg.Diagnostic = NewComposite(hook, cfg.Diagnostic)
		} else {
			cfg.Diagnostic = hook
		}
	}
	hook.nextGate = func() bool { return e.status == Executing }
	e.hook = hook
	cfg.Hooks = chainHooks(hook.interop(), cfg.Hooks)

	e.Engine = vm.NewEngine(cfg)
	return e, nil
}

// Level returns the active trace level.
func (e *Engine) Level() TraceLevel { return e.level }

// Recorder returns the recorder for post-execution inspection.
func (e *Engine) Recorder() *Recorder { return e.recorder }

// Status returns the lifecycle status.
func (e *Engine) Status() Status { return e.status }

// LoadScript starts execution of the engine: loading the entry context is
// the first recorded call.
func (e *Engine) LoadScript(script []byte, hash statetrace.Hash160) error {
	if e.status == Created {
		e.status = Executing
	}
	return e.Engine.LoadScript(script, hash)
}

// Execute runs the engine and freezes the recorder at the terminal state.
func (e *Engine) Execute() vm.VMState {
	if e.status != Created && e.status != Executing {
		return e.Engine.State()
	}
	e.status = Executing
	state := e.Engine.Execute()
	switch state {
	case vm.Halt:
		e.status = Halted
	case vm.Fault:
		e.status = Faulted
	}
	if state == vm.Halt || state == vm.Fault {
		if !e.shared {
			e.recorder.Freeze()
		}
	}
	return state
}

// Dispose releases the engine.
func (e *Engine) Dispose() {
	if e.status == Disposed {
		return
	}
	e.Engine.Dispose()
	e.status = Disposed
}

// chainHooks calls a then b for every hook set in either.
func chainHooks(a, b *vm.Hooks) *vm.Hooks {
	if b == nil {
		return a
	}
	return &vm.Hooks{
		OnSyscall: func(c statetrace.Hash160, name string, price int64) {
			if a.OnSyscall != nil {
				a.OnSyscall(c, name, price)
			}
			if b.OnSyscall != nil {
				b.OnSyscall(c, name, price)
			}
		},
		OnNotify: func(c statetrace.Hash160, name string, state []vm.StackItem) {
			if a.OnNotify != nil {
				a.OnNotify(c, name, state)
			}
			if b.OnNotify != nil {
				b.OnNotify(c, name, state)
			}
		},
		OnLog: func(c statetrace.Hash160, message string) {
			if a.OnLog != nil {
				a.OnLog(c, message)
			}
			if b.OnLog != nil {
				b.OnLog(c, message)
			}
		},
		OnStorageRead: func(c statetrace.Hash160, key, value []byte) {
			if a.OnStorageRead != nil {
				a.OnStorageRead(c, key, value)
			}
			if b.OnStorageRead != nil {
				b.OnStorageRead(c, key, value)
			}
		},
		OnStorageWrite: func(c statetrace.Hash160, key, value []byte) {
			if a.OnStorageWrite != nil {
				a.OnStorageWrite(c, key, value)
			}
			if b.OnStorageWrite != nil {
				b.OnStorageWrite(c, key, value)
			}
		},
	}
}
