// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package vm

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/miniBamboo/statetrace/statetrace"
	"github.com/miniBamboo/statetrace/storage"
	"github.com/pkg/errors"
)

// VMState is the execution state of an engine.
type VMState byte

// VM states.
const (
	None VMState = iota
	Halt
	Fault
	Break
)

func (s VMState) String() string {
	switch s {
	case None:
		return "NONE"
	case Halt:
		return "HALT"
	case Fault:
		return "FAULT"
	case Break:
		return "BREAK"
	}
	return fmt.Sprintf("VMState(%d)", byte(s))
}

// TriggerType tells which block phase a script runs in.
type TriggerType byte

// Trigger types.
const (
	OnPersist   TriggerType = 0x01
	PostPersist TriggerType = 0x02
	Application TriggerType = 0x40
)

func (t TriggerType) String() string {
	switch t {
	case OnPersist:
		return "OnPersist"
	case PostPersist:
		return "PostPersist"
	case Application:
		return "Application"
	}
	return fmt.Sprintf("TriggerType(%d)", byte(t))
}

// Diagnostic observes the engine lifecycle. Callbacks run synchronously,
// inline with instruction stepping.
type Diagnostic interface {
	Initialized(engine *Engine)
	ContextLoaded(ctx *ExecutionContext)
	ContextUnloaded(ctx *ExecutionContext)
	PreExecuteInstruction(instr Instruction)
	PostExecuteInstruction(instr Instruction)
	Disposed()
}

// Hooks observe interop activity. Nil fields are skipped.
type Hooks struct {
	OnSyscall      func(contract statetrace.Hash160, name string, price int64)
	OnNotify       func(contract statetrace.Hash160, name string, state []StackItem)
	OnLog          func(contract statetrace.Hash160, message string)
	OnStorageRead  func(contract statetrace.Hash160, key, value []byte)
	OnStorageWrite func(contract statetrace.Hash160, key, value []byte)
}

// Config configures an engine.
type Config struct {
	Trigger    TriggerType
	Store      storage.Store
	GasLimit   int64
	Diagnostic Diagnostic
	Hooks      *Hooks
}

// ExecutionContext is one frame of the invocation stack.
type ExecutionContext struct {
	ScriptHash  statetrace.Hash160
	CallingHash *statetrace.Hash160
	Method      string
	Script      []byte
	IP          int

	stack *Stack
}

// EvaluationStack returns the frame's evaluation stack.
func (c *ExecutionContext) EvaluationStack() *Stack {
	return c.stack
}

// Notification is an event emitted by System.Runtime.Notify.
type Notification struct {
	Contract statetrace.Hash160
	Name     string
	State    []StackItem
}

// Engine executes scripts.
type Engine struct {
	cfg         Config
	state       VMState
	invocation  []*ExecutionContext
	result      Stack
	gasConsumed int64
	faultErr    error
	notes       []Notification
	disposed    bool
}

// NewEngine creates an engine and notifies the diagnostic.
func NewEngine(cfg Config) *Engine {
	e := &Engine{cfg: cfg}
	if cfg.Hooks == nil {
		e.cfg.Hooks = &Hooks{}
	}
	if cfg.Diagnostic != nil {
		cfg.Diagnostic.Initialized(e)
	}
	return e
}

// Trigger returns the trigger type.
func (e *Engine) Trigger() TriggerType { return e.cfg.Trigger }

// State returns the current VM state.
func (e *Engine) State() VMState { return e.state }

// GasConsumed returns gas consumed so far.
func (e *Engine) GasConsumed() int64 { return e.gasConsumed }

// GasLimit returns the fee budget.
func (e *Engine) GasLimit() int64 { return e.cfg.GasLimit }

// FaultError returns the cause of a fault.
func (e *Engine) FaultError() error { return e.faultErr }

// Notifications returns notifications emitted so far.
func (e *Engine) Notifications() []Notification {
	return append([]Notification(nil), e.notes...)
}

// ResultStack returns the items returned by the entry script.
func (e *Engine) ResultStack() *Stack { return &e.result }

// InvocationDepth returns the invocation stack depth.
func (e *Engine) InvocationDepth() int { return len(e.invocation) }

// CurrentContext returns the executing frame, or nil.
func (e *Engine) CurrentContext() *ExecutionContext {
	if len(e.invocation) == 0 {
		return nil
	}
	return e.invocation[len(e.invocation)-1]
}

// StackDepth returns the size of the evaluation stack in use, or of the
// result stack once the invocation stack is empty.
func (e *Engine) StackDepth() int {
	if ctx := e.CurrentContext(); ctx != nil {
		return ctx.stack.Len()
	}
	return e.result.Len()
}

// Store returns the backing store.
func (e *Engine) Store() storage.Store { return e.cfg.Store }

// LoadScript pushes the script as a new frame.
func (e *Engine) LoadScript(script []byte, hash statetrace.Hash160) error {
	_, err := e.loadContext(&ExecutionContext{ScriptHash: hash, Script: script})
	return err
}

func (e *Engine) loadContext(ctx *ExecutionContext) (*ExecutionContext, error) {
	if len(e.invocation) >= statetrace.MaxInvocationDepth {
		return nil, errors.New("max invocation depth exceeded")
	}
	if ctx.stack == nil {
		ctx.stack = &Stack{}
	}
	e.invocation = append(e.invocation, ctx)
	if e.cfg.Diagnostic != nil {
		e.cfg.Diagnostic.ContextLoaded(ctx)
	}
	return ctx, nil
}

func (e *Engine) unloadContext() error {
	ctx := e.invocation[len(e.invocation)-1]
	e.invocation = e.invocation[:len(e.invocation)-1]

	dst := &e.result
	if caller := e.CurrentContext(); caller != nil {
		dst = caller.stack
	}
	for _, item := range ctx.stack.items {
		if err := dst.Push(item); err != nil {
			return err
		}
	}
	if e.cfg.Diagnostic != nil {
		e.cfg.Diagnostic.ContextUnloaded(ctx)
	}
	return nil
}

// AddGas charges gas, failing when the budget is exceeded.
func (e *Engine) AddGas(n int64) error {
	e.gasConsumed += n
	if e.gasConsumed > e.cfg.GasLimit {
		return errors.Errorf("gas limit exceeded: consumed %d, limit %d", e.gasConsumed, e.cfg.GasLimit)
	}
	return nil
}

// Execute runs until the engine halts or faults.
func (e *Engine) Execute() VMState {
	if e.state == Break {
		e.state = None
	}
	for e.state == None {
		if len(e.invocation) == 0 {
			e.state = Halt
			break
		}
		if err := e.step(); err != nil {
			e.faultErr = err
			e.state = Fault
		}
	}
	return e.state
}

// Dispose releases the engine and notifies the diagnostic once.
func (e *Engine) Dispose() {
	if e.disposed {
		return
	}
	e.disposed = true
	if e.cfg.Diagnostic != nil {
		e.cfg.Diagnostic.Disposed()
	}
}

func (e *Engine) step() error {
	ctx := e.CurrentContext()
	if ctx.IP >= len(ctx.Script) {
		return e.unloadContext()
	}
	instr, err := DecodeInstruction(ctx.Script, ctx.IP)
	if err != nil {
		return err
	}
	if e.cfg.Diagnostic != nil {
		e.cfg.Diagnostic.PreExecuteInstruction(instr)
	}
	if err := e.AddGas(instr.OpCode.Price()); err != nil {
		return err
	}
	jumped, err := e.executeInstruction(ctx, instr)
	if err != nil {
		return errors.WithMessage(err, fmt.Sprintf("%v at %d", instr.OpCode, ctx.IP))
	}
	if !jumped {
		ctx.IP += instr.Size
	}
	if e.cfg.Diagnostic != nil {
		e.cfg.Diagnostic.PostExecuteInstruction(instr)
	}
	return nil
}

// executeInstruction applies one instruction. It reports whether IP was
// set explicitly.
func (e *Engine) executeInstruction(ctx *ExecutionContext, instr Instruction) (bool, error) {
	s := ctx.stack
	op := instr.OpCode
	switch {
	case op >= PUSH0 && op <= PUSH16:
		return false, s.Push(NewInteger(uint64(op - PUSH0)))
	}

	switch op {
	case PUSHINT8:
		v := instr.TokenI8()
		if v < 0 {
			return false, s.Push(NewIntegerFrom(new(uint256.Int).Neg(new(uint256.Int).SetUint64(uint64(-int64(v))))))
		}
		return false, s.Push(NewInteger(uint64(v)))
	case PUSHDATA1:
		return false, s.Push(NewByteString(instr.Operand))
	case NOP:
		return false, nil
	case JMP, JMPIF, JMPIFNOT:
		take := true
		if op != JMP {
			cond, err := s.Pop()
			if err != nil {
				return false, err
			}
			take = cond.Bool() == (op == JMPIF)
		}
		if !take {
			return false, nil
		}
		target := ctx.IP + int(instr.TokenI8())
		if target < 0 || target > len(ctx.Script) {
			return false, errors.Errorf("jump out of range: %d", target)
		}
		ctx.IP = target
		return true, nil
	case ABORT:
		return false, errors.New("ABORT is executed")
	case ASSERT:
		cond, err := s.Pop()
		if err != nil {
			return false, err
		}
		if !cond.Bool() {
			return false, errors.New("ASSERT is executed with false result")
		}
		return false, nil
	case RET:
		return true, e.unloadContext()
	case SYSCALL:
		// IP moves past the syscall before the handler runs, so a loaded
		// callee returns to the next instruction.
		ctx.IP += instr.Size
		return true, e.invokeSyscall(instr.TokenU32())
	case DROP:
		_, err := s.Pop()
		return false, err
	case DUP:
		top, err := s.Peek(0)
		if err != nil {
			return false, err
		}
		return false, s.Push(top)
	case SWAP:
		a, err := s.Pop()
		if err != nil {
			return false, err
		}
		b, err := s.Pop()
		if err != nil {
			return false, err
		}
		if err := s.Push(a); err != nil {
			return false, err
		}
		return false, s.Push(b)
	case EQUAL:
		a, err := s.Pop()
		if err != nil {
			return false, err
		}
		b, err := s.Pop()
		if err != nil {
			return false, err
		}
		if a.Equals(b) {
			return false, s.Push(NewInteger(1))
		}
		return false, s.Push(NewInteger(0))
	case ADD, SUB, MUL:
		y, err := popInteger(s)
		if err != nil {
			return false, err
		}
		x, err := popInteger(s)
		if err != nil {
			return false, err
		}
		z := new(uint256.Int)
		switch op {
		case ADD:
			z.Add(x, y)
		case SUB:
			z.Sub(x, y)
		default:
			z.Mul(x, y)
		}
		return false, s.Push(NewIntegerFrom(z))
	}
	return false, errors.Errorf("unsupported opcode %v", op)
}

func popInteger(s *Stack) (*uint256.Int, error) {
	item, err := s.Pop()
	if err != nil {
		return nil, err
	}
	return item.Integer()
}
