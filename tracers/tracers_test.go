// Copyright 2017 The go-ethereum Auworkshares
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

package tracers_test

import (
	"testing"

	"github.com/miniBamboo/statetrace/runtime"
	"github.com/miniBamboo/statetrace/statetrace"
	"github.com/miniBamboo/statetrace/storage"
	"github.com/miniBamboo/statetrace/tracers"
	"github.com/miniBamboo/statetrace/vm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var entryHash = statetrace.Hash160Of([]byte("entry"))

// newCallee deploys a contract exercising storage, notifications and logs.
func newCallee(t *testing.T, store storage.Store) *vm.ContractState {
	b := vm.NewScriptBuilder()
	run := b.Len()
	b.EmitPushString("k").
		EmitSyscall(vm.StorageGet).
		Emit(vm.PUSH1, vm.ADD, vm.DUP).
		EmitPushString("k").
		EmitSyscall(vm.StoragePut).
		EmitPushString("bumped").
		EmitSyscall(vm.RuntimeNotify).
		EmitPushString("callee log").
		EmitSyscall(vm.RuntimeLog).
		Emit(vm.RET)
	fail := b.Len()
	b.Emit(vm.ABORT)

	c := &vm.ContractState{
		ID:     3,
		Script: b.MustScript(),
		Methods: []vm.Method{
			{Name: "run", Offset: uint32(run)},
			{Name: "fail", Offset: uint32(fail)},
		},
	}
	require.NoError(t, vm.PutContract(store, c))
	require.NoError(t, store.Put(statetrace.StorageKey{Contract: c.Hash, Key: []byte("k")}.Encode(), []byte{4}))
	return c
}

func execute(t *testing.T, level tracers.TraceLevel, store storage.Store, script []byte, diag vm.Diagnostic) (*tracers.Engine, vm.VMState) {
	rec := tracers.NewRecorder(level, nil)
	e, err := tracers.NewEngine(rec, level, vm.Config{
		Trigger:    vm.Application,
		Store:      store,
		GasLimit:   statetrace.SystemGasLimit,
		Diagnostic: diag,
	})
	require.NoError(t, err)
	assert.Equal(t, tracers.Created, e.Status())
	require.NoError(t, e.LoadScript(script, entryHash))
	state := e.Execute()
	e.Dispose()
	assert.Equal(t, tracers.Disposed, e.Status())
	return e, state
}

func TestNilRecorder(t *testing.T) {
	_, err := tracers.NewEngine(nil, tracers.LevelAll, vm.Config{})
	assert.Equal(t, statetrace.ErrNilRecorder, err)
}

func TestOpCodeScenario(t *testing.T) {
	script := vm.NewScriptBuilder().Emit(vm.PUSH1, vm.PUSH2, vm.ADD, vm.RET).MustScript()
	e, state := execute(t, tracers.LevelOpCodes, nil, script, nil)
	assert.Equal(t, vm.Halt, state)

	ops := e.Recorder().OpCodeTraces()
	require.True(t, len(ops) >= 4)
	assert.Equal(t, []vm.OpCode{vm.PUSH1, vm.PUSH2, vm.ADD, vm.RET},
		[]vm.OpCode{ops[0].OpCode, ops[1].OpCode, ops[2].OpCode, ops[3].OpCode})
	assert.Equal(t, []int{0, 1, 2, 3},
		[]int{ops[0].InstructionPointer, ops[1].InstructionPointer, ops[2].InstructionPointer, ops[3].InstructionPointer})
	assert.Equal(t, 1, ops[0].StackDepth)
	assert.Equal(t, 2, ops[1].StackDepth)
	assert.Equal(t, 1, ops[2].StackDepth)
	for i := 1; i < len(ops); i++ {
		assert.True(t, ops[i].Order > ops[i-1].Order)
	}
	assert.Equal(t, vm.PUSH1.Price(), ops[0].GasConsumed)

	assert.Empty(t, e.Recorder().ContractCallTraces())
	assert.Empty(t, e.Recorder().SyscallTraces())
}

func TestTracesAreSnapshots(t *testing.T) {
	r := tracers.NewRecorder(tracers.LevelAll, nil)
	var h statetrace.Hash160
	r.RecordOpCode(h, 0, vm.PUSHDATA1, []byte{1, 2}, 8, 1)
	r.RecordStorageRead(h, []byte("k"), []byte("v"))
	r.RecordStorageWrite(h, []byte("k"), []byte("w"))
	r.RecordNotification(h, "ev", []vm.StackItem{vm.NewInteger(5)})

	r.OpCodeTraces()[0].Operand[0] = 9
	reads := r.StorageReadTraces()
	reads[0].Key[0] = 'x'
	reads[0].Value[0] = 'x'
	r.StorageWriteTraces()[0].Value[0] = 'x'
	r.NotificationTraces()[0].State[0] = "x"

	assert.Equal(t, []byte{1, 2}, r.OpCodeTraces()[0].Operand)
	assert.Equal(t, []byte("k"), r.StorageReadTraces()[0].Key)
	assert.Equal(t, []byte("v"), r.StorageReadTraces()[0].Value)
	assert.Equal(t, []byte("w"), r.StorageWriteTraces()[0].Value)
	assert.Equal(t, []string{"5"}, r.NotificationTraces()[0].State)
}

func TestTraceLevelGating(t *testing.T) {
	build := func(store storage.Store) []byte {
		c := newCallee(t, store)
		return vm.NewScriptBuilder().
			EmitPushString("entry log").
			EmitSyscall(vm.RuntimeLog).
			EmitCall(c.Hash, "run").
			Emit(vm.RET).
			MustScript()
	}

	store := storage.NewMemStore()
	defer store.Close()
	e, state := execute(t, tracers.LevelNone, store, build(store), nil)
	assert.Equal(t, vm.Halt, state)
	assert.Equal(t, 0, e.Recorder().Len())

	store = storage.NewMemStore()
	defer store.Close()
	e, state = execute(t, tracers.LevelAll, store, build(store), nil)
	assert.Equal(t, vm.Halt, state)
	r := e.Recorder()
	assert.NotEmpty(t, r.OpCodeTraces())
	assert.NotEmpty(t, r.SyscallTraces())
	assert.NotEmpty(t, r.ContractCallTraces())
	assert.NotEmpty(t, r.StorageReadTraces())
	assert.NotEmpty(t, r.StorageWriteTraces())
	assert.NotEmpty(t, r.NotificationTraces())
	assert.Len(t, r.LogTraces(), 2)
	assert.True(t, r.Frozen())

	notes := r.NotificationTraces()
	assert.Equal(t, "bumped", notes[0].EventName)
	assert.Equal(t, []string{"5"}, notes[0].State)

	calls := r.ContractCallTraces()
	require.Len(t, calls, 2)
	assert.Nil(t, calls[0].CallerHash)
	assert.Equal(t, entryHash, calls[0].CalleeHash)
	assert.Equal(t, 0, calls[0].CallDepth)
	assert.True(t, calls[0].Success)
	require.NotNil(t, calls[1].CallerHash)
	assert.Equal(t, entryHash, *calls[1].CallerHash)
	assert.Equal(t, "run", calls[1].MethodName)
	assert.Equal(t, 1, calls[1].CallDepth)
	assert.True(t, calls[1].Success)
	require.NotNil(t, calls[1].GasConsumed)
	assert.True(t, *calls[0].GasConsumed > *calls[1].GasConsumed)

	// frozen after halt
	n := r.Len()
	r.RecordLog(entryHash, "late")
	assert.Equal(t, n, r.Len())
}

func TestOrderIndependentOfLevel(t *testing.T) {
	type op struct {
		code vm.OpCode
		ip   int
	}
	run := func(level tracers.TraceLevel) []op {
		store := storage.NewMemStore()
		defer store.Close()
		c := newCallee(t, store)
		script := vm.NewScriptBuilder().EmitCall(c.Hash, "run").Emit(vm.RET).MustScript()
		e, state := execute(t, level, store, script, nil)
		require.Equal(t, vm.Halt, state)

		var out []op
		var last uint64
		for i, ev := range e.Recorder().OpCodeTraces() {
			if i > 0 {
				assert.True(t, ev.Order > last)
			}
			last = ev.Order
			out = append(out, op{ev.OpCode, ev.InstructionPointer})
		}
		return out
	}
	only := run(tracers.LevelOpCodes)
	assert.NotEmpty(t, only)
	assert.Equal(t, only, run(tracers.LevelAll))
}

func TestFaultedCallsStayUnsuccessful(t *testing.T) {
	store := storage.NewMemStore()
	defer store.Close()
	c := newCallee(t, store)
	script := vm.NewScriptBuilder().EmitCall(c.Hash, "fail").Emit(vm.RET).MustScript()

	e, state := execute(t, tracers.LevelContractCalls, store, script, nil)
	assert.Equal(t, vm.Fault, state)
	assert.Equal(t, tracers.Disposed, e.Status())

	calls := e.Recorder().ContractCallTraces()
	require.Len(t, calls, 2)
	for _, c := range calls {
		assert.False(t, c.Success)
		assert.Nil(t, c.GasConsumed)
	}
}

type countingDiagnostic struct {
	initialized, loaded, unloaded, pre, post, disposed int
}

func (d *countingDiagnostic) Initialized(*vm.Engine)               { d.initialized++ }
func (d *countingDiagnostic) ContextLoaded(*vm.ExecutionContext)   { d.loaded++ }
func (d *countingDiagnostic) ContextUnloaded(*vm.ExecutionContext) { d.unloaded++ }
func (d *countingDiagnostic) PreExecuteInstruction(vm.Instruction) { d.pre++ }
func (d *countingDiagnostic) PostExecuteInstruction(vm.Instruction) {
	d.post++
}
func (d *countingDiagnostic) Disposed() { d.disposed++ }

type panickingDiagnostic struct{ countingDiagnostic }

func (d *panickingDiagnostic) PreExecuteInstruction(vm.Instruction) { panic("broken observer") }
func (d *panickingDiagnostic) ContextLoaded(*vm.ExecutionContext)   { panic("broken observer") }

func TestCompositeIsolatesFailures(t *testing.T) {
	broken := &panickingDiagnostic{}
	counting := &countingDiagnostic{}
	script := vm.NewScriptBuilder().Emit(vm.PUSH1, vm.PUSH2, vm.ADD, vm.RET).MustScript()

	e, state := execute(t, tracers.LevelAll, nil, script, tracers.NewComposite(broken, counting))
	assert.Equal(t, vm.Halt, state)
	assert.Len(t, e.Recorder().OpCodeTraces(), 4)
	assert.Len(t, e.Recorder().ContractCallTraces(), 1)

	assert.Equal(t, 1, counting.initialized)
	assert.Equal(t, 1, counting.loaded)
	assert.Equal(t, 1, counting.unloaded)
	assert.Equal(t, 4, counting.pre)
	assert.Equal(t, 4, counting.post)
	assert.Equal(t, 1, counting.disposed)
	assert.Equal(t, 4, broken.post)
}

func TestCompositeFlattens(t *testing.T) {
	a, b, c := &countingDiagnostic{}, &countingDiagnostic{}, &countingDiagnostic{}
	comp := tracers.NewComposite(tracers.NewComposite(a, nil, b), c)
	members := comp.Members()
	require.Len(t, members, 3)
	assert.True(t, members[0] == vm.Diagnostic(a))
	assert.True(t, members[2] == vm.Diagnostic(c))
}

func TestProvider(t *testing.T) {
	script := vm.NewScriptBuilder().Emit(vm.PUSH1, vm.RET).MustScript()
	p := tracers.NewProvider(tracers.LevelOpCodes, nil)

	for i := 0; i < 2; i++ {
		out, err := runtime.New(p, nil).Execute(vm.Application, nil, script, entryHash, nil, 1000)
		require.NoError(t, err)
		assert.Equal(t, vm.Halt, out.State)
	}
	recs := p.Recorders()
	require.Len(t, recs, 2)
	a, b := recs[0].OpCodeTraces(), recs[1].OpCodeTraces()
	require.Len(t, a, 2)
	require.Len(t, b, 2)
	assert.True(t, b[0].Order > a[1].Order, "one sequence per provider")
}

func TestProviderReusesAttachedRecorder(t *testing.T) {
	rec := tracers.NewRecorder(tracers.LevelAll, nil)
	hook := tracers.NewHook(rec)
	counting := &countingDiagnostic{}
	p := tracers.NewProvider(tracers.LevelAll, func(tracers.TraceLevel) *tracers.Recorder {
		t.Fatal("factory must not be called")
		return nil
	})

	exec, err := p.NewEngine(runtime.EngineConfig{
		Trigger:    vm.Application,
		GasLimit:   1000,
		Diagnostic: tracers.NewComposite(hook, counting),
	})
	require.NoError(t, err)
	require.NoError(t, exec.LoadScript(vm.NewScriptBuilder().Emit(vm.PUSH1, vm.RET).MustScript(), entryHash))
	assert.Equal(t, vm.Halt, exec.Execute())
	exec.Dispose()

	assert.Equal(t, []*tracers.Recorder{rec}, p.Recorders())
	assert.Len(t, rec.OpCodeTraces(), 2)
	assert.Len(t, rec.ContractCallTraces(), 1, "recorded once")
	assert.Equal(t, 2, counting.post)
	assert.False(t, rec.Frozen(), "lent recorders outlive the engine")
}

func TestFixedProvider(t *testing.T) {
	rec := tracers.NewRecorder(tracers.LevelOpCodes, nil)
	p := tracers.NewFixedProvider(tracers.LevelOpCodes, rec)
	script := vm.NewScriptBuilder().Emit(vm.PUSH1, vm.RET).MustScript()
	for i := 0; i < 3; i++ {
		_, err := runtime.New(p, nil).Execute(vm.Application, nil, script, entryHash, nil, 1000)
		require.NoError(t, err)
	}
	assert.Len(t, rec.OpCodeTraces(), 6)
	assert.Len(t, p.Engines(), 3)
}

func TestParseTraceLevel(t *testing.T) {
	tests := []struct {
		in   string
		want tracers.TraceLevel
	}{
		{"none", tracers.LevelNone},
		{"", tracers.LevelNone},
		{"all", tracers.LevelAll},
		{"opcodes", tracers.LevelOpCodes},
		{"storage|calls", tracers.LevelStorage | tracers.LevelContractCalls},
		{"syscalls,notifications", tracers.LevelSyscalls | tracers.LevelNotifications},
	}
	for _, tt := range tests {
		got, err := tracers.ParseTraceLevel(tt.in)
		assert.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
	_, err := tracers.ParseTraceLevel("bogus")
	assert.Error(t, err)
	assert.False(t, tracers.LevelNone.Has(tracers.LevelNone))
	assert.True(t, tracers.LevelAll.Has(tracers.LevelOpCodes))
}
