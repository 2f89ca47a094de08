// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package runtime

import (
	"encoding/binary"

	"github.com/inconshreveable/log15"
	"github.com/miniBamboo/statetrace/block"
	"github.com/miniBamboo/statetrace/statetrace"
	"github.com/miniBamboo/statetrace/storage"
	"github.com/miniBamboo/statetrace/tx"
	"github.com/miniBamboo/statetrace/vm"
	"github.com/pkg/errors"
)

var log = log15.New("pkg", "runtime")

// Ledger keys written by the system scripts.
var (
	CurrentBlockKey   = []byte("currentBlock")
	PersistedCountKey = []byte("persisted")
)

// EngineConfig describes one engine to create.
type EngineConfig struct {
	Trigger    vm.TriggerType
	Store      storage.Store
	GasLimit   int64
	Block      *block.Block
	Container  *tx.Transaction
	Diagnostic vm.Diagnostic
}

// Executor is an engine as seen by the runtime.
type Executor interface {
	LoadScript(script []byte, hash statetrace.Hash160) error
	Execute() vm.VMState
	GasConsumed() int64
	FaultError() error
	Notifications() []vm.Notification
	Dispose()
}

// EngineProvider creates engines. It is passed explicitly at the call sites
// that build engines.
type EngineProvider interface {
	NewEngine(cfg EngineConfig) (Executor, error)
}

// DefaultProvider creates plain engines.
type DefaultProvider struct{}

// NewEngine implements EngineProvider.
func (DefaultProvider) NewEngine(cfg EngineConfig) (Executor, error) {
	return vm.NewEngine(vm.Config{
		Trigger:    cfg.Trigger,
		Store:      cfg.Store,
		GasLimit:   cfg.GasLimit,
		Diagnostic: cfg.Diagnostic,
	}), nil
}

// Output is the terminal outcome of one script execution.
type Output struct {
	Trigger       vm.TriggerType
	TxID          *statetrace.Bytes32
	State         vm.VMState
	GasConsumed   int64
	Fault         string
	Notifications []vm.Notification
}

// Runtime executes the scripts of one block.
type Runtime struct {
	provider EngineProvider
	blk      *block.Block
}

// New creates a runtime. A nil provider means DefaultProvider.
func New(provider EngineProvider, blk *block.Block) *Runtime {
	if provider == nil {
		provider = DefaultProvider{}
	}
	return &Runtime{provider, blk}
}

// Execute runs script under trigger against store. A fault is reported in
// the output; an error means the engine could not be created.
func (rt *Runtime) Execute(trigger vm.TriggerType, store storage.Store, script []byte, hash statetrace.Hash160, container *tx.Transaction, gas int64) (*Output, error) {
	engine, err := rt.provider.NewEngine(EngineConfig{
		Trigger:   trigger,
		Store:     store,
		GasLimit:  gas,
		Block:     rt.blk,
		Container: container,
	})
	if err != nil {
		return nil, errors.WithMessage(err, "create engine")
	}
	defer engine.Dispose()

	out := &Output{Trigger: trigger}
	if container != nil {
		id := container.ID()
		out.TxID = &id
	}
	if err := engine.LoadScript(script, hash); err != nil {
		out.State = vm.Fault
		out.Fault = err.Error()
		return out, nil
	}
	out.State = engine.Execute()
	out.GasConsumed = engine.GasConsumed()
	out.Notifications = engine.Notifications()
	if out.State == vm.Fault && engine.FaultError() != nil {
		out.Fault = engine.FaultError().Error()
	}
	return out, nil
}

// OnPersistScript returns the pre-block script: it reads the previous
// current block and stores the new one under the ledger contract.
func OnPersistScript(blk *block.Block) []byte {
	var index [4]byte
	binary.BigEndian.PutUint32(index[:], blk.Index())
	return vm.NewScriptBuilder().
		EmitPushData(CurrentBlockKey).
		EmitSyscall(vm.StorageGet).
		Emit(vm.DROP).
		EmitPushData(index[:]).
		EmitPushData(CurrentBlockKey).
		EmitSyscall(vm.StoragePut).
		Emit(vm.RET).
		MustScript()
}

// PostPersistScript returns the post-block script: it increments the
// persisted block counter.
func PostPersistScript() []byte {
	return vm.NewScriptBuilder().
		EmitPushData(PersistedCountKey).
		EmitSyscall(vm.StorageGet).
		Emit(vm.PUSH1, vm.ADD).
		EmitPushData(PersistedCountKey).
		EmitSyscall(vm.StoragePut).
		Emit(vm.RET).
		MustScript()
}
