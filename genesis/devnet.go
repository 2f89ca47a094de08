// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package genesis

import (
	"github.com/miniBamboo/statetrace/statetrace"
	"github.com/miniBamboo/statetrace/storage"
	"github.com/miniBamboo/statetrace/vm"
)

// CounterKey is the storage key of the devnet counter.
var CounterKey = []byte("count")

// Counter is the contract deployed by the devnet genesis. Its methods:
//
//	increment: count += 1, notifies "incremented" with the new count
//	get:       returns count
//	fail:      aborts
var Counter = newCounter()

func newCounter() *vm.ContractState {
	b := vm.NewScriptBuilder()

	incr := b.Len()
	b.EmitPushData(CounterKey).
		EmitSyscall(vm.StorageGet).
		Emit(vm.PUSH1, vm.ADD, vm.DUP).
		EmitPushData(CounterKey).
		EmitSyscall(vm.StoragePut).
		EmitPushString("incremented").
		EmitSyscall(vm.RuntimeNotify).
		Emit(vm.RET)

	get := b.Len()
	b.EmitPushData(CounterKey).
		EmitSyscall(vm.StorageGet).
		Emit(vm.RET)

	fail := b.Len()
	b.EmitPushString("counter failing").
		EmitSyscall(vm.RuntimeLog).
		Emit(vm.ABORT)

	script := b.MustScript()
	return &vm.ContractState{
		ID:     1,
		Hash:   statetrace.Hash160Of(script),
		Script: script,
		Methods: []vm.Method{
			{Name: "increment", Offset: uint32(incr)},
			{Name: "get", Offset: uint32(get)},
			{Name: "fail", Offset: uint32(fail)},
		},
	}
}

// NewDevnet create genesis for local development, with the counter
// contract deployed and its count at zero.
func NewDevnet() *Genesis {
	launchTime := uint64(1526400000) // Default launch time 'Wed May 16 2018 00:00:00 GMT+0800 (CST)'

	builder := new(Builder).
		Timestamp(launchTime).
		State(func(store storage.Store) error {
			c := *Counter
			if err := vm.PutContract(store, &c); err != nil {
				return err
			}
			key := statetrace.StorageKey{Contract: c.Hash, Key: CounterKey}
			return store.Put(key.Encode(), []byte{0})
		})

	return &Genesis{builder, builder.ComputeID(), "devnet"}
}
