package runtime

import (
	"testing"

	"github.com/miniBamboo/statetrace/statetrace"
	"github.com/miniBamboo/statetrace/storage"
	"github.com/miniBamboo/statetrace/vm"
	"github.com/stretchr/testify/assert"
)

func TestContractCallReturnGas(t *testing.T) {
	store := storage.NewMemStore()
	defer store.Close()

	hash := statetrace.Hash160Of([]byte("measure"))
	b := vm.NewScriptBuilder()
	inner := b.Len()
	b.Emit(vm.PUSH1, vm.DROP, vm.RET)
	outer := b.Len()
	b.EmitCall(hash, "inner").Emit(vm.RET)

	c := &vm.ContractState{
		ID:     1,
		Hash:   hash,
		Script: b.MustScript(),
		Methods: []vm.Method{
			{Name: "inner", Offset: uint32(inner)},
			{Name: "outer", Offset: uint32(outer)},
		},
	}
	assert.Nil(t, vm.PutContract(store, c))

	call := func(method string) int64 {
		entry := vm.NewScriptBuilder().EmitCall(c.Hash, method).Emit(vm.RET).MustScript()
		out, err := New(nil, nil).Execute(vm.Application, store, entry, statetrace.Hash160Of(entry), nil, statetrace.SystemGasLimit)
		assert.Nil(t, err)
		assert.Equal(t, vm.Halt, out.State, out.Fault)
		return out.GasConsumed
	}
	innerGas := call("inner")
	outerGas := call("outer")

	// outer = inner + its own call sequence: two pushes, the syscall and RET
	expected := 2*vm.PUSHDATA1.Price() + vm.SYSCALL.Price() + 1<<15 + vm.RET.Price()
	assert.Equal(t, expected, outerGas-innerGas)
}
