// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package vm

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/miniBamboo/statetrace/statetrace"
	"github.com/miniBamboo/statetrace/storage"
	"github.com/pkg/errors"
)

// Syscall names.
const (
	StorageGet     = "System.Storage.Get"
	StoragePut     = "System.Storage.Put"
	StorageDelete  = "System.Storage.Delete"
	StorageFind    = "System.Storage.Find"
	StorageExists  = "System.Storage.Exists"
	RuntimeNotify  = "System.Runtime.Notify"
	RuntimeLog     = "System.Runtime.Log"
	ContractCall   = "System.Contract.Call"
	maxMessageSize = 1024
)

type syscall struct {
	name    string
	price   int64
	handler func(e *Engine) error
}

var syscalls = map[uint32]*syscall{}

func register(name string, price int64, handler func(e *Engine) error) {
	syscalls[SyscallID(name)] = &syscall{name, price, handler}
}

func init() {
	register(StorageGet, 1<<15, storageGet)
	register(StoragePut, 1<<15, storagePut)
	register(StorageDelete, 1<<15, storageDelete)
	register(StorageFind, 1<<15, storageFind)
	register(StorageExists, 1<<15, storageExists)
	register(RuntimeNotify, 1<<15, runtimeNotify)
	register(RuntimeLog, 1<<15, runtimeLog)
	register(ContractCall, 1<<15, contractCall)
}

// SyscallID derives the 4-byte syscall id from its name.
func SyscallID(name string) uint32 {
	return binary.LittleEndian.Uint32(crypto.Keccak256([]byte(name))[:4])
}

// SyscallName resolves a syscall id.
func SyscallName(id uint32) (string, bool) {
	if s, ok := syscalls[id]; ok {
		return s.name, true
	}
	return "", false
}

func (e *Engine) invokeSyscall(id uint32) error {
	s, ok := syscalls[id]
	if !ok {
		return errors.Errorf("unknown syscall 0x%08x", id)
	}
	if h := e.cfg.Hooks.OnSyscall; h != nil {
		h(e.CurrentContext().ScriptHash, s.name, s.price)
	}
	if err := e.AddGas(s.price); err != nil {
		return err
	}
	return s.handler(e)
}

func (e *Engine) storageKey(key []byte) ([]byte, error) {
	if len(key) > statetrace.MaxStorageKeyLength {
		return nil, errors.Errorf("storage key too long: %d", len(key))
	}
	return statetrace.StorageKey{Contract: e.CurrentContext().ScriptHash, Key: key}.Encode(), nil
}

func (e *Engine) requireStore() error {
	if e.cfg.Store == nil {
		return errors.New("no storage attached")
	}
	return nil
}

func storageGet(e *Engine) error {
	if err := e.requireStore(); err != nil {
		return err
	}
	ctx := e.CurrentContext()
	item, err := ctx.stack.Pop()
	if err != nil {
		return err
	}
	key, err := e.storageKey(item.Bytes())
	if err != nil {
		return err
	}
	value, err := e.cfg.Store.Get(key)
	if err != nil && !storage.IsNotFound(err) {
		return err
	}
	if h := e.cfg.Hooks.OnStorageRead; h != nil {
		h(ctx.ScriptHash, item.Bytes(), value)
	}
	return ctx.stack.Push(NewByteString(value))
}

func storagePut(e *Engine) error {
	if err := e.requireStore(); err != nil {
		return err
	}
	ctx := e.CurrentContext()
	k, err := ctx.stack.Pop()
	if err != nil {
		return err
	}
	v, err := ctx.stack.Pop()
	if err != nil {
		return err
	}
	key, err := e.storageKey(k.Bytes())
	if err != nil {
		return err
	}
	value := v.Bytes()
	if err := e.AddGas(int64(len(k.Bytes())+len(value)) * statetrace.StoragePutGas); err != nil {
		return err
	}
	if err := e.cfg.Store.Put(key, value); err != nil {
		return err
	}
	if h := e.cfg.Hooks.OnStorageWrite; h != nil {
		h(ctx.ScriptHash, k.Bytes(), value)
	}
	return nil
}

func storageDelete(e *Engine) error {
	if err := e.requireStore(); err != nil {
		return err
	}
	ctx := e.CurrentContext()
	k, err := ctx.stack.Pop()
	if err != nil {
		return err
	}
	key, err := e.storageKey(k.Bytes())
	if err != nil {
		return err
	}
	if err := e.cfg.Store.Delete(key); err != nil {
		return err
	}
	if h := e.cfg.Hooks.OnStorageWrite; h != nil {
		h(ctx.ScriptHash, k.Bytes(), nil)
	}
	return nil
}

func storageFind(e *Engine) error {
	if err := e.requireStore(); err != nil {
		return err
	}
	ctx := e.CurrentContext()
	p, err := ctx.stack.Pop()
	if err != nil {
		return err
	}
	prefix, err := e.storageKey(p.Bytes())
	if err != nil {
		return err
	}
	var count uint64
	if err := e.cfg.Store.Iterate(prefix, func(key, value []byte) bool {
		count++
		if h := e.cfg.Hooks.OnStorageRead; h != nil {
			h(ctx.ScriptHash, key[statetrace.Hash160Length:], value)
		}
		return true
	}); err != nil {
		return err
	}
	return ctx.stack.Push(NewInteger(count))
}

func storageExists(e *Engine) error {
	if err := e.requireStore(); err != nil {
		return err
	}
	ctx := e.CurrentContext()
	k, err := ctx.stack.Pop()
	if err != nil {
		return err
	}
	key, err := e.storageKey(k.Bytes())
	if err != nil {
		return err
	}
	ok, err := e.cfg.Store.Has(key)
	if err != nil {
		return err
	}
	if ok {
		return ctx.stack.Push(NewInteger(1))
	}
	return ctx.stack.Push(NewInteger(0))
}

func runtimeNotify(e *Engine) error {
	ctx := e.CurrentContext()
	name, err := ctx.stack.Pop()
	if err != nil {
		return err
	}
	state, err := ctx.stack.Pop()
	if err != nil {
		return err
	}
	if len(name.Bytes()) > maxMessageSize {
		return errors.New("event name too long")
	}
	n := Notification{
		Contract: ctx.ScriptHash,
		Name:     string(name.Bytes()),
		State:    []StackItem{state},
	}
	e.notes = append(e.notes, n)
	if h := e.cfg.Hooks.OnNotify; h != nil {
		h(n.Contract, n.Name, n.State)
	}
	return nil
}

func runtimeLog(e *Engine) error {
	ctx := e.CurrentContext()
	msg, err := ctx.stack.Pop()
	if err != nil {
		return err
	}
	if len(msg.Bytes()) > maxMessageSize {
		return errors.New("log message too long")
	}
	if h := e.cfg.Hooks.OnLog; h != nil {
		h(ctx.ScriptHash, string(msg.Bytes()))
	}
	return nil
}

func contractCall(e *Engine) error {
	if err := e.requireStore(); err != nil {
		return err
	}
	ctx := e.CurrentContext()
	h, err := ctx.stack.Pop()
	if err != nil {
		return err
	}
	m, err := ctx.stack.Pop()
	if err != nil {
		return err
	}
	hash, err := statetrace.BytesToHash160(h.Bytes())
	if err != nil {
		return errors.WithMessage(err, "contract call")
	}
	contract, err := GetContract(e.cfg.Store, hash)
	if err != nil {
		return err
	}
	method := string(m.Bytes())
	offset, ok := contract.MethodOffset(method)
	if !ok {
		return errors.Errorf("method %q not found in %v", method, hash)
	}
	caller := ctx.ScriptHash
	_, err = e.loadContext(&ExecutionContext{
		ScriptHash:  hash,
		CallingHash: &caller,
		Method:      method,
		Script:      contract.Script,
		IP:          int(offset),
	})
	return err
}
