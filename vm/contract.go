// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package vm

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/miniBamboo/statetrace/statetrace"
	"github.com/miniBamboo/statetrace/storage"
	"github.com/pkg/errors"
)

const (
	prefixContract   = 0x08
	prefixContractID = 0x0c
)

// Method is an entry point of a contract.
type Method struct {
	Name   string
	Offset uint32
}

// ContractState is the deployed form of a contract.
type ContractState struct {
	ID      uint32
	Hash    statetrace.Hash160
	Script  []byte
	Methods []Method
}

// MethodOffset returns the entry offset of the named method.
func (c *ContractState) MethodOffset(name string) (uint32, bool) {
	for _, m := range c.Methods {
		if m.Name == name {
			return m.Offset, true
		}
	}
	return 0, false
}

// ContractKey returns the storage key holding a contract state.
func ContractKey(hash statetrace.Hash160) statetrace.StorageKey {
	return statetrace.StorageKey{
		Contract: statetrace.ManagementContract,
		Key:      append([]byte{prefixContract}, hash[:]...),
	}
}

// ContractIDKey returns the storage key mapping a contract id to its hash.
func ContractIDKey(id uint32) statetrace.StorageKey {
	key := make([]byte, 5)
	key[0] = prefixContractID
	binary.BigEndian.PutUint32(key[1:], id)
	return statetrace.StorageKey{Contract: statetrace.ManagementContract, Key: key}
}

// GetContract loads a contract state.
func GetContract(store storage.Store, hash statetrace.Hash160) (*ContractState, error) {
	data, err := store.Get(ContractKey(hash).Encode())
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, statetrace.NewNotFoundError("contract", hash)
		}
		return nil, err
	}
	var c ContractState
	if err := rlp.DecodeBytes(data, &c); err != nil {
		return nil, errors.WithMessage(err, "decode contract")
	}
	return &c, nil
}

// GetContractHash resolves a contract id.
func GetContractHash(store storage.Store, id uint32) (statetrace.Hash160, error) {
	data, err := store.Get(ContractIDKey(id).Encode())
	if err != nil {
		if storage.IsNotFound(err) {
			return statetrace.Hash160{}, statetrace.NewNotFoundError("contract id", id)
		}
		return statetrace.Hash160{}, err
	}
	return statetrace.BytesToHash160(data)
}

// PutContract deploys a contract state. The hash is derived from the script
// when unset.
func PutContract(store storage.Store, c *ContractState) error {
	if c.Hash.IsZero() {
		c.Hash = statetrace.Hash160Of(c.Script)
	}
	data, err := rlp.EncodeToBytes(c)
	if err != nil {
		return err
	}
	if err := store.Put(ContractKey(c.Hash).Encode(), data); err != nil {
		return err
	}
	return store.Put(ContractIDKey(c.ID).Encode(), c.Hash.Bytes())
}
