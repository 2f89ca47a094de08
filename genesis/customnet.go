// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package genesis

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/miniBamboo/statetrace/statetrace"
	"github.com/miniBamboo/statetrace/storage"
	"github.com/miniBamboo/statetrace/vm"
	"github.com/pkg/errors"
)

// CustomGenesis is user customized genesis
type CustomGenesis struct {
	LaunchTime math.HexOrDecimal64 `json:"launchTime"`
	Nonce      math.HexOrDecimal64 `json:"nonce"`
	Contracts  []Contract          `json:"contracts"`
}

// Contract is a contract deployed in the genesis state.
type Contract struct {
	ID      uint32            `json:"id"`
	Code    string            `json:"code"`
	Methods []Method          `json:"methods"`
	Storage map[string]string `json:"storage"`
}

// Method is a named entry offset of a contract.
type Method struct {
	Name   string `json:"name"`
	Offset uint32 `json:"offset"`
}

// NewCustomNet create custom network genesis.
func NewCustomNet(gen *CustomGenesis) (*Genesis, error) {
	contracts := make([]*vm.ContractState, 0, len(gen.Contracts))
	ids := make(map[uint32]bool)
	for i, c := range gen.Contracts {
		code, err := hexutil.Decode(c.Code)
		if err != nil {
			return nil, fmt.Errorf("contracts[%d]: invalid code", i)
		}
		if len(code) == 0 {
			return nil, fmt.Errorf("contracts[%d]: empty code", i)
		}
		if ids[c.ID] {
			return nil, fmt.Errorf("contracts[%d]: duplicated id %d", i, c.ID)
		}
		ids[c.ID] = true
		cs := &vm.ContractState{ID: c.ID, Hash: statetrace.Hash160Of(code), Script: code}
		for _, m := range c.Methods {
			if int(m.Offset) >= len(code) {
				return nil, fmt.Errorf("contracts[%d]: method %s offset out of range", i, m.Name)
			}
			cs.Methods = append(cs.Methods, vm.Method{Name: m.Name, Offset: m.Offset})
		}
		contracts = append(contracts, cs)
	}

	builder := new(Builder).
		Timestamp(uint64(gen.LaunchTime)).
		Nonce(uint64(gen.Nonce)).
		State(func(store storage.Store) error {
			for i, cs := range contracts {
				if err := vm.PutContract(store, cs); err != nil {
					return err
				}
				for k, v := range gen.Contracts[i].Storage {
					key, err := hexutil.Decode(k)
					if err != nil {
						return errors.Errorf("%v: invalid storage key %q", cs.Hash, k)
					}
					value, err := hexutil.Decode(v)
					if err != nil {
						return errors.Errorf("%v: invalid storage value %q", cs.Hash, v)
					}
					sk := statetrace.StorageKey{Contract: cs.Hash, Key: key}
					if err := store.Put(sk.Encode(), value); err != nil {
						return err
					}
				}
			}
			return nil
		})

	return &Genesis{builder, builder.ComputeID(), "customnet"}, nil
}
