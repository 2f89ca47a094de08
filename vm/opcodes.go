// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package vm

import (
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"
)

// OpCode is a single byte VM instruction code.
type OpCode byte

// Instruction codes.
const (
	PUSHINT8  OpCode = 0x00
	PUSHDATA1 OpCode = 0x0c
	PUSH0     OpCode = 0x10
	PUSH1     OpCode = 0x11
	PUSH2     OpCode = 0x12
	PUSH3     OpCode = 0x13
	PUSH4     OpCode = 0x14
	PUSH5     OpCode = 0x15
	PUSH6     OpCode = 0x16
	PUSH7     OpCode = 0x17
	PUSH8     OpCode = 0x18
	PUSH9     OpCode = 0x19
	PUSH10    OpCode = 0x1a
	PUSH11    OpCode = 0x1b
	PUSH12    OpCode = 0x1c
	PUSH13    OpCode = 0x1d
	PUSH14    OpCode = 0x1e
	PUSH15    OpCode = 0x1f
	PUSH16    OpCode = 0x20
	NOP       OpCode = 0x21
	JMP       OpCode = 0x22
	JMPIF     OpCode = 0x24
	JMPIFNOT  OpCode = 0x26
	ABORT     OpCode = 0x38
	ASSERT    OpCode = 0x39
	RET       OpCode = 0x40
	SYSCALL   OpCode = 0x41
	DROP      OpCode = 0x45
	DUP       OpCode = 0x4a
	SWAP      OpCode = 0x50
	EQUAL     OpCode = 0x97
	ADD       OpCode = 0x9e
	SUB       OpCode = 0x9f
	MUL       OpCode = 0xa0
)

type opInfo struct {
	name    string
	price   int64
	operand int // fixed operand size; -1 for PUSHDATA1
}

var opTable = map[OpCode]opInfo{
	PUSHINT8:  {"PUSHINT8", 1, 1},
	PUSHDATA1: {"PUSHDATA1", 8, -1},
	NOP:       {"NOP", 1, 0},
	JMP:       {"JMP", 2, 1},
	JMPIF:     {"JMPIF", 2, 1},
	JMPIFNOT:  {"JMPIFNOT", 2, 1},
	ABORT:     {"ABORT", 0, 0},
	ASSERT:    {"ASSERT", 1, 0},
	RET:       {"RET", 0, 0},
	SYSCALL:   {"SYSCALL", 0, 4},
	DROP:      {"DROP", 2, 0},
	DUP:       {"DUP", 2, 0},
	SWAP:      {"SWAP", 2, 0},
	EQUAL:     {"EQUAL", 32, 0},
	ADD:       {"ADD", 8, 0},
	SUB:       {"SUB", 8, 0},
	MUL:       {"MUL", 8, 0},
}

func init() {
	for op := PUSH0; op <= PUSH16; op++ {
		opTable[op] = opInfo{fmt.Sprintf("PUSH%d", op-PUSH0), 1, 0}
	}
}

// String implements stringer.
func (op OpCode) String() string {
	if info, ok := opTable[op]; ok {
		return info.name
	}
	return fmt.Sprintf("opcode 0x%02x", byte(op))
}

// Price returns the gas price of the opcode.
func (op OpCode) Price() int64 {
	return opTable[op].price
}

// IsValid returns whether the opcode is known.
func (op OpCode) IsValid() bool {
	_, ok := opTable[op]
	return ok
}

// Instruction is a decoded opcode with its operand.
type Instruction struct {
	OpCode  OpCode
	Operand []byte
	Size    int
}

// TokenI8 returns the operand as signed byte.
func (i Instruction) TokenI8() int8 {
	return int8(i.Operand[0])
}

// TokenU32 returns the operand as little endian uint32.
func (i Instruction) TokenU32() uint32 {
	return binary.LittleEndian.Uint32(i.Operand)
}

// DecodeInstruction decodes the instruction at ip.
func DecodeInstruction(script []byte, ip int) (Instruction, error) {
	if ip < 0 || ip >= len(script) {
		return Instruction{}, errors.Errorf("instruction pointer out of range: %d", ip)
	}
	op := OpCode(script[ip])
	info, ok := opTable[op]
	if !ok {
		return Instruction{}, errors.Errorf("invalid opcode 0x%02x at %d", byte(op), ip)
	}
	switch {
	case info.operand < 0:
		if ip+1 >= len(script) {
			return Instruction{}, errors.Errorf("truncated %v at %d", op, ip)
		}
		n := int(script[ip+1])
		end := ip + 2 + n
		if end > len(script) {
			return Instruction{}, errors.Errorf("truncated %v at %d", op, ip)
		}
		return Instruction{op, script[ip+2 : end], 2 + n}, nil
	case info.operand > 0:
		end := ip + 1 + info.operand
		if end > len(script) {
			return Instruction{}, errors.Errorf("truncated %v at %d", op, ip)
		}
		return Instruction{op, script[ip+1 : end], 1 + info.operand}, nil
	default:
		return Instruction{OpCode: op, Size: 1}, nil
	}
}
