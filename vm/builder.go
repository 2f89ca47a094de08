// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package vm

import (
	"encoding/binary"

	"github.com/miniBamboo/statetrace/statetrace"
)

// ScriptBuilder assembles scripts.
type ScriptBuilder struct {
	buf []byte
	err error
}

// NewScriptBuilder creates a builder.
func NewScriptBuilder() *ScriptBuilder {
	return &ScriptBuilder{}
}

// Emit appends opcodes without operands.
func (b *ScriptBuilder) Emit(ops ...OpCode) *ScriptBuilder {
	for _, op := range ops {
		b.buf = append(b.buf, byte(op))
	}
	return b
}

// EmitJump appends a jump with a signed offset relative to the jump itself.
func (b *ScriptBuilder) EmitJump(op OpCode, offset int8) *ScriptBuilder {
	b.buf = append(b.buf, byte(op), byte(offset))
	return b
}

// EmitPushInt pushes a small integer with the shortest encoding.
func (b *ScriptBuilder) EmitPushInt(v int8) *ScriptBuilder {
	if v >= 0 && v <= 16 {
		return b.Emit(PUSH0 + OpCode(v))
	}
	b.buf = append(b.buf, byte(PUSHINT8), byte(v))
	return b
}

// EmitPushData pushes up to 255 bytes.
func (b *ScriptBuilder) EmitPushData(data []byte) *ScriptBuilder {
	if len(data) > 0xff {
		if b.err == nil {
			b.err = statetrace.NewFormatError("push data length", len(data))
		}
		return b
	}
	b.buf = append(b.buf, byte(PUSHDATA1), byte(len(data)))
	b.buf = append(b.buf, data...)
	return b
}

// EmitPushString pushes a string as bytes.
func (b *ScriptBuilder) EmitPushString(s string) *ScriptBuilder {
	return b.EmitPushData([]byte(s))
}

// EmitSyscall appends a syscall by name.
func (b *ScriptBuilder) EmitSyscall(name string) *ScriptBuilder {
	var id [4]byte
	binary.LittleEndian.PutUint32(id[:], SyscallID(name))
	b.buf = append(b.buf, byte(SYSCALL))
	b.buf = append(b.buf, id[:]...)
	return b
}

// EmitCall emits a contract call of method on hash.
func (b *ScriptBuilder) EmitCall(hash statetrace.Hash160, method string) *ScriptBuilder {
	return b.EmitPushString(method).EmitPushData(hash[:]).EmitSyscall(ContractCall)
}

// Len returns the current script length, usable as a method offset.
func (b *ScriptBuilder) Len() int {
	return len(b.buf)
}

// Script returns the assembled script.
func (b *ScriptBuilder) Script() ([]byte, error) {
	if b.err != nil {
		return nil, b.err
	}
	return append([]byte(nil), b.buf...), nil
}

// MustScript returns the script or panics.
func (b *ScriptBuilder) MustScript() []byte {
	s, err := b.Script()
	if err != nil {
		panic(err)
	}
	return s
}
