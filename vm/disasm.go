package vm

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Disassemble renders a flat mnemonic-and-operand listing of code to w, one
// instruction per line prefixed with its byte offset. It never constructs a
// VM and never executes anything — it is a pure read of the decode table in
// vm/instruction.go, the one-shot diagnostic described in §4.7, not a
// debugger: there is no way to single-step, set a breakpoint, or otherwise
// influence a subsequent run from its output.
func Disassemble(code []byte, w io.Writer) error {
	offset := uint32(0)
	for offset < uint32(len(code)) {
		op := code[offset]
		info, ok := lookupInstruction(op)
		if !ok {
			return fault(Unknown, "unknown opcode byte %d at offset %d", op, offset)
		}
		if uint64(offset)+uint64(info.Length) > uint64(len(code)) {
			return fault(InvalidOperand, "%s instruction at offset %d extends past code segment", info.Mnemonic, offset)
		}

		operand := ""
		switch {
		case len(info.Operands) == 1 && info.Operands[0] == OperandImmediateI32:
			v := int32(binary.LittleEndian.Uint32(code[offset+1 : offset+5]))
			operand = fmt.Sprintf(" %d", v)
		case len(info.Operands) == 1 && info.Operands[0] == OperandCodeAddressU32:
			v := binary.LittleEndian.Uint32(code[offset+1 : offset+5])
			operand = fmt.Sprintf(" %d", v)
		case len(info.Operands) == 1 && info.Operands[0] == OperandLocalIndexU8:
			operand = fmt.Sprintf(" %d", code[offset+1])
		}

		if _, err := fmt.Fprintf(w, "%04X: %s%s\n", offset, info.Mnemonic, operand); err != nil {
			return fault(FileRead, "disassembly write failed: %v", err)
		}
		offset += info.Length
	}
	return nil
}
