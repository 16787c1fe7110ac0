package vm

// Opcode is a single byte identifying an instruction. Values are dense and
// match the order of the original NanoVM instruction table, minus the
// entries this spec's data model has no room for (registers, floats,
// devices).
type Opcode byte

const (
	Push Opcode = iota
	Pop
	Load
	Store
	Add
	Sub
	Mul
	Div
	CmpEq
	CmpNeq
	CmpLt
	CmpLte
	CmpGt
	CmpGte
	Jmp
	Jmpz
	Call
	Ret
	Print
	Halt

	// Supplemental opcodes (see SPEC_FULL.md §4.4) — present in the original
	// NanoVM instruction_set[] but dropped by the distilled spec.
	Nop
	Dup
	Swap
	Jmpnz
	Mod
	Input

	numOpcodes
)

// OperandKind classifies a single operand's encoding.
type OperandKind byte

const (
	OperandNone OperandKind = iota
	OperandImmediateI32
	OperandLocalIndexU8
	OperandCodeAddressU32
	OperandFlagU8
)

// InstructionInfo is the immutable, diagnostic-and-dispatch metadata for one
// opcode: its mnemonic, its total encoded length in bytes (opcode included),
// and its operand layout. The engine consults only Length and Operands;
// Mnemonic exists for disassembly and logging.
type InstructionInfo struct {
	Mnemonic string
	Length   uint32
	Operands []OperandKind
}

// instructionTable is built once and never mutated; it has the lifetime of
// the process, same as the original C source's static instruction_set[]
// array.
var instructionTable = [numOpcodes]InstructionInfo{
	Push:  {"PUSH", 5, []OperandKind{OperandImmediateI32}},
	Pop:   {"POP", 1, nil},
	Load:  {"LOAD", 2, []OperandKind{OperandLocalIndexU8}},
	Store: {"STORE", 2, []OperandKind{OperandLocalIndexU8}},
	Add:   {"ADD", 1, nil},
	Sub:   {"SUB", 1, nil},
	Mul:   {"MUL", 1, nil},
	Div:   {"DIV", 1, nil},

	CmpEq:  {"CMP_EQ", 1, nil},
	CmpNeq: {"CMP_NEQ", 1, nil},
	CmpLt:  {"CMP_LT", 1, nil},
	CmpLte: {"CMP_LTE", 1, nil},
	CmpGt:  {"CMP_GT", 1, nil},
	CmpGte: {"CMP_GTE", 1, nil},

	Jmp:   {"JMP", 5, []OperandKind{OperandCodeAddressU32}},
	Jmpz:  {"JMPZ", 5, []OperandKind{OperandCodeAddressU32}},
	Call:  {"CALL", 5, []OperandKind{OperandCodeAddressU32}},
	Ret:   {"RET", 1, nil},
	Print: {"PRINT", 1, nil},
	Halt:  {"HALT", 1, nil},

	Nop:   {"NOP", 1, nil},
	Dup:   {"DUP", 1, nil},
	Swap:  {"SWAP", 1, nil},
	Jmpnz: {"JMPNZ", 5, []OperandKind{OperandCodeAddressU32}},
	Mod:   {"MOD", 1, nil},
	Input: {"INPUT", 1, nil},
}

// lookupInstruction returns the metadata for op, and false if op is not a
// recognized opcode. Every unknown byte value must take this path and
// become an Unknown fault — there is no silent fall-through.
func lookupInstruction(op byte) (InstructionInfo, bool) {
	if Opcode(op) >= numOpcodes {
		return InstructionInfo{}, false
	}
	return instructionTable[op], true
}

// String renders the mnemonic for a known opcode, or a diagnostic
// placeholder for an unknown byte value. Used by disassembly and trace
// output, never consulted by the dispatch loop itself.
func (o Opcode) String() string {
	if o >= numOpcodes {
		return "?unknown?"
	}
	return instructionTable[o].Mnemonic
}
