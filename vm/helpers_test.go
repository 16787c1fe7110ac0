package vm

import "encoding/binary"

// asmPush appends a PUSH instruction encoding v.
func asmPush(code []byte, v int32) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, uint32(v))
	return append(append(code, byte(Push)), buf...)
}

// asmAddr appends an opcode followed by a 4-byte little-endian address
// operand, for JMP/JMPZ/JMPNZ/CALL.
func asmAddr(code []byte, op Opcode, addr uint32) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, addr)
	return append(append(code, byte(op)), buf...)
}

// asmIdx appends an opcode followed by a single local-index byte, for
// LOAD/STORE.
func asmIdx(code []byte, op Opcode, idx byte) []byte {
	return append(append(code, byte(op)), idx)
}

// asmOp appends a bare, operand-less opcode byte.
func asmOp(code []byte, op Opcode) []byte {
	return append(code, byte(op))
}

// buildImage wraps code in a valid 16-byte NBVM header with the given
// entry point, ready to be fed to LoadImage via a temp file.
func buildImage(code []byte, entryPoint uint32) []byte {
	header := make([]byte, headerSize)
	copy(header[headerMagicOffset:], bytecodeMagic[:])
	binary.LittleEndian.PutUint16(header[headerVersionOff:], bytecodeVersion)
	binary.LittleEndian.PutUint32(header[headerCodeSizeOff:], uint32(len(code)))
	binary.LittleEndian.PutUint32(header[headerEntryOff:], entryPoint)
	return append(header, code...)
}
