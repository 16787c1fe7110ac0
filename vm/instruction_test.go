package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupInstructionKnownOpcodes(t *testing.T) {
	info, ok := lookupInstruction(byte(Push))
	require.True(t, ok)
	assert.Equal(t, "PUSH", info.Mnemonic)
	assert.Equal(t, uint32(5), info.Length)

	info, ok = lookupInstruction(byte(Halt))
	require.True(t, ok)
	assert.Equal(t, "HALT", info.Mnemonic)
	assert.Equal(t, uint32(1), info.Length)
}

func TestLookupInstructionUnknownOpcode(t *testing.T) {
	_, ok := lookupInstruction(0xFF)
	assert.False(t, ok)
}

func TestOpcodeStringUnknown(t *testing.T) {
	assert.Equal(t, "?unknown?", Opcode(0xFF).String())
}

func TestSupplementalOpcodesHaveDistinctMnemonics(t *testing.T) {
	seen := make(map[string]bool)
	for op := Opcode(0); op < numOpcodes; op++ {
		info, ok := lookupInstruction(byte(op))
		require.True(t, ok, "opcode %d missing from table", op)
		assert.False(t, seen[info.Mnemonic], "duplicate mnemonic %s", info.Mnemonic)
		seen[info.Mnemonic] = true
	}
}
