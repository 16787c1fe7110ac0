package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKindCodeStability(t *testing.T) {
	// These codes double as CLI process exit codes: once assigned they must
	// never move, so the test pins the exact integers rather than just
	// comparing kinds to each other.
	assert.Equal(t, 0, Success.Code())
	assert.Equal(t, 1, FileNotFound.Code())
	assert.Equal(t, 2, FileTooLarge.Code())
	assert.Equal(t, 3, FileRead.Code())
	assert.Equal(t, 4, InvalidFormat.Code())
	assert.Equal(t, 5, NullPointer.Code())
	assert.Equal(t, 6, InvalidOperand.Code())
	assert.Equal(t, 7, OutOfMemory.Code())
	assert.Equal(t, 8, StackOverflow.Code())
	assert.Equal(t, 9, StackUnderflow.Code())
	assert.Equal(t, 10, DivideByZero.Code())
	assert.Equal(t, 11, Unknown.Code())
}

func TestErrorMessageIncludesContext(t *testing.T) {
	err := fault(DivideByZero, "division by zero at ip=%d", 42)
	assert.Equal(t, "divide by zero: division by zero at ip=42", err.Error())
}

func TestKindOfNilIsSuccess(t *testing.T) {
	assert.Equal(t, Success, KindOf(nil))
}

func TestKindOfForeignErrorIsUnknown(t *testing.T) {
	assert.Equal(t, Unknown, KindOf(assert.AnError))
}

func TestKindOfOwnError(t *testing.T) {
	err := fault(StackOverflow, "overflow")
	assert.Equal(t, StackOverflow, KindOf(err))
}
