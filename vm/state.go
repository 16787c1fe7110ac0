package vm

import (
	"bufio"
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Fixed capacities from the data model. These are compile-time constants,
// not configuration: the spec fixes them, and a reimplementation that made
// them runtime-tunable would be solving a problem the spec doesn't have.
const (
	StackSize    = 1024
	MaxCallDepth = 64
	MaxLocals    = 256
)

// RunState is the engine's state machine (§4.4): Ready -> Running ->
// {Halted, Faulted}. Faulted and Halted are absorbing; only LoadProgram
// moves a terminal VM back to Ready.
type RunState int

const (
	Ready RunState = iota
	Running
	Halted
	Faulted
)

func (s RunState) String() string {
	switch s {
	case Ready:
		return "ready"
	case Running:
		return "running"
	case Halted:
		return "halted"
	case Faulted:
		return "faulted"
	default:
		return "unknown"
	}
}

// Frame is a single call-stack activation record: locals, the return
// address to resume at, and the evaluation-stack pointer to restore on
// RET.
type Frame struct {
	Locals        [MaxLocals]int32
	ReturnAddress uint32
	PrevSP        int
}

// VM owns the evaluation stack, the call-frame stack, the loaded code
// buffer, the instruction pointer, and the last fault. It is single-
// threaded and non-reentrant: exactly one Run/Step loop may be in flight
// on a given instance at a time (§5).
type VM struct {
	code []byte
	ip   uint32

	stack [StackSize]int32
	sp    int

	callStack [MaxCallDepth]Frame
	csp       int

	state RunState
	err   *Error

	stdout io.Writer
	stdin  *bufio.Reader

	trace *Trace
	log   zerolog.Logger
}

// New builds an initialized VM with no program loaded, writing PRINT to
// stdout and reading INPUT from stdin, and logging through log. This is
// the everyday constructor; tests and embedders that want to capture
// stdout/stdin use NewWithIO.
func New(log zerolog.Logger) *VM {
	return NewWithIO(os.Stdout, os.Stdin, log)
}

// NewWithIO builds an initialized VM with explicit PRINT/INPUT streams,
// the seam the "test harness hooks" component of the spec calls for:
// a test can hand the VM an in-memory writer/reader and assert on their
// contents without touching the real console.
func NewWithIO(stdout io.Writer, stdin io.Reader, log zerolog.Logger) *VM {
	vm := &VM{
		stdout: stdout,
		stdin:  bufio.NewReader(stdin),
		log:    log,
	}
	vm.initialize()
	return vm
}

// initialize resets the VM to a freshly-constructed, code-less state:
// SP=0, CSP=1 (root frame active), IP=0, last error cleared. This is the
// state container's "initialize" operation (§4.3).
func (vm *VM) initialize() {
	vm.code = nil
	vm.ip = 0
	vm.sp = 0
	vm.callStack = [MaxCallDepth]Frame{}
	vm.csp = 1
	vm.state = Ready
	vm.err = nil
}

// LoadProgram copies code into an owned buffer, replacing any prior
// program, and resets the VM to a fresh-launch state: IP = entryPoint,
// SP = 0, CSP = 1. entryPoint is supplied explicitly by the caller (the
// loader), never re-parsed out of the code buffer (§4.2's resolution of
// the original's Open Question).
func (vm *VM) LoadProgram(code []byte, entryPoint uint32) error {
	if code == nil {
		vm.log.Error().Msg("LoadProgram: code buffer is nil")
		return fault(NullPointer, "code buffer is nil")
	}
	if len(code) == 0 || entryPoint >= uint32(len(code)) {
		vm.log.Error().Uint32("entry_point", entryPoint).Int("code_size", len(code)).
			Msg("LoadProgram: invalid code size or entry point")
		return fault(InvalidOperand, "entry point %d out of bounds for code size %d", entryPoint, len(code))
	}

	if vm.code != nil {
		vm.log.Warn().Msg("existing bytecode in VM was overwritten")
	}

	owned := make([]byte, len(code))
	copy(owned, code)
	vm.code = owned

	vm.sp = 0
	vm.callStack = [MaxCallDepth]Frame{}
	vm.csp = 1
	vm.ip = entryPoint
	vm.state = Ready
	vm.err = nil

	vm.log.Info().Int("code_size", len(owned)).Uint32("entry_point", entryPoint).
		Msg("bytecode loaded into VM")
	return nil
}

// Release frees the code buffer and resets the evaluation stack. Safe to
// call on an already-released VM (idempotent, per §4.3).
func (vm *VM) Release() error {
	vm.code = nil
	vm.sp = 0
	vm.log.Info().Msg("VM resources freed")
	return nil
}

// State returns the engine's current state-machine state.
func (vm *VM) State() RunState { return vm.state }

// LastError returns the fault that terminated the last Run/Step, or nil
// if the VM halted normally or has not yet faulted.
func (vm *VM) LastError() *Error { return vm.err }

// IP, SP, CSP expose the VM's inspectable state for diagnostics (§7): a
// faulted VM's instruction pointer, evaluation-stack depth, and call
// depth remain readable after the fault.
func (vm *VM) IP() uint32  { return vm.ip }
func (vm *VM) SP() int     { return vm.sp }
func (vm *VM) CSP() int    { return vm.csp }
func (vm *VM) CodeSize() int { return len(vm.code) }

// Top returns the value at the top of the evaluation stack and whether
// the stack was non-empty, for diagnostics after a fault.
func (vm *VM) Top() (int32, bool) {
	if vm.sp == 0 {
		return 0, false
	}
	return vm.stack[vm.sp-1], true
}

// SetTrace attaches an execution trace sink; nil disables tracing. See
// vm/trace.go.
func (vm *VM) SetTrace(t *Trace) { vm.trace = t }
