package vm

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Step decodes and executes exactly one instruction. It is the unit Run
// drives in a loop, and the unit a future interactive tool (none is built
// here — see the Non-goals) would drive one call at a time. Every opcode
// checks its preconditions — code bounds, then stack/frame depth, then
// operand range — before committing any mutation, so a fault never leaves
// the VM in a partially-updated state (§4.4's ordering rule).
func (vm *VM) Step() error {
	if vm.state != Running {
		return fault(InvalidOperand, "Step called while VM is not running (state=%s)", vm.state)
	}

	op, info, err := vm.fetch()
	if err != nil {
		return vm.failAndReport(err)
	}

	vm.trace.Emit(vm.ip, Opcode(op), vm.sp, vm.csp)
	vm.log.Debug().Uint32("ip", vm.ip).Int("sp", vm.sp).Str("op", Opcode(op).String()).Msg("fetch")

	next := vm.ip + info.Length

	switch Opcode(op) {
	case Push:
		val := int32(binary.LittleEndian.Uint32(vm.code[vm.ip+1 : vm.ip+5]))
		if err := vm.push(val); err != nil {
			return vm.failAndReport(err)
		}
		vm.ip = next

	case Pop:
		if _, err := vm.pop(); err != nil {
			return vm.failAndReport(err)
		}
		vm.ip = next

	case Load:
		idx := vm.code[vm.ip+1]
		val := vm.frame().Locals[idx]
		if err := vm.push(val); err != nil {
			return vm.failAndReport(err)
		}
		vm.ip = next

	case Store:
		idx := vm.code[vm.ip+1]
		val, err := vm.pop()
		if err != nil {
			return vm.failAndReport(err)
		}
		vm.frame().Locals[idx] = val
		vm.ip = next

	case Add:
		if err := vm.binaryOp(func(a, b int32) (int32, error) { return a + b, nil }); err != nil {
			return vm.failAndReport(err)
		}
		vm.ip = next

	case Sub:
		if err := vm.binaryOp(func(a, b int32) (int32, error) { return a - b, nil }); err != nil {
			return vm.failAndReport(err)
		}
		vm.ip = next

	case Mul:
		if err := vm.binaryOp(func(a, b int32) (int32, error) { return a * b, nil }); err != nil {
			return vm.failAndReport(err)
		}
		vm.ip = next

	case Div:
		if err := vm.binaryOp(func(a, b int32) (int32, error) {
			if b == 0 {
				return 0, fault(DivideByZero, "division by zero at ip=%d", vm.ip)
			}
			return a / b, nil
		}); err != nil {
			return vm.failAndReport(err)
		}
		vm.ip = next

	case Mod:
		if err := vm.binaryOp(func(a, b int32) (int32, error) {
			if b == 0 {
				return 0, fault(DivideByZero, "modulo by zero at ip=%d", vm.ip)
			}
			return a % b, nil
		}); err != nil {
			return vm.failAndReport(err)
		}
		vm.ip = next

	case CmpEq:
		if err := vm.compare(func(a, b int32) bool { return a == b }); err != nil {
			return vm.failAndReport(err)
		}
		vm.ip = next
	case CmpNeq:
		if err := vm.compare(func(a, b int32) bool { return a != b }); err != nil {
			return vm.failAndReport(err)
		}
		vm.ip = next
	case CmpLt:
		if err := vm.compare(func(a, b int32) bool { return a < b }); err != nil {
			return vm.failAndReport(err)
		}
		vm.ip = next
	case CmpLte:
		if err := vm.compare(func(a, b int32) bool { return a <= b }); err != nil {
			return vm.failAndReport(err)
		}
		vm.ip = next
	case CmpGt:
		if err := vm.compare(func(a, b int32) bool { return a > b }); err != nil {
			return vm.failAndReport(err)
		}
		vm.ip = next
	case CmpGte:
		if err := vm.compare(func(a, b int32) bool { return a >= b }); err != nil {
			return vm.failAndReport(err)
		}
		vm.ip = next

	case Jmp:
		target, err := vm.decodeAddress()
		if err != nil {
			return vm.failAndReport(err)
		}
		vm.ip = target

	case Jmpz:
		if vm.sp < 1 {
			return vm.failAndReport(fault(StackUnderflow, "evaluation stack underflow at ip=%d", vm.ip))
		}
		target, err := vm.decodeAddress()
		if err != nil {
			return vm.failAndReport(err)
		}
		v, _ := vm.pop()
		if v == 0 {
			vm.ip = target
		} else {
			vm.ip = next
		}

	case Jmpnz:
		if vm.sp < 1 {
			return vm.failAndReport(fault(StackUnderflow, "evaluation stack underflow at ip=%d", vm.ip))
		}
		target, err := vm.decodeAddress()
		if err != nil {
			return vm.failAndReport(err)
		}
		v, _ := vm.pop()
		if v != 0 {
			vm.ip = target
		} else {
			vm.ip = next
		}

	case Call:
		if vm.csp >= MaxCallDepth {
			return vm.failAndReport(fault(StackOverflow, "call stack overflow at ip=%d", vm.ip))
		}
		target, err := vm.decodeAddress()
		if err != nil {
			return vm.failAndReport(err)
		}
		vm.callStack[vm.csp] = Frame{ReturnAddress: next, PrevSP: vm.sp}
		vm.csp++
		vm.ip = target

	case Ret:
		if vm.csp <= 1 {
			return vm.failAndReport(fault(StackUnderflow, "call stack underflow at ip=%d", vm.ip))
		}
		vm.csp--
		vm.sp = vm.callStack[vm.csp].PrevSP
		vm.ip = vm.callStack[vm.csp].ReturnAddress

	case Print:
		v, err := vm.pop()
		if err != nil {
			return vm.failAndReport(err)
		}
		fmt.Fprintln(vm.stdout, v)
		vm.ip = next

	case Input:
		line, err := vm.stdin.ReadString('\n')
		text := strings.TrimSpace(line)
		if err != nil && !(errors.Is(err, io.EOF) && text != "") {
			return vm.failAndReport(fault(FileRead, "INPUT: failed to read from stdin: %v", err))
		}
		parsed, perr := strconv.ParseInt(text, 10, 32)
		if perr != nil {
			return vm.failAndReport(fault(InvalidOperand, "INPUT: failed to parse %q as integer: %v", text, perr))
		}
		if err := vm.push(int32(parsed)); err != nil {
			return vm.failAndReport(err)
		}
		vm.ip = next

	case Dup:
		v, ok := vm.Top()
		if !ok {
			return vm.failAndReport(fault(StackUnderflow, "stack underflow on DUP at ip=%d", vm.ip))
		}
		if err := vm.push(v); err != nil {
			return vm.failAndReport(err)
		}
		vm.ip = next

	case Swap:
		if vm.sp < 2 {
			return vm.failAndReport(fault(StackUnderflow, "stack underflow on SWAP at ip=%d", vm.ip))
		}
		vm.stack[vm.sp-1], vm.stack[vm.sp-2] = vm.stack[vm.sp-2], vm.stack[vm.sp-1]
		vm.ip = next

	case Nop:
		vm.ip = next

	case Halt:
		vm.state = Halted
		vm.log.Info().Msg("HALT instruction encountered; execution stopped")
		return nil

	default:
		return vm.failAndReport(fault(Unknown, "unrecognized opcode %d at ip=%d", op, vm.ip))
	}

	return nil
}

// Run drives Step until the VM halts, faults, or ctx-independent execution
// simply runs out of instructions to fetch (which itself surfaces as a
// fault). The loop takes no context.Context: per §5, the execution loop has
// no suspension points to cancel, and a runaway program is a bug for HALT
// or a fault to end, not something the host interrupts mid-instruction.
func (vm *VM) Run() error {
	if vm.code == nil {
		return fault(InvalidOperand, "no bytecode loaded in VM")
	}
	if vm.state == Halted || vm.state == Faulted {
		return fault(InvalidOperand, "Run called on a terminated VM (state=%s); load a program first", vm.state)
	}
	if vm.ip >= uint32(len(vm.code)) {
		return fault(InvalidOperand, "instruction pointer out of bounds: %d", vm.ip)
	}

	vm.state = Running
	for vm.state == Running {
		if err := vm.Step(); err != nil {
			return err
		}
	}
	if vm.state == Faulted {
		return vm.err
	}
	return nil
}

// fetch reads the opcode byte at the current IP and validates that its
// full encoded length (operands included) fits within the code segment,
// the first of the three dispatch-time checks every opcode performs.
func (vm *VM) fetch() (byte, InstructionInfo, error) {
	if vm.ip >= uint32(len(vm.code)) {
		return 0, InstructionInfo{}, fault(InvalidOperand, "instruction pointer out of bounds: %d", vm.ip)
	}
	op := vm.code[vm.ip]
	info, ok := lookupInstruction(op)
	if !ok {
		return 0, InstructionInfo{}, fault(Unknown, "unknown opcode byte %d at ip=%d", op, vm.ip)
	}
	if uint64(vm.ip)+uint64(info.Length) > uint64(len(vm.code)) {
		return 0, InstructionInfo{}, fault(InvalidOperand, "%s instruction at ip=%d extends past code segment", info.Mnemonic, vm.ip)
	}
	return op, info, nil
}

// decodeAddress reads the 4-byte little-endian code address operand that
// follows a jump/call opcode byte and validates it lands inside the code
// segment — the operand-range check dispatch performs last, after the
// length and stack/frame checks.
func (vm *VM) decodeAddress() (uint32, error) {
	addr := binary.LittleEndian.Uint32(vm.code[vm.ip+1 : vm.ip+5])
	if addr >= uint32(len(vm.code)) {
		return 0, fault(InvalidOperand, "jump/call target %d is out of bounds for code size %d", addr, len(vm.code))
	}
	return addr, nil
}

// frame returns the currently active call frame.
func (vm *VM) frame() *Frame {
	return &vm.callStack[vm.csp-1]
}

// push places v on top of the evaluation stack, faulting on overflow
// rather than growing the stack: the spec fixes StackSize as a hard cap.
func (vm *VM) push(v int32) error {
	if vm.sp >= StackSize {
		return fault(StackOverflow, "evaluation stack overflow at ip=%d", vm.ip)
	}
	vm.stack[vm.sp] = v
	vm.sp++
	return nil
}

// pop removes and returns the top of the evaluation stack.
func (vm *VM) pop() (int32, error) {
	if vm.sp == 0 {
		return 0, fault(StackUnderflow, "evaluation stack underflow at ip=%d", vm.ip)
	}
	vm.sp--
	return vm.stack[vm.sp], nil
}

// binaryOp pops b then a (b was pushed last), applies fn, and pushes the
// result — the two-underflow-check-then-one-push shape shared by ADD,
// SUB, MUL, DIV and MOD. Arithmetic wraps per Go's defined int32 overflow
// semantics; DIV/MOD truncate toward zero.
func (vm *VM) binaryOp(fn func(a, b int32) (int32, error)) error {
	if vm.sp < 2 {
		return fault(StackUnderflow, "evaluation stack underflow at ip=%d", vm.ip)
	}
	b := vm.stack[vm.sp-1]
	a := vm.stack[vm.sp-2]
	result, err := fn(a, b)
	if err != nil {
		return err
	}
	vm.sp -= 2
	return vm.push(result)
}

// compare is binaryOp specialized to the six CMP_* opcodes, which always
// push exactly 1 or 0.
func (vm *VM) compare(fn func(a, b int32) bool) error {
	return vm.binaryOp(func(a, b int32) (int32, error) {
		if fn(a, b) {
			return 1, nil
		}
		return 0, nil
	})
}

// failAndReport transitions the VM to Faulted, records err as the last
// fault, logs it, and returns it to the caller.
func (vm *VM) failAndReport(err error) error {
	e, ok := err.(*Error)
	if !ok {
		e = fault(Unknown, "%v", err)
	}
	vm.state = Faulted
	vm.err = e
	vm.log.Error().Uint32("ip", vm.ip).Str("kind", e.Kind.String()).Msg(e.Context)
	return e
}
