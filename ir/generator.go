package ir

import (
	"github.com/malik672/risc-evm/parser"
	"github.com/malik672/risc-evm/vm"
)

// UnknownOpcodePolicy selects what the generator does with opcodes it
// cannot lower (environment, storage and call-family opcodes).
type UnknownOpcodePolicy int

const (
	// RejectUnknown fails generation with an UnimplementedOpcodeError.
	RejectUnknown UnknownOpcodePolicy = iota
	// IgnoreUnknown applies the opcode's stack arity with zero
	// placeholders and emits no IR, keeping the model consistent.
	IgnoreUnknown
)

// Generator symbolically executes a decoded instruction sequence. For
// each instruction it applies the concrete stack and memory state
// transition and emits IR over abstract slot indices. Slot naming:
// the stack height is captured before any pop; an n-ary operation
// writes slot height-n and reads the popped positions in their
// original stack order.
type Generator struct {
	stack  *vm.Stack
	memory *vm.Memory
	policy UnknownOpcodePolicy
}

// NewGenerator creates a generator over caller-owned stack and memory
// models. Both are mutated during generation and should be Reset
// between translation units.
func NewGenerator(stack *vm.Stack, memory *vm.Memory) *Generator {
	return &Generator{stack: stack, memory: memory, policy: RejectUnknown}
}

// SetPolicy selects the handling of non-lowerable opcodes.
func (g *Generator) SetPolicy(policy UnknownOpcodePolicy) {
	g.policy = policy
}

// Generate runs the symbolic execution over the whole sequence.
// Generation ends cleanly at the first terminal opcode (STOP, RETURN,
// REVERT) or at the end of the sequence.
func (g *Generator) Generate(instructions []parser.Instruction) ([]Instruction, error) {
	out := make([]Instruction, 0, len(instructions))

	for idx := range instructions {
		inst := &instructions[idx]
		emitted, terminal, err := g.step(inst)
		if err != nil {
			return nil, err
		}
		out = append(out, emitted...)
		if terminal {
			break
		}
	}

	return out, nil
}

// step lowers one instruction, returning the IR it emits and whether
// it terminates the stream.
func (g *Generator) step(inst *parser.Instruction) ([]Instruction, bool, error) {
	op := inst.Opcode

	switch {
	case op == parser.STOP:
		return []Instruction{Stop()}, true, nil

	case op == parser.ADD || op == parser.SUB || op == parser.MUL ||
		op == parser.DIV || op == parser.SDIV || op == parser.MOD || op == parser.SMOD:
		return g.arithmetic(inst)

	case op == parser.ADDMOD || op == parser.MULMOD:
		return g.modularArithmetic(inst)

	case op == parser.EXP:
		return g.binary(inst, OpExp, func(a, b vm.U256) vm.U256 {
			return a.Exp(b)
		})

	case op == parser.SIGNEXTEND:
		// Operand order per the stack: the byte index is on top.
		return g.binaryTopFirst(inst, OpSignExtend, func(b, x vm.U256) vm.U256 {
			return vm.SignExtend(b, x)
		})

	case op == parser.LT || op == parser.GT || op == parser.SLT ||
		op == parser.SGT || op == parser.EQ:
		return g.comparison(inst)

	case op == parser.ISZERO:
		return g.unary(inst, OpIsZero, func(a vm.U256) vm.U256 {
			if a.IsZero() {
				return vm.U256FromUint64(1)
			}
			return vm.U256{}
		})

	case op == parser.AND:
		return g.binary(inst, OpAnd, vm.U256.And)
	case op == parser.OR:
		return g.binary(inst, OpOr, vm.U256.Or)
	case op == parser.XOR:
		return g.binary(inst, OpXor, vm.U256.Xor)

	case op == parser.NOT:
		return g.unary(inst, OpNot, vm.U256.Not)

	case op == parser.BYTE:
		// Byte index on top, source word below.
		return g.binaryTopFirst(inst, OpByte, func(i, x vm.U256) vm.U256 {
			return x.Byte(i)
		})

	case op == parser.SHL || op == parser.SHR || op == parser.SAR:
		return g.shift(inst)

	case op.IsPush() || op == parser.PUSH0:
		return g.push(inst)

	case op >= parser.DUP1 && op <= parser.DUP16:
		return g.dup(inst)

	case op >= parser.SWAP1 && op <= parser.SWAP16:
		return g.swap(inst)

	case op == parser.POP:
		pos := g.stack.Len()
		if _, err := g.stack.Pop(); err != nil {
			return nil, false, g.fail(inst, "pop", err)
		}
		return []Instruction{UnaryOp(OpPop, pos-1, pos-1)}, false, nil

	case op == parser.JUMP:
		target, err := g.stack.Pop()
		if err != nil {
			return nil, false, g.fail(inst, "jump target", err)
		}
		return []Instruction{Jump(target)}, false, nil

	case op == parser.JUMPI:
		// Destination is on top of the stack, condition below it.
		target, err := g.stack.Pop()
		if err != nil {
			return nil, false, g.fail(inst, "jumpi target", err)
		}
		condition, err := g.stack.Pop()
		if err != nil {
			return nil, false, g.fail(inst, "jumpi condition", err)
		}
		return []Instruction{ConditionalJump(condition, target)}, false, nil

	case op == parser.JUMPDEST:
		return nil, false, nil

	case op == parser.PC:
		pos := g.stack.Len()
		value := vm.U256FromUint64(uint64(inst.Offset))
		if err := g.stack.Push(value); err != nil {
			return nil, false, g.fail(inst, "pc", err)
		}
		return []Instruction{LoadConst(pos, value)}, false, nil

	case op == parser.MSIZE:
		pos := g.stack.Len()
		value := vm.U256FromUint64(g.memory.Size())
		if err := g.stack.Push(value); err != nil {
			return nil, false, g.fail(inst, "msize", err)
		}
		return []Instruction{LoadConst(pos, value)}, false, nil

	case op == parser.MLOAD:
		return g.mload(inst)

	case op == parser.MSTORE || op == parser.MSTORE8:
		return g.mstore(inst)

	case op == parser.RETURN || op == parser.REVERT:
		// Both pop offset and size and end the stream; the emitted
		// return hands control back to the host.
		if _, err := g.stack.Pop(); err != nil {
			return nil, false, g.fail(inst, "return offset", err)
		}
		if _, err := g.stack.Pop(); err != nil {
			return nil, false, g.fail(inst, "return size", err)
		}
		return []Instruction{Return()}, true, nil

	default:
		return g.unknown(inst)
	}
}

// fail wraps a stack or conversion error with instruction context.
func (g *Generator) fail(inst *parser.Instruction, what string, err error) error {
	return &GenerationError{Instruction: inst, Message: what, Wrapped: err}
}

// arithmetic lowers ADD, SUB, MUL, DIV, SDIV, MOD and SMOD. The
// deeper operand is the left-hand side; division and modulo by zero
// fold to zero.
func (g *Generator) arithmetic(inst *parser.Instruction) ([]Instruction, bool, error) {
	pos := g.stack.Len()

	src2, err := g.stack.Pop()
	if err != nil {
		return nil, false, g.fail(inst, "operand", err)
	}
	src1, err := g.stack.Pop()
	if err != nil {
		return nil, false, g.fail(inst, "operand", err)
	}

	var opName string
	var result vm.U256
	switch inst.Opcode {
	case parser.ADD:
		opName, result = OpAdd, src1.Add(src2)
	case parser.SUB:
		opName, result = OpSub, src1.Sub(src2)
	case parser.MUL:
		opName, result = OpMul, src1.Mul(src2)
	case parser.DIV:
		opName, result = OpDiv, src1.Div(src2)
	case parser.SDIV:
		opName = OpSdiv
		result = vm.I256From(src1).Div(vm.I256From(src2)).Unsigned()
	case parser.MOD:
		opName, result = OpMod, src1.Mod(src2)
	case parser.SMOD:
		opName = OpSmod
		result = vm.I256From(src1).Mod(vm.I256From(src2)).Unsigned()
	}

	if err := g.stack.Push(result); err != nil {
		return nil, false, g.fail(inst, "result", err)
	}
	return []Instruction{BinaryOp(opName, pos-2, pos-2, pos-1)}, false, nil
}

// modularArithmetic lowers ADDMOD and MULMOD; the modulus comes off
// the top and a zero modulus folds the result to zero.
func (g *Generator) modularArithmetic(inst *parser.Instruction) ([]Instruction, bool, error) {
	pos := g.stack.Len()

	n, err := g.stack.Pop()
	if err != nil {
		return nil, false, g.fail(inst, "modulus", err)
	}
	b, err := g.stack.Pop()
	if err != nil {
		return nil, false, g.fail(inst, "operand", err)
	}
	a, err := g.stack.Pop()
	if err != nil {
		return nil, false, g.fail(inst, "operand", err)
	}

	var opName string
	var result vm.U256
	if inst.Opcode == parser.ADDMOD {
		opName, result = OpAddMod, a.AddMod(b, n)
	} else {
		opName, result = OpMulMod, a.MulMod(b, n)
	}

	if err := g.stack.Push(result); err != nil {
		return nil, false, g.fail(inst, "result", err)
	}
	return []Instruction{TernaryOp(opName, pos-3, pos-3, pos-2, pos-1)}, false, nil
}

// comparison lowers LT, GT, SLT, SGT and EQ; the result is 0 or 1.
func (g *Generator) comparison(inst *parser.Instruction) ([]Instruction, bool, error) {
	pos := g.stack.Len()

	b, err := g.stack.Pop()
	if err != nil {
		return nil, false, g.fail(inst, "operand", err)
	}
	a, err := g.stack.Pop()
	if err != nil {
		return nil, false, g.fail(inst, "operand", err)
	}

	var opName string
	var truth bool
	switch inst.Opcode {
	case parser.LT:
		opName, truth = OpLt, a.Lt(b)
	case parser.GT:
		opName, truth = OpGt, a.Gt(b)
	case parser.SLT:
		opName, truth = OpSlt, vm.I256From(a).Lt(vm.I256From(b))
	case parser.SGT:
		opName, truth = OpSgt, vm.I256From(a).Gt(vm.I256From(b))
	case parser.EQ:
		opName, truth = OpEq, a.Eq(b)
	}

	result := vm.U256{}
	if truth {
		result = vm.U256FromUint64(1)
	}
	if err := g.stack.Push(result); err != nil {
		return nil, false, g.fail(inst, "result", err)
	}
	return []Instruction{BinaryOp(opName, pos-2, pos-2, pos-1)}, false, nil
}

// shift lowers SHL, SHR and SAR. The shift amount is on top; amounts
// of 256 or more saturate (to zero, or to the sign fill for SAR).
func (g *Generator) shift(inst *parser.Instruction) ([]Instruction, bool, error) {
	pos := g.stack.Len()

	shift, err := g.stack.Pop()
	if err != nil {
		return nil, false, g.fail(inst, "shift amount", err)
	}
	value, err := g.stack.Pop()
	if err != nil {
		return nil, false, g.fail(inst, "operand", err)
	}

	amount := uint(256)
	if shift.IsUint64() && shift.Uint64() < 256 {
		amount = uint(shift.Uint64())
	}

	var opName string
	var result vm.U256
	switch inst.Opcode {
	case parser.SHL:
		opName, result = OpShl, value.Lsh(amount)
	case parser.SHR:
		opName, result = OpShr, value.Rsh(amount)
	case parser.SAR:
		opName, result = OpSar, vm.I256From(value).Sar(amount).Unsigned()
	}

	if err := g.stack.Push(result); err != nil {
		return nil, false, g.fail(inst, "result", err)
	}
	return []Instruction{BinaryOp(opName, pos-2, pos-2, pos-1)}, false, nil
}

// binary lowers a two-operand opcode where the deeper operand is the
// left-hand side.
func (g *Generator) binary(inst *parser.Instruction, opName string, fn func(a, b vm.U256) vm.U256) ([]Instruction, bool, error) {
	pos := g.stack.Len()

	b, err := g.stack.Pop()
	if err != nil {
		return nil, false, g.fail(inst, "operand", err)
	}
	a, err := g.stack.Pop()
	if err != nil {
		return nil, false, g.fail(inst, "operand", err)
	}
	if err := g.stack.Push(fn(a, b)); err != nil {
		return nil, false, g.fail(inst, "result", err)
	}
	return []Instruction{BinaryOp(opName, pos-2, pos-2, pos-1)}, false, nil
}

// binaryTopFirst lowers a two-operand opcode where the top operand is
// the left-hand side (BYTE and SIGNEXTEND take their selector from
// the top).
func (g *Generator) binaryTopFirst(inst *parser.Instruction, opName string, fn func(top, below vm.U256) vm.U256) ([]Instruction, bool, error) {
	pos := g.stack.Len()

	top, err := g.stack.Pop()
	if err != nil {
		return nil, false, g.fail(inst, "operand", err)
	}
	below, err := g.stack.Pop()
	if err != nil {
		return nil, false, g.fail(inst, "operand", err)
	}
	if err := g.stack.Push(fn(top, below)); err != nil {
		return nil, false, g.fail(inst, "result", err)
	}
	return []Instruction{BinaryOp(opName, pos-2, pos-2, pos-1)}, false, nil
}

// unary lowers a one-operand opcode in place.
func (g *Generator) unary(inst *parser.Instruction, opName string, fn func(a vm.U256) vm.U256) ([]Instruction, bool, error) {
	pos := g.stack.Len()

	a, err := g.stack.Pop()
	if err != nil {
		return nil, false, g.fail(inst, "operand", err)
	}
	if err := g.stack.Push(fn(a)); err != nil {
		return nil, false, g.fail(inst, "result", err)
	}
	return []Instruction{UnaryOp(opName, pos-1, pos-1)}, false, nil
}

// push lowers the PUSH family. The operand is left-padded to a full
// word; PUSH0 loads zero.
func (g *Generator) push(inst *parser.Instruction) ([]Instruction, bool, error) {
	pos := g.stack.Len()
	value := vm.U256FromBytes(inst.Operand)
	if err := g.stack.Push(value); err != nil {
		return nil, false, g.fail(inst, "push", err)
	}
	return []Instruction{LoadConst(pos, value)}, false, nil
}

// dup lowers DUP1..DUP16 as a mov from the duplicated slot to the new
// top slot.
func (g *Generator) dup(inst *parser.Instruction) ([]Instruction, bool, error) {
	n := int(inst.Opcode-parser.DUP1) + 1
	pos := g.stack.Len()

	value, err := g.stack.PeekAt(n - 1)
	if err != nil {
		return nil, false, g.fail(inst, "dup depth", err)
	}
	if err := g.stack.Push(value); err != nil {
		return nil, false, g.fail(inst, "dup", err)
	}
	return []Instruction{UnaryOp(OpMov, pos, pos-n)}, false, nil
}

// swap lowers SWAP1..SWAP16 as a slot exchange between the top and
// the slot n below it.
func (g *Generator) swap(inst *parser.Instruction) ([]Instruction, bool, error) {
	n := int(inst.Opcode-parser.SWAP1) + 1
	pos := g.stack.Len()

	if err := g.stack.Swap(n); err != nil {
		return nil, false, g.fail(inst, "swap depth", err)
	}
	return []Instruction{BinaryOp(OpSwap, pos-1, pos-1, pos-1-n)}, false, nil
}

// mload pops the offset, reads the containing word from the memory
// model and pushes it.
func (g *Generator) mload(inst *parser.Instruction) ([]Instruction, bool, error) {
	pos := g.stack.Len()

	offset, err := g.stack.Pop()
	if err != nil {
		return nil, false, g.fail(inst, "mload offset", err)
	}
	addr, err := vm.SafeU256ToUint64(offset)
	if err != nil {
		return nil, false, g.fail(inst, "mload offset", err)
	}

	word := g.memory.ReadWord(addr)
	if err := g.stack.Push(vm.U256FromBeBytes(word)); err != nil {
		return nil, false, g.fail(inst, "mload", err)
	}
	return []Instruction{MemoryLoad(pos-1, pos-1)}, false, nil
}

// mstore pops offset then value and writes the word (or its lowest
// byte for MSTORE8) into the memory model.
func (g *Generator) mstore(inst *parser.Instruction) ([]Instruction, bool, error) {
	pos := g.stack.Len()

	offset, err := g.stack.Pop()
	if err != nil {
		return nil, false, g.fail(inst, "mstore offset", err)
	}
	value, err := g.stack.Pop()
	if err != nil {
		return nil, false, g.fail(inst, "mstore value", err)
	}
	addr, err := vm.SafeU256ToUint64(offset)
	if err != nil {
		return nil, false, g.fail(inst, "mstore offset", err)
	}

	opName := OpMstore
	if inst.Opcode == parser.MSTORE8 {
		opName = OpMstore8
		g.memory.WriteByte(addr, byte(value.Uint64()))
	} else {
		g.memory.WriteWord(addr, value.ToBeBytes())
	}
	return []Instruction{MemoryStore(opName, pos-1, pos-2)}, false, nil
}

// unknown applies the configured policy to a non-lowerable opcode.
func (g *Generator) unknown(inst *parser.Instruction) ([]Instruction, bool, error) {
	if g.policy == RejectUnknown {
		return nil, false, &UnimplementedOpcodeError{Opcode: inst.Opcode, Offset: inst.Offset}
	}

	// Apply the stack arity neutrally so the model stays consistent.
	for i := 0; i < inst.Opcode.StackIn(); i++ {
		if _, err := g.stack.Pop(); err != nil {
			return nil, false, g.fail(inst, "skipped opcode operand", err)
		}
	}
	for i := 0; i < inst.Opcode.StackOut(); i++ {
		if err := g.stack.Push(vm.U256{}); err != nil {
			return nil, false, g.fail(inst, "skipped opcode result", err)
		}
	}
	return nil, false, nil
}
