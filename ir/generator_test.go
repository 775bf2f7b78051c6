package ir

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/malik672/risc-evm/parser"
	"github.com/malik672/risc-evm/vm"
)

// generate decodes and symbolically executes bytecode against fresh
// models, returning the IR plus the models for post-state assertions.
func generate(t *testing.T, bytecode []byte) ([]Instruction, *vm.Stack, *vm.Memory) {
	t.Helper()
	instructions, err := parser.Parse(bytecode)
	require.NoError(t, err)

	stack := vm.NewStack()
	memory := vm.NewMemory()
	out, err := NewGenerator(stack, memory).Generate(instructions)
	require.NoError(t, err)
	return out, stack, memory
}

func TestGenerateSolidityPrologue(t *testing.T) {
	out, stack, memory := generate(t, []byte{0x60, 0x80, 0x60, 0x40, 0x52})

	require.Len(t, out, 3)
	assert.Equal(t, LoadConst(0, vm.U256FromUint64(0x80)), out[0])
	assert.Equal(t, LoadConst(1, vm.U256FromUint64(0x40)), out[1])
	assert.Equal(t, KindMemoryStore, out[2].Kind)

	// Memory post-state: word at 0x40 holds 0x80, left padded
	word := memory.ReadWord(0x40)
	assert.Equal(t, vm.U256FromUint64(0x80).ToBeBytes(), word)
	assert.True(t, stack.IsEmpty())
}

func TestGenerateAddition(t *testing.T) {
	out, stack, _ := generate(t, []byte{0x60, 0x01, 0x60, 0x02, 0x01})

	require.Len(t, out, 3)
	assert.Equal(t, BinaryOp(OpAdd, 0, 0, 1), out[2])

	require.Equal(t, 1, stack.Len())
	top, err := stack.Peek()
	require.NoError(t, err)
	assert.Equal(t, vm.U256FromUint64(3), top)
}

func TestGenerateDivideByZero(t *testing.T) {
	_, stack, _ := generate(t, []byte{0x60, 0x00, 0x60, 0x0A, 0x04})

	require.Equal(t, 1, stack.Len())
	top, err := stack.Peek()
	require.NoError(t, err)
	assert.True(t, top.IsZero(), "division by zero folds to zero, not an error")
}

func TestGenerateStopTerminates(t *testing.T) {
	// Everything after STOP is dropped
	out, _, _ := generate(t, []byte{0x60, 0x01, 0x00, 0x60, 0x02})

	require.Len(t, out, 2)
	assert.Equal(t, KindStop, out[1].Kind)
}

func TestGenerateReturnTerminates(t *testing.T) {
	// PUSH1 0, PUSH1 0x20, RETURN — pops size under offset, emits the
	// terminal return and ends the stream
	out, stack, _ := generate(t, []byte{0x60, 0x00, 0x60, 0x20, 0xF3, 0x01})

	require.Len(t, out, 3)
	assert.Equal(t, KindReturn, out[2].Kind)
	assert.True(t, stack.IsEmpty())
}

func TestGenerateSignedOps(t *testing.T) {
	// PUSH32 -10, PUSH1 3, SMOD: the deeper operand is the dividend,
	// so -10 smod 3 = -1
	minusTen := vm.I256From(vm.U256FromUint64(10)).Neg().Unsigned().ToBeBytes()
	bytecode := append([]byte{0x7F}, minusTen[:]...)
	bytecode = append(bytecode, 0x60, 0x03, 0x07)

	out, stack, _ := generate(t, bytecode)
	require.Len(t, out, 3)
	assert.Equal(t, BinaryOp(OpSmod, 0, 0, 1), out[2])

	top, err := stack.Peek()
	require.NoError(t, err)
	want := vm.I256From(vm.U256FromUint64(1)).Neg().Unsigned()
	assert.Equal(t, want, top, "sign of the result follows the dividend")
}

func TestGenerateComparisons(t *testing.T) {
	// PUSH1 2, PUSH1 1, LT: deeper(2) < top(1) is false
	_, stack, _ := generate(t, []byte{0x60, 0x02, 0x60, 0x01, 0x10})
	top, err := stack.Peek()
	require.NoError(t, err)
	assert.True(t, top.IsZero())

	// SLT with -1 below 0: -1 < 0 is true
	minusOne := vm.MaxU256().ToBeBytes()
	bytecode := append([]byte{0x7F}, minusOne[:]...)
	bytecode = append(bytecode, 0x60, 0x00, 0x12)
	_, stack, _ = generate(t, bytecode)
	top, err = stack.Peek()
	require.NoError(t, err)
	assert.Equal(t, vm.U256FromUint64(1), top)
}

func TestGenerateByteOp(t *testing.T) {
	// PUSH2 0xAABB, PUSH1 31, BYTE: lowest byte is 0xBB
	_, stack, _ := generate(t, []byte{0x61, 0xAA, 0xBB, 0x60, 31, 0x1A})
	top, err := stack.Peek()
	require.NoError(t, err)
	assert.Equal(t, vm.U256FromUint64(0xBB), top)

	// Index 32 and beyond folds to zero
	_, stack, _ = generate(t, []byte{0x61, 0xAA, 0xBB, 0x60, 32, 0x1A})
	top, err = stack.Peek()
	require.NoError(t, err)
	assert.True(t, top.IsZero())
}

func TestGenerateAddModMulMod(t *testing.T) {
	// PUSH1 7, PUSH1 8, PUSH1 10, ADDMOD: (7+8) % 10 = 5
	out, stack, _ := generate(t, []byte{0x60, 0x07, 0x60, 0x08, 0x60, 0x0A, 0x08})
	require.Len(t, out, 4)
	assert.Equal(t, TernaryOp(OpAddMod, 0, 0, 1, 2), out[3])
	top, err := stack.Peek()
	require.NoError(t, err)
	assert.Equal(t, vm.U256FromUint64(5), top)

	// Zero modulus folds to zero
	_, stack, _ = generate(t, []byte{0x60, 0x07, 0x60, 0x08, 0x60, 0x00, 0x09})
	top, err = stack.Peek()
	require.NoError(t, err)
	assert.True(t, top.IsZero())
}

func TestGeneratePushFamily(t *testing.T) {
	// PUSH2 pads left to a full word
	out, _, _ := generate(t, []byte{0x61, 0xAB, 0xCD})
	require.Len(t, out, 1)
	assert.Equal(t, LoadConst(0, vm.U256FromUint64(0xABCD)), out[0])

	// PUSH0 loads zero
	out, _, _ = generate(t, []byte{0x5F})
	require.Len(t, out, 1)
	assert.Equal(t, LoadConst(0, vm.U256{}), out[0])
}

func TestGenerateDupSwap(t *testing.T) {
	// PUSH1 1, PUSH1 2, DUP2: copies the deeper slot onto the top
	out, stack, _ := generate(t, []byte{0x60, 0x01, 0x60, 0x02, 0x81})
	require.Len(t, out, 3)
	assert.Equal(t, UnaryOp(OpMov, 2, 0), out[2])
	top, err := stack.Peek()
	require.NoError(t, err)
	assert.Equal(t, vm.U256FromUint64(1), top)
	require.Equal(t, 3, stack.Len())

	// PUSH1 1, PUSH1 2, SWAP1
	out, stack, _ = generate(t, []byte{0x60, 0x01, 0x60, 0x02, 0x90})
	require.Len(t, out, 3)
	assert.Equal(t, BinaryOp(OpSwap, 1, 1, 0), out[2])
	top, err = stack.Peek()
	require.NoError(t, err)
	assert.Equal(t, vm.U256FromUint64(1), top)
}

func TestGenerateJumpOrder(t *testing.T) {
	// PUSH1 1 (condition), PUSH1 8 (destination), JUMPI.
	// The destination comes off the top, the condition below it.
	out, _, _ := generate(t, []byte{0x60, 0x01, 0x60, 0x08, 0x57})
	require.Len(t, out, 3)
	jump := out[2]
	assert.Equal(t, KindConditionalJump, jump.Kind)
	assert.Equal(t, vm.U256FromUint64(8), jump.Target)
	assert.Equal(t, vm.U256FromUint64(1), jump.Condition)

	// Unconditional JUMP takes its target from the top
	out, _, _ = generate(t, []byte{0x60, 0x04, 0x56})
	require.Len(t, out, 2)
	assert.Equal(t, Jump(vm.U256FromUint64(4)), out[1])
}

func TestGenerateMemoryRoundTrip(t *testing.T) {
	// PUSH1 0x2A, PUSH1 0x40, MSTORE, PUSH1 0x40, MLOAD
	out, stack, _ := generate(t, []byte{
		0x60, 0x2A, 0x60, 0x40, 0x52,
		0x60, 0x40, 0x51,
	})
	require.Len(t, out, 5)
	assert.Equal(t, KindMemoryLoad, out[4].Kind)

	top, err := stack.Peek()
	require.NoError(t, err)
	assert.Equal(t, vm.U256FromUint64(0x2A), top, "mload reads back the stored word")
}

func TestGenerateMstore8(t *testing.T) {
	// PUSH2 0x1234, PUSH1 0, MSTORE8: only the low byte lands
	_, _, memory := generate(t, []byte{0x61, 0x12, 0x34, 0x60, 0x00, 0x53})
	assert.Equal(t, byte(0x34), memory.ReadByte(0))
	assert.Equal(t, byte(0x00), memory.ReadByte(1))
}

func TestGenerateMsizePc(t *testing.T) {
	// MSTORE at 0x40 makes msize 0x60; PC pushes its own offset
	out, stack, _ := generate(t, []byte{
		0x60, 0x01, 0x60, 0x40, 0x52, // MSTORE at 0x40
		0x59, // MSIZE
		0x58, // PC at offset 6
	})
	require.Len(t, out, 5)

	top, err := stack.Peek()
	require.NoError(t, err)
	assert.Equal(t, vm.U256FromUint64(6), top)

	below, err := stack.PeekAt(1)
	require.NoError(t, err)
	assert.Equal(t, vm.U256FromUint64(0x60), below)
}

func TestGenerateStackUnderflow(t *testing.T) {
	instructions, err := parser.Parse([]byte{0x01}) // ADD on empty stack
	require.NoError(t, err)

	_, err = NewGenerator(vm.NewStack(), vm.NewMemory()).Generate(instructions)
	require.Error(t, err)
	assert.True(t, errors.Is(err, vm.ErrStackUnderflow))

	var genErr *GenerationError
	require.True(t, errors.As(err, &genErr))
	assert.Equal(t, parser.ADD, genErr.Instruction.Opcode)
}

func TestGenerateUnimplementedPolicy(t *testing.T) {
	instructions, err := parser.Parse([]byte{0x60, 0x01, 0x54}) // PUSH1 1, SLOAD
	require.NoError(t, err)

	// Default policy rejects
	_, err = NewGenerator(vm.NewStack(), vm.NewMemory()).Generate(instructions)
	var unimpl *UnimplementedOpcodeError
	require.True(t, errors.As(err, &unimpl))
	assert.Equal(t, parser.SLOAD, unimpl.Opcode)

	// Ignore policy applies the arity with placeholders
	stack := vm.NewStack()
	g := NewGenerator(stack, vm.NewMemory())
	g.SetPolicy(IgnoreUnknown)
	out, err := g.Generate(instructions)
	require.NoError(t, err)
	require.Len(t, out, 1) // only the LoadConst survives
	assert.Equal(t, 1, stack.Len(), "SLOAD pops one, pushes one placeholder")
}

func TestGenerateShifts(t *testing.T) {
	// PUSH1 1, PUSH1 4, SHL: 1 << 4 = 16
	_, stack, _ := generate(t, []byte{0x60, 0x01, 0x60, 0x04, 0x1B})
	top, err := stack.Peek()
	require.NoError(t, err)
	assert.Equal(t, vm.U256FromUint64(16), top)

	// SAR of -8 by 1 is -4
	minusEight := vm.I256From(vm.U256FromUint64(8)).Neg().Unsigned().ToBeBytes()
	bytecode := append([]byte{0x7F}, minusEight[:]...)
	bytecode = append(bytecode, 0x60, 0x01, 0x1D)
	_, stack, _ = generate(t, bytecode)
	top, err = stack.Peek()
	require.NoError(t, err)
	assert.Equal(t, vm.I256From(vm.U256FromUint64(4)).Neg().Unsigned(), top)
}

func TestGenerateIsZeroNot(t *testing.T) {
	_, stack, _ := generate(t, []byte{0x60, 0x00, 0x15}) // ISZERO(0) = 1
	top, err := stack.Peek()
	require.NoError(t, err)
	assert.Equal(t, vm.U256FromUint64(1), top)

	out, stack, _ := generate(t, []byte{0x60, 0x00, 0x19}) // NOT(0) = MAX
	require.Len(t, out, 2)
	assert.Equal(t, UnaryOp(OpNot, 0, 0), out[1])
	top, err = stack.Peek()
	require.NoError(t, err)
	assert.Equal(t, vm.MaxU256(), top)
}
