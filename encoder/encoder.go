package encoder

import (
	"encoding/binary"

	"github.com/malik672/risc-evm/ir"
)

// Scratch registers used inside lowering sequences. They come from
// the argument bank, which the allocator never pools, so sequences
// can clobber them freely between IR operations.
const (
	scratchA Register = 15 // a5
	scratchB Register = 16 // a6
	scratchC Register = 17 // a7
)

// lanes is the number of 64-bit target registers per 256-bit word.
const lanes = 4

// evmWord names the four physical registers carrying one 256-bit
// value, most significant lane first.
type evmWord struct {
	regs [lanes]Register
}

// lsb returns the register holding the least significant lane.
func (w evmWord) lsb() Register {
	return w.regs[lanes-1]
}

// Encoder lowers IR to RV64I. Each abstract stack slot expands to a
// four-register word drawn from the allocator; lowering sequences are
// emitted lane-wise with explicit carry and borrow propagation. The
// encoder is a two-pass design: a label pass collecting jump targets,
// then the emit pass.
type Encoder struct {
	allocator *RegisterAllocator
	program   []RiscVInstruction
}

// NewEncoder creates an encoder with a fresh register allocator.
func NewEncoder() *Encoder {
	return &Encoder{allocator: NewRegisterAllocator()}
}

// Allocator exposes the register allocator, mainly so callers can
// inspect the callee-saved set after emission.
func (e *Encoder) Allocator() *RegisterAllocator {
	return e.allocator
}

// Generate lowers an IR sequence into RV64I instructions. Branch
// offsets are PC-relative in units of IR positions times the 4-byte
// instruction width; final layout is the linker's concern.
func (e *Encoder) Generate(instructions []ir.Instruction) ([]RiscVInstruction, error) {
	e.program = e.program[:0]

	// Label pass: jump targets, keyed by the popped target value.
	labels := make(map[uint64]int)
	for i := range instructions {
		if instructions[i].Kind == ir.KindJump {
			labels[instructions[i].Target.Uint64()] = i
		}
	}

	// Emit pass.
	for i := range instructions {
		inst := &instructions[i]
		if err := e.lower(inst, i, labels); err != nil {
			return nil, WrapEncodingError(inst, err)
		}
	}

	return e.program, nil
}

func (e *Encoder) emit(insts ...RiscVInstruction) {
	e.program = append(e.program, insts...)
}

// laneKey derives the allocator key for one lane of a stack slot. The
// emitter owns the allocator, so slot keys never appear raw.
func laneKey(slot, lane int) int {
	return slot*lanes + lane
}

// wordRegs returns (allocating as needed) the four registers backing
// a stack slot.
func (e *Encoder) wordRegs(slot int) (evmWord, error) {
	var w evmWord
	for lane := 0; lane < lanes; lane++ {
		reg, err := e.allocator.GetRegister(laneKey(slot, lane))
		if err != nil {
			return w, err
		}
		w.regs[lane] = reg
	}
	return w, nil
}

// freeWord releases a slot's four registers back to the pools.
func (e *Encoder) freeWord(slot int) {
	for lane := 0; lane < lanes; lane++ {
		e.allocator.Free(laneKey(slot, lane))
	}
}

// lower emits the RV64I sequence for one IR instruction.
func (e *Encoder) lower(inst *ir.Instruction, index int, labels map[uint64]int) error {
	switch inst.Kind {
	case ir.KindLoadConst:
		return e.lowerLoadConst(inst)

	case ir.KindBinaryOp:
		return e.lowerBinaryOp(inst)

	case ir.KindUnaryOp:
		return e.lowerUnaryOp(inst)

	case ir.KindJump:
		if label, ok := labels[inst.Target.Uint64()]; ok {
			e.emit(JumpOffset(int32(label-index) * 4))
		}
		return nil

	case ir.KindConditionalJump:
		// The condition is a concrete value from symbolic execution,
		// so the branch folds at emit time.
		if inst.Condition.IsZero() {
			return nil
		}
		if label, ok := labels[inst.Target.Uint64()]; ok {
			e.emit(JumpOffset(int32(label-index) * 4))
		}
		return nil

	case ir.KindMemoryLoad:
		return e.lowerMemoryLoad(inst)

	case ir.KindMemoryStore:
		return e.lowerMemoryStore(inst)

	case ir.KindStop, ir.KindReturn:
		// Hand control back to the host.
		e.emit(JumpAndLinkReg(RegZero, RegRA, 0))
		return nil

	case ir.KindCall, ir.KindTernaryOp:
		// Reserved: addmod/mulmod and calls lower to runtime helper
		// routines once a helper ABI lands.
		return nil
	}
	return nil
}

// lowerLoadConst synthesizes the full 256-bit constant across the
// slot's four lanes, most significant first.
func (e *Encoder) lowerLoadConst(inst *ir.Instruction) error {
	word, err := e.wordRegs(inst.Dest)
	if err != nil {
		return err
	}
	be := inst.Value.ToBeBytes()
	for lane := 0; lane < lanes; lane++ {
		chunk := binary.BigEndian.Uint64(be[lane*8 : lane*8+8])
		e.emit(LoadImm(word.regs[lane], int64(chunk)))
	}
	return nil
}

func (e *Encoder) lowerBinaryOp(inst *ir.Instruction) error {
	dest, err := e.wordRegs(inst.Dest)
	if err != nil {
		return err
	}
	a, err := e.wordRegs(inst.Src1)
	if err != nil {
		return err
	}
	b, err := e.wordRegs(inst.Src2)
	if err != nil {
		return err
	}

	switch inst.Op {
	case ir.OpAdd:
		e.emitAdd256(dest, a, b)
	case ir.OpSub:
		e.emitSub256(dest, a, b)
	case ir.OpAnd, ir.OpOr, ir.OpXor:
		op := OpAND
		switch inst.Op {
		case ir.OpOr:
			op = OpOR
		case ir.OpXor:
			op = OpXOR
		}
		for lane := 0; lane < lanes; lane++ {
			e.emit(RInst(op, dest.regs[lane], a.regs[lane], b.regs[lane]))
		}
	case ir.OpEq:
		e.emitEq256(dest, a, b)
	case ir.OpLt:
		e.emitCmp256(dest, a, b, false)
	case ir.OpGt:
		e.emitCmp256(dest, b, a, false)
	case ir.OpSlt:
		e.emitCmp256(dest, a, b, true)
	case ir.OpSgt:
		e.emitCmp256(dest, b, a, true)
	case ir.OpSwap:
		e.emitSwap(a, b)
	default:
		// mul, div, mod, smod, exp, byte, shifts and signextend
		// delegate to runtime helper routines; nothing inline yet.
	}

	// The upper operand slot dies with the operation (swap keeps both
	// slots live, everything else collapses two slots into one).
	if inst.Op != ir.OpSwap && inst.Src2 != inst.Dest {
		e.freeWord(inst.Src2)
	}
	return nil
}

func (e *Encoder) lowerUnaryOp(inst *ir.Instruction) error {
	switch inst.Op {
	case ir.OpPop:
		e.freeWord(inst.Src1)
		return nil

	case ir.OpMov:
		dest, err := e.wordRegs(inst.Dest)
		if err != nil {
			return err
		}
		src, err := e.wordRegs(inst.Src1)
		if err != nil {
			return err
		}
		e.emitMov(dest, src)
		return nil

	case ir.OpNot:
		dest, err := e.wordRegs(inst.Dest)
		if err != nil {
			return err
		}
		src, err := e.wordRegs(inst.Src1)
		if err != nil {
			return err
		}
		// XOR against all-ones complements each lane.
		e.emit(LoadImm(scratchA, -1))
		for lane := 0; lane < lanes; lane++ {
			e.emit(RInst(OpXOR, dest.regs[lane], src.regs[lane], scratchA))
		}
		return nil

	case ir.OpIsZero:
		dest, err := e.wordRegs(inst.Dest)
		if err != nil {
			return err
		}
		src, err := e.wordRegs(inst.Src1)
		if err != nil {
			return err
		}
		// OR-accumulate the lanes; the value is zero iff acc < 1.
		e.emit(RInst(OpOR, scratchA, src.regs[0], src.regs[1]))
		e.emit(RInst(OpOR, scratchA, scratchA, src.regs[2]))
		e.emit(RInst(OpOR, scratchA, scratchA, src.regs[3]))
		e.emit(LoadImm(scratchB, 1))
		e.emit(RInst(OpSLTU, dest.lsb(), scratchA, scratchB))
		e.zeroUpperLanes(dest)
		return nil
	}
	return nil
}

// emitMov copies a word lane-wise via the zero register.
func (e *Encoder) emitMov(dest, src evmWord) {
	for lane := 0; lane < lanes; lane++ {
		e.emit(RInst(OpADD, dest.regs[lane], src.regs[lane], RegZero))
	}
}

// emitSwap exchanges two words through a scratch register.
func (e *Encoder) emitSwap(a, b evmWord) {
	for lane := 0; lane < lanes; lane++ {
		e.emit(
			RInst(OpADD, scratchA, a.regs[lane], RegZero),
			RInst(OpADD, a.regs[lane], b.regs[lane], RegZero),
			RInst(OpADD, b.regs[lane], scratchA, RegZero),
		)
	}
}

// emitAdd256 adds lane-wise from the least significant lane upward,
// propagating the carry through scratchA. The carry out of a lane is
// detected with SLTU: the truncated sum is smaller than either
// operand exactly when the addition wrapped.
func (e *Encoder) emitAdd256(dest, a, b evmWord) {
	for step := 0; step < lanes; step++ {
		lane := lanes - 1 - step // LSB first
		rd, ra, rb := dest.regs[lane], a.regs[lane], b.regs[lane]

		e.emit(
			RInst(OpADD, scratchB, ra, rb),
			RInst(OpSLTU, scratchC, scratchB, ra), // carry out of a+b
		)
		if step == 0 {
			e.emit(
				RInst(OpADD, rd, scratchB, RegZero),
				RInst(OpADD, scratchA, scratchC, RegZero),
			)
			continue
		}
		e.emit(
			RInst(OpADD, rd, scratchB, scratchA),
			RInst(OpSLTU, scratchB, rd, scratchA), // carry out of +carry
			RInst(OpOR, scratchA, scratchC, scratchB),
		)
	}
}

// emitSub256 subtracts lane-wise with borrow propagation through
// scratchA.
func (e *Encoder) emitSub256(dest, a, b evmWord) {
	for step := 0; step < lanes; step++ {
		lane := lanes - 1 - step
		rd, ra, rb := dest.regs[lane], a.regs[lane], b.regs[lane]

		e.emit(
			RInst(OpSLTU, scratchC, ra, rb), // borrow out of a-b
			RInst(OpSUB, scratchB, ra, rb),
		)
		if step == 0 {
			e.emit(
				RInst(OpADD, rd, scratchB, RegZero),
				RInst(OpADD, scratchA, scratchC, RegZero),
			)
			continue
		}
		e.emit(
			RInst(OpSLTU, rd, scratchB, scratchA), // borrow out of -borrow
			RInst(OpOR, scratchC, scratchC, rd),
			RInst(OpSUB, rd, scratchB, scratchA),
			RInst(OpADD, scratchA, scratchC, RegZero),
		)
	}
}

// emitEq256 sets the destination to 1 when every lane matches:
// XOR-difference each lane, OR-accumulate, then test the accumulator
// against 1 with SLTU.
func (e *Encoder) emitEq256(dest, a, b evmWord) {
	e.emit(RInst(OpXOR, scratchA, a.regs[0], b.regs[0]))
	for lane := 1; lane < lanes; lane++ {
		e.emit(
			RInst(OpXOR, scratchB, a.regs[lane], b.regs[lane]),
			RInst(OpOR, scratchA, scratchA, scratchB),
		)
	}
	e.emit(
		LoadImm(scratchB, 1),
		RInst(OpSLTU, dest.lsb(), scratchA, scratchB),
	)
	e.zeroUpperLanes(dest)
}

// emitCmp256 sets the destination to 1 when a < b. Lanes compare from
// most significant downward: the first unequal lane decides, tracked
// by an all-equal-so-far mask. For signed comparison only the top
// lane switches to SLT; lower lanes stay unsigned.
func (e *Encoder) emitCmp256(dest, a, b evmWord, signed bool) {
	// scratchA: result accumulator, scratchB: equal-so-far flag
	e.emit(
		RInst(OpADD, scratchA, RegZero, RegZero),
		LoadImm(scratchB, 1),
	)
	for lane := 0; lane < lanes; lane++ {
		ltOp := OpSLTU
		if signed && lane == 0 {
			ltOp = OpSLT
		}
		e.emit(
			// scratchC = (a_lane < b_lane) masked by equal-so-far
			RInst(ltOp, scratchC, a.regs[lane], b.regs[lane]),
			RInst(OpAND, scratchC, scratchC, scratchB),
			RInst(OpOR, scratchA, scratchA, scratchC),
			// equal-so-far &= (a_lane == b_lane): xor, test against 1
			RInst(OpXOR, scratchC, a.regs[lane], b.regs[lane]),
			RInst(OpSLTU, scratchC, RegZero, scratchC), // 1 when different
			RInst(OpSUB, scratchC, scratchB, scratchC), // mask - different
			RInst(OpAND, scratchB, scratchB, scratchC),
		)
	}
	e.emit(RInst(OpADD, dest.lsb(), scratchA, RegZero))
	e.zeroUpperLanes(dest)
}

// zeroUpperLanes clears the three upper lanes after an operation that
// produces a boolean word.
func (e *Encoder) zeroUpperLanes(dest evmWord) {
	for lane := 0; lane < lanes-1; lane++ {
		e.emit(RInst(OpADD, dest.regs[lane], RegZero, RegZero))
	}
}

// lowerMemoryLoad loads a 256-bit word lane-wise. The byte offset
// lives in the offset slot's least significant lane; gp holds the
// base of the EVM memory area. Each 64-bit lane combines two 32-bit
// loads (LW sign-extends on RV64, so halves are re-zero-extended with
// a shift pair before merging).
func (e *Encoder) lowerMemoryLoad(inst *ir.Instruction) error {
	offset, err := e.wordRegs(inst.Src1)
	if err != nil {
		return err
	}
	dest, err := e.wordRegs(inst.Dest)
	if err != nil {
		return err
	}

	e.emit(
		RInst(OpADD, scratchC, RegGP, offset.lsb()),
		LoadImm(scratchA, 32),
	)
	for lane := 0; lane < lanes; lane++ {
		rd := dest.regs[lane]
		disp := int64(lane * 8)
		e.emit(
			// high half then low half, big-endian lane layout
			LoadWord(rd, scratchC, disp),
			RInst(OpSLL, rd, rd, scratchA),
			LoadWord(scratchB, scratchC, disp+4),
			RInst(OpSLL, scratchB, scratchB, scratchA),
			RInst(OpSRL, scratchB, scratchB, scratchA),
			RInst(OpOR, rd, rd, scratchB),
		)
	}
	return nil
}

// lowerMemoryStore stores a 256-bit word lane-wise, splitting each
// lane into two 32-bit halves.
func (e *Encoder) lowerMemoryStore(inst *ir.Instruction) error {
	offset, err := e.wordRegs(inst.Src1)
	if err != nil {
		return err
	}
	value, err := e.wordRegs(inst.Src2)
	if err != nil {
		return err
	}

	e.emit(
		RInst(OpADD, scratchC, RegGP, offset.lsb()),
		LoadImm(scratchA, 32),
	)
	for lane := 0; lane < lanes; lane++ {
		rs := value.regs[lane]
		disp := int64(lane * 8)
		e.emit(
			// high half
			RInst(OpSRL, scratchB, rs, scratchA),
			StoreWord(scratchB, scratchC, disp),
			// low half
			StoreWord(rs, scratchC, disp+4),
		)
	}

	// Both operand slots die with the store.
	e.freeWord(inst.Src1)
	e.freeWord(inst.Src2)
	return nil
}

// EmitPrologue saves the live callee-saved registers below the stack
// pointer. Each 64-bit register is split into two 32-bit stores; the
// frame is addressed at negative displacements so sp itself never
// moves (the host owns it).
func (e *Encoder) EmitPrologue() []RiscVInstruction {
	saved := e.allocator.CalleeSaved()
	out := make([]RiscVInstruction, 0, len(saved)*3+1)
	if len(saved) == 0 {
		return out
	}
	out = append(out, LoadImm(scratchA, 32))
	for i, reg := range saved {
		disp := int64(-(i + 1) * 8)
		out = append(out,
			StoreWord(reg, RegSP, disp),
			RInst(OpSRL, scratchB, reg, scratchA),
			StoreWord(scratchB, RegSP, disp+4),
		)
	}
	return out
}

// EmitEpilogue restores the registers saved by EmitPrologue, merging
// the two halves of each.
func (e *Encoder) EmitEpilogue() []RiscVInstruction {
	saved := e.allocator.CalleeSaved()
	out := make([]RiscVInstruction, 0, len(saved)*6+1)
	if len(saved) == 0 {
		return out
	}
	out = append(out, LoadImm(scratchA, 32))
	for i, reg := range saved {
		disp := int64(-(i + 1) * 8)
		out = append(out,
			LoadWord(scratchB, RegSP, disp+4),
			RInst(OpSLL, scratchB, scratchB, scratchA),
			LoadWord(reg, RegSP, disp),
			RInst(OpSLL, reg, reg, scratchA),
			RInst(OpSRL, reg, reg, scratchA),
			RInst(OpOR, reg, reg, scratchB),
		)
	}
	return out
}
