package encoder

import "fmt"

// SpillError signals that no register is free for the given abstract
// stack slot and a spill to memory is required.
type SpillError struct {
	Slot int
}

func (e *SpillError) Error() string {
	return fmt.Sprintf("no available registers for stack slot %d: spilling needed", e.Slot)
}

// RegisterAllocator maps abstract stack slots to physical RV64I
// registers. Two pools are drawn from in order: temporaries (t0-t6),
// then callee-saved registers (s2-s11). Both pools are LIFO so the
// most recently freed register is reused first. The allocator does no
// liveness analysis; the emitter frees slots explicitly.
type RegisterAllocator struct {
	allocated      map[int]Register
	availableTemp  []Register
	availableSaved []Register
	calleeSaved    []Register
}

// NewRegisterAllocator creates an allocator with all seven
// temporaries and ten saved registers free.
func NewRegisterAllocator() *RegisterAllocator {
	a := &RegisterAllocator{
		allocated: make(map[int]Register),
	}

	// Temporaries t0-t2 (x5-x7) and t3-t6 (x28-x31)
	for i := Register(5); i <= 7; i++ {
		a.availableTemp = append(a.availableTemp, i)
	}
	for i := Register(28); i <= 31; i++ {
		a.availableTemp = append(a.availableTemp, i)
	}

	// Saved registers s2-s11 (x18-x27); s0/fp and s1 stay out of the
	// pool for frame and host use
	for i := Register(18); i <= 27; i++ {
		a.availableSaved = append(a.availableSaved, i)
	}

	return a
}

// GetRegister returns the register for a stack slot, allocating one
// if the slot has no mapping yet.
func (a *RegisterAllocator) GetRegister(slot int) (Register, error) {
	if reg, ok := a.allocated[slot]; ok {
		return reg, nil
	}
	return a.Allocate(slot)
}

// Allocate binds a fresh register to a stack slot: a free temporary
// if any, otherwise a saved register (recorded for the prologue), and
// failing both a SpillError carrying the slot.
func (a *RegisterAllocator) Allocate(slot int) (Register, error) {
	if n := len(a.availableTemp); n > 0 {
		reg := a.availableTemp[n-1]
		a.availableTemp = a.availableTemp[:n-1]
		a.allocated[slot] = reg
		return reg, nil
	}

	if n := len(a.availableSaved); n > 0 {
		reg := a.availableSaved[n-1]
		a.availableSaved = a.availableSaved[:n-1]
		a.calleeSaved = append(a.calleeSaved, reg)
		a.allocated[slot] = reg
		return reg, nil
	}

	return 0, &SpillError{Slot: slot}
}

// Free returns a slot's register to its pool. Saved registers also
// leave the callee-saved set.
func (a *RegisterAllocator) Free(slot int) {
	reg, ok := a.allocated[slot]
	if !ok {
		return
	}
	delete(a.allocated, slot)

	switch reg.Kind() {
	case RegTemporary:
		a.availableTemp = append(a.availableTemp, reg)
	case RegSaved:
		a.removeCalleeSaved(reg)
		a.availableSaved = append(a.availableSaved, reg)
	}
}

// ReserveRegister removes a specific register from its pool for a
// special purpose. Saved registers are recorded as callee-saved.
func (a *RegisterAllocator) ReserveRegister(reg Register) {
	switch reg.Kind() {
	case RegTemporary:
		a.availableTemp = removeRegister(a.availableTemp, reg)
	case RegSaved:
		a.availableSaved = removeRegister(a.availableSaved, reg)
		a.calleeSaved = append(a.calleeSaved, reg)
	}
}

// HasAllocation reports whether a stack slot has a bound register.
func (a *RegisterAllocator) HasAllocation(slot int) bool {
	_, ok := a.allocated[slot]
	return ok
}

// CalleeSaved returns the saved registers currently in use; the
// prologue and epilogue emitters preserve exactly these.
func (a *RegisterAllocator) CalleeSaved() []Register {
	return a.calleeSaved
}

// AvailableCount returns the number of free registers across both
// pools.
func (a *RegisterAllocator) AvailableCount() int {
	return len(a.availableTemp) + len(a.availableSaved)
}

// ClearAllocations returns every allocated register to its pool and
// empties the callee-saved set, ready for the next block.
func (a *RegisterAllocator) ClearAllocations() {
	for _, reg := range a.allocated {
		switch reg.Kind() {
		case RegTemporary:
			a.availableTemp = append(a.availableTemp, reg)
		case RegSaved:
			a.availableSaved = append(a.availableSaved, reg)
		}
	}
	a.allocated = make(map[int]Register)
	a.calleeSaved = nil
}

func (a *RegisterAllocator) removeCalleeSaved(reg Register) {
	a.calleeSaved = removeRegister(a.calleeSaved, reg)
}

func removeRegister(regs []Register, reg Register) []Register {
	out := regs[:0]
	for _, r := range regs {
		if r != reg {
			out = append(out, r)
		}
	}
	return out
}
