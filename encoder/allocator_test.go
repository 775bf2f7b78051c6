package encoder

import (
	"errors"
	"testing"
)

const initialAvailable = 17 // 7 temporaries + 10 saved

func TestAllocatorPrefersTemporaries(t *testing.T) {
	a := NewRegisterAllocator()

	if a.AvailableCount() != initialAvailable {
		t.Fatalf("expected %d available, got %d", initialAvailable, a.AvailableCount())
	}

	// The first seven allocations come from the temporary bank
	for slot := 0; slot < 7; slot++ {
		reg, err := a.Allocate(slot)
		if err != nil {
			t.Fatalf("allocate %d failed: %v", slot, err)
		}
		if reg.Kind() != RegTemporary {
			t.Errorf("allocation %d should be a temporary, got %s", slot, reg)
		}
	}
	if len(a.CalleeSaved()) != 0 {
		t.Error("temporaries should not enter the callee-saved set")
	}

	// The next ten come from the saved bank and are recorded
	for slot := 7; slot < 17; slot++ {
		reg, err := a.Allocate(slot)
		if err != nil {
			t.Fatalf("allocate %d failed: %v", slot, err)
		}
		if reg.Kind() != RegSaved {
			t.Errorf("allocation %d should be saved, got %s", slot, reg)
		}
	}
	if len(a.CalleeSaved()) != 10 {
		t.Errorf("expected 10 callee-saved registers, got %d", len(a.CalleeSaved()))
	}
}

func TestAllocatorSpill(t *testing.T) {
	a := NewRegisterAllocator()

	for slot := 0; slot < initialAvailable; slot++ {
		if _, err := a.Allocate(slot); err != nil {
			t.Fatalf("allocate %d failed: %v", slot, err)
		}
	}

	// The 18th distinct slot has nowhere to go
	_, err := a.Allocate(17)
	if err == nil {
		t.Fatal("expected spill error")
	}
	var spill *SpillError
	if !errors.As(err, &spill) {
		t.Fatalf("expected *SpillError, got %T", err)
	}
	if spill.Slot != 17 {
		t.Errorf("spill should carry the slot, got %d", spill.Slot)
	}
}

func TestAllocatorGetRegisterIdempotent(t *testing.T) {
	a := NewRegisterAllocator()

	first, err := a.GetRegister(3)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	second, err := a.GetRegister(3)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if first != second {
		t.Errorf("repeated get should return the same register: %s vs %s", first, second)
	}
	if a.AvailableCount() != initialAvailable-1 {
		t.Errorf("only one register should be consumed, %d available", a.AvailableCount())
	}
}

func TestAllocatorFreeRestoresPools(t *testing.T) {
	a := NewRegisterAllocator()

	// Allocate past the temporary bank so saved registers are in play
	for slot := 0; slot < 12; slot++ {
		if _, err := a.Allocate(slot); err != nil {
			t.Fatalf("allocate %d failed: %v", slot, err)
		}
	}

	// Free in a scrambled order
	for _, slot := range []int{11, 0, 7, 3, 10, 1, 9, 2, 8, 4, 6, 5} {
		a.Free(slot)
	}

	if a.AvailableCount() != initialAvailable {
		t.Errorf("expected %d available after freeing all, got %d",
			initialAvailable, a.AvailableCount())
	}
	if len(a.CalleeSaved()) != 0 {
		t.Errorf("callee-saved set should be empty, got %v", a.CalleeSaved())
	}
}

func TestAllocatorLIFOReuse(t *testing.T) {
	a := NewRegisterAllocator()

	reg, _ := a.Allocate(0)
	a.Free(0)
	again, _ := a.Allocate(1)
	if reg != again {
		t.Errorf("most recently freed register should be reused: %s vs %s", reg, again)
	}
}

func TestAllocatorReserveRegister(t *testing.T) {
	a := NewRegisterAllocator()

	a.ReserveRegister(Register(5)) // t0
	if a.AvailableCount() != initialAvailable-1 {
		t.Errorf("reserve should shrink the pool, got %d", a.AvailableCount())
	}
	for slot := 0; slot < initialAvailable-1; slot++ {
		reg, err := a.Allocate(slot)
		if err != nil {
			t.Fatalf("allocate %d failed: %v", slot, err)
		}
		if reg == Register(5) {
			t.Error("reserved register should never be handed out")
		}
	}

	b := NewRegisterAllocator()
	b.ReserveRegister(Register(20)) // s4
	if len(b.CalleeSaved()) != 1 || b.CalleeSaved()[0] != Register(20) {
		t.Errorf("reserving a saved register should record it, got %v", b.CalleeSaved())
	}
}

func TestAllocatorClearAllocations(t *testing.T) {
	a := NewRegisterAllocator()

	for slot := 0; slot < initialAvailable; slot++ {
		if _, err := a.Allocate(slot); err != nil {
			t.Fatalf("allocate %d failed: %v", slot, err)
		}
	}
	a.ClearAllocations()

	if a.AvailableCount() != initialAvailable {
		t.Errorf("clear should restore all %d registers, got %d",
			initialAvailable, a.AvailableCount())
	}
	if len(a.CalleeSaved()) != 0 {
		t.Error("clear should empty the callee-saved set")
	}
	if a.HasAllocation(0) {
		t.Error("clear should drop all slot mappings")
	}

	// The allocator is usable again afterwards
	if _, err := a.Allocate(0); err != nil {
		t.Errorf("allocate after clear failed: %v", err)
	}
}

func TestAllocatorNoDoubleBooking(t *testing.T) {
	a := NewRegisterAllocator()

	seen := make(map[Register]bool)
	for slot := 0; slot < initialAvailable; slot++ {
		reg, err := a.Allocate(slot)
		if err != nil {
			t.Fatalf("allocate %d failed: %v", slot, err)
		}
		if seen[reg] {
			t.Errorf("register %s handed out twice", reg)
		}
		seen[reg] = true
	}
}
