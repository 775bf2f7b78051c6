package vm

import (
	"testing"
)

func TestMemoryWordOperations(t *testing.T) {
	m := NewMemory()

	var word [WordSize]byte
	for i := range word {
		word[i] = 1
	}
	m.WriteWord(64, word)

	if got := m.ReadWord(64); got != word {
		t.Errorf("expected written word back, got %x", got)
	}
	// Unaligned read returns the containing word
	if got := m.ReadWord(65); got != word {
		t.Errorf("read at 65 should return the word at 64, got %x", got)
	}
	if m.Size() != 96 {
		t.Errorf("expected size 96, got %d", m.Size())
	}
}

func TestMemoryZeroFill(t *testing.T) {
	m := NewMemory()

	if got := m.ReadWord(0); got != ([WordSize]byte{}) {
		t.Errorf("unwritten dense word should be zero, got %x", got)
	}
	// Far past the dense region: sparse zero
	if got := m.ReadWord(1 << 40); got != ([WordSize]byte{}) {
		t.Errorf("unwritten sparse word should be zero, got %x", got)
	}
	if m.ReadByte(12345) != 0 {
		t.Error("unwritten byte should read as zero")
	}
}

func TestMemoryByteOperations(t *testing.T) {
	m := NewMemory()

	m.WriteByte(100, 42)
	if got := m.ReadByte(100); got != 42 {
		t.Errorf("expected 42, got %d", got)
	}

	// Byte 100 lives at offset 4 within the word at 96
	word := m.ReadWord(96)
	if word[4] != 42 {
		t.Errorf("expected byte at word position 4, got %x", word)
	}

	// Writing a byte preserves the rest of the word
	m.WriteByte(101, 43)
	word = m.ReadWord(96)
	if word[4] != 42 || word[5] != 43 {
		t.Errorf("byte write should preserve siblings, got %x", word)
	}
}

func TestMemoryExpansion(t *testing.T) {
	m := NewMemory()

	m.Expand(ChunkSize + 100)
	if m.Size() != ChunkSize+128 {
		t.Errorf("expected size rounded to %d, got %d", ChunkSize+128, m.Size())
	}

	var word [WordSize]byte
	for i := range word {
		word[i] = 5
	}
	m.WriteWord(ChunkSize, word)
	if got := m.ReadWord(ChunkSize); got != word {
		t.Errorf("expected word in second chunk, got %x", got)
	}

	// Expand never shrinks
	m.Expand(32)
	if m.Size() != ChunkSize+128 {
		t.Errorf("expand should never shrink, got %d", m.Size())
	}
}

func TestMemorySparseRegion(t *testing.T) {
	m := NewMemory()

	// Offset far past any dense chunk goes to the sparse map
	const far = uint64(1) << 40
	var word [WordSize]byte
	word[0] = 0xAA
	m.WriteWord(far, word)

	if got := m.ReadWord(far); got != word {
		t.Errorf("sparse word round trip failed, got %x", got)
	}
	if got := m.ReadWord(far + 31); got != word {
		t.Errorf("unaligned sparse read should return the containing word, got %x", got)
	}
	if m.Size() != far+WordSize {
		t.Errorf("size should track sparse writes, got %d", m.Size())
	}
}

func TestMemorySizeWordMultiple(t *testing.T) {
	m := NewMemory()
	offsets := []uint64{0, 1, 31, 32, 33, 100, 4097}
	for _, off := range offsets {
		m.WriteByte(off, 1)
		if m.Size()%WordSize != 0 {
			t.Errorf("size %d not a word multiple after write at %d", m.Size(), off)
		}
	}
}

func TestMemoryReset(t *testing.T) {
	m := NewMemory()
	m.WriteByte(10, 1)
	m.WriteWord(1<<40, [WordSize]byte{0xFF})
	m.Reset()

	if m.Size() != 0 {
		t.Errorf("reset should zero size, got %d", m.Size())
	}
	if m.ReadByte(10) != 0 {
		t.Error("reset should zero dense memory")
	}
	if got := m.ReadWord(1 << 40); got != ([WordSize]byte{}) {
		t.Error("reset should drop sparse words")
	}
}
