package vm

// Memory layout constants.
const (
	// ChunkWords is the number of 32-byte words per dense chunk.
	ChunkWords = 1024
	// ChunkSize is the dense chunk size in bytes (32 KiB).
	ChunkSize = ChunkWords * WordSize
)

// Memory is the compile-time model of EVM memory: a byte-addressed,
// word-aligned, auto-expanding buffer. Small offsets live in dense
// 32 KiB chunks grown one at a time; offsets past the dense region
// fall back to a sparse word map. Every unwritten byte reads as zero
// and the logical size is always a multiple of the word size.
type Memory struct {
	chunks [][]byte
	sparse map[uint64][WordSize]byte
	size   uint64

	// Access counters, for diagnostics and statistics.
	AccessCount uint64
	ReadCount   uint64
	WriteCount  uint64
}

// NewMemory creates a memory model with a single dense chunk mapped.
func NewMemory() *Memory {
	return &Memory{
		chunks: [][]byte{make([]byte, ChunkSize)},
		sparse: make(map[uint64][WordSize]byte),
	}
}

// alignWord aligns an offset down to a 32-byte boundary.
func alignWord(offset uint64) uint64 {
	return offset &^ (WordSize - 1)
}

// denseLimit returns the first offset past the dense region.
func (m *Memory) denseLimit() uint64 {
	return uint64(len(m.chunks)) * ChunkSize
}

// ReadWord returns the 32-byte word containing offset. The offset is
// aligned down; dense chunks are consulted before the sparse map.
func (m *Memory) ReadWord(offset uint64) [WordSize]byte {
	m.AccessCount++
	m.ReadCount++

	aligned := alignWord(offset)
	if aligned < m.denseLimit() {
		var word [WordSize]byte
		chunk := m.chunks[aligned/ChunkSize]
		start := aligned % ChunkSize
		copy(word[:], chunk[start:start+WordSize])
		return word
	}
	return m.sparse[aligned]
}

// WriteWord stores a 32-byte word at the aligned offset and extends
// the logical size to cover it.
func (m *Memory) WriteWord(offset uint64, value [WordSize]byte) {
	m.AccessCount++
	m.WriteCount++

	aligned := alignWord(offset)
	if aligned+WordSize > m.size {
		m.size = aligned + WordSize
	}

	if aligned < m.denseLimit() {
		chunk := m.chunks[aligned/ChunkSize]
		start := aligned % ChunkSize
		copy(chunk[start:start+WordSize], value[:])
		return
	}
	m.sparse[aligned] = value
}

// ReadByte returns the byte at offset.
func (m *Memory) ReadByte(offset uint64) byte {
	word := m.ReadWord(offset)
	return word[offset%WordSize]
}

// WriteByte stores a single byte, preserving the rest of its word.
func (m *Memory) WriteByte(offset uint64, value byte) {
	word := m.ReadWord(offset)
	word[offset%WordSize] = value
	m.WriteWord(offset, word)
}

// Size returns the logical size in bytes: the highest word boundary
// ever touched by a write or an expansion. Always a multiple of 32.
func (m *Memory) Size() uint64 {
	return m.size
}

// Expand grows the dense region to cover newSize bytes, rounded up to
// a word boundary. The logical size only ever increases.
func (m *Memory) Expand(newSize uint64) {
	aligned := (newSize + WordSize - 1) &^ (WordSize - 1)
	if aligned > m.size {
		m.size = aligned
	}
	required := (aligned + ChunkSize - 1) / ChunkSize
	for uint64(len(m.chunks)) < required {
		m.chunks = append(m.chunks, make([]byte, ChunkSize))
	}

	// Sparse words now inside the dense region move into it, so the
	// dense-first lookup in ReadWord still finds them.
	limit := m.denseLimit()
	for off, word := range m.sparse {
		if off < limit {
			copy(m.chunks[off/ChunkSize][off%ChunkSize:], word[:])
			delete(m.sparse, off)
		}
	}
}

// Reset zeroes all dense chunks, drops the sparse map and clears the
// counters, ready for the next translation unit.
func (m *Memory) Reset() {
	for _, chunk := range m.chunks {
		for i := range chunk {
			chunk[i] = 0
		}
	}
	m.sparse = make(map[uint64][WordSize]byte)
	m.size = 0
	m.AccessCount = 0
	m.ReadCount = 0
	m.WriteCount = 0
}
