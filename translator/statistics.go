package translator

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/malik672/risc-evm/parser"
)

// Statistics collects counters over one translation run for
// diagnostics and reporting.
type Statistics struct {
	BytecodeSize     int               `json:"bytecode_size"`
	InstructionCount int               `json:"instruction_count"`
	OpcodeCounts     map[string]uint64 `json:"opcode_counts"`
	IRCount          int               `json:"ir_count"`
	OptimizedIRCount int               `json:"optimized_ir_count"`
	LoadsFolded      int               `json:"loads_folded"`
	RiscVCount       int               `json:"riscv_count"`
	CalleeSavedUsed  int               `json:"callee_saved_used"`
	MemoryReads      uint64            `json:"memory_reads"`
	MemoryWrites     uint64            `json:"memory_writes"`
	GasUsed          uint64            `json:"gas_used"`
}

// NewStatistics creates an empty counter set.
func NewStatistics() *Statistics {
	return &Statistics{
		OpcodeCounts: make(map[string]uint64),
	}
}

// RecordInstructions tallies the decoded instruction stream.
func (s *Statistics) RecordInstructions(instructions []parser.Instruction) {
	s.InstructionCount = len(instructions)
	for i := range instructions {
		s.OpcodeCounts[instructions[i].Opcode.String()]++
	}
}

// ExportJSON serializes the statistics with stable formatting.
func (s *Statistics) ExportJSON() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// SaveToFile writes the JSON report to the given path.
func (s *Statistics) SaveToFile(path string) error {
	data, err := s.ExportJSON()
	if err != nil {
		return fmt.Errorf("failed to encode statistics: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write statistics file: %w", err)
	}
	return nil
}

// Summary renders a short human-readable report, opcodes in
// descending frequency order.
func (s *Statistics) Summary() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "bytecode: %d bytes, %d instructions\n", s.BytecodeSize, s.InstructionCount)
	fmt.Fprintf(&sb, "ir: %d ops (%d after optimization, %d loads folded)\n",
		s.IRCount, s.OptimizedIRCount, s.LoadsFolded)
	fmt.Fprintf(&sb, "riscv: %d instructions, %d callee-saved registers\n",
		s.RiscVCount, s.CalleeSavedUsed)
	fmt.Fprintf(&sb, "memory model: %d reads, %d writes\n", s.MemoryReads, s.MemoryWrites)
	fmt.Fprintf(&sb, "gas used: %d\n", s.GasUsed)

	type entry struct {
		name  string
		count uint64
	}
	entries := make([]entry, 0, len(s.OpcodeCounts))
	for name, count := range s.OpcodeCounts {
		entries = append(entries, entry{name, count})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			return entries[i].count > entries[j].count
		}
		return entries[i].name < entries[j].name
	})
	for _, e := range entries {
		fmt.Fprintf(&sb, "  %-12s %d\n", e.name, e.count)
	}

	return sb.String()
}
