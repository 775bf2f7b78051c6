// Package translator ties the pipeline stages together: decode, IR
// generation over the stack and memory models, local optimization and
// RV64I emission. The translator is single-threaded per translation
// unit; independent units can run on independent Translator values.
package translator

import (
	"fmt"

	"github.com/malik672/risc-evm/config"
	"github.com/malik672/risc-evm/encoder"
	"github.com/malik672/risc-evm/ir"
	"github.com/malik672/risc-evm/parser"
	"github.com/malik672/risc-evm/vm"
)

// Pipeline stage indices for the gas meter.
const (
	stageDecode = iota
	stageGenerate
	stageOptimize
	stageEmit
	stageCount
)

// Per-item gas charges for the translation stages. These are
// translation-accounting units, not the EVM runtime gas schedule.
const (
	gasPerByte = 1
	gasPerIROp = 2
	gasPerInst = 1
)

// Result carries the artifacts of every pipeline stage so callers can
// inspect intermediate output.
type Result struct {
	Instructions []parser.Instruction
	IR           []ir.Instruction
	OptimizedIR  []ir.Instruction
	RiscV        []encoder.RiscVInstruction
	CalleeSaved  []encoder.Register
	Stats        *Statistics
}

// Translator drives one translation unit. The stack and memory models
// are owned here and reset between Translate calls.
type Translator struct {
	cfg    *config.Config
	stack  *vm.Stack
	memory *vm.Memory
	meter  *vm.PipelinedGasMeter
}

// New creates a translator from the given configuration; nil selects
// the defaults.
func New(cfg *config.Config) (*Translator, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	stages := cfg.Gas.PipelineStages
	if stages < stageCount {
		stages = stageCount
	}

	return &Translator{
		cfg:    cfg,
		stack:  vm.NewStack(),
		memory: vm.NewMemory(),
		meter:  vm.NewPipelinedGasMeter(cfg.Gas.Limit, stages),
	}, nil
}

// GasLeft returns the translator's remaining gas balance.
func (t *Translator) GasLeft() uint64 {
	return t.meter.GasLeft()
}

// Translate runs the full pipeline over one bytecode buffer. Each
// stage reserves gas before running and commits on success; a failed
// stage rolls its reservation back and surfaces its error untouched.
func (t *Translator) Translate(bytecode []byte) (*Result, error) {
	t.stack.Reset()
	t.memory.Reset()

	stats := NewStatistics()
	stats.BytecodeSize = len(bytecode)

	// Stage 1: decode
	if err := t.meter.ReserveGas(stageDecode, uint64(len(bytecode))*gasPerByte); err != nil {
		return nil, err
	}
	p := parser.NewParser()
	p.StrictPush = t.cfg.Translator.StrictPush
	instructions, err := p.Parse(bytecode)
	if err != nil {
		t.meter.RollbackGas(stageDecode)
		return nil, err
	}
	if err := t.meter.CommitGas(stageDecode); err != nil {
		return nil, err
	}
	stats.RecordInstructions(instructions)

	// Stage 2: IR generation (symbolic execution)
	if err := t.meter.ReserveGas(stageGenerate, uint64(len(instructions))*gasPerIROp); err != nil {
		return nil, err
	}
	gen := ir.NewGenerator(t.stack, t.memory)
	if t.cfg.Translator.UnknownOpcodes == "ignore" {
		gen.SetPolicy(ir.IgnoreUnknown)
	}
	irOps, err := gen.Generate(instructions)
	if err != nil {
		t.meter.RollbackGas(stageGenerate)
		return nil, err
	}
	if err := t.meter.CommitGas(stageGenerate); err != nil {
		return nil, err
	}
	stats.IRCount = len(irOps)

	// Stage 3: local optimization
	optimized := irOps
	if t.cfg.Translator.OptimizeIR {
		if err := t.meter.ReserveGas(stageOptimize, uint64(len(irOps))); err != nil {
			return nil, err
		}
		optimized = ir.Optimize(irOps)
		if err := t.meter.CommitGas(stageOptimize); err != nil {
			return nil, err
		}
	}
	stats.OptimizedIRCount = len(optimized)
	stats.LoadsFolded = countFoldedLoads(irOps, optimized)

	// Stage 4: register allocation and RV64I emission
	if err := t.meter.ReserveGas(stageEmit, uint64(len(optimized))*gasPerInst); err != nil {
		return nil, err
	}
	enc := encoder.NewEncoder()
	riscv, err := enc.Generate(optimized)
	if err != nil {
		t.meter.RollbackGas(stageEmit)
		return nil, err
	}
	if err := t.meter.CommitGas(stageEmit); err != nil {
		return nil, err
	}

	stats.RiscVCount = len(riscv)
	stats.CalleeSavedUsed = len(enc.Allocator().CalleeSaved())
	stats.MemoryReads = t.memory.ReadCount
	stats.MemoryWrites = t.memory.WriteCount
	stats.GasUsed = t.meter.GasUsed()

	return &Result{
		Instructions: instructions,
		IR:           irOps,
		OptimizedIR:  optimized,
		RiscV:        riscv,
		CalleeSaved:  enc.Allocator().CalleeSaved(),
		Stats:        stats,
	}, nil
}

// Translate runs one bytecode buffer through a fresh translator with
// default settings.
func Translate(bytecode []byte) (*Result, error) {
	t, err := New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build translator: %w", err)
	}
	return t.Translate(bytecode)
}

// countFoldedLoads counts positions where the optimizer rewrote a
// constant load into a mov.
func countFoldedLoads(before, after []ir.Instruction) int {
	folded := 0
	for i := range before {
		if before[i].Kind == ir.KindLoadConst && after[i].Kind == ir.KindUnaryOp {
			folded++
		}
	}
	return folded
}
