package vm

import (
	"errors"
	"fmt"
)

// Gas errors.
var (
	// ErrOutOfGas is returned when a commit would drive the balance
	// below zero.
	ErrOutOfGas = errors.New("out of gas")
)

// PipelinedGasMeter accounts gas for a multi-stage speculative
// pipeline. Each stage accumulates a reservation; committing a stage
// drains its reservation from the remaining balance, rolling back
// discards it. The committed balance never goes negative.
type PipelinedGasMeter struct {
	gasLeft        uint64
	gasLimit       uint64
	stages         int
	speculativeGas []uint64
}

// NewPipelinedGasMeter creates a meter with the given limit and
// number of pipeline stages.
func NewPipelinedGasMeter(gasLimit uint64, stages int) *PipelinedGasMeter {
	return &PipelinedGasMeter{
		gasLeft:        gasLimit,
		gasLimit:       gasLimit,
		stages:         stages,
		speculativeGas: make([]uint64, stages),
	}
}

// ReserveGas adds amount to a stage's speculative reservation.
// Reservations are not checked against the balance until commit.
func (g *PipelinedGasMeter) ReserveGas(stage int, amount uint64) error {
	if stage < 0 || stage >= g.stages {
		return fmt.Errorf("gas meter: stage %d out of range (pipeline has %d)", stage, g.stages)
	}
	g.speculativeGas[stage] += amount
	return nil
}

// CommitGas drains a stage's reservation from the balance. Fails with
// ErrOutOfGas, leaving both the balance and the reservation intact,
// when the balance cannot cover it.
func (g *PipelinedGasMeter) CommitGas(stage int) error {
	if stage < 0 || stage >= g.stages {
		return fmt.Errorf("gas meter: stage %d out of range (pipeline has %d)", stage, g.stages)
	}
	toCommit := g.speculativeGas[stage]
	if g.gasLeft < toCommit {
		return ErrOutOfGas
	}
	g.gasLeft -= toCommit
	g.speculativeGas[stage] = 0
	return nil
}

// RollbackGas discards a stage's reservation without charging it.
func (g *PipelinedGasMeter) RollbackGas(stage int) {
	if stage < 0 || stage >= g.stages {
		return
	}
	g.speculativeGas[stage] = 0
}

// GasLeft returns the committed balance.
func (g *PipelinedGasMeter) GasLeft() uint64 {
	return g.gasLeft
}

// GasUsed returns the total committed deductions so far.
func (g *PipelinedGasMeter) GasUsed() uint64 {
	return g.gasLimit - g.gasLeft
}
