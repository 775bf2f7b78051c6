package ir

// Optimize performs a single linear pass of redundant constant-load
// elimination. When two adjacent LoadConst instructions carry the
// same value, the second becomes a mov from the first's slot; any
// other instruction clears the one-step memory. Order and length are
// preserved.
func Optimize(instructions []Instruction) []Instruction {
	optimized := make([]Instruction, 0, len(instructions))

	haveLast := false
	var lastDest int
	var lastValue [32]byte

	for _, inst := range instructions {
		if inst.Kind == KindLoadConst {
			value := inst.Value.ToBeBytes()
			if haveLast && value == lastValue {
				optimized = append(optimized, UnaryOp(OpMov, inst.Dest, lastDest))
				continue
			}
			haveLast = true
			lastDest = inst.Dest
			lastValue = value
		} else {
			haveLast = false
		}
		optimized = append(optimized, inst)
	}

	return optimized
}
