package encoder

import "fmt"

// Register is an RV64I physical register index, 0..31.
type Register uint8

// RegKind classifies a register by its ABI role.
//
// | Group     | Registers               | Role                                  |
// |-----------|-------------------------|---------------------------------------|
// | Fixed     | x0 (zero), x1 (ra),     | hardwired zero, return address,       |
// |           | x2 (sp), x3 (gp),       | stack pointer, global pointer,        |
// |           | x4 (tp)                 | thread pointer                        |
// | Temporary | x5-x7 (t0-t2),          | caller-saved scratch, freely          |
// |           | x28-x31 (t3-t6)         | overwritten                           |
// | Saved     | x8 (s0/fp), x9 (s1),    | callee-saved, preserved across calls  |
// |           | x18-x27 (s2-s11)        |                                       |
// | Argument  | x10-x17 (a0-a7)         | argument passing and return values    |
type RegKind int

const (
	RegFixed RegKind = iota
	RegTemporary
	RegSaved
	RegArgument
)

// Well-known registers.
const (
	RegZero Register = 0
	RegRA   Register = 1
	RegSP   Register = 2
	RegGP   Register = 3
	RegTP   Register = 4
)

// Kind returns the ABI class of the register.
func (r Register) Kind() RegKind {
	switch {
	case r <= 4:
		return RegFixed
	case r <= 7 || r >= 28:
		return RegTemporary
	case r <= 9 || (r >= 18 && r <= 27):
		return RegSaved
	default: // 10..17
		return RegArgument
	}
}

// IsCalleeSaved reports whether a called procedure must preserve the
// register's value.
func (r Register) IsCalleeSaved() bool {
	return r.Kind() == RegSaved
}

// abiNames maps register indices to their RISC-V ABI names.
var abiNames = [32]string{
	"zero", "ra", "sp", "gp", "tp",
	"t0", "t1", "t2",
	"s0/fp", "s1",
	"a0", "a1", "a2", "a3", "a4", "a5", "a6", "a7",
	"s2", "s3", "s4", "s5", "s6", "s7", "s8", "s9", "s10", "s11",
	"t3", "t4", "t5", "t6",
}

// ABIName returns the register's RISC-V ABI name.
func (r Register) ABIName() string {
	if r > 31 {
		return fmt.Sprintf("x%d", uint8(r))
	}
	return abiNames[r]
}

// String implements fmt.Stringer.
func (r Register) String() string {
	return r.ABIName()
}
