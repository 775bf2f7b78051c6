package vm

// I256 reinterprets a U256 as a two's-complement signed 256-bit
// integer. Negation is bitwise-not plus one; the sign is bit 255.
type I256 U256

// I256From reinterprets an unsigned word as signed.
func I256From(u U256) I256 {
	return I256(u)
}

// Unsigned returns the raw bit pattern as a U256.
func (i I256) Unsigned() U256 {
	return U256(i)
}

// IsNegative reports whether bit 255 is set.
func (i I256) IsNegative() bool {
	return i[3]>>63 == 1
}

// Neg returns the two's-complement negation.
func (i I256) Neg() I256 {
	return I256(U256(i).Not().Add(U256FromUint64(1)))
}

// Abs returns the magnitude of i as an unsigned word. The most
// negative value maps to itself (2^255).
func (i I256) Abs() U256 {
	if i.IsNegative() {
		return U256(i.Neg())
	}
	return U256(i)
}

// Cmp returns -1, 0 or 1 for i < j, i == j, i > j in signed order:
// negatives precede non-negatives, same-sign values compare by
// magnitude of the bit pattern.
func (i I256) Cmp(j I256) int {
	in, jn := i.IsNegative(), j.IsNegative()
	switch {
	case in && !jn:
		return -1
	case !in && jn:
		return 1
	}
	return U256(i).Cmp(U256(j))
}

// Lt reports i < j in signed order.
func (i I256) Lt(j I256) bool {
	return i.Cmp(j) < 0
}

// Gt reports i > j in signed order.
func (i I256) Gt(j I256) bool {
	return i.Cmp(j) > 0
}

// Div returns the signed quotient, truncated toward zero. Division by
// zero yields zero.
func (i I256) Div(j I256) I256 {
	if U256(j).IsZero() {
		return I256{}
	}
	q, _ := i.Abs().DivMod(j.Abs())
	if i.IsNegative() != j.IsNegative() {
		return I256(q).Neg()
	}
	return I256(q)
}

// Mod returns the signed remainder. The sign of the result follows
// the sign of the dividend; modulo by zero yields zero.
func (i I256) Mod(j I256) I256 {
	if U256(j).IsZero() {
		return I256{}
	}
	_, r := i.Abs().DivMod(j.Abs())
	if i.IsNegative() {
		return I256(r).Neg()
	}
	return I256(r)
}

// Sar returns i >> n with sign extension. Shifts of 256 or more yield
// 0 for non-negative values and -1 for negative ones.
func (i I256) Sar(n uint) I256 {
	if !i.IsNegative() {
		return I256(U256(i).Rsh(n))
	}
	if n >= 256 {
		return I256(MaxU256())
	}
	// Logical shift, then fill the vacated high bits with ones.
	shifted := U256(i).Rsh(n)
	fill := MaxU256().Lsh(256 - n)
	return I256(shifted.Or(fill))
}

// SignExtend extends the value in x from (b+1) bytes to a full word,
// per the EVM SIGNEXTEND opcode. Byte indices of 31 or more leave x
// unchanged.
func SignExtend(b, x U256) U256 {
	if !b.IsUint64() || b[0] >= WordSize-1 {
		return x
	}
	signBit := uint(b[0]*8 + 7)
	mask := U256FromUint64(1).Lsh(signBit + 1).Sub(U256FromUint64(1))
	if x.Bit(signBit) == 1 {
		return x.Or(mask.Not())
	}
	return x.And(mask)
}
