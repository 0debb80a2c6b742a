package arm7

// Barrel shifter operations (instruction bits 6-5)
const (
	shiftLSL = 0b00 // Logical shift left
	shiftLSR = 0b01 // Logical shift right
	shiftASR = 0b10 // Arithmetic shift right
	shiftROR = 0b11 // Rotate right
)

// barrelShift applies a shift operation and returns the result and the
// shifter carry-out.
//
// A zero amount has special meaning when the amount came from the
// instruction's immediate field (immediate=true), per the ARM manual:
//
//	LSL #0 passes the value through with the carry unchanged
//	LSR #0 means LSR #32
//	ASR #0 means ASR #32
//	ROR #0 means RRX (rotate right one bit through carry)
//
// When the amount came from a register (immediate=false), a zero amount
// always passes the value through with the carry unchanged, and amounts
// of 32 and above fall out of the same arithmetic.
func barrelShift(value uint32, op uint32, amount uint32, immediate bool, carryIn bool) (uint32, bool) {
	if amount == 0 {
		if !immediate {
			return value, carryIn
		}
		switch op {
		case shiftLSL:
			return value, carryIn
		case shiftLSR, shiftASR:
			amount = 32
		case shiftROR:
			// RRX: one-bit rotate through carry
			carry := value&0x1 != 0
			result := value >> 1
			if carryIn {
				result |= 0x80000000
			}
			return result, carry
		}
	}

	switch op {
	case shiftLSL:
		switch {
		case amount < 32:
			return value << amount, value&(1<<(32-amount)) != 0
		case amount == 32:
			return 0, value&0x1 != 0
		default:
			return 0, false
		}

	case shiftLSR:
		switch {
		case amount < 32:
			return value >> amount, value&(1<<(amount-1)) != 0
		case amount == 32:
			return 0, value&0x80000000 != 0
		default:
			return 0, false
		}

	case shiftASR:
		if amount >= 32 {
			// Result is all copies of the sign bit
			if value&0x80000000 != 0 {
				return 0xFFFFFFFF, true
			}
			return 0, false
		}
		return uint32(int32(value) >> amount), value&(1<<(amount-1)) != 0

	case shiftROR:
		amount %= 32
		if amount == 0 {
			// A multiple of 32: value unchanged, carry from bit 31
			return value, value&0x80000000 != 0
		}
		result := value>>amount | value<<(32-amount)
		return result, value&(1<<(amount-1)) != 0
	}

	return value, carryIn
}

// rotateImmediate decodes a data-processing immediate operand: an 8-bit
// value rotated right by twice the 4-bit rotate field. The carry-out is
// bit 31 of the result when the rotation is nonzero.
func rotateImmediate(imm8 uint32, rotate uint32, carryIn bool) (uint32, bool) {
	amount := rotate * 2
	if amount == 0 {
		return imm8, carryIn
	}
	result := imm8>>amount | imm8<<(32-amount)
	return result, result&0x80000000 != 0
}
