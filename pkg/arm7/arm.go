package arm7

import "math/bits"

// Data processing opcodes (instruction bits 24-21)
const (
	opAND = 0b0000
	opEOR = 0b0001
	opSUB = 0b0010
	opRSB = 0b0011
	opADD = 0b0100
	opADC = 0b0101
	opSBC = 0b0110
	opRSC = 0b0111
	opTST = 0b1000
	opTEQ = 0b1001
	opCMP = 0b1010
	opCMN = 0b1011
	opORR = 0b1100
	opMOV = 0b1101
	opBIC = 0b1110
	opMVN = 0b1111
)

// executeARM decodes and executes one ARM-state instruction.
//
// The class tests run in a strict order because the masks overlap:
// software interrupt, coprocessor, branch, block data transfer,
// undefined, single data transfer, halfword transfer (immediate then
// register), branch-and-exchange, single data swap, multiply long,
// multiply, and finally data processing.
func (c *CPU) executeARM(opcode uint32) error {
	if !c.conditionPassed(opcode >> 28) {
		return nil
	}

	switch {
	case opcode&0x0F000000 == 0x0F000000:
		return c.armSoftwareInterrupt()

	case opcode&0x0C000000 == 0x0C000000:
		// Coprocessor transfers; the GBA has no coprocessors
		return &UndefinedInstruction{PC: c.regs[PC], Opcode: opcode}

	case opcode&0x0E000000 == 0x0A000000:
		return c.armBranch(opcode)

	case opcode&0x0E000000 == 0x08000000:
		return c.armBlockTransfer(opcode)

	case opcode&0x0E000010 == 0x06000010:
		return &UndefinedInstruction{PC: c.regs[PC], Opcode: opcode}

	case opcode&0x0C000000 == 0x04000000:
		return c.armSingleTransfer(opcode)

	case opcode&0x0E400090 == 0x00400090 && opcode&0x60 != 0:
		return c.armHalfwordTransfer(opcode, true)

	case opcode&0x0E400F90 == 0x00000090 && opcode&0x60 != 0:
		return c.armHalfwordTransfer(opcode, false)

	case opcode&0x0FFFFFF0 == 0x012FFF10:
		return c.armBranchExchange(opcode)

	case opcode&0x0FB00FF0 == 0x01000090:
		return c.armSingleDataSwap(opcode)

	case opcode&0x0F8000F0 == 0x00800090:
		return c.armMultiplyLong(opcode)

	case opcode&0x0FC000F0 == 0x00000090:
		return c.armMultiply(opcode)
	}

	return c.armDataProcessing(opcode)
}

// ====================================================================
// Data Processing
// ====================================================================

// armOperand2 evaluates the barrel-shifter operand of a data processing
// instruction, returning the value and the shifter carry-out
func (c *CPU) armOperand2(opcode uint32) (uint32, bool) {
	carryIn := c.flag(FlagC)

	if opcode&(1<<25) != 0 {
		// 8-bit immediate rotated right by twice the rotate field
		return rotateImmediate(opcode&0xFF, (opcode>>8)&0xF, carryIn)
	}

	value := c.reg(int(opcode & 0xF))
	shiftOp := (opcode >> 5) & 0x3

	if opcode&(1<<4) != 0 {
		// Shift amount from the bottom byte of Rs
		amount := c.Reg(int((opcode>>8)&0xF)) & 0xFF
		return barrelShift(value, shiftOp, amount, false, carryIn)
	}

	// Shift amount from the 5-bit immediate field
	return barrelShift(value, shiftOp, (opcode>>7)&0x1F, true, carryIn)
}

// armDataProcessing executes the AND..MVN family, including the
// MRS/MSR PSR transfers that occupy the TST..CMN encodings with S clear
func (c *CPU) armDataProcessing(opcode uint32) error {
	op := (opcode >> 21) & 0xF
	s := opcode&(1<<20) != 0

	// TST/TEQ/CMP/CMN with S clear are the PSR transfer instructions
	if !s && op >= opTST && op <= opCMN {
		return c.armPSRTransfer(opcode)
	}

	rn := int((opcode >> 16) & 0xF)
	rd := int((opcode >> 12) & 0xF)
	op2, shiftCarry := c.armOperand2(opcode)
	a := c.reg(rn)

	var result uint32
	writeResult := true
	logical := false

	switch op {
	case opAND:
		result = a & op2
		logical = true
	case opEOR:
		result = a ^ op2
		logical = true
	case opSUB:
		result = c.aluSub(a, op2, 1, s)
	case opRSB:
		result = c.aluSub(op2, a, 1, s)
	case opADD:
		result = c.aluAdd(a, op2, 0, s)
	case opADC:
		result = c.aluAdd(a, op2, c.carryBit(), s)
	case opSBC:
		result = c.aluSub(a, op2, c.carryBit(), s)
	case opRSC:
		result = c.aluSub(op2, a, c.carryBit(), s)
	case opTST:
		result = a & op2
		logical = true
		writeResult = false
	case opTEQ:
		result = a ^ op2
		logical = true
		writeResult = false
	case opCMP:
		result = c.aluSub(a, op2, 1, true)
		writeResult = false
	case opCMN:
		result = c.aluAdd(a, op2, 0, true)
		writeResult = false
	case opORR:
		result = a | op2
		logical = true
	case opMOV:
		result = op2
		logical = true
	case opBIC:
		result = a &^ op2
		logical = true
	case opMVN:
		result = ^op2
		logical = true
	}

	if logical && (s || !writeResult) {
		c.setNZ(result)
		c.setFlag(FlagC, shiftCarry)
	}

	if s && rd == PC && writeResult {
		// Mode restore: CPSR <- SPSR of the current mode, applied before
		// the PC write so the new state's alignment masking applies
		if spsr := c.SPSR(); c.Mode() != ModeUser && c.Mode() != ModeSystem {
			c.cpsr = spsr
		}
	}

	if writeResult {
		c.SetReg(rd, result)
	}
	return nil
}

// carryBit returns the carry flag as 0 or 1 for ADC/SBC arithmetic
func (c *CPU) carryBit() uint32 {
	if c.flag(FlagC) {
		return 1
	}
	return 0
}

// aluAdd computes a + b + carry, optionally updating all four flags.
// C is set on unsigned overflow, V on signed overflow.
func (c *CPU) aluAdd(a, b, carry uint32, setFlags bool) uint32 {
	sum := uint64(a) + uint64(b) + uint64(carry)
	result := uint32(sum)
	if setFlags {
		c.setNZ(result)
		c.setFlag(FlagC, sum > 0xFFFFFFFF)
		c.setFlag(FlagV, (^(a^b)&(a^result))&0x80000000 != 0)
	}
	return result
}

// aluSub computes a - b - (1 - carry), optionally updating all four
// flags. C is set when no borrow occurs.
func (c *CPU) aluSub(a, b, carry uint32, setFlags bool) uint32 {
	borrow := uint64(1 - carry)
	result := uint32(uint64(a) - uint64(b) - borrow)
	if setFlags {
		c.setNZ(result)
		c.setFlag(FlagC, uint64(a) >= uint64(b)+borrow)
		c.setFlag(FlagV, ((a^b)&(a^result))&0x80000000 != 0)
	}
	return result
}

// ====================================================================
// PSR Transfer (MRS / MSR)
// ====================================================================

func (c *CPU) armPSRTransfer(opcode uint32) error {
	useSPSR := opcode&(1<<22) != 0

	// MRS: move PSR to register
	if opcode&0x0FBF0FFF == 0x010F0000 {
		rd := int((opcode >> 12) & 0xF)
		if useSPSR {
			c.SetReg(rd, c.SPSR())
		} else {
			c.SetReg(rd, c.cpsr)
		}
		return nil
	}

	// MSR: move register or immediate to PSR, under a field mask
	isRegister := opcode&0x0FB0FFF0 == 0x0120F000
	isImmediate := opcode&0x0FB0F000 == 0x0320F000
	if !isRegister && !isImmediate {
		return &UndefinedInstruction{PC: c.regs[PC], Opcode: opcode}
	}

	var value uint32
	if isImmediate {
		value, _ = rotateImmediate(opcode&0xFF, (opcode>>8)&0xF, c.flag(FlagC))
	} else {
		value = c.Reg(int(opcode & 0xF))
	}

	var mask uint32
	if opcode&(1<<16) != 0 {
		mask |= 0x000000FF
	}
	if opcode&(1<<17) != 0 {
		mask |= 0x0000FF00
	}
	if opcode&(1<<18) != 0 {
		mask |= 0x00FF0000
	}
	if opcode&(1<<19) != 0 {
		mask |= 0xFF000000
	}

	if useSPSR {
		c.SetSPSR(c.SPSR()&^mask | value&mask)
	} else {
		c.cpsr = c.cpsr&^mask | value&mask
	}
	return nil
}

// ====================================================================
// Branches
// ====================================================================

// armBranch executes B and BL. The 24-bit offset is sign-extended,
// shifted left by 2, and applied to the prefetch-adjusted PC.
func (c *CPU) armBranch(opcode uint32) error {
	offset := opcode & 0x00FFFFFF
	if offset&0x00800000 != 0 {
		offset |= 0xFF000000
	}
	target := c.pcOperand() + offset<<2

	if opcode&(1<<24) != 0 {
		// Branch with link: the return address is the next instruction
		c.SetReg(LR, c.regs[PC]+ARMInstructionSize)
	}
	c.SetReg(PC, target)
	return nil
}

// armBranchExchange executes BX: Rn is copied to PC and bit 0 selects
// the new execution state
func (c *CPU) armBranchExchange(opcode uint32) error {
	value := c.reg(int(opcode & 0xF))
	c.setFlag(ThumbState, value&0x1 != 0)
	c.SetReg(PC, value)
	return nil
}

// armSoftwareInterrupt executes SWI: enter Supervisor mode through the
// 0x08 vector with the return address in LR_svc
func (c *CPU) armSoftwareInterrupt() error {
	returnAddr := c.regs[PC] + c.InstructionSize()
	c.spsr[bankSupervisor] = c.cpsr
	c.cpsr = (c.cpsr &^ (ModeMask | ThumbState)) | ModeSupervisor | IRQDisable
	c.banked[bankSupervisor][LR-8] = returnAddr
	c.regs[PC] = VectorSWI
	c.pcWritten = true
	return nil
}

// ====================================================================
// Loads and Stores
// ====================================================================

// armSingleTransfer executes LDR/STR/LDRB/STRB with immediate or
// shifted-register offsets, pre- or post-indexed
func (c *CPU) armSingleTransfer(opcode uint32) error {
	pre := opcode&(1<<24) != 0
	up := opcode&(1<<23) != 0
	byteSize := opcode&(1<<22) != 0
	writeBack := opcode&(1<<21) != 0
	load := opcode&(1<<20) != 0
	rn := int((opcode >> 16) & 0xF)
	rd := int((opcode >> 12) & 0xF)

	var offset uint32
	if opcode&(1<<25) != 0 {
		// Register offset with an immediate-specified shift
		value := c.reg(int(opcode & 0xF))
		offset, _ = barrelShift(value, (opcode>>5)&0x3, (opcode>>7)&0x1F, true, c.flag(FlagC))
	} else {
		offset = opcode & 0xFFF
	}

	base := c.reg(rn)
	indexed := base + offset
	if !up {
		indexed = base - offset
	}

	addr := base
	if pre {
		addr = indexed
	}

	if load {
		var value uint32
		var err error
		if byteSize {
			var b uint8
			b, err = c.mem.Read8(addr)
			value = uint32(b)
		} else {
			value, err = c.mem.Read32(addr)
		}
		if err != nil {
			return err
		}
		c.SetReg(rd, value)
	} else {
		value := c.reg(rd)
		if rd == PC {
			// A stored PC reads one word beyond the prefetch address
			value += ARMInstructionSize
		}
		var err error
		if byteSize {
			err = c.mem.Write8(addr, uint8(value))
		} else {
			err = c.mem.Write32(addr, value)
		}
		if err != nil {
			return err
		}
	}

	// Post-indexed transfers always write back; pre-indexed only with W
	if !pre || writeBack {
		if !(load && rd == rn) {
			c.SetReg(rn, indexed)
		}
	}
	return nil
}

// armHalfwordTransfer executes LDRH/STRH/LDRSB/LDRSH with an immediate
// or register offset
func (c *CPU) armHalfwordTransfer(opcode uint32, immediate bool) error {
	pre := opcode&(1<<24) != 0
	up := opcode&(1<<23) != 0
	writeBack := opcode&(1<<21) != 0
	load := opcode&(1<<20) != 0
	rn := int((opcode >> 16) & 0xF)
	rd := int((opcode >> 12) & 0xF)
	sh := (opcode >> 5) & 0x3

	var offset uint32
	if immediate {
		offset = (opcode>>4)&0xF0 | opcode&0xF
	} else {
		offset = c.reg(int(opcode & 0xF))
	}

	base := c.reg(rn)
	indexed := base + offset
	if !up {
		indexed = base - offset
	}

	addr := base
	if pre {
		addr = indexed
	}

	if load {
		var value uint32
		var err error
		switch sh {
		case 0b01: // Unsigned halfword
			var h uint16
			h, err = c.mem.Read16(addr)
			value = uint32(h)
		case 0b10: // Signed byte
			var sv int32
			sv, err = c.mem.ReadS8(addr)
			value = uint32(sv)
		case 0b11: // Signed halfword
			var sv int32
			sv, err = c.mem.ReadS16(addr)
			value = uint32(sv)
		}
		if err != nil {
			return err
		}
		c.SetReg(rd, value)
	} else {
		// Only STRH exists on stores
		if err := c.mem.Write16(addr, uint16(c.reg(rd))); err != nil {
			return err
		}
	}

	if !pre || writeBack {
		if !(load && rd == rn) {
			c.SetReg(rn, indexed)
		}
	}
	return nil
}

// armBlockTransfer executes LDM/STM in all four stack modes.
//
// Registers transfer in ascending list order; the address steps by 4 in
// the indexing direction, starting one slot beyond the base for
// pre-indexed forms. With the S bit, a load including PC restores
// CPSR from SPSR, and any other form transfers the User-mode bank.
func (c *CPU) armBlockTransfer(opcode uint32) error {
	pre := opcode&(1<<24) != 0
	up := opcode&(1<<23) != 0
	sBit := opcode&(1<<22) != 0
	writeBack := opcode&(1<<21) != 0
	load := opcode&(1<<20) != 0
	rn := int((opcode >> 16) & 0xF)
	list := uint16(opcode & 0xFFFF)

	count := uint32(bits.OnesCount16(list))
	base := c.Reg(rn)

	addr := base
	var finalBase uint32
	if up {
		if pre {
			addr = base + 4
		}
		finalBase = base + 4*count
	} else {
		if pre {
			addr = base - 4
		}
		finalBase = base - 4*count
	}

	userBank := sBit && !(load && list&(1<<PC) != 0)

	for i := 0; i < 16; i++ {
		if list&(1<<i) == 0 {
			continue
		}

		if load {
			value, err := c.mem.Read32(addr)
			if err != nil {
				return err
			}
			if userBank {
				c.SetRegUser(i, value)
			} else {
				c.SetReg(i, value)
			}
		} else {
			var value uint32
			if i == PC {
				// A stored PC reads one word beyond the prefetch address
				value = c.pcOperand() + ARMInstructionSize
			} else if userBank {
				value = c.RegUser(i)
			} else {
				value = c.Reg(i)
			}
			if err := c.mem.Write32(addr, value); err != nil {
				return err
			}
		}

		if up {
			addr += 4
		} else {
			addr -= 4
		}
	}

	if sBit && load && list&(1<<PC) != 0 {
		// Exception return form: restore CPSR from the mode's SPSR
		if c.Mode() != ModeUser && c.Mode() != ModeSystem {
			c.cpsr = c.SPSR()
		}
	}

	if writeBack {
		c.SetReg(rn, finalBase)
	}
	return nil
}

// armSingleDataSwap executes SWP/SWPB: an atomic read of [Rn] into Rd
// and write of Rm to [Rn]
func (c *CPU) armSingleDataSwap(opcode uint32) error {
	byteSize := opcode&(1<<22) != 0
	rn := int((opcode >> 16) & 0xF)
	rd := int((opcode >> 12) & 0xF)
	rm := int(opcode & 0xF)

	addr := c.reg(rn)
	source := c.reg(rm)

	if byteSize {
		old, err := c.mem.Read8(addr)
		if err != nil {
			return err
		}
		if err := c.mem.Write8(addr, uint8(source)); err != nil {
			return err
		}
		c.SetReg(rd, uint32(old))
		return nil
	}

	old, err := c.mem.Read32(addr)
	if err != nil {
		return err
	}
	if err := c.mem.Write32(addr, source); err != nil {
		return err
	}
	c.SetReg(rd, old)
	return nil
}

// ====================================================================
// Multiplies
// ====================================================================

// armMultiply executes MUL and MLA
func (c *CPU) armMultiply(opcode uint32) error {
	rd := int((opcode >> 16) & 0xF)
	rn := int((opcode >> 12) & 0xF)
	rs := int((opcode >> 8) & 0xF)
	rm := int(opcode & 0xF)

	result := c.reg(rm) * c.reg(rs)
	if opcode&(1<<21) != 0 {
		result += c.reg(rn)
	}
	c.SetReg(rd, result)

	if opcode&(1<<20) != 0 {
		c.setNZ(result)
	}
	return nil
}

// armMultiplyLong executes UMULL/UMLAL/SMULL/SMLAL
func (c *CPU) armMultiplyLong(opcode uint32) error {
	signed := opcode&(1<<22) != 0
	accumulate := opcode&(1<<21) != 0
	setFlags := opcode&(1<<20) != 0
	rdHi := int((opcode >> 16) & 0xF)
	rdLo := int((opcode >> 12) & 0xF)
	rs := int((opcode >> 8) & 0xF)
	rm := int(opcode & 0xF)

	var result uint64
	if signed {
		result = uint64(int64(int32(c.reg(rm))) * int64(int32(c.reg(rs))))
	} else {
		result = uint64(c.reg(rm)) * uint64(c.reg(rs))
	}
	if accumulate {
		result += uint64(c.reg(rdHi))<<32 | uint64(c.reg(rdLo))
	}

	c.SetReg(rdLo, uint32(result))
	c.SetReg(rdHi, uint32(result>>32))

	if setFlags {
		c.setFlag(FlagN, result&(1<<63) != 0)
		c.setFlag(FlagZ, result == 0)
	}
	return nil
}
