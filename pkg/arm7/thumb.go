package arm7

// Thumb ALU operations (format 4, instruction bits 9-6)
const (
	thumbAND = 0x0
	thumbEOR = 0x1
	thumbLSL = 0x2
	thumbLSR = 0x3
	thumbASR = 0x4
	thumbADC = 0x5
	thumbSBC = 0x6
	thumbROR = 0x7
	thumbTST = 0x8
	thumbNEG = 0x9
	thumbCMP = 0xA
	thumbCMN = 0xB
	thumbORR = 0xC
	thumbMUL = 0xD
	thumbBIC = 0xE
	thumbMVN = 0xF
)

// executeThumb decodes and executes one Thumb-state instruction.
//
// As in ARM state, the format tests run in a strict order because the
// masks overlap: long branch with link, unconditional branch, software
// interrupt, conditional branch, multiple load/store, push/pop, add
// offset to SP, load address, SP-relative load/store, load/store
// halfword, load/store with immediate offset, load/store sign-extended,
// load/store with register offset, PC-relative load, high register
// operations, ALU operations, move/compare/add/subtract immediate,
// add/subtract, and finally move shifted register.
func (c *CPU) executeThumb(opcode uint16) error {
	switch {
	case opcode&0xF000 == 0xF000:
		return c.thumbLongBranchLink(opcode)
	case opcode&0xF800 == 0xE000:
		return c.thumbUnconditionalBranch(opcode)
	case opcode&0xFF00 == 0xDF00:
		return c.armSoftwareInterrupt()
	case opcode&0xF000 == 0xD000:
		return c.thumbConditionalBranch(opcode)
	case opcode&0xF000 == 0xC000:
		return c.thumbMultipleLoadStore(opcode)
	case opcode&0xF600 == 0xB400:
		return c.thumbPushPop(opcode)
	case opcode&0xFF00 == 0xB000:
		return c.thumbAddOffsetToSP(opcode)
	case opcode&0xF000 == 0xA000:
		return c.thumbLoadAddress(opcode)
	case opcode&0xF000 == 0x9000:
		return c.thumbSPRelativeLoadStore(opcode)
	case opcode&0xF000 == 0x8000:
		return c.thumbLoadStoreHalfword(opcode)
	case opcode&0xE000 == 0x6000:
		return c.thumbLoadStoreImmediate(opcode)
	case opcode&0xF200 == 0x5200:
		return c.thumbLoadStoreSignExtended(opcode)
	case opcode&0xF200 == 0x5000:
		return c.thumbLoadStoreRegister(opcode)
	case opcode&0xF800 == 0x4800:
		return c.thumbPCRelativeLoad(opcode)
	case opcode&0xFC00 == 0x4400:
		return c.thumbHighRegisterOps(opcode)
	case opcode&0xFC00 == 0x4000:
		return c.thumbALU(opcode)
	case opcode&0xE000 == 0x2000:
		return c.thumbImmediateOps(opcode)
	case opcode&0xF800 == 0x1800:
		return c.thumbAddSubtract(opcode)
	}
	return c.thumbMoveShifted(opcode)
}

// ====================================================================
// Shifts and Arithmetic
// ====================================================================

// thumbMoveShifted executes LSL/LSR/ASR Rd, Rs, #imm5 (format 1)
func (c *CPU) thumbMoveShifted(opcode uint16) error {
	op := uint32(opcode>>11) & 0x3
	amount := uint32(opcode>>6) & 0x1F
	rs := int(opcode>>3) & 0x7
	rd := int(opcode) & 0x7

	result, carry := barrelShift(c.Reg(rs), op, amount, true, c.flag(FlagC))
	c.SetReg(rd, result)
	c.setNZ(result)
	c.setFlag(FlagC, carry)
	return nil
}

// thumbAddSubtract executes ADD/SUB Rd, Rs, Rn|#imm3 (format 2)
func (c *CPU) thumbAddSubtract(opcode uint16) error {
	immediate := opcode&(1<<10) != 0
	subtract := opcode&(1<<9) != 0
	rd := int(opcode) & 0x7
	rs := int(opcode>>3) & 0x7

	var operand uint32
	if immediate {
		operand = uint32(opcode>>6) & 0x7
	} else {
		operand = c.Reg(int(opcode>>6) & 0x7)
	}

	var result uint32
	if subtract {
		result = c.aluSub(c.Reg(rs), operand, 1, true)
	} else {
		result = c.aluAdd(c.Reg(rs), operand, 0, true)
	}
	c.SetReg(rd, result)
	return nil
}

// thumbImmediateOps executes MOV/CMP/ADD/SUB Rd, #imm8 (format 3)
func (c *CPU) thumbImmediateOps(opcode uint16) error {
	op := (opcode >> 11) & 0x3
	rd := int(opcode>>8) & 0x7
	imm := uint32(opcode & 0xFF)

	switch op {
	case 0: // MOV
		c.SetReg(rd, imm)
		c.setNZ(imm)
	case 1: // CMP
		c.aluSub(c.Reg(rd), imm, 1, true)
	case 2: // ADD
		c.SetReg(rd, c.aluAdd(c.Reg(rd), imm, 0, true))
	case 3: // SUB
		c.SetReg(rd, c.aluSub(c.Reg(rd), imm, 1, true))
	}
	return nil
}

// thumbALU executes the register-to-register ALU operations (format 4)
func (c *CPU) thumbALU(opcode uint16) error {
	op := (opcode >> 6) & 0xF
	rs := int(opcode>>3) & 0x7
	rd := int(opcode) & 0x7

	a := c.Reg(rd)
	b := c.Reg(rs)

	switch op {
	case thumbAND:
		result := a & b
		c.SetReg(rd, result)
		c.setNZ(result)
	case thumbEOR:
		result := a ^ b
		c.SetReg(rd, result)
		c.setNZ(result)
	case thumbLSL, thumbLSR, thumbASR, thumbROR:
		var shiftOp uint32
		switch op {
		case thumbLSL:
			shiftOp = shiftLSL
		case thumbLSR:
			shiftOp = shiftLSR
		case thumbASR:
			shiftOp = shiftASR
		case thumbROR:
			shiftOp = shiftROR
		}
		result, carry := barrelShift(a, shiftOp, b&0xFF, false, c.flag(FlagC))
		c.SetReg(rd, result)
		c.setNZ(result)
		c.setFlag(FlagC, carry)
	case thumbADC:
		c.SetReg(rd, c.aluAdd(a, b, c.carryBit(), true))
	case thumbSBC:
		c.SetReg(rd, c.aluSub(a, b, c.carryBit(), true))
	case thumbTST:
		c.setNZ(a & b)
	case thumbNEG:
		c.SetReg(rd, c.aluSub(0, b, 1, true))
	case thumbCMP:
		c.aluSub(a, b, 1, true)
	case thumbCMN:
		c.aluAdd(a, b, 0, true)
	case thumbORR:
		result := a | b
		c.SetReg(rd, result)
		c.setNZ(result)
	case thumbMUL:
		result := a * b
		c.SetReg(rd, result)
		c.setNZ(result)
	case thumbBIC:
		result := a &^ b
		c.SetReg(rd, result)
		c.setNZ(result)
	case thumbMVN:
		result := ^b
		c.SetReg(rd, result)
		c.setNZ(result)
	}
	return nil
}

// thumbHighRegisterOps executes ADD/CMP/MOV across the full register
// file and BX (format 5). Only CMP sets flags.
func (c *CPU) thumbHighRegisterOps(opcode uint16) error {
	op := (opcode >> 8) & 0x3
	rd := int(opcode)&0x7 | int(opcode>>4)&0x8
	rs := int(opcode>>3) & 0xF

	source := c.reg(rs)

	switch op {
	case 0: // ADD
		c.SetReg(rd, c.reg(rd)+source)
	case 1: // CMP
		c.aluSub(c.reg(rd), source, 1, true)
	case 2: // MOV
		c.SetReg(rd, source)
	case 3: // BX
		c.setFlag(ThumbState, source&0x1 != 0)
		c.SetReg(PC, source)
	}
	return nil
}

// ====================================================================
// Loads and Stores
// ====================================================================

// thumbPCRelativeLoad executes LDR Rd, [PC, #imm8*4] (format 6). The
// PC operand is the prefetch address with bit 1 forced clear.
func (c *CPU) thumbPCRelativeLoad(opcode uint16) error {
	rd := int(opcode>>8) & 0x7
	offset := uint32(opcode&0xFF) * 4

	addr := (c.pcOperand() &^ 0x2) + offset
	value, err := c.mem.Read32(addr)
	if err != nil {
		return err
	}
	c.SetReg(rd, value)
	return nil
}

// thumbLoadStoreRegister executes LDR/STR/LDRB/STRB Rd, [Rb, Ro]
// (format 7)
func (c *CPU) thumbLoadStoreRegister(opcode uint16) error {
	load := opcode&(1<<11) != 0
	byteSize := opcode&(1<<10) != 0
	ro := int(opcode>>6) & 0x7
	rb := int(opcode>>3) & 0x7
	rd := int(opcode) & 0x7

	addr := c.Reg(rb) + c.Reg(ro)

	if load {
		if byteSize {
			value, err := c.mem.Read8(addr)
			if err != nil {
				return err
			}
			c.SetReg(rd, uint32(value))
			return nil
		}
		value, err := c.mem.Read32(addr)
		if err != nil {
			return err
		}
		c.SetReg(rd, value)
		return nil
	}

	if byteSize {
		return c.mem.Write8(addr, uint8(c.Reg(rd)))
	}
	return c.mem.Write32(addr, c.Reg(rd))
}

// thumbLoadStoreSignExtended executes STRH/LDRH/LDSB/LDSH Rd, [Rb, Ro]
// (format 8)
func (c *CPU) thumbLoadStoreSignExtended(opcode uint16) error {
	hFlag := opcode&(1<<11) != 0
	signExtend := opcode&(1<<10) != 0
	ro := int(opcode>>6) & 0x7
	rb := int(opcode>>3) & 0x7
	rd := int(opcode) & 0x7

	addr := c.Reg(rb) + c.Reg(ro)

	switch {
	case !signExtend && !hFlag: // STRH
		return c.mem.Write16(addr, uint16(c.Reg(rd)))
	case !signExtend && hFlag: // LDRH
		value, err := c.mem.Read16(addr)
		if err != nil {
			return err
		}
		c.SetReg(rd, uint32(value))
	case signExtend && !hFlag: // LDSB
		value, err := c.mem.ReadS8(addr)
		if err != nil {
			return err
		}
		c.SetReg(rd, uint32(value))
	default: // LDSH
		value, err := c.mem.ReadS16(addr)
		if err != nil {
			return err
		}
		c.SetReg(rd, uint32(value))
	}
	return nil
}

// thumbLoadStoreImmediate executes LDR/STR/LDRB/STRB Rd, [Rb, #imm]
// (format 9). Word offsets scale by 4.
func (c *CPU) thumbLoadStoreImmediate(opcode uint16) error {
	byteSize := opcode&(1<<12) != 0
	load := opcode&(1<<11) != 0
	offset := uint32(opcode>>6) & 0x1F
	rb := int(opcode>>3) & 0x7
	rd := int(opcode) & 0x7

	if !byteSize {
		offset *= 4
	}
	addr := c.Reg(rb) + offset

	if load {
		if byteSize {
			value, err := c.mem.Read8(addr)
			if err != nil {
				return err
			}
			c.SetReg(rd, uint32(value))
			return nil
		}
		value, err := c.mem.Read32(addr)
		if err != nil {
			return err
		}
		c.SetReg(rd, value)
		return nil
	}

	if byteSize {
		return c.mem.Write8(addr, uint8(c.Reg(rd)))
	}
	return c.mem.Write32(addr, c.Reg(rd))
}

// thumbLoadStoreHalfword executes LDRH/STRH Rd, [Rb, #imm5*2]
// (format 10)
func (c *CPU) thumbLoadStoreHalfword(opcode uint16) error {
	load := opcode&(1<<11) != 0
	offset := (uint32(opcode>>6) & 0x1F) * 2
	rb := int(opcode>>3) & 0x7
	rd := int(opcode) & 0x7

	addr := c.Reg(rb) + offset

	if load {
		value, err := c.mem.Read16(addr)
		if err != nil {
			return err
		}
		c.SetReg(rd, uint32(value))
		return nil
	}
	return c.mem.Write16(addr, uint16(c.Reg(rd)))
}

// thumbSPRelativeLoadStore executes LDR/STR Rd, [SP, #imm8*4]
// (format 11)
func (c *CPU) thumbSPRelativeLoadStore(opcode uint16) error {
	load := opcode&(1<<11) != 0
	rd := int(opcode>>8) & 0x7
	offset := uint32(opcode&0xFF) * 4

	addr := c.Reg(SP) + offset

	if load {
		value, err := c.mem.Read32(addr)
		if err != nil {
			return err
		}
		c.SetReg(rd, value)
		return nil
	}
	return c.mem.Write32(addr, c.Reg(rd))
}

// thumbLoadAddress executes ADD Rd, PC|SP, #imm8*4 (format 12). The PC
// form uses the prefetch address with bit 1 forced clear.
func (c *CPU) thumbLoadAddress(opcode uint16) error {
	useSP := opcode&(1<<11) != 0
	rd := int(opcode>>8) & 0x7
	offset := uint32(opcode&0xFF) * 4

	if useSP {
		c.SetReg(rd, c.Reg(SP)+offset)
	} else {
		c.SetReg(rd, (c.pcOperand()&^0x2)+offset)
	}
	return nil
}

// thumbAddOffsetToSP executes ADD SP, #±imm7*4 (format 13)
func (c *CPU) thumbAddOffsetToSP(opcode uint16) error {
	offset := uint32(opcode&0x7F) * 4
	if opcode&(1<<7) != 0 {
		c.SetReg(SP, c.Reg(SP)-offset)
	} else {
		c.SetReg(SP, c.Reg(SP)+offset)
	}
	return nil
}

// thumbPushPop executes PUSH {Rlist[, LR]} / POP {Rlist[, PC]}
// (format 14). The stack is full-descending.
func (c *CPU) thumbPushPop(opcode uint16) error {
	load := opcode&(1<<11) != 0
	pcLR := opcode&(1<<8) != 0
	list := opcode & 0xFF

	if load {
		// POP: ascending from SP
		addr := c.Reg(SP)
		for i := 0; i < 8; i++ {
			if list&(1<<i) == 0 {
				continue
			}
			value, err := c.mem.Read32(addr)
			if err != nil {
				return err
			}
			c.SetReg(i, value)
			addr += 4
		}
		if pcLR {
			value, err := c.mem.Read32(addr)
			if err != nil {
				return err
			}
			c.SetReg(PC, value)
			addr += 4
		}
		c.SetReg(SP, addr)
		return nil
	}

	// PUSH: pre-decrement, lowest register at the lowest address
	count := 0
	for i := 0; i < 8; i++ {
		if list&(1<<i) != 0 {
			count++
		}
	}
	if pcLR {
		count++
	}

	addr := c.Reg(SP) - uint32(count)*4
	c.SetReg(SP, addr)

	for i := 0; i < 8; i++ {
		if list&(1<<i) == 0 {
			continue
		}
		if err := c.mem.Write32(addr, c.Reg(i)); err != nil {
			return err
		}
		addr += 4
	}
	if pcLR {
		if err := c.mem.Write32(addr, c.Reg(LR)); err != nil {
			return err
		}
	}
	return nil
}

// thumbMultipleLoadStore executes LDMIA/STMIA Rb!, {Rlist} (format 15)
func (c *CPU) thumbMultipleLoadStore(opcode uint16) error {
	load := opcode&(1<<11) != 0
	rb := int(opcode>>8) & 0x7
	list := opcode & 0xFF

	addr := c.Reg(rb)
	for i := 0; i < 8; i++ {
		if list&(1<<i) == 0 {
			continue
		}
		if load {
			value, err := c.mem.Read32(addr)
			if err != nil {
				return err
			}
			c.SetReg(i, value)
		} else {
			if err := c.mem.Write32(addr, c.Reg(i)); err != nil {
				return err
			}
		}
		addr += 4
	}

	if !(load && list&(1<<rb) != 0) {
		c.SetReg(rb, addr)
	}
	return nil
}

// ====================================================================
// Branches
// ====================================================================

// thumbConditionalBranch executes B<cond> #offset (format 16)
func (c *CPU) thumbConditionalBranch(opcode uint16) error {
	if !c.conditionPassed(uint32(opcode>>8) & 0xF) {
		return nil
	}
	offset := uint32(opcode & 0xFF)
	if offset&0x80 != 0 {
		offset |= 0xFFFFFF00
	}
	c.SetReg(PC, c.pcOperand()+offset<<1)
	return nil
}

// thumbUnconditionalBranch executes B #offset (format 18)
func (c *CPU) thumbUnconditionalBranch(opcode uint16) error {
	offset := uint32(opcode & 0x7FF)
	if offset&0x400 != 0 {
		offset |= 0xFFFFF800
	}
	c.SetReg(PC, c.pcOperand()+offset<<1)
	return nil
}

// thumbLongBranchLink executes the two-instruction BL pair (format 19).
//
// The first half (H=0) stages the high part of the offset in LR; the
// second half (H=1) completes the branch and leaves the return address
// in LR with bit 0 set to mark a return to Thumb state.
func (c *CPU) thumbLongBranchLink(opcode uint16) error {
	offset := uint32(opcode & 0x7FF)

	if opcode&(1<<11) == 0 {
		// First half: LR <- PC + 4 + (sign-extended offset << 12)
		if offset&0x400 != 0 {
			offset |= 0xFFFFF800
		}
		c.SetReg(LR, c.pcOperand()+offset<<12)
		return nil
	}

	// Second half: branch to LR + (offset << 1)
	target := c.Reg(LR) + offset<<1
	returnAddr := c.regs[PC] + ThumbInstructionSize
	c.SetReg(LR, returnAddr|0x1)
	c.SetReg(PC, target)
	return nil
}
