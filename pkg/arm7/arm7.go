// Package arm7 implements the ARM7TDMI CPU core.
//
// The ARM7TDMI is the GBA's main processor: a 32-bit RISC core that
// executes two instruction sets selected by the CPSR T bit:
//
//   - ARM state: 32-bit instructions, PC aligned to 4 bytes
//   - Thumb state: 16-bit instructions, PC aligned to 2 bytes
//
// The core keeps PC (R15) pointing at the instruction being executed;
// instructions that read R15 as an operand observe the architectural
// pipeline value (PC+8 in ARM state, PC+4 in Thumb state).
//
// Register banking: R0-R12 plus the user SP/LR live in the primary
// register file. Each exception mode (FIQ, IRQ, Supervisor, Abort,
// Undefined) banks its own R13/R14 and SPSR, and FIQ additionally banks
// R8-R12. Register reads and writes consult the current CPSR mode and
// dereference the correct slot.
//
// Manual: https://www.dwedit.org/files/ARM7TDMI.pdf
package arm7

import (
	"fmt"

	"github.com/andrewthecodertx/gba-emulator/pkg/memory"
)

// Instruction sizes for the two execution states
const (
	ARMInstructionSize   = 4
	ThumbInstructionSize = 2
)

// CPU operating modes (CPSR bits 4-0)
const (
	ModeUser       = 0b10000
	ModeFIQ        = 0b10001
	ModeIRQ        = 0b10010
	ModeSupervisor = 0b10011
	ModeAbort      = 0b10111
	ModeUndefined  = 0b11011
	ModeSystem     = 0b11111
)

// Banked register set indices
const (
	bankFIQ = iota
	bankIRQ
	bankSupervisor
	bankAbort
	bankUndefined
	bankCount
)

// CPSR - Current Program Status Register bit assignments
//
//	Bit 31 - N (Negative / Less Than)
//	Bit 30 - Z (Zero)
//	Bit 29 - C (Carry / Borrow / Extend)
//	Bit 28 - V (Overflow)
//	Bit 7  - I (IRQ disable)
//	Bit 6  - F (FIQ disable)
//	Bit 5  - T (State bit: 0 = ARM, 1 = Thumb)
//	Bit 4-0 - Mode
const (
	FlagN      uint32 = 1 << 31
	FlagZ      uint32 = 1 << 30
	FlagC      uint32 = 1 << 29
	FlagV      uint32 = 1 << 28
	IRQDisable uint32 = 1 << 7
	FIQDisable uint32 = 1 << 6
	ThumbState uint32 = 1 << 5
	ModeMask   uint32 = 0x1F
)

// Special register numbers
const (
	SP = 13 // Stack Pointer
	LR = 14 // Link Register
	PC = 15 // Program Counter
)

// Exception vectors
const (
	VectorSWI = 0x08
	VectorIRQ = 0x18
)

// AlignmentFault reports a PC that is misaligned for the current
// execution state
type AlignmentFault struct {
	PC    uint32
	Thumb bool
}

func (e *AlignmentFault) Error() string {
	size := ARMInstructionSize
	if e.Thumb {
		size = ThumbInstructionSize
	}
	return fmt.Sprintf("arm7: PC 0x%08X is not aligned to %d bytes", e.PC, size)
}

// UndefinedInstruction reports an instruction the core cannot decode
// (including all coprocessor encodings)
type UndefinedInstruction struct {
	PC     uint32
	Opcode uint32
}

func (e *UndefinedInstruction) Error() string {
	return fmt.Sprintf("arm7: undefined instruction 0x%08X at PC 0x%08X", e.Opcode, e.PC)
}

// CPU is an ARM7TDMI core
type CPU struct {
	// System bus
	mem *memory.Memory

	// Primary register file. Holds R0-R15 as seen from User/System
	// mode; banked modes shadow the high registers below.
	regs [16]uint32

	// Banked R13/R14 per exception mode; FIQ additionally banks R8-R12.
	// Layout per bank: [R8 R9 R10 R11 R12 R13 R14] (only the last two
	// slots are used outside FIQ).
	banked [bankCount][7]uint32

	// Current program status register
	cpsr uint32

	// Saved program status registers, one per banked mode
	spsr [bankCount]uint32

	// Total cycles executed (one instruction per cycle)
	Cycles uint64

	// Set by any write to R15 during execution, suppressing the PC
	// increment for that instruction
	pcWritten bool
}

// New creates a CPU attached to the given bus, in System mode with FIQ
// disabled, executing ARM state from address zero
func New(mem *memory.Memory) *CPU {
	c := &CPU{mem: mem}
	c.Reset()
	return c
}

// Reset returns the CPU to its power-on state: all registers zero,
// System mode, ARM state, FIQ disabled
func (c *CPU) Reset() {
	c.regs = [16]uint32{}
	c.banked = [bankCount][7]uint32{}
	c.spsr = [bankCount]uint32{}
	c.cpsr = ModeSystem | FIQDisable
	c.Cycles = 0
	c.pcWritten = false
}

// Memory returns the bus the CPU is attached to
func (c *CPU) Memory() *memory.Memory {
	return c.mem
}

// Mode returns the current operating mode (CPSR bits 4-0)
func (c *CPU) Mode() uint32 {
	return c.cpsr & ModeMask
}

// CPSR returns the current program status register
func (c *CPU) CPSR() uint32 {
	return c.cpsr
}

// SetCPSR replaces the current program status register
func (c *CPU) SetCPSR(value uint32) {
	c.cpsr = value
}

// IsThumb reports whether the CPU is in Thumb state
func (c *CPU) IsThumb() bool {
	return c.cpsr&ThumbState != 0
}

// InstructionSize returns the size in bytes of instructions in the
// current execution state
func (c *CPU) InstructionSize() uint32 {
	if c.IsThumb() {
		return ThumbInstructionSize
	}
	return ARMInstructionSize
}

// bankIndex maps a mode to its banked register set, or -1 for modes
// that use the primary file
func bankIndex(mode uint32) int {
	switch mode {
	case ModeFIQ:
		return bankFIQ
	case ModeIRQ:
		return bankIRQ
	case ModeSupervisor:
		return bankSupervisor
	case ModeAbort:
		return bankAbort
	case ModeUndefined:
		return bankUndefined
	}
	return -1
}

// Reg returns the value of a register as seen from the current mode
func (c *CPU) Reg(reg int) uint32 {
	mode := c.Mode()
	if mode == ModeFIQ && reg >= 8 && reg <= 14 {
		return c.banked[bankFIQ][reg-8]
	}
	if bank := bankIndex(mode); bank >= 0 && (reg == SP || reg == LR) {
		return c.banked[bank][reg-8]
	}
	return c.regs[reg]
}

// SetReg sets the value of a register as seen from the current mode.
// Writes to R15 are masked to the current state's alignment and mark
// the instruction as having branched.
func (c *CPU) SetReg(reg int, value uint32) {
	if reg == PC {
		if c.IsThumb() {
			value &^= 0x1
		} else {
			value &^= 0x3
		}
		c.regs[PC] = value
		c.pcWritten = true
		return
	}
	mode := c.Mode()
	if mode == ModeFIQ && reg >= 8 && reg <= 14 {
		c.banked[bankFIQ][reg-8] = value
		return
	}
	if bank := bankIndex(mode); bank >= 0 && (reg == SP || reg == LR) {
		c.banked[bank][reg-8] = value
		return
	}
	c.regs[reg] = value
}

// RegUser returns a register from the User-mode bank regardless of the
// current mode (used by the S-bit form of block data transfer)
func (c *CPU) RegUser(reg int) uint32 {
	return c.regs[reg]
}

// SetRegUser writes a register in the User-mode bank regardless of the
// current mode
func (c *CPU) SetRegUser(reg int, value uint32) {
	c.regs[reg] = value
}

// SPSR returns the saved program status register of the current mode.
// User and System mode have no SPSR; reading it there returns 0.
func (c *CPU) SPSR() uint32 {
	if bank := bankIndex(c.Mode()); bank >= 0 {
		return c.spsr[bank]
	}
	return 0
}

// SetSPSR writes the saved program status register of the current mode
func (c *CPU) SetSPSR(value uint32) {
	if bank := bankIndex(c.Mode()); bank >= 0 {
		c.spsr[bank] = value
	}
}

// RegFor returns a register as seen from a specific mode, regardless
// of the current one (debugger, boot seeding)
func (c *CPU) RegFor(mode uint32, reg int) uint32 {
	if mode == ModeFIQ && reg >= 8 && reg <= 14 {
		return c.banked[bankFIQ][reg-8]
	}
	if bank := bankIndex(mode); bank >= 0 && (reg == SP || reg == LR) {
		return c.banked[bank][reg-8]
	}
	return c.regs[reg]
}

// SetRegFor writes a register as seen from a specific mode, regardless
// of the current one
func (c *CPU) SetRegFor(mode uint32, reg int, value uint32) {
	if mode == ModeFIQ && reg >= 8 && reg <= 14 {
		c.banked[bankFIQ][reg-8] = value
		return
	}
	if bank := bankIndex(mode); bank >= 0 && (reg == SP || reg == LR) {
		c.banked[bank][reg-8] = value
		return
	}
	c.regs[reg] = value
}

// SPSRFor returns the SPSR of a specific mode (save states, debugger)
func (c *CPU) SPSRFor(mode uint32) uint32 {
	if bank := bankIndex(mode); bank >= 0 {
		return c.spsr[bank]
	}
	return 0
}

// SetSPSRFor writes the SPSR of a specific mode
func (c *CPU) SetSPSRFor(mode uint32, value uint32) {
	if bank := bankIndex(mode); bank >= 0 {
		c.spsr[bank] = value
	}
}

// Snapshot returns the raw register file and banked matrix for save
// states
func (c *CPU) Snapshot() (regs [16]uint32, banked [bankCount][7]uint32, spsr [bankCount]uint32) {
	return c.regs, c.banked, c.spsr
}

// Restore replaces the raw register file and banked matrix from a save
// state
func (c *CPU) Restore(regs [16]uint32, banked [bankCount][7]uint32, spsr [bankCount]uint32) {
	c.regs = regs
	c.banked = banked
	c.spsr = spsr
}

// flag helpers

func (c *CPU) flag(mask uint32) bool {
	return c.cpsr&mask != 0
}

func (c *CPU) setFlag(mask uint32, set bool) {
	if set {
		c.cpsr |= mask
	} else {
		c.cpsr &^= mask
	}
}

// setNZ updates the N and Z flags from a result
func (c *CPU) setNZ(result uint32) {
	c.setFlag(FlagN, result&0x80000000 != 0)
	c.setFlag(FlagZ, result == 0)
}

// pcOperand returns the value an instruction observes when it reads
// R15: the architectural prefetch address
func (c *CPU) pcOperand() uint32 {
	return c.regs[PC] + 2*c.InstructionSize()
}

// reg reads a register for use as an operand, substituting the
// prefetch-adjusted PC for R15
func (c *CPU) reg(r int) uint32 {
	if r == PC {
		return c.pcOperand()
	}
	return c.Reg(r)
}

// CheckAlignment validates the PC alignment invariant for the current
// execution state
func (c *CPU) CheckAlignment() error {
	if c.regs[PC]%c.InstructionSize() != 0 {
		return &AlignmentFault{PC: c.regs[PC], Thumb: c.IsThumb()}
	}
	return nil
}

// Step fetches, decodes, and executes one instruction, advancing PC
// unless the instruction itself wrote it
func (c *CPU) Step() error {
	pc := c.regs[PC]
	c.pcWritten = false

	var err error
	if c.IsThumb() {
		var opcode uint16
		opcode, err = c.mem.Read16(pc)
		if err == nil {
			err = c.executeThumb(opcode)
		}
	} else {
		var opcode uint32
		opcode, err = c.mem.Read32(pc)
		if err == nil {
			err = c.executeARM(opcode)
		}
	}
	if err != nil {
		return fmt.Errorf("arm7: at PC 0x%08X: %w", pc, err)
	}

	if !c.pcWritten {
		c.regs[PC] = pc + c.InstructionSize()
	}
	return nil
}

// CheckInterrupts performs IRQ entry when the master enable is set, the
// CPSR I bit is clear, and an enabled interrupt is pending.
//
// Entry saves CPSR into SPSR_irq, switches to IRQ mode with further
// IRQs disabled, leaves the return address in LR_irq, forces ARM state,
// and vectors to 0x18.
func (c *CPU) CheckInterrupts() {
	if c.mem.ReadIO16(memory.RegIME)&0x1 == 0 {
		return
	}
	if c.cpsr&IRQDisable != 0 {
		return
	}
	enabled := c.mem.ReadIO16(memory.RegIE)
	requested := c.mem.ReadIO16(memory.RegIF)
	if enabled&requested == 0 {
		return
	}

	returnAddr := c.regs[PC] + 4

	c.spsr[bankIRQ] = c.cpsr
	c.cpsr = (c.cpsr &^ (ModeMask | ThumbState)) | ModeIRQ | IRQDisable
	c.banked[bankIRQ][LR-8] = returnAddr
	c.regs[PC] = VectorIRQ
}

// String renders the register file for fault reports and the debugger
func (c *CPU) String() string {
	state := "ARM"
	if c.IsThumb() {
		state = "Thumb"
	}
	return fmt.Sprintf(
		"R0 =%08X R1 =%08X R2 =%08X R3 =%08X\n"+
			"R4 =%08X R5 =%08X R6 =%08X R7 =%08X\n"+
			"R8 =%08X R9 =%08X R10=%08X R11=%08X\n"+
			"R12=%08X SP =%08X LR =%08X PC =%08X\n"+
			"CPSR=%08X [%s mode=%02X N=%t Z=%t C=%t V=%t]",
		c.Reg(0), c.Reg(1), c.Reg(2), c.Reg(3),
		c.Reg(4), c.Reg(5), c.Reg(6), c.Reg(7),
		c.Reg(8), c.Reg(9), c.Reg(10), c.Reg(11),
		c.Reg(12), c.Reg(SP), c.Reg(LR), c.Reg(PC),
		c.cpsr, state, c.Mode(),
		c.flag(FlagN), c.flag(FlagZ), c.flag(FlagC), c.flag(FlagV))
}
