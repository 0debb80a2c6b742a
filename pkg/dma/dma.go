// Package dma implements the GBA's four-channel DMA controller.
//
// Each tick, the channels are scanned in order 0-3 and at most one
// eligible channel runs its whole transfer. A channel is eligible when
// enabled and its trigger condition holds: immediately, during
// vertical blank, or during horizontal blank (the fourth, "special"
// trigger is reserved for sound FIFO and is skipped).
//
// Transfers whose source or destination falls in the EEPROM region are
// serial: each transferred unit carries one protocol bit, and a
// completed transfer into the region executes the collected command.
package dma

import (
	"fmt"

	"github.com/andrewthecodertx/gba-emulator/pkg/memory"
	"github.com/andrewthecodertx/gba-emulator/pkg/ppu"
)

// Destination address control (control bits 6-5)
const (
	destIncrement = 0
	destDecrement = 1
	destFixed     = 2
	destReload    = 3 // Increments per unit; the register reloads on retrigger
)

// Source address control (control bits 8-7)
const (
	srcIncrement  = 0
	srcDecrement  = 1
	srcFixed      = 2
	srcProhibited = 3
)

// Trigger modes (control bits 13-12)
const (
	triggerImmediate = 0
	triggerVBlank    = 1
	triggerHBlank    = 2
	triggerSpecial   = 3
)

const enableFlag = 1 << 15

// ProhibitedSourceError reports a channel programmed with the reserved
// source address control value
type ProhibitedSourceError struct {
	Channel int
}

func (e *ProhibitedSourceError) Error() string {
	return fmt.Sprintf("dma: channel %d uses the prohibited source address control", e.Channel)
}

// Controller is the four-channel DMA engine
type Controller struct {
	mem *memory.Memory
}

// New creates a DMA controller attached to the given bus
func New(mem *memory.Memory) *Controller {
	return &Controller{mem: mem}
}

// Registers for channel ch
func channelRegs(ch int) (sad, dad, cntL, cntH uint32) {
	base := uint32(ch * memory.DMAStride)
	return memory.RegDMA0SAD + base, memory.RegDMA0DAD + base,
		memory.RegDMA0CntL + base, memory.RegDMA0CntH + base
}

// Cycle scans the channels in order and processes at most one
func (c *Controller) Cycle() error {
	for ch := 0; ch < 4; ch++ {
		ran, err := c.processChannel(ch)
		if err != nil {
			return err
		}
		if ran {
			return nil
		}
	}
	return nil
}

// processChannel runs one channel's transfer if it is eligible,
// reporting whether it ran
func (c *Controller) processChannel(ch int) (bool, error) {
	sadReg, dadReg, cntLReg, cntHReg := channelRegs(ch)

	source := c.mem.ReadIO32(sadReg)
	dest := c.mem.ReadIO32(dadReg)
	count := uint32(c.mem.ReadIO16(cntLReg))
	control := c.mem.ReadIO16(cntLReg + 2)

	if control&enableFlag == 0 {
		return false, nil
	}

	destControl := int(control>>5) & 0x3
	sourceControl := int(control>>7) & 0x3
	repeat := control&(1<<9) != 0
	wordUnits := control&(1<<10) != 0
	trigger := int(control>>12) & 0x3
	irqEnable := control&(1<<14) != 0

	switch trigger {
	case triggerVBlank:
		if c.mem.ReadIO16(memory.RegDispStat)&ppu.StatusVBlank == 0 {
			return false, nil
		}
	case triggerHBlank:
		if c.mem.ReadIO16(memory.RegDispStat)&ppu.StatusHBlank == 0 {
			return false, nil
		}
	case triggerSpecial:
		// Sound FIFO timing, reserved
		return false, nil
	}

	// The reserved source mode aborts fatally before any unit moves
	if sourceControl == srcProhibited {
		return true, &ProhibitedSourceError{Channel: ch}
	}

	unitSize := uint32(2)
	if wordUnits {
		unitSize = 4
	}

	eepromDest := inEEPROMRegion(dest)
	eepromSource := inEEPROMRegion(source)

	for i := uint32(0); i < count; i++ {
		var err error
		switch {
		case eepromDest:
			err = c.transferBitToEEPROM(source, int(i))
		case eepromSource:
			err = c.transferBitFromEEPROM(dest, int(i))
		case wordUnits:
			var data uint32
			if data, err = c.mem.Read32(source); err == nil {
				err = c.mem.Write32(dest, data)
			}
		default:
			var data uint16
			if data, err = c.mem.Read16(source); err == nil {
				err = c.mem.Write16(dest, data)
			}
		}
		if err != nil {
			return true, fmt.Errorf("dma: channel %d: %w", ch, err)
		}

		switch destControl {
		case destIncrement, destReload:
			dest += unitSize
		case destDecrement:
			dest -= unitSize
		}

		switch sourceControl {
		case srcIncrement:
			source += unitSize
		case srcDecrement:
			source -= unitSize
		}

		c.mem.WriteIO16(cntLReg, uint16(count-i-1))
	}

	// A completed stream into the EEPROM is a full command
	if eepromDest && count > 0 {
		if err := c.mem.EEPROM().Execute(int(count)); err != nil {
			return true, fmt.Errorf("dma: channel %d: %w", ch, err)
		}
	}

	if repeat {
		// Reload the unit counter; control is preserved
		c.mem.WriteIO16(cntLReg, uint16(count))
	} else {
		c.mem.WriteIO16(cntHReg, control&^enableFlag)
	}

	if irqEnable {
		c.mem.RequestInterrupt(memory.IRQDMA0 << uint(ch))
	}
	return true, nil
}

func inEEPROMRegion(addr uint32) bool {
	return addr >= memory.EEPROMStart && addr <= memory.EEPROMEnd
}

// transferBitToEEPROM appends bit 0 of the source halfword to the
// EEPROM shift buffer
func (c *Controller) transferBitToEEPROM(source uint32, idx int) error {
	data, err := c.mem.Read16(source)
	if err != nil {
		return err
	}
	c.mem.EEPROM().ShiftIn(idx, uint8(data&0x1))
	return nil
}

// transferBitFromEEPROM shifts one reply bit out of the previously
// latched 64-bit word into the destination. The first four bits are
// protocol padding and transfer nothing.
func (c *Controller) transferBitFromEEPROM(dest uint32, idx int) error {
	eeprom := c.mem.EEPROM()
	if !eeprom.ReadPending() {
		return fmt.Errorf("dma: EEPROM source transfer with no read command latched")
	}
	if idx < 4 {
		return nil
	}
	return c.mem.Write16(dest, eeprom.ShiftOut(idx))
}
