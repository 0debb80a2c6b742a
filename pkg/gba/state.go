package gba

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/andrewthecodertx/gba-emulator/pkg/memory"
)

// saveState is the fixed-layout snapshot written by SaveState. The
// format is internal to a build: little-endian field order as declared,
// no versioning.
type saveState struct {
	Cycles uint64
	Regs   [16]uint32
	CPSR   uint32
	SPSR   [5]uint32
	Banked [5][7]uint32

	EWRAM   [memory.EWRAMSize]uint8
	IWRAM   [memory.IWRAMSize]uint8
	IO      [memory.IOSize]uint8
	Palette [memory.PaletteSize]uint8
	VRAM    [memory.VRAMSize]uint8
	OAM     [memory.OAMSize]uint8

	// Only the first flash bank; bank 1 of a 128KB chip is not part of
	// the snapshot
	SRAM [0x10000]uint8
}

// SaveState serializes the emulator state: cycle counter, full register
// file (banked matrix and SPSRs included), working memory, I/O,
// palette, VRAM, OAM, and the first 64KB of cartridge SRAM.
//
// Must run on the worker's schedule: pause the worker before calling
// from another goroutine.
func (g *GBA) SaveState(w io.Writer) error {
	var state saveState

	state.Cycles = g.cpu.Cycles
	state.CPSR = g.cpu.CPSR()
	state.Regs, state.Banked, state.SPSR = g.cpu.Snapshot()

	copy(state.EWRAM[:], g.mem.EWRAM())
	copy(state.IWRAM[:], g.mem.IWRAM())
	copy(state.IO[:], g.mem.IO())
	copy(state.Palette[:], g.mem.Palette())
	copy(state.VRAM[:], g.mem.VRAM())
	copy(state.OAM[:], g.mem.OAM())
	copy(state.SRAM[:], g.mem.Flash().Data())

	if err := binary.Write(w, binary.LittleEndian, &state); err != nil {
		return fmt.Errorf("gba: failed to write save state: %w", err)
	}
	return nil
}

// LoadState restores a snapshot written by SaveState
func (g *GBA) LoadState(r io.Reader) error {
	var state saveState
	if err := binary.Read(r, binary.LittleEndian, &state); err != nil {
		return fmt.Errorf("gba: failed to read save state: %w", err)
	}

	g.cpu.Cycles = state.Cycles
	g.cpu.SetCPSR(state.CPSR)
	g.cpu.Restore(state.Regs, state.Banked, state.SPSR)

	copy(g.mem.EWRAM(), state.EWRAM[:])
	copy(g.mem.IWRAM(), state.IWRAM[:])
	copy(g.mem.IO(), state.IO[:])
	copy(g.mem.Palette(), state.Palette[:])
	copy(g.mem.VRAM(), state.VRAM[:])
	copy(g.mem.OAM(), state.OAM[:])
	copy(g.mem.Flash().Data(), state.SRAM[:])

	return nil
}
