// Package gba wires the emulator core together and runs it.
//
// A GBA owns the CPU, bus, pixel pipeline, DMA engine, and timers, and
// advances them in lockstep one tick at a time: CPU, interrupt check,
// pixel pipeline, DMA, timers. Tick boundaries are the only points at
// which the core's state is observable.
//
// Concurrency contract: the emulation worker (Run) owns all core state.
// A presenter on another goroutine may only write the key status and
// the kill flag (both atomic), send debugger commands over the bounded
// command queue, and read the frame buffer, which the worker publishes
// scanline by scanline (a mid-frame read may tear but never observes
// uninitialized memory).
package gba

import (
	"fmt"
	"log"
	"os"
	"sync/atomic"
	"time"

	"github.com/andrewthecodertx/gba-emulator/pkg/arm7"
	"github.com/andrewthecodertx/gba-emulator/pkg/backup"
	"github.com/andrewthecodertx/gba-emulator/pkg/dma"
	"github.com/andrewthecodertx/gba-emulator/pkg/memory"
	"github.com/andrewthecodertx/gba-emulator/pkg/ppu"
	"github.com/andrewthecodertx/gba-emulator/pkg/timer"
)

// CommandKind selects a debugger command
type CommandKind int

const (
	// CmdContinue resumes free-running execution
	CmdContinue CommandKind = iota
	// CmdStep executes Arg ticks and pauses
	CmdStep
	// CmdBreak pauses execution
	CmdBreak
	// CmdReset performs a soft reset
	CmdReset
	// CmdNextFrame runs to the start of the next vertical blank
	CmdNextFrame
	// CmdQuit sets the kill flag
	CmdQuit
)

// Command is one debugger request sent from the presenter to the
// worker
type Command struct {
	Kind CommandKind
	Arg  int
}

// GBA is the emulator core
type GBA struct {
	cpu    *arm7.CPU
	mem    *memory.Memory
	ppu    *ppu.PPU
	dma    *dma.Controller
	timers *timer.Timers

	// Presenter-written, worker-read
	kill      atomic.Bool
	keyStatus atomic.Uint32

	// Single-producer single-consumer bounded debugger queue
	commands chan Command

	// Pause execution when PC reaches this address (worker-owned)
	breakpoint uint32
	hasBreak   bool
}

// New creates a powered-on console with no BIOS or ROM loaded
func New() *GBA {
	mem := memory.New()
	cpu := arm7.New(mem)

	g := &GBA{
		cpu:      cpu,
		mem:      mem,
		ppu:      ppu.New(mem),
		dma:      dma.New(mem),
		timers:   timer.New(mem),
		commands: make(chan Command, 16),
	}
	g.keyStatus.Store(0x03FF)
	g.SoftReset()
	return g
}

// CPU returns the processor core
func (g *GBA) CPU() *arm7.CPU { return g.cpu }

// Memory returns the system bus
func (g *GBA) Memory() *memory.Memory { return g.mem }

// PPU returns the pixel pipeline
func (g *GBA) PPU() *ppu.PPU { return g.ppu }

// Timers returns the timer engine
func (g *GBA) Timers() *timer.Timers { return g.timers }

// FrameBuffer returns a pointer to the 240x160 frame buffer
func (g *GBA) FrameBuffer() *[ppu.FrameWidth * ppu.FrameHeight]uint16 {
	return g.ppu.FrameBuffer()
}

// Commands returns the debugger command queue
func (g *GBA) Commands() chan<- Command {
	return g.commands
}

// LoadBIOS loads a BIOS image into the system ROM region
func (g *GBA) LoadBIOS(data []uint8) error {
	return g.mem.LoadBIOS(data)
}

// LoadROM loads a ROM image into the Game Pak region
func (g *GBA) LoadROM(data []uint8) error {
	return g.mem.LoadROM(data)
}

// LoadBIOSFile loads a BIOS image from disk
func (g *GBA) LoadBIOSFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("gba: failed to read BIOS %s: %w", path, err)
	}
	return g.LoadBIOS(data)
}

// LoadROMFile loads a ROM image from disk
func (g *GBA) LoadROMFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("gba: failed to read ROM %s: %w", path, err)
	}
	return g.LoadROM(data)
}

// SetKeyStatus publishes a REG_KEYINPUT value (0 = pressed per bit).
// Safe to call from the presenter; the worker latches it each tick.
func (g *GBA) SetKeyStatus(value uint16) {
	g.keyStatus.Store(uint32(value))
}

// Kill requests that the worker exit its loop at the next tick. Safe
// to call from the presenter.
func (g *GBA) Kill() {
	g.kill.Store(true)
}

// Killed reports whether the kill flag is set
func (g *GBA) Killed() bool {
	return g.kill.Load()
}

// SetBreakpoint pauses the worker whenever PC reaches addr
func (g *GBA) SetBreakpoint(addr uint32) {
	g.breakpoint = addr
	g.hasBreak = true
}

// ClearBreakpoint removes the breakpoint
func (g *GBA) ClearBreakpoint() {
	g.hasBreak = false
}

// Stack pointers seeded at reset, matching the layout the BIOS leaves
// at the top of IWRAM. Direct-boot ROMs take exceptions before any
// BIOS code runs and expect these stacks in place.
const (
	bootStackSupervisor = 0x03007FE0
	bootStackIRQ        = 0x03007FA0
	bootStackSystem     = 0x03007F00
)

// SoftReset zeroes working memory, I/O, palette, VRAM, and OAM, resets
// the CPU and timers, and reinstates boot defaults. Cartridge backup
// contents survive.
func (g *GBA) SoftReset() {
	g.cpu.Reset()
	g.timers.Reset()
	g.mem.SoftReset()

	g.cpu.SetRegFor(arm7.ModeSupervisor, arm7.SP, bootStackSupervisor)
	g.cpu.SetRegFor(arm7.ModeIRQ, arm7.SP, bootStackIRQ)
	g.cpu.SetRegFor(arm7.ModeSystem, arm7.SP, bootStackSystem)

	// Dummy flash ID bytes so programs probing for a flash chip find
	// one before issuing any command
	g.mem.Flash().Data()[0] = backup.FlashManufacturerID
	g.mem.Flash().Data()[1] = backup.FlashDeviceID
}

// Tick advances the whole core by one cycle: CPU, interrupt entry,
// pixel pipeline, DMA, timers, in that order
func (g *GBA) Tick() error {
	// The key status the presenter last published becomes visible at
	// the tick boundary
	g.mem.WriteIO16(memory.RegKeyInput, uint16(g.keyStatus.Load()))

	if err := g.cpu.CheckAlignment(); err != nil {
		return err
	}

	if err := g.cpu.Step(); err != nil {
		return err
	}
	g.cpu.CheckInterrupts()

	g.ppu.Cycle(g.cpu.Cycles)

	if err := g.dma.Cycle(); err != nil {
		return err
	}

	g.timers.Tick(g.cpu.Cycles)

	g.cpu.Cycles++
	return nil
}

// RunFrame ticks until the current visible frame completes
func (g *GBA) RunFrame() error {
	g.ppu.ClearFrameComplete()
	for !g.ppu.FrameComplete() && !g.kill.Load() {
		if err := g.Tick(); err != nil {
			return err
		}
	}
	return nil
}

// Run is the emulation worker loop.
//
// The worker free-runs ticks, draining debugger commands between them.
// A fault prints the CPU state and pauses with the frame buffer frozen;
// the presenter can then issue a reset (or load a state) and continue.
// Setting the kill flag exits the loop at the next tick.
func (g *GBA) Run() {
	paused := false
	stepBudget := 0
	// Set while stopped on the breakpoint, so the next tick leaves it
	atBreak := false

	for !g.kill.Load() {
		if paused && stepBudget == 0 {
			// Stopped: wait for a command instead of spinning. The
			// timeout keeps the loop responsive to Kill.
			select {
			case cmd := <-g.commands:
				paused, stepBudget = g.handleCommand(cmd, paused, stepBudget)
			case <-time.After(10 * time.Millisecond):
			}
			continue
		}

		// Free-running: drain one pending command per tick
		select {
		case cmd := <-g.commands:
			paused, stepBudget = g.handleCommand(cmd, paused, stepBudget)
			continue
		default:
		}

		if g.hasBreak && !atBreak && g.cpu.Reg(arm7.PC) == g.breakpoint {
			paused = true
			stepBudget = 0
			atBreak = true
			continue
		}

		if err := g.Tick(); err != nil {
			log.Printf("gba: fault: %v\n%s", err, g.cpu.String())
			paused = true
			stepBudget = 0
			continue
		}
		atBreak = false

		if stepBudget > 0 {
			stepBudget--
		}
	}
}

// handleCommand applies one debugger command, returning the new pause
// state and step budget
func (g *GBA) handleCommand(cmd Command, paused bool, stepBudget int) (bool, int) {
	switch cmd.Kind {
	case CmdContinue:
		return false, 0
	case CmdStep:
		n := cmd.Arg
		if n <= 0 {
			n = 1
		}
		return true, n
	case CmdBreak:
		return true, 0
	case CmdReset:
		g.SoftReset()
	case CmdNextFrame:
		g.runToNextFrame()
		return true, 0
	case CmdQuit:
		g.kill.Store(true)
	}
	return paused, stepBudget
}

// runToNextFrame advances to the first tick of the next vertical blank
func (g *GBA) runToNextFrame() {
	for uint32(g.mem.ReadIO8(memory.RegVCount)) != ppu.VisibleScanlines && !g.kill.Load() {
		if err := g.Tick(); err != nil {
			log.Printf("gba: fault: %v\n%s", err, g.cpu.String())
			return
		}
	}
	for uint32(g.mem.ReadIO8(memory.RegVCount)) == ppu.VisibleScanlines && !g.kill.Load() {
		if err := g.Tick(); err != nil {
			log.Printf("gba: fault: %v\n%s", err, g.cpu.String())
			return
		}
	}
}
