// Package ppu implements the GBA pixel pipeline.
//
// The PPU rasterizes one scanline at a time into a 240x160 frame buffer
// of 15-bit BGR color (bit 15 marks an opaque pixel). Each scanline is
// composed from four tile/bitmap background layers and 128 sprites,
// masked by up to three windows, modulated by color special effects,
// and resolved by priority.
//
// Timing (one cycle per CPU tick):
//   - 1232 cycles per scanline
//   - Hblank starts 960 cycles into the line and ends at the line boundary
//   - Scanlines 0-159 are visible, 160-227 are vertical blank
//   - Scanline 228 wraps back to 0
//
// Mid-scanline register changes are not modeled: each line renders
// whole, at its completion, from the register state at that moment.
package ppu

import (
	"encoding/binary"

	"github.com/andrewthecodertx/gba-emulator/pkg/memory"
)

// Screen dimensions
const (
	FrameWidth  = 240
	FrameHeight = 160
)

// Timing constants
const (
	CyclesPerScanline = 1232
	HBlankStart       = CyclesPerScanline - 272
	VisibleScanlines  = 160
	VBlankEndLine     = 226
	ScanlinesPerFrame = 228
)

// EnablePixel marks an opaque pixel in the 16-bit color format
// (5R:5G:5B:1A with bit 15 as the opaque marker)
const EnablePixel = 0x8000

// Tile geometry
const (
	tileSize      = 8
	tile4bppBytes = 32
	tile8bppBytes = 64
)

// PPU is the pixel pipeline
type PPU struct {
	mem *memory.Memory

	// ====================================================================
	// Output
	// ====================================================================

	// Full frame, row stride FrameWidth
	frameBuffer [FrameWidth * FrameHeight]uint16

	// Set when the visible frame finishes (entry into vblank)
	frameComplete bool

	// ====================================================================
	// Scanline State
	// ====================================================================
	//
	// Cleared at scanline start, resolved at scanline end, then copied
	// into the frame buffer at offset scanline*FrameWidth.

	// Resolved output for the line
	scanlineBuffer [FrameWidth]uint16

	// Special-effects overlay; a nonzero entry overrides the resolved
	// pixel
	effectsBuffer [FrameWidth]uint16

	// OBJ-window membership mask
	objWindowBuffer [FrameWidth]bool

	// Semi-transparent-OBJ membership mask
	semiTransparentBuffer [FrameWidth]bool

	// Per-pixel layer table indexed by (x, priority, pixel source);
	// declared inline for cache locality
	layers [FrameWidth][4][sourceCount]uint16
}

// New creates a PPU attached to the given bus, with the frame buffer
// initialized to white
func New(mem *memory.Memory) *PPU {
	p := &PPU{mem: mem}
	for i := range p.frameBuffer {
		p.frameBuffer[i] = 0xFFFF
	}
	return p
}

// FrameBuffer returns a pointer to the frame buffer. The worker writes
// it scanline by scanline; presenters sampling mid-frame may tear but
// never observe uninitialized memory.
func (p *PPU) FrameBuffer() *[FrameWidth * FrameHeight]uint16 {
	return &p.frameBuffer
}

// CopyFrame copies the frame buffer into dst (presenter-side snapshot)
func (p *PPU) CopyFrame(dst []uint16) {
	copy(dst, p.frameBuffer[:])
}

// FrameComplete reports whether a visible frame finished since the last
// ClearFrameComplete
func (p *PPU) FrameComplete() bool {
	return p.frameComplete
}

// ClearFrameComplete resets the frame completion flag
func (p *PPU) ClearFrameComplete() {
	p.frameComplete = false
}

// Cycle advances the pipeline to the given CPU cycle count: scanlines
// complete on every 1232-cycle boundary and the hblank flag transitions
// at the corresponding cycle within the line
func (p *PPU) Cycle(cycles uint64) {
	pos := cycles % CyclesPerScanline

	if pos == 0 {
		// End hblank at the line boundary, then complete the line
		status := p.mem.ReadIO16(memory.RegDispStat)
		p.mem.WriteIO16(memory.RegDispStat, status&^StatusHBlank)

		p.completeScanline()
		return
	}

	if pos == HBlankStart {
		status := p.mem.ReadIO16(memory.RegDispStat)
		p.mem.WriteIO16(memory.RegDispStat, status|StatusHBlank)

		if status&StatusHBlankIRQEnable != 0 {
			p.mem.RequestInterrupt(memory.IRQHBlank)
		}
	}
}

// completeScanline runs the once-per-line bookkeeping: vcount match,
// vblank transitions, rendering, and the scanline counter advance
func (p *PPU) completeScanline() {
	scanline := uint32(p.mem.ReadIO8(memory.RegVCount))
	status := p.mem.ReadIO16(memory.RegDispStat)

	// Vertical count match
	target := uint32(status >> 8)
	if scanline == target {
		status |= StatusVCountMatch
		p.mem.WriteIO16(memory.RegDispStat, status)

		if status&StatusVCountIRQEnable != 0 {
			p.mem.RequestInterrupt(memory.IRQVCount)
		}
	} else if status&StatusVCountMatch != 0 {
		status &^= StatusVCountMatch
		p.mem.WriteIO16(memory.RegDispStat, status)
	}

	// Begin vertical blank
	if scanline == VisibleScanlines {
		status |= StatusVBlank
		p.mem.WriteIO16(memory.RegDispStat, status)
		p.frameComplete = true

		if status&StatusVBlankIRQEnable != 0 {
			p.mem.RequestInterrupt(memory.IRQVBlank)
		}
	}

	if scanline < VisibleScanlines {
		p.renderScanline(int(scanline))
	}

	// End vertical blank two lines before wrap
	if scanline == VBlankEndLine {
		status = p.mem.ReadIO16(memory.RegDispStat)
		p.mem.WriteIO16(memory.RegDispStat, status&^StatusVBlank)
	}

	scanline++
	if scanline == ScanlinesPerFrame {
		scanline = 0
	}
	p.mem.WriteIO8(memory.RegVCount, uint8(scanline))
}

// renderScanline rasterizes one visible line into the frame buffer
func (p *PPU) renderScanline(scanline int) {
	p.clearScanlineBuffers()

	// Backdrop fills the output first; every later stage draws over it
	backdrop := p.backdropColor()
	for x := 0; x < FrameWidth; x++ {
		p.scanlineBuffer[x] = backdrop
	}

	p.renderBackgrounds(scanline)
	p.renderObjects(scanline)
	p.applyWindowsToLayers(scanline)
	p.applySpecialEffects()
	p.applyWindowsToEffects(scanline)
	p.resolveScanline()

	copy(p.frameBuffer[scanline*FrameWidth:], p.scanlineBuffer[:])
}

func (p *PPU) clearScanlineBuffers() {
	p.scanlineBuffer = [FrameWidth]uint16{}
	p.effectsBuffer = [FrameWidth]uint16{}
	p.objWindowBuffer = [FrameWidth]bool{}
	p.semiTransparentBuffer = [FrameWidth]bool{}
	p.layers = [FrameWidth][4][sourceCount]uint16{}
}

// backdropColor returns palette entry 0 marked opaque
func (p *PPU) backdropColor() uint16 {
	return p.paletteColor(0) | EnablePixel
}

// paletteColor reads background palette entry i
func (p *PPU) paletteColor(i int) uint16 {
	return binary.LittleEndian.Uint16(p.mem.Palette()[i*2:])
}

// objPaletteColor reads sprite palette entry i (upper half of palette
// RAM)
func (p *PPU) objPaletteColor(i int) uint16 {
	return binary.LittleEndian.Uint16(p.mem.Palette()[0x200+i*2:])
}

// resolveScanline picks each column's final pixel: the special-effects
// pixel when present, else the highest-priority non-transparent source
func (p *PPU) resolveScanline() {
	for x := 0; x < FrameWidth; x++ {
		if p.effectsBuffer[x] > 0 {
			p.scanlineBuffer[x] = p.effectsBuffer[x]
			continue
		}

		found := false
		for priority := 0; priority < 4 && !found; priority++ {
			// At a shared priority level OBJ draws on top, then the
			// lower-numbered background
			if color := p.layers[x][priority][sourceOBJ]; color > 0 {
				p.scanlineBuffer[x] = color
				break
			}
			for source := sourceBG0; source <= sourceBG3; source++ {
				if color := p.layers[x][priority][source]; color > 0 {
					p.scanlineBuffer[x] = color
					found = true
					break
				}
			}
		}
	}
}
