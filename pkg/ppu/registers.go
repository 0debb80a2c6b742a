package ppu

// DisplayControl represents the REG_DISPCNT register (0x04000000)
//
// Bit layout:
//   - 15: OBJ window enable
//   - 14: Window 1 enable
//   - 13: Window 0 enable
//   - 12: OBJ layer enable
//   - 11-8: BG3..BG0 layer enables
//   - 6: OBJ one-dimensional tile mapping
//   - 5: Hblank interval free (unused here)
//   - 4: Frame select for bitmap modes 4/5
//   - 2-0: Background mode (0-5)
type DisplayControl uint16

// Mode returns the background mode (0-5)
func (d DisplayControl) Mode() int {
	return int(d & 0x7)
}

// FrameSelect returns the page-flip frame for bitmap modes 4 and 5
func (d DisplayControl) FrameSelect() int {
	return int(d>>4) & 0x1
}

// OneDimensionalMapping reports whether OBJ tiles map contiguously per
// sprite rather than wrapping every tile row
func (d DisplayControl) OneDimensionalMapping() bool {
	return d&(1<<6) != 0
}

// DisplayBG reports whether background layer bg (0-3) is enabled
func (d DisplayControl) DisplayBG(bg int) bool {
	return d&(1<<(8+uint(bg))) != 0
}

// DisplayOBJ reports whether the object layer is enabled
func (d DisplayControl) DisplayOBJ() bool {
	return d&(1<<12) != 0
}

// Window0Enabled reports whether rectangular window 0 is enabled
func (d DisplayControl) Window0Enabled() bool {
	return d&(1<<13) != 0
}

// Window1Enabled reports whether rectangular window 1 is enabled
func (d DisplayControl) Window1Enabled() bool {
	return d&(1<<14) != 0
}

// ObjWindowEnabled reports whether the OBJ window is enabled
func (d DisplayControl) ObjWindowEnabled() bool {
	return d&(1<<15) != 0
}

// AnyWindowEnabled reports whether any window modulates this frame
func (d DisplayControl) AnyWindowEnabled() bool {
	return d&(0x7<<13) != 0
}

// BackgroundControl represents a REG_BGxCNT register (0x04000008+2x)
//
// Bit layout:
//   - 15-14: Screen size
//   - 13: Affine wraparound (unused here)
//   - 12-8: Screen base block (x 2KB)
//   - 7: 256-color mode
//   - 3-2: Character base block (x 16KB)
//   - 1-0: Priority (0 = highest)
type BackgroundControl uint16

// Priority returns the layer priority (0 = drawn on top)
func (b BackgroundControl) Priority() int {
	return int(b & 0x3)
}

// CharBaseBlock returns the tile data base offset into VRAM
func (b BackgroundControl) CharBaseBlock() uint32 {
	return (uint32(b>>2) & 0x3) * 0x4000
}

// ScreenBaseBlock returns the map data base offset into VRAM
func (b BackgroundControl) ScreenBaseBlock() uint32 {
	return (uint32(b>>8) & 0x1F) * 0x800
}

// Is256Color reports 8bpp tiles (16 palette banks of 16 otherwise)
func (b BackgroundControl) Is256Color() bool {
	return b&(1<<7) != 0
}

// ScreenSize returns the raw screen size selector (0-3)
func (b BackgroundControl) ScreenSize() int {
	return int(b>>14) & 0x3
}

// LCD status flag bits in REG_DISPSTAT
const (
	StatusVBlank          uint16 = 1 << 0
	StatusHBlank          uint16 = 1 << 1
	StatusVCountMatch     uint16 = 1 << 2
	StatusVBlankIRQEnable uint16 = 1 << 3
	StatusHBlankIRQEnable uint16 = 1 << 4
	StatusVCountIRQEnable uint16 = 1 << 5
)

// Sprite modes (OAM attribute 0 bits 11-10)
const (
	objModeNormal = iota
	objModeSemiTransparent
	objModeWindow
	objModeProhibited
)

// Pixel sources in layer-table order. The resolver and the special
// effects visit OBJ first, then BG0 up to BG3, within a priority level.
const (
	sourceBG0 = iota
	sourceBG1
	sourceBG2
	sourceBG3
	sourceOBJ
	sourceBackdrop
	sourceCount
)

// Blend control (REG_BLDCNT) special effect modes
const (
	effectNone = iota
	effectAlphaBlend
	effectBrightnessUp
	effectBrightnessDown
)
