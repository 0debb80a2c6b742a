package ppu

import (
	"encoding/binary"

	"github.com/andrewthecodertx/gba-emulator/pkg/memory"
)

// Background control register addresses indexed by layer
var bgControlRegs = [4]uint32{
	memory.RegBG0Cnt, memory.RegBG1Cnt, memory.RegBG2Cnt, memory.RegBG3Cnt,
}

// Scroll offset register addresses indexed by layer
var bgScrollRegs = [4][2]uint32{
	{memory.RegBG0HOfs, memory.RegBG0VOfs},
	{memory.RegBG1HOfs, memory.RegBG1VOfs},
	{memory.RegBG2HOfs, memory.RegBG2VOfs},
	{memory.RegBG3HOfs, memory.RegBG3VOfs},
}

// renderBackgrounds draws every background layer enabled for the
// current mode into the layer table.
//
// Modes:
//   - 0: BG0-BG3 text
//   - 1: BG0, BG1 text; BG2 affine
//   - 2: BG2, BG3 affine
//   - 3: BG2 16-bit bitmap, 240x160
//   - 4: BG2 8-bit paletted bitmap, two 240x160 frames
//   - 5: BG2 16-bit bitmap, two 160x128 frames
func (p *PPU) renderBackgrounds(scanline int) {
	dispCnt := DisplayControl(p.mem.ReadIO16(memory.RegDispCnt))

	switch dispCnt.Mode() {
	case 0:
		for bg := 0; bg < 4; bg++ {
			if dispCnt.DisplayBG(bg) {
				p.renderTextBackground(bg, scanline)
			}
		}
	case 1:
		if dispCnt.DisplayBG(0) {
			p.renderTextBackground(0, scanline)
		}
		if dispCnt.DisplayBG(1) {
			p.renderTextBackground(1, scanline)
		}
		if dispCnt.DisplayBG(2) {
			p.renderAffineBackground(2, scanline)
		}
	case 2:
		if dispCnt.DisplayBG(2) {
			p.renderAffineBackground(2, scanline)
		}
		if dispCnt.DisplayBG(3) {
			p.renderAffineBackground(3, scanline)
		}
	case 3:
		if dispCnt.DisplayBG(2) {
			p.renderBitmap16(scanline, 0, FrameWidth, FrameHeight)
		}
	case 4:
		if dispCnt.DisplayBG(2) {
			p.renderBitmap8(scanline, dispCnt.FrameSelect())
		}
	case 5:
		if dispCnt.DisplayBG(2) {
			base := uint32(dispCnt.FrameSelect()) * 0xA000
			p.renderBitmap16(scanline, base, 160, 128)
		}
	}
}

// textBackgroundSize returns a text background's dimensions in tiles
func textBackgroundSize(selector int) (w, h int) {
	switch selector {
	case 0:
		return 32, 32 // 256x256
	case 1:
		return 64, 32 // 512x256
	case 2:
		return 32, 64 // 256x512
	default:
		return 64, 64 // 512x512
	}
}

// renderTextBackground draws one scrollable tiled layer.
//
// The screen map is addressed in 32x32-entry blocks of 16-bit entries:
// 10-bit tile index, horizontal/vertical flip bits, and a palette bank
// for 4bpp tiles. Palette index 0 is transparent.
func (p *PPU) renderTextBackground(bg, scanline int) {
	vram := p.mem.VRAM()
	control := BackgroundControl(p.mem.ReadIO16(bgControlRegs[bg]))

	tileRAM := vram[control.CharBaseBlock():]
	mapRAM := vram[control.ScreenBaseBlock():]

	widthTiles, heightTiles := textBackgroundSize(control.ScreenSize())
	widthPixels := widthTiles * tileSize
	heightPixels := heightTiles * tileSize

	scrollX := int(p.mem.ReadIO16(bgScrollRegs[bg][0]) & 0x1FF)
	scrollY := int(p.mem.ReadIO16(bgScrollRegs[bg][1]) & 0x1FF)

	priority := control.Priority()
	is256 := control.Is256Color()

	textureY := (scanline + scrollY) % heightPixels
	tileY := textureY / tileSize
	rowInTile := textureY % tileSize

	for screenX := 0; screenX < FrameWidth; screenX++ {
		textureX := (screenX + scrollX) % widthPixels
		tileX := textureX / tileSize
		colInTile := textureX % tileSize

		// Locate the 32x32 map block holding this tile
		var blockIndex int
		switch {
		case widthTiles == heightTiles:
			blockIndex = (tileY/32)*(widthTiles/32) + tileX/32
		case widthTiles > heightTiles:
			blockIndex = tileX / 32
		default:
			blockIndex = tileY / 32
		}

		entryIndex := blockIndex*1024 + (tileY%32)*32 + tileX%32
		entry := binary.LittleEndian.Uint16(mapRAM[entryIndex*2:])

		tileIndex := int(entry & 0x3FF)
		x := colInTile
		y := rowInTile
		if entry&(1<<10) != 0 {
			x = tileSize - 1 - x
		}
		if entry&(1<<11) != 0 {
			y = tileSize - 1 - y
		}

		var paletteIndex int
		if is256 {
			// Out-of-range tile indices wrap around VRAM
			offset := (tileIndex*tile8bppBytes + y*tileSize + x) % len(tileRAM)
			paletteIndex = int(tileRAM[offset])
		} else {
			offset := (tileIndex*tile4bppBytes + y*tileSize/2 + x/2) % len(tileRAM)
			pair := tileRAM[offset]
			if x%2 == 0 {
				paletteIndex = int(pair & 0xF)
			} else {
				paletteIndex = int(pair >> 4)
			}
			if paletteIndex != 0 {
				paletteIndex += int(entry>>12) * 16
			}
		}

		// Palette index 0 is transparent for backgrounds
		if paletteIndex == 0 {
			continue
		}

		p.layers[screenX][priority][bg] = p.paletteColor(paletteIndex) | EnablePixel
	}
}

// affineBackgroundSize returns an affine background's dimensions in
// tiles (always square)
func affineBackgroundSize(selector int) int {
	return 16 << selector // 128, 256, 512, 1024 pixels
}

// renderAffineBackground draws one rotation/scaling layer.
//
// The texture coordinate for each screen pixel is
//
//	(u, v) = (RX, RY) + M * (screen_x, scanline)
//
// with M a 2x2 matrix of 8.8 fixed-point values and (RX, RY) a 20.8
// fixed-point reference point. Map entries are one byte; tiles are
// always 8bpp.
func (p *PPU) renderAffineBackground(bg, scanline int) {
	vram := p.mem.VRAM()
	control := BackgroundControl(p.mem.ReadIO16(bgControlRegs[bg]))

	tileRAM := vram[control.CharBaseBlock():]
	mapRAM := vram[control.ScreenBaseBlock():]

	var pa, pb, pc, pd int32
	var refX, refY int32
	if bg == 2 {
		pa = int32(int16(p.mem.ReadIO16(memory.RegBG2PA)))
		pb = int32(int16(p.mem.ReadIO16(memory.RegBG2PB)))
		pc = int32(int16(p.mem.ReadIO16(memory.RegBG2PC)))
		pd = int32(int16(p.mem.ReadIO16(memory.RegBG2PD)))
		refX = signExtend28(p.mem.ReadIO32(memory.RegBG2XRef))
		refY = signExtend28(p.mem.ReadIO32(memory.RegBG2YRef))
	} else {
		pa = int32(int16(p.mem.ReadIO16(memory.RegBG3PA)))
		pb = int32(int16(p.mem.ReadIO16(memory.RegBG3PB)))
		pc = int32(int16(p.mem.ReadIO16(memory.RegBG3PC)))
		pd = int32(int16(p.mem.ReadIO16(memory.RegBG3PD)))
		refX = signExtend28(p.mem.ReadIO32(memory.RegBG3XRef))
		refY = signExtend28(p.mem.ReadIO32(memory.RegBG3YRef))
	}

	sizePixels := affineBackgroundSize(control.ScreenSize()) * tileSize
	widthTiles := sizePixels / tileSize
	priority := control.Priority()

	for screenX := 0; screenX < FrameWidth; screenX++ {
		// All arithmetic in 8.8 fixed point, shifted out at the end
		textureX := int(refX+pa*int32(screenX)+pb*int32(scanline)) >> 8
		textureY := int(refY+pc*int32(screenX)+pd*int32(scanline)) >> 8

		if textureX < 0 || textureX >= sizePixels || textureY < 0 || textureY >= sizePixels {
			continue
		}

		tileIndex := int(mapRAM[(textureY/tileSize)*widthTiles+textureX/tileSize])
		offset := (tileIndex*tile8bppBytes + (textureY%tileSize)*tileSize + textureX%tileSize) % len(tileRAM)
		paletteIndex := int(tileRAM[offset])
		if paletteIndex == 0 {
			continue
		}

		p.layers[screenX][priority][bg] = p.paletteColor(paletteIndex) | EnablePixel
	}
}

// signExtend28 interprets a reference-point register: 8 fractional
// bits, 19 integer bits, 1 sign bit at bit 27
func signExtend28(value uint32) int32 {
	return int32(value<<4) >> 4
}

// renderBitmap16 draws one line of a direct-color bitmap (modes 3
// and 5). Direct-color pixels are always opaque.
func (p *PPU) renderBitmap16(scanline int, base uint32, width, height int) {
	if scanline >= height {
		return
	}

	vram := p.mem.VRAM()
	priority := BackgroundControl(p.mem.ReadIO16(memory.RegBG2Cnt)).Priority()

	row := base + uint32(scanline*width)*2
	for x := 0; x < width && x < FrameWidth; x++ {
		color := binary.LittleEndian.Uint16(vram[row+uint32(x)*2:])
		p.layers[x][priority][sourceBG2] = color | EnablePixel
	}
}

// renderBitmap8 draws one line of the paletted bitmap (mode 4). Palette
// index 0 is transparent, as for tiled backgrounds.
func (p *PPU) renderBitmap8(scanline, frame int) {
	vram := p.mem.VRAM()
	priority := BackgroundControl(p.mem.ReadIO16(memory.RegBG2Cnt)).Priority()

	row := uint32(frame)*0xA000 + uint32(scanline*FrameWidth)
	for x := 0; x < FrameWidth; x++ {
		paletteIndex := int(vram[row+uint32(x)])
		if paletteIndex == 0 {
			continue
		}
		p.layers[x][priority][sourceBG2] = p.paletteColor(paletteIndex) | EnablePixel
	}
}
