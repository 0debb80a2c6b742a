package ppu

import (
	"encoding/binary"

	"github.com/andrewthecodertx/gba-emulator/pkg/memory"
)

// OAM geometry: 128 sprites of three 16-bit attributes each, padded to
// 8 bytes. The padding halfwords double as 32 affine matrix slots
// (PA/PB/PC/PD spread across four consecutive entries).
const (
	spriteCount       = 128
	spriteEntryBytes  = 8
	objTileBase       = 0x10000 // Sprite tiles live in the top 32KB of VRAM
	objTileBaseBitmap = 0x14000 // Bitmap modes claim the lower sprite charblock
)

// objSizes maps (shape, size) to sprite dimensions in pixels
var objSizes = [3][4][2]int{
	{{8, 8}, {16, 16}, {32, 32}, {64, 64}},    // Square
	{{16, 8}, {32, 8}, {32, 16}, {64, 32}},    // Horizontal
	{{8, 16}, {8, 32}, {16, 32}, {32, 64}},    // Vertical
}

// renderObjects rasterizes the sprite layer for one scanline.
//
// Sprites draw in reverse index order so that lower-numbered sprites
// overwrite higher-numbered ones: index 0 wins ties. Sprites in window
// mode contribute only to the OBJ-window mask; semi-transparent sprites
// additionally mark the blending mask.
func (p *PPU) renderObjects(scanline int) {
	dispCnt := DisplayControl(p.mem.ReadIO16(memory.RegDispCnt))
	if !dispCnt.DisplayOBJ() {
		return
	}

	oam := p.mem.OAM()
	vram := p.mem.VRAM()

	tileRAM := vram[objTileBase:]
	if dispCnt.Mode() >= 3 {
		// The bitmap modes use the lower sprite charblock for the frame
		tileRAM = vram[objTileBaseBitmap:]
	}

	for i := spriteCount - 1; i >= 0; i-- {
		attr0 := binary.LittleEndian.Uint16(oam[i*spriteEntryBytes:])

		affine := attr0&(1<<8) != 0
		disabledOrDouble := attr0&(1<<9) != 0

		// Bit 9 means "disabled" for regular sprites and "double-size
		// bounding box" for affine ones
		if !affine && disabledOrDouble {
			continue
		}

		attr1 := binary.LittleEndian.Uint16(oam[i*spriteEntryBytes+2:])
		attr2 := binary.LittleEndian.Uint16(oam[i*spriteEntryBytes+4:])

		x := int(attr1 & 0x1FF)
		y := int(attr0 & 0xFF)

		is256 := attr0&(1<<13) != 0
		shape := int(attr0>>14) & 0x3
		sizeSel := int(attr1>>14) & 0x3
		hFlip := attr1&(1<<12) != 0
		vFlip := attr1&(1<<13) != 0

		width := objSizes[shape][sizeSel][0]
		height := objSizes[shape][sizeSel][1]

		bboxWidth, bboxHeight := width, height
		if disabledOrDouble {
			bboxWidth *= 2
			bboxHeight *= 2
		}

		// Wrap positions into their signed ranges: y to [-128, 127],
		// x to [-256, 255]
		if y > 160 {
			y -= 256
		}
		if disabledOrDouble && y+bboxHeight > 256 {
			y -= 256
		}
		if scanline < y || scanline >= y+bboxHeight {
			continue
		}
		if x > 255 {
			x -= 512
		}

		tileBase := int(attr2 & 0x3FF)
		paletteBank := int(attr2 >> 12)
		if is256 {
			// Bit 0 of the tile number is ignored in 256-color mode
			tileBase >>= 1
		}

		pa, pb, pc, pd := int32(1<<8), int32(0), int32(0), int32(1<<8)
		if affine {
			slot := int(attr1>>9) & 0x1F
			pa, pb, pc, pd = p.objAffineParams(slot)
		}

		widthTiles := width / tileSize
		tileBytes := tile4bppBytes
		if is256 {
			tileBytes = tile8bppBytes
		}

		mode := int(attr0>>10) & 0x3
		priority := int(attr2>>10) & 0x3

		halfWidth := bboxWidth / 2
		halfHeight := bboxHeight / 2
		centerX := x + halfWidth

		// Rasterize in sprite-local space centered on the bounding box
		iy := scanline - y - halfHeight
		for ix := -halfWidth; ix < halfWidth; ix++ {
			var textureX, textureY int
			if affine {
				textureX = int(pa*int32(ix)+pb*int32(iy)) >> 8
				textureY = int(pc*int32(ix)+pd*int32(iy)) >> 8
			} else {
				textureX = ix
				textureY = iy
			}
			textureX += width / 2
			textureY += height / 2

			screenX := centerX + ix
			if screenX < 0 || screenX >= FrameWidth {
				continue
			}
			if textureX < 0 || textureX >= width || textureY < 0 || textureY >= height {
				continue
			}

			// Flips apply to regular sprites only; affine transforms
			// subsume them
			if !affine {
				if hFlip {
					textureX = width - 1 - textureX
				}
				if vFlip {
					textureY = height - 1 - textureY
				}
			}

			tileCol := textureX / tileSize
			tileRow := textureY / tileSize

			var tileIndex int
			if dispCnt.OneDimensionalMapping() {
				tileIndex = tileBase + tileRow*widthTiles + tileCol
			} else if is256 {
				tileIndex = tileBase + tileRow*16 + tileCol
			} else {
				tileIndex = tileBase + tileRow*32 + tileCol
			}

			inTileX := textureX % tileSize
			inTileY := textureY % tileSize

			var paletteIndex int
			if is256 {
				// Out-of-range tile indices wrap around sprite VRAM
				offset := (tileIndex*tileBytes + inTileY*tileSize + inTileX) % len(tileRAM)
				paletteIndex = int(tileRAM[offset])
			} else {
				offset := (tileIndex*tileBytes + inTileY*tileSize/2 + inTileX/2) % len(tileRAM)
				pair := tileRAM[offset]
				if inTileX%2 == 0 {
					paletteIndex = int(pair & 0xF)
				} else {
					paletteIndex = int(pair >> 4)
				}
			}

			// Palette index 0 is transparent
			if paletteIndex == 0 {
				continue
			}

			if mode != objModeWindow {
				var color uint16
				if is256 {
					color = p.objPaletteColor(paletteIndex)
				} else {
					color = p.objPaletteColor(paletteBank*16 + paletteIndex)
				}
				p.layers[screenX][priority][sourceOBJ] = color | EnablePixel
			}

			switch mode {
			case objModeSemiTransparent:
				p.semiTransparentBuffer[screenX] = true
			case objModeWindow:
				p.objWindowBuffer[screenX] = true
			}
		}
	}
}

// objAffineParams reads one of the 32 affine matrix slots embedded in
// OAM padding: PA/PB/PC/PD occupy the fourth halfword of four
// consecutive sprite entries
func (p *PPU) objAffineParams(slot int) (pa, pb, pc, pd int32) {
	oam := p.mem.OAM()
	base := slot * 32
	pa = int32(int16(binary.LittleEndian.Uint16(oam[base+6:])))
	pb = int32(int16(binary.LittleEndian.Uint16(oam[base+14:])))
	pc = int32(int16(binary.LittleEndian.Uint16(oam[base+22:])))
	pd = int32(int16(binary.LittleEndian.Uint16(oam[base+30:])))
	return pa, pb, pc, pd
}
