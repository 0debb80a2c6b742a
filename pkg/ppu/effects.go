package ppu

import "github.com/andrewthecodertx/gba-emulator/pkg/memory"

// windowRegion identifies which window controls a pixel
type windowRegion int

const (
	regionOutside windowRegion = iota
	regionWindow0
	regionWindow1
	regionObjWindow
)

// windowControl holds one region's layer and effect enables, unpacked
// from REG_WININ / REG_WINOUT
type windowControl struct {
	layers  [5]bool // BG0-BG3, OBJ
	effects bool
}

func unpackWindowControl(bits uint16) windowControl {
	var w windowControl
	for i := 0; i < 5; i++ {
		w.layers[i] = bits&(1<<i) != 0
	}
	w.effects = bits&(1<<5) != 0
	return w
}

// windowBounds reads a window's rectangle from its H/V registers. The
// high byte holds the left/top edge, the low byte one past the
// right/bottom edge.
func (p *PPU) windowBounds(hReg, vReg uint32) (x1, x2, y1, y2 int) {
	h := p.mem.ReadIO16(hReg)
	v := p.mem.ReadIO16(vReg)

	x1, x2 = int(h>>8), int(h&0xFF)
	y1, y2 = int(v>>8), int(v&0xFF)

	// Garbage values select to the edge of the screen
	if x2 > FrameWidth || x1 > x2 {
		x2 = FrameWidth
	}
	if y2 > FrameHeight || y1 > y2 {
		y2 = FrameHeight
	}
	return x1, x2, y1, y2
}

// classifyPixel finds the window region owning a pixel. Window 0 beats
// window 1, which beats the OBJ window.
func (p *PPU) classifyPixel(dispCnt DisplayControl, x, scanline int) windowRegion {
	if dispCnt.Window0Enabled() {
		x1, x2, y1, y2 := p.windowBounds(memory.RegWin0H, memory.RegWin0V)
		if x >= x1 && x < x2 && scanline >= y1 && scanline < y2 {
			return regionWindow0
		}
	}
	if dispCnt.Window1Enabled() {
		x1, x2, y1, y2 := p.windowBounds(memory.RegWin1H, memory.RegWin1V)
		if x >= x1 && x < x2 && scanline >= y1 && scanline < y2 {
			return regionWindow1
		}
	}
	if dispCnt.ObjWindowEnabled() && p.objWindowBuffer[x] {
		return regionObjWindow
	}
	return regionOutside
}

// regionControls unpacks all four regions' membership registers
func (p *PPU) regionControls() [4]windowControl {
	winIn := p.mem.ReadIO16(memory.RegWinIn)
	winOut := p.mem.ReadIO16(memory.RegWinOut)
	return [4]windowControl{
		regionOutside:   unpackWindowControl(winOut),
		regionWindow0:   unpackWindowControl(winIn),
		regionWindow1:   unpackWindowControl(winIn >> 8),
		regionObjWindow: unpackWindowControl(winOut >> 8),
	}
}

// applyWindowsToLayers clears layer pixels that their controlling
// window region does not admit. With no window enabled, every layer
// passes through untouched.
func (p *PPU) applyWindowsToLayers(scanline int) {
	dispCnt := DisplayControl(p.mem.ReadIO16(memory.RegDispCnt))
	if !dispCnt.AnyWindowEnabled() {
		return
	}

	controls := p.regionControls()

	for x := 0; x < FrameWidth; x++ {
		control := controls[p.classifyPixel(dispCnt, x, scanline)]
		for priority := 0; priority < 4; priority++ {
			for source := sourceBG0; source <= sourceOBJ; source++ {
				if p.layers[x][priority][source] > 0 && !control.layers[source] {
					p.layers[x][priority][source] = 0
				}
			}
		}
	}
}

// applyWindowsToEffects clears special-effect pixels where the
// controlling window region disables effects
func (p *PPU) applyWindowsToEffects(scanline int) {
	dispCnt := DisplayControl(p.mem.ReadIO16(memory.RegDispCnt))
	if !dispCnt.AnyWindowEnabled() {
		return
	}

	controls := p.regionControls()

	for x := 0; x < FrameWidth; x++ {
		control := controls[p.classifyPixel(dispCnt, x, scanline)]
		if p.effectsBuffer[x] > 0 && !control.effects {
			p.effectsBuffer[x] = 0
		}
	}
}

// topTwoPixels finds the highest-priority pixel and the one directly
// below it in the layer table, in the resolver's order. A second OBJ
// pixel (from a lower priority level) never serves as the lower target.
func (p *PPU) topTwoPixels(x int) (topColor uint16, topSource int, secondColor uint16, secondSource int) {
	topSource = sourceBackdrop
	secondSource = sourceBackdrop

	for priority := 0; priority < 4; priority++ {
		for _, source := range [...]int{sourceOBJ, sourceBG0, sourceBG1, sourceBG2, sourceBG3} {
			color := p.layers[x][priority][source]
			if color == 0 {
				continue
			}
			if topColor == 0 {
				topColor = color
				topSource = source
			} else if secondColor == 0 {
				if source == sourceOBJ && topSource == sourceOBJ {
					continue
				}
				secondColor = color
				secondSource = source
				return topColor, topSource, secondColor, secondSource
			}
		}
	}
	return topColor, topSource, secondColor, secondSource
}

// applySpecialEffects runs the color special effect selected by
// REG_BLDCNT over the scanline, producing the effects overlay
func (p *PPU) applySpecialEffects() {
	control := p.mem.ReadIO16(memory.RegBldCnt)
	mode := int(control>>6) & 0x3
	if mode == effectNone {
		return
	}

	var target1, target2 [sourceCount]bool
	for i := 0; i < sourceCount; i++ {
		target1[i] = control&(1<<i) != 0
		target2[i] = control&(1<<(8+i)) != 0
	}

	backdrop := p.backdropColor()

	switch mode {
	case effectAlphaBlend:
		p.applyAlphaBlend(target1, target2, backdrop)
	case effectBrightnessUp, effectBrightnessDown:
		p.applyBrightness(mode, target1, backdrop)
	}
}

// applyAlphaBlend combines the top pixel with the pixel below it as
// clip(a*T1 + b*T2) per 5-bit channel, coefficients saturating at
// 16/16.
//
// Blending requires the top source enabled as Target 1 and the second
// as Target 2, with one override: a semi-transparent OBJ pixel on
// either side forces the Target 1 check (the pixel blends regardless),
// and blending is skipped entirely when the OBJ pixel is not marked
// semi-transparent.
func (p *PPU) applyAlphaBlend(target1, target2 [sourceCount]bool, backdrop uint16) {
	coeffs := p.mem.ReadIO16(memory.RegBldAlpha)
	alphaA := int(coeffs & 0x1F)
	alphaB := int(coeffs>>8) & 0x1F
	if alphaA > 16 {
		alphaA = 16
	}
	if alphaB > 16 {
		alphaB = 16
	}

	for x := 0; x < FrameWidth; x++ {
		topColor, topSource, secondColor, secondSource := p.topTwoPixels(x)

		// Nothing above the backdrop, nothing to blend
		if topSource == sourceBackdrop {
			continue
		}
		if secondSource == sourceBackdrop {
			secondColor = backdrop
		}

		if topSource == sourceOBJ || secondSource == sourceOBJ {
			// OBJ participates only when flagged semi-transparent
			if !p.semiTransparentBuffer[x] {
				continue
			}
		} else if !target1[topSource] {
			continue
		}
		if !target2[secondSource] {
			continue
		}

		r := blendChannel(int(topColor)&0x1F, int(secondColor)&0x1F, alphaA, alphaB)
		g := blendChannel(int(topColor>>5)&0x1F, int(secondColor>>5)&0x1F, alphaA, alphaB)
		b := blendChannel(int(topColor>>10)&0x1F, int(secondColor>>10)&0x1F, alphaA, alphaB)

		blended := uint16(r) | uint16(g)<<5 | uint16(b)<<10
		if blended > 0 {
			p.effectsBuffer[x] = blended | EnablePixel
		}
	}
}

// blendChannel computes clip((a*t1 + b*t2)/16) for one 5-bit channel
func blendChannel(t1, t2, a, b int) int {
	v := (a*t1 + b*t2) / 16
	if v > 0x1F {
		v = 0x1F
	}
	return v
}

// applyBrightness fades the top pixel toward white (mode 2) or black
// (mode 3) by coeff/16
func (p *PPU) applyBrightness(mode int, target1 [sourceCount]bool, backdrop uint16) {
	coeff := int(p.mem.ReadIO8(memory.RegBldY) & 0x1F)
	if coeff > 16 {
		coeff = 16
	}

	for x := 0; x < FrameWidth; x++ {
		topColor, topSource, _, _ := p.topTwoPixels(x)

		if topSource == sourceBackdrop {
			topColor = backdrop
		}
		if !target1[topSource] {
			continue
		}

		r := int(topColor) & 0x1F
		g := int(topColor>>5) & 0x1F
		b := int(topColor>>10) & 0x1F

		if mode == effectBrightnessUp {
			r += (0x1F - r) * coeff / 16
			g += (0x1F - g) * coeff / 16
			b += (0x1F - b) * coeff / 16
		} else {
			r -= r * coeff / 16
			g -= g * coeff / 16
			b -= b * coeff / 16
		}

		adjusted := uint16(r) | uint16(g)<<5 | uint16(b)<<10
		if adjusted > 0 {
			p.effectsBuffer[x] = adjusted | EnablePixel
		}
	}
}
