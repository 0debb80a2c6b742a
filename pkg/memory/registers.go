package memory

// Memory-mapped I/O register addresses.
//
// The register file lives at 0x04000000. Engines read and write these
// through the ReadIO/WriteIO fast path; the CPU reaches them through
// normal bus access like any other address.
const (
	// LCD control and status
	RegDispCnt  = 0x04000000 // Display control
	RegDispStat = 0x04000004 // LCD status (vblank/hblank/vcount flags and IRQ enables)
	RegVCount   = 0x04000006 // Current scanline

	// Background control (one halfword per layer)
	RegBG0Cnt = 0x04000008
	RegBG1Cnt = 0x0400000A
	RegBG2Cnt = 0x0400000C
	RegBG3Cnt = 0x0400000E

	// Text background scroll offsets (write-only on hardware)
	RegBG0HOfs = 0x04000010
	RegBG0VOfs = 0x04000012
	RegBG1HOfs = 0x04000014
	RegBG1VOfs = 0x04000016
	RegBG2HOfs = 0x04000018
	RegBG2VOfs = 0x0400001A
	RegBG3HOfs = 0x0400001C
	RegBG3VOfs = 0x0400001E

	// Affine background parameters: 8.8 fixed-point matrix plus a
	// 20.8 fixed-point reference point
	RegBG2PA   = 0x04000020
	RegBG2PB   = 0x04000022
	RegBG2PC   = 0x04000024
	RegBG2PD   = 0x04000026
	RegBG2XRef = 0x04000028
	RegBG2YRef = 0x0400002C
	RegBG3PA   = 0x04000030
	RegBG3PB   = 0x04000032
	RegBG3PC   = 0x04000034
	RegBG3PD   = 0x04000036
	RegBG3XRef = 0x04000038
	RegBG3YRef = 0x0400003C

	// Window bounds (x2 in low byte, x1 in high byte; same for y)
	RegWin0H = 0x04000040
	RegWin1H = 0x04000042
	RegWin0V = 0x04000044
	RegWin1V = 0x04000046

	// Window layer membership
	RegWinIn  = 0x04000048 // Inside window 0 (low byte) and window 1 (high byte)
	RegWinOut = 0x0400004A // Outside all windows (low byte), inside OBJ window (high byte)

	// Special effects
	RegBldCnt   = 0x04000050 // Blend control: mode and target selects
	RegBldAlpha = 0x04000052 // Alpha coefficients (EVA low byte, EVB high byte)
	RegBldY     = 0x04000054 // Brightness coefficient

	// DMA channels (12 bytes apart)
	RegDMA0SAD  = 0x040000B0 // Source address
	RegDMA0DAD  = 0x040000B4 // Destination address
	RegDMA0CntL = 0x040000B8 // Unit count
	RegDMA0CntH = 0x040000BA // Control
	DMAStride   = 12

	// Timers (4 bytes apart)
	RegTM0CntL  = 0x04000100 // Counter on read, reload on write
	RegTM0CntH  = 0x04000102 // Control
	TimerStride = 4

	// Key input (read-only)
	RegKeyInput = 0x04000130

	// Interrupt control
	RegIE  = 0x04000200 // Interrupt enable
	RegIF  = 0x04000202 // Interrupt request flags (write-one-to-clear)
	RegIME = 0x04000208 // Interrupt master enable
)

// Interrupt request/enable bit assignments
const (
	IRQVBlank uint16 = 1 << 0
	IRQHBlank uint16 = 1 << 1
	IRQVCount uint16 = 1 << 2
	IRQTimer0 uint16 = 1 << 3 // Timers 0-3 occupy bits 3-6
	IRQDMA0   uint16 = 1 << 8 // DMA channels 0-3 occupy bits 8-11
	IRQKeypad uint16 = 1 << 12
)
