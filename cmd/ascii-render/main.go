// Command ascii-render runs the emulator headless for a number of
// frames and prints the frame buffer as ASCII art, sized to the
// terminal. Useful for checking that a ROM renders anything at all
// without a display attached.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/pborman/getopt/v2"
	"golang.org/x/term"

	"github.com/andrewthecodertx/gba-emulator/pkg/gba"
	"github.com/andrewthecodertx/gba-emulator/pkg/ppu"
)

// Characters by increasing brightness
const shades = " .:-=+*#%@"

func main() {
	biosPath := getopt.StringLong("bios", 'b', "gba_bios.bin", "path to the BIOS image")
	romPath := getopt.StringLong("rom", 'r', "", "path to the ROM image")
	frames := getopt.IntLong("frames", 'n', 120, "frames to run before rendering")
	getopt.Parse()

	if *romPath == "" {
		getopt.Usage()
		os.Exit(1)
	}

	emulator := gba.New()
	if err := emulator.LoadBIOSFile(*biosPath); err != nil {
		log.Fatalf("ascii-render: %v", err)
	}
	if err := emulator.LoadROMFile(*romPath); err != nil {
		log.Fatalf("ascii-render: %v", err)
	}

	fmt.Printf("Running %d frames...\n", *frames)
	for i := 0; i < *frames; i++ {
		if err := emulator.RunFrame(); err != nil {
			log.Fatalf("ascii-render: %v", err)
		}
	}

	// Fit the 240x160 frame to the terminal; character cells are about
	// twice as tall as wide
	cols, rows := 80, 24
	if w, h, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
		cols, rows = w, h-2
	}
	if cols > ppu.FrameWidth {
		cols = ppu.FrameWidth
	}
	if rows > ppu.FrameHeight/2 {
		rows = ppu.FrameHeight / 2
	}

	blockW := ppu.FrameWidth / cols
	blockH := ppu.FrameHeight / rows

	frame := emulator.FrameBuffer()
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			// Average the block's luminance
			sum, n := 0, 0
			for dy := 0; dy < blockH; dy++ {
				for dx := 0; dx < blockW; dx++ {
					px := x*blockW + dx
					py := y*blockH + dy
					if px < ppu.FrameWidth && py < ppu.FrameHeight {
						color := frame[py*ppu.FrameWidth+px]
						r := int(color & 0x1F)
						g := int(color >> 5 & 0x1F)
						b := int(color >> 10 & 0x1F)
						sum += (r*299 + g*587 + b*114) / 1000
						n++
					}
				}
			}
			avg := sum / n

			idx := avg * len(shades) / 32
			if idx >= len(shades) {
				idx = len(shades) - 1
			}
			fmt.Printf("%c", shades[idx])
		}
		fmt.Println()
	}
}
