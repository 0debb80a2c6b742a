// Command dump-frame runs the emulator headless for a number of frames
// and writes the final frame buffer to a PNG file.
package main

import (
	"image"
	"image/color"
	"image/png"
	"log"
	"os"

	"github.com/pborman/getopt/v2"

	"github.com/andrewthecodertx/gba-emulator/pkg/gba"
	"github.com/andrewthecodertx/gba-emulator/pkg/ppu"
)

func main() {
	biosPath := getopt.StringLong("bios", 'b', "gba_bios.bin", "path to the BIOS image")
	romPath := getopt.StringLong("rom", 'r', "", "path to the ROM image")
	frames := getopt.IntLong("frames", 'n', 120, "frames to run before dumping")
	outPath := getopt.StringLong("out", 'o', "frame.png", "output PNG path")
	getopt.Parse()

	if *romPath == "" {
		getopt.Usage()
		os.Exit(1)
	}

	emulator := gba.New()
	if err := emulator.LoadBIOSFile(*biosPath); err != nil {
		log.Fatalf("dump-frame: %v", err)
	}
	if err := emulator.LoadROMFile(*romPath); err != nil {
		log.Fatalf("dump-frame: %v", err)
	}

	for i := 0; i < *frames; i++ {
		if err := emulator.RunFrame(); err != nil {
			log.Fatalf("dump-frame: %v", err)
		}
	}

	frame := emulator.FrameBuffer()
	img := image.NewRGBA(image.Rect(0, 0, ppu.FrameWidth, ppu.FrameHeight))
	for y := 0; y < ppu.FrameHeight; y++ {
		for x := 0; x < ppu.FrameWidth; x++ {
			c := frame[y*ppu.FrameWidth+x]
			img.SetRGBA(x, y, color.RGBA{
				R: uint8(c&0x1F) << 3,
				G: uint8(c>>5&0x1F) << 3,
				B: uint8(c>>10&0x1F) << 3,
				A: 0xFF,
			})
		}
	}

	file, err := os.Create(*outPath)
	if err != nil {
		log.Fatalf("dump-frame: %v", err)
	}
	defer file.Close()

	if err := png.Encode(file, img); err != nil {
		log.Fatalf("dump-frame: %v", err)
	}
	log.Printf("wrote %s after %d frames", *outPath, *frames)
}
