// Command play runs the emulator in an SDL2 window.
//
// The emulation worker runs on its own goroutine; this process's main
// goroutine owns the window, samples the keyboard into the key status
// register, and presents the frame buffer at ~60 FPS. With -debug, a
// line-editing REPL on stdout drives the worker's command queue.
package main

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
	"unsafe"

	"github.com/pborman/getopt/v2"
	"github.com/peterh/liner"
	"github.com/veandco/go-sdl2/sdl"

	"github.com/andrewthecodertx/gba-emulator/pkg/gba"
	"github.com/andrewthecodertx/gba-emulator/pkg/keypad"
	"github.com/andrewthecodertx/gba-emulator/pkg/ppu"
)

func main() {
	biosPath := getopt.StringLong("bios", 'b', "gba_bios.bin", "path to the BIOS image")
	romPath := getopt.StringLong("rom", 'r', "", "path to the ROM image")
	scale := getopt.IntLong("scale", 's', 3, "window scale factor")
	debug := getopt.BoolLong("debug", 'd', "start the debugger REPL")
	getopt.Parse()

	if *romPath == "" {
		getopt.Usage()
		os.Exit(1)
	}

	emulator := gba.New()
	if err := emulator.LoadBIOSFile(*biosPath); err != nil {
		log.Fatalf("play: %v", err)
	}
	if err := emulator.LoadROMFile(*romPath); err != nil {
		log.Fatalf("play: %v", err)
	}

	if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
		log.Fatalf("play: failed to initialize SDL: %v", err)
	}
	defer sdl.Quit()

	window, err := sdl.CreateWindow(
		"GBA Emulator - "+*romPath,
		sdl.WINDOWPOS_UNDEFINED,
		sdl.WINDOWPOS_UNDEFINED,
		int32(ppu.FrameWidth * *scale),
		int32(ppu.FrameHeight * *scale),
		sdl.WINDOW_SHOWN,
	)
	if err != nil {
		log.Fatalf("play: failed to create window: %v", err)
	}
	defer window.Destroy()

	renderer, err := sdl.CreateRenderer(window, -1, sdl.RENDERER_ACCELERATED)
	if err != nil {
		log.Fatalf("play: failed to create renderer: %v", err)
	}
	defer renderer.Destroy()

	texture, err := renderer.CreateTexture(
		sdl.PIXELFORMAT_RGB24,
		sdl.TEXTUREACCESS_STREAMING,
		ppu.FrameWidth,
		ppu.FrameHeight,
	)
	if err != nil {
		log.Fatalf("play: failed to create texture: %v", err)
	}
	defer texture.Destroy()

	// Start the emulation worker
	workerDone := make(chan struct{})
	go func() {
		emulator.Run()
		close(workerDone)
	}()

	if *debug {
		emulator.Commands() <- gba.Command{Kind: gba.CmdBreak}
		go debuggerREPL(emulator)
	}

	fmt.Println("=== GBA Emulator ===")
	fmt.Println("System: ESC=quit")
	fmt.Println("Game:   Arrows=D-pad | X=A | Z=B | Enter=Start | RShift=Select | S=L | D=R")

	pad := keypad.New()
	pixels := make([]byte, ppu.FrameWidth*ppu.FrameHeight*3)
	frame := make([]uint16, ppu.FrameWidth*ppu.FrameHeight)

	running := true
	for running {
		for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
			switch e := event.(type) {
			case *sdl.QuitEvent:
				running = false

			case *sdl.KeyboardEvent:
				pressed := e.Type == sdl.KEYDOWN

				if pressed && e.Keysym.Sym == sdl.K_ESCAPE {
					running = false
					continue
				}

				switch e.Keysym.Sym {
				case sdl.K_x:
					pad.SetButton(keypad.ButtonA, pressed)
				case sdl.K_z:
					pad.SetButton(keypad.ButtonB, pressed)
				case sdl.K_RSHIFT:
					pad.SetButton(keypad.ButtonSelect, pressed)
				case sdl.K_RETURN:
					pad.SetButton(keypad.ButtonStart, pressed)
				case sdl.K_UP:
					pad.SetButton(keypad.ButtonUp, pressed)
				case sdl.K_DOWN:
					pad.SetButton(keypad.ButtonDown, pressed)
				case sdl.K_LEFT:
					pad.SetButton(keypad.ButtonLeft, pressed)
				case sdl.K_RIGHT:
					pad.SetButton(keypad.ButtonRight, pressed)
				case sdl.K_s:
					pad.SetButton(keypad.ButtonL, pressed)
				case sdl.K_d:
					pad.SetButton(keypad.ButtonR, pressed)
				}
			}
		}

		emulator.SetKeyStatus(pad.Value())

		// Sample the frame buffer and convert 5:5:5 to RGB24
		emulator.PPU().CopyFrame(frame)
		for i, color := range frame {
			pixels[i*3+0] = uint8(color&0x1F) << 3
			pixels[i*3+1] = uint8(color>>5&0x1F) << 3
			pixels[i*3+2] = uint8(color>>10&0x1F) << 3
		}

		texture.Update(nil, unsafe.Pointer(&pixels[0]), ppu.FrameWidth*3)
		renderer.Clear()
		renderer.Copy(texture, nil, nil)
		renderer.Present()

		sdl.Delay(16)
	}

	emulator.Kill()
	select {
	case <-workerDone:
	case <-time.After(time.Second):
		log.Println("play: worker did not exit in time")
	}
}

// debuggerREPL reads debugger commands from the terminal and forwards
// them to the worker's command queue
func debuggerREPL(emulator *gba.GBA) {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	fmt.Println("debugger: c)ontinue s)tep [n] b)reak [addr] f)rame r)eset regs save <file> load <file> q)uit")

	for {
		input, err := line.Prompt("dbg> ")
		if err != nil {
			return
		}
		line.AppendHistory(input)

		fields := strings.Fields(input)
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "c", "continue":
			emulator.Commands() <- gba.Command{Kind: gba.CmdContinue}

		case "s", "step":
			n := 1
			if len(fields) > 1 {
				if v, err := strconv.Atoi(fields[1]); err == nil {
					n = v
				}
			}
			emulator.Commands() <- gba.Command{Kind: gba.CmdStep, Arg: n}

		case "b", "break":
			if len(fields) > 1 {
				if addr, err := strconv.ParseUint(strings.TrimPrefix(fields[1], "0x"), 16, 32); err == nil {
					emulator.SetBreakpoint(uint32(addr))
					fmt.Printf("breakpoint at 0x%08X\n", addr)
					continue
				}
			}
			emulator.Commands() <- gba.Command{Kind: gba.CmdBreak}

		case "f", "frame":
			emulator.Commands() <- gba.Command{Kind: gba.CmdNextFrame}

		case "r", "reset":
			emulator.Commands() <- gba.Command{Kind: gba.CmdReset}

		case "regs":
			fmt.Println(emulator.CPU().String())

		case "save":
			if len(fields) < 2 {
				fmt.Println("usage: save <file>")
				continue
			}
			pauseAnd(emulator, func() { saveStateFile(emulator, fields[1]) })

		case "load":
			if len(fields) < 2 {
				fmt.Println("usage: load <file>")
				continue
			}
			pauseAnd(emulator, func() { loadStateFile(emulator, fields[1]) })

		case "q", "quit":
			emulator.Commands() <- gba.Command{Kind: gba.CmdQuit}
			return

		default:
			fmt.Printf("unknown command %q\n", fields[0])
		}
	}
}

// pauseAnd stops the worker, runs fn against the quiesced core, and
// leaves the worker paused for the user to continue
func pauseAnd(emulator *gba.GBA, fn func()) {
	emulator.Commands() <- gba.Command{Kind: gba.CmdBreak}
	// Give the worker a tick boundary to observe the pause
	time.Sleep(50 * time.Millisecond)
	fn()
}

func saveStateFile(emulator *gba.GBA, path string) {
	f, err := os.Create(path)
	if err != nil {
		fmt.Printf("save: %v\n", err)
		return
	}
	defer f.Close()
	if err := emulator.SaveState(f); err != nil {
		fmt.Printf("save: %v\n", err)
		return
	}
	fmt.Printf("state saved to %s\n", path)
}

func loadStateFile(emulator *gba.GBA, path string) {
	f, err := os.Open(path)
	if err != nil {
		fmt.Printf("load: %v\n", err)
		return
	}
	defer f.Close()
	if err := emulator.LoadState(f); err != nil {
		fmt.Printf("load: %v\n", err)
		return
	}
	fmt.Printf("state loaded from %s\n", path)
}
