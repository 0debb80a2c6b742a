// Command trace-cpu runs the emulator for a number of ticks and prints
// an instruction-level execution trace: PC, raw opcode, execution
// state, and the flag nibble after each step.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/pborman/getopt/v2"

	"github.com/andrewthecodertx/gba-emulator/pkg/arm7"
	"github.com/andrewthecodertx/gba-emulator/pkg/gba"
)

func main() {
	biosPath := getopt.StringLong("bios", 'b', "gba_bios.bin", "path to the BIOS image")
	romPath := getopt.StringLong("rom", 'r', "", "path to the ROM image")
	ticks := getopt.IntLong("ticks", 'n', 100, "ticks to trace")
	getopt.Parse()

	if *romPath == "" {
		getopt.Usage()
		os.Exit(1)
	}

	emulator := gba.New()
	if err := emulator.LoadBIOSFile(*biosPath); err != nil {
		log.Fatalf("trace-cpu: %v", err)
	}
	if err := emulator.LoadROMFile(*romPath); err != nil {
		log.Fatalf("trace-cpu: %v", err)
	}

	cpu := emulator.CPU()
	mem := emulator.Memory()

	for i := 0; i < *ticks; i++ {
		pc := cpu.Reg(arm7.PC)

		var opcode uint32
		state := "ARM"
		if cpu.IsThumb() {
			state = "THM"
			if op, err := mem.Read16(pc); err == nil {
				opcode = uint32(op)
			}
		} else {
			opcode, _ = mem.Read32(pc)
		}

		if err := emulator.Tick(); err != nil {
			fmt.Printf("%8d  %08X  %08X  %s  FAULT: %v\n", i, pc, opcode, state, err)
			fmt.Println(cpu.String())
			os.Exit(1)
		}

		cpsr := cpu.CPSR()
		fmt.Printf("%8d  %08X  %08X  %s  N=%d Z=%d C=%d V=%d -> %08X\n",
			i, pc, opcode, state,
			cpsr>>31&1, cpsr>>30&1, cpsr>>29&1, cpsr>>28&1,
			cpu.Reg(arm7.PC))
	}
}
