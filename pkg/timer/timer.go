// Package timer implements the GBA's four hardware timers.
//
// Each timer is a 16-bit counter with a prescaled input clock
// (1, 64, 256, or 1024 cycles per increment) or, for timers 1-3, a
// count-up mode that increments on the previous timer's overflow. On
// overflow the counter reloads from its reload register and can raise
// an interrupt.
//
// The counter/reload register is shared: reads return the live counter
// (through a bus read hook) while writes store the reload value.
package timer

import "github.com/andrewthecodertx/gba-emulator/pkg/memory"

// Prescaler intervals indexed by the control register selector
var prescalerIntervals = [4]uint64{1, 64, 256, 1024}

// Control register bits
const (
	controlCountUp    = 1 << 2
	controlIRQEnable  = 1 << 6
	controlEnableFlag = 1 << 7
)

// Timers is the four-channel timer engine
type Timers struct {
	mem *memory.Memory

	// Software counters, 32-bit so an increment past 0xFFFF is visible
	// as the overflow condition before the reload
	counters [4]uint32

	// Overflow flags for the current tick, consumed by count-up mode
	// and by tests
	overflow [4]bool
}

// New creates the timer engine and installs its register hooks:
// reading a counter register returns the live counter, and an
// enable-bit rising edge reloads the counter from the reload register.
func New(mem *memory.Memory) *Timers {
	t := &Timers{mem: mem}

	for i := 0; i < 4; i++ {
		i := i
		cntL := counterReg(i)
		cntH := cntL + 2

		mem.OnRead(cntL, func(m *memory.Memory, addr uint32) uint32 {
			return t.counters[i]
		})

		mem.OnWrite(cntH, func(m *memory.Memory, addr uint32, value uint32) {
			previous := m.ReadIO16(cntH)
			if previous&controlEnableFlag == 0 && value&controlEnableFlag != 0 {
				// Enabling a stopped timer latches the reload value
				t.counters[i] = uint32(m.ReadIO16(cntL))
			}
			m.WriteIO16(cntH, uint16(value))
		})
	}

	return t
}

func counterReg(i int) uint32 {
	return memory.RegTM0CntL + uint32(i*memory.TimerStride)
}

// Counter returns timer i's live counter value
func (t *Timers) Counter(i int) uint32 {
	return t.counters[i]
}

// Overflowed reports whether timer i overflowed during the last tick
func (t *Timers) Overflowed(i int) bool {
	return t.overflow[i]
}

// Reset zeroes all counters and overflow flags
func (t *Timers) Reset() {
	t.counters = [4]uint32{}
	t.overflow = [4]bool{}
}

// Tick advances every enabled timer for the given CPU cycle.
//
// A timer increments either when its count-up flag is set and the
// previous channel overflowed this tick, or when the cycle count is a
// multiple of its prescaler interval. Wrapping past 0xFFFF sets the
// overflow flag, reloads the counter, and raises the timer's interrupt
// when enabled.
func (t *Timers) Tick(cycles uint64) {
	t.overflow = [4]bool{}

	for i := 0; i < 4; i++ {
		cntL := counterReg(i)
		control := t.mem.ReadIO16(cntL + 2)
		if control&controlEnableFlag == 0 {
			continue
		}

		countUp := control&controlCountUp != 0
		if countUp && i > 0 {
			if t.overflow[i-1] {
				t.counters[i]++
			}
		} else if cycles%prescalerIntervals[control&0x3] == 0 {
			t.counters[i]++
		}

		if t.counters[i] > 0xFFFF {
			t.overflow[i] = true
			t.counters[i] = uint32(t.mem.ReadIO16(cntL))

			if control&controlIRQEnable != 0 {
				t.mem.RequestInterrupt(memory.IRQTimer0 << uint(i))
			}
		}
	}
}
