package arm7

import (
	"testing"

	"github.com/andrewthecodertx/gba-emulator/pkg/memory"
)

// newTestCPU builds a CPU over a bus with write protection off and the
// given program assembled at address zero
func newTestCPU(t *testing.T, program ...uint32) *CPU {
	t.Helper()
	mem := memory.New()
	mem.SetROMWriteProtect(false)
	for i, op := range program {
		if err := mem.Write32(uint32(i*4), op); err != nil {
			t.Fatalf("failed to assemble program: %v", err)
		}
	}
	return New(mem)
}

func step(t *testing.T, c *CPU, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if err := c.Step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
}

func TestDataProcessingMOV(t *testing.T) {
	c := newTestCPU(t,
		0xE3A00001, // mov r0, #1
		0xE3A01002, // mov r1, #2
		0xE3A02003, // mov r2, #3
		0xE3A03004, // mov r3, #4
		0xE1A04003, // mov r4, r3
		0xE1A05112, // mov r5, r2, lsl r1
		0xE1A05082, // mov r5, r2, lsl #1
		0xE1A050A2, // mov r5, r2, lsr #1
		0xE1A050C2, // mov r5, r2, asr #1
		0xE1A050E2, // mov r5, r2, ror #1
		0xE1A05062, // mov r5, r2, rrx
	)

	for i := 0; i < 4; i++ {
		step(t, c, 1)
		if got := c.Reg(i); got != uint32(i+1) {
			t.Errorf("R%d = %d, want %d", i, got, i+1)
		}
		if pc := c.Reg(PC); pc != uint32((i+1)*4) {
			t.Errorf("PC = 0x%X, want 0x%X", pc, (i+1)*4)
		}
	}

	step(t, c, 1)
	if c.Reg(4) != c.Reg(3) {
		t.Errorf("mov r4, r3: R4 = %d, want %d", c.Reg(4), c.Reg(3))
	}

	step(t, c, 1)
	if got, want := c.Reg(5), c.Reg(2)<<c.Reg(1); got != want {
		t.Errorf("lsl r1: R5 = %d, want %d", got, want)
	}

	step(t, c, 1)
	if got, want := c.Reg(5), c.Reg(2)<<1; got != want {
		t.Errorf("lsl #1: R5 = %d, want %d", got, want)
	}

	step(t, c, 1)
	if got, want := c.Reg(5), c.Reg(2)>>1; got != want {
		t.Errorf("lsr #1: R5 = %d, want %d", got, want)
	}

	step(t, c, 1)
	if got, want := c.Reg(5), uint32(int32(c.Reg(2))>>1); got != want {
		t.Errorf("asr #1: R5 = %d, want %d", got, want)
	}

	step(t, c, 1)
	if got := c.Reg(5); got != 0x80000001 {
		t.Errorf("ror #1: R5 = 0x%08X, want 0x80000001", got)
	}

	// RRX pulls the carry into bit 31
	c.setFlag(FlagC, true)
	c.SetReg(2, 0x3)
	step(t, c, 1)
	if got := c.Reg(5); got != 0x80000001 {
		t.Errorf("rrx: R5 = 0x%08X, want 0x80000001", got)
	}
}

func TestDataProcessingMOVSToPC(t *testing.T) {
	c := newTestCPU(t,
		0xE1B0F00E, // movs pc, lr
	)
	c.SetCPSR(ModeSupervisor)
	c.SetReg(LR, 0x5)
	c.SetSPSR(ModeUser)

	step(t, c, 1)

	// Mode restored from SPSR, PC masked to ARM alignment
	if got := c.Reg(PC); got != 0x4 {
		t.Errorf("PC = 0x%X, want 0x4", got)
	}
	if got := c.CPSR(); got != ModeUser {
		t.Errorf("CPSR = 0x%08X, want user mode", got)
	}
}

func TestDataProcessingLogic(t *testing.T) {
	tests := []struct {
		name   string
		opcode uint32
		r0, r1 uint32
		want   uint32
	}{
		{"AND", 0xE0002001, 0x1, 0x1, 0x1},           // and r2, r0, r1
		{"EOR", 0xE0202001, 0x1, 0x1, 0x0},           // eor r2, r0, r1
		{"ORR", 0xE1802001, 0x1, 0x0, 0x1},           // orr r2, r0, r1
		{"BIC", 0xE1C02001, 0x1, 0x1, 0x0},           // bic r2, r0, r1
		{"MVN", 0xE1E02001, 0x0, 0x1, 0xFFFFFFFE},    // mvn r2, r1
		{"ADD", 0xE0802001, 0x1, 0x1, 0x2},           // add r2, r0, r1
		{"SUB", 0xE0402001, 0x3, 0x1, 0x2},           // sub r2, r0, r1
		{"RSB", 0xE0602001, 0x5, 0x1, 0xFFFFFFFC},    // rsb r2, r0, r1 = r1 - r0
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestCPU(t, tt.opcode)
			c.SetReg(0, tt.r0)
			c.SetReg(1, tt.r1)
			step(t, c, 1)
			if got := c.Reg(2); got != tt.want {
				t.Errorf("R2 = 0x%08X, want 0x%08X", got, tt.want)
			}
		})
	}
}

func TestDataProcessingFlags(t *testing.T) {
	// ands r2, r0, #1 with r0 = 0 sets Z
	c := newTestCPU(t, 0xE2102001)
	c.SetReg(0, 0)
	step(t, c, 1)
	if !c.flag(FlagZ) {
		t.Error("ands with zero result should set Z")
	}

	// subs r2, r0, #1 with r0 = 0 sets N and clears C (borrow)
	c = newTestCPU(t, 0xE2502001)
	c.SetReg(0, 0)
	step(t, c, 1)
	if got := c.Reg(2); got != 0xFFFFFFFF {
		t.Errorf("R2 = 0x%08X, want 0xFFFFFFFF", got)
	}
	if !c.flag(FlagN) {
		t.Error("subs below zero should set N")
	}
	if c.flag(FlagC) {
		t.Error("subs with borrow should clear C")
	}

	// adds r2, r0, #1 with r0 = 0xFFFFFFFF sets C and Z
	c = newTestCPU(t, 0xE2902001)
	c.SetReg(0, 0xFFFFFFFF)
	step(t, c, 1)
	if !c.flag(FlagC) {
		t.Error("adds with unsigned overflow should set C")
	}
	if !c.flag(FlagZ) {
		t.Error("adds wrapping to zero should set Z")
	}

	// adds r2, r0, #1 with r0 = 0x7FFFFFFF sets V
	c = newTestCPU(t, 0xE2902001)
	c.SetReg(0, 0x7FFFFFFF)
	step(t, c, 1)
	if !c.flag(FlagV) {
		t.Error("adds with signed overflow should set V")
	}
}

func TestDataProcessingCarryChain(t *testing.T) {
	// adc r0, r1, r2
	c := newTestCPU(t, 0xE0A10002)
	c.SetReg(1, 1)
	c.SetReg(2, 1)
	step(t, c, 1)
	if got := c.Reg(0); got != 2 {
		t.Errorf("adc without carry: R0 = %d, want 2", got)
	}

	c = newTestCPU(t, 0xE0A10002)
	c.SetReg(1, 1)
	c.SetReg(2, 1)
	c.setFlag(FlagC, true)
	step(t, c, 1)
	if got := c.Reg(0); got != 3 {
		t.Errorf("adc with carry: R0 = %d, want 3", got)
	}

	// sbc r0, r1, r2 computes r1 - r2 - 1 + carry
	c = newTestCPU(t, 0xE0C10002)
	c.SetReg(1, 1)
	c.SetReg(2, 1)
	step(t, c, 1)
	if got := c.Reg(0); got != 0xFFFFFFFF {
		t.Errorf("sbc without carry: R0 = 0x%08X, want 0xFFFFFFFF", got)
	}

	c = newTestCPU(t, 0xE0C10002)
	c.SetReg(1, 1)
	c.SetReg(2, 1)
	c.setFlag(FlagC, true)
	step(t, c, 1)
	if got := c.Reg(0); got != 0 {
		t.Errorf("sbc with carry: R0 = %d, want 0", got)
	}

	// rsc r0, r1, r2 computes r2 - r1 - 1 + carry
	c = newTestCPU(t, 0xE0E10002)
	c.SetReg(1, 1)
	c.SetReg(2, 2)
	step(t, c, 1)
	if got := c.Reg(0); got != 0 {
		t.Errorf("rsc without carry: R0 = %d, want 0", got)
	}

	c = newTestCPU(t, 0xE0E10002)
	c.SetReg(1, 1)
	c.SetReg(2, 2)
	c.setFlag(FlagC, true)
	step(t, c, 1)
	if got := c.Reg(0); got != 1 {
		t.Errorf("rsc with carry: R0 = %d, want 1", got)
	}
}

func TestDataProcessingCompares(t *testing.T) {
	// tst r0, r1
	c := newTestCPU(t, 0xE1100001)
	c.SetReg(0, 1)
	c.SetReg(1, 0)
	step(t, c, 1)
	if !c.flag(FlagZ) {
		t.Error("tst of disjoint bits should set Z")
	}

	// teq r0, r1
	c = newTestCPU(t, 0xE1300001)
	c.SetReg(0, 1)
	c.SetReg(1, 1)
	step(t, c, 1)
	if !c.flag(FlagZ) {
		t.Error("teq of equal values should set Z")
	}

	// cmp r0, r1
	c = newTestCPU(t, 0xE1500001)
	c.SetReg(0, 1)
	c.SetReg(1, 1)
	step(t, c, 1)
	if !c.flag(FlagZ) {
		t.Error("cmp of equal values should set Z")
	}

	// cmn r0, r1
	c = newTestCPU(t, 0xE1700001)
	c.SetReg(0, 1)
	c.SetReg(1, 0xFFFFFFFF)
	step(t, c, 1)
	if !c.flag(FlagZ) {
		t.Error("cmn summing to zero should set Z")
	}
}

func TestPSRTransfer(t *testing.T) {
	// mrs r0, cpsr
	c := newTestCPU(t, 0xE10F0000)
	c.SetCPSR(ModeSupervisor)
	step(t, c, 1)
	if got := c.Reg(0); got != c.CPSR() {
		t.Errorf("mrs cpsr: R0 = 0x%08X, want 0x%08X", got, c.CPSR())
	}

	// mrs r0, spsr
	c = newTestCPU(t, 0xE14F0000)
	c.SetCPSR(ModeSupervisor)
	c.SetSPSR(0x12345678)
	step(t, c, 1)
	if got := c.Reg(0); got != 0x12345678 {
		t.Errorf("mrs spsr: R0 = 0x%08X, want 0x12345678", got)
	}

	// msr cpsr, r0
	c = newTestCPU(t, 0xE129F000)
	c.SetCPSR(ModeSupervisor)
	c.SetReg(0, ModeUser)
	step(t, c, 1)
	if got := c.CPSR(); got != ModeUser {
		t.Errorf("msr cpsr: CPSR = 0x%08X, want user mode", got)
	}

	// msr spsr_fc, r0: only the flag and control bytes are written
	c = newTestCPU(t, 0xE169F000)
	c.SetCPSR(ModeSupervisor)
	c.SetReg(0, 0x87654321)
	step(t, c, 1)
	if got := c.SPSR(); got != 0x87000021 {
		t.Errorf("msr spsr: SPSR = 0x%08X, want 0x87000021", got)
	}
}

func TestBranch(t *testing.T) {
	// Infinite loop: b . at 0x0
	c := newTestCPU(t, 0xEAFFFFFE)
	for i := 0; i < 3; i++ {
		step(t, c, 1)
		if got := c.Reg(PC); got != 0x0 {
			t.Fatalf("branch-to-self: PC = 0x%X, want 0x0", got)
		}
	}

	// Forward: b +4 instructions lands at PC+0x14
	c = newTestCPU(t, 0xEA000003)
	step(t, c, 1)
	if got := c.Reg(PC); got != 0x14 {
		t.Errorf("forward branch: PC = 0x%X, want 0x14", got)
	}
}

func TestBranchWithLink(t *testing.T) {
	c := newTestCPU(t, 0xEB000003) // bl +0x14
	step(t, c, 1)
	if got := c.Reg(PC); got != 0x14 {
		t.Errorf("PC = 0x%X, want 0x14", got)
	}
	if got := c.Reg(LR); got != 0x4 {
		t.Errorf("LR = 0x%X, want 0x4", got)
	}
}

func TestBranchExchange(t *testing.T) {
	// bx r0 with bit 0 set enters Thumb state
	c := newTestCPU(t, 0xE12FFF10)
	c.SetReg(0, 0x101)
	step(t, c, 1)
	if !c.IsThumb() {
		t.Error("bx with bit 0 set should enter Thumb state")
	}
	if got := c.Reg(PC); got != 0x100 {
		t.Errorf("PC = 0x%X, want 0x100", got)
	}

	// bx r0 with bit 0 clear stays in ARM state
	c = newTestCPU(t, 0xE12FFF10)
	c.SetReg(0, 0x100)
	step(t, c, 1)
	if c.IsThumb() {
		t.Error("bx with bit 0 clear should stay in ARM state")
	}
}

func TestSoftwareInterrupt(t *testing.T) {
	c := newTestCPU(t, 0xEF000001) // swi 1
	c.SetCPSR(ModeUser)
	step(t, c, 1)

	if got := c.Reg(PC); got != VectorSWI {
		t.Errorf("PC = 0x%X, want 0x%X", got, VectorSWI)
	}
	if got := c.Mode(); got != ModeSupervisor {
		t.Errorf("mode = 0x%02X, want supervisor", got)
	}
	if c.CPSR()&IRQDisable == 0 {
		t.Error("swi should disable IRQs")
	}
	if got := c.SPSRFor(ModeSupervisor); got != ModeUser {
		t.Errorf("SPSR_svc = 0x%08X, want saved user CPSR", got)
	}
	if got := c.Reg(LR); got != 0x4 {
		t.Errorf("LR_svc = 0x%X, want 0x4", got)
	}
}

func TestSingleDataTransfer(t *testing.T) {
	// str r1, [r0] / ldr r2, [r0]
	c := newTestCPU(t,
		0xE5801000, // str r1, [r0]
		0xE5902000, // ldr r2, [r0]
	)
	c.SetReg(0, 0x02000000)
	c.SetReg(1, 0xCAFEBABE)
	step(t, c, 2)
	if got := c.Reg(2); got != 0xCAFEBABE {
		t.Errorf("R2 = 0x%08X, want 0xCAFEBABE", got)
	}

	// ldrb r2, [r0, #1] reads a single byte
	c = newTestCPU(t, 0xE5D02001)
	c.SetReg(0, 0x02000000)
	c.Memory().Write32(0x02000000, 0x11223344)
	step(t, c, 1)
	if got := c.Reg(2); got != 0x33 {
		t.Errorf("ldrb: R2 = 0x%02X, want 0x33", got)
	}

	// Pre-indexed with writeback: ldr r2, [r0, #4]!
	c = newTestCPU(t, 0xE5B02004)
	c.SetReg(0, 0x02000000)
	c.Memory().Write32(0x02000004, 0x55667788)
	step(t, c, 1)
	if got := c.Reg(2); got != 0x55667788 {
		t.Errorf("R2 = 0x%08X, want 0x55667788", got)
	}
	if got := c.Reg(0); got != 0x02000004 {
		t.Errorf("writeback: R0 = 0x%08X, want 0x02000004", got)
	}

	// Post-indexed: ldr r2, [r0], #4
	c = newTestCPU(t, 0xE4902004)
	c.SetReg(0, 0x02000000)
	c.Memory().Write32(0x02000000, 0x99AABBCC)
	step(t, c, 1)
	if got := c.Reg(2); got != 0x99AABBCC {
		t.Errorf("R2 = 0x%08X, want 0x99AABBCC", got)
	}
	if got := c.Reg(0); got != 0x02000004 {
		t.Errorf("post-index: R0 = 0x%08X, want 0x02000004", got)
	}
}

func TestHalfwordTransfer(t *testing.T) {
	// strh r1, [r0] / ldrh r2, [r0]
	c := newTestCPU(t,
		0xE1C010B0, // strh r1, [r0]
		0xE1D020B0, // ldrh r2, [r0]
	)
	c.SetReg(0, 0x02000000)
	c.SetReg(1, 0x1234ABCD)
	step(t, c, 2)
	if got := c.Reg(2); got != 0xABCD {
		t.Errorf("R2 = 0x%08X, want 0xABCD", got)
	}

	// ldrsb r2, [r0] sign-extends
	c = newTestCPU(t, 0xE1D020D0)
	c.SetReg(0, 0x02000000)
	c.Memory().Write8(0x02000000, 0x80)
	step(t, c, 1)
	if got := c.Reg(2); got != 0xFFFFFF80 {
		t.Errorf("ldrsb: R2 = 0x%08X, want 0xFFFFFF80", got)
	}

	// ldrsh r2, [r0] sign-extends
	c = newTestCPU(t, 0xE1D020F0)
	c.SetReg(0, 0x02000000)
	c.Memory().Write16(0x02000000, 0x8001)
	step(t, c, 1)
	if got := c.Reg(2); got != 0xFFFF8001 {
		t.Errorf("ldrsh: R2 = 0x%08X, want 0xFFFF8001", got)
	}
}

func TestBlockDataTransfer(t *testing.T) {
	mem := func(c *CPU, addr, value uint32) {
		if err := c.Memory().Write32(addr, value); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	base := uint32(0x02000064)

	// ldmib r0, {r1, r2, r3}: loads start one word above the base
	c := newTestCPU(t, 0xE990000E)
	c.SetReg(0, base)
	mem(c, base+4, 0x12121212)
	mem(c, base+8, 0x34343434)
	mem(c, base+12, 0x56565656)
	step(t, c, 1)
	if c.Reg(1) != 0x12121212 || c.Reg(2) != 0x34343434 || c.Reg(3) != 0x56565656 {
		t.Errorf("ldmib: R1-R3 = %08X %08X %08X", c.Reg(1), c.Reg(2), c.Reg(3))
	}
	if got := c.Reg(0); got != base {
		t.Errorf("ldmib without writeback: R0 = 0x%08X, want 0x%08X", got, base)
	}

	// ldmib r0!, {r1, r2, r3}: base advances by 12
	c = newTestCPU(t, 0xE9B0000E)
	c.SetReg(0, base)
	mem(c, base+4, 0x12121212)
	mem(c, base+8, 0x34343434)
	mem(c, base+12, 0x56565656)
	step(t, c, 1)
	if got := c.Reg(0); got != base+12 {
		t.Errorf("ldmib!: R0 = 0x%08X, want 0x%08X", got, base+12)
	}

	// ldmia r0!, {r1, r2, r3}: loads from the base upward
	c = newTestCPU(t, 0xE8B0000E)
	c.SetReg(0, base)
	mem(c, base, 0x12121212)
	mem(c, base+4, 0x34343434)
	mem(c, base+8, 0x56565656)
	step(t, c, 1)
	if c.Reg(1) != 0x12121212 || c.Reg(2) != 0x34343434 || c.Reg(3) != 0x56565656 {
		t.Errorf("ldmia: R1-R3 = %08X %08X %08X", c.Reg(1), c.Reg(2), c.Reg(3))
	}
	if got := c.Reg(0); got != base+12 {
		t.Errorf("ldmia!: R0 = 0x%08X, want 0x%08X", got, base+12)
	}

	// ldmdb r0!, {r1, r2, r3}: registers fill from the word below the
	// base, descending
	top := base + 12
	c = newTestCPU(t, 0xE930000E)
	c.SetReg(0, top)
	mem(c, top-4, 0x12121212)
	mem(c, top-8, 0x34343434)
	mem(c, top-12, 0x56565656)
	step(t, c, 1)
	if c.Reg(1) != 0x12121212 || c.Reg(2) != 0x34343434 || c.Reg(3) != 0x56565656 {
		t.Errorf("ldmdb: R1-R3 = %08X %08X %08X", c.Reg(1), c.Reg(2), c.Reg(3))
	}
	if got := c.Reg(0); got != top-12 {
		t.Errorf("ldmdb!: R0 = 0x%08X, want 0x%08X", got, top-12)
	}

	// stmia r0!, {r1, r2, r3}
	c = newTestCPU(t, 0xE8A0000E)
	c.SetReg(0, base)
	c.SetReg(1, 0xAAAAAAAA)
	c.SetReg(2, 0xBBBBBBBB)
	c.SetReg(3, 0xCCCCCCCC)
	step(t, c, 1)
	for i, want := range []uint32{0xAAAAAAAA, 0xBBBBBBBB, 0xCCCCCCCC} {
		got, _ := c.Memory().Read32(base + uint32(i*4))
		if got != want {
			t.Errorf("stmia word %d = 0x%08X, want 0x%08X", i, got, want)
		}
	}
	if got := c.Reg(0); got != base+12 {
		t.Errorf("stmia!: R0 = 0x%08X, want 0x%08X", got, base+12)
	}
}

func TestSingleDataSwap(t *testing.T) {
	// swp r0, r1, [r2]
	c := newTestCPU(t, 0xE1020091)
	c.SetReg(1, 0xDEADBEEF)
	c.SetReg(2, 0x02000000)
	c.Memory().Write32(0x02000000, 0x11111111)
	step(t, c, 1)
	if got := c.Reg(0); got != 0x11111111 {
		t.Errorf("R0 = 0x%08X, want old memory value", got)
	}
	if got, _ := c.Memory().Read32(0x02000000); got != 0xDEADBEEF {
		t.Errorf("memory = 0x%08X, want 0xDEADBEEF", got)
	}

	// swpb r0, r1, [r2]
	c = newTestCPU(t, 0xE1420091)
	c.SetReg(1, 0xEF)
	c.SetReg(2, 0x02000000)
	c.Memory().Write8(0x02000000, 0x22)
	step(t, c, 1)
	if got := c.Reg(0); got != 0x22 {
		t.Errorf("swpb: R0 = 0x%02X, want 0x22", got)
	}
}

func TestMultiply(t *testing.T) {
	// mul r0, r1, r2
	c := newTestCPU(t, 0xE0000291)
	c.SetReg(1, 2)
	c.SetReg(2, 3)
	step(t, c, 1)
	if got := c.Reg(0); got != 6 {
		t.Errorf("mul: R0 = %d, want 6", got)
	}

	// mla r0, r1, r2, r3
	c = newTestCPU(t, 0xE0203291)
	c.SetReg(1, 2)
	c.SetReg(2, 3)
	c.SetReg(3, 4)
	step(t, c, 1)
	if got := c.Reg(0); got != 10 {
		t.Errorf("mla: R0 = %d, want 10", got)
	}
}

func TestMultiplyLong(t *testing.T) {
	// umull r0, r1, r2, r3
	c := newTestCPU(t, 0xE0810392)
	c.SetReg(2, 0x2)
	c.SetReg(3, 0xFFFFFFFF)
	step(t, c, 1)
	if c.Reg(0) != 0xFFFFFFFE || c.Reg(1) != 0x1 {
		t.Errorf("umull: hi:lo = %08X:%08X, want 00000001:FFFFFFFE", c.Reg(1), c.Reg(0))
	}

	// umlal r0, r1, r2, r3 accumulating 1
	c = newTestCPU(t, 0xE0A10392)
	c.SetReg(2, 0x2)
	c.SetReg(3, 0xFFFFFFFF)
	c.SetReg(0, 0x1)
	c.SetReg(1, 0x0)
	step(t, c, 1)
	if c.Reg(0) != 0xFFFFFFFF || c.Reg(1) != 0x1 {
		t.Errorf("umlal: hi:lo = %08X:%08X, want 00000001:FFFFFFFF", c.Reg(1), c.Reg(0))
	}

	// smull r0, r1, r2, r3
	c = newTestCPU(t, 0xE0C10392)
	c.SetReg(2, 0xFFFFFFFE) // -2
	c.SetReg(3, 0x7FFFFFFF)
	step(t, c, 1)
	if c.Reg(0) != 0x2 || c.Reg(1) != 0xFFFFFFFF {
		t.Errorf("smull: hi:lo = %08X:%08X, want FFFFFFFF:00000002", c.Reg(1), c.Reg(0))
	}

	// smlal r0, r1, r2, r3 accumulating 1
	c = newTestCPU(t, 0xE0E10392)
	c.SetReg(2, 0xFFFFFFFE) // -2
	c.SetReg(3, 0x7FFFFFFF)
	c.SetReg(0, 0x1)
	c.SetReg(1, 0x0)
	step(t, c, 1)
	if c.Reg(0) != 0x3 || c.Reg(1) != 0xFFFFFFFF {
		t.Errorf("smlal: hi:lo = %08X:%08X, want FFFFFFFF:00000003", c.Reg(1), c.Reg(0))
	}
}

func TestConditionFailAdvancesPC(t *testing.T) {
	// beq with Z clear falls through
	c := newTestCPU(t, 0x0A000003) // beq +0x14
	c.setFlag(FlagZ, false)
	step(t, c, 1)
	if got := c.Reg(PC); got != 0x4 {
		t.Errorf("failed condition: PC = 0x%X, want 0x4", got)
	}

	// and with Z set takes the branch
	c = newTestCPU(t, 0x0A000003)
	c.setFlag(FlagZ, true)
	step(t, c, 1)
	if got := c.Reg(PC); got != 0x14 {
		t.Errorf("passed condition: PC = 0x%X, want 0x14", got)
	}
}

func TestUndefinedInstruction(t *testing.T) {
	// A coprocessor transfer decodes as undefined
	c := newTestCPU(t, 0xEE000000)
	err := c.Step()
	if err == nil {
		t.Fatal("coprocessor instruction should fail")
	}
}
