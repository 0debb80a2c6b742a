package arm7

import (
	"testing"

	"github.com/andrewthecodertx/gba-emulator/pkg/memory"
)

// newThumbCPU builds a CPU in Thumb state with the given program
// assembled at address zero
func newThumbCPU(t *testing.T, program ...uint16) *CPU {
	t.Helper()
	mem := memory.New()
	mem.SetROMWriteProtect(false)
	for i, op := range program {
		if err := mem.Write16(uint32(i*2), op); err != nil {
			t.Fatalf("failed to assemble program: %v", err)
		}
	}
	c := New(mem)
	c.SetCPSR(c.CPSR() | ThumbState)
	return c
}

func TestThumbMoveShifted(t *testing.T) {
	// lsl r0, r1, #4
	c := newThumbCPU(t, 0x0108)
	c.SetReg(1, 0x3)
	step(t, c, 1)
	if got := c.Reg(0); got != 0x30 {
		t.Errorf("lsl: R0 = 0x%X, want 0x30", got)
	}

	// lsr r0, r1, #1
	c = newThumbCPU(t, 0x0848)
	c.SetReg(1, 0x3)
	step(t, c, 1)
	if got := c.Reg(0); got != 0x1 {
		t.Errorf("lsr: R0 = 0x%X, want 0x1", got)
	}
	if !c.flag(FlagC) {
		t.Error("lsr #1 of 0x3 should carry out bit 0")
	}

	// asr r0, r1, #1
	c = newThumbCPU(t, 0x1048)
	c.SetReg(1, 0x80000000)
	step(t, c, 1)
	if got := c.Reg(0); got != 0xC0000000 {
		t.Errorf("asr: R0 = 0x%08X, want 0xC0000000", got)
	}
}

func TestThumbAddSubtract(t *testing.T) {
	// add r2, r0, r1
	c := newThumbCPU(t, 0x1842)
	c.SetReg(0, 2)
	c.SetReg(1, 3)
	step(t, c, 1)
	if got := c.Reg(2); got != 5 {
		t.Errorf("add: R2 = %d, want 5", got)
	}

	// sub r2, r0, r1
	c = newThumbCPU(t, 0x1A42)
	c.SetReg(0, 5)
	c.SetReg(1, 3)
	step(t, c, 1)
	if got := c.Reg(2); got != 2 {
		t.Errorf("sub: R2 = %d, want 2", got)
	}

	// add r2, r0, #3
	c = newThumbCPU(t, 0x1CC2)
	c.SetReg(0, 4)
	step(t, c, 1)
	if got := c.Reg(2); got != 7 {
		t.Errorf("add imm: R2 = %d, want 7", got)
	}
}

func TestThumbImmediateOps(t *testing.T) {
	// mov r0, #1 / cmp r0, #1 / add r0, #2 / sub r0, #3
	c := newThumbCPU(t, 0x2001, 0x2801, 0x3002, 0x3803)

	step(t, c, 1)
	if got := c.Reg(0); got != 1 {
		t.Errorf("mov: R0 = %d, want 1", got)
	}

	step(t, c, 1)
	if !c.flag(FlagZ) {
		t.Error("cmp r0, #1 with r0 = 1 should set Z")
	}

	step(t, c, 1)
	if got := c.Reg(0); got != 3 {
		t.Errorf("add: R0 = %d, want 3", got)
	}

	step(t, c, 1)
	if got := c.Reg(0); got != 0 {
		t.Errorf("sub: R0 = %d, want 0", got)
	}
	if !c.flag(FlagZ) {
		t.Error("sub to zero should set Z")
	}
}

func TestThumbALU(t *testing.T) {
	tests := []struct {
		name   string
		opcode uint16
		rd, rs uint32
		want   uint32
	}{
		{"AND", 0x4008, 0x3, 0x1, 0x1},
		{"EOR", 0x4048, 0x3, 0x1, 0x2},
		{"ADC", 0x4148, 2, 3, 5},
		{"NEG", 0x4248, 0, 1, 0xFFFFFFFF},
		{"ORR", 0x4308, 0x2, 0x1, 0x3},
		{"MUL", 0x4348, 3, 4, 12},
		{"BIC", 0x4388, 0x3, 0x1, 0x2},
		{"MVN", 0x43C8, 0, 0x1, 0xFFFFFFFE},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newThumbCPU(t, tt.opcode)
			c.SetReg(0, tt.rd)
			c.SetReg(1, tt.rs)
			step(t, c, 1)
			if got := c.Reg(0); got != tt.want {
				t.Errorf("R0 = 0x%08X, want 0x%08X", got, tt.want)
			}
		})
	}

	// tst r0, r1 only sets flags
	c := newThumbCPU(t, 0x4208)
	c.SetReg(0, 0x2)
	c.SetReg(1, 0x1)
	step(t, c, 1)
	if !c.flag(FlagZ) {
		t.Error("tst of disjoint bits should set Z")
	}
	if got := c.Reg(0); got != 0x2 {
		t.Errorf("tst must not write R0, got 0x%X", got)
	}
}

func TestThumbHighRegisterOps(t *testing.T) {
	// add r0, r8
	c := newThumbCPU(t, 0x4440)
	c.SetReg(0, 1)
	c.SetReg(8, 2)
	step(t, c, 1)
	if got := c.Reg(0); got != 3 {
		t.Errorf("add r0, r8: R0 = %d, want 3", got)
	}

	// mov r8, r0
	c = newThumbCPU(t, 0x4680)
	c.SetReg(0, 0x1234)
	step(t, c, 1)
	if got := c.Reg(8); got != 0x1234 {
		t.Errorf("mov r8, r0: R8 = 0x%X, want 0x1234", got)
	}

	// cmp r0, r8
	c = newThumbCPU(t, 0x4540)
	c.SetReg(0, 5)
	c.SetReg(8, 5)
	step(t, c, 1)
	if !c.flag(FlagZ) {
		t.Error("cmp of equal values should set Z")
	}

	// bx r0 with bit 0 clear returns to ARM state
	c = newThumbCPU(t, 0x4700)
	c.SetReg(0, 0x100)
	step(t, c, 1)
	if c.IsThumb() {
		t.Error("bx with bit 0 clear should leave Thumb state")
	}
	if got := c.Reg(PC); got != 0x100 {
		t.Errorf("PC = 0x%X, want 0x100", got)
	}
}

func TestThumbPCRelativeLoad(t *testing.T) {
	// ldr r0, [pc, #4]: address is (PC+4 &^ 2) + 4 = 8
	c := newThumbCPU(t, 0x4801)
	c.Memory().Write32(0x8, 0xCAFEF00D)
	step(t, c, 1)
	if got := c.Reg(0); got != 0xCAFEF00D {
		t.Errorf("R0 = 0x%08X, want 0xCAFEF00D", got)
	}
}

func TestThumbLoadStoreRegister(t *testing.T) {
	// str r0, [r1, r2] / ldr r3, [r1, r2]
	c := newThumbCPU(t, 0x5088, 0x588B)
	c.SetReg(0, 0xDEADBEEF)
	c.SetReg(1, 0x03000000)
	c.SetReg(2, 0x10)
	step(t, c, 2)
	if got := c.Reg(3); got != 0xDEADBEEF {
		t.Errorf("R3 = 0x%08X, want 0xDEADBEEF", got)
	}

	// strb r0, [r1, r2] / ldrb r3, [r1, r2]
	c = newThumbCPU(t, 0x5488, 0x5C8B)
	c.SetReg(0, 0x1AB)
	c.SetReg(1, 0x03000000)
	c.SetReg(2, 0x10)
	step(t, c, 2)
	if got := c.Reg(3); got != 0xAB {
		t.Errorf("R3 = 0x%02X, want 0xAB", got)
	}
}

func TestThumbLoadStoreSignExtended(t *testing.T) {
	// strh r0, [r1, r2] / ldrh r3, [r1, r2]
	c := newThumbCPU(t, 0x5288, 0x5A8B)
	c.SetReg(0, 0x18001)
	c.SetReg(1, 0x03000000)
	c.SetReg(2, 0x10)
	step(t, c, 2)
	if got := c.Reg(3); got != 0x8001 {
		t.Errorf("ldrh: R3 = 0x%X, want 0x8001", got)
	}

	// ldsh r3, [r1, r2] sign-extends
	c = newThumbCPU(t, 0x5E8B)
	c.SetReg(1, 0x03000000)
	c.SetReg(2, 0x10)
	c.Memory().Write16(0x03000010, 0x8001)
	step(t, c, 1)
	if got := c.Reg(3); got != 0xFFFF8001 {
		t.Errorf("ldsh: R3 = 0x%08X, want 0xFFFF8001", got)
	}

	// ldsb r3, [r1, r2] sign-extends
	c = newThumbCPU(t, 0x568B)
	c.SetReg(1, 0x03000000)
	c.SetReg(2, 0x10)
	c.Memory().Write8(0x03000010, 0x80)
	step(t, c, 1)
	if got := c.Reg(3); got != 0xFFFFFF80 {
		t.Errorf("ldsb: R3 = 0x%08X, want 0xFFFFFF80", got)
	}
}

func TestThumbLoadStoreImmediate(t *testing.T) {
	// str r0, [r1, #4] / ldr r2, [r1, #4]
	c := newThumbCPU(t, 0x6048, 0x684A)
	c.SetReg(0, 0x12345678)
	c.SetReg(1, 0x02000000)
	step(t, c, 2)
	if got := c.Reg(2); got != 0x12345678 {
		t.Errorf("R2 = 0x%08X, want 0x12345678", got)
	}

	// strh r0, [r1, #2] / ldrh r2, [r1, #2]
	c = newThumbCPU(t, 0x8048, 0x884A)
	c.SetReg(0, 0xBEEF)
	c.SetReg(1, 0x02000000)
	step(t, c, 2)
	if got := c.Reg(2); got != 0xBEEF {
		t.Errorf("halfword: R2 = 0x%X, want 0xBEEF", got)
	}
}

func TestThumbSPRelative(t *testing.T) {
	// str r0, [sp, #4] / ldr r1, [sp, #4]
	c := newThumbCPU(t, 0x9001, 0x9901)
	c.SetReg(SP, 0x03000100)
	c.SetReg(0, 0xABCD1234)
	step(t, c, 2)
	if got := c.Reg(1); got != 0xABCD1234 {
		t.Errorf("R1 = 0x%08X, want 0xABCD1234", got)
	}
}

func TestThumbLoadAddress(t *testing.T) {
	// add r0, pc, #4: (PC+4 &^ 2) + 4 = 8
	c := newThumbCPU(t, 0xA001)
	step(t, c, 1)
	if got := c.Reg(0); got != 0x8 {
		t.Errorf("add r0, pc: R0 = 0x%X, want 0x8", got)
	}

	// add r0, sp, #4
	c = newThumbCPU(t, 0xA801)
	c.SetReg(SP, 0x100)
	step(t, c, 1)
	if got := c.Reg(0); got != 0x104 {
		t.Errorf("add r0, sp: R0 = 0x%X, want 0x104", got)
	}
}

func TestThumbAddOffsetToSP(t *testing.T) {
	// add sp, #4 then sub sp, #4
	c := newThumbCPU(t, 0xB001, 0xB081)
	c.SetReg(SP, 0x03000100)
	step(t, c, 1)
	if got := c.Reg(SP); got != 0x03000104 {
		t.Errorf("add sp: SP = 0x%08X, want 0x03000104", got)
	}
	step(t, c, 1)
	if got := c.Reg(SP); got != 0x03000100 {
		t.Errorf("sub sp: SP = 0x%08X, want 0x03000100", got)
	}
}

func TestThumbPushPop(t *testing.T) {
	// push {r0, lr} / pop {r0, pc}
	c := newThumbCPU(t, 0xB501, 0xBD01)
	c.SetReg(SP, 0x03000100)
	c.SetReg(0, 0x11112222)
	c.SetReg(LR, 0x201)

	step(t, c, 1)
	if got := c.Reg(SP); got != 0x030000F8 {
		t.Errorf("push: SP = 0x%08X, want 0x030000F8", got)
	}
	if got, _ := c.Memory().Read32(0x030000F8); got != 0x11112222 {
		t.Errorf("pushed R0 = 0x%08X", got)
	}
	if got, _ := c.Memory().Read32(0x030000FC); got != 0x201 {
		t.Errorf("pushed LR = 0x%08X", got)
	}

	step(t, c, 1)
	if got := c.Reg(SP); got != 0x03000100 {
		t.Errorf("pop: SP = 0x%08X, want 0x03000100", got)
	}
	// Loaded PC is masked to halfword alignment
	if got := c.Reg(PC); got != 0x200 {
		t.Errorf("pop pc: PC = 0x%X, want 0x200", got)
	}
}

func TestThumbMultipleLoadStore(t *testing.T) {
	// stmia r0!, {r1, r2}
	c := newThumbCPU(t, 0xC006)
	c.SetReg(0, 0x02000000)
	c.SetReg(1, 0xAAAA5555)
	c.SetReg(2, 0x5555AAAA)
	step(t, c, 1)
	if got, _ := c.Memory().Read32(0x02000000); got != 0xAAAA5555 {
		t.Errorf("word 0 = 0x%08X", got)
	}
	if got, _ := c.Memory().Read32(0x02000004); got != 0x5555AAAA {
		t.Errorf("word 1 = 0x%08X", got)
	}
	if got := c.Reg(0); got != 0x02000008 {
		t.Errorf("writeback: R0 = 0x%08X, want 0x02000008", got)
	}

	// ldmia r0!, {r1, r2}
	c = newThumbCPU(t, 0xC806)
	c.SetReg(0, 0x02000000)
	c.Memory().Write32(0x02000000, 0x10101010)
	c.Memory().Write32(0x02000004, 0x20202020)
	step(t, c, 1)
	if c.Reg(1) != 0x10101010 || c.Reg(2) != 0x20202020 {
		t.Errorf("ldmia: R1, R2 = %08X, %08X", c.Reg(1), c.Reg(2))
	}
	if got := c.Reg(0); got != 0x02000008 {
		t.Errorf("writeback: R0 = 0x%08X, want 0x02000008", got)
	}
}

func TestThumbConditionalBranch(t *testing.T) {
	// beq #+: with Z set lands at 0x1C, with Z clear falls through
	c := newThumbCPU(t, 0xD00C)
	c.setFlag(FlagZ, true)
	step(t, c, 1)
	if got := c.Reg(PC); got != 0x1C {
		t.Errorf("taken: PC = 0x%X, want 0x1C", got)
	}

	c = newThumbCPU(t, 0xD00C)
	c.setFlag(FlagZ, false)
	step(t, c, 1)
	if got := c.Reg(PC); got != 0x2 {
		t.Errorf("not taken: PC = 0x%X, want 0x2", got)
	}
}

func TestThumbUnconditionalBranch(t *testing.T) {
	// b . at 0x0
	c := newThumbCPU(t, 0xE7FE)
	for i := 0; i < 3; i++ {
		step(t, c, 1)
		if got := c.Reg(PC); got != 0x0 {
			t.Fatalf("branch-to-self: PC = 0x%X, want 0x0", got)
		}
	}

	// b forward: offset 6 lands at 4 + 12
	c = newThumbCPU(t, 0xE006)
	step(t, c, 1)
	if got := c.Reg(PC); got != 0x10 {
		t.Errorf("forward: PC = 0x%X, want 0x10", got)
	}
}

func TestThumbLongBranchWithLink(t *testing.T) {
	// bl 0x100 from address 0: first half 0xF000, second 0xF87E
	c := newThumbCPU(t, 0xF000, 0xF87E)
	step(t, c, 2)
	if got := c.Reg(PC); got != 0x100 {
		t.Errorf("PC = 0x%X, want 0x100", got)
	}
	// Return address is the instruction after the pair, bit 0 set for
	// the Thumb return
	if got := c.Reg(LR); got != 0x5 {
		t.Errorf("LR = 0x%X, want 0x5", got)
	}
}

func TestThumbSoftwareInterrupt(t *testing.T) {
	c := newThumbCPU(t, 0xDF01) // swi 1
	step(t, c, 1)
	if got := c.Reg(PC); got != VectorSWI {
		t.Errorf("PC = 0x%X, want 0x%X", got, VectorSWI)
	}
	if got := c.Mode(); got != ModeSupervisor {
		t.Errorf("mode = 0x%02X, want supervisor", got)
	}
	if c.IsThumb() {
		t.Error("swi should clear Thumb state")
	}
	// Return address is the next Thumb instruction
	if got := c.banked[bankSupervisor][LR-8]; got != 0x2 {
		t.Errorf("LR_svc = 0x%X, want 0x2", got)
	}
}
