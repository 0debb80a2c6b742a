// Package memory implements the GBA system bus.
//
// The bus maps a flat 32-bit address space onto the console's memory
// regions, applies region mirroring, and routes reads and writes through
// per-address hooks when one is registered.
//
// Memory Map:
//   - 0x00000000-0x00003FFF: BIOS - System ROM (16KB, read-only)
//   - 0x02000000-0x0203FFFF: EWRAM - On-board Work RAM (256KB, mirrored)
//   - 0x03000000-0x03007FFF: IWRAM - On-chip Work RAM (32KB, mirrored)
//   - 0x04000000-0x040003FE: I/O Registers
//   - 0x05000000-0x050003FF: BG/OBJ Palette RAM (1KB, mirrored)
//   - 0x06000000-0x06017FFF: VRAM - Video RAM (96KB)
//   - 0x07000000-0x070003FF: OAM - Object Attribute Memory (1KB)
//   - 0x08000000-0x09FFFFFF: Game Pak ROM (max 32MB)
//   - 0x0A000000-0x0BFFFFFF: Game Pak ROM (wait state 1 mirror)
//   - 0x0C000000-0x0CFFFFFF: Game Pak ROM (wait state 2 mirror)
//   - 0x0D000000-0x0D001FFF: Game Pak EEPROM (max 8KB)
//   - 0x0E000000-0x0E00FFFF: Game Pak SRAM/Flash (two 64KB banks)
package memory

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/andrewthecodertx/gba-emulator/pkg/backup"
)

// Region sizes
const (
	BIOSSize    = 0x4000
	EWRAMSize   = 0x40000
	IWRAMSize   = 0x8000
	IOSize      = 0x804
	PaletteSize = 0x400
	VRAMSize    = 0x18000
	OAMSize     = 0x400
	ROMSize     = 0x2000000
	SRAMSize    = 0x20000
	EEPROMSize  = backup.EEPROMSize
)

// Region base addresses
const (
	BIOSStart    = 0x00000000
	BIOSEnd      = 0x00003FFF
	EWRAMStart   = 0x02000000
	IWRAMStart   = 0x03000000
	IOStart      = 0x04000000
	PaletteStart = 0x05000000
	VRAMStart    = 0x06000000
	OAMStart     = 0x07000000
	ROMStart     = 0x08000000
	ROMWS1Start  = 0x0A000000
	ROMWS2Start  = 0x0C000000
	EEPROMStart  = 0x0D000000
	EEPROMEnd    = 0x0DFFFFFF
	SRAMStart    = backup.SRAMStart
)

// AddressFault reports an access to an address outside every known
// region. The CPU layer wraps it with the faulting PC.
type AddressFault struct {
	Addr uint32
}

func (e *AddressFault) Error() string {
	return fmt.Sprintf("memory: invalid address 0x%08X", e.Addr)
}

// ReadHook replaces the physical read at a registered address.
// The returned value is truncated to the access size.
type ReadHook func(m *Memory, addr uint32) uint32

// WriteHook replaces the physical write at a registered address.
// The value is the written value zero-extended to 32 bits.
type WriteHook func(m *Memory, addr uint32, value uint32)

// Memory is the GBA system bus
type Memory struct {
	// ====================================================================
	// Memory Regions
	// ====================================================================

	bios    [BIOSSize]uint8
	ewram   [EWRAMSize]uint8
	iwram   [IWRAMSize]uint8
	ioRegs  [IOSize]uint8
	palette [PaletteSize]uint8
	vram    [VRAMSize]uint8
	oam     [OAMSize]uint8
	rom     []uint8 // Game Pak ROM, shared by all three wait-state banks

	// ====================================================================
	// Backup Devices
	// ====================================================================

	flash  *backup.Flash
	eeprom *backup.EEPROM

	// ====================================================================
	// Access Hooks
	// ====================================================================

	// Hook presence is checked against the sorted address slices so the
	// common no-hook path stays a binary search over a handful of
	// entries instead of a map probe.
	readHookAddrs  []uint32
	writeHookAddrs []uint32
	readHooks      map[uint32]ReadHook
	writeHooks     map[uint32]WriteHook

	// ====================================================================
	// Configuration
	// ====================================================================

	// Discard writes into the BIOS region
	romWriteProtect bool

	// Route LoadROM into the BIOS region (test programs assembled to
	// run from address zero)
	loadROMIntoBIOS bool
}

// New creates the system bus with the required hooks installed:
//
//   - REG_IF writes clear the bits set in the written value
//     (write-one-to-clear), so programs acknowledge interrupts by
//     writing the flag back
//   - REG_KEYINPUT writes are discarded (read-only to the CPU)
//   - Reads of 0x0D000000 return 1, telling the program the previous
//     EEPROM transaction completed
func New() *Memory {
	m := &Memory{
		rom:             make([]uint8, ROMSize),
		flash:           backup.NewFlash(),
		eeprom:          backup.NewEEPROM(),
		readHooks:       make(map[uint32]ReadHook),
		writeHooks:      make(map[uint32]WriteHook),
		romWriteProtect: true,
	}

	m.OnWrite(RegIF, func(m *Memory, addr uint32, value uint32) {
		old := m.ReadIO16(RegIF)
		m.WriteIO16(RegIF, old&^uint16(value))
	})

	m.OnWrite(RegKeyInput, func(m *Memory, addr uint32, value uint32) {
		// Read-only from the CPU's perspective
	})

	m.OnRead(EEPROMStart, func(m *Memory, addr uint32) uint32 {
		return 1
	})

	return m
}

// Flash returns the flash backup device
func (m *Memory) Flash() *backup.Flash {
	return m.flash
}

// EEPROM returns the EEPROM backup device
func (m *Memory) EEPROM() *backup.EEPROM {
	return m.eeprom
}

// OnRead registers a read hook. At most one hook exists per address; a
// second registration replaces the first.
func (m *Memory) OnRead(addr uint32, hook ReadHook) {
	if _, ok := m.readHooks[addr]; !ok {
		m.readHookAddrs = insertSorted(m.readHookAddrs, addr)
	}
	m.readHooks[addr] = hook
}

// OnWrite registers a write hook. At most one hook exists per address;
// a second registration replaces the first.
func (m *Memory) OnWrite(addr uint32, hook WriteHook) {
	if _, ok := m.writeHooks[addr]; !ok {
		m.writeHookAddrs = insertSorted(m.writeHookAddrs, addr)
	}
	m.writeHooks[addr] = hook
}

func insertSorted(addrs []uint32, addr uint32) []uint32 {
	i := sort.Search(len(addrs), func(i int) bool { return addrs[i] >= addr })
	addrs = append(addrs, 0)
	copy(addrs[i+1:], addrs[i:])
	addrs[i] = addr
	return addrs
}

func hasAddr(addrs []uint32, addr uint32) bool {
	i := sort.Search(len(addrs), func(i int) bool { return addrs[i] >= addr })
	return i < len(addrs) && addrs[i] == addr
}

// resolve translates a bus address into a backing slice and an offset
// within it, applying region mirroring.
func (m *Memory) resolve(addr uint32) ([]uint8, uint32, error) {
	offset := addr & 0x00FFFFFF

	switch addr >> 24 {
	case 0x00, 0x01:
		return m.bios[:], offset % BIOSSize, nil
	case 0x02:
		return m.ewram[:], offset % EWRAMSize, nil
	case 0x03:
		return m.iwram[:], offset % IWRAMSize, nil
	case 0x04:
		return m.ioRegs[:], offset % IOSize, nil
	case 0x05:
		return m.palette[:], offset % PaletteSize, nil
	case 0x06:
		return m.vram[:], offset % VRAMSize, nil
	case 0x07:
		return m.oam[:], offset % OAMSize, nil
	case 0x08, 0x09, 0x0A, 0x0B, 0x0C:
		// All three wait-state banks alias the same backing buffer
		return m.rom, addr & (ROMSize - 1), nil
	case 0x0D:
		return m.eeprom.Data(), offset % EEPROMSize, nil
	case 0x0E, 0x0F:
		return m.flash.Data(), offset % SRAMSize, nil
	}

	return nil, 0, &AddressFault{Addr: addr}
}

// inSRAMRegion reports whether the address belongs to the flash device
func inSRAMRegion(addr uint32) bool {
	return addr>>24 == 0x0E || addr>>24 == 0x0F
}

// ====================================================================
// Reads
// ====================================================================

// Read8 reads a byte, honoring read hooks and the flash command machine
func (m *Memory) Read8(addr uint32) (uint8, error) {
	if hasAddr(m.readHookAddrs, addr) {
		return uint8(m.readHooks[addr](m, addr)), nil
	}
	if inSRAMRegion(addr) {
		return m.flash.ReadByte(addr), nil
	}
	mem, offset, err := m.resolve(addr)
	if err != nil {
		return 0, err
	}
	return mem[offset], nil
}

// Read16 reads a little-endian halfword
func (m *Memory) Read16(addr uint32) (uint16, error) {
	if hasAddr(m.readHookAddrs, addr) {
		return uint16(m.readHooks[addr](m, addr)), nil
	}
	mem, offset, err := m.resolve(addr)
	if err != nil {
		return 0, err
	}
	if int(offset)+2 <= len(mem) {
		return binary.LittleEndian.Uint16(mem[offset:]), nil
	}
	// The access straddles a mirror boundary; assemble per byte
	lo, err := m.Read8(addr)
	if err != nil {
		return 0, err
	}
	hi, err := m.Read8(addr + 1)
	if err != nil {
		return 0, err
	}
	return uint16(lo) | uint16(hi)<<8, nil
}

// Read32 reads a little-endian word
func (m *Memory) Read32(addr uint32) (uint32, error) {
	if hasAddr(m.readHookAddrs, addr) {
		return m.readHooks[addr](m, addr), nil
	}
	mem, offset, err := m.resolve(addr)
	if err != nil {
		return 0, err
	}
	if int(offset)+4 <= len(mem) {
		return binary.LittleEndian.Uint32(mem[offset:]), nil
	}
	lo, err := m.Read16(addr)
	if err != nil {
		return 0, err
	}
	hi, err := m.Read16(addr + 2)
	if err != nil {
		return 0, err
	}
	return uint32(lo) | uint32(hi)<<16, nil
}

// ReadS8 reads a byte and sign-extends it to 32 bits
func (m *Memory) ReadS8(addr uint32) (int32, error) {
	v, err := m.Read8(addr)
	return int32(int8(v)), err
}

// ReadS16 reads a halfword and sign-extends it to 32 bits
func (m *Memory) ReadS16(addr uint32) (int32, error) {
	v, err := m.Read16(addr)
	return int32(int16(v)), err
}

// ====================================================================
// Writes
// ====================================================================

// Write8 writes a byte, honoring write hooks, BIOS write protection,
// and the flash command machine
func (m *Memory) Write8(addr uint32, value uint8) error {
	if m.romWriteProtect && addr <= BIOSEnd {
		return nil
	}
	if hasAddr(m.writeHookAddrs, addr) {
		m.writeHooks[addr](m, addr, uint32(value))
		return nil
	}
	if inSRAMRegion(addr) {
		m.flash.WriteByte(addr, value)
		return nil
	}
	mem, offset, err := m.resolve(addr)
	if err != nil {
		return err
	}
	mem[offset] = value
	return nil
}

// Write16 writes a little-endian halfword
func (m *Memory) Write16(addr uint32, value uint16) error {
	if m.romWriteProtect && addr <= BIOSEnd {
		return nil
	}
	if hasAddr(m.writeHookAddrs, addr) {
		m.writeHooks[addr](m, addr, uint32(value))
		return nil
	}
	mem, offset, err := m.resolve(addr)
	if err != nil {
		return err
	}
	if int(offset)+2 <= len(mem) {
		binary.LittleEndian.PutUint16(mem[offset:], value)
		return nil
	}
	if err := m.Write8(addr, uint8(value)); err != nil {
		return err
	}
	return m.Write8(addr+1, uint8(value>>8))
}

// Write32 writes a little-endian word
func (m *Memory) Write32(addr uint32, value uint32) error {
	if m.romWriteProtect && addr <= BIOSEnd {
		return nil
	}
	if hasAddr(m.writeHookAddrs, addr) {
		m.writeHooks[addr](m, addr, value)
		return nil
	}
	mem, offset, err := m.resolve(addr)
	if err != nil {
		return err
	}
	if int(offset)+4 <= len(mem) {
		binary.LittleEndian.PutUint32(mem[offset:], value)
		return nil
	}
	if err := m.Write16(addr, uint16(value)); err != nil {
		return err
	}
	return m.Write16(addr+2, uint16(value>>16))
}

// Write16Direct writes a halfword bypassing write hooks. Internal
// engines raise bits in REG_IF through RequestInterrupt instead.
func (m *Memory) Write16Direct(addr uint32, value uint16) error {
	if m.romWriteProtect && addr <= BIOSEnd {
		return nil
	}
	mem, offset, err := m.resolve(addr)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(mem[offset:], value)
	return nil
}

// ====================================================================
// I/O Register Fast Path
// ====================================================================
//
// The PPU, DMA, and timer engines address I/O registers by their bus
// address but bypass region resolution and hooks: the offsets are
// compile-time constants inside the 0x804-byte register file.

// ReadIO8 reads an I/O register byte directly
func (m *Memory) ReadIO8(reg uint32) uint8 {
	return m.ioRegs[reg&0x00FFFFFF]
}

// ReadIO16 reads an I/O register halfword directly
func (m *Memory) ReadIO16(reg uint32) uint16 {
	return binary.LittleEndian.Uint16(m.ioRegs[reg&0x00FFFFFF:])
}

// ReadIO32 reads an I/O register word directly
func (m *Memory) ReadIO32(reg uint32) uint32 {
	return binary.LittleEndian.Uint32(m.ioRegs[reg&0x00FFFFFF:])
}

// WriteIO8 writes an I/O register byte directly
func (m *Memory) WriteIO8(reg uint32, value uint8) {
	m.ioRegs[reg&0x00FFFFFF] = value
}

// WriteIO16 writes an I/O register halfword directly
func (m *Memory) WriteIO16(reg uint32, value uint16) {
	binary.LittleEndian.PutUint16(m.ioRegs[reg&0x00FFFFFF:], value)
}

// WriteIO32 writes an I/O register word directly
func (m *Memory) WriteIO32(reg uint32, value uint32) {
	binary.LittleEndian.PutUint32(m.ioRegs[reg&0x00FFFFFF:], value)
}

// RequestInterrupt raises bits in REG_IF, bypassing the clear-on-write
// hook
func (m *Memory) RequestInterrupt(mask uint16) {
	m.WriteIO16(RegIF, m.ReadIO16(RegIF)|mask)
}

// ====================================================================
// Region Accessors
// ====================================================================

// IO returns the I/O register file
func (m *Memory) IO() []uint8 { return m.ioRegs[:] }

// Palette returns palette RAM
func (m *Memory) Palette() []uint8 { return m.palette[:] }

// VRAM returns video RAM
func (m *Memory) VRAM() []uint8 { return m.vram[:] }

// OAM returns object attribute memory
func (m *Memory) OAM() []uint8 { return m.oam[:] }

// EWRAM returns on-board work RAM
func (m *Memory) EWRAM() []uint8 { return m.ewram[:] }

// IWRAM returns on-chip work RAM
func (m *Memory) IWRAM() []uint8 { return m.iwram[:] }

// ROM returns the Game Pak ROM buffer
func (m *Memory) ROM() []uint8 { return m.rom }

// ====================================================================
// Loading and Reset
// ====================================================================

// LoadBIOS copies a BIOS image into the system ROM region
func (m *Memory) LoadBIOS(data []uint8) error {
	if len(data) > BIOSSize {
		return fmt.Errorf("memory: BIOS image is %d bytes, limit is %d", len(data), BIOSSize)
	}
	copy(m.bios[:], data)
	return nil
}

// LoadROM copies a ROM image into the Game Pak ROM region. No header
// parsing: the image is raw ARM code mapped at the ROM base.
func (m *Memory) LoadROM(data []uint8) error {
	if m.loadROMIntoBIOS {
		return m.LoadBIOS(data)
	}
	if len(data) > ROMSize {
		return fmt.Errorf("memory: ROM image is %d bytes, limit is %d", len(data), ROMSize)
	}
	copy(m.rom, data)
	return nil
}

// SetLoadROMIntoBIOS makes LoadROM target the BIOS region instead, so
// test programs can execute from address zero
func (m *Memory) SetLoadROMIntoBIOS(enable bool) {
	m.loadROMIntoBIOS = enable
}

// SetROMWriteProtect toggles discarding of writes into the BIOS region
func (m *Memory) SetROMWriteProtect(enable bool) {
	m.romWriteProtect = enable
}

// SoftReset zeroes working memory, I/O, palette, VRAM, and OAM, then
// reinstates the hardware defaults the console boots with. Cartridge
// backup storage is untouched so save data survives a reset.
func (m *Memory) SoftReset() {
	m.ewram = [EWRAMSize]uint8{}
	m.iwram = [IWRAMSize]uint8{}
	m.ioRegs = [IOSize]uint8{}
	m.palette = [PaletteSize]uint8{}
	m.vram = [VRAMSize]uint8{}
	m.oam = [OAMSize]uint8{}

	// All keys released (0 = pressed, 1 = released)
	m.WriteIO16(RegKeyInput, 0x03FF)
}
