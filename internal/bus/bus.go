// Package bus routes the GBA's 32-bit address space to the component that
// owns each region: BIOS, EWRAM, IWRAM, the I/O register block, palette,
// VRAM, OAM, cartridge ROM (three mirrors) and cartridge backup memory.
package bus

import (
	"github.com/FabianRolfMatthiasNoll/gbacore/internal/apu"
	"github.com/FabianRolfMatthiasNoll/gbacore/internal/bios"
	"github.com/FabianRolfMatthiasNoll/gbacore/internal/cart"
	"github.com/FabianRolfMatthiasNoll/gbacore/internal/dma"
	"github.com/FabianRolfMatthiasNoll/gbacore/internal/irq"
	"github.com/FabianRolfMatthiasNoll/gbacore/internal/keypad"
	"github.com/FabianRolfMatthiasNoll/gbacore/internal/ppu"
	"github.com/FabianRolfMatthiasNoll/gbacore/internal/timer"
)

// Bus wires every component together behind the flat address space the CPU
// core sees through cpu.Bus.
type Bus struct {
	BIOS   *bios.Bios
	Cart   *cart.Cartridge
	PPU    *ppu.PPU
	APU    *apu.APU
	DMA    *dma.Engine
	Timer  *timer.Bank
	IRQ    *irq.Controller
	Keypad *keypad.Keypad

	ewram [256 * 1024]byte
	iwram [32 * 1024]byte

	postflg byte
	waitcnt uint16

	// lastBIOSFetch is the last word/halfword fetched while PC was inside
	// the BIOS region, returned for any read attempted from outside it
	// (the GBA's BIOS open-bus protection).
	lastBIOSFetch    uint32
	pcInBIOS         bool
	haltedRequest    bool
}

func New(b *bios.Bios, c *cart.Cartridge, p *ppu.PPU, a *apu.APU, d *dma.Engine, t *timer.Bank, ic *irq.Controller, kp *keypad.Keypad) *Bus {
	return &Bus{BIOS: b, Cart: c, PPU: p, APU: a, DMA: d, Timer: t, IRQ: ic, Keypad: kp}
}

// HaltRequested reports (and clears) whether the last write hit HALTCNT.
func (b *Bus) HaltRequested() bool {
	v := b.haltedRequest
	b.haltedRequest = false
	return v
}

// --- Instruction fetch, with BIOS open-bus tracking -------------------------

func (b *Bus) FetchARM(addr uint32) uint32 {
	if addr < 0x4000 {
		v := b.BIOS.Read32(addr)
		b.lastBIOSFetch = v
		return v
	}
	return b.Read32(addr)
}

func (b *Bus) FetchThumb(addr uint32) uint16 {
	if addr < 0x4000 {
		v := b.BIOS.Read16(addr)
		b.lastBIOSFetch = uint32(v) | uint32(v)<<16
		return v
	}
	return b.Read16(addr)
}

// --- Byte/halfword/word access ---------------------------------------------

func (b *Bus) Read8(addr uint32) byte {
	switch region(addr) {
	case regionBIOS:
		if !b.biosAccessible(addr) {
			return byte(b.lastBIOSFetch >> (8 * (addr & 3)))
		}
		return b.BIOS.Read8(addr)
	case regionEWRAM:
		return b.ewram[addr%uint32(len(b.ewram))]
	case regionIWRAM:
		return b.iwram[addr%uint32(len(b.iwram))]
	case regionIO:
		return byte(b.readIO16(addr &^ 1) >> (8 * (addr & 1)))
	case regionPalette:
		return b.PPU.ReadPalette8(addr)
	case regionVRAM:
		return b.PPU.ReadVRAM8(addr)
	case regionOAM:
		return b.PPU.ReadOAM8(addr)
	case regionROM:
		return b.Cart.ReadROM8(romOffset(addr))
	case regionBackup:
		return b.Cart.Backup().ReadByte(addr)
	default:
		return 0
	}
}

func (b *Bus) Write8(addr uint32, v byte) {
	switch region(addr) {
	case regionEWRAM:
		b.ewram[addr%uint32(len(b.ewram))] = v
	case regionIWRAM:
		b.iwram[addr%uint32(len(b.iwram))] = v
	case regionIO:
		b.writeIO8(addr, v)
	case regionPalette:
		b.PPU.WritePalette8(addr, v)
	case regionVRAM:
		b.PPU.WriteVRAM8(addr, v)
	case regionOAM:
		b.PPU.WriteOAM8(addr, v)
	case regionBackup:
		b.Cart.Backup().WriteByte(addr, v)
	}
}

func (b *Bus) Read16(addr uint32) uint16 {
	switch region(addr) {
	case regionBIOS:
		if !b.biosAccessible(addr) {
			return uint16(b.lastBIOSFetch >> (8 * (addr & 2)))
		}
		return b.BIOS.Read16(addr)
	case regionEWRAM:
		a := addr % uint32(len(b.ewram))
		return uint16(b.ewram[a]) | uint16(b.ewram[a+1])<<8
	case regionIWRAM:
		a := addr % uint32(len(b.iwram))
		return uint16(b.iwram[a]) | uint16(b.iwram[a+1])<<8
	case regionIO:
		return b.readIO16(addr)
	case regionPalette:
		return b.PPU.ReadPalette16(addr)
	case regionVRAM:
		return b.PPU.ReadVRAM16(addr)
	case regionOAM:
		return b.PPU.ReadOAM16(addr)
	case regionROM:
		return b.Cart.ReadROM16(romOffset(addr))
	case regionBackup:
		return b.Cart.Backup().Read16(addr)
	default:
		return 0
	}
}

func (b *Bus) Write16(addr uint32, v uint16) {
	switch region(addr) {
	case regionEWRAM:
		a := addr % uint32(len(b.ewram))
		b.ewram[a], b.ewram[a+1] = byte(v), byte(v>>8)
	case regionIWRAM:
		a := addr % uint32(len(b.iwram))
		b.iwram[a], b.iwram[a+1] = byte(v), byte(v>>8)
	case regionIO:
		b.writeIO16(addr, v)
	case regionPalette:
		b.PPU.WritePalette16(addr, v)
	case regionVRAM:
		b.PPU.WriteVRAM16(addr, v)
	case regionOAM:
		b.PPU.WriteOAM16(addr, v)
	case regionBackup:
		b.Cart.Backup().Write16(addr, v)
	}
}

func (b *Bus) Read32(addr uint32) uint32 {
	switch region(addr) {
	case regionBIOS:
		if !b.biosAccessible(addr) {
			return b.lastBIOSFetch
		}
		return b.BIOS.Read32(addr)
	case regionEWRAM:
		a := addr % uint32(len(b.ewram))
		return uint32(b.ewram[a]) | uint32(b.ewram[a+1])<<8 | uint32(b.ewram[a+2])<<16 | uint32(b.ewram[a+3])<<24
	case regionIWRAM:
		a := addr % uint32(len(b.iwram))
		return uint32(b.iwram[a]) | uint32(b.iwram[a+1])<<8 | uint32(b.iwram[a+2])<<16 | uint32(b.iwram[a+3])<<24
	case regionIO:
		lo := uint32(b.readIO16(addr))
		hi := uint32(b.readIO16(addr + 2))
		return lo | hi<<16
	case regionPalette:
		return b.PPU.ReadPalette32(addr)
	case regionVRAM:
		return b.PPU.ReadVRAM32(addr)
	case regionOAM:
		return b.PPU.ReadOAM32(addr)
	case regionROM:
		return b.Cart.ReadROM32(romOffset(addr))
	case regionBackup:
		lo := uint32(b.Cart.Backup().Read16(addr))
		return lo | lo<<16 // 32-bit backup bus access mirrors the halfword
	default:
		return 0
	}
}

func (b *Bus) Write32(addr uint32, v uint32) {
	switch region(addr) {
	case regionEWRAM:
		a := addr % uint32(len(b.ewram))
		b.ewram[a], b.ewram[a+1], b.ewram[a+2], b.ewram[a+3] = byte(v), byte(v>>8), byte(v>>16), byte(v>>24)
	case regionIWRAM:
		a := addr % uint32(len(b.iwram))
		b.iwram[a], b.iwram[a+1], b.iwram[a+2], b.iwram[a+3] = byte(v), byte(v>>8), byte(v>>16), byte(v>>24)
	case regionIO:
		b.writeIO16(addr, uint16(v))
		b.writeIO16(addr+2, uint16(v>>16))
	case regionPalette:
		b.PPU.WritePalette32(addr, v)
	case regionVRAM:
		b.PPU.WriteVRAM32(addr, v)
	case regionOAM:
		b.PPU.WriteOAM32(addr, v)
	case regionBackup:
		b.Cart.Backup().Write16(addr, uint16(v))
	}
}

// biosAccessible reports whether a read of the BIOS region should return
// real data: only while the CPU's own program counter is executing out of
// the BIOS. The top-level stepper calls SetPCInBIOS once per instruction.
func (b *Bus) biosAccessible(uint32) bool { return b.pcInBIOS }

// SetPCInBIOS lets the stepper report whether the CPU's current PC lies in
// the BIOS region, driving the open-bus rule on out-of-region reads.
func (b *Bus) SetPCInBIOS(v bool) { b.pcInBIOS = v }

func romOffset(addr uint32) uint32 { return addr & 0x01FFFFFF }

type regionKind int

const (
	regionUnused regionKind = iota
	regionBIOS
	regionEWRAM
	regionIWRAM
	regionIO
	regionPalette
	regionVRAM
	regionOAM
	regionROM
	regionBackup
)

func region(addr uint32) regionKind {
	switch {
	case addr < 0x4000:
		return regionBIOS
	case addr >= 0x02000000 && addr < 0x03000000:
		return regionEWRAM
	case addr >= 0x03000000 && addr < 0x04000000:
		return regionIWRAM
	case addr >= 0x04000000 && addr < 0x04000400:
		return regionIO
	case addr >= 0x05000000 && addr < 0x06000000:
		return regionPalette
	case addr >= 0x06000000 && addr < 0x07000000:
		return regionVRAM
	case addr >= 0x07000000 && addr < 0x08000000:
		return regionOAM
	case addr >= 0x08000000 && addr < 0x0E000000:
		return regionROM
	case addr >= 0x0E000000 && addr < 0x10000000:
		return regionBackup
	default:
		return regionUnused
	}
}
