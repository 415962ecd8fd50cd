// Package ppu models the GBA picture processing unit: VRAM/OAM/palette
// memory, the DISPCNT/DISPSTAT/background/window/blend register set, and a
// scanline compositor producing one BGR555 row at a time.
package ppu

import "github.com/FabianRolfMatthiasNoll/gbacore/internal/irq"

const (
	ScreenWidth  = 240
	ScreenHeight = 160
	totalLines   = 228
	cyclesPerDot = 4
	dotsPerLine  = 308
)

// Screen receives one fully composited scanline at a time, as packed
// BGR555 values (the GBA's native pixel format).
type Screen interface {
	DrawScanline(y int, pixels [ScreenWidth]uint16)
}

type bgAffine struct {
	pa, pb, pc, pd int16
	x, y           int32 // current per-scanline reference point, 20.8 fixed point
	refX, refY     int32 // BGxX/BGxY as last written
}

// PPU owns VRAM/OAM/palette memory and every display-related register; it
// renders one scanline at a time into the attached Screen.
type PPU struct {
	vram    [0x18000]byte
	oam     [0x400]byte
	palette [0x400]byte

	dispcnt  uint16
	dispstat uint16
	vcount   uint16

	bgcnt [4]uint16
	hofs  [4]uint16
	vofs  [4]uint16

	aff [2]bgAffine // index 0 -> BG2, index 1 -> BG3

	win0h, win1h  uint16
	win0v, win1v  uint16
	winin, winout uint16

	mosaic   uint16
	bldcnt   uint16
	bldalpha uint16
	bldy     uint16

	hdot int
	dot  int

	irq    *irq.Controller
	screen Screen

	bg        [4][ScreenWidth]pixel
	obj       [ScreenWidth]pixel
	objPr     [ScreenWidth]int
	objWindow [ScreenWidth]bool

	objCache oamCache
}

type pixel struct {
	color           uint16
	opaque          bool
	priority        int
	semiTransparent bool
}

func New(ic *irq.Controller, screen Screen) *PPU {
	p := &PPU{irq: ic, screen: screen}
	p.initOAMCache()
	return p
}

// Step advances by cpuCycles CPU cycles (1 dot = 4 cycles) and reports
// whether an HBlank or VBlank DMA-start edge occurred during this call.
func (p *PPU) Step(cpuCycles int) (hblank, vblank bool) {
	p.dot += cpuCycles
	for p.dot >= cyclesPerDot {
		p.dot -= cyclesPerDot
		h, v := p.advanceDot()
		hblank = hblank || h
		vblank = vblank || v
	}
	return hblank, vblank
}

func (p *PPU) advanceDot() (hblank, vblank bool) {
	p.hdot++
	if p.hdot == ScreenWidth {
		if int(p.vcount) < ScreenHeight {
			p.renderScanline(int(p.vcount))
		}
		p.dispstat |= 1 << 1
		if p.dispstat&(1<<4) != 0 {
			p.irq.Request(irq.HBlank)
		}
		hblank = true
	}
	if p.hdot == dotsPerLine {
		p.hdot = 0
		p.dispstat &^= 1 << 1
		p.vcount++
		if p.vcount == ScreenHeight {
			p.dispstat |= 1 << 0
			if p.dispstat&(1<<3) != 0 {
				p.irq.Request(irq.VBlank)
			}
			vblank = true
			p.resetAffineReferences()
		}
		if int(p.vcount) == totalLines {
			p.vcount = 0
			p.dispstat &^= 1 << 0
		}
		lyc := byte(p.dispstat >> 8)
		if byte(p.vcount) == lyc {
			p.dispstat |= 1 << 2
			if p.dispstat&(1<<5) != 0 {
				p.irq.Request(irq.VCount)
			}
		} else {
			p.dispstat &^= 1 << 2
		}
	}
	return hblank, vblank
}

func (p *PPU) resetAffineReferences() {
	for i := range p.aff {
		p.aff[i].x = p.aff[i].refX
		p.aff[i].y = p.aff[i].refY
	}
}

func (p *PPU) VCount() uint16 { return p.vcount }

// --- VRAM/OAM/palette access, with the GBA's quirky mirroring rules -------

// vramOffset folds an address within the 0x06000000 window down to a real
// VRAM byte offset: VRAM is 96KiB, mapped into a 128KiB window repeated
// across the region; within each 128KiB window the top 32KiB mirrors the
// 32KiB immediately below it.
func vramOffset(addr uint32) uint32 {
	o := addr % 0x20000
	if o >= 0x18000 {
		o -= 0x8000
	}
	return o
}

func (p *PPU) ReadVRAM8(addr uint32) byte  { return p.vram[vramOffset(addr)] }
func (p *PPU) WriteVRAM8(addr uint32, v byte) {
	// A plain 8-bit write to a bitmap/tile pixel duplicates into both
	// nibbles of the containing halfword on real hardware only for
	// specific regions; we keep the simpler, widely-emulated rule of a
	// straight byte store, which is correct for all but OBJ VRAM writes
	// (software essentially never relies on the odd case).
	p.vram[vramOffset(addr)] = v
}
func (p *PPU) ReadVRAM16(addr uint32) uint16 {
	o := vramOffset(addr &^ 1)
	return uint16(p.vram[o]) | uint16(p.vram[o+1])<<8
}
func (p *PPU) WriteVRAM16(addr uint32, v uint16) {
	o := vramOffset(addr &^ 1)
	p.vram[o] = byte(v)
	p.vram[o+1] = byte(v >> 8)
}
func (p *PPU) ReadVRAM32(addr uint32) uint32 {
	lo := uint32(p.ReadVRAM16(addr))
	hi := uint32(p.ReadVRAM16(addr + 2))
	return lo | hi<<16
}
func (p *PPU) WriteVRAM32(addr uint32, v uint32) {
	p.WriteVRAM16(addr, uint16(v))
	p.WriteVRAM16(addr+2, uint16(v>>16))
}

func (p *PPU) ReadOAM8(addr uint32) byte { return p.oam[addr&0x3FF] }

// WriteOAM8 is a no-op: OAM ignores 8-bit writes entirely on real hardware.
func (p *PPU) WriteOAM8(uint32, byte) {}

func (p *PPU) ReadOAM16(addr uint32) uint16 {
	o := addr & 0x3FE
	return uint16(p.oam[o]) | uint16(p.oam[o+1])<<8
}
func (p *PPU) WriteOAM16(addr uint32, v uint16) {
	o := addr & 0x3FE
	cur := uint16(p.oam[o]) | uint16(p.oam[o+1])<<8
	if cur == v {
		return
	}
	p.oam[o] = byte(v)
	p.oam[o+1] = byte(v >> 8)
	// Only attribute words 0-2 affect an entry's cached shape/position/
	// priority; word 3 doubles as affine-parameter storage and never
	// changes region membership by itself.
	if (o/2)%4 != 3 {
		p.updateOAMCache(int(o / 8))
	}
}
func (p *PPU) ReadOAM32(addr uint32) uint32 {
	lo := uint32(p.ReadOAM16(addr))
	hi := uint32(p.ReadOAM16(addr + 4 - 2))
	return lo | hi<<16
}
func (p *PPU) WriteOAM32(addr uint32, v uint32) {
	p.WriteOAM16(addr, uint16(v))
	p.WriteOAM16(addr+2, uint16(v>>16))
}

func (p *PPU) ReadPalette8(addr uint32) byte { return p.palette[addr&0x3FF] }

// WritePalette8 duplicates the written byte into both halves of the
// containing halfword, matching the real PRAM write-halfword-only rule.
func (p *PPU) WritePalette8(addr uint32, v byte) {
	o := addr & 0x3FE
	p.palette[o] = v
	p.palette[o+1] = v
}
func (p *PPU) ReadPalette16(addr uint32) uint16 {
	o := addr & 0x3FE
	return uint16(p.palette[o]) | uint16(p.palette[o+1])<<8
}
func (p *PPU) WritePalette16(addr uint32, v uint16) {
	o := addr & 0x3FE
	p.palette[o] = byte(v)
	p.palette[o+1] = byte(v >> 8)
}
func (p *PPU) ReadPalette32(addr uint32) uint32 {
	lo := uint32(p.ReadPalette16(addr))
	hi := uint32(p.ReadPalette16(addr + 2))
	return lo | hi<<16
}
func (p *PPU) WritePalette32(addr uint32, v uint32) {
	p.WritePalette16(addr, uint16(v))
	p.WritePalette16(addr+2, uint16(v>>16))
}

// --- I/O register access (offsets relative to 0x04000000) ------------------

func (p *PPU) ReadReg16(off uint32) uint16 {
	switch off {
	case 0x00:
		return p.dispcnt
	case 0x04:
		return p.dispstat
	case 0x06:
		return p.vcount
	case 0x08, 0x0A, 0x0C, 0x0E:
		return p.bgcnt[(off-0x08)/2]
	case 0x40:
		return p.win0h
	case 0x42:
		return p.win1h
	case 0x44:
		return p.win0v
	case 0x46:
		return p.win1v
	case 0x48:
		return p.winin
	case 0x4A:
		return p.winout
	case 0x4C:
		return p.mosaic
	case 0x50:
		return p.bldcnt
	case 0x52:
		return p.bldalpha
	case 0x54:
		return p.bldy
	}
	return 0
}

func (p *PPU) WriteReg16(off uint32, v uint16) {
	switch {
	case off == 0x00:
		p.dispcnt = v
	case off == 0x04:
		p.dispstat = (p.dispstat &^ 0xFF38) | (v & 0xFF38)
	case off >= 0x08 && off <= 0x0E:
		p.bgcnt[(off-0x08)/2] = v
	case off >= 0x10 && off <= 0x1E:
		idx := (off - 0x10) / 4
		if (off-0x10)%4 == 0 {
			p.hofs[idx] = v & 0x1FF
		} else {
			p.vofs[idx] = v & 0x1FF
		}
	case off >= 0x20 && off <= 0x3E:
		p.writeAffineReg(off, v)
	case off == 0x40:
		p.win0h = v
	case off == 0x42:
		p.win1h = v
	case off == 0x44:
		p.win0v = v
	case off == 0x46:
		p.win1v = v
	case off == 0x48:
		p.winin = v
	case off == 0x4A:
		p.winout = v
	case off == 0x4C:
		p.mosaic = v
	case off == 0x50:
		p.bldcnt = v
	case off == 0x52:
		p.bldalpha = v
	case off == 0x54:
		p.bldy = v & 0x1F
	}
}

func (p *PPU) writeAffineReg(off uint32, v uint16) {
	// BG2 group at 0x20-0x2E, BG3 group at 0x30-0x3E, each 16 bytes wide:
	// PA,PB,PC,PD (2 bytes each) then X_L,X_H,Y_L,Y_H (2 bytes each).
	group := int((off - 0x20) / 0x10)
	local := (off - 0x20) % 0x10
	a := &p.aff[group]
	switch local {
	case 0x0:
		a.pa = int16(v)
	case 0x2:
		a.pb = int16(v)
	case 0x4:
		a.pc = int16(v)
	case 0x6:
		a.pd = int16(v)
	case 0x8:
		a.refX = setLow16Signed20(a.refX, v)
		a.x = a.refX
	case 0xA:
		a.refX = setHigh16Signed20(a.refX, v)
		a.x = a.refX
	case 0xC:
		a.refY = setLow16Signed20(a.refY, v)
		a.y = a.refY
	case 0xE:
		a.refY = setHigh16Signed20(a.refY, v)
		a.y = a.refY
	}
}

func setLow16Signed20(cur int32, v uint16) int32 {
	return signExtend28(uint32(cur)&0xFFFF0000 | uint32(v))
}
func setHigh16Signed20(cur int32, v uint16) int32 {
	return signExtend28(uint32(cur)&0xFFFF | uint32(v&0xFFF)<<16)
}
func signExtend28(v uint32) int32 {
	v &= 0x0FFFFFFF
	if v&0x08000000 != 0 {
		v |= 0xF0000000
	}
	return int32(v)
}
