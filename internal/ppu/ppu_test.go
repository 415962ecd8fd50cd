package ppu

import "testing"

type nullScreen struct{ lines int }

func (s *nullScreen) DrawScanline(int, [ScreenWidth]uint16) { s.lines++ }

func newTestPPU() (*PPU, *nullScreen) {
	scr := &nullScreen{}
	return New(nil, scr), scr
}

func TestPaletteByteWriteDuplicatesAcrossHalfword(t *testing.T) {
	p, _ := newTestPPU()
	p.WritePalette8(0x10, 0x5A)
	if got := p.ReadPalette16(0x10); got != 0x5A5A {
		t.Fatalf("palette byte write = %#x, want 0x5A5A", got)
	}
}

func TestOAM8BitWriteIgnored(t *testing.T) {
	p, _ := newTestPPU()
	p.WriteOAM16(0, 0x1234)
	p.WriteOAM8(0, 0xFF)
	if got := p.ReadOAM16(0); got != 0x1234 {
		t.Fatalf("OAM 8-bit write should be ignored, got %#x", got)
	}
}

func TestVRAMMirrorFoldsTopHalfOfEach128K(t *testing.T) {
	p, _ := newTestPPU()
	p.WriteVRAM16(0x06010000, 0xBEEF)
	if got := p.ReadVRAM16(0x06018000); got != 0xBEEF {
		t.Fatalf("VRAM mirror: addr 0x18000 should alias 0x10000, got %#x", got)
	}
}

func TestDISPCNTRegisterRoundTrips(t *testing.T) {
	p, _ := newTestPPU()
	p.WriteReg16(0x00, 0x0403) // mode 3, BG2 enabled
	if p.bgMode() != 3 {
		t.Fatalf("bgMode = %d, want 3", p.bgMode())
	}
	if !p.bgEnabled(2) {
		t.Fatalf("BG2 should be enabled")
	}
}

func TestAffineReferencePointResetsEachVBlank(t *testing.T) {
	p, _ := newTestPPU()
	p.writeAffineReg(0x28, 0x1000) // BG2X_L
	p.writeAffineReg(0x2A, 0x0000) // BG2X_H
	if p.aff[0].x != 0x1000 {
		t.Fatalf("BG2X write = %#x, want 0x1000", p.aff[0].x)
	}
	p.aff[0].x = 0xDEAD // simulate per-line drift during the frame
	p.resetAffineReferences()
	if p.aff[0].x != 0x1000 {
		t.Fatalf("affine reference should reset to last-written value on VBlank, got %#x", p.aff[0].x)
	}
}

func TestHBlankAndVBlankFireAcrossAFullFrame(t *testing.T) {
	p, scr := newTestPPU()
	sawHBlank, sawVBlank := false, false
	for i := 0; i < dotsPerLine*totalLines+10; i++ { // Step(4) advances one dot
		h, v := p.Step(4)
		sawHBlank = sawHBlank || h
		sawVBlank = sawVBlank || v
	}
	if !sawHBlank || !sawVBlank {
		t.Fatalf("expected both HBlank and VBlank edges over a full frame")
	}
	if scr.lines == 0 {
		t.Fatalf("expected at least one scanline drawn")
	}
}
