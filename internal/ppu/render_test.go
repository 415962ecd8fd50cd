package ppu

import "testing"

func oamIdxInRegion(p *PPU, cell int, idx int) bool {
	for _, v := range p.objCache.regions[cell] {
		if int(v) == idx {
			return true
		}
	}
	return false
}

func TestOAMRegionCacheTracksWritesAndMoves(t *testing.T) {
	p, _ := newTestPPU()

	// Entry 0: 8x8 sprite at (10,10) -> overlaps cells (1,1),(2,1),(1,2),(2,2).
	p.WriteOAM16(0, 0x000A) // attr0: y=10, shape=square, size=0
	p.WriteOAM16(2, 0x000A) // attr1: x=10, size=0
	p.WriteOAM16(4, 0x0000) // attr2: tile 0, priority 0

	cell := regionIndex(1, 1)
	if !oamIdxInRegion(p, cell, 0) {
		t.Fatalf("region (1,1) should contain object 0 after initial placement")
	}
	far := regionIndex(0, 0)
	if oamIdxInRegion(p, far, 0) {
		t.Fatalf("region (0,0) should not contain object 0")
	}

	// Move it to (100,10): cell (1,1) must lose it, cell (12,1) must gain it.
	p.WriteOAM16(2, 0x0064) // attr1: x=100
	if oamIdxInRegion(p, cell, 0) {
		t.Fatalf("region (1,1) should no longer contain object 0 after it moved")
	}
	newCell := regionIndex(12, 1)
	if !oamIdxInRegion(p, newCell, 0) {
		t.Fatalf("region (12,1) should contain object 0 after it moved there")
	}
}

func TestOAMRegionCacheSkipsHiddenEntry(t *testing.T) {
	p, _ := newTestPPU()
	p.WriteOAM16(0, 1<<9) // hidden: affine off, bit9 set
	p.WriteOAM16(2, 0x0000)
	p.WriteOAM16(4, 0x0000)

	if oamIdxInRegion(p, regionIndex(0, 0), 0) {
		t.Fatalf("hidden OAM entry should not be inserted into any region")
	}
	if p.objCache.valid[0] {
		t.Fatalf("hidden OAM entry should be cached as invalid")
	}
}

func TestWindowMaskRestrictsLayerToWindowRegion(t *testing.T) {
	p, _ := newTestPPU()
	p.WriteReg16(0x00, 1<<13) // WIN0 enabled
	p.WriteReg16(0x40, 0x0064)
	p.WriteReg16(0x44, 0x00A0)
	p.WriteReg16(0x48, 0x0004) // WININ: BG2 visible inside WIN0

	inside := pixel{color: 0x0200, opaque: true, priority: 0}
	for x := range p.bg[2] {
		p.bg[2][x] = inside
	}
	p.WritePalette16(0x00, 0x7FFF)

	var row [ScreenWidth]uint16
	p.composite(0, &row)

	if row[50] != inside.color {
		t.Fatalf("pixel inside WIN0 should show BG2, got %#x", row[50])
	}
	if row[150] != 0x7FFF {
		t.Fatalf("pixel outside WIN0 should fall back to backdrop, got %#x", row[150])
	}
}

func TestBGMosaicQuantizesHorizontalSampling(t *testing.T) {
	p, _ := newTestPPU()
	// Mosaic enabled for BG0; screen base block 1 so the tile map (all
	// zero, meaning "tile 0, no flip") doesn't overlap tile 0's own pixel
	// data, which sits at char base 0.
	p.bgcnt[0] = (1 << 6) | (1 << 8)
	p.mosaic = 0x0003 // BG mosaic width-1=3 -> block width 4, height 1

	// Tile 0, row 0: 4bpp pixels 1,2,3,4,5,6,7,8 packed two per byte.
	p.WriteVRAM8(0x06000000, 0x21) // px0=1, px1=2
	p.WriteVRAM8(0x06000001, 0x43) // px2=3, px3=4
	p.WriteVRAM8(0x06000002, 0x65) // px4=5, px5=6
	p.WriteVRAM8(0x06000003, 0x87) // px6=7, px7=8

	for i := 1; i <= 8; i++ {
		p.WritePalette16(uint32(i*2), uint16(0x100+i))
	}

	p.renderTextBG(0, 0)

	for x := 0; x < 4; x++ {
		if p.bg[0][x].color != p.paletteColor(0, 1) {
			t.Fatalf("x=%d: mosaic block 0 should sample color 1, got %#x", x, p.bg[0][x].color)
		}
	}
	for x := 4; x < 8; x++ {
		if p.bg[0][x].color != p.paletteColor(0, 5) {
			t.Fatalf("x=%d: mosaic block 1 should sample color 5, got %#x", x, p.bg[0][x].color)
		}
	}
}

func TestBlendingOnlyAppliesToConfiguredTargets(t *testing.T) {
	p, _ := newTestPPU()
	p.bg[0][0] = pixel{color: 0x001F, opaque: true, priority: 0}
	p.bg[1][0] = pixel{color: 0x03E0, opaque: true, priority: 1}
	p.bldcnt = 1 << 6 // alpha blend mode, no target bits set
	p.bldalpha = 0x0808

	var row [ScreenWidth]uint16
	p.composite(0, &row)
	if row[0] != 0x001F {
		t.Fatalf("blend mode with no configured targets should pass the top color through unchanged, got %#x", row[0])
	}

	p.bldcnt = (1 << 6) | (1 << 0) | (1 << 9) // BG0 first target, BG1 second target
	p.composite(0, &row)
	want := alphaBlend(0x001F, 0x03E0, p.bldalpha)
	if row[0] != want {
		t.Fatalf("blend with configured targets = %#x, want %#x", row[0], want)
	}
}

func TestSemiTransparentOBJAlwaysBlendsWithValidSecondTarget(t *testing.T) {
	p, _ := newTestPPU()
	p.obj[0] = pixel{color: 0x001F, opaque: true, priority: 0, semiTransparent: true}
	p.bg[1][0] = pixel{color: 0x03E0, opaque: true, priority: 1}
	p.bldcnt = (1 << 4) | (1 << 9) // OBJ first target, BG1 second target; mode bits left at 0 (none)
	p.bldalpha = 0x0C04

	var row [ScreenWidth]uint16
	p.composite(0, &row)
	want := alphaBlend(0x001F, 0x03E0, p.bldalpha)
	if row[0] != want {
		t.Fatalf("semi-transparent OBJ should force alpha blend even with BLDCNT mode=none, got %#x want %#x", row[0], want)
	}
}

func TestAffineOBJSamplesIdentityTransform(t *testing.T) {
	p, _ := newTestPPU()

	// Affine parameter group 0: identity scale (PA=PD=1.0 in 8.8 fixed point).
	p.WriteOAM16(0*8+6, 0x0100) // PA
	p.WriteOAM16(1*8+6, 0x0000) // PB
	p.WriteOAM16(2*8+6, 0x0000) // PC
	p.WriteOAM16(3*8+6, 0x0100) // PD

	// Object at OAM index 5: affine enabled, not double-size, 8x8, at (0,0).
	p.WriteOAM16(5*8+0, 1<<8) // attr0: affine bit set
	p.WriteOAM16(5*8+2, 0x0000)
	p.WriteOAM16(5*8+4, 0x0000)

	p.WriteVRAM8(0x06010000, 0x07) // tile 0, texel (0,0) = color index 7
	p.WritePalette16(16*32+7*2, 0x0055)

	for x := range p.objPr {
		p.objPr[x] = 4 // renderScanline resets this before each scanline's sprite pass
	}
	a := p.objCache.attrs[5]
	p.drawSpriteRow(a, 0)

	if p.obj[0].color != 0x0055 || !p.obj[0].opaque {
		t.Fatalf("affine identity transform at origin = %+v, want opaque color 0x0055", p.obj[0])
	}
}
