package ppu

import "sort"

// The OAM spatial region cache partitions the 240x160 visible area into
// 8x8-dot cells and keeps, for each cell, the sorted (priority, then OAM
// index) list of objects that intersect it. This lets renderSprites avoid
// a full 128-entry scan on every scanline; the cache is kept current by
// re-parsing only the OAM entry a write actually touched, grounded on
// memetendo's video/obj.rs Oam::update_cached_attrs.
const (
	regionCellDots = 8
	regionsW       = ScreenWidth / regionCellDots
	regionsH       = ScreenHeight / regionCellDots
)

type objAttrs struct {
	y, x          int
	shape, size   int
	hFlip, vFlip  bool
	mode          int // 0 normal, 1 semi-transparent (alpha blend), 2 OBJ window
	colorMode8bpp bool
	tileIndex     int
	priority      int
	palBank       int

	affine     bool
	affineIdx  int
	doubleSize bool
	mosaic     bool

	tileW, tileH   int // sprite's own tile dimensions
	objW, objH     int // sprite's own dot dimensions (tileW*8, tileH*8)
	boundW, boundH int // on-screen bounding box, doubled when doubleSize
}

var objDims = [4][4][2]int{
	{{8, 8}, {16, 16}, {32, 32}, {64, 64}}, // square
	{{16, 8}, {32, 8}, {32, 16}, {64, 32}}, // wide
	{{8, 16}, {8, 32}, {16, 32}, {32, 64}}, // tall
	{{8, 8}, {8, 8}, {8, 8}, {8, 8}},       // shape 3 is prohibited; never read
}

// oamCache is the PPU's parsed-attribute + region-index cache.
type oamCache struct {
	attrs   [128]objAttrs
	valid   [128]bool
	regions [regionsW * regionsH][]uint8
}

func (p *PPU) initOAMCache() {
	for i := 0; i < 128; i++ {
		p.updateOAMCache(i)
	}
}

// parseOAMEntry decodes OAM entry i's three attribute halfwords. It returns
// ok=false for entries that are hidden, or whose shape/mode fields are the
// hardware's reserved (prohibited) encodings.
func (p *PPU) parseOAMEntry(i int) (objAttrs, bool) {
	base := uint32(i * 8)
	attr0 := p.ReadOAM16(base)

	affine := attr0&(1<<8) != 0
	flagBit9 := attr0&(1<<9) != 0
	if !affine && flagBit9 {
		return objAttrs{}, false // hidden
	}

	shape := int((attr0 >> 14) & 0x3)
	if shape == 3 {
		return objAttrs{}, false // prohibited shape
	}
	mode := int((attr0 >> 10) & 0x3)
	if mode == 3 {
		return objAttrs{}, false // prohibited mode
	}

	attr1 := p.ReadOAM16(base + 2)
	attr2 := p.ReadOAM16(base + 4)
	size := int((attr1 >> 14) & 0x3)

	dims := objDims[shape][size]
	objW, objH := dims[0], dims[1]
	boundW, boundH := objW, objH
	doubleSize := affine && flagBit9
	if doubleSize {
		boundW, boundH = objW*2, objH*2
	}

	a := objAttrs{
		y:             int(attr0 & 0xFF),
		shape:         shape,
		mode:          mode,
		mosaic:        attr0&(1<<12) != 0,
		colorMode8bpp: attr0&(1<<13) != 0,
		affine:        affine,
		doubleSize:    doubleSize,
		x:             int(attr1 & 0x1FF),
		size:          size,
		affineIdx:     int((attr1 >> 9) & 0x1F),
		hFlip:         !affine && attr1&(1<<12) != 0,
		vFlip:         !affine && attr1&(1<<13) != 0,
		tileIndex:     int(attr2 & 0x3FF),
		priority:      int((attr2 >> 10) & 0x3),
		palBank:       int((attr2 >> 12) & 0xF),
		tileW:         objW / 8,
		tileH:         objH / 8,
		objW:          objW,
		objH:          objH,
		boundW:        boundW,
		boundH:        boundH,
	}
	if a.x >= 256 {
		a.x -= 512
	}
	return a, true
}

// affineParams reads one of the 32 rotation/scaling parameter groups. Each
// group's PA/PB/PC/PD live in the otherwise-unused 3rd attribute halfword of
// OAM entries 4*idx..4*idx+3, exactly as the real OAM layout packs them.
func (p *PPU) affineParams(idx int) (pa, pb, pc, pd int16) {
	read := func(entry int) int16 { return int16(p.ReadOAM16(uint32(entry)*8 + 6)) }
	return read(idx*4), read(idx*4 + 1), read(idx*4 + 2), read(idx*4 + 3)
}

// effectiveY folds OAM's Y coordinate the same way real hardware does for
// sprites whose bounding box straddles the bottom of the Y range: a Y value
// near 256 is reinterpreted as negative so the sprite can wrap onto the top
// of the screen.
func effectiveY(a objAttrs, h int) int {
	if a.y+h > 256 {
		return a.y - 256
	}
	return a.y
}

func regionPos(x, y int) (int, int) { return x / regionCellDots, y / regionCellDots }
func regionIndex(rx, ry int) int    { return ry*regionsW + rx }

// regionBounds returns the inclusive region-cell range an object's bounding
// box overlaps, or ok=false if it lies entirely off the drawable area.
func regionBounds(a objAttrs) (rx0, ry0, rx1, ry1 int, ok bool) {
	w, h := a.boundW, a.boundH
	y0, x0 := effectiveY(a, h), a.x
	x1, y1 := x0+w-1, y0+h-1
	if x0 >= ScreenWidth || y0 >= ScreenHeight || x1 < 0 || y1 < 0 {
		return 0, 0, 0, 0, false
	}
	if x0 < 0 {
		x0 = 0
	}
	if y0 < 0 {
		y0 = 0
	}
	if x1 >= ScreenWidth {
		x1 = ScreenWidth - 1
	}
	if y1 >= ScreenHeight {
		y1 = ScreenHeight - 1
	}
	rx0, ry0 = regionPos(x0, y0)
	rx1, ry1 = regionPos(x1, y1)
	return rx0, ry0, rx1, ry1, true
}

func (p *PPU) regionsForIndex(idx int, a objAttrs, ok bool, remove bool) {
	if !ok {
		return
	}
	rx0, ry0, rx1, ry1, valid := regionBounds(a)
	if !valid {
		return
	}
	for ry := ry0; ry <= ry1; ry++ {
		for rx := rx0; rx <= rx1; rx++ {
			cell := regionIndex(rx, ry)
			if remove {
				p.removeFromRegion(cell, idx)
			} else {
				p.insertIntoRegion(cell, idx)
			}
		}
	}
}

func (p *PPU) insertIntoRegion(cell, idx int) {
	list := p.objCache.regions[cell]
	priority := p.objCache.attrs[idx].priority
	pos := sort.Search(len(list), func(i int) bool {
		pi := int(list[i])
		if pp := p.objCache.attrs[pi].priority; pp != priority {
			return pp > priority
		}
		return pi > idx
	})
	list = append(list, 0)
	copy(list[pos+1:], list[pos:])
	list[pos] = uint8(idx)
	p.objCache.regions[cell] = list
}

func (p *PPU) removeFromRegion(cell, idx int) {
	list := p.objCache.regions[cell]
	for i, v := range list {
		if int(v) == idx {
			p.objCache.regions[cell] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

// updateOAMCache re-parses OAM entry idx and moves its region membership
// from the old cached attributes to the new ones.
func (p *PPU) updateOAMCache(idx int) {
	newAttrs, newOK := p.parseOAMEntry(idx)
	oldAttrs, oldOK := p.objCache.attrs[idx], p.objCache.valid[idx]

	p.regionsForIndex(idx, oldAttrs, oldOK, true)
	p.regionsForIndex(idx, newAttrs, newOK, false)

	p.objCache.attrs[idx] = newAttrs
	p.objCache.valid[idx] = newOK
}
