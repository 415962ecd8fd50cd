package ppu

import "sort"

// DISPCNT bit helpers.
func (p *PPU) bgMode() int        { return int(p.dispcnt & 0x7) }
func (p *PPU) objMapping1D() bool { return p.dispcnt&(1<<6) != 0 }
func (p *PPU) forcedBlank() bool  { return p.dispcnt&(1<<7) != 0 }
func (p *PPU) bgEnabled(i int) bool {
	return p.dispcnt&(1<<uint(8+i)) != 0
}
func (p *PPU) objEnabled() bool { return p.dispcnt&(1<<12) != 0 }
func (p *PPU) winEnabled(i int) bool {
	return p.dispcnt&(1<<uint(13+i)) != 0
}
func (p *PPU) objWinEnabled() bool { return p.dispcnt&(1<<15) != 0 }
func (p *PPU) anyWindow() bool {
	return p.winEnabled(0) || p.winEnabled(1) || p.objWinEnabled()
}

// bgMosaicSize/objMosaicSize decode MOSAIC into (width, height) block sizes.
// A size of 1 means "no mosaic" for that axis.
func (p *PPU) bgMosaicSize() (w, h int) {
	return int(p.mosaic&0xF) + 1, int((p.mosaic>>4)&0xF) + 1
}
func (p *PPU) objMosaicSize() (w, h int) {
	return int((p.mosaic>>8)&0xF) + 1, int((p.mosaic>>12)&0xF) + 1
}

func (p *PPU) paletteColor(bank int, index int) uint16 {
	off := uint32(bank*32 + index*2)
	return p.ReadPalette16(off)
}

// renderScanline composites one visible line and hands it to the Screen.
func (p *PPU) renderScanline(y int) {
	var row [ScreenWidth]uint16
	if p.forcedBlank() {
		for x := range row {
			row[x] = 0x7FFF
		}
		p.screen.DrawScanline(y, row)
		return
	}

	for i := range p.bg {
		for x := range p.bg[i] {
			p.bg[i][x] = pixel{}
		}
	}
	for x := range p.obj {
		p.obj[x] = pixel{}
		p.objPr[x] = 4
		p.objWindow[x] = false
	}

	switch p.bgMode() {
	case 0:
		for i := 0; i < 4; i++ {
			if p.bgEnabled(i) {
				p.renderTextBG(i, y)
			}
		}
	case 1:
		if p.bgEnabled(0) {
			p.renderTextBG(0, y)
		}
		if p.bgEnabled(1) {
			p.renderTextBG(1, y)
		}
		if p.bgEnabled(2) {
			p.renderAffineBG(2, 0, y)
		}
	case 2:
		if p.bgEnabled(2) {
			p.renderAffineBG(2, 0, y)
		}
		if p.bgEnabled(3) {
			p.renderAffineBG(3, 1, y)
		}
	case 3:
		if p.bgEnabled(2) {
			p.renderBitmapMode3(y)
		}
	case 4:
		if p.bgEnabled(2) {
			p.renderBitmapMode4(y)
		}
	case 5:
		if p.bgEnabled(2) {
			p.renderBitmapMode5(y)
		}
	}

	if p.objEnabled() {
		p.renderSprites(y)
	}

	p.composite(y, &row)
	p.advanceAffineLine()
	p.screen.DrawScanline(y, row)
}

func (p *PPU) advanceAffineLine() {
	for i := range p.aff {
		p.aff[i].x += int32(p.aff[i].pb)
		p.aff[i].y += int32(p.aff[i].pd)
	}
}

// --- Regular (text-mode) tile backgrounds -----------------------------------

func (p *PPU) renderTextBG(bg int, y int) {
	cnt := p.bgcnt[bg]
	charBase := uint32((cnt>>2)&0x3) * 0x4000
	screenBase := uint32((cnt>>8)&0x1F) * 0x800
	colorMode8bpp := cnt&(1<<7) != 0
	screenSize := (cnt >> 14) & 0x3

	wTiles, hTiles := 32, 32
	switch screenSize {
	case 1:
		wTiles = 64
	case 2:
		hTiles = 64
	case 3:
		wTiles, hTiles = 64, 64
	}

	mosaicW, mosaicH := 1, 1
	if cnt&(1<<6) != 0 {
		mosaicW, mosaicH = p.bgMosaicSize()
	}
	sampleY := y
	if mosaicH > 1 {
		sampleY = y - y%mosaicH
	}

	scrollY := (sampleY + int(p.vofs[bg])) % (hTiles * 8)
	tileRow := scrollY / 8
	fineY := scrollY % 8

	for x := 0; x < ScreenWidth; x++ {
		sampleX := x
		if mosaicW > 1 {
			sampleX = x - x%mosaicW
		}
		scrollX := (sampleX + int(p.hofs[bg])) % (wTiles * 8)
		tileCol := scrollX / 8
		fineX := scrollX % 8

		screenBlock := 0
		localCol, localRow := tileCol, tileRow
		if wTiles == 64 && tileCol >= 32 {
			screenBlock += 1
			localCol -= 32
		}
		if hTiles == 64 && tileRow >= 32 {
			screenBlock += 2
			localRow -= 32
		}
		mapAddr := screenBase + uint32(screenBlock)*0x800 + uint32(localRow*32+localCol)*2
		entry := p.ReadVRAM16(0x06000000 + mapAddr)
		tileIndex := entry & 0x3FF
		hFlip := entry&(1<<10) != 0
		vFlip := entry&(1<<11) != 0
		palBank := int((entry >> 12) & 0xF)

		tx, ty := fineX, fineY
		if hFlip {
			tx = 7 - tx
		}
		if vFlip {
			ty = 7 - ty
		}

		var colorIdx int
		if colorMode8bpp {
			tileAddr := charBase + uint32(tileIndex)*64 + uint32(ty*8+tx)
			colorIdx = int(p.ReadVRAM8(0x06000000 + tileAddr))
		} else {
			tileAddr := charBase + uint32(tileIndex)*32 + uint32(ty*4+tx/2)
			b := p.ReadVRAM8(0x06000000 + tileAddr)
			if tx%2 == 0 {
				colorIdx = int(b & 0xF)
			} else {
				colorIdx = int(b >> 4)
			}
		}
		if colorIdx == 0 {
			continue
		}
		bank := 0
		if !colorMode8bpp {
			bank = palBank
		}
		p.bg[bg][x] = pixel{color: p.paletteColor(bank, colorIdx), opaque: true, priority: int(cnt & 0x3)}
	}
}

// --- Affine tile backgrounds -------------------------------------------------

func (p *PPU) renderAffineBG(bg int, affIdx int, y int) {
	cnt := p.bgcnt[bg]
	charBase := uint32((cnt>>2)&0x3) * 0x4000
	screenBase := uint32((cnt>>8)&0x1F) * 0x800
	wrap := cnt&(1<<13) != 0
	sizeSel := (cnt >> 14) & 0x3
	tiles := [4]int{16, 32, 64, 128}[sizeSel]
	mapSize := tiles * 8

	mosaicW, mosaicH := 1, 1
	if cnt&(1<<6) != 0 {
		mosaicW, mosaicH = p.bgMosaicSize()
	}
	sampleY := y
	if mosaicH > 1 {
		sampleY = y - y%mosaicH
	}

	a := p.aff[affIdx]
	// Reference points advance by (pb,pd) once per rendered line starting
	// from refX/refY at VBlank, so the state for any earlier (mosaic-
	// quantized) line can be recomputed directly instead of replayed.
	baseX := a.refX + int32(sampleY)*int32(a.pb)
	baseY := a.refY + int32(sampleY)*int32(a.pd)

	for x := 0; x < ScreenWidth; x++ {
		sampleX := x
		if mosaicW > 1 {
			sampleX = x - x%mosaicW
		}
		texX := int((baseX + int32(sampleX)*int32(a.pa)) >> 8)
		texY := int((baseY + int32(sampleX)*int32(a.pc)) >> 8)

		if wrap {
			texX = ((texX % mapSize) + mapSize) % mapSize
			texY = ((texY % mapSize) + mapSize) % mapSize
		} else if texX < 0 || texY < 0 || texX >= mapSize || texY >= mapSize {
			continue
		}

		tileCol, tileRow := texX/8, texY/8
		fineX, fineY := texX%8, texY%8
		mapAddr := screenBase + uint32(tileRow*tiles+tileCol)
		tileIndex := p.ReadVRAM8(0x06000000 + mapAddr)

		tileAddr := charBase + uint32(tileIndex)*64 + uint32(fineY*8+fineX)
		colorIdx := int(p.ReadVRAM8(0x06000000 + tileAddr))
		if colorIdx == 0 {
			continue
		}
		p.bg[bg][x] = pixel{color: p.paletteColor(0, colorIdx), opaque: true, priority: int(cnt & 0x3)}
	}
}

// --- Bitmap modes -------------------------------------------------------------

func (p *PPU) renderBitmapMode3(y int) {
	mosaicW, mosaicH := 1, 1
	if p.bgcnt[2]&(1<<6) != 0 {
		mosaicW, mosaicH = p.bgMosaicSize()
	}
	sampleY := y
	if mosaicH > 1 {
		sampleY = y - y%mosaicH
	}
	for x := 0; x < ScreenWidth; x++ {
		sampleX := x
		if mosaicW > 1 {
			sampleX = x - x%mosaicW
		}
		off := uint32(sampleY*ScreenWidth+sampleX) * 2
		p.bg[2][x] = pixel{color: p.ReadVRAM16(0x06000000 + off), opaque: true, priority: int(p.bgcnt[2] & 0x3)}
	}
}

func (p *PPU) renderBitmapMode4(y int) {
	frame := uint32(0)
	if p.dispcnt&(1<<4) != 0 {
		frame = 0xA000
	}
	mosaicW, mosaicH := 1, 1
	if p.bgcnt[2]&(1<<6) != 0 {
		mosaicW, mosaicH = p.bgMosaicSize()
	}
	sampleY := y
	if mosaicH > 1 {
		sampleY = y - y%mosaicH
	}
	for x := 0; x < ScreenWidth; x++ {
		sampleX := x
		if mosaicW > 1 {
			sampleX = x - x%mosaicW
		}
		off := frame + uint32(sampleY*ScreenWidth+sampleX)
		idx := int(p.ReadVRAM8(0x06000000 + off))
		if idx == 0 {
			continue
		}
		p.bg[2][x] = pixel{color: p.paletteColor(0, idx), opaque: true, priority: int(p.bgcnt[2] & 0x3)}
	}
}

func (p *PPU) renderBitmapMode5(y int) {
	const w, h = 160, 128
	if y >= h {
		return
	}
	frame := uint32(0)
	if p.dispcnt&(1<<4) != 0 {
		frame = 0xA000
	}
	mosaicW, mosaicH := 1, 1
	if p.bgcnt[2]&(1<<6) != 0 {
		mosaicW, mosaicH = p.bgMosaicSize()
	}
	sampleY := y
	if mosaicH > 1 {
		sampleY = y - y%mosaicH
	}
	for x := 0; x < w; x++ {
		sampleX := x
		if mosaicW > 1 {
			sampleX = x - x%mosaicW
		}
		off := frame + uint32(sampleY*w+sampleX)*2
		p.bg[2][x] = pixel{color: p.ReadVRAM16(0x06000000 + off), opaque: true, priority: int(p.bgcnt[2] & 0x3)}
	}
}

// --- Sprites -----------------------------------------------------------------

// renderSprites draws every object that overlaps scanline y, using the OAM
// region cache to only visit entries whose bounding box actually reaches
// this row instead of scanning all 128 OAM entries. Objects are drawn in
// (priority, OAM index) order regardless of which region cell first
// produced them, matching the hardware's fixed sprite precedence rule.
func (p *PPU) renderSprites(y int) {
	ry := y / regionCellDots
	if ry >= regionsH {
		ry = regionsH - 1
	}

	var seen [128]bool
	var order []uint8
	for rx := 0; rx < regionsW; rx++ {
		for _, idx := range p.objCache.regions[regionIndex(rx, ry)] {
			if !seen[idx] {
				seen[idx] = true
				order = append(order, idx)
			}
		}
	}
	sort.Slice(order, func(i, j int) bool {
		ai, aj := p.objCache.attrs[order[i]], p.objCache.attrs[order[j]]
		if ai.priority != aj.priority {
			return ai.priority < aj.priority
		}
		return order[i] < order[j]
	})

	for _, idx := range order {
		a := p.objCache.attrs[idx]
		if a.mode == 2 {
			p.markOBJWindowRow(a, y)
			continue
		}
		p.drawSpriteRow(a, y)
	}
}

// affineObjTexel maps a screen-relative (col,row) within an affine object's
// bounding box to a texel in the object's own tile space, or ok=false if it
// falls outside the source tiles (possible whenever doubleSize is set).
func affineObjTexel(p *PPU, a objAttrs, col, row int) (tx, ty int, ok bool) {
	pa, pb, pc, pd := p.affineParams(a.affineIdx)
	halfW, halfH := a.boundW/2, a.boundH/2
	relX, relY := col-halfW, row-halfH
	texX := ((int(pa)*relX + int(pb)*relY) >> 8) + a.objW/2
	texY := ((int(pc)*relX + int(pd)*relY) >> 8) + a.objH/2
	if texX < 0 || texX >= a.objW || texY < 0 || texY >= a.objH {
		return 0, 0, false
	}
	return texX, texY, true
}

func (p *PPU) drawSpriteRow(a objAttrs, y int) {
	h := a.boundH
	sy := effectiveY(a, h)
	row := y - sy
	if row < 0 || row >= h {
		return
	}

	mosaicRow := row
	mosaicColStep := 1
	if a.mosaic {
		mw, mh := p.objMosaicSize()
		if mh > 1 {
			mosaicRow = row - row%mh
		}
		mosaicColStep = mw
	}

	mapStride := 32
	if a.colorMode8bpp {
		mapStride = 16
	}
	charBase := uint32(a.tileIndex)

	for col := 0; col < a.boundW; col++ {
		x := a.x + col
		if x < 0 || x >= ScreenWidth {
			continue
		}
		sampleCol := col
		if mosaicColStep > 1 {
			sampleCol = col - col%mosaicColStep
		}

		var tx, ty int
		if a.affine {
			texX, texY, ok := affineObjTexel(p, a, sampleCol, mosaicRow)
			if !ok {
				continue
			}
			tx, ty = texX, texY
		} else {
			tx, ty = sampleCol, mosaicRow
			if a.hFlip {
				tx = a.objW - 1 - tx
			}
			if a.vFlip {
				ty = a.objH - 1 - ty
			}
		}

		tileCol, tileRow := tx/8, ty/8
		fineX, fineY := tx%8, ty%8

		var tileNum uint32
		if p.objMapping1D() {
			tileNum = charBase + uint32(tileRow*(a.objW/8)+tileCol)
		} else {
			tileNum = charBase + uint32(tileRow*mapStride+tileCol)
		}

		var colorIdx int
		if a.colorMode8bpp {
			addr := 0x10000 + tileNum*64 + uint32(fineY*8+fineX)
			colorIdx = int(p.ReadVRAM8(0x06000000 + addr))
		} else {
			addr := 0x10000 + tileNum*32 + uint32(fineY*4+fineX/2)
			b := p.ReadVRAM8(0x06000000 + addr)
			if fineX%2 == 0 {
				colorIdx = int(b & 0xF)
			} else {
				colorIdx = int(b >> 4)
			}
		}
		if colorIdx == 0 {
			continue
		}
		if a.priority < p.objPr[x] {
			bank := 0
			if !a.colorMode8bpp {
				bank = a.palBank
			}
			p.obj[x] = pixel{
				color:           p.paletteColor(16+bank, colorIdx),
				opaque:          true,
				priority:        a.priority,
				semiTransparent: a.mode == 1,
			}
			p.objPr[x] = a.priority
		}
	}
}

// markOBJWindowRow records, for entries using OBJ-window mode, which pixels
// of this scanline fall inside the object's shape (its affine-transformed
// shape when rotated/scaled) rather than drawing a visible sprite.
func (p *PPU) markOBJWindowRow(a objAttrs, y int) {
	h := a.boundH
	sy := effectiveY(a, h)
	row := y - sy
	if row < 0 || row >= h {
		return
	}
	for col := 0; col < a.boundW; col++ {
		x := a.x + col
		if x < 0 || x >= ScreenWidth {
			continue
		}
		if a.affine {
			if _, _, ok := affineObjTexel(p, a, col, row); !ok {
				continue
			}
		}
		p.objWindow[x] = true
	}
}

// --- Window region masking ----------------------------------------------------

func windowRangeX(reg uint16) (x1, x2 int) {
	x1 = int(reg >> 8)
	x2 = int(reg & 0xFF)
	if x2 > ScreenWidth || x2 < x1 {
		x2 = ScreenWidth
	}
	return
}

func windowRangeY(reg uint16) (y1, y2 int) {
	y1 = int(reg >> 8)
	y2 = int(reg & 0xFF)
	if y2 > ScreenHeight || y2 < y1 {
		y2 = ScreenHeight
	}
	return
}

// decodeWinMask splits a WININ/WINOUT byte into its per-layer display and
// blend-effect enable bits.
func decodeWinMask(b byte) (bgMask [4]bool, objMask, blendMask bool) {
	for i := 0; i < 4; i++ {
		bgMask[i] = b&(1<<uint(i)) != 0
	}
	objMask = b&(1<<4) != 0
	blendMask = b&(1<<5) != 0
	return
}

// windowMaskAt resolves which layers are visible/blendable at (x,y),
// evaluating WIN0 > WIN1 > OBJ window > WINOUT in priority order. With no
// window enabled at all, every layer is visible and blending is unmasked.
func (p *PPU) windowMaskAt(x, y, w0x1, w0x2, w0y1, w0y2, w1x1, w1x2, w1y1, w1y2 int) (bgMask [4]bool, objMask, blendMask bool) {
	if !p.anyWindow() {
		for i := range bgMask {
			bgMask[i] = true
		}
		return bgMask, true, true
	}
	if p.winEnabled(0) && x >= w0x1 && x < w0x2 && y >= w0y1 && y < w0y2 {
		return decodeWinMask(byte(p.winin))
	}
	if p.winEnabled(1) && x >= w1x1 && x < w1x2 && y >= w1y1 && y < w1y2 {
		return decodeWinMask(byte(p.winin >> 8))
	}
	if p.objWinEnabled() && p.objWindow[x] {
		return decodeWinMask(byte(p.winout >> 8))
	}
	return decodeWinMask(byte(p.winout))
}

// --- Final compositing: window masking, priority order, BLDCNT blending ----

// layerKind numbers the BLDCNT target-selection bits: 0-3 are BG0-3, 4 is
// OBJ, 5 is the backdrop.
const backdropKind = 5

func (p *PPU) isFirstTarget(kind int) bool  { return p.bldcnt&(1<<uint(kind)) != 0 }
func (p *PPU) isSecondTarget(kind int) bool { return p.bldcnt&(1<<uint(8+kind)) != 0 }

func (p *PPU) composite(y int, row *[ScreenWidth]uint16) {
	backdrop := p.paletteColor(0, 0)
	blendMode := int((p.bldcnt >> 6) & 0x3)

	w0x1, w0x2 := windowRangeX(p.win0h)
	w0y1, w0y2 := windowRangeY(p.win0v)
	w1x1, w1x2 := windowRangeX(p.win1h)
	w1y1, w1y2 := windowRangeY(p.win1v)

	type layer struct {
		px   pixel
		kind int // 0-3 = bg index, 4 = obj
	}

	for x := 0; x < ScreenWidth; x++ {
		bgMask, objMask, blendMask := p.windowMaskAt(x, y, w0x1, w0x2, w0y1, w0y2, w1x1, w1x2, w1y1, w1y2)

		var candidates []layer
		for i := 0; i < 4; i++ {
			if p.bg[i][x].opaque && bgMask[i] {
				candidates = append(candidates, layer{p.bg[i][x], i})
			}
		}
		if p.obj[x].opaque && objMask {
			candidates = append(candidates, layer{p.obj[x], 4})
		}

		best := -1
		bestPr := 5
		for ci, c := range candidates {
			if c.px.priority < bestPr || (c.px.priority == bestPr && c.kind == 4) {
				bestPr = c.px.priority
				best = ci
			}
		}

		color := backdrop
		topKind := backdropKind
		topSemiTransparent := false
		if best != -1 {
			color = candidates[best].px.color
			topKind = candidates[best].kind
			topSemiTransparent = candidates[best].px.semiTransparent
		}

		if blendMask {
			second := -1
			secondPr := 5
			for ci, c := range candidates {
				if ci == best {
					continue
				}
				if c.px.priority < secondPr {
					secondPr = c.px.priority
					second = ci
				}
			}
			secondColor, secondKind := backdrop, backdropKind
			if second != -1 {
				secondColor = candidates[second].px.color
				secondKind = candidates[second].kind
			}

			// A semi-transparent OBJ always alpha-blends with whatever is
			// beneath it, overriding BLDCNT's configured mode, as long as
			// it is itself a valid first target and the layer below is a
			// valid second target.
			mode := blendMode
			if topSemiTransparent && p.isFirstTarget(topKind) && p.isSecondTarget(secondKind) {
				mode = 1
			}

			switch {
			case mode == 1 && p.isFirstTarget(topKind) && p.isSecondTarget(secondKind):
				color = alphaBlend(color, secondColor, p.bldalpha)
			case mode == 2 && p.isFirstTarget(topKind):
				color = brightnessInc(color, byte(p.bldy))
			case mode == 3 && p.isFirstTarget(topKind):
				color = brightnessDec(color, byte(p.bldy))
			}
		}

		row[x] = color
	}
}

func channel(c uint16, shift uint) int { return int(c>>shift) & 0x1F }
func packColor(r, g, b int) uint16 {
	clamp := func(v int) int {
		if v < 0 {
			return 0
		}
		if v > 31 {
			return 31
		}
		return v
	}
	return uint16(clamp(r)) | uint16(clamp(g))<<5 | uint16(clamp(b))<<10
}

func alphaBlend(top, bottom uint16, bldalpha uint16) uint16 {
	eva := int(bldalpha & 0x1F)
	evb := int((bldalpha >> 8) & 0x1F)
	r := (channel(top, 0)*eva + channel(bottom, 0)*evb) / 16
	g := (channel(top, 5)*eva + channel(bottom, 5)*evb) / 16
	b := (channel(top, 10)*eva + channel(bottom, 10)*evb) / 16
	return packColor(r, g, b)
}

func brightnessInc(c uint16, evy byte) uint16 {
	f := int(evy & 0x1F)
	r := channel(c, 0) + (31-channel(c, 0))*f/16
	g := channel(c, 5) + (31-channel(c, 5))*f/16
	b := channel(c, 10) + (31-channel(c, 10))*f/16
	return packColor(r, g, b)
}

func brightnessDec(c uint16, evy byte) uint16 {
	f := int(evy & 0x1F)
	r := channel(c, 0) - channel(c, 0)*f/16
	g := channel(c, 5) - channel(c, 5)*f/16
	b := channel(c, 10) - channel(c, 10)*f/16
	return packColor(r, g, b)
}
