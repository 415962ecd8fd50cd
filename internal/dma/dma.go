// Package dma models the GBA's four-channel DMA engine: address-control
// modes, start timing, and the fixed-priority arbitration used by the
// top-level stepper, which services one channel per Step call.
package dma

import "github.com/FabianRolfMatthiasNoll/gbacore/internal/irq"

type AddrCtrl byte

const (
	Increment AddrCtrl = iota
	Decrement
	Fixed
	IncrementReload
)

type Timing byte

const (
	Immediate Timing = iota
	VBlank
	HBlank
	Special
)

// Bus is the minimal memory access the engine needs to move words without
// depending on the bus package (which in turn owns the Engine).
type Bus interface {
	Read16(addr uint32) uint16
	Write16(addr uint32, v uint16)
	Read32(addr uint32) uint32
	Write32(addr uint32, v uint32)
}

type channel struct {
	sad, dad  uint32
	wordCount uint16
	control   uint16

	curSrc, curDst uint32
	curCount       uint32
	triggered      bool
}

func (c *channel) enabled() bool    { return c.control&(1<<15) != 0 }
func (c *channel) irqEnabled() bool { return c.control&(1<<14) != 0 }
func (c *channel) timing() Timing   { return Timing((c.control >> 12) & 0x3) }
func (c *channel) wordTransfer() bool { return c.control&(1<<10) != 0 }
func (c *channel) repeat() bool     { return c.control&(1<<9) != 0 }
func (c *channel) srcCtrl() AddrCtrl { return AddrCtrl((c.control >> 7) & 0x3) }
func (c *channel) dstCtrl() AddrCtrl { return AddrCtrl((c.control >> 5) & 0x3) }

// Engine owns all 4 DMA channels.
type Engine struct {
	ch  [4]channel
	irq *irq.Controller
	bus Bus
}

func New(ic *irq.Controller, bus Bus) *Engine {
	return &Engine{irq: ic, bus: bus}
}

func addrMask(ch int) uint32 {
	if ch == 0 {
		return 1<<27 - 1
	}
	return 1<<28 - 1
}

func defaultCount(ch int) uint32 {
	if ch == 3 {
		return 0x10000
	}
	return 0x4000
}

func (e *Engine) ReadSAD(ch int) uint32 { return e.ch[ch].sad }
func (e *Engine) WriteSAD(ch int, v uint32) { e.ch[ch].sad = v & addrMask(ch) }
func (e *Engine) ReadDAD(ch int) uint32 { return e.ch[ch].dad }
func (e *Engine) WriteDAD(ch int, v uint32) { e.ch[ch].dad = v & addrMask(ch) }
func (e *Engine) ReadCount(ch int) uint16    { return e.ch[ch].wordCount }
func (e *Engine) WriteCount(ch int, v uint16) { e.ch[ch].wordCount = v }
func (e *Engine) ReadControl(ch int) uint16  { return e.ch[ch].control }

// WriteControl applies DMAxCNT_H. A false-to-true transition of the enable
// bit latches the working source/dest/count registers and, for Immediate
// timing, marks the channel ready to transfer on the next Step.
func (e *Engine) WriteControl(ch int, v uint16) {
	c := &e.ch[ch]
	wasEnabled := c.enabled()
	c.control = v
	if c.enabled() && !wasEnabled {
		c.curSrc = c.sad
		c.curDst = c.dad
		if c.wordCount == 0 {
			c.curCount = defaultCount(ch)
		} else {
			c.curCount = uint32(c.wordCount)
		}
		c.triggered = c.timing() == Immediate
	}
}

// NotifyVBlank and NotifyHBlank arm any channel waiting on that start
// condition. Special timing is armed only by NotifySoundFIFO, for the
// FIFO-A/B sound DMA on channels 1 and 2; nothing arms channel 3's Special
// (video-capture) timing.
func (e *Engine) notify(t Timing) {
	for i := range e.ch {
		c := &e.ch[i]
		if c.enabled() && c.timing() == t {
			c.triggered = true
		}
	}
}

func (e *Engine) NotifyVBlank()  { e.notify(VBlank) }
func (e *Engine) NotifyHBlank()  { e.notify(HBlank) }

// NotifySoundFIFO arms channel 1 or 2 if it is configured for Special timing.
func (e *Engine) NotifySoundFIFO(fifoIndex int) {
	ch := 1 + fifoIndex
	c := &e.ch[ch]
	if c.enabled() && c.timing() == Special {
		c.triggered = true
	}
}

// Step looks for the first (lowest-index) enabled, triggered channel and
// runs its transfer, matching the hardware's fixed-priority arbitration.
// The channel's whole remaining count (four words for a sound FIFO channel)
// moves in this one call; a transfer is not split across Step calls, and no
// other channel is serviced in the same call.
// Returns true if a transfer happened.
func (e *Engine) Step() bool {
	for i := range e.ch {
		c := &e.ch[i]
		if c.enabled() && c.triggered {
			e.transferBlock(i)
			return true
		}
	}
	return false
}

func (e *Engine) transferBlock(ch int) {
	c := &e.ch[ch]

	isSoundFIFO := (ch == 1 || ch == 2) && c.timing() == Special
	if isSoundFIFO {
		// Sound FIFO DMA always moves exactly 4 words (16 bytes), 32-bit
		// wide, with the destination fixed at the FIFO address.
		for n := 0; n < 4; n++ {
			v := e.bus.Read32(c.curSrc)
			e.bus.Write32(c.curDst, v)
			c.curSrc = stepAddr(c.curSrc, c.srcCtrl(), 4)
		}
	} else {
		unit := uint32(2)
		if c.wordTransfer() {
			unit = 4
		}
		for c.curCount > 0 {
			if unit == 4 {
				e.bus.Write32(c.curDst, e.bus.Read32(c.curSrc))
			} else {
				e.bus.Write16(c.curDst, e.bus.Read16(c.curSrc))
			}
			c.curSrc = stepAddr(c.curSrc, c.srcCtrl(), unit)
			c.curDst = stepAddr(c.curDst, c.dstCtrl(), unit)
			c.curCount--
		}
	}

	if c.irqEnabled() {
		e.irq.Request(irq.Interrupt(int(irq.Dma0) + ch))
	}

	if c.repeat() && c.timing() != Immediate {
		if c.dstCtrl() == IncrementReload {
			c.curDst = c.dad
		}
		if c.wordCount == 0 {
			c.curCount = defaultCount(ch)
		} else {
			c.curCount = uint32(c.wordCount)
		}
		c.triggered = false
	} else {
		c.control &^= 1 << 15 // auto-clear enable
		c.triggered = false
	}
}

func stepAddr(addr uint32, ctrl AddrCtrl, unit uint32) uint32 {
	switch ctrl {
	case Decrement:
		return addr - unit
	case Fixed:
		return addr
	default: // Increment, IncrementReload
		return addr + unit
	}
}
