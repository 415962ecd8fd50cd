// Package timer models the GBA's four prescaled, optionally cascading,
// 16-bit timer counters.
package timer

import "github.com/FabianRolfMatthiasNoll/gbacore/internal/irq"

var prescalerDiv = [4]uint32{1, 64, 256, 1024}

type timer struct {
	counter uint16
	reload  uint16
	control byte // bit0-1 prescaler select, bit2 cascade, bit6 irq enable, bit7 start
	accum   uint32
	started bool
}

func (t *timer) prescaler() uint32 { return prescalerDiv[t.control&0x3] }
func (t *timer) cascade() bool     { return t.control&0x04 != 0 }
func (t *timer) irqEnabled() bool  { return t.control&0x40 != 0 }
func (t *timer) enabled() bool     { return t.control&0x80 != 0 }

// Bank holds all 4 channels and the IRQ controller they request through.
type Bank struct {
	t   [4]timer
	irq *irq.Controller
}

func New(ic *irq.Controller) *Bank { return &Bank{irq: ic} }

// advance adds ticks to channel i's counter, handling 16-bit overflow with
// exact remainder/reload-period arithmetic, and returns the number of
// overflows that occurred (for cascade propagation and DMA/IRQ signalling).
func (b *Bank) advance(i int, ticks uint32) uint32 {
	t := &b.t[i]
	counter := uint32(t.counter)
	if counter+ticks <= 0xFFFF {
		t.counter = uint16(counter + ticks)
		return 0
	}
	toOverflow := 0xFFFF - counter + 1
	extra := ticks - toOverflow
	ticksPerPeriod := uint32(0x10000) - uint32(t.reload)
	overflowCount := uint32(1) + extra/ticksPerPeriod
	t.counter = t.reload + uint16(extra%ticksPerPeriod)

	if t.irqEnabled() {
		b.irq.Request(irq.Interrupt(int(irq.Timer0) + i))
	}
	return overflowCount
}

// ReadCounter returns TMn_CNT_L (the live counter value).
func (b *Bank) ReadCounter(ch int) uint16 { return b.t[ch].counter }

// ReadControl returns TMn_CNT_H.
func (b *Bank) ReadControl(ch int) byte { return b.t[ch].control }

// WriteReload sets TMn_CNT_L's write-only reload value.
func (b *Bank) WriteReload(ch int, v uint16) { b.t[ch].reload = v }

// WriteControl sets TMn_CNT_H. A false-to-true transition of the start bit
// reloads the live counter from the reload register immediately.
func (b *Bank) WriteControl(ch int, v byte) {
	t := &b.t[ch]
	wasStarted := t.enabled()
	t.control = v & 0xC7
	if t.enabled() && !wasStarted {
		t.counter = t.reload
		t.accum = 0
	}
}

// Step advances every enabled timer by cpuCycles CPU cycles and reports
// which channels overflowed this call, in channel order so a cascaded
// channel sees its predecessor's fresh overflow count. The APU uses the
// Timer0/Timer1 overflow flags to trigger FIFO refills.
func (b *Bank) Step(cpuCycles int) (overflow [4]bool) {
	var counts [4]uint32
	var ov [4]uint32
	for i := 0; i < 4; i++ {
		t := &b.t[i]
		if !t.enabled() {
			continue
		}
		var ticks uint32
		if t.cascade() && i > 0 {
			ticks = ov[i-1]
			if ticks == 0 {
				continue
			}
		} else {
			t.accum += uint32(cpuCycles) * 1024 / t.prescaler()
			if t.accum < 1024 {
				continue
			}
			ticks = t.accum / 1024
			t.accum %= 1024
		}
		counts[i] = b.advance(i, ticks)
		ov[i] = counts[i]
		overflow[i] = counts[i] > 0
	}
	return overflow
}
