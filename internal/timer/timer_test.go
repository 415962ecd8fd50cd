package timer

import (
	"testing"

	"github.com/FabianRolfMatthiasNoll/gbacore/internal/irq"
)

func TestOverflowWrapsAndReloads(t *testing.T) {
	b := New(irq.New())
	b.WriteReload(0, 0xFFF0)
	b.WriteControl(0, 0x80) // prescaler /1, start
	if b.ReadCounter(0) != 0xFFF0 {
		t.Fatalf("start should reload counter, got %#x", b.ReadCounter(0))
	}
	ov := b.Step(32) // 16 ticks to overflow, 16 more afterwards: one full reload period
	if !ov[0] {
		t.Fatalf("expected overflow on channel 0")
	}
	want := uint16(0xFFF0 + 16%16) // reload + remainder
	if b.ReadCounter(0) != want {
		t.Fatalf("counter after overflow got %#x want %#x", b.ReadCounter(0), want)
	}
}

func TestCascadeCountsPredecessorOverflows(t *testing.T) {
	b := New(irq.New())
	b.WriteReload(0, 0xFFFF)
	b.WriteControl(0, 0x80) // /1
	b.WriteReload(1, 0)
	b.WriteControl(1, 0x84) // cascade, start

	ov := b.Step(1) // channel 0 overflows once
	if !ov[0] {
		t.Fatalf("channel 0 should overflow")
	}
	if b.ReadCounter(1) != 1 {
		t.Fatalf("cascaded channel 1 should count 1 tick, got %d", b.ReadCounter(1))
	}
}

func TestIRQRequestedOnOverflowWhenEnabled(t *testing.T) {
	ic := irq.New()
	ic.SetIE(1 << uint(irq.Timer3))
	b := New(ic)
	b.WriteReload(3, 0xFFFF)
	b.WriteControl(3, 0xC0) // start + irq enable, /1
	b.Step(2)
	if !ic.Pending() {
		t.Fatalf("timer overflow with irq enable should request Timer3 IRQ")
	}
}
