package bus

import (
	"testing"

	"github.com/FabianRolfMatthiasNoll/gbacore/internal/apu"
	"github.com/FabianRolfMatthiasNoll/gbacore/internal/bios"
	"github.com/FabianRolfMatthiasNoll/gbacore/internal/cart"
	"github.com/FabianRolfMatthiasNoll/gbacore/internal/dma"
	"github.com/FabianRolfMatthiasNoll/gbacore/internal/irq"
	"github.com/FabianRolfMatthiasNoll/gbacore/internal/keypad"
	"github.com/FabianRolfMatthiasNoll/gbacore/internal/ppu"
	"github.com/FabianRolfMatthiasNoll/gbacore/internal/timer"
)

type nullScreen struct{}

func (nullScreen) DrawScanline(int, [ppu.ScreenWidth]uint16) {}

type nullSink struct{}

func (nullSink) PushSample(int16, int16) {}

func newTestBus(t *testing.T) *Bus {
	t.Helper()
	biosImg := make([]byte, bios.Size)
	b, err := bios.New(biosImg)
	if err != nil {
		t.Fatalf("bios.New: %v", err)
	}

	rom := make([]byte, 0x200)
	rom[0xB2] = 0x96
	c, err := cart.NewFromROM(rom)
	if err != nil {
		t.Fatalf("cart.NewFromROM: %v", err)
	}

	ic := irq.New()
	p := ppu.New(ic, nullScreen{})
	a := apu.New(32768, nullSink{})
	tm := timer.New(ic)
	kp := keypad.New(ic)

	bb := New(b, c, p, a, nil, tm, ic, kp)
	bb.DMA = dma.New(ic, bb)
	return bb
}

func TestEWRAMReadWriteRoundTripsAndMirrors(t *testing.T) {
	b := newTestBus(t)
	b.Write32(0x02000000, 0xDEADBEEF)
	if got := b.Read32(0x02000000); got != 0xDEADBEEF {
		t.Fatalf("EWRAM round trip = %#x, want 0xDEADBEEF", got)
	}
	if got := b.Read32(0x02040000); got != 0xDEADBEEF {
		t.Fatalf("EWRAM should mirror every 256KiB, got %#x", got)
	}
}

func TestIWRAMMirrorsEvery32K(t *testing.T) {
	b := newTestBus(t)
	b.Write16(0x03000000, 0x1234)
	if got := b.Read16(0x03008000); got != 0x1234 {
		t.Fatalf("IWRAM should mirror every 32KiB, got %#x", got)
	}
}

func TestIORegisterRoutesToPPUDispcnt(t *testing.T) {
	b := newTestBus(t)
	b.Write16(0x04000000, 0x0403)
	if got := b.Read16(0x04000000); got&0x7 != 3 {
		t.Fatalf("DISPCNT readback mode = %d, want 3", got&0x7)
	}
}

func TestIEIFRoundTripThroughIRQController(t *testing.T) {
	b := newTestBus(t)
	b.Write16(0x04000200, 0x3FFF)
	if got := b.Read16(0x04000200); got != 0x3FFF {
		t.Fatalf("IE readback = %#x, want 0x3FFF", got)
	}
	b.IRQ.Request(irq.VBlank)
	b.Write16(0x04000202, b.Read16(0x04000202))
	if b.Read16(0x04000202) != 0 {
		t.Fatalf("writing IF back to itself should acknowledge all set bits")
	}
}

func TestKeypadRegisterReadsPressedKeys(t *testing.T) {
	b := newTestBus(t)
	b.Keypad.SetPressed(keypad.A, true)
	if got := b.Read16(0x04000130); got&1 != 0 {
		t.Fatalf("KEYINPUT bit for A should read 0 (pressed) once set, got %#x", got)
	}
}

func TestBIOSOpenBusReturnsLastFetchOutsideBIOS(t *testing.T) {
	b := newTestBus(t)
	b.SetPCInBIOS(true)
	_ = b.FetchARM(0x0000)
	b.SetPCInBIOS(false)
	if got := b.Read32(0x0000); got != b.lastBIOSFetch {
		t.Fatalf("BIOS read outside BIOS execution should return last fetched word")
	}
}

func TestCartROMReadUsesOpenBusPastImageEnd(t *testing.T) {
	b := newTestBus(t)
	got := b.Read16(0x08000000 + 0x10000)
	want := uint16((0x10000 / 2) & 0xFFFF)
	if got != want {
		t.Fatalf("ROM open-bus read = %#x, want %#x", got, want)
	}
}
