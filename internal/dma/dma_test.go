package dma

import (
	"encoding/binary"
	"testing"

	"github.com/FabianRolfMatthiasNoll/gbacore/internal/irq"
)

type flatBus struct{ mem []byte }

func newFlatBus() *flatBus { return &flatBus{mem: make([]byte, 0x10000)} }

func (b *flatBus) Read16(addr uint32) uint16 {
	return binary.LittleEndian.Uint16(b.mem[addr:])
}
func (b *flatBus) Write16(addr uint32, v uint16) {
	binary.LittleEndian.PutUint16(b.mem[addr:], v)
}
func (b *flatBus) Read32(addr uint32) uint32 {
	return binary.LittleEndian.Uint32(b.mem[addr:])
}
func (b *flatBus) Write32(addr uint32, v uint32) {
	binary.LittleEndian.PutUint32(b.mem[addr:], v)
}

func TestImmediateTransferCopiesWords(t *testing.T) {
	bus := newFlatBus()
	binary.LittleEndian.PutUint16(bus.mem[0x100:], 0xBEEF)
	binary.LittleEndian.PutUint16(bus.mem[0x102:], 0xCAFE)

	e := New(irq.New(), bus)
	e.WriteSAD(0, 0x100)
	e.WriteDAD(0, 0x200)
	e.WriteCount(0, 2)
	e.WriteControl(0, 1<<15) // enable, immediate, increment/increment, halfword

	if !e.Step() {
		t.Fatalf("expected a transfer to occur")
	}
	if v := bus.Read16(0x200); v != 0xBEEF {
		t.Fatalf("word0 got %#x want BEEF", v)
	}
	if v := bus.Read16(0x202); v != 0xCAFE {
		t.Fatalf("word1 got %#x want CAFE", v)
	}
	if e.ReadControl(0)&(1<<15) != 0 {
		t.Fatalf("non-repeat channel should auto-clear enable after firing")
	}
}

func TestVBlankTimingWaitsForNotify(t *testing.T) {
	bus := newFlatBus()
	e := New(irq.New(), bus)
	e.WriteSAD(0, 0x100)
	e.WriteDAD(0, 0x200)
	e.WriteCount(0, 1)
	e.WriteControl(0, (1<<15)|(1<<12)) // enable, VBlank timing

	if e.Step() {
		t.Fatalf("should not transfer before VBlank notify")
	}
	e.NotifyVBlank()
	if !e.Step() {
		t.Fatalf("should transfer once VBlank is notified")
	}
}

func TestSoundFIFOAlwaysMovesFourWords(t *testing.T) {
	bus := newFlatBus()
	for i := 0; i < 4; i++ {
		binary.LittleEndian.PutUint32(bus.mem[0x100+i*4:], uint32(i+1))
	}
	e := New(irq.New(), bus)
	e.WriteSAD(1, 0x100)
	e.WriteDAD(1, 0xA0) // stands in for FIFO A (0x040000A0), which lies outside this small test bus
	e.WriteCount(1, 100)      // count is ignored by FIFO DMA
	e.WriteControl(1, (1<<15)|(3<<12)|(1<<10)) // enable, special timing, 32-bit

	e.NotifySoundFIFO(0)
	e.Step()
	// Only verify the source pointer advanced by exactly 4 words (16 bytes).
	if e.ch[1].curSrc != 0x100+16 {
		t.Fatalf("FIFO DMA should always advance src by 16 bytes, got src=%#x", e.ch[1].curSrc)
	}
}

func TestIncrementReloadResetsDestOnRepeat(t *testing.T) {
	bus := newFlatBus()
	e := New(irq.New(), bus)
	e.WriteSAD(2, 0x100)
	e.WriteDAD(2, 0x200)
	e.WriteCount(2, 1)
	ctrl := uint16(1<<15) | (2 << 12) /* hblank */ | (1 << 9) /* repeat */ | (uint16(IncrementReload) << 5)
	e.WriteControl(2, ctrl)

	e.NotifyHBlank()
	e.Step()
	if e.ch[2].curDst != 0x200 {
		t.Fatalf("incr/reload dest should reset to DAD after a repeat block, got %#x", e.ch[2].curDst)
	}
	if e.ReadControl(2)&(1<<15) == 0 {
		t.Fatalf("repeat channel should stay enabled")
	}
}
