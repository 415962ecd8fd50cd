// Package emu wires the CPU core, bus, PPU, APU, DMA engine, timers and
// interrupt controller together into a runnable machine and owns the
// top-level stepping order.
package emu

import (
	"fmt"

	"github.com/FabianRolfMatthiasNoll/gbacore/internal/apu"
	"github.com/FabianRolfMatthiasNoll/gbacore/internal/bios"
	"github.com/FabianRolfMatthiasNoll/gbacore/internal/bus"
	"github.com/FabianRolfMatthiasNoll/gbacore/internal/cart"
	"github.com/FabianRolfMatthiasNoll/gbacore/internal/cpu"
	"github.com/FabianRolfMatthiasNoll/gbacore/internal/dma"
	"github.com/FabianRolfMatthiasNoll/gbacore/internal/irq"
	"github.com/FabianRolfMatthiasNoll/gbacore/internal/keypad"
	"github.com/FabianRolfMatthiasNoll/gbacore/internal/ppu"
	"github.com/FabianRolfMatthiasNoll/gbacore/internal/timer"
)

// Key re-exports keypad.Key so callers of Machine don't need to import the
// keypad package directly.
type Key = keypad.Key

// Machine owns every hardware component and drives them in lockstep.
type Machine struct {
	cfg Config

	CPU    *cpu.CPU
	Bus    *bus.Bus
	PPU    *ppu.PPU
	APU    *apu.APU
	DMA    *dma.Engine
	Timer  *timer.Bank
	IRQ    *irq.Controller
	Keypad *keypad.Keypad
	Cart   *cart.Cartridge
}

// New builds a Machine around a BIOS image, a parsed cartridge and the
// screen/audio sinks the PPU and APU draw into. cfg.SkipBIOS selects whether
// Reset constructs post-boot state directly or runs the real BIOS handoff.
func New(cfg Config, biosImage []byte, rom []byte, screen ppu.Screen, sink apu.Sink) (*Machine, error) {
	b, err := bios.New(biosImage)
	if err != nil {
		return nil, fmt.Errorf("emu: loading BIOS: %w", err)
	}
	c, err := cart.NewFromROM(rom)
	if err != nil {
		return nil, fmt.Errorf("emu: loading cartridge: %w", err)
	}

	ic := irq.New()
	p := ppu.New(ic, screen)
	a := apu.New(cfg.SampleRate, sink)
	t := timer.New(ic)
	kp := keypad.New(ic)

	mbus := bus.New(b, c, p, a, nil, t, ic, kp)
	d := dma.New(ic, mbus)
	mbus.DMA = d

	m := &Machine{
		cfg: cfg, Bus: mbus, PPU: p, APU: a, DMA: d, Timer: t, IRQ: ic, Keypad: kp, Cart: c,
	}
	m.CPU = cpu.New(mbus)
	m.CPU.Reset(cfg.SkipBIOS)
	return m, nil
}

// SetKeyPressed reports a button state change to the keypad. The KEYCNT
// interrupt condition is evaluated against it at the next VBlank (see Step).
func (m *Machine) SetKeyPressed(k Key, down bool) {
	m.Keypad.SetPressed(k, down)
}

// Step advances the machine by exactly one CPU instruction (or one cycle of
// halted wait) and everything that happens alongside it: interrupt
// recognition, PPU dot/scanline advance, timer and APU ticking, and DMA
// arbitration. It returns the number of CPU cycles the step consumed, which
// callers use to drive frame pacing.
func (m *Machine) Step() int {
	m.Bus.SetPCInBIOS(m.CPU.Regs().PC() < bios.Size)

	if m.IRQ.ShouldInterrupt() {
		m.CPU.RaiseException(cpu.IRQInterrupt)
	}
	m.CPU.CheckWake(m.IRQ.Pending())

	cycles := m.CPU.Step()

	if hblank, vblank := m.PPU.Step(cycles); hblank || vblank {
		if hblank {
			m.DMA.NotifyHBlank()
		}
		if vblank {
			m.DMA.NotifyVBlank()
			m.Keypad.CheckIRQ()
		}
	}

	overflow := m.Timer.Step(cycles)
	for ch, fired := range overflow {
		if !fired {
			continue
		}
		m.APU.NotifyTimerOverflow(ch)
		if m.APU.FifoANeedsRefill() {
			m.DMA.NotifySoundFIFO(0)
		}
		if m.APU.FifoBNeedsRefill() {
			m.DMA.NotifySoundFIFO(1)
		}
	}

	m.APU.Step(cycles)

	for m.DMA.Step() {
		// drain every channel triggered by this step before moving on; each
		// call runs one channel's whole transfer.
	}

	if m.Bus.HaltRequested() {
		m.CPU.Halt()
	}

	return cycles
}

// RunFrame steps the machine through one full visible+VBlank period: past
// the current VCount==160 edge (if the previous RunFrame call just landed on
// it) and up to the next one, or until the CPU enters the Errored state.
func (m *Machine) RunFrame() error {
	for m.PPU.VCount() == 160 {
		if err := m.stepChecked(); err != nil {
			return err
		}
	}
	for m.PPU.VCount() != 160 {
		if err := m.stepChecked(); err != nil {
			return err
		}
	}
	return nil
}

func (m *Machine) stepChecked() error {
	if m.CPU.RunState() == cpu.Errored {
		return fmt.Errorf("emu: CPU halted with error: %w", m.CPU.Err())
	}
	m.Step()
	return nil
}
