package emu

import "testing"

type captureScreen struct{ lines int }

func (s *captureScreen) DrawScanline(int, [240]uint16) { s.lines++ }

type nullSink struct{}

func (nullSink) PushSample(int16, int16) {}

func testROM() []byte {
	rom := make([]byte, 0x1000)
	rom[0xB2] = 0x96
	// entry point: B -2 (branch to self), so a skip-BIOS boot never runs off
	// into open-bus territory while the test steps a handful of instructions.
	rom[0] = 0xFE
	rom[1] = 0xFF
	rom[2] = 0xFF
	rom[3] = 0xEA
	return rom
}

func newTestMachine(t *testing.T) (*Machine, *captureScreen) {
	t.Helper()
	scr := &captureScreen{}
	m, err := New(Config{SkipBIOS: true, SampleRate: 32768}, make([]byte, 16*1024), testROM(), scr, nullSink{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return m, scr
}

func TestNewResetsCPUToCartEntryPoint(t *testing.T) {
	m, _ := newTestMachine(t)
	if got := m.CPU.Regs().PC(); got != 0x08000000+8 {
		t.Fatalf("PC after skip-BIOS reset = %#x, want cart entry + pipeline offset", got)
	}
}

func TestStepAdvancesPPUAndReturnsPositiveCycles(t *testing.T) {
	m, _ := newTestMachine(t)
	cycles := m.Step()
	if cycles <= 0 {
		t.Fatalf("Step returned %d cycles, want > 0", cycles)
	}
}

func TestSetKeyPressedUpdatesKEYINPUT(t *testing.T) {
	m, _ := newTestMachine(t)
	before := m.Keypad.KEYINPUT()
	m.SetKeyPressed(Key(0), true) // A
	after := m.Keypad.KEYINPUT()
	if before == after {
		t.Fatalf("KEYINPUT should change once a button is pressed")
	}
}

func TestRunFrameDrawsScanlinesAndReturnsToVBlankEdge(t *testing.T) {
	m, scr := newTestMachine(t)
	if err := m.RunFrame(); err != nil {
		t.Fatalf("RunFrame: %v", err)
	}
	if scr.lines == 0 {
		t.Fatalf("expected at least one scanline drawn across a frame")
	}
	if m.PPU.VCount() != 160 {
		t.Fatalf("RunFrame should stop at the VCount==160 edge, got %d", m.PPU.VCount())
	}
}
