package irq

import "testing"

func TestRequestSetsIFBit(t *testing.T) {
	c := New()
	c.Request(Timer2)
	if c.IF() != 1<<5 {
		t.Fatalf("IF got %#x want %#x", c.IF(), 1<<5)
	}
}

func TestWriteOneToClear(t *testing.T) {
	c := New()
	c.Request(VBlank)
	c.Request(Dma1)
	c.WriteIF(1 << uint(VBlank))
	if c.IF() != 1<<uint(Dma1) {
		t.Fatalf("IF after clearing VBlank got %#x want %#x", c.IF(), 1<<uint(Dma1))
	}
}

func TestPendingIgnoresIME(t *testing.T) {
	c := New()
	c.SetIE(1 << uint(Serial))
	c.Request(Serial)
	c.SetIME(false)
	if !c.Pending() {
		t.Fatalf("Pending should be true regardless of IME")
	}
	if c.ShouldInterrupt() {
		t.Fatalf("ShouldInterrupt must require IME")
	}
	c.SetIME(true)
	if !c.ShouldInterrupt() {
		t.Fatalf("ShouldInterrupt should be true once IME is set")
	}
}

func TestPendingRequiresIEEnable(t *testing.T) {
	c := New()
	c.SetIME(true)
	c.Request(Keypad)
	if c.Pending() {
		t.Fatalf("Pending should require the matching IE bit")
	}
}
