package keypad

import (
	"testing"

	"github.com/FabianRolfMatthiasNoll/gbacore/internal/irq"
)

func TestKEYINPUTActiveLow(t *testing.T) {
	k := New(irq.New())
	if k.KEYINPUT() != 0x3FF {
		t.Fatalf("no buttons pressed should read all 1s, got %#x", k.KEYINPUT())
	}
	k.SetPressed(A, true)
	if k.KEYINPUT()&1 != 0 {
		t.Fatalf("pressed A should clear bit 0")
	}
}

func TestAnyModeFiresOnOneMatch(t *testing.T) {
	ic := irq.New()
	ic.SetIE(1 << uint(irq.Keypad))
	k := New(ic)
	k.SetKEYCNT((1 << 14) | (1 << uint(A)) | (1 << uint(B)))
	k.SetPressed(A, true)
	k.CheckIRQ()
	if !ic.Pending() {
		t.Fatalf("any-mode should fire when one selected key is pressed")
	}
}

func TestAllModeRequiresEveryKey(t *testing.T) {
	ic := irq.New()
	ic.SetIE(1 << uint(irq.Keypad))
	k := New(ic)
	k.SetKEYCNT((1 << 14) | (1 << 15) | (1 << uint(A)) | (1 << uint(B)))
	k.SetPressed(A, true)
	k.CheckIRQ()
	if ic.Pending() {
		t.Fatalf("all-mode should not fire with only one of two keys pressed")
	}
	k.SetPressed(B, true)
	k.CheckIRQ()
	if !ic.Pending() {
		t.Fatalf("all-mode should fire once every selected key is pressed")
	}
}
