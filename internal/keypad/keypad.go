// Package keypad models KEYINPUT and KEYCNT: button state and the
// programmable "any pressed" / "all pressed" IRQ condition.
package keypad

import "github.com/FabianRolfMatthiasNoll/gbacore/internal/irq"

type Key int

const (
	A Key = iota
	B
	Select
	Start
	Right
	Left
	Up
	Down
	R
	L
)

type Keypad struct {
	pressed uint16 // bit set = pressed, in Key bit order
	cnt     uint16 // KEYCNT: bits 0-9 select mask, bit14 enable, bit15 condition (0=any,1=all)
	irq     *irq.Controller
}

func New(ic *irq.Controller) *Keypad { return &Keypad{irq: ic} }

func (k *Keypad) SetPressed(key Key, down bool) {
	if down {
		k.pressed |= 1 << uint(key)
	} else {
		k.pressed &^= 1 << uint(key)
	}
}

// KEYINPUT is active-low: a 0 bit means pressed.
func (k *Keypad) KEYINPUT() uint16 { return ^k.pressed & 0x3FF }

func (k *Keypad) KEYCNT() uint16    { return k.cnt }
func (k *Keypad) SetKEYCNT(v uint16) { k.cnt = v & 0xC3FF }

// CheckIRQ evaluates the KEYCNT condition against current button state and
// requests the Keypad interrupt if it fires. Called once per frame (on
// VBlank), matching how real software polls it.
func (k *Keypad) CheckIRQ() {
	if k.cnt&(1<<14) == 0 {
		return
	}
	mask := k.cnt & 0x3FF
	selected := k.pressed & mask
	all := k.cnt&(1<<15) != 0
	var fire bool
	if all {
		fire = selected == mask
	} else {
		fire = selected != 0
	}
	if fire {
		k.irq.Request(irq.Keypad)
	}
}
