package reg

// PSR is a packed CPSR/SPSR: condition flags, control bits, and the mode
// field, matching the ARM7TDMI's bit layout exactly.
//
//	31 30 29 28 27        8 7 6 5 4    0
//	N  Z  C  V  (reserved)  I F T  M[4:0]
type PSR uint32

const (
	flagN = 1 << 31
	flagZ = 1 << 30
	flagC = 1 << 29
	flagV = 1 << 28
	flagI = 1 << 7
	flagF = 1 << 6
	flagT = 1 << 5
	maskM = 0x1F
)

func NewPSR(m Mode, t State, irqDisabled, fiqDisabled bool) PSR {
	p := PSR(m) & maskM
	if t == Thumb {
		p |= flagT
	}
	if irqDisabled {
		p |= flagI
	}
	if fiqDisabled {
		p |= flagF
	}
	return p
}

func (p PSR) N() bool { return p&flagN != 0 }
func (p PSR) Z() bool { return p&flagZ != 0 }
func (p PSR) C() bool { return p&flagC != 0 }
func (p PSR) V() bool { return p&flagV != 0 }
func (p PSR) IRQDisabled() bool { return p&flagI != 0 }
func (p PSR) FIQDisabled() bool { return p&flagF != 0 }
func (p PSR) State() State {
	if p&flagT != 0 {
		return Thumb
	}
	return ARM
}

// Mode returns the mode field. If the field does not encode one of the
// seven valid modes, the caller decides how to handle it: low-level PSR
// reconstruction (e.g. restoring CPSR from SPSR on exception return) falls
// back to UndefinedInstr, matching the reference implementation; the MSR
// instruction instead treats this as the fatal "invalid mode written"
// condition (see cpu.Error).
func (p PSR) Mode() Mode {
	m := Mode(p & maskM)
	if !m.Valid() {
		return UndefinedInstr
	}
	return m
}

// RawMode returns the M field without the UndefinedInstr fallback, for
// callers (MSR) that must detect the invalid-mode case themselves.
func (p PSR) RawMode() Mode { return Mode(p & maskM) }

func (p PSR) WithFlags(n, z, c, v bool) PSR {
	p &^= flagN | flagZ | flagC | flagV
	if n {
		p |= flagN
	}
	if z {
		p |= flagZ
	}
	if c {
		p |= flagC
	}
	if v {
		p |= flagV
	}
	return p
}

func (p PSR) WithMode(m Mode) PSR {
	return (p &^ maskM) | PSR(m&maskM)
}

func (p PSR) WithState(s State) PSR {
	if s == Thumb {
		return p | flagT
	}
	return p &^ flagT
}

func (p PSR) WithIRQDisabled(v bool) PSR {
	if v {
		return p | flagI
	}
	return p &^ flagI
}

func (p PSR) WithFIQDisabled(v bool) PSR {
	if v {
		return p | flagF
	}
	return p &^ flagF
}

// FlagsBits returns just the top byte (N/Z/C/V), as read/written by MSR's
// flags-only ("_flg") operand form.
func (p PSR) FlagsBits() uint32 { return uint32(p) & 0xF0000000 }

func (p PSR) ControlBits() uint32 { return uint32(p) & 0x000000FF }
