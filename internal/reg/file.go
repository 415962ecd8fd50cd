package reg

// File is the full ARM7TDMI register file: R0-R15, CPSR, and the banked
// copies that the current mode's R8-R14 (FIQ) or R13-R14 (others) are
// swapped against, plus one SPSR per privileged mode.
type File struct {
	r    [16]uint32
	cpsr PSR

	// fiqLow holds R8-R12 for every non-FIQ mode (User/System/IRQ/SVC/Abt/Und
	// all share this bank); fiqHigh holds R8-R12 while in FIQ mode.
	fiqLow  [5]uint32
	fiqHigh [5]uint32

	// sp/lr banks, indexed by bankIndex(mode): 0=usr/sys,1=fiq,2=irq,3=svc,4=abt,5=und
	sp [6]uint32
	lr [6]uint32

	spsr [6]PSR
}

// New builds a register file reset to the supervisor mode, ARM state,
// IRQ/FIQ disabled entry state used on a fresh reset vector.
func New() *File {
	f := &File{}
	f.cpsr = NewPSR(Supervisor, ARM, true, true)
	return f
}

// R returns general register n (0-15) as seen by the current mode.
func (f *File) R(n int) uint32 { return f.r[n] }

// SetR writes general register n (0-15). Writing R15 does not by itself
// realign or flush the pipeline; callers that branch must do that
// explicitly.
func (f *File) SetR(n int, v uint32) { f.r[n] = v }

func (f *File) PC() uint32     { return f.r[15] }
func (f *File) SetPC(v uint32) { f.r[15] = v }
func (f *File) LR() uint32     { return f.r[14] }
func (f *File) SetLR(v uint32) { f.r[14] = v }
func (f *File) SP() uint32     { return f.r[13] }
func (f *File) SetSP(v uint32) { f.r[13] = v }

func (f *File) CPSR() PSR     { return f.cpsr }
func (f *File) SetCPSR(p PSR) { f.switchBank(f.cpsr.Mode(), p.Mode()); f.cpsr = p }

// SPSR returns the SPSR of the current mode. Reading it in User/System mode
// (which have none) returns the CPSR as a harmless default; callers must
// not rely on this for real SPSR semantics in those modes.
func (f *File) SPSR() PSR {
	if !f.cpsr.Mode().HasSPSR() {
		return f.cpsr
	}
	return f.spsr[bankIndex(f.cpsr.Mode())]
}

func (f *File) SetSPSR(p PSR) {
	if !f.cpsr.Mode().HasSPSR() {
		return
	}
	f.spsr[bankIndex(f.cpsr.Mode())] = p
}

// SetMode transitions the bank in use without touching the flags/state
// bits of the CPSR, matching exception entry (which sets a new mode, not a
// freshly constructed CPSR).
func (f *File) SetMode(m Mode) {
	f.switchBank(f.cpsr.Mode(), m)
	f.cpsr = f.cpsr.WithMode(m)
}

// switchBank copies R8-R14 out to the old mode's bank and loads the new
// mode's bank into R8-R14, mirroring the ARM7TDMI's hardware register bank
// swap on mode transition.
func (f *File) switchBank(from, to Mode) {
	if from == to {
		return
	}
	// Save R8-R12.
	if from == FIQ {
		copy(f.fiqHigh[:], f.r[8:13])
	} else {
		copy(f.fiqLow[:], f.r[8:13])
	}
	// Save R13-R14.
	fromIdx := bankIndex(from)
	f.sp[fromIdx] = f.r[13]
	f.lr[fromIdx] = f.r[14]

	// Load R8-R12 for the new mode.
	if to == FIQ {
		copy(f.r[8:13], f.fiqHigh[:])
	} else {
		copy(f.r[8:13], f.fiqLow[:])
	}
	// Load R13-R14 for the new mode.
	toIdx := bankIndex(to)
	f.r[13] = f.sp[toIdx]
	f.r[14] = f.lr[toIdx]
}
