package cpu

import "github.com/FabianRolfMatthiasNoll/gbacore/internal/reg"

// Exception identifies one of the 7 ARM7TDMI exception types.
type Exception int

const (
	Reset Exception = iota
	DataAbort
	FIQ
	IRQInterrupt
	PrefetchAbort
	SoftwareInterrupt
	UndefinedInstruction
)

// Priority returns the fixed servicing priority (0 = highest), matching the
// bit index used in the CPU's pending-exception set.
func (e Exception) Priority() int { return int(e) }

func (e Exception) vectorAddr() uint32 {
	switch e {
	case Reset:
		return 0x00000000
	case UndefinedInstruction:
		return 0x00000004
	case SoftwareInterrupt:
		return 0x00000008
	case PrefetchAbort:
		return 0x0000000C
	case DataAbort:
		return 0x00000010
	case IRQInterrupt:
		return 0x00000018
	case FIQ:
		return 0x0000001C
	default:
		return 0
	}
}

func (e Exception) entryMode() reg.Mode {
	switch e {
	case Reset, SoftwareInterrupt:
		return reg.Supervisor
	case UndefinedInstruction:
		return reg.UndefinedInstr
	case PrefetchAbort, DataAbort:
		return reg.Abort
	case IRQInterrupt:
		return reg.IRQ
	case FIQ:
		return reg.FIQ
	default:
		return reg.Supervisor
	}
}

// returnOffset implements the table from the exception-entry rule: the
// distance added to (PC - 2*instrSize) to produce the value stashed in LR.
func (e Exception) returnOffset(state reg.State) uint32 {
	if state == reg.Thumb {
		switch e {
		case Reset:
			return 4
		case DataAbort:
			return 8
		case SoftwareInterrupt, UndefinedInstruction:
			return 2
		default: // FIQ, IRQ, PrefetchAbort
			return 4
		}
	}
	switch e {
	case Reset, DataAbort:
		return 8
	default: // FIQ, IRQ, PrefetchAbort, SoftwareInterrupt, UndefinedInstruction
		return 4
	}
}

// enterException performs the 7-step exception entry sequence from the
// register-file perspective; it does not touch the pipeline (the caller
// reloads it after).
func (c *CPU) enterException(e Exception) {
	savedCPSR := c.regs.CPSR()
	instrSize := uint32(4)
	if savedCPSR.State() == reg.Thumb {
		instrSize = 2
	}
	lr := c.regs.PC() - 2*instrSize + e.returnOffset(savedCPSR.State())

	c.regs.SetMode(e.entryMode())
	cpsr := c.regs.CPSR()
	cpsr = cpsr.WithIRQDisabled(true)
	if e == Reset || e == FIQ {
		cpsr = cpsr.WithFIQDisabled(true)
	}
	cpsr = cpsr.WithState(reg.ARM)
	c.regs.SetCPSR(cpsr)

	c.regs.SetSPSR(savedCPSR)
	c.regs.SetLR(lr)
	c.regs.SetPC(e.vectorAddr())
}
