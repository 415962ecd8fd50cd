// Package cpu implements the ARM7TDMI core: banked registers, the ARM and
// Thumb instruction sets, the two-slot prefetch pipeline, and exception
// entry. It knows nothing about memory layout beyond the Bus interface.
package cpu

import "github.com/FabianRolfMatthiasNoll/gbacore/internal/reg"

type RunState int

const (
	NotRunning RunState = iota
	Running
	Errored
)

// Canonical stack pointers the real BIOS establishes before handing control
// to cartridge code; used when resetting with skipBIOS so a ROM builds the
// same call stack it would see on hardware.
const (
	svcStackTop    = 0x03007FE0
	irqStackTop    = 0x03007FA0
	systemStackTop = 0x03007F00
	cartEntryPoint = 0x08000000
)

type CPU struct {
	regs *reg.File
	bus  Bus

	runState RunState
	pending  uint8 // bitset indexed by Exception priority
	halted   bool

	pipe [2]uint32
	err  error
}

func New(bus Bus) *CPU {
	c := &CPU{bus: bus, regs: reg.New()}
	return c
}

func (c *CPU) Regs() *reg.File  { return c.regs }
func (c *CPU) RunState() RunState { return c.runState }
func (c *CPU) Err() error       { return c.err }
func (c *CPU) Halted() bool     { return c.halted }
func (c *CPU) Halt()            { c.halted = true }

// RaiseException sets the pending bit for kind; the CPU services it on the
// next Step call in priority order, once the mask (for FIQ/IRQ) allows it.
func (c *CPU) RaiseException(kind Exception) { c.pending |= 1 << uint(kind.Priority()) }

// CheckWake clears the CPU's halted state if any enabled interrupt is
// latched, independent of IME — a halted CPU wakes on IE&IF alone.
func (c *CPU) CheckWake(anyPending bool) {
	if anyPending {
		c.halted = false
	}
}

// Reset clears all pending exceptions and (re)establishes Running state. If
// skipBIOS is set, the canonical post-boot register state is constructed
// directly and PC set to the cartridge entry point, bypassing the BIOS
// handoff sequence; otherwise the CPU takes a real Reset exception and
// starts executing at the BIOS's reset vector.
func (c *CPU) Reset(skipBIOS bool) {
	c.regs = reg.New()
	c.pending = 0
	c.halted = false
	c.runState = Running
	c.err = nil

	if !skipBIOS {
		c.RaiseException(Reset)
		c.pending &^= 1 << uint(Reset.Priority())
		c.enterException(Reset)
		c.fillPipeline()
		return
	}

	c.regs.SetSP(svcStackTop)
	c.regs.SetMode(reg.IRQ)
	c.regs.SetSP(irqStackTop)
	c.regs.SetMode(reg.System)
	c.regs.SetSP(systemStackTop)
	cpsr := c.regs.CPSR().WithIRQDisabled(false).WithFIQDisabled(false)
	c.regs.SetCPSR(cpsr)
	c.regs.SetPC(cartEntryPoint)
	c.fillPipeline()
}

// Step services at most one pending, unmasked exception; otherwise it
// executes the instruction currently in pipeline slot 0 and advances the
// pipeline by one slot. It returns the number of CPU cycles consumed.
func (c *CPU) Step() int {
	if c.runState != Running {
		return 0
	}
	if c.halted {
		return 1
	}
	if e, ok := c.highestServiceable(); ok {
		c.pending &^= 1 << uint(e.Priority())
		c.enterException(e)
		c.fillPipeline()
		return 3
	}
	return c.executeOne()
}

func (c *CPU) highestServiceable() (Exception, bool) {
	if c.pending == 0 {
		return 0, false
	}
	cpsr := c.regs.CPSR()
	for p := 0; p < 7; p++ {
		if c.pending&(1<<uint(p)) == 0 {
			continue
		}
		e := Exception(p)
		if e == FIQ && cpsr.FIQDisabled() {
			continue
		}
		if e == IRQInterrupt && cpsr.IRQDisabled() {
			continue
		}
		return e, true
	}
	return 0, false
}

func (c *CPU) fail(err error) int {
	c.err = err
	c.runState = Errored
	return 0
}

// fillPipeline refetches both pipeline slots starting at the current PC and
// advances PC past them (2 instructions ahead), matching the prefetch
// model: after a branch or reset, the pipeline is always full before the
// next Step.
func (c *CPU) fillPipeline() {
	if c.regs.CPSR().State() == reg.Thumb {
		pc := c.regs.PC() &^ 1
		c.pipe[0] = uint32(c.bus.FetchThumb(pc))
		c.pipe[1] = uint32(c.bus.FetchThumb(pc + 2))
		c.regs.SetPC(pc + 4)
	} else {
		pc := c.regs.PC() &^ 3
		c.pipe[0] = c.bus.FetchARM(pc)
		c.pipe[1] = c.bus.FetchARM(pc + 4)
		c.regs.SetPC(pc + 8)
	}
}

// branchTo sets PC to addr (used by taken branches, BX, data-processing
// writes to R15, and LDM with PC in the list) and refills the pipeline.
// Callers that also change T must call SetCPSR/SetState first.
func (c *CPU) branchTo(addr uint32) {
	c.regs.SetPC(addr)
	c.fillPipeline()
}

func (c *CPU) executeOne() int {
	instr := c.pipe[0]
	c.pipe[0] = c.pipe[1]

	if c.regs.CPSR().State() == reg.Thumb {
		pc := c.regs.PC()
		res := c.executeThumb(uint16(instr))
		if res.branched {
			return res.cycles
		}
		c.pipe[1] = uint32(c.bus.FetchThumb(pc))
		c.regs.SetPC(pc + 2)
		if res.err != nil {
			return c.fail(res.err)
		}
		return res.cycles
	}

	pc := c.regs.PC()
	res := c.executeARM(instr)
	if res.branched {
		return res.cycles
	}
	c.pipe[1] = c.bus.FetchARM(pc)
	c.regs.SetPC(pc + 4)
	if res.err != nil {
		return c.fail(res.err)
	}
	return res.cycles
}

// execResult is the shared return shape of instruction handlers: cycle
// cost, whether the instruction already repositioned PC and refilled the
// pipeline itself (branchTo was called), and a fatal error if any.
type execResult struct {
	cycles   int
	branched bool
	err      error
}

func ok(cycles int) execResult            { return execResult{cycles: cycles} }
func branched(cycles int) execResult      { return execResult{cycles: cycles, branched: true} }
func failed(err error) execResult         { return execResult{err: err} }
