package cpu

import "github.com/FabianRolfMatthiasNoll/gbacore/internal/reg"

// addc is a single 32-bit addition reporting its own carry-out and
// signed-overflow, the primitive the ADD/SUB/ADC/SBC decomposition below is
// built from.
func addc(a, b uint32) (sum uint32, carry, overflow bool) {
	full := uint64(a) + uint64(b)
	sum = uint32(full)
	carry = full > 0xFFFFFFFF
	overflow = (^(a^b))&(a^sum)&0x80000000 != 0
	return
}

// addWithCarry computes a+b+c as two sequential additions (a+b, then
// +c), with the final carry/overflow being the OR of each step's own
// carry/overflow — exactly the decomposition the arithmetic-flags rule
// specifies.
func addWithCarry(a, b, c uint32) (result uint32, carry, overflow bool) {
	sum1, c1, v1 := addc(a, b)
	sum2, c2, v2 := addc(sum1, c)
	return sum2, c1 || c2, v1 || v2
}

func boolToU32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

func addFlags(a, b uint32) (result uint32, carry, overflow bool) {
	return addWithCarry(a, b, 0)
}

func adcFlags(a, b uint32, carryIn bool) (result uint32, carry, overflow bool) {
	return addWithCarry(a, b, boolToU32(carryIn))
}

// subFlags computes a-b via a + ^b + 1; its carry output is already "NOT
// borrow" as the spec requires, with no further inversion needed.
func subFlags(a, b uint32) (result uint32, carry, overflow bool) {
	return addWithCarry(a, ^b, 1)
}

func sbcFlags(a, b uint32, carryIn bool) (result uint32, carry, overflow bool) {
	return addWithCarry(a, ^b, boolToU32(carryIn))
}

func nzFrom(v uint32) (n, z bool) { return v&0x80000000 != 0, v == 0 }

// setArithFlags writes N/Z/C/V into the CPSR after an S-bit data-processing
// or arithmetic operation.
func (c *CPU) setArithFlags(result uint32, carry, overflow bool) {
	n, z := nzFrom(result)
	c.regs.SetCPSR(c.regs.CPSR().WithFlags(n, z, carry, overflow))
}

// setLogicFlags writes N/Z (and C, from the shifter) after a logical
// data-processing operation; V is left unchanged.
func (c *CPU) setLogicFlags(result uint32, shifterCarry bool) {
	n, z := nzFrom(result)
	cpsr := c.regs.CPSR()
	c.regs.SetCPSR(cpsr.WithFlags(n, z, shifterCarry, cpsr.V()))
}

func flagsFrom(cpsr reg.PSR) (n, z, cf, v bool) {
	return cpsr.N(), cpsr.Z(), cpsr.C(), cpsr.V()
}
