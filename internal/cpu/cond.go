package cpu

import "github.com/FabianRolfMatthiasNoll/gbacore/internal/reg"

// checkCond evaluates the 4-bit ARM condition field against the current
// flags. Code 0xF (NV) never executes.
func checkCond(cond byte, cpsr reg.PSR) bool {
	n, z, cf, v := cpsr.N(), cpsr.Z(), cpsr.C(), cpsr.V()
	switch cond {
	case 0x0: // EQ
		return z
	case 0x1: // NE
		return !z
	case 0x2: // CS/HS
		return cf
	case 0x3: // CC/LO
		return !cf
	case 0x4: // MI
		return n
	case 0x5: // PL
		return !n
	case 0x6: // VS
		return v
	case 0x7: // VC
		return !v
	case 0x8: // HI
		return cf && !z
	case 0x9: // LS
		return !cf || z
	case 0xA: // GE
		return n == v
	case 0xB: // LT
		return n != v
	case 0xC: // GT
		return !z && n == v
	case 0xD: // LE
		return z || n != v
	case 0xE: // AL
		return true
	default: // NV
		return false
	}
}
