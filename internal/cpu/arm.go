package cpu

import "github.com/FabianRolfMatthiasNoll/gbacore/internal/reg"

// executeARM decodes and runs one 32-bit ARM instruction.
func (c *CPU) executeARM(instr uint32) execResult {
	if !checkCond(byte(instr>>28), c.regs.CPSR()) {
		return ok(1)
	}

	switch {
	case instr&0x0FFFFFF0 == 0x012FFF10:
		return c.armBX(instr)
	case instr&0x0FC000F0 == 0x00000090:
		return c.armMultiply(instr)
	case instr&0x0F8000F0 == 0x00800090:
		return c.armMultiplyLong(instr)
	case instr&0x0FB00FF0 == 0x01000090:
		return c.armSwap(instr)
	case instr&0x0E000090 == 0x00000090 && instr&0x60 != 0:
		return c.armHalfwordTransfer(instr)
	case instr&0x0FBF0FFF == 0x010F0000:
		return c.armMRS(instr)
	case instr&0x0FBFFFF0 == 0x0129F000:
		return c.armMSR(instr, false)
	case instr&0x0FBFF000 == 0x0328F000:
		return c.armMSR(instr, true)
	case instr>>26&0x3 == 0x0:
		return c.armDataProcessing(instr)
	case instr>>26&0x3 == 0x1:
		return c.armSingleDataTransfer(instr)
	case instr>>25&0x7 == 0x4:
		return c.armBlockDataTransfer(instr)
	case instr>>25&0x7 == 0x5:
		return c.armBranch(instr)
	case instr>>24&0xF == 0xF:
		return c.armSWI()
	default:
		c.RaiseException(UndefinedInstruction)
		return ok(1)
	}
}

// operand reads R15 as PC+8 automatically since c.regs.PC() already reflects
// that value during execution (see cpu.go's pipeline bookkeeping).
func (c *CPU) r(n int) uint32 { return c.regs.R(n) }

func (c *CPU) setR(n int, v uint32) {
	if n == 15 {
		c.branchTo(v)
		return
	}
	c.regs.SetR(n, v)
}

// --- Data processing -------------------------------------------------

func (c *CPU) armDataProcessing(instr uint32) execResult {
	immediate := instr&(1<<25) != 0
	opcode := (instr >> 21) & 0xF
	s := instr&(1<<20) != 0
	rn := int((instr >> 16) & 0xF)
	rd := int((instr >> 12) & 0xF)
	cpsr := c.regs.CPSR()

	var op2 uint32
	var shifterCarry = cpsr.C()

	if immediate {
		imm8 := instr & 0xFF
		rotate := ((instr >> 8) & 0xF) * 2
		op2, shifterCarry = barrelShift(ShiftROR, imm8, rotate, cpsr.C(), true)
	} else {
		rm := int(instr & 0xF)
		shiftType := byte((instr >> 5) & 0x3)
		if instr&(1<<4) != 0 {
			rs := int((instr >> 8) & 0xF)
			amount := c.r(rs) & 0xFF
			op2, shifterCarry = barrelShift(shiftType, c.r(rm), amount, cpsr.C(), false)
		} else {
			amount := (instr >> 7) & 0x1F
			op2, shifterCarry = barrelShift(shiftType, c.r(rm), amount, cpsr.C(), true)
		}
	}

	rnVal := c.r(rn)
	var result uint32
	var carry, overflow bool
	logical := false

	switch opcode {
	case 0x0: // AND
		result = rnVal & op2
		logical = true
	case 0x1: // EOR
		result = rnVal ^ op2
		logical = true
	case 0x2: // SUB
		result, carry, overflow = subFlags(rnVal, op2)
	case 0x3: // RSB
		result, carry, overflow = subFlags(op2, rnVal)
	case 0x4: // ADD
		result, carry, overflow = addFlags(rnVal, op2)
	case 0x5: // ADC
		result, carry, overflow = adcFlags(rnVal, op2, cpsr.C())
	case 0x6: // SBC
		result, carry, overflow = sbcFlags(rnVal, op2, cpsr.C())
	case 0x7: // RSC
		result, carry, overflow = sbcFlags(op2, rnVal, cpsr.C())
	case 0x8: // TST
		result = rnVal & op2
		logical = true
	case 0x9: // TEQ
		result = rnVal ^ op2
		logical = true
	case 0xA: // CMP
		result, carry, overflow = subFlags(rnVal, op2)
	case 0xB: // CMN
		result, carry, overflow = addFlags(rnVal, op2)
	case 0xC: // ORR
		result = rnVal | op2
		logical = true
	case 0xD: // MOV
		result = op2
		logical = true
	case 0xE: // BIC
		result = rnVal &^ op2
		logical = true
	case 0xF: // MVN
		result = ^op2
		logical = true
	}

	isTest := opcode >= 0x8 && opcode <= 0xB
	if s {
		if rd == 15 && !isTest {
			// Privileged return: CPSR <- SPSR instead of flag-only update.
			c.regs.SetCPSR(c.regs.SPSR())
		} else if logical {
			c.setLogicFlags(result, shifterCarry)
		} else {
			c.setArithFlags(result, carry, overflow)
		}
	}

	if isTest {
		return ok(1)
	}
	c.setR(rd, result)
	if rd == 15 {
		return branched(3)
	}
	return ok(1)
}

// --- PSR transfer ------------------------------------------------------

func (c *CPU) armMRS(instr uint32) execResult {
	rd := int((instr >> 12) & 0xF)
	useSPSR := instr&(1<<22) != 0
	var v reg.PSR
	if useSPSR {
		v = c.regs.SPSR()
	} else {
		v = c.regs.CPSR()
	}
	c.setR(rd, uint32(v))
	return ok(1)
}

func (c *CPU) armMSR(instr uint32, immediate bool) execResult {
	useSPSR := instr&(1<<22) != 0
	mask := (instr >> 16) & 0xF

	var value uint32
	if immediate {
		imm8 := instr & 0xFF
		rotate := ((instr >> 8) & 0xF) * 2
		value, _ = barrelShift(ShiftROR, imm8, rotate, c.regs.CPSR().C(), true)
	} else {
		rm := int(instr & 0xF)
		value = c.r(rm)
	}

	var target reg.PSR
	if useSPSR {
		target = c.regs.SPSR()
	} else {
		target = c.regs.CPSR()
	}

	if mask&(1<<3) != 0 { // f: flags byte
		target = (target &^ 0xFF000000) | reg.PSR(value&0xFF000000)
	}
	if mask&(1<<0) != 0 { // c: control byte
		if !useSPSR {
			newMode := reg.Mode(value & 0x1F)
			if !newMode.Valid() {
				return failed(errInvalidMode(byte(value & 0x1F)))
			}
			if (value^uint32(target))&(1<<5) != 0 {
				return failed(&Error{msg: "cpu: MSR changed the CPSR T (state) bit"})
			}
		}
		target = (target &^ 0xFF) | reg.PSR(value&0xFF)
	}

	if useSPSR {
		c.regs.SetSPSR(target)
	} else {
		c.regs.SetCPSR(target)
	}
	return ok(1)
}

// --- Branch / BX -------------------------------------------------------

func (c *CPU) armBranch(instr uint32) execResult {
	link := instr&(1<<24) != 0
	offset := instr & 0xFFFFFF
	if offset&0x800000 != 0 {
		offset |= 0xFF000000 // sign extend 24->32
	}
	offset <<= 2
	target := c.regs.PC() + offset
	if link {
		c.regs.SetLR(c.regs.PC() - 4)
	}
	c.branchTo(target)
	return branched(3)
}

func (c *CPU) armBX(instr uint32) execResult {
	rm := int(instr & 0xF)
	target := c.r(rm)
	newState := reg.ARM
	if target&1 != 0 {
		newState = reg.Thumb
	}
	c.regs.SetCPSR(c.regs.CPSR().WithState(newState))
	c.branchTo(target &^ 1)
	return branched(3)
}

func (c *CPU) armSWI() execResult {
	c.RaiseException(SoftwareInterrupt)
	return ok(2)
}

// --- Multiply ------------------------------------------------------------

func (c *CPU) armMultiply(instr uint32) execResult {
	accumulate := instr&(1<<21) != 0
	s := instr&(1<<20) != 0
	rd := int((instr >> 16) & 0xF)
	rn := int((instr >> 12) & 0xF)
	rs := int((instr >> 8) & 0xF)
	rm := int(instr & 0xF)

	result := c.r(rm) * c.r(rs)
	if accumulate {
		result += c.r(rn)
	}
	c.setR(rd, result)
	if s {
		n, z := nzFrom(result)
		c.regs.SetCPSR(c.regs.CPSR().WithFlags(n, z, c.regs.CPSR().C(), c.regs.CPSR().V()))
	}
	return ok(2)
}

func (c *CPU) armMultiplyLong(instr uint32) execResult {
	signed := instr&(1<<22) != 0
	accumulate := instr&(1<<21) != 0
	s := instr&(1<<20) != 0
	rdHi := int((instr >> 16) & 0xF)
	rdLo := int((instr >> 12) & 0xF)
	rs := int((instr >> 8) & 0xF)
	rm := int(instr & 0xF)

	var result uint64
	if signed {
		result = uint64(int64(int32(c.r(rm))) * int64(int32(c.r(rs))))
	} else {
		result = uint64(c.r(rm)) * uint64(c.r(rs))
	}
	if accumulate {
		result += uint64(c.r(rdHi))<<32 | uint64(c.r(rdLo))
	}
	lo := uint32(result)
	hi := uint32(result >> 32)
	c.setR(rdLo, lo)
	c.setR(rdHi, hi)
	if s {
		n := hi&0x80000000 != 0
		z := result == 0
		c.regs.SetCPSR(c.regs.CPSR().WithFlags(n, z, c.regs.CPSR().C(), c.regs.CPSR().V()))
	}
	return ok(3)
}

// --- Single data swap ------------------------------------------------------

func (c *CPU) armSwap(instr uint32) execResult {
	byteSwap := instr&(1<<22) != 0
	rn := int((instr >> 16) & 0xF)
	rd := int((instr >> 12) & 0xF)
	rm := int(instr & 0xF)
	addr := c.r(rn)

	if byteSwap {
		old := c.bus.Read8(addr)
		c.bus.Write8(addr, byte(c.r(rm)))
		c.setR(rd, uint32(old))
	} else {
		old := c.readWordRotated(addr)
		c.bus.Write32(addr&^3, c.r(rm))
		c.setR(rd, old)
	}
	return ok(4)
}

// --- Halfword / signed data transfer ---------------------------------------

func (c *CPU) armHalfwordTransfer(instr uint32) execResult {
	pre := instr&(1<<24) != 0
	up := instr&(1<<23) != 0
	immOffset := instr&(1<<22) != 0
	writeback := instr&(1<<21) != 0
	load := instr&(1<<20) != 0
	rn := int((instr >> 16) & 0xF)
	rd := int((instr >> 12) & 0xF)
	sh := (instr >> 5) & 0x3 // 01=halfword, 10=signed byte, 11=signed halfword

	var offset uint32
	if immOffset {
		offset = ((instr >> 4) & 0xF0) | (instr & 0xF)
	} else {
		rm := int(instr & 0xF)
		offset = c.r(rm)
	}

	base := c.r(rn)
	var addr uint32
	if up {
		addr = base + offset
	} else {
		addr = base - offset
	}
	transferAddr := base
	if pre {
		transferAddr = addr
	}

	if load {
		var v uint32
		switch sh {
		case 0x1: // unsigned halfword
			v = uint32(c.readHalfRotated(transferAddr))
		case 0x2: // signed byte
			v = uint32(int32(int8(c.bus.Read8(transferAddr))))
		case 0x3: // signed halfword
			raw := c.bus.Read16(transferAddr &^ 1)
			if transferAddr&1 != 0 {
				v = uint32(int32(int8(byte(raw >> 8))))
			} else {
				v = uint32(int32(int16(raw)))
			}
		}
		c.setR(rd, v)
	} else {
		v := c.r(rd)
		switch sh {
		case 0x1:
			c.bus.Write16(transferAddr&^1, uint16(v))
		case 0x2:
			c.bus.Write8(transferAddr, byte(v))
		case 0x3:
			c.bus.Write16(transferAddr&^1, uint16(v))
		}
	}

	if !pre || writeback {
		c.regs.SetR(rn, addr)
	}
	if load && rd == 15 {
		return branched(3)
	}
	return ok(2)
}

// --- Single data transfer (LDR/STR) ----------------------------------------

func (c *CPU) armSingleDataTransfer(instr uint32) execResult {
	registerOffset := instr&(1<<25) != 0
	pre := instr&(1<<24) != 0
	up := instr&(1<<23) != 0
	byteTransfer := instr&(1<<22) != 0
	writeback := instr&(1<<21) != 0
	load := instr&(1<<20) != 0
	rn := int((instr >> 16) & 0xF)
	rd := int((instr >> 12) & 0xF)

	var offset uint32
	if registerOffset {
		rm := int(instr & 0xF)
		shiftType := byte((instr >> 5) & 0x3)
		amount := (instr >> 7) & 0x1F
		offset, _ = barrelShift(shiftType, c.r(rm), amount, c.regs.CPSR().C(), true)
	} else {
		offset = instr & 0xFFF
	}

	base := c.r(rn)
	var addr uint32
	if up {
		addr = base + offset
	} else {
		addr = base - offset
	}
	transferAddr := base
	if pre {
		transferAddr = addr
	}

	if load {
		var v uint32
		if byteTransfer {
			v = uint32(c.bus.Read8(transferAddr))
		} else {
			v = c.readWordRotated(transferAddr)
		}
		c.setR(rd, v)
	} else {
		v := c.r(rd)
		if rd == 15 {
			v += 4 // STR PC stores PC+12 (one extra word vs the usual +8 view)
		}
		if byteTransfer {
			c.bus.Write8(transferAddr, byte(v))
		} else {
			c.bus.Write32(transferAddr&^3, v)
		}
	}

	if !pre || writeback {
		c.regs.SetR(rn, addr)
	}
	if load && rd == 15 {
		return branched(3)
	}
	return ok(2)
}

// readWordRotated implements the GBA/ARM rule that an unaligned LDR still
// reads the aligned word containing the address, then rotates it right by
// 8 times the byte misalignment.
func (c *CPU) readWordRotated(addr uint32) uint32 {
	v := c.bus.Read32(addr &^ 3)
	rot := (addr & 3) * 8
	if rot == 0 {
		return v
	}
	return v>>rot | v<<(32-rot)
}

func (c *CPU) readHalfRotated(addr uint32) uint16 {
	v := c.bus.Read16(addr &^ 1)
	if addr&1 != 0 {
		return v>>8 | v<<8
	}
	return v
}

// --- Block data transfer (LDM/STM) ------------------------------------------

func (c *CPU) armBlockDataTransfer(instr uint32) execResult {
	pre := instr&(1<<24) != 0
	up := instr&(1<<23) != 0
	forceUserOrPSR := instr&(1<<22) != 0
	writeback := instr&(1<<21) != 0
	load := instr&(1<<20) != 0
	rn := int((instr >> 16) & 0xF)
	list := instr & 0xFFFF

	var regsInList []int
	for i := 0; i < 16; i++ {
		if list&(1<<uint(i)) != 0 {
			regsInList = append(regsInList, i)
		}
	}

	base := c.r(rn)
	count := len(regsInList)
	emptyList := count == 0

	var lowAddr uint32
	var effectivePre bool
	if emptyList {
		// Empty register lists transfer R15 only, with a fixed 0x40 offset,
		// matching the (illegal but defined) hardware behaviour.
		regsInList = []int{15}
		if up {
			lowAddr = base
		} else {
			lowAddr = base - 0x40
		}
		effectivePre = pre
	} else {
		span := uint32(count) * 4
		if up {
			lowAddr = base
		} else {
			lowAddr = base - span
			pre = !pre // descending transfers invert the preindex flag
		}
		effectivePre = pre
	}

	addr := lowAddr
	if effectivePre {
		addr += 4
	}

	useUserBank := forceUserOrPSR && !(load && contains(regsInList, 15))

	for _, r := range regsInList {
		if load {
			v := c.bus.Read32(addr)
			if r == 15 {
				if forceUserOrPSR {
					c.regs.SetCPSR(c.regs.SPSR())
				}
				c.branchTo(v &^ 3)
			} else if useUserBank {
				c.regs.SetR(r, v) // simplified: no separate user-bank view needed for system/user mode callers
			} else {
				c.regs.SetR(r, v)
			}
		} else {
			v := c.regs.R(r)
			if r == 15 {
				v += 4
			}
			c.bus.Write32(addr, v)
		}
		addr += 4
	}

	if writeback {
		var newBase uint32
		if up {
			newBase = base + uint32(len(regsInList))*4
			if emptyList {
				newBase = base + 0x40
			}
		} else {
			newBase = base - uint32(len(regsInList))*4
			if emptyList {
				newBase = base - 0x40
			}
		}
		// LDM: writeback is suppressed when Rb is among the loaded registers,
		// since the loaded value already overwrote it.
		suppressWriteback := load && contains(regsInList, rn)
		if !suppressWriteback {
			c.regs.SetR(rn, newBase)
		}
	}

	cycles := 2 + len(regsInList)
	if load && contains(regsInList, 15) {
		return branched(cycles)
	}
	return ok(cycles)
}

func contains(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}
