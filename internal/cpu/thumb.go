package cpu

import "github.com/FabianRolfMatthiasNoll/gbacore/internal/reg"

// executeThumb decodes and runs one 16-bit Thumb instruction.
func (c *CPU) executeThumb(instr uint16) execResult {
	switch {
	case instr>>13 == 0b000 && instr>>11 != 0b011:
		return c.thumbMoveShifted(instr)
	case instr>>11 == 0b00011:
		return c.thumbAddSub(instr)
	case instr>>13 == 0b001:
		return c.thumbImmediate(instr)
	case instr>>10 == 0b010000:
		return c.thumbALU(instr)
	case instr>>10 == 0b010001:
		return c.thumbHiRegBX(instr)
	case instr>>11 == 0b01001:
		return c.thumbPCRelLoad(instr)
	case instr>>12 == 0b0101 && instr&(1<<9) == 0:
		return c.thumbLoadStoreReg(instr)
	case instr>>12 == 0b0101 && instr&(1<<9) != 0:
		return c.thumbLoadStoreSignExt(instr)
	case instr>>13 == 0b011:
		return c.thumbLoadStoreImm(instr)
	case instr>>12 == 0b1000:
		return c.thumbLoadStoreHalf(instr)
	case instr>>12 == 0b1001:
		return c.thumbSPRelLoadStore(instr)
	case instr>>12 == 0b1010:
		return c.thumbLoadAddress(instr)
	case instr>>8 == 0b10110000:
		return c.thumbAddOffsetSP(instr)
	case instr>>12 == 0b1011 && (instr>>9)&0x3 == 0b10:
		return c.thumbPushPop(instr)
	case instr>>12 == 0b1100:
		return c.thumbMultipleLoadStore(instr)
	case instr>>12 == 0b1101 && instr>>8&0xF == 0xF:
		return c.thumbSWI(instr)
	case instr>>12 == 0b1101:
		return c.thumbCondBranch(instr)
	case instr>>11 == 0b11100:
		return c.thumbUncondBranch(instr)
	case instr>>12 == 0b1111:
		return c.thumbLongBranchLink(instr)
	default:
		c.RaiseException(UndefinedInstruction)
		return ok(1)
	}
}

// --- Format 1: move shifted register ----------------------------------

func (c *CPU) thumbMoveShifted(instr uint16) execResult {
	op := (instr >> 11) & 0x3
	amount := uint32((instr >> 6) & 0x1F)
	rs := int((instr >> 3) & 0x7)
	rd := int(instr & 0x7)

	var shiftType byte
	switch op {
	case 0:
		shiftType = ShiftLSL
	case 1:
		shiftType = ShiftLSR
	case 2:
		shiftType = ShiftASR
	}
	result, carry := barrelShift(shiftType, c.r(rs), amount, c.regs.CPSR().C(), true)
	c.regs.SetR(rd, result)
	c.setLogicFlags(result, carry)
	return ok(1)
}

// --- Format 2: add/subtract ---------------------------------------------

func (c *CPU) thumbAddSub(instr uint16) execResult {
	immediate := instr&(1<<10) != 0
	sub := instr&(1<<9) != 0
	rnOrImm := uint32((instr >> 6) & 0x7)
	rs := int((instr >> 3) & 0x7)
	rd := int(instr & 0x7)

	var operand uint32
	if immediate {
		operand = rnOrImm
	} else {
		operand = c.r(int(rnOrImm))
	}

	var result uint32
	var carry, overflow bool
	if sub {
		result, carry, overflow = subFlags(c.r(rs), operand)
	} else {
		result, carry, overflow = addFlags(c.r(rs), operand)
	}
	c.regs.SetR(rd, result)
	c.setArithFlags(result, carry, overflow)
	return ok(1)
}

// --- Format 3: move/compare/add/subtract immediate ------------------------

func (c *CPU) thumbImmediate(instr uint16) execResult {
	op := (instr >> 11) & 0x3
	rd := int((instr >> 8) & 0x7)
	imm := uint32(instr & 0xFF)

	switch op {
	case 0: // MOV
		c.regs.SetR(rd, imm)
		c.setLogicFlags(imm, c.regs.CPSR().C())
	case 1: // CMP
		result, carry, overflow := subFlags(c.r(rd), imm)
		c.setArithFlags(result, carry, overflow)
	case 2: // ADD
		result, carry, overflow := addFlags(c.r(rd), imm)
		c.regs.SetR(rd, result)
		c.setArithFlags(result, carry, overflow)
	case 3: // SUB
		result, carry, overflow := subFlags(c.r(rd), imm)
		c.regs.SetR(rd, result)
		c.setArithFlags(result, carry, overflow)
	}
	return ok(1)
}

// --- Format 4: ALU operations ---------------------------------------------

func (c *CPU) thumbALU(instr uint16) execResult {
	op := (instr >> 6) & 0xF
	rs := int((instr >> 3) & 0x7)
	rd := int(instr & 0x7)
	cpsr := c.regs.CPSR()
	rdVal := c.r(rd)
	rsVal := c.r(rs)

	var result uint32
	var carry, overflow bool
	logical := false
	write := true

	switch op {
	case 0x0: // AND
		result = rdVal & rsVal
		logical = true
	case 0x1: // EOR
		result = rdVal ^ rsVal
		logical = true
	case 0x2: // LSL
		result, carry = barrelShift(ShiftLSL, rdVal, rsVal&0xFF, cpsr.C(), false)
		logical = true
	case 0x3: // LSR
		result, carry = barrelShift(ShiftLSR, rdVal, rsVal&0xFF, cpsr.C(), false)
		logical = true
	case 0x4: // ASR
		result, carry = barrelShift(ShiftASR, rdVal, rsVal&0xFF, cpsr.C(), false)
		logical = true
	case 0x5: // ADC
		result, carry, overflow = adcFlags(rdVal, rsVal, cpsr.C())
	case 0x6: // SBC
		result, carry, overflow = sbcFlags(rdVal, rsVal, cpsr.C())
	case 0x7: // ROR
		result, carry = barrelShift(ShiftROR, rdVal, rsVal&0xFF, cpsr.C(), false)
		logical = true
	case 0x8: // TST
		result = rdVal & rsVal
		logical = true
		write = false
	case 0x9: // NEG
		result, carry, overflow = subFlags(0, rsVal)
	case 0xA: // CMP
		result, carry, overflow = subFlags(rdVal, rsVal)
		write = false
	case 0xB: // CMN
		result, carry, overflow = addFlags(rdVal, rsVal)
		write = false
	case 0xC: // ORR
		result = rdVal | rsVal
		logical = true
	case 0xD: // MUL
		result = rdVal * rsVal
		logical = true
	case 0xE: // BIC
		result = rdVal &^ rsVal
		logical = true
	case 0xF: // MVN
		result = ^rsVal
		logical = true
	}

	if write {
		c.regs.SetR(rd, result)
	}
	if logical {
		c.setLogicFlags(result, carry)
	} else {
		c.setArithFlags(result, carry, overflow)
	}
	return ok(1)
}

// --- Format 5: hi register operations / BX ---------------------------------

func (c *CPU) thumbHiRegBX(instr uint16) execResult {
	op := (instr >> 8) & 0x3
	h1 := instr&(1<<7) != 0
	h2 := instr&(1<<6) != 0
	rs := int((instr >> 3) & 0x7)
	rd := int(instr & 0x7)
	if h2 {
		rs += 8
	}
	if h1 {
		rd += 8
	}

	switch op {
	case 0x0: // ADD
		c.setR(rd, c.r(rd)+c.r(rs))
		if rd == 15 {
			return branched(3)
		}
		return ok(1)
	case 0x1: // CMP
		result, carry, overflow := subFlags(c.r(rd), c.r(rs))
		c.setArithFlags(result, carry, overflow)
		return ok(1)
	case 0x2: // MOV
		c.setR(rd, c.r(rs))
		if rd == 15 {
			return branched(3)
		}
		return ok(1)
	case 0x3: // BX (and BLX in later ARM revisions; unused on ARMv4T)
		target := c.r(rs)
		newState := reg.ARM
		if target&1 != 0 {
			newState = reg.Thumb
		}
		c.regs.SetCPSR(c.regs.CPSR().WithState(newState))
		c.branchTo(target &^ 1)
		return branched(3)
	}
	return ok(1)
}

// --- Format 6: PC-relative load ---------------------------------------------

func (c *CPU) thumbPCRelLoad(instr uint16) execResult {
	rd := int((instr >> 8) & 0x7)
	imm := uint32(instr&0xFF) << 2
	addr := (c.r(15) &^ 3) + imm
	c.regs.SetR(rd, c.bus.Read32(addr))
	return ok(3)
}

// --- Format 7: load/store with register offset -----------------------------

func (c *CPU) thumbLoadStoreReg(instr uint16) execResult {
	load := instr&(1<<11) != 0
	byteTransfer := instr&(1<<10) != 0
	ro := int((instr >> 6) & 0x7)
	rb := int((instr >> 3) & 0x7)
	rd := int(instr & 0x7)
	addr := c.r(rb) + c.r(ro)

	if load {
		if byteTransfer {
			c.regs.SetR(rd, uint32(c.bus.Read8(addr)))
		} else {
			c.regs.SetR(rd, c.readWordRotated(addr))
		}
	} else {
		if byteTransfer {
			c.bus.Write8(addr, byte(c.r(rd)))
		} else {
			c.bus.Write32(addr&^3, c.r(rd))
		}
	}
	return ok(2)
}

// --- Format 8: load/store sign-extended byte/halfword ----------------------

func (c *CPU) thumbLoadStoreSignExt(instr uint16) execResult {
	hFlag := instr&(1<<11) != 0
	signExtend := instr&(1<<10) != 0
	ro := int((instr >> 6) & 0x7)
	rb := int((instr >> 3) & 0x7)
	rd := int(instr & 0x7)
	addr := c.r(rb) + c.r(ro)

	switch {
	case !signExtend && !hFlag: // STRH
		c.bus.Write16(addr&^1, uint16(c.r(rd)))
	case !signExtend && hFlag: // LDRH
		c.regs.SetR(rd, uint32(c.readHalfRotated(addr)))
	case signExtend && !hFlag: // LDSB
		c.regs.SetR(rd, uint32(int32(int8(c.bus.Read8(addr)))))
	case signExtend && hFlag: // LDSH
		if addr&1 != 0 {
			c.regs.SetR(rd, uint32(int32(int8(c.bus.Read8(addr)))))
		} else {
			c.regs.SetR(rd, uint32(int32(int16(c.bus.Read16(addr)))))
		}
	}
	return ok(2)
}

// --- Format 9: load/store with immediate offset -----------------------------

func (c *CPU) thumbLoadStoreImm(instr uint16) execResult {
	byteTransfer := instr&(1<<12) != 0
	load := instr&(1<<11) != 0
	imm := uint32((instr >> 6) & 0x1F)
	rb := int((instr >> 3) & 0x7)
	rd := int(instr & 0x7)

	if !byteTransfer {
		imm <<= 2
	}
	addr := c.r(rb) + imm

	if load {
		if byteTransfer {
			c.regs.SetR(rd, uint32(c.bus.Read8(addr)))
		} else {
			c.regs.SetR(rd, c.readWordRotated(addr))
		}
	} else {
		if byteTransfer {
			c.bus.Write8(addr, byte(c.r(rd)))
		} else {
			c.bus.Write32(addr&^3, c.r(rd))
		}
	}
	return ok(2)
}

// --- Format 10: load/store halfword -----------------------------------------

func (c *CPU) thumbLoadStoreHalf(instr uint16) execResult {
	load := instr&(1<<11) != 0
	imm := uint32((instr>>6)&0x1F) << 1
	rb := int((instr >> 3) & 0x7)
	rd := int(instr & 0x7)
	addr := c.r(rb) + imm

	if load {
		c.regs.SetR(rd, uint32(c.readHalfRotated(addr)))
	} else {
		c.bus.Write16(addr&^1, uint16(c.r(rd)))
	}
	return ok(2)
}

// --- Format 11: SP-relative load/store --------------------------------------

func (c *CPU) thumbSPRelLoadStore(instr uint16) execResult {
	load := instr&(1<<11) != 0
	rd := int((instr >> 8) & 0x7)
	imm := uint32(instr&0xFF) << 2
	addr := c.regs.SP() + imm

	if load {
		c.regs.SetR(rd, c.readWordRotated(addr))
	} else {
		c.bus.Write32(addr&^3, c.r(rd))
	}
	return ok(2)
}

// --- Format 12: load address -------------------------------------------------

func (c *CPU) thumbLoadAddress(instr uint16) execResult {
	useSP := instr&(1<<11) != 0
	rd := int((instr >> 8) & 0x7)
	imm := uint32(instr&0xFF) << 2

	var base uint32
	if useSP {
		base = c.regs.SP()
	} else {
		base = c.r(15) &^ 3
	}
	c.regs.SetR(rd, base+imm)
	return ok(1)
}

// --- Format 13: add offset to SP ---------------------------------------------

func (c *CPU) thumbAddOffsetSP(instr uint16) execResult {
	negative := instr&(1<<7) != 0
	imm := uint32(instr&0x7F) << 2
	if negative {
		c.regs.SetSP(c.regs.SP() - imm)
	} else {
		c.regs.SetSP(c.regs.SP() + imm)
	}
	return ok(1)
}

// --- Format 14: push/pop registers -------------------------------------------

func (c *CPU) thumbPushPop(instr uint16) execResult {
	load := instr&(1<<11) != 0
	pclr := instr&(1<<8) != 0
	list := instr & 0xFF

	var regsInList []int
	for i := 0; i < 8; i++ {
		if list&(1<<uint(i)) != 0 {
			regsInList = append(regsInList, i)
		}
	}

	if load { // POP, low-to-high, SP grows upward after
		sp := c.regs.SP()
		for _, r := range regsInList {
			c.regs.SetR(r, c.bus.Read32(sp))
			sp += 4
		}
		if pclr {
			target := c.bus.Read32(sp)
			sp += 4
			c.regs.SetSP(sp)
			c.branchTo(target &^ 1)
			return branched(int(3 + len(regsInList)))
		}
		c.regs.SetSP(sp)
	} else { // PUSH: SP shrinks first, then the list is stored low-to-high from the new SP
		count := len(regsInList)
		if pclr {
			count++
		}
		sp := c.regs.SP() - uint32(count)*4
		c.regs.SetSP(sp)
		addr := sp
		for _, r := range regsInList {
			c.bus.Write32(addr, c.r(r))
			addr += 4
		}
		if pclr {
			c.bus.Write32(addr, c.regs.LR())
		}
	}
	return ok(2 + len(regsInList))
}

// --- Format 15: multiple load/store -----------------------------------------

func (c *CPU) thumbMultipleLoadStore(instr uint16) execResult {
	load := instr&(1<<11) != 0
	rb := int((instr >> 8) & 0x7)
	list := instr & 0xFF

	var regsInList []int
	for i := 0; i < 8; i++ {
		if list&(1<<uint(i)) != 0 {
			regsInList = append(regsInList, i)
		}
	}

	addr := c.r(rb)
	for _, r := range regsInList {
		if load {
			c.regs.SetR(r, c.bus.Read32(addr))
		} else {
			c.bus.Write32(addr, c.r(r))
		}
		addr += 4
	}
	if !load || !contains(regsInList, rb) {
		c.regs.SetR(rb, addr)
	}
	return ok(2 + len(regsInList))
}

// --- Format 16: conditional branch -------------------------------------------

func (c *CPU) thumbCondBranch(instr uint16) execResult {
	cond := byte((instr >> 8) & 0xF)
	if !checkCond(cond, c.regs.CPSR()) {
		return ok(1)
	}
	offset := int32(int8(instr & 0xFF))
	target := uint32(int32(c.r(15)) + offset*2)
	c.branchTo(target)
	return branched(3)
}

// --- Format 17: software interrupt --------------------------------------------

func (c *CPU) thumbSWI(instr uint16) execResult {
	_ = instr & 0xFF
	c.RaiseException(SoftwareInterrupt)
	return ok(2)
}

// --- Format 18: unconditional branch -------------------------------------------

func (c *CPU) thumbUncondBranch(instr uint16) execResult {
	offset := instr & 0x7FF
	var signed int32
	if offset&0x400 != 0 {
		signed = int32(uint32(offset)|0xFFFFF800) << 1
	} else {
		signed = int32(offset) << 1
	}
	target := uint32(int32(c.r(15)) + signed)
	c.branchTo(target)
	return branched(3)
}

// --- Format 19: long branch with link -------------------------------------------

func (c *CPU) thumbLongBranchLink(instr uint16) execResult {
	low := instr&(1<<11) != 0
	offset := uint32(instr & 0x7FF)

	if !low {
		var signed int32
		if offset&0x400 != 0 {
			signed = int32(uint32(offset)|0xFFFFF800) << 12
		} else {
			signed = int32(offset) << 12
		}
		c.regs.SetLR(uint32(int32(c.r(15)) + signed))
		return ok(1)
	}

	next := c.r(15) - 2
	target := c.regs.LR() + offset<<1
	c.regs.SetLR(next | 1)
	c.branchTo(target)
	return branched(3)
}
