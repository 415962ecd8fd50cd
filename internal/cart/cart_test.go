package cart

import "testing"

func romWithMarker(marker string, size int) []byte {
	rom := makeTestROM(size)
	off := (len(rom) - len(marker) - 16) &^ 3
	copy(rom[off:], marker)
	return rom
}

func TestDetectsEEPROM(t *testing.T) {
	rom := romWithMarker("EEPROM_V120", 0x1000)
	c, err := NewFromROM(rom)
	if err != nil {
		t.Fatalf("NewFromROM: %v", err)
	}
	if !c.HasEEPROM() {
		t.Fatalf("expected EEPROM to be detected")
	}
}

func TestDetectsFlash128(t *testing.T) {
	rom := romWithMarker("FLASH1M_V102", 0x1000)
	c, err := NewFromROM(rom)
	if err != nil {
		t.Fatalf("NewFromROM: %v", err)
	}
	if !c.HasFlashOrSRAM() {
		t.Fatalf("expected a flash/sram backup to be detected")
	}
}

func TestROMOpenBusPastEnd(t *testing.T) {
	rom := makeTestROM(0x1000)
	c, _ := NewFromROM(rom)
	v := c.ReadROM16(0x2000) // well past the ROM image
	if v != uint16((0x2000/2)&0xFFFF) {
		t.Fatalf("open bus read got %#x want %#x", v, (0x2000/2)&0xFFFF)
	}
}

func TestROMInRangeRead(t *testing.T) {
	rom := makeTestROM(0x1000)
	rom[0x10] = 0x34
	rom[0x11] = 0x12
	c, _ := NewFromROM(rom)
	if v := c.ReadROM16(0x10); v != 0x1234 {
		t.Fatalf("ROM read got %#x want 0x1234", v)
	}
}
