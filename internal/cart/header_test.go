package cart

import "testing"

func makeTestROM(size int) []byte {
	rom := make([]byte, size)
	copy(rom[0xA0:], []byte("TESTGAME\x00\x00\x00\x00"))
	copy(rom[0xAC:], []byte("TEST"))
	copy(rom[0xB0:], []byte("01"))
	rom[0xB2] = 0x96
	return rom
}

func TestParseHeaderFields(t *testing.T) {
	rom := makeTestROM(0x200)
	h, err := ParseHeader(rom)
	if err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	if h.Title != "TESTGAME" {
		t.Fatalf("Title got %q want TESTGAME", h.Title)
	}
	if h.GameCode != "TEST" {
		t.Fatalf("GameCode got %q want TEST", h.GameCode)
	}
	if h.Fixed96 != 0x96 {
		t.Fatalf("Fixed96 got %#x want 0x96", h.Fixed96)
	}
}

func TestHeaderChecksum(t *testing.T) {
	rom := makeTestROM(0x200)
	var sum byte
	for addr := 0xA0; addr <= 0xBC; addr++ {
		sum -= rom[addr]
	}
	sum -= 0x19
	rom[0xBD] = sum
	if !HeaderChecksumOK(rom) {
		t.Fatalf("expected checksum to validate")
	}
	rom[0xBD] ^= 0xFF
	if HeaderChecksumOK(rom) {
		t.Fatalf("corrupted checksum should not validate")
	}
}
