package cpu

// Bus is the memory interface the CPU core needs: byte/halfword/word reads
// and writes over the full 32-bit address space. The concrete
// implementation (internal/bus) owns region routing, mirroring and
// side-effects; the CPU only ever sees this narrow view.
type Bus interface {
	Read8(addr uint32) byte
	Write8(addr uint32, v byte)
	Read16(addr uint32) uint16
	Write16(addr uint32, v uint16)
	Read32(addr uint32) uint32
	Write32(addr uint32, v uint32)

	// FetchARM/FetchThumb are used for instruction fetch specifically
	// (as opposed to data access), so the bus can track the last
	// prefetched value for BIOS open-bus emulation.
	FetchARM(addr uint32) uint32
	FetchThumb(addr uint32) uint16
}
