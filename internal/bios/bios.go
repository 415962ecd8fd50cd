// Package bios holds the 16KiB BIOS ROM image. The bus is responsible for
// the open-bus protection rule (BIOS reads only return real data while the
// program counter is actually executing out of the BIOS region); this
// package is just the backing store.
package bios

import "errors"

const Size = 16 * 1024

type Bios struct {
	data [Size]byte
}

func New(image []byte) (*Bios, error) {
	if len(image) != Size {
		return nil, errors.New("bios: image must be exactly 16KiB")
	}
	b := &Bios{}
	copy(b.data[:], image)
	return b, nil
}

func (b *Bios) Read8(addr uint32) byte {
	return b.data[addr&(Size-1)]
}

func (b *Bios) Read16(addr uint32) uint16 {
	addr &= Size - 1
	return uint16(b.data[addr]) | uint16(b.data[addr+1])<<8
}

func (b *Bios) Read32(addr uint32) uint32 {
	lo := uint32(b.Read16(addr))
	hi := uint32(b.Read16(addr + 2))
	return lo | hi<<16
}
