package types

import (
	"encoding/binary"
	"fmt"
)

const (
	FatHeaderSize       = 2 * 4
	FatArchHeaderSize   = 5 * 4
	FatArch64Size       = 8 * 4
	MaxFatArchitectures = 128
)

// A FatHeader is the big-endian header of a universal (fat) file.
type FatHeader struct {
	Magic    Magic
	NumArchs uint32
}

func (h *FatHeader) Put(b []byte) int {
	binary.BigEndian.PutUint32(b[0:], uint32(h.Magic))
	binary.BigEndian.PutUint32(b[4:], h.NumArchs)
	return FatHeaderSize
}

func (h *FatHeader) Decode(b []byte) error {
	if len(b) < FatHeaderSize {
		return fmt.Errorf("fat header too short: %d bytes", len(b))
	}
	h.Magic = Magic(binary.BigEndian.Uint32(b[0:]))
	h.NumArchs = binary.BigEndian.Uint32(b[4:])
	return nil
}

// EntrySize is the size of one architecture descriptor following h.
func (h *FatHeader) EntrySize() int {
	if h.Magic == MagicFat64 {
		return FatArch64Size
	}
	return FatArchHeaderSize
}

// A FatArchHeader is one architecture descriptor of a fat file. Both the
// 32-bit (fat_arch) and 64-bit (fat_arch_64) layouts decode into it.
type FatArchHeader struct {
	CPU    CPU
	SubCPU CPUSubtype
	Offset uint64
	Size   uint64
	Align  uint32
}

// Put encodes h in the layout selected by magic.
func (h *FatArchHeader) Put(b []byte, magic Magic) int {
	o := binary.BigEndian
	o.PutUint32(b[0:], uint32(h.CPU))
	o.PutUint32(b[4:], uint32(h.SubCPU))
	if magic == MagicFat64 {
		o.PutUint64(b[8:], h.Offset)
		o.PutUint64(b[16:], h.Size)
		o.PutUint32(b[24:], h.Align)
		o.PutUint32(b[28:], 0)
		return FatArch64Size
	}
	o.PutUint32(b[8:], uint32(h.Offset))
	o.PutUint32(b[12:], uint32(h.Size))
	o.PutUint32(b[16:], h.Align)
	return FatArchHeaderSize
}

func (h *FatArchHeader) Decode(b []byte, magic Magic) error {
	size := FatArchHeaderSize
	if magic == MagicFat64 {
		size = FatArch64Size
	}
	if len(b) < size {
		return fmt.Errorf("fat arch entry too short: %d bytes", len(b))
	}
	o := binary.BigEndian
	h.CPU = CPU(o.Uint32(b[0:]))
	h.SubCPU = CPUSubtype(o.Uint32(b[4:]))
	if magic == MagicFat64 {
		h.Offset = o.Uint64(b[8:])
		h.Size = o.Uint64(b[16:])
		h.Align = o.Uint32(b[24:])
		return nil
	}
	h.Offset = uint64(o.Uint32(b[8:]))
	h.Size = uint64(o.Uint32(b[12:]))
	h.Align = o.Uint32(b[16:])
	return nil
}
