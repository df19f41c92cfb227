package macho

import (
	"encoding/binary"
	"fmt"

	"github.com/appsworld/machoprot/types"
)

// A Slice is one Mach-O image inside a file: the whole file when it is
// thin, or a single architecture of a universal (fat) file.
type Slice struct {
	Index     int
	Offset    int64
	Size      int64
	CPU       types.CPU
	SubCPU    types.CPUSubtype
	Is64      bool
	ByteOrder binary.ByteOrder
	Fat       bool
}

// Arch returns a short architecture name for diagnostics.
func (s Slice) Arch() string {
	if s.CPU == 0 {
		if s.Is64 {
			return "64-bit"
		}
		return "32-bit"
	}
	return s.SubCPU.String(s.CPU)
}

func (s Slice) String() string {
	bits := 32
	if s.Is64 {
		bits = 64
	}
	return fmt.Sprintf("slice %d: %s, %d-bit, offset=%#x, size=%#x", s.Index, s.Arch(), bits, s.Offset, s.Size)
}

// Slices returns every Mach-O header embedded in dat, in file order.
// A thin file yields a single slice at offset zero.
func Slices(dat []byte) ([]Slice, error) {
	if len(dat) < 4 {
		return nil, &FormatError{0, "file too small to be a MachO", len(dat)}
	}

	// The fat header is big-endian on disk regardless of the host.
	if magic := types.Magic(binary.BigEndian.Uint32(dat[0:])); magic.IsFat() {
		return fatSlices(dat, magic)
	}

	magic, bo, ok := types.ReadMagic(dat)
	if !ok {
		return nil, &FormatError{0, "unrecognized format: invalid magic number", fmt.Sprintf("%#08x", binary.BigEndian.Uint32(dat[0:]))}
	}
	s := Slice{
		Offset:    0,
		Size:      int64(len(dat)),
		Is64:      magic == types.Magic64,
		ByteOrder: bo,
	}
	if len(dat) >= 12 {
		s.CPU = types.CPU(bo.Uint32(dat[4:]))
		s.SubCPU = types.CPUSubtype(bo.Uint32(dat[8:]))
	}
	return []Slice{s}, nil
}

func fatSlices(dat []byte, magic types.Magic) ([]Slice, error) {
	var fh types.FatHeader
	if err := fh.Decode(dat); err != nil {
		return nil, &FormatError{0, err.Error(), nil}
	}
	if fh.NumArchs == 0 {
		return nil, &FormatError{4, "fat file has no architectures", nil}
	}
	if fh.NumArchs > types.MaxFatArchitectures {
		return nil, &FormatError{4, "too many fat architectures", fh.NumArchs}
	}

	entSize := fh.EntrySize()
	tableEnd := int64(types.FatHeaderSize) + int64(fh.NumArchs)*int64(entSize)
	if tableEnd > int64(len(dat)) {
		return nil, &FormatError{types.FatHeaderSize, "fat architecture table extends past end of file", fh.NumArchs}
	}

	slices := make([]Slice, 0, fh.NumArchs)
	for i := 0; i < int(fh.NumArchs); i++ {
		entOff := int64(types.FatHeaderSize + i*entSize)
		var fa types.FatArchHeader
		if err := fa.Decode(dat[entOff:entOff+int64(entSize)], magic); err != nil {
			return nil, &FormatError{entOff, err.Error(), nil}
		}
		if fa.Offset < uint64(tableEnd) || fa.Offset >= uint64(len(dat)) {
			return nil, &FormatError{entOff, "fat architecture offset out of range", fmt.Sprintf("%#x", fa.Offset)}
		}
		size := fa.Size
		if size == 0 || fa.Offset+size > uint64(len(dat)) || fa.Offset+size < fa.Offset {
			return nil, &FormatError{entOff, "fat architecture size outside of file", fmt.Sprintf("%#x", fa.Size)}
		}

		m, bo, ok := types.ReadMagic(dat[fa.Offset:])
		if !ok {
			return nil, &FormatError{int64(fa.Offset), "invalid magic number in fat architecture", fa.CPU}
		}
		if is64 := fa.CPU.Is64(); is64 != (m == types.Magic64) {
			return nil, &FormatError{int64(fa.Offset), "header magic does not match cpu type", fmt.Sprintf("%s/%s", m, fa.CPU)}
		}

		slices = append(slices, Slice{
			Index:     i,
			Offset:    int64(fa.Offset),
			Size:      int64(size),
			CPU:       fa.CPU,
			SubCPU:    fa.SubCPU,
			Is64:      fa.CPU.Is64(),
			ByteOrder: bo,
			Fat:       true,
		})
	}

	return slices, nil
}
