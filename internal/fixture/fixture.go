// Package fixture builds small synthetic Mach-O images for tests.
package fixture

import (
	"bytes"
	"encoding/binary"

	"github.com/appsworld/machoprot/types"
)

const (
	section32Size = 68
	section64Size = 80
	payloadSize   = 0x40
)

// A Segment is an LC_SEGMENT or LC_SEGMENT_64 command, depending on the
// image it is placed in. Nsect zeroed section headers follow it.
type Segment struct {
	Name    string
	Maxprot types.VmProtection
	Prot    types.VmProtection
	Nsect   uint32
}

// A Raw is an uninterpreted load command of Size bytes filled with 0xAA.
type Raw struct {
	Cmd  types.LoadCmd
	Size uint32
}

// An Image is a thin Mach-O file.
type Image struct {
	Is64      bool
	ByteOrder binary.ByteOrder // defaults to little endian
	CPU       types.CPU
	Loads     []interface{} // Segment or Raw
}

func (im Image) order() binary.ByteOrder {
	if im.ByteOrder == nil {
		return binary.LittleEndian
	}
	return im.ByteOrder
}

func (im Image) cpu() types.CPU {
	if im.CPU != 0 {
		return im.CPU
	}
	if im.Is64 {
		return types.CPUAmd64
	}
	return types.CPU386
}

func (im Image) loads() []byte {
	o := im.order()
	var buf bytes.Buffer
	for _, l := range im.Loads {
		switch l := l.(type) {
		case Segment:
			var name [16]byte
			copy(name[:], l.Name)
			if im.Is64 {
				binary.Write(&buf, o, types.Segment64{
					LoadCmd: types.LC_SEGMENT_64,
					Len:     uint32(72 + section64Size*int(l.Nsect)),
					Name:    name,
					Addr:    0x100000000,
					Memsz:   0x4000,
					Maxprot: l.Maxprot,
					Prot:    l.Prot,
					Nsect:   l.Nsect,
				})
				buf.Write(make([]byte, section64Size*int(l.Nsect)))
			} else {
				binary.Write(&buf, o, types.Segment32{
					LoadCmd: types.LC_SEGMENT,
					Len:     uint32(56 + section32Size*int(l.Nsect)),
					Name:    name,
					Addr:    0x1000,
					Memsz:   0x1000,
					Maxprot: l.Maxprot,
					Prot:    l.Prot,
					Nsect:   l.Nsect,
				})
				buf.Write(make([]byte, section32Size*int(l.Nsect)))
			}
		case Raw:
			var hdr [8]byte
			o.PutUint32(hdr[0:], uint32(l.Cmd))
			o.PutUint32(hdr[4:], l.Size)
			buf.Write(hdr[:])
			buf.Write(bytes.Repeat([]byte{0xaa}, int(l.Size)-len(hdr)))
		default:
			panic("fixture: unsupported load")
		}
	}
	return buf.Bytes()
}

// Bytes encodes the image: header, load commands and a short payload of
// 0xCC bytes standing in for segment contents.
func (im Image) Bytes() []byte {
	loads := im.loads()
	hdr := types.FileHeader{
		Magic:        types.Magic32,
		CPU:          im.cpu(),
		Type:         types.MH_EXECUTE,
		NCommands:    uint32(len(im.Loads)),
		SizeCommands: uint32(len(loads)),
	}
	if im.Is64 {
		hdr.Magic = types.Magic64
	}
	out := make([]byte, types.HeaderSize(im.Is64))
	hdr.Put(out, im.order())
	out = append(out, loads...)
	return append(out, bytes.Repeat([]byte{0xcc}, payloadSize)...)
}

// Fat packs images into a universal file with the given magic (MagicFat
// or MagicFat64). Slices are aligned to 2^align bytes.
func Fat(magic types.Magic, align uint32, images ...Image) []byte {
	fh := types.FatHeader{Magic: magic, NumArchs: uint32(len(images))}
	out := make([]byte, types.FatHeaderSize+len(images)*fh.EntrySize())
	fh.Put(out)

	for i, im := range images {
		dat := im.Bytes()
		for len(out)%(1<<align) != 0 {
			out = append(out, 0)
		}
		fa := types.FatArchHeader{
			CPU:    im.cpu(),
			Offset: uint64(len(out)),
			Size:   uint64(len(dat)),
			Align:  align,
		}
		fa.Put(out[types.FatHeaderSize+i*fh.EntrySize():], magic)
		out = append(out, dat...)
	}
	return out
}

// Lookup returns the maxprot and initprot of the first segment command
// named name in the image starting at base, decoding it independently of
// the code under test.
func Lookup(dat []byte, base int, is64 bool, o binary.ByteOrder, name string) (maxprot, prot types.VmProtection, ok bool) {
	ncmds := int(o.Uint32(dat[base+16:]))
	off := base + types.HeaderSize(is64)
	want := types.LC_SEGMENT
	maxOff, protOff := 40, 44
	if is64 {
		want = types.LC_SEGMENT_64
		maxOff, protOff = 56, 60
	}
	for i := 0; i < ncmds; i++ {
		cmd := types.LoadCmd(o.Uint32(dat[off:]))
		siz := int(o.Uint32(dat[off+4:]))
		if cmd == want && types.SegName(dat[off+8:off+24]) == name {
			return types.VmProtection(o.Uint32(dat[off+maxOff:])), types.VmProtection(o.Uint32(dat[off+protOff:])), true
		}
		off += siz
	}
	return 0, 0, false
}
