package macho

import (
	"encoding/binary"
	"fmt"

	"github.com/appsworld/machoprot/types"
)

/*******************************************************************************
 * SEGMENT
 *******************************************************************************/

// A SegmentHeader is the header for a Mach-O 32-bit or 64-bit load segment command.
type SegmentHeader struct {
	types.LoadCmd
	Len     uint32
	Name    string
	Addr    uint64
	Memsz   uint64
	Offset  uint64
	Filesz  uint64
	Maxprot types.VmProtection
	Prot    types.VmProtection
	Nsect   uint32
	Flag    types.SegFlag
}

func (s *SegmentHeader) String() string {
	return fmt.Sprintf(
		"Seg %s, len=%#x, addr=%#x, memsz=%#x, offset=%#x, filesz=%#x, maxprot=%s, prot=%s, nsect=%d, flag=%#x",
		s.Name, s.Len, s.Addr, s.Memsz, s.Offset, s.Filesz, s.Maxprot, s.Prot, s.Nsect, uint32(s.Flag))
}

// decodeSegment fills s from a segment command. cmddat must already be
// known to hold at least the fixed segment layout.
func (s *SegmentHeader) decodeSegment(cmddat []byte, o binary.ByteOrder, is64 bool) {
	s.LoadCmd = types.LoadCmd(o.Uint32(cmddat[0*4:]))
	s.Len = o.Uint32(cmddat[1*4:])
	s.Name = types.SegName(cmddat[2*4 : 2*4+types.SegNameSize])
	if is64 {
		s.Addr = o.Uint64(cmddat[6*4+0*8:])
		s.Memsz = o.Uint64(cmddat[6*4+1*8:])
		s.Offset = o.Uint64(cmddat[6*4+2*8:])
		s.Filesz = o.Uint64(cmddat[6*4+3*8:])
		s.Maxprot = types.VmProtection(o.Uint32(cmddat[6*4+4*8:]))
		s.Prot = types.VmProtection(o.Uint32(cmddat[7*4+4*8:]))
		s.Nsect = o.Uint32(cmddat[8*4+4*8:])
		s.Flag = types.SegFlag(o.Uint32(cmddat[9*4+4*8:]))
		return
	}
	s.Addr = uint64(o.Uint32(cmddat[6*4:]))
	s.Memsz = uint64(o.Uint32(cmddat[7*4:]))
	s.Offset = uint64(o.Uint32(cmddat[8*4:]))
	s.Filesz = uint64(o.Uint32(cmddat[9*4:]))
	s.Maxprot = types.VmProtection(o.Uint32(cmddat[10*4:]))
	s.Prot = types.VmProtection(o.Uint32(cmddat[11*4:]))
	s.Nsect = o.Uint32(cmddat[12*4:])
	s.Flag = types.SegFlag(o.Uint32(cmddat[13*4:]))
}

// A SegmentRef is a segment command located inside an image. CmdOffset is
// absolute within the image so the command can be written in place.
type SegmentRef struct {
	SegmentHeader
	Slice     int
	CmdOffset int64

	layout types.SegmentLayout
	bo     binary.ByteOrder
}

func (r *SegmentRef) String() string {
	return fmt.Sprintf("%s: off=%#x %s/%s", r.Name, r.CmdOffset, r.Prot, r.Maxprot)
}

// setProt writes prot into the requested field(s) of the command at r.
func (r *SegmentRef) setProt(dat []byte, prot types.VmProtection, field ProtField) {
	if field.Max() {
		r.bo.PutUint32(dat[r.CmdOffset+int64(r.layout.Maxprot):], uint32(prot))
	}
	if field.Init() {
		r.bo.PutUint32(dat[r.CmdOffset+int64(r.layout.Initprot):], uint32(prot))
	}
}
