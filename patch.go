package macho

import (
	"fmt"
	"strings"

	"github.com/apex/log"
	"github.com/appsworld/machoprot/types"
	"github.com/pkg/errors"
)

// A ProtField selects which protection field(s) of a segment to rewrite.
// The zero value rewrites both.
type ProtField uint8

const (
	BothProt ProtField = iota
	InitProt
	MaxProt
)

func (f ProtField) Init() bool { return f == BothProt || f == InitProt }
func (f ProtField) Max() bool  { return f == BothProt || f == MaxProt }

func (f ProtField) String() string {
	switch f {
	case BothProt:
		return "both"
	case InitProt:
		return "init"
	case MaxProt:
		return "max"
	}
	return fmt.Sprintf("ProtField(%d)", uint8(f))
}

// Set implements pflag.Value.
func (f *ProtField) Set(s string) error {
	switch strings.ToLower(s) {
	case "", "both":
		*f = BothProt
	case "init", "initial", "initprot":
		*f = InitProt
	case "max", "maximum", "maxprot":
		*f = MaxProt
	default:
		return errors.Errorf("unknown protection field %q (want init, max or both)", s)
	}
	return nil
}

func (f *ProtField) Type() string { return "field" }

// ParseProtField parses init/initial, max/maximum or both.
func ParseProtField(s string) (ProtField, error) {
	var f ProtField
	err := f.Set(s)
	return f, err
}

// A Request describes one protection patch.
type Request struct {
	Segment string
	Prot    types.VmProtection
	Field   ProtField
}

// ParseRequest builds a Request from raw command line strings.
func ParseRequest(segment, prot, field string) (Request, error) {
	req := Request{Segment: segment}
	var err error
	if req.Prot, err = types.ParseVmProtection(prot); err != nil {
		return Request{}, &UsageError{Arg: "protection", Err: err}
	}
	if req.Field, err = ParseProtField(field); err != nil {
		return Request{}, &UsageError{Arg: "field", Err: err}
	}
	if err := req.Validate(); err != nil {
		return Request{}, err
	}
	return req, nil
}

// Validate checks the request without looking at any file.
func (r Request) Validate() error {
	if len(r.Segment) == 0 {
		return &UsageError{Arg: "segment", Err: errors.New("segment name is empty")}
	}
	if len(r.Segment) > types.SegNameSize {
		return &UsageError{Arg: "segment", Err: errors.Errorf("%q is longer than %d bytes", r.Segment, types.SegNameSize)}
	}
	if r.Prot&^types.VmProtAll != 0 {
		return &UsageError{Arg: "protection", Err: errors.Errorf("%#x has bits outside rwx", uint32(r.Prot))}
	}
	if r.Field > MaxProt {
		return &UsageError{Arg: "field", Err: errors.Errorf("unknown protection field %d", r.Field)}
	}
	return nil
}

// A Change is one rewritten segment command with its new protections.
type Change struct {
	SegmentRef
	NewMaxprot types.VmProtection
	NewProt    types.VmProtection
}

func (c Change) String() string {
	return fmt.Sprintf("%s: %s/%s -> %s/%s", c.Name, c.Prot, c.Maxprot, c.NewProt, c.NewMaxprot)
}

// Result lists every change applied by Patch.
type Result struct {
	Slices  []Slice
	Changes []Change
}

// walkLoads calls fn once for each of the ncmds load commands of s. The
// walk is bounded by sizeofcmds and by the end of the slice; a command
// whose size would cross either bound stops the walk with a
// *TruncationError.
func walkLoads(dat []byte, s Slice, fn func(i int, cmd types.LoadCmd, off int64, cmddat []byte) error) error {
	end := int64(len(dat))
	if s.Size > 0 && s.Offset+s.Size < end {
		end = s.Offset + s.Size
	}
	hsz := int64(types.HeaderSize(s.Is64))
	if s.Offset < 0 || s.Offset+hsz > end {
		return &TruncationError{Offset: s.Offset, Index: -1, Msg: "mach-o header extends past end of image"}
	}

	var hdr types.FileHeader
	if err := hdr.Decode(dat[s.Offset:s.Offset+hsz], s.ByteOrder); err != nil {
		return &TruncationError{Offset: s.Offset, Index: -1, Msg: err.Error()}
	}

	offset := s.Offset + hsz
	remaining := int64(hdr.SizeCommands)
	if offset+remaining > end {
		return &TruncationError{
			Offset: s.Offset,
			Index:  -1,
			Msg:    fmt.Sprintf("load commands (sizeofcmds=%#x) extend past end of image", hdr.SizeCommands),
		}
	}

	bo := s.ByteOrder
	for i := 0; i < int(hdr.NCommands); i++ {
		// Each load command begins with uint32 command and length.
		if remaining < types.LoadCmdHeaderSize {
			return &TruncationError{Offset: offset, Index: i, Msg: "command header past end of load command region"}
		}
		cmd, siz := types.LoadCmd(bo.Uint32(dat[offset:])), bo.Uint32(dat[offset+4:])
		if siz < types.LoadCmdHeaderSize {
			return &TruncationError{Offset: offset, Index: i, Msg: fmt.Sprintf("invalid command size %#x", siz)}
		}
		if int64(siz) > remaining {
			return &TruncationError{
				Offset: offset,
				Index:  i,
				Msg:    fmt.Sprintf("%s size %#x exceeds remaining %#x bytes of load commands", cmd, siz, remaining),
			}
		}
		if err := fn(i, cmd, offset, dat[offset:offset+int64(siz)]); err != nil {
			return err
		}
		offset += int64(siz)
		remaining -= int64(siz)
	}

	return nil
}

// segments returns the segment commands of s accepted by match.
func segments(dat []byte, s Slice, match func(name []byte) bool) ([]SegmentRef, error) {
	layout := types.SegmentLayoutFor(s.Is64)
	var refs []SegmentRef
	err := walkLoads(dat, s, func(i int, cmd types.LoadCmd, off int64, cmddat []byte) error {
		if cmd != layout.Cmd {
			return nil
		}
		if len(cmddat) < layout.Size {
			return &TruncationError{Offset: off, Index: i, Msg: fmt.Sprintf("%s too small (%#x bytes)", cmd, len(cmddat))}
		}
		if !match(cmddat[layout.Name : layout.Name+types.SegNameSize]) {
			return nil
		}
		ref := SegmentRef{Slice: s.Index, CmdOffset: off, layout: layout, bo: s.ByteOrder}
		ref.decodeSegment(cmddat, s.ByteOrder, s.Is64)
		refs = append(refs, ref)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return refs, nil
}

// FindSegments returns every segment command of s whose name is exactly
// name. It never writes to dat.
func FindSegments(dat []byte, s Slice, name string) ([]SegmentRef, error) {
	return segments(dat, s, func(field []byte) bool {
		return types.SegNameEqual(field, name)
	})
}

// PatchSegment writes prot into the selected field(s) of every segment
// command of s named name, returning how many commands were patched.
func PatchSegment(dat []byte, s Slice, name string, prot types.VmProtection, field ProtField) (int, error) {
	refs, err := FindSegments(dat, s, name)
	if err != nil {
		return 0, err
	}
	if len(refs) == 0 {
		return 0, &SegmentNotFoundError{Segment: name, Slices: []Slice{s}, Total: 1}
	}
	for i := range refs {
		refs[i].setProt(dat, prot, field)
	}
	return len(refs), nil
}

// Patch applies req to every slice of dat. Either every slice contains the
// segment and all matches are rewritten, or dat is left untouched.
func Patch(dat []byte, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	slices, err := Slices(dat)
	if err != nil {
		return nil, err
	}

	found := make([][]SegmentRef, len(slices))
	var missing []Slice
	for i, s := range slices {
		refs, err := FindSegments(dat, s, req.Segment)
		if err != nil {
			return nil, err
		}
		if len(refs) == 0 {
			missing = append(missing, s)
		}
		found[i] = refs
	}
	if len(missing) > 0 {
		return nil, &SegmentNotFoundError{Segment: req.Segment, Slices: missing, Total: len(slices)}
	}

	res := &Result{Slices: slices}
	for i, refs := range found {
		for _, ref := range refs {
			ref.setProt(dat, req.Prot, req.Field)
			c := Change{SegmentRef: ref, NewMaxprot: ref.Maxprot, NewProt: ref.Prot}
			if req.Field.Max() {
				c.NewMaxprot = req.Prot
			}
			if req.Field.Init() {
				c.NewProt = req.Prot
			}
			log.WithFields(log.Fields{
				"slice":    slices[i].Index,
				"arch":     slices[i].Arch(),
				"offset":   fmt.Sprintf("%#x", ref.CmdOffset),
				"segment":  ref.Name,
				"initprot": fmt.Sprintf("%s -> %s", ref.Prot, c.NewProt),
				"maxprot":  fmt.Sprintf("%s -> %s", ref.Maxprot, c.NewMaxprot),
			}).Debug("Patched segment")
			res.Changes = append(res.Changes, c)
		}
	}

	return res, nil
}

// SliceSegments pairs a slice with all of its segment commands.
type SliceSegments struct {
	Slice
	Segments []SegmentRef
}

// Segments lists every segment command of every slice in dat.
func Segments(dat []byte) ([]SliceSegments, error) {
	slices, err := Slices(dat)
	if err != nil {
		return nil, err
	}
	out := make([]SliceSegments, 0, len(slices))
	for _, s := range slices {
		refs, err := segments(dat, s, func([]byte) bool { return true })
		if err != nil {
			return nil, err
		}
		out = append(out, SliceSegments{Slice: s, Segments: refs})
	}
	return out, nil
}
