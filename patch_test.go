package macho

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/appsworld/machoprot/internal/fixture"
	"github.com/appsworld/machoprot/types"
	"github.com/google/go-cmp/cmp"
)

// Offsets inside fixture.Image{Is64: true, Loads: textData}.
const (
	off64PageZero = 32
	off64Text     = off64PageZero + 72
	off64Data     = off64Text + 72 + 2*80
	off64UUID     = off64Data + 72 + 80
	off64LinkEdit = off64UUID + 24
)

func put32(dat []byte, off int, v uint32) {
	binary.LittleEndian.PutUint32(dat[off:], v)
}

// changed returns the offsets at which a and b differ.
func changed(a, b []byte) []int {
	var offs []int
	for i := range a {
		if a[i] != b[i] {
			offs = append(offs, i)
		}
	}
	return offs
}

func lookup(t *testing.T, dat []byte, base int, is64 bool, name string) (types.VmProtection, types.VmProtection) {
	t.Helper()
	maxprot, prot, ok := fixture.Lookup(dat, base, is64, binary.LittleEndian, name)
	if !ok {
		t.Fatalf("segment %s not present at %#x", name, base)
	}
	return maxprot, prot
}

func TestPatchThinMaxprot(t *testing.T) {
	orig := fixture.Image{Is64: true, Loads: textData}.Bytes()
	dat := append([]byte(nil), orig...)

	res, err := Patch(dat, Request{Segment: "__TEXT", Prot: types.VmProtAll, Field: MaxProt})
	if err != nil {
		t.Fatalf("Patch() error = %v", err)
	}

	maxprot, prot := lookup(t, dat, 0, true, "__TEXT")
	if maxprot != types.VmProtAll {
		t.Errorf("__TEXT maxprot = %s; want rwx", maxprot)
	}
	if prot != types.VmProtRead|types.VmProtExecute {
		t.Errorf("__TEXT initprot = %s; want r-x", prot)
	}
	for _, off := range changed(orig, dat) {
		if off < off64Text+56 || off >= off64Text+60 {
			t.Errorf("byte %#x changed outside __TEXT maxprot", off)
		}
	}
	if len(dat) != len(orig) {
		t.Errorf("image length changed: %d -> %d", len(orig), len(dat))
	}

	if len(res.Changes) != 1 {
		t.Fatalf("Patch() returned %d changes; want 1", len(res.Changes))
	}
	c := res.Changes[0]
	if c.CmdOffset != off64Text || c.Maxprot != 5 || c.NewMaxprot != 7 || c.NewProt != 5 {
		t.Errorf("Patch() change = %s at %#x", c, c.CmdOffset)
	}
}

func TestPatchFields(t *testing.T) {
	tests := []struct {
		field    ProtField
		prot     string
		wantMax  types.VmProtection
		wantInit types.VmProtection
	}{
		{BothProt, "rw", 3, 3},
		{InitProt, "r", 5, 1},
		{MaxProt, "rwx", 7, 5},
		{BothProt, "", 0, 0},
		{MaxProt, "xxrr", 5, 5},
	}
	for _, tt := range tests {
		t.Run(tt.field.String()+"/"+tt.prot, func(t *testing.T) {
			dat := fixture.Image{Is64: true, Loads: textData}.Bytes()
			req, err := ParseRequest("__TEXT", tt.prot, tt.field.String())
			if err != nil {
				t.Fatalf("ParseRequest() error = %v", err)
			}
			if _, err := Patch(dat, req); err != nil {
				t.Fatalf("Patch() error = %v", err)
			}
			maxprot, prot := lookup(t, dat, 0, true, "__TEXT")
			if maxprot != tt.wantMax || prot != tt.wantInit {
				t.Errorf("__TEXT = %s/%s; want %s/%s", prot, maxprot, tt.wantInit, tt.wantMax)
			}
		})
	}
}

func TestPatchFat(t *testing.T) {
	loads := []interface{}{
		fixture.Segment{Name: "__TEXT", Maxprot: 5, Prot: 5, Nsect: 1},
		fixture.Segment{Name: "__DATA", Maxprot: 7, Prot: 1},
		fixture.Raw{Cmd: types.LC_SYMTAB, Size: 24},
	}
	dat := fixture.Fat(types.MagicFat, 12,
		fixture.Image{Loads: loads},
		fixture.Image{Is64: true, Loads: loads},
	)
	orig := append([]byte(nil), dat...)

	res, err := Patch(dat, Request{Segment: "__DATA", Prot: types.VmProtRead | types.VmProtWrite, Field: BothProt})
	if err != nil {
		t.Fatalf("Patch() error = %v", err)
	}
	if len(res.Changes) != 2 {
		t.Fatalf("Patch() returned %d changes; want 2", len(res.Changes))
	}

	for _, s := range []struct {
		base    int
		is64    bool
		protOff int
	}{
		{0x1000, false, 28 + 56 + 68 + 40},
		{0x2000, true, 32 + 72 + 80 + 56},
	} {
		maxprot, prot := lookup(t, dat, s.base, s.is64, "__DATA")
		if maxprot != 3 || prot != 3 {
			t.Errorf("__DATA at %#x = %s/%s; want rw-/rw-", s.base, prot, maxprot)
		}
		maxprot, prot = lookup(t, dat, s.base, s.is64, "__TEXT")
		if maxprot != 5 || prot != 5 {
			t.Errorf("__TEXT at %#x = %s/%s; want r-x/r-x", s.base, prot, maxprot)
		}
		end := s.base + 0x1000
		if end > len(dat) {
			end = len(dat)
		}
		for _, off := range changed(orig[s.base:end], dat[s.base:end]) {
			if off < s.protOff || off >= s.protOff+8 {
				t.Errorf("byte %#x changed outside __DATA protections", s.base+off)
			}
		}
	}
	if d := changed(orig[:0x1000], dat[:0x1000]); len(d) != 0 {
		t.Errorf("fat header changed at %v", d)
	}
}

func TestPatchFatIndependentSlices(t *testing.T) {
	dat := fixture.Fat(types.MagicFat64, 12,
		fixture.Image{Is64: true, CPU: types.CPUAmd64, Loads: []interface{}{
			fixture.Raw{Cmd: types.LC_UUID, Size: 24},
			fixture.Segment{Name: "__AUTH", Maxprot: 1, Prot: 1},
		}},
		fixture.Image{Is64: true, CPU: types.CPUArm64, Loads: []interface{}{
			fixture.Segment{Name: "__AUTH", Maxprot: 1, Prot: 1, Nsect: 3},
			fixture.Segment{Name: "__AUTH_CONST", Maxprot: 1, Prot: 1},
		}},
	)

	if _, err := Patch(dat, Request{Segment: "__AUTH", Prot: 3, Field: MaxProt}); err != nil {
		t.Fatalf("Patch() error = %v", err)
	}
	if maxprot, _ := lookup(t, dat, 0x1000, true, "__AUTH"); maxprot != 3 {
		t.Errorf("slice 0 __AUTH maxprot = %s; want rw-", maxprot)
	}
	if maxprot, _ := lookup(t, dat, 0x2000, true, "__AUTH"); maxprot != 3 {
		t.Errorf("slice 1 __AUTH maxprot = %s; want rw-", maxprot)
	}
	if maxprot, _ := lookup(t, dat, 0x2000, true, "__AUTH_CONST"); maxprot != 1 {
		t.Errorf("slice 1 __AUTH_CONST maxprot = %s; want r--", maxprot)
	}
}

func TestPatchFatSegmentInOneSlice(t *testing.T) {
	only := []interface{}{fixture.Segment{Name: "__ONLY", Maxprot: 1, Prot: 1}}
	dat := fixture.Fat(types.MagicFat, 12,
		fixture.Image{Is64: true, Loads: textData},
		fixture.Image{Is64: true, CPU: types.CPUArm64, Loads: append(only, textData...)},
		fixture.Image{Loads: textData},
	)
	orig := append([]byte(nil), dat...)

	_, err := Patch(dat, Request{Segment: "__ONLY", Prot: 7})
	var nerr *SegmentNotFoundError
	if !errors.As(err, &nerr) {
		t.Fatalf("Patch() error = %v; want *SegmentNotFoundError", err)
	}
	var idx []int
	for _, s := range nerr.Slices {
		idx = append(idx, s.Index)
	}
	if diff := cmp.Diff([]int{0, 2}, idx); diff != "" {
		t.Errorf("missing slices mismatch (-want +got):\n%s", diff)
	}
	if nerr.Total != 3 {
		t.Errorf("Total = %d; want 3", nerr.Total)
	}
	if !bytes.Equal(orig, dat) {
		t.Error("Patch() modified the image after failing")
	}
}

func TestPatchRoundTrip(t *testing.T) {
	direct := fixture.Image{Is64: true, Loads: textData}.Bytes()
	twice := append([]byte(nil), direct...)

	if _, err := Patch(twice, Request{Segment: "__DATA", Prot: 7}); err != nil {
		t.Fatal(err)
	}
	if _, err := Patch(twice, Request{Segment: "__DATA", Prot: 1}); err != nil {
		t.Fatal(err)
	}
	if _, err := Patch(direct, Request{Segment: "__DATA", Prot: 1}); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(direct, twice) {
		t.Errorf("patching twice differs from patching once at %v", changed(direct, twice))
	}
}

func TestPatchDuplicateSegments(t *testing.T) {
	dat := fixture.Image{Loads: []interface{}{
		fixture.Segment{Name: "__DATA", Maxprot: 3, Prot: 3},
		fixture.Segment{Name: "__TEXT", Maxprot: 5, Prot: 5},
		fixture.Segment{Name: "__DATA", Maxprot: 3, Prot: 1, Nsect: 1},
	}}.Bytes()

	n, err := PatchSegment(dat, Slice{Size: int64(len(dat)), ByteOrder: binary.LittleEndian}, "__DATA", 0, InitProt)
	if err != nil {
		t.Fatalf("PatchSegment() error = %v", err)
	}
	if n != 2 {
		t.Errorf("PatchSegment() = %d; want 2", n)
	}
	refs, err := FindSegments(dat, Slice{ByteOrder: binary.LittleEndian}, "__DATA")
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range refs {
		if r.Prot != 0 || r.Maxprot != 3 {
			t.Errorf("%s", &r)
		}
	}
}

func TestPatchNotFound(t *testing.T) {
	tests := []struct {
		name    string
		segment string
	}{
		{"absent", "__OBJC"},
		{"prefix of existing", "__TEX"},
		{"existing is prefix", "__TEXT_EXEC"},
		{"case differs", "__text"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orig := fixture.Image{Is64: true, Loads: textData}.Bytes()
			dat := append([]byte(nil), orig...)
			_, err := Patch(dat, Request{Segment: tt.segment, Prot: 7})
			if !errors.Is(err, ErrSegmentNotFound) {
				t.Fatalf("Patch() error = %v; want ErrSegmentNotFound", err)
			}
			if want := "segment " + tt.segment + " not found"; err.Error() != want {
				t.Errorf("Error() = %q; want %q", err.Error(), want)
			}
			if !bytes.Equal(orig, dat) {
				t.Error("Patch() modified the image after failing")
			}
		})
	}
}

func TestPatchTruncated(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(dat []byte) []byte
	}{
		{"zero cmdsize", func(dat []byte) []byte {
			put32(dat, off64UUID+4, 0)
			return dat
		}},
		{"cmdsize past sizeofcmds", func(dat []byte) []byte {
			put32(dat, off64LinkEdit+4, 0x1000)
			return dat
		}},
		{"ncmds too large", func(dat []byte) []byte {
			put32(dat, 16, 6)
			return dat
		}},
		{"sizeofcmds past end of file", func(dat []byte) []byte {
			put32(dat, 20, 0x10000)
			return dat
		}},
		{"header cut short", func(dat []byte) []byte {
			return dat[:20]
		}},
		{"segment command too small", func([]byte) []byte {
			return fixture.Image{Is64: true, Loads: []interface{}{
				fixture.Raw{Cmd: types.LC_SEGMENT_64, Size: 16},
				fixture.Segment{Name: "__TEXT", Maxprot: 5, Prot: 5},
			}}.Bytes()
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dat := tt.mutate(fixture.Image{Is64: true, Loads: textData}.Bytes())
			orig := append([]byte(nil), dat...)
			_, err := Patch(dat, Request{Segment: "__TEXT", Prot: 7})
			var terr *TruncationError
			if !errors.As(err, &terr) {
				t.Fatalf("Patch() error = %v; want *TruncationError", err)
			}
			if !errors.Is(err, ErrTruncated) {
				t.Errorf("errors.Is(%v, ErrTruncated) = false", err)
			}
			if !bytes.Equal(orig, dat) {
				t.Error("Patch() modified the image after failing")
			}
		})
	}
}

func TestPatchBigEndian(t *testing.T) {
	dat := fixture.Image{CPU: types.CPUPpc, ByteOrder: binary.BigEndian, Loads: textData}.Bytes()
	if _, err := Patch(dat, Request{Segment: "__DATA", Prot: 1, Field: MaxProt}); err != nil {
		t.Fatalf("Patch() error = %v", err)
	}
	maxprot, prot, ok := fixture.Lookup(dat, 0, false, binary.BigEndian, "__DATA")
	if !ok || maxprot != 1 || prot != 3 {
		t.Errorf("__DATA = %s/%s (found %t); want rw-/r--", prot, maxprot, ok)
	}
}

func TestRequestValidate(t *testing.T) {
	tests := []struct {
		name string
		req  Request
	}{
		{"empty segment", Request{}},
		{"long segment", Request{Segment: "__SEVENTEEN_BYTES"}},
		{"prot bits", Request{Segment: "__TEXT", Prot: 0x10}},
		{"field", Request{Segment: "__TEXT", Field: 9}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var uerr *UsageError
			if err := tt.req.Validate(); !errors.As(err, &uerr) {
				t.Errorf("Validate() error = %v; want *UsageError", err)
			}
		})
	}

	for _, args := range [][3]string{
		{"__TEXT", "rz", "both"},
		{"__TEXT", "rw", "sideways"},
		{"", "rw", "max"},
	} {
		var uerr *UsageError
		if _, err := ParseRequest(args[0], args[1], args[2]); !errors.As(err, &uerr) {
			t.Errorf("ParseRequest(%q) error = %v; want *UsageError", args, err)
		}
	}
}

func TestSegments(t *testing.T) {
	dat := fixture.Fat(types.MagicFat, 12,
		fixture.Image{Loads: textData},
		fixture.Image{Is64: true, Loads: textData[1:3]},
	)
	got, err := Segments(dat)
	if err != nil {
		t.Fatalf("Segments() error = %v", err)
	}

	type seg struct {
		Name          string
		Prot, Maxprot types.VmProtection
	}
	var names [][]seg
	for _, ss := range got {
		var segs []seg
		for _, r := range ss.Segments {
			segs = append(segs, seg{r.Name, r.Prot, r.Maxprot})
		}
		names = append(names, segs)
	}
	want := [][]seg{
		{{"__PAGEZERO", 0, 0}, {"__TEXT", 5, 5}, {"__DATA", 3, 3}, {"__LINKEDIT", 1, 1}},
		{{"__TEXT", 5, 5}, {"__DATA", 3, 3}},
	}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("Segments() mismatch (-want +got):\n%s", diff)
	}
}
