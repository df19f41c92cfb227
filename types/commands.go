package types

import (
	"bytes"
	"strings"
)

// A LoadCmd is a Mach-O load command.
type LoadCmd uint32

func (c LoadCmd) Command() LoadCmd { return c }

const (
	LC_REQ_DYLD            LoadCmd = 0x80000000
	LC_SEGMENT             LoadCmd = 0x1 // segment of this file to be mapped
	LC_SYMTAB              LoadCmd = 0x2 // link-edit stab symbol table info
	LC_THREAD              LoadCmd = 0x4 // thread
	LC_UNIXTHREAD          LoadCmd = 0x5 // thread+stack
	LC_DYSYMTAB            LoadCmd = 0xb // dynamic link-edit symbol table info
	LC_LOAD_DYLIB          LoadCmd = 0xc // load dylib command
	LC_ID_DYLIB            LoadCmd = 0xd // id dylib command
	LC_LOAD_DYLINKER       LoadCmd = 0xe // load a dynamic linker
	LC_ID_DYLINKER         LoadCmd = 0xf // id dylinker command (not load dylinker command)
	LC_LOAD_WEAK_DYLIB     LoadCmd = (0x18 | LC_REQ_DYLD)
	LC_SEGMENT_64          LoadCmd = 0x19                 // 64-bit segment of this file to be mapped
	LC_UUID                LoadCmd = 0x1b                 // the uuid
	LC_RPATH               LoadCmd = (0x1c | LC_REQ_DYLD) // runpath additions
	LC_CODE_SIGNATURE      LoadCmd = 0x1d                 // local of code signature
	LC_SEGMENT_SPLIT_INFO  LoadCmd = 0x1e                 // local of info to split segments
	LC_ENCRYPTION_INFO     LoadCmd = 0x21                 // encrypted segment information
	LC_DYLD_INFO           LoadCmd = 0x22                 // compressed dyld information
	LC_DYLD_INFO_ONLY      LoadCmd = (0x22 | LC_REQ_DYLD) // compressed dyld information only
	LC_VERSION_MIN_MACOSX  LoadCmd = 0x24                 // build for MacOSX min OS version
	LC_FUNCTION_STARTS     LoadCmd = 0x26                 // compressed table of function start addresses
	LC_MAIN                LoadCmd = (0x28 | LC_REQ_DYLD) // replacement for LC_UNIXTHREAD
	LC_DATA_IN_CODE        LoadCmd = 0x29                 // table of non-instructions in __text
	LC_SOURCE_VERSION      LoadCmd = 0x2A                 // source version used to build binary
	LC_ENCRYPTION_INFO_64  LoadCmd = 0x2C                 // 64-bit encrypted segment information
	LC_NOTE                LoadCmd = 0x31                 // arbitrary data included within a Mach-O file
	LC_BUILD_VERSION       LoadCmd = 0x32                 // build for platform min OS version
	LC_DYLD_EXPORTS_TRIE   LoadCmd = (0x33 | LC_REQ_DYLD) // used with linkedit_data_command, payload is trie
	LC_DYLD_CHAINED_FIXUPS LoadCmd = (0x34 | LC_REQ_DYLD) // used with linkedit_data_command
)

var loadCmdStrings = []intName{
	{uint32(LC_SEGMENT), "LC_SEGMENT"},
	{uint32(LC_SYMTAB), "LC_SYMTAB"},
	{uint32(LC_THREAD), "LC_THREAD"},
	{uint32(LC_UNIXTHREAD), "LC_UNIXTHREAD"},
	{uint32(LC_DYSYMTAB), "LC_DYSYMTAB"},
	{uint32(LC_LOAD_DYLIB), "LC_LOAD_DYLIB"},
	{uint32(LC_ID_DYLIB), "LC_ID_DYLIB"},
	{uint32(LC_LOAD_DYLINKER), "LC_LOAD_DYLINKER"},
	{uint32(LC_ID_DYLINKER), "LC_ID_DYLINKER"},
	{uint32(LC_LOAD_WEAK_DYLIB), "LC_LOAD_WEAK_DYLIB"},
	{uint32(LC_SEGMENT_64), "LC_SEGMENT_64"},
	{uint32(LC_UUID), "LC_UUID"},
	{uint32(LC_RPATH), "LC_RPATH"},
	{uint32(LC_CODE_SIGNATURE), "LC_CODE_SIGNATURE"},
	{uint32(LC_SEGMENT_SPLIT_INFO), "LC_SEGMENT_SPLIT_INFO"},
	{uint32(LC_ENCRYPTION_INFO), "LC_ENCRYPTION_INFO"},
	{uint32(LC_DYLD_INFO), "LC_DYLD_INFO"},
	{uint32(LC_DYLD_INFO_ONLY), "LC_DYLD_INFO_ONLY"},
	{uint32(LC_VERSION_MIN_MACOSX), "LC_VERSION_MIN_MACOSX"},
	{uint32(LC_FUNCTION_STARTS), "LC_FUNCTION_STARTS"},
	{uint32(LC_MAIN), "LC_MAIN"},
	{uint32(LC_DATA_IN_CODE), "LC_DATA_IN_CODE"},
	{uint32(LC_SOURCE_VERSION), "LC_SOURCE_VERSION"},
	{uint32(LC_ENCRYPTION_INFO_64), "LC_ENCRYPTION_INFO_64"},
	{uint32(LC_NOTE), "LC_NOTE"},
	{uint32(LC_BUILD_VERSION), "LC_BUILD_VERSION"},
	{uint32(LC_DYLD_EXPORTS_TRIE), "LC_DYLD_EXPORTS_TRIE"},
	{uint32(LC_DYLD_CHAINED_FIXUPS), "LC_DYLD_CHAINED_FIXUPS"},
}

func (c LoadCmd) String() string   { return stringName(uint32(c), loadCmdStrings, false) }
func (c LoadCmd) GoString() string { return stringName(uint32(c), loadCmdStrings, true) }

type SegFlag uint32

/* Constants for the flags field of the segment_command */
const (
	HighVM            SegFlag = 0x1  /* the file contents for this segment is for the high part of the VM space */
	FvmLib            SegFlag = 0x2  /* this segment is the VM that is allocated by a fixed VM library */
	NoReLoc           SegFlag = 0x4  /* this segment has nothing that was relocated in it and nothing relocated to it */
	ProtectedVersion1 SegFlag = 0x8  /* this segment is protected */
	ReadOnly          SegFlag = 0x10 /* This segment is made read-only after fixups */
)

func (f SegFlag) String() string {
	var names []string
	if f&HighVM != 0 {
		names = append(names, "HighVM")
	}
	if f&FvmLib != 0 {
		names = append(names, "FvmLib")
	}
	if f&NoReLoc != 0 {
		names = append(names, "NoReLoc")
	}
	if f&ProtectedVersion1 != 0 {
		names = append(names, "ProtectedVersion1")
	}
	if f&ReadOnly != 0 {
		names = append(names, "ReadOnly")
	}
	return strings.Join(names, "|")
}

// LoadCmdHeaderSize is the cmd/cmdsize prefix shared by every load command.
const LoadCmdHeaderSize = 2 * 4

// SegNameSize is the width of the fixed segment name field.
const SegNameSize = 16

// A Segment32 is a 32-bit Mach-O segment load command.
type Segment32 struct {
	LoadCmd              /* LC_SEGMENT */
	Len     uint32       /* includes sizeof section structs */
	Name    [16]byte     /* segment name */
	Addr    uint32       /* memory address of this segment */
	Memsz   uint32       /* memory size of this segment */
	Offset  uint32       /* file offset of this segment */
	Filesz  uint32       /* amount to map from the file */
	Maxprot VmProtection /* maximum VM protection */
	Prot    VmProtection /* initial VM protection */
	Nsect   uint32       /* number of sections in segment */
	Flag    SegFlag      /* flags */
}

// A Segment64 is a 64-bit Mach-O segment load command.
type Segment64 struct {
	LoadCmd              /* LC_SEGMENT_64 */
	Len     uint32       /* includes sizeof section_64 structs */
	Name    [16]byte     /* segment name */
	Addr    uint64       /* memory address of this segment */
	Memsz   uint64       /* memory size of this segment */
	Offset  uint64       /* file offset of this segment */
	Filesz  uint64       /* amount to map from the file */
	Maxprot VmProtection /* maximum VM protection */
	Prot    VmProtection /* initial VM protection */
	Nsect   uint32       /* number of sections in segment */
	Flag    SegFlag      /* flags */
}

// A SegmentLayout gives the byte offsets, relative to the start of the
// command, of the fields the patcher touches.
type SegmentLayout struct {
	Cmd      LoadCmd
	Size     int // fixed size without sections
	Name     int
	Maxprot  int
	Initprot int
}

var (
	segmentLayout32 = SegmentLayout{Cmd: LC_SEGMENT, Size: 14 * 4, Name: 2 * 4, Maxprot: 10 * 4, Initprot: 11 * 4}
	segmentLayout64 = SegmentLayout{Cmd: LC_SEGMENT_64, Size: 10*4 + 4*8, Name: 2 * 4, Maxprot: 6*4 + 4*8, Initprot: 7*4 + 4*8}
)

// SegmentLayoutFor returns the segment command layout for a header width.
func SegmentLayoutFor(is64 bool) SegmentLayout {
	if is64 {
		return segmentLayout64
	}
	return segmentLayout32
}

// PutAtMost16Bytes copies name into the 16-byte field at b, zero padding
// the remainder.
func PutAtMost16Bytes(b []byte, name string) {
	for i := 0; i < SegNameSize; i++ {
		if i < len(name) {
			b[i] = name[i]
		} else {
			b[i] = 0
		}
	}
}

// SegNameEqual reports whether the fixed-width name field equals name
// exactly, treating the shorter side as zero padded.
func SegNameEqual(field []byte, name string) bool {
	if len(name) > SegNameSize || len(field) < SegNameSize {
		return false
	}
	var want [SegNameSize]byte
	copy(want[:], name)
	return bytes.Equal(field[:SegNameSize], want[:])
}

// SegName returns the printable name stored in a fixed-width field.
func SegName(field []byte) string {
	if len(field) > SegNameSize {
		field = field[:SegNameSize]
	}
	if i := bytes.IndexByte(field, 0); i >= 0 {
		field = field[:i]
	}
	return string(field)
}
