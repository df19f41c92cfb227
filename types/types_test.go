package types

import (
	"encoding/binary"
	"testing"
)

func TestVmProtectionSet(t *testing.T) {
	tests := []struct {
		in      string
		want    VmProtection
		wantErr bool
	}{
		{"", VmProtNone, false},
		{"r", VmProtRead, false},
		{"rx", VmProtRead | VmProtExecute, false},
		{"xr", VmProtRead | VmProtExecute, false},
		{"rwx", VmProtAll, false},
		{"rrwwx", VmProtAll, false},
		{"w", VmProtWrite, false},
		{"rz", VmProtNone, true},
		{"R", VmProtNone, true},
		{"r-x", VmProtNone, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			v := VmProtection(0x7f)
			err := v.Set(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Set(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if tt.wantErr {
				if v != 0x7f {
					t.Errorf("Set(%q) modified value on error: %s", tt.in, v)
				}
				return
			}
			if v != tt.want {
				t.Errorf("Set(%q) = %s; want %s", tt.in, v, tt.want)
			}
		})
	}
}

func TestVmProtectionString(t *testing.T) {
	tests := []struct {
		v    VmProtection
		want string
	}{
		{VmProtNone, "---"},
		{VmProtRead | VmProtExecute, "r-x"},
		{VmProtRead | VmProtWrite, "rw-"},
		{VmProtAll, "rwx"},
	}
	for _, tt := range tests {
		if got := tt.v.String(); got != tt.want {
			t.Errorf("VmProtection(%#x).String() = %s; want %s", int32(tt.v), got, tt.want)
		}
	}
}

func TestReadMagic(t *testing.T) {
	le64 := make([]byte, 4)
	binary.LittleEndian.PutUint32(le64, uint32(Magic64))
	be32 := make([]byte, 4)
	binary.BigEndian.PutUint32(be32, uint32(Magic32))
	fat := make([]byte, 4)
	binary.BigEndian.PutUint32(fat, uint32(MagicFat))

	tests := []struct {
		name  string
		in    []byte
		magic Magic
		order binary.ByteOrder
		ok    bool
	}{
		{"little endian 64", le64, Magic64, binary.LittleEndian, true},
		{"big endian 32", be32, Magic32, binary.BigEndian, true},
		{"fat", fat, 0, nil, false},
		{"short", []byte{0xcf, 0xfa}, 0, nil, false},
		{"garbage", []byte("\x7fELF"), 0, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, o, ok := ReadMagic(tt.in)
			if ok != tt.ok || m != tt.magic || o != tt.order {
				t.Errorf("ReadMagic() = %s, %v, %t; want %s, %v, %t", m, o, ok, tt.magic, tt.order, tt.ok)
			}
		})
	}
}

func TestSegNameEqual(t *testing.T) {
	field := make([]byte, SegNameSize)
	PutAtMost16Bytes(field, "__TEXT")

	full := make([]byte, SegNameSize)
	PutAtMost16Bytes(full, "__SIXTEEN_BYTES_")

	tests := []struct {
		field []byte
		name  string
		want  bool
	}{
		{field, "__TEXT", true},
		{field, "__TEX", false},
		{field, "__TEXT_EXEC", false},
		{field, "", false},
		{full, "__SIXTEEN_BYTES_", true},
		{full, "__SIXTEEN_BYTES", false},
		{full, "__SIXTEEN_BYTES__", false},
	}
	for _, tt := range tests {
		if got := SegNameEqual(tt.field, tt.name); got != tt.want {
			t.Errorf("SegNameEqual(%q, %q) = %t; want %t", SegName(tt.field), tt.name, got, tt.want)
		}
	}
	if got := SegName(full); got != "__SIXTEEN_BYTES_" {
		t.Errorf("SegName() = %q; want __SIXTEEN_BYTES_", got)
	}
}

func TestCPUIs64(t *testing.T) {
	for cpu, want := range map[CPU]bool{
		CPU386:     false,
		CPUAmd64:   true,
		CPUArm:     false,
		CPUArm64:   true,
		CPUArm6432: false,
		CPUPpc64:   true,
	} {
		if got := cpu.Is64(); got != want {
			t.Errorf("%s.Is64() = %t; want %t", cpu, got, want)
		}
	}
}
