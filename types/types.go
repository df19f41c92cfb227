package types

import (
	"fmt"
	"strconv"
)

type VmProtection int32

const (
	VmProtNone    VmProtection = 0x0
	VmProtRead    VmProtection = 0x1
	VmProtWrite   VmProtection = 0x2
	VmProtExecute VmProtection = 0x4
	VmProtAll                  = VmProtRead | VmProtWrite | VmProtExecute
)

func (v VmProtection) Read() bool {
	return (v & VmProtRead) != 0
}

func (v VmProtection) Write() bool {
	return (v & VmProtWrite) != 0
}

func (v VmProtection) Execute() bool {
	return (v & VmProtExecute) != 0
}

func (v VmProtection) String() string {
	var protStr string
	if v.Read() {
		protStr += "r"
	} else {
		protStr += "-"
	}
	if v.Write() {
		protStr += "w"
	} else {
		protStr += "-"
	}
	if v.Execute() {
		protStr += "x"
	} else {
		protStr += "-"
	}
	return protStr
}

// Set parses a permission string made of the characters r, w and x.
// Order does not matter, repeats are harmless and the empty string
// clears every permission.
func (v *VmProtection) Set(s string) error {
	prot := VmProtNone
	for _, c := range s {
		switch c {
		case 'r':
			prot |= VmProtRead
		case 'w':
			prot |= VmProtWrite
		case 'x':
			prot |= VmProtExecute
		default:
			return fmt.Errorf("invalid protection character %q in %q (want only r, w, x)", c, s)
		}
	}
	*v = prot
	return nil
}

// Type satisfies pflag.Value.
func (v *VmProtection) Type() string { return "rwx" }

// ParseVmProtection is the functional form of Set.
func ParseVmProtection(s string) (VmProtection, error) {
	var v VmProtection
	if err := v.Set(s); err != nil {
		return VmProtNone, err
	}
	return v, nil
}

type intName struct {
	i uint32
	s string
}

func stringName(i uint32, names []intName, goSyntax bool) string {
	for _, n := range names {
		if n.i == i {
			if goSyntax {
				return "macho." + n.s
			}
			return n.s
		}
	}
	return "0x" + strconv.FormatUint(uint64(i), 16)
}
