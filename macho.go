// Package macho rewrites the VM protections of Mach-O segments in place.
//
// Thin and universal (fat) files are supported, with 32-bit and 64-bit
// headers in either byte order. Only the maxprot and initprot fields of
// matching segment commands are touched; every other byte, including the
// file size, is preserved.
//
// Mach-O header data structures
// Originally at:
// http://developer.apple.com/mac/library/documentation/DeveloperTools/Conceptual/MachORuntime/Reference/reference.html (since deleted by Apple)
// Archived copy at:
// https://web.archive.org/web/20090819232456/http://developer.apple.com/documentation/DeveloperTools/Conceptual/MachORuntime/index.html
// For cloned PDF see:
// https://github.com/aidansteele/osx-abi-macho-file-format-reference
package macho
