package macho

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrSegmentNotFound = errors.New("segment not found")
	ErrTruncated       = errors.New("load commands truncated")
)

// FormatError is returned by some operations if the data does
// not have the correct format for an object file.
type FormatError struct {
	off int64
	msg string
	val interface{}
}

func (e *FormatError) Error() string {
	msg := e.msg
	if e.val != nil {
		msg += fmt.Sprintf(" '%v'", e.val)
	}
	msg += fmt.Sprintf(" in record at byte %#x", e.off)
	return msg
}

// A UsageError reports a bad argument. It is always returned before the
// target file is opened.
type UsageError struct {
	Arg string
	Err error
}

func (e *UsageError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Arg, e.Err)
}

func (e *UsageError) Unwrap() error { return e.Err }

// A SegmentNotFoundError names the requested segment and, for fat files,
// the slices that lack it.
type SegmentNotFoundError struct {
	Segment string
	Slices  []Slice
	Total   int
}

func (e *SegmentNotFoundError) Error() string {
	if e.Total <= 1 || len(e.Slices) == 0 {
		return fmt.Sprintf("segment %s not found", e.Segment)
	}
	var names []string
	for _, s := range e.Slices {
		names = append(names, fmt.Sprintf("%d (%s)", s.Index, s.Arch()))
	}
	return fmt.Sprintf("segment %s not found in slice %s of %d", e.Segment, strings.Join(names, ", "), e.Total)
}

func (e *SegmentNotFoundError) Is(target error) bool { return target == ErrSegmentNotFound }

// A TruncationError reports a load command that would read past the
// declared load command region or the end of its image.
type TruncationError struct {
	Offset int64 // absolute offset of the offending record
	Index  int   // load command index, -1 for the header itself
	Msg    string
}

func (e *TruncationError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("%s at byte %#x", e.Msg, e.Offset)
	}
	return fmt.Sprintf("load command %d at byte %#x: %s", e.Index, e.Offset, e.Msg)
}

func (e *TruncationError) Is(target error) bool { return target == ErrTruncated }
