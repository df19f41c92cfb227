// Package store persists in-place edits of a file's bytes.
//
// The patcher only ever sees a []byte; how the edits reach the disk is up
// to the Store behind it.
package store

// A Store owns the mutable bytes of one file for the duration of an edit.
type Store interface {
	// Bytes returns the file contents. Writes to the slice are edits.
	Bytes() []byte
	// Flush persists every edit made so far.
	Flush() error
	// Close releases the underlying file. Unflushed edits may be lost.
	Close() error
}

// Memory is a Store over a caller owned buffer.
type Memory struct {
	dat []byte
}

// NewMemory wraps dat without copying it.
func NewMemory(dat []byte) *Memory {
	return &Memory{dat: dat}
}

func (m *Memory) Bytes() []byte { return m.dat }
func (m *Memory) Flush() error  { return nil }
func (m *Memory) Close() error  { return nil }
