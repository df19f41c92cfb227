package store

import (
	"io"
	"os"

	"github.com/apex/log"
	"github.com/pkg/errors"
)

// Buffered reads a file into memory and on Flush writes back only the byte
// runs that changed, at their original offsets. The file length is never
// changed.
type Buffered struct {
	f    *os.File
	dat  []byte
	orig []byte
}

// OpenBuffered opens path read-write and reads its contents.
func OpenBuffered(path string) (*Buffered, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "failed to stat %s", path)
	}
	dat := make([]byte, fi.Size())
	if _, err := io.ReadFull(f, dat); err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	return &Buffered{
		f:    f,
		dat:  dat,
		orig: append([]byte(nil), dat...),
	}, nil
}

func (b *Buffered) Bytes() []byte { return b.dat }

func (b *Buffered) Flush() error {
	if b.f == nil {
		return os.ErrClosed
	}
	wrote := false
	for _, r := range diffRuns(b.orig, b.dat) {
		if _, err := b.f.WriteAt(b.dat[r.start:r.end], int64(r.start)); err != nil {
			return errors.Wrapf(err, "failed to write %d bytes at %#x", r.end-r.start, r.start)
		}
		copy(b.orig[r.start:r.end], b.dat[r.start:r.end])
		log.Debugf("Wrote %d bytes at %#x", r.end-r.start, r.start)
		wrote = true
	}
	if wrote {
		if err := b.f.Sync(); err != nil {
			return errors.Wrap(err, "failed to sync file")
		}
	}
	return nil
}

func (b *Buffered) Close() error {
	if b.f == nil {
		return nil
	}
	err := b.f.Close()
	b.f = nil
	if err != nil {
		return errors.Wrap(err, "failed to close file")
	}
	return nil
}

type byteRun struct {
	start, end int
}

// diffRuns returns the maximal runs where a and b differ. Both slices
// have the same length.
func diffRuns(a, b []byte) []byteRun {
	var runs []byteRun
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] == b[i] {
			continue
		}
		j := i
		for j < len(a) && j < len(b) && a[j] != b[j] {
			j++
		}
		runs = append(runs, byteRun{i, j})
		i = j
	}
	return runs
}
