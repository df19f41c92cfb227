//go:build unix

package store

import (
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Mapped is a Store over a shared, writable mapping of a whole file.
// Writes to Bytes reach the file through the page cache; Flush forces
// them to disk.
type Mapped struct {
	dat []byte
}

// OpenMapped maps path read-write. The descriptor is closed once the
// mapping exists.
func OpenMapped(path string) (Store, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to stat %s", path)
	}
	size := fi.Size()
	if size == 0 {
		return nil, errors.Errorf("cannot map %s: file is empty", path)
	}
	if int64(int(size)) != size {
		return nil, errors.Errorf("cannot map %s: file too large (%d bytes)", path, size)
	}

	dat, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to map %s", path)
	}
	return &Mapped{dat: dat}, nil
}

func (m *Mapped) Bytes() []byte { return m.dat }

func (m *Mapped) Flush() error {
	if m.dat == nil {
		return os.ErrClosed
	}
	if err := unix.Msync(m.dat, unix.MS_SYNC); err != nil {
		return errors.Wrap(err, "failed to sync mapping")
	}
	return nil
}

func (m *Mapped) Close() error {
	if m.dat == nil {
		return nil
	}
	err := unix.Munmap(m.dat)
	m.dat = nil
	if err != nil {
		return errors.Wrap(err, "failed to unmap file")
	}
	return nil
}
