package macho

import (
	"os"

	"github.com/apex/log"
	"github.com/appsworld/machoprot/pkg/store"
	"github.com/pkg/errors"
)

type config struct {
	buffered bool
	dryRun   bool
}

// An Option configures PatchFile.
type Option func(c *config)

// WithBuffered selects the buffered read-modify-write store instead of a
// shared file mapping.
func WithBuffered(buffered bool) Option {
	return func(c *config) {
		c.buffered = buffered
	}
}

// WithDryRun computes the changes without writing anything to the file.
func WithDryRun(dryRun bool) Option {
	return func(c *config) {
		c.dryRun = dryRun
	}
}

// PatchStore applies req to the bytes held by st and flushes them.
// Nothing is written when the request fails.
func PatchStore(st store.Store, req Request) (*Result, error) {
	res, err := Patch(st.Bytes(), req)
	if err != nil {
		return nil, err
	}
	if err := st.Flush(); err != nil {
		return nil, err
	}
	return res, nil
}

// PatchFile opens the Mach-O file at path and rewrites the protections
// of the requested segment in every architecture it contains. The request
// is validated before the file is opened.
func PatchFile(path string, req Request, opts ...Option) (res *Result, err error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var c config
	for _, opt := range opts {
		opt(&c)
	}

	var st store.Store
	if c.buffered || c.dryRun {
		st, err = store.OpenBuffered(path)
	} else {
		st, err = store.OpenMapped(path)
	}
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := st.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if c.dryRun {
		log.Debugf("Dry run: %s will not be modified", path)
		return Patch(st.Bytes(), req)
	}

	return PatchStore(st, req)
}

// ReadSegments lists the segments of every slice of the file at path.
func ReadSegments(path string) ([]SliceSegments, error) {
	dat, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	return Segments(dat)
}
