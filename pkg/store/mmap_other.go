//go:build !unix

package store

// OpenMapped falls back to a buffered store where shared file mappings
// are not available through x/sys/unix.
func OpenMapped(path string) (Store, error) {
	b, err := OpenBuffered(path)
	if err != nil {
		return nil, err
	}
	return b, nil
}
