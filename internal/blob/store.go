package blob

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Store abstracts the attachment blob backend. Refs are opaque keys;
// deletion is best-effort and a missing object is not an error.
type Store interface {
	Delete(ctx context.Context, ref string) error
}

// DiskStore keeps blobs as flat files under a root directory.
type DiskStore struct {
	root string
}

// NewDiskStore creates the root directory if needed.
func NewDiskStore(root string) (*DiskStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &DiskStore{root: root}, nil
}

// Delete removes the object for ref. Missing objects return nil.
func (s *DiskStore) Delete(_ context.Context, ref string) error {
	path, err := s.resolve(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	return nil
}

// resolve rejects refs that escape the root directory.
func (s *DiskStore) resolve(ref string) (string, error) {
	cleaned := filepath.Clean(ref)
	if cleaned == "." || strings.HasPrefix(cleaned, "..") || filepath.IsAbs(cleaned) {
		return "", errors.New("invalid blob ref")
	}
	return filepath.Join(s.root, cleaned), nil
}
