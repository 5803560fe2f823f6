package credential

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/nhle/mailpdf/internal/fsutil"
	"github.com/nhle/mailpdf/internal/model"
)

// FileStore keeps the credential in a single file. Writes go to a temp
// file in the same directory which then replaces the target, so the file
// is either absent or a complete snapshot.
type FileStore struct {
	path string
}

// NewFileStore creates a store for the file at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the file the credential is persisted to.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the credential file. A missing file yields an empty
// credential.
func (s *FileStore) Load(_ context.Context) (*Credential, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return New(nil), nil
		}
		return New(nil), fmt.Errorf("reading credential %s: %w", s.path, err)
	}
	return New(data), nil
}

// Save atomically writes the credential if it is dirty.
func (s *FileStore) Save(_ context.Context, c *Credential) error {
	data, dirty := c.snapshot()
	if !dirty {
		return nil
	}

	if err := fsutil.WriteFileAtomic(s.path, data, 0o700, 0o600); err != nil {
		return &model.PersistenceError{Op: "save credential", Path: s.path, Err: err}
	}

	c.markSaved(data)
	return nil
}
