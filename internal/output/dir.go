package output

import (
	"context"
	"path/filepath"

	"github.com/nhle/mailpdf/internal/fsutil"
	"github.com/nhle/mailpdf/internal/model"
)

// DirSink writes attachments into a local directory, using the attachment
// name verbatim as the file name. An existing file of the same name is
// replaced.
type DirSink struct {
	dir string
}

// NewDirSink creates a sink rooted at dir. The directory is created on
// first write.
func NewDirSink(dir string) *DirSink {
	return &DirSink{dir: dir}
}

// Dir returns the output directory.
func (s *DirSink) Dir() string {
	return s.dir
}

func (s *DirSink) Write(ctx context.Context, name string, data []byte, _ string) (string, error) {
	path := filepath.Join(s.dir, name)
	if err := ctx.Err(); err != nil {
		return "", &model.PersistenceError{Op: "write attachment", Path: path, Err: err}
	}
	if err := fsutil.WriteFileAtomic(path, data, 0o755, 0o644); err != nil {
		return "", &model.PersistenceError{Op: "write attachment", Path: path, Err: err}
	}
	return path, nil
}
