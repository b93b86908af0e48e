package evidence

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// #region errors
// ErrOutsideDir is returned when a requested path does not resolve inside
// the evidence directory.
var ErrOutsideDir = errors.New("path outside evidence directory")
// #endregion errors

// #region dir
// Dir is a directory of evidence snapshots named by capture time.
type Dir struct {
	root string
}

// NewDir creates root if needed and returns a Dir rooted there.
func NewDir(root string) (*Dir, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve evidence dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create evidence dir: %w", err)
	}
	return &Dir{root: abs}, nil
}

// Root returns the absolute directory path.
func (d *Dir) Root() string {
	return d.root
}
// #endregion dir

// #region naming
// FileName returns violation_YYYYMMDD_HHMMSS_ffffff.ext. Microseconds keep
// two captures in the same second apart.
func FileName(at time.Time, ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" {
		ext = "jpg"
	}
	return fmt.Sprintf("violation_%s_%06d.%s", at.Format("20060102_150405"), at.Nanosecond()/1000, ext)
}
// #endregion naming

// #region write
// Write stores data under a timestamp-derived name and returns its path.
// An existing file with the same name is never overwritten.
func (d *Dir) Write(at time.Time, data []byte, ext string) (string, error) {
	if len(data) == 0 {
		return "", errors.New("write evidence: empty snapshot")
	}
	path := filepath.Join(d.root, FileName(at, ext))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create evidence: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("write evidence: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close evidence: %w", err)
	}
	return path, nil
}
// #endregion write

// #region open
// Open returns the contents of a stored artifact. Paths that escape the
// directory are refused with ErrOutsideDir.
func (d *Dir) Open(path string) ([]byte, error) {
	resolved, err := d.resolve(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return nil, fmt.Errorf("read evidence: %w", err)
	}
	return data, nil
}

// Remove deletes an artifact. A missing file is not an error.
func (d *Dir) Remove(path string) error {
	if path == "" {
		return nil
	}
	resolved, err := d.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(resolved); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove evidence: %w", err)
	}
	return nil
}

func (d *Dir) resolve(path string) (string, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(d.root, path)
	}
	clean := filepath.Clean(path)
	rel, err := filepath.Rel(d.root, clean)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideDir, path)
	}
	return clean, nil
}
// #endregion open
