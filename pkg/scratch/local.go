package scratch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Local implements Storage on the local filesystem under a root directory.
type Local struct {
	root string
}

// NewLocal creates local scratch storage rooted at dir.
func NewLocal(dir string) *Local {
	return &Local{root: dir}
}

// resolve maps prefix to a path under the root, rejecting escapes.
func (l *Local) resolve(prefix string) (string, error) {
	if prefix == "" || strings.Contains(prefix, "..") || filepath.IsAbs(prefix) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPrefix, prefix)
	}
	cleaned := filepath.Clean(prefix)
	if cleaned == "." {
		return "", fmt.Errorf("%w: %q", ErrInvalidPrefix, prefix)
	}
	return filepath.Join(l.root, cleaned), nil
}

// List walks the prefix directory and returns all regular file paths.
func (l *Local) List(_ context.Context, prefix string) ([]string, error) {
	dir, err := l.resolve(prefix)
	if err != nil {
		return nil, err
	}

	var files []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing scratch prefix %q: %w", prefix, err)
	}
	sort.Strings(files)
	return files, nil
}

// RemoveAll deletes the prefix directory and everything under it.
func (l *Local) RemoveAll(_ context.Context, prefix string) error {
	dir, err := l.resolve(prefix)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("removing scratch prefix %q: %w", prefix, err)
	}
	return nil
}
