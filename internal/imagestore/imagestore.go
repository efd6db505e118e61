// Package imagestore removes uploaded promo images from local disk.
package imagestore

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-faster/errors"
)

// ErrOutsideRoot is returned for paths that escape the image directory.
var ErrOutsideRoot = errors.New("image path outside image directory")

// Dir deletes images stored under a root directory.
type Dir struct {
	root string
}

// New returns a Dir rooted at root.
func New(root string) *Dir {
	return &Dir{root: filepath.Clean(root)}
}

// Delete removes the image at path, relative to the root. A leading slash or
// an "images/" style URL prefix is accepted. Missing files are not an error.
func (d *Dir) Delete(_ context.Context, path string) error {
	full, err := d.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Wrapf(err, "remove %s", full)
	}
	return nil
}

func (d *Dir) resolve(path string) (string, error) {
	rel := strings.TrimPrefix(filepath.ToSlash(path), "/")
	if base := filepath.Base(d.root); base != "." && base != "/" {
		rel = strings.TrimPrefix(rel, base+"/")
	}
	if rel == "" {
		return "", ErrOutsideRoot
	}
	full := filepath.Join(d.root, filepath.FromSlash(rel))
	r, err := filepath.Rel(d.root, full)
	if err != nil || r == "." || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return "", ErrOutsideRoot
	}
	return full, nil
}
