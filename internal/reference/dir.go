package reference

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Dir reads page text from "{root}/{page:03d}.txt" files, for offline use
// or as a fallback behind [AlQuran].
type Dir struct {
	root string
}

var _ Provider = (*Dir)(nil)

// NewDir returns a provider rooted at root.
func NewDir(root string) *Dir {
	return &Dir{root: root}
}

// Path returns the file that holds page.
func (d *Dir) Path(page int) string {
	return filepath.Join(d.root, fmt.Sprintf("%03d.txt", page))
}

// Text implements [Provider]. Line breaks are folded into single spaces.
func (d *Dir) Text(ctx context.Context, page int) (string, error) {
	if err := checkPage(page); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	data, err := os.ReadFile(d.Path(page))
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: page %d: no file in %s", ErrNotFound, page, d.root)
	}
	if err != nil {
		return "", fmt.Errorf("reference: read page %d: %w", page, err)
	}

	text := strings.Join(strings.Fields(string(data)), " ")
	if text == "" {
		return "", fmt.Errorf("%w: page %d: empty file", ErrNotFound, page)
	}
	return text, nil
}

// Check verifies that the root directory exists.
func (d *Dir) Check(context.Context) error {
	info, err := os.Stat(d.root)
	if err != nil {
		return fmt.Errorf("reference: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("reference: %s is not a directory", d.root)
	}
	return nil
}
