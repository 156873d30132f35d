package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Dir reads templates from a directory on the local filesystem.
type Dir struct {
	basePath string
}

// NewDir creates a Dir rooted at basePath.
func NewDir(basePath string) *Dir {
	return &Dir{basePath: basePath}
}

// Load returns the bytes of the named template file. Names cannot escape
// the base directory.
func (d *Dir) Load(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p := filepath.Join(d.basePath, filepath.Clean(string(filepath.Separator)+name))

	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", name, ErrTemplateNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load template %s: %w", p, err)
	}

	return data, nil
}
