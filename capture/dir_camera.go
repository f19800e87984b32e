package capture

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
)

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}

// DirCamera is a Camera that cycles through the image files of a directory
// in name order. It stands in for hardware in tools and tests.
type DirCamera struct {
	mu    sync.Mutex
	files []string
	next  int
}

// NewDirCamera lists the images in dir.
func NewDirCamera(dir string) (*DirCamera, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read camera directory: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if slices.Contains(imageExtensions, ext) {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no images in %s", ErrCameraUnavailable, dir)
	}
	slices.Sort(files)
	return &DirCamera{files: files}, nil
}

// Len returns the number of images in the rotation.
func (c *DirCamera) Len() int {
	return len(c.files)
}

// TakePicture returns the next image file. Options are ignored; quality is
// applied by the Source.
func (c *DirCamera) TakePicture(ctx context.Context, _ PictureOptions) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	path := c.files[c.next]
	c.next = (c.next + 1) % len(c.files)
	c.mu.Unlock()

	return os.ReadFile(path)
}
