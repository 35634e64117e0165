package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"dark_api/internal/common"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

// Refs look like "<uuid>[-<slug>].<ext>"; anything else never reaches the filesystem.
var refPattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}(-[a-z0-9-]+)?\.[a-z0-9]+$`)

// FileImageStore keeps images as flat files under a root directory.
type FileImageStore struct {
	root string
}

func NewFileImageStore(root string) (*FileImageStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create image dir %s: %w", root, err)
	}
	return &FileImageStore{root: root}, nil
}

// Save writes data under a fresh ref derived from the uploaded file name.
func (s *FileImageStore) Save(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ref := newRef(name)

	tmp, err := os.CreateTemp(s.root, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("FileImageStore.Save: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if _, err := io.Copy(tmp, bytes.NewReader(data)); err != nil {
		tmp.Close()
		return "", fmt.Errorf("FileImageStore.Save write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("FileImageStore.Save close: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.root, ref)); err != nil {
		return "", fmt.Errorf("FileImageStore.Save rename: %w", err)
	}
	return ref, nil
}

// Get opens the image. Unknown or malformed refs yield common.ErrNotFound.
func (s *FileImageStore) Get(ctx context.Context, ref string) (io.ReadCloser, error) {
	if !refPattern.MatchString(ref) {
		return nil, common.ErrNotFound
	}
	f, err := os.Open(filepath.Join(s.root, ref))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("FileImageStore.Get: %w", err)
	}
	return f, nil
}

// Delete removes the image. Deleting a missing image is not an error.
func (s *FileImageStore) Delete(ctx context.Context, ref string) error {
	if !refPattern.MatchString(ref) {
		return fmt.Errorf("FileImageStore.Delete: invalid ref %q", ref)
	}
	if err := os.Remove(filepath.Join(s.root, ref)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("FileImageStore.Delete: %w", err)
	}
	return nil
}

func newRef(name string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	if ext == "" || !isAlnum(ext) {
		ext = "bin"
	}
	ref := uuid.NewString()
	if base := slug.Make(strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))); base != "" {
		if len(base) > 40 {
			base = strings.Trim(base[:40], "-")
		}
		ref += "-" + base
	}
	return ref + "." + ext
}

func isAlnum(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}
