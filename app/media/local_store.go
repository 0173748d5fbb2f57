package media

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var _ Store = (*LocalStore)(nil)

// LocalStore keeps media on disk; files are served by the API under /media
type LocalStore struct {
	root      string
	publicURL string
}

func NewLocalStore(root, publicURL string) *LocalStore {
	return &LocalStore{
		root:      root,
		publicURL: strings.TrimRight(publicURL, "/"),
	}
}

func (s *LocalStore) Root() string {
	return s.root
}

func (s *LocalStore) Upload(ctx context.Context, req UploadRequest) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	if len(req.Blob.Data) == 0 {
		return "", fmt.Errorf("media data is empty")
	}

	folder := strings.TrimPrefix(path.Clean("/"+req.Folder), "/")
	dir := filepath.Join(s.root, filepath.FromSlash(folder))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create media folder: %w", err)
	}

	name := uuid.NewString() + extensionOf(req.Blob)
	if err := os.WriteFile(filepath.Join(dir, name), req.Blob.Data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write media file: %w", err)
	}

	return s.publicURL + "/media/" + path.Join(folder, name), nil
}

func extensionOf(blob Blob) string {
	if ext := filepath.Ext(blob.Name); ext != "" {
		return strings.ToLower(ext)
	}
	if exts, err := mime.ExtensionsByType(contentTypeOf(blob)); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}
