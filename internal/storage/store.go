package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Store persists uploaded document files. The object key it returns is what
// the document record references; the core never reads the bytes back.
type Store interface {
	Save(ctx context.Context, vehicleID, filename string, r io.Reader, size int64, contentType string) (string, error)
}

// DiskStore saves uploaded files to disk under a base directory. Used when no
// object store is configured.
type DiskStore struct {
	basePath string
}

// NewDiskStore creates the base directory if missing.
func NewDiskStore(basePath string) (*DiskStore, error) {
	if strings.TrimSpace(basePath) == "" {
		return nil, fmt.Errorf("storage base path is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &DiskStore{basePath: basePath}, nil
}

// Save writes an uploaded file under a vehicle-specific folder and returns
// the relative object key.
func (s *DiskStore) Save(_ context.Context, vehicleID, filename string, r io.Reader, _ int64, _ string) (string, error) {
	targetDir := filepath.Join(s.basePath, vehicleID)
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return "", fmt.Errorf("create vehicle dir: %w", err)
	}
	key := objectKey(vehicleID, filename)
	target := filepath.Join(s.basePath, filepath.FromSlash(key))

	out, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	defer out.Close()
	if _, err := io.Copy(out, r); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return key, nil
}

// objectKey builds a collision-free key preserving the upload's extension.
func objectKey(vehicleID, filename string) string {
	ext := filepath.Ext(safeFilename(filename))
	return vehicleID + "/" + uuid.NewString() + ext
}

func safeFilename(name string) string {
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, string(os.PathSeparator), "_")
	name = strings.TrimSpace(name)
	if name == "" {
		return "document"
	}
	return name
}
