package cache

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

// BlobStore is the write-only object-put capability the cache runs on.
// Production wires a cloud bucket; FileBlobStore serves single-node
// deployments and tests.
type BlobStore interface {
	// Put stores payload under name with string metadata. It must fail
	// if the name already exists; cache entries are immutable.
	Put(ctx context.Context, name string, payload []byte, metadata map[string]string) error
	// Exists reports whether an object with the name is present.
	Exists(ctx context.Context, name string) (bool, error)
}

// FileBlobStore stores blobs as files under a base directory with a
// JSON metadata sidecar.
type FileBlobStore struct {
	baseDir string
	mu      sync.Mutex
}

func NewFileBlobStore(baseDir string) *FileBlobStore {
	if baseDir == "" {
		baseDir = "./var/ics-cache"
	}
	return &FileBlobStore{baseDir: baseDir}
}

func (s *FileBlobStore) Put(ctx context.Context, name string, payload []byte, metadata map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.baseDir, 0o700); err != nil {
		return err
	}

	path := filepath.Join(s.baseDir, name)
	// O_EXCL enforces immutability: a second write to the same name fails.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.Write(payload); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	meta, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path+".meta.json", meta, 0o600)
}

func (s *FileBlobStore) Exists(ctx context.Context, name string) (bool, error) {
	_, err := os.Stat(filepath.Join(s.baseDir, name))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}
