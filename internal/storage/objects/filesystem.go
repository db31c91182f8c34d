// Package objects stores raw filings, plain text and archived digests on the
// local filesystem under a single root directory.
package objects

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/edgarsignals/internal/interfaces"
)

const metaSuffix = ".meta.json"

// ErrInvalidKey is returned for keys that are empty or escape the root
var ErrInvalidKey = errors.New("invalid object key")

// Meta is written next to every object
type Meta struct {
	Key         string    `json:"key"`
	ContentType string    `json:"contentType"`
	Size        int       `json:"size"`
	StoredAt    time.Time `json:"storedAt"`
}

// FileStore implements interfaces.ObjectStorage on a directory
type FileStore struct {
	root   string
	logger arbor.ILogger
}

var _ interfaces.ObjectStorage = (*FileStore)(nil)

// NewFileStore creates root if needed
func NewFileStore(root string, logger arbor.ILogger) (*FileStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create object store directory: %w", err)
	}
	return &FileStore{root: root, logger: logger}, nil
}

// Put writes body to root/key, replacing any previous object. The write goes
// through a temp file and rename so readers never see a partial object.
func (s *FileStore) Put(ctx context.Context, key string, body []byte, contentType string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create object directory: %w", err)
	}
	if err := writeFileAtomic(path, body); err != nil {
		return fmt.Errorf("failed to write object %s: %w", key, err)
	}

	meta, err := json.MarshalIndent(Meta{
		Key:         key,
		ContentType: contentType,
		Size:        len(body),
		StoredAt:    time.Now().UTC(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode object metadata: %w", err)
	}
	if err := writeFileAtomic(path+metaSuffix, meta); err != nil {
		return fmt.Errorf("failed to write object metadata %s: %w", key, err)
	}

	s.logger.Debug().Str("key", key).Int("bytes", len(body)).Str("content_type", contentType).Msg("Object stored")
	return nil
}

// Get returns the object body and its recorded content type
func (s *FileStore) Get(ctx context.Context, key string) ([]byte, string, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, "", err
	}

	body, err := os.ReadFile(path)
	if err != nil {
		return nil, "", err
	}

	var meta Meta
	if raw, err := os.ReadFile(path + metaSuffix); err == nil {
		_ = json.Unmarshal(raw, &meta)
	}
	return body, meta.ContentType, nil
}

func (s *FileStore) path(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" || strings.HasPrefix(key, "/") || strings.HasSuffix(key, metaSuffix) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return filepath.Join(s.root, clean), nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
