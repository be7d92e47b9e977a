// Package proofstore persists uploaded proof media on local disk and hands
// back the public URL the file is served under.
package proofstore

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// DiskStore writes proof media under a base directory. Files are renamed to
// random names so uploads can never collide or traverse paths.
type DiskStore struct {
	dir     string
	baseURL string
}

// NewDiskStore ensures the directory exists and returns the store. baseURL
// is the public prefix the directory is served under, e.g. "/uploads".
func NewDiskStore(dir, baseURL string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads dir: %w", err)
	}
	return &DiskStore{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Dir returns the directory media is stored in, for static file serving.
func (s *DiskStore) Dir() string {
	return s.dir
}

// Save streams r to disk and returns the public URL of the stored file. Only
// the extension of the original filename survives.
func (s *DiskStore) Save(filename string, r io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	name := uuid.NewString() + ext

	f, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return "", fmt.Errorf("create media file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("write media file: %w", err)
	}
	return s.baseURL + "/" + name, nil
}
