package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// localStorage keeps uploaded bytes on the local filesystem. Uploads arrive through
// the backend's own /storage/{mediaId} endpoint, authorized by a signed token.
type localStorage struct {
	basePath string
	baseURL  string
	signer   *URLSigner
}

// NewLocalStorage creates a new localStorage instance.
// baseURL is the public address of the backend serving /storage.
func NewLocalStorage(basePath, baseURL string, signer *URLSigner) *localStorage {
	return &localStorage{
		basePath: basePath,
		baseURL:  strings.TrimRight(baseURL, "/"),
		signer:   signer,
	}
}

// generatePath maps a storage key onto the base path.
// Keys use forward slashes and never escape the base path.
func (s *localStorage) generatePath(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if key == "" || filepath.IsAbs(clean) || clean == "." || strings.HasPrefix(clean, "..") {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return filepath.Join(s.basePath, clean), nil
}

// UploadURL returns a signed, expiring PUT URL for mediaID
func (s *localStorage) UploadURL(ctx context.Context, mediaID, key, contentType string) (string, error) {
	token, _, err := s.signer.Generate(mediaID, key)
	if err != nil {
		return "", fmt.Errorf("failed to sign upload url: %w", err)
	}
	return s.StorageURL(mediaID, key) + "?token=" + url.QueryEscape(token), nil
}

// StorageURL returns the unsigned location of the stored bytes
func (s *localStorage) StorageURL(mediaID, key string) string {
	return fmt.Sprintf("%s/storage/%s", s.baseURL, url.PathEscape(mediaID))
}

// Verify checks an upload token and returns the media id and key it was issued for
func (s *localStorage) Verify(token string) (string, string, error) {
	mediaID, key, _, err := s.signer.Parse(token, false)
	if err != nil {
		return "", "", err
	}
	return mediaID, key, nil
}

// Create creates the file for key, replacing an earlier upload
func (s *localStorage) Create(key string) (io.WriteCloser, error) {
	path, err := s.generatePath(key)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	return os.Create(path)
}

// Open opens the stored bytes of key
func (s *localStorage) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	path, err := s.generatePath(key)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrObjectNotFound
	}
	return file, err
}

// Size returns the byte size of the stored object
func (s *localStorage) Size(ctx context.Context, key string) (int64, error) {
	path, err := s.generatePath(key)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, ErrObjectNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to stat object: %w", err)
	}
	return info.Size(), nil
}

// Delete removes the stored object; a missing object is not an error
func (s *localStorage) Delete(ctx context.Context, key string) error {
	path, err := s.generatePath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}
