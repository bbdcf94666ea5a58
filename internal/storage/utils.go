// Package storage holds the object stores behind the development backend:
// local files uploaded through signed URLs, or S3 through presigned URLs.
package storage

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrObjectNotFound is returned when no bytes are stored under a key
var ErrObjectNotFound = errors.New("object not found")

// GenerateID returns a new media id
func GenerateID() string {
	return uuid.New().String()
}

// GenerateKey builds the storage key of a media file: <scope>/<scopeID>/<kind>/<id><ext>.
// The extension is taken from the original file name.
func GenerateKey(scopeType, scopeID, kind, id, fileName string) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	return fmt.Sprintf("%s/%s/%s/%s%s", scopeType, sanitizeSegment(scopeID), kind, id, ext)
}

func sanitizeSegment(s string) string {
	return strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(s)
}

// sizeWriter counts the bytes written through it
type sizeWriter struct {
	size int64
}

// Write implements io.Writer
func (sw *sizeWriter) Write(p []byte) (int, error) {
	n := len(p)
	sw.size += int64(n)
	return n, nil
}

// Size returns the total number of bytes written
func (sw *sizeWriter) Size() int64 {
	return sw.size
}

// NewSizeWriter creates a new sizeWriter instance
func NewSizeWriter() *sizeWriter {
	return &sizeWriter{}
}
