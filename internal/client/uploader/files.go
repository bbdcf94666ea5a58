package uploader

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/japanesestudent/media-uploader/internal/models"
)

const defaultContentType = "application/octet-stream"

// File is one file of a batch. Open is called once per transport attempt.
type File struct {
	Name        string
	DisplayName string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// FileFromPath builds a File backed by a local file, detecting its content type
func FileFromPath(path string) (File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return File{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return File{}, fmt.Errorf("%s is a directory", path)
	}

	contentType := defaultContentType
	if mt, err := mimetype.DetectFile(path); err == nil {
		contentType = mt.String()
	}

	name := filepath.Base(path)
	return File{
		Name:        name,
		DisplayName: strings.TrimSuffix(name, filepath.Ext(name)),
		ContentType: contentType,
		Size:        info.Size(),
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}, nil
}

// FileFromBytes builds an in-memory File. An empty contentType is detected from data.
func FileFromBytes(name, contentType string, data []byte) File {
	if contentType == "" {
		contentType = mimetype.Detect(data).String()
	}
	return File{
		Name:        name,
		ContentType: contentType,
		Size:        int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

func (f File) contentType() string {
	if f.ContentType == "" {
		return defaultContentType
	}
	return f.ContentType
}

func (f File) displayName() string {
	if f.DisplayName != "" {
		return f.DisplayName
	}
	return f.Name
}

func (f File) intent() models.UploadIntentFile {
	return models.UploadIntentFile{
		FileName:    f.Name,
		FileType:    f.contentType(),
		FileSize:    f.Size,
		DisplayName: f.displayName(),
	}
}
