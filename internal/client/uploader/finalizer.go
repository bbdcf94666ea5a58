package uploader

import (
	"context"

	"github.com/japanesestudent/media-uploader/internal/models"
)

// Finalizer persists the byte size of unit media after the bytes are stored.
// Course media get their size from the server-side listing instead.
type Finalizer struct {
	backend Backend
}

// NewFinalizer creates a new finalizer
func NewFinalizer(backend Backend) *Finalizer {
	return &Finalizer{backend: backend}
}

// Finalize records size for mediaID. Failures are returned as *FinalizationError.
func (f *Finalizer) Finalize(ctx context.Context, scope models.OwnerScope, mediaID string, size int64) error {
	if !scope.IsUnit() {
		return ErrFinalizeCourseScope
	}

	if err := f.backend.FinalizeUpload(ctx, scope, mediaID, size); err != nil {
		return &FinalizationError{MediaID: mediaID, Err: err}
	}
	return nil
}
