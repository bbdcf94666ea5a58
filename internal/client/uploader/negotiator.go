package uploader

import (
	"context"
	"errors"
	"fmt"

	"github.com/japanesestudent/media-uploader/internal/models"
)

// TransferHandle is a one-file upload slot: a one-time storage URL and the media id
type TransferHandle struct {
	UploadURL string
	MediaID   string
}

// Negotiator requests upload slots from the backend
type Negotiator struct {
	backend Backend
}

// NewNegotiator creates a new negotiator
func NewNegotiator(backend Backend) *Negotiator {
	return &Negotiator{backend: backend}
}

// Negotiate requests one upload slot for file. The backend answers with a batch-shaped
// list; the first entry is taken and its course or unit id field is normalized into
// TransferHandle.MediaID.
func (n *Negotiator) Negotiate(ctx context.Context, scope models.OwnerScope, kind models.MediaKind, file File) (TransferHandle, error) {
	if file.Name == "" {
		return TransferHandle{}, &NegotiationError{Err: ErrEmptyFileName}
	}

	resp, err := n.backend.CreateUploadIntent(ctx, scope, kind, file.intent())
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return TransferHandle{}, ErrCancelled
		}
		return TransferHandle{}, &NegotiationError{FileName: file.Name, Err: err}
	}

	if resp == nil || len(resp.Files) == 0 {
		return TransferHandle{}, &NegotiationError{FileName: file.Name, Err: fmt.Errorf("upload intent response has no files")}
	}

	entry := resp.Files[0]
	handle := TransferHandle{
		UploadURL: entry.UploadURL,
		MediaID:   entry.MediaID(scope.Type, kind),
	}
	if handle.UploadURL == "" {
		return TransferHandle{}, &NegotiationError{FileName: file.Name, Err: fmt.Errorf("upload intent response has no upload url")}
	}
	if handle.MediaID == "" {
		return TransferHandle{}, &NegotiationError{FileName: file.Name, Err: fmt.Errorf("upload intent response has no media id")}
	}

	return handle, nil
}
