package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/japanesestudent/media-uploader/internal/middlewares"
	"github.com/japanesestudent/media-uploader/internal/storage"
	"go.uber.org/zap"
)

// UploadReceiver is the interface that wraps methods for receiving uploaded bytes into local storage
type UploadReceiver interface {
	// Method Verify checks a signed upload token and returns the media id and storage key it grants.
	Verify(token string) (string, string, error)
	// Method Create opens the object at "key" for writing, replacing any previous content.
	Create(key string) (io.WriteCloser, error)
	// Method Delete removes the object at "key".
	Delete(ctx context.Context, key string) error
}

// StorageHandler receives PUT uploads for the local storage backend
type StorageHandler struct {
	BaseHandler
	receiver UploadReceiver
}

// NewStorageHandler creates a new storage handler
func NewStorageHandler(receiver UploadReceiver, logger *zap.Logger) *StorageHandler {
	return &StorageHandler{
		receiver:    receiver,
		BaseHandler: BaseHandler{Logger: logger},
	}
}

// RegisterRoutes registers the upload route.
// The caller applies the upload size limit.
func (h *StorageHandler) RegisterRoutes(r chi.Router) {
	r.Put("/storage/{mediaId}", h.Upload)
}

// Upload handles PUT /storage/{mediaId}
// @Summary Upload media bytes
// @Description Store the raw bytes of a media file using a signed upload URL
// @Tags storage
// @Accept octet-stream
// @Produce json
// @Param mediaId path string true "Media id"
// @Param token query string true "Signed upload token"
// @Success 200 {object} models.StatusResponse
// @Failure 403 {object} map[string]string
// @Failure 413 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /storage/{mediaId} [put]
func (h *StorageHandler) Upload(w http.ResponseWriter, r *http.Request) {
	mediaID, key, err := h.receiver.Verify(r.URL.Query().Get("token"))
	if err != nil || mediaID != chi.URLParam(r, "mediaId") {
		h.RespondError(w, http.StatusForbidden, "invalid upload token")
		return
	}

	dst, err := h.receiver.Create(key)
	if err != nil {
		h.Logger.Error("failed to create upload target", zap.Error(err), zap.String("media_id", mediaID))
		h.RespondError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}

	sw := storage.NewSizeWriter()
	_, copyErr := io.Copy(dst, io.TeeReader(r.Body, sw))
	closeErr := dst.Close()

	if copyErr != nil {
		if err := h.receiver.Delete(r.Context(), key); err != nil {
			h.Logger.Warn("failed to remove partial upload", zap.Error(err), zap.String("media_id", mediaID))
		}
		var maxBytesErr *http.MaxBytesError
		if errors.As(copyErr, &maxBytesErr) {
			h.RespondError(w, http.StatusRequestEntityTooLarge, middlewares.PayloadTooLargeMessage)
			return
		}
		h.Logger.Warn("upload interrupted", zap.Error(copyErr), zap.String("media_id", mediaID))
		h.RespondError(w, http.StatusBadRequest, "failed to read upload")
		return
	}
	if closeErr != nil {
		h.Logger.Error("failed to store upload", zap.Error(closeErr), zap.String("media_id", mediaID))
		h.RespondError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}

	h.Logger.Info("upload stored", zap.String("media_id", mediaID), zap.Int64("size", sw.Size()))
	h.RespondSuccess(w)
}
