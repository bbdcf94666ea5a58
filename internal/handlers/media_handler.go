package handlers

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	authMiddleware "github.com/japanesestudent/media-uploader/internal/auth/middleware"
	"github.com/japanesestudent/media-uploader/internal/models"
	"github.com/japanesestudent/media-uploader/internal/services"
	"go.uber.org/zap"
)

// MediaService is the interface that wraps methods for media business logic.
type MediaService interface {
	// Method CreateUploadIntents registers media records for the requested files and returns where to upload them.
	//
	// "scope" identifies the course or unit the files are attached to.
	// Unit entries carry the media id in "id", course entries in "videoId" or "slideId" by kind.
	// Validation failures wrap services.ErrInvalidInput.
	CreateUploadIntents(ctx context.Context, scope models.OwnerScope, req models.UploadIntentRequest) (*models.UploadIntentResponse, error)
	// Method FinalizeUpload records the size of a transported unit upload.
	//
	// Course media returns services.ErrWrongScope, unknown media models.ErrMediaNotFound.
	FinalizeUpload(ctx context.Context, scope models.OwnerScope, mediaID string, size int64) error
	// Method UpdateUploadStatus applies an upload_completed or upload_failed notification to course media.
	//
	// Unit media returns services.ErrWrongScope. Completing without stored bytes returns services.ErrConflict.
	UpdateUploadStatus(ctx context.Context, scope models.OwnerScope, mediaID string, status models.UploadStatus) error
	// Method ListMedia retrieve the media of a course or unit with their transfer URLs.
	ListMedia(ctx context.Context, scope models.OwnerScope) ([]models.MediaAsset, error)
	// Method DeleteMedia deletes a media record and its stored bytes.
	//
	// Media of another scope is reported as models.ErrMediaNotFound.
	DeleteMedia(ctx context.Context, scope models.OwnerScope, mediaID string) error
	// Method OpenContent opens the stored bytes of a media asset.
	//
	// The caller must close the returned body.
	OpenContent(ctx context.Context, mediaID string) (*services.Content, error)
}

// MediaHandler handles HTTP requests for course and unit media
type MediaHandler struct {
	BaseHandler
	service MediaService
}

// NewMediaHandler creates a new media handler
func NewMediaHandler(svc MediaService, logger *zap.Logger) *MediaHandler {
	return &MediaHandler{
		service:     svc,
		BaseHandler: BaseHandler{Logger: logger},
	}
}

// RegisterRoutes registers the authenticated media routes
func (h *MediaHandler) RegisterRoutes(r chi.Router) {
	r.Route("/{collection}/{scopeId}/media", func(r chi.Router) {
		r.Get("/", h.ListMedia)
		r.Post("/uploads", h.CreateUploadIntents)
		r.Delete("/{mediaId}", h.DeleteMedia)
		r.Post("/{mediaId}/finalize", h.FinalizeUpload)
		r.Post("/{mediaId}/status", h.UpdateUploadStatus)
	})
}

// RegisterPublicRoutes registers the media routes that need no authentication
func (h *MediaHandler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/media/{mediaId}/content", h.GetContent)
}

// CreateUploadIntents handles POST /api/v1/{collection}/{scopeId}/media/uploads
// @Summary Create upload intents
// @Description Register media records and return the URLs to upload their bytes to
// @Tags media
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param collection path string true "courses or units"
// @Param scopeId path string true "Course or unit id"
// @Param request body models.UploadIntentRequest true "Files to upload"
// @Success 201 {object} models.UploadIntentResponse
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /api/v1/{collection}/{scopeId}/media/uploads [post]
func (h *MediaHandler) CreateUploadIntents(w http.ResponseWriter, r *http.Request) {
	scope, ok := h.scope(w, r)
	if !ok {
		return
	}

	var req models.UploadIntentRequest
	if err := h.DecodeJSON(r, &req); err != nil {
		h.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.service.CreateUploadIntents(r.Context(), scope, req)
	if err != nil {
		h.respondServiceError(w, err, "failed to create upload intents")
		return
	}

	authorID, _ := authMiddleware.GetAuthorID(r.Context())
	h.Logger.Info("upload intents created",
		zap.String("author_id", authorID),
		zap.Stringer("scope", scope),
		zap.Int("files", len(resp.Files)),
	)
	h.RespondJSON(w, http.StatusCreated, resp)
}

// ListMedia handles GET /api/v1/{collection}/{scopeId}/media
// @Summary List media
// @Description Get the videos and slides of a course or unit
// @Tags media
// @Produce json
// @Security BearerAuth
// @Param collection path string true "courses or units"
// @Param scopeId path string true "Course or unit id"
// @Success 200 {array} models.MediaAsset
// @Failure 401 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /api/v1/{collection}/{scopeId}/media [get]
func (h *MediaHandler) ListMedia(w http.ResponseWriter, r *http.Request) {
	scope, ok := h.scope(w, r)
	if !ok {
		return
	}

	assets, err := h.service.ListMedia(r.Context(), scope)
	if err != nil {
		h.respondServiceError(w, err, "failed to list media")
		return
	}

	h.RespondJSON(w, http.StatusOK, assets)
}

// DeleteMedia handles DELETE /api/v1/{collection}/{scopeId}/media/{mediaId}
// @Summary Delete media
// @Description Delete a media asset and its stored content
// @Tags media
// @Produce json
// @Security BearerAuth
// @Param collection path string true "courses or units"
// @Param scopeId path string true "Course or unit id"
// @Param mediaId path string true "Media id"
// @Success 200 {object} models.StatusResponse
// @Failure 401 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /api/v1/{collection}/{scopeId}/media/{mediaId} [delete]
func (h *MediaHandler) DeleteMedia(w http.ResponseWriter, r *http.Request) {
	scope, ok := h.scope(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteMedia(r.Context(), scope, chi.URLParam(r, "mediaId")); err != nil {
		h.respondServiceError(w, err, "failed to delete media")
		return
	}

	h.RespondSuccess(w)
}

// FinalizeUpload handles POST /api/v1/units/{scopeId}/media/{mediaId}/finalize
// @Summary Finalize unit upload
// @Description Record the size of an uploaded unit media file
// @Tags media
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param collection path string true "units"
// @Param scopeId path string true "Unit id"
// @Param mediaId path string true "Media id"
// @Param request body models.FinalizeRequest true "Uploaded size"
// @Success 200 {object} models.StatusResponse
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /api/v1/{collection}/{scopeId}/media/{mediaId}/finalize [post]
func (h *MediaHandler) FinalizeUpload(w http.ResponseWriter, r *http.Request) {
	scope, ok := h.scope(w, r)
	if !ok {
		return
	}

	var req models.FinalizeRequest
	if err := h.DecodeJSON(r, &req); err != nil {
		h.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.service.FinalizeUpload(r.Context(), scope, chi.URLParam(r, "mediaId"), req.FileSize); err != nil {
		h.respondServiceError(w, err, "failed to finalize upload")
		return
	}

	h.RespondSuccess(w)
}

// UpdateUploadStatus handles POST /api/v1/courses/{scopeId}/media/{mediaId}/status
// @Summary Report upload status
// @Description Mark a course media upload as completed or failed
// @Tags media
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param collection path string true "courses"
// @Param scopeId path string true "Course id"
// @Param mediaId path string true "Media id"
// @Param request body models.UploadStatusRequest true "upload_completed or upload_failed"
// @Success 200 {object} models.StatusResponse
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /api/v1/{collection}/{scopeId}/media/{mediaId}/status [post]
func (h *MediaHandler) UpdateUploadStatus(w http.ResponseWriter, r *http.Request) {
	scope, ok := h.scope(w, r)
	if !ok {
		return
	}

	var req models.UploadStatusRequest
	if err := h.DecodeJSON(r, &req); err != nil {
		h.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.service.UpdateUploadStatus(r.Context(), scope, chi.URLParam(r, "mediaId"), req.Status); err != nil {
		h.respondServiceError(w, err, "failed to update upload status")
		return
	}

	h.RespondSuccess(w)
}

// GetContent handles GET /api/v1/media/{mediaId}/content
// @Summary Get media content
// @Description Stream the stored bytes of a media asset
// @Tags media
// @Produce octet-stream
// @Param mediaId path string true "Media id"
// @Param download query string false "1 to download as attachment"
// @Success 200 {file} file
// @Failure 404 {object} map[string]string
// @Router /api/v1/media/{mediaId}/content [get]
func (h *MediaHandler) GetContent(w http.ResponseWriter, r *http.Request) {
	content, err := h.service.OpenContent(r.Context(), chi.URLParam(r, "mediaId"))
	if err != nil {
		h.respondServiceError(w, err, "failed to open media")
		return
	}
	defer content.Body.Close()

	w.Header().Set("Content-Type", content.Record.FileType)
	if content.Record.FileSize != nil {
		w.Header().Set("Content-Length", strconv.FormatInt(*content.Record.FileSize, 10))
	}
	if r.URL.Query().Get("download") == "1" {
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": content.Record.FileName}))
	}
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, content.Body); err != nil {
		h.Logger.Warn("failed to stream media content", zap.Error(err), zap.String("media_id", content.Record.ID))
	}
}

// scope resolves the owner scope from the path, answering 404 for unknown collections
func (h *MediaHandler) scope(w http.ResponseWriter, r *http.Request) (models.OwnerScope, bool) {
	scopeID := chi.URLParam(r, "scopeId")
	switch chi.URLParam(r, "collection") {
	case "courses":
		return models.CourseScope(scopeID), true
	case "units":
		return models.UnitScope(scopeID), true
	default:
		h.RespondError(w, http.StatusNotFound, "not found")
		return models.OwnerScope{}, false
	}
}

func (h *MediaHandler) respondServiceError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, models.ErrMediaNotFound):
		h.RespondError(w, http.StatusNotFound, "media not found")
	case errors.Is(err, services.ErrInvalidInput), errors.Is(err, services.ErrWrongScope):
		h.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrConflict):
		h.RespondError(w, http.StatusConflict, err.Error())
	default:
		h.Logger.Error(fallback, zap.Error(err))
		h.RespondError(w, http.StatusInternalServerError, fallback)
	}
}
