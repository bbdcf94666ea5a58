package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/japanesestudent/media-uploader/internal/models"
	"github.com/japanesestudent/media-uploader/internal/storage"
	"go.uber.org/zap"
)

var (
	// ErrInvalidInput wraps request validation failures
	ErrInvalidInput = errors.New("invalid input")
	// ErrWrongScope is returned when an operation is not supported for the media's scope type
	ErrWrongScope = errors.New("operation not supported for this scope")
	// ErrConflict is returned when the media is not in a state that allows the operation
	ErrConflict = errors.New("media state conflict")
)

const defaultFileType = "application/octet-stream"

// MediaRepository is the interface that wraps methods for media_assets table data access
type MediaRepository interface {
	// Method Create inserts a new media record.
	//
	// The record ID must be unique. Any database failure is returned as an error.
	Create(ctx context.Context, record *models.MediaRecord) error
	// Method GetByID retrieve a media record by its ID.
	//
	// If the record does not exist, models.ErrMediaNotFound is returned together with "nil" value.
	GetByID(ctx context.Context, id string) (*models.MediaRecord, error)
	// Method ListByScope retrieve the media records of a course or unit ordered by creation time.
	//
	// Records with failed status are never returned.
	ListByScope(ctx context.Context, scope models.OwnerScope) ([]models.MediaRecord, error)
	// Method ListStale retrieve course media records that failed or stayed pending since before "cutoff".
	ListStale(ctx context.Context, cutoff time.Time) ([]models.MediaRecord, error)
	// Method UpdateStatus sets the record status.
	//
	// When "size" is nil the stored size is left as is.
	// If the record does not exist, models.ErrMediaNotFound is returned.
	UpdateStatus(ctx context.Context, id string, status models.AssetStatus, size *int64) error
	// Method DeleteByID deletes a media record by its ID.
	//
	// If the record does not exist, models.ErrMediaNotFound is returned.
	DeleteByID(ctx context.Context, id string) error
}

// Storage is the interface that wraps methods for media bytes storage
type Storage interface {
	// Method UploadURL returns the URL the client PUTs the file bytes to.
	UploadURL(ctx context.Context, mediaID, key, contentType string) (string, error)
	// Method StorageURL returns the unsigned location of the object.
	StorageURL(mediaID, key string) string
	// Method Size returns the stored object size or storage.ErrObjectNotFound.
	Size(ctx context.Context, key string) (int64, error)
	// Method Open streams the stored object or returns storage.ErrObjectNotFound.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Method Delete removes the stored object. Deleting a missing object is not an error.
	Delete(ctx context.Context, key string) error
}

// Content is an opened media object
type Content struct {
	Record *models.MediaRecord
	Body   io.ReadCloser
}

type mediaService struct {
	repo    MediaRepository
	storage Storage
	baseURL string
	logger  *zap.Logger
	now     func() time.Time
}

// NewMediaService creates a new media service.
// baseURL is the externally visible address used to build public and download URLs.
func NewMediaService(repo MediaRepository, storage Storage, baseURL string, logger *zap.Logger) *mediaService {
	return &mediaService{
		repo:    repo,
		storage: storage,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// CreateUploadIntents registers one media record per requested file and returns their upload URLs
//
// Course records start pending until an upload_completed status arrives.
// Unit records start uploaded and become ready on finalize.
func (s *mediaService) CreateUploadIntents(ctx context.Context, scope models.OwnerScope, req models.UploadIntentRequest) (*models.UploadIntentResponse, error) {
	if err := scope.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if !req.Kind.IsValid() {
		return nil, fmt.Errorf("%w: invalid media kind: %q, must be 'video' or 'slide'", ErrInvalidInput, req.Kind)
	}
	if len(req.Files) == 0 {
		return nil, fmt.Errorf("%w: at least one file is required", ErrInvalidInput)
	}
	for _, f := range req.Files {
		if strings.TrimSpace(f.FileName) == "" {
			return nil, fmt.Errorf("%w: file name is required", ErrInvalidInput)
		}
		if f.FileSize < 0 {
			return nil, fmt.Errorf("%w: file size must not be negative", ErrInvalidInput)
		}
	}

	status := models.AssetStatusUploaded
	if scope.IsCourse() {
		status = models.AssetStatusPending
	}

	resp := &models.UploadIntentResponse{Files: make([]models.UploadIntentEntry, 0, len(req.Files))}
	for _, f := range req.Files {
		id := storage.GenerateID()
		key := storage.GenerateKey(string(scope.Type), scope.ID, string(req.Kind), id, f.FileName)
		fileType := f.FileType
		if fileType == "" {
			fileType = defaultFileType
		}
		displayName := f.DisplayName
		if displayName == "" {
			displayName = f.FileName
		}

		uploadURL, err := s.storage.UploadURL(ctx, id, key, fileType)
		if err != nil {
			s.logger.Error("failed to create upload url", zap.Error(err), zap.String("scope", scope.String()))
			return nil, fmt.Errorf("failed to create upload url: %w", err)
		}

		now := s.now()
		record := &models.MediaRecord{
			ID:          id,
			Scope:       scope,
			Kind:        req.Kind,
			DisplayName: displayName,
			FileName:    f.FileName,
			FileType:    fileType,
			Status:      status,
			StorageKey:  key,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.repo.Create(ctx, record); err != nil {
			s.logger.Error("failed to create media record", zap.Error(err), zap.String("scope", scope.String()))
			return nil, fmt.Errorf("failed to create media: %w", err)
		}

		entry := models.UploadIntentEntry{UploadURL: uploadURL}
		switch {
		case scope.IsUnit():
			entry.ID = id
		case req.Kind == models.MediaKindSlide:
			entry.SlideID = id
		default:
			entry.VideoID = id
		}
		resp.Files = append(resp.Files, entry)
	}

	return resp, nil
}

// FinalizeUpload records the size of a transported unit upload and marks it ready
func (s *mediaService) FinalizeUpload(ctx context.Context, scope models.OwnerScope, mediaID string, size int64) error {
	if size < 0 {
		return fmt.Errorf("%w: file size must not be negative", ErrInvalidInput)
	}
	record, err := s.getInScope(ctx, scope, mediaID)
	if err != nil {
		return err
	}
	if !record.Scope.IsUnit() {
		return fmt.Errorf("%w: finalize is only supported for unit media", ErrWrongScope)
	}

	if err := s.repo.UpdateStatus(ctx, mediaID, models.AssetStatusReady, models.Int64Ptr(size)); err != nil {
		s.logger.Error("failed to finalize media", zap.Error(err), zap.String("media_id", mediaID))
		return fmt.Errorf("failed to finalize media: %w", err)
	}
	return nil
}

// UpdateUploadStatus applies an upload outcome reported for course media
//
// upload_completed requires stored bytes and takes the size from storage.
// upload_failed marks the record failed; the orphan sweeper removes it later.
func (s *mediaService) UpdateUploadStatus(ctx context.Context, scope models.OwnerScope, mediaID string, status models.UploadStatus) error {
	if status != models.UploadStatusCompleted && status != models.UploadStatusFailed {
		return fmt.Errorf("%w: invalid status: %q, must be 'upload_completed' or 'upload_failed'", ErrInvalidInput, status)
	}
	record, err := s.getInScope(ctx, scope, mediaID)
	if err != nil {
		return err
	}
	if !record.Scope.IsCourse() {
		return fmt.Errorf("%w: upload status is only supported for course media", ErrWrongScope)
	}

	if status == models.UploadStatusFailed {
		if err := s.repo.UpdateStatus(ctx, mediaID, models.AssetStatusFailed, nil); err != nil {
			return fmt.Errorf("failed to update media status: %w", err)
		}
		s.logger.Info("media upload reported failed", zap.String("media_id", mediaID))
		return nil
	}

	if record.Status == models.AssetStatusFailed {
		return fmt.Errorf("%w: media upload already failed", ErrConflict)
	}
	size, err := s.storage.Size(ctx, record.StorageKey)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return fmt.Errorf("%w: no uploaded content for media", ErrConflict)
	}
	if err != nil {
		s.logger.Error("failed to read media size", zap.Error(err), zap.String("media_id", mediaID))
		return fmt.Errorf("failed to read media size: %w", err)
	}

	if err := s.repo.UpdateStatus(ctx, mediaID, models.AssetStatusReady, models.Int64Ptr(size)); err != nil {
		return fmt.Errorf("failed to update media status: %w", err)
	}
	return nil
}

// ListMedia returns the scope's media with their transfer URLs
func (s *mediaService) ListMedia(ctx context.Context, scope models.OwnerScope) ([]models.MediaAsset, error) {
	if err := scope.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	records, err := s.repo.ListByScope(ctx, scope)
	if err != nil {
		s.logger.Error("failed to list media", zap.Error(err), zap.String("scope", scope.String()))
		return nil, fmt.Errorf("failed to list media: %w", err)
	}

	assets := make([]models.MediaAsset, 0, len(records))
	for i := range records {
		asset := records[i].Asset()
		asset.TransferURLs = s.transferURLs(&records[i])
		assets = append(assets, asset)
	}
	return assets, nil
}

// DeleteMedia removes a media record and its stored bytes
func (s *mediaService) DeleteMedia(ctx context.Context, scope models.OwnerScope, mediaID string) error {
	record, err := s.getInScope(ctx, scope, mediaID)
	if err != nil {
		return err
	}

	if err := s.storage.Delete(ctx, record.StorageKey); err != nil {
		s.logger.Error("failed to delete media content", zap.Error(err), zap.String("media_id", mediaID))
		return fmt.Errorf("failed to delete media content: %w", err)
	}
	if err := s.repo.DeleteByID(ctx, mediaID); err != nil {
		return fmt.Errorf("failed to delete media: %w", err)
	}
	return nil
}

// OpenContent opens the stored bytes of a media asset for streaming
//
// The caller must close Content.Body.
func (s *mediaService) OpenContent(ctx context.Context, mediaID string) (*Content, error) {
	record, err := s.repo.GetByID(ctx, mediaID)
	if err != nil {
		return nil, err
	}
	if record.Status == models.AssetStatusFailed {
		return nil, models.ErrMediaNotFound
	}

	body, err := s.storage.Open(ctx, record.StorageKey)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return nil, models.ErrMediaNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open media content: %w", err)
	}
	return &Content{Record: record, Body: body}, nil
}

// SweepOrphans deletes course media that failed or never completed before cutoff
//
// It returns how many records were removed. Failures on single records are
// collected and do not stop the sweep.
func (s *mediaService) SweepOrphans(ctx context.Context, cutoff time.Time) (int, error) {
	records, err := s.repo.ListStale(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to list stale media: %w", err)
	}

	var errs []error
	removed := 0
	for _, record := range records {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := s.storage.Delete(ctx, record.StorageKey); err != nil {
			errs = append(errs, fmt.Errorf("delete content %s: %w", record.ID, err))
			continue
		}
		if err := s.repo.DeleteByID(ctx, record.ID); err != nil && !errors.Is(err, models.ErrMediaNotFound) {
			errs = append(errs, fmt.Errorf("delete record %s: %w", record.ID, err))
			continue
		}
		removed++
	}

	if removed > 0 {
		s.logger.Info("swept orphaned media", zap.Int("removed", removed))
	}
	return removed, errors.Join(errs...)
}

// getInScope loads a record and hides records of other scopes
func (s *mediaService) getInScope(ctx context.Context, scope models.OwnerScope, mediaID string) (*models.MediaRecord, error) {
	if err := scope.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if mediaID == "" {
		return nil, fmt.Errorf("%w: media id is required", ErrInvalidInput)
	}

	record, err := s.repo.GetByID(ctx, mediaID)
	if err != nil {
		if !errors.Is(err, models.ErrMediaNotFound) {
			s.logger.Error("failed to get media", zap.Error(err), zap.String("media_id", mediaID))
		}
		return nil, err
	}
	if record.Scope != scope {
		return nil, models.ErrMediaNotFound
	}
	return record, nil
}

func (s *mediaService) transferURLs(record *models.MediaRecord) models.TransferURLs {
	content := fmt.Sprintf("%s/api/v1/media/%s/content", s.baseURL, url.PathEscape(record.ID))
	return models.TransferURLs{
		PublicURL:   content,
		DownloadURL: content + "?download=1",
		StorageURL:  s.storage.StorageURL(record.ID, record.StorageKey),
	}
}
