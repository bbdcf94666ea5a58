package uploader

import (
	"context"

	"github.com/japanesestudent/media-uploader/internal/models"
)

// Backend defines the backend calls the orchestrator depends on
type Backend interface {
	// Method CreateUploadIntent requests a direct-to-storage upload slot.
	//
	// "ctx" is the context of the call; cancelling it aborts the request.
	// "scope" is the course or unit the media will belong to.
	// "kind" is the media kind (video or slide).
	// "file" describes the file to upload.
	//
	// Returns the batch-shaped intent response and an error if any.
	CreateUploadIntent(ctx context.Context, scope models.OwnerScope, kind models.MediaKind, file models.UploadIntentFile) (*models.UploadIntentResponse, error)
	// Method FinalizeUpload persists the byte size of an uploaded unit media.
	//
	// "ctx" is the context of the call.
	// "scope" is the unit the media belongs to.
	// "mediaID" is the id issued at negotiation.
	// "size" is the client-known byte size.
	//
	// Returns an error if the backend refused or could not be reached.
	FinalizeUpload(ctx context.Context, scope models.OwnerScope, mediaID string, size int64) error
	// Method ListMedia retrieves the authoritative media list of a scope.
	//
	// "ctx" is the context of the call.
	// "scope" is the course or unit to list.
	//
	// Returns the media assets and an error if any.
	ListMedia(ctx context.Context, scope models.OwnerScope) ([]models.MediaAsset, error)
	// Method DeleteMedia removes a media asset from the backend and its storage.
	//
	// "ctx" is the context of the call.
	// "scope" is the course or unit the media belongs to.
	// "mediaID" is the id of the media.
	//
	// Returns an error if any.
	DeleteMedia(ctx context.Context, scope models.OwnerScope, mediaID string) error
	// Method NotifyUploadStatus reports the outcome of a course media upload.
	//
	// "ctx" is the context of the call.
	// "scope" is the course the media belongs to.
	// "mediaID" is the id of the media.
	// "status" is upload_completed or upload_failed.
	//
	// Returns an error if any.
	NotifyUploadStatus(ctx context.Context, scope models.OwnerScope, mediaID string, status models.UploadStatus) error
}

// AssetStore defines the merged local media state the orchestrator maintains
type AssetStore interface {
	// Upsert inserts the asset or replaces the one with the same id.
	Upsert(asset models.MediaAsset)
	// Merge upserts assets listed by the backend, skipping ids removed locally after
	// version "since" and keeping known sizes and URLs the listing lacks.
	// Returns the assets as stored.
	Merge(scope models.OwnerScope, assets []models.MediaAsset, since uint64) []models.MediaAsset
	// Remove deletes the asset and returns whether it was present.
	Remove(scope models.OwnerScope, id string) bool
	// ForScope returns the assets of the scope in insertion order.
	ForScope(scope models.OwnerScope) []models.MediaAsset
	// IDs returns the ids known for the scope.
	IDs(scope models.OwnerScope) map[string]struct{}
	// Version returns a counter that grows with every change.
	Version() uint64
}
