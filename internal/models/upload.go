package models

// UploadIntentFile describes one file in a create-upload-intent request
type UploadIntentFile struct {
	FileName    string `json:"fileName"`
	FileType    string `json:"fileType"`
	FileSize    int64  `json:"fileSize"`
	DisplayName string `json:"displayName,omitempty"`
}

// UploadIntentRequest represents a request to create upload intents
type UploadIntentRequest struct {
	Kind  MediaKind          `json:"kind"`
	Files []UploadIntentFile `json:"files"`
}

// UploadIntentEntry is one entry of an upload intent response.
// Unit intents carry the media id in ID, course intents in VideoID or SlideID by kind.
type UploadIntentEntry struct {
	UploadURL string `json:"uploadUrl"`
	ID        string `json:"id,omitempty"`
	VideoID   string `json:"videoId,omitempty"`
	SlideID   string `json:"slideId,omitempty"`
}

// MediaID returns the media id carried by the entry for the given scope and kind
func (e UploadIntentEntry) MediaID(scopeType ScopeType, kind MediaKind) string {
	if scopeType == ScopeTypeUnit {
		return e.ID
	}
	if kind == MediaKindSlide {
		return e.SlideID
	}
	return e.VideoID
}

// UploadIntentResponse represents the batch-shaped create-upload-intent response
type UploadIntentResponse struct {
	Files []UploadIntentEntry `json:"files"`
}

// FinalizeRequest represents a request to finalize a unit upload
type FinalizeRequest struct {
	FileSize int64 `json:"fileSize"`
}

// UploadStatus represents an upload outcome reported for course media
type UploadStatus string

const (
	UploadStatusCompleted UploadStatus = "upload_completed"
	UploadStatusFailed    UploadStatus = "upload_failed"
)

// UploadStatusRequest represents an upload-status notification
type UploadStatusRequest struct {
	Status UploadStatus `json:"status"`
}

// StatusResponse represents the generic success envelope returned by mutating calls
type StatusResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}
