package models

// MediaKind represents the kind of course media
type MediaKind string

const (
	MediaKindVideo MediaKind = "video"
	MediaKindSlide MediaKind = "slide"
)

// IsValid reports whether the kind is a known media kind
func (k MediaKind) IsValid() bool {
	return k == MediaKindVideo || k == MediaKindSlide
}

// AssetStatus represents the server-side lifecycle state of an asset
type AssetStatus string

const (
	AssetStatusPending  AssetStatus = "pending"
	AssetStatusUploaded AssetStatus = "uploaded"
	AssetStatusReady    AssetStatus = "ready"
	AssetStatusFailed   AssetStatus = "failed"
)

// TransferURLs holds the locations an asset can be fetched from
type TransferURLs struct {
	PublicURL   string `json:"publicUrl,omitempty"`
	DownloadURL string `json:"downloadUrl,omitempty"`
	StorageURL  string `json:"storageUrl,omitempty"`
}

// Preferred returns the first non-empty URL in the order public, download, storage
func (u TransferURLs) Preferred() string {
	switch {
	case u.PublicURL != "":
		return u.PublicURL
	case u.DownloadURL != "":
		return u.DownloadURL
	default:
		return u.StorageURL
	}
}

// IsEmpty reports whether no URL is set
func (u TransferURLs) IsEmpty() bool {
	return u.Preferred() == ""
}

// MediaAsset represents a video or slide attached to a course or unit
type MediaAsset struct {
	ID          string      `json:"id"`
	Scope       OwnerScope  `json:"scope"`
	Kind        MediaKind   `json:"kind"`
	DisplayName string      `json:"displayName"`
	FileName    string      `json:"fileName"`
	FileType    string      `json:"fileType"`
	FileSize    *int64      `json:"fileSize,omitempty"`
	Status      AssetStatus `json:"status,omitempty"`
	TransferURLs
}

// SizeOrZero returns the file size or 0 when it is not known yet
func (a *MediaAsset) SizeOrZero() int64 {
	if a.FileSize == nil {
		return 0
	}
	return *a.FileSize
}

// Int64Ptr returns a pointer to v
func Int64Ptr(v int64) *int64 {
	return &v
}
