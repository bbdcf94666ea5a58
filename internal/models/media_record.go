package models

import (
	"errors"
	"time"
)

// ErrMediaNotFound is returned when a media record does not exist
var ErrMediaNotFound = errors.New("media not found")

// MediaRecord is the backend-side row of a media asset
type MediaRecord struct {
	ID          string
	Scope       OwnerScope
	Kind        MediaKind
	DisplayName string
	FileName    string
	FileType    string
	FileSize    *int64
	Status      AssetStatus
	StorageKey  string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Asset returns the wire representation of the record without URLs
func (r *MediaRecord) Asset() MediaAsset {
	return MediaAsset{
		ID:          r.ID,
		Scope:       r.Scope,
		Kind:        r.Kind,
		DisplayName: r.DisplayName,
		FileName:    r.FileName,
		FileType:    r.FileType,
		FileSize:    r.FileSize,
		Status:      r.Status,
	}
}
