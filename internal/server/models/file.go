package models

import "time"

// FileRecord describes a distributable file. StorageKey addresses the blob
// in object storage; AllowedGroups is the download gate (empty means no
// group restriction for the download check, see the access package for the
// listing asymmetry).
type FileRecord struct {
	ID            int64
	StorageKey    string
	OriginalName  string
	Size          int64
	MimeType      string
	IsPublic      bool
	AllowedGroups []int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
