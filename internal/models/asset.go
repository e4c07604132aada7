package models

import "time"

type AssetStatus string

const (
	AssetStatusUploading AssetStatus = "UPLOADING"
	AssetStatusUploaded  AssetStatus = "UPLOADED"
	AssetStatusFailed    AssetStatus = "FAILED"
	AssetStatusDeleted   AssetStatus = "DELETED"
)

// Terminal reports whether the engine may still move the asset. Only the
// retention process moves an UPLOADED asset to DELETED.
func (s AssetStatus) Terminal() bool {
	return s == AssetStatusUploaded || s == AssetStatusFailed || s == AssetStatusDeleted
}

type Asset struct {
	ID                string
	OwnerID           string
	OriginalName      string
	ContentType       string
	DeclaredSizeBytes int64
	VerifiedSizeBytes *int64
	Bucket            string
	ObjectKey         string
	Status            AssetStatus
	ETag              *string
	LastError         *string
	CreatedAt         time.Time
	UploadedAt        *time.Time
	FailedAt          *time.Time
	UpdatedAt         time.Time
}

// HasLocation reports whether the storage coordinates were recorded at init.
func (a Asset) HasLocation() bool {
	return a.Bucket != "" && a.ObjectKey != ""
}
