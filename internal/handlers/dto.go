package handlers

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/At4lian/VQCC/internal/models"
	"github.com/At4lian/VQCC/internal/service"
)

type assetResponse struct {
	ID           string     `json:"id"`
	OriginalName string     `json:"originalName"`
	ContentType  string     `json:"contentType"`
	Status       string     `json:"status"`
	SizeBytes    *string    `json:"sizeBytes"`
	ETag         *string    `json:"etag,omitempty"`
	LastError    *string    `json:"lastError,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UploadedAt   *time.Time `json:"uploadedAt,omitempty"`
	FailedAt     *time.Time `json:"failedAt,omitempty"`
}

// Sizes travel as decimal strings; 2 GiB fits an int64 but not every
// client's number type.
func sizeString(n *int64) *string {
	if n == nil {
		return nil
	}
	s := strconv.FormatInt(*n, 10)
	return &s
}

func newAssetResponse(a models.Asset) assetResponse {
	size := a.VerifiedSizeBytes
	if size == nil {
		size = &a.DeclaredSizeBytes
	}
	return assetResponse{
		ID:           a.ID,
		OriginalName: a.OriginalName,
		ContentType:  a.ContentType,
		Status:       string(a.Status),
		SizeBytes:    sizeString(size),
		ETag:         a.ETag,
		LastError:    a.LastError,
		CreatedAt:    a.CreatedAt,
		UploadedAt:   a.UploadedAt,
		FailedAt:     a.FailedAt,
	}
}

type assetSummaryResponse struct {
	ID           string     `json:"id"`
	OriginalName string     `json:"originalName,omitempty"`
	Status       string     `json:"status,omitempty"`
	UploadedAt   *time.Time `json:"uploadedAt,omitempty"`
}

type jobResponse struct {
	ID           string                `json:"id"`
	AssetID      string                `json:"assetId"`
	Status       string                `json:"status"`
	Requested    []string              `json:"requested"`
	Result       json.RawMessage       `json:"result,omitempty"`
	ErrorMessage *string               `json:"errorMessage,omitempty"`
	CreatedAt    time.Time             `json:"createdAt"`
	StartedAt    *time.Time            `json:"startedAt,omitempty"`
	FinishedAt   *time.Time            `json:"finishedAt,omitempty"`
	Asset        *assetSummaryResponse `json:"asset,omitempty"`
}

func newJobResponse(j models.AnalysisJob) jobResponse {
	requested := make([]string, len(j.Requested))
	for i, k := range j.Requested {
		requested[i] = string(k)
	}
	return jobResponse{
		ID:           j.ID,
		AssetID:      j.AssetID,
		Status:       string(j.Status),
		Requested:    requested,
		Result:       j.Result,
		ErrorMessage: j.ErrorMessage,
		CreatedAt:    j.CreatedAt,
		StartedAt:    j.StartedAt,
		FinishedAt:   j.FinishedAt,
	}
}

func newClaimedAssetResponse(a models.Asset) claimedAssetResponse {
	return claimedAssetResponse{
		ID:           a.ID,
		Bucket:       a.Bucket,
		Key:          a.ObjectKey,
		ContentType:  a.ContentType,
		SizeBytes:    strconv.FormatInt(a.DeclaredSizeBytes, 10),
		OriginalName: a.OriginalName,
	}
}

func newJobViewResponse(v service.JobView) jobResponse {
	resp := newJobResponse(v.Job)
	resp.Asset = &assetSummaryResponse{
		ID:           v.Asset.ID,
		OriginalName: v.Asset.OriginalName,
		Status:       string(v.Asset.Status),
		UploadedAt:   v.Asset.UploadedAt,
	}
	return resp
}

// claimedAssetResponse carries what a worker needs to fetch the media.
type claimedAssetResponse struct {
	ID           string `json:"id"`
	Bucket       string `json:"bucket"`
	Key          string `json:"key"`
	ContentType  string `json:"contentType"`
	SizeBytes    string `json:"sizeBytes"`
	OriginalName string `json:"originalName"`
}
