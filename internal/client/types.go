package client

import (
	"encoding/json"
	"time"
)

// Credential is a presigned POST issued by the API.
type Credential struct {
	URL       string            `json:"url"`
	Fields    map[string]string `json:"fields"`
	ExpiresAt time.Time         `json:"expiresAt"`
}

type UploadRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

type Initiated struct {
	AssetID string     `json:"assetId"`
	Bucket  string     `json:"bucket"`
	Key     string     `json:"key"`
	Upload  Credential `json:"upload"`
}

type Asset struct {
	ID           string     `json:"id"`
	OriginalName string     `json:"originalName"`
	ContentType  string     `json:"contentType"`
	Status       string     `json:"status"`
	SizeBytes    string     `json:"sizeBytes"`
	LastError    string     `json:"lastError"`
	CreatedAt    time.Time  `json:"createdAt"`
	UploadedAt   *time.Time `json:"uploadedAt"`
}

type AssetSummary struct {
	ID           string     `json:"id"`
	OriginalName string     `json:"originalName"`
	Status       string     `json:"status"`
	UploadedAt   *time.Time `json:"uploadedAt"`
}

type Job struct {
	ID           string          `json:"id"`
	AssetID      string          `json:"assetId"`
	Status       string          `json:"status"`
	Requested    []string        `json:"requested"`
	Result       json.RawMessage `json:"result"`
	ErrorMessage string          `json:"errorMessage"`
	CreatedAt    time.Time       `json:"createdAt"`
	StartedAt    *time.Time      `json:"startedAt"`
	FinishedAt   *time.Time      `json:"finishedAt"`
	Asset        *AssetSummary   `json:"asset"`
}

// ClaimedAsset locates the media a worker must inspect.
type ClaimedAsset struct {
	ID           string `json:"id"`
	Bucket       string `json:"bucket"`
	Key          string `json:"key"`
	ContentType  string `json:"contentType"`
	SizeBytes    string `json:"sizeBytes"`
	OriginalName string `json:"originalName"`
}

type Claim struct {
	Job   Job          `json:"job"`
	Asset ClaimedAsset `json:"asset"`
}
