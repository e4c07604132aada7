package client

import (
	"context"
	"net/http"
	"net/url"
)

func (c *Client) InitiateUpload(ctx context.Context, req UploadRequest) (Initiated, error) {
	var out Initiated
	err := c.do(ctx, http.MethodPost, "/api/v1/uploads", req, &out)
	return out, err
}

func (c *Client) CompleteUpload(ctx context.Context, assetID string) (Asset, error) {
	var out struct {
		Asset Asset `json:"asset"`
	}
	err := c.do(ctx, http.MethodPost, "/api/v1/uploads/complete", map[string]string{"assetId": assetID}, &out)
	return out.Asset, err
}

func (c *Client) CancelUpload(ctx context.Context, assetID string) error {
	return c.do(ctx, http.MethodPost, "/api/v1/uploads/cancel", map[string]string{"assetId": assetID}, nil)
}

func (c *Client) ReportFailure(ctx context.Context, assetID, reason string) error {
	if r := []rune(reason); len(r) > 500 {
		reason = string(r[:500])
	}
	return c.do(ctx, http.MethodPost, "/api/v1/uploads/fail", map[string]string{"assetId": assetID, "reason": reason}, nil)
}

func (c *Client) CreateAnalysisJob(ctx context.Context, assetID string, checks []string) (Job, error) {
	var out struct {
		Job Job `json:"job"`
	}
	err := c.do(ctx, http.MethodPost, "/api/v1/analyses", map[string]any{"assetId": assetID, "checks": checks}, &out)
	return out.Job, err
}

func (c *Client) GetAnalysisJob(ctx context.Context, jobID string) (Job, error) {
	var out struct {
		Job Job `json:"job"`
	}
	err := c.do(ctx, http.MethodGet, "/api/v1/analyses/"+url.PathEscape(jobID), nil, &out)
	return out.Job, err
}
