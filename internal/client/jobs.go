package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
)

// ClaimJob asks for exclusive ownership of a queued job. A lost race comes
// back as an *APIError with StatusCode 409; see IsConflict.
func (c *Client) ClaimJob(ctx context.Context, jobID string) (Claim, error) {
	var out Claim
	err := c.do(ctx, http.MethodPost, "/api/internal/jobs/"+url.PathEscape(jobID)+"/claim", nil, &out)
	return out, err
}

func (c *Client) CompleteJob(ctx context.Context, jobID string, result json.RawMessage) error {
	return c.do(ctx, http.MethodPost, "/api/internal/jobs/"+url.PathEscape(jobID)+"/complete", map[string]json.RawMessage{"result": result}, nil)
}

func (c *Client) FailJob(ctx context.Context, jobID, message string) error {
	return c.do(ctx, http.MethodPost, "/api/internal/jobs/"+url.PathEscape(jobID)+"/fail", map[string]string{"error": message}, nil)
}
