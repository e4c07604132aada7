package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"sort"
	"strings"
)

// ProgressFunc receives the number of file bytes sent so far.
type ProgressFunc func(sent int64)

// Transferrer moves the file bytes straight to object storage.
type Transferrer interface {
	Transfer(ctx context.Context, cred Credential, file io.Reader, size int64, filename, contentType string, progress ProgressFunc) error
}

// HTTPTransferrer performs a presigned multipart POST. The body length is
// computed up front because object stores reject chunked form uploads.
type HTTPTransferrer struct {
	client *http.Client
}

func NewHTTPTransferrer(client *http.Client) *HTTPTransferrer {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPTransferrer{client: client}
}

func (t *HTTPTransferrer) Transfer(ctx context.Context, cred Credential, file io.Reader, size int64, filename, contentType string, progress ProgressFunc) error {
	var head bytes.Buffer
	mw := multipart.NewWriter(&head)

	keys := make([]string, 0, len(cred.Fields))
	for k := range cred.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := mw.WriteField(k, cred.Fields[k]); err != nil {
			return fmt.Errorf("write field %s: %w", k, err)
		}
	}

	// the file part must come last
	partHeader := make(textproto.MIMEHeader)
	partHeader.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	if contentType != "" {
		partHeader.Set("Content-Type", contentType)
	}
	if _, err := mw.CreatePart(partHeader); err != nil {
		return fmt.Errorf("create file part: %w", err)
	}
	tail := "\r\n--" + mw.Boundary() + "--\r\n"

	body := io.MultiReader(
		bytes.NewReader(head.Bytes()),
		&countingReader{r: io.LimitReader(file, size), progress: progress},
		strings.NewReader(tail),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cred.URL, body)
	if err != nil {
		return err
	}
	req.ContentLength = int64(head.Len()) + size + int64(len(tail))
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("storage upload: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusNoContent:
		return nil
	default:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("storage upload failed (%d): %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
}

type countingReader struct {
	r        io.Reader
	sent     int64
	progress ProgressFunc
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.sent += int64(n)
		if c.progress != nil {
			c.progress(c.sent)
		}
	}
	return n, err
}
