package storage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/At4lian/VQCC/internal/config"
)

func newTestStore(t *testing.T, handler http.HandlerFunc) *ObjectStore {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	store, err := NewObjectStore(config.StorageConfig{
		Endpoint:  srv.URL,
		AccessKey: "access",
		SecretKey: "secretsecret",
		Bucket:    "videos",
		Region:    "us-east-1",
	})
	require.NoError(t, err)
	return store
}

func TestPresignUploadScopesKey(t *testing.T) {
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	cred, err := store.PresignUpload(context.Background(), "videos", "videos/u1/a1/clip.mp4", time.Minute, 1, 1024)
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(cred.URL, "/videos/"), cred.URL)
	assert.Equal(t, "videos/u1/a1/clip.mp4", cred.Fields["key"])
	assert.NotEmpty(t, cred.Fields["policy"])
	assert.WithinDuration(t, time.Now().Add(time.Minute), cred.ExpiresAt, 5*time.Second)
}

func TestStat(t *testing.T) {
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/missing.mp4") {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Length", "524288000")
		w.Header().Set("ETag", `"abc123"`)
		w.Header().Set("Content-Type", "video/mp4")
		w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
		w.WriteHeader(http.StatusOK)
	})

	info, err := store.Stat(context.Background(), "videos", "videos/u1/a1/clip.mp4")
	require.NoError(t, err)
	assert.Equal(t, int64(524288000), info.Size)
	assert.Equal(t, "abc123", info.ETag)

	_, err = store.Stat(context.Background(), "videos", "videos/u1/a1/missing.mp4")
	assert.True(t, errors.Is(err, ErrObjectNotFound), err)
}

func TestDeleteIgnoresMissingObject(t *testing.T) {
	var method string
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, store.Delete(context.Background(), "videos", "videos/u1/a1/clip.mp4"))
	assert.Equal(t, http.MethodDelete, method)
}
