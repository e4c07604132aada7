package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/At4lian/VQCC/internal/config"
)

var ErrObjectNotFound = errors.New("object not found")

// UploadCredential is a presigned POST: the client sends Fields plus the file
// as multipart form data to URL.
type UploadCredential struct {
	URL       string            `json:"url"`
	Fields    map[string]string `json:"fields"`
	ExpiresAt time.Time         `json:"expiresAt"`
}

type ObjectInfo struct {
	Size        int64
	ETag        string
	ContentType string
}

type ObjectStore struct {
	client *minio.Client
	cfg    config.StorageConfig
}

func NewObjectStore(cfg config.StorageConfig) (*ObjectStore, error) {
	endpoint := cfg.Endpoint
	useSSL := cfg.UseSSL

	if strings.HasPrefix(endpoint, "http") {
		u, err := url.Parse(endpoint)
		if err != nil {
			return nil, fmt.Errorf("parse endpoint: %w", err)
		}
		endpoint = u.Host
		useSSL = u.Scheme == "https"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}

	return &ObjectStore{
		client: client,
		cfg:    cfg,
	}, nil
}

func (s *ObjectStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.cfg.Bucket)
	if err != nil {
		return fmt.Errorf("bucket exists %s: %w", s.cfg.Bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.cfg.Bucket, minio.MakeBucketOptions{Region: s.cfg.Region}); err != nil {
			return fmt.Errorf("create bucket %s: %w", s.cfg.Bucket, err)
		}
	}
	return nil
}

// Health checks that the configured bucket is reachable.
func (s *ObjectStore) Health(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.cfg.Bucket)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("bucket %s does not exist", s.cfg.Bucket)
	}
	return nil
}

func (s *ObjectStore) Bucket() string {
	return s.cfg.Bucket
}

// PresignUpload issues a POST policy scoped to exactly one key and a
// content-length range.
func (s *ObjectStore) PresignUpload(ctx context.Context, bucket, key string, expiry time.Duration, minSize, maxSize int64) (UploadCredential, error) {
	expiresAt := time.Now().UTC().Add(expiry)

	policy := minio.NewPostPolicy()
	if err := policy.SetBucket(bucket); err != nil {
		return UploadCredential{}, fmt.Errorf("policy bucket: %w", err)
	}
	if err := policy.SetKey(key); err != nil {
		return UploadCredential{}, fmt.Errorf("policy key: %w", err)
	}
	if err := policy.SetExpires(expiresAt); err != nil {
		return UploadCredential{}, fmt.Errorf("policy expiry: %w", err)
	}
	if err := policy.SetContentLengthRange(minSize, maxSize); err != nil {
		return UploadCredential{}, fmt.Errorf("policy size range: %w", err)
	}
	if err := policy.SetSuccessStatusAction("201"); err != nil {
		return UploadCredential{}, fmt.Errorf("policy status: %w", err)
	}

	u, fields, err := s.client.PresignedPostPolicy(ctx, policy)
	if err != nil {
		return UploadCredential{}, fmt.Errorf("presign post: %w", err)
	}

	return UploadCredential{
		URL:       u.String(),
		Fields:    fields,
		ExpiresAt: expiresAt,
	}, nil
}

// Stat reads object metadata without fetching content.
func (s *ObjectStore) Stat(ctx context.Context, bucket, key string) (ObjectInfo, error) {
	info, err := s.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return ObjectInfo{}, fmt.Errorf("%s/%s: %w", bucket, key, ErrObjectNotFound)
		}
		return ObjectInfo{}, fmt.Errorf("stat %s/%s: %w", bucket, key, err)
	}
	return ObjectInfo{
		Size:        info.Size,
		ETag:        strings.Trim(info.ETag, `"`),
		ContentType: info.ContentType,
	}, nil
}

// Delete removes the object. Deleting a missing key is not an error.
func (s *ObjectStore) Delete(ctx context.Context, bucket, key string) error {
	err := s.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("remove %s/%s: %w", bucket, key, err)
	}
	return nil
}

// Download writes the object to a local file.
func (s *ObjectStore) Download(ctx context.Context, bucket, key, path string) error {
	if err := s.client.FGetObject(ctx, bucket, key, path, minio.GetObjectOptions{}); err != nil {
		if isNotFound(err) {
			return fmt.Errorf("%s/%s: %w", bucket, key, ErrObjectNotFound)
		}
		return fmt.Errorf("download %s/%s: %w", bucket, key, err)
	}
	return nil
}

func isNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.StatusCode == http.StatusNotFound || resp.Code == "NoSuchKey"
}
