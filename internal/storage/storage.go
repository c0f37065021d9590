// Package storage publishes finished audio to S3-compatible object storage
// so callers can share a download link instead of the bytes.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/nadzzz/narrator/internal/config"
)

// Publisher uploads one audio file and returns where it can be fetched.
type Publisher interface {
	Publish(ctx context.Context, requestID, filename, contentType string, data []byte) (string, error)
}

// S3 is a Publisher backed by minio-go.
type S3 struct {
	client *minio.Client
	bucket string
	prefix string
	host   string
	clock  func() time.Time
}

// NewS3 connects to the configured endpoint and checks that the bucket exists.
func NewS3(ctx context.Context, cfg config.S3Config) (*S3, error) {
	endpoint := strings.TrimPrefix(strings.TrimPrefix(cfg.Endpoint, "https://"), "http://")
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("bucket %q does not exist", cfg.Bucket)
	}

	scheme := "http"
	if cfg.Secure {
		scheme = "https"
	}
	return &S3{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		host:   scheme + "://" + endpoint,
		clock:  time.Now,
	}, nil
}

// Publish uploads data under <prefix><yyyy/mm/dd>/<requestID>-<filename> and
// returns the object's public URL.
func (s *S3) Publish(ctx context.Context, requestID, filename, contentType string, data []byte) (string, error) {
	now := s.clock().UTC()
	key := s.objectKey(now, requestID, filename)

	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:        contentType,
		ContentDisposition: fmt.Sprintf("attachment; filename=%q", filename),
		UserMetadata:       map[string]string{"request-id": requestID, "uploaded-at": now.Format(time.RFC3339)},
	})
	if err != nil {
		return "", fmt.Errorf("upload failed: %w", err)
	}
	return s.publicURL(key), nil
}

func (s *S3) objectKey(now time.Time, requestID, filename string) string {
	return s.prefix + path.Join(now.Format("2006/01/02"), requestID+"-"+filename)
}

func (s *S3) publicURL(key string) string {
	segments := strings.Split(key, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return fmt.Sprintf("%s/%s/%s", s.host, s.bucket, strings.Join(segments, "/"))
}
