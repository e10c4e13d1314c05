// Package storage archives provider call recordings into MinIO before
// the provider's short-lived URLs expire.
package storage

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Config is the subset of configuration the archiver needs.
type Config interface {
	IsMinIOEnabled() bool
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetRecordingBucket() string
	GetRecordingMaxSizeBytes() int64
}

// Archiver copies call recordings from provider URLs into a MinIO bucket.
type Archiver struct {
	client  *minio.Client
	bucket  string
	maxSize int64
	http    *http.Client
}

// NewArchiver creates the recording archiver.
func NewArchiver(cfg Config) (*Archiver, error) {
	if !cfg.IsMinIOEnabled() {
		return nil, fmt.Errorf("MinIO is not configured")
	}

	client, err := minio.New(cfg.GetMinIOEndpoint(), &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.GetMinIOAccessKey(), cfg.GetMinIOSecretKey(), ""),
		Secure: cfg.GetMinIOUseSSL(),
	})
	if err != nil {
		return nil, fmt.Errorf("create MinIO client: %w", err)
	}

	return &Archiver{
		client:  client,
		bucket:  cfg.GetRecordingBucket(),
		maxSize: cfg.GetRecordingMaxSizeBytes(),
		http:    &http.Client{Timeout: 2 * time.Minute},
	}, nil
}

// EnsureBucket creates the recordings bucket if it doesn't exist.
func (a *Archiver) EnsureBucket(ctx context.Context) error {
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return fmt.Errorf("check bucket existence: %w", err)
	}
	if !exists {
		if err := a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket %s: %w", a.bucket, err)
		}
	}
	return nil
}

// ArchiveRecording downloads the recording at recordingURL and stores it
// under a per-call object key. Re-running for the same call overwrites the
// same key, so the job is safe to retry.
func (a *Archiver) ArchiveRecording(ctx context.Context, callID uuid.UUID, recordingURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, recordingURL, nil)
	if err != nil {
		return "", err
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("download recording: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("recording download returned %d", resp.StatusCode)
	}
	if resp.ContentLength > a.maxSize {
		return "", fmt.Errorf("recording size %d exceeds limit %d", resp.ContentLength, a.maxSize)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "audio/wav"
	}

	key := objectKey(callID, recordingURL)
	_, err = a.client.PutObject(ctx, a.bucket, key, resp.Body, resp.ContentLength, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("upload recording %s: %w", key, err)
	}
	return key, nil
}

// PresignedRecordingURL returns a short-lived download URL for an archived
// recording.
func (a *Archiver) PresignedRecordingURL(ctx context.Context, key string) (string, error) {
	u, err := a.client.PresignedGetObject(ctx, a.bucket, key, 15*time.Minute, nil)
	if err != nil {
		return "", fmt.Errorf("presign recording %s: %w", key, err)
	}
	return u.String(), nil
}

func objectKey(callID uuid.UUID, recordingURL string) string {
	ext := path.Ext(strings.SplitN(recordingURL, "?", 2)[0])
	if ext == "" {
		ext = ".wav"
	}
	return fmt.Sprintf("recordings/%s%s", callID, ext)
}
