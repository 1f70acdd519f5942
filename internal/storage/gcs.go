// Package storage uploads payment proofs and fund application attachments to Google Cloud Storage.
package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"regexp"
	"time"

	"cloud.google.com/go/storage"
	"github.com/kaskelas/backend/internal/config"
)

const publicURLFormat = "https://storage.googleapis.com/%s/%s"

var whitespace = regexp.MustCompile(`\s+`)

// objectWriter opens a writer for one object. Tests replace it.
type objectWriter func(ctx context.Context, bucket, object, contentType string) io.WriteCloser

type GCSUploader struct {
	client *storage.Client
	bucket string
	open   objectWriter
	now    func() time.Time
}

// NewGCSUploader returns nil when no bucket is configured or the client cannot be built.
// Callers treat a nil uploader as "uploads disabled".
func NewGCSUploader(ctx context.Context, cfg config.StorageConfig) *GCSUploader {
	if cfg.Bucket == "" {
		slog.Info("GCS bucket not configured, file uploads disabled")
		return nil
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		slog.Warn("Failed to initialize storage client, file uploads disabled", "error", err)
		return nil
	}

	u := &GCSUploader{client: client, bucket: cfg.Bucket, now: time.Now}
	u.open = func(ctx context.Context, bucket, object, contentType string) io.WriteCloser {
		w := client.Bucket(bucket).Object(object).NewWriter(ctx)
		w.ContentType = contentType
		// Zero chunk size sends the object in a single request.
		w.ChunkSize = 0
		return w
	}
	return u
}

// Upload stores r under folder/<unix-millis>-<name> and returns its public URL.
func (u *GCSUploader) Upload(ctx context.Context, folder, name, contentType string, r io.Reader) (string, error) {
	object := ObjectName(folder, name, u.now())

	w := u.open(ctx, u.bucket, object, contentType)
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return "", fmt.Errorf("failed to upload %s: %w", object, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize %s: %w", object, err)
	}

	slog.Info("file uploaded", "bucket", u.bucket, "object", object)
	return fmt.Sprintf(publicURLFormat, u.bucket, object), nil
}

func (u *GCSUploader) Close() error {
	if u == nil || u.client == nil {
		return nil
	}
	return u.client.Close()
}

func ObjectName(folder, name string, at time.Time) string {
	base := whitespace.ReplaceAllString(path.Base(name), "-")
	return fmt.Sprintf("%s/%d-%s", folder, at.UnixMilli(), base)
}
