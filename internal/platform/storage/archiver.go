package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"

	"github.com/printhouse/orders-api/internal/services"
)

// ObjectWriter stores one object.
type ObjectWriter interface {
	WriteObject(ctx context.Context, bucket, object, contentType string, data []byte) error
}

// GCSWriter writes objects through a Cloud Storage client.
type GCSWriter struct {
	client *gcs.Client
}

// NewGCSWriter wraps client.
func NewGCSWriter(client *gcs.Client) (*GCSWriter, error) {
	if client == nil {
		return nil, errors.New("storage writer: client is required")
	}
	return &GCSWriter{client: client}, nil
}

func (w *GCSWriter) WriteObject(ctx context.Context, bucket, object, contentType string, data []byte) error {
	writer := w.client.Bucket(bucket).Object(object).NewWriter(ctx)
	writer.ContentType = contentType
	writer.CacheControl = "private, max-age=0"
	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return err
	}
	return writer.Close()
}

// ReportArchiver stores bulk transition reports as JSON objects in the exports bucket.
type ReportArchiver struct {
	writer  ObjectWriter
	bucket  string
	links   *LinkSigner
	linkTTL time.Duration
}

var _ services.ReportArchiver = (*ReportArchiver)(nil)

// ArchiverOption customises a ReportArchiver.
type ArchiverOption func(*ReportArchiver)

// WithDownloadLinks makes ArchiveBulkReport return a signed download URL
// valid for ttl instead of the gs:// path.
func WithDownloadLinks(links *LinkSigner, ttl time.Duration) ArchiverOption {
	return func(a *ReportArchiver) {
		a.links = links
		a.linkTTL = ttl
	}
}

// NewReportArchiver builds an archiver writing into bucket.
func NewReportArchiver(writer ObjectWriter, bucket string, opts ...ArchiverOption) (*ReportArchiver, error) {
	if writer == nil {
		return nil, errors.New("report archiver: writer is required")
	}
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, errInvalidBucket
	}
	a := &ReportArchiver{writer: writer, bucket: bucket}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a, nil
}

// ArchiveBulkReport writes the report and returns where to fetch it.
func (a *ReportArchiver) ArchiveBulkReport(ctx context.Context, report services.BatchReport) (string, error) {
	object, err := BulkReportPath(report.RunID, report.StartedAt)
	if err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("report archiver: encode report: %w", err)
	}
	if err := a.writer.WriteObject(ctx, a.bucket, object, "application/json", data); err != nil {
		return "", fmt.Errorf("report archiver: write %s: %w", object, err)
	}
	if a.links == nil {
		return fmt.Sprintf("gs://%s/%s", a.bucket, object), nil
	}
	link, err := a.links.DownloadLink(ctx, a.bucket, object, path.Base(object), a.linkTTL)
	if err != nil {
		return "", fmt.Errorf("report archiver: sign link: %w", err)
	}
	return link.URL, nil
}
