package gcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
)

// MaxDocumentBytes caps how much of an uploaded document is read.
const MaxDocumentBytes = 32 << 20

// ParseGCSURI splits gs://bucket/object into its parts.
func ParseGCSURI(uri string) (bucket, object string, err error) {
	rest, ok := strings.CutPrefix(uri, "gs://")
	if !ok {
		return "", "", fmt.Errorf("not a gs:// uri: %q", uri)
	}
	bucket, object, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || object == "" {
		return "", "", fmt.Errorf("gs:// uri must name a bucket and an object: %q", uri)
	}
	return bucket, object, nil
}

// GCSDocumentSource reads uploaded RFQ and Bid files from Cloud Storage.
type GCSDocumentSource struct {
	client *storage.Client
}

// NewGCSDocumentSource wraps an existing storage client.
func NewGCSDocumentSource(client *storage.Client) *GCSDocumentSource {
	return &GCSDocumentSource{client: client}
}

// Fetch returns the object's bytes and content type.
func (s *GCSDocumentSource) Fetch(ctx context.Context, uri string) ([]byte, string, error) {
	bucket, object, err := ParseGCSURI(uri)
	if err != nil {
		return nil, "", err
	}

	reader, err := s.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("failed to get GCS object reader for %s: %w", uri, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(io.LimitReader(reader, MaxDocumentBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read GCS object %s: %w", uri, err)
	}
	if len(data) > MaxDocumentBytes {
		return nil, "", fmt.Errorf("GCS object %s exceeds %d bytes", uri, MaxDocumentBytes)
	}
	return data, reader.Attrs.ContentType, nil
}

// BucketArchiver writes raw audit results to a bucket, once per object name.
type BucketArchiver struct {
	bucket *storage.BucketHandle
}

// NewBucketArchiver returns an archiver for the named bucket.
func NewBucketArchiver(client *storage.Client, bucket string) *BucketArchiver {
	return &BucketArchiver{bucket: client.Bucket(bucket)}
}

// Archive stores content under objectName unless it already exists.
func (a *BucketArchiver) Archive(ctx context.Context, objectName, content string) error {
	return SaveToGCSAtomically(ctx, a.bucket, objectName, content)
}

// SaveToGCSAtomically writes content to a GCS object only if it doesn't already exist.
func SaveToGCSAtomically(ctx context.Context, bucket *storage.BucketHandle, objectName, content string) error {
	writer := bucket.Object(objectName).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	writer.ContentType = "application/json"

	if _, err := io.Copy(writer, strings.NewReader(content)); err != nil {
		_ = writer.Close()
		if isPreconditionFailed(err) {
			slog.Info("Object already exists, skipping write.", "object", objectName)
			return nil
		}
		return fmt.Errorf("failed to write to GCS: %w", err)
	}

	if err := writer.Close(); err != nil {
		// The precondition is evaluated when the upload is finalized.
		if isPreconditionFailed(err) {
			slog.Info("Object already exists, skipping write.", "object", objectName)
			return nil
		}
		return fmt.Errorf("failed to finalize GCS write: %w", err)
	}
	return nil
}

func isPreconditionFailed(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == 412
}
