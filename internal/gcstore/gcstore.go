package gcstore

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

// Service reads and writes reconciliation sources and artifacts in Google
// Cloud Storage. It assumes Application Default Credentials are configured
// (gcloud auth application-default login).
type Service struct{}

// NewService creates a new GCS-backed storage service.
func NewService() *Service {
	return &Service{}
}

// Fetch downloads the object bytes from the given gs:// URI.
func (s *Service) Fetch(ctx context.Context, uri string) ([]byte, error) {
	bucketName, objectPath, err := splitURI(uri)
	if err != nil {
		return nil, err
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("Fetch: creating storage client: %w", err)
	}
	defer client.Close()

	rc, err := client.Bucket(bucketName).Object(objectPath).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("Fetch: reading object %s/%s: %w", bucketName, objectPath, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("Fetch: reading bytes: %w", err)
	}

	return data, nil
}

// Upload writes data to the given gs:// URI, overwriting any existing object.
func (s *Service) Upload(ctx context.Context, uri string, data []byte) error {
	bucketName, objectPath, err := splitURI(uri)
	if err != nil {
		return err
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("Upload: creating storage client: %w", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := client.Bucket(bucketName).Object(objectPath).NewWriter(ctx)
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("Upload: writing to GCS writer: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("Upload: finalizing upload: %w", err)
	}

	return nil
}

// splitURI splits "gs://bucket/path/to/object" into bucket and object path.
func splitURI(uri string) (bucket, object string, err error) {
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}

	trimmed := strings.TrimPrefix(uri, "gs://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", uri)
	}

	return parts[0], parts[1], nil
}
