package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
)

// GCS writes payloads to a Google Cloud Storage bucket.
type GCS struct {
	client *storage.Client
	bucket string
}

// NewGCS wraps an existing storage client.
func NewGCS(client *storage.Client, bucket string) (*GCS, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if bucket == "" {
		return nil, fmt.Errorf("archive bucket is required")
	}
	return &GCS{client: client, bucket: bucket}, nil
}

// Put uploads the payload and returns a gs:// URI.
func (g *GCS) Put(ctx context.Context, key string, contentType string, data []byte) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("archive key is required")
	}
	writer := g.client.Bucket(g.bucket).Object(key).NewWriter(ctx)
	if contentType != "" {
		writer.ContentType = contentType
	}
	if _, err := io.Copy(writer, bytes.NewReader(data)); err != nil {
		if closeErr := writer.Close(); closeErr != nil {
			return "", fmt.Errorf("upload archive object: %w (close writer: %v)", err, closeErr)
		}
		return "", fmt.Errorf("upload archive object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close archive writer: %w", err)
	}
	return fmt.Sprintf("gs://%s/%s", g.bucket, key), nil
}
