// Package blob wraps Google Cloud Storage access behind the small surface
// the pipeline needs: upload, download, delete and public-URL resolution for
// one named bucket.
package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
)

// ErrNotFound is returned when the requested object does not exist.
var ErrNotFound = errors.New("object not found")

// Bucket provides access to the objects of one storage bucket.
type Bucket struct {
	client *storage.Client
	name   string
}

// NewClient creates the underlying storage client. It is shared between
// buckets and safe for concurrent use.
func NewClient(ctx context.Context) (*storage.Client, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return client, nil
}

// NewBucket returns a handle on the named bucket.
func NewBucket(client *storage.Client, name string) *Bucket {
	return &Bucket{client: client, name: name}
}

// Name returns the bucket name.
func (b *Bucket) Name() string {
	return b.name
}

// Download reads the full content of an object.
func (b *Bucket) Download(ctx context.Context, key string) ([]byte, error) {
	reader, err := b.client.Bucket(b.name).Object(key).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, b.name, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open object %s/%s: %w", b.name, key, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read object %s/%s: %w", b.name, key, err)
	}
	return data, nil
}

// Upload writes data to the object at key, replacing any previous content.
func (b *Bucket) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	writer := b.client.Bucket(b.name).Object(key).NewWriter(ctx)
	writer.ContentType = contentType

	if _, err := io.Copy(writer, bytes.NewReader(data)); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write object %s/%s: %w", b.name, key, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize object %s/%s: %w", b.name, key, err)
	}
	return nil
}

// Delete removes an object. Deleting a missing object is not an error.
func (b *Bucket) Delete(ctx context.Context, key string) error {
	err := b.client.Bucket(b.name).Object(key).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to delete object %s/%s: %w", b.name, key, err)
	}
	return nil
}

// PublicURL resolves the public HTTP URL of an object in this bucket.
func (b *Bucket) PublicURL(key string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", b.name, key)
}
