// Package snapshot moves CSV exports of the category and rule tables to
// and from remote object storage.
package snapshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"cloud.google.com/go/storage"
)

// ObjectStore is the minimal object-storage contract the snapshot service
// needs. Download reports a missing object via found=false rather than an
// error, so a first-time sync-down is not a failure.
type ObjectStore interface {
	Upload(ctx context.Context, name string, data []byte) error
	Download(ctx context.Context, name string) (data []byte, found bool, err error)
}

// GCSStore stores snapshot objects in a Google Cloud Storage bucket under
// a fixed prefix. It assumes Application Default Credentials.
type GCSStore struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSStore creates a store for the given bucket and object prefix.
func NewGCSStore(ctx context.Context, bucket, prefix string) (*GCSStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCSStore{client: client, bucket: bucket, prefix: prefix}, nil
}

// Close releases the underlying client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}

func (s *GCSStore) object(name string) *storage.ObjectHandle {
	return s.client.Bucket(s.bucket).Object(path.Join(s.prefix, name))
}

// Upload writes data to the named object, replacing any previous version.
func (s *GCSStore) Upload(ctx context.Context, name string, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := s.object(name).NewWriter(ctx)
	w.ContentType = "text/csv"
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return fmt.Errorf("write object %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize upload of %s: %w", name, err)
	}
	return nil
}

// Download reads the named object in full.
func (s *GCSStore) Download(ctx context.Context, name string) ([]byte, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	r, err := s.object(name).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("open object %s: %w", name, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, false, fmt.Errorf("read object %s: %w", name, err)
	}
	return data, true, nil
}
