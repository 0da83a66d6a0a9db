package repository

import (
	"bytes"
	"context"
	"fmt"
	"io"

	storage_go "github.com/supabase-community/storage-go"
	"github.com/supabase-community/supabase-go"

	"doc-merge-server/internal/domain"
)

// SupabaseOutputStore implements the domain.OutputStore interface on
// top of a Supabase storage bucket, for deployments where merged
// documents must outlive the server's filesystem.
type SupabaseOutputStore struct {
	client *supabase.Client
	bucket string
	logger domain.Logger
}

// NewSupabaseOutputStore creates a new Supabase-backed output store
func NewSupabaseOutputStore(url, key, bucket string, logger domain.Logger) (*SupabaseOutputStore, error) {
	client, err := supabase.NewClient(url, key, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}
	return &SupabaseOutputStore{
		client: client,
		bucket: bucket,
		logger: logger,
	}, nil
}

// Store uploads the merged document to the bucket under its final
// name, replacing any previous object with the same name.
func (s *SupabaseOutputStore) Store(ctx context.Context, name string, r io.Reader) (string, error) {
	upsert := true
	_, err := s.client.Storage.UploadFile(s.bucket, name, r, storage_go.FileOptions{Upsert: &upsert})
	if err != nil {
		return "", fmt.Errorf("failed to upload merged document: %w", err)
	}

	s.logger.Debug("Uploaded merged document", "bucket", s.bucket, "object", name)
	return name, nil
}

// Open downloads a previously stored document. The storage API returns
// the whole object, so the size is known up front.
func (s *SupabaseOutputStore) Open(path string) (io.ReadCloser, int64, error) {
	data, err := s.client.Storage.DownloadFile(s.bucket, path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to download merged document: %w", err)
	}
	return io.NopCloser(bytes.NewReader(data)), int64(len(data)), nil
}
