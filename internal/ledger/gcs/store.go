// Package gcs stores the ledger snapshot as an object in Google Cloud Storage.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"

	"github.com/disclose-tech/documentcloud-dreal-paca-scraper/internal/ledger"
)

// Config captures the object location.
type Config struct {
	Bucket string
	Object string
}

// Store reads and writes the snapshot object.
type Store struct {
	client *storage.Client
	bucket string
	object string
}

// New creates a GCS-backed ledger store.
func New(client *storage.Client, cfg Config) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	object := cfg.Object
	if object == "" {
		object = "event_data.json"
	}
	return &Store{client: client, bucket: cfg.Bucket, object: object}, nil
}

// Load downloads the snapshot. A missing object yields ledger.ErrNotFound.
func (s *Store) Load(ctx context.Context) (map[string]ledger.Entry, error) {
	reader, err := s.client.Bucket(s.bucket).Object(s.object).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, ledger.ErrNotFound
		}
		return nil, fmt.Errorf("open object: %w", err)
	}
	defer func() { _ = reader.Close() }()
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read object: %w", err)
	}
	return ledger.Decode(data)
}

// Save uploads the snapshot, replacing the previous one.
func (s *Store) Save(ctx context.Context, entries map[string]ledger.Entry) error {
	data, err := ledger.Encode(entries)
	if err != nil {
		return err
	}
	writer := s.client.Bucket(s.bucket).Object(s.object).NewWriter(ctx)
	writer.ContentType = "application/json"
	if _, err := writer.Write(data); err != nil {
		closeErr := writer.Close()
		if closeErr != nil {
			return fmt.Errorf("write object: %w (close writer: %v)", err, closeErr)
		}
		return fmt.Errorf("write object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close writer: %w", err)
	}
	return nil
}
