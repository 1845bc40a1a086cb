// Package firestore keeps one Firestore document per ledger entry.
package firestore

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"github.com/disclose-tech/documentcloud-dreal-paca-scraper/internal/hash/sha256"
	"github.com/disclose-tech/documentcloud-dreal-paca-scraper/internal/ledger"
)

// Config captures the collection holding the entries.
type Config struct {
	ProjectID  string
	Collection string
}

type record struct {
	URL          string `firestore:"url"`
	LastModified string `firestore:"last_modified"`
	LastSeen     string `firestore:"last_seen"`
}

var _ ledger.EntryWriter = (*Store)(nil)

// Store reads and writes ledger documents.
type Store struct {
	client     *firestore.Client
	collection string
}

// NewClient creates a Firestore client for the given project ID.
func NewClient(ctx context.Context, projectID string) (*firestore.Client, error) {
	if projectID == "" {
		return nil, fmt.Errorf("ledger.firestore.project_id is required")
	}
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("create firestore client: %w", err)
	}
	return client, nil
}

// New creates a Firestore-backed ledger store.
func New(client *firestore.Client, collection string) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("firestore client is required")
	}
	if collection == "" {
		collection = "event_ledger"
	}
	return &Store{client: client, collection: collection}, nil
}

// DocID maps a file URL to a document ID. URLs contain '/' which Firestore rejects.
func DocID(url string) string {
	return sha256.Key(url)
}

// Load reads the whole collection. An empty collection yields ledger.ErrNotFound.
func (s *Store) Load(ctx context.Context) (map[string]ledger.Entry, error) {
	iter := s.client.Collection(s.collection).Documents(ctx)
	defer iter.Stop()

	entries := make(map[string]ledger.Entry)
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read ledger documents: %w", err)
		}
		var rec record
		if err := snap.DataTo(&rec); err != nil {
			return nil, fmt.Errorf("decode ledger document %s: %w", snap.Ref.ID, err)
		}
		if rec.URL == "" {
			continue
		}
		entries[rec.URL] = ledger.Entry{LastModified: rec.LastModified, LastSeen: rec.LastSeen}
	}
	if len(entries) == 0 {
		return nil, ledger.ErrNotFound
	}
	return entries, nil
}

// Save writes every entry with a bulk writer.
func (s *Store) Save(ctx context.Context, entries map[string]ledger.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	bw := s.client.BulkWriter(ctx)
	col := s.client.Collection(s.collection)
	jobs := make([]*firestore.BulkWriterJob, 0, len(entries))
	for url, entry := range entries {
		job, err := bw.Set(col.Doc(DocID(url)), record{URL: url, LastModified: entry.LastModified, LastSeen: entry.LastSeen})
		if err != nil {
			bw.End()
			return fmt.Errorf("queue ledger document: %w", err)
		}
		jobs = append(jobs, job)
	}
	bw.End()
	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			return fmt.Errorf("write ledger document: %w", err)
		}
	}
	return nil
}

// Upsert writes the document of a single entry.
func (s *Store) Upsert(ctx context.Context, url string, entry ledger.Entry) error {
	doc := s.client.Collection(s.collection).Doc(DocID(url))
	if _, err := doc.Set(ctx, record{URL: url, LastModified: entry.LastModified, LastSeen: entry.LastSeen}); err != nil {
		return fmt.Errorf("write ledger document %s: %w", url, err)
	}
	return nil
}
