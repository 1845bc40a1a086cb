// Package ledger keeps the record of file URLs already archived by previous runs.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// ErrNotFound is returned by a Store that holds no snapshot yet.
var ErrNotFound = errors.New("ledger snapshot not found")

// Entry is the value stored per file URL.
type Entry struct {
	LastModified string `json:"last_modified"`
	LastSeen     string `json:"last_seen"`
}

// Store persists ledger snapshots.
type Store interface {
	Load(ctx context.Context) (map[string]Entry, error)
	Save(ctx context.Context, entries map[string]Entry) error
}

// EntryWriter is implemented by keyed stores that can persist one entry
// without rewriting the whole snapshot.
type EntryWriter interface {
	Upsert(ctx context.Context, url string, entry Entry) error
}

// Ledger is the in-memory view of the snapshot. Reads are safe from any goroutine.
type Ledger struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// New returns an empty Ledger.
func New() *Ledger {
	return &Ledger{entries: make(map[string]Entry)}
}

// Seen reports whether url has an entry.
func (l *Ledger) Seen(url string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.entries[url]
	return ok
}

// Get returns the entry for url.
func (l *Ledger) Get(url string) (Entry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.entries[url]
	return e, ok
}

// Upsert inserts or replaces the entry for url.
func (l *Ledger) Upsert(url string, entry Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[url] = entry
}

// Len returns the number of entries.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Replace swaps the content of the ledger with entries.
func (l *Ledger) Replace(entries map[string]Entry) {
	cp := make(map[string]Entry, len(entries))
	for k, v := range entries {
		cp[k] = v
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = cp
}

// Merge adds entries that are not present yet and keeps existing ones.
func (l *Ledger) Merge(entries map[string]Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, v := range entries {
		if _, ok := l.entries[k]; !ok {
			l.entries[k] = v
		}
	}
}

// Snapshot returns a copy of the entries.
func (l *Ledger) Snapshot() map[string]Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	cp := make(map[string]Entry, len(l.entries))
	for k, v := range l.entries {
		cp[k] = v
	}
	return cp
}

// Encode serializes entries as the JSON object used by file based stores.
func Encode(entries map[string]Entry) ([]byte, error) {
	if entries == nil {
		entries = map[string]Entry{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode ledger: %w", err)
	}
	return data, nil
}

// Decode parses a JSON ledger snapshot.
func Decode(data []byte) (map[string]Entry, error) {
	entries := make(map[string]Entry)
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode ledger: %w", err)
	}
	return entries, nil
}
