package ledger

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerUpsertAndSeen(t *testing.T) {
	t.Parallel()

	l := New()
	assert.False(t, l.Seen("https://example.org/a.pdf"))

	l.Upsert("https://example.org/a.pdf", Entry{LastModified: "2024-05-02 10:00:00 UTC", LastSeen: "t1"})
	l.Upsert("https://example.org/a.pdf", Entry{LastModified: "2024-05-02 10:00:00 UTC", LastSeen: "t2"})

	require.True(t, l.Seen("https://example.org/a.pdf"))
	e, ok := l.Get("https://example.org/a.pdf")
	require.True(t, ok)
	assert.Equal(t, "t2", e.LastSeen)
	assert.Equal(t, 1, l.Len())
}

func TestLedgerSnapshotIsCopy(t *testing.T) {
	t.Parallel()

	l := New()
	l.Upsert("u", Entry{LastSeen: "t"})
	snap := l.Snapshot()
	snap["other"] = Entry{}
	assert.Equal(t, 1, l.Len())
}

func TestLedgerMergeKeepsExisting(t *testing.T) {
	t.Parallel()

	l := New()
	l.Upsert("u", Entry{LastSeen: "new"})
	l.Merge(map[string]Entry{"u": {LastSeen: "old"}, "v": {LastSeen: "old"}})

	e, _ := l.Get("u")
	assert.Equal(t, "new", e.LastSeen)
	assert.True(t, l.Seen("v"))
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()

	entries := map[string]Entry{
		"https://example.org/a.pdf": {LastModified: "2024-05-02 10:00:00 UTC", LastSeen: "2024-05-03T08:00:00Z"},
		"https://example.org/b.pdf": {LastModified: "2024-05-04 11:30:00 UTC", LastSeen: "2024-05-05T08:00:00Z"},
	}
	data, err := Encode(entries)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"last_modified"`)

	got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, entries, got)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	t.Parallel()

	_, err := Decode([]byte("[1,2"))
	assert.Error(t, err)
}

func TestLedgerConcurrentReads(t *testing.T) {
	t.Parallel()

	l := New()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = l.Seen("u")
			}
		}()
	}
	for j := 0; j < 100; j++ {
		l.Upsert("u", Entry{})
	}
	wg.Wait()
	assert.True(t, l.Seen("u"))
}
