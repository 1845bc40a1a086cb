package export

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/disclose-tech/documentcloud-dreal-paca-scraper/internal/scraper"
)

func TestCSVWritesHeaderAndRows(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out", "data.csv")
	feed, err := NewCSV(path)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, feed.Open(ctx))
	require.NoError(t, feed.Process(ctx, &scraper.Document{
		Title:         "Décision",
		Project:       "Parc, solaire (F093)",
		Year:          2024,
		SourceFileURL: "https://example.org/a.pdf",
		FullInfo:      "Pétitionnaire : ACME\nDécision : soumis",
	}))
	require.NoError(t, feed.Close(ctx))
	require.NoError(t, feed.Close(ctx))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, Columns, records[0])
	assert.Equal(t, "Parc, solaire (F093)", records[1][1])
	assert.Equal(t, "2024", records[1][6])
	assert.Equal(t, "Pétitionnaire : ACME\nDécision : soumis", records[1][16])
}

func TestCSVRequiresOpen(t *testing.T) {
	t.Parallel()

	feed, err := NewCSV(filepath.Join(t.TempDir(), "data.csv"))
	require.NoError(t, err)
	assert.Error(t, feed.Process(context.Background(), &scraper.Document{}))

	_, err = NewCSV("")
	assert.Error(t, err)
}
