// Package export writes the processed documents to a CSV feed.
package export

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/disclose-tech/documentcloud-dreal-paca-scraper/internal/scraper"
)

// Columns is the fixed column order of the feed.
var Columns = []string{
	"title", "project", "authority", "department", "category", "category_local", "year",
	"source", "source_scraper", "source_file_url", "source_filename", "source_page_url",
	"publication_date", "publication_time", "publication_datetime", "publication_lastmodified",
	"full_info",
}

// CSV is a pipeline stage appending one row per document.
type CSV struct {
	path   string
	file   *os.File
	writer *csv.Writer
}

// NewCSV builds a feed written to path.
func NewCSV(path string) (*CSV, error) {
	if path == "" {
		return nil, errors.New("export path is required")
	}
	return &CSV{path: path}, nil
}

// Name implements the pipeline stage interface.
func (*CSV) Name() string { return "export" }

// Open creates the file and writes the header.
func (c *CSV) Open(_ context.Context) error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0o750); err != nil {
		return fmt.Errorf("create export directory: %w", err)
	}
	f, err := os.Create(c.path)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	c.file = f
	c.writer = csv.NewWriter(f)
	if err := c.writer.Write(Columns); err != nil {
		return fmt.Errorf("write export header: %w", err)
	}
	return nil
}

// Process appends doc.
func (c *CSV) Process(_ context.Context, doc *scraper.Document) error {
	if c.writer == nil {
		return errors.New("export file is not open")
	}
	row := []string{
		doc.Title, doc.Project, doc.Authority, doc.Department, doc.Category, doc.CategoryLocal,
		strconv.Itoa(doc.Year), doc.Source, doc.SourceScraper, doc.SourceFileURL, doc.SourceFilename,
		doc.SourcePageURL, doc.PublicationDate, doc.PublicationTime, doc.PublicationDatetime,
		doc.PublicationLastModified, doc.FullInfo,
	}
	if err := c.writer.Write(row); err != nil {
		return fmt.Errorf("write export row: %w", err)
	}
	return nil
}

// Close flushes and closes the file.
func (c *CSV) Close(_ context.Context) error {
	if c.file == nil {
		return nil
	}
	c.writer.Flush()
	flushErr := c.writer.Error()
	closeErr := c.file.Close()
	c.file, c.writer = nil, nil
	if flushErr != nil {
		return fmt.Errorf("flush export file: %w", flushErr)
	}
	if closeErr != nil {
		return fmt.Errorf("close export file: %w", closeErr)
	}
	return nil
}
