// Package report composes the end-of-run summary mail.
package report

import (
	"fmt"
	"strings"
)

// Meta identifies the run being reported.
type Meta struct {
	ScraperName string
	Year        int
	RunID       string
	RunName     string
}

// Item is the digest of one processed document.
type Item struct {
	Title           string
	Project         string
	Authority       string
	Category        string
	CategoryLocal   string
	PublicationDate string
	SourceFileURL   string
	SourcePageURL   string
}

// Subject returns the mail subject for n new documents.
func Subject(meta Meta, n int) string {
	subject := fmt.Sprintf("%s %d (New: %d)", meta.ScraperName, meta.Year, n)
	if meta.RunName != "" {
		subject += fmt.Sprintf(" [%s]", meta.RunName)
	}
	return subject
}

// Body returns the mail body listing every item.
func Body(meta Meta, items []Item) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s Run %s\n\n", meta.ScraperName, meta.RunID)
	fmt.Fprintf(&b, "SCRAPED ITEMS (%d)\n", len(items))
	for _, it := range items {
		b.WriteString("\n")
		fmt.Fprintf(&b, "title: %s\n", it.Title)
		fmt.Fprintf(&b, "project: %s\n", it.Project)
		fmt.Fprintf(&b, "authority: %s\n", it.Authority)
		fmt.Fprintf(&b, "category: %s\n", it.Category)
		fmt.Fprintf(&b, "category_local: %s\n", it.CategoryLocal)
		fmt.Fprintf(&b, "publication_date: %s\n", it.PublicationDate)
		fmt.Fprintf(&b, "source_file_url: %s\n", it.SourceFileURL)
		fmt.Fprintf(&b, "source_page_url: %s\n", it.SourcePageURL)
	}
	return b.String()
}
