package scraper

import (
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
)

// Document is the record emitted by the traverser for every published file.
// Stages fill in the derived fields in order.
type Document struct {
	Title         string
	Project       string
	FullInfo      string
	ProjectID     string
	Category      string
	CategoryLocal string
	Department    string
	Departments   []string
	Authority     string
	Year          int

	SourceScraper  string
	Source         string
	SourcePageURL  string
	SourceFileURL  string
	SourceFilename string

	PublicationLastModified string
	PublicationDate         string
	PublicationTime         string
	PublicationDatetime     string
}

// Extension returns the lower-cased extension of the source filename, dot included.
func (d *Document) Extension() string {
	return strings.ToLower(path.Ext(d.SourceFilename))
}

// DataBag returns the metadata attached to an archived document.
func (d *Document) DataBag() map[string]string {
	data := map[string]string{
		"source_scraper":       d.SourceScraper,
		"source_file_url":      d.SourceFileURL,
		"source_filename":      d.SourceFilename,
		"source_page_url":      d.SourcePageURL,
		"publication_date":     d.PublicationDate,
		"publication_time":     d.PublicationTime,
		"publication_datetime": d.PublicationDatetime,
		"year":                 strconv.Itoa(d.Year),
		"department":           d.Department,
		"category":             d.Category,
		"category_local":       d.CategoryLocal,
		"authority":            d.Authority,
		"event_data_key":       d.SourceFileURL,
	}
	if d.ProjectID != "" {
		data["project_id"] = d.ProjectID
	}
	if len(d.Departments) > 0 {
		data["departments"] = strings.Join(d.Departments, ",")
	}
	return data
}

// FetchRequest describes a single page or header fetch.
type FetchRequest struct {
	URL    string
	Method string
}

// FetchResponse captures what the fetcher observed.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// Resolve turns a link found in the response into an absolute URL.
func (r FetchResponse) Resolve(ref string) (string, error) {
	base, err := url.Parse(r.URL)
	if err != nil {
		return "", err
	}
	target, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", err
	}
	return base.ResolveReference(target).String(), nil
}

// Upload is one archival request.
type Upload struct {
	FileURL     string
	Project     string
	Title       string
	Description string
	Source      string
	Language    string
	Access      string
	Data        map[string]string
}

// Stats is a snapshot of run counters.
type Stats struct {
	Discovered   int64 `json:"discovered"`
	Dropped      int64 `json:"dropped"`
	Faults       int64 `json:"faults"`
	Uploaded     int64 `json:"uploaded"`
	Admitted     int64 `json:"admitted"`
	LimitReached bool  `json:"limit_reached"`
}
