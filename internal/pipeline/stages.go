package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/disclose-tech/documentcloud-dreal-paca-scraper/internal/normalize"
	"github.com/disclose-tech/documentcloud-dreal-paca-scraper/internal/scraper"
)

// CategoryCaseByCase is the label set on case-by-case review decisions.
const CategoryCaseByCase = "Cas par cas"

// DefaultExtensions lists the file types the archive accepts.
var DefaultExtensions = []string{
	".pdf", ".doc", ".docx", ".odt", ".rtf", ".txt", ".xls", ".xlsx", ".ods", ".csv",
	".ppt", ".pptx", ".odp", ".html", ".htm", ".tif", ".tiff", ".png", ".jpg", ".jpeg",
	".gif", ".bmp", ".webp", ".eml", ".msg", ".epub", ".pub", ".wpd", ".vsd", ".xml",
	".json", ".md",
}

var lastModifiedLayouts = []string{
	http.TimeFormat,
	time.RFC1123,
	time.RFC1123Z,
	time.RFC850,
	time.ANSIC,
}

// DateParse derives the publication date fields from the Last-Modified header.
type DateParse struct{}

// Name implements Stage.
func (DateParse) Name() string { return "date_parse" }

// Process implements Stage.
func (s DateParse) Process(_ context.Context, doc *scraper.Document) error {
	raw := strings.TrimSpace(doc.PublicationLastModified)
	if raw == "" {
		return scraper.Faultf(s.Name(), "missing Last-Modified for %s", doc.SourceFileURL)
	}
	ts, err := parseHTTPDate(raw)
	if err != nil {
		return scraper.NewFault(s.Name(), err)
	}
	doc.PublicationDate = ts.Format("2006-01-02")
	doc.PublicationTime = ts.Format("15:04:05") + " UTC"
	doc.PublicationDatetime = doc.PublicationDate + " " + doc.PublicationTime
	return nil
}

func parseHTTPDate(raw string) (time.Time, error) {
	for _, layout := range lastModifiedLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("parse last modified %q: unsupported date format", raw)
}

// Categorize tags case-by-case decisions.
type Categorize struct{}

// Name implements Stage.
func (Categorize) Name() string { return "categorize" }

// Process implements Stage.
func (Categorize) Process(_ context.Context, doc *scraper.Document) error {
	if strings.Contains(strings.ToLower(doc.CategoryLocal), "cas par cas") {
		doc.Category = CategoryCaseByCase
	}
	return nil
}

// FilenameDerive sets the source filename from the last path segment of the file URL.
type FilenameDerive struct{}

// Name implements Stage.
func (FilenameDerive) Name() string { return "filename" }

// Process implements Stage.
func (s FilenameDerive) Process(_ context.Context, doc *scraper.Document) error {
	u, err := url.Parse(doc.SourceFileURL)
	if err != nil {
		return scraper.NewFault(s.Name(), fmt.Errorf("parse file url: %w", err))
	}
	p := u.EscapedPath()
	doc.SourceFilename = p[strings.LastIndex(p, "/")+1:]
	return nil
}

// Beautify normalizes the project, title and information fields.
type Beautify struct{}

// Name implements Stage.
func (Beautify) Name() string { return "beautify" }

// Process implements Stage.
func (s Beautify) Process(_ context.Context, doc *scraper.Document) error {
	project, err := normalize.Project(doc.Project, doc.FullInfo, doc.Department)
	if err != nil {
		return scraper.NewFault(s.Name(), err)
	}
	title, err := normalize.Title(doc.Title)
	if err != nil {
		return scraper.NewFault(s.Name(), err)
	}
	doc.Project = project
	doc.Title = title
	doc.FullInfo = normalize.Canonicalize(doc.FullInfo)
	return nil
}

// FiletypeAdmission drops documents the archive cannot ingest.
type FiletypeAdmission struct {
	allowed map[string]struct{}
}

// NewFiletypeAdmission admits the given extensions, or DefaultExtensions when empty.
func NewFiletypeAdmission(extensions []string) *FiletypeAdmission {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	allowed := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		allowed[ext] = struct{}{}
	}
	return &FiletypeAdmission{allowed: allowed}
}

// Name implements Stage.
func (*FiletypeAdmission) Name() string { return "filetype" }

// Process implements Stage.
func (s *FiletypeAdmission) Process(_ context.Context, doc *scraper.Document) error {
	ext := doc.Extension()
	if _, ok := s.allowed[ext]; !ok {
		return scraper.Drop(s.Name(), fmt.Sprintf("extension %q not admitted", ext))
	}
	return nil
}

// TagDepartments lists every department the project touches.
type TagDepartments struct{}

// Name implements Stage.
func (TagDepartments) Name() string { return "departments" }

// Process implements Stage.
func (TagDepartments) Process(_ context.Context, doc *scraper.Document) error {
	seen := map[string]struct{}{}
	codes := normalize.DepartmentCodes(doc.Project)
	if doc.Department != "" {
		codes = append(codes, doc.Department)
	}
	doc.Departments = doc.Departments[:0]
	for _, c := range codes {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		doc.Departments = append(doc.Departments, c)
	}
	sort.Strings(doc.Departments)
	return nil
}

// ProjectID extracts the project identifier from the normalized project.
type ProjectID struct{}

// Name implements Stage.
func (ProjectID) Name() string { return "project_id" }

// Process implements Stage.
func (ProjectID) Process(_ context.Context, doc *scraper.Document) error {
	doc.ProjectID = normalize.ProjectID(doc.Project)
	return nil
}
