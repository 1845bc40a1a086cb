package traverser

import "github.com/disclose-tech/documentcloud-dreal-paca-scraper/internal/scraper"

// State names a step of the site walk.
type State int

// Traversal states, in the order the site hierarchy is walked.
const (
	StateRoot State = iota
	StateDepartmentList
	StateProjectList
	StateProjectDetail
	StateDocumentHead
)

func (s State) String() string {
	switch s {
	case StateRoot:
		return "root"
	case StateDepartmentList:
		return "department_list"
	case StateProjectList:
		return "project_list"
	case StateProjectDetail:
		return "project_detail"
	case StateDocumentHead:
		return "document_head"
	default:
		return "unknown"
	}
}

// Context is carried by value from one page to the next.
type Context struct {
	Year           int
	Department     string
	DepartmentCode string
	Page           int
}

// WithDepartment starts the pagination chain of a department at page 1.
func (c Context) WithDepartment(label, code string) Context {
	c.Department = label
	c.DepartmentCode = code
	c.Page = 1
	return c
}

// NextPage returns the context of the following project list page.
func (c Context) NextPage() Context {
	c.Page++
	return c
}

type task interface {
	state() State
	target() string
}

type rootTask struct {
	url string
}

type departmentListTask struct {
	url  string
	tctx Context
}

type projectListTask struct {
	url  string
	tctx Context
}

type projectDetailTask struct {
	url  string
	tctx Context
}

type documentHeadTask struct {
	url string
	doc scraper.Document
}

func (t rootTask) state() State           { return StateRoot }
func (t departmentListTask) state() State { return StateDepartmentList }
func (t projectListTask) state() State    { return StateProjectList }
func (t projectDetailTask) state() State  { return StateProjectDetail }
func (t documentHeadTask) state() State   { return StateDocumentHead }

func (t rootTask) target() string           { return t.url }
func (t departmentListTask) target() string { return t.url }
func (t projectListTask) target() string    { return t.url }
func (t projectDetailTask) target() string  { return t.url }
func (t documentHeadTask) target() string   { return t.url }
