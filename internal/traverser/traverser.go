// Package traverser walks the site hierarchy (landing page, year, department,
// paginated project lists, project pages, document headers) and hands every
// new document to a sink.
package traverser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/disclose-tech/documentcloud-dreal-paca-scraper/internal/scraper"
)

var yearLabel = regexp.MustCompile(`Dossiers (20\d\d)`)

// Config controls the walk and the constant fields of emitted documents.
type Config struct {
	StartURL      string
	TargetYear    int
	Concurrency   int
	Authority     string
	CategoryLocal string
	ScraperName   string
	Source        string
}

// Traverser is the site walk state machine.
type Traverser struct {
	cfg     Config
	fetcher scraper.Fetcher
	parser  Parser
	ledger  scraper.LedgerView
	quota   scraper.QuotaView
	sink    scraper.Sink
	logger  *zap.Logger

	stopOnce sync.Once
}

// Option customizes a Traverser.
type Option func(*Traverser)

// WithParser replaces the default site layout.
func WithParser(p Parser) Option {
	return func(t *Traverser) { t.parser = p }
}

// New builds a Traverser.
func New(
	cfg Config,
	fetcher scraper.Fetcher,
	ledger scraper.LedgerView,
	quota scraper.QuotaView,
	sink scraper.Sink,
	logger *zap.Logger,
	opts ...Option,
) (*Traverser, error) {
	if fetcher == nil || ledger == nil || quota == nil || sink == nil {
		return nil, errors.New("traverser: fetcher, ledger, quota and sink are required")
	}
	if cfg.StartURL == "" {
		return nil, errors.New("traverser: start url is required")
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Traverser{
		cfg:     cfg,
		fetcher: fetcher,
		parser:  SiteLayout{},
		ledger:  ledger,
		quota:   quota,
		sink:    sink,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Run walks the site until every branch is exhausted, the upload limit is
// reached or ctx ends.
func (t *Traverser) Run(ctx context.Context) error {
	q := newTaskQueue()
	q.push(rootTask{url: t.cfg.StartURL})
	stop := context.AfterFunc(ctx, q.close)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < t.cfg.Concurrency; i++ {
		g.Go(func() error {
			t.work(gctx, q)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("traversal interrupted: %w", err)
	}
	return nil
}

func (t *Traverser) work(ctx context.Context, q *taskQueue) {
	for {
		tk, ok := q.pop()
		if !ok {
			return
		}
		switch {
		case ctx.Err() != nil:
			q.close()
		case t.quota.LimitReached():
			t.halt(q)
		default:
			t.handle(ctx, q, tk)
		}
		q.done()
	}
}

func (t *Traverser) halt(q *taskQueue) {
	t.stopOnce.Do(func() {
		t.logger.Info("upload limit reached, stopping traversal")
	})
	q.close()
}

func (t *Traverser) handle(ctx context.Context, q *taskQueue, tk task) {
	switch tk := tk.(type) {
	case rootTask:
		t.visitRoot(ctx, q, tk)
	case departmentListTask:
		t.visitDepartmentList(ctx, q, tk)
	case projectListTask:
		t.visitProjectList(ctx, q, tk)
	case projectDetailTask:
		t.visitProjectDetail(ctx, q, tk)
	case documentHeadTask:
		t.visitDocumentHead(ctx, q, tk)
	}
}

func (t *Traverser) visitRoot(ctx context.Context, q *taskQueue, tk rootTask) {
	page, resp, ok := t.page(ctx, tk)
	if !ok {
		return
	}
	for _, link := range t.parser.YearLinks(page) {
		m := yearLabel.FindStringSubmatch(link.Text)
		if m == nil {
			continue
		}
		year, _ := strconv.Atoi(m[1])
		if year != t.cfg.TargetYear {
			continue
		}
		target, ok := t.resolve(resp, link.Href)
		if !ok {
			continue
		}
		t.logger.Debug("year selected", zap.Int("year", year), zap.String("url", target))
		q.push(departmentListTask{url: target, tctx: Context{Year: year}})
	}
}

func (t *Traverser) visitDepartmentList(ctx context.Context, q *taskQueue, tk departmentListTask) {
	page, resp, ok := t.page(ctx, tk)
	if !ok {
		return
	}
	for _, link := range t.parser.DepartmentLinks(page) {
		target, ok := t.resolve(resp, link.Href)
		if !ok {
			continue
		}
		code, _, _ := strings.Cut(link.Text, " - ")
		q.push(projectListTask{url: target, tctx: tk.tctx.WithDepartment(link.Text, strings.TrimSpace(code))})
	}
}

func (t *Traverser) visitProjectList(ctx context.Context, q *taskQueue, tk projectListTask) {
	page, resp, ok := t.page(ctx, tk)
	if !ok {
		return
	}
	projects, next := t.parser.ProjectLinks(page)
	t.logger.Debug("project list",
		zap.String("department", tk.tctx.Department),
		zap.Int("page", tk.tctx.Page),
		zap.Int("projects", len(projects)),
	)
	for _, link := range projects {
		if target, ok := t.resolve(resp, link.Href); ok {
			q.push(projectDetailTask{url: target, tctx: tk.tctx})
		}
	}
	if next == "" {
		return
	}
	if target, ok := t.resolve(resp, next); ok {
		q.push(projectListTask{url: target, tctx: tk.tctx.NextPage()})
	}
}

func (t *Traverser) visitProjectDetail(ctx context.Context, q *taskQueue, tk projectDetailTask) {
	page, resp, ok := t.page(ctx, tk)
	if !ok {
		return
	}
	project := t.parser.Project(page)
	for _, file := range project.Files {
		target, ok := t.resolve(resp, file.Href)
		if !ok {
			continue
		}
		if t.ledger.Seen(target) {
			t.logger.Debug("document already in ledger", zap.String("url", target))
			continue
		}
		q.push(documentHeadTask{
			url: target,
			doc: scraper.Document{
				Title:         file.Text,
				Project:       project.Title,
				FullInfo:      project.Info,
				CategoryLocal: t.cfg.CategoryLocal,
				Department:    tk.tctx.DepartmentCode,
				Authority:     t.cfg.Authority,
				Year:          tk.tctx.Year,
				SourceScraper: t.cfg.ScraperName,
				Source:        t.cfg.Source,
				SourcePageURL: resp.URL,
			},
		})
	}
}

func (t *Traverser) visitDocumentHead(ctx context.Context, q *taskQueue, tk documentHeadTask) {
	resp, err := t.fetcher.Fetch(ctx, scraper.FetchRequest{URL: tk.url, Method: http.MethodHead})
	if err != nil {
		t.abandon(tk, err)
		return
	}
	if t.quota.LimitReached() {
		t.halt(q)
		return
	}
	doc := tk.doc
	doc.SourceFileURL = tk.url
	doc.PublicationLastModified = resp.Headers.Get("Last-Modified")
	// Faults are logged and counted by the sink; siblings carry on.
	_ = t.sink.Process(ctx, &doc)
}

func (t *Traverser) page(ctx context.Context, tk task) (*goquery.Document, scraper.FetchResponse, bool) {
	resp, err := t.fetcher.Fetch(ctx, scraper.FetchRequest{URL: tk.target(), Method: http.MethodGet})
	if err != nil {
		t.abandon(tk, err)
		return nil, scraper.FetchResponse{}, false
	}
	if resp.URL == "" {
		resp.URL = tk.target()
	}
	page, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		t.abandon(tk, fmt.Errorf("parse html: %w", err))
		return nil, scraper.FetchResponse{}, false
	}
	return page, resp, true
}

func (t *Traverser) resolve(resp scraper.FetchResponse, href string) (string, bool) {
	target, err := resp.Resolve(href)
	if err != nil {
		t.logger.Warn("skipping malformed link", zap.String("url", resp.URL), zap.String("href", href), zap.Error(err))
		return "", false
	}
	return target, true
}

func (t *Traverser) abandon(tk task, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	t.logger.Warn("abandoning branch",
		zap.String("state", tk.state().String()),
		zap.String("url", tk.target()),
		zap.Error(err),
	)
}
