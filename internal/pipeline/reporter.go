package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/disclose-tech/documentcloud-dreal-paca-scraper/internal/report"
	"github.com/disclose-tech/documentcloud-dreal-paca-scraper/internal/scraper"
)

// Reporter collects every document that made it through the upload and
// mails a summary when the run ends.
type Reporter struct {
	meta   report.Meta
	dryRun bool
	mailer scraper.Mailer
	logger *zap.Logger
	items  []report.Item
}

// NewReporter builds a Reporter. The mailer is not used in dry runs.
func NewReporter(meta report.Meta, dryRun bool, mailer scraper.Mailer, logger *zap.Logger) *Reporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reporter{meta: meta, dryRun: dryRun, mailer: mailer, logger: logger}
}

// Name implements Stage.
func (*Reporter) Name() string { return "report" }

// Process implements Stage.
func (r *Reporter) Process(_ context.Context, doc *scraper.Document) error {
	r.items = append(r.items, report.Item{
		Title:           doc.Title,
		Project:         doc.Project,
		Authority:       doc.Authority,
		Category:        doc.Category,
		CategoryLocal:   doc.CategoryLocal,
		PublicationDate: doc.PublicationDate,
		SourceFileURL:   doc.SourceFileURL,
		SourcePageURL:   doc.SourcePageURL,
	})
	return nil
}

// Items returns the collected digests.
func (r *Reporter) Items() []report.Item { return r.items }

// Close sends the summary. Mail failures are logged, not returned.
func (r *Reporter) Close(ctx context.Context) error {
	subject := report.Subject(r.meta, len(r.items))
	if r.dryRun || r.mailer == nil {
		r.logger.Info("run report", zap.String("subject", subject), zap.Int("documents", len(r.items)))
		return nil
	}
	if err := r.mailer.Send(ctx, subject, report.Body(r.meta, r.items)); err != nil {
		r.logger.Error("failed to send run report", zap.Error(err))
		return nil
	}
	r.logger.Info("run report sent", zap.String("subject", subject))
	return nil
}
