package pipeline

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/disclose-tech/documentcloud-dreal-paca-scraper/internal/scraper"
)

// UploadGate enforces the upload limit of the run.
type UploadGate struct {
	state  *scraper.RunState
	logger *zap.Logger
	once   sync.Once
}

// NewUploadGate builds a gate over state.
func NewUploadGate(state *scraper.RunState, logger *zap.Logger) *UploadGate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UploadGate{state: state, logger: logger}
}

// Name implements Stage.
func (*UploadGate) Name() string { return "upload_gate" }

// Process implements Stage.
func (g *UploadGate) Process(_ context.Context, doc *scraper.Document) error {
	if doc.SourceFileURL == "" || doc.Extension() == "" {
		return scraper.Faultf(g.Name(), "document %q has no file URL or extension", doc.SourceFilename)
	}
	if g.state.Admit() {
		return nil
	}
	g.once.Do(func() {
		g.logger.Info("upload limit reached", zap.Int("limit", g.state.Limit()))
	})
	return scraper.Drop(g.Name(), scraper.ErrLimitReached.Error())
}
