// Package pipeline runs every discovered document through an ordered list of
// stages. It is the only place where the ledger and the upload quota change.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/disclose-tech/documentcloud-dreal-paca-scraper/internal/metrics"
	"github.com/disclose-tech/documentcloud-dreal-paca-scraper/internal/scraper"
)

// Stage transforms or consumes a document. A *scraper.PolicyDrop ends the
// document quietly; any other error is a fault.
type Stage interface {
	Name() string
	Process(ctx context.Context, doc *scraper.Document) error
}

// Opener is implemented by stages that prepare state before the first document.
type Opener interface {
	Open(ctx context.Context) error
}

// Closer is implemented by stages that flush state after the last document.
type Closer interface {
	Close(ctx context.Context) error
}

// Pipeline drives documents through its stages one at a time.
type Pipeline struct {
	mu     sync.Mutex
	stages []Stage
	state  *scraper.RunState
	logger *zap.Logger
}

var _ scraper.Sink = (*Pipeline)(nil)

// New builds a pipeline running stages in the given order.
func New(state *scraper.RunState, logger *zap.Logger, stages ...Stage) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if state == nil {
		state = scraper.NewRunState(0)
	}
	return &Pipeline{stages: stages, state: state, logger: logger}
}

// Open prepares every stage in order.
func (p *Pipeline) Open(ctx context.Context) error {
	for _, s := range p.stages {
		if o, ok := s.(Opener); ok {
			if err := o.Open(ctx); err != nil {
				return fmt.Errorf("open stage %s: %w", s.Name(), err)
			}
		}
	}
	return nil
}

// Process runs doc through the stages. Calls are serialized.
func (p *Pipeline) Process(ctx context.Context, doc *scraper.Document) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.state.RecordDiscovered()
	metrics.ObserveDocument(metrics.OutcomeDiscovered, "")
	for _, s := range p.stages {
		err := s.Process(ctx, doc)
		if err == nil {
			continue
		}
		var drop *scraper.PolicyDrop
		if errors.As(err, &drop) {
			p.state.RecordDropped()
			metrics.ObserveDocument(metrics.OutcomeDropped, s.Name())
			p.logger.Debug("document dropped",
				zap.String("stage", s.Name()),
				zap.String("reason", drop.Reason),
				zap.String("url", doc.SourceFileURL),
			)
			return err
		}
		var fault *scraper.Fault
		if !errors.As(err, &fault) {
			err = scraper.NewFault(s.Name(), err)
		}
		p.state.RecordFault()
		metrics.ObserveDocument(metrics.OutcomeFault, s.Name())
		p.logger.Error("document fault",
			zap.String("stage", s.Name()),
			zap.String("url", doc.SourceFileURL),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// Close flushes every stage, even when one of them fails.
func (p *Pipeline) Close(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	for _, s := range p.stages {
		if c, ok := s.(Closer); ok {
			if err := c.Close(ctx); err != nil {
				errs = append(errs, fmt.Errorf("close stage %s: %w", s.Name(), err))
			}
		}
	}
	return errors.Join(errs...)
}
