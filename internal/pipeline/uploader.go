package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/disclose-tech/documentcloud-dreal-paca-scraper/internal/ledger"
	"github.com/disclose-tech/documentcloud-dreal-paca-scraper/internal/metrics"
	"github.com/disclose-tech/documentcloud-dreal-paca-scraper/internal/scraper"
)

// UploaderConfig carries the run parameters that affect archival.
type UploaderConfig struct {
	DryRun            bool
	RunID             string
	TargetProject     string
	Language          string
	Access            string
	KeepLocalSnapshot bool
}

// UploaderDeps groups the collaborators of the Uploader.
type UploaderDeps struct {
	Archive   scraper.Archive
	Ledger    *ledger.Ledger
	Remote    ledger.Store
	Local     ledger.Store
	Publisher scraper.Publisher
	Clock     scraper.Clock
	State     *scraper.RunState
	Logger    *zap.Logger
}

// Notification is published after every successful upload.
type Notification struct {
	SourceFileURL       string `json:"source_file_url"`
	Title               string `json:"title"`
	Project             string `json:"project"`
	PublicationDatetime string `json:"publication_datetime"`
	RunID               string `json:"run_id,omitempty"`
}

// Uploader archives admitted documents and records them in the ledger.
// The ledger is loaded on Open and persisted on Close.
type Uploader struct {
	cfg        UploaderConfig
	deps       UploaderDeps
	loadFailed bool
}

// NewUploader validates deps and builds an Uploader.
func NewUploader(cfg UploaderConfig, deps UploaderDeps) (*Uploader, error) {
	if deps.Ledger == nil || deps.Local == nil || deps.Clock == nil || deps.State == nil {
		return nil, errors.New("uploader: ledger, local store, clock and state are required")
	}
	if deps.Archive == nil && !cfg.DryRun {
		return nil, errors.New("uploader: archive client is required outside dry runs")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Uploader{cfg: cfg, deps: deps}, nil
}

// Name implements Stage.
func (*Uploader) Name() string { return "upload" }

func (u *Uploader) remoteMode() bool {
	return !u.cfg.DryRun && u.deps.Remote != nil
}

func (u *Uploader) store() ledger.Store {
	if u.remoteMode() {
		return u.deps.Remote
	}
	return u.deps.Local
}

// Open loads the ledger. A missing snapshot starts an empty ledger; any other
// load error is reported and also starts empty.
func (u *Uploader) Open(ctx context.Context) error {
	entries, err := u.store().Load(ctx)
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		u.deps.Logger.Info("no event data was loaded")
	case err != nil:
		u.loadFailed = true
		u.deps.State.RecordFault()
		u.deps.Logger.Error("failed to load event data, starting with an empty ledger", zap.Error(err))
	default:
		u.deps.Ledger.Replace(entries)
		u.deps.Logger.Info("event data loaded", zap.Int("documents", len(entries)))
	}
	metrics.SetLedgerEntries(u.deps.Ledger.Len())
	return nil
}

// Process implements Stage.
func (u *Uploader) Process(ctx context.Context, doc *scraper.Document) error {
	if !u.cfg.DryRun {
		err := u.deps.Archive.Upload(ctx, scraper.Upload{
			FileURL:     doc.SourceFileURL,
			Project:     u.cfg.TargetProject,
			Title:       doc.Title,
			Description: doc.Project,
			Source:      doc.Source,
			Language:    u.cfg.Language,
			Access:      u.cfg.Access,
			Data:        doc.DataBag(),
		})
		if err != nil {
			return scraper.NewFault(u.Name(), fmt.Errorf("upload %s: %w", doc.SourceFileURL, err))
		}
		u.deps.State.RecordUploaded()
		metrics.ObserveDocument(metrics.OutcomeUploaded, u.Name())
	}

	entry := ledger.Entry{
		LastModified: doc.PublicationDatetime,
		LastSeen:     u.deps.Clock.Now().UTC().Format(time.RFC3339),
	}
	u.deps.Ledger.Upsert(doc.SourceFileURL, entry)
	metrics.SetLedgerEntries(u.deps.Ledger.Len())

	if u.remoteMode() && u.cfg.RunID != "" && !u.loadFailed {
		if err := u.flush(ctx, doc.SourceFileURL, entry); err != nil {
			u.deps.Logger.Warn("failed to flush event data", zap.String("url", doc.SourceFileURL), zap.Error(err))
		}
	}
	if u.deps.Publisher != nil && !u.cfg.DryRun {
		if _, err := u.deps.Publisher.Publish(ctx, Notification{
			SourceFileURL:       doc.SourceFileURL,
			Title:               doc.Title,
			Project:             doc.Project,
			PublicationDatetime: doc.PublicationDatetime,
			RunID:               u.cfg.RunID,
		}); err != nil {
			u.deps.Logger.Warn("failed to publish upload notification", zap.String("url", doc.SourceFileURL), zap.Error(err))
		}
	}
	return nil
}

// flush writes the new entry to the remote store. Keyed stores get a single
// write; snapshot stores are rewritten.
func (u *Uploader) flush(ctx context.Context, url string, entry ledger.Entry) error {
	if w, ok := u.deps.Remote.(ledger.EntryWriter); ok {
		return w.Upsert(ctx, url, entry)
	}
	return u.deps.Remote.Save(ctx, u.deps.Ledger.Snapshot())
}

// Close persists the ledger. A failure here is fatal for the run.
func (u *Uploader) Close(ctx context.Context) error {
	store := u.store()
	if u.loadFailed {
		// Never overwrite a snapshot we could not read.
		previous, err := store.Load(ctx)
		switch {
		case errors.Is(err, ledger.ErrNotFound):
		case err != nil:
			return fmt.Errorf("reload event data before save: %w", err)
		default:
			u.deps.Ledger.Merge(previous)
		}
	}
	snapshot := u.deps.Ledger.Snapshot()
	if err := store.Save(ctx, snapshot); err != nil {
		return fmt.Errorf("save event data: %w", err)
	}
	if u.remoteMode() && u.cfg.KeepLocalSnapshot {
		if err := u.deps.Local.Save(ctx, snapshot); err != nil {
			u.deps.Logger.Warn("failed to write local event data copy", zap.Error(err))
		}
	}
	u.deps.Logger.Info("event data saved", zap.Int("documents", len(snapshot)), zap.Bool("remote", u.remoteMode()))
	return nil
}
